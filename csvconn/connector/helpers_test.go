package connector

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/openstandia/connector-csv/csvconn/config"
	"github.com/openstandia/connector-csv/csvconn/csvfile"
	"github.com/openstandia/connector-csv/csvconn/filesystem/lock"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func writeCSV(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func testConfig(path string) config.ObjectClassConfig {
	oc := config.DefaultObjectClassConfig()
	oc.FilePath = path
	oc.TmpFolder = filepath.Join(filepath.Dir(path), "tmp")
	oc.UniqueAttribute = "id"
	oc.ApplyDefaults()
	return oc
}

// fakeClock advances one millisecond per call
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.UnixMilli(1700000000000)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

func newTestHandler(t *testing.T, cfg config.ObjectClassConfig, clock func() time.Time) *Handler {
	t.Helper()
	logger := zerolog.Nop()
	h, err := NewHandler(cfg, HandlerOptions{
		Logger: &logger,
		Clock:  clock,
		Guard: lock.NewGuard(cfg.TmpFolder, lock.Options{
			Timeout:    2 * time.Second,
			MinBackoff: time.Millisecond,
			MaxBackoff: 3 * time.Millisecond,
			Logger:     &logger,
		}),
	})
	require.NoError(t, err)
	return h
}

func searchAll(t *testing.T, h *Handler, query *Query) []*Object {
	t.Helper()
	var objects []*Object
	require.NoError(t, h.Search(t.Context(), query, func(obj *Object) bool {
		objects = append(objects, obj)
		return true
	}))
	return objects
}

func uids(objects []*Object) []string {
	out := make([]string, 0, len(objects))
	for _, o := range objects {
		out = append(out, o.UID)
	}
	return out
}

func record(number int64, values ...string) *csvfile.Record {
	return &csvfile.Record{Number: number, Values: values}
}

func snapshotFiles(t *testing.T, dir, fileName string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, fileName+".sync.[0-9]*"))
	require.NoError(t, err)
	return matches
}
