package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	internal "github.com/openstandia/connector-csv/csvconn"
	"github.com/openstandia/connector-csv/csvconn/config"
	"github.com/openstandia/connector-csv/csvconn/connector"
	"github.com/openstandia/connector-csv/csvconn/filesystem/common"
	"github.com/openstandia/connector-csv/csvconn/filesystem/watcher"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFixture(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "users.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("id,name\n1,john\n2,jack\n"), 0o644))

	cfgPath := filepath.Join(dir, "config.yaml")
	content := fmt.Sprintf(`connector:
  filePath: %s
  tmpFolder: %s
  uniqueAttribute: id
logging:
  level: error
`, csvPath, filepath.Join(dir, "tmp"))
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0o644))
	return cfgPath, csvPath
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cfgFile, objectClass, outputFormat = "", internal.DefaultObjectClass, "yaml"
	searchUID, searchLimit, syncToken, schemaAll = "", 0, "", false

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestSchemaCommand(t *testing.T) {
	cfgPath, _ := writeFixture(t)

	out, err := runCLI(t, "schema", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "__UID__")
	assert.Contains(t, out, "nativeName: id")
}

func TestSearchCommand(t *testing.T) {
	cfgPath, _ := writeFixture(t)

	out, err := runCLI(t, "search", "--config", cfgPath, "--output", "json", "--uid", "2")
	require.NoError(t, err)

	var objects []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &objects))
	require.Len(t, objects, 1)
	assert.Equal(t, "2", objects[0]["uid"])

	out, err = runCLI(t, "search", "--config", cfgPath, "--output", "json", "--limit", "1")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &objects))
	assert.Len(t, objects, 1)
}

func TestTokenAndSyncCommands(t *testing.T) {
	cfgPath, _ := writeFixture(t)

	out, err := runCLI(t, "token", "--config", cfgPath, "--output", "json")
	require.NoError(t, err)
	var token map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &token))
	require.Len(t, token["token"], 13)

	out, err = runCLI(t, "sync", "--config", cfgPath, "--output", "json", "--token", token["token"])
	require.NoError(t, err)
	var result struct {
		Result  map[string]interface{} `json:"result"`
		Changes []json.RawMessage      `json:"changes"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Empty(t, result.Changes)
	assert.Equal(t, "unchanged", result.Result["state"])
}

func TestTestCommand(t *testing.T) {
	cfgPath, _ := writeFixture(t)

	out, err := runCLI(t, "test", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "OK: 1")
}

func TestUnknownObjectClass(t *testing.T) {
	cfgPath, _ := writeFixture(t)

	_, err := runCLI(t, "search", "--config", cfgPath, "--object-class", "__GROUP__")
	require.Error(t, err)
	assert.ErrorIs(t, err, connector.ErrUnknownObjectClass)
	assert.Equal(t, exitConfiguration, exitCode(err))
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, exitConfiguration, exitCode(common.NewConfigurationError("op", "bad")))
	assert.Equal(t, exitStructural, exitCode(common.NewStructuralError("op", "f.csv", 2, "bad")))
	assert.Equal(t, exitIO, exitCode(common.NewIOError("op", "f.csv", os.ErrPermission)))
	assert.Equal(t, exitFailure, exitCode(assert.AnError))
}

func TestLiveSync(t *testing.T) {
	logger = zerolog.Nop()
	_, csvPath := writeFixture(t)

	oc := config.DefaultObjectClassConfig()
	oc.FilePath = csvPath
	oc.UniqueAttribute = "id"
	c, err := connector.New(&config.Config{Connector: oc}, connector.Options{Logger: &logger})
	require.NoError(t, err)

	var changes []*connector.ChangeEntry
	l := newLiveSync(c, func(entry *connector.ChangeEntry) bool {
		changes = append(changes, entry)
		return true
	})
	require.NoError(t, l.init(context.Background(), c.ObjectClasses(), ""))
	first := l.tokens[internal.DefaultObjectClass]
	require.Len(t, l.files(), 1)

	require.NoError(t, os.WriteFile(csvPath, []byte("id,name\n1,john\n2,jack\n3,jim\n"), 0o644))

	events := make(chan []watcher.Event, 1)
	errs := make(chan error)
	events <- []watcher.Event{{Type: watcher.EventWrite, Path: l.files()[0]}}
	close(events)

	require.NoError(t, l.run(context.Background(), events, errs))
	assert.Len(t, changes, 3)
	assert.NotEqual(t, first, l.tokens[internal.DefaultObjectClass])
}
