package lock

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	internal "github.com/openstandia/connector-csv/csvconn"
	"github.com/openstandia/connector-csv/csvconn/filesystem/common"

	"github.com/rs/zerolog"
)

// ErrLockTimeout is returned (wrapped) when the retry budget is exhausted
var ErrLockTimeout = errors.New("lock timeout")

var errSlotBusy = errors.New("lock held by another goroutine")

// Options configures a Guard
type Options struct {
	Timeout    time.Duration // total budget for one Acquire, default 5s
	MinBackoff time.Duration // default 10ms
	MaxBackoff time.Duration // default 60ms
	StaleAfter time.Duration // locks older than this are removed, 0 disables
	Logger     *zerolog.Logger
}

// DefaultOptions returns the standard acquisition budget
func DefaultOptions() Options {
	return Options{
		Timeout:    time.Duration(internal.DefaultLockTimeoutSeconds) * time.Second,
		MinBackoff: 10 * time.Millisecond,
		MaxBackoff: 60 * time.Millisecond,
		StaleAfter: time.Duration(internal.DefaultLockStaleAfterMinutes) * time.Minute,
	}
}

// LockContentionError describes a failed acquisition
type LockContentionError struct {
	LockPath string
	Waited   time.Duration
	Attempts int
	Timeout  time.Duration
}

func (err *LockContentionError) Error() string {
	return fmt.Sprintf("couldn't obtain lock %s (waited=%s attempts=%d timeout=%s)",
		err.LockPath, err.Waited.Truncate(time.Millisecond), err.Attempts, err.Timeout)
}

func (err *LockContentionError) Unwrap() error {
	return ErrLockTimeout
}

// Guard serializes access to lock files inside one directory, both across
// processes (exclusive file creation) and across goroutines of this process.
type Guard struct {
	dir    string
	opts   Options
	logger zerolog.Logger

	mu    sync.Mutex
	slots map[string]chan struct{}
}

// NewGuard creates a guard for lock files in dir
func NewGuard(dir string, opts Options) *Guard {
	def := DefaultOptions()
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.MinBackoff <= 0 {
		opts.MinBackoff = def.MinBackoff
	}
	if opts.MaxBackoff < opts.MinBackoff {
		opts.MaxBackoff = opts.MinBackoff
	}

	logger := internal.GetLogger()
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	return &Guard{
		dir:    dir,
		opts:   opts,
		logger: logger.With().Str("component", "lock").Str("dir", dir).Logger(),
		slots:  make(map[string]chan struct{}),
	}
}

// Dir returns the directory holding the lock files
func (g *Guard) Dir() string {
	return g.dir
}

// Handle is an acquired lock. Release may be called any number of times.
type Handle struct {
	path string
	slot chan struct{}
	once sync.Once
}

// Path returns the lock file path
func (h *Handle) Path() string {
	if h == nil {
		return ""
	}
	return h.path
}

// Release deletes the lock file and frees the in-process slot
func (h *Handle) Release() {
	if h == nil {
		return
	}
	h.once.Do(func() {
		_ = os.Remove(h.path)
		<-h.slot
	})
}

type lockMetadata struct {
	PID       int    `json:"pid"`
	Host      string `json:"host,omitempty"`
	CreatedAt string `json:"created_at"`
}

// Acquire obtains the lock file name inside the guard directory. It retries
// with a small random backoff until the timeout or ctx expires.
func (g *Guard) Acquire(ctx context.Context, name string) (*Handle, error) {
	lockPath := filepath.Join(g.dir, name)
	start := time.Now()
	deadline := start.Add(g.opts.Timeout)

	if err := os.MkdirAll(g.dir, 0o750); err != nil {
		return nil, common.NewIOError("prepare lock directory", g.dir, err)
	}

	slot := g.slot(lockPath)
	if err := g.enter(ctx, slot, deadline); err != nil {
		return nil, common.NewIOError("acquire lock", lockPath, g.contention(lockPath, start, 0, err))
	}

	attempts := 0
	for {
		attempts++
		file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err == nil {
			writeMetadata(file)
			_ = file.Close()
			g.logger.Debug().Str("lock", lockPath).Int("attempts", attempts).Msg("Lock acquired")
			return &Handle{path: lockPath, slot: slot}, nil
		}

		if !os.IsExist(err) {
			<-slot
			return nil, common.NewIOError("acquire lock", lockPath, err)
		}

		if content, stale := g.staleContent(lockPath); stale && g.removeStale(lockPath, content) {
			continue
		}

		wait := g.backoff()
		if time.Now().Add(wait).After(deadline) {
			<-slot
			return nil, common.NewIOError("acquire lock", lockPath, g.contention(lockPath, start, attempts, nil))
		}

		select {
		case <-ctx.Done():
			<-slot
			return nil, common.NewIOError("acquire lock", lockPath, g.contention(lockPath, start, attempts, ctx.Err()))
		case <-time.After(wait):
		}
	}
}

// WithLock runs fn while holding the named lock
func (g *Guard) WithLock(ctx context.Context, name string, fn func() error) error {
	handle, err := g.Acquire(ctx, name)
	if err != nil {
		return err
	}
	defer handle.Release()
	return fn()
}

func (g *Guard) slot(lockPath string) chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()

	slot, ok := g.slots[lockPath]
	if !ok {
		slot = make(chan struct{}, 1)
		g.slots[lockPath] = slot
	}
	return slot
}

// enter waits for the in-process slot of a lock path
func (g *Guard) enter(ctx context.Context, slot chan struct{}, deadline time.Time) error {
	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()

	select {
	case slot <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return errSlotBusy
	}
}

func (g *Guard) contention(lockPath string, start time.Time, attempts int, cause error) error {
	err := &LockContentionError{
		LockPath: lockPath,
		Waited:   time.Since(start),
		Attempts: attempts,
		Timeout:  g.opts.Timeout,
	}
	if cause != nil {
		return fmt.Errorf("%w: %w", err, cause)
	}
	return err
}

func (g *Guard) backoff() time.Duration {
	span := g.opts.MaxBackoff - g.opts.MinBackoff
	if span <= 0 {
		return g.opts.MinBackoff
	}
	return g.opts.MinBackoff + rand.N(span)
}

// staleContent reports whether the lock file is older than StaleAfter and
// returns the content the judgment was made on.
func (g *Guard) staleContent(lockPath string) ([]byte, bool) {
	if g.opts.StaleAfter <= 0 {
		return nil, false
	}

	createdAt := time.Time{}
	content, err := os.ReadFile(lockPath)
	if err == nil {
		var metadata lockMetadata
		if json.Unmarshal(content, &metadata) == nil {
			if t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(metadata.CreatedAt)); err == nil {
				createdAt = t
			}
		}
	}
	if createdAt.IsZero() {
		info, err := os.Stat(lockPath)
		if err != nil {
			return nil, false
		}
		createdAt = info.ModTime()
	}
	return content, time.Since(createdAt) > g.opts.StaleAfter
}

// removeStale claims the lock file under a unique name and removes it only
// when the claimed file still holds the content judged stale. A lock that was
// recreated by another process in the meantime is linked back into place.
func (g *Guard) removeStale(lockPath string, judged []byte) bool {
	claim := fmt.Sprintf("%s.stale-%d-%d", lockPath, os.Getpid(), rand.Uint64())
	if err := os.Rename(lockPath, claim); err != nil {
		return false
	}

	claimed, err := os.ReadFile(claim)
	if err == nil && bytes.Equal(claimed, judged) {
		g.logger.Warn().Str("lock", lockPath).Dur("stale_after", g.opts.StaleAfter).Msg("Removed stale lock")
		_ = os.Remove(claim)
		return true
	}

	g.logger.Debug().Str("lock", lockPath).Msg("Lock changed while recovering, restoring it")
	if err := os.Link(claim, lockPath); err != nil && !os.IsExist(err) {
		_ = os.Rename(claim, lockPath)
		return false
	}
	_ = os.Remove(claim)
	return false
}

func writeMetadata(file *os.File) {
	host, _ := os.Hostname()
	encoded, err := json.Marshal(lockMetadata{
		PID:       os.Getpid(),
		Host:      host,
		CreatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return
	}
	_, _ = file.Write(append(encoded, '\n'))
}
