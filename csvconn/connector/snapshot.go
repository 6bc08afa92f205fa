package connector

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/openstandia/connector-csv/csvconn/filesystem/common"
	"github.com/openstandia/connector-csv/csvconn/filesystem/fileops"

	"github.com/armon/go-radix"
	"github.com/rs/zerolog"
)

const (
	syncSuffix   = ".sync."
	lockSuffix   = "lock"
	digestMethod = common.ChecksumSHA256
)

// snapshot is an immutable copy of the source file named by its token
type snapshot struct {
	Token Token
	Path  string
}

// snapshotStore manages <file>.sync.<token> copies inside the temp folder.
// Callers serialize create, remove and prune through the lock guard.
type snapshotStore struct {
	dir       string
	fileName  string
	fileOps   fileops.FileOperations
	fileUtils *common.FileUtils
	now       func() time.Time
	logger    zerolog.Logger
}

func newSnapshotStore(dir, sourcePath string, ops fileops.FileOperations, now func() time.Time, logger zerolog.Logger) *snapshotStore {
	return &snapshotStore{
		dir:       dir,
		fileName:  filepath.Base(sourcePath),
		fileOps:   ops,
		fileUtils: common.NewFileUtils(),
		now:       now,
		logger:    logger,
	}
}

func (s *snapshotStore) prefix() string {
	return s.fileName + syncSuffix
}

// lockName is the name of the lock file shared by all passes on this file
func (s *snapshotStore) lockName() string {
	return s.prefix() + lockSuffix
}

func (s *snapshotStore) path(token Token) string {
	return filepath.Join(s.dir, s.prefix()+string(token))
}

// list returns the snapshots sorted by name, which for fixed width tokens
// is also token order.
func (s *snapshotStore) list() ([]snapshot, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, common.NewIOError("list snapshots", s.dir, err)
	}

	index := radix.New()
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			index.Insert(entry.Name(), filepath.Join(s.dir, entry.Name()))
		}
	}

	prefix := s.prefix()
	var snapshots []snapshot
	index.WalkPrefix(prefix, func(name string, value interface{}) bool {
		if token, ok := ParseToken(strings.TrimPrefix(name, prefix)); ok {
			snapshots = append(snapshots, snapshot{Token: token, Path: value.(string)})
		}
		return false
	})
	return snapshots, nil
}

// create copies the source file to a new snapshot. The token is the current
// time in milliseconds, moved past the newest existing snapshot if needed.
func (s *snapshotStore) create(ctx context.Context, source string) (snapshot, error) {
	existing, err := s.list()
	if err != nil {
		return snapshot{}, err
	}

	millis := s.now().UnixMilli()
	if n := len(existing); n > 0 {
		if last := existing[n-1].Token.Millis(); last >= millis {
			millis = last + 1
		}
	}

	token := NewToken(millis)
	snap := snapshot{Token: token, Path: s.path(token)}
	if _, err := s.fileOps.CopyFile(ctx, source, snap.Path, fileops.CopyOptions{Sync: true}); err != nil {
		return snapshot{}, common.NewIOError("create snapshot", snap.Path, err)
	}

	s.logger.Debug().Str("token", string(token)).Str("snapshot", snap.Path).Msg("Snapshot created")
	return snap, nil
}

// find returns the snapshot of exactly this token
func (s *snapshotStore) find(token Token) (snapshot, bool, error) {
	path := s.path(token)
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return snapshot{}, false, nil
		}
		return snapshot{}, false, common.NewIOError("find snapshot", path, err)
	}
	if !info.Mode().IsRegular() {
		return snapshot{}, false, nil
	}
	return snapshot{Token: token, Path: path}, true, nil
}

// oldestNewerThan returns the oldest snapshot whose token is after token
func (s *snapshotStore) oldestNewerThan(token Token) (snapshot, bool, error) {
	snapshots, err := s.list()
	if err != nil {
		return snapshot{}, false, err
	}

	wanted := token.Millis()
	for _, snap := range snapshots {
		if snap.Token.Millis() > wanted {
			return snap, true, nil
		}
	}
	return snapshot{}, false, nil
}

// sameContent compares the digests of two snapshots
func (s *snapshotStore) sameContent(a, b snapshot) (bool, error) {
	same, err := s.fileUtils.SameContent(a.Path, b.Path, digestMethod)
	if err != nil {
		return false, common.NewIOError("compare snapshots", s.dir, err)
	}
	return same, nil
}

func (s *snapshotStore) remove(ctx context.Context, snap snapshot) error {
	if err := s.fileOps.DeleteFile(ctx, snap.Path); err != nil {
		return common.NewIOError("remove snapshot", snap.Path, err)
	}
	return nil
}

// prune keeps the newest preserve snapshots. A preserve count of one or
// less keeps everything. Failures are logged and skipped.
func (s *snapshotStore) prune(ctx context.Context, preserve int) (pruned, failed int) {
	if preserve <= 1 {
		return 0, 0
	}

	snapshots, err := s.list()
	if err != nil {
		s.logger.Warn().Err(err).Msg("Couldn't list snapshots for cleanup")
		return 0, 1
	}

	for i := 0; i+preserve < len(snapshots); i++ {
		snap := snapshots[i]
		if err := s.fileOps.DeleteFile(ctx, snap.Path); err != nil {
			s.logger.Warn().Err(err).Str("snapshot", snap.Path).Msg("Couldn't delete old sync file")
			failed++
			continue
		}
		pruned++
	}

	if pruned > 0 {
		s.logger.Debug().Int("pruned", pruned).Int("preserve", preserve).Msg("Old sync files removed")
	}
	return pruned, failed
}
