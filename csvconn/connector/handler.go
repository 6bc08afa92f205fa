package connector

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	internal "github.com/openstandia/connector-csv/csvconn"
	"github.com/openstandia/connector-csv/csvconn/config"
	"github.com/openstandia/connector-csv/csvconn/csvfile"
	"github.com/openstandia/connector-csv/csvconn/filesystem/common"
	"github.com/openstandia/connector-csv/csvconn/filesystem/fileops"
	"github.com/openstandia/connector-csv/csvconn/filesystem/lock"

	"github.com/rs/zerolog"
)

// HandlerOptions carries the collaborators of a Handler. Zero values are
// replaced by defaults.
type HandlerOptions struct {
	Logger  *zerolog.Logger
	FileOps fileops.FileOperations
	Guard   *lock.Guard
	Clock   func() time.Time
}

// Handler exposes one csv file as an object class.
type Handler struct {
	cfg     config.ObjectClassConfig
	format  csvfile.Format
	header  *Header
	mapper  *Mapper
	schema  *Schema
	store   *snapshotStore
	guard   *lock.Guard
	metrics *common.SyncMetrics
	logger  zerolog.Logger
}

// NewHandler validates the configuration and resolves the header of the
// source file. Any failure is a configuration or I/O error.
func NewHandler(cfg config.ObjectClassConfig, opts HandlerOptions) (*Handler, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate().Err(); err != nil {
		return nil, err
	}

	logger := internal.GetLogger()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	logger = logger.With().Str("object_class", cfg.ObjectClass).Logger()

	format, err := csvfile.NewFormat(cfg)
	if err != nil {
		return nil, err
	}

	header, err := ResolveHeaderFile(cfg.FilePath, cfg)
	if err != nil {
		return nil, common.Normalize("initialize object class "+cfg.ObjectClass, cfg.FilePath, err)
	}
	if missing := header.Missing(cfg.MultivalueAttributes); len(missing) > 0 {
		logger.Warn().Strs("attributes", missing).Msg("Multivalue attributes not found in header")
	}

	mapper, err := NewMapper(cfg, header)
	if err != nil {
		return nil, err
	}

	ops := opts.FileOps
	if ops == nil {
		ops = fileops.NewFileOps()
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	guard := opts.Guard
	if guard == nil {
		guard = lock.NewGuard(cfg.TmpFolder, lockOptions(cfg, &logger))
	}

	h := &Handler{
		cfg:     cfg,
		format:  format,
		header:  header,
		mapper:  mapper,
		schema:  BuildSchema(cfg, header),
		store:   newSnapshotStore(cfg.TmpFolder, cfg.FilePath, ops, clock, logger),
		guard:   guard,
		metrics: &common.SyncMetrics{},
		logger:  logger,
	}

	logger.Debug().Strs("columns", header.Names()).Str("file", cfg.FilePath).Msg("Object class initialized")
	return h, nil
}

func lockOptions(cfg config.ObjectClassConfig, logger *zerolog.Logger) lock.Options {
	opts := lock.DefaultOptions()
	opts.Timeout = time.Duration(cfg.LockTimeoutSeconds) * time.Second
	opts.StaleAfter = time.Duration(cfg.LockStaleAfterMinutes) * time.Minute
	opts.Logger = logger
	return opts
}

// ObjectClass returns the object class name
func (h *Handler) ObjectClass() string {
	return h.cfg.ObjectClass
}

// Config returns the effective configuration
func (h *Handler) Config() config.ObjectClassConfig {
	return h.cfg
}

// Header returns the header resolved at construction
func (h *Handler) Header() *Header {
	return h.header
}

// Schema returns the schema derived from the header
func (h *Handler) Schema() *Schema {
	return h.schema
}

// Metrics returns synchronization metrics
func (h *Handler) Metrics() map[string]interface{} {
	return h.metrics.GetMetrics()
}

// Search streams the objects of the live file matching query to fn.
func (h *Handler) Search(ctx context.Context, query *Query, fn ResultHandler) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	file, err := csvfile.Open(h.cfg.FilePath, h.cfg.Encoding, h.format)
	if err != nil {
		return err
	}
	defer file.Close()

	_, err = h.each(file, h.mapper, func(obj *Object) bool {
		if !query.matches(obj) {
			return true
		}
		return fn(obj)
	})
	return common.Normalize("search "+h.cfg.ObjectClass, h.cfg.FilePath, err)
}

// each maps every row (group) of reader and hands the objects to fn until
// it returns false. It returns how many objects were delivered.
func (h *Handler) each(reader RecordReader, mapper *Mapper, fn ResultHandler) (int, error) {
	rows := newRowSource(reader, h.cfg, mapper)
	delivered := 0
	for {
		group, err := rows.nextGroup()
		if errors.Is(err, io.EOF) {
			return delivered, nil
		}
		if err != nil {
			return delivered, err
		}

		obj, err := mapper.Map(group)
		if err != nil {
			return delivered, err
		}
		delivered++
		if !fn(obj) {
			return delivered, nil
		}
	}
}

// Test validates the configuration and resolves the header again.
func (h *Handler) Test(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := h.cfg.Validate().Err(); err != nil {
		return err
	}

	validation := common.NewValidationUtils()
	if err := validation.ValidateFileExists(h.cfg.FilePath); err != nil {
		return common.NewConfigurationError("test "+h.cfg.ObjectClass, "%v", err)
	}

	if err := os.MkdirAll(h.cfg.TmpFolder, 0o750); err != nil {
		return common.NewIOError("test "+h.cfg.ObjectClass, h.cfg.TmpFolder, err)
	}
	if err := validation.ValidateDirectoryExists(h.cfg.TmpFolder); err != nil {
		return common.NewConfigurationError("test "+h.cfg.ObjectClass, "tmp folder: %v", err)
	}

	header, err := ResolveHeaderFile(h.cfg.FilePath, h.cfg)
	if err != nil {
		return common.Normalize("test "+h.cfg.ObjectClass, h.cfg.FilePath, err)
	}
	if header.Size() != h.header.Size() {
		h.logger.Warn().Int("columns", header.Size()).Int("initial_columns", h.header.Size()).
			Msg("Header changed since initialization")
	}
	return nil
}
