package connector

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	internal "github.com/openstandia/connector-csv/csvconn"
	"github.com/openstandia/connector-csv/csvconn/config"
	"github.com/openstandia/connector-csv/csvconn/filesystem/common"
	"github.com/openstandia/connector-csv/csvconn/filesystem/fileops"
	"github.com/openstandia/connector-csv/csvconn/filesystem/lock"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"
)

// ErrUnknownObjectClass is returned for object classes without a handler
var ErrUnknownObjectClass = errors.New("unknown object class")

// SchemaProvider describes object classes
type SchemaProvider interface {
	Schema() *Schema
}

// QueryExecutor searches objects
type QueryExecutor interface {
	Search(ctx context.Context, query *Query, fn ResultHandler) error
}

// ChangeFeedProvider reports changes since a token
type ChangeFeedProvider interface {
	Sync(ctx context.Context, token string, fn ChangeHandler) (*SyncResult, error)
	LatestToken(ctx context.Context) (Token, error)
}

// Tester checks that an object class is usable
type Tester interface {
	Test(ctx context.Context) error
}

// ObjectClassHandler is every capability of one object class
type ObjectClassHandler interface {
	SchemaProvider
	QueryExecutor
	ChangeFeedProvider
	Tester
	ObjectClass() string
}

var _ ObjectClassHandler = (*Handler)(nil)

// Options carries shared collaborators for all handlers
type Options struct {
	Logger  *zerolog.Logger
	FileOps fileops.FileOperations
	Clock   func() time.Time
}

// Connector is the registry of object class handlers. It is built once by
// New and never modified afterwards.
type Connector struct {
	cfg      *config.Config
	handlers map[string]*Handler
	order    []string
	guards   map[string]*lock.Guard
	logger   zerolog.Logger
}

// New validates cfg and initializes a handler per object class. Object
// classes sharing a temp folder share one lock guard.
func New(cfg *config.Config, opts Options) (*Connector, error) {
	if err := cfg.Validate().Err(); err != nil {
		return nil, err
	}

	logger := internal.GetLogger()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	ops := opts.FileOps
	if ops == nil {
		ops = fileops.NewFileOps()
	}

	c := &Connector{
		cfg:      cfg,
		handlers: make(map[string]*Handler),
		guards:   make(map[string]*lock.Guard),
		logger:   logger,
	}
	pathUtils := common.NewPathUtils()

	for _, oc := range cfg.All() {
		dir := pathUtils.NormalizePath(oc.TmpFolder)
		guard, ok := c.guards[dir]
		if !ok {
			guard = lock.NewGuard(oc.TmpFolder, lockOptions(oc, &logger))
			c.guards[dir] = guard
		}

		handler, err := NewHandler(oc, HandlerOptions{
			Logger:  &logger,
			FileOps: ops,
			Guard:   guard,
			Clock:   opts.Clock,
		})
		if err != nil {
			return nil, err
		}
		c.handlers[oc.ObjectClass] = handler
		c.order = append(c.order, oc.ObjectClass)
	}

	logger.Info().Strs("object_classes", c.order).Int("lock_guards", len(c.guards)).Msg("Connector initialized")
	return c, nil
}

// ObjectClasses returns the configured object classes in configuration order
func (c *Connector) ObjectClasses() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Handler returns the handler of an object class
func (c *Connector) Handler(objectClass string) (*Handler, error) {
	h, ok := c.handlers[objectClass]
	if !ok {
		known := c.ObjectClasses()
		sort.Strings(known)
		return nil, &common.ConnectorError{
			Kind: common.ErrConfiguration,
			Op:   "get handler",
			Err:  fmt.Errorf("%w %q, known: %v", ErrUnknownObjectClass, objectClass, known),
		}
	}
	return h, nil
}

// Schema returns the schema of every object class
func (c *Connector) Schema() []*Schema {
	schemas := make([]*Schema, 0, len(c.order))
	for _, name := range c.order {
		schemas = append(schemas, c.handlers[name].Schema())
	}
	return schemas
}

// Search runs a query against one object class
func (c *Connector) Search(ctx context.Context, objectClass string, query *Query, fn ResultHandler) error {
	h, err := c.Handler(objectClass)
	if err != nil {
		return err
	}
	return h.Search(ctx, query, fn)
}

// Sync runs a synchronization pass on one object class
func (c *Connector) Sync(ctx context.Context, objectClass, token string, fn ChangeHandler) (*SyncResult, error) {
	h, err := c.Handler(objectClass)
	if err != nil {
		return nil, err
	}
	return h.Sync(ctx, token, fn)
}

// LatestToken issues a token for the current state of one object class
func (c *Connector) LatestToken(ctx context.Context, objectClass string) (Token, error) {
	h, err := c.Handler(objectClass)
	if err != nil {
		return NoToken, err
	}
	return h.LatestToken(ctx)
}

// Test validates the configuration and checks every object class
// concurrently. All failures are returned joined.
func (c *Connector) Test(ctx context.Context) error {
	if err := c.cfg.Validate().Err(); err != nil {
		return err
	}

	p := pool.New().WithErrors().WithContext(ctx)
	for _, name := range c.order {
		h := c.handlers[name]
		p.Go(func(ctx context.Context) error {
			if err := h.Test(ctx); err != nil {
				return fmt.Errorf("object class %s: %w", h.ObjectClass(), err)
			}
			return nil
		})
	}

	if err := p.Wait(); err != nil {
		c.logger.Error().Err(err).Msg("Connector test failed")
		return err
	}
	c.logger.Info().Int("object_classes", len(c.order)).Msg("Connector test passed")
	return nil
}
