package memcore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/asecn/memcore/internal/audit"
	"github.com/asecn/memcore/internal/backup"
	"github.com/asecn/memcore/internal/catalog"
	"github.com/asecn/memcore/internal/doctor"
	"github.com/asecn/memcore/internal/recall"
	"github.com/asecn/memcore/internal/schema"
	"github.com/asecn/memcore/internal/store"
	"github.com/asecn/memcore/pkg/config"
	"github.com/asecn/memcore/pkg/errclass"
	"github.com/asecn/memcore/pkg/logging"
	"github.com/asecn/memcore/pkg/metrics"
	"github.com/asecn/memcore/pkg/model"
)

// Operation option and query types, re-exported for callers outside this
// module.
type (
	WriteOptions   = store.WriteOptions
	ReadOptions    = store.ReadOptions
	PurgeOptions   = backup.PurgeOptions
	RestoreOptions = backup.RestoreOptions
	RecallOptions  = recall.Options
	ParseOptions   = recall.ParseOptions

	Query       = recall.Query
	All         = recall.All
	Text        = recall.Text
	Fields      = recall.Fields
	Invalid     = recall.Invalid
	Matcher     = recall.Matcher
	Ignore      = recall.Ignore
	Contains    = recall.Contains
	Equals      = recall.Equals
	ContainsAll = recall.ContainsAll
	DeepEqual   = recall.DeepEqual
	Subset      = recall.Subset

	ValidationResult = schema.Result
	DoctorResult     = doctor.Result
	Finding          = doctor.Finding
)

// ErrClosed is returned by operations on a closed Client.
var ErrClosed = errors.New("memcore: client is closed")

// Options configures Open.
type Options struct {
	// Dir is the store directory. It overrides Config.Store.Dir.
	Dir string
	// Config supplies file names and defaults. Nil means config.Default().
	Config *config.Config
	// Logger receives every log record. Nil builds a logger from
	// Config.Logging.
	Logger  logging.Sink
	Metrics *metrics.Registry
	Clock   func() time.Time
}

// Client provides high-level memcore operations on one store.
type Client struct {
	cfg         *config.Config
	store       *store.Store
	backups     *backup.Manager
	recall      *recall.Engine
	audit       *audit.FileAppender
	lockTimeout time.Duration
	closers     []io.Closer
	closed      atomic.Bool
}

// Open prepares a client. The store directory and file are created lazily.
func Open(opts Options) (*Client, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if opts.Dir != "" {
		c := *cfg
		c.Store.Dir = opts.Dir
		cfg = &c
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("memcore open: %w", err)
	}
	lockTimeout, err := cfg.LockTimeoutDuration()
	if err != nil {
		return nil, fmt.Errorf("memcore open: %w", err)
	}

	var sch *schema.Schema
	if cfg.Store.Schema != "" {
		if sch, err = schema.LoadOrBuiltin(cfg.Store.Schema); err != nil {
			return nil, fmt.Errorf("memcore open: %w", err)
		}
	}

	client := &Client{cfg: cfg, lockTimeout: lockTimeout}

	sink := opts.Logger
	if sink == nil {
		logger, closers, err := NewLogger(cfg.Logging)
		if err != nil {
			return nil, fmt.Errorf("memcore open: %w", err)
		}
		sink = logger
		client.closers = closers
	}

	cat := catalog.New(cfg.BackupsPath())
	if opts.Clock != nil {
		cat.SetClock(opts.Clock)
	}
	client.audit = audit.NewFileAppender(cfg.AuditPath())

	s, err := store.Open(store.Options{
		Path:           cfg.StorePath(),
		Catalog:        cat,
		Logger:         sink,
		Metrics:        opts.Metrics,
		Audit:          client.audit,
		Schema:         sch,
		SkipQuarantine: !cfg.Store.QuarantineCorrupted,
		Clock:          opts.Clock,
	})
	if err != nil {
		client.closeAll()
		return nil, fmt.Errorf("memcore open: %w", err)
	}
	client.store = s
	client.backups = backup.NewManager(s)
	client.recall = recall.New(sink, opts.Metrics)
	return client, nil
}

// NewLogger builds a logger from logging settings. Files named in cfg are
// opened for appending; the returned closers release them.
func NewLogger(cfg config.LoggingConfig) (*logging.Logger, []io.Closer, error) {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}
	logger := logging.NewLogger(level)
	if cfg.Format != "" {
		logger.SetFormat(logging.Format(cfg.Format))
	}

	var closers []io.Closer
	open := func(path string) (*os.File, error) {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		closers = append(closers, f)
		return f, nil
	}
	fail := func(err error) (*logging.Logger, []io.Closer, error) {
		for _, c := range closers {
			c.Close()
		}
		return nil, nil, err
	}

	if cfg.File != "" {
		f, err := open(cfg.File)
		if err != nil {
			return fail(err)
		}
		logger.SetOutput(f)
	}
	if cfg.ErrorFile != "" {
		f, err := open(cfg.ErrorFile)
		if err != nil {
			return fail(err)
		}
		logger.SetErrorLog(f)
	}
	return logger, closers, nil
}

// Config returns the effective configuration.
func (c *Client) Config() *config.Config {
	return c.cfg
}

// StorePath returns the store file location.
func (c *Client) StorePath() string {
	return c.store.Path()
}

func (c *Client) begin(ctx context.Context) (context.Context, context.CancelFunc, error) {
	if c.closed.Load() {
		return nil, nil, ErrClosed
	}
	if c.lockTimeout > 0 {
		ctx, cancel := context.WithTimeout(ctx, c.lockTimeout)
		return ctx, cancel, nil
	}
	return ctx, func() {}, nil
}

// Write appends an entry and returns it as stored.
func (c *Client) Write(ctx context.Context, entry model.Entry, opts WriteOptions) (model.Entry, error) {
	ctx, cancel, err := c.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()
	return c.store.Write(ctx, entry, opts)
}

// Read returns every entry in insertion order.
func (c *Client) Read(ctx context.Context, opts ReadOptions) ([]model.Entry, error) {
	ctx, cancel, err := c.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()
	return c.store.Read(ctx, opts)
}

// Recall runs a typed query.
func (c *Client) Recall(ctx context.Context, q Query, opts RecallOptions) ([]model.Entry, error) {
	ctx, cancel, err := c.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()
	return c.recall.Recall(ctx, c.store, q, opts)
}

// RecallRaw parses loosely typed input, such as a string or decoded JSON
// object, into a query and runs it.
func (c *Client) RecallRaw(ctx context.Context, raw any, parse ParseOptions, opts RecallOptions) ([]model.Entry, error) {
	return c.Recall(ctx, recall.Parse(raw, parse), opts)
}

// Purge clears the store behind a safety backup. Nil PreserveTags take the
// configured purge.preserve_tags.
func (c *Client) Purge(ctx context.Context, opts PurgeOptions) (*model.PurgeResult, error) {
	ctx, cancel, err := c.begin(ctx)
	if err != nil {
		return &model.PurgeResult{Message: err.Error(), Error: err.Error()}, err
	}
	defer cancel()
	if opts.PreserveTags == nil {
		opts.PreserveTags = c.cfg.Purge.PreserveTags
	}
	return c.backups.Purge(ctx, opts)
}

// CreateBackup snapshots the store under label, or a generated name.
func (c *Client) CreateBackup(ctx context.Context, label string) (*model.BackupMetadata, error) {
	ctx, cancel, err := c.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()
	return c.backups.Create(ctx, label)
}

// ListBackups returns every backup, newest first.
func (c *Client) ListBackups(ctx context.Context) ([]model.BackupMetadata, error) {
	ctx, cancel, err := c.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()
	return c.backups.List(ctx)
}

// RestoreFromBackup replaces the store with the named backup.
func (c *Client) RestoreFromBackup(ctx context.Context, name string, opts RestoreOptions) (*model.RestoreResult, error) {
	ctx, cancel, err := c.begin(ctx)
	if err != nil {
		return &model.RestoreResult{Message: err.Error(), Error: err.Error()}, err
	}
	defer cancel()
	return c.backups.Restore(ctx, name, opts)
}

// Validate checks entry against the store's write schema without writing.
func (c *Client) Validate(entry model.Entry) ValidationResult {
	return c.store.Validate(entry)
}

// Doctor inspects the store, backups and audit trail.
func (c *Client) Doctor(strict bool) (*DoctorResult, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	return doctor.NewDoctor(c.store, c.audit).Check(strict)
}

// Close releases log files opened by the client. Further calls fail with
// ErrClosed.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	return c.closeAll()
}

func (c *Client) closeAll() error {
	var errs []error
	for _, cl := range c.closers {
		if err := cl.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	if len(errs) > 0 {
		return errclass.ErrIO.Wrap(errors.Join(errs...), "close log files")
	}
	return nil
}
