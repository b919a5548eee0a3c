// Package store owns the on-disk entry log: a single pretty-printed JSON
// array rewritten atomically under an exclusive per-path lock.
package store

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/asecn/memcore/internal/audit"
	"github.com/asecn/memcore/internal/catalog"
	"github.com/asecn/memcore/internal/lock"
	"github.com/asecn/memcore/internal/schema"
	"github.com/asecn/memcore/pkg/errclass"
	"github.com/asecn/memcore/pkg/jsonutil"
	"github.com/asecn/memcore/pkg/logging"
	"github.com/asecn/memcore/pkg/metrics"
	"github.com/asecn/memcore/pkg/model"
)

// LogSource tags every log record emitted by the store.
const LogSource = "memory-core"

// DefaultFile is the store file name inside a memcore directory.
const DefaultFile = "memory-state.json"

// Options configures a Store. Only Path is required.
type Options struct {
	// Path of the store file.
	Path string
	// Catalog receives quarantined content. Defaults to "backups" next to Path.
	Catalog *catalog.Catalog
	Logger  logging.Sink
	Metrics *metrics.Registry
	Audit   audit.Appender
	// Schema applied to validated writes. Defaults to schema.MemoryEntry.
	Schema *schema.Schema
	// SkipQuarantine resets corrupted content without keeping a copy.
	SkipQuarantine bool
	Clock          func() time.Time
}

// WriteOptions controls a single write.
type WriteOptions struct {
	SkipValidation bool
	// AllowOverwrite permits an id that already exists. The new entry is
	// appended; earlier entries with the same id are kept.
	AllowOverwrite bool
}

// ReadOptions controls a read.
type ReadOptions struct {
	// Strict returns ErrCorruption instead of an empty result when the
	// content had to be recovered.
	Strict bool
}

// Store is a file-backed entry log. It holds no cached copy of the entries;
// every call goes back to disk.
type Store struct {
	path       string
	lock       *lock.Lock
	catalog    *catalog.Catalog
	log        logging.Sink
	metrics    *metrics.Registry
	audit      audit.Appender
	validator  *schema.Validator
	quarantine bool
	now        func() time.Time
}

// Open prepares a store at opts.Path. The file itself is created lazily.
func Open(opts Options) (*Store, error) {
	if opts.Path == "" {
		return nil, errclass.ErrIO.WithMessage("store path is required")
	}
	l, err := lock.For(opts.Path)
	if err != nil {
		return nil, errclass.ErrIO.Wrap(err, "open store")
	}

	s := &Store{
		path:       l.Key(),
		lock:       l,
		catalog:    opts.Catalog,
		log:        opts.Logger,
		metrics:    opts.Metrics,
		audit:      opts.Audit,
		quarantine: !opts.SkipQuarantine,
		now:        opts.Clock,
	}
	if s.catalog == nil {
		s.catalog = catalog.New(filepath.Join(filepath.Dir(s.path), "backups"))
		if opts.Clock != nil {
			s.catalog.SetClock(opts.Clock)
		}
	}
	if s.log == nil {
		s.log = logging.Discard()
	}
	if s.audit == nil {
		s.audit = audit.Nop{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	sch := opts.Schema
	if sch == nil {
		sch = schema.MemoryEntry()
	}
	s.validator = schema.New(sch)
	return s, nil
}

// Path returns the absolute path of the store file.
func (s *Store) Path() string {
	return s.path
}

// Catalog returns the backups catalog the store quarantines into.
func (s *Store) Catalog() *catalog.Catalog {
	return s.catalog
}

// Metrics returns the registry the store records into; it may be nil.
func (s *Store) Metrics() *metrics.Registry {
	return s.metrics
}

// Logger returns the sink the store logs to.
func (s *Store) Logger() logging.Sink {
	return s.log
}

// Audit returns the audit appender.
func (s *Store) Audit() audit.Appender {
	return s.audit
}

// Validate checks entry against the schema applied to validated writes.
func (s *Store) Validate(entry model.Entry) schema.Result {
	return s.validator.Validate(map[string]any(entry))
}

// Now returns the store clock's current time.
func (s *Store) Now() time.Time {
	return s.now()
}

// Write appends entry to the store and returns the stored form, which
// carries a timestamp even when the caller omitted one.
func (s *Store) Write(ctx context.Context, entry model.Entry, opts WriteOptions) (model.Entry, error) {
	start := time.Now()
	stored, err := s.write(ctx, entry, opts)
	s.metrics.Observe(metrics.OpWrite, err, time.Since(start))
	return stored, err
}

func (s *Store) write(ctx context.Context, entry model.Entry, opts WriteOptions) (model.Entry, error) {
	if entry == nil {
		err := errclass.ErrValidation.WithMessage("entry must be an object")
		s.log.Log(logging.LevelError, LogSource, "Memory entry validation failed", nil, err)
		return nil, err
	}

	// Validation, the duplicate check and the returned entry all work on the
	// same decoded JSON form that Read returns.
	norm, err := jsonutil.Normalize(map[string]any(entry))
	if err != nil {
		verr := errclass.ErrValidation.Wrap(err, "entry is not JSON-encodable")
		s.log.Log(logging.LevelError, LogSource, "Memory entry validation failed", nil, verr)
		return nil, verr
	}
	stored := model.Entry(norm.(map[string]any))
	if ts, ok := stored[model.FieldTimestamp]; !ok || ts == nil || ts == "" {
		stored[model.FieldTimestamp] = model.FormatTimestamp(s.now())
	}

	if !opts.SkipValidation {
		if res := s.validator.Validate(map[string]any(stored)); !res.OK {
			err := errclass.ErrValidation.WithMessagef("invalid memory entry: %s", strings.Join(res.Errors, ", "))
			s.log.Log(logging.LevelError, LogSource, "Memory entry validation failed",
				map[string]any{"errors": res.Errors}, err)
			return nil, err
		}
	}

	err = s.Update(ctx, func(tx *Txn) error {
		entries, err := tx.Entries()
		if errors.Is(err, errclass.ErrCorruption) {
			if _, rerr := tx.Recover(err); rerr != nil {
				return rerr
			}
			entries, err = nil, nil
		}
		if err != nil {
			return err
		}

		if id, ok := stored[model.FieldID]; ok && id != nil && id != "" && !opts.AllowOverwrite {
			for _, e := range entries {
				if existing, ok := e[model.FieldID]; ok && jsonutil.Equal(existing, id) {
					dup := errclass.ErrDuplicateID.WithMessagef("memory entry with id %v already exists", id)
					s.log.Log(logging.LevelError, LogSource, "Duplicate memory entry ID",
						map[string]any{"id": id}, dup)
					return dup
				}
			}
		}

		return tx.Replace(append(entries, stored))
	})
	if err != nil {
		if !errors.Is(err, errclass.ErrDuplicateID) {
			s.log.Log(logging.LevelError, LogSource, "Failed to write memory entry", nil, err)
		}
		return nil, err
	}

	id := stored.ID()
	if id == "" {
		id = "unnamed"
	}
	s.log.Log(logging.LevelInfo, LogSource, "Memory entry written",
		map[string]any{"id": id, "timestamp": stored[model.FieldTimestamp]}, nil)
	return stored, nil
}

// Read returns every entry in insertion order. An absent store is created
// empty. Corrupted content is quarantined and reset; the call then returns
// no entries, or ErrCorruption when opts.Strict is set.
func (s *Store) Read(ctx context.Context, opts ReadOptions) ([]model.Entry, error) {
	start := time.Now()
	entries, err := s.read(ctx, opts)
	s.metrics.Observe(metrics.OpRead, err, time.Since(start))
	return entries, err
}

func (s *Store) read(ctx context.Context, opts ReadOptions) ([]model.Entry, error) {
	data, err := os.ReadFile(s.path)
	switch {
	case err == nil:
		if entries, perr := Decode(data); perr == nil {
			return entries, nil
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		ioErr := errclass.ErrIO.Wrap(err, "read store")
		s.log.Log(logging.LevelError, LogSource, "Failed to read memory state file", nil, ioErr)
		return nil, ioErr
	}

	// Absent or corrupted: re-check under the lock, since another caller may
	// have repaired the file in the meantime.
	var entries []model.Entry
	var corruption error
	err = s.Update(ctx, func(tx *Txn) error {
		if !tx.Exists() {
			s.log.Log(logging.LevelWarn, LogSource,
				"Memory state file does not exist, initializing with empty array", nil, nil)
			return tx.ReplaceRaw(emptyStore)
		}
		var err error
		entries, err = tx.Entries()
		if errors.Is(err, errclass.ErrCorruption) {
			corruption = err
			_, err = tx.Recover(err)
		}
		return err
	})
	if err != nil {
		s.log.Log(logging.LevelError, LogSource, "Failed to read memory state", nil, err)
		return nil, err
	}
	if corruption != nil {
		if opts.Strict {
			return nil, corruption
		}
		return []model.Entry{}, nil
	}
	if entries == nil {
		entries = []model.Entry{}
	}
	return entries, nil
}

// Entries satisfies the recall engine's source contract with a safe read.
func (s *Store) Entries(ctx context.Context) ([]model.Entry, error) {
	return s.Read(ctx, ReadOptions{})
}
