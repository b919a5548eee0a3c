package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/asecn/memcore/pkg/errclass"
	"github.com/asecn/memcore/pkg/fsutil"
	"github.com/asecn/memcore/pkg/logging"
	"github.com/asecn/memcore/pkg/model"
)

// Txn is an exclusive view of the store for the duration of Update. It is
// only valid inside the callback.
type Txn struct {
	s      *Store
	raw    []byte
	exists bool
}

// Update runs fn while holding the store's exclusive lock. The current
// content is loaded before fn is called.
func (s *Store) Update(ctx context.Context, fn func(tx *Txn) error) error {
	release, err := s.lock.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	tx := &Txn{s: s}
	data, err := os.ReadFile(s.path)
	switch {
	case err == nil:
		tx.raw, tx.exists = data, true
	case errors.Is(err, fs.ErrNotExist):
	default:
		ioErr := errclass.ErrIO.Wrap(err, "read store")
		s.log.Log(logging.LevelError, LogSource, "Failed to read memory state file", nil, ioErr)
		return ioErr
	}
	return fn(tx)
}

// Exists reports whether the store file was present.
func (t *Txn) Exists() bool {
	return t.exists
}

// Raw returns the store bytes exactly as they are on disk, or nil when the
// store does not exist.
func (t *Txn) Raw() []byte {
	return t.raw
}

// Entries decodes the current content. Unparseable content yields
// ErrCorruption; an absent store yields no entries.
func (t *Txn) Entries() ([]model.Entry, error) {
	if !t.exists {
		return nil, nil
	}
	entries, err := Decode(t.raw)
	if err != nil {
		return nil, errclass.ErrCorruption.Wrap(err, "memory state is corrupted")
	}
	return entries, nil
}

// Replace persists entries as the full store content.
func (t *Txn) Replace(entries []model.Entry) error {
	data, err := Encode(entries)
	if err != nil {
		return errclass.ErrIO.Wrap(err, "encode store")
	}
	if err := t.write(data); err != nil {
		return err
	}
	t.s.metrics.SetStoreSize(len(entries), int64(len(data)))
	return nil
}

// ReplaceRaw persists data verbatim. Callers are responsible for data being
// a valid store document.
func (t *Txn) ReplaceRaw(data []byte) error {
	if err := t.write(data); err != nil {
		return err
	}
	if entries, err := Decode(data); err == nil {
		t.s.metrics.SetStoreSize(len(entries), int64(len(data)))
	}
	return nil
}

func (t *Txn) write(data []byte) error {
	if err := os.MkdirAll(filepath.Dir(t.s.path), 0755); err != nil {
		return errclass.ErrIO.Wrap(err, "create store directory")
	}
	if err := fsutil.AtomicWrite(t.s.path, data, 0644); err != nil {
		return errclass.ErrIO.Wrap(err, "write store")
	}
	t.raw = append(t.raw[:0:0], data...)
	t.exists = true
	return nil
}

// Quarantine copies the current raw content into the catalog as a
// corrupted-<instant> backup.
func (t *Txn) Quarantine() (*model.BackupMetadata, error) {
	meta, err := t.s.catalog.SaveGenerated(model.PrefixCorrupted, t.raw)
	if err != nil {
		t.s.log.Log(logging.LevelError, LogSource, "Failed to quarantine corrupted memory state", nil, err)
		return nil, err
	}
	t.s.metrics.RecordBackup(model.BackupCorrupted)
	t.s.log.Log(logging.LevelInfo, LogSource,
		fmt.Sprintf("Created backup of corrupted memory state at %s", meta.Path),
		map[string]any{"backup": meta.Name, "size": meta.Size}, nil)
	t.s.audit.Append(model.EventTypeQuarantine, t.s.path, meta.Name, map[string]any{"size": meta.Size})
	return meta, nil
}

// Recover handles corrupted content: it is quarantined unless the store was
// opened with SkipQuarantine, then the live store is reset to empty. The
// content is never reset when the quarantine copy could not be written.
func (t *Txn) Recover(cause error) (*model.BackupMetadata, error) {
	return t.recover(cause, t.s.quarantine)
}

// RecoverWithoutQuarantine resets corrupted content without keeping a copy.
func (t *Txn) RecoverWithoutQuarantine(cause error) error {
	_, err := t.recover(cause, false)
	return err
}

func (t *Txn) recover(cause error, quarantine bool) (*model.BackupMetadata, error) {
	t.s.log.Log(logging.LevelError, LogSource, "Failed to parse memory state file", nil, cause)

	var meta *model.BackupMetadata
	if quarantine {
		var err error
		if meta, err = t.Quarantine(); err != nil {
			return nil, err
		}
	}
	if err := t.ReplaceRaw(emptyStore); err != nil {
		return nil, err
	}
	t.s.metrics.RecordRecovery()
	t.s.log.Log(logging.LevelInfo, LogSource, "Initialized with empty memory state after corruption", nil, nil)
	return meta, nil
}
