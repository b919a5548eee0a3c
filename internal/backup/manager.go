// Package backup creates, lists and restores point-in-time copies of a
// store, and purges the store behind a safety backup.
package backup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/asecn/memcore/internal/catalog"
	"github.com/asecn/memcore/internal/store"
	"github.com/asecn/memcore/pkg/errclass"
	"github.com/asecn/memcore/pkg/logging"
	"github.com/asecn/memcore/pkg/metrics"
	"github.com/asecn/memcore/pkg/model"
)

// DefaultPreserveTags are kept by a soft purge when the caller names none.
var DefaultPreserveTags = []string{"system", "critical"}

// PurgeOptions controls Purge.
type PurgeOptions struct {
	// NoBackup skips the safety backup taken before content is discarded.
	NoBackup bool
	// BackupLabel names the safety backup. Defaults to pre-purge-<instant>.
	BackupLabel string
	// SoftPurge keeps entries tagged with any of PreserveTags.
	SoftPurge bool
	// PreserveTags defaults to DefaultPreserveTags when nil. An empty,
	// non-nil slice preserves nothing, so a soft purge clears everything.
	PreserveTags []string
}

// RestoreOptions controls Restore.
type RestoreOptions struct {
	// NoBackup skips the pre-restore copy of the live store.
	NoBackup bool
}

// Manager runs backup operations against one store.
type Manager struct {
	store   *store.Store
	catalog *catalog.Catalog
	log     logging.Sink
	metrics *metrics.Registry
}

// NewManager returns a manager for s, using the store's catalog.
func NewManager(s *store.Store) *Manager {
	return &Manager{
		store:   s,
		catalog: s.Catalog(),
		log:     s.Logger(),
		metrics: s.Metrics(),
	}
}

// Create snapshots the current store content verbatim. An empty label
// generates backup-<instant>. An absent store is backed up as an empty one.
func (m *Manager) Create(ctx context.Context, label string) (*model.BackupMetadata, error) {
	start := time.Now()
	var meta *model.BackupMetadata
	err := m.store.Update(ctx, func(tx *store.Txn) error {
		data := tx.Raw()
		if !tx.Exists() {
			data = []byte("[]")
		}
		var err error
		meta, err = m.save(label, model.PrefixGenerated, data)
		return err
	})
	m.metrics.Observe(metrics.OpBackup, err, time.Since(start))
	if err != nil {
		m.log.Log(logging.LevelError, store.LogSource, "Failed to create memory backup",
			map[string]any{"label": label}, err)
		return nil, err
	}
	m.log.Log(logging.LevelInfo, store.LogSource, fmt.Sprintf("Created memory backup at %s", meta.Path),
		map[string]any{"entriesCount": meta.EntryCount}, nil)
	m.store.Audit().Append(model.EventTypeBackupCreate, m.store.Path(), meta.Name,
		map[string]any{"entriesCount": meta.EntryCount, "size": meta.Size})
	return meta, nil
}

// save writes a backup under label, or under a generated name when label is
// empty. Caller-supplied labels never get a disambiguating suffix.
func (m *Manager) save(label, prefix string, data []byte) (*model.BackupMetadata, error) {
	var meta *model.BackupMetadata
	var err error
	if label == "" {
		meta, err = m.catalog.SaveGenerated(prefix, data)
	} else {
		meta, err = m.catalog.Save(label, data)
	}
	if err != nil {
		return nil, err
	}
	m.metrics.RecordBackup(meta.Kind)
	return meta, nil
}

// List returns every backup, newest first.
func (m *Manager) List(ctx context.Context) ([]model.BackupMetadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	backups, err := m.catalog.List()
	if err != nil {
		m.log.Log(logging.LevelError, store.LogSource, "Failed to list backups", nil, err)
		return nil, err
	}
	return backups, nil
}

// Purge clears the store, or with SoftPurge keeps only entries carrying a
// preserved tag. The result is never nil; on failure it carries the message
// and the classified error is returned as well.
func (m *Manager) Purge(ctx context.Context, opts PurgeOptions) (*model.PurgeResult, error) {
	start := time.Now()
	result, err := m.purge(ctx, opts)
	m.metrics.Observe(metrics.OpPurge, err, time.Since(start))
	if err != nil {
		m.log.Log(logging.LevelError, store.LogSource, "Memory purge failed",
			map[string]any{"softPurge": opts.SoftPurge, "backupLabel": opts.BackupLabel}, err)
		return &model.PurgeResult{
			Success: false,
			Message: fmt.Sprintf("Memory purge failed: %v", err),
			Error:   err.Error(),
		}, err
	}
	return result, nil
}

func (m *Manager) purge(ctx context.Context, opts PurgeOptions) (*model.PurgeResult, error) {
	preserve := opts.PreserveTags
	if preserve == nil {
		preserve = DefaultPreserveTags
	}

	var result *model.PurgeResult
	err := m.store.Update(ctx, func(tx *store.Txn) error {
		if !tx.Exists() {
			m.log.Log(logging.LevelWarn, store.LogSource,
				"Memory state file does not exist, initializing with empty array", nil, nil)
			if err := tx.Replace(nil); err != nil {
				return err
			}
			result = &model.PurgeResult{Success: true, Message: "Initialized with empty memory state"}
			return nil
		}

		entries, err := tx.Entries()
		if errors.Is(err, errclass.ErrCorruption) {
			var meta *model.BackupMetadata
			if opts.NoBackup {
				err = tx.RecoverWithoutQuarantine(err)
			} else {
				meta, err = tx.Recover(err)
			}
			if err != nil {
				return err
			}
			result = &model.PurgeResult{
				Success:      true,
				Message:      "Memory was corrupted and has been reinitialized",
				WasCorrupted: true,
				Backup:       meta,
			}
			m.auditPurge(result)
			return nil
		}
		if err != nil {
			return err
		}

		var meta *model.BackupMetadata
		if !opts.NoBackup {
			meta, err = m.save(opts.BackupLabel, model.PrefixPrePurge, tx.Raw())
			if err != nil {
				return err
			}
			m.log.Log(logging.LevelInfo, store.LogSource, fmt.Sprintf("Created memory backup at %s", meta.Path),
				map[string]any{"entriesCount": len(entries)}, nil)
		}

		if opts.SoftPurge && len(preserve) > 0 {
			kept := make([]model.Entry, 0, len(entries))
			for _, e := range entries {
				if e.HasAnyTag(preserve) {
					kept = append(kept, e)
				}
			}
			if err := tx.Replace(kept); err != nil {
				return err
			}
			preserved := len(kept)
			m.log.Log(logging.LevelInfo, store.LogSource, "Soft purge completed", map[string]any{
				"originalCount":  len(entries),
				"preservedCount": preserved,
				"removedCount":   len(entries) - preserved,
			}, nil)
			result = &model.PurgeResult{
				Success:         true,
				Message:         "Memory soft purge completed",
				EntriesAffected: len(entries) - preserved,
				PreservedCount:  &preserved,
				Backup:          meta,
			}
			m.auditPurge(result)
			return nil
		}

		if err := tx.Replace(nil); err != nil {
			return err
		}
		m.log.Log(logging.LevelInfo, store.LogSource, "Memory fully purged",
			map[string]any{"entriesCount": len(entries)}, nil)
		result = &model.PurgeResult{
			Success:         true,
			Message:         "Memory completely purged",
			EntriesAffected: len(entries),
			Backup:          meta,
		}
		m.auditPurge(result)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (m *Manager) auditPurge(r *model.PurgeResult) {
	details := map[string]any{
		"entriesAffected": r.EntriesAffected,
		"wasCorrupted":    r.WasCorrupted,
	}
	if r.PreservedCount != nil {
		details["preservedCount"] = *r.PreservedCount
	}
	var name string
	if r.Backup != nil {
		name = r.Backup.Name
	}
	m.store.Audit().Append(model.EventTypePurge, m.store.Path(), name, details)
}

// Restore replaces the live store with the named backup. The backup must be
// a JSON array of objects; otherwise ErrParse is returned and the live store
// is left untouched. The result is never nil.
func (m *Manager) Restore(ctx context.Context, name string, opts RestoreOptions) (*model.RestoreResult, error) {
	start := time.Now()
	result, err := m.restore(ctx, name, opts)
	m.metrics.Observe(metrics.OpRestore, err, time.Since(start))
	if err != nil {
		m.log.Log(logging.LevelError, store.LogSource, "Failed to restore from backup",
			map[string]any{"backup": name}, err)
		return &model.RestoreResult{
			Success: false,
			Message: restoreFailureMessage(name, err),
			Error:   err.Error(),
		}, err
	}
	return result, nil
}

func (m *Manager) restore(ctx context.Context, name string, opts RestoreOptions) (*model.RestoreResult, error) {
	data, source, err := m.catalog.Load(name)
	if err != nil {
		return nil, err
	}
	entries, err := store.Decode(data)
	if err != nil {
		return nil, errclass.ErrParse.Wrap(err, "invalid backup content")
	}

	var result *model.RestoreResult
	err = m.store.Update(ctx, func(tx *store.Txn) error {
		var safety *model.BackupMetadata
		if !opts.NoBackup && tx.Exists() {
			var err error
			safety, err = m.save("", model.PrefixPreRestore, tx.Raw())
			if err != nil {
				return err
			}
			m.log.Log(logging.LevelInfo, store.LogSource,
				fmt.Sprintf("Created backup of current memory state at %s", safety.Path), nil, nil)
		}

		if err := tx.ReplaceRaw(data); err != nil {
			return err
		}

		m.log.Log(logging.LevelInfo, store.LogSource, fmt.Sprintf("Restored memory from backup %s", source.Name),
			map[string]any{"entriesCount": len(entries)}, nil)
		details := map[string]any{"entriesCount": len(entries)}
		if safety != nil {
			details["safetyBackup"] = safety.Name
		}
		m.store.Audit().Append(model.EventTypeRestore, m.store.Path(), source.Name, details)

		result = &model.RestoreResult{
			Success:      true,
			Message:      fmt.Sprintf("Memory restored from backup %s", source.Name),
			EntriesCount: len(entries),
			Backup:       safety,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func restoreFailureMessage(name string, err error) string {
	switch {
	case errors.Is(err, errclass.ErrNotFound):
		return fmt.Sprintf("Backup file %s not found", name)
	case errors.Is(err, errclass.ErrParse):
		return fmt.Sprintf("Failed to parse backup file: %v", err)
	}
	return fmt.Sprintf("Restore failed: %v", err)
}
