// Package doctor inspects a store, its backups and its audit trail without
// modifying them.
package doctor

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/asecn/memcore/internal/audit"
	"github.com/asecn/memcore/internal/store"
	"github.com/asecn/memcore/pkg/fsutil"
	"github.com/asecn/memcore/pkg/jsonutil"
	"github.com/asecn/memcore/pkg/model"
)

// Severity levels, from least to most serious.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Finding represents a detected issue.
type Finding struct {
	Category    string `json:"category"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
	Path        string `json:"path,omitempty"`
}

// Result contains doctor check results.
type Result struct {
	Healthy  bool      `json:"healthy"`
	Entries  int       `json:"entries"`
	Backups  int       `json:"backups"`
	Findings []Finding `json:"findings"`
}

func (r *Result) add(f Finding) {
	r.Findings = append(r.Findings, f)
	if f.Severity == SeverityError || f.Severity == SeverityCritical {
		r.Healthy = false
	}
}

// Doctor performs store health checks.
type Doctor struct {
	store    *store.Store
	auditLog *audit.FileAppender
}

// NewDoctor creates a new doctor. auditLog may be nil.
func NewDoctor(s *store.Store, auditLog *audit.FileAppender) *Doctor {
	return &Doctor{store: s, auditLog: auditLog}
}

// Check runs all diagnostic checks. Strict additionally validates every
// entry against the write schema.
func (d *Doctor) Check(strict bool) (*Result, error) {
	result := &Result{Healthy: true, Findings: []Finding{}}

	entries := d.checkStore(result)
	d.checkEntries(result, entries, strict)
	d.checkBackups(result)
	d.checkAuditChain(result)
	d.checkOrphanTmp(result)

	return result, nil
}

func (d *Doctor) checkStore(result *Result) []model.Entry {
	path := d.store.Path()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		result.add(Finding{
			Category:    "store",
			Description: "store file does not exist yet; it is created on first access",
			Severity:    SeverityInfo,
			Path:        path,
		})
		return nil
	}
	if err != nil {
		result.add(Finding{
			Category:    "store",
			Description: fmt.Sprintf("store file unreadable: %v", err),
			Severity:    SeverityCritical,
			Path:        path,
		})
		return nil
	}

	entries, err := store.Decode(data)
	if err != nil {
		result.add(Finding{
			Category:    "store",
			Description: fmt.Sprintf("store content is corrupted (%v); the next access quarantines and resets it", err),
			Severity:    SeverityCritical,
			Path:        path,
		})
		return nil
	}
	result.Entries = len(entries)
	return entries
}

func (d *Doctor) checkEntries(result *Result, entries []model.Entry, strict bool) {
	ids := make(map[string]int)
	var order []string
	for i, e := range entries {
		if e.Timestamp() == "" {
			result.add(Finding{
				Category:    "entry",
				Description: fmt.Sprintf("entry %d has no timestamp", i),
				Severity:    SeverityWarning,
			})
		}
		if raw, ok := e[model.FieldID]; ok && raw != nil && raw != "" {
			key, err := jsonutil.CanonicalMarshal(raw)
			if err == nil {
				if ids[string(key)] == 0 {
					order = append(order, string(key))
				}
				ids[string(key)]++
			}
		}
		if strict {
			if res := d.store.Validate(e); !res.OK {
				result.add(Finding{
					Category:    "schema",
					Description: fmt.Sprintf("entry %d: %s", i, strings.Join(res.Errors, ", ")),
					Severity:    SeverityWarning,
				})
			}
		}
	}
	for _, id := range order {
		if n := ids[id]; n > 1 {
			result.add(Finding{
				Category:    "entry",
				Description: fmt.Sprintf("id %s appears %d times", id, n),
				Severity:    SeverityWarning,
			})
		}
	}
}

func (d *Doctor) checkBackups(result *Result) {
	backups, err := d.store.Catalog().List()
	if err != nil {
		result.add(Finding{
			Category:    "backup",
			Description: fmt.Sprintf("cannot list backups: %v", err),
			Severity:    SeverityError,
		})
		return
	}
	result.Backups = len(backups)

	for _, b := range backups {
		data, err := os.ReadFile(b.Path)
		if err != nil {
			result.add(Finding{
				Category:    "backup",
				Description: fmt.Sprintf("backup %s unreadable: %v", b.Name, err),
				Severity:    SeverityWarning,
				Path:        b.Path,
			})
			continue
		}
		if _, err := store.Decode(data); err != nil {
			severity := SeverityWarning
			if b.Kind == model.BackupCorrupted {
				// Quarantined content is expected to be malformed.
				severity = SeverityInfo
			}
			result.add(Finding{
				Category:    "backup",
				Description: fmt.Sprintf("backup %s cannot be restored: %v", b.Name, err),
				Severity:    severity,
				Path:        b.Path,
			})
		}
	}
}

func (d *Doctor) checkAuditChain(result *Result) {
	if d.auditLog == nil {
		return
	}
	broken, err := d.auditLog.VerifyChain()
	if err != nil {
		result.add(Finding{
			Category:    "audit",
			Description: fmt.Sprintf("cannot read audit trail: %v", err),
			Severity:    SeverityError,
			Path:        d.auditLog.Path(),
		})
		return
	}
	if broken >= 0 {
		result.add(Finding{
			Category:    "audit",
			Description: fmt.Sprintf("audit hash chain broken at record %d", broken),
			Severity:    SeverityCritical,
			Path:        d.auditLog.Path(),
		})
	}
}

func (d *Doctor) checkOrphanTmp(result *Result) {
	dirs := []string{filepath.Dir(d.store.Path()), d.store.Catalog().Dir()}
	seen := make(map[string]bool)
	var orphans []string
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			path := filepath.Join(dir, e.Name())
			if strings.HasPrefix(e.Name(), fsutil.TempPrefix) && !seen[path] {
				seen[path] = true
				orphans = append(orphans, path)
			}
		}
	}
	sort.Strings(orphans)
	for _, path := range orphans {
		result.add(Finding{
			Category:    "tmp",
			Description: fmt.Sprintf("orphan temp file: %s", filepath.Base(path)),
			Severity:    SeverityInfo,
			Path:        path,
		})
	}
}
