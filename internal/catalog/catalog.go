// Package catalog manages the backups directory: naming, exclusive creation,
// loading and listing of immutable store copies.
package catalog

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/asecn/memcore/pkg/errclass"
	"github.com/asecn/memcore/pkg/fsutil"
	"github.com/asecn/memcore/pkg/jsonutil"
	"github.com/asecn/memcore/pkg/model"
	"github.com/asecn/memcore/pkg/pathutil"
)

// Ext is the file extension of every backup.
const Ext = ".json"

// Catalog is a directory of backups. Backups are written once and never
// modified or removed.
type Catalog struct {
	dir string
	now func() time.Time
}

// New returns a catalog rooted at dir. The directory is created lazily.
func New(dir string) *Catalog {
	return &Catalog{dir: dir, now: time.Now}
}

// SetClock overrides the clock used for generated names.
func (c *Catalog) SetClock(now func() time.Time) {
	c.now = now
}

// Dir returns the backups directory.
func (c *Catalog) Dir() string {
	return c.dir
}

// Normalize validates a backup name and strips an optional ".json" suffix,
// so "pre-purge-1" and "pre-purge-1.json" refer to the same backup.
func (c *Catalog) Normalize(name string) (string, error) {
	name = strings.TrimSuffix(name, Ext)
	return pathutil.NormalizeName(name)
}

// Path returns the file path of the named backup.
func (c *Catalog) Path(name string) (string, error) {
	n, err := c.Normalize(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(c.dir, n+Ext), nil
}

// GenerateName returns prefix followed by the current instant in Unix
// milliseconds.
func (c *Catalog) GenerateName(prefix string) string {
	return prefix + strconv.FormatInt(c.now().UnixMilli(), 10)
}

// Save writes data as a new backup named name. An existing backup with the
// same name yields ErrConflict.
func (c *Catalog) Save(name string, data []byte) (*model.BackupMetadata, error) {
	path, err := c.Path(name)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return nil, errclass.ErrIO.Wrap(err, "create backups directory")
	}
	if err := fsutil.CreateExclusive(path, data, 0644); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, errclass.ErrConflict.WithMessagef("backup %s already exists", filepath.Base(path))
		}
		return nil, errclass.ErrIO.Wrap(err, "write backup")
	}
	return c.stat(path)
}

// SaveGenerated writes data under a name generated from prefix. When the
// name is taken, typically by another backup in the same millisecond, a
// short random suffix is appended.
func (c *Catalog) SaveGenerated(prefix string, data []byte) (*model.BackupMetadata, error) {
	name := c.GenerateName(prefix)
	meta, err := c.Save(name, data)
	for attempt := 0; attempt < 3 && errors.Is(err, errclass.ErrConflict); attempt++ {
		meta, err = c.Save(name+"-"+uuid.NewString()[:8], data)
	}
	return meta, err
}

// Load returns the raw bytes and metadata of the named backup.
func (c *Catalog) Load(name string) ([]byte, *model.BackupMetadata, error) {
	path, err := c.Path(name)
	if err != nil {
		return nil, nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, errclass.ErrNotFound.WithMessagef("backup %s not found", filepath.Base(path))
		}
		return nil, nil, errclass.ErrIO.Wrap(err, "read backup")
	}
	meta, err := c.stat(path)
	if err != nil {
		return nil, nil, err
	}
	return data, meta, nil
}

// List returns every backup, newest first by modification time. Ties are
// broken by name, descending. A missing directory yields an empty list.
func (c *Catalog) List() ([]model.BackupMetadata, error) {
	dirEntries, err := os.ReadDir(c.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []model.BackupMetadata{}, nil
		}
		return nil, errclass.ErrIO.Wrap(err, "read backups directory")
	}

	backups := make([]model.BackupMetadata, 0, len(dirEntries))
	for _, de := range dirEntries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), Ext) || strings.HasPrefix(de.Name(), ".") {
			continue
		}
		meta, err := c.stat(filepath.Join(c.dir, de.Name()))
		if err != nil {
			// Removed between ReadDir and Stat
			continue
		}
		backups = append(backups, *meta)
	}

	sort.SliceStable(backups, func(i, j int) bool {
		if !backups[i].Created.Equal(backups[j].Created) {
			return backups[i].Created.After(backups[j].Created)
		}
		return backups[i].Name > backups[j].Name
	})
	return backups, nil
}

func (c *Catalog) stat(path string) (*model.BackupMetadata, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errclass.ErrIO.Wrap(err, "stat backup")
	}
	name := strings.TrimSuffix(filepath.Base(path), Ext)
	return &model.BackupMetadata{
		Name:       name,
		Path:       path,
		Kind:       model.KindOf(name),
		Created:    info.ModTime(),
		Size:       info.Size(),
		EntryCount: countEntries(path),
	}, nil
}

// countEntries is best-effort: anything that is not a JSON array counts 0.
func countEntries(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	v, err := jsonutil.Decode(data)
	if err != nil {
		return 0
	}
	arr, ok := v.([]any)
	if !ok {
		return 0
	}
	return len(arr)
}
