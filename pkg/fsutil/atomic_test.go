package fsutil_test

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/asecn/memcore/pkg/fsutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAtomicWrite_CreatesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "memory-state.json")
	data := []byte(`[{"timestamp": "2025-01-01T00:00:00Z"}]`)

	err := fsutil.AtomicWrite(path, data, 0644)
	require.NoError(t, err)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, data, content)
}

func TestAtomicWrite_OverwritesExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "memory-state.json")
	os.WriteFile(path, []byte("old"), 0644)

	err := fsutil.AtomicWrite(path, []byte("new"), 0644)
	require.NoError(t, err)

	content, _ := os.ReadFile(path)
	assert.Equal(t, "new", string(content))
}

func TestAtomicWrite_NoTmpLeftOnSuccess(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "memory-state.json")
	fsutil.AtomicWrite(path, []byte("data"), 0644)

	entries, _ := os.ReadDir(dir)
	assert.Len(t, entries, 1, "only the target file should exist")
}

func TestAtomicWrite_MissingDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "memory-state.json")
	err := fsutil.AtomicWrite(path, []byte("data"), 0644)
	assert.Error(t, err)
}

func TestCreateExclusive_CreatesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "backup.json")

	require.NoError(t, fsutil.CreateExclusive(path, []byte("[]"), 0644))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(content))

	entries, _ := os.ReadDir(dir)
	assert.Len(t, entries, 1, "temp file should be removed")
}

func TestCreateExclusive_RefusesExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "backup.json")
	require.NoError(t, os.WriteFile(path, []byte("original"), 0644))

	err := fsutil.CreateExclusive(path, []byte("[]"), 0644)
	require.ErrorIs(t, err, fs.ErrExist)

	content, _ := os.ReadFile(path)
	assert.Equal(t, "original", string(content))
}

func TestFsyncDir(t *testing.T) {
	dir := t.TempDir()
	err := fsutil.FsyncDir(dir)
	assert.NoError(t, err)
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f")

	ok, err := fsutil.Exists(path)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, os.WriteFile(path, nil, 0644))
	ok, err = fsutil.Exists(path)
	require.NoError(t, err)
	assert.True(t, ok)
}
