package doctor_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asecn/memcore/internal/audit"
	"github.com/asecn/memcore/internal/doctor"
	"github.com/asecn/memcore/internal/store"
	"github.com/asecn/memcore/pkg/model"
)

type env struct {
	dir   string
	store *store.Store
	audit *audit.FileAppender
}

func setup(t *testing.T) *env {
	t.Helper()
	dir := t.TempDir()
	appender := audit.NewFileAppender(filepath.Join(dir, "audit.jsonl"))
	s, err := store.Open(store.Options{Path: filepath.Join(dir, store.DefaultFile), Audit: appender})
	require.NoError(t, err)
	return &env{dir: dir, store: s, audit: appender}
}

func (e *env) check(t *testing.T, strict bool) *doctor.Result {
	t.Helper()
	result, err := doctor.NewDoctor(e.store, e.audit).Check(strict)
	require.NoError(t, err)
	return result
}

func categories(r *doctor.Result) []string {
	var out []string
	for _, f := range r.Findings {
		out = append(out, f.Category+"/"+f.Severity)
	}
	return out
}

func TestDoctor_Check_Healthy(t *testing.T) {
	e := setup(t)
	_, err := e.store.Write(context.Background(), model.Entry{"id": "a"}, store.WriteOptions{})
	require.NoError(t, err)

	result := e.check(t, true)
	assert.True(t, result.Healthy)
	assert.Empty(t, result.Findings)
	assert.Equal(t, 1, result.Entries)
}

func TestDoctor_Check_Uninitialized(t *testing.T) {
	result := setup(t).check(t, false)
	assert.True(t, result.Healthy)
	assert.Equal(t, []string{"store/info"}, categories(result))
}

func TestDoctor_Check_CorruptedStore(t *testing.T) {
	e := setup(t)
	path := filepath.Join(e.dir, store.DefaultFile)
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0644))

	result := e.check(t, false)
	assert.False(t, result.Healthy)
	assert.Equal(t, []string{"store/critical"}, categories(result))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{broken", string(data), "doctor never repairs")
}

func TestDoctor_Check_ForeignEntries(t *testing.T) {
	e := setup(t)
	content := `[
  {"id": "x", "timestamp": "2024-01-01T00:00:00Z"},
  {"id": "x", "timestamp": "2024-01-02T00:00:00Z"},
  {"source": 7}
]`
	require.NoError(t, os.WriteFile(filepath.Join(e.dir, store.DefaultFile), []byte(content), 0644))

	result := e.check(t, false)
	assert.True(t, result.Healthy, "entry findings are warnings")
	assert.Equal(t, []string{"entry/warning", "entry/warning"}, categories(result))
	assert.Contains(t, result.Findings[0].Description, "entry 2 has no timestamp")
	assert.Contains(t, result.Findings[1].Description, `id "x" appears 2 times`)

	strict := e.check(t, true)
	var schemaFindings int
	for _, f := range strict.Findings {
		if f.Category == "schema" {
			schemaFindings++
			assert.True(t, strings.HasPrefix(f.Description, "entry 2:"))
		}
	}
	assert.Equal(t, 1, schemaFindings)
}

func TestDoctor_Check_Backups(t *testing.T) {
	e := setup(t)
	c := e.store.Catalog()
	_, err := c.Save("good", []byte(`[]`))
	require.NoError(t, err)
	_, err = c.Save("bad", []byte(`{}`))
	require.NoError(t, err)
	_, err = c.Save(model.PrefixCorrupted+"1", []byte(`garbage`))
	require.NoError(t, err)

	result := e.check(t, false)
	assert.Equal(t, 3, result.Backups)
	assert.ElementsMatch(t, []string{"store/info", "backup/warning", "backup/info"}, categories(result))
}

func TestDoctor_Check_AuditTampering(t *testing.T) {
	e := setup(t)
	require.NoError(t, e.audit.Append(model.EventTypePurge, "s", "a", nil))
	require.NoError(t, e.audit.Append(model.EventTypePurge, "s", "b", nil))

	data, err := os.ReadFile(e.audit.Path())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(e.audit.Path(), []byte(strings.Replace(string(data), `"backup_name":"a"`, `"backup_name":"q"`, 1)), 0644))

	result := e.check(t, false)
	assert.False(t, result.Healthy)
	assert.Contains(t, categories(result), "audit/critical")
}

func TestDoctor_Check_OrphanTmp(t *testing.T) {
	e := setup(t)
	require.NoError(t, os.WriteFile(filepath.Join(e.dir, ".memcore-tmp-123"), []byte("x"), 0644))

	result := e.check(t, false)
	assert.True(t, result.Healthy)
	assert.Contains(t, categories(result), "tmp/info")
}
