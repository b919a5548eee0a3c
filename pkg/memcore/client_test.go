package memcore_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asecn/memcore/pkg/config"
	"github.com/asecn/memcore/pkg/errclass"
	"github.com/asecn/memcore/pkg/logging"
	"github.com/asecn/memcore/pkg/memcore"
	"github.com/asecn/memcore/pkg/model"
)

func openClient(t *testing.T, cfg *config.Config) (*memcore.Client, string) {
	t.Helper()
	dir := t.TempDir()
	var tick int64
	client, err := memcore.Open(memcore.Options{
		Dir:    dir,
		Config: cfg,
		Logger: logging.Discard(),
		Clock: func() time.Time {
			tick++
			return time.UnixMilli(1708300800000 + tick).UTC()
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client, dir
}

func TestOpen_UsesConfiguredLayout(t *testing.T) {
	client, dir := openClient(t, nil)

	assert.Equal(t, filepath.Join(dir, "memory-state.json"), client.StorePath())
	assert.Equal(t, dir, client.Config().Store.Dir)
	assert.NoFileExists(t, client.StorePath())
}

func TestOpen_DirDoesNotMutateConfig(t *testing.T) {
	cfg := config.Default()
	_, _ = openClient(t, cfg)
	assert.Equal(t, ".memcore", cfg.Store.Dir)
}

func TestOpen_RejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Store.LockTimeout = "soon"
	_, err := memcore.Open(memcore.Options{Dir: t.TempDir(), Config: cfg})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lock_timeout")
}

func TestOpen_UnknownSchema(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Schema = filepath.Join(t.TempDir(), "missing.yaml")
	_, err := memcore.Open(memcore.Options{Dir: t.TempDir(), Config: cfg})
	require.Error(t, err)
}

func TestClient_WriteReadRecall(t *testing.T) {
	client, _ := openClient(t, nil)
	ctx := context.Background()

	for _, e := range []model.Entry{
		{"source": "trigger", "data": map[string]any{"msg": "alpha one"}},
		{"source": "action", "data": map[string]any{"msg": "beta"}},
		{"source": "trigger", "data": map[string]any{"msg": "Alpha two"}},
	} {
		_, err := client.Write(ctx, e, memcore.WriteOptions{})
		require.NoError(t, err)
	}

	entries, err := client.Read(ctx, memcore.ReadOptions{Strict: true})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "trigger", entries[0].Source())

	got, err := client.RecallRaw(ctx, "alpha", memcore.ParseOptions{}, memcore.RecallOptions{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	// newest first
	assert.Equal(t, "Alpha two", got[0]["data"].(map[string]any)["msg"])

	got, err = client.Recall(ctx, memcore.Fields{Matchers: map[string]memcore.Matcher{
		"source": memcore.Contains{Text: "action"},
	}}, memcore.RecallOptions{})
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestClient_WriteValidation(t *testing.T) {
	client, _ := openClient(t, nil)

	_, err := client.Write(context.Background(), model.Entry{"source": 7}, memcore.WriteOptions{})
	assert.ErrorIs(t, err, errclass.ErrValidation)

	res := client.Validate(model.Entry{"timestamp": "2024-02-19T00:00:00.000Z", "source": "x"})
	assert.True(t, res.OK)
	res = client.Validate(model.Entry{"source": "x"})
	assert.False(t, res.OK)
}

func TestClient_PurgeUsesConfiguredPreserveTags(t *testing.T) {
	cfg := config.Default()
	cfg.Purge.PreserveTags = []string{"keep"}
	client, _ := openClient(t, cfg)
	ctx := context.Background()

	for _, tags := range [][]any{{"keep"}, {"system"}, nil} {
		e := model.Entry{"source": "test"}
		if tags != nil {
			e["tags"] = tags
		}
		_, err := client.Write(ctx, e, memcore.WriteOptions{})
		require.NoError(t, err)
	}

	res, err := client.Purge(ctx, memcore.PurgeOptions{SoftPurge: true})
	require.NoError(t, err)
	assert.True(t, res.Success)
	require.NotNil(t, res.PreservedCount)
	assert.Equal(t, 1, *res.PreservedCount)
	assert.Equal(t, 2, res.EntriesAffected)
	require.NotNil(t, res.Backup)

	entries, err := client.Read(ctx, memcore.ReadOptions{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, []string{"keep"}, entries[0].Tags())
}

func TestClient_BackupRestore(t *testing.T) {
	client, _ := openClient(t, nil)
	ctx := context.Background()

	_, err := client.Write(ctx, model.Entry{"id": "a"}, memcore.WriteOptions{})
	require.NoError(t, err)
	meta, err := client.CreateBackup(ctx, "checkpoint")
	require.NoError(t, err)
	assert.Equal(t, "checkpoint", meta.Name)

	_, err = client.Write(ctx, model.Entry{"id": "b"}, memcore.WriteOptions{})
	require.NoError(t, err)

	res, err := client.RestoreFromBackup(ctx, "checkpoint", memcore.RestoreOptions{})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 1, res.EntriesCount)
	require.NotNil(t, res.Backup)

	list, err := client.ListBackups(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	entries, err := client.Read(ctx, memcore.ReadOptions{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a", entries[0].ID())
}

func TestClient_RestoreMissing(t *testing.T) {
	client, _ := openClient(t, nil)

	res, err := client.RestoreFromBackup(context.Background(), "nope", memcore.RestoreOptions{})
	assert.ErrorIs(t, err, errclass.ErrNotFound)
	require.NotNil(t, res)
	assert.False(t, res.Success)
}

func TestClient_Doctor(t *testing.T) {
	client, _ := openClient(t, nil)
	ctx := context.Background()

	_, err := client.Write(ctx, model.Entry{"source": "x"}, memcore.WriteOptions{})
	require.NoError(t, err)

	res, err := client.Doctor(false)
	require.NoError(t, err)
	assert.True(t, res.Healthy)
	assert.Equal(t, 1, res.Entries)
}

func TestClient_QuarantineDisabledByConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Store.QuarantineCorrupted = false
	client, dir := openClient(t, cfg)

	require.NoError(t, os.WriteFile(client.StorePath(), []byte("{broken"), 0644))
	entries, err := client.Read(context.Background(), memcore.ReadOptions{})
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.NoDirExists(t, filepath.Join(dir, "backups"))
}

func TestClient_ClosedRejectsOperations(t *testing.T) {
	client, _ := openClient(t, nil)
	require.NoError(t, client.Close())
	require.NoError(t, client.Close())

	_, err := client.Read(context.Background(), memcore.ReadOptions{})
	assert.ErrorIs(t, err, memcore.ErrClosed)
	_, err = client.Write(context.Background(), model.Entry{}, memcore.WriteOptions{})
	assert.ErrorIs(t, err, memcore.ErrClosed)
	_, err = client.Doctor(false)
	assert.ErrorIs(t, err, memcore.ErrClosed)
	res, err := client.Purge(context.Background(), memcore.PurgeOptions{})
	assert.ErrorIs(t, err, memcore.ErrClosed)
	assert.False(t, res.Success)
}

func TestNewLogger_WritesConfiguredFiles(t *testing.T) {
	dir := t.TempDir()
	cfg := config.LoggingConfig{
		Level:     "debug",
		Format:    "json",
		File:      filepath.Join(dir, "logs", "memcore.log"),
		ErrorFile: filepath.Join(dir, "logs", "error.log"),
	}

	logger, closers, err := memcore.NewLogger(cfg)
	require.NoError(t, err)
	require.Len(t, closers, 2)

	logger.Log(logging.LevelInfo, "memory-core", "hello", nil, nil)
	logger.Log(logging.LevelError, "memory-core", "boom", nil, nil)
	for _, c := range closers {
		require.NoError(t, c.Close())
	}

	out, err := os.ReadFile(cfg.File)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	assert.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"message":"hello"`)

	errOut, err := os.ReadFile(cfg.ErrorFile)
	require.NoError(t, err)
	assert.Contains(t, string(errOut), "boom")
	assert.NotContains(t, string(errOut), "hello")
}

func TestNewLogger_BadLevel(t *testing.T) {
	_, _, err := memcore.NewLogger(config.LoggingConfig{Level: "loud"})
	assert.Error(t, err)
}
