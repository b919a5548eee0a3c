package metrics_test

import (
	"bytes"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asecn/memcore/pkg/errclass"
	"github.com/asecn/memcore/pkg/metrics"
	"github.com/asecn/memcore/pkg/model"
)

func TestRegistry_Observe(t *testing.T) {
	r := metrics.NewRegistry()
	r.Observe(metrics.OpWrite, nil, time.Millisecond)
	r.Observe(metrics.OpWrite, nil, time.Millisecond)
	r.Observe(metrics.OpWrite, errclass.ErrDuplicateID.WithMessage("dup"), time.Millisecond)

	expected := `
# HELP memcore_operations_total Store operations by operation and outcome
# TYPE memcore_operations_total counter
memcore_operations_total{operation="write",status="E_DUPLICATE_ID"} 1
memcore_operations_total{operation="write",status="ok"} 2
`
	require.NoError(t, testutil.GatherAndCompare(r.Gatherer(), strings.NewReader(expected), "memcore_operations_total"))
}

func TestRegistry_GaugesAndCounters(t *testing.T) {
	r := metrics.NewRegistry()
	r.SetStoreSize(7, 1024)
	r.RecordBackup(model.BackupPrePurge)
	r.RecordRecovery()
	r.RecordRecall(3)

	expected := `
# HELP memcore_store_entries Entries in the store after the last persisted change
# TYPE memcore_store_entries gauge
memcore_store_entries 7
# HELP memcore_backups_created_total Backups written by kind
# TYPE memcore_backups_created_total counter
memcore_backups_created_total{kind="pre-purge"} 1
# HELP memcore_corruption_recoveries_total Corrupted stores quarantined and reset
# TYPE memcore_corruption_recoveries_total counter
memcore_corruption_recoveries_total 1
`
	require.NoError(t, testutil.GatherAndCompare(r.Gatherer(), strings.NewReader(expected),
		"memcore_store_entries", "memcore_backups_created_total", "memcore_corruption_recoveries_total"))
}

func TestRegistry_NilIsNoop(t *testing.T) {
	var r *metrics.Registry
	assert.NotPanics(t, func() {
		r.Observe(metrics.OpRead, nil, time.Second)
		r.SetStoreSize(1, 1)
		r.RecordBackup(model.BackupManual)
		r.RecordRecovery()
		r.RecordRecall(1)
	})
}

func TestRegistry_WriteTextAndHandler(t *testing.T) {
	r := metrics.NewRegistry()
	r.Observe(metrics.OpPurge, nil, 0)

	var buf bytes.Buffer
	require.NoError(t, r.WriteText(&buf))
	assert.Contains(t, buf.String(), `memcore_operations_total{operation="purge",status="ok"} 1`)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "memcore_operation_duration_seconds")
}

func TestDefault(t *testing.T) {
	metrics.Init()
	assert.True(t, metrics.Enabled())
	assert.NotNil(t, metrics.Default())
}
