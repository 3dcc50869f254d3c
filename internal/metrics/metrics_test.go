package metrics_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tiliavir/ttr/internal/coordinator"
	"github.com/Tiliavir/ttr/internal/metrics"
	"github.com/Tiliavir/ttr/internal/model"
)

func TestObserveCountsOutcomes(t *testing.T) {
	r := metrics.New()
	r.Observe(coordinator.Event{Kind: coordinator.EventSucceeded, Method: model.MethodPut})
	r.Observe(coordinator.Event{Kind: coordinator.EventSucceeded, Method: model.MethodPut})
	r.Observe(coordinator.Event{Kind: coordinator.EventRolledBack, Method: model.MethodPost, Err: errors.New("x")})
	r.Observe(coordinator.Event{Kind: coordinator.EventUndoExpired, Method: model.MethodDelete})
	r.Observe(coordinator.Event{Kind: coordinator.EventLoaded})

	count, err := testutil.GatherAndCount(r.Registry(), "ttr_mutations_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = testutil.GatherAndCount(r.Registry(), "ttr_rollbacks_total", "ttr_undo_expired_total", "ttr_loads_total")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestWriteTextfile(t *testing.T) {
	r := metrics.New()
	r.Observe(coordinator.Event{Kind: coordinator.EventSucceeded, Method: model.MethodDelete})

	path := filepath.Join(t.TempDir(), "ttr.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `ttr_mutations_total{method="DELETE",outcome="ok"} 1`)
}

func TestWriteTextfileMissingDir(t *testing.T) {
	r := metrics.New()
	err := r.WriteTextfile(filepath.Join(t.TempDir(), "missing", "ttr.prom"))
	assert.Error(t, err)
}
