package metrics_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adamwoolhether/virtualnode/business/sys/metrics"
	"github.com/adamwoolhether/virtualnode/foundation/blockchain/state"
)

type source struct {
	status state.ReplayStatus
}

func (s source) ReplayStatus() state.ReplayStatus { return s.status }
func (s source) Status() state.Status             { return state.StatusReady }

func TestRegisterReplay(t *testing.T) {
	m := metrics.New()
	m.RegisterReplay(source{status: state.ReplayStatus{Processed: 42, Corrupt: 2}})

	families, err := m.Registry().Gather()
	require.NoError(t, err)

	values := make(map[string]float64)
	for _, mf := range families {
		if len(mf.GetMetric()) == 1 && mf.GetMetric()[0].GetGauge() != nil {
			values[mf.GetName()] = mf.GetMetric()[0].GetGauge().GetValue()
		}
	}

	assert.Equal(t, float64(42), values["virtualnode_replay_processed_blocks"])
	assert.Equal(t, float64(2), values["virtualnode_replay_corrupt_blocks"])
	assert.Equal(t, float64(2), values["virtualnode_state_status"])
}

func TestCounters(t *testing.T) {
	m := metrics.New()

	m.ObserveRequest("GET", 200, time.Millisecond, false)
	m.ObserveRequest("POST", 500, time.Millisecond, true)
	m.ObserveCall("get_block", 0)

	ctx := metrics.Set(context.Background(), m)
	metrics.AddPanics(ctx)
	metrics.AddPanics(context.Background())

	count, err := testutil.GatherAndCount(m.Registry(),
		"virtualnode_http_requests_total",
		"virtualnode_http_errors_total",
		"virtualnode_panics_total",
		"virtualnode_rpc_calls_total",
	)
	require.NoError(t, err)
	assert.Equal(t, 5, count)
}
