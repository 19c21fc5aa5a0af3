package loom

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_Gather(t *testing.T) {
	g, err := New(2, 32)
	require.NoError(t, err)
	defer g.Close()

	const n = 20
	var executed atomic.Int64
	for i := 0; i < n; i++ {
		require.True(t, g.Post(func() { executed.Add(1) }))
	}
	waitFor(t, 5*time.Second, func() bool { return executed.Load() == n })

	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(NewCollector(g)))

	families, err := reg.Gather()
	require.NoError(t, err)

	byName := map[string]bool{}
	for _, mf := range families {
		byName[mf.GetName()] = true
	}
	for _, name := range []string{
		"loom_queue_depth",
		"loom_queue_capacity",
		"loom_tasks_executed_total",
		"loom_tasks_failed_total",
		"loom_timers_pending",
	} {
		assert.True(t, byName[name], "missing metric family %s", name)
	}

	for _, mf := range families {
		switch mf.GetName() {
		case "loom_queue_capacity":
			require.Len(t, mf.GetMetric(), 1)
			assert.Equal(t, float64(32), mf.GetMetric()[0].GetGauge().GetValue())
		case "loom_tasks_executed_total":
			total := 0.0
			for _, m := range mf.GetMetric() {
				total += m.GetCounter().GetValue()
			}
			assert.Equal(t, float64(n), total)
		}
	}
}

func TestCollector_DistinctGroupsCoexist(t *testing.T) {
	a, err := New(1, 16)
	require.NoError(t, err)
	defer a.Close()

	b, err := New(1, 16)
	require.NoError(t, err)
	defer b.Close()

	// Same metric names, different group label values: one registry must
	// accept both collectors.
	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(NewCollector(a)))
	require.NoError(t, reg.Register(NewCollector(b)))

	_, err = reg.Gather()
	require.NoError(t, err)
}
