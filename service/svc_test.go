package service

import (
	"context"
	"testing"
	"time"

	cache "github.com/Code-Hex/go-generics-cache"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gthulhu/schedcore/domain"
)

type fakeIntrospector struct {
	snap  *domain.Snapshot
	calls int
}

func (f *fakeIntrospector) Snapshot() *domain.Snapshot {
	f.calls++
	return f.snap
}

func testSnapshot() *domain.Snapshot {
	return &domain.Snapshot{
		Stats: domain.SchedStats{
			Ticks:           1234,
			IdleTicks:       200,
			KernelTicks:     1034,
			Dispatches:      87,
			ReadyThreads:    2,
			LoadAvgTimes100: 150,
			MLFQS:           true,
		},
		Threads: []domain.ThreadInfo{
			{ID: 1, Name: "main", Status: "RUNNING", Priority: 31, BasePriority: 31},
			{ID: 2, Name: "idle", Status: "BLOCKED", Priority: 0, BasePriority: 0},
			{ID: 3, Name: "worker", Status: "READY", Priority: 40, BasePriority: 40},
		},
	}
}

// newTestService builds the struct directly so tests do not fight over the
// default Prometheus registry.
func newTestService(intro domain.Introspector) *Service {
	return &Service{
		intro:     intro,
		snapCache: cache.New[string, *domain.Snapshot](),
	}
}

func TestListThreads(t *testing.T) {
	svc := newTestService(&fakeIntrospector{snap: testSnapshot()})

	threads, err := svc.ListThreads(context.Background())
	require.NoError(t, err)
	require.Len(t, threads, 3)
	assert.Equal(t, "worker", threads[2].Name)
}

func TestGetThread(t *testing.T) {
	svc := newTestService(&fakeIntrospector{snap: testSnapshot()})

	ti, err := svc.GetThread(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, "worker", ti.Name)
	assert.Equal(t, 40, ti.Priority)

	_, err = svc.GetThread(context.Background(), 99)
	assert.True(t, errors.Is(err, domain.ErrThreadNotFound))
}

func TestGetStatsAndLoadAvg(t *testing.T) {
	svc := newTestService(&fakeIntrospector{snap: testSnapshot()})

	stats, err := svc.GetStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1234), stats.Ticks)
	assert.True(t, stats.MLFQS)

	load, err := svc.GetLoadAvg(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 150, load)
}

func TestSnapshotIsCached(t *testing.T) {
	intro := &fakeIntrospector{snap: testSnapshot()}
	svc := newTestService(intro)

	ctx := context.Background()
	_, err := svc.ListThreads(ctx)
	require.NoError(t, err)
	_, err = svc.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, intro.calls, "reads within the TTL share one snapshot")

	time.Sleep(snapshotTTL + 20*time.Millisecond)
	_, err = svc.ListThreads(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, intro.calls)
}

func TestMetricCollector(t *testing.T) {
	collector := NewMetricCollector(&fakeIntrospector{snap: testSnapshot()}, "test-machine")
	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(collector))

	families, err := reg.Gather()
	require.NoError(t, err)

	byName := make(map[string]float64)
	for _, mf := range families {
		if len(mf.GetMetric()) == 1 {
			m := mf.GetMetric()[0]
			if m.GetCounter() != nil {
				byName[mf.GetName()] = m.GetCounter().GetValue()
			} else if m.GetGauge() != nil {
				byName[mf.GetName()] = m.GetGauge().GetValue()
			}
		}
	}
	assert.Equal(t, float64(1234), byName["sched_ticks_total"])
	assert.Equal(t, float64(87), byName["sched_dispatches_total"])
	assert.Equal(t, float64(2), byName["sched_ready_threads"])
	assert.InDelta(t, 1.5, byName["sched_load_avg"], 0.0001)
}
