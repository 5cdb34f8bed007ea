package service

import (
	"context"
	"time"

	cache "github.com/Code-Hex/go-generics-cache"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/Gthulhu/schedcore/domain"
	"github.com/Gthulhu/schedcore/pkg/util"
)

// Snapshots stop the machine briefly, so reads through the API are cached
// for a short window instead of hitting the scheduler on every request.
const (
	snapshotKey = "snapshot"
	snapshotTTL = 100 * time.Millisecond
)

type Params struct {
	fx.In
	Introspector domain.Introspector
}

// NewService creates the read-side service and registers the scheduler
// metric collector.
func NewService(params Params) (domain.Service, error) {
	svc := &Service{
		intro:     params.Introspector,
		snapCache: cache.New[string, *domain.Snapshot](),
	}

	svc.metricCollector = NewMetricCollector(params.Introspector, util.GetMachineID())
	if err := prometheus.Register(svc.metricCollector); err != nil {
		return nil, errors.Wrap(err, "register metric collector")
	}
	return svc, nil
}

type Service struct {
	intro           domain.Introspector
	snapCache       *cache.Cache[string, *domain.Snapshot]
	metricCollector *MetricCollector
}

func (svc *Service) snapshot() *domain.Snapshot {
	if snap, ok := svc.snapCache.Get(snapshotKey); ok {
		return snap
	}
	snap := svc.intro.Snapshot()
	svc.snapCache.Set(snapshotKey, snap, cache.WithExpiration(snapshotTTL))
	return snap
}

// ListThreads returns every live thread, ordered by ID.
func (svc *Service) ListThreads(ctx context.Context) ([]domain.ThreadInfo, error) {
	return svc.snapshot().Threads, nil
}

// GetThread returns a single thread by ID.
func (svc *Service) GetThread(ctx context.Context, id domain.ThreadID) (*domain.ThreadInfo, error) {
	for _, t := range svc.snapshot().Threads {
		if t.ID == id {
			return &t, nil
		}
	}
	return nil, errors.Wrapf(domain.ErrThreadNotFound, "thread %d", id)
}

// GetStats returns the scheduler counters.
func (svc *Service) GetStats(ctx context.Context) (*domain.SchedStats, error) {
	stats := svc.snapshot().Stats
	return &stats, nil
}

// GetLoadAvg returns 100 times the system load average.
func (svc *Service) GetLoadAvg(ctx context.Context) (int, error) {
	return svc.snapshot().Stats.LoadAvgTimes100, nil
}
