package sched

import (
	"github.com/pkg/errors"

	"github.com/Gthulhu/schedcore/domain"
	"github.com/Gthulhu/schedcore/fixedpoint"
)

// priorityRecalcTicks is the cadence of the bulk priority recomputation.
const priorityRecalcTicks = 4

// mlfqsPolicy computes every priority from recent CPU usage, nice values
// and the system load average. Explicit priority requests are ignored.
type mlfqsPolicy struct {
	k *Kernel
}

func (p *mlfqsPolicy) threadCreated(t *domain.TCB) {
	// The inherited recent_cpu and nice determine the initial priority.
	p.updatePriority(t)
	p.updatePriority(p.k.current)
}

func (p *mlfqsPolicy) tick() {
	k := p.k
	if k.current != k.idle {
		k.current.RecentCPU = k.current.RecentCPU.AddInt(1)
	}
	if k.ticks%int64(k.cfg.TickHz) == 0 {
		p.updateLoadAvg()
		p.updateAllRecentCPU()
	}
	if k.ticks%priorityRecalcTicks == 0 {
		p.updateAllPriorities()
		k.readyResort()
	}
}

// setPriority is a no-op: the feedback formulas own every priority.
func (p *mlfqsPolicy) setPriority(*domain.TCB, int) error {
	return nil
}

func (p *mlfqsPolicy) setNice(t *domain.TCB, nice int) error {
	if nice < domain.NiceMin || nice > domain.NiceMax {
		return errors.Wrapf(domain.ErrNiceRange, "nice %d", nice)
	}
	old := p.k.disable()
	t.Nice = nice
	p.updatePriority(t)
	if t.Status == domain.StatusReady {
		p.k.readyReposition(t)
	}
	p.k.restore(old)

	p.k.YieldIfOutranked()
	return nil
}

// updatePriority applies PRI_MAX - recent_cpu/4 - nice*2, clamped to the
// valid range. The division rounds to nearest.
func (p *mlfqsPolicy) updatePriority(t *domain.TCB) {
	if t == p.k.idle {
		return
	}
	pri := domain.PriMax - t.RecentCPU.DivInt(4).Round() - t.Nice*2
	if pri > domain.PriMax {
		pri = domain.PriMax
	}
	if pri < domain.PriMin {
		pri = domain.PriMin
	}
	t.Priority = pri
}

func (p *mlfqsPolicy) updateAllPriorities() {
	for _, t := range p.k.threads {
		p.updatePriority(t)
	}
}

// updateLoadAvg folds the instantaneous ready count into the load average:
// load_avg = (59/60)*load_avg + (1/60)*ready_threads. The running thread
// counts unless it is the idle thread.
func (p *mlfqsPolicy) updateLoadAvg() {
	k := p.k
	ready := len(k.ready)
	if k.current != k.idle {
		ready++
	}
	k.loadAvg = k.loadAvg.MulInt(59).DivInt(60).
		Add(fixedpoint.FromInt(ready).DivInt(60))
}

// updateAllRecentCPU decays every thread's recent_cpu by the load-derived
// coefficient 2*load_avg/(2*load_avg+1) and re-adds the nice value.
func (p *mlfqsPolicy) updateAllRecentCPU() {
	k := p.k
	twice := k.loadAvg.MulInt(2)
	coef := twice.Div(twice.AddInt(1))
	for _, t := range k.threads {
		if t == k.idle {
			continue
		}
		t.RecentCPU = coef.Mul(t.RecentCPU).AddInt(t.Nice)
	}
}
