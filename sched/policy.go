package sched

import (
	"github.com/pkg/errors"

	"github.com/Gthulhu/schedcore/domain"
)

// policy is the per-mode hook set behind the priority and nice operations
// and the timer tick. Exactly one implementation is chosen at boot.
type policy interface {
	threadCreated(t *domain.TCB)
	tick()
	setPriority(t *domain.TCB, priority int) error
	setNice(t *domain.TCB, nice int) error
}

// staticPolicy honors explicit priorities; time only rotates equal-priority
// threads through the slice mechanism.
type staticPolicy struct {
	k *Kernel
}

func (p *staticPolicy) threadCreated(*domain.TCB) {}

func (p *staticPolicy) tick() {}

// setPriority installs a new base priority. While the thread holds donated
// priority the effective value only moves upward; the lowered base takes
// effect when the last donation drains away.
func (p *staticPolicy) setPriority(t *domain.TCB, priority int) error {
	if priority < domain.PriMin || priority > domain.PriMax {
		return errors.Wrapf(domain.ErrPriorityRange, "priority %d", priority)
	}
	old := p.k.disable()
	t.BasePriority = priority
	if len(t.HeldLocks) == 0 || priority > t.Priority {
		t.Priority = priority
	}
	p.k.restore(old)

	p.k.YieldIfOutranked()
	return nil
}

func (p *staticPolicy) setNice(t *domain.TCB, nice int) error {
	if nice < domain.NiceMin || nice > domain.NiceMax {
		return errors.Wrapf(domain.ErrNiceRange, "nice %d", nice)
	}
	// Recorded for inheritance but without scheduling effect in this mode.
	t.Nice = nice
	return nil
}
