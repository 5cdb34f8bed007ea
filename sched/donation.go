package sched

import (
	"sort"

	"github.com/Gthulhu/schedcore/domain"
)

// Priority donation raises a lock holder to the highest priority among the
// threads waiting on that lock. Donation is single level: raising a holder
// does not re-propagate through whatever lock the holder itself waits on.

// DonationEnabled reports whether explicit priorities, and therefore
// donation, are in effect. Under MLFQS the policy owns priorities and
// donation is suppressed entirely.
func (k *Kernel) DonationEnabled() bool {
	return !k.cfg.MLFQS
}

// PromoteHolder records that the running thread is about to wait on a held
// lock and donates its priority to the holder. A READY holder is re-filed
// at its new priority; a RUNNING holder may trigger a preemption check.
func (k *Kernel) PromoteHolder(h *domain.LockHandle, waiter *domain.TCB) {
	old := k.disable()
	defer k.restore(old)

	waiter.WaitingOn = h
	if !k.DonationEnabled() {
		return
	}
	if waiter.Priority > h.MaxWaiterPriority {
		h.MaxWaiterPriority = waiter.Priority
	}
	holder, ok := k.threads[h.Holder]
	if !ok || waiter.Priority <= holder.Priority {
		return
	}
	holder.Priority = waiter.Priority
	sortHeldLocks(holder.HeldLocks)

	switch holder.Status {
	case domain.StatusReady:
		k.readyReposition(holder)
	case domain.StatusRunning:
		k.YieldIfOutranked()
	}
}

// GrantLock records the running thread as the new holder after it wins the
// lock's semaphore. The cached waiter maximum restarts from the holder's
// own priority; remaining waiters re-donate on their next acquire attempt.
func (k *Kernel) GrantLock(h *domain.LockHandle) {
	old := k.disable()
	defer k.restore(old)

	cur := k.current
	cur.WaitingOn = nil
	h.Holder = cur.ID
	if !k.DonationEnabled() {
		return
	}
	h.MaxWaiterPriority = cur.Priority
	cur.HeldLocks = append(cur.HeldLocks, h)
	sortHeldLocks(cur.HeldLocks)
}

// ReleaseLock drops the lock from the running thread's held set and
// recomputes its priority: the base priority, or the strongest surviving
// donation if one remains higher.
func (k *Kernel) ReleaseLock(h *domain.LockHandle) {
	old := k.disable()
	defer k.restore(old)

	cur := k.current
	h.Holder = domain.NoThread
	if !k.DonationEnabled() {
		return
	}
	for i, held := range cur.HeldLocks {
		if held == h {
			cur.HeldLocks = append(cur.HeldLocks[:i], cur.HeldLocks[i+1:]...)
			break
		}
	}

	p := cur.BasePriority
	if len(cur.HeldLocks) > 0 && cur.HeldLocks[0].MaxWaiterPriority > p {
		p = cur.HeldLocks[0].MaxWaiterPriority
	}
	cur.Priority = p
}

func sortHeldLocks(locks []*domain.LockHandle) {
	sort.SliceStable(locks, func(i, j int) bool {
		return locks[i].MaxWaiterPriority > locks[j].MaxWaiterPriority
	})
}
