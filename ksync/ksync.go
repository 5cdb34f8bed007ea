// Package ksync provides the scheduler-aware synchronization primitives:
// a counting semaphore that wakes its highest-priority waiter, and a lock
// built on the semaphore that performs priority donation.
package ksync

import (
	"fmt"

	"github.com/Gthulhu/schedcore/domain"
	"github.com/Gthulhu/schedcore/sched"
)

// Guard serializes entry into the kernel. The machine layer implements it
// with the CPU mutex; Leave also performs any yield the timer interrupt
// requested while the primitive held the kernel.
type Guard interface {
	Enter()
	Leave()
}

// Semaphore is a counting semaphore whose Up hands the permit to the
// highest-priority waiter, FIFO among equals.
type Semaphore struct {
	k       *sched.Kernel
	guard   Guard
	value   int
	waiters []*domain.TCB
}

func NewSemaphore(k *sched.Kernel, g Guard, value int) *Semaphore {
	if value < 0 {
		panic(fmt.Sprintf("ksync: semaphore with negative value %d", value))
	}
	return &Semaphore{k: k, guard: g, value: value}
}

// Down takes a permit, blocking while none is available.
func (s *Semaphore) Down() {
	s.guard.Enter()
	s.downLocked()
	s.guard.Leave()
}

// TryDown takes a permit without blocking; it reports whether it got one.
func (s *Semaphore) TryDown() bool {
	s.guard.Enter()
	old := s.k.IntrDisable()
	ok := s.value > 0
	if ok {
		s.value--
	}
	s.k.IntrSetLevel(old)
	s.guard.Leave()
	return ok
}

// Up releases a permit and wakes the strongest waiter, yielding to it when
// it outranks the caller.
func (s *Semaphore) Up() {
	s.guard.Enter()
	s.upLocked()
	s.guard.Leave()
}

// downLocked runs with the guard already held, so the lock implementation
// can combine donation bookkeeping and the down into one critical section.
func (s *Semaphore) downLocked() {
	old := s.k.IntrDisable()
	// Re-check after every wakeup: another thread may have taken the
	// permit between the Up and this thread getting the CPU.
	for s.value == 0 {
		s.waiters = append(s.waiters, s.k.Current())
		s.k.Block()
	}
	s.value--
	s.k.IntrSetLevel(old)
}

func (s *Semaphore) upLocked() {
	old := s.k.IntrDisable()
	if len(s.waiters) > 0 {
		best := 0
		for i, w := range s.waiters {
			if w.Priority > s.waiters[best].Priority {
				best = i
			}
		}
		t := s.waiters[best]
		s.waiters = append(s.waiters[:best], s.waiters[best+1:]...)
		s.value++
		s.k.Unblock(t)
	} else {
		s.value++
	}
	s.k.IntrSetLevel(old)
	s.k.YieldIfOutranked()
}

// Lock is a mutual-exclusion lock with priority donation. It is not
// recursive; acquiring a lock the caller already holds deadlocks in
// donation mode and panics outright.
type Lock struct {
	k     *sched.Kernel
	guard Guard
	sem   *Semaphore
	h     *domain.LockHandle
}

func NewLock(k *sched.Kernel, g Guard) *Lock {
	return &Lock{
		k:     k,
		guard: g,
		sem:   NewSemaphore(k, g, 1),
		h:     domain.NewLockHandle(),
	}
}

// Acquire takes the lock, donating the caller's priority to the current
// holder first when the lock is contended.
func (l *Lock) Acquire() {
	l.guard.Enter()
	old := l.k.IntrDisable()
	cur := l.k.Current()
	if l.h.Holder == cur.ID {
		l.k.IntrSetLevel(old)
		l.guard.Leave()
		panic(fmt.Sprintf("ksync: thread %d re-acquiring its own lock", cur.ID))
	}
	if l.h.Holder != domain.NoThread {
		l.k.PromoteHolder(l.h, cur)
	}
	l.sem.downLocked()
	l.k.GrantLock(l.h)
	l.k.IntrSetLevel(old)
	l.guard.Leave()
}

// Release gives the lock up, shedding any donated priority, and hands it
// to the strongest waiter.
func (l *Lock) Release() {
	l.guard.Enter()
	old := l.k.IntrDisable()
	if l.h.Holder != l.k.Current().ID {
		cur := l.k.Current().ID
		l.k.IntrSetLevel(old)
		l.guard.Leave()
		panic(fmt.Sprintf("ksync: thread %d releasing a lock held by %d", cur, l.h.Holder))
	}
	l.k.ReleaseLock(l.h)
	l.sem.upLocked()
	l.k.IntrSetLevel(old)
	l.guard.Leave()
}

// HeldByCurrent reports whether the calling thread holds the lock.
func (l *Lock) HeldByCurrent() bool {
	l.guard.Enter()
	held := l.h.Holder == l.k.Current().ID
	l.guard.Leave()
	return held
}
