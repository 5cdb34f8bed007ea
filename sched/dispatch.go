package sched

import (
	"fmt"

	"github.com/Gthulhu/schedcore/domain"
)

// schedule is the single choke point for handing over the CPU. The caller
// has already moved the running thread out of RUNNING; schedule picks the
// successor, performs the context switch, and finishes the hand-over on
// the successor's flow of control.
func (k *Kernel) schedule() {
	k.mustIntrOff("schedule")
	k.mustNotInIntr("schedule")
	cur := k.current
	if cur.Status == domain.StatusRunning {
		panic(fmt.Sprintf("sched: schedule with thread %d still RUNNING", cur.ID))
	}

	next := k.nextThreadToRun()
	k.current = next
	if cur != next {
		k.dispatches++
		prev := k.platform.Switch(cur, next)
		k.ScheduleTail(prev)
		return
	}
	k.ScheduleTail(nil)
}

// nextThreadToRun pops the ready queue head, falling back to the idle
// thread when the queue is empty.
func (k *Kernel) nextThreadToRun() *domain.TCB {
	if len(k.ready) == 0 {
		return k.idle
	}
	t := k.thread(k.ready[0])
	k.ready = k.ready[1:]
	t.Queue = domain.QueueNone
	return t
}

// ScheduleTail completes a dispatch on the incoming thread's flow: it
// marks the thread RUNNING, resets its time slice, activates its context,
// and reclaims the previous thread if that thread was dying. The bootstrap
// thread's context is never reclaimed because the platform did not
// allocate it.
func (k *Kernel) ScheduleTail(prev *domain.TCB) {
	k.mustIntrOff("ScheduleTail")
	cur := k.current
	cur.Status = domain.StatusRunning
	k.sliceTicks = 0
	k.platform.Activate(cur)

	if prev != nil && prev.Status == domain.StatusDying && prev != k.initial {
		k.platform.Reap(prev)
	}
}
