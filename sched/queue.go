package sched

import (
	"fmt"
	"sort"

	"github.com/Gthulhu/schedcore/domain"
)

// readyInsert places a thread into the ready queue at the last position
// among its priority class, so equal-priority threads run FIFO.
func (k *Kernel) readyInsert(t *domain.TCB) {
	k.mustUnqueued(t)
	if t == k.idle {
		panic("sched: idle thread inserted into ready queue")
	}
	i := 0
	for i < len(k.ready) && k.thread(k.ready[i]).Priority >= t.Priority {
		i++
	}
	k.ready = append(k.ready, 0)
	copy(k.ready[i+1:], k.ready[i:])
	k.ready[i] = t.ID
	t.Queue = domain.QueueReady
}

// readyRemove takes a thread out of the ready queue, preserving order.
func (k *Kernel) readyRemove(t *domain.TCB) {
	if t.Queue != domain.QueueReady {
		panic(fmt.Sprintf("sched: ready remove of thread %d not on ready queue", t.ID))
	}
	for i, id := range k.ready {
		if id == t.ID {
			k.ready = append(k.ready[:i], k.ready[i+1:]...)
			t.Queue = domain.QueueNone
			return
		}
	}
	panic(fmt.Sprintf("sched: thread %d tagged ready but absent from queue", t.ID))
}

// readyReposition re-files a READY thread after its priority changed. The
// thread goes behind existing peers of its new priority.
func (k *Kernel) readyReposition(t *domain.TCB) {
	k.readyRemove(t)
	k.readyInsert(t)
}

// readyResort rebuilds the whole queue order after a bulk priority
// recomputation. The sort is stable so FIFO order within a priority class
// survives.
func (k *Kernel) readyResort() {
	sort.SliceStable(k.ready, func(i, j int) bool {
		return k.thread(k.ready[i]).Priority > k.thread(k.ready[j]).Priority
	})
}

// sleepInsert places a thread into the sleep queue ordered by wakeup time,
// earliest first, behind threads with the same deadline.
func (k *Kernel) sleepInsert(t *domain.TCB) {
	k.mustUnqueued(t)
	i := 0
	for i < len(k.sleeping) && k.thread(k.sleeping[i]).WakeupTime <= t.WakeupTime {
		i++
	}
	k.sleeping = append(k.sleeping, 0)
	copy(k.sleeping[i+1:], k.sleeping[i:])
	k.sleeping[i] = t.ID
	t.Queue = domain.QueueSleep
}

func (k *Kernel) mustUnqueued(t *domain.TCB) {
	if t.Queue != domain.QueueNone {
		panic(fmt.Sprintf("sched: thread %d already on queue %d", t.ID, t.Queue))
	}
}

func sortThreadInfos(infos []domain.ThreadInfo) {
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
}
