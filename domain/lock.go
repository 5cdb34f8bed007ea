package domain

// LockHandle is the scheduler-visible part of a lock. The synchronization
// primitive owns the wait list; the scheduler reads and writes the holder
// and the cached maximum waiter priority during donation.
type LockHandle struct {
	Holder ThreadID

	// MaxWaiterPriority caches the highest priority among threads blocked
	// on this lock, so releasing does not rescan waiters.
	MaxWaiterPriority int
}

func NewLockHandle() *LockHandle {
	return &LockHandle{
		Holder:            NoThread,
		MaxWaiterPriority: PriMin,
	}
}
