package domain

import "github.com/Gthulhu/schedcore/fixedpoint"

// Priority range. Lower values run later; PriDefault is the boot priority
// of the initial thread.
const (
	PriMin     = 0
	PriMax     = 63
	PriDefault = 31
)

// Nice range for the MLFQS policy. Higher nice lowers priority.
const (
	NiceMin = -20
	NiceMax = 20
)

// TimeSlice is the number of timer ticks a thread may run before the
// scheduler requests a yield.
const TimeSlice = 4

// DefaultTickHz is the simulated timer frequency when none is configured.
const DefaultTickHz = 100

// ThreadID identifies a thread. IDs are allocated monotonically and are
// never reused within a scheduler instance.
type ThreadID int32

// NoThread is the zero-value-adjacent sentinel for "no thread".
const NoThread ThreadID = -1

// Status is the scheduling state of a thread.
type Status int32

const (
	// StatusBlocked threads are waiting on a lock, a sleep deadline or an
	// explicit unblock. Freshly allocated threads start here.
	StatusBlocked Status = iota
	// StatusReady threads sit in the ready queue waiting for the CPU.
	StatusReady
	// StatusRunning is held by exactly one thread at any instant.
	StatusRunning
	// StatusDying threads have exited and await reclamation by the next
	// dispatch away from them.
	StatusDying
)

func (s Status) String() string {
	switch s {
	case StatusBlocked:
		return "BLOCKED"
	case StatusReady:
		return "READY"
	case StatusRunning:
		return "RUNNING"
	case StatusDying:
		return "DYING"
	default:
		return "UNKNOWN"
	}
}

// QueueTag records which scheduler queue, if any, currently holds a thread.
// A thread is never in more than one queue; the running thread is in none.
type QueueTag int32

const (
	QueueNone QueueTag = iota
	QueueReady
	QueueSleep
)

// TCB is the scheduler's per-thread record. It is owned exclusively by the
// scheduler while the thread is live; collaborators read it through
// snapshots.
type TCB struct {
	ID   ThreadID
	Name string

	Status Status

	// Priority is the current effective priority; BasePriority is the
	// last explicitly requested one. They differ only while a donation
	// is in effect.
	Priority     int
	BasePriority int

	// MLFQS inputs.
	Nice      int
	RecentCPU fixedpoint.Value

	// WakeupTime is the absolute tick at which a sleeping thread becomes
	// ready again; 0 when the thread is not sleeping.
	WakeupTime int64

	// HeldLocks is ordered descending by each lock's MaxWaiterPriority so
	// that the post-release priority can be read off the front.
	HeldLocks []*LockHandle
	WaitingOn *LockHandle

	Queue QueueTag

	// Entry is the thread body executed by the platform. Nil for the
	// bootstrap and idle threads, which the platform binds itself.
	Entry func()
}
