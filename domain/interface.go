package domain

import "context"

// Platform is the context-switch collaborator. The scheduler treats a
// switch as an atomic transfer of the CPU; how threads are actually
// suspended and resumed is the platform's business.
type Platform interface {
	// Register prepares an execution context for a newly allocated thread.
	Register(t *TCB)

	// Switch saves the current context and transfers the CPU to another
	// thread. It returns, on this thread's context and only once the
	// dispatcher selects it again, the thread that was running just
	// before the resumption.
	Switch(from, to *TCB) *TCB

	// Activate installs the thread's address space. Called once per
	// dispatch, before any other post-switch work.
	Activate(t *TCB)

	// Reap releases the execution context of a dead thread. Called by the
	// first dispatch away from it, never by the thread itself.
	Reap(t *TCB)
}

// ThreadInfo is a point-in-time view of one thread, safe to hand out to
// the REST and metrics layers.
type ThreadInfo struct {
	ID                ThreadID `json:"id"`
	Name              string   `json:"name"`
	Status            string   `json:"status"`
	Priority          int      `json:"priority"`
	BasePriority      int      `json:"base_priority"`
	Nice              int      `json:"nice"`
	RecentCPUTimes100 int      `json:"recent_cpu_x100"`
	WakeupTime        int64    `json:"wakeup_time,omitempty"`
}

// SchedStats aggregates scheduler counters since boot.
type SchedStats struct {
	Ticks           int64 `json:"ticks"`
	IdleTicks       int64 `json:"idle_ticks"`
	KernelTicks     int64 `json:"kernel_ticks"`
	Dispatches      int64 `json:"dispatches"`
	ReadyThreads    int   `json:"ready_threads"`
	LoadAvgTimes100 int   `json:"load_avg_x100"`
	MLFQS           bool  `json:"mlfqs"`
}

// Snapshot is a consistent view of the whole scheduler, taken atomically
// with respect to thread execution.
type Snapshot struct {
	Stats   SchedStats   `json:"stats"`
	Threads []ThreadInfo `json:"threads"`
}

// Introspector produces snapshots. Implemented by the machine layer.
type Introspector interface {
	Snapshot() *Snapshot
}

// Service is the read-side interface consumed by the REST handlers.
type Service interface {
	ListThreads(ctx context.Context) ([]ThreadInfo, error)
	GetThread(ctx context.Context, id ThreadID) (*ThreadInfo, error)
	GetStats(ctx context.Context) (*SchedStats, error)
	GetLoadAvg(ctx context.Context) (int, error)
}
