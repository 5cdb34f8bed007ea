// Package sched implements the single-core thread scheduler: the TCB
// registry and state machine, the priority-ordered ready queue, the
// deadline-ordered sleep queue, priority donation, and the boot-time
// choice between explicit priorities and the MLFQS policy.
//
// The kernel itself is a deterministic state machine. It contains no
// blocking synchronization; mutual exclusion against the timer interrupt
// is modeled by the interrupt-disable level, and the machine layer
// guarantees that only one flow of control enters the kernel at a time.
package sched

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Gthulhu/schedcore/domain"
	"github.com/Gthulhu/schedcore/fixedpoint"
	"github.com/Gthulhu/schedcore/pkg/logger"
)

// IntrLevel is the state of the simulated interrupt flag.
type IntrLevel int

const (
	IntrOn IntrLevel = iota
	IntrOff
)

// Config selects the scheduling mode and sizes the thread arena. The mode
// is immutable once the kernel is constructed.
type Config struct {
	// MLFQS enables the multilevel feedback queue policy. When false the
	// kernel honors explicit priorities and performs donation.
	MLFQS bool

	// TickHz is the number of timer ticks per simulated second; the
	// once-per-second MLFQS recomputations run on this cadence.
	TickHz int

	// TimeSlice is the tick budget of one scheduling quantum.
	TimeSlice int

	// MaxThreads bounds the TCB arena, including the bootstrap and idle
	// threads.
	MaxThreads int
}

func (c Config) withDefaults() Config {
	if c.TickHz <= 0 {
		c.TickHz = domain.DefaultTickHz
	}
	if c.TimeSlice <= 0 {
		c.TimeSlice = domain.TimeSlice
	}
	if c.MaxThreads <= 0 {
		c.MaxThreads = 256
	}
	return c
}

// Kernel is the scheduler context: one per simulated machine, initialized
// at start-up, never torn down.
type Kernel struct {
	cfg      Config
	platform domain.Platform
	pol      policy
	log      zerolog.Logger

	// threads is the registry of all live TCBs, keyed by their stable ID.
	threads map[domain.ThreadID]*domain.TCB
	nextTID domain.ThreadID

	current *domain.TCB
	initial *domain.TCB
	idle    *domain.TCB

	// ready holds READY thread handles, descending by priority with FIFO
	// order among equals. sleeping holds BLOCKED sleepers, ascending by
	// wakeup time.
	ready    []domain.ThreadID
	sleeping []domain.ThreadID

	ticks       int64
	sliceTicks  int
	idleTicks   int64
	kernelTicks int64
	dispatches  int64
	loadAvg     fixedpoint.Value

	intrOff      bool
	inIntr       bool
	yieldPending bool
}

// New initializes the scheduler and turns the calling flow of control into
// the bootstrap "main" thread, which is RUNNING from the start.
func New(cfg Config, p domain.Platform) *Kernel {
	k := &Kernel{
		cfg:      cfg.withDefaults(),
		platform: p,
		threads:  make(map[domain.ThreadID]*domain.TCB),
		log:      logger.Base().With().Str("component", "sched").Logger(),
	}
	if k.cfg.MLFQS {
		k.pol = &mlfqsPolicy{k: k}
	} else {
		k.pol = &staticPolicy{k: k}
	}

	main, err := k.allocTCB("main", domain.PriDefault)
	if err != nil {
		panic(fmt.Sprintf("sched: bootstrap thread allocation failed: %v", err))
	}
	main.Status = domain.StatusRunning
	k.current = main
	k.initial = main
	k.platform.Register(main)

	k.log.Info().Bool("mlfqs", k.cfg.MLFQS).Int("tick_hz", k.cfg.TickHz).
		Int("max_threads", k.cfg.MaxThreads).Msg("scheduler initialized")
	return k
}

// Start creates the idle fallback thread. The idle thread never enters the
// ready queue; the dispatcher returns it only when nothing else is READY.
func (k *Kernel) Start() {
	if k.idle != nil {
		panic("sched: Start called twice")
	}
	idle, err := k.allocTCB("idle", domain.PriMin)
	if err != nil {
		panic(fmt.Sprintf("sched: idle thread allocation failed: %v", err))
	}
	k.idle = idle
	k.platform.Register(idle)
}

// Create allocates a new thread and makes it READY. It does not transfer
// the CPU unless the new thread outranks the caller. An out-of-range
// priority is a kernel bug, not a runtime condition.
func (k *Kernel) Create(name string, priority int, entry func()) (domain.ThreadID, error) {
	if entry == nil {
		panic("sched: Create with nil entry")
	}
	if priority < domain.PriMin || priority > domain.PriMax {
		panic(fmt.Sprintf("sched: Create %q with priority %d outside [%d,%d]",
			name, priority, domain.PriMin, domain.PriMax))
	}

	old := k.disable()
	t, err := k.allocTCB(name, priority)
	if err != nil {
		k.restore(old)
		return domain.NoThread, err
	}
	t.Entry = entry
	k.platform.Register(t)
	k.pol.threadCreated(t)
	k.unblock(t)
	k.restore(old)

	k.YieldIfOutranked()
	return t.ID, nil
}

// Block transitions the running thread to BLOCKED and dispatches. Must be
// called with interrupts disabled; the thread will not run again until
// something unblocks it.
func (k *Kernel) Block() {
	k.mustNotInIntr("Block")
	k.mustIntrOff("Block")
	k.current.Status = domain.StatusBlocked
	k.schedule()
}

// Unblock moves a BLOCKED thread into the ready queue. Unblocking a thread
// in any other state is a contract violation. Unblock deliberately does
// not preempt: callers that need instant preemption follow up with
// YieldIfOutranked, which lets them batch several unblocks atomically.
func (k *Kernel) Unblock(t *domain.TCB) {
	old := k.disable()
	k.unblock(t)
	k.restore(old)
}

func (k *Kernel) unblock(t *domain.TCB) {
	if t.Status != domain.StatusBlocked {
		panic(fmt.Sprintf("sched: Unblock of thread %d (%s) in state %s", t.ID, t.Name, t.Status))
	}
	k.readyInsert(t)
	t.Status = domain.StatusReady
}

// Yield re-queues the running thread and dispatches. With equal priorities
// this rotates threads round-robin.
func (k *Kernel) Yield() {
	k.mustNotInIntr("Yield")
	old := k.disable()
	cur := k.current
	if cur != k.idle {
		k.readyInsert(cur)
	}
	cur.Status = domain.StatusReady
	k.schedule()
	k.restore(old)
}

// YieldIfOutranked yields only when the ready queue head has strictly
// higher priority than the running thread. In interrupt context the yield
// is deferred to the next return from interrupt.
func (k *Kernel) YieldIfOutranked() {
	if !k.readyOutranksCurrent() {
		return
	}
	if k.inIntr {
		k.yieldPending = true
		return
	}
	k.Yield()
}

func (k *Kernel) readyOutranksCurrent() bool {
	return k.current != k.idle &&
		len(k.ready) > 0 &&
		k.current.Priority < k.thread(k.ready[0]).Priority
}

// Exit removes the running thread from the registry, marks it DYING and
// dispatches away from it. Its context is reclaimed by that dispatch, not
// here: a thread must never free its own live stack. On a real platform
// this call does not return; under a recording fake it does.
func (k *Kernel) Exit() {
	k.mustNotInIntr("Exit")
	k.disable()
	cur := k.current
	delete(k.threads, cur.ID)
	cur.Status = domain.StatusDying
	k.schedule()
}

// Sleep blocks the running thread until the given number of ticks has
// elapsed. Non-positive durations degrade to a plain yield.
func (k *Kernel) Sleep(ticks int64) {
	k.mustNotInIntr("Sleep")
	cur := k.current
	if cur.Status != domain.StatusRunning {
		panic(fmt.Sprintf("sched: Sleep by thread %d in state %s", cur.ID, cur.Status))
	}
	if ticks <= 0 {
		k.Yield()
		return
	}

	old := k.disable()
	cur.WakeupTime = k.ticks + ticks
	k.sleepInsert(cur)
	k.Block()
	k.restore(old)
}

// Tick is the timer interrupt handler: it advances time, charges the
// running thread, drives the policy cadences, wakes due sleepers, and
// requests a yield when the time slice is spent or a wakeup outranks the
// running thread. The yield itself happens on return from interrupt.
func (k *Kernel) Tick() {
	old := k.disable()
	k.inIntr = true

	k.ticks++
	if k.current == k.idle {
		k.idleTicks++
	} else {
		k.kernelTicks++
	}

	k.pol.tick()

	k.sliceTicks++
	if k.sliceTicks >= k.cfg.TimeSlice {
		k.yieldPending = true
	}

	k.wakeSleepers()
	if k.readyOutranksCurrent() {
		k.yieldPending = true
	}

	k.inIntr = false
	k.restore(old)
}

func (k *Kernel) wakeSleepers() {
	for len(k.sleeping) > 0 {
		t := k.thread(k.sleeping[0])
		if t.WakeupTime > k.ticks {
			break
		}
		k.sleeping = k.sleeping[1:]
		t.Queue = domain.QueueNone
		t.WakeupTime = 0
		k.unblock(t)
	}
}

// TakePendingYield consumes the yield-on-return-from-interrupt flag. The
// machine layer calls it on the running thread's flow when leaving the
// kernel.
func (k *Kernel) TakePendingYield() bool {
	v := k.yieldPending
	k.yieldPending = false
	return v
}

// SetPriority applies an explicit priority request to the running thread.
// Out-of-range values are rejected; under MLFQS the request is ignored
// because the policy owns priorities.
func (k *Kernel) SetPriority(priority int) error {
	return k.pol.setPriority(k.current, priority)
}

// GetPriority returns the running thread's effective priority.
func (k *Kernel) GetPriority() int {
	return k.current.Priority
}

// SetNice applies a nice value to the running thread.
func (k *Kernel) SetNice(nice int) error {
	return k.pol.setNice(k.current, nice)
}

// GetNice returns the running thread's nice value.
func (k *Kernel) GetNice() int {
	return k.current.Nice
}

// GetRecentCPU returns 100 times the running thread's recent-CPU estimate,
// rounded to the nearest integer.
func (k *Kernel) GetRecentCPU() int {
	return k.current.RecentCPU.MulInt(100).Round()
}

// GetLoadAvg returns 100 times the system load average, rounded to the
// nearest integer.
func (k *Kernel) GetLoadAvg() int {
	return k.loadAvg.MulInt(100).Round()
}

// Current returns the running thread.
func (k *Kernel) Current() *domain.TCB {
	return k.current
}

// Idle returns the idle fallback thread; nil before Start.
func (k *Kernel) Idle() *domain.TCB {
	return k.idle
}

// Thread looks up a live thread by ID.
func (k *Kernel) Thread(id domain.ThreadID) (*domain.TCB, bool) {
	t, ok := k.threads[id]
	return t, ok
}

// ReadyThreads returns the ready queue order, head first.
func (k *Kernel) ReadyThreads() []domain.ThreadID {
	out := make([]domain.ThreadID, len(k.ready))
	copy(out, k.ready)
	return out
}

// Ticks returns the number of timer ticks since boot.
func (k *Kernel) Ticks() int64 {
	return k.ticks
}

// IntrDisable disables interrupts and returns the previous level.
func (k *Kernel) IntrDisable() IntrLevel {
	return k.disable()
}

// IntrSetLevel restores a previously saved interrupt level.
func (k *Kernel) IntrSetLevel(level IntrLevel) {
	k.restore(level)
}

func (k *Kernel) disable() IntrLevel {
	if k.intrOff {
		return IntrOff
	}
	k.intrOff = true
	return IntrOn
}

func (k *Kernel) restore(old IntrLevel) {
	if old == IntrOn {
		k.intrOff = false
	}
}

func (k *Kernel) mustIntrOff(op string) {
	if !k.intrOff {
		panic("sched: " + op + " with interrupts enabled")
	}
}

func (k *Kernel) mustNotInIntr(op string) {
	if k.inIntr {
		panic("sched: " + op + " from interrupt context")
	}
}

func (k *Kernel) thread(id domain.ThreadID) *domain.TCB {
	t, ok := k.threads[id]
	if !ok {
		panic(fmt.Sprintf("sched: no TCB for thread %d", id))
	}
	return t
}

func (k *Kernel) allocTCB(name string, priority int) (*domain.TCB, error) {
	if len(k.threads) >= k.cfg.MaxThreads {
		return nil, domain.ErrTooManyThreads
	}
	k.nextTID++
	t := &domain.TCB{
		ID:           k.nextTID,
		Name:         name,
		Status:       domain.StatusBlocked,
		Priority:     priority,
		BasePriority: priority,
		Queue:        domain.QueueNone,
	}
	// New threads inherit the creator's MLFQS inputs.
	if k.current != nil {
		t.Nice = k.current.Nice
		t.RecentCPU = k.current.RecentCPU
	}
	k.threads[t.ID] = t
	return t, nil
}

// Snapshot captures a consistent view of all threads and counters.
func (k *Kernel) Snapshot() *domain.Snapshot {
	old := k.disable()
	defer k.restore(old)

	snap := &domain.Snapshot{
		Stats: domain.SchedStats{
			Ticks:           k.ticks,
			IdleTicks:       k.idleTicks,
			KernelTicks:     k.kernelTicks,
			Dispatches:      k.dispatches,
			ReadyThreads:    len(k.ready),
			LoadAvgTimes100: k.loadAvg.MulInt(100).Round(),
			MLFQS:           k.cfg.MLFQS,
		},
	}
	snap.Threads = make([]domain.ThreadInfo, 0, len(k.threads))
	for _, t := range k.threads {
		snap.Threads = append(snap.Threads, domain.ThreadInfo{
			ID:                t.ID,
			Name:              t.Name,
			Status:            t.Status.String(),
			Priority:          t.Priority,
			BasePriority:      t.BasePriority,
			Nice:              t.Nice,
			RecentCPUTimes100: t.RecentCPU.MulInt(100).Round(),
			WakeupTime:        t.WakeupTime,
		})
	}
	sortThreadInfos(snap.Threads)
	return snap
}
