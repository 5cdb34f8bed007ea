// Package machine executes scheduler threads on goroutines. A single
// mutex plays the role of the CPU: whoever holds it is running, and a
// context switch hands it from one goroutine to another through the
// outgoing thread's park channel. Timer interrupts arrive from outside
// via Interrupt; preemption takes effect at the explicit kernel entry
// points, which mirrors a return from interrupt.
package machine

import (
	"runtime"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Gthulhu/schedcore/domain"
	"github.com/Gthulhu/schedcore/pkg/logger"
	"github.com/Gthulhu/schedcore/sched"
)

// Machine owns the kernel and the goroutine per thread. It implements
// domain.Platform for the kernel, domain.Introspector for the service
// layer, and ksync.Guard for the synchronization primitives.
type Machine struct {
	k   *sched.Kernel
	log zerolog.Logger

	// cpu is the one simulated CPU. It is locked by the running thread
	// and handed across context switches without an intervening unlock.
	cpu sync.Mutex

	// parks maps each thread to the channel its goroutine blocks on while
	// switched out. Closing a channel reaps the goroutine.
	parks map[domain.ThreadID]chan struct{}

	// prev carries the outgoing thread across a switch so the incoming
	// side can finish the dispatch.
	prev *domain.TCB

	// wake pokes the idle thread out of its halt.
	wake chan struct{}

	stopped bool
}

func New(cfg sched.Config) *Machine {
	m := &Machine{
		parks: make(map[domain.ThreadID]chan struct{}),
		wake:  make(chan struct{}, 1),
		log:   logger.Base().With().Str("component", "machine").Logger(),
	}
	m.k = sched.New(cfg, m)
	return m
}

// Kernel exposes the underlying scheduler, mainly for tests.
func (m *Machine) Kernel() *sched.Kernel {
	return m.k
}

// Run starts the machine and executes body as the initial thread. It
// returns when body does; other threads and the idle thread keep running
// until Shutdown.
func (m *Machine) Run(body func()) {
	m.cpu.Lock()
	m.k.Start()
	go m.idleMain(m.parks[m.k.Idle().ID])

	done := make(chan struct{})
	go func() {
		// This goroutine is the initial thread; it inherits the CPU from
		// Run and gives it up only through the kernel.
		m.cpu.Unlock()
		body()
		close(done)
		m.Exit()
	}()
	<-done
}

// Register implements domain.Platform. Threads with an entry function get
// a goroutine that waits to be dispatched for the first time; the initial
// and idle threads are bound to goroutines elsewhere.
func (m *Machine) Register(t *domain.TCB) {
	ch := make(chan struct{})
	m.parks[t.ID] = ch
	if t.Entry != nil {
		go m.threadMain(t, ch)
	}
}

// Switch implements domain.Platform: unpark the target, park ourselves,
// and report who ran before us once we are resumed. The CPU mutex stays
// held across the whole exchange; the resumed goroutine releases it.
func (m *Machine) Switch(from, to *domain.TCB) *domain.TCB {
	if m.stopped {
		m.cpu.Unlock()
		runtime.Goexit()
	}
	fromCh := m.parks[from.ID]
	toCh := m.parks[to.ID]
	m.prev = from
	toCh <- struct{}{}
	if _, ok := <-fromCh; !ok {
		// Reaped or shut down while parked.
		runtime.Goexit()
	}
	return m.prev
}

// Activate implements domain.Platform. Threads share the host address
// space, so there is nothing to install.
func (m *Machine) Activate(*domain.TCB) {}

// Reap implements domain.Platform: closing the park channel makes the
// dead thread's goroutine exit instead of resuming.
func (m *Machine) Reap(t *domain.TCB) {
	ch, ok := m.parks[t.ID]
	if !ok {
		return
	}
	delete(m.parks, t.ID)
	close(ch)
}

// threadMain is the goroutine body of a spawned thread. No defers here:
// the exit path unwinds via Goexit while the goroutine does not hold the
// CPU, so there is nothing safe to clean up.
func (m *Machine) threadMain(t *domain.TCB, park chan struct{}) {
	if _, ok := <-park; !ok {
		return
	}
	m.k.ScheduleTail(m.prev)
	m.k.IntrSetLevel(sched.IntrOn)
	m.cpu.Unlock()

	t.Entry()
	m.Exit()
}

// idleMain halts until an interrupt, then offers the CPU back. The kernel
// dispatches the idle thread only when the ready queue is empty.
func (m *Machine) idleMain(park chan struct{}) {
	if _, ok := <-park; !ok {
		return
	}
	m.k.ScheduleTail(m.prev)
	for {
		m.k.IntrSetLevel(sched.IntrOn)
		m.cpu.Unlock()

		<-m.wake

		m.cpu.Lock()
		if m.stopped {
			m.cpu.Unlock()
			return
		}
		m.k.IntrDisable()
		m.k.Block()
	}
}

// Interrupt delivers one timer tick. Call it from a ticker goroutine; it
// is safe against concurrently running threads.
func (m *Machine) Interrupt() {
	m.cpu.Lock()
	if m.stopped {
		m.cpu.Unlock()
		return
	}
	m.k.Tick()
	m.cpu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// Checkpoint is a preemption point for compute loops: if the last tick
// requested a yield, it happens here.
func (m *Machine) Checkpoint() {
	m.cpu.Lock()
	if m.stopped {
		m.cpu.Unlock()
		runtime.Goexit()
	}
	if m.k.TakePendingYield() {
		m.k.Yield()
	}
	m.cpu.Unlock()
}

// Enter implements ksync.Guard.
func (m *Machine) Enter() {
	m.cpu.Lock()
}

// Leave implements ksync.Guard, honoring any yield an interrupt requested
// while the caller was inside the kernel.
func (m *Machine) Leave() {
	if !m.stopped && m.k.TakePendingYield() {
		m.k.Yield()
	}
	m.cpu.Unlock()
}

// Spawn creates a new thread running fn.
func (m *Machine) Spawn(name string, priority int, fn func()) (domain.ThreadID, error) {
	m.cpu.Lock()
	if m.stopped {
		m.cpu.Unlock()
		return domain.NoThread, domain.ErrThreadNotFound
	}
	id, err := m.k.Create(name, priority, fn)
	m.cpu.Unlock()
	return id, err
}

// Yield gives up the CPU voluntarily.
func (m *Machine) Yield() {
	m.cpu.Lock()
	m.k.TakePendingYield()
	m.k.Yield()
	m.cpu.Unlock()
}

// Sleep blocks the calling thread for the given number of ticks.
func (m *Machine) Sleep(ticks int64) {
	m.cpu.Lock()
	m.k.Sleep(ticks)
	m.cpu.Unlock()
}

// Exit terminates the calling thread. It does not return.
func (m *Machine) Exit() {
	m.cpu.Lock()
	if m.stopped {
		m.cpu.Unlock()
		runtime.Goexit()
	}
	m.k.Exit()
	panic("machine: dead thread resumed")
}

// SetPriority, GetPriority, SetNice, GetNice, GetRecentCPU and GetLoadAvg
// expose the kernel's per-thread knobs to thread bodies.

func (m *Machine) SetPriority(priority int) error {
	m.Enter()
	err := m.k.SetPriority(priority)
	m.Leave()
	return err
}

func (m *Machine) GetPriority() int {
	m.cpu.Lock()
	p := m.k.GetPriority()
	m.cpu.Unlock()
	return p
}

func (m *Machine) SetNice(nice int) error {
	m.Enter()
	err := m.k.SetNice(nice)
	m.Leave()
	return err
}

func (m *Machine) GetNice() int {
	m.cpu.Lock()
	n := m.k.GetNice()
	m.cpu.Unlock()
	return n
}

func (m *Machine) GetRecentCPU() int {
	m.cpu.Lock()
	v := m.k.GetRecentCPU()
	m.cpu.Unlock()
	return v
}

func (m *Machine) GetLoadAvg() int {
	m.cpu.Lock()
	v := m.k.GetLoadAvg()
	m.cpu.Unlock()
	return v
}

// Snapshot implements domain.Introspector for the observability layers.
func (m *Machine) Snapshot() *domain.Snapshot {
	m.cpu.Lock()
	s := m.k.Snapshot()
	m.cpu.Unlock()
	return s
}

// Shutdown stops the machine: parked goroutines are reaped, the running
// thread exits at its next kernel entry, and further interrupts are
// dropped. Safe to call more than once.
func (m *Machine) Shutdown() {
	m.cpu.Lock()
	if m.stopped {
		m.cpu.Unlock()
		return
	}
	m.stopped = true
	for id, ch := range m.parks {
		delete(m.parks, id)
		close(ch)
	}
	m.cpu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}
	m.log.Info().Msg("machine stopped")
}
