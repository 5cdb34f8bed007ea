package sched

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gthulhu/schedcore/domain"
)

// fakePlatform records platform callbacks and performs no real context
// switching: Switch returns immediately, so the test's flow of control
// simply becomes whichever thread the dispatcher selected.
type fakePlatform struct {
	registered []domain.ThreadID
	activated  []domain.ThreadID
	reaped     []domain.ThreadID
}

func (p *fakePlatform) Register(t *domain.TCB) {
	p.registered = append(p.registered, t.ID)
}

func (p *fakePlatform) Switch(from, _ *domain.TCB) *domain.TCB {
	return from
}

func (p *fakePlatform) Activate(t *domain.TCB) {
	p.activated = append(p.activated, t.ID)
}

func (p *fakePlatform) Reap(t *domain.TCB) {
	p.reaped = append(p.reaped, t.ID)
}

func newTestKernel(t *testing.T, cfg Config) (*Kernel, *fakePlatform) {
	t.Helper()
	p := &fakePlatform{}
	k := New(cfg, p)
	k.Start()
	return k, p
}

func noop() {}

func TestNewBootstrapsMainThread(t *testing.T) {
	k, p := newTestKernel(t, Config{})

	main := k.Current()
	require.NotNil(t, main)
	assert.Equal(t, "main", main.Name)
	assert.Equal(t, domain.StatusRunning, main.Status)
	assert.Equal(t, domain.PriDefault, main.Priority)
	assert.Empty(t, k.ReadyThreads())
	assert.Contains(t, p.registered, main.ID)
	assert.Contains(t, p.registered, k.Idle().ID)
}

func TestCreateLowerPriorityStaysReady(t *testing.T) {
	k, _ := newTestKernel(t, Config{})
	main := k.Current()

	id, err := k.Create("worker", 10, noop)
	require.NoError(t, err)

	assert.Same(t, main, k.Current())
	w, ok := k.Thread(id)
	require.True(t, ok)
	assert.Equal(t, domain.StatusReady, w.Status)
	assert.Equal(t, []domain.ThreadID{id}, k.ReadyThreads())
}

func TestCreateHigherPriorityPreempts(t *testing.T) {
	k, _ := newTestKernel(t, Config{})
	main := k.Current()

	id, err := k.Create("urgent", 50, noop)
	require.NoError(t, err)

	assert.Equal(t, id, k.Current().ID)
	assert.Equal(t, domain.StatusReady, main.Status)
	assert.Equal(t, []domain.ThreadID{main.ID}, k.ReadyThreads())
}

func TestCreateEqualPriorityDoesNotPreempt(t *testing.T) {
	k, _ := newTestKernel(t, Config{})
	main := k.Current()

	_, err := k.Create("peer", main.Priority, noop)
	require.NoError(t, err)

	assert.Same(t, main, k.Current())
}

func TestCreateExhaustsThreadTable(t *testing.T) {
	// Bootstrap and idle already occupy two of the three slots.
	k, _ := newTestKernel(t, Config{MaxThreads: 3})

	_, err := k.Create("a", 10, noop)
	require.NoError(t, err)
	_, err = k.Create("b", 10, noop)
	assert.ErrorIs(t, err, domain.ErrTooManyThreads)
}

func TestCreatePanicsOnBadArguments(t *testing.T) {
	k, _ := newTestKernel(t, Config{})

	assert.Panics(t, func() { k.Create("nil-entry", 10, nil) })
	assert.Panics(t, func() { k.Create("low", domain.PriMin-1, noop) })
	assert.Panics(t, func() { k.Create("high", domain.PriMax+1, noop) })
}

func TestThreadIDsAreMonotonic(t *testing.T) {
	k, _ := newTestKernel(t, Config{})

	a, err := k.Create("a", 10, noop)
	require.NoError(t, err)
	b, err := k.Create("b", 10, noop)
	require.NoError(t, err)
	assert.Greater(t, b, a)
}

func TestReadyQueueFIFOAmongEquals(t *testing.T) {
	k, _ := newTestKernel(t, Config{})

	a, _ := k.Create("a", 20, noop)
	b, _ := k.Create("b", 20, noop)
	c, _ := k.Create("c", 20, noop)
	hi, _ := k.Create("hi", 25, noop)
	lo, _ := k.Create("lo", 15, noop)

	assert.Equal(t, []domain.ThreadID{hi, a, b, c, lo}, k.ReadyThreads())
}

func TestUnblockPanicsUnlessBlocked(t *testing.T) {
	k, _ := newTestKernel(t, Config{})

	id, err := k.Create("worker", 10, noop)
	require.NoError(t, err)
	w, _ := k.Thread(id)

	assert.Panics(t, func() { k.Unblock(w) }, "unblock of a READY thread")
	assert.Panics(t, func() { k.Unblock(k.Current()) }, "unblock of the RUNNING thread")
}

func TestYieldRotatesEqualPriorities(t *testing.T) {
	k, _ := newTestKernel(t, Config{})
	main := k.Current()

	a, _ := k.Create("a", main.Priority, noop)
	b, _ := k.Create("b", main.Priority, noop)

	k.Yield()
	assert.Equal(t, a, k.Current().ID)
	assert.Equal(t, []domain.ThreadID{b, main.ID}, k.ReadyThreads())

	k.Yield()
	assert.Equal(t, b, k.Current().ID)

	k.Yield()
	assert.Equal(t, main.ID, k.Current().ID)
}

func TestYieldWithEmptyQueueKeepsRunning(t *testing.T) {
	k, _ := newTestKernel(t, Config{})
	main := k.Current()

	k.Yield()
	assert.Same(t, main, k.Current())
	assert.Equal(t, domain.StatusRunning, main.Status)
}

func TestSleepOrdersByWakeupTime(t *testing.T) {
	k, _ := newTestKernel(t, Config{})
	main := k.Current()

	// Each new thread outranks main, runs, sleeps, and hands control back.
	a, _ := k.Create("a", 40, noop)
	k.Sleep(5)
	require.Same(t, main, k.Current())
	b, _ := k.Create("b", 40, noop)
	k.Sleep(1)
	c, _ := k.Create("c", 40, noop)
	k.Sleep(3)
	require.Same(t, main, k.Current())

	for i := 0; i < 5; i++ {
		k.Tick()
	}
	assert.Equal(t, []domain.ThreadID{b, c, a}, k.ReadyThreads())
}

func TestSleepWakesAtExactTick(t *testing.T) {
	k, _ := newTestKernel(t, Config{})

	id, _ := k.Create("sleeper", 40, noop)
	k.Sleep(3)
	w, _ := k.Thread(id)
	require.Equal(t, domain.StatusBlocked, w.Status)

	k.Tick()
	k.Tick()
	assert.Equal(t, domain.StatusBlocked, w.Status)

	k.Tick()
	assert.Equal(t, domain.StatusReady, w.Status)
	assert.Equal(t, []domain.ThreadID{id}, k.ReadyThreads())
	assert.True(t, k.TakePendingYield(), "waking a higher-priority sleeper requests a yield")
}

func TestSleepNonPositiveDegradesToYield(t *testing.T) {
	k, _ := newTestKernel(t, Config{})
	main := k.Current()

	peer, _ := k.Create("peer", main.Priority, noop)
	k.Sleep(0)

	assert.Equal(t, peer, k.Current().ID)
	assert.Equal(t, domain.StatusReady, main.Status)
}

func TestExitReapsOnNextDispatch(t *testing.T) {
	k, p := newTestKernel(t, Config{})
	main := k.Current()

	id, _ := k.Create("doomed", 50, noop)
	require.Equal(t, id, k.Current().ID)
	doomed := k.Current()

	k.Exit()

	assert.Same(t, main, k.Current())
	assert.Equal(t, domain.StatusDying, doomed.Status)
	_, ok := k.Thread(id)
	assert.False(t, ok, "exited thread leaves the registry")
	assert.Equal(t, []domain.ThreadID{id}, p.reaped)
}

func TestInitialThreadIsNeverReaped(t *testing.T) {
	k, p := newTestKernel(t, Config{})

	k.Exit()

	assert.Same(t, k.Idle(), k.Current())
	assert.Empty(t, p.reaped)
}

func TestIdleRunsWhenQueueEmpty(t *testing.T) {
	k, _ := newTestKernel(t, Config{})
	main := k.Current()

	k.IntrDisable()
	k.Block()

	assert.Same(t, k.Idle(), k.Current())
	assert.Equal(t, domain.StatusRunning, k.Idle().Status)

	// Unblocking main pulls control off the idle thread at the next yield.
	k.Unblock(main)
	k.Yield()
	assert.Same(t, main, k.Current())
}

func TestTimeSliceRequestsYield(t *testing.T) {
	k, _ := newTestKernel(t, Config{TimeSlice: 4})

	for i := 0; i < 3; i++ {
		k.Tick()
		assert.False(t, k.TakePendingYield())
	}
	k.Tick()
	assert.True(t, k.TakePendingYield())
	assert.False(t, k.TakePendingYield(), "the flag is consumed")
}

func TestTickCountsIdleAndKernelTime(t *testing.T) {
	k, _ := newTestKernel(t, Config{})

	k.Tick()
	k.Tick()
	k.Exit() // main leaves, idle takes over
	k.Tick()

	stats := k.Snapshot().Stats
	assert.Equal(t, int64(3), stats.Ticks)
	assert.Equal(t, int64(2), stats.KernelTicks)
	assert.Equal(t, int64(1), stats.IdleTicks)
}

func TestSetPriorityRejectsOutOfRange(t *testing.T) {
	k, _ := newTestKernel(t, Config{})

	assert.True(t, errors.Is(k.SetPriority(domain.PriMin-1), domain.ErrPriorityRange))
	assert.True(t, errors.Is(k.SetPriority(domain.PriMax+1), domain.ErrPriorityRange))
	assert.Equal(t, domain.PriDefault, k.GetPriority())
}

func TestSetPriorityYieldsWhenLowered(t *testing.T) {
	k, _ := newTestKernel(t, Config{})
	main := k.Current()

	other, _ := k.Create("other", 20, noop)
	require.NoError(t, k.SetPriority(10))

	assert.Equal(t, other, k.Current().ID)
	assert.Equal(t, 10, main.Priority)
	assert.Equal(t, domain.StatusReady, main.Status)
}

func TestSetNiceRangeCheckedInStaticMode(t *testing.T) {
	k, _ := newTestKernel(t, Config{})

	assert.True(t, errors.Is(k.SetNice(domain.NiceMax+1), domain.ErrNiceRange))
	require.NoError(t, k.SetNice(5))
	assert.Equal(t, 5, k.GetNice())
	// Static mode records the value without touching priority.
	assert.Equal(t, domain.PriDefault, k.GetPriority())
}

func TestNiceInheritedByChildren(t *testing.T) {
	k, _ := newTestKernel(t, Config{})
	require.NoError(t, k.SetNice(7))

	id, err := k.Create("child", 10, noop)
	require.NoError(t, err)
	child, _ := k.Thread(id)
	assert.Equal(t, 7, child.Nice)
}

func TestSnapshotListsThreadsByID(t *testing.T) {
	k, _ := newTestKernel(t, Config{})
	k.Create("b", 20, noop)
	k.Create("a", 40, noop)

	snap := k.Snapshot()
	require.Len(t, snap.Threads, 4) // main, idle, b, a
	for i := 1; i < len(snap.Threads); i++ {
		assert.Less(t, snap.Threads[i-1].ID, snap.Threads[i].ID)
	}
	assert.False(t, snap.Stats.MLFQS)
	assert.Equal(t, 2, snap.Stats.ReadyThreads)
}

func TestDispatchCountsSwitches(t *testing.T) {
	k, _ := newTestKernel(t, Config{})
	k.Create("peer", domain.PriDefault, noop)

	before := k.Snapshot().Stats.Dispatches
	k.Yield()
	k.Yield()
	after := k.Snapshot().Stats.Dispatches
	assert.Equal(t, before+2, after)
}
