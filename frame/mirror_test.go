package frame_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evan-idocoding/framekit/frame"
	"github.com/evan-idocoding/framekit/frame/framesim"
	"github.com/evan-idocoding/framekit/rt/clock"
	"github.com/evan-idocoding/framekit/rt/sched"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type fixture struct {
	sched  *sched.Scheduler
	mirror *frame.Mirror
	clock  *clock.FakeClock
}

func newFixture(t *testing.T, opts ...frame.Option) *fixture {
	t.Helper()
	clk := clock.Fake(time.Unix(0, 0))
	s := sched.New(sched.WithWorkers(4), sched.WithClock(clk), sched.WithLogger(quiet))
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })

	opts = append([]frame.Option{frame.WithLogger(quiet)}, opts...)
	return &fixture{sched: s, mirror: frame.NewMirror(s, opts...), clock: clk}
}

func (f *fixture) announce(t *testing.T, batch []frame.Source) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, f.mirror.Announce(batch).Wait(ctx))
}

// settle waits for every task already queued on the mirror's owner chain.
func (f *fixture) settle(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, f.sched.SubmitOwned(f.mirror, func(context.Context) error { return nil }, false).Wait(ctx))
}

func sources(fs ...*framesim.Frame) []frame.Source {
	out := make([]frame.Source, len(fs))
	for i, f := range fs {
		out[i] = f
	}
	return out
}

func definedPaths(m *frame.Mirror) []string {
	var out []string
	for _, h := range m.Defined() {
		out = append(out, h.FullPath())
	}
	return out
}

func TestNewMirror_RootOnly(t *testing.T) {
	f := newFixture(t, frame.WithRootName("map"))

	root := f.mirror.Root()
	require.NotNil(t, root)
	assert.True(t, root.IsDefined())
	assert.Equal(t, "map", root.FullPath())
	assert.Equal(t, []string{"map"}, definedPaths(f.mirror))
	assert.Same(t, root, f.mirror.Lookup("map", false))
	assert.Same(t, root, f.mirror.LookupUnique("map"))
}

func TestNewMirror_InvalidConfigPanics(t *testing.T) {
	s := sched.New(sched.WithWorkers(1))
	defer s.Shutdown(context.Background())

	assert.Panics(t, func() { frame.NewMirror(nil) })
	assert.Panics(t, func() { frame.NewMirror(s, frame.WithRootName("a/b")) })
	assert.Panics(t, func() { frame.NewMirror(s, frame.WithMaxRetries(-1)) })
}

func TestAnnounce_IdempotentReannouncement(t *testing.T) {
	f := newFixture(t)
	g := framesim.New("world")
	a, _ := g.AddFixed(nil, "a", frame.Identity())
	_, _ = g.AddFixed(a, "a/b", frame.Identity())
	f.announce(t, g.Flush())

	before := f.mirror.Snapshot()
	hb := f.mirror.Lookup("a/b", false)
	require.NotNil(t, hb)

	f.announce(t, g.All())

	after := f.mirror.Snapshot()
	assert.Same(t, before, after, "re-announcing defined frames publishes nothing")
	assert.Equal(t, 3, after.Len())
	assert.Same(t, hb, f.mirror.Lookup("a/b", false))
}

func TestAnnounce_OrderIndependence(t *testing.T) {
	build := func() (*framesim.Graph, []*framesim.Frame) {
		g := framesim.New("world")
		a, _ := g.AddFixed(nil, "a", frame.Identity())
		b, _ := g.AddFixed(a, "a/b", frame.Identity())
		c, _ := g.AddFixed(b, "a/b/c", frame.Identity())
		x1, _ := g.AddFixed(a, "a/x", frame.Identity())
		x2, _ := g.AddFixed(b, "a/b/x", frame.Identity())
		return g, []*framesim.Frame{a, b, c, x1, x2}
	}

	_, fwd := build()
	f1 := newFixture(t)
	f1.announce(t, sources(fwd...))

	_, rev := build()
	reversed := make([]*framesim.Frame, len(rev))
	for i := range rev {
		reversed[i] = rev[len(rev)-1-i]
	}
	f2 := newFixture(t)
	f2.announce(t, sources(reversed...))

	require.Equal(t, definedPaths(f1.mirror), definedPaths(f2.mirror))
	for _, h := range f1.mirror.Defined() {
		other := f2.mirror.Lookup(h.FullPath(), false)
		require.NotNil(t, other)
		assert.Equal(t, h.UniqueName(), other.UniqueName())
		assert.Equal(t, h.UniqueShortName(), other.UniqueShortName())
		assert.Equal(t, h.Node().ParentPath(), other.Node().ParentPath())
	}
	assert.Equal(t, uint64(0), f2.mirror.Stats().Dropped)
}

func TestAnnounce_ShuffledBatches(t *testing.T) {
	for seed := int64(1); seed <= 5; seed++ {
		t.Run(fmt.Sprint(seed), func(t *testing.T) {
			f := newFixture(t)
			g := framesim.New("world", framesim.WithShuffle(seed))
			parent := g.Root()
			for i := 0; i < 20; i++ {
				parent, _ = g.AddFixed(parent, fmt.Sprintf("%s/n%d", parent.Path(), i), frame.Identity())
			}
			f.announce(t, g.Flush())
			assert.Equal(t, 21, f.mirror.Snapshot().Len())
		})
	}
}

func TestLookup_PlaceholderConvergence(t *testing.T) {
	f := newFixture(t)
	h := f.mirror.Lookup("a/b/c", true)
	require.NotNil(t, h)
	assert.False(t, h.IsDefined())
	assert.Equal(t, frame.HandleUndefined, h.State())
	assert.Nil(t, h.Node())
	assert.Same(t, h, f.mirror.Lookup("a/b/c", true))

	f.settle(t)
	assert.Equal(t, int64(1), f.mirror.Stats().Placeholders)

	g := framesim.New("world")
	a, _ := g.AddFixed(nil, "a", frame.Identity())
	b, _ := g.AddFixed(a, "a/b", frame.Identity())
	_, _ = g.AddFixed(b, "a/b/c", frame.Identity())
	f.announce(t, g.Flush())

	assert.True(t, h.IsDefined())
	assert.Same(t, h, f.mirror.Lookup("a/b/c", false))
	assert.Equal(t, "c", h.UniqueName())
	assert.Equal(t, int64(0), f.mirror.Stats().Placeholders)
}

func TestLookup_PlaceholderSuffixAlias(t *testing.T) {
	f := newFixture(t)
	alias := f.mirror.Lookup("b/c", true)
	f.settle(t)

	g := framesim.New("world")
	a, _ := g.AddFixed(nil, "a", frame.Identity())
	b, _ := g.AddFixed(a, "a/b", frame.Identity())
	_, _ = g.AddFixed(b, "a/b/c", frame.Identity())
	f.announce(t, g.Flush())

	canonical := f.mirror.Lookup("a/b/c", false)
	require.True(t, alias.IsDefined())
	assert.Same(t, canonical.Node(), alias.Node())
	assert.Same(t, alias, f.mirror.Lookup("b/c", false))
	assert.NotContains(t, definedPaths(f.mirror), "b/c")
	assert.Equal(t, canonical.UniqueName(), alias.UniqueName())
}

func TestSnapshot_SubtreeOfAliasFollowsTarget(t *testing.T) {
	f := newFixture(t)
	alias := f.mirror.Lookup("b", true)
	f.settle(t)

	g := framesim.New("world")
	a, _ := g.AddFixed(nil, "a", frame.Identity())
	b, _ := g.AddFixed(a, "a/b", frame.Identity())
	c, _ := g.AddFixed(b, "a/b/c", frame.Identity())
	_, _ = g.AddFixed(c, "a/b/c/d", frame.Identity())
	f.announce(t, g.Flush())
	require.True(t, alias.IsDefined())

	var got []string
	for _, h := range f.mirror.Snapshot().Subtree("b") {
		got = append(got, h.FullPath())
	}
	assert.Equal(t, []string{"b", "a/b/c", "a/b/c/d"}, got)
}

func TestLookup_PlaceholderForExistingSuffix(t *testing.T) {
	f := newFixture(t)
	g := framesim.New("world")
	a, _ := g.AddFixed(nil, "a", frame.Identity())
	_, _ = g.AddFixed(a, "a/leaf", frame.Identity())
	f.announce(t, g.Flush())

	h := f.mirror.Lookup("leaf", true)
	f.settle(t)

	assert.True(t, h.IsDefined())
	assert.Same(t, f.mirror.Lookup("a/leaf", false).Node(), h.Node())
}

func TestLookup_PlaceholderPromotedByExactMatch(t *testing.T) {
	f := newFixture(t)
	g := framesim.New("world")
	a, _ := g.AddFixed(nil, "a", frame.Identity())
	_, _ = g.AddFixed(a, "a/b", frame.Identity())
	f.announce(t, g.Flush())

	h := f.mirror.Lookup("b", true)
	f.settle(t)
	require.True(t, h.IsDefined())
	require.Equal(t, "a/b", h.Node().Path())

	_, _ = g.AddFixed(nil, "b", frame.Identity())
	f.announce(t, g.Flush())

	assert.Same(t, h, f.mirror.Lookup("b", false))
	assert.Equal(t, "b", h.Node().Path())
	assert.Contains(t, definedPaths(f.mirror), "b")
}

func TestLookup_ConcurrentPlaceholdersShareIdentity(t *testing.T) {
	f := newFixture(t)

	const n = 32
	got := make([]*frame.Handle, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = f.mirror.Lookup("x/y", true)
		}(i)
	}
	wg.Wait()
	for _, h := range got {
		assert.Same(t, got[0], h)
	}
	f.settle(t)
	assert.Equal(t, int64(1), f.mirror.Stats().Placeholders)
	assert.Nil(t, f.mirror.Lookup("", true))
	assert.Nil(t, f.mirror.Lookup("missing", false))
}

func TestUniqueNames_TwoLeavesSameName(t *testing.T) {
	f := newFixture(t)
	g := framesim.New("world")
	p1, _ := g.AddFixed(nil, "p1", frame.Identity())
	p2, _ := g.AddFixed(nil, "p2", frame.Identity())
	_, _ = g.AddFixed(p1, "p1/x", frame.Identity())
	_, _ = g.AddFixed(p2, "p2/x", frame.Identity())
	f.announce(t, g.Flush())

	x1 := f.mirror.Lookup("p1/x", false)
	x2 := f.mirror.Lookup("p2/x", false)
	assert.Equal(t, "p1/x", x1.UniqueName())
	assert.Equal(t, "p2/x", x2.UniqueName())
	assert.Same(t, x1, f.mirror.LookupUnique("p1/x"))
	assert.Nil(t, f.mirror.LookupUnique("x"))

	seen := map[string]bool{}
	for _, h := range f.mirror.Defined() {
		assert.False(t, seen[h.UniqueName()], "duplicate unique name %q", h.UniqueName())
		seen[h.UniqueName()] = true
	}
}

func TestUniqueNames_RecomputedTreeWide(t *testing.T) {
	f := newFixture(t)
	g := framesim.New("world")
	arm, _ := g.AddFixed(nil, "arm", frame.Identity())
	_, _ = g.AddFixed(arm, "arm/hand", frame.Identity())
	f.announce(t, g.Flush())

	hand := f.mirror.Lookup("arm/hand", false)
	assert.Equal(t, "hand", hand.UniqueName())

	leg, _ := g.AddFixed(nil, "leg", frame.Identity())
	_, _ = g.AddFixed(leg, "leg/hand", frame.Identity())
	f.announce(t, g.Flush())

	assert.Equal(t, "arm/hand", hand.UniqueName())
	assert.Equal(t, "a/hand", hand.UniqueShortName())
	assert.Same(t, hand, f.mirror.LookupUnique("a/hand"))
}

func TestAnnounce_RobotPelvisScenario(t *testing.T) {
	f := newFixture(t)
	g := framesim.New("world")
	robot, _ := g.AddFixed(nil, "robot", frame.Identity())
	robot.SetUnderConstruction(true)
	pelvis, _ := g.AddFixed(robot, "robot/pelvis", frame.Identity())
	ground, _ := g.AddFixed(nil, "world/ground", frame.Identity())

	f.announce(t, sources(pelvis, ground))

	assert.True(t, f.mirror.Lookup("world/ground", false).IsDefined())
	assert.Nil(t, f.mirror.Lookup("robot/pelvis", false))
	st := f.mirror.Stats()
	assert.Equal(t, int64(1), st.PendingRetries)
	assert.Equal(t, uint64(0), st.Dropped)

	f.announce(t, sources(robot))
	require.True(t, f.mirror.Lookup("robot", false).IsDefined())

	f.clock.Advance(100 * time.Millisecond)
	require.Eventually(t, func() bool {
		h := f.mirror.Lookup("robot/pelvis", false)
		return h != nil && h.IsDefined()
	}, 5*time.Second, time.Millisecond)
	assert.Equal(t, "robot", f.mirror.Lookup("robot/pelvis", false).Node().ParentPath())
	assert.Equal(t, int64(0), f.mirror.Stats().PendingRetries)
}

func TestAnnounce_RetryBackoffAndBudget(t *testing.T) {
	f := newFixture(t,
		frame.WithMaxRetries(2),
		frame.WithRetryBackoff(frame.ExpBackoff(10*time.Millisecond, 15*time.Millisecond)),
	)
	g := framesim.New("world")
	robot, _ := g.AddFixed(nil, "robot", frame.Identity())
	robot.SetUnderConstruction(true)
	pelvis, _ := g.AddFixed(robot, "robot/pelvis", frame.Identity())

	f.announce(t, sources(pelvis))
	require.Equal(t, 1, f.clock.PendingCount())

	f.clock.Advance(9 * time.Millisecond)
	f.settle(t)
	assert.Equal(t, uint64(1), f.mirror.Stats().Batches, "retry must wait for the backoff")

	f.clock.Advance(time.Millisecond)
	require.Eventually(t, func() bool { return f.mirror.Stats().Batches == 2 }, 5*time.Second, time.Millisecond)
	f.clock.WaitForTimers(1)

	f.clock.Advance(15 * time.Millisecond)
	require.Eventually(t, func() bool { return f.mirror.Stats().Dropped == 1 }, 5*time.Second, time.Millisecond)

	st := f.mirror.Stats()
	assert.Equal(t, uint64(3), st.Batches)
	assert.Equal(t, uint64(2), st.Retries)
	assert.Equal(t, int64(0), st.PendingRetries)
}

func TestAnnounce_RetryBudgetIsReadPerDecision(t *testing.T) {
	var budget atomic.Int64
	f := newFixture(t,
		frame.WithMaxRetries(40),
		frame.WithRetryBudget(func() int { return int(budget.Load()) }),
	)
	g := framesim.New("world")
	robot, _ := g.AddFixed(nil, "robot", frame.Identity())
	robot.SetUnderConstruction(true)
	pelvis, _ := g.AddFixed(robot, "robot/pelvis", frame.Identity())

	f.announce(t, sources(pelvis))
	assert.Equal(t, uint64(1), f.mirror.Stats().Dropped, "budget 0 drops without retrying")
	assert.Equal(t, 0, f.clock.PendingCount())

	budget.Store(1)
	f.announce(t, sources(pelvis))
	assert.Equal(t, 1, f.clock.PendingCount())
	assert.Equal(t, int64(1), f.mirror.Stats().PendingRetries)
}

func TestExpBackoff(t *testing.T) {
	b := frame.ExpBackoff(100*time.Millisecond, 500*time.Millisecond)
	assert.Equal(t, 100*time.Millisecond, b(0))
	assert.Equal(t, 200*time.Millisecond, b(1))
	assert.Equal(t, 400*time.Millisecond, b(2))
	assert.Equal(t, 500*time.Millisecond, b(3))
	assert.Equal(t, 500*time.Millisecond, b(40))
}

func TestAnnounce_MissingParentDropsOnlyThatFrame(t *testing.T) {
	f := newFixture(t)
	g := framesim.New("world")
	ghost, _ := g.AddFixed(nil, "ghost", frame.Identity())
	orphan, _ := g.AddFixed(ghost, "ghost/orphan", frame.Identity())
	sibling, _ := g.AddFixed(nil, "sibling", frame.Identity())

	f.announce(t, sources(orphan, sibling))

	assert.Nil(t, f.mirror.Lookup("ghost/orphan", false))
	assert.True(t, f.mirror.Lookup("sibling", false).IsDefined())
	assert.Equal(t, uint64(1), f.mirror.Stats().Dropped)
	assert.Equal(t, 0, f.clock.PendingCount())
}

func TestAnnounce_SkipsTransientAndUnsupported(t *testing.T) {
	f := newFixture(t, frame.WithTransientSuffixes("_transient", "_tmp"))
	g := framesim.New("world")
	_, _ = g.AddFixed(nil, "probe_transient", frame.Identity())
	_, _ = g.AddFixed(nil, "scratch_tmp", frame.Identity())
	_, _ = g.AddKind(nil, "odd", frame.Kind(9))
	_, _ = g.AddFixed(nil, "kept", frame.Identity())

	f.announce(t, append(g.Flush(), g.Root(), nil))

	assert.Equal(t, []string{"kept", "world"}, definedPaths(f.mirror))
	assert.Equal(t, uint64(1), f.mirror.Stats().Dropped)
}

type countingScalar struct {
	*framesim.Scalar
	reads atomic.Int32
}

func (c *countingScalar) Value() float64 {
	c.reads.Add(1)
	return c.Scalar.Value()
}

func TestTick_RefreshesDirtyNodeOncePerTick(t *testing.T) {
	f := newFixture(t)
	g := framesim.New("world")
	x := &countingScalar{Scalar: framesim.NewScalar(1)}
	yaw := framesim.NewScalar(0)
	_, _ = g.AddVariable(nil, "slider", frame.Inputs{
		Translation: [3]frame.Scalar{x},
		Rotation:    [4]frame.Scalar{yaw},
	})
	f.announce(t, g.Flush())

	node := f.mirror.Lookup("slider", false).Node()
	require.Equal(t, frame.KindVariable, node.Kind())
	assert.Equal(t, 1.0, node.Transform().Translation.X)
	assert.Equal(t, int32(1), x.reads.Load())
	assert.Equal(t, 0, f.mirror.Tick())

	x.Set(2)
	x.Set(3)
	yaw.Set(1)
	assert.True(t, node.Dirty())
	assert.Equal(t, 1.0, node.Transform().Translation.X, "inputs alone do not recompute")

	assert.Equal(t, 1, f.mirror.Tick())
	assert.Equal(t, 3.0, node.Transform().Translation.X)
	assert.Equal(t, int32(2), x.reads.Load())
	assert.False(t, node.Dirty())
	assert.Equal(t, 0, f.mirror.Tick())
}

func TestStartTicking(t *testing.T) {
	f := newFixture(t)
	g := framesim.New("world")
	x := framesim.NewScalar(0)
	_, _ = g.AddVariable(nil, "v", frame.Inputs{Translation: [3]frame.Scalar{x}})
	f.announce(t, g.Flush())

	h := f.mirror.StartTicking(20 * time.Millisecond)
	defer h.Cancel()

	x.Set(5)
	f.clock.Advance(20 * time.Millisecond)
	require.Eventually(t, func() bool {
		return f.mirror.Lookup("v", false).Node().Transform().Translation.X == 5
	}, 5*time.Second, time.Millisecond)
}

func TestReset_ReturnsToRootOnly(t *testing.T) {
	f := newFixture(t)
	g := framesim.New("world")
	x := framesim.NewScalar(0)
	a, _ := g.AddFixed(nil, "a", frame.Identity())
	_, _ = g.AddVariable(a, "a/v", frame.Inputs{Translation: [3]frame.Scalar{x}})
	f.announce(t, g.Flush())
	ha := f.mirror.Lookup("a", false)
	placeholder := f.mirror.Lookup("never/there", true)
	f.settle(t)
	require.Equal(t, 1, x.Subscribers())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, f.mirror.Reset(ctx))

	assert.Equal(t, []string{"world"}, definedPaths(f.mirror))
	assert.True(t, f.mirror.Root().IsDefined())
	assert.Equal(t, frame.HandleRemoved, ha.State())
	assert.Equal(t, frame.HandleRemoved, placeholder.State())
	assert.Nil(t, f.mirror.Lookup("a", false))
	assert.Equal(t, 0, x.Subscribers())
	assert.Equal(t, uint64(1), f.mirror.Snapshot().Session())

	// The next session builds fresh handles.
	f.announce(t, g.All())
	hb := f.mirror.Lookup("a", false)
	require.NotNil(t, hb)
	assert.NotSame(t, ha, hb)
	assert.True(t, hb.IsDefined())
}

func TestReset_CancelsPendingRetries(t *testing.T) {
	f := newFixture(t)
	g := framesim.New("world")
	robot, _ := g.AddFixed(nil, "robot", frame.Identity())
	robot.SetUnderConstruction(true)
	pelvis, _ := g.AddFixed(robot, "robot/pelvis", frame.Identity())
	f.announce(t, sources(pelvis))
	require.Equal(t, 1, f.clock.PendingCount())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, f.mirror.Reset(ctx))

	assert.Equal(t, 0, f.clock.PendingCount())
	assert.Equal(t, int64(0), f.mirror.Stats().PendingRetries)
}

func TestWatch(t *testing.T) {
	f := newFixture(t)
	ch, cancel := f.mirror.Watch()

	g := framesim.New("world")
	_, _ = g.AddFixed(nil, "a", frame.Identity())
	f.announce(t, g.Flush())

	select {
	case v := <-ch:
		assert.Equal(t, f.mirror.Snapshot().Version(), v)
	case <-time.After(5 * time.Second):
		t.Fatal("no version published")
	}
	cancel()
	cancel()
	_, open := <-ch
	assert.False(t, open)
}

func TestSnapshot_SubtreeAndWorldTransform(t *testing.T) {
	f := newFixture(t)
	g := framesim.New("world")
	base, _ := g.AddFixed(nil, "base", frame.Transform{Translation: frame.Vec3{X: 1}, Rotation: frame.IdentityQuat()})
	arm, _ := g.AddFixed(base, "base/arm", frame.Transform{Translation: frame.Vec3{Y: 2}, Rotation: frame.IdentityQuat()})
	_, _ = g.AddFixed(arm, "base/arm/tip", frame.Transform{Translation: frame.Vec3{Z: 3}, Rotation: frame.IdentityQuat()})
	_, _ = g.AddFixed(base, "base/cam", frame.Identity())
	f.announce(t, g.Flush())

	snap := f.mirror.Snapshot()
	var got []string
	for _, h := range snap.Subtree("base") {
		got = append(got, h.FullPath())
	}
	assert.Equal(t, []string{"base", "base/arm", "base/arm/tip", "base/cam"}, got)
	assert.Nil(t, snap.Subtree("nope"))
	assert.Len(t, snap.Children("base"), 2)

	wt, ok := snap.WorldTransform("base/arm/tip")
	require.True(t, ok)
	assert.Equal(t, frame.Vec3{X: 1, Y: 2, Z: 3}, wt.Translation)

	depths := map[string]int{}
	snap.Walk(func(h *frame.Handle, depth int) bool {
		depths[h.FullPath()] = depth
		return true
	})
	assert.Equal(t, 0, depths["world"])
	assert.Equal(t, 3, depths["base/arm/tip"])
}

func TestSnapshot_ReadersSeeConsistentTrees(t *testing.T) {
	f := newFixture(t)
	g := framesim.New("world", framesim.WithShuffle(3))

	stop := make(chan struct{})
	var readers sync.WaitGroup
	var inconsistent atomic.Value
	for i := 0; i < 4; i++ {
		readers.Add(1)
		go func() {
			defer readers.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				snap := f.mirror.Snapshot()
				for _, h := range snap.Defined() {
					n := h.Node()
					if n.ParentPath() != "" {
						if _, ok := snap.Lookup(n.ParentPath()); !ok {
							inconsistent.Store(h.FullPath())
						}
					}
					if u, ok := snap.LookupUnique(snap.UniqueName(h)); !ok || u != h {
						inconsistent.Store(h.FullPath())
					}
				}
			}
		}()
	}

	parent := g.Root()
	for batch := 0; batch < 20; batch++ {
		for i := 0; i < 5; i++ {
			p, _ := g.AddFixed(parent, fmt.Sprintf("%s/b%d_%d", parent.Path(), batch, i), frame.Identity())
			if i == 0 {
				parent = p
			}
		}
		f.mirror.Announce(g.Flush())
	}
	f.settle(t)
	close(stop)
	readers.Wait()

	assert.Nil(t, inconsistent.Load())
	assert.Equal(t, 101, f.mirror.Snapshot().Len())
}
