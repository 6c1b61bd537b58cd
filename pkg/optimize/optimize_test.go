package optimize

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/OpenTraceLab/OpenTraceRoute/pkg/autoroute"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/board"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"
)

var fixedVia = board.ViaInfo{Name: "fixed", Radius: 0.3, FirstLayer: 0, LastLayer: 1}

// newTaskBoard returns a board with ten fixed vias and n unfixed traces,
// each trace its own connection on its own net.
func newTaskBoard(n int) (*board.Board, []board.ItemID) {
	b := board.New(r2.Box{Max: r2.Vec{X: 100, Y: 100}}, []board.Layer{
		{Name: "F.Cu", Signal: true},
		{Name: "B.Cu", Signal: true},
	})
	b.AddNet(board.Net{Number: 99, Name: "FIX"})
	for i := 0; i < 10; i++ {
		b.AddVia(fixedVia, r2.Vec{X: float64(5 + 5*i), Y: 95}, []int{99}, 0, board.UserFixed)
	}
	var ids []board.ItemID
	for i := 0; i < n; i++ {
		net := i + 1
		b.AddNet(board.Net{Number: net})
		y := float64(5 + 4*i)
		t := b.AddTrace(r2.Vec{X: 5, Y: y}, r2.Vec{X: 15, Y: y}, 0.125, 0, []int{net}, 0, board.Unfixed)
		ids = append(ids, t.ID)
	}
	return b, ids
}

// fakeOptimizer removes the item from its clone and reports the via count
// configured for it.
type fakeOptimizer struct {
	mu      sync.Mutex
	vias    map[board.ItemID]int
	panicOn board.ItemID
	block   board.ItemID
	started chan struct{}
	release chan struct{}
	factors []float64
	calls   int
}

func (f *fakeOptimizer) OptimizeItem(ctx context.Context, b *board.Board, id board.ItemID, p Pass) (RouteResult, error) {
	f.mu.Lock()
	f.factors = append(f.factors, p.RipupFactor)
	f.calls++
	v, ok := f.vias[id]
	f.mu.Unlock()

	if f.panicOn != 0 && id == f.panicOn {
		panic("corrupt board")
	}
	if f.block != 0 && id == f.block {
		close(f.started)
		<-f.release
	}
	before := ScoreOf(b)
	if !ok {
		return RouteResult{Before: before, After: before}, nil
	}
	b.RemoveItem(id)
	after := Score{Vias: v}
	return RouteResult{Improved: true, Before: before, After: after}, nil
}

func remaining(b *board.Board, ids []board.ItemID) []board.ItemID {
	var out []board.ItemID
	for _, id := range ids {
		if b.Item(id) != nil {
			out = append(out, id)
		}
	}
	return out
}

func without(ids []board.ItemID, drop ...board.ItemID) []board.ItemID {
	var out []board.ItemID
	for _, id := range ids {
		keep := true
		for _, d := range drop {
			if id == d {
				keep = false
			}
		}
		if keep {
			out = append(out, id)
		}
	}
	return out
}

func permutations(a []int) [][]int {
	if len(a) <= 1 {
		return [][]int{append([]int(nil), a...)}
	}
	var out [][]int
	for i := range a {
		rest := append(append([]int(nil), a[:i]...), a[i+1:]...)
		for _, p := range permutations(rest) {
			out = append(out, append([]int{a[i]}, p...))
		}
	}
	return out
}

func TestScoreBetter(t *testing.T) {
	base := Score{Incomplete: 1, Vias: 4, Length: 100}
	tests := []struct {
		name  string
		score Score
		want  bool
	}{
		{"fewer incomplete wins over vias", Score{Incomplete: 0, Vias: 9, Length: 500}, true},
		{"more incomplete loses", Score{Incomplete: 2, Vias: 0, Length: 1}, false},
		{"fewer vias", Score{Incomplete: 1, Vias: 3, Length: 200}, true},
		{"shorter", Score{Incomplete: 1, Vias: 4, Length: 99}, true},
		{"within tolerance", Score{Incomplete: 1, Vias: 4, Length: 100 - lengthTolerance/2}, false},
		{"equal", base, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.score.Better(base))
		})
	}
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("global")
	require.NoError(t, err)
	assert.Equal(t, Global, s)
	s, err = ParseStrategy("")
	require.NoError(t, err)
	assert.Equal(t, Greedy, s)
	_, err = ParseStrategy("best")
	assert.Error(t, err)
}

func TestArbitrationPicksFewestViasInAnyOrder(t *testing.T) {
	for _, perm := range permutations([]int{5, 3, 3, 2}) {
		b, ids := newTaskBoard(4)
		f := &fakeOptimizer{vias: map[board.ItemID]int{}}
		var winner board.ItemID
		for i, v := range perm {
			f.vias[ids[i]] = v
			if v == 2 {
				winner = ids[i]
			}
		}
		s := NewScheduler(b, WithThreads(4), WithStrategy(Global), WithOptimizer(f))

		improved, err := s.OptimizePass(context.Background(), 1, true)
		require.NoError(t, err)
		assert.True(t, improved)
		assert.Equal(t, without(ids, winner), remaining(s.Board(), ids), "order %v", perm)
		assert.Equal(t, StateComplete, s.State())
	}
}

func TestArbitrationTieKeepsIncumbent(t *testing.T) {
	b, ids := newTaskBoard(4)
	f := &fakeOptimizer{vias: map[board.ItemID]int{ids[0]: 4, ids[1]: 3, ids[2]: 3, ids[3]: 5}}
	s := NewScheduler(b, WithThreads(1), WithStrategy(Global), WithOptimizer(f))

	improved, err := s.OptimizePass(context.Background(), 1, true)
	require.NoError(t, err)
	assert.True(t, improved)
	assert.Equal(t, without(ids, ids[1]), remaining(s.Board(), ids))
}

func TestGreedyPromotesEveryWinner(t *testing.T) {
	b, ids := newTaskBoard(4)
	f := &fakeOptimizer{vias: map[board.ItemID]int{ids[0]: 5, ids[1]: 3, ids[2]: 3, ids[3]: 2}}
	s := NewScheduler(b, WithThreads(1), WithStrategy(Greedy), WithOptimizer(f))

	_, err := s.OptimizePass(context.Background(), 1, true)
	require.NoError(t, err)
	// Each task cloned the master left by the previous winner.
	assert.Equal(t, []board.ItemID{ids[2]}, remaining(s.Board(), ids))
}

func TestConcurrentPassMatchesSequentialReplay(t *testing.T) {
	vias := []int{9, 7, 8, 3, 6, 5, 4, 10, 2, 11}
	run := func(threads int) []board.ItemID {
		b, ids := newTaskBoard(len(vias))
		f := &fakeOptimizer{vias: map[board.ItemID]int{}}
		for i, v := range vias {
			f.vias[ids[i]] = v
		}
		s := NewScheduler(b, WithThreads(threads), WithStrategy(Global), WithOptimizer(f))
		_, err := s.OptimizePass(context.Background(), 1, true)
		require.NoError(t, err)
		scheduled, finished := s.Progress()
		assert.EqualValues(t, len(vias), scheduled)
		assert.EqualValues(t, len(vias), finished)
		return remaining(s.Board(), ids)
	}

	sequential := run(1)
	assert.Len(t, sequential, len(vias)-1)
	for i := 0; i < 5; i++ {
		assert.Equal(t, sequential, run(4))
	}
}

func TestTaskPanicIsContained(t *testing.T) {
	b, ids := newTaskBoard(3)
	f := &fakeOptimizer{
		vias:    map[board.ItemID]int{ids[0]: 6, ids[2]: 4},
		panicOn: ids[1],
	}
	s := NewScheduler(b, WithThreads(2), WithOptimizer(f))

	improved, err := s.OptimizePass(context.Background(), 1, true)
	require.NoError(t, err)
	assert.True(t, improved)
	assert.EqualValues(t, 1, s.Faults())
	scheduled, finished := s.Progress()
	assert.EqualValues(t, 3, scheduled)
	assert.EqualValues(t, 3, finished)
	assert.NotNil(t, s.Board().Item(ids[1]))
	assert.Nil(t, s.Board().Item(ids[2]))
}

func TestCancelIgnoresLateResults(t *testing.T) {
	b, ids := newTaskBoard(3)
	f := &fakeOptimizer{
		vias:    map[board.ItemID]int{ids[0]: 1},
		block:   ids[0],
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	s := NewScheduler(b, WithThreads(1), WithOptimizer(f), WithAcquireInterval(time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-f.started
		cancel()
	}()
	improved, err := s.OptimizePass(ctx, 1, true)
	require.NoError(t, err)
	assert.False(t, improved)
	assert.True(t, s.IncreasedRipup(), "a canceled pass does not relax ripup costs")

	close(f.release)
	assert.Eventually(t, func() bool {
		_, finished := s.Progress()
		return finished == 1
	}, time.Second, time.Millisecond)
	assert.Equal(t, ids, remaining(s.Board(), ids))
	scheduled, _ := s.Progress()
	assert.EqualValues(t, 1, scheduled)
}

// passGatedOptimizer blocks its pass 1 call until pass 2 is running, then
// lets pass 1 report a perfect result. Pass 2 calls wait until that result
// has been arbitrated and report no change.
type passGatedOptimizer struct {
	started  chan struct{}
	release  chan struct{}
	once     sync.Once
	arbitrated func() bool
}

func (o *passGatedOptimizer) OptimizeItem(ctx context.Context, b *board.Board, id board.ItemID, p Pass) (RouteResult, error) {
	before := ScoreOf(b)
	if p.Number == 1 {
		close(o.started)
		<-o.release
		b.RemoveItem(id)
		return RouteResult{Improved: true, Before: before, After: Score{}}, nil
	}
	o.once.Do(func() { close(o.release) })
	for !o.arbitrated() {
		time.Sleep(time.Millisecond)
	}
	return RouteResult{Before: before, After: before}, nil
}

func TestAbandonedTaskIsIgnoredByNextPass(t *testing.T) {
	b, ids := newTaskBoard(3)
	o := &passGatedOptimizer{started: make(chan struct{}), release: make(chan struct{})}
	s := NewScheduler(b, WithThreads(1), WithOptimizer(o), WithAcquireInterval(time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-o.started
		cancel()
	}()
	improved, err := s.OptimizePass(ctx, 1, true)
	require.NoError(t, err)
	assert.False(t, improved)

	first := s.current.Load()
	o.arbitrated = func() bool { return first.finished.Load() == 1 }

	_, err = s.OptimizePass(context.Background(), 2, true)
	require.NoError(t, err)

	assert.EqualValues(t, 1, first.finished.Load())
	assert.Equal(t, ids, remaining(s.Board(), ids))
	scheduled, finished := s.Progress()
	assert.EqualValues(t, 3, scheduled)
	assert.EqualValues(t, 3, finished)
}

func TestRipupRelaxation(t *testing.T) {
	b, _ := newTaskBoard(2)
	f := &fakeOptimizer{vias: map[board.ItemID]int{}}
	s := NewScheduler(b, WithThreads(2), WithOptimizer(f))
	require.True(t, s.IncreasedRipup())

	improved, err := s.OptimizePass(context.Background(), 1, true)
	require.NoError(t, err)
	assert.True(t, improved)
	assert.False(t, s.IncreasedRipup())

	improved, err = s.OptimizePass(context.Background(), 2, true)
	require.NoError(t, err)
	assert.False(t, improved)

	assert.Equal(t, []float64{10, 10, 1, 1}, f.factors)
}

func TestSchedulerWithoutOptimizer(t *testing.T) {
	b, _ := newTaskBoard(1)
	_, err := NewScheduler(b).OptimizePass(context.Background(), 1, true)
	assert.Error(t, err)
}

func TestRerouteOptimizerShortensDetour(t *testing.T) {
	b := board.New(r2.Box{Max: r2.Vec{X: 50, Y: 50}}, []board.Layer{
		{Name: "F.Cu", Signal: true},
		{Name: "B.Cu", Signal: true},
	})
	b.AddNet(board.Net{Number: 1, Name: "SIG"})
	for _, p := range []r2.Vec{{X: 10, Y: 25}, {X: 40, Y: 25}} {
		b.AddPin(board.PinSpec{Center: p, Radius: 0.5, FirstLayer: 0, LastLayer: 1, Net: 1})
	}
	corners := []r2.Vec{{X: 10, Y: 25}, {X: 10, Y: 40}, {X: 40, Y: 40}, {X: 40, Y: 25}}
	for i := 1; i < len(corners); i++ {
		b.AddTrace(corners[i-1], corners[i], 0.125, 0, []int{1}, 0, board.Unfixed)
	}
	require.Equal(t, 0, b.IncompleteCount())
	require.InDelta(t, 60, b.TraceLength(), 1e-9)

	opt := NewRerouteOptimizer(autoroute.DefaultSettings(2), nil)
	s := NewScheduler(b, WithThreads(2), WithOptimizer(opt))
	improved, err := s.OptimizePass(context.Background(), 1, true)
	require.NoError(t, err)
	assert.True(t, improved)

	got := s.Board()
	assert.Equal(t, 0, got.IncompleteCount())
	assert.Equal(t, 0, got.ViaCount())
	assert.InDelta(t, 30, got.TraceLength(), 1e-6)
	// The original board is never modified.
	assert.InDelta(t, 60, b.TraceLength(), 1e-9)
}
