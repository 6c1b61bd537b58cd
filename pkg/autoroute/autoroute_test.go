package autoroute

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/OpenTraceLab/OpenTraceRoute/pkg/board"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"
)

func v(x, y float64) r2.Vec { return r2.Vec{X: x, Y: y} }

func point(p r2.Vec) r2.Box { return r2.Box{Min: p, Max: p} }

var testVia = board.ViaInfo{Name: "v0.6", Radius: 0.3, Drill: 0.3}

// newTestBoard returns a 50x50 board with nets 1 and 2 and a through via
// in the default net class.
func newTestBoard(layers int) *board.Board {
	ls := make([]board.Layer, layers)
	for i := range ls {
		ls[i] = board.Layer{Name: string(rune('A' + i)), Signal: true}
	}
	b := board.New(r2.NewBox(0, 0, 50, 50), ls)
	b.AddNet(board.Net{Number: 1, Name: "N1"})
	b.AddNet(board.Net{Number: 2, Name: "N2"})
	via := testVia
	via.LastLayer = layers - 1
	b.SetNetClasses([]board.NetClass{{Name: "default", TraceHalfWidth: 0.125, Vias: []board.ViaInfo{via}}})
	return b
}

func addSMD(b *board.Board, net int, at r2.Vec, radius float64) *board.Item {
	return b.AddPin(board.PinSpec{Center: at, Radius: radius, FirstLayer: 0, LastLayer: 0, Net: net, SMD: true})
}

// wallBoard has a keepout across the full height of layer 0 between the
// two pins of net 1.
func wallBoard(start r2.Vec) (*board.Board, *board.Item, *board.Item) {
	b := newTestBoard(4)
	b.AddKeepout(r2.NewBox(24, 0, 26, 50), 0, 0)
	p1 := addSMD(b, 1, start, 0.5)
	p2 := addSMD(b, 1, v(40, 25), 0.5)
	return b, p1, p2
}

func traces(b *board.Board, net int) []*board.Item {
	var out []*board.Item
	for _, it := range b.NetItems(net) {
		if it.Kind == board.KindTrace {
			out = append(out, it)
		}
	}
	return out
}

func TestDecompose(t *testing.T) {
	d := decompose(r2.NewBox(0, 0, 10, 10), []r2.Box{r2.NewBox(2, 2, 4, 4)})

	var area float64
	for _, r := range d.rects {
		s := r.Size()
		area += s.X * s.Y
	}
	assert.InDelta(t, 96, area, 1e-9)
	assert.Len(t, d.rects, 4)
	assert.Len(t, d.adjacent(), 4)
	assert.Len(t, d.around(r2.NewBox(2, 2, 4, 4)), 4)

	assert.Equal(t, -1, d.rectAt(v(3, 3)))
	assert.GreaterOrEqual(t, d.rectAt(v(1, 1)), 0)
	assert.GreaterOrEqual(t, d.rectAt(v(2, 3)), 0, "boundary points resolve to the free side")
	assert.Equal(t, -1, d.rectAt(v(11, 3)))
}

func TestNewControl(t *testing.T) {
	b := newTestBoard(2)
	s := DefaultSettings(2)

	c, err := NewControl(b, 1, s, Pass{Number: 2, PreferDirection: true})
	require.NoError(t, err)
	assert.Equal(t, 0.125, c.TraceHalfWidth[0])
	assert.InDelta(t, 0.325, c.CompensatedHalfWidth[0], 1e-12)
	assert.InDelta(t, 15, c.ViaCost, 1e-12)
	assert.InDelta(t, 12, c.CheapViaCost, 1e-12)
	assert.InDelta(t, 200, c.RipupCosts, 1e-12)
	assert.InDelta(t, 6.7082039, c.MoveCost(0, v(0, 0), v(3, 4)), 1e-6)
	assert.InDelta(t, 6.0207973, c.MoveCost(1, v(0, 0), v(3, 4)), 1e-6)

	flat, err := NewControl(b, 1, s, Pass{Number: 1})
	require.NoError(t, err)
	assert.InDelta(t, 5, flat.MoveCost(0, v(0, 0), v(3, 4)), 1e-9)
	assert.InDelta(t, 5, flat.MoveCost(1, v(0, 0), v(3, 4)), 1e-9)
}

func TestNewControlInvalidCosts(t *testing.T) {
	b := newTestBoard(2)
	tests := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"zero preferred cost", func(s *Settings) { s.Layers[0].PreferredCost = 0 }},
		{"negative against cost", func(s *Settings) { s.Layers[1].AgainstCost = -1 }},
		{"zero via costs", func(s *Settings) { s.ViaCosts = 0 }},
		{"zero ripup costs", func(s *Settings) { s.StartRipupCosts = 0 }},
		{"no active layer", func(s *Settings) { s.Layers[0].Active = false; s.Layers[1].Active = false }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings(2)
			tt.mutate(&s)
			_, err := NewControl(b, 1, s, Pass{Number: 1})
			assert.ErrorIs(t, err, ErrInvalidCosts)
		})
	}
}

func TestDestinationDistance(t *testing.T) {
	b := newTestBoard(2)
	c, err := NewControl(b, 1, DefaultSettings(2), Pass{Number: 1, PreferDirection: true})
	require.NoError(t, err)
	h := NewDestinationDistance(c, []TargetPoint{{At: v(10, 0), Layer: 0}})

	assert.InDelta(t, 10, h.Calculate(point(v(0, 0)), 0), 1e-9, "direct on the target side")
	assert.InDelta(t, 25, h.Calculate(point(v(0, 0)), 1), 1e-9, "one via from the other side")
	assert.InDelta(t, 22, h.CalculateCheap(point(v(0, 0)), 1), 1e-9)
	assert.InDelta(t, 0, h.Calculate(point(v(10, 0)), 0), 1e-9)

	s := DefaultSettings(2)
	s.Layers[1].Active = false
	single, err := NewControl(b, 1, s, Pass{Number: 1, PreferDirection: true})
	require.NoError(t, err)
	assert.False(t, single.ViasAllowed)
	hs := NewDestinationDistance(single, []TargetPoint{{At: v(10, 0), Layer: 0}})
	assert.InDelta(t, 15, hs.Calculate(point(v(10, 10)), 0), 1e-9, "against the preferred direction")
}

func TestFunnel(t *testing.T) {
	tests := []struct {
		name    string
		portals []portal
		want    []r2.Vec
	}{
		{
			name:    "straight through",
			portals: []portal{{left: v(5, 1), right: v(5, -1)}},
			want:    []r2.Vec{v(0, 0), v(10, 0)},
		},
		{
			name:    "bend at the lower corner",
			portals: []portal{{left: v(5, 6), right: v(5, 5)}},
			want:    []r2.Vec{v(0, 0), v(5, 5), v(10, 0)},
		},
		{
			name:    "no portals",
			portals: nil,
			want:    []r2.Vec{v(0, 0), v(10, 0)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, funnel(v(0, 0), v(10, 0), tt.portals))
		})
	}
}

func TestElbows(t *testing.T) {
	e1, e2 := elbows(Angle45, v(0, 0), v(10, 4))
	assert.Equal(t, v(4, 4), e1)
	assert.Equal(t, v(6, 0), e2)
	assert.True(t, conforms(Angle45, v(0, 0), e1))
	assert.True(t, conforms(Angle45, e1, v(10, 4)))

	e1, e2 = elbows(Angle90, v(0, 0), v(10, 4))
	assert.Equal(t, v(10, 0), e1)
	assert.Equal(t, v(0, 4), e2)
	assert.False(t, conforms(Angle90, v(0, 0), v(1, 1)))
}

func TestDrillPages(t *testing.T) {
	b := newTestBoard(2)
	b.AddKeepout(r2.NewBox(20, 20, 30, 30), 0, 1)
	c, err := NewControl(b, 1, DefaultSettings(2), Pass{Number: 1})
	require.NoError(t, err)

	pages := newDrillPages(b.Bounds())
	drills := pages.drills(b, c, 0, 1)
	assert.NotEmpty(t, drills)
	assert.Equal(t, 64, pages.cache.Len())
	for _, d := range drills {
		assert.NoError(t, pages.drillAt(b, c, d, 0, 1))
	}

	assert.ErrorIs(t, pages.drillAt(b, c, v(25, 25), 0, 1), ErrDrillBlocked)
	assert.NoError(t, pages.drillAt(b, c, v(5, 5), 0, 1))

	pages.invalidate([]r2.Box{r2.NewBox(1, 1, 2, 2)})
	assert.Equal(t, 63, pages.cache.Len())
}

func TestRouteNetStraight(t *testing.T) {
	b := newTestBoard(2)
	addSMD(b, 1, v(10, 25), 0.5)
	addSMD(b, 1, v(40, 25), 0.5)

	res, err := NewEngine(DefaultSettings(2)).RouteNet(context.Background(), b, 1)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Connections)
	assert.Equal(t, 0, res.Incomplete)
	assert.Equal(t, 0, res.Vias)
	assert.InDelta(t, 30, res.Length, 1e-9)
	assert.InDelta(t, 30, res.Cost, 1e-9)
	tr := traces(b, 1)
	require.Len(t, tr, 1)
	assert.Equal(t, v(10, 25), tr[0].From)
	assert.Equal(t, v(40, 25), tr[0].To)
}

func TestSearchCostMatchesHeuristicOnFreeBoard(t *testing.T) {
	b := newTestBoard(2)
	p1 := addSMD(b, 1, v(10, 25), 0.5)
	p2 := addSMD(b, 1, v(40, 25), 0.5)
	c, err := NewControl(b, 1, DefaultSettings(2), Pass{Number: 1, PreferDirection: true})
	require.NoError(t, err)

	g := BuildGraph(b, c, []*board.Item{p1}, []*board.Item{p2}, nil)
	h := NewDestinationDistance(c, []TargetPoint{{At: p2.Center, Layer: 0}})
	sr, err := Search(context.Background(), g, c, h)
	require.NoError(t, err)
	assert.InDelta(t, h.Calculate(point(p1.Center), 0), sr.Cost, 1e-6)
}

func TestRouteNetThroughWallUsesTwoVias(t *testing.T) {
	b, p1, p2 := wallBoard(v(10, 25))
	s := DefaultSettings(4)

	res, err := NewEngine(s).RouteNet(context.Background(), b, 1)
	require.NoError(t, err)

	assert.Equal(t, 0, res.Incomplete)
	assert.Equal(t, 2, res.Vias)
	assert.Equal(t, 2, b.ViaCount())

	c, err := NewControl(b, 1, s, Pass{Number: 1, PreferDirection: true})
	require.NoError(t, err)
	h := NewDestinationDistance(c, []TargetPoint{{At: p2.Center, Layer: 0}})
	assert.GreaterOrEqual(t, res.Cost, h.Calculate(point(p1.Center), 0))

	// The wall forces the leave-and-return class: two vias plus the
	// cheapest-factor distance, and no room for a second detour pair.
	gap := r2.Sub(p2.Center, p1.Center)
	twoVia := 2*c.ViaCost + math.Max(c.MinHorizontalCost*math.Abs(gap.X), c.MinVerticalCost*math.Abs(gap.Y))
	assert.GreaterOrEqual(t, res.Cost, twoVia-1e-9)
	assert.Less(t, res.Cost, twoVia+2*c.ViaCost)
}

func TestHeuristicIsAdmissible(t *testing.T) {
	starts := []r2.Vec{v(10, 25), v(5, 5), v(20, 45), v(45, 10), v(30, 40)}
	for _, start := range starts {
		b, p1, p2 := wallBoard(start)
		c, err := NewControl(b, 1, DefaultSettings(4), Pass{Number: 1, PreferDirection: true})
		require.NoError(t, err)

		g := BuildGraph(b, c, []*board.Item{p1}, []*board.Item{p2}, nil)
		h := NewDestinationDistance(c, []TargetPoint{{At: p2.Center, Layer: 0}})
		sr, err := Search(context.Background(), g, c, h)
		require.NoError(t, err, "start %v", start)
		assert.LessOrEqual(t, h.Calculate(point(start), 0), sr.Cost+1e-9, "start %v", start)
	}
}

func TestRouteNetIsDeterministic(t *testing.T) {
	base, _, _ := wallBoard(v(10, 25))
	geometryOf := func() [][2]r2.Vec {
		b := base.Clone()
		_, err := NewEngine(DefaultSettings(4)).RouteNet(context.Background(), b, 1)
		require.NoError(t, err)
		var out [][2]r2.Vec
		for _, it := range b.NetItems(1) {
			switch it.Kind {
			case board.KindTrace:
				out = append(out, [2]r2.Vec{it.From, it.To})
			case board.KindVia:
				out = append(out, [2]r2.Vec{it.Center, it.Center})
			}
		}
		return out
	}
	first := geometryOf()
	assert.NotEmpty(t, first)
	assert.Equal(t, first, geometryOf())
}

func TestRouteNetRipsUpBlockingTrace(t *testing.T) {
	build := func() (*board.Board, *board.Item) {
		b := newTestBoard(2)
		b.SetNetClasses([]board.NetClass{{Name: "default", TraceHalfWidth: 0.125}})
		addSMD(b, 1, v(10, 25), 0.5)
		addSMD(b, 1, v(40, 25), 0.5)
		wall := b.AddTrace(v(25, 0.5), v(25, 49.5), 0.125, 0, []int{2}, 0, board.Unfixed)
		return b, wall
	}

	t.Run("ripup allowed", func(t *testing.T) {
		b, wall := build()
		res, err := NewEngine(DefaultSettings(2)).RouteNet(context.Background(), b, 1)
		require.NoError(t, err)
		assert.Equal(t, []board.ItemID{wall.ID}, res.Ripped)
		assert.Nil(t, b.Item(wall.ID))
		assert.Equal(t, 0, res.Incomplete)
		assert.Greater(t, res.Cost, 100.0)
	})

	t.Run("ripup forbidden", func(t *testing.T) {
		b, wall := build()
		s := DefaultSettings(2)
		s.RipupAllowed = false
		res, err := NewEngine(s).RouteNet(context.Background(), b, 1)
		assert.ErrorIs(t, err, ErrSearchExhausted)
		require.NotNil(t, res)
		assert.Equal(t, 1, res.Incomplete)
		assert.NotNil(t, b.Item(wall.ID))
	})
}

func TestRouteNetNeckDown(t *testing.T) {
	b := newTestBoard(2)
	addSMD(b, 1, v(10, 25), 0.05)
	addSMD(b, 1, v(40, 25), 0.05)

	_, err := NewEngine(DefaultSettings(2)).RouteNet(context.Background(), b, 1)
	require.NoError(t, err)

	tr := traces(b, 1)
	require.Len(t, tr, 3)
	widths := map[float64]int{}
	for _, it := range tr {
		widths[it.HalfWidth]++
	}
	assert.Equal(t, map[float64]int{0.05: 2, 0.125: 1}, widths)
	assert.Equal(t, 0, b.NetIncomplete(1))
}

func TestRouteNetCanceled(t *testing.T) {
	b := newTestBoard(2)
	addSMD(b, 1, v(10, 25), 0.5)
	addSMD(b, 1, v(40, 25), 0.5)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewEngine(DefaultSettings(2)).RouteNet(ctx, b, 1)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 1, b.NetIncomplete(1))
}

func TestBatchAutorouter(t *testing.T) {
	b := newTestBoard(2)
	addSMD(b, 1, v(10, 10), 0.5)
	addSMD(b, 1, v(40, 10), 0.5)
	addSMD(b, 2, v(10, 40), 0.5)
	addSMD(b, 2, v(40, 40), 0.5)

	res, err := NewBatchAutorouter(NewEngine(DefaultSettings(2))).Run(context.Background(), b, 5)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Passes)
	assert.Equal(t, 2, res.Routed)
	assert.Equal(t, 0, res.Failed)
	assert.Equal(t, 0, res.Stats.Incomplete)
	assert.InDelta(t, 60, res.Stats.TraceLength, 1e-9)
}

func TestParseAngleRestriction(t *testing.T) {
	for in, want := range map[string]AngleRestriction{"none": AngleFree, "45": Angle45, "90": Angle90} {
		got, err := ParseAngleRestriction(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
		assert.Equal(t, in, got.String())
	}
	_, err := ParseAngleRestriction("30")
	assert.Error(t, err)
}

func TestInsertRouteRollsBackFailingTail(t *testing.T) {
	b := newTestBoard(2)
	b.AddKeepout(r2.NewBox(30, 0, 32, 50), 0, 0)
	c, err := NewControl(b, 1, DefaultSettings(2), Pass{Number: 1})
	require.NoError(t, err)

	t.Run("straight run", func(t *testing.T) {
		b := b.Clone()
		route := &Route{Runs: []Run{{Layer: 0, Corners: []r2.Vec{v(5, 25), v(45, 25)}}}}
		err := insertRoute(b, c, route)
		assert.ErrorIs(t, err, ErrGeometryInsert)
		assert.Empty(t, traces(b, 1))
	})

	t.Run("clean corners stay", func(t *testing.T) {
		b := b.Clone()
		route := &Route{Runs: []Run{{Layer: 0, Corners: []r2.Vec{v(5, 10), v(20, 10), v(20, 25), v(45, 25)}}}}
		err := insertRoute(b, c, route)
		assert.ErrorIs(t, err, ErrGeometryInsert)
		tr := traces(b, 1)
		require.Len(t, tr, 2)
		assert.Equal(t, [2]r2.Vec{v(5, 10), v(20, 10)}, [2]r2.Vec{tr[0].From, tr[0].To})
		assert.Equal(t, [2]r2.Vec{v(20, 10), v(20, 25)}, [2]r2.Vec{tr[1].From, tr[1].To})
	})
}

func TestCleanPrefix(t *testing.T) {
	corners := []r2.Vec{v(0, 0), v(10, 0), v(10, 10)}
	assert.Equal(t, corners[:1], cleanPrefix(corners, v(4, 0)))
	assert.Equal(t, corners[:2], cleanPrefix(corners, v(10, 0)))
	assert.Equal(t, corners[:2], cleanPrefix(corners, v(10, 3)))
	assert.Equal(t, corners[:1], cleanPrefix(corners, v(0, 0)))
}

func TestLocateWithoutViaCandidate(t *testing.T) {
	b := newTestBoard(2)
	b.AddKeepout(r2.NewBox(19, 9, 21, 11), 1, 1)
	c, err := NewControl(b, 1, DefaultSettings(2), Pass{Number: 1})
	require.NoError(t, err)

	sr := &SearchResult{Steps: []Step{
		{At: v(10, 10), Layer: 0, Door: -1, Section: -1, Drill: -1, Room: -1},
		{At: v(20, 10), Layer: 0, Door: -1, Section: -1, Drill: 0, Room: -1},
		{At: v(20, 10), Layer: 1, Door: -1, Section: -1, Drill: 0, Room: -1},
		{At: v(30, 10), Layer: 1, Door: -1, Section: -1, Drill: -1, Room: -1},
	}}
	_, err = Locate(b, &Graph{Control: c}, c, sr)
	assert.ErrorIs(t, err, ErrNoViaCandidate)

	free := newTestBoard(2)
	route, err := Locate(free, &Graph{Control: c}, c, sr)
	require.NoError(t, err)
	require.Len(t, route.Vias, 1)
	assert.Equal(t, testVia.Name, route.Vias[0].Info.Name)
	assert.Len(t, route.Runs, 2)
}

func TestRouteNetAngleRestriction(t *testing.T) {
	for _, r := range []AngleRestriction{Angle45, Angle90} {
		t.Run(r.String(), func(t *testing.T) {
			b := newTestBoard(2)
			addSMD(b, 1, v(10, 10), 0.5)
			addSMD(b, 1, v(40, 30), 0.5)
			s := DefaultSettings(2)
			s.Restriction = r

			res, err := NewEngine(s).RouteNet(context.Background(), b, 1)
			require.NoError(t, err)
			assert.Equal(t, 0, res.Incomplete)

			tr := traces(b, 1)
			require.NotEmpty(t, tr)
			for _, it := range tr {
				assert.True(t, conforms(r, it.From, it.To), "segment %v -> %v", it.From, it.To)
			}
		})
	}
}

func TestAddDrillNeedsTwoLayers(t *testing.T) {
	b := newTestBoard(2)
	b.AddKeepout(r2.NewBox(20, 20, 30, 30), 1, 1)
	p1 := addSMD(b, 1, v(5, 5), 0.5)
	p2 := addSMD(b, 1, v(45, 5), 0.5)
	c, err := NewControl(b, 1, DefaultSettings(2), Pass{Number: 1})
	require.NoError(t, err)

	g := BuildGraph(b, c, []*board.Item{p1}, []*board.Item{p2}, nil)
	drills := len(g.Drills)
	assert.ErrorIs(t, g.addDrill(v(25, 25), 0, 1), ErrDrillBlocked)
	assert.Len(t, g.Drills, drills)
	assert.NoError(t, g.addDrill(v(10, 40), 0, 1))
	assert.Len(t, g.Drills, drills+1)
}
