package autoroute

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/OpenTraceLab/OpenTraceRoute/pkg/board"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Engine routes nets on a board.
type Engine struct {
	settings Settings
	logger   *zap.Logger

	pages *drillPages
	bound *board.Board
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine creates an engine with the given settings.
func NewEngine(s Settings, opts ...Option) *Engine {
	e := &Engine{settings: s, logger: zap.NewNop()}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Settings returns the engine settings.
func (e *Engine) Settings() Settings { return e.settings }

// Logger returns the engine logger.
func (e *Engine) Logger() *zap.Logger { return e.logger }

// RouteOption adjusts the pass values of one RouteNet call.
type RouteOption func(*Pass)

// WithPass sets the pass number, which scales the ripup cost.
func WithPass(n int) RouteOption {
	return func(p *Pass) { p.Number = n }
}

// WithRipupFactor multiplies the ripup cost.
func WithRipupFactor(f float64) RouteOption {
	return func(p *Pass) { p.RipupFactor = f }
}

// WithPreferDirection turns the per-layer preferred directions on or off.
func WithPreferDirection(on bool) RouteOption {
	return func(p *Pass) { p.PreferDirection = on }
}

// NetResult reports what RouteNet did to one net.
type NetResult struct {
	Net         int
	Connections int
	// Vias and Length describe the net's copper after routing.
	Vias       int
	Length     float64
	Ripped     []board.ItemID
	Cost       float64
	Incomplete int
	Expansions int
}

// RouteNet connects the terminal components of net one connection at a
// time, starting from the component with the lowest item ID. It stops at
// the first connection that fails and returns the partial result with the
// wrapped reason.
func (e *Engine) RouteNet(ctx context.Context, b *board.Board, net int, opts ...RouteOption) (res *NetResult, err error) {
	pass := Pass{Number: 1, PreferDirection: true}
	for _, o := range opts {
		o(&pass)
	}

	ctx, span := getTracer().Start(ctx, "autoroute.Engine.RouteNet",
		trace.WithAttributes(
			attribute.Int("net", net),
			attribute.Int("pass", pass.Number),
		),
	)
	defer span.End()
	started := time.Now()
	defer func() {
		routeNetDuration.Observe(time.Since(started).Seconds())
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "route failed")
			return
		}
		span.SetStatus(codes.Ok, "net routed")
	}()

	c, err := NewControl(b, net, e.settings, pass)
	if err != nil {
		return nil, fmt.Errorf("autoroute: net %d: %w", net, err)
	}
	e.bind(b)

	res = &NetResult{Net: net}
	defer func() {
		b.NormalizeTraces(net)
		res.Incomplete = b.NetIncomplete(net)
		for _, it := range b.NetItems(net) {
			if it.Kind == board.KindVia {
				res.Vias++
			}
			res.Length += it.Length()
		}
		span.SetAttributes(
			attribute.Int("connections", res.Connections),
			attribute.Int("incomplete", res.Incomplete),
			attribute.Int("ripped", len(res.Ripped)),
		)
	}()

	for {
		comps := b.TerminalComponents(net)
		if len(comps) <= 1 {
			return res, nil
		}
		start := itemsOf(b, comps[:1])
		dest := itemsOf(b, comps[1:])

		route, sr, err := e.routeConnection(ctx, b, c, start, dest)
		if sr != nil {
			res.Expansions += sr.Expansions
		}
		routeConnectionsTotal.WithLabelValues(resultLabel(err)).Inc()
		if err != nil {
			e.logger.Debug("connection failed",
				zap.Int("net", net),
				zap.Int("pass", pass.Number),
				zap.Error(err),
			)
			return res, fmt.Errorf("autoroute: net %d: %w", net, err)
		}
		res.Connections++
		res.Cost += route.Cost
		res.Ripped = append(res.Ripped, route.Ripped...)
		e.logger.Debug("connection routed",
			zap.Int("net", net),
			zap.Float64("cost", route.Cost),
			zap.Int("vias", len(route.Vias)),
			zap.Int("ripped", len(route.Ripped)),
		)

		if len(b.TerminalComponents(net)) >= len(comps) {
			return res, fmt.Errorf("autoroute: net %d: %w: inserted route does not join its terminals", net, ErrGeometryInsert)
		}
	}
}

// routeConnection runs the pipeline for one connection.
func (e *Engine) routeConnection(ctx context.Context, b *board.Board, c *Control, start, dest []*board.Item) (*Route, *SearchResult, error) {
	e.pages.invalidate(b.TakeChanges())
	g := BuildGraph(b, c, start, dest, e.pages)
	graphRooms.Observe(float64(len(g.Rooms)))
	if g.BlockedDrills > 0 {
		e.logger.Debug("drill candidates blocked",
			zap.Int("net", c.Net),
			zap.Int("blocked", g.BlockedDrills))
	}
	if len(g.Starts) == 0 || len(g.Targets) == 0 {
		return nil, nil, fmt.Errorf("%w: no reachable terminal", ErrSearchExhausted)
	}

	targets := make([]TargetPoint, 0, len(g.Targets))
	for _, di := range g.Targets {
		targets = append(targets, TargetPoint{At: g.Doors[di].A, Layer: g.Doors[di].Layer})
	}
	h := NewDestinationDistance(c, targets)

	sr, err := Search(ctx, g, c, h)
	if err != nil {
		return nil, nil, err
	}
	searchExpansions.Observe(float64(sr.Expansions))

	route, err := Locate(b, g, c, sr)
	if err != nil {
		return nil, sr, err
	}
	if err := insertRoute(b, c, route); err != nil {
		return route, sr, err
	}
	ripupsTotal.Add(float64(len(route.Ripped)))
	return route, sr, nil
}

// bind attaches the drill page cache to b, resetting it for a new board.
func (e *Engine) bind(b *board.Board) {
	if e.bound == b && e.pages != nil {
		return
	}
	e.bound = b
	e.pages = newDrillPages(b.Bounds())
	b.TakeChanges()
}

func itemsOf(b *board.Board, groups [][]board.ItemID) []*board.Item {
	var out []*board.Item
	for _, g := range groups {
		for _, id := range g {
			if it := b.Item(id); it != nil {
				out = append(out, it)
			}
		}
	}
	return out
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "routed"
	case errors.Is(err, ErrSearchExhausted):
		return "exhausted"
	case errors.Is(err, ErrNoViaCandidate):
		return "no_via"
	case errors.Is(err, ErrGeometryInsert):
		return "insert_failed"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "other"
	}
}
