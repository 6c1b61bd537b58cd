package optimize

import (
	"context"
	"errors"

	"github.com/OpenTraceLab/OpenTraceRoute/pkg/autoroute"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/board"
	"go.uber.org/zap"
)

// RerouteOptimizer rips up the connection an item belongs to and routes
// the net again with a fresh engine.
type RerouteOptimizer struct {
	settings autoroute.Settings
	logger   *zap.Logger
}

// NewRerouteOptimizer returns an optimizer routing with s.
func NewRerouteOptimizer(s autoroute.Settings, logger *zap.Logger) *RerouteOptimizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RerouteOptimizer{settings: s, logger: logger}
}

// OptimizeItem implements ItemOptimizer. A failed reroute is not an error:
// it shows up as a worse score. Only context errors are returned.
func (o *RerouteOptimizer) OptimizeItem(ctx context.Context, b *board.Board, id board.ItemID, p Pass) (RouteResult, error) {
	before := ScoreOf(b)
	conn := b.ConnectionOf(id)
	if conn == nil || conn.Net <= 0 {
		return RouteResult{Before: before, After: before}, nil
	}
	for _, m := range conn.Items {
		b.RemoveItem(m)
	}

	// Each task gets its own engine: engines cache per board.
	e := autoroute.NewEngine(o.settings, autoroute.WithLogger(o.logger))
	_, err := e.RouteNet(ctx, b, conn.Net,
		autoroute.WithPass(p.Number),
		autoroute.WithRipupFactor(p.RipupFactor),
		autoroute.WithPreferDirection(p.PreferDirection),
	)
	after := ScoreOf(b)
	res := RouteResult{Improved: after.Better(before), Before: before, After: after}
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return res, err
		}
		o.logger.Debug("reroute failed",
			zap.Int("item", int(id)),
			zap.Int("net", conn.Net),
			zap.Error(err))
	}
	return res, nil
}
