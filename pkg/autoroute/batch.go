package autoroute

import (
	"context"
	"errors"

	"github.com/OpenTraceLab/OpenTraceRoute/pkg/board"
	"go.uber.org/zap"
)

// BatchResult summarises a batch run.
type BatchResult struct {
	Passes int
	// Routed counts the connections inserted over all passes.
	Routed int
	// Failed counts the nets left incomplete by a failed connection, summed
	// over passes.
	Failed int
	Stats  board.Stats
}

// BatchAutorouter routes all incomplete nets in repeated passes. The ripup
// cost of pass p is the start ripup cost times p, so later passes rip up
// less.
type BatchAutorouter struct {
	engine *Engine
	logger *zap.Logger
}

// NewBatchAutorouter creates a pass driver around e.
func NewBatchAutorouter(e *Engine) *BatchAutorouter {
	return &BatchAutorouter{engine: e, logger: e.Logger()}
}

// stallLimit is the number of passes without progress after which the run
// stops.
func (a *BatchAutorouter) stallLimit() int {
	if a.engine.Settings().RipupAllowed {
		return 2
	}
	return 1
}

// Run routes b until nothing is incomplete, maxPasses is reached or passes
// stop making progress. Only context errors are returned; per-net failures
// are counted and logged.
func (a *BatchAutorouter) Run(ctx context.Context, b *board.Board, maxPasses int) (*BatchResult, error) {
	res := &BatchResult{}
	prev := b.IncompleteCount()
	stalls := 0
	for p := 1; p <= maxPasses && prev > 0; p++ {
		res.Passes = p
		for _, n := range b.Nets() {
			if err := ctx.Err(); err != nil {
				res.Stats = b.Stats()
				return res, err
			}
			if b.NetIncomplete(n.Number) == 0 {
				continue
			}
			nr, err := a.engine.RouteNet(ctx, b, n.Number, WithPass(p), WithPreferDirection(true))
			if nr != nil {
				res.Routed += nr.Connections
			}
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					res.Stats = b.Stats()
					return res, err
				}
				res.Failed++
				a.logger.Debug("net not completed",
					zap.Int("pass", p),
					zap.String("net", n.Name),
					zap.Error(err),
				)
			}
		}
		cur := b.IncompleteCount()
		a.logger.Info("autoroute pass finished",
			zap.Int("pass", p),
			zap.Int("incomplete", cur),
			zap.Int("vias", b.ViaCount()),
		)
		if cur >= prev {
			stalls++
		} else {
			stalls = 0
		}
		prev = cur
		if stalls >= a.stallLimit() {
			break
		}
	}
	res.Stats = b.Stats()
	return res, nil
}
