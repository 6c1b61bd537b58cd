package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/OpenTraceLab/OpenTraceRoute/pkg/autoroute"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/board"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/kicad/pcb"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/optimize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	routeRules    string
	routeOut      string
	routePasses   int
	routeOptimize int
	routeThreads  int
)

var routeCmd = &cobra.Command{
	Use:   "route <board_file>",
	Short: "Autoroute a board",
	Long: `Routes every incomplete net of a KiCad board in batch passes, then
optionally runs optimization passes that reroute connections to remove vias
and shorten traces. The new traces and vias are written as KiCad elements.

Interrupting the command (Ctrl-C) stops routing and still writes what was
routed so far.`,
	Args: cobra.ExactArgs(1),
	RunE: runRoute,
}

func init() {
	rootCmd.AddCommand(routeCmd)
	routeCmd.Flags().StringVarP(&routeRules, "rules", "r", "", "design rules file")
	routeCmd.Flags().StringVarP(&routeOut, "out", "o", "", "output file for routes (default: stdout)")
	routeCmd.Flags().IntVarP(&routePasses, "passes", "p", 0, "maximum batch passes (overrides config)")
	routeCmd.Flags().IntVar(&routeOptimize, "optimize", -1, "optimization passes (overrides config)")
	routeCmd.Flags().IntVarP(&routeThreads, "threads", "t", 0, "optimizer threads (overrides config)")
}

func runRoute(cmd *cobra.Command, args []string) error {
	if routePasses > 0 {
		cfg.MaxPasses = routePasses
	}
	if routeOptimize >= 0 {
		cfg.OptimizePasses = routeOptimize
	}
	if routeThreads > 0 {
		cfg.Threads = routeThreads
	}

	parsed, err := pcb.ParseFile(args[0])
	if err != nil {
		return fmt.Errorf("error parsing board: %w", err)
	}
	rs, err := loadRules(routeRules)
	if err != nil {
		return err
	}
	routing, err := parsed.RoutingBoard(rs)
	if err != nil {
		return err
	}
	rb := routing.Board
	settings := cfg.Settings(routing.Layers)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	logger.Info("routing",
		zap.String("board", args[0]),
		zap.Int("layers", rb.LayerCount()),
		zap.Int("incomplete", rb.IncompleteCount()),
		zap.Int("max_passes", cfg.MaxPasses),
	)
	started := time.Now()
	engine := autoroute.NewEngine(settings, autoroute.WithLogger(logger))
	res, err := autoroute.NewBatchAutorouter(engine).Run(ctx, rb, cfg.MaxPasses)
	if err != nil {
		logger.Warn("routing interrupted", zap.Error(err))
	}
	logger.Info("routing finished",
		zap.Int("passes", res.Passes),
		zap.Int("routed", res.Routed),
		zap.Stringer("stats", res.Stats),
		zap.Duration("elapsed", time.Since(started)),
	)

	if cfg.OptimizePasses > 0 && ctx.Err() == nil {
		rb, err = optimizeBoard(ctx, rb, settings)
		if err != nil {
			return err
		}
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "%s\n", rb.Stats())
	return writeRoutes(cmd.OutOrStdout(), rb, routing.Layers)
}

func optimizeBoard(ctx context.Context, b *board.Board, settings autoroute.Settings) (*board.Board, error) {
	sched := optimize.NewScheduler(b,
		optimize.WithThreads(cfg.Threads),
		optimize.WithStrategy(cfg.StrategyValue()),
		optimize.WithOptimizer(optimize.NewRerouteOptimizer(settings, logger)),
		optimize.WithLogger(logger),
	)
	for p := 1; p <= cfg.OptimizePasses && ctx.Err() == nil; p++ {
		improved, err := sched.OptimizePass(ctx, p, true)
		if err != nil {
			return nil, err
		}
		scheduled, finished := sched.Progress()
		logger.Info("optimization pass",
			zap.Int("pass", p),
			zap.Bool("improved", improved),
			zap.Int64("tasks_scheduled", scheduled),
			zap.Int64("tasks_finished", finished),
		)
		if !improved {
			break
		}
	}
	return sched.Board(), nil
}

func writeRoutes(stdout io.Writer, b *board.Board, layers []string) error {
	if routeOut == "" {
		return pcb.WriteRoutes(stdout, b, layers)
	}
	f, err := os.Create(routeOut)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", routeOut, err)
	}
	if err := pcb.WriteRoutes(f, b, layers); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
