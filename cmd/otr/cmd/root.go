package cmd

import (
	"fmt"
	"os"

	"github.com/OpenTraceLab/OpenTraceRoute/internal/config"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	verbose    bool
	configPath string

	cfg    *config.Config
	logger = zap.NewNop()
	runID  string
)

var rootCmd = &cobra.Command{
	Use:   "otr",
	Short: "OpenTraceRoute - shape-based PCB autorouter",
	Long: `OpenTraceRoute (otr) routes KiCad boards:
  - maze search over free space with ripup and shove
  - repeated batch passes until every net is connected
  - optional multi-threaded optimization passes

Examples:
  otr info board.kicad_pcb                       # Show nets and open connections
  otr route board.kicad_pcb --out routes.sexp    # Route and write the new copper
  otr route board.kicad_pcb --optimize 5 -t 8    # Route, then optimize on 8 threads
  otr rules board.rules                          # Check a rules file`,
	Version:           "0.1.0",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "router configuration file (YAML)")
}

// setup loads the configuration and builds the logger for every command.
func setup(cmd *cobra.Command, args []string) error {
	if configPath != "" {
		c, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = c
	} else {
		cfg = config.DefaultConfig()
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	level := cfg.Level()
	if verbose {
		level = zapcore.DebugLevel
	}
	zc := zap.NewProductionConfig()
	zc.Encoding = "console"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zc.Level = zap.NewAtomicLevelAt(level)
	l, err := zc.Build()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	runID = uuid.NewString()
	logger = l.With(zap.String("run_id", runID))
	return nil
}
