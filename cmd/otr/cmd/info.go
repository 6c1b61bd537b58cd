package cmd

import (
	"fmt"

	"github.com/OpenTraceLab/OpenTraceRoute/pkg/kicad/pcb"
	"github.com/spf13/cobra"
)

var infoRules string

var infoCmd = &cobra.Command{
	Use:   "info <board_file>",
	Short: "Show board and net information",
	Long: `Parses a KiCad board and lists every net with its pad, track and via
counts and the number of connections still missing.`,
	Args: cobra.ExactArgs(1),
	RunE: runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
	infoCmd.Flags().StringVarP(&infoRules, "rules", "r", "", "design rules file")
}

func runInfo(cmd *cobra.Command, args []string) error {
	board, err := pcb.ParseFile(args[0])
	if err != nil {
		return fmt.Errorf("error parsing board: %w", err)
	}
	rs, err := loadRules(infoRules)
	if err != nil {
		return err
	}
	routing, err := board.RoutingBoard(rs)
	if err != nil {
		return err
	}
	rb := routing.Board

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Board: %s\n", args[0])
	fmt.Fprintf(out, "  Version: %d\n", board.Version)
	fmt.Fprintf(out, "  Generator: %s\n", board.Generator)
	fmt.Fprintf(out, "  Copper layers: %v\n", routing.Layers)
	size := rb.Bounds().Size()
	fmt.Fprintf(out, "  Board size: %.2f x %.2f mm\n", size.X, size.Y)
	fmt.Fprintf(out, "  Footprints: %d\n\n", len(board.Footprints))

	fmt.Fprintf(out, "%-30s %6s %6s %6s %10s\n", "Net Name", "Pads", "Tracks", "Vias", "Incomplete")
	fmt.Fprintln(out, "────────────────────────────────────────────────────────────────")
	for _, info := range board.NetInfos() {
		fmt.Fprintf(out, "%-30s %6d %6d %6d %10d\n",
			info.Net.Name, info.Pads, info.Tracks, info.Vias,
			rb.NetIncomplete(info.Net.Number))
	}
	fmt.Fprintf(out, "\n%s\n", rb.Stats())
	return nil
}
