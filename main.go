package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/automoto/tmxjoin/config"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "tmxjoin",
		Short: "Join small Tiled maps into one big map",
		Long: `tmxjoin places small TMX maps at tile offsets inside one big map,
unifying their tilesets into a single id space.`,
		Version:           version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setupOutput,
	}
	root.PersistentFlags().String("color", config.Log.Color, "colorize output (auto|on|off)")
	root.PersistentFlags().Bool("quiet", config.Log.Quiet, "suppress informational output")

	root.AddCommand(newMergeCmd())
	root.AddCommand(newInspectCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func setupOutput(cmd *cobra.Command, _ []string) error {
	mode, _ := cmd.Flags().GetString("color")
	switch mode {
	case "auto":
	case "on":
		color.NoColor = false
	case "off":
		color.NoColor = true
	default:
		return fmt.Errorf("--color %q: want auto, on or off", mode)
	}

	log.SetFlags(0)
	log.SetOutput(cmd.ErrOrStderr())
	if quiet, _ := cmd.Flags().GetBool("quiet"); quiet {
		log.SetOutput(io.Discard)
	}
	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
