package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/inamate/genscene/internal/document"
	"github.com/inamate/genscene/internal/logging"
)

// sampleArg loads the built-in sample scene instead of a file.
const sampleArg = "sample"

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "sceneeval",
		Short: "Evaluate generative scenes offline",
		Long: `sceneeval evaluates scene documents without a server: it prints render
results, exports operator rasters as PNG, ranks objects by dependency and
issues API tokens.

Scenes are read from a JSON file, from stdin with "-", or "sample" for the
built-in sample scene.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, _ := cmd.Flags().GetString("log-level")
			slog.SetDefault(logging.NewWithWriter(cmd.ErrOrStderr(), logging.ParseLevel(level)))
			return nil
		},
	}

	rootCmd.PersistentFlags().String("log-level", "warn", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(newEvalCmd(), newRasterCmd(), newRankCmd(), newTokenCmd())
	return rootCmd
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadScene(cmd *cobra.Command, arg string) (*document.Scene, error) {
	if arg == sampleArg {
		return document.NewSampleScene(), nil
	}

	var (
		data []byte
		err  error
	)
	if arg == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(arg)
	}
	if err != nil {
		return nil, fmt.Errorf("read scene: %w", err)
	}
	return document.ParseScene(data)
}
