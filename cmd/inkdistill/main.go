package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	configPath string
	verbose    bool

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "inkdistill",
	Short: "inkdistill - handwriting-stroke distillation pipeline",
	Long: `inkdistill prepares supervised training data for a handwriting-stroke
refinement model.

It converts raw pen-stroke coordinate streams into fixed-length, normalized,
masked example windows and optionally relabels each window's target through
an external deterministic teacher model running in a persistent subprocess.

Workflow:
  1. inkdistill corpus  - convert IAM lineStrokes XML into corpus JSON + stats
  2. inkdistill build   - distill corpus JSON into (X, Y, mask) .npz shards
  3. inkdistill inspect - examine the shard manifest and shard contents`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "inkdistill.yaml", "Config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
