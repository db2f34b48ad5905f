package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"inkdistill/internal/config"
	"inkdistill/internal/pipeline"
	"inkdistill/internal/teacher"
)

var (
	buildCorpusRoot       string
	buildOutDir           string
	buildMaxLen           int
	buildOverlap          int
	buildShardSize        int
	buildNormalize        string
	buildZeroStrokeStarts bool
	buildTeacher          string
	buildTeacherCmd       string
	buildTeacherPrefix    string
	buildLimitFiles       int
	buildLimitWindows     int
)

// buildCmd runs the distillation pipeline.
var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build (X, Y, mask) distillation shards from corpus JSON",
	Long: `Drives every corpus file through normalize -> segment -> pad -> teacher
refinement and writes the accepted examples as numbered .npz shards plus a
SQLite manifest.

The teacher backend is either "identity" (pass-through targets) or
"subprocess" (a persistent external model process speaking one JSON request
line on stdin and one prefix-framed JSON response line on stdout).`,
	RunE: runBuild,
}

func init() {
	defaults := config.DefaultConfig()

	buildCmd.Flags().StringVar(&buildCorpusRoot, "corpus", "", "Corpus JSON root (required)")
	buildCmd.Flags().StringVar(&buildOutDir, "out-dir", "", "Output directory for shards (required)")
	buildCmd.Flags().IntVar(&buildMaxLen, "max-len", defaults.Build.MaxLen, "Window length")
	buildCmd.Flags().IntVar(&buildOverlap, "overlap", defaults.Build.Overlap, "Window overlap")
	buildCmd.Flags().IntVar(&buildShardSize, "shard-size", defaults.Build.ShardSize, "Examples per shard")
	buildCmd.Flags().StringVar(&buildNormalize, "normalize", defaults.Build.Normalize, "Normalization mode: meanstd or none")
	buildCmd.Flags().BoolVar(&buildZeroStrokeStarts, "zero-stroke-starts", defaults.Build.ZeroStrokeStarts, "Force dx=dy=0 on stroke-start rows after normalization")
	buildCmd.Flags().StringVar(&buildTeacher, "teacher", defaults.Teacher.Backend, "Teacher backend: identity or subprocess")
	buildCmd.Flags().StringVar(&buildTeacherCmd, "teacher-cmd", defaults.Teacher.Command, "Worker command line for the subprocess teacher")
	buildCmd.Flags().StringVar(&buildTeacherPrefix, "teacher-prefix", defaults.Teacher.Prefix, "Response framing prefix for the subprocess teacher")
	buildCmd.Flags().IntVar(&buildLimitFiles, "limit-files", 0, "Optional cap on input files")
	buildCmd.Flags().IntVar(&buildLimitWindows, "limit-windows", 0, "Optional cap on total windows")
	_ = buildCmd.MarkFlagRequired("corpus")
	_ = buildCmd.MarkFlagRequired("out-dir")

	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	applyBuildConfig(cmd, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		logger.Info("Received shutdown signal")
		cancel()
	}()

	refiner, err := teacher.New(teacher.Config{
		Backend: buildTeacher,
		Command: buildTeacherCmd,
		Prefix:  buildTeacherPrefix,
	}, logger)
	if err != nil {
		return err
	}
	defer func() { _ = refiner.Close() }()

	builder, err := pipeline.New(pipeline.Options{
		CorpusRoot:       buildCorpusRoot,
		OutDir:           buildOutDir,
		MaxLen:           buildMaxLen,
		Overlap:          buildOverlap,
		ShardSize:        buildShardSize,
		Normalize:        buildNormalize,
		ZeroStrokeStarts: buildZeroStrokeStarts,
		LimitFiles:       buildLimitFiles,
		LimitWindows:     buildLimitWindows,
	}, refiner, logger)
	if err != nil {
		return err
	}

	result, err := builder.Run(ctx)
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	summary, _ := json.Marshal(result)
	fmt.Println(string(summary))
	return nil
}

// applyBuildConfig seeds unset flags from the config file; explicitly
// passed flags win.
func applyBuildConfig(cmd *cobra.Command, cfg *config.Config) {
	if !cmd.Flags().Changed("max-len") {
		buildMaxLen = cfg.Build.MaxLen
	}
	if !cmd.Flags().Changed("overlap") {
		buildOverlap = cfg.Build.Overlap
	}
	if !cmd.Flags().Changed("shard-size") {
		buildShardSize = cfg.Build.ShardSize
	}
	if !cmd.Flags().Changed("normalize") {
		buildNormalize = cfg.Build.Normalize
	}
	if !cmd.Flags().Changed("zero-stroke-starts") {
		buildZeroStrokeStarts = cfg.Build.ZeroStrokeStarts
	}
	if !cmd.Flags().Changed("teacher") {
		buildTeacher = cfg.Teacher.Backend
	}
	if !cmd.Flags().Changed("teacher-cmd") {
		buildTeacherCmd = cfg.Teacher.Command
	}
	if !cmd.Flags().Changed("teacher-prefix") {
		buildTeacherPrefix = cfg.Teacher.Prefix
	}
	if logger != nil {
		logger.Debug("Effective build parameters",
			zap.Int("max_len", buildMaxLen),
			zap.Int("overlap", buildOverlap),
			zap.Int("shard_size", buildShardSize),
			zap.String("normalize", buildNormalize),
			zap.String("teacher", buildTeacher))
	}
}
