package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"inkdistill/internal/manifest"
	"inkdistill/internal/shard"
)

var (
	inspectOutDir string
	inspectShard  string
)

// inspectCmd reads back what build produced.
var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Inspect a build output directory or a single shard",
	Long: `With --out-dir, prints the run manifest: every recorded run and the
shards it produced. With --shard, opens one .npz shard and prints array
shapes and mask totals.`,
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().StringVar(&inspectOutDir, "out-dir", "", "Build output directory holding the manifest")
	inspectCmd.Flags().StringVar(&inspectShard, "shard", "", "Path to one shard .npz file")
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	if inspectOutDir == "" && inspectShard == "" {
		return fmt.Errorf("nothing to inspect: pass --out-dir and/or --shard")
	}

	if inspectOutDir != "" {
		if err := inspectManifest(inspectOutDir); err != nil {
			return err
		}
	}
	if inspectShard != "" {
		if err := inspectShardFile(inspectShard); err != nil {
			return err
		}
	}
	return nil
}

func inspectManifest(dir string) error {
	cat, err := manifest.Open(dir)
	if err != nil {
		return err
	}
	defer func() { _ = cat.Close() }()

	runs, err := cat.Runs()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return nil
	}

	for _, run := range runs {
		status := "incomplete"
		if run.FinishedAt != nil {
			status = run.FinishedAt.Format(time.RFC3339)
		}
		fmt.Printf("run %s\n", run.ID)
		fmt.Printf("  started:  %s\n", run.StartedAt.Format(time.RFC3339))
		fmt.Printf("  finished: %s\n", status)
		fmt.Printf("  corpus:   %s\n", run.CorpusRoot)
		fmt.Printf("  totals:   files=%d examples=%d shards=%d\n", run.FilesUsed, run.Examples, run.Shards)

		shards, err := cat.Shards(run.ID)
		if err != nil {
			return err
		}
		for _, sh := range shards {
			fmt.Printf("  shard %04d: %s (%d examples)\n", sh.Index, sh.Path, sh.Examples)
		}
	}
	return nil
}

func inspectShardFile(path string) error {
	d, err := shard.Read(path)
	if err != nil {
		return err
	}

	var maskSum float64
	for _, v := range d.Mask {
		maskSum += float64(v)
	}

	fmt.Printf("shard %s\n", path)
	fmt.Printf("  X:    %v\n", d.XShape)
	fmt.Printf("  Y:    %v\n", d.YShape)
	fmt.Printf("  mask: %v (sum %.0f, %d values)\n", d.MaskShape, maskSum, len(d.Mask))
	return nil
}
