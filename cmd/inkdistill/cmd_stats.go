package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"inkdistill/internal/stats"
	"inkdistill/internal/stroke"
)

var statsOutPath string

// statsCmd computes dataset-wide normalization stats without writing a
// corpus.
var statsCmd = &cobra.Command{
	Use:   "stats [inputs...]",
	Short: "Compute dataset-wide dx/dy mean/std over stroke sequences",
	Long: `Streams every point of the given inputs through online mean/variance
accumulators and prints the resulting stats record.

Inputs can be corpus JSON files, IAM lineStrokes XML files, directories
(searched recursively for both), or glob patterns.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runStats,
}

func init() {
	statsCmd.Flags().StringVar(&statsOutPath, "stats", "", "If set, also write the stats record to this path")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	files, err := collectStatsInputs(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no input files found")
	}

	var dx, dy stats.Running
	parsed, skipped := 0, 0
	for _, path := range files {
		points, err := loadAnyPoints(path)
		if err != nil || len(points) == 0 {
			skipped++
			logger.Debug("Skipping input", zap.String("path", path), zap.Error(err))
			continue
		}
		parsed++
		for _, p := range points {
			dx.Update(float64(p.DX))
			dy.Update(float64(p.DY))
		}
	}

	record := stats.NewCorpus(&dx, &dy)
	record.FilesTotal = len(files)
	record.FilesParsed = parsed
	record.FilesSkipped = skipped
	if err := record.Validate(); err != nil {
		return fmt.Errorf("stats computation failed: %w", err)
	}

	out, _ := json.MarshalIndent(record, "", "  ")
	fmt.Println(string(out))

	if statsOutPath != "" {
		if err := record.WriteFile(statsOutPath); err != nil {
			return err
		}
	}
	return nil
}

// loadAnyPoints reads points from either a corpus JSON or an IAM XML file.
func loadAnyPoints(path string) ([]stroke.Point, error) {
	if strings.EqualFold(filepath.Ext(path), ".xml") {
		return stroke.ReadIAMFile(path)
	}
	f, err := stroke.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return f.Points, nil
}

// collectStatsInputs expands files, directories, and glob patterns into a
// deduplicated file list.
func collectStatsInputs(inputs []string) ([]string, error) {
	var files []string
	for _, raw := range inputs {
		if strings.ContainsAny(raw, "*?[") {
			matches, err := filepath.Glob(raw)
			if err != nil {
				return nil, fmt.Errorf("bad glob %q: %w", raw, err)
			}
			files = append(files, matches...)
			continue
		}

		info, err := os.Stat(raw)
		if err != nil {
			return nil, fmt.Errorf("cannot stat input %s: %w", raw, err)
		}
		if !info.IsDir() {
			files = append(files, raw)
			continue
		}
		for _, ext := range []string{".json", ".xml"} {
			found, err := collectByExt(raw, ext)
			if err != nil {
				return nil, err
			}
			files = append(files, found...)
		}
	}

	seen := make(map[string]struct{}, len(files))
	uniq := files[:0]
	for _, f := range files {
		key := f
		if abs, err := filepath.Abs(f); err == nil {
			key = abs
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		uniq = append(uniq, f)
	}
	return uniq, nil
}
