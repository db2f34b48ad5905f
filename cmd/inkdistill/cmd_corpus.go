package main

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"inkdistill/internal/stats"
	"inkdistill/internal/stroke"
)

var (
	corpusInputRoot  string
	corpusOutputRoot string
	corpusStatsPath  string
	corpusLimit      int
	corpusOverwrite  bool
)

// corpusCmd converts IAM lineStrokes XML into corpus JSON files.
var corpusCmd = &cobra.Command{
	Use:   "corpus",
	Short: "Convert IAM lineStrokes XML into corpus JSON with dataset stats",
	Long: `Two-pass corpus construction from IAM lineStrokes XML:

Pass 1 streams every point through online mean/variance accumulators and
writes the dataset stats record.

Pass 2 writes one corpus JSON per input file: raw (dx, dy, p) points with
stroke-start markers plus the normalization constants to apply downstream.
Each XML becomes <output-root>/<relative path>.json; existing outputs are
kept unless --overwrite is set.`,
	RunE: runCorpus,
}

func init() {
	corpusCmd.Flags().StringVar(&corpusInputRoot, "input-root", "", "Root folder of IAM lineStrokes XML files (required)")
	corpusCmd.Flags().StringVar(&corpusOutputRoot, "output-root", "", "Output folder for corpus JSON (required)")
	corpusCmd.Flags().StringVar(&corpusStatsPath, "stats-path", "", "Stats JSON path (default: <output-root>/corpus_stats.json)")
	corpusCmd.Flags().IntVar(&corpusLimit, "limit", 0, "Optional max number of XML files to process")
	corpusCmd.Flags().BoolVar(&corpusOverwrite, "overwrite", false, "Overwrite existing output JSON files")
	_ = corpusCmd.MarkFlagRequired("input-root")
	_ = corpusCmd.MarkFlagRequired("output-root")

	rootCmd.AddCommand(corpusCmd)
}

func runCorpus(cmd *cobra.Command, args []string) error {
	statsPath := corpusStatsPath
	if statsPath == "" {
		statsPath = filepath.Join(corpusOutputRoot, "corpus_stats.json")
	}

	xmlFiles, err := collectByExt(corpusInputRoot, ".xml")
	if err != nil {
		return err
	}
	if corpusLimit > 0 && len(xmlFiles) > corpusLimit {
		xmlFiles = xmlFiles[:corpusLimit]
	}
	if len(xmlFiles) == 0 {
		return fmt.Errorf("no .xml files found under %s", corpusInputRoot)
	}

	// Pass 1: dataset-wide stats over raw deltas.
	var dx, dy stats.Running
	parsed, skipped := 0, 0
	for i, path := range xmlFiles {
		points, err := stroke.ReadIAMFile(path)
		if err != nil || len(points) == 0 {
			skipped++
			continue
		}
		parsed++
		for _, p := range points {
			dx.Update(float64(p.DX))
			dy.Update(float64(p.DY))
		}
		if (i+1)%500 == 0 {
			logger.Info("Stats pass progress",
				zap.Int("files", i+1),
				zap.Int64("points", dx.Count()))
		}
	}

	record := stats.NewCorpus(&dx, &dy)
	record.InputRoot = corpusInputRoot
	record.FilesTotal = len(xmlFiles)
	record.FilesParsed = parsed
	record.FilesSkipped = skipped
	if err := record.Validate(); err != nil {
		return fmt.Errorf("corpus stats computation failed: %w", err)
	}
	if err := record.WriteFile(statsPath); err != nil {
		return err
	}
	logger.Info("Stats written",
		zap.String("path", statsPath),
		zap.Int64("points", record.Points),
		zap.Float64("std_dx", record.StdDX),
		zap.Float64("std_dy", record.StdDY))

	// Pass 2: one corpus JSON per XML, raw points with start markers plus
	// the constants to apply downstream.
	normBlock := &stroke.Norm{
		Version: stroke.FileVersion,
		MeanDX:  record.MeanDX,
		StdDX:   record.StdDX,
		MeanDY:  record.MeanDY,
		StdDY:   record.StdDY,
	}

	written, writtenPoints := 0, 0
	for i, path := range xmlFiles {
		rel, err := filepath.Rel(corpusInputRoot, path)
		if err != nil {
			rel = filepath.Base(path)
		}
		outPath := filepath.Join(corpusOutputRoot, strings.TrimSuffix(rel, filepath.Ext(rel))+".json")
		if !corpusOverwrite {
			if _, err := os.Stat(outPath); err == nil {
				continue
			}
		}

		points, err := stroke.ReadIAMFile(path)
		if err != nil || len(points) == 0 {
			continue
		}
		points = stroke.EndsToStarts(points)

		f := &stroke.File{
			Version: stroke.FileVersion,
			Source:  path,
			Points:  points,
			Norm:    normBlock,
		}
		if err := stroke.WriteFile(outPath, f); err != nil {
			return err
		}
		written++
		writtenPoints += len(points)

		if (i+1)%500 == 0 {
			logger.Info("Corpus pass progress",
				zap.Int("files", i+1),
				zap.Int("written", written))
		}
	}

	summary, _ := json.Marshal(map[string]any{
		"output_root":    corpusOutputRoot,
		"stats_path":     statsPath,
		"written_files":  written,
		"written_points": writtenPoints,
	})
	fmt.Println(string(summary))
	return nil
}

// collectByExt walks root and returns all files with the given extension,
// sorted for deterministic processing order.
func collectByExt(root, ext string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ext) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}
	sort.Strings(files)
	return files, nil
}
