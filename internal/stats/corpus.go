package stats

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"inkdistill/internal/norm"
)

// CorpusVersion is the stats record payload version.
const CorpusVersion = 1

// Corpus is the per-computation stats record: counts, the four
// normalization scalars, and provenance.
type Corpus struct {
	Version      int     `json:"version"`
	RunID        string  `json:"run_id"`
	InputRoot    string  `json:"input_root,omitempty"`
	FilesTotal   int     `json:"files_total"`
	FilesParsed  int     `json:"files_parsed"`
	FilesSkipped int     `json:"files_skipped"`
	Points       int64   `json:"points"`
	MeanDX       float64 `json:"mean_dx"`
	StdDX        float64 `json:"std_dx"`
	MeanDY       float64 `json:"mean_dy"`
	StdDY        float64 `json:"std_dy"`
}

// NewCorpus finalizes two accumulators (dx, dy) driven over one corpus
// traversal into a stats record with a fresh run id.
func NewCorpus(dx, dy *Running) Corpus {
	return Corpus{
		Version: CorpusVersion,
		RunID:   uuid.NewString(),
		Points:  dx.Count(),
		MeanDX:  dx.Mean(),
		StdDX:   dx.PopulationStd(),
		MeanDY:  dy.Mean(),
		StdDY:   dy.PopulationStd(),
	}
}

// Constants converts the record into normalization constants.
func (c Corpus) Constants() norm.Constants {
	return norm.Constants{MeanDX: c.MeanDX, StdDX: c.StdDX, MeanDY: c.MeanDY, StdDY: c.StdDY}
}

// Validate rejects a record whose stds are non-finite or non-positive, or
// that covers no points. These are computation errors, not fallbacks.
func (c Corpus) Validate() error {
	if c.Points <= 0 {
		return fmt.Errorf("stats cover no points")
	}
	if math.IsNaN(c.StdDX) || math.IsInf(c.StdDX, 0) || c.StdDX <= 0 {
		return fmt.Errorf("invalid std_dx computed: %v", c.StdDX)
	}
	if math.IsNaN(c.StdDY) || math.IsInf(c.StdDY, 0) || c.StdDY <= 0 {
		return fmt.Errorf("invalid std_dy computed: %v", c.StdDY)
	}
	return nil
}

// WriteFile persists the record as indented JSON with a trailing newline.
func (c Corpus) WriteFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create stats directory: %w", err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal stats: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write stats: %w", err)
	}
	return nil
}

// Load reads a previously written stats record.
func Load(path string) (Corpus, error) {
	var c Corpus
	data, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("failed to read stats: %w", err)
	}
	if err := json.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("failed to parse stats %s: %w", path, err)
	}
	return c, nil
}
