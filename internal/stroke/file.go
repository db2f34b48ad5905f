package stroke

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FileVersion is the corpus JSON payload version written by this tool.
const FileVersion = 1

// Norm is the normalization block embedded in a corpus file: the constants
// that apply to the file's raw points.
type Norm struct {
	Version int     `json:"version"`
	MeanDX  float64 `json:"mean_dx"`
	StdDX   float64 `json:"std_dx"`
	MeanDY  float64 `json:"mean_dy"`
	StdDY   float64 `json:"std_dy"`
}

// File is one corpus unit: an ordered point sequence plus the optional
// normalization constants computed for the corpus it belongs to. Points are
// stored raw (un-normalized); the pipeline's normalizer applies the
// constants.
type File struct {
	Version int     `json:"version"`
	Source  string  `json:"source,omitempty"`
	Points  []Point `json:"points"`
	Norm    *Norm   `json:"norm,omitempty"`
}

// ReadFile loads and validates one corpus JSON file.
func ReadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus file: %w", err)
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse corpus file %s: %w", path, err)
	}
	return &f, nil
}

// WriteFile persists a corpus file as compact JSON with a trailing newline.
func WriteFile(path string, f *File) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create corpus directory: %w", err)
	}
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("failed to marshal corpus file: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write corpus file: %w", err)
	}
	return nil
}
