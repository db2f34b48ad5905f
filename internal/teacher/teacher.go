// Package teacher provides the oracle that relabels a window's target
// values: either a pass-through identity or an external deterministic model
// reached over a persistent subprocess channel.
package teacher

import (
	"fmt"

	"go.uber.org/zap"

	"inkdistill/internal/stroke"
)

// Teacher backend names selectable by configuration.
const (
	BackendIdentity   = "identity"
	BackendSubprocess = "subprocess"
)

// DefaultPrefix is the literal framing marker that distinguishes protocol
// responses from incidental worker output on the shared stdout stream.
const DefaultPrefix = "@@DWJSON@@"

// Refiner maps an input window and its validity mask to a refined window of
// identical shape. Close releases any backing resources; it is idempotent
// and safe to call even when Refine has failed.
type Refiner interface {
	Refine(x []stroke.Point, mask []float32) ([]stroke.Point, error)
	Close() error
}

// Config selects and parameterizes a teacher backend.
type Config struct {
	Backend string `yaml:"backend"`
	// Command is the worker command line for the subprocess backend,
	// split on whitespace into argv.
	Command string `yaml:"command"`
	// Prefix overrides the response framing prefix (DefaultPrefix if empty).
	Prefix string `yaml:"prefix"`
}

// New builds the configured Refiner. An unknown backend is a configuration
// error.
func New(cfg Config, logger *zap.Logger) (Refiner, error) {
	switch cfg.Backend {
	case BackendIdentity:
		return Identity{}, nil
	case BackendSubprocess:
		return NewSubprocess(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown teacher backend: %q", cfg.Backend)
	}
}

// Identity is the pass-through teacher: the refined window is a copy of the
// input. Used for pass-through distillation and for smoke-testing the rest
// of the pipeline.
type Identity struct{}

// Refine returns a copy of x; the mask is ignored.
func (Identity) Refine(x []stroke.Point, _ []float32) ([]stroke.Point, error) {
	out := make([]stroke.Point, len(x))
	copy(out, x)
	return out, nil
}

// Close is a no-op.
func (Identity) Close() error { return nil }
