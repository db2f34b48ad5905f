// Package pipeline drives corpus files through normalize -> segment -> pad
// -> teacher refinement and accumulates the results into numbered shards.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"inkdistill/internal/manifest"
	"inkdistill/internal/norm"
	"inkdistill/internal/shard"
	"inkdistill/internal/stroke"
	"inkdistill/internal/teacher"
	"inkdistill/internal/window"
)

// Normalization modes.
const (
	NormalizeMeanStd = "meanstd"
	NormalizeNone    = "none"
)

// progressEvery controls how often per-file progress is logged.
const progressEvery = 250

// Options parameterize one pipeline run.
type Options struct {
	CorpusRoot string
	OutDir     string

	MaxLen    int
	Overlap   int
	ShardSize int

	// Normalize selects meanstd (per-file constants required) or none.
	Normalize        string
	ZeroStrokeStarts bool

	// LimitFiles caps the input file list; 0 means no cap.
	LimitFiles int
	// LimitWindows caps total accepted examples, stopping mid-file; 0
	// means no cap.
	LimitWindows int
}

// Result summarizes a completed run.
type Result struct {
	RunID        string `json:"run_id"`
	FilesSeen    int    `json:"files_seen"`
	FilesUsed    int    `json:"files_used"`
	FilesSkipped int    `json:"files_skipped"`
	Examples     int    `json:"examples"`
	Dropped      int    `json:"dropped"`
	Shards       int    `json:"shards"`
}

// Builder is the single-threaded orchestrator. The shard buffer and all
// counters are owned by the calling goroutine; the only concurrency is
// inside the teacher's worker channel.
type Builder struct {
	opts    Options
	refiner teacher.Refiner
	logger  *zap.Logger
}

// New validates options and builds the orchestrator. Parameter violations
// are configuration errors caught before any file is touched.
func New(opts Options, refiner teacher.Refiner, logger *zap.Logger) (*Builder, error) {
	if opts.CorpusRoot == "" {
		return nil, fmt.Errorf("corpus root is required")
	}
	if opts.OutDir == "" {
		return nil, fmt.Errorf("output directory is required")
	}
	if opts.MaxLen <= 0 {
		return nil, fmt.Errorf("max_len must be > 0, got %d", opts.MaxLen)
	}
	if opts.Overlap < 0 || opts.Overlap >= opts.MaxLen {
		return nil, fmt.Errorf("overlap must be in [0, max_len), got %d", opts.Overlap)
	}
	if opts.ShardSize <= 0 {
		return nil, fmt.Errorf("shard_size must be > 0, got %d", opts.ShardSize)
	}
	if opts.Normalize != NormalizeMeanStd && opts.Normalize != NormalizeNone {
		return nil, fmt.Errorf("unknown normalize mode: %q", opts.Normalize)
	}
	if refiner == nil {
		return nil, fmt.Errorf("teacher refiner is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{opts: opts, refiner: refiner, logger: logger}, nil
}

// Run executes the pipeline. Configuration errors and channel failures are
// fatal; per-file and per-example problems are counted and skipped.
// Already-flushed shards stay on disk whatever happens, so a failed run can
// be re-run deterministically.
func (b *Builder) Run(ctx context.Context) (*Result, error) {
	files, err := collectFiles(b.opts.CorpusRoot)
	if err != nil {
		return nil, err
	}
	if b.opts.LimitFiles > 0 && len(files) > b.opts.LimitFiles {
		files = files[:b.opts.LimitFiles]
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no corpus JSON files found under %s", b.opts.CorpusRoot)
	}

	cat, err := manifest.Open(b.opts.OutDir)
	if err != nil {
		return nil, err
	}
	defer func() { _ = cat.Close() }()

	res := &Result{RunID: uuid.NewString(), FilesSeen: len(files)}
	params, _ := json.Marshal(b.opts)
	if err := cat.BeginRun(res.RunID, b.opts.CorpusRoot, string(params)); err != nil {
		return nil, err
	}

	writer, err := shard.NewWriter(b.opts.OutDir, b.opts.MaxLen, b.opts.ShardSize, b.logger)
	if err != nil {
		return nil, err
	}

	b.logger.Info("Building shards",
		zap.String("run_id", res.RunID),
		zap.Int("files", len(files)),
		zap.Int("max_len", b.opts.MaxLen),
		zap.Int("overlap", b.opts.Overlap),
		zap.Int("shard_size", b.opts.ShardSize),
		zap.String("normalize", b.opts.Normalize))

	capped := false
	for i, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if capped {
			break
		}

		points, err := b.loadFile(path)
		if err != nil {
			// Fatal configuration errors pass through; anything
			// else skips the file.
			var fatal *fatalError
			if errors.As(err, &fatal) {
				return nil, fatal.err
			}
			res.FilesSkipped++
			b.logger.Debug("Skipping corpus file", zap.String("path", path), zap.Error(err))
			continue
		}
		if len(points) == 0 {
			res.FilesSkipped++
			continue
		}

		windows, err := window.Segment(points, b.opts.MaxLen, b.opts.Overlap)
		if err != nil {
			return nil, err
		}

		res.FilesUsed++
		for _, win := range windows {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			x, mask, err := window.Pad(win, b.opts.MaxLen)
			if err != nil {
				return nil, err
			}

			y, err := b.refiner.Refine(x, mask)
			if err != nil {
				var cherr *teacher.ChannelError
				if errors.As(err, &cherr) {
					return nil, cherr
				}
				// Shape errors invalidate this example only.
				res.Dropped++
				b.logger.Debug("Dropping example", zap.String("path", path), zap.Error(err))
				continue
			}
			if !stroke.Finite(y) {
				res.Dropped++
				b.logger.Debug("Dropping example with non-finite refinement", zap.String("path", path))
				continue
			}

			info, err := writer.Append(shard.Example{X: x, Y: y, Mask: mask})
			if err != nil {
				return nil, err
			}
			if info != nil {
				res.Shards++
				if err := cat.RecordShard(res.RunID, info.Index, info.Path, info.Examples); err != nil {
					return nil, err
				}
			}
			res.Examples++

			if b.opts.LimitWindows > 0 && res.Examples >= b.opts.LimitWindows {
				capped = true
				break
			}
		}

		if (i+1)%progressEvery == 0 {
			b.logger.Info("Progress",
				zap.Int("files", i+1),
				zap.Int("examples", res.Examples),
				zap.Int("shards", res.Shards))
		}
	}

	info, err := writer.Flush()
	if err != nil {
		return nil, err
	}
	if info != nil {
		res.Shards++
		if err := cat.RecordShard(res.RunID, info.Index, info.Path, info.Examples); err != nil {
			return nil, err
		}
	}

	if res.Examples == 0 {
		return nil, fmt.Errorf("no examples produced from %d files; check corpus format and max_len", res.FilesSeen)
	}

	if err := cat.FinishRun(res.RunID, res.FilesUsed, res.Examples, res.Shards); err != nil {
		return nil, err
	}

	b.logger.Info("Build complete",
		zap.String("run_id", res.RunID),
		zap.Int("files_used", res.FilesUsed),
		zap.Int("files_skipped", res.FilesSkipped),
		zap.Int("examples", res.Examples),
		zap.Int("dropped", res.Dropped),
		zap.Int("shards", res.Shards))

	return res, nil
}

// loadFile reads one corpus file and applies the configured normalization.
// Missing constants in meanstd mode are a fatal configuration error, not a
// skip.
func (b *Builder) loadFile(path string) ([]stroke.Point, error) {
	f, err := stroke.ReadFile(path)
	if err != nil {
		return nil, err
	}

	switch {
	case b.opts.Normalize == NormalizeMeanStd:
		if f.Norm == nil {
			return nil, &fatalError{fmt.Errorf("missing norm block in %s (required for normalize=meanstd)", path)}
		}
		c := norm.FromFile(f.Norm)
		if err := c.Validate(); err != nil {
			return nil, &fatalError{fmt.Errorf("invalid norm block in %s: %w", path, err)}
		}
		return norm.Apply(f.Points, c, b.opts.ZeroStrokeStarts), nil
	case b.opts.ZeroStrokeStarts:
		return norm.ZeroStrokeStarts(f.Points), nil
	default:
		return f.Points, nil
	}
}

// fatalError marks a per-file failure that must abort the run instead of
// incrementing the skip counter.
type fatalError struct {
	err error
}

func (e *fatalError) Error() string { return e.err.Error() }
func (e *fatalError) Unwrap() error { return e.err }

// collectFiles walks the corpus root and returns all .json files sorted,
// so shard numbering is deterministic across re-runs. A single-file root
// is accepted as-is.
func collectFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.EqualFold(filepath.Ext(path), ".json") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk corpus root: %w", err)
	}
	sort.Strings(files)
	return files, nil
}
