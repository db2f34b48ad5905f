package shard

import (
	"archive/zip"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"inkdistill/internal/stroke"
)

// Example is one accepted (input, refined target, mask) triple, all padded
// to the writer's fixed length.
type Example struct {
	X    []stroke.Point
	Y    []stroke.Point
	Mask []float32
}

// Info describes one flushed shard.
type Info struct {
	Index    int
	Path     string
	Examples int
}

// Writer accumulates examples and flushes them as sequentially numbered,
// write-once shard_%04d.npz archives holding X [N,T,3], Y [N,T,3] and
// mask [N,T] float32 arrays.
type Writer struct {
	outDir    string
	maxLen    int
	shardSize int
	logger    *zap.Logger

	buf  []Example
	next int
}

// NewWriter validates the shard parameters and creates the output directory.
func NewWriter(outDir string, maxLen, shardSize int, logger *zap.Logger) (*Writer, error) {
	if maxLen <= 0 {
		return nil, fmt.Errorf("max_len must be > 0, got %d", maxLen)
	}
	if shardSize <= 0 {
		return nil, fmt.Errorf("shard_size must be > 0, got %d", shardSize)
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{outDir: outDir, maxLen: maxLen, shardSize: shardSize, logger: logger}, nil
}

// Append buffers one example, flushing a full shard when the buffer reaches
// shard size. Returns the flushed shard's Info when a flush happened.
func (w *Writer) Append(ex Example) (*Info, error) {
	if len(ex.X) != w.maxLen || len(ex.Y) != w.maxLen || len(ex.Mask) != w.maxLen {
		return nil, fmt.Errorf("example shape (%d, %d, %d) does not match max_len %d",
			len(ex.X), len(ex.Y), len(ex.Mask), w.maxLen)
	}
	w.buf = append(w.buf, ex)
	if len(w.buf) >= w.shardSize {
		return w.flush()
	}
	return nil, nil
}

// Flush writes any buffered examples as a final, possibly smaller, shard.
// A no-op on an empty buffer.
func (w *Writer) Flush() (*Info, error) {
	if len(w.buf) == 0 {
		return nil, nil
	}
	return w.flush()
}

func (w *Writer) flush() (*Info, error) {
	n := len(w.buf)
	t := w.maxLen

	xs := make([]float32, 0, n*t*3)
	ys := make([]float32, 0, n*t*3)
	ms := make([]float32, 0, n*t)
	for _, ex := range w.buf {
		for _, p := range ex.X {
			xs = append(xs, p.DX, p.DY, p.Pen)
		}
		for _, p := range ex.Y {
			ys = append(ys, p.DX, p.DY, p.Pen)
		}
		ms = append(ms, ex.Mask...)
	}

	path := filepath.Join(w.outDir, fmt.Sprintf("shard_%04d.npz", w.next))
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create shard: %w", err)
	}

	zw := zip.NewWriter(f)
	entries := []struct {
		name  string
		shape []int
		data  []float32
	}{
		{"X.npy", []int{n, t, 3}, xs},
		{"Y.npy", []int{n, t, 3}, ys},
		{"mask.npy", []int{n, t}, ms},
	}
	for _, e := range entries {
		ew, err := zw.CreateHeader(&zip.FileHeader{Name: e.name, Method: zip.Deflate})
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("failed to create %s entry: %w", e.name, err)
		}
		if err := writeNPY(ew, e.shape, e.data); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("failed to encode %s: %w", e.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to finalize shard: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close shard: %w", err)
	}

	info := &Info{Index: w.next, Path: path, Examples: n}
	w.logger.Info("Shard written",
		zap.Int("index", info.Index),
		zap.String("path", info.Path),
		zap.Int("examples", info.Examples))

	w.buf = w.buf[:0]
	w.next++
	return info, nil
}
