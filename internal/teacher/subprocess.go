package teacher

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"inkdistill/internal/stroke"
)

// Subprocess delegates refinement to an external deterministic model behind
// a persistent worker process. The model's internals are out of scope here;
// only the (X, mask) -> Y call contract and its failure modes matter.
type Subprocess struct {
	ch *channel
}

// Wire format: one JSON object per request line on stdin, one prefix-framed
// JSON object per response line on stdout.
type refineRequest struct {
	X    [][3]float32 `json:"X"`
	Mask []float32    `json:"mask"`
}

type refineResponse struct {
	Y [][]float32 `json:"Y"`
}

// NewSubprocess builds the subprocess teacher and starts its worker so a
// misconfigured command fails the run up front rather than on the first
// window.
func NewSubprocess(cfg Config, logger *zap.Logger) (*Subprocess, error) {
	ch, err := newChannel(cfg.Command, cfg.Prefix, logger)
	if err != nil {
		return nil, err
	}
	if err := ch.start(); err != nil {
		return nil, err
	}
	return &Subprocess{ch: ch}, nil
}

// Refine sends one (X, mask) request and decodes the framed response.
// A response whose shape does not match the input is a data-shape error
// (the caller drops the example); worker death is a *ChannelError.
func (s *Subprocess) Refine(x []stroke.Point, mask []float32) ([]stroke.Point, error) {
	if len(mask) != len(x) {
		return nil, fmt.Errorf("mask length %d does not match window length %d", len(mask), len(x))
	}

	req := refineRequest{X: make([][3]float32, len(x)), Mask: mask}
	for i, p := range x {
		req.X[i] = [3]float32{p.DX, p.DY, p.Pen}
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal refine request: %w", err)
	}

	raw, err := s.ch.call(payload)
	if err != nil {
		return nil, err
	}

	var resp refineResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse framed response: %w", err)
	}
	if len(resp.Y) != len(x) {
		return nil, fmt.Errorf("teacher output length %d != input length %d", len(resp.Y), len(x))
	}

	out := make([]stroke.Point, len(resp.Y))
	for i, row := range resp.Y {
		if len(row) != 3 {
			return nil, fmt.Errorf("teacher output row %d has width %d, want 3", i, len(row))
		}
		out[i] = stroke.Point{DX: row[0], DY: row[1], Pen: row[2]}
	}
	return out, nil
}

// Close shuts the worker down. Best-effort; never returns teardown errors.
func (s *Subprocess) Close() error {
	s.ch.close()
	return nil
}
