// Package shard persists batches of refined examples as numbered .npz
// archives of parallel X/Y/mask arrays.
package shard

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// NumPy .npy v1.0, restricted to C-order little-endian float32 — the layout
// np.savez_compressed produces for these arrays.

var npyMagic = []byte("\x93NUMPY")

func shapeTuple(shape []int) string {
	if len(shape) == 1 {
		return fmt.Sprintf("(%d,)", shape[0])
	}
	parts := make([]string, len(shape))
	for i, d := range shape {
		parts[i] = strconv.Itoa(d)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// writeNPY encodes one float32 array. The header is space-padded so the data
// offset lands on a 64-byte boundary, newline terminated.
func writeNPY(w io.Writer, shape []int, data []float32) error {
	n := 1
	for _, d := range shape {
		if d < 0 {
			return fmt.Errorf("negative dimension in shape %v", shape)
		}
		n *= d
	}
	if n != len(data) {
		return fmt.Errorf("shape %v wants %d values, got %d", shape, n, len(data))
	}

	header := fmt.Sprintf("{'descr': '<f4', 'fortran_order': False, 'shape': %s, }", shapeTuple(shape))
	pad := (64 - (len(npyMagic)+4+len(header)+1)%64) % 64
	header += strings.Repeat(" ", pad) + "\n"

	if _, err := w.Write(npyMagic); err != nil {
		return err
	}
	if _, err := w.Write([]byte{1, 0}); err != nil {
		return err
	}
	var hlen [2]byte
	binary.LittleEndian.PutUint16(hlen[:], uint16(len(header)))
	if _, err := w.Write(hlen[:]); err != nil {
		return err
	}
	if _, err := io.WriteString(w, header); err != nil {
		return err
	}

	buf := make([]byte, 4*len(data))
	for i, v := range data {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	_, err := w.Write(buf)
	return err
}

// readNPY decodes one array, validating magic, dtype, and byte order.
func readNPY(r io.Reader) (shape []int, data []float32, err error) {
	head := make([]byte, 10)
	if _, err := io.ReadFull(r, head); err != nil {
		return nil, nil, fmt.Errorf("failed to read npy header: %w", err)
	}
	if string(head[:6]) != string(npyMagic) {
		return nil, nil, fmt.Errorf("not an npy file (bad magic)")
	}
	if head[6] != 1 || head[7] != 0 {
		return nil, nil, fmt.Errorf("unsupported npy version %d.%d", head[6], head[7])
	}
	hlen := binary.LittleEndian.Uint16(head[8:10])
	headerBytes := make([]byte, hlen)
	if _, err := io.ReadFull(r, headerBytes); err != nil {
		return nil, nil, fmt.Errorf("failed to read npy header dict: %w", err)
	}
	header := string(headerBytes)

	if !strings.Contains(header, "'descr': '<f4'") {
		return nil, nil, fmt.Errorf("unsupported npy dtype in header: %s", strings.TrimSpace(header))
	}
	if !strings.Contains(header, "'fortran_order': False") {
		return nil, nil, fmt.Errorf("fortran-order npy arrays are not supported")
	}

	shape, err = parseShape(header)
	if err != nil {
		return nil, nil, err
	}

	n := 1
	for _, d := range shape {
		n *= d
	}
	raw := make([]byte, 4*n)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, nil, fmt.Errorf("failed to read npy data: %w", err)
	}
	data = make([]float32, n)
	for i := range data {
		data[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[4*i:]))
	}
	return shape, data, nil
}

func parseShape(header string) ([]int, error) {
	start := strings.Index(header, "'shape': (")
	if start < 0 {
		return nil, fmt.Errorf("missing shape in npy header: %s", strings.TrimSpace(header))
	}
	rest := header[start+len("'shape': ("):]
	end := strings.Index(rest, ")")
	if end < 0 {
		return nil, fmt.Errorf("unterminated shape in npy header")
	}
	var shape []int
	for _, tok := range strings.Split(rest[:end], ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		d, err := strconv.Atoi(tok)
		if err != nil {
			return nil, fmt.Errorf("bad shape dimension %q: %w", tok, err)
		}
		shape = append(shape, d)
	}
	if len(shape) == 0 {
		return nil, fmt.Errorf("scalar npy arrays are not supported")
	}
	return shape, nil
}
