package shard

import (
	"archive/zip"
	"fmt"
)

// Data is one shard read back from disk: the three aligned arrays with
// their shapes, flattened in C order.
type Data struct {
	X         []float32
	XShape    []int
	Y         []float32
	YShape    []int
	Mask      []float32
	MaskShape []int
}

// Read opens one .npz shard. All three entries must be present.
func Read(path string) (*Data, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open shard %s: %w", path, err)
	}
	defer zr.Close()

	var d Data
	found := map[string]bool{}
	for _, entry := range zr.File {
		var dataDst *[]float32
		var shapeDst *[]int
		switch entry.Name {
		case "X.npy":
			dataDst, shapeDst = &d.X, &d.XShape
		case "Y.npy":
			dataDst, shapeDst = &d.Y, &d.YShape
		case "mask.npy":
			dataDst, shapeDst = &d.Mask, &d.MaskShape
		default:
			continue
		}

		rc, err := entry.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open %s in %s: %w", entry.Name, path, err)
		}
		shape, data, err := readNPY(rc)
		_ = rc.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s in %s: %w", entry.Name, path, err)
		}
		*dataDst, *shapeDst = data, shape
		found[entry.Name] = true
	}

	for _, name := range []string{"X.npy", "Y.npy", "mask.npy"} {
		if !found[name] {
			return nil, fmt.Errorf("shard %s is missing %s", path, name)
		}
	}
	return &d, nil
}
