package shard

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNPYRoundTrip(t *testing.T) {
	cases := map[string]struct {
		shape []int
		data  []float32
	}{
		"vector":    {[]int{4}, []float32{1, -2.5, 0, 3.75}},
		"matrix":    {[]int{2, 3}, []float32{1, 2, 3, 4, 5, 6}},
		"rank3":     {[]int{2, 2, 3}, []float32{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}},
		"empty dim": {[]int{0, 512, 3}, nil},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, writeNPY(&buf, tc.shape, tc.data))

			shape, data, err := readNPY(&buf)
			require.NoError(t, err)
			assert.Equal(t, tc.shape, shape)
			if len(tc.data) > 0 {
				assert.Empty(t, cmp.Diff(tc.data, data))
			} else {
				assert.Empty(t, data)
			}
		})
	}
}

// numpy requires the data offset to sit on a 64-byte boundary.
func TestNPYHeaderAlignment(t *testing.T) {
	for _, shape := range [][]int{{1}, {3, 512, 3}, {2048, 512, 3}, {10, 10, 10, 10}} {
		n := 1
		for _, d := range shape {
			n *= d
		}
		var buf bytes.Buffer
		require.NoError(t, writeNPY(&buf, shape, make([]float32, n)))

		raw := buf.Bytes()
		require.GreaterOrEqual(t, len(raw), 10)
		hlen := int(raw[8]) | int(raw[9])<<8
		offset := 10 + hlen
		assert.Equal(t, 0, offset%64, "shape %v: data offset %d", shape, offset)
		assert.Equal(t, byte('\n'), raw[offset-1], "header must end with newline")
		assert.Equal(t, offset+4*n, len(raw))
	}
}

func TestWriteNPY_ShapeMismatch(t *testing.T) {
	var buf bytes.Buffer
	err := writeNPY(&buf, []int{2, 2}, []float32{1, 2, 3})
	assert.Error(t, err)

	err = writeNPY(&buf, []int{-1}, nil)
	assert.Error(t, err)
}

func TestReadNPY_Rejects(t *testing.T) {
	t.Run("bad magic", func(t *testing.T) {
		_, _, err := readNPY(bytes.NewReader([]byte("NOTNUMPY\x01\x00")))
		assert.Error(t, err)
	})

	t.Run("truncated", func(t *testing.T) {
		_, _, err := readNPY(bytes.NewReader([]byte("\x93NUM")))
		assert.Error(t, err)
	})

	t.Run("wrong dtype", func(t *testing.T) {
		header := "{'descr': '<f8', 'fortran_order': False, 'shape': (1,), }\n"
		var buf bytes.Buffer
		buf.Write(npyMagic)
		buf.Write([]byte{1, 0, byte(len(header)), 0})
		buf.WriteString(header)
		_, _, err := readNPY(&buf)
		assert.Error(t, err)
	})
}
