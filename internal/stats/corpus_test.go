package stats

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func accumulated(dxValues, dyValues []float64) Corpus {
	var dx, dy Running
	for _, v := range dxValues {
		dx.Update(v)
	}
	for _, v := range dyValues {
		dy.Update(v)
	}
	return NewCorpus(&dx, &dy)
}

func TestNewCorpus(t *testing.T) {
	c := accumulated([]float64{1, 3, 5}, []float64{-2, 0, 2})

	assert.Equal(t, CorpusVersion, c.Version)
	_, err := uuid.Parse(c.RunID)
	assert.NoError(t, err, "run id must be a valid UUID")
	assert.Equal(t, int64(3), c.Points)
	assert.InDelta(t, 3.0, c.MeanDX, 1e-12)
	assert.InDelta(t, math.Sqrt(8.0/3.0), c.StdDX, 1e-12)
	assert.InDelta(t, 0.0, c.MeanDY, 1e-12)

	k := c.Constants()
	assert.Equal(t, c.MeanDX, k.MeanDX)
	assert.Equal(t, c.StdDY, k.StdDY)
}

func TestCorpus_Validate(t *testing.T) {
	valid := accumulated([]float64{1, 2, 3}, []float64{4, 5, 6})
	require.NoError(t, valid.Validate())

	t.Run("no points", func(t *testing.T) {
		c := accumulated(nil, nil)
		assert.Error(t, c.Validate())
	})

	t.Run("constant channel has zero std", func(t *testing.T) {
		c := accumulated([]float64{7, 7, 7}, []float64{1, 2, 3})
		assert.Error(t, c.Validate())
	})

	t.Run("hand-built NaN std", func(t *testing.T) {
		c := valid
		c.StdDY = math.NaN()
		assert.Error(t, c.Validate())
	})
}

func TestCorpus_FileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "corpus_stats.json")

	in := accumulated([]float64{1, 2, 3, 4}, []float64{-1, 0, 1, 2})
	in.InputRoot = "/data/lineStrokes"
	in.FilesTotal = 10
	in.FilesParsed = 9
	in.FilesSkipped = 1
	require.NoError(t, in.WriteFile(path))

	out, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestCorpus_LoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
