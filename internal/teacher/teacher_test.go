package teacher

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"inkdistill/internal/stroke"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestIdentity(t *testing.T) {
	in := []stroke.Point{
		{DX: 1, DY: 2, Pen: 1},
		{DX: 3, DY: 4, Pen: 0},
	}
	mask := []float32{1, 1}

	var id Identity
	out, err := id.Refine(in, mask)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(in, out))

	// The output is a copy, not an alias.
	out[0].DX = 99
	assert.Equal(t, float32(1), in[0].DX)

	assert.NoError(t, id.Close())
}

func TestNew(t *testing.T) {
	t.Run("identity backend", func(t *testing.T) {
		r, err := New(Config{Backend: BackendIdentity}, zap.NewNop())
		require.NoError(t, err)
		assert.IsType(t, Identity{}, r)
	})

	t.Run("unknown backend", func(t *testing.T) {
		_, err := New(Config{Backend: "oracle-9000"}, zap.NewNop())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown teacher backend")
	})

	t.Run("subprocess backend requires a command", func(t *testing.T) {
		_, err := New(Config{Backend: BackendSubprocess}, zap.NewNop())
		assert.Error(t, err)
	})
}
