package teacher

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"inkdistill/internal/stroke"
)

// helperCommand re-runs this test binary as the worker process, with the
// helper's behavior selected through the environment (inherited by the
// spawned worker).
func helperCommand(t *testing.T, mode string) string {
	t.Setenv("GO_WANT_HELPER_PROCESS", "1")
	t.Setenv("HELPER_MODE", mode)
	return os.Args[0] + " -test.run=TestHelperProcess"
}

// TestHelperProcess is not a real test: it is the worker process body, active
// only when spawned by helperCommand.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	defer os.Exit(0)

	mode := os.Getenv("HELPER_MODE")
	if mode == "exit3" {
		os.Exit(3)
	}

	fmt.Fprintln(os.Stderr, "[WARNING] worker running in test mode")
	fmt.Println("loading model weights from /dev/null")

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 1<<20), 1<<20)
	for scanner.Scan() {
		var req struct {
			X    [][]float32 `json:"X"`
			Mask []float32   `json:"mask"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			os.Exit(5)
		}

		switch mode {
		case "die":
			os.Exit(7)
		case "badshape":
			fmt.Printf("%s%s\n", DefaultPrefix, `{"Y":[[1,2,3]]}`)
		default: // echo
			fmt.Printf("refining window of %d rows\n", len(req.X))
			resp, _ := json.Marshal(map[string][][]float32{"Y": req.X})
			fmt.Printf("%s%s\n", DefaultPrefix, resp)
		}
	}
}

func testWindow(n int) ([]stroke.Point, []float32) {
	x := make([]stroke.Point, n)
	mask := make([]float32, n)
	for i := range x {
		x[i] = stroke.Point{DX: float32(i) + 0.5, DY: -float32(i), Pen: float32(i % 2)}
		mask[i] = 1
	}
	return x, mask
}

func TestSubprocess_RefineEcho(t *testing.T) {
	s, err := NewSubprocess(Config{Command: helperCommand(t, "echo")}, zap.NewNop())
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	x, mask := testWindow(4)

	// Unframed startup and per-request chatter must be skipped, not parsed.
	y, err := s.Refine(x, mask)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(x, y))

	// The worker stays up across requests.
	x2, mask2 := testWindow(7)
	y2, err := s.Refine(x2, mask2)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(x2, y2))
}

func TestSubprocess_MaskLengthMismatch(t *testing.T) {
	s, err := NewSubprocess(Config{Command: helperCommand(t, "echo")}, zap.NewNop())
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	x, _ := testWindow(4)
	_, err = s.Refine(x, []float32{1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mask length")
}

func TestSubprocess_WorkerExitsImmediately(t *testing.T) {
	s, err := NewSubprocess(Config{Command: helperCommand(t, "exit3")}, zap.NewNop())
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	x, mask := testWindow(2)
	_, err = s.Refine(x, mask)
	require.Error(t, err)

	var cherr *ChannelError
	require.True(t, errors.As(err, &cherr), "worker death must surface as ChannelError, got %v", err)
	assert.Equal(t, 3, cherr.ExitCode)
}

func TestSubprocess_WorkerDiesMidRequest(t *testing.T) {
	s, err := NewSubprocess(Config{Command: helperCommand(t, "die")}, zap.NewNop())
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	x, mask := testWindow(2)
	_, err = s.Refine(x, mask)
	require.Error(t, err)

	var cherr *ChannelError
	require.True(t, errors.As(err, &cherr))
	assert.Equal(t, 7, cherr.ExitCode)

	// The channel never respawns: later requests fail immediately.
	_, err = s.Refine(x, mask)
	require.Error(t, err)
	assert.True(t, errors.As(err, &cherr))
}

func TestSubprocess_BadResponseShape(t *testing.T) {
	s, err := NewSubprocess(Config{Command: helperCommand(t, "badshape")}, zap.NewNop())
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	x, mask := testWindow(4)
	_, err = s.Refine(x, mask)
	require.Error(t, err)

	// Shape violations are data errors, not channel failures.
	var cherr *ChannelError
	assert.False(t, errors.As(err, &cherr))
	assert.Contains(t, err.Error(), "length")
}

func TestSubprocess_CloseIdempotent(t *testing.T) {
	s, err := NewSubprocess(Config{Command: helperCommand(t, "echo")}, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	x, mask := testWindow(2)
	_, err = s.Refine(x, mask)
	assert.Error(t, err, "a closed channel accepts no more requests")
}

func TestNewChannel(t *testing.T) {
	t.Run("empty command", func(t *testing.T) {
		_, err := newChannel("  ", "", zap.NewNop())
		assert.Error(t, err)
	})

	t.Run("defaults applied", func(t *testing.T) {
		ch, err := newChannel("python3 worker.py --model m.pt", "", nil)
		require.NoError(t, err)
		assert.Equal(t, "python3", ch.command)
		assert.Equal(t, []string{"worker.py", "--model", "m.pt"}, ch.args)
		assert.Equal(t, DefaultPrefix, ch.prefix)
		assert.NotNil(t, ch.logger)
	})
}
