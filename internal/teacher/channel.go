package teacher

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// channelState tracks the worker lifecycle. Failed is terminal: a worker
// that died mid-request is never respawned by this channel instance.
type channelState int

const (
	stateUnstarted channelState = iota
	stateRunning
	stateFailed
	stateClosed
)

const (
	// closeWait bounds how long Close waits for a graceful worker exit
	// before force-killing.
	closeWait = 5 * time.Second
	// exitWait bounds how long a failed request waits for the worker's
	// exit code to be reaped.
	exitWait = 2 * time.Second
)

// channel owns one long-lived worker process holding an expensive, stateful
// resource (a loaded model) so that cost is paid once, not once per request.
// Its stdin/stdout are owned exclusively by this struct; stderr carries only
// diagnostics and is drained into the logger. Requests are strictly
// half-duplex: one line out, then read until a prefix-framed line comes back.
type channel struct {
	mu sync.Mutex

	command string
	args    []string
	prefix  string
	logger  *zap.Logger

	state channelState
	cmd   *exec.Cmd
	stdin io.WriteCloser
	out   *bufio.Reader
	wg    sync.WaitGroup

	waitDone chan struct{}
	exitCode int
}

// newChannel parses the worker command line (split on whitespace) without
// starting the process.
func newChannel(commandLine, prefix string, logger *zap.Logger) (*channel, error) {
	parts := strings.Fields(commandLine)
	if len(parts) == 0 {
		return nil, fmt.Errorf("empty teacher worker command")
	}
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &channel{
		command:  parts[0],
		args:     parts[1:],
		prefix:   prefix,
		logger:   logger,
		waitDone: make(chan struct{}),
	}, nil
}

// start spawns the worker if it is not already running. Idempotent while
// Running; an error once the channel has failed or been closed.
func (c *channel) start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.startLocked()
}

func (c *channel) startLocked() error {
	switch c.state {
	case stateRunning:
		return nil
	case stateFailed:
		return &ChannelError{ExitCode: c.exitCodeLocked()}
	case stateClosed:
		return fmt.Errorf("teacher worker channel is closed")
	}

	cmd := exec.Command(c.command, c.args...)
	cmd.Env = append(os.Environ(), "PYTHONUNBUFFERED=1")

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to get stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to get stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to get stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start teacher worker %s: %w", c.command, err)
	}

	c.cmd = cmd
	c.stdin = stdin
	c.out = bufio.NewReader(stdout)
	c.state = stateRunning

	c.logger.Info("Teacher worker started",
		zap.String("command", c.command),
		zap.Int("pid", cmd.Process.Pid))

	c.wg.Add(1)
	go c.drainStderr(stderr)

	c.wg.Add(1)
	go c.waitProcess()

	return nil
}

// call sends one compact-JSON request line and reads stdout until a framed
// response line arrives, returning the unframed payload. Exactly one
// request may be outstanding at a time.
func (c *channel) call(request []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.startLocked(); err != nil {
		return nil, err
	}

	if _, err := c.stdin.Write(append(request, '\n')); err != nil {
		c.state = stateFailed
		return nil, &ChannelError{ExitCode: c.exitCodeLocked(), Err: fmt.Errorf("failed to write request: %w", err)}
	}

	for {
		line, err := c.out.ReadString('\n')
		if err != nil {
			// End of stream before a framed response is worker death.
			c.state = stateFailed
			return nil, &ChannelError{ExitCode: c.exitCodeLocked(), Err: fmt.Errorf("worker output ended before a framed response: %w", err)}
		}
		line = strings.TrimRight(line, "\r\n")
		if !strings.HasPrefix(line, c.prefix) {
			// Not protocol traffic; diagnostic noise on the shared
			// stream is tolerated by framing.
			c.logger.Debug("Ignoring unframed worker output", zap.String("line", line))
			continue
		}
		return []byte(strings.TrimPrefix(line, c.prefix)), nil
	}
}

// exitCodeLocked returns the worker's exit code, waiting briefly for the
// reaper if the process is still being collected. -1 when unknown.
func (c *channel) exitCodeLocked() int {
	if c.cmd == nil {
		return -1
	}
	select {
	case <-c.waitDone:
		return c.exitCode
	case <-time.After(exitWait):
		return -1
	}
}

// drainStderr re-logs worker diagnostics, mapping the [LEVEL] tag in each
// line onto the matching log level.
func (c *channel) drainStderr(r io.Reader) {
	defer c.wg.Done()
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.Contains(line, "[ERROR]") || strings.Contains(line, "[CRITICAL]"):
			c.logger.Error("Teacher worker stderr", zap.String("line", line))
		case strings.Contains(line, "[WARNING]") || strings.Contains(line, "[WARN]"):
			c.logger.Warn("Teacher worker stderr", zap.String("line", line))
		default:
			c.logger.Debug("Teacher worker stderr", zap.String("line", line))
		}
	}
}

// waitProcess reaps the worker and records its exit code.
func (c *channel) waitProcess() {
	defer c.wg.Done()
	err := c.cmd.Wait()
	code := 0
	if c.cmd.ProcessState != nil {
		code = c.cmd.ProcessState.ExitCode()
	} else if err != nil {
		code = -1
	}
	c.exitCode = code
	close(c.waitDone)
}

// close shuts the worker down: close stdin to signal shutdown, request
// graceful termination, wait up to closeWait, then force-kill. Idempotent
// and best-effort; teardown errors are swallowed so shutdown never crashes
// the caller.
func (c *channel) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == stateClosed {
		return
	}
	started := c.cmd != nil
	c.state = stateClosed

	if c.stdin != nil {
		_ = c.stdin.Close()
	}
	if !started {
		return
	}

	if c.cmd.Process != nil {
		_ = c.cmd.Process.Signal(syscall.SIGTERM)
	}

	select {
	case <-c.waitDone:
	case <-time.After(closeWait):
		c.logger.Warn("Teacher worker did not exit in time, killing",
			zap.String("command", c.command))
		if c.cmd.Process != nil {
			_ = c.cmd.Process.Kill()
		}
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		c.logger.Warn("Timeout waiting for teacher channel goroutines to exit")
	}
}
