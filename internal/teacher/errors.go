package teacher

import "fmt"

// ChannelError reports that the worker channel itself failed: the process
// exited unexpectedly or its output stream ended before a framed response.
// It is fatal to the channel instance; the pipeline does not retry or
// respawn mid-run.
type ChannelError struct {
	// ExitCode is the worker's exit code when known, -1 otherwise.
	ExitCode int
	Err      error
}

func (e *ChannelError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("teacher worker channel failed (exit code %d): %v", e.ExitCode, e.Err)
	}
	return fmt.Sprintf("teacher worker exited unexpectedly (exit code %d)", e.ExitCode)
}

func (e *ChannelError) Unwrap() error { return e.Err }
