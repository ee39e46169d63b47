// Package completion abstracts the external text-completion primitive: given
// a prompt and a hard timeout, produce text and a status. Backends are a
// subprocess CLI, the Anthropic Messages API, and a scripted mock for tests.
package completion

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout is returned when the backend fails to complete within the
// caller's timeout. The underlying work is forcibly terminated, not left
// running.
var ErrTimeout = errors.New("completion timeout")

// Result is one completion outcome. Status is zero on success; a non-zero
// status means the backend ran but failed, with Output carrying whatever
// diagnostics it produced.
type Result struct {
	Output string
	Status int
}

// Invoker runs one completion. env carries the resolved connection
// parameters for the backend. Implementations must enforce the timeout
// themselves and return an error wrapping ErrTimeout when it elapses.
type Invoker interface {
	Invoke(ctx context.Context, prompt string, timeout time.Duration, env []string) (*Result, error)
}
