package completion

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// CLIConfig configures the subprocess completion backend.
type CLIConfig struct {
	Binary string   `yaml:"binary"`
	Args   []string `yaml:"args,omitempty"`
}

// CLIInvoker runs completions by piping the prompt to an external CLI on
// stdin and capturing stdout as the response text.
type CLIInvoker struct {
	config CLIConfig
}

// NewCLIInvoker creates a subprocess completion backend.
func NewCLIInvoker(config CLIConfig) *CLIInvoker {
	return &CLIInvoker{config: config}
}

// Invoke runs one completion. The subprocess inherits the parent environment
// plus the resolved connection parameters. On timeout the subprocess is
// killed; its partial output is discarded.
func (c *CLIInvoker) Invoke(ctx context.Context, prompt string, timeout time.Duration, env []string) (*Result, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, c.config.Binary, c.config.Args...)
	cmd.Env = append(os.Environ(), env...)
	cmd.Stdin = strings.NewReader(prompt)
	// Don't linger waiting for a child that ignores SIGKILL'd pipes.
	cmd.WaitDelay = 5 * time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return nil, fmt.Errorf("%w after %s: %s", ErrTimeout, timeout, c.config.Binary)
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// The backend ran and reported failure. Surface the status and
			// its diagnostics rather than treating this as an internal
			// error.
			return &Result{
				Output: strings.TrimSpace(stderr.String()),
				Status: exitErr.ExitCode(),
			}, nil
		}
		return nil, fmt.Errorf("run %s: %w", c.config.Binary, err)
	}

	return &Result{Output: strings.TrimRight(stdout.String(), "\n")}, nil
}
