package llm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"NewsPipeline/internal/ports"
)

const waitDelay = time.Second

// CommandCompleter pipes the prompt to a local model CLI on stdin and reads
// the reply from stdout.
type CommandCompleter struct {
	name string
	args []string
}

var _ ports.Completer = (*CommandCompleter)(nil)

// NewCommandCompleter wraps argv; argv[0] is resolved on PATH at call time.
func NewCommandCompleter(argv []string) *CommandCompleter {
	c := &CommandCompleter{}
	if len(argv) > 0 {
		c.name = argv[0]
		c.args = append([]string(nil), argv[1:]...)
	}
	return c
}

// Complete runs the command once. A command that cannot be started is
// reported as ports.ErrProcessStart; a deadline kills the process.
func (c *CommandCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	if c.name == "" {
		return "", fmt.Errorf("no model command configured: %w", ports.ErrProcessStart)
	}

	cmd := exec.CommandContext(ctx, c.name, c.args...)
	cmd.Stdin = strings.NewReader(prompt)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// Grandchildren holding the pipes must not outlive a cancelled call.
	cmd.WaitDelay = waitDelay

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("start %s: %w: %v", c.name, ports.ErrProcessStart, err)
	}

	if err := cmd.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("%s: %w", c.name, ctxErr)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("%s exited with %d: %s", c.name, exitErr.ExitCode(), tail(stderr.String(), 512))
		}
		return "", fmt.Errorf("%s: %w", c.name, err)
	}

	out := strings.TrimSpace(stdout.String())
	if out == "" {
		return "", fmt.Errorf("%s produced no output", c.name)
	}
	return out, nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
