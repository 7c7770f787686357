package recovery

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/netguard/netguard/pkg/config"
)

// Operation is one invocable remediation capability. Concrete operations
// (process invocation, service-manager call, scripted sequence) vary by
// platform without the orchestrator caring.
type Operation interface {
	Name() string
	Execute(ctx context.Context) error
}

// Step pairs an operation with the settle delay that follows it
type Step struct {
	Op        Operation
	WaitAfter time.Duration
}

// CommandOperation runs a shell command as a recovery step
type CommandOperation struct {
	name    string
	command string
	timeout time.Duration
}

// defaultCommandTimeout bounds a single recovery command
const defaultCommandTimeout = 60 * time.Second

// NewCommandOperation creates a shell-command operation
func NewCommandOperation(name, command string) *CommandOperation {
	return &CommandOperation{
		name:    name,
		command: command,
		timeout: defaultCommandTimeout,
	}
}

// Name returns the operation name
func (c *CommandOperation) Name() string {
	return c.name
}

// Execute runs the command through the shell with a bounded context
func (c *CommandOperation) Execute(ctx context.Context) error {
	execCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, "sh", "-c", c.command)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if stderr.Len() > 0 {
			return fmt.Errorf("command %q failed: %w: %s", c.command, err, stderr.String())
		}
		return fmt.Errorf("command %q failed: %w", c.command, err)
	}
	return nil
}

// WithTimeout sets the command execution timeout
func (c *CommandOperation) WithTimeout(timeout time.Duration) *CommandOperation {
	c.timeout = timeout
	return c
}

// StepsFor builds the executable step sequence for a target's configured
// recovery actions, resolved once at target-load time
func StepsFor(actions []config.RecoveryAction) []Step {
	steps := make([]Step, 0, len(actions))
	for _, a := range actions {
		steps = append(steps, Step{
			Op:        NewCommandOperation(a.Name, a.Command),
			WaitAfter: a.WaitAfter.Std(),
		})
	}
	return steps
}
