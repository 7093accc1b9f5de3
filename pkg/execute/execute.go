// pkg/execute/execute.go

// Package execute runs external commands without a shell, capturing their
// combined output for logging and error reporting. Every call blocks until
// the command exits; there are no retries.
package execute

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/telemetry"
	cerr "github.com/cockroachdb/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Options describes one external invocation.
type Options struct {
	Command string
	Args    []string
	// Env entries (KEY=VALUE) are appended to the current environment.
	Env []string
	// Stdin is fed to the process and never logged.
	Stdin []byte
	Dir   string
	// ReadOnly marks state queries; they still run in dry-run mode.
	ReadOnly bool
	// Timeout of zero means the call blocks until the command exits.
	Timeout time.Duration
}

// String renders the command line for logs and error messages.
func (o Options) String() string {
	return buildCommandString(o.Command, o.Args...)
}

// Runner executes external commands. Implementations return the combined
// output and a *RunError when the command could not run or exited non-zero.
type Runner interface {
	Run(ctx context.Context, opts Options) (string, error)
}

// RunError reports a failed invocation.
type RunError struct {
	Command string
	Output  string
	// Code is the exit status, or -1 when the process never ran.
	Code int
	Err  error
}

func (e *RunError) Error() string {
	if e.Code >= 0 {
		return fmt.Sprintf("%s: exit status %d", e.Command, e.Code)
	}
	return fmt.Sprintf("%s: %v", e.Command, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }

// NewExitError builds the error a Runner returns for a non-zero exit status.
func NewExitError(opts Options, code int, output string) *RunError {
	return &RunError{
		Command: opts.String(),
		Output:  output,
		Code:    code,
		Err:     fmt.Errorf("exit status %d", code),
	}
}

// ExitCode returns the exit status carried by err, 0 for nil and -1 when the
// command never produced one (not found, killed, cancelled).
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var runErr *RunError
	if cerr.As(err, &runErr) {
		return runErr.Code
	}
	return -1
}

// OutputOf returns the captured output carried by err, if any.
func OutputOf(err error) string {
	var runErr *RunError
	if cerr.As(err, &runErr) {
		return runErr.Output
	}
	return ""
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	Logger *zap.Logger
	DryRun bool
}

// NewExecRunner returns a Runner backed by os/exec.
func NewExecRunner(logger *zap.Logger, dryRun bool) *ExecRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExecRunner{Logger: logger.Named("execute"), DryRun: dryRun}
}

// Run executes opts and blocks until the command exits.
func (r *ExecRunner) Run(ctx context.Context, opts Options) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := r.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cmdStr := opts.String()

	ctx, span := telemetry.Start(ctx, "execute.Run")
	defer span.End()
	span.SetAttributes(
		attribute.String("command", opts.Command),
		attribute.String("args", strings.Join(opts.Args, " ")),
		attribute.Bool("read_only", opts.ReadOnly),
	)

	if r.DryRun && !opts.ReadOnly {
		logger.Info("Dry run mode - command not executed", zap.String("command", cmdStr))
		return "", nil
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	logger.Debug("Starting execution", zap.String("command", cmdStr))

	cmd := exec.CommandContext(ctx, opts.Command, opts.Args...)
	if opts.Dir != "" {
		cmd.Dir = opts.Dir
	}
	if len(opts.Env) > 0 {
		cmd.Env = append(os.Environ(), opts.Env...)
	}
	if opts.Stdin != nil {
		cmd.Stdin = bytes.NewReader(opts.Stdin)
	}

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	err := cmd.Run()
	output := buf.String()
	if err == nil {
		logger.Debug("Execution succeeded", zap.String("command", cmdStr))
		return output, nil
	}

	span.RecordError(err)
	runErr := &RunError{Command: cmdStr, Output: output, Code: -1, Err: err}
	var exitErr *exec.ExitError
	if cerr.As(err, &exitErr) && exitErr.ExitCode() >= 0 {
		runErr.Code = exitErr.ExitCode()
	}

	level := zap.WarnLevel
	if opts.ReadOnly {
		// Non-zero exits are the normal "no" answer of a state query.
		level = zap.DebugLevel
	}
	logger.Log(level, "Execution failed",
		zap.String("command", cmdStr),
		zap.Int("exit_code", runErr.Code),
		zap.Error(err),
	)
	return output, runErr
}

func buildCommandString(command string, args ...string) string {
	if len(args) == 0 {
		return command
	}
	return command + " " + strings.Join(args, " ")
}
