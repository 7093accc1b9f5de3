package testutil

import (
	"context"
	"os/exec"
	"strings"
	"sync"

	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/execute"
)

// Handler produces the scripted result of a command.
type Handler func(opts execute.Options) (string, error)

type scripted struct {
	prefix  string
	handler Handler
}

// RecordingRunner is an execute.Runner that records every invocation and
// answers from scripted responses. Commands without a matching script
// succeed with empty output.
type RecordingRunner struct {
	mu      sync.Mutex
	calls   []execute.Options
	scripts []scripted
}

// NewRecordingRunner returns an empty RecordingRunner.
func NewRecordingRunner() *RecordingRunner {
	return &RecordingRunner{}
}

// On scripts the response for command lines starting with prefix. A code of
// -1 simulates a binary that could not be started. Later scripts take
// precedence over earlier ones.
func (r *RecordingRunner) On(prefix, output string, code int) *RecordingRunner {
	return r.OnFunc(prefix, func(opts execute.Options) (string, error) {
		switch {
		case code == 0:
			return output, nil
		case code < 0:
			return output, &execute.RunError{Command: opts.String(), Output: output, Code: -1, Err: exec.ErrNotFound}
		default:
			return output, execute.NewExitError(opts, code, output)
		}
	})
}

// OnFunc scripts a dynamic response for command lines starting with prefix.
func (r *RecordingRunner) OnFunc(prefix string, h Handler) *RecordingRunner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scripts = append(r.scripts, scripted{prefix: prefix, handler: h})
	return r
}

// Run records opts and returns the scripted response.
func (r *RecordingRunner) Run(_ context.Context, opts execute.Options) (string, error) {
	r.mu.Lock()
	r.calls = append(r.calls, opts)
	var h Handler
	line := opts.String()
	for i := len(r.scripts) - 1; i >= 0; i-- {
		if matchesPrefix(line, r.scripts[i].prefix) {
			h = r.scripts[i].handler
			break
		}
	}
	r.mu.Unlock()

	if h == nil {
		return "", nil
	}
	return h(opts)
}

// Calls returns a copy of every recorded invocation.
func (r *RecordingRunner) Calls() []execute.Options {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]execute.Options, len(r.calls))
	copy(out, r.calls)
	return out
}

// Commands returns the recorded command lines in order.
func (r *RecordingRunner) Commands() []string {
	calls := r.Calls()
	out := make([]string, 0, len(calls))
	for _, c := range calls {
		out = append(out, c.String())
	}
	return out
}

// Ran reports whether any recorded command line starts with prefix.
func (r *RecordingRunner) Ran(prefix string) bool {
	for _, line := range r.Commands() {
		if matchesPrefix(line, prefix) {
			return true
		}
	}
	return false
}

// Count returns how many recorded command lines start with prefix.
func (r *RecordingRunner) Count(prefix string) int {
	n := 0
	for _, line := range r.Commands() {
		if matchesPrefix(line, prefix) {
			n++
		}
	}
	return n
}

// matchesPrefix matches whole words so "id -u" does not match "id -un".
func matchesPrefix(line, prefix string) bool {
	if !strings.HasPrefix(line, prefix) {
		return false
	}
	return len(line) == len(prefix) || line[len(prefix)] == ' '
}
