package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/eos_io"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap/zaptest"
)

// TestRuntimeContext returns a RuntimeContext whose logger writes to t.
func TestRuntimeContext(t *testing.T) *eos_io.RuntimeContext {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return &eos_io.RuntimeContext{
		Ctx:        ctx,
		Log:        zaptest.NewLogger(t),
		Timestamp:  time.Now(),
		Span:       trace.SpanFromContext(ctx),
		Command:    t.Name(),
		Component:  "test",
		Attributes: make(map[string]string),
	}
}
