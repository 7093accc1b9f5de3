// pkg/systemd/systemctl.go

package systemd

import (
	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/eos_err"
	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/eos_io"
	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/execute"
	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/telemetry"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Systemctl implements ServiceController by running systemctl.
type Systemctl struct {
	Runner execute.Runner
}

// NewSystemctl returns a ServiceController running systemctl through r.
func NewSystemctl(r execute.Runner) *Systemctl {
	return &Systemctl{Runner: r}
}

func (s *Systemctl) run(rc *eos_io.RuntimeContext, step string, readOnly bool, args ...string) (string, error) {
	ctx, span := telemetry.Start(rc.Ctx, "systemd.systemctl", attribute.StringSlice("args", args))
	defer span.End()

	opts := execute.Options{Command: "systemctl", Args: args, ReadOnly: readOnly}
	otelzap.Ctx(ctx).Debug("Executing systemctl command", zap.Strings("args", args))
	out, err := s.Runner.Run(ctx, opts)
	if err != nil {
		return out, eos_err.NewExternalCommandError(step, opts.String(), out, err)
	}
	return out, nil
}

// EnableAndStart enables unit at boot and starts it now.
func (s *Systemctl) EnableAndStart(rc *eos_io.RuntimeContext, unit string) error {
	otelzap.Ctx(rc.Ctx).Info("Enabling and starting service", zap.String("unit", unit))
	_, err := s.run(rc, "enabling "+unit, false, "enable", "--now", unit)
	return err
}

// Status returns the human-readable status of unit. systemctl exits
// non-zero for inactive units; the output is returned either way.
func (s *Systemctl) Status(rc *eos_io.RuntimeContext, unit string) (string, error) {
	return s.run(rc, "status of "+unit, true, "status", "--no-pager", unit)
}

// Restart restarts unit.
func (s *Systemctl) Restart(rc *eos_io.RuntimeContext, unit string) error {
	otelzap.Ctx(rc.Ctx).Info("Restarting service", zap.String("unit", unit))
	_, err := s.run(rc, "restarting "+unit, false, "restart", unit)
	return err
}

// IsActive reports whether unit is running.
func (s *Systemctl) IsActive(rc *eos_io.RuntimeContext, unit string) (bool, error) {
	_, err := s.run(rc, "checking "+unit, true, "is-active", "--quiet", unit)
	switch code := execute.ExitCode(err); {
	case code == 0:
		return true, nil
	case code > 0:
		return false, nil
	default:
		return false, err
	}
}
