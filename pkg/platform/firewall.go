// pkg/platform/firewall.go

package platform

import (
	"os/exec"
	"strings"

	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/eos_err"
	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/eos_io"
	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/execute"
	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/telemetry"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// FirewallController manages the host firewall.
type FirewallController interface {
	Available(rc *eos_io.RuntimeContext) bool
	IsActive(rc *eos_io.RuntimeContext) (bool, error)
	Allow(rc *eos_io.RuntimeContext, rule string) error
	Reload(rc *eos_io.RuntimeContext) error
}

// UFW implements FirewallController with the ufw frontend.
type UFW struct {
	Runner execute.Runner
	// LookPath locates the ufw binary; exec.LookPath when nil.
	LookPath func(file string) (string, error)
}

// NewUFW returns a FirewallController running commands through r.
func NewUFW(r execute.Runner) *UFW {
	return &UFW{Runner: r, LookPath: exec.LookPath}
}

// Available reports whether ufw is installed.
func (u *UFW) Available(rc *eos_io.RuntimeContext) bool {
	lookPath := u.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	path, err := lookPath("ufw")
	if err != nil {
		otelzap.Ctx(rc.Ctx).Info("ufw not found", zap.Error(err))
		return false
	}
	otelzap.Ctx(rc.Ctx).Debug("ufw detected", zap.String("path", path))
	return true
}

// IsActive reports whether "ufw status" shows the firewall enabled.
func (u *UFW) IsActive(rc *eos_io.RuntimeContext) (bool, error) {
	ctx, span := telemetry.Start(rc.Ctx, "platform.FirewallStatus")
	defer span.End()

	opts := execute.Options{Command: "ufw", Args: []string{"status"}, ReadOnly: true}
	out, err := u.Runner.Run(ctx, opts)
	if err != nil {
		return false, eos_err.NewExternalCommandError("querying firewall status", opts.String(), out, err)
	}
	return strings.Contains(out, "Status: active"), nil
}

// Allow adds an allow rule, such as an application profile or port.
func (u *UFW) Allow(rc *eos_io.RuntimeContext, rule string) error {
	ctx, span := telemetry.Start(rc.Ctx, "platform.FirewallAllow", attribute.String("rule", rule))
	defer span.End()

	opts := execute.Options{Command: "ufw", Args: []string{"allow", rule}}
	otelzap.Ctx(ctx).Info("Allowing firewall rule", zap.String("rule", rule))
	if out, err := u.Runner.Run(ctx, opts); err != nil {
		return eos_err.NewExternalCommandError("allowing firewall rule "+rule, opts.String(), out, err)
	}
	return nil
}

// Reload applies pending rule changes.
func (u *UFW) Reload(rc *eos_io.RuntimeContext) error {
	ctx, span := telemetry.Start(rc.Ctx, "platform.FirewallReload")
	defer span.End()

	opts := execute.Options{Command: "ufw", Args: []string{"reload"}}
	if out, err := u.Runner.Run(ctx, opts); err != nil {
		return eos_err.NewExternalCommandError("reloading firewall", opts.String(), out, err)
	}
	return nil
}
