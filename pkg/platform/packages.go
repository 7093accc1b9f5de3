// pkg/platform/packages.go

package platform

import (
	"strings"

	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/eos_err"
	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/eos_io"
	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/execute"
	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/telemetry"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// PackageManager queries and installs system packages.
type PackageManager interface {
	IsInstalled(rc *eos_io.RuntimeContext, pkg string) (bool, error)
	Refresh(rc *eos_io.RuntimeContext) error
	Install(rc *eos_io.RuntimeContext, pkg string) error
}

// AptPackageManager implements PackageManager with dpkg-query and apt-get.
type AptPackageManager struct {
	Runner execute.Runner
}

// NewAptPackageManager returns a PackageManager running commands through r.
func NewAptPackageManager(r execute.Runner) *AptPackageManager {
	return &AptPackageManager{Runner: r}
}

var aptEnv = []string{"DEBIAN_FRONTEND=noninteractive"}

// IsInstalled reports whether dpkg lists pkg as "install ok installed".
// Unknown packages make dpkg-query exit non-zero and report false.
func (a *AptPackageManager) IsInstalled(rc *eos_io.RuntimeContext, pkg string) (bool, error) {
	ctx, span := telemetry.Start(rc.Ctx, "platform.IsInstalled", attribute.String("package", pkg))
	defer span.End()

	opts := execute.Options{
		Command:  "dpkg-query",
		Args:     []string{"-W", "-f=${Status}", pkg},
		ReadOnly: true,
	}
	out, err := a.Runner.Run(ctx, opts)
	if code := execute.ExitCode(err); code < 0 {
		return false, eos_err.NewExternalCommandError("querying package "+pkg, opts.String(), out, err)
	} else if code > 0 {
		return false, nil
	}
	installed := strings.Contains(out, "install ok installed")
	otelzap.Ctx(ctx).Debug("Package state", zap.String("package", pkg), zap.Bool("installed", installed))
	return installed, nil
}

// Refresh updates the package index.
func (a *AptPackageManager) Refresh(rc *eos_io.RuntimeContext) error {
	ctx, span := telemetry.Start(rc.Ctx, "platform.Refresh")
	defer span.End()

	opts := execute.Options{Command: "apt-get", Args: []string{"update"}, Env: aptEnv}
	otelzap.Ctx(ctx).Info("Refreshing package index")
	if out, err := a.Runner.Run(ctx, opts); err != nil {
		return eos_err.NewExternalCommandError("refreshing package index", opts.String(), out, err)
	}
	return nil
}

// Install installs pkg without prompting.
func (a *AptPackageManager) Install(rc *eos_io.RuntimeContext, pkg string) error {
	ctx, span := telemetry.Start(rc.Ctx, "platform.Install", attribute.String("package", pkg))
	defer span.End()

	opts := execute.Options{Command: "apt-get", Args: []string{"install", "-y", pkg}, Env: aptEnv}
	otelzap.Ctx(ctx).Info("Installing package", zap.String("package", pkg))
	if out, err := a.Runner.Run(ctx, opts); err != nil {
		return eos_err.NewExternalCommandError("installing "+pkg, opts.String(), out, err)
	}
	return nil
}

// EnsureInstalled refreshes the index and installs pkg unless it is already
// installed. It reports whether anything was installed.
func EnsureInstalled(rc *eos_io.RuntimeContext, pm PackageManager, pkg string) (bool, error) {
	installed, err := pm.IsInstalled(rc, pkg)
	if err != nil {
		return false, err
	}
	if installed {
		otelzap.Ctx(rc.Ctx).Info("Package already installed", zap.String("package", pkg))
		return false, nil
	}
	if err := pm.Refresh(rc); err != nil {
		return false, err
	}
	if err := pm.Install(rc, pkg); err != nil {
		return false, err
	}
	return true, nil
}
