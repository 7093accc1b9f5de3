// pkg/systemd/dbus.go

package systemd

import (
	"context"
	"fmt"

	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/eos_err"
	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/eos_io"
	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/telemetry"
	"github.com/coreos/go-systemd/v22/dbus"
	cerr "github.com/cockroachdb/errors"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Conn is the subset of the systemd manager API the D-Bus backend uses.
type Conn interface {
	EnableUnitFilesContext(ctx context.Context, files []string, runtime bool, force bool) (bool, []dbus.EnableUnitFileChange, error)
	ReloadContext(ctx context.Context) error
	StartUnitContext(ctx context.Context, name string, mode string, ch chan<- string) (int, error)
	RestartUnitContext(ctx context.Context, name string, mode string, ch chan<- string) (int, error)
	GetUnitPropertyContext(ctx context.Context, unit string, propertyName string) (*dbus.Property, error)
	Close()
}

var _ Conn = (*dbus.Conn)(nil)

// DBus implements ServiceController over the system bus.
type DBus struct {
	DryRun bool
	Dial   func(ctx context.Context) (Conn, error)
}

// NewDBus returns a ServiceController connected to the system manager.
func NewDBus(dryRun bool) *DBus {
	return &DBus{
		DryRun: dryRun,
		Dial: func(ctx context.Context) (Conn, error) {
			return dbus.NewSystemConnectionContext(ctx)
		},
	}
}

func (d *DBus) connect(ctx context.Context) (Conn, error) {
	conn, err := d.Dial(ctx)
	if err != nil {
		return nil, eos_err.NewFilesystemError("failed to connect to systemd over D-Bus", err,
			"Check that systemd is PID 1 and the system bus is running",
			"Retry with --service-backend systemctl")
	}
	return conn, nil
}

// waitJob blocks until systemd reports the job result.
func waitJob(ctx context.Context, ch <-chan string) error {
	select {
	case result := <-ch:
		if result != "done" {
			return cerr.Newf("job finished with result %q", result)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// EnableAndStart enables the unit file and starts the unit.
func (d *DBus) EnableAndStart(rc *eos_io.RuntimeContext, unit string) error {
	ctx, span := telemetry.Start(rc.Ctx, "systemd.dbus.EnableAndStart", attribute.String("unit", unit))
	defer span.End()
	logger := otelzap.Ctx(ctx)
	name := UnitName(unit)

	if d.DryRun {
		logger.Info("Dry run mode - service not enabled", zap.String("unit", name))
		return nil
	}
	conn, err := d.connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	logger.Info("Enabling and starting service", zap.String("unit", name))
	if _, _, err := conn.EnableUnitFilesContext(ctx, []string{name}, false, true); err != nil {
		return eos_err.NewExternalCommandError("enabling "+name, "EnableUnitFiles "+name, "", err)
	}
	if err := conn.ReloadContext(ctx); err != nil {
		return eos_err.NewExternalCommandError("reloading systemd", "Reload", "", err)
	}
	ch := make(chan string, 1)
	if _, err := conn.StartUnitContext(ctx, name, "replace", ch); err != nil {
		return eos_err.NewExternalCommandError("starting "+name, "StartUnit "+name, "", err)
	}
	if err := waitJob(ctx, ch); err != nil {
		return eos_err.NewExternalCommandError("starting "+name, "StartUnit "+name, "", err)
	}
	return nil
}

// Status returns the ActiveState and SubState of the unit.
func (d *DBus) Status(rc *eos_io.RuntimeContext, unit string) (string, error) {
	ctx, span := telemetry.Start(rc.Ctx, "systemd.dbus.Status", attribute.String("unit", unit))
	defer span.End()
	name := UnitName(unit)

	conn, err := d.connect(ctx)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	active, err := unitProperty(ctx, conn, name, "ActiveState")
	if err != nil {
		return "", err
	}
	sub, err := unitProperty(ctx, conn, name, "SubState")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s: %s (%s)", name, active, sub), nil
}

// Restart restarts the unit and waits for the job.
func (d *DBus) Restart(rc *eos_io.RuntimeContext, unit string) error {
	ctx, span := telemetry.Start(rc.Ctx, "systemd.dbus.Restart", attribute.String("unit", unit))
	defer span.End()
	logger := otelzap.Ctx(ctx)
	name := UnitName(unit)

	if d.DryRun {
		logger.Info("Dry run mode - service not restarted", zap.String("unit", name))
		return nil
	}
	conn, err := d.connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	logger.Info("Restarting service", zap.String("unit", name))
	ch := make(chan string, 1)
	if _, err := conn.RestartUnitContext(ctx, name, "replace", ch); err != nil {
		return eos_err.NewExternalCommandError("restarting "+name, "RestartUnit "+name, "", err)
	}
	if err := waitJob(ctx, ch); err != nil {
		return eos_err.NewExternalCommandError("restarting "+name, "RestartUnit "+name, "", err)
	}
	return nil
}

// IsActive reports whether ActiveState is "active".
func (d *DBus) IsActive(rc *eos_io.RuntimeContext, unit string) (bool, error) {
	ctx, span := telemetry.Start(rc.Ctx, "systemd.dbus.IsActive", attribute.String("unit", unit))
	defer span.End()

	conn, err := d.connect(ctx)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	state, err := unitProperty(ctx, conn, UnitName(unit), "ActiveState")
	if err != nil {
		return false, err
	}
	return state == "active", nil
}

func unitProperty(ctx context.Context, conn Conn, unit, property string) (string, error) {
	prop, err := conn.GetUnitPropertyContext(ctx, unit, property)
	if err != nil {
		return "", eos_err.NewExternalCommandError("reading "+property+" of "+unit, "GetUnitProperty "+unit, "", err)
	}
	v, ok := prop.Value.Value().(string)
	if !ok {
		return "", eos_err.NewInternalError(fmt.Sprintf("unexpected %s type %T", property, prop.Value.Value()), nil)
	}
	return v, nil
}
