// pkg/systemd/service.go

// Package systemd controls services through systemctl or the systemd D-Bus
// API.
package systemd

import (
	"fmt"
	"strings"

	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/eos_err"
	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/eos_io"
	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/execute"
)

// ServiceController starts, restarts and reports on services.
type ServiceController interface {
	EnableAndStart(rc *eos_io.RuntimeContext, unit string) error
	// Status is informational; callers treat its error as advisory.
	Status(rc *eos_io.RuntimeContext, unit string) (string, error)
	Restart(rc *eos_io.RuntimeContext, unit string) error
	IsActive(rc *eos_io.RuntimeContext, unit string) (bool, error)
}

const (
	BackendSystemctl = "systemctl"
	BackendDBus      = "dbus"
)

// Backends lists the accepted --service-backend values.
var Backends = []string{BackendSystemctl, BackendDBus}

// New returns the controller for backend.
func New(backend string, r execute.Runner, dryRun bool) (ServiceController, error) {
	switch backend {
	case "", BackendSystemctl:
		return NewSystemctl(r), nil
	case BackendDBus:
		return NewDBus(dryRun), nil
	default:
		return nil, eos_err.NewInvalidValueError(
			fmt.Sprintf("unknown service backend %q", backend),
			"Use one of: "+strings.Join(Backends, ", "),
		)
	}
}

// UnitName appends ".service" to bare service names.
func UnitName(name string) string {
	if strings.Contains(name, ".") {
		return name
	}
	return name + ".service"
}
