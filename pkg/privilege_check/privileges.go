// pkg/privilege_check/privileges.go
package privilege_check

import (
	"fmt"
	"os"
	"os/user"
	"strconv"
	"strings"

	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/eos_err"
	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/eos_io"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// PrivilegeCheck describes the effective identity of the process.
type PrivilegeCheck struct {
	UserID   int
	GroupID  int
	Username string
	IsRoot   bool
}

// Checker inspects the effective identity. The function fields exist so
// tests can simulate other identities.
type Checker struct {
	Geteuid func() int
	Getegid func() int
	Current func() (*user.User, error)
}

// NewChecker returns a Checker for the running process.
func NewChecker() *Checker {
	return &Checker{Geteuid: os.Geteuid, Getegid: os.Getegid, Current: user.Current}
}

// CheckPrivileges reports the effective uid, gid and user name.
func (c *Checker) CheckPrivileges(rc *eos_io.RuntimeContext) *PrivilegeCheck {
	logger := otelzap.Ctx(rc.Ctx)

	check := &PrivilegeCheck{UserID: c.Geteuid(), GroupID: c.Getegid()}
	check.IsRoot = check.UserID == 0
	check.Username = "uid-" + strconv.Itoa(check.UserID)
	if c.Current != nil {
		if u, err := c.Current(); err == nil {
			check.Username = u.Username
		} else {
			logger.Warn("Failed to get current user info", zap.Error(err))
		}
	}

	logger.Debug("Privilege check completed",
		zap.String("username", check.Username),
		zap.Int("uid", check.UserID),
		zap.Bool("is_root", check.IsRoot))
	return check
}

// RequireRoot fails with PermissionDenied unless the effective uid is 0.
func (c *Checker) RequireRoot(rc *eos_io.RuntimeContext, commandName string) error {
	check := c.CheckPrivileges(rc)
	if check.IsRoot {
		return nil
	}

	otelzap.Ctx(rc.Ctx).Error("Root privileges required",
		zap.String("command", commandName),
		zap.Int("current_uid", check.UserID))
	return eos_err.NewPermissionError(commandName, "run", nil,
		fmt.Sprintf("The '%s' command requires root privileges", commandName),
		"Re-run with sudo: sudo "+strings.Join(os.Args, " "))
}
