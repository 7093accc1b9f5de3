// pkg/users/account.go

// Package users manages local login accounts through the shadow-utils
// commands (id, useradd, chpasswd, usermod). The system account database is
// the only source of truth; nothing is cached between calls.
package users

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/eos_err"
	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/eos_io"
	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/execute"
	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/telemetry"
	"github.com/awnumar/memguard"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Account describes the login account to provision.
type Account struct {
	Username string
	Home     string
	Shell    string
}

// AccountManager queries and changes local accounts.
type AccountManager interface {
	Exists(rc *eos_io.RuntimeContext, username string) (bool, error)
	Create(rc *eos_io.RuntimeContext, account Account) error
	// SetPassword never places the password on a command line.
	SetPassword(rc *eos_io.RuntimeContext, username string, password []byte) error
	InGroup(rc *eos_io.RuntimeContext, username, group string) (bool, error)
	AddToGroup(rc *eos_io.RuntimeContext, username, group string) error
}

// ExecAccountManager implements AccountManager with shadow-utils.
type ExecAccountManager struct {
	Runner execute.Runner
}

// NewExecAccountManager returns an AccountManager running commands through r.
func NewExecAccountManager(r execute.Runner) *ExecAccountManager {
	return &ExecAccountManager{Runner: r}
}

var usernameRe = regexp.MustCompile(`^[a-z_][a-z0-9_-]{0,31}$`)

// ValidateUsername ensures the input is a valid UNIX-style username.
func ValidateUsername(username string) error {
	if !usernameRe.MatchString(username) {
		return eos_err.NewInvalidValueError(
			fmt.Sprintf("invalid username %q", username),
			"Use up to 32 lowercase letters, digits, underscores or dashes, starting with a letter or underscore",
		)
	}
	return nil
}

// Exists reports whether username resolves to a uid.
func (m *ExecAccountManager) Exists(rc *eos_io.RuntimeContext, username string) (bool, error) {
	ctx, span := telemetry.Start(rc.Ctx, "users.Exists", attribute.String("username", username))
	defer span.End()

	opts := execute.Options{Command: "id", Args: []string{"-u", username}, ReadOnly: true}
	out, err := m.Runner.Run(ctx, opts)
	switch code := execute.ExitCode(err); {
	case code == 0:
		otelzap.Ctx(ctx).Debug("User exists", zap.String("username", username), zap.String("uid", strings.TrimSpace(out)))
		return true, nil
	case code > 0:
		// id exits 1 for "no such user"
		return false, nil
	default:
		return false, eos_err.NewExternalCommandError("checking user "+username, opts.String(), out, err)
	}
}

// Create adds the account with a home directory and login shell.
func (m *ExecAccountManager) Create(rc *eos_io.RuntimeContext, account Account) error {
	ctx, span := telemetry.Start(rc.Ctx, "users.Create", attribute.String("username", account.Username))
	defer span.End()
	logger := otelzap.Ctx(ctx)

	args := []string{"-m"}
	if account.Home != "" {
		args = append(args, "-d", account.Home)
	}
	if account.Shell != "" {
		args = append(args, "-s", account.Shell)
	}
	args = append(args, account.Username)

	opts := execute.Options{Command: "useradd", Args: args}
	logger.Info("Creating user account",
		zap.String("username", account.Username),
		zap.String("home", account.Home),
		zap.String("shell", account.Shell))
	if out, err := m.Runner.Run(ctx, opts); err != nil {
		return eos_err.NewExternalCommandError("creating user "+account.Username, opts.String(), out, err)
	}
	return nil
}

// SetPassword feeds "user:password" to chpasswd on stdin.
func (m *ExecAccountManager) SetPassword(rc *eos_io.RuntimeContext, username string, password []byte) error {
	ctx, span := telemetry.Start(rc.Ctx, "users.SetPassword", attribute.String("username", username))
	defer span.End()

	if len(password) == 0 {
		return eos_err.NewInvalidValueError("password must not be empty")
	}
	if strings.ContainsAny(string(password), "\r\n") {
		return eos_err.NewInvalidValueError("password must not contain line breaks")
	}
	if err := ValidateUsername(username); err != nil {
		return err
	}

	input := make([]byte, 0, len(username)+len(password)+2)
	input = append(input, username...)
	input = append(input, ':')
	input = append(input, password...)
	input = append(input, '\n')
	defer memguard.WipeBytes(input)

	opts := execute.Options{Command: "chpasswd", Stdin: input}
	otelzap.Ctx(ctx).Info("Setting user password", zap.String("username", username))
	if out, err := m.Runner.Run(ctx, opts); err != nil {
		return eos_err.NewExternalCommandError("setting password for "+username, opts.String(), out, err)
	}
	return nil
}

// InGroup reports whether username is a member of group.
func (m *ExecAccountManager) InGroup(rc *eos_io.RuntimeContext, username, group string) (bool, error) {
	ctx, span := telemetry.Start(rc.Ctx, "users.InGroup",
		attribute.String("username", username), attribute.String("group", group))
	defer span.End()

	opts := execute.Options{Command: "id", Args: []string{"-nG", username}, ReadOnly: true}
	out, err := m.Runner.Run(ctx, opts)
	if err != nil {
		return false, eos_err.NewExternalCommandError("listing groups of "+username, opts.String(), out, err)
	}
	for _, g := range strings.Fields(out) {
		if g == group {
			return true, nil
		}
	}
	return false, nil
}

// AddToGroup appends group to the supplementary groups of username.
func (m *ExecAccountManager) AddToGroup(rc *eos_io.RuntimeContext, username, group string) error {
	ctx, span := telemetry.Start(rc.Ctx, "users.AddToGroup",
		attribute.String("username", username), attribute.String("group", group))
	defer span.End()

	opts := execute.Options{Command: "usermod", Args: []string{"-aG", group, username}}
	otelzap.Ctx(ctx).Info("Adding user to group", zap.String("username", username), zap.String("group", group))
	if out, err := m.Runner.Run(ctx, opts); err != nil {
		return eos_err.NewExternalCommandError(fmt.Sprintf("adding %s to %s", username, group), opts.String(), out, err)
	}
	return nil
}
