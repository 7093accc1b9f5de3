// pkg/hostsetup/config.go

package hostsetup

import (
	"fmt"
	"path"
	"strings"

	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/eos_err"
	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/sshd"
	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/systemd"
	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/users"
	"github.com/awnumar/memguard"
	cerr "github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
)

// Config is everything one provisioning run needs. It is built by the CLI
// from flags, environment, config file and defaults.
type Config struct {
	Username string `mapstructure:"username" validate:"required,unix_username"`
	// Home defaults to /home/<username>.
	Home  string `mapstructure:"home" validate:"omitempty,startswith=/"`
	Shell string `mapstructure:"shell" validate:"required,startswith=/"`

	AdminGroup     bool   `mapstructure:"admin_group"`
	AdminGroupName string `mapstructure:"admin_group_name" validate:"required_if=AdminGroup true"`

	Firewall     bool   `mapstructure:"firewall"`
	FirewallRule string `mapstructure:"firewall_rule" validate:"required_if=Firewall true"`

	Fail2ban        bool   `mapstructure:"fail2ban"`
	Fail2banPackage string `mapstructure:"fail2ban_package" validate:"required_if=Fail2ban true"`
	Fail2banService string `mapstructure:"fail2ban_service" validate:"required_if=Fail2ban true"`

	SSHDConfig      string `mapstructure:"sshd_config" validate:"required"`
	Service         string `mapstructure:"service" validate:"required"`
	SSHPackage      string `mapstructure:"ssh_package" validate:"required"`
	PasswordAuth    bool   `mapstructure:"password_auth"`
	PermitRootLogin string `mapstructure:"permit_root_login"`
	ServiceBackend  string `mapstructure:"service_backend" validate:"oneof=systemctl dbus"`
	SkipValidation  bool   `mapstructure:"skip_validation"`

	DryRun bool `mapstructure:"dry_run"`

	// Password is sealed as soon as it is read. It has no default.
	Password *memguard.Enclave `mapstructure:"-" validate:"required"`
}

// DefaultConfig returns a Config with every optional field defaulted. The
// username and password are left empty.
func DefaultConfig() *Config {
	return &Config{
		Shell:           "/bin/bash",
		AdminGroupName:  "sudo",
		FirewallRule:    "OpenSSH",
		Fail2banPackage: "fail2ban",
		Fail2banService: "fail2ban",
		SSHDConfig:      sshd.DefaultConfigPath,
		Service:         "ssh",
		SSHPackage:      "openssh-server",
		PasswordAuth:    true,
		PermitRootLogin: "no",
		ServiceBackend:  systemd.BackendSystemctl,
	}
}

// SetPassword seals password into an enclave and wipes the input slice.
func (c *Config) SetPassword(password []byte) error {
	if len(password) == 0 {
		return eos_err.NewInvalidValueError("password must not be empty",
			"Set SSHACCESS_PASSWORD, pass --password-stdin or answer the prompt")
	}
	c.Password = memguard.NewEnclave(password)
	return nil
}

// HomeDir returns the configured home or /home/<username>.
func (c *Config) HomeDir() string {
	if c.Home != "" {
		return c.Home
	}
	return path.Join("/home", c.Username)
}

// RootLogin returns the PermitRootLogin value that will be written.
func (c *Config) RootLogin() string {
	return sshd.NormalizeRootLogin(c.PermitRootLogin)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("unix_username", func(fl validator.FieldLevel) bool {
		return users.ValidateUsername(fl.Field().String()) == nil
	})
	return v
}

// Validate checks the struct tags and reports every failure at once.
func (c *Config) Validate() error {
	if c == nil {
		return eos_err.NewInvalidValueError("no configuration")
	}
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !cerr.As(err, &verrs) {
		return eos_err.NewInternalError("configuration validation failed", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return eos_err.WrapValidationError(cerr.Newf("invalid configuration: %s", strings.Join(msgs, "; ")))
}

func describe(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required", "required_if":
		if field == "Password" {
			return "password is required (SSHACCESS_PASSWORD, --password-stdin or prompt)"
		}
		return fmt.Sprintf("%s is required", field)
	case "unix_username":
		return fmt.Sprintf("%s %q is not a valid UNIX username", field, fe.Value())
	case "startswith":
		return fmt.Sprintf("%s must be an absolute path", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}
