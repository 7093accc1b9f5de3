// pkg/cli/config.go

package cli

import (
	"io"
	"os"
	"strings"

	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/eos_err"
	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/eos_io"
	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/hostsetup"
	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/interaction"
	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/sshd"
	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/systemd"
	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/users"
	"github.com/awnumar/memguard"
	cerr "github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// Flags shared by several commands.
const (
	FlagConfig         = "config"
	FlagEnvFile        = "env-file"
	FlagDryRun         = "dry-run"
	FlagSSHDConfig     = "sshd-config"
	FlagService        = "service"
	FlagServiceBackend = "service-backend"
	FlagPasswordStdin  = "password-stdin"

	// keyPassword is read from SSHACCESS_PASSWORD, an env-file or a config
	// file. It has no flag.
	keyPassword = "password"
)

// AddSourceFlags registers --config and --env-file.
func AddSourceFlags(cmd *cobra.Command) {
	AddStringFlag(cmd, FlagConfig, "", "", "Config file (YAML, TOML or JSON)", false)
	AddStringFlag(cmd, FlagEnvFile, "", "", "File of SSHACCESS_* KEY=VALUE lines, below the config file in precedence", false)
}

// AddAccessFlags registers the flags of "create access" with defaults taken
// from hostsetup.DefaultConfig.
func AddAccessFlags(cmd *cobra.Command) {
	d := hostsetup.DefaultConfig()

	AddStringFlag(cmd, "username", "u", "", "Login account to provision", false)
	AddStringFlag(cmd, "home", "", "", "Home directory (default /home/<username>)", false)
	AddStringFlag(cmd, "shell", "", d.Shell, "Login shell", false)
	AddBoolFlag(cmd, "admin-group", "", d.AdminGroup, "Add the account to the admin group")
	AddStringFlag(cmd, "admin-group-name", "", d.AdminGroupName, "Admin group name", false)
	AddBoolFlag(cmd, "firewall", "", d.Firewall, "Allow SSH through ufw when it is installed")
	AddStringFlag(cmd, "firewall-rule", "", d.FirewallRule, "ufw rule or application profile to allow", false)
	AddBoolFlag(cmd, "fail2ban", "", d.Fail2ban, "Install and start fail2ban")
	AddStringFlag(cmd, FlagSSHDConfig, "", d.SSHDConfig, "Path to sshd_config", false)
	AddStringFlag(cmd, FlagService, "", d.Service, "SSH service unit", false)
	AddStringFlag(cmd, "ssh-package", "", d.SSHPackage, "SSH server package", false)
	AddBoolFlag(cmd, "password-auth", "", d.PasswordAuth, "Value written for PasswordAuthentication")
	AddStringFlag(cmd, "permit-root-login", "", d.PermitRootLogin,
		"Value written for PermitRootLogin ("+strings.Join(sshd.RootLoginValues, "|")+"; anything else means no)", false)
	AddStringFlag(cmd, FlagServiceBackend, "", d.ServiceBackend,
		"Service manager backend ("+strings.Join(systemd.Backends, "|")+")", false)
	AddBoolFlag(cmd, "skip-validation", "", d.SkipValidation, "Do not run sshd -t on the patched config")
	AddBoolFlag(cmd, FlagPasswordStdin, "", false, "Read the password from the first line of stdin")
	AddBoolFlag(cmd, FlagDryRun, "", false, "Show what would change without changing anything")
	AddSourceFlags(cmd)
}

// LoadSources reads the config file and env-file named by the --config and
// --env-file flags into v. Env-file values sit just above the defaults.
func LoadSources(rc *eos_io.RuntimeContext, v *viper.Viper) error {
	logger := otelzap.Ctx(rc.Ctx)

	if path := v.GetString(ViperKey(FlagEnvFile)); path != "" {
		if err := loadEnvFile(v, path); err != nil {
			return err
		}
		logger.Debug("Loaded env-file", zap.String("path", path))
	}

	if path := v.GetString(ViperKey(FlagConfig)); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if cerr.Is(err, os.ErrNotExist) || cerr.Is(err, os.ErrPermission) {
				return eos_err.ClassifyFileError(err, path, "read")
			}
			return eos_err.NewInvalidValueError("failed to parse config file "+path+": "+err.Error(),
				"Config files may be YAML, TOML or JSON, chosen by extension")
		}
		logger.Debug("Loaded config file", zap.String("path", v.ConfigFileUsed()))
	}
	return nil
}

// loadEnvFile registers SSHACCESS_* entries as defaults, so flags, the real
// environment and the config file all override them.
func loadEnvFile(v *viper.Viper, path string) error {
	values, err := godotenv.Read(path)
	if err != nil {
		return eos_err.ClassifyFileError(err, path, "read")
	}
	prefix := EnvPrefix + "_"
	for key, value := range values {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		v.SetDefault(strings.ToLower(strings.TrimPrefix(key, prefix)), value)
	}
	return nil
}

// Decode overlays the merged settings in v onto target.
func Decode(v *viper.Viper, target any) error {
	if err := v.Unmarshal(target); err != nil {
		return eos_err.NewInvalidValueError("invalid configuration: "+err.Error())
	}
	return nil
}

// SecretPrompter reads a hidden value from the terminal.
type SecretPrompter interface {
	PromptSecret(rc *eos_io.RuntimeContext, label string) ([]byte, error)
}

// SecretReader reads a secret from a non-interactive stream.
type SecretReader func(r io.Reader) ([]byte, error)

// PasswordSources are where ResolvePassword may look for the password.
type PasswordSources struct {
	// FromStdin selects --password-stdin. Stdin and ReadLine default to
	// os.Stdin and interaction.ReadSecretLine.
	FromStdin bool
	Stdin     io.Reader
	ReadLine  SecretReader
	Prompter  SecretPrompter
}

// ResolvePassword returns the password sealed in an enclave. --password-stdin
// wins, then SSHACCESS_PASSWORD, the config file and the env-file (in viper
// precedence), then the terminal prompt. There is no default.
func ResolvePassword(rc *eos_io.RuntimeContext, v *viper.Viper, src PasswordSources) (*memguard.Enclave, error) {
	logger := otelzap.Ctx(rc.Ctx)

	var secret []byte
	var err error
	switch {
	case src.FromStdin:
		logger.Debug("Reading password from stdin")
		read, in := src.ReadLine, src.Stdin
		if read == nil {
			read = interaction.ReadSecretLine
		}
		if in == nil {
			in = os.Stdin
		}
		secret, err = read(in)
	case v.GetString(keyPassword) != "":
		logger.Debug("Using password from environment or config")
		secret = []byte(v.GetString(keyPassword))
	case src.Prompter != nil:
		secret, err = src.Prompter.PromptSecret(rc, "Password")
	default:
		err = eos_err.NewInvalidValueError("password is required",
			"Set SSHACCESS_PASSWORD, pass --password-stdin or run from a terminal")
	}
	if err != nil {
		return nil, err
	}
	if len(secret) == 0 {
		return nil, eos_err.NewInvalidValueError("password must not be empty")
	}
	return memguard.NewEnclave(secret), nil
}

// HostConfig builds the provisioning config for "create access" from v.
func HostConfig(rc *eos_io.RuntimeContext, v *viper.Viper, src PasswordSources) (*hostsetup.Config, error) {
	if err := LoadSources(rc, v); err != nil {
		return nil, err
	}

	cfg := hostsetup.DefaultConfig()
	if err := Decode(v, cfg); err != nil {
		return nil, err
	}
	cfg.PermitRootLogin = sshd.NormalizeRootLogin(cfg.PermitRootLogin)

	// Reject a bad username before asking for a password.
	if err := users.ValidateUsername(cfg.Username); err != nil {
		return nil, err
	}

	password, err := ResolvePassword(rc, v, src)
	if err != nil {
		return nil, err
	}
	cfg.Password = password

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	otelzap.Ctx(rc.Ctx).Debug("Configuration resolved",
		zap.String("username", cfg.Username),
		zap.String("sshd_config", cfg.SSHDConfig),
		zap.String("service_backend", cfg.ServiceBackend),
		zap.Bool("dry_run", cfg.DryRun))
	return cfg, nil
}
