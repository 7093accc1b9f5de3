// cmd/create/access.go

package create

import (
	"os"
	"strconv"

	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/cli"
	eos "github.com/CodeMonkeyCybersecurity/sshaccess/pkg/eos_cli"
	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/eos_io"
	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/execute"
	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/hostsetup"
	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/interaction"
	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/platform"
	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/privilege_check"
	"github.com/spf13/cobra"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// CreateAccessCmd provisions a login account with SSH password access.
var CreateAccessCmd = &cobra.Command{
	Use:   "access",
	Short: "Create a login account and enable SSH password access",
	Long: `Create (or reuse) a local account, set its password, install and start the
SSH server, set PasswordAuthentication and PermitRootLogin in sshd_config, and
restart the service. Optional steps add the account to the admin group, allow
SSH through ufw and install fail2ban.

The password is never taken from the command line. Supply it with
SSHACCESS_PASSWORD, a config or env-file "password" entry, --password-stdin,
or answer the hidden prompt.

Must be run as root.`,
	Example: `  sudo sshaccess create access --username alice --admin-group --firewall
  printf '%s\n' "$PW" | sudo sshaccess create access -u alice --password-stdin
  sudo SSHACCESS_PASSWORD=... sshaccess create access -u alice --dry-run`,
	Args: cobra.NoArgs,
	RunE: eos.Wrap(runCreateAccess),
}

func init() {
	cli.AddAccessFlags(CreateAccessCmd)
	cli.AddStringFlag(CreateAccessCmd, "output", "o", hostsetup.FormatText, "Report format (text|yaml)", false)
}

// privileges is checked before any password prompt.
var privileges hostsetup.PrivilegeChecker = privilege_check.NewChecker()

func runCreateAccess(rc *eos_io.RuntimeContext, cmd *cobra.Command, _ []string) error {
	logger := otelzap.Ctx(rc.Ctx)

	if err := privileges.RequireRoot(rc, "create access"); err != nil {
		return err
	}

	v, err := cli.NewViper(cmd)
	if err != nil {
		return err
	}
	cfg, err := cli.HostConfig(rc, v, cli.PasswordSources{
		FromStdin: v.GetBool(cli.ViperKey(cli.FlagPasswordStdin)),
		Stdin:     cmd.InOrStdin(),
		Prompter:  interaction.NewTerminal(),
	})
	if err != nil {
		return err
	}

	// ASSESS
	if osr, err := platform.ReadOSRelease(platform.OSReleasePath); err != nil {
		logger.Warn("Could not identify the distribution", zap.Error(err))
	} else {
		if !osr.IsDebianFamily() {
			logger.Warn("Package steps use apt and may fail on this distribution",
				zap.String("id", osr.ID), zap.String("pretty_name", osr.PrettyName))
		}
		if cfg.AdminGroup && !v.IsSet("admin_group_name") {
			cfg.AdminGroupName = osr.AdminGroup()
		}
	}
	rc.Attributes["username"] = cfg.Username
	rc.Attributes["dry_run"] = strconv.FormatBool(cfg.DryRun)

	runner := execute.NewExecRunner(rc.Log, cfg.DryRun)
	deps, err := hostsetup.NewDeps(cfg, runner)
	if err != nil {
		return err
	}
	deps.Privileges = privileges

	// INTERVENE
	report, err := hostsetup.Run(rc, cfg, deps)
	if err != nil {
		if report != nil {
			_ = hostsetup.WriteReport(cmd.ErrOrStderr(), report, hostsetup.FormatText, "")
		}
		return err
	}

	// EVALUATE
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "<host>"
	}
	return hostsetup.WriteReport(cmd.OutOrStdout(), report, v.GetString("output"), host)
}
