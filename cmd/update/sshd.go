// cmd/update/sshd.go

package update

import (
	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/cli"
	eos "github.com/CodeMonkeyCybersecurity/sshaccess/pkg/eos_cli"
	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/eos_io"
	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/execute"
	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/sshd"
	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/systemd"
	cerr "github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// UpdateSSHDCmd patches arbitrary sshd_config directives.
var UpdateSSHDCmd = &cobra.Command{
	Use:   "sshd",
	Short: "Set sshd_config directives idempotently",
	Long: `Rewrite the first active line of each given key and append keys that are
missing. The file is backed up to <path>.bak-YYYYMMDD-HHMMSS before every
write, commented and unrelated lines are kept byte for byte, and the result is
checked with "sshd -t" unless --skip-validation is given.`,
	Example: `  sudo sshaccess update sshd --set PasswordAuthentication=no --set MaxAuthTries=3 --restart
  sshaccess update sshd --sshd-config ./sshd_config --set Port=2222 --dry-run`,
	Args: cobra.NoArgs,
	RunE: eos.Wrap(runUpdateSSHD),
}

func init() {
	cli.AddStringArrayFlag(UpdateSSHDCmd, "set", "s", nil, "Directive as Key=Value (repeatable)", true)
	cli.AddStringFlag(UpdateSSHDCmd, cli.FlagSSHDConfig, "", sshd.DefaultConfigPath, "Path to sshd_config", false)
	cli.AddBoolFlag(UpdateSSHDCmd, "restart", "", false, "Restart the SSH service after a successful patch")
	cli.AddStringFlag(UpdateSSHDCmd, cli.FlagService, "", "ssh", "SSH service unit", false)
	cli.AddStringFlag(UpdateSSHDCmd, cli.FlagServiceBackend, "", systemd.BackendSystemctl, "Service manager backend (systemctl|dbus)", false)
	cli.AddBoolFlag(UpdateSSHDCmd, "skip-validation", "", false, "Do not run sshd -t on the patched config")
	cli.AddBoolFlag(UpdateSSHDCmd, "no-header", "", false, "Do not add the '# Added by sshaccess' comment before appended lines")
	cli.AddBoolFlag(UpdateSSHDCmd, cli.FlagDryRun, "", false, "Show the changes without writing")
	cli.AddStringFlag(UpdateSSHDCmd, "output", "o", sshd.FormatText, "Output format (text|yaml)", false)
}

func runUpdateSSHD(rc *eos_io.RuntimeContext, cmd *cobra.Command, _ []string) error {
	logger := otelzap.Ctx(rc.Ctx)

	v, err := cli.NewViper(cmd)
	if err != nil {
		return err
	}
	// StringArray keeps commas inside values; viper would split them.
	assignments, err := cmd.Flags().GetStringArray("set")
	if err != nil {
		return err
	}
	set, err := sshd.ParseAssignments(assignments)
	if err != nil {
		return err
	}

	path := v.GetString(cli.ViperKey(cli.FlagSSHDConfig))
	dryRun := v.GetBool(cli.ViperKey(cli.FlagDryRun))
	output := v.GetString("output")
	patcher := sshd.NewPatcher(sshd.WithAppendComment(!v.GetBool("no_header")))

	if dryRun {
		result, err := patcher.Preview(rc, path, set)
		if err != nil {
			return err
		}
		return sshd.WriteResult(cmd.OutOrStdout(), result, output)
	}

	result, err := patcher.Patch(rc, path, set)
	if err != nil {
		return err
	}

	runner := execute.NewExecRunner(rc.Log, false)
	if !v.GetBool("skip_validation") {
		if err := sshd.NewValidator(runner).Check(rc, result.Path); err != nil {
			return cerr.WithHintf(
				cerr.Wrapf(err, "patched %s was rejected, original saved as %s", result.Path, result.BackupPath),
				"Restore it with: cp -p %s %s", result.BackupPath, result.Path)
		}
	}

	if v.GetBool("restart") {
		services, err := systemd.New(v.GetString(cli.ViperKey(cli.FlagServiceBackend)), runner, false)
		if err != nil {
			return err
		}
		unit := v.GetString(cli.ViperKey(cli.FlagService))
		if err := services.Restart(rc, unit); err != nil {
			return err
		}
		logger.Info("SSH service restarted", zap.String("service", unit))
	}

	return sshd.WriteResult(cmd.OutOrStdout(), result, output)
}
