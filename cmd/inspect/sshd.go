// cmd/inspect/sshd.go

package inspect

import (
	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/cli"
	eos "github.com/CodeMonkeyCybersecurity/sshaccess/pkg/eos_cli"
	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/eos_io"
	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/sshd"
	"github.com/spf13/cobra"
)

// InspectSSHDCmd shows the effective value of sshd_config directives.
var InspectSSHDCmd = &cobra.Command{
	Use:   "sshd",
	Short: "Show sshd_config directives",
	Long: `Print the first active occurrence of each requested key, which is the value
sshd uses. Without --key every directive is listed in file order.`,
	Example: `  sshaccess inspect sshd --key PasswordAuthentication --key PermitRootLogin
  sshaccess inspect sshd --output yaml`,
	Args: cobra.NoArgs,
	RunE: eos.Wrap(runInspectSSHD),
}

func init() {
	cli.AddStringArrayFlag(InspectSSHDCmd, "key", "k", nil, "Directive to show (repeatable)", false)
	cli.AddStringFlag(InspectSSHDCmd, cli.FlagSSHDConfig, "", sshd.DefaultConfigPath, "Path to sshd_config", false)
	cli.AddStringFlag(InspectSSHDCmd, "output", "o", sshd.FormatText, "Output format (text|yaml)", false)
}

func runInspectSSHD(rc *eos_io.RuntimeContext, cmd *cobra.Command, _ []string) error {
	v, err := cli.NewViper(cmd)
	if err != nil {
		return err
	}
	keys, err := cmd.Flags().GetStringArray("key")
	if err != nil {
		return err
	}
	settings, err := sshd.Inspect(rc, v.GetString(cli.ViperKey(cli.FlagSSHDConfig)), keys...)
	if err != nil {
		return err
	}
	return sshd.WriteSettings(cmd.OutOrStdout(), settings, v.GetString("output"))
}
