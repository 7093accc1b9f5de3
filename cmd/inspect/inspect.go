// cmd/inspect/inspect.go

package inspect

import (
	"github.com/spf13/cobra"
)

// InspectCmd is the root command for read-only operations.
var InspectCmd = &cobra.Command{
	Use:     "inspect",
	Short:   "Inspect configuration (e.g., sshd_config)",
	Aliases: []string{"read", "get"},
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

func init() {
	InspectCmd.AddCommand(InspectSSHDCmd)
}
