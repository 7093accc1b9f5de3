// cmd/root.go

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/CodeMonkeyCybersecurity/sshaccess/cmd/create"
	"github.com/CodeMonkeyCybersecurity/sshaccess/cmd/inspect"
	"github.com/CodeMonkeyCybersecurity/sshaccess/cmd/update"
	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/eos_err"
	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/logger"
	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/telemetry"
	cerr "github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// RootCmd is the base command for sshaccess.
var RootCmd = &cobra.Command{
	Use:   "sshaccess",
	Short: "Provision SSH password access on this host",
	Long: `sshaccess creates a login account, installs and enables the SSH server,
patches sshd_config idempotently (with a timestamped backup on every change)
and optionally opens the firewall and installs fail2ban.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// RegisterCommands adds all subcommands to the root command.
func RegisterCommands() {
	for _, subCmd := range []*cobra.Command{
		create.CreateCmd,
		update.UpdateCmd,
		inspect.InspectCmd,
	} {
		RootCmd.AddCommand(subCmd)
	}
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	defer func() {
		if err := logger.Sync(); err != nil {
			fmt.Fprintf(os.Stderr, "⚠️  Failed to flush logs: %v\n", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = telemetry.Shutdown(ctx)
	}()

	RegisterCommands()

	err := RootCmd.Execute()
	if err == nil {
		return 0
	}
	code := eos_err.GetExitCode(err)
	logger.L().Debug("CLI execution error", zap.Error(err), zap.Int("exit_code", code))
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	for _, hint := range cerr.GetAllHints(err) {
		fmt.Fprintf(os.Stderr, "Hint: %s\n", hint)
	}
	return code
}
