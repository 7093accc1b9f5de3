// pkg/eos_cli/wrap.go

// Package eos_cli adapts RuntimeContext-aware handlers to cobra.
package eos_cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/eos_err"
	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/eos_io"
	cerr "github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

// HandlerFunc is a command body that receives the per-invocation context.
type HandlerFunc func(rc *eos_io.RuntimeContext, cmd *cobra.Command, args []string) error

// Wrap ensures panic recovery, telemetry and logging around fn. The first
// Ctrl-C or SIGTERM cancels rc.Ctx; a second one terminates the process.
func Wrap(fn HandlerFunc) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		parent := cmd.Context()
		if parent == nil {
			parent = context.Background()
		}
		sigCtx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
		defer stop()
		go func() {
			<-sigCtx.Done()
			stop()
		}()

		rc := eos_io.NewContext(sigCtx, cmd.CommandPath())
		defer rc.End(&err)
		defer rc.HandlePanic(&err)

		eos_io.LogRuntimeExecutionContext(rc)

		err = fn(rc, cmd, args)
		if err != nil && eos_err.CategoryOf(err) != eos_err.CategoryInvalidValue {
			err = cerr.WithStack(err)
		}
		return err
	}
}
