// pkg/sshd/validate.go

package sshd

import (
	"fmt"

	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/eos_err"
	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/eos_io"
	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/execute"
	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/telemetry"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// Validator runs the server's own syntax check against a config file.
type Validator struct {
	Runner execute.Runner
	Binary string
}

// NewValidator returns a Validator using "sshd" from PATH.
func NewValidator(r execute.Runner) *Validator {
	return &Validator{Runner: r, Binary: "sshd"}
}

// Check runs "sshd -t -f path". A failure carries the server's diagnostics.
func (v *Validator) Check(rc *eos_io.RuntimeContext, path string) error {
	ctx, span := telemetry.Start(rc.Ctx, "sshd.Validate")
	defer span.End()
	logger := otelzap.Ctx(ctx)

	opts := execute.Options{
		Command:  v.Binary,
		Args:     []string{"-t", "-f", path},
		ReadOnly: true,
	}
	out, err := v.Runner.Run(ctx, opts)
	if err != nil {
		logger.Error("sshd rejected the configuration",
			zap.String("path", path),
			zap.Int("exit_code", execute.ExitCode(err)),
			zap.String("output", out))
		return eos_err.NewExternalCommandError(
			fmt.Sprintf("validating %s", path), opts.String(), out, err)
	}
	logger.Info("sshd configuration is valid", zap.String("path", path))
	return nil
}
