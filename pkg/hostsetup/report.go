// pkg/hostsetup/report.go

package hostsetup

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/eos_err"
	"gopkg.in/yaml.v3"
)

// Output formats accepted by WriteReport.
const (
	FormatText = "text"
	FormatYAML = "yaml"
)

// WriteReport renders report as an aligned table or YAML. The text form
// ends with the login hint for host.
func WriteReport(w io.Writer, report *Report, format, host string) error {
	switch format {
	case "", FormatText:
		return writeText(w, report, host)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return eos_err.NewInternalError("failed to encode report", err)
		}
		return enc.Close()
	default:
		return eos_err.NewInvalidValueError(fmt.Sprintf("unknown output format %q", format),
			"Use --output text or --output yaml")
	}
}

func writeText(w io.Writer, report *Report, host string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STEP\tOUTCOME\tDETAIL")
	for _, s := range report.Steps {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", s.Name, s.Outcome, s.Detail)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if p := report.Patch; p != nil {
		for _, d := range p.Duplicates {
			fmt.Fprintf(w, "warning: %s line %d repeats %s and was left unchanged\n", p.Path, d.Line, d.Key)
		}
	}
	if n := len(report.Steps); n > 0 && report.Steps[n-1].Outcome == OutcomeFailed {
		fmt.Fprintf(w, "Provisioning stopped at step %q.\n", report.Steps[n-1].Name)
		return nil
	}
	if report.DryRun {
		fmt.Fprintln(w, "Dry run: no changes were made.")
		return nil
	}
	fmt.Fprintf(w, "\nSSH access ready. Log in with: %s\n", report.LoginHint(host))
	return nil
}
