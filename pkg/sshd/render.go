// pkg/sshd/render.go

package sshd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/eos_err"
	"gopkg.in/yaml.v3"
)

// Output formats for the render helpers.
const (
	FormatText = "text"
	FormatYAML = "yaml"
)

// WriteResult renders a patch result for humans or as YAML.
func WriteResult(w io.Writer, result *PatchResult, format string) error {
	switch format {
	case "", FormatText:
	case FormatYAML:
		return encodeYAML(w, result)
	default:
		return unknownFormat(format)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tACTION\tLINE\tVALUE")
	for _, c := range result.Changes {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", c.Key, c.Action, c.Line, c.Value)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, d := range result.Duplicates {
		fmt.Fprintf(w, "warning: line %d repeats %s and was left unchanged\n", d.Line, d.Key)
	}
	if result.BackupPath != "" {
		fmt.Fprintf(w, "Backup: %s\n", result.BackupPath)
	} else {
		fmt.Fprintf(w, "Dry run: %s not modified\n", result.Path)
	}
	return nil
}

// WriteSettings renders inspected settings. Keys that are not set show as
// "(not set)" in text form.
func WriteSettings(w io.Writer, settings []Setting, format string) error {
	switch format {
	case "", FormatText:
	case FormatYAML:
		if settings == nil {
			settings = []Setting{}
		}
		return encodeYAML(w, settings)
	default:
		return unknownFormat(format)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tVALUE\tLINE")
	for _, s := range settings {
		if !s.Found {
			fmt.Fprintf(tw, "%s\t(not set)\t-\n", s.Key)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\n", s.Key, s.Value, s.Line)
	}
	return tw.Flush()
}

func encodeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return eos_err.NewInternalError("failed to encode yaml", err)
	}
	return enc.Close()
}

func unknownFormat(format string) error {
	return eos_err.NewInvalidValueError(fmt.Sprintf("unknown output format %q", format),
		"Use --output text or --output yaml")
}
