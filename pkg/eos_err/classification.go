// pkg/eos_err/classification.go
//
// Error classification with exit codes. Every failure that reaches the CLI
// is either a ClassifiedError or gets classified as CategorySystem.

package eos_err

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrorCategory classifies errors for appropriate handling
type ErrorCategory int

const (
	// CategorySystem - OS/filesystem issues (exit 1)
	CategorySystem ErrorCategory = iota
	// CategoryNotFound - an expected file or resource is absent (exit 1)
	CategoryNotFound
	// CategoryPermission - insufficient privilege (exit 1)
	CategoryPermission
	// CategoryExternalCommand - non-zero exit from an external invocation (exit 1)
	CategoryExternalCommand
	// CategoryInvalidValue - malformed input (exit 2)
	CategoryInvalidValue
	// CategoryInternal - bugs in sshaccess itself (exit 3)
	CategoryInternal
)

// String returns the category name used in logs and telemetry.
func (c ErrorCategory) String() string {
	switch c {
	case CategoryNotFound:
		return "not_found"
	case CategoryPermission:
		return "permission_denied"
	case CategoryExternalCommand:
		return "external_command_failed"
	case CategoryInvalidValue:
		return "invalid_value"
	case CategoryInternal:
		return "internal"
	default:
		return "system"
	}
}

// ClassifiedError wraps an error with category and remediation info
type ClassifiedError struct {
	Category    ErrorCategory
	Message     string
	Cause       error
	Command     string
	Output      string
	Remediation []string
}

// Error implements the error interface
func (e *ClassifiedError) Error() string {
	var sb strings.Builder

	sb.WriteString(e.Message)

	if e.Cause != nil && e.Cause.Error() != e.Message {
		sb.WriteString(fmt.Sprintf(": %v", e.Cause))
	}

	if e.Command != "" {
		sb.WriteString(fmt.Sprintf("\n\nCommand: %s", e.Command))
	}

	if summary := strings.TrimSpace(e.Output); summary != "" {
		sb.WriteString(fmt.Sprintf("\nOutput: %s", summary))
	}

	if len(e.Remediation) > 0 {
		sb.WriteString("\n\nHow to fix:")
		for i, step := range e.Remediation {
			sb.WriteString(fmt.Sprintf("\n  %d. %s", i+1, step))
		}
	}

	return sb.String()
}

// Unwrap returns the underlying error
func (e *ClassifiedError) Unwrap() error {
	return e.Cause
}

// ExitCode returns the appropriate exit code for this error category
func (e *ClassifiedError) ExitCode() int {
	switch e.Category {
	case CategoryInvalidValue:
		return 2
	case CategoryInternal:
		return 3
	default:
		return 1
	}
}

// GetExitCode extracts exit code from any error.
// Returns 0 for nil, the category code for classified errors, 1 for others.
func GetExitCode(err error) int {
	if err == nil {
		return 0
	}

	var classified *ClassifiedError
	if errors.As(err, &classified) {
		return classified.ExitCode()
	}

	return 1
}

// CategoryOf returns the category of the first ClassifiedError in the chain,
// or CategorySystem when there is none.
func CategoryOf(err error) ErrorCategory {
	var classified *ClassifiedError
	if errors.As(err, &classified) {
		return classified.Category
	}
	return CategorySystem
}

// IsCategory reports whether err carries the given category.
func IsCategory(err error, category ErrorCategory) bool {
	if err == nil {
		return false
	}
	var classified *ClassifiedError
	if !errors.As(err, &classified) {
		return false
	}
	return classified.Category == category
}

// NewNotFoundError creates an error for a missing file or resource
func NewNotFoundError(resource string, cause error, remediation ...string) error {
	return &ClassifiedError{
		Category:    CategoryNotFound,
		Message:     fmt.Sprintf("%s not found", resource),
		Cause:       cause,
		Remediation: remediation,
	}
}

// NewPermissionError creates an error for permission issues
func NewPermissionError(resource, operation string, cause error, remediation ...string) error {
	return &ClassifiedError{
		Category:    CategoryPermission,
		Message:     fmt.Sprintf("permission denied: cannot %s %s", operation, resource),
		Cause:       cause,
		Remediation: remediation,
	}
}

// NewExternalCommandError creates an error for a failed external invocation.
// output is the captured stdout/stderr; only a summary of it is kept.
func NewExternalCommandError(step, command, output string, cause error) error {
	return &ClassifiedError{
		Category: CategoryExternalCommand,
		Message:  fmt.Sprintf("%s failed", step),
		Cause:    cause,
		Command:  command,
		Output:   ExtractSummary(output, 3),
	}
}

// NewInvalidValueError creates an error for malformed input
func NewInvalidValueError(message string, remediation ...string) error {
	return &ClassifiedError{
		Category:    CategoryInvalidValue,
		Message:     message,
		Remediation: remediation,
	}
}

// NewFilesystemError creates an error for filesystem issues
func NewFilesystemError(message string, cause error, remediation ...string) error {
	return &ClassifiedError{
		Category:    CategorySystem,
		Message:     message,
		Cause:       cause,
		Remediation: remediation,
	}
}

// NewInternalError creates an error for sshaccess bugs
func NewInternalError(message string, cause error) error {
	return &ClassifiedError{
		Category: CategoryInternal,
		Message:  message,
		Cause:    cause,
		Remediation: []string{
			"This is likely a bug in sshaccess",
			"Include this error message and the log file when reporting it",
		},
	}
}

// ClassifyFileError maps an os-level error on path to NotFound, Permission
// or System. Already classified errors are returned unchanged.
func ClassifyFileError(err error, path, operation string) error {
	if err == nil {
		return nil
	}

	var classified *ClassifiedError
	if errors.As(err, &classified) {
		return err
	}

	switch {
	case errors.Is(err, os.ErrNotExist):
		return NewNotFoundError(path, err, "Check that the path exists and is spelled correctly")
	case errors.Is(err, os.ErrPermission):
		return NewPermissionError(path, operation, err, "Re-run the command with sudo")
	default:
		return NewFilesystemError(fmt.Sprintf("failed to %s %s", operation, path), err)
	}
}
