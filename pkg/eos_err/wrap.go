// pkg/eos_err/wrap.go

package eos_err

import (
	cerr "github.com/cockroachdb/errors"
)

// WrapValidationError marks err as an invalid-value error and records a stack.
func WrapValidationError(err error) error {
	if err == nil {
		return nil
	}
	return cerr.WithHint(cerr.WithStack(&ClassifiedError{
		Category: CategoryInvalidValue,
		Message:  "validation failed",
		Cause:    err,
	}), "Check the flags, SSHACCESS_* variables and config file values")
}

// WrapStep attaches the failed step name to err, keeping its category.
func WrapStep(err error, step string) error {
	if err == nil {
		return nil
	}
	return cerr.Wrapf(err, "step %q", step)
}
