// pkg/interaction/secret.go

// Package interaction reads secrets from the terminal or a pipe.
package interaction

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/eos_err"
	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/eos_io"
	"github.com/awnumar/memguard"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
	"golang.org/x/term"
)

// maxSecretLen bounds a secret read from a pipe.
const maxSecretLen = 4096

// Terminal is the hidden-input prompt. Prompts go to Out (stderr by default)
// so stdout stays clean for automation.
type Terminal struct {
	Fd           int
	Out          io.Writer
	IsTerminal   func(fd int) bool
	ReadPassword func(fd int) ([]byte, error)
}

// NewTerminal returns a Terminal on the process stdin.
func NewTerminal() *Terminal {
	return &Terminal{
		Fd:           int(os.Stdin.Fd()),
		Out:          os.Stderr,
		IsTerminal:   term.IsTerminal,
		ReadPassword: term.ReadPassword,
	}
}

// PromptSecret asks for a hidden input twice and returns it once both
// entries match. The caller owns the returned slice and should wipe it.
func (t *Terminal) PromptSecret(rc *eos_io.RuntimeContext, label string) ([]byte, error) {
	logger := otelzap.Ctx(rc.Ctx)

	if !t.IsTerminal(t.Fd) {
		logger.Debug("Cannot prompt for secret input: not a TTY", zap.String("label", label))
		return nil, eos_err.NewInvalidValueError(
			fmt.Sprintf("%s is required and stdin is not a terminal", label),
			"Set SSHACCESS_PASSWORD or pipe it with --password-stdin")
	}

	first, err := t.read(label)
	if err != nil {
		return nil, err
	}
	second, err := t.read("Confirm " + label)
	if err != nil {
		memguard.WipeBytes(first)
		return nil, err
	}
	defer memguard.WipeBytes(second)

	if !bytes.Equal(first, second) {
		memguard.WipeBytes(first)
		return nil, eos_err.NewInvalidValueError(label + " entries do not match")
	}
	if len(first) == 0 {
		return nil, eos_err.NewInvalidValueError(label + " must not be empty")
	}
	logger.Debug("Secret read from terminal", zap.String("label", label))
	return first, nil
}

func (t *Terminal) read(label string) ([]byte, error) {
	_, _ = fmt.Fprint(t.Out, label+": ")
	secret, err := t.ReadPassword(t.Fd)
	_, _ = fmt.Fprintln(t.Out)
	if err != nil {
		return nil, eos_err.NewInternalError("failed to read "+label, err)
	}
	return bytes.TrimRight(secret, "\r\n"), nil
}

// ReadSecretLine reads the first line of r, without its line ending. It is
// used for --password-stdin.
func ReadSecretLine(r io.Reader) ([]byte, error) {
	reader := bufio.NewReaderSize(io.LimitReader(r, maxSecretLen+1), maxSecretLen+1)
	line, err := reader.ReadBytes('\n')
	if err != nil && err != io.EOF {
		memguard.WipeBytes(line)
		return nil, eos_err.NewInternalError("failed to read secret from stdin", err)
	}
	if len(line) > maxSecretLen {
		memguard.WipeBytes(line)
		return nil, eos_err.NewInvalidValueError(fmt.Sprintf("secret on stdin exceeds %d bytes", maxSecretLen))
	}
	secret := bytes.TrimRight(line, "\r\n")
	if len(secret) == 0 {
		return nil, eos_err.NewInvalidValueError("no secret on stdin",
			"Pipe the password followed by a newline, for example: printf '%s\\n' \"$PW\" | sshaccess create access --password-stdin ...")
	}
	return secret, nil
}
