// pkg/sshd/patch.go

package sshd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/eos_err"
	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/eos_io"
	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/telemetry"
	"github.com/moby/sys/atomicwriter"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// PatchResult describes one patch invocation.
type PatchResult struct {
	Path string `yaml:"path"`
	// BackupPath is empty for previews.
	BackupPath string            `yaml:"backup_path,omitempty"`
	Changes    []DirectiveChange `yaml:"changes"`
	Duplicates []Duplicate       `yaml:"duplicates,omitempty"`
	Modified   bool              `yaml:"modified"`
}

// Option configures a Patcher.
type Option func(*Patcher)

// WithClock replaces time.Now for backup names and the append header.
func WithClock(now func() time.Time) Option {
	return func(p *Patcher) {
		if now != nil {
			p.now = now
		}
	}
}

// WithAppendComment toggles the "# Added by sshaccess" line written before
// appended directives.
func WithAppendComment(enabled bool) Option {
	return func(p *Patcher) { p.appendComment = enabled }
}

// Patcher rewrites directives in place. It holds no state between calls.
type Patcher struct {
	now           func() time.Time
	appendComment bool
}

// NewPatcher returns a Patcher using the wall clock and the append comment.
func NewPatcher(opts ...Option) *Patcher {
	p := &Patcher{now: time.Now, appendComment: true}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *Patcher) header(now time.Time) string {
	if !p.appendComment {
		return ""
	}
	return "# Added by sshaccess on " + now.Format(time.RFC3339)
}

// Patch applies set to the file at path. A backup of the current content is
// written before the file is replaced; the replacement is atomic and keeps
// the file mode. A missing file fails with NotFound and nothing is written.
func (p *Patcher) Patch(rc *eos_io.RuntimeContext, path string, set *DirectiveSet) (*PatchResult, error) {
	ctx, span := telemetry.Start(rc.Ctx, "sshd.Patch", attribute.String("path", path))
	defer span.End()
	logger := otelzap.Ctx(ctx)

	// ASSESS
	if err := set.Validate(); err != nil {
		return nil, err
	}
	target, info, err := resolveTarget(path)
	if err != nil {
		logger.Error("Config file unavailable", zap.String("path", path), zap.Error(err))
		return nil, err
	}
	if err := checkWritable(target); err != nil {
		logger.Error("Config file is not writable", zap.String("path", target), zap.Error(err))
		return nil, err
	}
	data, err := os.ReadFile(target)
	if err != nil {
		return nil, eos_err.ClassifyFileError(err, target, "read")
	}
	now := p.now()
	applied := Apply(splitLines(string(data)), set, p.header(now))
	logDuplicates(logger, target, applied.Duplicates)

	// INTERVENE
	backup, err := createBackup(target, data, info, now)
	if err != nil {
		logger.Error("Backup failed, config left untouched", zap.String("path", target), zap.Error(err))
		return nil, eos_err.NewFilesystemError(fmt.Sprintf("failed to back up %s", target), err,
			fmt.Sprintf("Check free space and permissions in %s", filepath.Dir(target)))
	}
	logger.Info("Created config backup", zap.String("path", target), zap.String("backup", backup))

	if err := writeAtomic(target, []byte(joinLines(applied.Lines)), info); err != nil {
		logger.Error("Config write failed", zap.String("path", target), zap.String("backup", backup), zap.Error(err))
		return nil, eos_err.NewFilesystemError(fmt.Sprintf("failed to write %s", target), err,
			fmt.Sprintf("The previous content is preserved in %s", backup))
	}

	// EVALUATE
	result := &PatchResult{
		Path:       target,
		BackupPath: backup,
		Changes:    applied.Changes,
		Duplicates: applied.Duplicates,
		Modified:   applied.Modified(),
	}
	for _, c := range result.Changes {
		logger.Info("Directive applied",
			zap.String("key", c.Key),
			zap.String("value", c.Value),
			zap.String("action", string(c.Action)),
			zap.Int("line", c.Line))
	}
	span.SetAttributes(attribute.Bool("modified", result.Modified), attribute.String("backup", backup))
	return result, nil
}

// Preview computes what Patch would do without creating a backup or writing.
func (p *Patcher) Preview(rc *eos_io.RuntimeContext, path string, set *DirectiveSet) (*PatchResult, error) {
	ctx, span := telemetry.Start(rc.Ctx, "sshd.Preview", attribute.String("path", path))
	defer span.End()
	logger := otelzap.Ctx(ctx)

	if err := set.Validate(); err != nil {
		return nil, err
	}
	target, _, err := resolveTarget(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(target)
	if err != nil {
		return nil, eos_err.ClassifyFileError(err, target, "read")
	}
	applied := Apply(splitLines(string(data)), set, p.header(p.now()))
	logDuplicates(logger, target, applied.Duplicates)

	return &PatchResult{
		Path:       target,
		Changes:    applied.Changes,
		Duplicates: applied.Duplicates,
		Modified:   applied.Modified(),
	}, nil
}

// resolveTarget stats path and follows symlinks so the link itself survives
// the atomic rename.
func resolveTarget(path string) (string, os.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", nil, eos_err.ClassifyFileError(err, path, "read")
	}
	if !info.Mode().IsRegular() {
		return "", nil, eos_err.NewInvalidValueError(fmt.Sprintf("%s is not a regular file", path))
	}
	target, err := filepath.EvalSymlinks(path)
	if err != nil {
		return "", nil, eos_err.ClassifyFileError(err, path, "resolve")
	}
	return target, info, nil
}

// checkWritable verifies the file and its directory accept writes; the
// backup and the rename both need the directory.
func checkWritable(path string) error {
	if err := unix.Access(path, unix.W_OK); err != nil {
		return eos_err.NewPermissionError(path, "write", err, "Re-run the command with sudo")
	}
	dir := filepath.Dir(path)
	if err := unix.Access(dir, unix.W_OK|unix.X_OK); err != nil {
		return eos_err.NewPermissionError(dir, "create files in", err, "Re-run the command with sudo")
	}
	return nil
}

func writeAtomic(path string, data []byte, info os.FileInfo) error {
	if err := atomicwriter.WriteFile(path, data, info.Mode().Perm()); err != nil {
		return err
	}
	copyOwner(path, info)
	return nil
}

func logDuplicates(logger otelzap.LoggerWithCtx, path string, dups []Duplicate) {
	for _, d := range dups {
		logger.Warn("Duplicate directive left unchanged; only the first occurrence is rewritten",
			zap.String("path", path),
			zap.String("key", d.Key),
			zap.Int("line", d.Line))
	}
}
