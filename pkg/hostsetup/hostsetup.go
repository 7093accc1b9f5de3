// pkg/hostsetup/hostsetup.go

// Package hostsetup provisions SSH password access on the local host: the
// login account, the SSH server, sshd_config and the firewall.
package hostsetup

import (
	"fmt"
	"strings"

	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/eos_err"
	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/eos_io"
	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/execute"
	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/platform"
	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/privilege_check"
	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/sshd"
	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/systemd"
	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/telemetry"
	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/users"
	cerr "github.com/cockroachdb/errors"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// PrivilegeChecker fails unless the process may administer the host.
type PrivilegeChecker interface {
	RequireRoot(rc *eos_io.RuntimeContext, commandName string) error
}

// ConfigPatcher rewrites (or previews rewriting) sshd_config.
type ConfigPatcher interface {
	Patch(rc *eos_io.RuntimeContext, path string, set *sshd.DirectiveSet) (*sshd.PatchResult, error)
	Preview(rc *eos_io.RuntimeContext, path string, set *sshd.DirectiveSet) (*sshd.PatchResult, error)
}

// ConfigValidator checks a config file with the daemon's own parser.
type ConfigValidator interface {
	Check(rc *eos_io.RuntimeContext, path string) error
}

// Deps are the side-effecting collaborators of Run.
type Deps struct {
	Privileges PrivilegeChecker
	Accounts   users.AccountManager
	Packages   platform.PackageManager
	Services   systemd.ServiceController
	Patcher    ConfigPatcher
	Validator  ConfigValidator
	Firewall   platform.FirewallController
}

// NewDeps wires the exec and D-Bus backed implementations around r.
func NewDeps(cfg *Config, r execute.Runner) (*Deps, error) {
	services, err := systemd.New(cfg.ServiceBackend, r, cfg.DryRun)
	if err != nil {
		return nil, err
	}
	return &Deps{
		Privileges: privilege_check.NewChecker(),
		Accounts:   users.NewExecAccountManager(r),
		Packages:   platform.NewAptPackageManager(r),
		Services:   services,
		Patcher:    sshd.NewPatcher(),
		Validator:  sshd.NewValidator(r),
		Firewall:   platform.NewUFW(r),
	}, nil
}

func (d *Deps) validate() error {
	var missing []string
	for _, dep := range []struct {
		name  string
		value any
	}{
		{"Privileges", d.Privileges},
		{"Accounts", d.Accounts},
		{"Packages", d.Packages},
		{"Services", d.Services},
		{"Patcher", d.Patcher},
		{"Validator", d.Validator},
		{"Firewall", d.Firewall},
	} {
		if dep.value == nil {
			missing = append(missing, dep.name)
		}
	}
	if len(missing) > 0 {
		return eos_err.NewInternalError("hostsetup dependencies not wired: "+strings.Join(missing, ", "), nil)
	}
	return nil
}

// Outcome is the result of one provisioning step.
type Outcome string

const (
	OutcomeDone           Outcome = "done"
	OutcomeSkipped        Outcome = "skipped"
	OutcomeFailedAdvisory Outcome = "failed-advisory"
	OutcomeFailed         Outcome = "failed"
)

// StepResult records what one step did.
type StepResult struct {
	Name    string  `yaml:"name"`
	Outcome Outcome `yaml:"outcome"`
	Detail  string  `yaml:"detail,omitempty"`
}

// Report summarises a Run. It is returned even when Run fails, listing the
// steps that ran up to and including the failed one.
type Report struct {
	Username string            `yaml:"username"`
	DryRun   bool              `yaml:"dry_run"`
	Steps    []StepResult      `yaml:"steps"`
	Patch    *sshd.PatchResult `yaml:"patch,omitempty"`
}

// Step returns the result for name, if that step ran.
func (r *Report) Step(name string) (StepResult, bool) {
	for _, s := range r.Steps {
		if s.Name == name {
			return s, true
		}
	}
	return StepResult{}, false
}

// LoginHint is the command a user runs to log in. It never includes the
// password.
func (r *Report) LoginHint(host string) string {
	return fmt.Sprintf("ssh %s@%s", r.Username, host)
}

// Step names, in execution order.
const (
	StepPrivileges    = "check privileges"
	StepAccount       = "ensure account"
	StepPassword      = "set password"
	StepAdminGroup    = "admin group membership"
	StepSSHPackage    = "ensure ssh server package"
	StepEnableService = "enable ssh service"
	StepServiceStatus = "ssh service status"
	StepPatchConfig   = "patch sshd config"
	StepValidate      = "validate sshd config"
	StepRestart       = "restart ssh service"
	StepFirewall      = "firewall"
	StepFail2ban      = "fail2ban"
)

// stepFunc returns the outcome and a short detail. A non-nil error means the
// step failed.
type stepFunc func() (Outcome, string, error)

type step struct {
	name     string
	advisory bool
	fn       stepFunc
}

type run struct {
	rc     *eos_io.RuntimeContext
	cfg    *Config
	deps   *Deps
	report *Report

	// created is set when the account did not exist before this run.
	created bool
}

// Run executes each provisioning step once, in order. Advisory failures are
// logged and recorded; any other failure stops the run and is returned
// wrapped with the step name.
func Run(rc *eos_io.RuntimeContext, cfg *Config, deps *Deps) (*Report, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ctx, span := telemetry.Start(rc.Ctx, "hostsetup.Run",
		attribute.String("username", cfg.Username),
		attribute.Bool("dry_run", cfg.DryRun))
	defer span.End()
	logger := otelzap.Ctx(ctx)

	if deps == nil {
		return nil, eos_err.NewInternalError("hostsetup dependencies not wired", nil)
	}
	if err := deps.validate(); err != nil {
		return nil, err
	}

	stepRC := *rc
	stepRC.Ctx = ctx
	r := &run{
		rc:     &stepRC,
		cfg:    cfg,
		deps:   deps,
		report: &Report{Username: cfg.Username, DryRun: cfg.DryRun},
	}

	steps := []step{
		{name: StepPrivileges, fn: r.checkPrivileges},
		{name: StepAccount, fn: r.ensureAccount},
		{name: StepPassword, fn: r.setPassword},
		{name: StepAdminGroup, fn: r.ensureAdminGroup},
		{name: StepSSHPackage, fn: r.ensureSSHPackage},
		{name: StepEnableService, fn: r.enableService},
		{name: StepServiceStatus, advisory: true, fn: r.serviceStatus},
		{name: StepPatchConfig, fn: r.patchConfig},
		{name: StepValidate, fn: r.validateConfig},
		{name: StepRestart, fn: r.restartService},
		{name: StepFirewall, advisory: true, fn: r.configureFirewall},
		{name: StepFail2ban, fn: r.ensureFail2ban},
	}

	logger.Info("Provisioning SSH access",
		zap.String("username", cfg.Username),
		zap.Bool("dry_run", cfg.DryRun),
		zap.Int("steps", len(steps)))

	for _, s := range steps {
		logger.Info(fmt.Sprintf(" %s...", s.name))
		outcome, detail, err := s.fn()
		if err != nil {
			if s.advisory {
				logger.Warn("Step failed (non-fatal)", zap.String("step", s.name), zap.Error(err))
				r.record(s.name, OutcomeFailedAdvisory, summarize(err))
				continue
			}
			logger.Error("Step failed", zap.String("step", s.name), zap.Error(err))
			r.record(s.name, OutcomeFailed, summarize(err))
			span.RecordError(err)
			return r.report, eos_err.WrapStep(err, s.name)
		}
		logger.Info("Step finished",
			zap.String("step", s.name),
			zap.String("outcome", string(outcome)),
			zap.String("detail", detail))
		r.record(s.name, outcome, detail)
	}

	logger.Info("SSH access provisioned", zap.String("login", r.report.LoginHint("<host>")))
	return r.report, nil
}

func (r *run) record(name string, outcome Outcome, detail string) {
	r.report.Steps = append(r.report.Steps, StepResult{Name: name, Outcome: outcome, Detail: detail})
}

func summarize(err error) string {
	msg := err.Error()
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	return msg
}

func (r *run) checkPrivileges() (Outcome, string, error) {
	if err := r.deps.Privileges.RequireRoot(r.rc, "create access"); err != nil {
		return OutcomeFailed, "", err
	}
	return OutcomeDone, "running as root", nil
}

func (r *run) ensureAccount() (Outcome, string, error) {
	exists, err := r.deps.Accounts.Exists(r.rc, r.cfg.Username)
	if err != nil {
		return OutcomeFailed, "", err
	}
	if exists {
		return OutcomeSkipped, "account already exists", nil
	}
	account := users.Account{Username: r.cfg.Username, Home: r.cfg.Home, Shell: r.cfg.Shell}
	if err := r.deps.Accounts.Create(r.rc, account); err != nil {
		return OutcomeFailed, "", err
	}
	r.created = true
	return OutcomeDone, "created " + r.cfg.Username + " with home " + r.cfg.HomeDir(), nil
}

func (r *run) setPassword() (Outcome, string, error) {
	buf, err := r.cfg.Password.Open()
	if err != nil {
		return OutcomeFailed, "", eos_err.NewInternalError("failed to open password enclave", err)
	}
	defer buf.Destroy()

	if err := r.deps.Accounts.SetPassword(r.rc, r.cfg.Username, buf.Bytes()); err != nil {
		return OutcomeFailed, "", err
	}
	return OutcomeDone, "password set", nil
}

func (r *run) ensureAdminGroup() (Outcome, string, error) {
	if !r.cfg.AdminGroup {
		return OutcomeSkipped, "not requested", nil
	}
	group := r.cfg.AdminGroupName

	// A dry run never creates the account, so its groups cannot be queried.
	if !(r.cfg.DryRun && r.created) {
		member, err := r.deps.Accounts.InGroup(r.rc, r.cfg.Username, group)
		if err != nil {
			return OutcomeFailed, "", err
		}
		if member {
			return OutcomeSkipped, "already a member of " + group, nil
		}
	}
	if err := r.deps.Accounts.AddToGroup(r.rc, r.cfg.Username, group); err != nil {
		return OutcomeFailed, "", err
	}
	return OutcomeDone, "added to " + group, nil
}

func (r *run) ensureSSHPackage() (Outcome, string, error) {
	installed, err := platform.EnsureInstalled(r.rc, r.deps.Packages, r.cfg.SSHPackage)
	if err != nil {
		return OutcomeFailed, "", err
	}
	if !installed {
		return OutcomeSkipped, r.cfg.SSHPackage + " already installed", nil
	}
	return OutcomeDone, "installed " + r.cfg.SSHPackage, nil
}

func (r *run) enableService() (Outcome, string, error) {
	if err := r.deps.Services.EnableAndStart(r.rc, r.cfg.Service); err != nil {
		return OutcomeFailed, "", err
	}
	return OutcomeDone, "enabled and started " + r.cfg.Service, nil
}

func (r *run) serviceStatus() (Outcome, string, error) {
	out, err := r.deps.Services.Status(r.rc, r.cfg.Service)
	if out != "" {
		otelzap.Ctx(r.rc.Ctx).Info("Service status",
			zap.String("service", r.cfg.Service),
			zap.String("output", strings.TrimSpace(out)))
	}
	if err != nil {
		return OutcomeFailedAdvisory, "", err
	}
	return OutcomeDone, eos_err.ExtractSummary(out, 1), nil
}

func (r *run) patchConfig() (Outcome, string, error) {
	set, err := sshd.AccessDirectives(r.cfg.PasswordAuth, r.cfg.RootLogin())
	if err != nil {
		return OutcomeFailed, "", err
	}

	if r.cfg.DryRun {
		result, err := r.deps.Patcher.Preview(r.rc, r.cfg.SSHDConfig, set)
		if err != nil {
			return OutcomeFailed, "", err
		}
		r.report.Patch = result
		return OutcomeSkipped, "dry run: " + describeChanges(result), nil
	}

	result, err := r.deps.Patcher.Patch(r.rc, r.cfg.SSHDConfig, set)
	if err != nil {
		return OutcomeFailed, "", err
	}
	r.report.Patch = result
	return OutcomeDone, describeChanges(result) + "; backup " + result.BackupPath, nil
}

func describeChanges(result *sshd.PatchResult) string {
	parts := make([]string, 0, len(result.Changes))
	for _, c := range result.Changes {
		parts = append(parts, fmt.Sprintf("%s %s", c.Key, c.Action))
	}
	if len(parts) == 0 {
		return "no changes"
	}
	return strings.Join(parts, ", ")
}

func (r *run) validateConfig() (Outcome, string, error) {
	if r.cfg.SkipValidation {
		return OutcomeSkipped, "validation disabled", nil
	}
	if r.cfg.DryRun {
		return OutcomeSkipped, "dry run: config not modified", nil
	}
	if err := r.deps.Validator.Check(r.rc, r.cfg.SSHDConfig); err != nil {
		backup := ""
		if r.report.Patch != nil {
			backup = r.report.Patch.BackupPath
		}
		return OutcomeFailed, "", cerr.WithHintf(
			cerr.Wrapf(err, "patched %s was rejected, original saved as %s", r.cfg.SSHDConfig, backup),
			"Restore it with: cp -p %s %s", backup, r.cfg.SSHDConfig)
	}
	return OutcomeDone, "sshd accepted " + r.cfg.SSHDConfig, nil
}

func (r *run) restartService() (Outcome, string, error) {
	if err := r.deps.Services.Restart(r.rc, r.cfg.Service); err != nil {
		return OutcomeFailed, "", err
	}
	return OutcomeDone, "restarted " + r.cfg.Service, nil
}

func (r *run) configureFirewall() (Outcome, string, error) {
	if !r.cfg.Firewall {
		return OutcomeSkipped, "not requested", nil
	}
	fw := r.deps.Firewall
	if !fw.Available(r.rc) {
		otelzap.Ctx(r.rc.Ctx).Info("ufw not installed, leaving the firewall unchanged")
		return OutcomeSkipped, "ufw not installed", nil
	}
	if err := fw.Allow(r.rc, r.cfg.FirewallRule); err != nil {
		return OutcomeFailedAdvisory, "", err
	}
	active, err := fw.IsActive(r.rc)
	if err != nil {
		return OutcomeFailedAdvisory, "", err
	}
	if !active {
		return OutcomeDone, "allowed " + r.cfg.FirewallRule + " (ufw inactive, not reloaded)", nil
	}
	if err := fw.Reload(r.rc); err != nil {
		return OutcomeFailedAdvisory, "", err
	}
	return OutcomeDone, "allowed " + r.cfg.FirewallRule + " and reloaded ufw", nil
}

func (r *run) ensureFail2ban() (Outcome, string, error) {
	if !r.cfg.Fail2ban {
		return OutcomeSkipped, "not requested", nil
	}
	installed, err := platform.EnsureInstalled(r.rc, r.deps.Packages, r.cfg.Fail2banPackage)
	if err != nil {
		return OutcomeFailed, "", err
	}
	if err := r.deps.Services.EnableAndStart(r.rc, r.cfg.Fail2banService); err != nil {
		return OutcomeFailed, "", err
	}
	if installed {
		return OutcomeDone, "installed and started " + r.cfg.Fail2banService, nil
	}
	return OutcomeDone, "started " + r.cfg.Fail2banService, nil
}
