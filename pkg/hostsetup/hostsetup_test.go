package hostsetup

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/eos_err"
	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/eos_io"
	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/execute"
	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/platform"
	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/sshd"
	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testPassword = "s3cret-pw"
	sshdConfig   = "Port 22\n#PasswordAuthentication yes\nPasswordAuthentication no\nPermitRootLogin prohibit-password\n"
)

type fakePrivileges struct{ err error }

func (f fakePrivileges) RequireRoot(_ *eos_io.RuntimeContext, _ string) error { return f.err }

type harness struct {
	cfg    *Config
	deps   *Deps
	runner *testutil.RecordingRunner
	dir    string
	path   string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	path := testutil.CreateTestFile(t, dir, "sshd_config", sshdConfig, 0o644)

	cfg := DefaultConfig()
	cfg.Username = "alice"
	cfg.SSHDConfig = path
	require.NoError(t, cfg.SetPassword([]byte(testPassword)))

	r := testutil.NewRecordingRunner()
	deps, err := NewDeps(cfg, r)
	require.NoError(t, err)
	deps.Privileges = fakePrivileges{}
	deps.Patcher = sshd.NewPatcher(sshd.WithClock(func() time.Time {
		return time.Date(2026, 1, 2, 3, 4, 5, 0, time.Local)
	}))
	deps.Firewall = &platform.UFW{
		Runner:   r,
		LookPath: func(string) (string, error) { return "/usr/sbin/ufw", nil },
	}
	return &harness{cfg: cfg, deps: deps, runner: r, dir: dir, path: path}
}

func (h *harness) backups(t *testing.T) []string {
	return testutil.Glob(t, h.dir, "sshd_config.bak-*")
}

func outcomes(report *Report) map[string]Outcome {
	out := make(map[string]Outcome, len(report.Steps))
	for _, s := range report.Steps {
		out[s.Name] = s.Outcome
	}
	return out
}

func TestRun_FreshHost(t *testing.T) {
	rc := testutil.TestRuntimeContext(t)
	h := newHarness(t)
	h.cfg.Firewall = true
	h.runner.
		On("id -u alice", "id: 'alice': no such user\n", 1).
		On("dpkg-query", "dpkg-query: no packages found matching openssh-server\n", 1).
		On("ufw status", "Status: active\n", 0)

	report, err := Run(rc, h.cfg, h.deps)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"id -u alice",
		"useradd -m -s /bin/bash alice",
		"chpasswd",
		"dpkg-query -W -f=${Status} openssh-server",
		"apt-get update",
		"apt-get install -y openssh-server",
		"systemctl enable --now ssh",
		"systemctl status --no-pager ssh",
		"sshd -t -f " + h.path,
		"systemctl restart ssh",
		"ufw allow OpenSSH",
		"ufw status",
		"ufw reload",
	}, h.runner.Commands())

	testutil.AssertFileContent(t, h.path,
		"Port 22\n#PasswordAuthentication yes\nPasswordAuthentication yes\nPermitRootLogin no\n")
	backups := h.backups(t)
	require.Len(t, backups, 1)
	testutil.AssertFileContent(t, backups[0], sshdConfig)

	require.NotNil(t, report.Patch)
	assert.Equal(t, backups[0], report.Patch.BackupPath)
	assert.True(t, report.Patch.Modified)
	require.Len(t, report.Steps, 12)
	assert.Equal(t, StepPrivileges, report.Steps[0].Name)
	assert.Equal(t, StepFail2ban, report.Steps[11].Name)

	got := outcomes(report)
	assert.Equal(t, OutcomeDone, got[StepAccount])
	assert.Equal(t, OutcomeSkipped, got[StepAdminGroup])
	assert.Equal(t, OutcomeDone, got[StepSSHPackage])
	assert.Equal(t, OutcomeDone, got[StepFirewall])
	assert.Equal(t, OutcomeSkipped, got[StepFail2ban])
	assert.Equal(t, "ssh alice@host1", report.LoginHint("host1"))
}

func TestRun_SkipsSatisfiedSteps(t *testing.T) {
	rc := testutil.TestRuntimeContext(t)
	h := newHarness(t)
	h.cfg.AdminGroup = true
	h.runner.
		On("id -u alice", "1001\n", 0).
		On("id -nG alice", "alice sudo\n", 0).
		On("dpkg-query", "install ok installed", 0)

	report, err := Run(rc, h.cfg, h.deps)
	require.NoError(t, err)

	assert.False(t, h.runner.Ran("useradd"))
	assert.False(t, h.runner.Ran("usermod"))
	assert.False(t, h.runner.Ran("apt-get"))
	assert.False(t, h.runner.Ran("ufw"))

	got := outcomes(report)
	assert.Equal(t, OutcomeSkipped, got[StepAccount])
	assert.Equal(t, OutcomeSkipped, got[StepAdminGroup])
	assert.Equal(t, OutcomeSkipped, got[StepSSHPackage])
	assert.Equal(t, OutcomeSkipped, got[StepFirewall])
	assert.Equal(t, OutcomeDone, got[StepPassword], "the password is always reset")
}

func TestRun_AddsAdminGroup(t *testing.T) {
	rc := testutil.TestRuntimeContext(t)
	h := newHarness(t)
	h.cfg.AdminGroup = true
	h.cfg.AdminGroupName = "wheel"
	h.runner.On("id -nG alice", "alice\n", 0)

	report, err := Run(rc, h.cfg, h.deps)
	require.NoError(t, err)
	assert.True(t, h.runner.Ran("usermod -aG wheel alice"))
	assert.Equal(t, OutcomeDone, outcomes(report)[StepAdminGroup])
}

func TestRun_PasswordOnlyOnStdin(t *testing.T) {
	rc := testutil.TestRuntimeContext(t)
	h := newHarness(t)

	var stdin string
	h.runner.OnFunc("chpasswd", func(opts execute.Options) (string, error) {
		stdin = string(opts.Stdin)
		return "", nil
	})

	_, err := Run(rc, h.cfg, h.deps)
	require.NoError(t, err)

	assert.Equal(t, "alice:"+testPassword+"\n", stdin)
	for _, c := range h.runner.Calls() {
		assert.NotContains(t, c.String(), testPassword)
		for _, env := range c.Env {
			assert.NotContains(t, env, testPassword)
		}
	}
}

func TestRun_AdvisoryFailuresAreTolerated(t *testing.T) {
	rc := testutil.TestRuntimeContext(t)
	h := newHarness(t)
	h.cfg.Firewall = true
	h.runner.
		On("systemctl status", "Active: activating (auto-restart)\n", 3).
		On("ufw allow", "ERROR: Could not find a profile matching 'OpenSSH'\n", 1)

	report, err := Run(rc, h.cfg, h.deps)
	require.NoError(t, err)

	got := outcomes(report)
	assert.Equal(t, OutcomeFailedAdvisory, got[StepServiceStatus])
	assert.Equal(t, OutcomeFailedAdvisory, got[StepFirewall])
	assert.True(t, h.runner.Ran("systemctl restart ssh"), "steps after an advisory failure still run")
	assert.False(t, h.runner.Ran("ufw reload"))
}

func TestRun_RequiredFailureAborts(t *testing.T) {
	rc := testutil.TestRuntimeContext(t)
	h := newHarness(t)
	h.runner.On("systemctl enable", "Failed to enable unit: Unit file ssh.service does not exist.\n", 1)

	report, err := Run(rc, h.cfg, h.deps)
	require.Error(t, err)
	assert.Contains(t, err.Error(), StepEnableService)
	assert.True(t, eos_err.IsCategory(err, eos_err.CategoryExternalCommand))
	assert.Equal(t, 1, eos_err.GetExitCode(err))

	require.NotNil(t, report)
	last := report.Steps[len(report.Steps)-1]
	assert.Equal(t, StepEnableService, last.Name)
	assert.Equal(t, OutcomeFailed, last.Outcome)

	assert.False(t, h.runner.Ran("sshd"))
	assert.False(t, h.runner.Ran("systemctl restart"))
	assert.Empty(t, h.backups(t))
	testutil.AssertFileContent(t, h.path, sshdConfig)
}

func TestRun_MissingConfigIsNotFound(t *testing.T) {
	rc := testutil.TestRuntimeContext(t)
	h := newHarness(t)
	h.cfg.SSHDConfig = filepath.Join(h.dir, "absent_config")

	_, err := Run(rc, h.cfg, h.deps)
	require.Error(t, err)
	assert.True(t, eos_err.IsCategory(err, eos_err.CategoryNotFound))
	assert.Contains(t, err.Error(), StepPatchConfig)
	assert.False(t, h.runner.Ran("systemctl restart"))
	assert.Empty(t, testutil.Glob(t, h.dir, "absent_config*"))
}

func TestRun_ValidationFailureNamesBackup(t *testing.T) {
	rc := testutil.TestRuntimeContext(t)
	h := newHarness(t)
	h.runner.On("sshd -t", "/etc/ssh/sshd_config line 3: Bad configuration option\n", 255)

	report, err := Run(rc, h.cfg, h.deps)
	require.Error(t, err)
	require.NotNil(t, report.Patch)
	assert.NotEmpty(t, report.Patch.BackupPath)
	assert.Contains(t, err.Error(), report.Patch.BackupPath)
	assert.Contains(t, err.Error(), StepValidate)
	assert.False(t, h.runner.Ran("systemctl restart"))
}

func TestRun_SkipValidation(t *testing.T) {
	rc := testutil.TestRuntimeContext(t)
	h := newHarness(t)
	h.cfg.SkipValidation = true

	report, err := Run(rc, h.cfg, h.deps)
	require.NoError(t, err)
	assert.False(t, h.runner.Ran("sshd"))
	assert.Equal(t, OutcomeSkipped, outcomes(report)[StepValidate])
}

func TestRun_PrivilegeCheckIsFatal(t *testing.T) {
	rc := testutil.TestRuntimeContext(t)
	h := newHarness(t)
	h.deps.Privileges = fakePrivileges{err: eos_err.NewPermissionError("create access", "run", nil, "Re-run with sudo")}

	_, err := Run(rc, h.cfg, h.deps)
	require.Error(t, err)
	assert.True(t, eos_err.IsCategory(err, eos_err.CategoryPermission))
	assert.Empty(t, h.runner.Commands())
}

func TestRun_DryRunLeavesConfigAlone(t *testing.T) {
	rc := testutil.TestRuntimeContext(t)
	h := newHarness(t)
	h.cfg.DryRun = true
	h.cfg.AdminGroup = true
	h.runner.On("id -u alice", "", 1)

	report, err := Run(rc, h.cfg, h.deps)
	require.NoError(t, err)

	testutil.AssertFileContent(t, h.path, sshdConfig)
	assert.Empty(t, h.backups(t))
	require.NotNil(t, report.Patch)
	assert.True(t, report.Patch.Modified)
	assert.Empty(t, report.Patch.BackupPath)
	assert.False(t, h.runner.Ran("sshd"))
	assert.False(t, h.runner.Ran("id -nG"), "a dry run cannot query groups of an account it did not create")
	assert.True(t, report.DryRun)
}

func TestRun_UFWNotInstalled(t *testing.T) {
	rc := testutil.TestRuntimeContext(t)
	h := newHarness(t)
	h.cfg.Firewall = true
	h.deps.Firewall = &platform.UFW{
		Runner:   h.runner,
		LookPath: func(string) (string, error) { return "", errors.New("executable file not found in $PATH") },
	}

	report, err := Run(rc, h.cfg, h.deps)
	require.NoError(t, err)
	assert.False(t, h.runner.Ran("ufw"))
	step, ok := report.Step(StepFirewall)
	require.True(t, ok)
	assert.Equal(t, OutcomeSkipped, step.Outcome)
	assert.Equal(t, "ufw not installed", step.Detail)
}

func TestRun_Fail2ban(t *testing.T) {
	rc := testutil.TestRuntimeContext(t)
	h := newHarness(t)
	h.cfg.Fail2ban = true
	h.runner.
		On("dpkg-query -W -f=${Status} openssh-server", "install ok installed", 0).
		On("dpkg-query -W -f=${Status} fail2ban", "", 1)

	report, err := Run(rc, h.cfg, h.deps)
	require.NoError(t, err)

	cmds := h.runner.Commands()
	require.GreaterOrEqual(t, len(cmds), 4)
	assert.Equal(t, []string{
		"dpkg-query -W -f=${Status} fail2ban",
		"apt-get update",
		"apt-get install -y fail2ban",
		"systemctl enable --now fail2ban",
	}, cmds[len(cmds)-4:])
	assert.Equal(t, OutcomeDone, outcomes(report)[StepFail2ban])
}

func TestRun_Fail2banFailureIsRequired(t *testing.T) {
	rc := testutil.TestRuntimeContext(t)
	h := newHarness(t)
	h.cfg.Fail2ban = true
	h.runner.On("systemctl enable --now fail2ban", "Job for fail2ban.service failed.\n", 1)

	_, err := Run(rc, h.cfg, h.deps)
	require.Error(t, err)
	assert.Contains(t, err.Error(), StepFail2ban)
}

func TestRun_InvalidConfigHasNoSideEffects(t *testing.T) {
	rc := testutil.TestRuntimeContext(t)
	h := newHarness(t)
	h.cfg.Password = nil

	_, err := Run(rc, h.cfg, h.deps)
	require.Error(t, err)
	assert.True(t, eos_err.IsCategory(err, eos_err.CategoryInvalidValue))
	assert.Empty(t, h.runner.Commands())
	testutil.AssertFileContent(t, h.path, sshdConfig)
}

func TestRun_MissingDeps(t *testing.T) {
	rc := testutil.TestRuntimeContext(t)
	h := newHarness(t)
	h.deps.Accounts = nil

	_, err := Run(rc, h.cfg, h.deps)
	require.Error(t, err)
	assert.True(t, eos_err.IsCategory(err, eos_err.CategoryInternal))
	assert.Contains(t, err.Error(), "Accounts")
}

func TestRun_CustomHome(t *testing.T) {
	rc := testutil.TestRuntimeContext(t)
	h := newHarness(t)
	h.cfg.Home = "/srv/alice"
	h.runner.On("id -u alice", "", 1)

	_, err := Run(rc, h.cfg, h.deps)
	require.NoError(t, err)
	assert.True(t, h.runner.Ran("useradd -m -d /srv/alice -s /bin/bash alice"))
}

func TestDescribeChanges(t *testing.T) {
	assert.Equal(t, "no changes", describeChanges(&sshd.PatchResult{}))
	got := describeChanges(&sshd.PatchResult{Changes: []sshd.DirectiveChange{
		{Key: "PasswordAuthentication", Action: sshd.ActionRewritten},
		{Key: "PermitRootLogin", Action: sshd.ActionAppended},
	}})
	assert.True(t, strings.HasPrefix(got, "PasswordAuthentication "))
	assert.Contains(t, got, "PermitRootLogin ")
}
