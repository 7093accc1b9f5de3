package users

import (
	"testing"

	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/eos_err"
	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/execute"
	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		name     string
		username string
		wantErr  bool
	}{
		{"simple", "alice", false},
		{"underscore start", "_svc", false},
		{"digits and dash", "deploy-01", false},
		{"empty", "", true},
		{"uppercase", "Alice", true},
		{"leading digit", "1admin", true},
		{"shell meta", "bob;rm", true},
		{"colon", "bob:x", true},
		{"too long", "a23456789012345678901234567890123", true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUsername(tt.username)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, eos_err.IsCategory(err, eos_err.CategoryInvalidValue))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestExists(t *testing.T) {
	rc := testutil.TestRuntimeContext(t)
	r := testutil.NewRecordingRunner().
		On("id -u alice", "1001\n", 0).
		On("id -u bob", "id: 'bob': no such user\n", 1)
	m := NewExecAccountManager(r)

	ok, err := m.Exists(rc, "alice")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.Exists(rc, "bob")
	require.NoError(t, err)
	assert.False(t, ok)

	for _, c := range r.Calls() {
		assert.True(t, c.ReadOnly, "existence checks are queries")
	}
}

func TestExists_ToolMissing(t *testing.T) {
	rc := testutil.TestRuntimeContext(t)
	r := testutil.NewRecordingRunner().On("id", "", -1)

	_, err := NewExecAccountManager(r).Exists(rc, "alice")
	require.Error(t, err)
	assert.True(t, eos_err.IsCategory(err, eos_err.CategoryExternalCommand))
}

func TestCreate(t *testing.T) {
	rc := testutil.TestRuntimeContext(t)
	r := testutil.NewRecordingRunner()
	err := NewExecAccountManager(r).Create(rc, Account{Username: "alice", Home: "/home/alice", Shell: "/bin/bash"})
	require.NoError(t, err)
	assert.Equal(t, []string{"useradd -m -d /home/alice -s /bin/bash alice"}, r.Commands())
}

func TestCreate_Failure(t *testing.T) {
	rc := testutil.TestRuntimeContext(t)
	r := testutil.NewRecordingRunner().On("useradd", "useradd: cannot lock /etc/passwd; try again later.\n", 1)
	err := NewExecAccountManager(r).Create(rc, Account{Username: "alice"})
	require.Error(t, err)
	assert.True(t, eos_err.IsCategory(err, eos_err.CategoryExternalCommand))
	assert.Contains(t, err.Error(), "creating user alice failed")
	assert.Contains(t, err.Error(), "cannot lock /etc/passwd")
}

func TestSetPassword_UsesStdin(t *testing.T) {
	rc := testutil.TestRuntimeContext(t)
	var stdin string
	r := testutil.NewRecordingRunner()
	r.OnFunc("chpasswd", func(opts execute.Options) (string, error) {
		stdin = string(opts.Stdin)
		return "", nil
	})

	require.NoError(t, NewExecAccountManager(r).SetPassword(rc, "alice", []byte("s3cret-Value")))
	assert.Equal(t, "alice:s3cret-Value\n", stdin)

	calls := r.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "chpasswd", calls[0].String())
	assert.NotContains(t, calls[0].String(), "s3cret")
}

func TestSetPassword_Rejects(t *testing.T) {
	rc := testutil.TestRuntimeContext(t)
	r := testutil.NewRecordingRunner()
	m := NewExecAccountManager(r)

	assert.Error(t, m.SetPassword(rc, "alice", nil))
	assert.Error(t, m.SetPassword(rc, "alice", []byte("two\nlines")))
	assert.Error(t, m.SetPassword(rc, "bad:user", []byte("x")))
	assert.Empty(t, r.Calls())
}

func TestGroups(t *testing.T) {
	rc := testutil.TestRuntimeContext(t)
	r := testutil.NewRecordingRunner().On("id -nG alice", "alice adm sudoers\n", 0)
	m := NewExecAccountManager(r)

	in, err := m.InGroup(rc, "alice", "sudo")
	require.NoError(t, err)
	assert.False(t, in, "group names match exactly")

	in, err = m.InGroup(rc, "alice", "adm")
	require.NoError(t, err)
	assert.True(t, in)

	require.NoError(t, m.AddToGroup(rc, "alice", "sudo"))
	assert.True(t, r.Ran("usermod -aG sudo alice"))
}
