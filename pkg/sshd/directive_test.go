package sshd

import (
	"testing"

	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/eos_err"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirectiveSet_Order(t *testing.T) {
	s, err := NewDirectiveSet(
		Directive{Key: "PermitRootLogin", Value: "yes"},
		Directive{Key: "PasswordAuthentication", Value: "yes"},
		Directive{Key: "PermitRootLogin", Value: "no"},
	)
	require.NoError(t, err)

	assert.Equal(t, []string{"PermitRootLogin", "PasswordAuthentication"}, s.Keys())
	v, ok := s.Get("PermitRootLogin")
	assert.True(t, ok)
	assert.Equal(t, "no", v, "later value replaces, position kept")
	assert.Equal(t, 2, s.Len())
	assert.NoError(t, s.Validate())
}

func TestDirectiveSet_NormalizesRootLogin(t *testing.T) {
	s, err := ParseAssignments([]string{"PermitRootLogin=maybe", "Port=2222"})
	require.NoError(t, err)
	v, _ := s.Get(KeyPermitRootLogin)
	assert.Equal(t, "no", v)
	v, _ = s.Get("Port")
	assert.Equal(t, "2222", v)

	require.NoError(t, s.Set(KeyPermitRootLogin, "prohibit-password"))
	v, _ = s.Get(KeyPermitRootLogin)
	assert.Equal(t, "prohibit-password", v)
}

func TestDirectiveSet_Rejects(t *testing.T) {
	tests := []struct {
		name       string
		key, value string
	}{
		{"empty key", "", "yes"},
		{"space in key", "Password Authentication", "yes"},
		{"tab in key", "Port\t", "22"},
		{"comment key", "#Port", "22"},
		{"newline in value", "Port", "22\nPermitRootLogin yes"},
		{"carriage return in value", "Port", "22\r"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			s := &DirectiveSet{}
			err := s.Set(tt.key, tt.value)
			require.Error(t, err)
			assert.True(t, eos_err.IsCategory(err, eos_err.CategoryInvalidValue))
			assert.Zero(t, s.Len())
		})
	}
}

func TestDirectiveSet_EmptyIsInvalid(t *testing.T) {
	var s *DirectiveSet
	err := s.Validate()
	require.Error(t, err)
	assert.True(t, eos_err.IsCategory(err, eos_err.CategoryInvalidValue))
}

func TestParseAssignments(t *testing.T) {
	s, err := ParseAssignments([]string{"PasswordAuthentication=yes", " Port = 2222 ", "Banner=/etc/issue.net"})
	require.NoError(t, err)
	assert.Equal(t, []Directive{
		{Key: "PasswordAuthentication", Value: "yes"},
		{Key: "Port", Value: "2222"},
		{Key: "Banner", Value: "/etc/issue.net"},
	}, s.Directives())

	_, err = ParseAssignments([]string{"PasswordAuthentication"})
	require.Error(t, err)
	assert.True(t, eos_err.IsCategory(err, eos_err.CategoryInvalidValue))
}

func TestDirectiveLine(t *testing.T) {
	assert.Equal(t, "Port 22", Directive{Key: "Port", Value: "22"}.Line())
	assert.Equal(t, "UsePAM", Directive{Key: "UsePAM"}.Line())
}
