package sshd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeRootLogin(t *testing.T) {
	tests := map[string]string{
		"yes":                  "yes",
		"no":                   "no",
		"without-password":     "without-password",
		"prohibit-password":    "prohibit-password",
		"forced-commands-only": "forced-commands-only",
		"maybe":                "no",
		"":                     "no",
		"YES":                  "no",
		" yes":                 "no",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeRootLogin(in), "input %q", in)
	}
}

func TestAccessDirectives(t *testing.T) {
	s, err := AccessDirectives(true, "maybe")
	require.NoError(t, err)
	assert.Equal(t, []Directive{
		{Key: KeyPasswordAuthentication, Value: "yes"},
		{Key: KeyPermitRootLogin, Value: "no"},
	}, s.Directives())

	s, err = AccessDirectives(false, "prohibit-password")
	require.NoError(t, err)
	v, _ := s.Get(KeyPasswordAuthentication)
	assert.Equal(t, "no", v)
	v, _ = s.Get(KeyPermitRootLogin)
	assert.Equal(t, "prohibit-password", v)
}
