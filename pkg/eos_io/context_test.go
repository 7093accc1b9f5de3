package eos_io

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewContext(t *testing.T) {
	rc := NewContext(context.Background(), "create access")
	require.NotNil(t, rc)
	assert.NotNil(t, rc.Ctx)
	assert.NotNil(t, rc.Log)
	assert.NotNil(t, rc.Span)
	assert.Equal(t, "create access", rc.Command)
	assert.False(t, rc.Timestamp.IsZero())

	var err error
	rc.End(&err)
}

func TestNewContextNilParent(t *testing.T) {
	rc := NewContext(nil, "inspect sshd")
	assert.NotNil(t, rc.Ctx)
}

func TestHandlePanic(t *testing.T) {
	rc := NewContext(context.Background(), "panic")

	run := func() (err error) {
		defer rc.HandlePanic(&err)
		panic("kaboom")
	}

	err := run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")
}

func TestEndWithError(t *testing.T) {
	rc := NewContext(context.Background(), "update sshd")
	rc.Attributes["sshd_config"] = "/etc/ssh/sshd_config"
	err := errors.New("failed")
	assert.NotPanics(t, func() { rc.End(&err) })
	assert.NotPanics(t, func() { rc.End(nil) })
}
