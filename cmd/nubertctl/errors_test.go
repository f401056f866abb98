package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/xuio/nubert-hass/internal/session"
)

func TestExitCodes(t *testing.T) {
	assert.Equal(t, exitConfigError, exitCode(configError(errors.New("bad yaml"))))
	assert.Equal(t, exitConnectFailed, exitCode(fmt.Errorf("wrapped: %w", session.ErrConnectFailed)))
	assert.Equal(t, exitCommandRejected, exitCode(fmt.Errorf("wrapped: %w", session.ErrCommandRejected)))
	assert.Equal(t, exitFailure, exitCode(errors.New("anything else")))
}

func TestFormatUserError(t *testing.T) {
	msg := FormatUserError(fmt.Errorf("x: %w", session.ErrConnectFailed))
	assert.Contains(t, msg, "in range")

	msg = FormatUserError(fmt.Errorf("x: %w", session.ErrUnknownSource))
	assert.Contains(t, msg, "source --list")

	assert.Equal(t, "plain", FormatUserError(errors.New("plain")))
}

func TestParseSourceCode(t *testing.T) {
	code, err := parseSourceCode("0x04")
	assert.NoError(t, err)
	assert.Equal(t, byte(0x04), code)

	code, err = parseSourceCode("9")
	assert.NoError(t, err)
	assert.Equal(t, byte(9), code)

	_, err = parseSourceCode("0x1FF")
	assert.Error(t, err)

	_, err = parseSourceCode("aux")
	assert.Error(t, err)
}

func TestParseOnOffArg(t *testing.T) {
	on, err := parseOnOffArg("on")
	assert.NoError(t, err)
	assert.True(t, on)

	off, err := parseOnOffArg("off")
	assert.NoError(t, err)
	assert.False(t, off)

	_, err = parseOnOffArg("toggle")
	assert.Error(t, err)
}
