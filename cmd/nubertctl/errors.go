package main

import (
	"errors"
	"fmt"

	"github.com/xuio/nubert-hass/internal/session"
)

// Exit codes: distinct failure classes for scripting.
const (
	exitFailure         = 1
	exitConfigError     = 2
	exitConnectFailed   = 3
	exitCommandRejected = 4
)

// errConfig marks configuration problems so they exit with their own code.
var errConfig = errors.New("configuration error")

func configError(err error) error {
	return fmt.Errorf("%w: %w", errConfig, err)
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, errConfig):
		return exitConfigError
	case errors.Is(err, session.ErrConnectFailed):
		return exitConnectFailed
	case errors.Is(err, session.ErrCommandRejected):
		return exitCommandRejected
	default:
		return exitFailure
	}
}

// FormatUserError maps internal errors to actionable messages.
func FormatUserError(err error) string {
	switch {
	case errors.Is(err, session.ErrConnectFailed):
		return fmt.Sprintf("%s\nCheck that the device is powered and in range, and that no other app holds the connection.", err)
	case errors.Is(err, session.ErrCommandRejected):
		return fmt.Sprintf("%s\nThe device refused the command; it may be in a mode that does not accept it.", err)
	case errors.Is(err, session.ErrUnknownSource):
		return fmt.Sprintf("%s\nRun 'nubertctl source --list -a <address>' to see the valid names.", err)
	default:
		return err.Error()
	}
}
