package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/xuio/nubert-hass/internal/session"
)

var powerCmd = &cobra.Command{
	Use:   "power on|off",
	Short: "Turn the device on or off",
	Long: `Turn the device on or off.

The command is skipped when the device already reports the requested state.`,
	Args: cobra.ExactArgs(1),
	RunE: runPower,
}

func init() {
	addDeviceFlags(powerCmd)
}

func runPower(cmd *cobra.Command, args []string) error {
	on, err := parseOnOffArg(args[0])
	if err != nil {
		return err
	}

	return withSession(cmd, func(ctx context.Context, sess *session.Session) error {
		return sess.SetPower(ctx, on)
	})
}

func parseOnOffArg(arg string) (bool, error) {
	switch arg {
	case "on":
		return true, nil
	case "off":
		return false, nil
	default:
		return false, fmt.Errorf("expected 'on' or 'off', got %q", arg)
	}
}
