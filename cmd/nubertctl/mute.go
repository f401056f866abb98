package main

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/xuio/nubert-hass/internal/session"
)

var muteCmd = &cobra.Command{
	Use:   "mute on|off",
	Short: "Mute or unmute the device",
	Args:  cobra.ExactArgs(1),
	RunE:  runMute,
}

func init() {
	addDeviceFlags(muteCmd)
}

func runMute(cmd *cobra.Command, args []string) error {
	mute, err := parseOnOffArg(args[0])
	if err != nil {
		return err
	}

	return withSession(cmd, func(ctx context.Context, sess *session.Session) error {
		return sess.SetMute(ctx, mute)
	})
}
