package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/xuio/nubert-hass/internal/session"
)

var volumeCmd = &cobra.Command{
	Use:   "volume <dB>",
	Short: "Set the volume in dB",
	Long: `Set the volume in dB, e.g. 'volume -- -40'.

Speakers accept -100..0 dB, subwoofers -15..+6 dB; out-of-range values are
clamped. The profile is detected on connect.`,
	Args: cobra.ExactArgs(1),
	RunE: runVolume,
}

func init() {
	addDeviceFlags(volumeCmd)
}

func runVolume(cmd *cobra.Command, args []string) error {
	db, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("volume must be an integer dB value, got %q", args[0])
	}

	return withSession(cmd, func(ctx context.Context, sess *session.Session) error {
		return sess.SetVolume(ctx, db)
	})
}
