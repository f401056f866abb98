package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/xuio/nubert-hass/internal/bluez"
	"github.com/xuio/nubert-hass/internal/session"
)

// deviceAddress is shared by all one-shot device commands.
var deviceAddress string

func addDeviceFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&deviceAddress, "address", "a", "", "BLE address of the device (required)")
	_ = cmd.MarkFlagRequired("address")
}

// powerAdapter makes sure the BLE adapter is up before any radio use.
// Failures degrade to a warning; the HCI stack may still work.
func powerAdapter(cmd *cobra.Command, logger *logrus.Logger) {
	enabled, _ := cmd.Flags().GetBool("power-adapter")
	if !enabled {
		return
	}
	adapter, _ := cmd.Flags().GetString("adapter")
	if err := bluez.EnsurePowered(adapter); err != nil {
		logger.WithError(err).Warn("Could not power BLE adapter")
	}
}

// withSession is the shared one-shot wrapper: configure logging, power the
// adapter, build the session, run fn under an interrupt-aware context, and
// always disconnect.
func withSession(cmd *cobra.Command, fn func(ctx context.Context, sess *session.Session) error) error {
	logger, err := configureLogger(cmd)
	if err != nil {
		return err
	}

	// Arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	powerAdapter(cmd, logger)

	sess := session.New(session.Options{
		Address: deviceAddress,
		Logger:  logger,
	})
	defer sess.Disconnect()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return fn(ctx, sess)
}
