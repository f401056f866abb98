package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/xuio/nubert-hass/internal/bluez"
	"github.com/xuio/nubert-hass/internal/config"
	"github.com/xuio/nubert-hass/internal/hass"
)

var serveConfigPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve configured devices to Home Assistant over MQTT",
	Long: `Run one session per configured device and bridge it to MQTT:
retained state, Home Assistant discovery, availability and command topics.

MQTT credentials can also come from the environment (NUBERT_MQTT_BROKER,
NUBERT_MQTT_USERNAME, NUBERT_MQTT_PASSWORD) or a .env file.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&serveConfigPath, "config", "c", "nubert.yaml", "Path to the config file")
}

func runServe(cmd *cobra.Command, args []string) error {
	config.LoadEnvFile()

	cfg, err := config.Load(serveConfigPath)
	if err != nil {
		return configError(err)
	}
	if err := cfg.ValidateServe(); err != nil {
		return configError(err)
	}

	cmd.SilenceUsage = true

	logger := cfg.NewLogger()
	// --log-level overrides the config file
	if flagLogger, ferr := configureLogger(cmd); ferr == nil {
		if level, _ := cmd.Flags().GetString("log-level"); level != "" {
			logger = flagLogger
		}
	}

	if err := bluez.EnsurePowered(cfg.Adapter); err != nil {
		logger.WithError(err).Warn("Could not power BLE adapter")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.WithField("devices", len(cfg.Devices)).Info("Starting Home Assistant bridge")

	if err := hass.New(cfg, logger).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
