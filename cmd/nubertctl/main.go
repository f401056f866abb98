package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"unicode"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// formatVersion adds a 'v' prefix if version starts with a digit.
func formatVersion(ver string) string {
	if len(ver) > 0 && unicode.IsDigit(rune(ver[0])) {
		return "v" + ver
	}
	return ver
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "nubertctl",
	Short: "Control Nubert speakers and subwoofers over BLE",
	Long: `Command-line control for Nubert nuPro speakers and nuSub subwoofers:

- Scan for nearby Nubert devices
- Query and watch device state (power, volume, source, mute, role)
- Switch power, volume, input source and mute
- Serve all configured devices to Home Assistant over MQTT

Device state is reconciled from the device itself; commands are confirmed
through notifications where the device supports them.`,
	Version: formatVersion(version),
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Ctrl+C is a normal exit, not an error - exit silently
		if errors.Is(err, context.Canceled) {
			return
		}
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", FormatUserError(err))
		os.Exit(exitCode(err))
	}
}

func init() {
	// Silence Cobra's "Error:" prefix - main() prints clean errors
	rootCmd.SilenceErrors = true

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(powerCmd)
	rootCmd.AddCommand(volumeCmd)
	rootCmd.AddCommand(muteCmd)
	rootCmd.AddCommand(sourceCmd)
	rootCmd.AddCommand(serveCmd)

	// Global flags
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("adapter", "default", "BLE adapter (Linux: hci name)")
	rootCmd.PersistentFlags().Bool("power-adapter", true, "Power the BLE adapter on before use (Linux)")

	rootCmd.Flags().BoolP("version", "v", false, "Show version information")
}
