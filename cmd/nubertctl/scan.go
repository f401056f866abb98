package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/xuio/nubert-hass/internal/device"
	"github.com/xuio/nubert-hass/scanner"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for Nubert devices",
	Long: `Scan for Nubert speakers and subwoofers in the vicinity.

Only devices advertising the Nubert control service are listed unless --all
is given.`,
	RunE: runScan,
}

var (
	scanDuration time.Duration
	scanJSON     bool
	scanAll      bool
	scanAllow    []string
	scanBlock    []string
)

func init() {
	scanCmd.Flags().DurationVarP(&scanDuration, "duration", "d", 10*time.Second, "Scan duration")
	scanCmd.Flags().BoolVar(&scanJSON, "json", false, "Print results as JSON")
	scanCmd.Flags().BoolVar(&scanAll, "all", false, "Include non-Nubert devices")
	scanCmd.Flags().StringSliceVar(&scanAllow, "allow", nil, "Only show devices with these addresses")
	scanCmd.Flags().StringSliceVar(&scanBlock, "block", nil, "Hide devices with these addresses")
}

func runScan(cmd *cobra.Command, args []string) error {
	logger, err := configureLogger(cmd)
	if err != nil {
		return err
	}

	cmd.SilenceUsage = true

	powerAdapter(cmd, logger)

	s, err := scanner.NewScanner(logger)
	if err != nil {
		return fmt.Errorf("failed to create BLE scanner: %w", err)
	}

	opts := scanner.DefaultScanOptions()
	opts.Duration = scanDuration
	opts.NubertOnly = !scanAll
	opts.AllowList = scanAllow
	opts.BlockList = scanBlock

	ctx, cancel := context.WithTimeout(context.Background(), scanDuration)
	defer cancel()
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	progress := NewCountdownProgressPrinter("Scanning for Nubert devices", "Scanning", scanDuration, "Processing results")
	progress.Start()
	defer progress.Stop()

	devices, err := s.Scan(ctx, opts, progress.Callback())
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	progress.Stop()

	if scanJSON {
		return printScanJSON(os.Stdout, devices)
	}
	return printScanTable(os.Stdout, devices)
}

func printScanTable(out io.Writer, devices map[string]device.DeviceInfo) error {
	if len(devices) == 0 {
		fmt.Fprintln(out, "No Nubert devices discovered")
		return nil
	}

	list := make([]device.DeviceInfo, 0, len(devices))
	for _, d := range devices {
		list = append(list, d)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].RSSI() > list[j].RSSI()
	})

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, color.New(color.Bold).Sprint("NAME\tADDRESS\tRSSI\tLAST SEEN"))
	for _, d := range list {
		name := d.Name()
		if name == "" {
			name = "(unnamed)"
		}
		if len(name) > 24 {
			name = name[:21] + "..."
		}
		fmt.Fprintf(w, "%s\t%s\t%d dBm\t%s ago\n",
			name, d.Address(), d.RSSI(), time.Since(d.LastSeen()).Truncate(time.Second))
	}
	return w.Flush()
}

// scanResult is the --json shape of one discovered device.
type scanResult struct {
	Name     string    `json:"name"`
	Address  string    `json:"address"`
	RSSI     int       `json:"rssi"`
	Services []string  `json:"services,omitempty"`
	LastSeen time.Time `json:"last_seen"`
}

func printScanJSON(out io.Writer, devices map[string]device.DeviceInfo) error {
	results := make([]scanResult, 0, len(devices))
	for _, d := range devices {
		results = append(results, scanResult{
			Name:     d.Name(),
			Address:  d.Address(),
			RSSI:     d.RSSI(),
			Services: d.AdvertisedServices(),
			LastSeen: d.LastSeen(),
		})
	}
	sort.Slice(results, func(i, j int) bool {
		return strings.Compare(results[i].Address, results[j].Address) < 0
	})

	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(results)
}
