package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/srg/blesh/internal/device"
	"github.com/srg/blesh/pkg/config"
)

type scanFlags struct {
	duration time.Duration
	format   string
}

func newScanCmd() *cobra.Command {
	flags := &scanFlags{}
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan for BLE devices",
		Long: `Scan for Bluetooth Low Energy devices in the vicinity.

Only devices with a usable name are listed: names matching a configured
pattern (esp32, esp, myo by default) and any other non-empty name.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd, flags)
		},
	}

	cmd.Flags().DurationVarP(&flags.duration, "duration", "d", 0, "Scan duration (default from config, 5s)")
	cmd.Flags().StringVarP(&flags.format, "format", "f", "", "Output format (table, json; default from config)")
	return cmd
}

func runScan(cmd *cobra.Command, flags *scanFlags) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	duration := a.cfg.Scan.Timeout
	if flags.duration > 0 {
		duration = flags.duration
	}
	format := strings.ToLower(a.cfg.Scan.Format)
	if flags.format != "" {
		format = strings.ToLower(flags.format)
	}
	if format != config.FormatTable && format != config.FormatJSON {
		return fmt.Errorf("invalid format '%s': must be one of %v", format, []string{config.FormatTable, config.FormatJSON})
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	if _, err := a.manager.Init(ctx); err != nil {
		return err
	}

	stop := startProgress(cmd.ErrOrStderr(), func(w io.Writer) *ProgressPrinter {
		return NewCountdownProgressPrinter(w, "Scanning for BLE devices", "Scanning", duration)
	})
	devices, err := a.manager.Scan(ctx, duration)
	stop()
	if err != nil {
		return err
	}

	if format == config.FormatJSON {
		return displayDevicesJSON(cmd.OutOrStdout(), devices)
	}
	return displayDevicesTable(cmd.OutOrStdout(), devices)
}

func displayDevicesTable(out io.Writer, devices []device.DeviceDescriptor) error {
	if len(devices) == 0 {
		printf(out, "No devices discovered\n")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tID\tRSSI")
	fmt.Fprintln(w, "----\t--\t----")

	for _, d := range devices {
		name := d.Name
		if len(name) > 24 {
			name = name[:21] + "..."
		}
		rssi := "-"
		if d.RSSI != nil {
			rssi = fmt.Sprintf("%d dBm", *d.RSSI)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", name, d.ID, rssi)
	}

	return w.Flush()
}

func displayDevicesJSON(out io.Writer, devices []device.DeviceDescriptor) error {
	if devices == nil {
		devices = []device.DeviceDescriptor{}
	}
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(devices)
}
