package main

import (
	"github.com/spf13/cobra"
	"github.com/srg/blesh/internal/ptybridge"
)

type bridgeFlags struct {
	writeChar string
	readChar  string
}

func newBridgeCmd() *cobra.Command {
	flags := &bridgeFlags{}
	cmd := &cobra.Command{
		Use:   "bridge <device-id>",
		Short: "Expose a BLE device as a PTY",
		Long: `Connects to a device and opens a pseudo-terminal bridged to it.

Bytes written to the PTY are sent to the device in small chunks, and new
values read from the device are written back to the PTY. Point any serial
tool at the printed device path. Stops on Ctrl+C or when the device disconnects.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBridge(cmd, args, flags)
		},
	}

	cmd.Flags().StringVar(&flags.writeChar, "write-char", "", "Characteristic to write PTY data to (default: first writable)")
	cmd.Flags().StringVar(&flags.readChar, "read-char", "", "Characteristic to poll for PTY output (default: first readable)")
	return cmd
}

func runBridge(cmd *cobra.Command, args []string, flags *bridgeFlags) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := signalContext(cmd)
	defer cancel()

	if err := a.open(ctx, args[0]); err != nil {
		return err
	}

	opts := a.cfg.BridgeOptions()
	opts.WriteChar = flags.writeChar
	opts.ReadChar = flags.readChar

	bridge := ptybridge.New(a.manager, a.logger, opts)
	return bridge.Run(ctx, func(path string) {
		printf(cmd.OutOrStdout(), "PTY: %s\n", path)
		printf(cmd.ErrOrStderr(), "Bridging %s, press Ctrl+C to stop\n", args[0])
	})
}
