package main

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

type writeFlags struct {
	hex bool
}

func newWriteCmd() *cobra.Command {
	flags := &writeFlags{}
	cmd := &cobra.Command{
		Use:   "write <device-id> <data> [characteristic-uuid]",
		Short: "Write data to a characteristic",
		Long: `Connects to a device and writes data to one characteristic.

Without a UUID the first writable characteristic is used. Data is sent as
UTF-8 text, or as raw bytes with --hex (e.g. "01ff" or "01 ff").`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWrite(cmd, args, flags)
		},
	}

	cmd.Flags().BoolVar(&flags.hex, "hex", false, "Interpret data as hex bytes")
	return cmd
}

func runWrite(cmd *cobra.Command, args []string, flags *writeFlags) error {
	data := args[1]
	if flags.hex {
		raw, err := hex.DecodeString(strings.ReplaceAll(data, " ", ""))
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidHex, err)
		}
		data = string(raw)
	}

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

	charUUID := ""
	if len(args) > 2 {
		charUUID = args[2]
	}

	n, err := a.manager.Write(ctx, data, charUUID)
	if err != nil {
		return err
	}
	printf(cmd.OutOrStdout(), "Wrote %d bytes\n", n)
	return nil
}
