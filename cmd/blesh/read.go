package main

import (
	"github.com/spf13/cobra"
)

func newReadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "read <device-id> [characteristic-uuid]",
		Short: "Read a characteristic value",
		Long: `Connects to a device, reads one characteristic and prints its value as text.

Without a UUID the first readable characteristic is used.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: runRead,
	}
}

func runRead(cmd *cobra.Command, args []string) error {
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
	if len(args) > 1 {
		charUUID = args[1]
	}

	text, err := a.manager.Read(ctx, charUUID)
	if err != nil {
		return err
	}
	printf(cmd.OutOrStdout(), "%s\n", text)
	return nil
}
