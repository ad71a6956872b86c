package main

import (
	"io"

	"github.com/spf13/cobra"
	"github.com/srg/blesh"
	"github.com/srg/blesh/internal/lua"
)

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <device-id>",
		Short: "List the characteristics of a BLE device",
		Long: `Connects to a BLE device by id, lists its characteristics with their
properties and disconnects.`,
		Args: cobra.ExactArgs(1),
		RunE: runInspect,
	}
}

func runInspect(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := signalContext(cmd)
	defer cancel()

	stop := startProgress(cmd.ErrOrStderr(), func(w io.Writer) *ProgressPrinter {
		return NewProgressPrinter(w, "Inspecting device "+args[0], "Connecting")
	})

	engine := lua.NewEngine(a.dispatcher, a.logger, &lua.Options{
		Stdout: cmd.OutOrStdout(),
		Stderr: cmd.ErrOrStderr(),
	})
	defer engine.Close()

	// Output is flushed when the script ends, so progress is cleared first
	err = engine.Execute(ctx, blesh.DefaultInspectLuaScript, "inspect.lua", map[string]string{"device": args[0]})
	stop()
	return err
}
