package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/srg/blesh/internal/lua"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <script.lua> [key=value...]",
		Short: "Run a Lua script against a BLE session",
		Long: `Runs a Lua script with a global 'ble' table bound to a fresh session:

  ble.init()  ble.scan(secs)  ble.connect(id)  ble.disconnect()
  ble.is_connected()  ble.write(data[, uuid])  ble.read([uuid])
  ble.characteristics()  ble.status()  ble.sleep(ms)

Each function returns value, nil on success or nil, message on failure.
key=value arguments are available to the script as arg.key.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runScript,
	}
}

func runScript(cmd *cobra.Command, args []string) error {
	scriptArgs, err := parseScriptArgs(args[1:])
	if err != nil {
		return err
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := signalContext(cmd)
	defer cancel()

	engine := lua.NewEngine(a.dispatcher, a.logger, &lua.Options{
		Stdout: cmd.OutOrStdout(),
		Stderr: cmd.ErrOrStderr(),
	})
	defer engine.Close()

	return engine.ExecuteFile(ctx, args[0], scriptArgs)
}

func parseScriptArgs(args []string) (map[string]string, error) {
	out := make(map[string]string, len(args))
	for _, kv := range args {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid script argument %q: expected key=value", kv)
		}
		out[key] = value
	}
	return out, nil
}
