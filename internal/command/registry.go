package command

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Argument names, as used on the wire
const (
	ArgTimeoutSecs = "timeoutSecs"
	ArgDeviceID    = "deviceId"
	ArgData        = "data"
	ArgCharUUID    = "charUuid"
)

type param struct {
	name     string
	optional bool
}

type runFunc func(ctx context.Context, d *Dispatcher, a Args) (any, error)

// Command is a named session operation
type Command struct {
	Name    string
	Aliases []string
	Summary string

	params []param
	run    runFunc
}

// Usage renders the positional form, e.g. "write <data> [charUuid]"
func (c *Command) Usage() string {
	parts := []string{c.Name}
	for _, p := range c.params {
		if p.optional {
			parts = append(parts, "["+p.name+"]")
		} else {
			parts = append(parts, "<"+p.name+">")
		}
	}
	return strings.Join(parts, " ")
}

// ParseArgs maps positional arguments onto Args in parameter order
func (c *Command) ParseArgs(positional []string) (Args, error) {
	var a Args
	if len(positional) > len(c.params) {
		return a, &InvalidCommandError{Command: c.Name, Reason: fmt.Sprintf("too many arguments, usage: %s", c.Usage())}
	}

	for i, value := range positional {
		switch c.params[i].name {
		case ArgTimeoutSecs:
			secs, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return a, &InvalidCommandError{Command: c.Name, Reason: fmt.Sprintf("%s must be an integer, got %q", ArgTimeoutSecs, value)}
			}
			a.TimeoutSecs = &secs
		case ArgDeviceID:
			a.DeviceID = value
		case ArgData:
			data := value
			a.Data = &data
		case ArgCharUUID:
			a.CharUUID = value
		}
	}
	return a, nil
}

// maxTimeoutSecs is the largest timeout that still fits a time.Duration
const maxTimeoutSecs = math.MaxInt64 / int64(time.Second)

func (c *Command) validate(a Args) error {
	for _, p := range c.params {
		if p.optional {
			continue
		}
		missing := false
		switch p.name {
		case ArgTimeoutSecs:
			missing = a.TimeoutSecs == nil
		case ArgDeviceID:
			missing = strings.TrimSpace(a.DeviceID) == ""
		case ArgData:
			missing = a.Data == nil
		case ArgCharUUID:
			missing = strings.TrimSpace(a.CharUUID) == ""
		}
		if missing {
			return &InvalidCommandError{Command: c.Name, Reason: fmt.Sprintf("missing %s, usage: %s", p.name, c.Usage())}
		}
	}

	if a.TimeoutSecs != nil && *a.TimeoutSecs < 0 {
		return &InvalidCommandError{Command: c.Name, Reason: fmt.Sprintf("%s must not be negative", ArgTimeoutSecs)}
	}
	if a.TimeoutSecs != nil && *a.TimeoutSecs > maxTimeoutSecs {
		return &InvalidCommandError{Command: c.Name, Reason: fmt.Sprintf("%s must not exceed %d", ArgTimeoutSecs, maxTimeoutSecs)}
	}
	return nil
}

func builtinCommands() []*Command {
	return []*Command{
		{
			Name:    "init",
			Aliases: []string{"init_bluetooth"},
			Summary: "Acquire the Bluetooth adapter",
			run: func(ctx context.Context, d *Dispatcher, _ Args) (any, error) {
				return d.session.Init(ctx)
			},
		},
		{
			Name:    "scan",
			Aliases: []string{"scan_bluetooth_devices"},
			Summary: "Scan for named devices",
			params:  []param{{name: ArgTimeoutSecs, optional: true}},
			run: func(ctx context.Context, d *Dispatcher, a Args) (any, error) {
				timeout := d.opts.DefaultScanTimeout
				if a.TimeoutSecs != nil {
					timeout = time.Duration(*a.TimeoutSecs) * time.Second
				}
				return d.session.Scan(ctx, timeout)
			},
		},
		{
			Name:    "connect",
			Aliases: []string{"connect_bluetooth"},
			Summary: "Connect to a device by id",
			params:  []param{{name: ArgDeviceID}},
			run: func(ctx context.Context, d *Dispatcher, a Args) (any, error) {
				return d.session.Connect(ctx, a.DeviceID)
			},
		},
		{
			Name:    "disconnect",
			Aliases: []string{"disconnect_bluetooth"},
			Summary: "Disconnect the active device",
			run: func(ctx context.Context, d *Dispatcher, _ Args) (any, error) {
				return d.session.Disconnect(ctx)
			},
		},
		{
			Name:    "isConnected",
			Aliases: []string{"is_bluetooth_connected", "connected"},
			Summary: "Check the link to the active device",
			run: func(ctx context.Context, d *Dispatcher, _ Args) (any, error) {
				return d.session.IsConnected(ctx)
			},
		},
		{
			Name:    "write",
			Aliases: []string{"write_bluetooth"},
			Summary: "Write text to a characteristic (first writable by default)",
			params:  []param{{name: ArgData}, {name: ArgCharUUID, optional: true}},
			run: func(ctx context.Context, d *Dispatcher, a Args) (any, error) {
				return d.session.Write(ctx, *a.Data, a.CharUUID)
			},
		},
		{
			Name:    "read",
			Aliases: []string{"read_bluetooth"},
			Summary: "Read text from a characteristic (first readable by default)",
			params:  []param{{name: ArgCharUUID, optional: true}},
			run: func(ctx context.Context, d *Dispatcher, a Args) (any, error) {
				return d.session.Read(ctx, a.CharUUID)
			},
		},
		{
			Name:    "listCharacteristics",
			Aliases: []string{"get_characteristics", "chars"},
			Summary: "List the characteristics of the active device",
			run: func(_ context.Context, d *Dispatcher, _ Args) (any, error) {
				return d.session.ListCharacteristics()
			},
		},
		{
			Name:    "status",
			Summary: "Show the cached session state",
			run: func(_ context.Context, d *Dispatcher, _ Args) (any, error) {
				return d.session.Status()
			},
		},
	}
}
