// Package command exposes the session operations as named commands with a JSON wire form.
//
// Every front-end (interactive shell, Lua scripts, one-shot CLI commands) goes through
// a Dispatcher, so argument validation and error reporting are identical everywhere.
package command

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/blesh/internal/device"
	"github.com/srg/blesh/internal/session"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// KindInvalidCommand reports an unknown command name or malformed arguments
const KindInvalidCommand = "InvalidCommand"

// kindUnknown is reported for errors that carry no session error kind
const kindUnknown = "Error"

// DefaultScanTimeout is used by scan when no timeout argument is given
const DefaultScanTimeout = 5 * time.Second

// ErrInvalidCommand is matched by every InvalidCommandError
var ErrInvalidCommand = errors.New("invalid command")

// InvalidCommandError describes why a request could not be dispatched
type InvalidCommandError struct {
	Command string
	Reason  string
}

func (e *InvalidCommandError) Error() string {
	if e.Command == "" {
		return fmt.Sprintf("invalid command: %s", e.Reason)
	}
	return fmt.Sprintf("invalid command %q: %s", e.Command, e.Reason)
}

func (e *InvalidCommandError) Is(target error) bool {
	return target == ErrInvalidCommand
}

// Session is the set of operations commands are dispatched to. *session.Manager implements it.
type Session interface {
	Init(ctx context.Context) (string, error)
	Scan(ctx context.Context, timeout time.Duration) ([]device.DeviceDescriptor, error)
	Connect(ctx context.Context, deviceID string) (string, error)
	Disconnect(ctx context.Context) (string, error)
	IsConnected(ctx context.Context) (bool, error)
	Write(ctx context.Context, data string, charUUID string) (int, error)
	Read(ctx context.Context, charUUID string) (string, error)
	ListCharacteristics() ([]string, error)
	Status() (session.Status, error)
}

// Request is the wire form of a command invocation
type Request struct {
	Command string          `json:"command"`
	Args    json.RawMessage `json:"args,omitempty"`
}

// Args is the union of all command arguments
type Args struct {
	TimeoutSecs *int64  `json:"timeoutSecs,omitempty"`
	DeviceID    string  `json:"deviceId,omitempty"`
	Data        *string `json:"data,omitempty"`
	CharUUID    string  `json:"charUuid,omitempty"`
}

// Response is the wire form of a command result
type Response struct {
	OK     bool   `json:"ok"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
	Kind   string `json:"kind,omitempty"`
}

// Err returns the failure carried by the response, nil when it succeeded
func (r Response) Err() error {
	if r.OK {
		return nil
	}
	return &ResponseError{Message: r.Error, Kind: r.Kind}
}

// ResponseError is a failed Response seen as a Go error
type ResponseError struct {
	Message string
	Kind    string
}

func (e *ResponseError) Error() string {
	return e.Message
}

// Options tunes a Dispatcher
type Options struct {
	DefaultScanTimeout time.Duration
}

// Dispatcher routes requests to session operations
type Dispatcher struct {
	session  Session
	logger   *logrus.Logger
	opts     Options
	commands *orderedmap.OrderedMap[string, *Command]
	aliases  map[string]string
}

// NewDispatcher creates a dispatcher with every built-in command registered
func NewDispatcher(s Session, logger *logrus.Logger, opts *Options) *Dispatcher {
	if logger == nil {
		logger = logrus.New()
	}

	d := &Dispatcher{
		session:  s,
		logger:   logger,
		opts:     Options{DefaultScanTimeout: DefaultScanTimeout},
		commands: orderedmap.New[string, *Command](),
		aliases:  make(map[string]string),
	}
	if opts != nil && opts.DefaultScanTimeout > 0 {
		d.opts.DefaultScanTimeout = opts.DefaultScanTimeout
	}

	for _, c := range builtinCommands() {
		d.register(c)
	}
	return d
}

func (d *Dispatcher) register(c *Command) {
	if _, present := d.commands.Set(c.Name, c); present {
		panic(fmt.Sprintf("command %q registered twice", c.Name))
	}
	for _, alias := range c.Aliases {
		d.aliases[alias] = c.Name
	}
}

// Commands returns the registered commands in registration order
func (d *Dispatcher) Commands() []*Command {
	out := make([]*Command, 0, d.commands.Len())
	for pair := d.commands.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}

// Lookup resolves a command by name or alias
func (d *Dispatcher) Lookup(name string) (*Command, bool) {
	if canonical, ok := d.aliases[name]; ok {
		name = canonical
	}
	return d.commands.Get(name)
}

// Execute runs a request. Failures are reported inside the Response, never as a Go error.
func (d *Dispatcher) Execute(ctx context.Context, req Request) Response {
	c, ok := d.Lookup(req.Command)
	if !ok {
		return d.failure(req.Command, &InvalidCommandError{Command: req.Command, Reason: "unknown command"})
	}

	var args Args
	if len(req.Args) > 0 && string(req.Args) != "null" {
		if err := json.Unmarshal(req.Args, &args); err != nil {
			return d.failure(c.Name, &InvalidCommandError{Command: c.Name, Reason: fmt.Sprintf("malformed args: %v", err)})
		}
	}

	return d.Run(ctx, c, args)
}

// Run validates args against the command and runs it
func (d *Dispatcher) Run(ctx context.Context, c *Command, args Args) Response {
	if err := c.validate(args); err != nil {
		return d.failure(c.Name, err)
	}

	d.logger.WithField("command", c.Name).Debug("Dispatching command")
	result, err := c.run(ctx, d, args)
	if err != nil {
		return d.failure(c.Name, err)
	}
	return Response{OK: true, Result: result}
}

// ExecuteJSON decodes a JSON request, runs it and encodes the response
func (d *Dispatcher) ExecuteJSON(ctx context.Context, data []byte) []byte {
	var req Request
	var resp Response
	if err := json.Unmarshal(data, &req); err != nil {
		resp = d.failure("", &InvalidCommandError{Reason: fmt.Sprintf("malformed request: %v", err)})
	} else {
		resp = d.Execute(ctx, req)
	}

	out, err := json.Marshal(resp)
	if err != nil {
		// Results are plain data; this only happens on a programming error
		d.logger.WithError(err).Error("Failed to encode response")
		out, _ = json.Marshal(Response{Error: err.Error(), Kind: kindUnknown})
	}
	return out
}

func (d *Dispatcher) failure(name string, err error) Response {
	kind := errorKind(err)
	d.logger.WithFields(logrus.Fields{
		"command": name,
		"kind":    kind,
	}).WithError(err).Debug("Command failed")
	return Response{Error: err.Error(), Kind: kind}
}

func errorKind(err error) string {
	if errors.Is(err, ErrInvalidCommand) {
		return KindInvalidCommand
	}
	if kind := session.KindOf(err); kind != "" {
		return string(kind)
	}
	return kindUnknown
}
