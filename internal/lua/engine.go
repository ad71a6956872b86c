// Package lua runs Lua scripts against a BLE session. Scripts see a global `ble`
// table whose functions go through the same command dispatcher as the shell.
package lua

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/aarzilli/golua/lua"
	"github.com/sirupsen/logrus"
	"github.com/srg/blesh/internal/command"
)

// ErrorType classifies a ScriptError
type ErrorType string

const (
	ErrorTypeSyntax    ErrorType = "syntax"
	ErrorTypeRuntime   ErrorType = "runtime"
	ErrorTypeAPI       ErrorType = "api"
	ErrorTypeCancelled ErrorType = "cancelled"
)

// ScriptError describes a failed script load or run
type ScriptError struct {
	Type    ErrorType
	Message string
	Line    int
	Source  string
	Err     error
}

func (e *ScriptError) Error() string {
	parts := []string{}
	if e.Source != "" {
		parts = append(parts, fmt.Sprintf("in %s", e.Source))
	}
	if e.Line > 0 {
		parts = append(parts, fmt.Sprintf("line %d", e.Line))
	}

	prefix := fmt.Sprintf("Lua %s error", e.Type)
	if len(parts) > 0 {
		prefix = fmt.Sprintf("%s (%s)", prefix, strings.Join(parts, ", "))
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

func (e *ScriptError) Unwrap() error {
	return e.Err
}

// Is matches another *ScriptError by Type
func (e *ScriptError) Is(target error) bool {
	var other *ScriptError
	if errors.As(target, &other) {
		return e.Type == other.Type
	}
	return false
}

// Options tunes an Engine
type Options struct {
	Stdout           io.Writer
	Stderr           io.Writer
	OutputBufferSize uint32
}

// Engine owns one Lua state bound to a command dispatcher. Scripts run one at a time.
type Engine struct {
	mu         sync.Mutex
	state      *lua.State
	dispatcher *command.Dispatcher
	logger     *logrus.Logger
	out        *output

	// ctx of the script currently running, read by the ble functions
	ctx context.Context
}

// NewEngine creates an engine with print capture and the ble table installed
func NewEngine(dispatcher *command.Dispatcher, logger *logrus.Logger, opts *Options) *Engine {
	if logger == nil {
		logger = logrus.New()
	}
	if opts == nil {
		opts = &Options{Stdout: os.Stdout, Stderr: os.Stderr}
	}

	e := &Engine{
		dispatcher: dispatcher,
		logger:     logger,
		out:        newOutput(opts.OutputBufferSize, opts.Stdout, opts.Stderr, logger),
		ctx:        context.Background(),
	}

	e.state = lua.NewState()
	e.state.OpenLibs()
	e.registerPrint(e.state)
	e.registerBLE(e.state)

	logger.Debug("Lua engine initialized")
	return e
}

// Close releases the Lua state. The engine cannot be used afterwards.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != nil {
		e.state.Close()
		e.state = nil
	}
}

// ExecuteFile runs the script stored at path
func (e *Engine) ExecuteFile(ctx context.Context, path string, args map[string]string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read script %s: %w", path, err)
	}
	return e.Execute(ctx, string(content), path, args)
}

// Execute runs script to completion. args are exposed to the script as the global
// `arg` table. Output is flushed before Execute returns.
func (e *Engine) Execute(ctx context.Context, script, name string, args map[string]string) error {
	if strings.TrimSpace(script) == "" {
		return &ScriptError{Type: ErrorTypeAPI, Message: "empty script", Source: name}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == nil {
		return &ScriptError{Type: ErrorTypeAPI, Message: "engine is closed", Source: name}
	}

	e.ctx = ctx
	defer func() { e.ctx = context.Background() }()

	stop := e.out.start(ctx)
	defer stop()

	L := e.state
	e.setArgs(L, args)

	logger := e.logger.WithFields(logrus.Fields{"script": name, "script_size": len(script)})
	logger.Debug("Starting Lua script")

	if status := L.LoadString(script); status != 0 {
		return e.popError(L, ErrorTypeSyntax, name)
	}

	if err := L.Call(0, 0); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return &ScriptError{Type: ErrorTypeCancelled, Message: "script cancelled", Source: name, Err: ctxErr}
		}
		scriptErr := parseScriptError(ErrorTypeRuntime, name, err.Error())
		scriptErr.Err = err
		logger.WithError(scriptErr).Debug("Lua script failed")
		return scriptErr
	}

	logger.Debug("Lua script completed")
	return nil
}

func (e *Engine) setArgs(L *lua.State, args map[string]string) {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	L.NewTable()
	for _, k := range keys {
		L.PushString(k)
		L.PushString(args[k])
		L.SetTable(-3)
	}
	L.SetGlobal("arg")
}

func (e *Engine) popError(L *lua.State, errType ErrorType, source string) *ScriptError {
	msg := "unknown Lua error"
	if L.GetTop() > 0 {
		if L.IsString(-1) {
			msg = L.ToString(-1)
		} else {
			msg = "non-string error object"
		}
		L.Pop(1)
	}
	return parseScriptError(errType, source, msg)
}

// chunk location prefix, e.g. `[string "print(1"]:3: `
var locationRe = regexp.MustCompile(`^(?:\[string ".*"\]|[^:\s]+):(\d+):\s*`)

func parseScriptError(errType ErrorType, source, msg string) *ScriptError {
	first := strings.SplitN(msg, "\n", 2)[0]
	line := 0
	if m := locationRe.FindStringSubmatchIndex(first); m != nil {
		line, _ = strconv.Atoi(first[m[2]:m[3]])
		first = first[m[1]:]
	}
	return &ScriptError{Type: errType, Message: strings.TrimSpace(first), Line: line, Source: source}
}

func (e *Engine) registerPrint(L *lua.State) {
	L.PushGoFunction(func(L *lua.State) int {
		top := L.GetTop()
		parts := make([]string, 0, top)

		for i := 1; i <= top; i++ {
			switch {
			case L.IsNil(i):
				parts = append(parts, "nil")
			case L.IsBoolean(i):
				parts = append(parts, strconv.FormatBool(L.ToBoolean(i)))
			case L.Type(i) == lua.LUA_TNUMBER:
				parts = append(parts, formatNumber(L.ToNumber(i)))
			case L.IsString(i):
				parts = append(parts, L.ToString(i))
			default:
				// Tables, functions, threads and userdata go through Lua's tostring()
				L.GetGlobal("tostring")
				L.PushValue(i)
				L.Call(1, 1)
				parts = append(parts, L.ToString(-1))
				L.Pop(1)
			}
		}

		e.out.send("stdout", strings.Join(parts, "\t")+"\n")
		return 0
	})
	L.SetGlobal("print")
}

func formatNumber(n float64) string {
	if n == float64(int64(n)) {
		return strconv.FormatInt(int64(n), 10)
	}
	return strconv.FormatFloat(n, 'g', 14, 64)
}
