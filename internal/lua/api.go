package lua

import (
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sort"
	"time"

	"github.com/aarzilli/golua/lua"
	"github.com/sirupsen/logrus"
	"github.com/srg/blesh/internal/command"
)

// bleFunction maps a ble.<name> Lua function onto a dispatcher command.
// args reads the Lua call arguments into command args.
type bleFunction struct {
	name    string
	command string
	args    func(L *lua.State) command.Args
}

var bleFunctions = []bleFunction{
	{name: "init", command: "init"},
	{name: "scan", command: "scan", args: func(L *lua.State) command.Args {
		var a command.Args
		if L.Type(1) == lua.LUA_TNUMBER {
			secs := int64(L.ToInteger(1))
			a.TimeoutSecs = &secs
		}
		return a
	}},
	{name: "connect", command: "connect", args: func(L *lua.State) command.Args {
		return command.Args{DeviceID: optString(L, 1)}
	}},
	{name: "disconnect", command: "disconnect"},
	{name: "is_connected", command: "isConnected"},
	{name: "write", command: "write", args: func(L *lua.State) command.Args {
		var a command.Args
		if L.Type(1) == lua.LUA_TSTRING {
			data := L.ToString(1)
			a.Data = &data
		}
		a.CharUUID = optString(L, 2)
		return a
	}},
	{name: "read", command: "read", args: func(L *lua.State) command.Args {
		return command.Args{CharUUID: optString(L, 1)}
	}},
	{name: "characteristics", command: "listCharacteristics"},
	{name: "status", command: "status"},
}

func optString(L *lua.State, idx int) string {
	if L.Type(idx) == lua.LUA_TSTRING {
		return L.ToString(idx)
	}
	return ""
}

// registerBLE installs the global ble table. Every function returns (value, nil) on
// success and (nil, message) on failure, so scripts decide how to handle errors.
func (e *Engine) registerBLE(L *lua.State) {
	L.NewTable()

	for _, fn := range bleFunctions {
		c, ok := e.dispatcher.Lookup(fn.command)
		if !ok {
			panic(fmt.Sprintf("ble.%s: command %q is not registered", fn.name, fn.command))
		}

		fn := fn
		L.PushString(fn.name)
		L.PushGoFunction(e.safeWrap(fn.name, func(L *lua.State) int {
			var args command.Args
			if fn.args != nil {
				args = fn.args(L)
			}

			resp := e.dispatcher.Run(e.ctx, c, args)
			if !resp.OK {
				L.PushNil()
				L.PushString(resp.Error)
				return 2
			}

			if err := pushResult(L, resp.Result); err != nil {
				L.PushNil()
				L.PushString(err.Error())
				return 2
			}
			L.PushNil()
			return 2
		}))
		L.SetTable(-3)
	}

	L.PushString("sleep")
	L.PushGoFunction(e.safeWrap("sleep", func(L *lua.State) int {
		if L.Type(1) != lua.LUA_TNUMBER {
			L.RaiseError("sleep(milliseconds) expects a number argument")
			return 0
		}
		ms := L.ToInteger(1)
		if ms < 0 {
			L.RaiseError("sleep(milliseconds) expects a non-negative number")
			return 0
		}

		select {
		case <-time.After(time.Duration(ms) * time.Millisecond):
		case <-e.ctx.Done():
			L.RaiseError("script cancelled")
		}
		return 0
	}))
	L.SetTable(-3)

	L.SetGlobal("ble")
}

// safeWrap stops the script once its context is cancelled and turns a Go panic
// inside fn into a Lua error instead of tearing down the process.
func (e *Engine) safeWrap(name string, fn lua.LuaGoFunction) lua.LuaGoFunction {
	return func(L *lua.State) int {
		if err := e.ctx.Err(); err != nil {
			L.RaiseError(fmt.Sprintf("ble.%s: script cancelled", name))
			return 0
		}

		var panicked any
		ret := func() int {
			defer func() {
				if r := recover(); r != nil {
					if _, isLuaError := r.(*lua.LuaError); isLuaError {
						panic(r)
					}
					panicked = r
				}
			}()
			return fn(L)
		}()

		if panicked != nil {
			e.logger.WithFields(logrus.Fields{
				"function": "ble." + name,
				"panic":    panicked,
			}).Errorf("Go panic in Lua API function\n%s", debug.Stack())
			L.RaiseError(fmt.Sprintf("ble.%s: internal error: %v", name, panicked))
			return 0
		}
		return ret
	}
}

// pushResult pushes a command result as a Lua value. Results go through their JSON
// form so structs appear to scripts with the same field names as on the wire.
func pushResult(L *lua.State, result any) error {
	switch v := result.(type) {
	case nil:
		L.PushNil()
		return nil
	case string:
		L.PushString(v)
		return nil
	case bool:
		L.PushBoolean(v)
		return nil
	case int:
		L.PushInteger(int64(v))
		return nil
	}

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to convert result: %w", err)
	}
	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return fmt.Errorf("failed to convert result: %w", err)
	}
	pushValue(L, generic)
	return nil
}

func pushValue(L *lua.State, v any) {
	switch v := v.(type) {
	case nil:
		L.PushNil()
	case string:
		L.PushString(v)
	case bool:
		L.PushBoolean(v)
	case float64:
		if v == float64(int64(v)) {
			L.PushInteger(int64(v))
		} else {
			L.PushNumber(v)
		}
	case []any:
		L.NewTable()
		for i, item := range v {
			L.PushInteger(int64(i + 1))
			pushValue(L, item)
			L.SetTable(-3)
		}
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		L.NewTable()
		for _, k := range keys {
			L.PushString(k)
			pushValue(L, v[k])
			L.SetTable(-3)
		}
	default:
		L.PushString(fmt.Sprint(v))
	}
}
