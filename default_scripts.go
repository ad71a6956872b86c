package blesh

import _ "embed"

// DefaultInspectLuaScript contains the embedded inspect.lua script used by `blesh inspect`
//
//go:embed examples/inspect.lua
var DefaultInspectLuaScript string
