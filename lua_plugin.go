// lua_plugin.go: Plugins implemented as isolated Lua artifacts
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package textreplacer

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// DefaultLuaCallTimeout bounds lifecycle and command calls into a Lua plugin.
// Requests use the resolver's per-call deadline instead.
const DefaultLuaCallTimeout = 5 * time.Second

// LuaPlugin adapts a Lua artifact to the Plugin contract.
//
// Each artifact runs in its own interpreter state, so two artifacts may
// define identically named locals or globals without interfering. The
// artifact chunk must return a constructor function. The constructor is
// called once with a logging table and must return the plugin table:
//
//	return function(log)
//	  return {
//	    identifier = "weather",
//	    name = "Weather", author = "me", version = "1.0.0",
//	    refresh_interval = 60,
//	    enable = function(dir) return true end,
//	    disable = function() end,
//	    on_request = function(arg) return "sunny" end,
//	    commands = { weather = function(args) log.info("args: " .. #args) end },
//	  }
//	end
//
// An interpreter state is not safe for concurrent use; every call into it
// holds mu.
type LuaPlugin struct {
	path        string
	logger      Logger
	callTimeout time.Duration

	mu     sync.Mutex
	L      *lua.LState
	table  *lua.LTable
	closed bool

	identifier string
	name       string
	author     string
	version    string
	refresh    int64
}

// LoadLuaPlugin loads the artifact at path and instantiates its plugin.
func LoadLuaPlugin(path string, logger Logger, callTimeout time.Duration) (*LuaPlugin, error) {
	if callTimeout <= 0 {
		callTimeout = DefaultLuaCallTimeout
	}
	logger = NewLogger(logger)

	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	openSafeLibraries(L)

	p := &LuaPlugin{
		path:        path,
		logger:      logger,
		callTimeout: callTimeout,
		L:           L,
	}

	ctor, err := L.LoadFile(path)
	if err != nil {
		L.Close()
		return nil, NewArtifactUnreadableError(path, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	L.SetContext(ctx)
	defer L.RemoveContext()

	constructor, err := p.callLocked(ctor)
	if err != nil {
		L.Close()
		return nil, NewArtifactUnreadableError(path, err)
	}
	fn, ok := constructor.(*lua.LFunction)
	if !ok {
		L.Close()
		return nil, NewCandidateInvalidError(path, "artifact must return a constructor function")
	}

	instance, err := p.callLocked(fn, p.logTable())
	if err != nil {
		L.Close()
		return nil, NewCandidateInvalidError(path, "constructor failed: "+err.Error())
	}
	table, ok := instance.(*lua.LTable)
	if !ok {
		L.Close()
		return nil, NewCandidateInvalidError(path, "constructor must return a table")
	}
	p.table = table

	if err := p.readMetadata(); err != nil {
		L.Close()
		return nil, err
	}
	return p, nil
}

// openSafeLibraries opens only the Lua standard libraries without
// filesystem or process access.
func openSafeLibraries(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
}

func (p *LuaPlugin) readMetadata() error {
	id, ok := p.table.RawGetString("identifier").(lua.LString)
	if !ok || string(id) == "" {
		return NewCandidateInvalidError(p.path, "missing string field 'identifier'")
	}
	if _, ok := p.table.RawGetString("on_request").(*lua.LFunction); !ok {
		return NewCandidateInvalidError(p.path, "missing function field 'on_request'")
	}

	p.identifier = string(id)
	p.name = p.stringField("name", p.identifier)
	p.author = p.stringField("author", "unknown")
	p.version = p.stringField("version", "0.0.0")
	if n, ok := p.table.RawGetString("refresh_interval").(lua.LNumber); ok {
		p.refresh = int64(n)
	}
	return nil
}

func (p *LuaPlugin) stringField(key, fallback string) string {
	if s, ok := p.table.RawGetString(key).(lua.LString); ok && s != "" {
		return string(s)
	}
	return fallback
}

func (p *LuaPlugin) Name() string                  { return p.name }
func (p *LuaPlugin) Author() string                { return p.author }
func (p *LuaPlugin) Version() string               { return p.version }
func (p *LuaPlugin) Identifier() string            { return p.identifier }
func (p *LuaPlugin) RefreshIntervalSeconds() int64 { return p.refresh }

// Path returns the artifact the plugin was loaded from.
func (p *LuaPlugin) Path() string { return p.path }

// Enable calls the optional enable hook. A hook that returns false or raises
// an error fails the enable.
func (p *LuaPlugin) Enable(dataDirectory string) error {
	ret, called, err := p.callHook("enable", lua.LString(dataDirectory))
	if err != nil {
		return err
	}
	if called && ret == lua.LFalse {
		return fmt.Errorf("enable hook returned false")
	}
	return nil
}

// Disable calls the optional disable hook and releases the interpreter.
func (p *LuaPlugin) Disable() error {
	_, _, err := p.callHook("disable")
	if cerr := p.Close(); err == nil {
		err = cerr
	}
	return err
}

// Close releases the interpreter without calling any hook.
func (p *LuaPlugin) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		p.L.Close()
	}
	return nil
}

// OnRequest calls on_request(argument). nil, false and non-scalar results
// mean "no value".
func (p *LuaPlugin) OnRequest(ctx context.Context, argument string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return "", false
	}

	fn, ok := p.table.RawGetString("on_request").(*lua.LFunction)
	if !ok {
		return "", false
	}

	p.L.SetContext(ctx)
	defer p.L.RemoveContext()

	ret, err := p.callLocked(fn, lua.LString(argument))
	if err != nil {
		p.logger.Warn("Lua request failed", "plugin", p.identifier, "error", err)
		return "", false
	}

	switch v := ret.(type) {
	case lua.LString:
		return string(v), true
	case lua.LNumber:
		return v.String(), true
	case lua.LBool:
		if bool(v) {
			return "true", true
		}
		return "", false
	default:
		return "", false
	}
}

// Commands returns the functions of the optional commands table.
func (p *LuaPlugin) Commands() map[string]Command {
	p.mu.Lock()
	defer p.mu.Unlock()

	tbl, ok := p.table.RawGetString("commands").(*lua.LTable)
	if !ok {
		return nil
	}

	commands := make(map[string]Command)
	tbl.ForEach(func(k, v lua.LValue) {
		name, isString := k.(lua.LString)
		fn, isFunc := v.(*lua.LFunction)
		if !isString || !isFunc {
			return
		}
		commands[string(name)] = CommandFunc(func(args []string) {
			p.runCommand(string(name), fn, args)
		})
	})
	return commands
}

func (p *LuaPlugin) runCommand(name string, fn *lua.LFunction, args []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}

	argv := p.L.NewTable()
	for _, a := range args {
		argv.Append(lua.LString(a))
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.callTimeout)
	defer cancel()
	p.L.SetContext(ctx)
	defer p.L.RemoveContext()

	if _, err := p.callLocked(fn, argv); err != nil {
		p.logger.Warn("Lua command failed", "plugin", p.identifier, "command", name, "error", err)
	}
}

// callHook calls an optional function field of the plugin table.
func (p *LuaPlugin) callHook(field string, args ...lua.LValue) (lua.LValue, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return lua.LNil, false, nil
	}

	fn, ok := p.table.RawGetString(field).(*lua.LFunction)
	if !ok {
		return lua.LNil, false, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.callTimeout)
	defer cancel()
	p.L.SetContext(ctx)
	defer p.L.RemoveContext()

	ret, err := p.callLocked(fn, args...)
	return ret, true, err
}

// callLocked calls fn with one return value. The caller holds mu.
func (p *LuaPlugin) callLocked(fn *lua.LFunction, args ...lua.LValue) (ret lua.LValue, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()

	if err := p.L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, args...); err != nil {
		return lua.LNil, err
	}
	ret = p.L.Get(-1)
	p.L.Pop(1)
	return ret, nil
}

// logTable builds the logging table handed to the constructor. Each function
// takes a message followed by optional key-value pairs.
func (p *LuaPlugin) logTable() *lua.LTable {
	logger := p.logger
	levels := map[string]func(string, ...any){
		"debug": logger.Debug,
		"info":  logger.Info,
		"warn":  logger.Warn,
		"error": logger.Error,
	}

	funcs := make(map[string]lua.LGFunction, len(levels))
	for name, logFn := range levels {
		logFn := logFn
		funcs[name] = func(L *lua.LState) int {
			msg := L.CheckString(1)
			var args []any
			for i := 2; i <= L.GetTop(); i++ {
				args = append(args, luaToGo(L.Get(i)))
			}
			logFn(msg, args...)
			return 0
		}
	}
	return p.L.SetFuncs(p.L.NewTable(), funcs)
}

func luaToGo(v lua.LValue) any {
	switch val := v.(type) {
	case lua.LString:
		return string(val)
	case lua.LNumber:
		return float64(val)
	case lua.LBool:
		return bool(val)
	case *lua.LNilType:
		return nil
	default:
		return strings.TrimSpace(v.String())
	}
}
