package utils

import (
	lua "github.com/yuin/gopher-lua"
)

// RegisterLuaModule installs funcs as module name in package.loaded, each
// function bound to upvalues. An already loaded table is extended.
func RegisterLuaModule(L *lua.LState, name string, funcs map[string]lua.LGFunction, upvalues ...lua.LValue) *lua.LTable {
	tb := L.FindTable(L.Get(lua.RegistryIndex).(*lua.LTable), "_LOADED", 1)
	mod := L.GetField(tb, name)
	modtb, ok := mod.(*lua.LTable)
	if !ok {
		newmod := L.FindTable(tb.(*lua.LTable), name, len(funcs))
		if modtb, ok = newmod.(*lua.LTable); !ok {
			L.RaiseError("name conflict for module(%v)", name)
			return nil
		}
		L.SetField(tb, name, modtb)
	}
	for fname, fn := range funcs {
		modtb.RawSetString(fname, L.NewClosure(fn, upvalues...))
	}
	return modtb
}

// RegisterLuaGlobalModule is RegisterLuaModule that also sets the global
// name, the way the standard libraries are opened.
func RegisterLuaGlobalModule(L *lua.LState, name string, funcs map[string]lua.LGFunction, upvalues ...lua.LValue) *lua.LTable {
	mod := RegisterLuaModule(L, name, funcs, upvalues...)
	L.SetGlobal(name, mod)
	return mod
}

func RegisterGlobalFuncs(L *lua.LState, funcs map[string]lua.LGFunction, upvalues ...lua.LValue) {
	for name, f := range funcs {
		L.SetGlobal(name, L.NewClosure(f, upvalues...))
	}
}

// NewTypeMetatable creates the metatable registered as name, its __index
// is a table with methods bound to upvalues. Values in meta are copied as
// metamethods.
func NewTypeMetatable(L *lua.LState, name string, methods, meta map[string]lua.LGFunction, upvalues ...lua.LValue) *lua.LTable {
	mt := L.NewTypeMetatable(name)
	index := L.NewTable()
	for fname, fn := range methods {
		index.RawSetString(fname, L.NewClosure(fn, upvalues...))
	}
	mt.RawSetString("__index", index)
	mt.RawSetString("__name", lua.LString(name))
	for fname, fn := range meta {
		mt.RawSetString(fname, L.NewClosure(fn, upvalues...))
	}
	return mt
}
