// Package registry moves values between execution contexts through the engine
// registry. Contexts created by NewThread share the registry with their root
// but not their stacks, so a value is staged in the registry by the source
// context and picked up by the destination one.
package registry

import (
	lua "github.com/yuin/gopher-lua"
)

const (
	// HandoffKey is the registry field holding the staging table.
	HandoffKey = "_HANDOFF"

	// RefNil is returned by Ref for nil values, nothing is staged for it.
	RefNil = -1
	// NoRef never names a staged value.
	NoRef = -2

	freeListIndex = 0
)

// the free list head lives at key 0, which is never part of the array
func freeHead(tb *lua.LTable) lua.LValue {
	return tb.RawGetH(lua.LNumber(freeListIndex))
}

func setFreeHead(tb *lua.LTable, value lua.LValue) {
	tb.RawSetH(lua.LNumber(freeListIndex), value)
}

// Open creates the staging table. It writes to the shared registry and must
// run before any sibling context is started.
func Open(L *lua.LState) {
	reg := L.Get(lua.RegistryIndex).(*lua.LTable)
	if _, ok := reg.RawGetString(HandoffKey).(*lua.LTable); ok {
		return
	}
	reg.RawSetString(HandoffKey, L.NewTable())
}

func handoff(L *lua.LState) *lua.LTable {
	reg := L.Get(lua.RegistryIndex).(*lua.LTable)
	tb, ok := reg.RawGetString(HandoffKey).(*lua.LTable)
	if !ok {
		L.RaiseError("registry: handoff table is not opened")
	}
	return tb
}

// Ref pops the value on top of the stack of L and stages it under a fresh key.
func Ref(L *lua.LState) int {
	value := L.Get(-1)
	L.Pop(1)
	if value == lua.LNil {
		return RefNil
	}

	tb := handoff(L)
	ref := 0
	if free, ok := freeHead(tb).(lua.LNumber); ok && free > 0 {
		ref = int(free)
		setFreeHead(tb, tb.RawGetInt(ref))
	} else {
		ref = tb.Len() + 1
	}
	tb.RawSetInt(ref, value)
	return ref
}

// Fetch returns the value staged under ref.
func Fetch(L *lua.LState, ref int) lua.LValue {
	if ref <= 0 {
		return lua.LNil
	}
	return handoff(L).RawGetInt(ref)
}

// Unref releases ref, its key is reused by a later Ref.
func Unref(L *lua.LState, ref int) {
	if ref <= 0 {
		return
	}
	tb := handoff(L)
	next := freeHead(tb)
	if next == lua.LNil {
		next = lua.LNumber(0)
	}
	tb.RawSetInt(ref, next)
	setFreeHead(tb, lua.LNumber(ref))
}

// Pending counts the values currently staged.
func Pending(L *lua.LState) int {
	tb := handoff(L)
	free := 0
	for next, ok := freeHead(tb).(lua.LNumber); ok && next > 0; next, ok = tb.RawGetInt(int(next)).(lua.LNumber) {
		free++
	}
	return tb.Len() - free
}

// Transfer pushes onto dst the n values found on src starting at base, in
// the same order. Tables, functions and userdata end up shared by both
// contexts, nothing guards concurrent access to them.
func Transfer(src, dst *lua.LState, base, n int) {
	for i := 0; i < n; i++ {
		transferOne(src, dst, base+i)
	}
}

func transferOne(src, dst *lua.LState, index int) {
	src.Push(src.Get(index))
	ref := Ref(src)
	defer Unref(src, ref)
	dst.Push(Fetch(dst, ref))
}
