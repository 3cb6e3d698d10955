// Package mutex gives scripts a lock that works across threads. A handle
// reaches other threads as a thread.new argument.
package mutex

import (
	"fmt"
	"sync"

	"github.com/joesonw/luamt/pkg/core"
	"github.com/joesonw/luamt/pkg/utils"
	lua "github.com/yuin/gopher-lua"
)

const (
	ModuleName = "mutex"
	TypeName   = "mutex.Mutex"
)

type lMutex struct {
	meta *lua.LTable
}

// Mutex is the value behind a mutex handle. Unlocking a mutex that is not
// locked is fatal, same as for sync.Mutex.
type Mutex struct {
	mu sync.Mutex
}

var funcs = map[string]lua.LGFunction{
	"new": lNew,
}

var methods = map[string]lua.LGFunction{
	"lock":          mutexLock,
	"unlock":        mutexUnlock,
	"dowhilelocked": mutexDoWhileLocked,
}

var metamethods = map[string]lua.LGFunction{
	"__tostring": mutexToString,
}

func Open(L *lua.LState) {
	lib := &lMutex{}
	ud := core.UpValue(L, lib)
	lib.meta = utils.NewTypeMetatable(L, TypeName, methods, metamethods, ud)
	utils.RegisterLuaGlobalModule(L, ModuleName, funcs, ud)
}

func checkLib(L *lua.LState) *lMutex {
	if lib, ok := core.Up(L).(*lMutex); ok {
		return lib
	}

	L.RaiseError("expected mutex library")
	return nil
}

func checkMutex(L *lua.LState) *Mutex {
	ud := L.CheckUserData(1)
	if m, ok := ud.Value.(*Mutex); ok {
		return m
	}
	L.ArgError(1, "mutex expected")
	return nil
}

func lNew(L *lua.LState) int {
	lib := checkLib(L)
	ud := L.NewUserData()
	ud.Value = &Mutex{}
	L.SetMetatable(ud, lib.meta)
	L.Push(ud)
	return 1
}

func (m *Mutex) Lock() {
	m.mu.Lock()
}

func (m *Mutex) Unlock() {
	m.mu.Unlock()
}

func mutexLock(L *lua.LState) int {
	checkMutex(L).Lock()
	return 0
}

func mutexUnlock(L *lua.LState) int {
	checkMutex(L).Unlock()
	return 0
}

// mutexDoWhileLocked calls fn(...) with the mutex held. The mutex is
// released before an error raised by fn is passed on.
func mutexDoWhileLocked(L *lua.LState) int {
	m := checkMutex(L)
	L.CheckFunction(2)
	nargs := L.GetTop() - 2

	if err := m.do(func() error {
		return L.PCall(nargs, 0, nil)
	}); err != nil {
		if apiErr, ok := err.(*lua.ApiError); ok {
			L.Error(apiErr.Object, 0)
		}
		L.RaiseError("%s", err.Error())
	}
	return 0
}

func (m *Mutex) do(fn func() error) error {
	m.Lock()
	defer m.Unlock()
	return fn()
}

func mutexToString(L *lua.LState) int {
	m := checkMutex(L)
	L.Push(lua.LString(fmt.Sprintf("mutex: %p", m)))
	return 1
}
