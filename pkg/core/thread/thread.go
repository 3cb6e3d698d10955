// Package thread lets scripts run functions on their own OS threads.
//
// Every thread.new call creates a sibling lua state sharing globals and the
// registry with its parent, copies the function and its arguments into it
// through the registry, and drives it from a goroutine locked to a fresh OS
// thread. The returned handle is joined explicitly with join(), or by a
// finalizer once the handle is garbage.
package thread

import (
	"runtime"
	"sync"
	"time"

	"github.com/joesonw/luamt/pkg/core"
	"github.com/joesonw/luamt/pkg/core/fatal"
	"github.com/joesonw/luamt/pkg/core/registry"
	"github.com/joesonw/luamt/pkg/utils"
	uuid "github.com/satori/go.uuid"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

const (
	ModuleName = "thread"
	TypeName   = "thread.Thread"

	errJoined  = "thread already joined"
	errCurrent = "thread must not be the current thread"
	errHandle  = "thread expected"
)

// launchMu makes the registry handoff of concurrent launches atomic, it is
// never held while a thread body runs.
var launchMu sync.Mutex

type Library struct {
	logger *zap.Logger
	policy *fatal.Policy
	meta   *lua.LTable
	pool   *core.ResourcePool
}

var funcs = map[string]lua.LGFunction{
	"new":       lNew,
	"sleep":     lSleep,
	"currentid": lCurrentID,
}

var methods = map[string]lua.LGFunction{
	"join": threadJoin,
	"id":   threadID,
}

var metamethods = map[string]lua.LGFunction{
	"__tostring": threadToString,
}

// Open registers the thread library on L, which must be a root state that
// has no siblings yet. The registry handoff table is opened as well.
func Open(L *lua.LState, logger *zap.Logger, policy *fatal.Policy) *Library {
	if logger == nil {
		logger = zap.NewNop()
	}
	if policy == nil {
		policy = fatal.New(logger)
	}
	registry.Open(L)
	lib := &Library{
		logger: logger.Named("thread"),
		policy: policy,
		pool:   core.NewResourcePool(),
	}
	uv := core.UpValue(L, lib)
	lib.meta = utils.NewTypeMetatable(L, TypeName, methods, metamethods, uv)
	utils.RegisterLuaGlobalModule(L, ModuleName, funcs, uv)
	return lib
}

// Pending is the number of threads that were not joined yet.
func (lib *Library) Pending() int {
	return lib.pool.Len()
}

// WaitAll blocks until every thread that was not joined has finished,
// including threads started while it waits. Handles stay joinable, so
// threads still joining each other are not disturbed.
func (lib *Library) WaitAll() {
	for {
		waited := false
		lib.pool.ForEach(func(res core.Resource) {
			th := res.(*Thread)
			select {
			case <-th.ec.Done():
			default:
				th.ec.Wait()
				waited = true
			}
		})
		if !waited {
			return
		}
	}
}

func checkLibrary(L *lua.LState) *Library {
	if lib, ok := core.Up(L).(*Library); ok {
		return lib
	}
	L.RaiseError("expected thread library")
	return nil
}

// Thread is the value behind a thread handle. It is released, and the handle
// becomes unusable, by the first successful join.
type Thread struct {
	core.Resource
	ec     *core.ExecutionContext
	logger *zap.Logger
}

func (lib *Library) newThread(ec *core.ExecutionContext) *Thread {
	name := uuid.NewV4().String()
	th := &Thread{
		ec:     ec,
		logger: lib.logger.With(zap.String("name", name)),
	}
	th.Resource = core.NewResource(name, ec.Wait, func() {
		th.logger.Debug("thread joined")
	})
	return th
}

// finalize joins the thread unless it is gone already or the finalizer runs
// on the thread itself.
func (th *Thread) finalize() {
	if th.Released() || th.ec.IsCurrent() {
		return
	}
	th.Release()
}

func checkThread(L *lua.LState, n int) *Thread {
	ud := L.CheckUserData(n)
	if th, ok := ud.Value.(*Thread); ok {
		return th
	}
	L.ArgError(n, errHandle)
	return nil
}

// checkBound raises unless th can be joined by the caller.
func checkBound(L *lua.LState, th *Thread) {
	if th.Released() {
		L.ArgError(1, errJoined)
	}
	if th.ec.IsCurrent() {
		L.ArgError(1, errCurrent)
	}
}

func lNew(L *lua.LState) int {
	lib := checkLibrary(L)
	launchMu.Lock()
	defer launchMu.Unlock()

	L.CheckFunction(1)
	n := L.GetTop()
	co, cancel := L.NewThread()
	registry.Transfer(L, co, 1, n)
	ec := core.NewExecutionContext(co, cancel, lib.policy.Handler(co), lib.logger)

	th := lib.newThread(ec)
	ud := L.NewUserData()
	ud.Value = th
	L.SetMetatable(ud, lib.meta)

	lib.pool.Insert(th)
	ec.Start(n - 1)
	th.logger.Debug("thread started", zap.Int("args", n-1))

	runtime.SetFinalizer(ud, func(*lua.LUserData) {
		// joining may block, keep the runtime's finalizer goroutine free
		go th.finalize()
	})
	L.Push(ud)
	return 1
}

// Duration converts seconds to a delay, fractions of a millisecond are
// dropped.
func Duration(seconds float64) time.Duration {
	return time.Duration(int64(seconds*1000)) * time.Millisecond
}

func lSleep(L *lua.LState) int {
	time.Sleep(Duration(float64(L.CheckNumber(1))))
	return 0
}

func lCurrentID(L *lua.LState) int {
	L.Push(lua.LString(core.CurrentThreadIdentity()))
	return 1
}

func threadJoin(L *lua.LState) int {
	th := checkThread(L, 1)
	checkBound(L, th)
	if !th.Release() {
		L.ArgError(1, errJoined)
	}
	return 0
}

func threadID(L *lua.LState) int {
	th := checkThread(L, 1)
	checkBound(L, th)
	L.Push(lua.LString(th.ec.ID()))
	return 1
}

func threadToString(L *lua.LState) int {
	th := checkThread(L, 1)
	if th.Released() {
		L.Push(lua.LString("thread: joined"))
	} else {
		L.Push(lua.LString("thread: " + th.ec.ID()))
	}
	return 1
}
