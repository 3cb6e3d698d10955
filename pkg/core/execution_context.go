package core

import (
	"context"
	"runtime"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// ExecutionContext is a sibling lua state together with the OS thread that
// drives it. Nothing but that thread ever touches L once Start was called.
type ExecutionContext struct {
	L       *lua.LState
	cancel  context.CancelFunc
	handler *lua.LFunction
	logger  *zap.Logger
	tid     *atomic.Int64
	started *atomic.Bool
	ready   chan struct{}
	done    chan struct{}
}

func NewExecutionContext(L *lua.LState, cancel context.CancelFunc, handler *lua.LFunction, logger *zap.Logger) *ExecutionContext {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExecutionContext{
		L:       L,
		cancel:  cancel,
		handler: handler,
		logger:  logger,
		tid:     atomic.NewInt64(0),
		started: atomic.NewBool(false),
		ready:   make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start calls the function at stack index 1 with the nargs values above it on
// a new OS thread. Results are dropped. It does nothing on a second call.
func (ec *ExecutionContext) Start(nargs int) {
	if !ec.started.CAS(false, true) {
		return
	}
	go ec.run(nargs)
}

func (ec *ExecutionContext) run(nargs int) {
	// never unlocked: the OS thread exits together with this goroutine
	runtime.LockOSThread()
	ec.tid.Store(CurrentThreadID())
	close(ec.ready)
	defer close(ec.done)
	defer func() {
		if ec.cancel != nil {
			ec.cancel()
		}
	}()

	if err := ec.L.PCall(nargs, lua.MultRet, ec.handler); err != nil {
		ec.logger.Debug("thread body failed", zap.String("id", ec.ID()), zap.Error(err))
	}
	ec.L.SetTop(0)
}

// ID is the identity of the driving OS thread, it blocks until the thread
// has started.
func (ec *ExecutionContext) ID() string {
	<-ec.ready
	return ThreadIdentity(ec.tid.Load())
}

// IsCurrent reports whether the caller runs on the driving OS thread.
func (ec *ExecutionContext) IsCurrent() bool {
	<-ec.ready
	select {
	case <-ec.done:
		// the OS may already hand the id of a finished thread to another one
		return false
	default:
	}
	return ec.tid.Load() == CurrentThreadID()
}

// Wait blocks until the thread body returned.
func (ec *ExecutionContext) Wait() {
	<-ec.done
}

func (ec *ExecutionContext) Done() <-chan struct{} {
	return ec.done
}
