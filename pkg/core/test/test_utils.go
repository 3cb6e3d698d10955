package test

import (
	"bytes"
	"runtime"

	"github.com/joesonw/luamt/pkg/core/fatal"
	. "github.com/onsi/gomega"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// SyncWithError runs src on a new root state. The calling goroutine stays on
// its OS thread meanwhile, the way the host runs its root state.
func SyncWithError(src string, open func(L *lua.LState), after ...func(L *lua.LState)) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	L := lua.NewState(lua.Options{})
	defer L.Close()
	open(L)

	if err := L.DoString(src); err != nil {
		return err
	}

	for _, a := range after {
		a(L)
	}
	return nil
}

func Sync(src string, open func(L *lua.LState), after ...func(L *lua.LState)) {
	err := SyncWithError(src, open, after...)
	Expect(err).To(BeNil())
}

// Exits records what the fatal policy would have done instead of ending the
// test binary.
type Exits struct {
	Codes chan int
	out   bytes.Buffer
}

// Output is only safe to read after a code was received.
func (e *Exits) Output() string {
	return e.out.String()
}

func Policy() (*fatal.Policy, *Exits) {
	exits := &Exits{Codes: make(chan int, 16)}
	policy := fatal.New(zap.NewNop())
	policy.Out = &exits.out
	policy.Exit = func(code int) {
		exits.Codes <- code
	}
	return policy, exits
}
