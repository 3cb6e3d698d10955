// Package fatal is the process wide handler for errors no script caught.
//
// A thread that raised cannot hand its error back to whoever spawned it, and
// the other threads keep sharing the engine's global state, so any uncaught
// error dumps what it can about the failing context and ends the process.
package fatal

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

const ExitCode = 1

type Policy struct {
	Out    io.Writer
	Exit   func(code int)
	Logger *zap.Logger

	mu sync.Mutex
}

func New(logger *zap.Logger) *Policy {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Policy{
		Out:    os.Stderr,
		Exit:   os.Exit,
		Logger: logger,
	}
}

// Handler returns the function to pass as the error handler of a protected
// call made on L.
func (p *Policy) Handler(L *lua.LState) *lua.LFunction {
	return L.NewFunction(p.handle)
}

func (p *Policy) handle(L *lua.LState) int {
	value := L.Get(1)
	p.report(L, value.String(), true)
	// only reached when Exit returns, leave the error value as the result
	L.SetTop(1)
	return 1
}

// Fail reports err, raised outside of any protected call, like an uncaught
// script error.
func (p *Policy) Fail(L *lua.LState, err error) {
	msg := err.Error()
	if apiErr, ok := err.(*lua.ApiError); ok && apiErr.Object != nil {
		msg = apiErr.Object.String()
	}
	p.report(L, msg, false)
}

func (p *Policy) report(L *lua.LState, msg string, traceback bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var b strings.Builder
	fmt.Fprintf(&b, "Caught an error: %s\n", msg)
	DumpStack(L, &b)
	if traceback {
		Traceback(L, &b, 1)
	}
	_, _ = io.WriteString(p.Out, b.String())

	p.Logger.Error("unhandled lua error", zap.String("error", msg))
	_ = p.Logger.Sync()
	p.Exit(ExitCode)
}

// DumpStack writes the values visible on the current frame of L, top first.
func DumpStack(L *lua.LState, w io.Writer) {
	fmt.Fprintln(w, "Lua stack contents:")
	for i := L.GetTop(); i >= 1; i-- {
		value := L.Get(i)
		fmt.Fprintf(w, "  %d\t%s\t%s\n", i, value.Type().String(), value.String())
	}
	fmt.Fprintln(w, "(stack dump completed)")
}

// Traceback writes the call frames of L starting at level, each lua frame
// followed by its locals.
func Traceback(L *lua.LState, w io.Writer, level int) {
	fmt.Fprintln(w, "Stack trace:")
	for ; ; level++ {
		dbg, ok := L.GetStack(level)
		if !ok {
			break
		}
		if _, err := L.GetInfo("Sln", dbg, lua.LNil); err != nil {
			break
		}
		where := dbg.Source
		if dbg.CurrentLine > 0 {
			where = fmt.Sprintf("%s:%d", dbg.Source, dbg.CurrentLine)
		}
		fmt.Fprintf(w, "\t%s: in %s\n", where, frameName(dbg))
		if dbg.What != "G" {
			dumpLocals(L, w, dbg)
		}
	}
}

// dumpLocals writes the named locals active in a lua frame.
func dumpLocals(L *lua.LState, w io.Writer, dbg *lua.Debug) {
	for i := 1; ; i++ {
		name, value := L.GetLocal(dbg, i)
		if name == "" {
			return
		}
		if strings.HasPrefix(name, "(") {
			continue
		}
		fmt.Fprintf(w, "\t\tlocal %s\t%s\t%s\n", name, value.Type().String(), value.String())
	}
}

func frameName(dbg *lua.Debug) string {
	switch {
	case dbg.Name != "":
		return fmt.Sprintf("function '%s'", dbg.Name)
	case dbg.What == "main":
		return "main chunk"
	case dbg.What == "G":
		return "?"
	default:
		return fmt.Sprintf("function <%s:%d>", dbg.Source, dbg.LineDefined)
	}
}
