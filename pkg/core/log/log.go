// Package log forwards script log calls to zap. Every OS thread logs through
// its own child logger carrying the thread identity, the same string
// thread.currentid() returns there.
package log

import (
	"strings"
	"sync"

	"github.com/joesonw/luamt/pkg/core"
	"github.com/joesonw/luamt/pkg/utils"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const ModuleName = "log"

var funcs = map[string]lua.LGFunction{
	"debug": logAt(zapcore.DebugLevel),
	"info":  logAt(zapcore.InfoLevel),
	"warn":  logAt(zapcore.WarnLevel),
	"error": logAt(zapcore.ErrorLevel),
	"fatal": logAt(zapcore.FatalLevel),
}

type lLogger struct {
	logger *zap.Logger
	// thread identity -> *zap.Logger
	threads sync.Map
}

// forCurrentThread returns the child logger of the calling OS thread. Ids
// are recycled by the kernel, so a recycled id shares the earlier child.
func (l *lLogger) forCurrentThread() *zap.Logger {
	id := core.CurrentThreadIdentity()
	if logger, ok := l.threads.Load(id); ok {
		return logger.(*zap.Logger)
	}
	logger, _ := l.threads.LoadOrStore(id, l.logger.With(zap.String("thread", id)))
	return logger.(*zap.Logger)
}

func checkLogger(L *lua.LState) *lLogger {
	if log, ok := core.Up(L).(*lLogger); ok {
		return log
	}
	L.RaiseError("log expected")
	return nil
}

func Open(L *lua.LState, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ud := core.UpValue(L, &lLogger{logger: logger.Named("lua")})
	utils.RegisterLuaGlobalModule(L, ModuleName, funcs, ud)
}

func logAt(level zapcore.Level) lua.LGFunction {
	return func(L *lua.LState) int {
		logger := checkLogger(L).forCurrentThread()
		if !logger.Core().Enabled(level) {
			return 0
		}
		msg, fields := message(L)
		if ce := logger.Check(level, msg); ce != nil {
			ce.Write(fields...)
		}
		return 0
	}
}

// message joins the arguments with spaces. A trailing table is not part of
// the message, its string keys become fields.
func message(L *lua.LState) (string, []zap.Field) {
	top := L.GetTop()
	var fields []zap.Field
	if tb, ok := L.Get(top).(*lua.LTable); ok && top > 1 {
		top--
		tb.ForEach(func(key, value lua.LValue) {
			if k, ok := key.(lua.LString); ok {
				fields = append(fields, field(string(k), value))
			}
		})
	}

	arr := make([]string, top)
	for i := 1; i <= top; i++ {
		arr[i-1] = L.Get(i).String()
	}
	return strings.Join(arr, " "), fields
}

func field(key string, value lua.LValue) zap.Field {
	switch v := value.(type) {
	case lua.LNumber:
		return zap.Float64(key, float64(v))
	case lua.LBool:
		return zap.Bool(key, bool(v))
	default:
		return zap.String(key, value.String())
	}
}
