package global

import (
	"path/filepath"

	"github.com/joesonw/luamt/pkg/utils"
	uuid "github.com/satori/go.uuid"
	lua "github.com/yuin/gopher-lua"
)

// Env is what the process was started with.
type Env struct {
	Program string
	Script  string
	Args    []string
}

// Open sets the script globals: arg, __dirname__ and uuid(). arg[0] is the
// script and arg[1..] its arguments, arg[-1] the program.
func Open(L *lua.LState, env Env) {
	args := L.CreateTable(len(env.Args), 2)
	args.RawSetInt(-1, lua.LString(env.Program))
	args.RawSetInt(0, lua.LString(env.Script))
	for i, arg := range env.Args {
		args.RawSetInt(i+1, lua.LString(arg))
	}
	L.SetGlobal("arg", args)

	dirname := ""
	if env.Script != "" {
		dirname = filepath.Dir(env.Script)
	}
	L.SetGlobal("__dirname__", lua.LString(dirname))

	utils.RegisterGlobalFuncs(L, map[string]lua.LGFunction{
		"uuid": lUUID,
	})
}

func lUUID(L *lua.LState) int {
	L.Push(lua.LString(uuid.NewV4().String()))
	return 1
}
