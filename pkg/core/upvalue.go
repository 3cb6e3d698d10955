package core

import lua "github.com/yuin/gopher-lua"

// UpValue wraps library state so it can be bound as the first upvalue of the
// library's functions.
func UpValue(L *lua.LState, value interface{}) *lua.LUserData {
	ud := L.NewUserData()
	ud.Value = value
	return ud
}

// Up returns the state bound by UpValue, raising if there is none.
func Up(L *lua.LState) interface{} {
	if uv, ok := L.Get(lua.UpvalueIndex(1)).(*lua.LUserData); ok {
		return uv.Value
	}

	L.RaiseError("expected library state as upvalue")
	return nil
}
