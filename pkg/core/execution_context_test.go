package core

import (
	"runtime"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	lua "github.com/yuin/gopher-lua"
)

var _ = Describe("ExecutionContext", func() {
	It("should call on its own thread", func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		L := lua.NewState()
		defer L.Close()

		type result struct {
			id   string
			args []lua.LValue
		}
		ch := make(chan result, 1)
		co, cancel := L.NewThread()
		co.Push(co.NewFunction(func(L *lua.LState) int {
			r := result{id: CurrentThreadIdentity()}
			for i := 1; i <= L.GetTop(); i++ {
				r.args = append(r.args, L.Get(i))
			}
			ch <- r
			L.Push(lua.LNumber(42))
			return 1
		}))
		co.Push(lua.LNumber(1))
		co.Push(lua.LString("two"))

		ec := NewExecutionContext(co, cancel, nil, nil)
		ec.Start(2)
		ec.Start(2)
		ec.Wait()

		r := <-ch
		Expect(r.args).To(Equal([]lua.LValue{lua.LNumber(1), lua.LString("two")}))
		Expect(r.id).To(Equal(ec.ID()))
		Expect(r.id).NotTo(Equal(CurrentThreadIdentity()))
		Expect(ec.IsCurrent()).To(BeFalse())
		Expect(co.GetTop()).To(Equal(0))
		Eventually(ec.Done()).Should(BeClosed())
	})

	It("should know the thread it runs on", func() {
		L := lua.NewState()
		defer L.Close()

		ch := make(chan bool, 1)
		var ec *ExecutionContext
		co, cancel := L.NewThread()
		co.Push(co.NewFunction(func(L *lua.LState) int {
			ch <- ec.IsCurrent()
			return 0
		}))
		ec = NewExecutionContext(co, cancel, nil, nil)
		ec.Start(0)
		ec.Wait()
		Expect(<-ch).To(BeTrue())
	})

	It("should hand errors to the handler", func() {
		L := lua.NewState()
		defer L.Close()

		ch := make(chan string, 1)
		co, cancel := L.NewThread()
		handler := co.NewFunction(func(L *lua.LState) int {
			ch <- L.Get(1).String()
			return 1
		})
		co.Push(co.NewFunction(func(L *lua.LState) int {
			L.RaiseError("from lua")
			return 0
		}))
		ec := NewExecutionContext(co, cancel, handler, nil)
		ec.Start(0)
		ec.Wait()
		Expect(<-ch).To(ContainSubstring("from lua"))
	})
})
