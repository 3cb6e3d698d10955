package log

import (
	"runtime"
	"testing"

	"github.com/joesonw/luamt/pkg/core"
	"github.com/joesonw/luamt/pkg/core/test"
	"github.com/joesonw/luamt/pkg/core/thread"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func Test(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "core/log")
}

var _ = Describe("log", func() {
	It("should log with the calling thread", func() {
		observed, logs := observer.New(zapcore.DebugLevel)
		var root string
		test.Sync(`
			log.info("from", "root", 1)
			thread.new(function()
				log.warn("from thread")
			end):join()
			log.debug(nil)
		`, func(L *lua.LState) {
			root = core.CurrentThreadIdentity()
			policy, _ := test.Policy()
			thread.Open(L, nil, policy)
			Open(L, zap.New(observed))
		})

		entries := logs.AllUntimed()
		Expect(entries).To(HaveLen(3))

		Expect(entries[0].Message).To(Equal("from root 1"))
		Expect(entries[0].Level).To(Equal(zapcore.InfoLevel))
		Expect(entries[0].LoggerName).To(Equal("lua"))
		Expect(entries[0].ContextMap()["thread"]).To(Equal(root))

		Expect(entries[1].Message).To(Equal("from thread"))
		Expect(entries[1].Level).To(Equal(zapcore.WarnLevel))
		Expect(entries[1].ContextMap()["thread"]).NotTo(Equal(root))

		Expect(entries[2].Message).To(Equal("nil"))
	})

	It("should turn a trailing table into fields", func() {
		observed, logs := observer.New(zapcore.InfoLevel)
		test.Sync(`
			log.info("launched", 2, {count = 3, ok = true, name = "worker", [1] = "skipped"})
			log.debug("hidden", {count = 1})
		`, func(L *lua.LState) {
			Open(L, zap.New(observed))
		})

		entries := logs.AllUntimed()
		Expect(entries).To(HaveLen(1))
		Expect(entries[0].Message).To(Equal("launched 2"))
		fields := entries[0].ContextMap()
		Expect(fields["count"]).To(Equal(float64(3)))
		Expect(fields["ok"]).To(Equal(true))
		Expect(fields["name"]).To(Equal("worker"))
		Expect(fields).To(HaveKey("thread"))
		Expect(fields).To(HaveLen(4))
	})

	It("should keep one child logger per thread", func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		observed, logs := observer.New(zapcore.InfoLevel)
		l := &lLogger{logger: zap.New(observed)}
		first := l.forCurrentThread()
		Expect(l.forCurrentThread()).To(BeIdenticalTo(first))

		first.Info("direct")
		Expect(logs.AllUntimed()[0].ContextMap()["thread"]).To(Equal(core.CurrentThreadIdentity()))
	})
})
