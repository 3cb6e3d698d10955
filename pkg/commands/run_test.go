package commands

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/joesonw/luamt/pkg/core/test"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
)

func Test(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "commands")
}

var _ = Describe("run", func() {
	var (
		dir   string
		exits *test.Exits
		run   *RunCommand
	)

	BeforeEach(func() {
		var err error
		dir, err = ioutil.TempDir("", "luamt")
		Expect(err).To(BeNil())
		policy, e := test.Policy()
		exits = e
		run = NewRunCommand(zap.NewNop(), policy)
	})

	AfterEach(func() {
		run.Stop(context.Background())
		os.RemoveAll(dir)
	})

	script := func(src string) string {
		path := filepath.Join(dir, "main.lua")
		Expect(ioutil.WriteFile(path, []byte(src), 0644)).To(Succeed())
		return path
	}

	execute := func(args ...string) error {
		cmd := run.Build(context.Background())
		cmd.SetArgs(args)
		return cmd.Execute()
	}

	It("should do nothing without a script", func() {
		Expect(execute()).To(Succeed())
		Expect(run.runner).To(BeNil())
	})

	It("should pass flags after the script to it", func() {
		path := script(`
			local a, b = ...
			assert(select("#", ...) == 2)
			assert(a == "--registry-size" and b == "x")
			assert(arg[1] == a and arg[2] == b)
		`)
		Expect(execute("--join-on-exit=false", path, "--registry-size", "x")).To(Succeed())
		Expect(exits.Codes).To(BeEmpty())
	})

	It("should read the config file", func() {
		config := filepath.Join(dir, "config.yaml")
		Expect(ioutil.WriteFile(config, []byte("lua:\n  call-stack-size: 64\n"), 0644)).To(Succeed())
		path := script(`
			local depth = 0
			local function deep()
				depth = depth + 1
				deep()
			end
			local ok, err = pcall(deep)
			assert(not ok)
			assert(string.find(err, "stack overflow", 1, true), err)
			assert(depth < 64, depth)
		`)
		Expect(execute("--config", config, path)).To(Succeed())
		Expect(exits.Codes).To(BeEmpty())
	})

	It("should fail on a missing config file", func() {
		path := script(`return`)
		err := execute("-c", filepath.Join(dir, "missing.yaml"), path)
		Expect(err).NotTo(BeNil())
		Expect(err.Error()).To(ContainSubstring("unable to read config"))
	})

	It("should fail when the script fails", func() {
		path := script(`error("run boom")`)
		err := execute(path)
		Expect(err).NotTo(BeNil())
		Expect(err.Error()).To(ContainSubstring("unable to run"))
		Expect(<-exits.Codes).To(Equal(1))
		Expect(exits.Output()).To(ContainSubstring("run boom"))
	})
})
