// Package runner executes a script file on a root lua state, the way the
// command line host does.
package runner

import (
	"bytes"
	"context"
	"fmt"
	"io/ioutil"
	"path/filepath"
	"runtime"

	"github.com/joesonw/luamt/pkg/core/fatal"
	coreGlobal "github.com/joesonw/luamt/pkg/core/global"
	coreLog "github.com/joesonw/luamt/pkg/core/log"
	coreMutex "github.com/joesonw/luamt/pkg/core/mutex"
	coreThread "github.com/joesonw/luamt/pkg/core/thread"
	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

type Runner struct {
	config  *Config
	logger  *zap.Logger
	policy  *fatal.Policy
	running *atomic.Bool

	L       *lua.LState
	threads *coreThread.Library
}

func New(config *Config, logger *zap.Logger, policy *fatal.Policy) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config == nil {
		config = &Config{}
	}
	config.SetDefaults()
	if policy == nil {
		policy = fatal.New(logger)
	}
	return &Runner{
		config:  config,
		logger:  logger.Named("runner"),
		policy:  policy,
		running: atomic.NewBool(false),
	}
}

// Run executes script with args on the calling OS thread and returns once
// the script and, unless disabled, every thread it started have finished.
// Cancelling ctx raises an error in the root and in every thread.
// Errors the script does not catch go to the fatal policy; an error is only
// returned when the policy's Exit returned.
func (r *Runner) Run(ctx context.Context, program, script string, args []string) error {
	if !r.running.CAS(false, true) {
		return fmt.Errorf("runner is already running")
	}
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	L := lua.NewState(r.config.options())
	if ctx != nil {
		// siblings derive their context from the root's
		L.SetContext(ctx)
	}
	r.L = L
	r.threads = coreThread.Open(L, r.logger, r.policy)
	coreMutex.Open(L)
	coreLog.Open(L, r.logger)
	coreGlobal.Open(L, coreGlobal.Env{
		Program: program,
		Script:  script,
		Args:    args,
	})

	fn, err := r.load(L, script)
	if err != nil {
		r.policy.Fail(L, err)
		return err
	}
	r.logger.Debug("script loaded", zap.String("script", script))

	L.Push(fn)
	for _, arg := range args {
		L.Push(lua.LString(arg))
	}
	if err := L.PCall(len(args), lua.MultRet, r.policy.Handler(L)); err != nil {
		return err
	}
	L.SetTop(0)

	if *r.config.JoinOnExit {
		r.logger.Debug("waiting for threads", zap.Int("pending", r.threads.Pending()))
		r.threads.WaitAll()
	}
	return nil
}

func (r *Runner) load(L *lua.LState, path string) (*lua.LFunction, error) {
	name := filepath.Base(path)
	src, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", path, err)
	}
	chunk, err := parse.Parse(bytes.NewBuffer(src), name)
	if err != nil {
		return nil, err
	}
	proto, err := lua.Compile(chunk, name)
	if err != nil {
		return nil, err
	}
	return &lua.LFunction{
		IsG:       false,
		Env:       L.Env,
		Proto:     proto,
		GFunction: nil,
	}, nil
}

// Threads is the thread library of the running script.
func (r *Runner) Threads() *coreThread.Library {
	return r.threads
}

func (r *Runner) Close() {
	if r.L != nil {
		r.L.Close()
	}
}
