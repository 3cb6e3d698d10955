package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/joesonw/luamt/pkg/core/fatal"
	"github.com/joesonw/luamt/pkg/runner"
	"github.com/joesonw/luamt/pkg/utils"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type RunCommand struct {
	logger *zap.Logger
	policy *fatal.Policy
	runner *runner.Runner
}

func NewRunCommand(logger *zap.Logger, policy *fatal.Policy) *RunCommand {
	return &RunCommand{
		logger: logger,
		policy: policy,
	}
}

func (c *RunCommand) Build(ctx context.Context) *cobra.Command {
	var (
		configPath          string
		joinOnExit          bool
		callStackSize       int
		registrySize        int
		includeGoStackTrace bool
	)

	cmd := &cobra.Command{
		Use:           "luamt [flags] <script> [args...]",
		Short:         "Run a lua script with threads and mutexes",
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return nil
			}

			config, err := runner.LoadConfig(configPath)
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("join-on-exit") {
				config.JoinOnExit = &joinOnExit
			}
			if flags.Changed("call-stack-size") {
				config.Lua.CallStackSize = callStackSize
			}
			if flags.Changed("registry-size") {
				config.Lua.RegistrySize = registrySize
			}
			if flags.Changed("go-stack-trace") {
				config.Lua.IncludeGoStackTrace = includeGoStackTrace
			}
			config.SetDefaults()

			if addr := config.PPROFAddr; addr != "" && os.Getenv("PPROF_ADDR") == "" {
				utils.EnablePPROF(addr, c.logger)
			}

			c.runner = runner.New(config, c.logger, c.policy)
			if err := c.runner.Run(ctx, os.Args[0], args[0], args[1:]); err != nil {
				return fmt.Errorf("unable to run %s: %w", args[0], err)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.SetInterspersed(false)
	flags.StringVarP(&configPath, "config", "c", "", "yaml config file")
	flags.BoolVar(&joinOnExit, "join-on-exit", true, "wait for unjoined threads before exiting")
	flags.IntVar(&callStackSize, "call-stack-size", 0, "lua call stack size")
	flags.IntVar(&registrySize, "registry-size", 0, "lua registry size")
	flags.BoolVar(&includeGoStackTrace, "go-stack-trace", false, "include go stack traces in lua errors")
	return cmd
}

func (c *RunCommand) Stop(ctx context.Context) {
	if c.runner != nil {
		c.runner.Close()
	}
}
