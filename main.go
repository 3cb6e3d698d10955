package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/joesonw/luamt/pkg/commands"
	"github.com/joesonw/luamt/pkg/core/fatal"
	"github.com/joesonw/luamt/pkg/utils"
	"go.uber.org/zap"
)

// The root lua state lives on the main OS thread.
func init() {
	runtime.LockOSThread()
}

func main() {
	var (
		logger *zap.Logger
		err    error
	)
	if strings.EqualFold(os.Getenv("DEBUG"), "true") {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck

	if addr := os.Getenv("PPROF_ADDR"); addr != "" {
		utils.EnablePPROF(addr, logger)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	run := commands.NewRunCommand(logger, fatal.New(logger))
	root := run.Build(ctx)
	err = root.Execute()
	run.Stop(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		logger.Sync() //nolint:errcheck
		os.Exit(1)
	}
}
