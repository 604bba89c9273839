// Copyright 2016 Aleksandr Demakin. All rights reserved.

// Command counter runs two actors sharing a counter guarded by a mutex.
// The incrementer adds one to the counter and holds the lock for a while.
// The resetter reads new values from stdin and tries to set them without blocking first.
// The program exits when stdin is closed.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nxgtw/go-ipc-sync/internal/command"
	ipcsync "github.com/nxgtw/go-ipc-sync/sync"

	"github.com/panjf2000/ants/v2"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:      "counter",
		Usage:     "increment a shared counter and reset it from stdin",
		ArgsUsage: " ",
		Action:    run,
	}
}

func run(c *cli.Context) error {
	if c.NArg() != 0 {
		return cli.Exit("counter takes no arguments", 1)
	}
	env, err := command.NewEnv("counter")
	if err != nil {
		return err
	}
	defer env.Close()
	cfg := env.Config.Counter

	pool, err := ants.NewPool(2, ants.WithPanicHandler(func(p interface{}) {
		env.Log.Error("actor panicked", zap.Any("panic", p))
	}))
	if err != nil {
		return command.Fail("pool", err)
	}
	defer pool.Release()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	counter := ipcsync.NewCounter(0)
	defer counter.Release()
	incHandle, err := counter.Clone()
	if err != nil {
		return command.Fail("counter", err)
	}
	resHandle, err := counter.Clone()
	if err != nil {
		incHandle.Release()
		return command.Fail("counter", err)
	}
	out := command.SyncWriter(c.App.Writer)
	inc := &ipcsync.Incrementer{
		Counter:    incHandle,
		Pause:      cfg.Pause,
		Dwell:      cfg.Dwell,
		Out:        out,
		Log:        env.Log,
		Registerer: env.Registry,
	}
	res := &ipcsync.Resetter{
		Counter:     resHandle,
		StartupHold: cfg.StartupHold,
		MaxLineLen:  cfg.MaxLineLen,
		In:          c.App.Reader,
		Out:         out,
		Log:         env.Log,
		Registerer:  env.Registry,
	}

	incDone := make(chan error, 1)
	resDone := make(chan error, 1)
	if err = pool.Submit(func() { incDone <- inc.Run(ctx) }); err != nil {
		return command.Fail("incrementer", err)
	}
	if err = pool.Submit(func() { resDone <- res.Run(ctx) }); err != nil {
		cancel()
		<-incDone
		return command.Fail("resetter", err)
	}

	var result error
	select {
	case err = <-resDone:
		if err != nil {
			result = command.Fail("resetter", err)
		}
	case err = <-incDone:
		// the resetter may be blocked reading stdin, so it is not waited for.
		return command.Fail("incrementer", err)
	case <-ctx.Done():
		env.Log.Info("interrupted")
	}
	cancel()
	if err = <-incDone; err != nil && result == nil {
		result = command.Fail("incrementer", err)
	}
	if value, err := counter.Snapshot(); err == nil {
		env.Log.Info("counter stopped", zap.Int("value", value))
	}
	return result
}
