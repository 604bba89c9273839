// Copyright 2016 Aleksandr Demakin. All rights reserved.

// Command semgate demonstrates a rendezvous of two processes on a named semaphore.
//
//	semgate            creates the semaphore, if needed, and waits until it is posted.
//	semgate <any>      opens the existing semaphore and posts it.
//	semgate --destroy  removes the semaphore.
package main

import (
	"fmt"
	"os"
	"time"

	ipc "github.com/nxgtw/go-ipc-sync"
	"github.com/nxgtw/go-ipc-sync/internal/command"
	ipcsync "github.com/nxgtw/go-ipc-sync/sync"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

const semaPerm = 0777

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:      "semgate",
		Usage:     "wait on a named semaphore, or post it from another process",
		ArgsUsage: "[post]",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "retry",
				Usage: "when posting, keep retrying for up to this long while the semaphore does not exist",
			},
			&cli.BoolFlag{
				Name:  "destroy",
				Usage: "remove the semaphore and exit",
			},
		},
		Action: run,
	}
}

func run(c *cli.Context) error {
	if c.NArg() > 1 || (c.Bool("destroy") && c.NArg() > 0) {
		return cli.Exit("usage: semgate [--destroy | post]", 1)
	}
	env, err := command.NewEnv("semgate")
	if err != nil {
		return err
	}
	defer env.Close()
	name := env.Config.Semaphore.Name
	if c.Bool("destroy") {
		return destroy(name)
	}
	opts := []ipcsync.Option{ipcsync.WithLogger(env.Log), ipcsync.WithRegisterer(env.Registry)}
	if c.NArg() == 1 {
		return post(c, env, name, opts)
	}
	sema, err := ipcsync.NewSemaphore(name, os.O_CREATE, semaPerm, 0, opts...)
	if err != nil {
		return command.Fail("sem_open", err)
	}
	defer sema.Close()
	fmt.Fprintln(c.App.Writer, "Semaphore is taken.\nWaiting for it to be dropped.")
	if err = sema.Wait(); err != nil {
		return command.Fail("sem_wait", err)
	}
	fmt.Fprintln(c.App.Writer, "Semaphore dropped by another process.")
	return nil
}

func post(c *cli.Context, env *command.Env, name string, opts []ipcsync.Option) error {
	fmt.Fprintln(c.App.Writer, "Dropping semaphore...")
	var sema *ipcsync.Semaphore
	open := func() error {
		var err error
		sema, err = ipcsync.NewSemaphore(name, 0, semaPerm, 0, opts...)
		if err != nil && !ipc.IsNotFound(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	var err error
	if retry := c.Duration("retry"); retry > 0 {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = 50 * time.Millisecond
		b.MaxElapsedTime = retry
		err = backoff.RetryNotify(open, backoff.WithContext(b, c.Context), func(err error, d time.Duration) {
			env.Log.Debug("semaphore not found, retrying", zap.Duration("after", d))
		})
	} else {
		err = open()
	}
	if err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			err = perm.Err
		}
		return command.Fail("sem_open", err)
	}
	defer sema.Close()
	if err = sema.Post(); err != nil {
		return command.Fail("sem_post", err)
	}
	fmt.Fprintln(c.App.Writer, "Semaphore dropped.")
	return nil
}

func destroy(name string) error {
	if err := ipcsync.DestroySemaphore(name); err != nil {
		return command.Fail("sem_unlink", err)
	}
	return nil
}
