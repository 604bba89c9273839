// Copyright 2016 Aleksandr Demakin. All rights reserved.

// Command fifoecho creates a named pipe and prints everything written into it.
// It exits when the writer closes the pipe, and removes the pipe.
package main

import (
	"fmt"
	"os"

	"github.com/nxgtw/go-ipc-sync/fifo"
	"github.com/nxgtw/go-ipc-sync/internal/command"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

const fifoPerm = 0777

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:      "fifoecho",
		Usage:     "echo the data written into a named pipe",
		ArgsUsage: " ",
		Action:    run,
	}
}

func run(c *cli.Context) error {
	if c.NArg() != 0 {
		return cli.Exit("fifoecho takes no arguments", 1)
	}
	env, err := command.NewEnv("fifoecho")
	if err != nil {
		return err
	}
	defer env.Close()
	cfg := env.Config.Fifo
	fmt.Fprintf(c.App.Writer, "%s is being created, waiting for a writer.\n", fifo.Path(cfg.Path))
	r := &fifo.Reader{
		Name:       cfg.Path,
		Perm:       fifoPerm,
		Chunk:      cfg.Chunk,
		Out:        c.App.Writer,
		Log:        env.Log,
		Registerer: env.Registry,
	}
	_, err = r.Run()
	return exitStatus(env.Log, err)
}

// exitStatus treats a failed read as the end of the stream.
// Only failures to create or open the pipe make the command fail.
func exitStatus(log *zap.Logger, err error) error {
	if err == nil {
		return nil
	}
	var readErr *fifo.ReadError
	if errors.As(err, &readErr) {
		log.Warn("read failed", zap.Int64("bytes", readErr.N), zap.Error(readErr.Err))
		return nil
	}
	return command.Fail("mkfifo", err)
}
