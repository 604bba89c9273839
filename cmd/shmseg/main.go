// Copyright 2016 Aleksandr Demakin. All rights reserved.

// Command shmseg stores text in a named shared memory segment, and prints it from another process.
//
//	shmseg create <text>  creates the segment, if needed, and stores the text.
//	shmseg write <text>   stores the text in an existing segment.
//	shmseg print          prints the stored text.
//	shmseg unlink         removes the segment.
//
// The text is truncated to the segment capacity.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/nxgtw/go-ipc-sync/internal/command"
	"github.com/nxgtw/go-ipc-sync/shm"

	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "shmseg",
		Usage: "keep text in a named shared memory segment",
		Commands: []*cli.Command{
			{
				Name:      "create",
				Usage:     "create the segment, if needed, and store the text",
				ArgsUsage: "<text>",
				Action:    withSegment(store(true)),
			},
			{
				Name:      "write",
				Usage:     "store the text in an existing segment",
				ArgsUsage: "<text>",
				Action:    withSegment(store(false)),
			},
			{
				Name:    "print",
				Aliases: []string{"read"},
				Usage:   "print the stored text",
				Action:  withSegment(printSegment),
			},
			{
				Name:    "unlink",
				Aliases: []string{"close"},
				Usage:   "remove the segment",
				Action:  withSegment(unlinkSegment),
			},
		},
		Action: func(c *cli.Context) error {
			cli.ShowAppHelp(c)
			return cli.Exit("", 1)
		},
	}
}

type segmentAction func(c *cli.Context, seg *shm.Segment) error

func withSegment(action segmentAction) cli.ActionFunc {
	return func(c *cli.Context) error {
		env, err := command.NewEnv("shmseg")
		if err != nil {
			return err
		}
		defer env.Close()
		cfg := env.Config.Shm
		seg, err := shm.NewSegment(shm.SegmentConfig{
			Name:      cfg.Name,
			Capacity:  cfg.Capacity,
			Serialize: cfg.Serialize,
		}, env.Log, env.Registry)
		if err != nil {
			return command.Fail("shm_open", err)
		}
		return action(c, seg)
	}
}

func store(create bool) segmentAction {
	return func(c *cli.Context, seg *shm.Segment) error {
		if c.NArg() == 0 {
			return cli.Exit(fmt.Sprintf("usage: %s %s <text>", c.App.Name, c.Command.Name), 1)
		}
		text := []byte(strings.Join(c.Args().Slice(), " "))
		var err error
		if create {
			_, err = seg.Create(text)
		} else {
			_, err = seg.Write(text)
		}
		if err != nil {
			return command.Fail("shm_open", err)
		}
		fmt.Fprintf(c.App.Writer, "Shared memory filled in. You may run '%s print' to see value.\n", c.App.Name)
		return nil
	}
}

func printSegment(c *cli.Context, seg *shm.Segment) error {
	data, err := seg.Read()
	if err != nil {
		return command.Fail("shm_open", err)
	}
	fmt.Fprintf(c.App.Writer, "Got from shared memory: %s\n", data)
	return nil
}

func unlinkSegment(c *cli.Context, seg *shm.Segment) error {
	if err := seg.Unlink(); err != nil {
		return command.Fail("shm_unlink", err)
	}
	return nil
}
