// Copyright 2016 Aleksandr Demakin. All rights reserved.

//go:build linux
// +build linux

package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nxgtw/go-ipc-sync/fifo"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	cli.OsExiter = func(int) {}
	cli.ErrWriter = io.Discard
	os.Exit(m.Run())
}

type lockedBuffer struct {
	mut sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mut.Lock()
	defer b.mut.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mut.Lock()
	defer b.mut.Unlock()
	return b.buf.String()
}

func runApp(out io.Writer, args ...string) error {
	app := newApp()
	app.Writer = out
	app.ErrWriter = io.Discard
	return app.Run(append([]string{"fifoecho"}, args...))
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	if ec, ok := err.(cli.ExitCoder); ok {
		return ec.ExitCode()
	}
	return 1
}

func setupFifoPath(t *testing.T) string {
	path := filepath.Join(t.TempDir(), "fifoecho-test")
	t.Setenv("IPC_FIFO_PATH", path)
	t.Setenv("LOG_LEVEL", "error")
	return path
}

func TestFifoechoScenario(t *testing.T) {
	a := assert.New(t)
	path := setupFifoPath(t)
	out := new(lockedBuffer)
	done := make(chan error, 1)
	go func() { done <- runApp(out) }()

	var w fifo.Fifo
	require.Eventually(t, func() bool {
		var err error
		w, err = fifo.New(path, os.O_WRONLY|fifo.O_NONBLOCK, 0666)
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)
	_, err := w.Write([]byte("Hello, my named pipe!"))
	a.NoError(err)
	a.NoError(w.Close())

	select {
	case err := <-done:
		a.NoError(err)
	case <-time.After(5 * time.Second):
		t.Fatal("fifoecho did not exit")
	}
	a.Equal(path+" is being created, waiting for a writer.\nIncoming message (21): Hello, my named pipe!\n", out.String())
	_, err = os.Stat(path)
	a.True(os.IsNotExist(err))
}

func TestFifoechoPipeExists(t *testing.T) {
	a := assert.New(t)
	path := setupFifoPath(t)
	f, err := fifo.New(path, os.O_CREATE|os.O_EXCL|os.O_RDONLY|fifo.O_NONBLOCK, 0666)
	require.NoError(t, err)
	defer f.Destroy()

	err = runApp(io.Discard)
	a.Equal(1, exitCode(err))
	a.True(strings.HasPrefix(err.Error(), "mkfifo: already exists"), "%v", err)
}

func TestFifoechoArgs(t *testing.T) {
	setupFifoPath(t)
	assert.Equal(t, 1, exitCode(runApp(io.Discard, "extra")))
}

func TestExitStatus(t *testing.T) {
	a := assert.New(t)
	log := zap.NewNop()
	a.NoError(exitStatus(log, nil))
	a.NoError(exitStatus(log, &fifo.ReadError{Err: os.ErrClosed}), "read failures end the stream")
	a.NoError(exitStatus(log, &fifo.ReadError{N: 10, Err: io.ErrUnexpectedEOF}))
	a.Equal(1, exitCode(exitStatus(log, os.ErrPermission)))
}
