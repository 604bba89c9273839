// Copyright 2015 Aleksandr Demakin. All rights reserved.

//go:build linux
// +build linux

package fifo

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	ipc "github.com/nxgtw/go-ipc-sync"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testData []byte

func init() {
	testData = make([]byte, 2048)
	for i := range testData {
		testData[i] = byte(i)
	}
}

func testFifoPath(t *testing.T) string {
	return filepath.Join(t.TempDir(), "go-fifo-test")
}

func TestFifoPath(t *testing.T) {
	assert.Equal(t, "/tmp/my_named_pipe", Path("my_named_pipe"))
	assert.Equal(t, "/tmp/my_named_pipe", Path("/tmp/my_named_pipe"))
	assert.Equal(t, "./pipe", Path("./pipe"))
}

// tests whether we can create a fifo exclusively, and remove it.
func TestFifoCreate(t *testing.T) {
	a := assert.New(t)
	path := testFifoPath(t)
	f, err := New(path, os.O_CREATE|os.O_EXCL|os.O_RDONLY|O_NONBLOCK, 0666)
	require.NoError(t, err)
	fi, err := os.Stat(path)
	a.NoError(err)
	a.True(fi.Mode()&os.ModeNamedPipe != 0)

	_, err = New(path, os.O_CREATE|os.O_EXCL|os.O_RDONLY|O_NONBLOCK, 0666)
	a.True(ipc.IsExist(err), "%v", err)

	a.NoError(f.Destroy())
	a.Error(f.Destroy())
	_, err = os.Stat(path)
	a.True(os.IsNotExist(err))
	a.NoError(Destroy(path))
}

func TestFifoInvalidFlags(t *testing.T) {
	path := testFifoPath(t)
	_, err := New(path, os.O_CREATE|os.O_RDWR, 0666)
	assert.Equal(t, ipc.KindMalformed, ipc.KindOf(err))
	_, err = New(path, os.O_EXCL|os.O_RDONLY, 0666)
	assert.Equal(t, ipc.KindMalformed, ipc.KindOf(err))
	_, err = New(path, os.O_RDONLY|O_NONBLOCK, 0666)
	assert.True(t, ipc.IsNotFound(err), "%v", err)
}

// 1) write data into a fifo in the same process in blocking mode
// 2) read that data in our process in blocking mode
// 3) compare the results
func TestFifoBlockReadSameProcess(t *testing.T) {
	path := testFifoPath(t)
	defer Destroy(path)
	go func() {
		f, err := New(path, os.O_CREATE|os.O_WRONLY, 0666)
		if !assert.NoError(t, err) {
			return
		}
		n, err := f.Write(testData)
		assert.NoError(t, err)
		assert.Equal(t, len(testData), n)
		assert.NoError(t, f.Close())
	}()
	f, err := New(path, os.O_CREATE|os.O_RDONLY, 0666)
	require.NoError(t, err)
	defer f.Close()
	buff, err := io.ReadAll(f)
	assert.NoError(t, err)
	assert.Equal(t, testData, buff)
}

func TestEcho(t *testing.T) {
	tests := []struct {
		name  string
		input string
		chunk int
		want  string
	}{
		{"empty", "", 4, ""},
		{"short", "Hi\n", 4, "Incoming message (3): Hi\n\n"},
		{"split", "Hello!", 4, "Incoming message (4): Hell\nIncoming message (2): o!\n"},
		{"default chunk", strings.Repeat("a", 50), 0,
			"Incoming message (49): " + strings.Repeat("a", 49) + "\nIncoming message (1): a\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := new(bytes.Buffer)
			n, err := Echo(strings.NewReader(tt.input), out, tt.chunk)
			assert.NoError(t, err)
			assert.Equal(t, int64(len(tt.input)), n)
			assert.Equal(t, tt.want, out.String())
		})
	}
}

type failingReader struct{}

func (failingReader) Read(p []byte) (int, error) {
	return 0, os.ErrClosed
}

func TestEchoReadError(t *testing.T) {
	n, err := Echo(failingReader{}, io.Discard, 1)
	assert.Equal(t, int64(0), n)
	assert.ErrorIs(t, err, os.ErrClosed)
}

func TestReaderRun(t *testing.T) {
	a := assert.New(t)
	path := testFifoPath(t)
	reg := prometheus.NewRegistry()
	out := new(bytes.Buffer)
	r := &Reader{Name: path, Perm: 0666, Chunk: 8, Out: out, Registerer: reg}
	type result struct {
		n   int64
		err error
	}
	done := make(chan result, 1)
	go func() {
		n, err := r.Run()
		done <- result{n, err}
	}()

	var w Fifo
	require.Eventually(t, func() bool {
		var err error
		w, err = New(path, os.O_WRONLY|O_NONBLOCK, 0666)
		return err == nil
	}, 5*time.Second, 10*time.Millisecond, "reader must create the pipe and open it")
	_, err := w.Write([]byte("Hello, my named pipe!\n"))
	a.NoError(err)
	a.NoError(w.Close())

	select {
	case res := <-done:
		a.NoError(res.err)
		a.Equal(int64(22), res.n)
	case <-time.After(5 * time.Second):
		t.Fatal("reader did not finish")
	}
	m := newReaderMetrics(reg)
	a.Equal(float64(3), testutil.ToFloat64(m.messages))
	a.Equal(float64(22), testutil.ToFloat64(m.received))
	a.Equal("Incoming message (8): Hello, m\nIncoming message (8): y named \nIncoming message (6): pipe!\n\n", out.String())
	_, err = os.Stat(path)
	a.True(os.IsNotExist(err), "the pipe must be removed")
}

func TestReaderPipeExists(t *testing.T) {
	path := testFifoPath(t)
	f, err := New(path, os.O_CREATE|os.O_EXCL|os.O_RDONLY|O_NONBLOCK, 0666)
	require.NoError(t, err)
	defer f.Destroy()
	r := &Reader{Name: path, Perm: 0666}
	_, err = r.Run()
	assert.True(t, ipc.IsExist(err))
	var readErr *ReadError
	assert.False(t, errors.As(err, &readErr), "creation failures are not read errors")
	_, err = os.Stat(path)
	assert.NoError(t, err, "a foreign pipe must not be removed")
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) {
	return 0, os.ErrClosed
}

func TestReaderEchoFailure(t *testing.T) {
	a := assert.New(t)
	path := testFifoPath(t)
	r := &Reader{Name: path, Perm: 0666, Out: failingWriter{}, Registerer: prometheus.NewRegistry()}
	done := make(chan error, 1)
	go func() {
		_, err := r.Run()
		done <- err
	}()

	var w Fifo
	require.Eventually(t, func() bool {
		var err error
		w, err = New(path, os.O_WRONLY|O_NONBLOCK, 0666)
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)
	_, err := w.Write([]byte("abc"))
	a.NoError(err)
	defer w.Close()

	select {
	case err := <-done:
		var readErr *ReadError
		require.True(t, errors.As(err, &readErr), "%v", err)
		a.Equal(int64(3), readErr.N)
		a.ErrorIs(err, os.ErrClosed)
		a.False(ipc.IsExist(err))
	case <-time.After(5 * time.Second):
		t.Fatal("reader did not finish")
	}
	_, err = os.Stat(path)
	a.True(os.IsNotExist(err), "the pipe must be removed")
}
