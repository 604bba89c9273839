// Copyright 2016 Aleksandr Demakin. All rights reserved.

//go:build linux
// +build linux

package sync

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"strings"
	gosync "sync"
	"testing"
	"time"

	ipc "github.com/nxgtw/go-ipc-sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lockedBuffer struct {
	mut gosync.Mutex
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

func cloneCounter(t *testing.T, c *CounterHandle) *CounterHandle {
	h, err := c.Clone()
	require.NoError(t, err)
	return h
}

func TestIncrementerNoLostUpdates(t *testing.T) {
	for _, n := range []int{0, 1, 100, 1000} {
		c := NewCounter(5)
		reg := prometheus.NewRegistry()
		var wg gosync.WaitGroup
		for i := 0; i < 2; i++ {
			inc := &Incrementer{Counter: cloneCounter(t, c), Limit: n, Registerer: reg}
			if n == 0 {
				// zero means unlimited, so stop the actor at once.
				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				assert.NoError(t, inc.Run(ctx))
				continue
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, inc.Run(context.Background()))
			}()
		}
		wg.Wait()
		value, err := c.Snapshot()
		assert.NoError(t, err)
		assert.Equal(t, 5+2*n, value, "n = %d", n)
		assert.Equal(t, float64(2*n), testutil.ToFloat64(newCounterMetrics(reg).increments))
		assert.Equal(t, 1, c.Refs(), "actors must release their handles")
	}
}

func TestIncrementerOutput(t *testing.T) {
	c := NewCounter(0)
	out := new(lockedBuffer)
	inc := &Incrementer{Counter: cloneCounter(t, c), Limit: 3, Out: out}
	require.NoError(t, inc.Run(context.Background()))
	assert.Equal(t, "1\n2\n3\n", out.String())
}

func TestIncrementerHoldsLockDuringDwell(t *testing.T) {
	c := NewCounter(0)
	ctx, cancel := context.WithCancel(context.Background())
	out := new(lockedBuffer)
	inc := &Incrementer{Counter: cloneCounter(t, c), Dwell: time.Hour, Out: out}
	done := make(chan error, 1)
	go func() { done <- inc.Run(ctx) }()
	require.Eventually(t, func() bool { return out.String() == "1\n" }, 5*time.Second, time.Millisecond)
	assert.True(t, ipc.IsBusy(c.TryLock(NewActorID())))
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("incrementer did not stop")
	}
	value, err := c.Snapshot()
	assert.NoError(t, err)
	assert.Equal(t, 1, value)
}

func TestResetterInput(t *testing.T) {
	a := assert.New(t)
	c := NewCounter(0)
	reg := prometheus.NewRegistry()
	out := new(lockedBuffer)
	input := "30\n\nabc\n" + strings.Repeat("1", DefaultMaxLineLen+1) + "\n-4\r\n7"
	r := &Resetter{
		Counter:    cloneCounter(t, c),
		In:         strings.NewReader(input),
		Out:        out,
		Registerer: reg,
	}
	require.NoError(t, r.Run(context.Background()))
	text := out.String()
	a.True(strings.HasPrefix(text, ResetPrompt+"\n"))
	a.Contains(text, "New value for counter is 30\n")
	a.Contains(text, "New value for counter is -4\n")
	a.Contains(text, "New value for counter is 7\n")
	a.Contains(text, `"abc" is not a number`)
	a.Contains(text, "line is longer than 32 bytes")
	a.Equal(3, strings.Count(text, ResetFreeMessage))

	value, err := c.Snapshot()
	a.NoError(err)
	a.Equal(7, value)
	m := newCounterMetrics(reg)
	a.Equal(float64(3), testutil.ToFloat64(m.resets))
	a.Equal(float64(2), testutil.ToFloat64(m.rejected))
	a.Equal(float64(0), testutil.ToFloat64(m.contended))
	a.Equal(float64(7), testutil.ToFloat64(m.value))
}

func TestResetterFallsBackToBlockingLock(t *testing.T) {
	a := assert.New(t)
	c := NewCounter(1)
	reg := prometheus.NewRegistry()
	holder := NewActorID()
	out := new(lockedBuffer)
	pr, pw := io.Pipe()
	r := &Resetter{Counter: cloneCounter(t, c), In: pr, Out: out, Registerer: reg}
	done := make(chan error, 1)
	go func() { done <- r.Run(context.Background()) }()
	require.Eventually(t, func() bool { return strings.Contains(out.String(), ResetPrompt) }, 5*time.Second, time.Millisecond)

	require.NoError(t, c.Lock(holder))
	go func() {
		pw.Write([]byte("42\n"))
		pw.Close()
	}()
	require.Eventually(t, func() bool { return strings.Contains(out.String(), ResetBusyMessage) }, 5*time.Second, time.Millisecond)
	value, err := c.Value(holder)
	a.NoError(err)
	a.Equal(1, value, "the value must not change while the lock is held by someone else")
	a.NoError(c.Unlock(holder))

	select {
	case err := <-done:
		a.NoError(err)
	case <-time.After(5 * time.Second):
		t.Fatal("resetter did not finish")
	}
	value, err = c.Snapshot()
	a.NoError(err)
	a.Equal(42, value)
	a.Equal(float64(1), testutil.ToFloat64(newCounterMetrics(reg).contended))
	a.NotContains(out.String(), ResetFreeMessage)
}

func TestResetterStartupHold(t *testing.T) {
	c := NewCounter(0)
	out := new(lockedBuffer)
	r := &Resetter{Counter: cloneCounter(t, c), StartupHold: 500 * time.Millisecond, In: strings.NewReader(""), Out: out}
	done := make(chan error, 1)
	go func() { done <- r.Run(context.Background()) }()
	require.Eventually(t, func() bool { return strings.Contains(out.String(), ResetPrompt) }, 5*time.Second, time.Millisecond)
	assert.True(t, ipc.IsBusy(c.TryLock(NewActorID())), "the lock is held during the startup hold")
	assert.NoError(t, <-done)
	id := NewActorID()
	assert.NoError(t, c.TryLock(id))
	assert.NoError(t, c.Unlock(id))
}

func TestCounterActorsTogether(t *testing.T) {
	c := NewCounter(0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	inc := &Incrementer{Counter: cloneCounter(t, c), Pause: time.Microsecond, Dwell: time.Millisecond}
	incDone := make(chan error, 1)
	go func() { incDone <- inc.Run(ctx) }()
	r := &Resetter{Counter: cloneCounter(t, c), In: strings.NewReader("1000000\n")}
	require.NoError(t, r.Run(ctx))
	value, err := c.Snapshot()
	assert.NoError(t, err)
	assert.GreaterOrEqual(t, value, 1000000)
	cancel()
	assert.NoError(t, <-incDone)
}

func TestReadLine(t *testing.T) {
	type result struct {
		line string
		kind ipc.Kind
		eof  bool
	}
	tests := []struct {
		name  string
		input string
		want  []result
	}{
		{"empty", "", []result{{eof: true}}},
		{"single", "12\n", []result{{line: "12"}, {eof: true}}},
		{"no terminator", "12", []result{{line: "12"}, {eof: true}}},
		{"crlf", "12\r\n", []result{{line: "12"}, {eof: true}}},
		{"exact", "1234\n", []result{{line: "1234"}, {eof: true}}},
		{"overlong", "12345\n1\n", []result{{kind: ipc.KindMalformed}, {line: "1"}, {eof: true}}},
		{"overlong at eof", "12345", []result{{kind: ipc.KindMalformed}, {eof: true}}},
		{"blank", "\n\n", []result{{line: ""}, {line: ""}, {eof: true}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := bufio.NewReader(strings.NewReader(tt.input))
			for _, want := range tt.want {
				line, err := readLine(r, 4)
				switch {
				case want.eof:
					assert.Equal(t, io.EOF, err)
				case want.kind != ipc.KindUnknown:
					assert.Equal(t, want.kind, ipc.KindOf(err))
				default:
					assert.NoError(t, err)
					assert.Equal(t, want.line, line)
				}
			}
		})
	}
}

func TestParseValue(t *testing.T) {
	value, err := parseValue(" 15 ")
	assert.NoError(t, err)
	assert.Equal(t, 15, value)
	_, err = parseValue("15x")
	assert.ErrorIs(t, err, ipc.ErrMalformed)
}
