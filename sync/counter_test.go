// Copyright 2016 Aleksandr Demakin. All rights reserved.

//go:build linux
// +build linux

package sync

import (
	"sync"
	"testing"
	"time"

	ipc "github.com/nxgtw/go-ipc-sync"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounterRequiresLock(t *testing.T) {
	a := assert.New(t)
	c := NewCounter(3)
	defer c.Release()
	id, other := NewActorID(), NewActorID()

	_, err := c.Increment(id)
	a.True(ipc.IsPermission(err), "%v", err)
	a.True(ipc.IsPermission(c.Set(id, 1)))
	_, err = c.Value(id)
	a.True(ipc.IsPermission(err))

	require.NoError(t, c.Lock(id))
	value, err := c.Increment(id)
	a.NoError(err)
	a.Equal(4, value)
	a.True(ipc.IsPermission(c.Set(other, 10)), "only the holder may change the value")
	a.True(ipc.IsBusy(c.TryLock(other)))
	a.True(ipc.IsPermission(c.Unlock(other)))
	a.NoError(c.Set(id, 10))
	value, err = c.Value(id)
	a.NoError(err)
	a.Equal(10, value)
	a.NoError(c.Unlock(id))

	value, err = c.Snapshot()
	a.NoError(err)
	a.Equal(10, value)
}

func TestCounterHandles(t *testing.T) {
	a := assert.New(t)
	c := NewCounter(0)
	clone, err := c.Clone()
	require.NoError(t, err)
	a.Equal(2, c.Refs())

	id := NewActorID()
	a.NoError(clone.Lock(id))
	_, err = clone.Increment(id)
	a.NoError(err)
	a.NoError(clone.Unlock(id))

	a.NoError(clone.Release())
	a.Equal(1, c.Refs())
	a.Equal(ipc.KindClosed, ipc.KindOf(clone.Release()))
	a.ErrorIs(clone.Lock(id), ipc.ErrClosed)
	a.ErrorIs(clone.TryLock(id), ipc.ErrClosed)
	_, err = clone.Clone()
	a.ErrorIs(err, ipc.ErrClosed)
	_, err = clone.Snapshot()
	a.ErrorIs(err, ipc.ErrClosed)

	value, err := c.Snapshot()
	a.NoError(err)
	a.Equal(1, value)
	a.NoError(c.Release())
	a.Equal(0, c.Refs())
}

func TestCounterConcurrentSnapshots(t *testing.T) {
	a := assert.New(t)
	c := NewCounter(7)
	defer c.Release()
	id := NewActorID()
	require.NoError(t, c.Lock(id))

	const readers = 8
	var wg sync.WaitGroup
	values := make(chan int, readers)
	errs := make(chan error, readers)
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			value, err := c.Snapshot()
			if err != nil {
				errs <- err
				return
			}
			values <- value
		}()
	}
	time.Sleep(50 * time.Millisecond)
	a.Len(values, 0, "snapshots must wait for the holder")
	a.NoError(c.Set(id, 42))
	a.NoError(c.Unlock(id))
	wg.Wait()
	close(values)
	close(errs)
	for err := range errs {
		a.NoError(err)
	}
	count := 0
	for value := range values {
		a.Equal(42, value)
		count++
	}
	a.Equal(readers, count)
}
