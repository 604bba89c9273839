// Copyright 2016 Aleksandr Demakin. All rights reserved.

//go:build linux
// +build linux

package sync

import (
	"sync/atomic"

	ipc "github.com/nxgtw/go-ipc-sync"
)

const counterName = "counter"

type counterState struct {
	mu    *Mutex
	value int
	refs  int32
}

// CounterHandle is a reference to an integer guarded by an owner-checked Mutex.
// The value can be read or changed only by the actor holding the lock.
// Every actor should use its own handle obtained with Clone, and release it when done.
type CounterHandle struct {
	st       *counterState
	released int32
}

// NewCounter returns the first handle of a new counter with the given initial value.
func NewCounter(initial int) *CounterHandle {
	return &CounterHandle{st: &counterState{
		mu:    NewMutex(),
		value: initial,
		refs:  1,
	}}
}

// Clone returns a new handle of the same counter.
func (h *CounterHandle) Clone() (*CounterHandle, error) {
	if err := h.checkOpen("clone"); err != nil {
		return nil, err
	}
	atomic.AddInt32(&h.st.refs, 1)
	return &CounterHandle{st: h.st}, nil
}

// Release drops the handle. Using a released handle results in an error of ipc.KindClosed.
func (h *CounterHandle) Release() error {
	if !atomic.CompareAndSwapInt32(&h.released, 0, 1) {
		return &ipc.Error{Op: "release", Name: counterName, Kind: ipc.KindClosed}
	}
	atomic.AddInt32(&h.st.refs, -1)
	return nil
}

// Refs returns the number of unreleased handles of the counter.
func (h *CounterHandle) Refs() int {
	return int(atomic.LoadInt32(&h.st.refs))
}

// Lock blocks until owner gets the lock.
func (h *CounterHandle) Lock(owner ActorID) error {
	if err := h.checkOpen("lock"); err != nil {
		return err
	}
	return h.st.mu.Lock(owner)
}

// TryLock attempts to take the lock without blocking. It returns an error of ipc.KindBusy, if the lock is held.
func (h *CounterHandle) TryLock(owner ActorID) error {
	if err := h.checkOpen("trylock"); err != nil {
		return err
	}
	return h.st.mu.TryLock(owner)
}

// Unlock releases the lock held by owner.
func (h *CounterHandle) Unlock(owner ActorID) error {
	if err := h.checkOpen("unlock"); err != nil {
		return err
	}
	return h.st.mu.Unlock(owner)
}

// Increment adds one to the value and returns the result.
func (h *CounterHandle) Increment(owner ActorID) (int, error) {
	if err := h.checkHolder("increment", owner); err != nil {
		return 0, err
	}
	h.st.value++
	return h.st.value, nil
}

// Set replaces the value.
func (h *CounterHandle) Set(owner ActorID, value int) error {
	if err := h.checkHolder("set", owner); err != nil {
		return err
	}
	h.st.value = value
	return nil
}

// Value returns the current value.
func (h *CounterHandle) Value(owner ActorID) (int, error) {
	if err := h.checkHolder("get", owner); err != nil {
		return 0, err
	}
	return h.st.value, nil
}

// Snapshot takes the lock on behalf of a one-off observer, reads the value and unlocks.
// It blocks while another actor holds the lock. Concurrent snapshots queue like any other actors.
func (h *CounterHandle) Snapshot() (int, error) {
	observer := NewActorID()
	if err := h.Lock(observer); err != nil {
		return 0, err
	}
	value := h.st.value
	if err := h.st.mu.Unlock(observer); err != nil {
		return 0, err
	}
	return value, nil
}

func (h *CounterHandle) checkOpen(op string) error {
	if atomic.LoadInt32(&h.released) != 0 {
		return &ipc.Error{Op: op, Name: counterName, Kind: ipc.KindClosed}
	}
	return nil
}

func (h *CounterHandle) checkHolder(op string, owner ActorID) error {
	if err := h.checkOpen(op); err != nil {
		return err
	}
	if !h.st.mu.HeldBy(owner) {
		return ipc.NewKindError(op, counterName, ipc.KindPermission, "actor %d does not hold the lock", owner)
	}
	return nil
}
