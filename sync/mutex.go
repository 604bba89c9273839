// Copyright 2016 Aleksandr Demakin. All rights reserved.

//go:build linux
// +build linux

package sync

import (
	"sync/atomic"
	"unsafe"

	ipc "github.com/nxgtw/go-ipc-sync"
)

// Mutex is a mutual exclusion lock, which remembers its owner.
// Only the actor, which locked the mutex, can unlock it.
// Blocked actors sleep on a private futex. There is no fairness between waiters.
// A Mutex must be created with NewMutex and must not be copied.
type Mutex struct {
	owner uint64 // first for 64-bit alignment on 32-bit platforms.
	state uint32
	lwm   *lwMutex
}

// NewMutex returns a new unlocked mutex.
func NewMutex() *Mutex {
	m := &Mutex{}
	ptr := unsafe.Pointer(&m.state)
	m.lwm = newLightweightMutex(ptr, newPrivateFutex(ptr))
	m.lwm.init()
	return m
}

// Lock locks m on behalf of owner. If the lock is held, it blocks until the mutex is available.
// Locking a mutex already held by the same owner is an error, as it would never return.
func (m *Mutex) Lock(owner ActorID) error {
	if err := m.checkLocker("lock", owner); err != nil {
		return err
	}
	m.lwm.lock()
	atomic.StoreUint64(&m.owner, uint64(owner))
	return nil
}

// TryLock makes one attempt to lock m without blocking.
// It returns an error of ipc.KindBusy, if the mutex is held by someone.
func (m *Mutex) TryLock(owner ActorID) error {
	if err := m.checkLocker("trylock", owner); err != nil {
		return err
	}
	if !m.lwm.tryLock() {
		return &ipc.Error{Op: "trylock", Name: "mutex", Kind: ipc.KindBusy}
	}
	atomic.StoreUint64(&m.owner, uint64(owner))
	return nil
}

// Unlock unlocks m. It returns an error of ipc.KindPermission, if owner does not hold the lock.
// In this case the mutex stays locked.
func (m *Mutex) Unlock(owner ActorID) error {
	if owner == 0 || !atomic.CompareAndSwapUint64(&m.owner, uint64(owner), 0) {
		return ipc.NewKindError("unlock", "mutex", ipc.KindPermission, "actor %d does not hold the lock", owner)
	}
	m.lwm.unlock()
	return nil
}

// HeldBy returns true, if owner holds the lock.
func (m *Mutex) HeldBy(owner ActorID) bool {
	return owner != 0 && atomic.LoadUint64(&m.owner) == uint64(owner)
}

func (m *Mutex) checkLocker(op string, owner ActorID) error {
	if owner == 0 {
		return ipc.NewKindError(op, "mutex", ipc.KindMalformed, "invalid actor id")
	}
	if m.HeldBy(owner) {
		return ipc.NewKindError(op, "mutex", ipc.KindBusy, "actor %d already holds the lock", owner)
	}
	return nil
}
