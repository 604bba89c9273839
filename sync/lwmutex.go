// Copyright 2016 Aleksandr Demakin. All rights reserved.

package sync

import (
	"sync/atomic"
	"unsafe"
)

const (
	cSpinCount              = 100
	cMutexUnlocked          = uint32(0)
	cMutexLockedNoWaiters   = uint32(1)
	cMutexLockedHaveWaiters = uint32(2)
)

// lwMutex is a lightweight mutex implementation operating on a uint32 memory cell.
// it tries to minimize amount of syscalls needed to do locking.
// actual sleeping must be implemented by a waitWaker object.
// The algorithm is 'mutex3' from 'Futexes Are Tricky' by Ulrich Drepper.
type lwMutex struct {
	ptr *uint32
	ww  waitWaker
}

func newLightweightMutex(ptr unsafe.Pointer, ww waitWaker) *lwMutex {
	return &lwMutex{ptr: (*uint32)(ptr), ww: ww}
}

// init writes initial value into mutex's memory location.
func (lwm *lwMutex) init() {
	atomic.StoreUint32(lwm.ptr, cMutexUnlocked)
}

func (lwm *lwMutex) lock() {
	if err := lwm.doLock(); err != nil {
		panic(err)
	}
}

func (lwm *lwMutex) tryLock() bool {
	return atomic.CompareAndSwapUint32(lwm.ptr, cMutexUnlocked, cMutexLockedNoWaiters)
}

func (lwm *lwMutex) doLock() error {
	for i := 0; i < cSpinCount; i++ {
		if atomic.CompareAndSwapUint32(lwm.ptr, cMutexUnlocked, cMutexLockedNoWaiters) {
			return nil
		}
	}
	old := atomic.LoadUint32(lwm.ptr)
	if old != cMutexLockedHaveWaiters {
		old = atomic.SwapUint32(lwm.ptr, cMutexLockedHaveWaiters)
	}
	for old != cMutexUnlocked {
		if err := lwm.ww.wait(cMutexLockedHaveWaiters); err != nil {
			return err
		}
		old = atomic.SwapUint32(lwm.ptr, cMutexLockedHaveWaiters)
	}
	return nil
}

func (lwm *lwMutex) unlock() {
	if old := atomic.LoadUint32(lwm.ptr); old == cMutexLockedHaveWaiters {
		atomic.StoreUint32(lwm.ptr, cMutexUnlocked)
	} else {
		if old == cMutexUnlocked {
			panic("unlock of unlocked mutex")
		}
		if atomic.SwapUint32(lwm.ptr, cMutexUnlocked) == cMutexLockedNoWaiters {
			return
		}
	}
	// someone may take the lock while we spin. then it's their job to wake the waiters.
	for i := 0; i < cSpinCount; i++ {
		if atomic.LoadUint32(lwm.ptr) != cMutexUnlocked {
			if atomic.CompareAndSwapUint32(lwm.ptr, cMutexLockedNoWaiters, cMutexLockedHaveWaiters) {
				return
			}
		}
	}
	if _, err := lwm.ww.wake(1); err != nil {
		panic(err)
	}
}
