// Copyright 2016 Aleksandr Demakin. All rights reserved.

//go:build linux
// +build linux

package sync

import (
	"unsafe"

	"github.com/nxgtw/go-ipc-sync/internal/common"

	"golang.org/x/sys/unix"
)

// waitWaker is an object, which implements wake/wait semantics.
type waitWaker interface {
	wake(count uint32) (int, error)
	wait(value uint32) error
}

// futex is a waitWaker over a 4-byte cell.
// The cell must not move while the futex is used:
// it is either a field of a heap object or a part of a memory mapping.
type futex struct {
	ptr   unsafe.Pointer
	flags int32
}

func newPrivateFutex(ptr unsafe.Pointer) *futex {
	return &futex{ptr: ptr, flags: cFUTEX_PRIVATE_FLAG}
}

func newSharedFutex(ptr unsafe.Pointer) *futex {
	return &futex{ptr: ptr}
}

// wait returns nil, if it was woken, interrupted, or the value has already changed.
// Callers must re-check their condition.
func (f *futex) wait(value uint32) error {
	err := FutexWait(f.ptr, value, f.flags)
	if err != nil && (common.SyscallErrHasCode(err, unix.EWOULDBLOCK) || common.IsInterruptedSyscallErr(err)) {
		return nil
	}
	return err
}

func (f *futex) wake(count uint32) (int, error) {
	return FutexWake(f.ptr, count, f.flags)
}
