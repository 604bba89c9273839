// Copyright 2016 Aleksandr Demakin. All rights reserved.

//go:build linux
// +build linux

package sync

import (
	"unsafe"
)

// FutexWait checks, that the value at addr equals value, and if so, sleeps until FutexWake is called.
// If the values differ, it returns EWOULDBLOCK immediately.
//
//	flags - cFUTEX_PRIVATE_FLAG for process-local memory, 0 for shared mappings.
func FutexWait(addr unsafe.Pointer, value uint32, flags int32) error {
	_, err := sysFutex(addr, cFUTEX_WAIT|flags, value)
	return err
}

// FutexWake wakes count threads waiting on addr. It returns the number of woken waiters.
func FutexWake(addr unsafe.Pointer, count uint32, flags int32) (int, error) {
	woken, err := sysFutex(addr, cFUTEX_WAKE|flags, count)
	return int(woken), err
}
