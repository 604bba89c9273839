// Copyright 2016 Aleksandr Demakin. All rights reserved.

//go:build linux
// +build linux

package sync

import (
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	cFUTEX_WAIT = 0
	cFUTEX_WAKE = 1

	cFUTEX_PRIVATE_FLAG = 128
)

func sysFutex(addr unsafe.Pointer, op int32, val uint32) (int32, error) {
	r1, _, err := unix.Syscall6(unix.SYS_FUTEX,
		uintptr(addr),
		uintptr(op),
		uintptr(val),
		0,
		0,
		0)
	if err != 0 {
		return 0, os.NewSyscallError("FUTEX", err)
	}
	return int32(r1), nil
}
