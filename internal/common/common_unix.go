// Copyright 2016 Aleksandr Demakin. All rights reserved.

//go:build linux
// +build linux

package common

import (
	"syscall"
)

// UninterruptedSyscall calls f until it returns something except EINTR.
func UninterruptedSyscall(f func() error) error {
	for {
		err := f()
		if !IsInterruptedSyscallErr(err) {
			return err
		}
	}
}

// IsInterruptedSyscallErr returns true, if err is EINTR.
func IsInterruptedSyscallErr(err error) bool {
	return SyscallErrHasCode(err, syscall.EINTR)
}
