// Copyright 2015 Aleksandr Demakin. All rights reserved.

//go:build linux
// +build linux

package shm

import (
	"os"
	"path/filepath"

	"github.com/nxgtw/go-ipc-sync/internal/common"

	"golang.org/x/sys/unix"
)

type memoryObject struct {
	file *os.File
}

func newMemoryObject(name string, flag int, perm os.FileMode) (impl *memoryObject, err error) {
	var path string
	if path, err = shmName(name); err != nil {
		return nil, err
	}
	var file *os.File
	file, err = os.OpenFile(path, flag, perm)
	if err != nil {
		return
	}
	impl = &memoryObject{file: file}
	return
}

// Destroy closes the object and removes it permanently.
func (obj *memoryObject) Destroy() error {
	if int(obj.Fd()) >= 0 {
		if err := obj.Close(); err != nil {
			return err
		}
	}
	return removeIfExists(obj.file.Name())
}

// Name returns the name of the object without the shm directory.
func (obj *memoryObject) Name() string {
	return filepath.Base(obj.file.Name())
}

// Close closes the descriptor. The object itself and its mappings stay alive.
func (obj *memoryObject) Close() error {
	return obj.file.Close()
}

// Truncate changes the size of the object.
func (obj *memoryObject) Truncate(size int64) error {
	return obj.file.Truncate(size)
}

// Size returns the current size of the object, or 0 if it cannot be obtained.
func (obj *memoryObject) Size() int64 {
	fileInfo, err := obj.file.Stat()
	if err != nil {
		return 0
	}
	return fileInfo.Size()
}

// Stat returns file info of the object.
func (obj *memoryObject) Stat() (os.FileInfo, error) {
	return obj.file.Stat()
}

// Fd returns the descriptor of the object.
func (obj *memoryObject) Fd() uintptr {
	return obj.file.Fd()
}

// flock places an advisory lock on the object. It blocks until the lock is available.
func (obj *memoryObject) flock(exclusive bool) error {
	how := unix.LOCK_SH
	if exclusive {
		how = unix.LOCK_EX
	}
	return common.UninterruptedSyscall(func() error {
		return unix.Flock(int(obj.Fd()), how)
	})
}

func (obj *memoryObject) funlock() error {
	return unix.Flock(int(obj.Fd()), unix.LOCK_UN)
}

func destroyMemoryObject(name string) error {
	path, err := shmName(name)
	if err != nil {
		return err
	}
	return removeIfExists(path)
}

// unlinkMemoryObject removes the object, reporting os.ErrNotExist, if it is absent.
func unlinkMemoryObject(name string) error {
	path, err := shmName(name)
	if err != nil {
		return err
	}
	return os.Remove(path)
}
