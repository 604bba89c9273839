// Copyright 2015 Aleksandr Demakin. All rights reserved.

package shm

import (
	"github.com/nxgtw/go-ipc-sync/mmf"
)

// this is to ensure, that all implementations of shm-related structs
// satisfy the same minimal interface.
var (
	_ iSharedMemoryObject = (*MemoryObject)(nil)
	_ iSharedMemoryRegion = (*mmf.MemoryRegion)(nil)
)

type iSharedMemoryObject interface {
	Name() string
	Size() int64
	Truncate(size int64) error
	Close() error
	Destroy() error
	mmf.Mappable
}

type iSharedMemoryRegion interface {
	Data() []byte
	Size() int
	Flush(async bool) error
	Close() error
}

func newReadOnlyRegion(obj *MemoryObject, size int) (*mmf.MemoryRegion, error) {
	return mmf.NewMemoryRegion(obj, mmf.MEM_READ_ONLY, 0, size)
}
