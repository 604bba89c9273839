// Copyright 2015 Aleksandr Demakin. All rights reserved.

package mmf

import (
	"io"
	"os"
	"runtime"
	"sync"

	ipc "github.com/nxgtw/go-ipc-sync"

	"github.com/pkg/errors"
)

// memory region modes.
const (
	MEM_READ_ONLY = 0x00000001
	MEM_READWRITE = 0x00000004
)

var (
	mmapOffsetMultiple int64
)

// Mappable is an object, which can return a handle,
// that can be used as a file descriptor for mmap.
type Mappable interface {
	Fd() uintptr
}

// MemoryRegion is a mmapped area of a memory object.
// The mapping belongs to the region only. After Close all accessors
// return an error of ipc.KindClosed, so the unmapped memory is never touched.
// The internal object has a finalizer set, so an unreachable region is unmapped during the gc.
type MemoryRegion struct {
	mut  sync.RWMutex
	impl *memoryRegion
}

// NewMemoryRegion creates a new memory region.
//
//	obj - an object to mmap.
//	mode - open mode. see MEM_* constants.
//	offset - offset in bytes from the beginning of the mmaped file.
//	size - mapping size. 0 means the entire object starting from offset.
func NewMemoryRegion(obj Mappable, mode int, offset int64, size int) (*MemoryRegion, error) {
	impl, err := newMemoryRegion(obj, mode, offset, size)
	if err != nil {
		return nil, err
	}
	runtime.SetFinalizer(impl, func(region *memoryRegion) {
		region.Close()
	})
	return &MemoryRegion{impl: impl}, nil
}

// Close unmaps the region so that it cannot be longer used.
// Closing a closed region is a no-op.
func (region *MemoryRegion) Close() error {
	region.mut.Lock()
	defer region.mut.Unlock()
	if region.impl == nil {
		return nil
	}
	impl := region.impl
	region.impl = nil
	runtime.SetFinalizer(impl, nil)
	return impl.Close()
}

// Data returns region's mapped data, or nil if the region was closed.
// The slice must not be used after Close. Prefer ReadAt/WriteAt or region readers/writers.
func (region *MemoryRegion) Data() []byte {
	region.mut.RLock()
	defer region.mut.RUnlock()
	if region.impl == nil {
		return nil
	}
	return region.impl.Data()
}

// Flush syncs mapped content with the file data.
func (region *MemoryRegion) Flush(async bool) error {
	region.mut.RLock()
	defer region.mut.RUnlock()
	if region.impl == nil {
		return errRegionClosed("flush")
	}
	return region.impl.Flush(async)
}

// Size returns mapping size. It is 0 for a closed region.
func (region *MemoryRegion) Size() int {
	region.mut.RLock()
	defer region.mut.RUnlock()
	if region.impl == nil {
		return 0
	}
	return region.impl.Size()
}

// ReadAt is to implement io.ReaderAt.
func (region *MemoryRegion) ReadAt(p []byte, off int64) (n int, err error) {
	region.mut.RLock()
	defer region.mut.RUnlock()
	if region.impl == nil {
		return 0, errRegionClosed("read")
	}
	data := region.impl.Data()
	if off < 0 {
		return 0, errors.New("negative offset")
	}
	if off >= int64(len(data)) {
		return 0, io.EOF
	}
	n = copy(p, data[off:])
	if n < len(p) {
		err = io.EOF
	}
	return
}

// WriteAt is to implement io.WriterAt.
// If p does not fit, WriteAt writes as much as possible and returns io.EOF.
func (region *MemoryRegion) WriteAt(p []byte, off int64) (n int, err error) {
	region.mut.RLock()
	defer region.mut.RUnlock()
	if region.impl == nil {
		return 0, errRegionClosed("write")
	}
	data := region.impl.Data()
	if off < 0 {
		return 0, errors.New("negative offset")
	}
	if off < int64(len(data)) {
		n = copy(data[off:], p)
	}
	if n < len(p) {
		err = io.EOF
	}
	return
}

func errRegionClosed(op string) error {
	return &ipc.Error{Op: op, Name: "memory region", Kind: ipc.KindClosed}
}

// calcMmapOffsetFixup returns a value X,
// so that offset - X is a valid mmap offset.
// typically the value of the fixup is a memory page size.
func calcMmapOffsetFixup(offset int64) int64 {
	return (offset - (offset/mmapOffsetMultiple)*mmapOffsetMultiple)
}

type fileInfoGetter interface {
	Stat() (os.FileInfo, error)
}

type sizer interface {
	Size() int64
}

func fileSizeFromFd(f Mappable) (int64, error) {
	if f.Fd() == ^uintptr(0) {
		return 0, nil
	}
	switch obj := f.(type) {
	case fileInfoGetter:
		fi, err := obj.Stat()
		if err != nil {
			return 0, err
		}
		return fi.Size(), nil
	case sizer:
		return obj.Size(), nil
	}
	return 0, nil
}

func checkMmapSize(f Mappable, offset int64, size int) (int, error) {
	if size == 0 {
		if f.Fd() == ^uintptr(0) {
			return 0, errors.New("must provide a valid file size")
		}
		sz, err := fileSizeFromFd(f)
		if err != nil {
			return 0, err
		}
		size = int(sz - offset)
	}
	if size <= 0 {
		return 0, errors.New("invalid mapping length")
	}
	return size, nil
}
