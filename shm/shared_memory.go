// Copyright 2015 Aleksandr Demakin. All rights reserved.

package shm

import (
	"os"
	"runtime"

	ipc "github.com/nxgtw/go-ipc-sync"
	"github.com/nxgtw/go-ipc-sync/internal/common"

	"github.com/pkg/errors"
)

// MemoryObject represents an object which can be used to
// map shared memory regions into the process' address space.
type MemoryObject struct {
	*memoryObject
}

// NewMemoryObject creates a new shared memory object.
//
//	name - a name of the object. should not contain '/' and exceed 255 symbols.
//	flag - flag is a combination of open flags from 'os' package.
//	perm - file's mode and permission bits.
//
// Errors are of *ipc.Error type, so their kind can be checked with ipc.KindOf.
func NewMemoryObject(name string, flag int, perm os.FileMode) (*MemoryObject, error) {
	impl, err := newMemoryObject(name, flag, perm)
	if err != nil {
		return nil, ipc.NewError("shm_open", name, err)
	}
	return wrapMemoryObject(impl), nil
}

// NewMemoryObjectSize opens or creates a shared memory object with the given name.
// If the object was created or is smaller than size, it is truncated to size.
// It never shrinks an existing object.
//
//	flag - a combination of os.O_CREATE and os.O_EXCL. the object is always opened for reading and writing.
//
// It returns the object and a flag, whether it was created.
func NewMemoryObjectSize(name string, flag int, perm os.FileMode, size int64) (*MemoryObject, bool, error) {
	if err := common.EnsureOpenFlags(flag); err != nil {
		return nil, false, ipc.NewKindError("shm_open", name, ipc.KindMalformed, "%v", err)
	}
	var impl *memoryObject
	creator := func(create bool) error {
		var err error
		creatorFlag := os.O_RDWR
		if create {
			creatorFlag |= os.O_CREATE | os.O_EXCL
		}
		impl, err = newMemoryObject(name, creatorFlag, perm)
		return err
	}
	created, err := common.OpenOrCreate(creator, flag)
	if err != nil {
		return nil, false, ipc.NewError("shm_open", name, err)
	}
	obj := wrapMemoryObject(impl)
	if current := obj.Size(); created || current < size {
		if err = ensureSpace(size - current); err == nil {
			err = obj.Truncate(size)
		}
		if err != nil {
			obj.Close()
			if created {
				obj.Destroy()
			}
			return nil, false, ipc.NewError("ftruncate", name, err)
		}
	}
	return obj, created, nil
}

func wrapMemoryObject(impl *memoryObject) *MemoryObject {
	runtime.SetFinalizer(impl, func(memObject *memoryObject) {
		memObject.Close()
	})
	return &MemoryObject{impl}
}

// DestroyMemoryObject permanently removes given memory object.
// It is not an error, if the object does not exist.
func DestroyMemoryObject(name string) error {
	return errors.Wrap(destroyMemoryObject(name), "failed to destroy shm object")
}
