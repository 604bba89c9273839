// Copyright 2016 Aleksandr Demakin. All rights reserved.

package helper

import (
	"os"
	"syscall"

	"github.com/nxgtw/go-ipc-sync/mmf"
	"github.com/nxgtw/go-ipc-sync/shm"

	"github.com/pkg/errors"
)

// SharedState is a writable mapping of a whole shared memory object.
type SharedState struct {
	*mmf.MemoryRegion
	// Created is true, if the object was created by this call.
	Created bool
	// ID identifies the object on the filesystem.
	// Two states with the same ID are mappings of the same object.
	ID ObjectID
}

// ObjectID is a device/inode pair of a shared memory object.
type ObjectID struct {
	Dev uint64
	Ino uint64
}

// CreateWritableRegion is a helper, which:
//   - creates a shared memory object with given parameters.
//   - creates a mapping for the entire region with mmf.MEM_READWRITE flag.
//   - closes memory object and returns memory region and a flag whether the object was created.
//
// If anything fails after the object was created, the object is destroyed.
func CreateWritableRegion(name string, flag int, perm os.FileMode, size int) (*SharedState, error) {
	obj, created, resultErr := shm.NewMemoryObjectSize(name, flag, perm, int64(size))
	if resultErr != nil {
		return nil, resultErr
	}
	var region *mmf.MemoryRegion
	defer func() {
		obj.Close()
		if resultErr == nil {
			return
		}
		if region != nil {
			region.Close()
		}
		if created {
			obj.Destroy()
		}
	}()
	var id ObjectID
	if id, resultErr = objectID(obj); resultErr != nil {
		return nil, resultErr
	}
	if region, resultErr = mmf.NewMemoryRegion(obj, mmf.MEM_READWRITE, 0, size); resultErr != nil {
		return nil, errors.Wrap(resultErr, "failed to create shm region")
	}
	return &SharedState{MemoryRegion: region, Created: created, ID: id}, nil
}

func objectID(obj *shm.MemoryObject) (ObjectID, error) {
	fi, err := obj.Stat()
	if err != nil {
		return ObjectID{}, errors.Wrap(err, "failed to stat shm object")
	}
	st, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		return ObjectID{}, errors.New("unsupported file info")
	}
	return ObjectID{Dev: uint64(st.Dev), Ino: uint64(st.Ino)}, nil
}
