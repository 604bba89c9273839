// Copyright 2016 Aleksandr Demakin. All rights reserved.

//go:build linux
// +build linux

package shm

import (
	ipc "github.com/nxgtw/go-ipc-sync"

	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v3/disk"
)

// ensureSpace checks, that the shm filesystem has at least 'need' free bytes.
// tmpfs does not reserve pages on ftruncate, so without this check
// a large object could be created, and then a write into its mapping would raise SIGBUS.
func ensureSpace(need int64) error {
	if need <= 0 {
		return nil
	}
	dir, err := shmDirectory()
	if err != nil {
		return err
	}
	usage, err := disk.Usage(dir)
	if err != nil {
		return errors.Wrap(err, "failed to get shm filesystem usage")
	}
	if usage.Free < uint64(need) {
		return ipc.NewKindError("", dir, ipc.KindExhausted, "%d bytes requested, %d available", need, usage.Free)
	}
	return nil
}
