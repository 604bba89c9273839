// Copyright 2015 Aleksandr Demakin. All rights reserved.

//go:build linux
// +build linux

package shm

import (
	"os"
	"strings"
	"sync"

	ipc "github.com/nxgtw/go-ipc-sync"

	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v3/disk"
	"golang.org/x/sys/unix"
)

const (
	maxNameLen     = 255
	defaultShmPath = "/dev/shm/"
	tmpfsMagic     = 0x01021994
	ramfsMagic     = 0x858458f6
)

var (
	shmPathOnce sync.Once
	shmPath     string
)

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// shmName returns the path of the object's file. Leading slashes are ignored, as in shm_open(3).
func shmName(name string) (string, error) {
	name = strings.TrimLeft(name, "/")
	if len(name) == 0 || len(name) >= maxNameLen || strings.Contains(name, "/") {
		return "", ipc.NewKindError("shm name", name, ipc.KindMalformed, "name must be 1..%d symbols without '/'", maxNameLen-1)
	}
	dir, err := shmDirectory()
	if err != nil {
		return "", errors.Wrap(err, "error building shared memory name")
	}
	return dir + name, nil
}

func shmDirectory() (string, error) {
	shmPathOnce.Do(func() {
		if isShmDir(defaultShmPath) {
			shmPath = defaultShmPath
			return
		}
		parts, err := disk.Partitions(true)
		if err != nil {
			return
		}
		shmPath = shmDirFromPartitions(parts, isShmDir)
	})
	if len(shmPath) == 0 {
		return "", errors.New("error locating the shared memory filesystem")
	}
	return shmPath, nil
}

// shmDirFromPartitions returns the first tmpfs mountpoint accepted by check, with a trailing slash.
func shmDirFromPartitions(parts []disk.PartitionStat, check func(string) bool) string {
	for _, p := range parts {
		if p.Fstype != "tmpfs" && p.Fstype != "shm" {
			continue
		}
		if check(p.Mountpoint) {
			return strings.TrimSuffix(p.Mountpoint, "/") + "/"
		}
	}
	return ""
}

func isShmDir(path string) bool {
	var statfs unix.Statfs_t
	if len(path) == 0 || unix.Statfs(path, &statfs) != nil {
		return false
	}
	fsType := int64(statfs.Type)
	return fsType == tmpfsMagic || fsType == ramfsMagic
}
