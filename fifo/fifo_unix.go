// Copyright 2015 Aleksandr Demakin. All rights reserved.

//go:build linux
// +build linux

package fifo

import (
	"os"
	"strings"

	ipc "github.com/nxgtw/go-ipc-sync"
	"github.com/nxgtw/go-ipc-sync/internal/common"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

const (
	// O_NONBLOCK flag makes Fifo open operation nonblocking.
	O_NONBLOCK = unix.O_NONBLOCK
)

type fifo struct {
	file *os.File
}

func newFifo(name string, flag int, perm os.FileMode) (*fifo, error) {
	path := Path(name)
	if err := checkAccessMode(flag); err != nil {
		return nil, ipc.NewError("mkfifo", path, err)
	}
	if flag&os.O_CREATE != 0 {
		_, err := common.OpenOrCreate(func(create bool) error {
			if create {
				return unix.Mkfifo(path, uint32(perm.Perm()))
			}
			_, err := os.Stat(path)
			return err
		}, flag)
		if err != nil {
			return nil, ipc.NewError("mkfifo", path, err)
		}
	}
	osFlag := flag & (os.O_RDONLY | os.O_WRONLY | O_NONBLOCK)
	file, err := os.OpenFile(path, osFlag, perm)
	if err != nil {
		return nil, ipc.NewError("open", path, err)
	}
	return &fifo{file: file}, nil
}

func (f *fifo) Read(b []byte) (n int, err error) {
	return f.file.Read(b)
}

func (f *fifo) Write(b []byte) (n int, err error) {
	return f.file.Write(b)
}

// Close closes the object.
func (f *fifo) Close() error {
	return f.file.Close()
}

// Destroy permanently removes the FIFO, closing it first.
func (f *fifo) Destroy() error {
	if err := f.file.Close(); err != nil {
		return ipc.NewError("close", f.file.Name(), err)
	}
	if err := os.Remove(f.file.Name()); err != nil {
		return ipc.NewError("remove", f.file.Name(), err)
	}
	return nil
}

func destroyFifo(name string) error {
	path := Path(name)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return ipc.NewError("remove", path, err)
	}
	return nil
}

func checkAccessMode(flag int) error {
	switch flag & (os.O_RDONLY | os.O_WRONLY | os.O_RDWR) {
	case os.O_RDONLY, os.O_WRONLY:
	default:
		// open(2) says "The result is undefined if this flag is applied to a FIFO."
		return &ipc.Error{Kind: ipc.KindMalformed, Err: errors.New("a fifo must be opened either for reading or for writing")}
	}
	if flag&os.O_EXCL != 0 && flag&os.O_CREATE == 0 {
		return &ipc.Error{Kind: ipc.KindMalformed, Err: errors.New("os.O_EXCL requires os.O_CREATE")}
	}
	return nil
}

// Path returns full path for the fifo.
// If its name contains '/' ('/tmp/fifo', './fifo'), it is used as is.
// If only a file name was passed, the pipe is placed in /tmp.
func Path(name string) string {
	if strings.Contains(name, "/") {
		return name
	}
	return "/tmp/" + name
}
