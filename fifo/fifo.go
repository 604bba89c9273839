// Copyright 2015 Aleksandr Demakin. All rights reserved.

package fifo

import (
	"io"
	"os"
)

// Fifo represents a First-In-First-Out object.
type Fifo interface {
	io.ReadWriter
	io.Closer
	Destroy() error
}

// New creates or opens a FIFO object.
//
//	name - object name. if it has no '/', the pipe is placed in /tmp.
//	flag - a combination of open flags from 'os' package along with O_NONBLOCK flag.
//		the access mode must be either os.O_RDONLY, or os.O_WRONLY.
//		os.O_CREATE and os.O_CREATE|os.O_EXCL create the pipe, if needed.
//	perm - object's permission bits.
//
// Opening a pipe for reading blocks until there is a writer, and vice versa,
// unless O_NONBLOCK is set.
func New(name string, flag int, perm os.FileMode) (Fifo, error) {
	return newFifo(name, flag, perm)
}

// Destroy permanently removes the FIFO. It is not an error, if it does not exist.
func Destroy(name string) error {
	return destroyFifo(name)
}
