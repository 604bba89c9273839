// Copyright 2016 Aleksandr Demakin. All rights reserved.

package common

import (
	"os"
	"syscall"

	"github.com/pkg/errors"
)

const openOrCreateAttempts = 16

// OpenOrCreate performs open, create, or open-or-create operation depending on the flag.
// creator is called with create=true to create an object exclusively,
// and with create=false to open an existing one.
// For os.O_CREATE without os.O_EXCL it retries, until either operation succeeds,
// as the object can be created or removed by another process in between.
// It returns true, if the object was created.
func OpenOrCreate(creator func(create bool) error, flag int) (bool, error) {
	flag &= os.O_CREATE | os.O_EXCL
	switch flag {
	case 0:
		return false, creator(false)
	case os.O_CREATE | os.O_EXCL:
		if err := creator(true); err != nil {
			return false, err
		}
		return true, nil
	case os.O_CREATE:
		var err error
		for attempt := 0; attempt < openOrCreateAttempts; attempt++ {
			if err = creator(true); !os.IsExist(err) {
				return err == nil, err
			}
			if err = creator(false); !os.IsNotExist(err) {
				return false, err
			}
		}
		return false, err
	default:
		return false, errors.New("invalid open flags")
	}
}

// EnsureOpenFlags returns an error, if flag contains anything except os.O_CREATE and os.O_EXCL.
func EnsureOpenFlags(flag int) error {
	if flag & ^(os.O_CREATE|os.O_EXCL) != 0 {
		return errors.New("only os.O_CREATE and os.O_EXCL are allowed")
	}
	if flag&os.O_EXCL != 0 && flag&os.O_CREATE == 0 {
		return errors.New("os.O_EXCL requires os.O_CREATE")
	}
	return nil
}

// SyscallErrHasCode returns true, if err is an os.SyscallError
// or a plain errno with the given code.
func SyscallErrHasCode(err error, code syscall.Errno) bool {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == code
	}
	return false
}
