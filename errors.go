// Copyright 2016 Aleksandr Demakin. All rights reserved.

package ipc

import (
	"os"
	"syscall"

	"github.com/pkg/errors"
)

// Kind is a class of ipc failures, which callers may want to handle differently.
type Kind int

// failure kinds.
const (
	KindUnknown Kind = iota
	// KindExists is returned, when an object is created exclusively, but it is already present.
	KindExists
	// KindNotFound is returned, when an object was never created or has already been removed.
	KindNotFound
	// KindBusy is returned by non-blocking acquisitions of a held resource.
	KindBusy
	// KindPermission means the caller does not own a lock or lacks OS permissions.
	KindPermission
	// KindExhausted means out of memory, space or descriptors.
	KindExhausted
	// KindMalformed means bad input: invalid names, non-numeric values, overlong lines.
	KindMalformed
	// KindClosed is returned when a released handle is used.
	KindClosed
)

var kindNames = [...]string{
	KindUnknown:    "unknown",
	KindExists:     "already exists",
	KindNotFound:   "not found",
	KindBusy:       "busy",
	KindPermission: "permission denied",
	KindExhausted:  "resource exhausted",
	KindMalformed:  "malformed input",
	KindClosed:     "closed",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return kindNames[KindUnknown]
	}
	return kindNames[k]
}

// sentinel values. errors.Is(err, ErrNotFound) is true for any *Error of the corresponding kind.
var (
	ErrExists     = &Error{Kind: KindExists}
	ErrNotFound   = &Error{Kind: KindNotFound}
	ErrBusy       = &Error{Kind: KindBusy}
	ErrPermission = &Error{Kind: KindPermission}
	ErrExhausted  = &Error{Kind: KindExhausted}
	ErrMalformed  = &Error{Kind: KindMalformed}
	ErrClosed     = &Error{Kind: KindClosed}
)

// Error describes a failed operation on a named object.
type Error struct {
	Op   string
	Name string
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	msg := e.Op
	if len(e.Name) > 0 {
		if len(msg) > 0 {
			msg += " "
		}
		msg += e.Name
	}
	reason := e.Kind.String()
	if e.Err != nil {
		reason = e.Err.Error()
	}
	if len(msg) == 0 {
		return reason
	}
	return msg + ": " + reason
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Cause is to satisfy github.com/pkg/errors causer.
func (e *Error) Cause() error {
	return e.Err
}

// Is reports whether target is a sentinel of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Name == "" && t.Err == nil && t.Kind == e.Kind
}

// NewError classifies err and returns it as *Error of the corresponding kind.
// It returns nil for a nil err. Already classified errors keep their kind.
func NewError(op, name string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Name: name, Kind: KindOf(err), Err: err}
}

// NewKindError returns an error of the given kind with a formatted reason.
func NewKindError(op, name string, kind Kind, format string, args ...interface{}) error {
	return &Error{Op: op, Name: name, Kind: kind, Err: errors.Errorf(format, args...)}
}

// KindOf returns the kind of err, looking through wrapped errors and os-level error codes.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var ipcErr *Error
	if errors.As(err, &ipcErr) && ipcErr.Kind != KindUnknown {
		return ipcErr.Kind
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return kindFromErrno(errno)
	}
	switch {
	case os.IsExist(err):
		return KindExists
	case os.IsNotExist(err):
		return KindNotFound
	case os.IsPermission(err):
		return KindPermission
	}
	return KindUnknown
}

func kindFromErrno(errno syscall.Errno) Kind {
	switch errno {
	case syscall.EEXIST:
		return KindExists
	case syscall.ENOENT:
		return KindNotFound
	case syscall.EBUSY, syscall.EAGAIN:
		return KindBusy
	case syscall.EPERM, syscall.EACCES:
		return KindPermission
	case syscall.ENOMEM, syscall.ENOSPC, syscall.EMFILE, syscall.ENFILE:
		return KindExhausted
	case syscall.EINVAL, syscall.ENAMETOOLONG:
		return KindMalformed
	}
	return KindUnknown
}

// IsExist returns true, if err means that an object already exists.
func IsExist(err error) bool { return KindOf(err) == KindExists }

// IsNotFound returns true, if err means that an object does not exist.
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

// IsBusy returns true, if a non-blocking acquisition failed.
func IsBusy(err error) bool { return KindOf(err) == KindBusy }

// IsPermission returns true for ownership and access violations.
func IsPermission(err error) bool { return KindOf(err) == KindPermission }

// IsExhausted returns true, if the system is out of some resource.
func IsExhausted(err error) bool { return KindOf(err) == KindExhausted }
