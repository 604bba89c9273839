// Copyright 2015 Aleksandr Demakin. All rights reserved.

// Package sync implements an owner-checked mutex for cooperating actors
// and a named binary semaphore, which can be used as a rendezvous between unrelated processes.
package sync

import (
	"sync/atomic"
)

// ActorID identifies a logical thread of control, which may own a Mutex.
// The zero value is not a valid actor.
type ActorID uint64

var lastActorID uint64

// NewActorID returns a new, process-unique actor identifier.
func NewActorID() ActorID {
	return ActorID(atomic.AddUint64(&lastActorID, 1))
}
