// Copyright 2016 Aleksandr Demakin. All rights reserved.

// Package ipc provides named, kernel-visible synchronization primitives
// and the error model shared by its subpackages:
//
//	shm  - named shared memory objects and a fixed-capacity text segment
//	mmf  - bounded memory mapped regions
//	sync - an owner-checked mutex, a guarded counter with its actors,
//	       and a named binary semaphore used as a rendezvous
//	fifo - named pipes and a chunked echo reader
//
// Named objects outlive the processes that created them and are removed
// only by an explicit Destroy/Unlink call.
package ipc
