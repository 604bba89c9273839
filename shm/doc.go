// Copyright 2016 Aleksandr Demakin. All rights reserved.

// Package shm implements named shared memory objects.
// Objects are files on the shm tmpfs (usually /dev/shm), so they persist
// across process restarts until explicitly removed.
// Segment is a fixed-capacity, terminator-delimited text area built on top of them.
package shm
