// Copyright 2016 Aleksandr Demakin. All rights reserved.

package sync

import (
	"sync/atomic"
	"unsafe"
)

// lwBinarySema is a binary semaphore operating on a uint32 memory cell.
// The cell holds 0 or 1. post moves it to 1, a successful wait moves it from 1 to 0.
// actual wait/wake must be implemented by a waitWaker object.
type lwBinarySema struct {
	state *uint32
	ww    waitWaker
}

func newLightweightBinarySema(state unsafe.Pointer, ww waitWaker) *lwBinarySema {
	return &lwBinarySema{state: (*uint32)(state), ww: ww}
}

func (s *lwBinarySema) init(value uint32) {
	if value > 1 {
		value = 1
	}
	atomic.StoreUint32(s.state, value)
}

func (s *lwBinarySema) value() uint32 {
	return atomic.LoadUint32(s.state)
}

func (s *lwBinarySema) tryWait() bool {
	return atomic.CompareAndSwapUint32(s.state, 1, 0)
}

// wait sleeps only while the cell is 0, so a post between the check and the sleep is never lost.
func (s *lwBinarySema) wait() error {
	for !s.tryWait() {
		if err := s.ww.wait(0); err != nil {
			return err
		}
	}
	return nil
}

func (s *lwBinarySema) post() error {
	atomic.StoreUint32(s.state, 1)
	_, err := s.ww.wake(1)
	return err
}
