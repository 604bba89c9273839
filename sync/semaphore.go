// Copyright 2016 Aleksandr Demakin. All rights reserved.

//go:build linux
// +build linux

package sync

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"unsafe"

	ipc "github.com/nxgtw/go-ipc-sync"
	"github.com/nxgtw/go-ipc-sync/internal/helper"
	"github.com/nxgtw/go-ipc-sync/internal/metrics"
	"github.com/nxgtw/go-ipc-sync/shm"

	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const (
	semaStateSize = 4
	semaPrefix    = "sem."
)

// mappings of semaphores opened by this process. several handles of the same object share one mapping.
var openedSemas = cmap.New[*semaState]()

type semaState struct {
	key   string
	state *helper.SharedState
	lws   *lwBinarySema
	refs  int32
}

// Semaphore is a named binary semaphore.
// Its value is 0 or 1, and it lives in the shm filesystem, so
// unrelated processes can open it by name. The semaphore outlives all the processes,
// which use it, until it is destroyed with Destroy or DestroySemaphore.
// Wait blocks while the value is 0, and atomically resets it from 1 to 0.
// Post sets the value to 1 and wakes at most one waiter.
// There is no ordering between several waiters.
type Semaphore struct {
	name   string
	st     *semaState
	closed int32
	log    *zap.Logger
	posts  prometheus.Counter
	waits  prometheus.Counter
	busy   prometheus.Counter
}

// NewSemaphore opens or creates a named binary semaphore.
//
//	name - object name. a leading '/' is ignored.
//	flag - a combination of os.O_CREATE and os.O_EXCL:
//		os.O_CREATE - open or create.
//		os.O_CREATE|os.O_EXCL - create; an error of ipc.KindExists if the semaphore exists.
//		0 - open only; an error of ipc.KindNotFound if the semaphore does not exist.
//	perm - object's permission bits.
//	initial - initial value (0 or 1). it is set only if the semaphore was created.
func NewSemaphore(name string, flag int, perm os.FileMode, initial int, opts ...Option) (*Semaphore, error) {
	if initial < 0 || initial > 1 {
		return nil, ipc.NewKindError("sem_open", name, ipc.KindMalformed, "invalid initial value %d", initial)
	}
	o := makeOptions(opts)
	shared, err := helper.CreateWritableRegion(semaName(name), flag, perm, semaStateSize)
	if err != nil {
		return nil, ipc.NewError("sem_open", name, err)
	}
	key := fmt.Sprintf("%d:%d", shared.ID.Dev, shared.ID.Ino)
	st := openedSemas.Upsert(key, nil, func(exist bool, valueInMap, _ *semaState) *semaState {
		if exist {
			atomic.AddInt32(&valueInMap.refs, 1)
			return valueInMap
		}
		ptr := unsafe.Pointer(&shared.Data()[0])
		return &semaState{
			key:   key,
			state: shared,
			lws:   newLightweightBinarySema(ptr, newSharedFutex(ptr)),
			refs:  1,
		}
	})
	if st.state != shared {
		shared.Close()
	}
	if shared.Created {
		st.lws.init(uint32(initial))
	}
	log := o.log.With(zap.String("semaphore", name))
	log.Debug("semaphore opened", zap.Bool("created", shared.Created), zap.Uint32("value", st.lws.value()))
	return &Semaphore{
		name:  name,
		st:    st,
		log:   log,
		posts: metrics.Counter(o.reg, "sem", "posts_total", "Number of semaphore posts."),
		waits: metrics.Counter(o.reg, "sem", "waits_total", "Number of completed semaphore waits."),
		busy:  metrics.Counter(o.reg, "sem", "trywait_busy_total", "Number of non-blocking waits, which found the semaphore taken."),
	}, nil
}

// Name returns the name of the semaphore.
func (s *Semaphore) Name() string {
	return s.name
}

// Wait blocks until the value becomes 1, and then atomically sets it to 0.
// There is no timeout.
func (s *Semaphore) Wait() error {
	if err := s.checkOpen("sem_wait"); err != nil {
		return err
	}
	if err := s.st.lws.wait(); err != nil {
		return ipc.NewError("sem_wait", s.name, err)
	}
	s.waits.Inc()
	return nil
}

// TryWait makes one attempt to take the semaphore.
// It returns an error of ipc.KindBusy, if the value is 0.
func (s *Semaphore) TryWait() error {
	if err := s.checkOpen("sem_trywait"); err != nil {
		return err
	}
	if !s.st.lws.tryWait() {
		s.busy.Inc()
		return &ipc.Error{Op: "sem_trywait", Name: s.name, Kind: ipc.KindBusy}
	}
	s.waits.Inc()
	return nil
}

// Post sets the value to 1, waking one waiter, if any.
// Without waiters the value stays 1 until the next Wait.
func (s *Semaphore) Post() error {
	if err := s.checkOpen("sem_post"); err != nil {
		return err
	}
	if err := s.st.lws.post(); err != nil {
		return ipc.NewError("sem_post", s.name, err)
	}
	s.posts.Inc()
	s.log.Debug("semaphore posted")
	return nil
}

// Value returns the current value of the semaphore.
func (s *Semaphore) Value() (int, error) {
	if err := s.checkOpen("sem_getvalue"); err != nil {
		return 0, err
	}
	return int(s.st.lws.value()), nil
}

// Close releases this handle. The semaphore itself is not removed.
// The mapping is released, when the last handle of this process for the same object is closed.
func (s *Semaphore) Close() error {
	if !atomic.CompareAndSwapInt32(&s.closed, 0, 1) {
		return nil
	}
	var last bool
	openedSemas.RemoveCb(s.st.key, func(key string, v *semaState, exists bool) bool {
		last = exists && v == s.st && atomic.AddInt32(&v.refs, -1) == 0
		return last
	})
	if !last {
		return nil
	}
	if err := s.st.state.Close(); err != nil {
		return ipc.NewError("sem_close", s.name, err)
	}
	return nil
}

// Destroy closes the handle and removes the semaphore permanently.
// Processes, which still have it opened, can use it, but it can't be opened by name anymore.
func (s *Semaphore) Destroy() error {
	if err := s.Close(); err != nil {
		return err
	}
	return DestroySemaphore(s.name)
}

func (s *Semaphore) checkOpen(op string) error {
	if atomic.LoadInt32(&s.closed) != 0 {
		return &ipc.Error{Op: op, Name: s.name, Kind: ipc.KindClosed}
	}
	return nil
}

// DestroySemaphore permanently removes a semaphore with the given name.
// It is not an error, if the semaphore does not exist.
func DestroySemaphore(name string) error {
	if err := shm.DestroyMemoryObject(semaName(name)); err != nil {
		return ipc.NewError("sem_unlink", name, errors.Cause(err))
	}
	return nil
}

func semaName(name string) string {
	return semaPrefix + strings.TrimLeft(name, "/")
}
