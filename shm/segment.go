// Copyright 2016 Aleksandr Demakin. All rights reserved.

package shm

import (
	"bufio"
	"bytes"
	"io"
	"os"

	ipc "github.com/nxgtw/go-ipc-sync"
	"github.com/nxgtw/go-ipc-sync/internal/metrics"
	"github.com/nxgtw/go-ipc-sync/mmf"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const (
	// DefaultSegmentCapacity is the number of content bytes a segment holds by default.
	DefaultSegmentCapacity = 50
	// DefaultSegmentPerm is the permission of newly created segments.
	DefaultSegmentPerm os.FileMode = 0777

	segmentTerminator = byte(0)
)

// SegmentConfig describes a named text segment.
type SegmentConfig struct {
	// Name of the shared memory object.
	Name string
	// Capacity is the maximum content length. One more byte is reserved for the terminator.
	Capacity int
	// Perm is used, when the object is created.
	Perm os.FileMode
	// Serialize makes writers take an exclusive flock, and readers a shared one.
	// Without it concurrent writers race, and the resulting content is unspecified.
	Serialize bool
}

// Segment is a named, persistent, fixed-capacity text area in shared memory.
// The content outlives the process, and can be read by other processes until Unlink is called.
// The model is single-writer, last-write-wins. Unless SegmentConfig.Serialize is set,
// nothing guards concurrent writers: racing Create/Write calls interleave in an unspecified way.
// Segment itself holds no descriptors or mappings between calls.
type Segment struct {
	cfg       SegmentConfig
	log       *zap.Logger
	writes    prometheus.Counter
	reads     prometheus.Counter
	truncated prometheus.Counter
}

// NewSegment validates cfg and returns a segment accessor.
// log and reg may be nil.
func NewSegment(cfg SegmentConfig, log *zap.Logger, reg prometheus.Registerer) (*Segment, error) {
	if cfg.Capacity == 0 {
		cfg.Capacity = DefaultSegmentCapacity
	}
	if cfg.Perm == 0 {
		cfg.Perm = DefaultSegmentPerm
	}
	if cfg.Capacity < 0 {
		return nil, ipc.NewKindError("segment", cfg.Name, ipc.KindMalformed, "invalid capacity %d", cfg.Capacity)
	}
	if _, err := shmName(cfg.Name); err != nil {
		return nil, ipc.NewError("segment", cfg.Name, err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Segment{
		cfg:       cfg,
		log:       log.With(zap.String("segment", cfg.Name)),
		writes:    metrics.Counter(reg, "shm", "segment_writes_total", "Number of successful segment writes."),
		reads:     metrics.Counter(reg, "shm", "segment_reads_total", "Number of successful segment reads."),
		truncated: metrics.Counter(reg, "shm", "segment_truncated_total", "Number of writes truncated to the segment capacity."),
	}, nil
}

// Name returns segment's name.
func (s *Segment) Name() string {
	return s.cfg.Name
}

// Capacity returns the maximum content length.
func (s *Segment) Capacity() int {
	return s.cfg.Capacity
}

// Create opens or creates the segment and stores data in it.
// data longer than the capacity is truncated.
// It returns the number of stored bytes, which is less than len(data) for truncated input.
func (s *Segment) Create(data []byte) (int, error) {
	return s.store("create", os.O_CREATE, data)
}

// Write stores data in an existing segment.
// It fails with ipc.ErrNotFound, if the segment was never created or was unlinked.
func (s *Segment) Write(data []byte) (int, error) {
	return s.store("write", 0, data)
}

func (s *Segment) store(op string, flag int, data []byte) (stored int, err error) {
	obj, created, err := NewMemoryObjectSize(s.cfg.Name, flag, s.cfg.Perm, int64(s.cfg.Capacity+1))
	if err != nil {
		return 0, ipc.NewError(op, s.cfg.Name, err)
	}
	defer obj.Close()
	if s.cfg.Serialize {
		if err = obj.flock(true); err != nil {
			return 0, ipc.NewError("flock", s.cfg.Name, err)
		}
		defer obj.funlock()
	}
	region, err := mmf.NewMemoryRegion(obj, mmf.MEM_READWRITE, 0, s.cfg.Capacity+1)
	if err != nil {
		return 0, ipc.NewError("mmap", s.cfg.Name, err)
	}
	defer region.Close()
	stored = len(data)
	if stored > s.cfg.Capacity {
		stored = s.cfg.Capacity
		s.truncated.Inc()
		s.log.Warn("content truncated", zap.Int("length", len(data)), zap.Int("capacity", s.cfg.Capacity))
	}
	w := mmf.NewMemoryRegionWriter(region)
	if _, err = w.Write(data[:stored]); err == nil {
		_, err = w.Write([]byte{segmentTerminator})
	}
	if err != nil {
		return 0, ipc.NewError(op, s.cfg.Name, err)
	}
	if err = region.Flush(false); err != nil {
		return 0, ipc.NewError("msync", s.cfg.Name, err)
	}
	s.writes.Inc()
	s.log.Debug("segment written", zap.String("op", op), zap.Bool("created", created), zap.Int("stored", stored))
	return stored, nil
}

// Read returns segment's content up to the terminator.
// It fails with ipc.ErrNotFound, if the segment was never created or was unlinked.
func (s *Segment) Read() ([]byte, error) {
	obj, err := NewMemoryObject(s.cfg.Name, os.O_RDONLY, s.cfg.Perm)
	if err != nil {
		return nil, ipc.NewError("read", s.cfg.Name, err)
	}
	defer obj.Close()
	if s.cfg.Serialize {
		if err = obj.flock(false); err != nil {
			return nil, ipc.NewError("flock", s.cfg.Name, err)
		}
		defer obj.funlock()
	}
	size := obj.Size()
	if size > int64(s.cfg.Capacity+1) {
		size = int64(s.cfg.Capacity + 1)
	}
	if size == 0 {
		return []byte{}, nil
	}
	region, err := newReadOnlyRegion(obj, int(size))
	if err != nil {
		return nil, ipc.NewError("mmap", s.cfg.Name, err)
	}
	defer region.Close()
	content, err := bufio.NewReaderSize(mmf.NewMemoryRegionReader(region), int(size)).ReadBytes(segmentTerminator)
	if err != nil && err != io.EOF {
		return nil, ipc.NewError("read", s.cfg.Name, err)
	}
	content = bytes.TrimSuffix(content, []byte{segmentTerminator})
	s.reads.Inc()
	return content, nil
}

// Unlink removes the segment's name. Processes, which have it mapped, keep their mappings.
// Subsequent Read and Write calls fail with ipc.ErrNotFound until Create is called again.
func (s *Segment) Unlink() error {
	if err := unlinkMemoryObject(s.cfg.Name); err != nil {
		return ipc.NewError("unlink", s.cfg.Name, err)
	}
	s.log.Debug("segment unlinked")
	return nil
}
