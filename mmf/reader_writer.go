// Copyright 2016 Aleksandr Demakin. All rights reserved.

package mmf

import (
	"io"
)

// MemoryRegionReader is a reader for safe operations over a memory region.
// It holds a reference to the region, so the former can't be gc'ed.
type MemoryRegionReader struct {
	region *MemoryRegion
	pos    int64
}

// NewMemoryRegionReader creates a new reader for the given region.
func NewMemoryRegionReader(region *MemoryRegion) *MemoryRegionReader {
	return &MemoryRegionReader{region: region}
}

// ReadAt is to implement io.ReaderAt.
func (r *MemoryRegionReader) ReadAt(p []byte, off int64) (n int, err error) {
	return r.region.ReadAt(p, off)
}

// Read is to implement io.Reader.
func (r *MemoryRegionReader) Read(p []byte) (n int, err error) {
	n, err = r.region.ReadAt(p, r.pos)
	r.pos += int64(n)
	if n > 0 && err == io.EOF {
		err = nil
	}
	return n, err
}

// MemoryRegionWriter is a writer for safe operations over a memory region.
// It holds a reference to the region, so the former can't be gc'ed.
type MemoryRegionWriter struct {
	region *MemoryRegion
	pos    int64
}

// NewMemoryRegionWriter creates a new writer for the given region.
func NewMemoryRegionWriter(region *MemoryRegion) *MemoryRegionWriter {
	return &MemoryRegionWriter{region: region}
}

// WriteAt is to implement io.WriterAt.
func (w *MemoryRegionWriter) WriteAt(p []byte, off int64) (n int, err error) {
	return w.region.WriteAt(p, off)
}

// Write is to implement io.Writer.
func (w *MemoryRegionWriter) Write(p []byte) (n int, err error) {
	n, err = w.WriteAt(p, w.pos)
	w.pos += int64(n)
	return n, err
}
