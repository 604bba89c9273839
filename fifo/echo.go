// Copyright 2016 Aleksandr Demakin. All rights reserved.

//go:build linux
// +build linux

package fifo

import (
	"io"
	"os"
	"strconv"

	ipc "github.com/nxgtw/go-ipc-sync"
	"github.com/nxgtw/go-ipc-sync/internal/metrics"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/valyala/bytebufferpool"
	"go.uber.org/zap"
)

// DefaultChunk is the maximum number of bytes echoed as one message.
const DefaultChunk = 49

// Echo reads r by chunks of at most chunk bytes, and writes every chunk to w as
//
//	Incoming message (<n>): <bytes>
//
// It returns the number of bytes read. io.EOF is not an error.
func Echo(r io.Reader, w io.Writer, chunk int) (int64, error) {
	return echo(r, w, chunk, nil)
}

func echo(r io.Reader, w io.Writer, chunk int, onMessage func(n int)) (int64, error) {
	if chunk <= 0 {
		chunk = DefaultChunk
	}
	data := make([]byte, chunk)
	var total int64
	for {
		n, err := r.Read(data)
		if n > 0 {
			total += int64(n)
			if werr := writeMessage(w, data[:n]); werr != nil {
				return total, errors.Wrap(werr, "failed to write a message")
			}
			if onMessage != nil {
				onMessage(n)
			}
		}
		if err == io.EOF {
			return total, nil
		}
		if err != nil {
			return total, err
		}
	}
}

func writeMessage(w io.Writer, data []byte) error {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	buf.WriteString("Incoming message (")
	buf.B = strconv.AppendInt(buf.B, int64(len(data)), 10)
	buf.WriteString("): ")
	buf.Write(data)
	buf.WriteByte('\n')
	_, err := w.Write(buf.B)
	return err
}

type readerMetrics struct {
	messages prometheus.Counter
	received prometheus.Counter
}

func newReaderMetrics(reg prometheus.Registerer) readerMetrics {
	return readerMetrics{
		messages: metrics.Counter(reg, "fifo", "messages_total", "Number of echoed messages."),
		received: metrics.Counter(reg, "fifo", "bytes_total", "Number of bytes read from the pipe."),
	}
}

// ReadError is returned by Reader.Run, if the pipe was created and opened, but reading it failed.
// Any other error means the pipe could not be created or opened.
type ReadError struct {
	// N is the number of bytes echoed before the failure.
	N   int64
	Err error
}

func (e *ReadError) Error() string {
	return "failed to read the pipe: " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *ReadError) Unwrap() error {
	return e.Err
}

// Reader creates a named pipe and echoes all the data written into it.
type Reader struct {
	// Name is the pipe name. See New for details.
	Name string
	Perm os.FileMode
	// Chunk is the maximum size of one message. DefaultChunk, if not set.
	Chunk      int
	Out        io.Writer
	Log        *zap.Logger
	Registerer prometheus.Registerer
}

// Run creates the pipe exclusively, and blocks until a writer opens it.
// Then it echoes the data to Out, until the last writer closes the pipe.
// The pipe is removed before Run returns, if it was created.
// Failures after the pipe was opened are returned as *ReadError.
func (r *Reader) Run() (int64, error) {
	log := r.Log
	if log == nil {
		log = zap.NewNop()
	}
	out := r.Out
	if out == nil {
		out = io.Discard
	}
	m := newReaderMetrics(r.Registerer)
	path := Path(r.Name)
	log = log.With(zap.String("fifo", path))

	f, err := New(path, os.O_CREATE|os.O_EXCL|os.O_RDONLY, r.Perm)
	if err != nil {
		if ipc.IsExist(err) {
			// the pipe is not ours, so it must not be removed.
			return 0, err
		}
		Destroy(path)
		return 0, err
	}
	defer func() {
		if err := f.Destroy(); err != nil {
			log.Warn("failed to remove the pipe", zap.Error(err))
		}
	}()
	log.Info("pipe created and opened")
	total, err := echo(f, out, r.Chunk, func(n int) {
		m.messages.Inc()
		m.received.Add(float64(n))
	})
	if err != nil {
		log.Info("reading stopped", zap.Int64("bytes", total), zap.Error(err))
		return total, &ReadError{N: total, Err: err}
	}
	log.Info("writer closed the pipe", zap.Int64("bytes", total))
	return total, nil
}
