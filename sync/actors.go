// Copyright 2016 Aleksandr Demakin. All rights reserved.

//go:build linux
// +build linux

package sync

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	ipc "github.com/nxgtw/go-ipc-sync"
	"github.com/nxgtw/go-ipc-sync/internal/metrics"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// default actor timings.
const (
	DefaultIncrementPause = 10 * time.Microsecond
	DefaultIncrementDwell = time.Second
	DefaultStartupHold    = 3 * time.Second
	DefaultMaxLineLen     = 32
)

// messages printed by the actors.
const (
	ResetPrompt      = "Enter the number and press 'Enter' to initialize the counter with new value anytime."
	ResetBusyMessage = "Counter is already locked by another actor.\nWaiting for the lock..."
	ResetFreeMessage = "You are on time! The counter was free."
)

type counterMetrics struct {
	increments prometheus.Counter
	resets     prometheus.Counter
	contended  prometheus.Counter
	rejected   prometheus.Counter
	value      prometheus.Gauge
}

func newCounterMetrics(reg prometheus.Registerer) counterMetrics {
	return counterMetrics{
		increments: metrics.Counter(reg, "counter", "increments_total", "Number of counter increments."),
		resets:     metrics.Counter(reg, "counter", "resets_total", "Number of counter resets."),
		contended:  metrics.Counter(reg, "counter", "reset_contended_total", "Number of resets, which found the counter locked."),
		rejected:   metrics.Counter(reg, "counter", "input_rejected_total", "Number of rejected input lines."),
		value:      metrics.Gauge(reg, "counter", "value", "Last observed counter value."),
	}
}

// Incrementer is an actor, which periodically increments a counter.
type Incrementer struct {
	// Counter is the handle used by the actor. Run releases it on return.
	Counter *CounterHandle
	// Pause is the unguarded pause between two increments.
	Pause time.Duration
	// Dwell is the time the lock is held after each increment.
	Dwell time.Duration
	// Limit stops the actor after so many increments. Zero means no limit.
	Limit int
	// Out receives every new value, one per line. Nil means no output.
	Out        io.Writer
	Log        *zap.Logger
	Registerer prometheus.Registerer
}

// Run increments the counter until ctx is done or Limit is reached.
func (inc *Incrementer) Run(ctx context.Context) error {
	defer inc.Counter.Release()
	log := loggerOrNop(inc.Log).With(zap.String("actor", "incrementer"))
	m := newCounterMetrics(inc.Registerer)
	id := NewActorID()
	for n := 0; inc.Limit == 0 || n < inc.Limit; n++ {
		if err := sleepCtx(ctx, inc.Pause); err != nil {
			return nil
		}
		if err := inc.Counter.Lock(id); err != nil {
			return errors.Wrap(err, "incrementer failed to lock")
		}
		value, err := inc.Counter.Increment(id)
		if err != nil {
			inc.Counter.Unlock(id)
			return errors.Wrap(err, "incrementer failed to increment")
		}
		m.increments.Inc()
		m.value.Set(float64(value))
		log.Debug("counter incremented", zap.Int("value", value))
		if inc.Out != nil {
			fmt.Fprintf(inc.Out, "%d\n", value)
		}
		sleepCtx(ctx, inc.Dwell)
		if err = inc.Counter.Unlock(id); err != nil {
			return errors.Wrap(err, "incrementer failed to unlock")
		}
	}
	return nil
}

// Resetter is an actor, which sets the counter to the values read from its input, one per line.
type Resetter struct {
	// Counter is the handle used by the actor. Run releases it on return.
	Counter *CounterHandle
	// StartupHold is the time the lock is held at startup, while the prompt is shown.
	StartupHold time.Duration
	// MaxLineLen is the maximum accepted input line length. Longer lines are reported and skipped.
	MaxLineLen int
	In         io.Reader
	Out        io.Writer
	Log        *zap.Logger
	Registerer prometheus.Registerer
}

// Run shows the prompt while holding the lock, and then processes input lines until EOF.
// A non-blocking lock attempt is made for every value; if the lock is busy, Run reports it and waits.
// Invalid lines are reported and ignored. Run returns nil on EOF or when ctx is done between lines.
func (r *Resetter) Run(ctx context.Context) error {
	defer r.Counter.Release()
	log := loggerOrNop(r.Log).With(zap.String("actor", "resetter"))
	m := newCounterMetrics(r.Registerer)
	out := r.Out
	if out == nil {
		out = io.Discard
	}
	maxLen := r.MaxLineLen
	if maxLen <= 0 {
		maxLen = DefaultMaxLineLen
	}
	id := NewActorID()
	if err := r.Counter.Lock(id); err != nil {
		return errors.Wrap(err, "resetter failed to lock")
	}
	fmt.Fprintln(out, ResetPrompt)
	sleepCtx(ctx, r.StartupHold)
	if err := r.Counter.Unlock(id); err != nil {
		return errors.Wrap(err, "resetter failed to unlock")
	}
	in := bufio.NewReader(r.In)
	for ctx.Err() == nil {
		line, err := readLine(in, maxLen)
		if err == io.EOF {
			log.Debug("input closed")
			return nil
		}
		if ipc.KindOf(err) == ipc.KindMalformed {
			m.rejected.Inc()
			log.Warn("input rejected", zap.Error(err))
			fmt.Fprintf(out, "Error: %v\n", err)
			continue
		}
		if err != nil {
			return errors.Wrap(err, "resetter failed to read input")
		}
		if len(line) == 0 {
			continue
		}
		value, err := parseValue(line)
		if err != nil {
			m.rejected.Inc()
			log.Warn("input rejected", zap.Error(err))
			fmt.Fprintf(out, "Error: %v\n", err)
			continue
		}
		if err = r.set(id, value, out, m); err != nil {
			return err
		}
		log.Info("counter reset", zap.Int("value", value))
	}
	return nil
}

func (r *Resetter) set(id ActorID, value int, out io.Writer, m counterMetrics) error {
	err := r.Counter.TryLock(id)
	switch {
	case err == nil:
		fmt.Fprintln(out, ResetFreeMessage)
	case ipc.IsBusy(err):
		m.contended.Inc()
		fmt.Fprintln(out, ResetBusyMessage)
		if err = r.Counter.Lock(id); err != nil {
			return errors.Wrap(err, "resetter failed to lock")
		}
	default:
		return errors.Wrap(err, "resetter failed to lock")
	}
	if err = r.Counter.Set(id, value); err != nil {
		r.Counter.Unlock(id)
		return errors.Wrap(err, "resetter failed to set the value")
	}
	m.resets.Inc()
	m.value.Set(float64(value))
	fmt.Fprintf(out, "New value for counter is %d\n", value)
	if err = r.Counter.Unlock(id); err != nil {
		return errors.Wrap(err, "resetter failed to unlock")
	}
	return nil
}

// readLine reads one line of at most maxLen bytes without the line terminator.
// Longer lines are consumed up to the terminator, and an error of ipc.KindMalformed is returned.
// The last line may have no terminator. io.EOF is returned only if there is no more input.
func readLine(r *bufio.Reader, maxLen int) (string, error) {
	var sb strings.Builder
	overlong := false
	for {
		b, err := r.ReadByte()
		if err == io.EOF {
			if sb.Len() == 0 && !overlong {
				return "", io.EOF
			}
			break
		}
		if err != nil {
			return "", err
		}
		if b == '\n' {
			break
		}
		if sb.Len() < maxLen {
			sb.WriteByte(b)
		} else {
			overlong = true
		}
	}
	if overlong {
		return "", ipc.NewKindError("read", "input", ipc.KindMalformed, "line is longer than %d bytes", maxLen)
	}
	return strings.TrimSuffix(sb.String(), "\r"), nil
}

func parseValue(line string) (int, error) {
	value, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil {
		return 0, ipc.NewKindError("parse", "input", ipc.KindMalformed, "%q is not a number", line)
	}
	return value, nil
}

// sleepCtx returns ctx.Err() if ctx is done before d elapses.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func loggerOrNop(log *zap.Logger) *zap.Logger {
	if log == nil {
		return zap.NewNop()
	}
	return log
}
