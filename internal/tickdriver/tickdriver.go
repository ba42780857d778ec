// Package tickdriver implements the correlator's Tick Driver (spec.md
// §4.6): a one-shot-rearming timer that fires approximately once a
// second on its own goroutine, so virtual time keeps advancing even when
// no messages are flowing.
//
// Adapted from the teacher's internal/concurrency.EventLoop: the same
// atomic running flag and quit/done channel pair that make Stop()
// idempotent and synchronous, but driven by a rearming time.Timer
// instead of a batched event inbox — there is nothing to batch here,
// just one callback invoked on a cadence.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package tickdriver

import (
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/momentics/logcorrelate/api"
	"github.com/momentics/logcorrelate/internal/affinity"
)

// Driver implements api.TickSource with a real wall-clock timer.
type Driver struct {
	quit    chan struct{}
	done    chan struct{}
	running atomic.Bool

	pinCPU *int
	logger *logrus.Logger
}

var _ api.TickSource = (*Driver)(nil)

// Option customizes a Driver at construction time.
type Option func(*Driver)

// WithPin requests the driver's goroutine be pinned to cpu (spec.md
// §6's pin_tick_driver). A failure to pin is logged as a warning, never
// fatal: pinning is a scheduling optimization, not a correctness
// requirement.
func WithPin(cpu int) Option {
	return func(d *Driver) { d.pinCPU = &cpu }
}

// WithLogger overrides the logger used to report a failed pin attempt.
func WithLogger(l *logrus.Logger) Option {
	return func(d *Driver) { d.logger = l }
}

// New returns a Driver ready to Start.
func New(opts ...Option) *Driver {
	d := &Driver{}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start begins calling fn approximately every interval, on its own
// goroutine, until Stop is called. Calling Start while already running
// is a no-op, matching the teacher EventLoop.Run's
// compare-and-swap guard.
func (d *Driver) Start(interval time.Duration, fn func()) {
	if !d.running.CompareAndSwap(false, true) {
		return
	}
	d.quit = make(chan struct{})
	d.done = make(chan struct{})

	go func() {
		defer func() {
			close(d.done)
			d.running.Store(false)
		}()

		if d.pinCPU != nil {
			if err := affinity.Pin(*d.pinCPU); err != nil && d.logger != nil {
				d.logger.WithError(err).Warn("tick driver: failed to pin to requested cpu")
			}
		}

		timer := time.NewTimer(interval)
		defer timer.Stop()

		for {
			select {
			case <-d.quit:
				return
			case <-timer.C:
				fn()
				timer.Reset(interval)
			}
		}
	}()
}

// Stop signals the driver to exit and waits for its goroutine to finish.
// Idempotent and safe to call even if Start was never called.
func (d *Driver) Stop() {
	if !d.running.Load() {
		return
	}
	select {
	case <-d.quit:
	default:
		close(d.quit)
	}
	<-d.done
}
