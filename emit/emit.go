// Package emit provides default Emitter implementations. Emit must not
// block the caller (spec.md §5: it runs inside the engine's coarse
// lock), so every implementation here either writes synchronously to a
// single in-process sink or hands off to its own queue.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package emit

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/momentics/logcorrelate/api"
)

// LogrusEmitter logs each synthetic message as a structured line. It
// never blocks beyond whatever the logger's own writer does (stderr for
// the default logger from logrus.New, effectively non-blocking).
type LogrusEmitter struct {
	logger *logrus.Logger
	level  logrus.Level
}

var _ api.Emitter = (*LogrusEmitter)(nil)

// NewLogrusEmitter returns an emitter that logs at Info level via l. A
// nil l falls back to a fresh default logger.
func NewLogrusEmitter(l *logrus.Logger) *LogrusEmitter {
	if l == nil {
		l = logrus.New()
	}
	return &LogrusEmitter{logger: l, level: logrus.InfoLevel}
}

// Emit logs msg's fields as a structured entry.
func (e *LogrusEmitter) Emit(_ context.Context, msg *api.Message) error {
	fields := make(logrus.Fields, len(msg.Fields)+3)
	for k, v := range msg.Fields {
		fields[k] = v
	}
	fields["host"] = msg.Host
	fields["program"] = msg.Program
	fields["process"] = msg.Process
	e.logger.WithFields(fields).Log(e.level, "synthetic message")
	return nil
}

// QueueingEmitter hands synthetic messages off to a buffered channel
// instead of doing any work itself, for downstream consumers whose own
// Emit would otherwise block (e.g. a network sink). If the channel is
// full, Emit drops the message rather than block the engine lock and
// reports that as an error, satisfying spec.md §7's DownstreamError.
type QueueingEmitter struct {
	out chan *api.Message
}

var _ api.Emitter = (*QueueingEmitter)(nil)

// NewQueueingEmitter returns an emitter backed by a channel of the given
// capacity. Callers drain Out() on their own goroutine.
func NewQueueingEmitter(capacity int) *QueueingEmitter {
	return &QueueingEmitter{out: make(chan *api.Message, capacity)}
}

// Out returns the channel synthetic messages are queued onto.
func (e *QueueingEmitter) Out() <-chan *api.Message { return e.out }

// Emit enqueues msg without blocking; a full queue is reported as an
// error and the message is dropped.
func (e *QueueingEmitter) Emit(_ context.Context, msg *api.Message) error {
	select {
	case e.out <- msg:
		return nil
	default:
		return api.NewError(api.ErrCodeDownstream, "synthetic message queue full, dropped").
			WithContext("queue_capacity", cap(e.out))
	}
}
