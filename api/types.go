// Package api defines the contracts shared between the correlation engine
// and its external collaborators: the message source, the template
// evaluator, the synthetic-message builder, the downstream emitter, and
// the persistence layer.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package api

import "time"

// Scope selects which intrinsic message fields are mixed into a
// CorrelationKey alongside the user-supplied key string.
type Scope int

const (
	// ScopeGlobal mixes no intrinsic fields into the key; messages with
	// the same key string always correlate, regardless of origin.
	ScopeGlobal Scope = iota
	// ScopeProcess additionally keys on the originating process identifier.
	ScopeProcess
	// ScopeHost additionally keys on the originating host.
	ScopeHost
	// ScopeProgram additionally keys on the originating program name.
	ScopeProgram
)

// String renders the scope the way it is written in configuration.
func (s Scope) String() string {
	switch s {
	case ScopeProcess:
		return "process"
	case ScopeHost:
		return "host"
	case ScopeProgram:
		return "program"
	default:
		return "global"
	}
}

// ParseScope parses a configuration-surface scope name. Unknown names are
// reported, the caller decides whether that is fatal (spec.md's
// ConfigError is fatal at init).
func ParseScope(s string) (Scope, bool) {
	switch s {
	case "", "global":
		return ScopeGlobal, true
	case "process":
		return ScopeProcess, true
	case "host":
		return ScopeHost, true
	case "program":
		return ScopeProgram, true
	default:
		return ScopeGlobal, false
	}
}

// Message is the subset of a pipeline log message the correlator reads
// and writes. Real pipelines carry far more fields; the correlator only
// needs these.
type Message struct {
	// Timestamp is the message's event time (ts_event in spec.md).
	Timestamp time.Time
	// Host, Program and Process are the intrinsic fields mixed into a key
	// when Scope requests them.
	Host    string
	Program string
	Process string
	// Fields carries arbitrary key/value pairs a template can reference.
	Fields map[string]string

	// classifierContextID is written by Process() per spec.md §6
	// (".classifier.context_id"); it is not itself exported because
	// writing it must go through SetContextID so readOnly is respected.
	classifierContextID string
	readOnly            bool
}

// NewMessage constructs a Message ready for Fields assignment.
func NewMessage(ts time.Time) *Message {
	return &Message{Timestamp: ts, Fields: make(map[string]string)}
}

// ContextID returns the derived correlation key string, if any has been
// written by the engine yet.
func (m *Message) ContextID() string { return m.classifierContextID }

// SetContextID writes the derived key string into the message's
// .classifier.context_id field. Returns ErrMessageReadOnly if the message
// has already been write-protected (spec.md §8, "write-protect after
// join").
func (m *Message) SetContextID(id string) error {
	if m.readOnly {
		return ErrMessageReadOnly
	}
	m.classifierContextID = id
	return nil
}

// Freeze write-protects the message. Called once a message has been
// appended to a live context: further engine-observable mutation must be
// rejected (spec.md §8).
func (m *Message) Freeze() { m.readOnly = true }

// Frozen reports whether the message has been write-protected.
func (m *Message) Frozen() bool { return m.readOnly }

// Clone returns a deep-enough copy for safe storage inside a context:
// the Fields map is copied so later caller-side mutation of the original
// map cannot reach a context that has already accepted the message. The
// clone carries the original's write-protect state; Process freezes both
// the clone it stores and the caller's original.
func (m *Message) Clone() *Message {
	fields := make(map[string]string, len(m.Fields))
	for k, v := range m.Fields {
		fields[k] = v
	}
	return &Message{
		Timestamp:           m.Timestamp,
		Host:                m.Host,
		Program:             m.Program,
		Process:             m.Process,
		Fields:              fields,
		classifierContextID: m.classifierContextID,
		readOnly:            m.readOnly,
	}
}
