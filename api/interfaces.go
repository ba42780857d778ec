// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// External collaborator contracts (spec.md §1 "out of scope" list).
// Concrete default implementations live in sibling packages (template,
// synthetic, emit, persistence/sqlite); callers may substitute their own.

package api

import (
	"context"
	"time"
)

// TemplateEvaluator expands a user template against a message to a
// string. Implementations are expected to be stateless and safe for
// concurrent use; the engine calls Evaluate under its own lock, but a
// caller embedding the evaluator elsewhere should not assume otherwise.
type TemplateEvaluator interface {
	Evaluate(tmpl string, msg *Message) (string, error)
}

// Context is the accumulated state the SyntheticBuilder reads to produce
// a summary message. It mirrors the read-only view of a correlation
// context that the core exposes to the builder at expiry time.
type Context struct {
	Key              string
	Scope            Scope
	Messages         []*Message
	Timeout          int64 // seconds
	CreatedAtSeconds int64
	ExpiredAtSeconds int64
}

// SyntheticBuilder produces a new synthetic LogMessage from an expired
// context, given the user's synthetic_message template block.
type SyntheticBuilder interface {
	Generate(tmpl string, ctx Context) (*Message, error)
}

// Emitter hands a synthetic message to the downstream pipeline stage.
// Implementations MUST NOT block the caller for long: the engine calls
// Emit while holding its single coarse lock (spec.md §5). An emitter that
// needs to do blocking work is expected to hand off to its own queue.
type Emitter interface {
	Emit(ctx context.Context, msg *Message) error
}

// PersistenceStore is the engine's save/restore collaborator. State is an
// opaque blob keyed by a stable persist name ("correlation()" per
// spec.md §6); format is implementation-internal.
type PersistenceStore interface {
	Load(ctx context.Context, name string) ([]byte, error)
	Save(ctx context.Context, name string, blob []byte) error
}

// TickSource abstracts wall-clock-driven tick() invocation (spec.md §9,
// "Coroutine/event-loop coupling"): production code schedules a real
// ~1s repeating timer; tests inject a fake that fires on demand.
type TickSource interface {
	// Start begins calling fn approximately every interval until Stop.
	Start(interval time.Duration, fn func())
	Stop()
}
