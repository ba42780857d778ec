// Package keying builds and validates CorrelationKey values: the
// immutable composite of (scope, key string, scope-derived identifiers)
// messages are grouped by (spec.md §3).
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package keying

import (
	"hash/fnv"
	"strconv"
	"strings"

	"github.com/momentics/logcorrelate/api"
)

// Key is a CorrelationKey: immutable once constructed, comparable with
// ==, suitable as a map key directly (spec.md's "hash and equality are
// well-defined and depend only on these fields").
type Key struct {
	scope     api.Scope
	keyString string
	// scoped is the scope-derived identifier mixed into the key (host,
	// program or process name); empty for ScopeGlobal.
	scoped string
}

// New composes a Key from a scope, the template-evaluated key string, and
// the message the scope-derived fields are read from.
func New(scope api.Scope, keyString string, msg *api.Message) Key {
	k := Key{scope: scope, keyString: keyString}
	switch scope {
	case api.ScopeHost:
		k.scoped = msg.Host
	case api.ScopeProgram:
		k.scoped = msg.Program
	case api.ScopeProcess:
		k.scoped = msg.Process
	}
	return k
}

// Scope returns the key's scope.
func (k Key) Scope() api.Scope { return k.scope }

// String renders the key for logging/diagnostics (spec.md §7's "context" tag).
func (k Key) String() string {
	if k.scoped == "" {
		return k.scope.String() + ":" + k.keyString
	}
	return k.scope.String() + ":" + k.scoped + ":" + k.keyString
}

// Hash64 returns a stable 64-bit hash, useful for sharded diagnostics or
// external persistence indexing; correctness never depends on it since Go
// map equality already does the real work via ==.
func (k Key) Hash64() uint64 {
	h := fnv.New64a()
	h.Write([]byte(k.scope.String()))
	h.Write([]byte{0})
	h.Write([]byte(k.scoped))
	h.Write([]byte{0})
	h.Write([]byte(k.keyString))
	return h.Sum64()
}

// MarshalText supports round-tripping a Key through the persistence
// layer's blob format without exposing its private fields.
func (k Key) MarshalText() ([]byte, error) {
	return []byte(strconv.Itoa(int(k.scope)) + "\x1f" + k.scoped + "\x1f" + k.keyString), nil
}

// UnmarshalText is the inverse of MarshalText, used when restoring
// persisted state at init.
func (k *Key) UnmarshalText(text []byte) error {
	parts := strings.SplitN(string(text), "\x1f", 3)
	if len(parts) != 3 {
		return api.NewError(api.ErrCodePersist, "malformed correlation key").WithContext("text", string(text))
	}
	scopeInt, err := strconv.Atoi(parts[0])
	if err != nil {
		return api.NewError(api.ErrCodePersist, "malformed correlation key scope").Wrap(err)
	}
	k.scope = api.Scope(scopeInt)
	k.scoped = parts[1]
	k.keyString = parts[2]
	return nil
}

// KeyString returns the user-template-evaluated key string component.
func (k Key) KeyString() string { return k.keyString }

// Scoped returns the scope-derived identifier mixed into the key, or the
// empty string for ScopeGlobal.
func (k Key) Scoped() string { return k.scoped }
