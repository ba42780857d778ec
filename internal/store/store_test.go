package store_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/momentics/logcorrelate/api"
	"github.com/momentics/logcorrelate/internal/arena"
	"github.com/momentics/logcorrelate/internal/keying"
	"github.com/momentics/logcorrelate/internal/store"
)

func testKey(s string) keying.Key {
	msg := api.NewMessage(time.Unix(0, 0))
	return keying.New(api.ScopeGlobal, s, msg)
}

func TestStore_InsertLookupRemove(t *testing.T) {
	s := store.New()
	a := arena.New[int]()
	h := a.Alloc(42)
	k := testKey("order-123")

	_, ok := s.Lookup(k)
	assert.False(t, ok)

	s.Insert(k, h)
	got, ok := s.Lookup(k)
	assert.True(t, ok)
	assert.Equal(t, h, got)
	assert.Equal(t, 1, s.Len())

	s.Remove(k)
	_, ok = s.Lookup(k)
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())
}

func TestStore_DistinctKeysIndependent(t *testing.T) {
	s := store.New()
	a := arena.New[int]()
	h1 := a.Alloc(1)
	h2 := a.Alloc(2)
	k1 := testKey("a")
	k2 := testKey("b")

	s.Insert(k1, h1)
	s.Insert(k2, h2)
	assert.Equal(t, 2, s.Len())

	s.Remove(k1)
	_, ok := s.Lookup(k2)
	assert.True(t, ok)
	assert.Equal(t, 1, s.Len())
}

func TestStore_Range(t *testing.T) {
	s := store.New()
	a := arena.New[int]()
	s.Insert(testKey("a"), a.Alloc(1))
	s.Insert(testKey("b"), a.Alloc(2))

	seen := make(map[string]bool)
	s.Range(func(k keying.Key, h arena.Handle) {
		seen[k.KeyString()] = true
	})
	assert.Len(t, seen, 2)
}
