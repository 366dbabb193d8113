package state

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/m3rciful/sdbot/core/logger"
)

type entry[T any] struct {
	mu  sync.Mutex
	val *T
}

// Registry keeps one lazily created value per user in memory. Each value has
// its own lock, so users never contend with each other while the same user is
// serialized.
type Registry[T any] struct {
	mu      sync.RWMutex
	entries map[int64]*entry[T]
	create  func(userID int64) *T
}

// NewRegistry constructs an in-memory registry. create builds the value for a
// user seen for the first time.
func NewRegistry[T any](create func(userID int64) *T) *Registry[T] {
	if create == nil {
		create = func(int64) *T { return new(T) }
	}
	return &Registry[T]{
		entries: make(map[int64]*entry[T]),
		create:  create,
	}
}

// Acquire returns the user's value locked for the caller together with the
// release func. Release is idempotent; the value must not be touched after it.
func (r *Registry[T]) Acquire(userID int64) (*T, func()) {
	e := r.lookup(userID)
	e.mu.Lock()
	var once sync.Once
	return e.val, func() { once.Do(e.mu.Unlock) }
}

// Peek runs fn with the user's value locked if the user is known.
// It reports whether an entry existed.
func (r *Registry[T]) Peek(userID int64, fn func(*T)) bool {
	r.mu.RLock()
	e, ok := r.entries[userID]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.val)
	return true
}

// Delete drops the user's entry. A caller still holding the old value keeps
// it until release; the next Acquire starts from a fresh value.
func (r *Registry[T]) Delete(userID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[userID]; !ok {
		return false
	}
	delete(r.entries, userID)
	return true
}

// Len returns the number of known users.
func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Users returns the known user ids in ascending order (for diagnostics).
func (r *Registry[T]) Users() []int64 {
	r.mu.RLock()
	ids := make([]int64, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (r *Registry[T]) lookup(userID int64) *entry[T] {
	r.mu.RLock()
	e, ok := r.entries[userID]
	r.mu.RUnlock()
	if ok {
		return e
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok = r.entries[userID]; ok {
		return e
	}
	e = &entry[T]{val: r.create(userID)}
	r.entries[userID] = e
	logger.Debug(context.Background(), "sessions", "session.created",
		slog.Int64("user_id", userID),
		slog.Int("count", len(r.entries)),
	)
	return e
}
