package apmz

import (
	"fmt"
	"sync"
)

// Named is implemented by entries of a keyed registry.
type Named interface {
	Name() string
}

// Registry is a name-keyed store that accepts each name once.
// Entries serialize in registration order.
// Safe for concurrent use by multiple goroutines.
type Registry[T Named] struct {
	entries   map[string]T
	duplicate error
	order     []string
	mu        sync.Mutex
}

// NewRegistry creates an empty registry. duplicate is the error returned
// when a name is registered twice; it should wrap ErrDuplicateName.
func NewRegistry[T Named](duplicate error) *Registry[T] {
	if duplicate == nil {
		duplicate = ErrDuplicateName
	}
	return &Registry[T]{
		entries:   make(map[string]T),
		order:     make([]string, 0, 8),
		duplicate: duplicate,
	}
}

// Register adds entry under its name.
func (r *Registry[T]) Register(entry T) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := entry.Name()
	if _, exists := r.entries[name]; exists {
		return fmt.Errorf("%w: %q", r.duplicate, name)
	}
	r.entries[name] = entry
	r.order = append(r.order, name)
	return nil
}

// Fetch returns the entry registered under name.
func (r *Registry[T]) Fetch(name string) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[name]
	return entry, ok
}

// IsEmpty reports whether the registry holds no entries.
func (r *Registry[T]) IsEmpty() bool {
	return r.Len() == 0
}

// Len returns the number of entries.
func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}

// Reset discards all entries.
func (r *Registry[T]) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = make(map[string]T)
	r.order = r.order[:0]
}

// Discard removes the entries of batch, matched by name. Entries registered
// after batch was serialized stay in place.
func (r *Registry[T]) Discard(batch []T) {
	if len(batch) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	drop := make(map[string]struct{}, len(batch))
	for _, entry := range batch {
		name := entry.Name()
		if _, ok := r.entries[name]; ok {
			drop[name] = struct{}{}
			delete(r.entries, name)
		}
	}
	kept := r.order[:0]
	for _, name := range r.order {
		if _, ok := drop[name]; !ok {
			kept = append(kept, name)
		}
	}
	clear(r.order[len(kept):])
	r.order = kept
}

// Serialize returns the entries in registration order.
// The returned slice is safe to modify without affecting the registry.
func (r *Registry[T]) Serialize() []T {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.order) == 0 {
		return nil
	}
	out := make([]T, len(r.order))
	for i, name := range r.order {
		out[i] = r.entries[name]
	}
	return out
}

// Store is a flat append-only collection.
// Safe for concurrent use by multiple goroutines.
type Store[T any] struct {
	entries []T
	mu      sync.Mutex
}

// NewStore creates an empty store.
func NewStore[T any]() *Store[T] {
	return &Store[T]{entries: make([]T, 0, 8)}
}

// Register appends entry.
func (s *Store[T]) Register(entry T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
}

// IsEmpty reports whether the store holds no entries.
func (s *Store[T]) IsEmpty() bool {
	return s.Len() == 0
}

// Len returns the number of entries.
func (s *Store[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Reset discards all entries.
func (s *Store[T]) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Shrink oversized buffers so a burst does not pin memory forever.
	if cap(s.entries) > 256 {
		s.entries = make([]T, 0, 32)
		return
	}
	clear(s.entries)
	s.entries = s.entries[:0]
}

// Discard removes the n oldest entries, the ones a Serialize of n entries
// returned. Entries registered since then stay in place.
func (s *Store[T]) Discard(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n = min(n, len(s.entries))
	if n <= 0 {
		return
	}
	rest := len(s.entries) - n
	if rest == 0 && cap(s.entries) > 256 {
		s.entries = make([]T, 0, 32)
		return
	}
	copy(s.entries, s.entries[n:])
	clear(s.entries[rest:])
	s.entries = s.entries[:rest]
}

// Serialize returns the entries in registration order.
// The returned slice is safe to modify without affecting the store.
func (s *Store[T]) Serialize() []T {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.entries) == 0 {
		return nil
	}
	out := make([]T, len(s.entries))
	copy(out, s.entries)
	return out
}
