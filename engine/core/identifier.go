package core

import "fmt"

type slot[T any] struct {
	owner      T
	generation uint32
	used       bool
}

// Registry hands out ids for owners and reuses released slots. The slot
// generation is folded into the id, so a stale id never resolves to a newer
// owner. Zero is never issued.
type Registry[T any] struct {
	slots []slot[T]
	free  []uint32
	count int
}

func NewRegistry[T any](capacity int) *Registry[T] {
	return &Registry[T]{
		slots: make([]slot[T], 0, capacity),
	}
}

func (r *Registry[T]) AcquireID(owner T) uint64 {
	var idx uint32
	if n := len(r.free); n > 0 {
		// Existing free spot. Take it.
		idx = r.free[n-1]
		r.free = r.free[:n-1]
	} else {
		r.slots = append(r.slots, slot[T]{})
		idx = uint32(len(r.slots) - 1)
	}
	s := &r.slots[idx]
	s.owner = owner
	s.used = true
	s.generation++
	r.count++
	return uint64(s.generation)<<32 | uint64(idx+1)
}

func (r *Registry[T]) lookup(id uint64) (*slot[T], bool) {
	idx := uint32(id) - 1
	if uint32(id) == 0 || int(idx) >= len(r.slots) {
		return nil, false
	}
	s := &r.slots[idx]
	if !s.used || s.generation != uint32(id>>32) {
		return nil, false
	}
	return s, true
}

func (r *Registry[T]) Get(id uint64) (T, bool) {
	s, ok := r.lookup(id)
	if !ok {
		var zero T
		return zero, false
	}
	return s.owner, true
}

// ReleaseID frees the slot of id and returns its owner.
func (r *Registry[T]) ReleaseID(id uint64) (T, error) {
	s, ok := r.lookup(id)
	if !ok {
		var zero T
		return zero, fmt.Errorf("release of id %#x: %w", id, ErrUnknownHandle)
	}
	owner := s.owner
	var zero T
	s.owner = zero
	s.used = false
	r.free = append(r.free, uint32(id)-1)
	r.count--
	return owner, nil
}

func (r *Registry[T]) Len() int {
	return r.count
}

// Each visits live owners in slot order.
func (r *Registry[T]) Each(fn func(id uint64, owner T)) {
	for i, s := range r.slots {
		if s.used {
			fn(uint64(s.generation)<<32|uint64(i+1), s.owner)
		}
	}
}
