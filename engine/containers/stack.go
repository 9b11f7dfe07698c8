package containers

import "errors"

var ErrStackEmpty = errors.New("stack is empty")

// Stack is a LIFO container. The zero value is ready to use.
type Stack[T any] struct {
	data []T
}

// Create a new Stack with room for size elements
func NewStack[T any](size int) *Stack[T] {
	return &Stack[T]{
		data: make([]T, 0, size),
	}
}

// Push adds an element on top of the stack
func (s *Stack[T]) Push(value T) {
	s.data = append(s.data, value)
}

// Pop removes and returns the top element of the stack
func (s *Stack[T]) Pop() (T, error) {
	var zero T
	if s.IsEmpty() {
		return zero, ErrStackEmpty
	}
	n := len(s.data) - 1
	value := s.data[n]
	s.data[n] = zero
	s.data = s.data[:n]
	return value, nil
}

// Peek returns the top element without removing it
func (s *Stack[T]) Peek() (T, error) {
	if s.IsEmpty() {
		var zero T
		return zero, ErrStackEmpty
	}
	return s.data[len(s.data)-1], nil
}

// Drain pops every element, calling fn on each from top to bottom
func (s *Stack[T]) Drain(fn func(T)) {
	for !s.IsEmpty() {
		v, _ := s.Pop()
		fn(v)
	}
}

func (s *Stack[T]) Len() int {
	return len(s.data)
}

// IsEmpty checks if the stack is empty
func (s *Stack[T]) IsEmpty() bool {
	return len(s.data) == 0
}
