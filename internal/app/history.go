package app

import "sync"

// HistoryBuffer is a fixed-capacity FIFO of observations. Appending past
// capacity evicts the oldest entry. Safe for concurrent use.
type HistoryBuffer[T any] struct {
	mu       sync.Mutex
	items    []T
	capacity int
}

func NewHistoryBuffer[T any](capacity int) *HistoryBuffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &HistoryBuffer[T]{capacity: capacity}
}

func (b *HistoryBuffer[T]) Append(item T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.items = append(b.items, item)
	if len(b.items) > b.capacity {
		// shift rather than reslice so the backing array doesn't grow unbounded
		copy(b.items, b.items[1:])
		b.items = b.items[:b.capacity]
	}
}

// Items returns a copy of the buffer contents, oldest first.
func (b *HistoryBuffer[T]) Items() []T {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]T, len(b.items))
	copy(out, b.items)
	return out
}

func (b *HistoryBuffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

func (b *HistoryBuffer[T]) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = b.items[:0]
}
