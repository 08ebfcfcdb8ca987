package system

import "sync"

// journal is a fixed-capacity ring that overwrites its oldest item.
type journal[T any] struct {
	mu    sync.RWMutex
	items []T
	next  int
	full  bool
}

func newJournal[T any](capacity int) *journal[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &journal[T]{items: make([]T, capacity)}
}

func (j *journal[T]) append(item T) {
	j.mu.Lock()
	j.items[j.next] = item
	j.next++
	if j.next == len(j.items) {
		j.next, j.full = 0, true
	}
	j.mu.Unlock()
}

func (j *journal[T]) len() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.full {
		return len(j.items)
	}
	return j.next
}

// latest walks newest first and keeps up to limit items accepted by keep.
func (j *journal[T]) latest(limit int, keep func(T) bool) []T {
	j.mu.RLock()
	defer j.mu.RUnlock()

	n := j.next
	if j.full {
		n = len(j.items)
	}
	out := make([]T, 0, min(limit, n))
	for i := 1; i <= n && len(out) < limit; i++ {
		item := j.items[(j.next-i+len(j.items))%len(j.items)]
		if keep == nil || keep(item) {
			out = append(out, item)
		}
	}
	return out
}
