package bridge

import (
	"context"
	"fmt"
	"sync"
)

// Future is the async result handed back to the host for a one-shot call.
// It settles exactly once; later Complete/Fail calls are ignored.
type Future struct {
	mu        sync.Mutex
	done      chan struct{}
	settled   bool
	value     any
	err       error
	callbacks []func(any, error)
}

// NewFuture creates a pending future.
func NewFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Resolved returns a future already completed with v.
func Resolved(v any) *Future {
	f := NewFuture()
	f.Complete(v)
	return f
}

// Rejected returns a future already failed with err.
func Rejected(err error) *Future {
	f := NewFuture()
	f.Fail(err)
	return f
}

// Go runs fn on its own goroutine and settles the returned future with its
// result. A panic in fn fails the future.
func Go(fn func() (any, error)) *Future {
	f := NewFuture()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				f.Fail(fmt.Errorf("panic: %v", r))
			}
		}()
		v, err := fn()
		if err != nil {
			f.Fail(err)
			return
		}
		f.Complete(v)
	}()
	return f
}

// Complete settles the future with a value. Returns false if already settled.
func (f *Future) Complete(v any) bool {
	return f.settle(v, nil)
}

// Fail settles the future with an error. Returns false if already settled.
func (f *Future) Fail(err error) bool {
	if err == nil {
		err = ErrNativeCall
	}
	return f.settle(nil, err)
}

func (f *Future) settle(v any, err error) bool {
	f.mu.Lock()
	if f.settled {
		f.mu.Unlock()
		return false
	}
	f.settled = true
	f.value, f.err = v, err
	callbacks := f.callbacks
	f.callbacks = nil
	close(f.done)
	f.mu.Unlock()

	for _, cb := range callbacks {
		cb(v, err)
	}
	return true
}

// Then registers fn to run once the future settles. If it already has, fn
// runs immediately on the calling goroutine.
func (f *Future) Then(fn func(any, error)) {
	f.mu.Lock()
	if !f.settled {
		f.callbacks = append(f.callbacks, fn)
		f.mu.Unlock()
		return
	}
	v, err := f.value, f.err
	f.mu.Unlock()
	fn(v, err)
}

// Done is closed once the future settles.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the future settles or ctx ends.
func (f *Future) Await(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.value, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
