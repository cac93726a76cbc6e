// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package frame

// DeletionQueue holds destroy functions to run later, in reverse order
// of their registration, once the GPU no longer uses the objects.
type DeletionQueue struct {
	fns []func()
}

// Push registers fn to run on the next [DeletionQueue.Flush].
func (dq *DeletionQueue) Push(fn func()) {
	dq.fns = append(dq.fns, fn)
}

// Len returns the number of pending destroy functions.
func (dq *DeletionQueue) Len() int {
	return len(dq.fns)
}

// Flush runs all pending destroy functions, last registered first.
func (dq *DeletionQueue) Flush() {
	for i := len(dq.fns) - 1; i >= 0; i-- {
		dq.fns[i]()
		dq.fns[i] = nil
	}
	dq.fns = dq.fns[:0]
}

// Owned is a GPU object together with the function that destroys it.
// It is destroyed exactly once, either by [Owned.Release] or by the
// deletion queue it was moved into with [Owned.Defer].
type Owned[T any] struct {
	v       T
	destroy func(T)
	done    bool
}

// Own takes ownership of v.
func Own[T any](v T, destroy func(T)) *Owned[T] {
	return &Owned[T]{v: v, destroy: destroy}
}

// Get returns the owned object.
func (o *Owned[T]) Get() T {
	return o.v
}

// Released returns whether the object has been destroyed.
func (o *Owned[T]) Released() bool {
	return o.done
}

// Release destroys the object now. Further calls do nothing.
func (o *Owned[T]) Release() {
	if o.done {
		return
	}
	o.done = true
	o.destroy(o.v)
}

// Defer moves the destruction of the object into q.
func (o *Owned[T]) Defer(q *DeletionQueue) {
	q.Push(o.Release)
}
