// Package tickqueue defers work to the start of the next tick so that state
// owned by a loop is never mutated mid-evaluation.
package tickqueue

// Queue is drained once per tick by its owning loop. It is not safe for
// concurrent use: other goroutines must hand work to the owner first.
type Queue struct {
	pending []func()
}

// RunLater schedules fn for the next Drain.
func (q *Queue) RunLater(fn func()) {
	if fn == nil {
		return
	}
	q.pending = append(q.pending, fn)
}

// Drain runs every task queued before the call, in order. Tasks queued while
// draining wait for the following tick.
func (q *Queue) Drain() int {
	batch := q.pending
	q.pending = nil
	for _, fn := range batch {
		fn()
	}
	return len(batch)
}

func (q *Queue) Len() int { return len(q.pending) }
