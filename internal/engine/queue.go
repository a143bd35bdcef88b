package engine

import "sync"

// opQueue is the unbounded FIFO hand-off between callers and the persistence
// worker. Enqueue never blocks; ordering is strict arrival order with no
// coalescing of redundant operations.
type opQueue struct {
	mu     sync.Mutex
	ops    []operation
	signal chan struct{}
}

func newOpQueue() *opQueue {
	return &opQueue{signal: make(chan struct{}, 1)}
}

func (q *opQueue) enqueue(op operation) {
	q.mu.Lock()
	q.ops = append(q.ops, op)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// requeueFront puts a dequeued operation back at the head of the queue so a
// restarted worker retries it before anything newer.
func (q *opQueue) requeueFront(op operation) {
	q.mu.Lock()
	q.ops = append([]operation{op}, q.ops...)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// tryDequeue pops the oldest operation, or reports an empty queue.
func (q *opQueue) tryDequeue() (operation, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.ops) == 0 {
		return operation{}, false
	}
	op := q.ops[0]
	q.ops = q.ops[1:]
	return op, true
}

func (q *opQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ops)
}
