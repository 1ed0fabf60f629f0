package execution

import "sync"

// batchQueue is an unbounded FIFO of scheduled runs. Push never blocks, so
// RunAsync never blocks its caller.
type batchQueue struct {
	mu     sync.Mutex
	items  []*Run
	signal chan struct{}
	closed bool
}

func newBatchQueue() *batchQueue {
	return &batchQueue{signal: make(chan struct{}, 1)}
}

// Push appends a run. It returns false once the queue is closed.
func (q *batchQueue) Push(run *Run) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.items = append(q.items, run)
	q.notify()
	return true
}

// Pop blocks until a run is available or the queue is closed and empty.
func (q *batchQueue) Pop() (*Run, bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			run := q.items[0]
			q.items[0] = nil
			q.items = q.items[1:]
			q.mu.Unlock()
			return run, true
		}
		if q.closed {
			q.mu.Unlock()
			return nil, false
		}
		q.mu.Unlock()
		<-q.signal
	}
}

// Close stops accepting runs. Already queued runs can still be popped.
func (q *batchQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.notify()
}

func (q *batchQueue) notify() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}
