package http

import (
	"context"
	"runtime"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
)

// contextQueue hands parsed contexts from connection goroutines to consumers
// of Listener.GetContext. The ready channel counts queued items so consumers
// can block without polling.
type contextQueue struct {
	items  *xsync.MPMCQueueOf[*Context]
	ready  chan struct{}
	closed chan struct{}
	once   sync.Once
}

func newContextQueue(capacity int) *contextQueue {
	return &contextQueue{
		items:  xsync.NewMPMCQueueOf[*Context](capacity),
		ready:  make(chan struct{}, capacity),
		closed: make(chan struct{}),
	}
}

// push reports false when the queue is full or closed.
func (q *contextQueue) push(c *Context) bool {
	select {
	case <-q.closed:
		return false
	default:
	}

	if !q.items.TryEnqueue(c) {
		return false
	}
	q.ready <- struct{}{}
	return true
}

// pop blocks until a context is available, ctx is done or the queue is closed.
func (q *contextQueue) pop(ctx context.Context) (*Context, error) {
	select {
	case <-q.ready:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-q.closed:
		return nil, ErrListenerClosed
	}
	return q.take(), nil
}

// take dequeues the item a consumed ready token stands for.
func (q *contextQueue) take() *Context {
	for {
		if c, ok := q.items.TryDequeue(); ok {
			return c
		}
		// the producer has reserved its slot but not published the item yet
		runtime.Gosched()
	}
}

// drain force-closes the connections of every queued context.
func (q *contextQueue) drain() int {
	n := 0
	for {
		select {
		case <-q.ready:
			q.take().conn.close()
			n++
		default:
			return n
		}
	}
}

// close wakes every waiting consumer and fails what is still queued.
func (q *contextQueue) close() {
	q.once.Do(func() {
		close(q.closed)
		q.drain()
	})
}
