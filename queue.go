package broadcast

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// Datagram is a raw frame together with the peer it came from.
type Datagram struct {
	Data   []byte
	Sender Sender
}

// Queue is an unbounded FIFO passing datagrams from the receiver to the sequencer.
type Queue struct {
	mu     sync.Mutex
	items  []Datagram
	wakeCh chan struct{}
}

// NewQueue creates empty queue.
func NewQueue() *Queue {
	return &Queue{
		wakeCh: make(chan struct{}, 1),
	}
}

// Push appends datagram to the tail of the queue. It never blocks.
func (q *Queue) Push(d Datagram) {
	q.mu.Lock()
	q.items = append(q.items, d)
	q.mu.Unlock()

	q.wake()
}

// Pop removes and returns the head of the queue, waiting until it is available.
// It returns an error once ctx is done.
func (q *Queue) Pop(ctx context.Context) (Datagram, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			d := q.items[0]
			q.items[0] = Datagram{}
			q.items = q.items[1:]
			remaining := len(q.items)
			q.mu.Unlock()

			if remaining > 0 {
				q.wake()
			}
			return d, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return Datagram{}, errors.WithStack(ctx.Err())
		case <-q.wakeCh:
		}
	}
}

// Clear drops all the queued datagrams.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.items = nil
}

// Len returns the number of queued datagrams.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.items)
}

func (q *Queue) wake() {
	select {
	case q.wakeCh <- struct{}{}:
	default:
	}
}
