package match

import (
	"sync"

	"github.com/gammazero/deque"
	"github.com/rocketscienceinc/tictactoe-server/internal/entity"
)

// intakeQueue is an unbounded FIFO of pending moves with a single consumer.
// Push is safe from any goroutine and never blocks.
type intakeQueue struct {
	mu    sync.Mutex
	items deque.Deque[entity.MoveRequest]

	// wake holds at most one pending signal for the consumer.
	wake chan struct{}
}

func newIntakeQueue() *intakeQueue {
	return &intakeQueue{
		wake: make(chan struct{}, 1),
	}
}

func (that *intakeQueue) Push(req entity.MoveRequest) {
	that.mu.Lock()
	that.items.PushBack(req)
	that.mu.Unlock()

	select {
	case that.wake <- struct{}{}:
	default:
	}
}

// Pop blocks until a move is available or done is closed.
func (that *intakeQueue) Pop(done <-chan struct{}) (entity.MoveRequest, bool) {
	for {
		that.mu.Lock()
		if that.items.Len() > 0 {
			req := that.items.PopFront()
			that.mu.Unlock()

			return req, true
		}
		that.mu.Unlock()

		select {
		case <-that.wake:
		case <-done:
			return entity.MoveRequest{}, false
		}
	}
}

func (that *intakeQueue) Len() int {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.items.Len()
}

// Clear drops every pending move.
func (that *intakeQueue) Clear() {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.items.Clear()
}
