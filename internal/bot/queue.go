package bot

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/veigamann/whisper-zap/internal/domain"
)

var (
	// ErrQueueFull is returned by Enqueue when the buffer is at capacity.
	ErrQueueFull = errors.New("message queue is full")
	// ErrQueueClosed is returned by Enqueue after Close.
	ErrQueueClosed = errors.New("message queue is closed")
)

// BatchHandler consumes one delivery at a time.
type BatchHandler interface {
	HandleBatch(ctx context.Context, msgs []domain.InboundMessage)
}

// Queue serializes deliveries: producers enqueue from any goroutine and a
// single consumer runs the handler in arrival order.
type Queue struct {
	h  BatchHandler
	ch chan []domain.InboundMessage

	mu     sync.RWMutex
	closed bool
}

// NewQueue creates a queue buffering up to size deliveries (minimum 1).
func NewQueue(size int, h BatchHandler) *Queue {
	if size < 1 {
		size = 1
	}
	return &Queue{h: h, ch: make(chan []domain.InboundMessage, size)}
}

// Enqueue hands a delivery to the consumer without blocking.
func (q *Queue) Enqueue(msgs []domain.InboundMessage) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.ch <- msgs:
		return nil
	default:
		return ErrQueueFull
	}
}

// Len reports the number of buffered deliveries.
func (q *Queue) Len() int { return len(q.ch) }

// Close stops accepting deliveries. Run drains what is buffered and returns.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
}

// Run consumes deliveries until the queue is closed and drained (returns
// nil) or ctx is cancelled (returns ctx.Err()).
func (q *Queue) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msgs, ok := <-q.ch:
			if !ok {
				return nil
			}
			q.handle(ctx, msgs)
		}
	}
}

func (q *Queue) handle(ctx context.Context, msgs []domain.InboundMessage) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Interface("panic", rec).Msg("message handler panicked")
		}
	}()
	q.h.HandleBatch(ctx, msgs)
}
