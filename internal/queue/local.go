package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// ErrQueueFull is returned when the in-process buffer for a queue is full.
var ErrQueueFull = errors.New("queue full")

// ErrNoHandler is returned when publishing to a queue nobody handles.
var ErrNoHandler = errors.New("no handler registered for queue")

type localQueue struct {
	ch      chan []byte
	h       Handler
	workers int
}

// LocalDispatcher is an in-process Publisher used when no broker is
// configured. Each registered queue gets a buffered channel drained by its
// own worker goroutines.
type LocalDispatcher struct {
	log    *zap.Logger
	buffer int

	mu      sync.RWMutex
	queues  map[string]*localQueue
	started bool
	wg      sync.WaitGroup
}

func NewLocalDispatcher(buffer int, log *zap.Logger) *LocalDispatcher {
	if buffer < 1 {
		buffer = 256
	}
	return &LocalDispatcher{log: log, buffer: buffer, queues: map[string]*localQueue{}}
}

// Handle registers h for queue. It must be called before Start.
func (d *LocalDispatcher) Handle(queue string, workers int, h Handler) {
	if workers < 1 {
		workers = 1
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queues[queue] = &localQueue{ch: make(chan []byte, d.buffer), h: h, workers: workers}
}

// Start launches the workers. They exit once ctx is cancelled and the
// buffers are drained or abandoned; Wait blocks until then.
func (d *LocalDispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return
	}
	d.started = true
	for name, q := range d.queues {
		for i := 0; i < q.workers; i++ {
			d.wg.Add(1)
			go d.work(ctx, name, q)
		}
	}
}

func (d *LocalDispatcher) work(ctx context.Context, name string, q *localQueue) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case body := <-q.ch:
			if err := dispatch(ctx, name, q.h, body); err != nil {
				d.log.Error("local queue: handle message failed", zap.String("queue", name), zap.Error(err))
			}
		}
	}
}

// Wait blocks until every worker has returned.
func (d *LocalDispatcher) Wait() { d.wg.Wait() }

// Publish enqueues payload without blocking.
func (d *LocalDispatcher) Publish(_ context.Context, queue string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	d.mu.RLock()
	q, ok := d.queues[queue]
	d.mu.RUnlock()
	if !ok {
		published.WithLabelValues(queue, "error").Inc()
		return fmt.Errorf("%w: %s", ErrNoHandler, queue)
	}
	select {
	case q.ch <- body:
		published.WithLabelValues(queue, "ok").Inc()
		return nil
	default:
		published.WithLabelValues(queue, "error").Inc()
		return ErrQueueFull
	}
}
