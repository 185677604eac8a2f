package trigger

import (
	"context"
	"fmt"
	"sync"

	"github.com/cascadehq/cascade/pkg/infra/logger"
)

// EventBus is the ingress boundary external producers publish events
// through. A worker pool drains the buffer and hands each event to the
// Manager; Close drains remaining events before returning.
type EventBus struct {
	mu      sync.RWMutex
	manager *Manager
	events  chan *Event

	workerCount int
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	closed      bool
}

type busConfig struct {
	bufferSize  int
	workerCount int
}

// BusOption configures an EventBus.
type BusOption func(*busConfig)

// WithBufferSize sets the event buffer capacity.
func WithBufferSize(size int) BusOption {
	return func(c *busConfig) {
		if size > 0 {
			c.bufferSize = size
		}
	}
}

// WithWorkerCount sets how many workers consume the buffer.
func WithWorkerCount(count int) BusOption {
	return func(c *busConfig) {
		if count > 0 {
			c.workerCount = count
		}
	}
}

func NewEventBus(manager *Manager, opts ...BusOption) *EventBus {
	config := &busConfig{
		bufferSize:  1000,
		workerCount: 4,
	}
	for _, opt := range opts {
		opt(config)
	}

	ctx, cancel := context.WithCancel(context.Background())

	b := &EventBus{
		manager:     manager,
		events:      make(chan *Event, config.bufferSize),
		workerCount: config.workerCount,
		ctx:         ctx,
		cancel:      cancel,
	}

	for i := 0; i < b.workerCount; i++ {
		b.wg.Add(1)
		go b.worker()
	}

	return b
}

// Publish submits one event. It blocks while the buffer is full and
// fails once the bus is closed.
func (b *EventBus) Publish(event *Event) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}

	b.mu.RLock()
	closed := b.closed
	b.mu.RUnlock()
	if closed {
		return fmt.Errorf("event bus is closed")
	}

	select {
	case b.events <- event:
		return nil
	case <-b.ctx.Done():
		return fmt.Errorf("event bus is closed")
	}
}

// PublishBatch submits events in order, stopping at the first failure.
func (b *EventBus) PublishBatch(events []*Event) error {
	for _, event := range events {
		if err := b.Publish(event); err != nil {
			return err
		}
	}
	return nil
}

// Close stops accepting events, drains the buffer and waits for the
// workers to finish. The events channel is never closed; a Publish
// racing Close either fails the closed check or lands in the buffer,
// where the drain picks it up.
func (b *EventBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	b.cancel()
	b.wg.Wait()
	return nil
}

func (b *EventBus) worker() {
	defer b.wg.Done()

	for {
		select {
		case event := <-b.events:
			b.dispatch(event)
		case <-b.ctx.Done():
			// Drain whatever is still buffered, then exit.
			for {
				select {
				case event := <-b.events:
					b.dispatch(event)
				default:
					return
				}
			}
		}
	}
}

func (b *EventBus) dispatch(event *Event) {
	if event == nil {
		return
	}
	if _, err := b.manager.ProcessEvent(context.Background(), event); err != nil {
		logger.Error("event processing failed",
			"event_id", event.ID,
			"error", err)
	}
}
