package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var (
	ErrQueueFull = errors.New("notification queue full")
	ErrClosed    = errors.New("notification dispatcher closed")
)

// Notifier is what the core depends on. Enqueue never blocks on the broker.
type Notifier interface {
	Enqueue(ctx context.Context, n Notification) error
}

type Publisher interface {
	Publish(ctx context.Context, n Notification) error
	Close() error
}

type queued struct {
	ctx context.Context
	n   Notification
}

// Dispatcher decouples callers from the Publisher through a bounded queue
// drained by a single goroutine.
type Dispatcher struct {
	publisher  Publisher
	logger     *zap.Logger
	maxRetries int
	backoff    time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan queued
	done   chan struct{}
}

func NewDispatcher(publisher Publisher, size int, logger *zap.Logger) *Dispatcher {
	d := &Dispatcher{
		publisher:  publisher,
		logger:     logger,
		maxRetries: 3,
		backoff:    time.Second,
		queue:      make(chan queued, size),
		done:       make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *Dispatcher) Enqueue(ctx context.Context, n Notification) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}

	// Keep the trace, drop the request's cancellation.
	detached := trace.ContextWithSpanContext(context.Background(), trace.SpanContextFromContext(ctx))

	select {
	case d.queue <- queued{ctx: detached, n: n}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting notifications, drains the queue and closes the publisher.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	<-d.done
	return d.publisher.Close()
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for item := range d.queue {
		d.publishWithRetry(item)
	}
}

func (d *Dispatcher) publishWithRetry(item queued) {
	var lastErr error
	for attempt := 1; attempt <= d.maxRetries; attempt++ {
		err := d.publisher.Publish(item.ctx, item.n)
		if err == nil {
			return
		}
		lastErr = err
		if attempt < d.maxRetries {
			backoff := time.Duration(attempt) * d.backoff
			d.logger.Warn("retrying notification publish",
				zap.String("kind", string(item.n.Kind())),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
				zap.Error(err),
			)
			time.Sleep(backoff)
		}
	}
	d.logger.Error("notification dropped after retries",
		zap.String("kind", string(item.n.Kind())),
		zap.String("key", item.n.Key()),
		zap.Error(lastErr),
	)
}

// LogPublisher writes notifications to the log. Used when no broker is configured.
type LogPublisher struct {
	Logger *zap.Logger
}

func (p LogPublisher) Publish(_ context.Context, n Notification) error {
	p.Logger.Info("notification", zap.String("kind", string(n.Kind())), zap.String("key", n.Key()), zap.Any("payload", n))
	return nil
}

func (LogPublisher) Close() error { return nil }
