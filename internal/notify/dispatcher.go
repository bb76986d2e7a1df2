package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"plotwaitlist-backend/internal/domain"
	"plotwaitlist-backend/internal/logger"
	"plotwaitlist-backend/internal/metrics"
)

// ErrQueueFull is reported when a message is dropped because the delivery
// queue has no free slot.
var ErrQueueFull = errors.New("notification queue is full")

// Stats counts delivery outcomes since the dispatcher was created.
type Stats struct {
	Enqueued int64 `json:"enqueued"`
	Sent     int64 `json:"sent"`
	Failed   int64 `json:"failed"`
	Dropped  int64 `json:"dropped"`
}

// Options tunes the delivery queue.
type Options struct {
	QueueSize   int
	MaxAttempts int
	// Backoff is multiplied by the attempt number squared between retries.
	Backoff time.Duration
}

// Dispatcher renders events and hands the messages to a background worker
// that delivers them through the Notifier. Publishing never blocks and never
// fails the caller.
type Dispatcher struct {
	renderer *Renderer
	notifier Notifier
	opts     Options

	jobs chan Message
	mu   sync.RWMutex
	done chan struct{}

	closed  bool
	started bool

	enqueued atomic.Int64
	sent     atomic.Int64
	failed   atomic.Int64
	dropped  atomic.Int64
}

func NewDispatcher(renderer *Renderer, notifier Notifier, opts Options) *Dispatcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	return &Dispatcher{
		renderer: renderer,
		notifier: notifier,
		opts:     opts,
		jobs:     make(chan Message, opts.QueueSize),
		done:     make(chan struct{}),
	}
}

// Start launches the delivery worker. It runs until Stop is called.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return
	}
	d.started = true
	go d.worker()
}

// Stop refuses new messages, waits for queued ones to be delivered and
// returns once the worker exits or ctx is done.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.jobs)
	}
	started := d.started
	d.mu.Unlock()

	if !started {
		return nil
	}
	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Publish renders each event and enqueues the resulting messages.
func (d *Dispatcher) Publish(ctx context.Context, events ...domain.Event) {
	for _, ev := range events {
		for _, msg := range d.renderer.Render(ev) {
			if err := d.enqueue(msg); err != nil {
				logger.WarnContext(ctx, "Notification dropped", "event", ev.Type, "subject", msg.Subject, "error", err)
			}
		}
	}
}

func (d *Dispatcher) enqueue(msg Message) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.dropped.Add(1)
		metrics.NotificationFailuresTotal.WithLabelValues("closed").Inc()
		return errors.New("notification queue is closed")
	}
	select {
	case d.jobs <- msg:
		d.enqueued.Add(1)
		return nil
	default:
		d.dropped.Add(1)
		metrics.NotificationFailuresTotal.WithLabelValues("queue_full").Inc()
		return ErrQueueFull
	}
}

func (d *Dispatcher) worker() {
	defer close(d.done)
	log := logger.WithService("notify.Dispatcher")
	log.Info("Notification worker started", "queueSize", d.opts.QueueSize)
	for msg := range d.jobs {
		d.deliver(log, msg)
	}
	log.Info("Notification worker stopped", "sent", d.sent.Load(), "failed", d.failed.Load())
}

func (d *Dispatcher) deliver(log *slog.Logger, msg Message) {
	var err error
	for attempt := 1; attempt <= d.opts.MaxAttempts; attempt++ {
		logger.ExternalServiceCall("notifier", "Send", "subject", msg.Subject, "attempt", attempt)
		err = d.notifier.Send(context.Background(), msg.To, msg.Subject, msg.Body)
		logger.ExternalServiceResult("notifier", "Send", err, "subject", msg.Subject)
		if err == nil {
			d.sent.Add(1)
			metrics.NotificationsSentTotal.Inc()
			return
		}
		if attempt < d.opts.MaxAttempts {
			time.Sleep(time.Duration(attempt*attempt) * d.opts.Backoff)
		}
	}
	d.failed.Add(1)
	metrics.NotificationFailuresTotal.WithLabelValues("send").Inc()
	log.Error("Notification delivery failed", "to", msg.To, "subject", msg.Subject, "attempts", d.opts.MaxAttempts, "error", err)
}

// Stats returns a snapshot of the delivery counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Enqueued: d.enqueued.Load(),
		Sent:     d.sent.Load(),
		Failed:   d.failed.Load(),
		Dropped:  d.dropped.Load(),
	}
}
