package notify

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Dispatcher delivers events in the background so a slow or failing emitter
// never delays or rolls back the transition that produced them.
type Dispatcher struct {
	emitter Emitter
	timeout time.Duration
	logger  zerolog.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher wraps emitter. timeout bounds each delivery; zero means 10s.
func NewDispatcher(emitter Emitter, timeout time.Duration, logger zerolog.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{
		emitter: emitter,
		timeout: timeout,
		logger:  logger.With().Str("component", "dispatcher").Logger(),
	}
}

// Dispatch queues events for delivery and returns immediately. Delivery is
// detached from ctx cancellation but keeps its values. After Close, events
// are logged and dropped.
func (d *Dispatcher) Dispatch(ctx context.Context, events ...Event) {
	if len(events) == 0 {
		return
	}
	base := context.WithoutCancel(ctx)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		for _, ev := range events {
			d.logger.Warn().
				Str("event", string(ev.Name)).
				Str("request_id", ev.RequestID.String()).
				Msg("Dispatcher closed, notification dropped")
		}
		return
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for _, ev := range events {
			d.deliver(base, ev)
		}
	}()
}

func (d *Dispatcher) deliver(ctx context.Context, ev Event) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error().
				Interface("panic", r).
				Str("event", string(ev.Name)).
				Str("request_id", ev.RequestID.String()).
				Msg("Notification emitter panicked")
		}
	}()

	if err := d.emitter.Emit(ctx, ev); err != nil {
		d.logger.Warn().
			Err(err).
			Str("event", string(ev.Name)).
			Str("audience", string(ev.Audience)).
			Str("request_id", ev.RequestID.String()).
			Msg("Failed to deliver notification")
	}
}

// Close stops accepting events and waits for in-flight deliveries or until
// ctx is done. It is safe to call more than once.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
