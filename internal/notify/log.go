package notify

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
)

// LogEmitter writes every event to the structured log. It is the fallback
// emitter when no delivery channel is configured.
type LogEmitter struct {
	logger zerolog.Logger
}

// NewLogEmitter creates an emitter that only logs.
func NewLogEmitter(logger zerolog.Logger) *LogEmitter {
	return &LogEmitter{logger: logger.With().Str("emitter", "log").Logger()}
}

// Emit logs the event at info level.
func (l *LogEmitter) Emit(ctx context.Context, event Event) error {
	l.logger.Info().
		Str("event", string(event.Name)).
		Str("audience", string(event.Audience)).
		Str("recipient", event.Recipient).
		Str("request_id", event.RequestID.String()).
		Str("title", event.Payload.RequestTitle).
		Msg("Notification emitted")
	return nil
}

// Multi fans an event out to several emitters. Every emitter is attempted;
// failures are joined.
type Multi []Emitter

// Emit sends event to each emitter in order.
func (m Multi) Emit(ctx context.Context, event Event) error {
	var errs []error
	for _, e := range m {
		if err := e.Emit(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
