package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// OutboxEmitter records events in the notification_outbox table for an
// external mail worker to deliver.
type OutboxEmitter struct {
	db     execer
	logger zerolog.Logger
}

// NewOutboxEmitter creates an emitter backed by db, typically a *pgxpool.Pool.
func NewOutboxEmitter(db execer, logger zerolog.Logger) *OutboxEmitter {
	return &OutboxEmitter{
		db:     db,
		logger: logger.With().Str("emitter", "outbox").Logger(),
	}
}

// Emit inserts one outbox row.
func (o *OutboxEmitter) Emit(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	query := `
		INSERT INTO notification_outbox (id, event, audience, recipient, request_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = o.db.Exec(ctx, query,
		event.ID,
		string(event.Name),
		string(event.Audience),
		event.Recipient,
		event.RequestID,
		payload,
		event.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert outbox row: %w", err)
	}
	return nil
}
