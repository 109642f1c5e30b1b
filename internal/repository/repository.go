package repository

import (
	"context"
	"time"

	"linky/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of *pgxpool.Pool the repositories use.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Expected is the state a compare-and-set write requires the row to still be in.
type Expected struct {
	Status        model.RequestStatus
	PaymentStatus model.PaymentStatus
}

// RequestRepository defines the entity store for requests and their offers.
type RequestRepository interface {
	// GetByID returns the request with its offer, or nil when it does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Request, error)

	// List returns requests matching filter, newest first.
	List(ctx context.Context, filter model.RequestFilter) ([]model.Request, error)

	// ListExpirable returns OFFERED requests whose offer was last updated before cutoff.
	ListExpirable(ctx context.Context, cutoff time.Time) ([]model.Request, error)

	// Create inserts a request and, when present, its offer in one transaction.
	Create(ctx context.Context, req *model.Request) error

	// CreateRepeatDraft inserts req unless the same user already has a NEW
	// repeat of the same source created at or after since. It returns the id
	// of the row that represents the repeat and whether it was created now.
	CreateRepeatDraft(ctx context.Context, req *model.Request, since time.Time) (uuid.UUID, bool, error)

	// UpdateStatus applies patch only if the row still matches expected.
	// It returns model.ErrConflict when it does not.
	UpdateStatus(ctx context.Context, id uuid.UUID, expected Expected, patch model.RequestPatch) error

	// SaveOffer applies patch under the same compare-and-set rule and creates
	// or replaces the request's offer. A nil image keeps the stored one.
	SaveOffer(ctx context.Context, id uuid.UUID, expected Expected, patch model.RequestPatch, offer *model.Offer) (*model.Offer, error)
}

// UserRepository defines the account store.
type UserRepository interface {
	// GetByID returns the user, or nil when it does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)

	// Upsert creates the user or updates its role, username and email.
	Upsert(ctx context.Context, user *model.User) error
}
