package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"linky/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const requestColumns = `
	r.id, r.user_id, r.product_url, r.title_hint, r.original_price, r.currency,
	r.status, r.payment_status, r.cancel_reason, r.is_repeat, r.repeat_source_id,
	r.created_at, r.updated_at,
	o.id, o.product_title, o.image_url, o.linky_price, o.eta_days, o.note,
	o.admin_source_url, o.created_at, o.updated_at
`

// requestRepository implements RequestRepository using PostgreSQL.
type requestRepository struct {
	db     DB
	logger zerolog.Logger
}

// NewRequestRepository creates a new PostgreSQL-backed request repository.
func NewRequestRepository(db DB, logger zerolog.Logger) RequestRepository {
	return &requestRepository{
		db:     db,
		logger: logger.With().Str("repository", "request").Logger(),
	}
}

func (r *requestRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Request, error) {
	query := `SELECT ` + requestColumns + `
		FROM requests r
		LEFT JOIN offers o ON o.request_id = r.id
		WHERE r.id = $1
	`

	req, err := scanRequest(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Str("request_id", id.String()).Msg("request not found")
			return nil, nil
		}
		r.logger.Error().Err(err).Str("request_id", id.String()).Msg("failed to query request")
		return nil, fmt.Errorf("failed to query request: %w", err)
	}
	return req, nil
}

func (r *requestRepository) List(ctx context.Context, filter model.RequestFilter) ([]model.Request, error) {
	var (
		where []string
		args  []any
	)
	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		where = append(where, fmt.Sprintf("r.user_id = $%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		args = append(args, statuses)
		where = append(where, fmt.Sprintf("r.status = ANY($%d)", len(args)))
	}

	query := `SELECT ` + requestColumns + `
		FROM requests r
		LEFT JOIN offers o ON o.request_id = r.id`
	if len(where) > 0 {
		query += "\n\t\tWHERE " + strings.Join(where, " AND ")
	}
	query += "\n\t\tORDER BY r.created_at DESC"

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	args = append(args, limit, max(filter.Offset, 0))
	query += fmt.Sprintf("\n\t\tLIMIT $%d OFFSET $%d", len(args)-1, len(args))

	return r.queryRequests(ctx, query, args...)
}

func (r *requestRepository) ListExpirable(ctx context.Context, cutoff time.Time) ([]model.Request, error) {
	query := `SELECT ` + requestColumns + `
		FROM requests r
		JOIN offers o ON o.request_id = r.id
		WHERE r.status = 'OFFERED' AND o.updated_at < $1
		ORDER BY o.updated_at
	`
	return r.queryRequests(ctx, query, cutoff)
}

func (r *requestRepository) queryRequests(ctx context.Context, query string, args ...any) ([]model.Request, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to query requests")
		return nil, fmt.Errorf("failed to query requests: %w", err)
	}
	defer rows.Close()

	requests := make([]model.Request, 0)
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			r.logger.Error().Err(err).Msg("failed to scan request row")
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}
		requests = append(requests, *req)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating request rows")
		return nil, fmt.Errorf("error iterating requests: %w", err)
	}
	return requests, nil
}

func (r *requestRepository) Create(ctx context.Context, req *model.Request) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := insertRequest(ctx, tx, req); err != nil {
		r.logger.Error().Err(err).Str("request_id", req.ID.String()).Msg("failed to create request")
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit request: %w", err)
	}

	r.logger.Debug().
		Str("request_id", req.ID.String()).
		Str("status", string(req.Status)).
		Bool("repeat", req.IsRepeat).
		Msg("request created")
	return nil
}

func (r *requestRepository) CreateRepeatDraft(ctx context.Context, req *model.Request, since time.Time) (uuid.UUID, bool, error) {
	if req.RepeatSourceID == nil {
		return uuid.Nil, false, errors.New("repeat draft requires a source id")
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Serializes concurrent confirms for the same user and source.
	lock := `SELECT pg_advisory_xact_lock(hashtextextended($1::text || ':' || $2::text, 0))`
	if _, err := tx.Exec(ctx, lock, req.UserID.String(), req.RepeatSourceID.String()); err != nil {
		return uuid.Nil, false, fmt.Errorf("failed to lock repeat source: %w", err)
	}

	find := `
		SELECT id FROM requests
		WHERE user_id = $1 AND repeat_source_id = $2 AND is_repeat
		  AND status = 'NEW' AND created_at >= $3
		ORDER BY created_at DESC
		LIMIT 1
	`
	var existing uuid.UUID
	err = tx.QueryRow(ctx, find, req.UserID, *req.RepeatSourceID, since).Scan(&existing)
	switch {
	case err == nil:
		r.logger.Info().
			Str("request_id", existing.String()).
			Str("source_id", req.RepeatSourceID.String()).
			Msg("repeat draft deduplicated")
		return existing, false, nil
	case !errors.Is(err, pgx.ErrNoRows):
		return uuid.Nil, false, fmt.Errorf("failed to look up repeat draft: %w", err)
	}

	if err := insertRequest(ctx, tx, req); err != nil {
		return uuid.Nil, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, false, fmt.Errorf("failed to commit repeat draft: %w", err)
	}

	r.logger.Debug().Str("request_id", req.ID.String()).Msg("repeat draft created")
	return req.ID, true, nil
}

func (r *requestRepository) UpdateStatus(ctx context.Context, id uuid.UUID, expected Expected, patch model.RequestPatch) error {
	query := `
		UPDATE requests
		SET status = $4, payment_status = $5, cancel_reason = COALESCE($6, cancel_reason), updated_at = $7
		WHERE id = $1 AND status = $2 AND payment_status = $3
	`
	tag, err := r.db.Exec(ctx, query,
		id,
		string(expected.Status),
		string(expected.PaymentStatus),
		string(patch.Status),
		string(patch.PaymentStatus),
		patch.CancelReason,
		updatedAt(patch),
	)
	if err != nil {
		r.logger.Error().Err(err).Str("request_id", id.String()).Msg("failed to update request status")
		return fmt.Errorf("failed to update request status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		r.logger.Warn().
			Str("request_id", id.String()).
			Str("expected_status", string(expected.Status)).
			Msg("request status changed concurrently")
		return model.ErrConflict
	}
	return nil
}

func (r *requestRepository) SaveOffer(ctx context.Context, id uuid.UUID, expected Expected, patch model.RequestPatch, offer *model.Offer) (*model.Offer, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	update := `
		UPDATE requests
		SET status = $4, payment_status = $5, original_price = COALESCE($6, original_price), updated_at = $7
		WHERE id = $1 AND status = $2 AND payment_status = $3
	`
	tag, err := tx.Exec(ctx, update,
		id,
		string(expected.Status),
		string(expected.PaymentStatus),
		string(patch.Status),
		string(patch.PaymentStatus),
		patch.OriginalPrice,
		updatedAt(patch),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update request for offer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, model.ErrConflict
	}

	upsert := `
		INSERT INTO offers (id, request_id, product_title, image_url, linky_price, eta_days, note, admin_source_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (request_id) DO UPDATE SET
			product_title = EXCLUDED.product_title,
			image_url = COALESCE(EXCLUDED.image_url, offers.image_url),
			linky_price = EXCLUDED.linky_price,
			eta_days = EXCLUDED.eta_days,
			note = EXCLUDED.note,
			admin_source_url = EXCLUDED.admin_source_url,
			updated_at = EXCLUDED.updated_at
		RETURNING id, image_url, created_at
	`
	saved := *offer
	saved.RequestID = id
	err = tx.QueryRow(ctx, upsert,
		offer.ID, id, offer.ProductTitle, offer.ImageURL, offer.LinkyPrice,
		offer.EtaDays, offer.Note, offer.AdminSourceURL, offer.CreatedAt, offer.UpdatedAt,
	).Scan(&saved.ID, &saved.ImageURL, &saved.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to save offer: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit offer: %w", err)
	}

	r.logger.Debug().
		Str("request_id", id.String()).
		Str("offer_id", saved.ID.String()).
		Msg("offer saved")
	return &saved, nil
}

func updatedAt(patch model.RequestPatch) time.Time {
	if patch.UpdatedAt.IsZero() {
		return time.Now().UTC()
	}
	return patch.UpdatedAt
}

func insertRequest(ctx context.Context, tx pgx.Tx, req *model.Request) error {
	query := `
		INSERT INTO requests (id, user_id, product_url, title_hint, original_price, currency, status,
			payment_status, cancel_reason, is_repeat, repeat_source_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := tx.Exec(ctx, query,
		req.ID, req.UserID, req.ProductURL, req.TitleHint, req.OriginalPrice, req.Currency,
		string(req.Status), string(req.PaymentStatus), req.CancelReason, req.IsRepeat,
		req.RepeatSourceID, req.CreatedAt, req.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert request: %w", err)
	}

	if req.Offer == nil {
		return nil
	}
	o := req.Offer
	offerQuery := `
		INSERT INTO offers (id, request_id, product_title, image_url, linky_price, eta_days, note, admin_source_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = tx.Exec(ctx, offerQuery,
		o.ID, req.ID, o.ProductTitle, o.ImageURL, o.LinkyPrice, o.EtaDays,
		o.Note, o.AdminSourceURL, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert offer: %w", err)
	}
	return nil
}

// scanRequest reads one row of requestColumns. Offer columns are NULL when
// the request has no offer yet.
func scanRequest(row pgx.Row) (*model.Request, error) {
	var (
		req           model.Request
		status        string
		paymentStatus string

		offerID        *uuid.UUID
		productTitle   *string
		imageURL       *string
		linkyPrice     *decimal.Decimal
		etaDays        *int
		note           *string
		adminSourceURL *string
		offerCreatedAt *time.Time
		offerUpdatedAt *time.Time
	)
	err := row.Scan(
		&req.ID,
		&req.UserID,
		&req.ProductURL,
		&req.TitleHint,
		&req.OriginalPrice,
		&req.Currency,
		&status,
		&paymentStatus,
		&req.CancelReason,
		&req.IsRepeat,
		&req.RepeatSourceID,
		&req.CreatedAt,
		&req.UpdatedAt,
		&offerID,
		&productTitle,
		&imageURL,
		&linkyPrice,
		&etaDays,
		&note,
		&adminSourceURL,
		&offerCreatedAt,
		&offerUpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	req.Status = model.RequestStatus(status)
	req.PaymentStatus = model.PaymentStatus(paymentStatus)

	if offerID != nil {
		offer := &model.Offer{
			ID:             *offerID,
			RequestID:      req.ID,
			ImageURL:       imageURL,
			Note:           note,
			AdminSourceURL: adminSourceURL,
		}
		if productTitle != nil {
			offer.ProductTitle = *productTitle
		}
		if linkyPrice != nil {
			offer.LinkyPrice = *linkyPrice
		}
		if etaDays != nil {
			offer.EtaDays = *etaDays
		}
		if offerCreatedAt != nil {
			offer.CreatedAt = *offerCreatedAt
		}
		if offerUpdatedAt != nil {
			offer.UpdatedAt = *offerUpdatedAt
		}
		req.Offer = offer
	}
	return &req, nil
}
