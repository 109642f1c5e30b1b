package repository

import (
	"context"
	"errors"
	"fmt"

	"linky/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

type userRepository struct {
	db     DB
	logger zerolog.Logger
}

// NewUserRepository creates a new PostgreSQL-backed user repository.
func NewUserRepository(db DB, logger zerolog.Logger) UserRepository {
	return &userRepository{
		db:     db,
		logger: logger.With().Str("repository", "user").Logger(),
	}
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	query := `
		SELECT id, role, username, email, created_at
		FROM users
		WHERE id = $1
	`

	var (
		user model.User
		role string
	)
	err := r.db.QueryRow(ctx, query, id).Scan(&user.ID, &role, &user.Username, &user.Email, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error().Err(err).Str("user_id", id.String()).Msg("failed to query user")
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	user.Role = model.Role(role)
	return &user, nil
}

func (r *userRepository) Upsert(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (id, role, username, email, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			role = EXCLUDED.role,
			username = EXCLUDED.username,
			email = EXCLUDED.email
		RETURNING created_at
	`
	err := r.db.QueryRow(ctx, query, user.ID, string(user.Role), user.Username, user.Email, user.CreatedAt).
		Scan(&user.CreatedAt)
	if err != nil {
		r.logger.Error().Err(err).Str("user_id", user.ID.String()).Msg("failed to upsert user")
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}
