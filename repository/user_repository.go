package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"warden/models"
)

// UserRepository manages user rows shared across guilds
type UserRepository struct {
	q Queryable
}

func newUserRepository(q Queryable) *UserRepository {
	return &UserRepository{q: q}
}

// Upsert inserts or refreshes a user row
func (r *UserRepository) Upsert(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (user_id, username, display_name, bot, avatar_hash, banner_hash)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE SET
			username = EXCLUDED.username,
			display_name = EXCLUDED.display_name,
			avatar_hash = EXCLUDED.avatar_hash,
			banner_hash = EXCLUDED.banner_hash,
			updated_at = NOW()
		RETURNING created_at, updated_at
	`
	err := r.q.QueryRow(ctx, query,
		user.UserID, user.Username, user.DisplayName, user.Bot, user.AvatarHash, user.BannerHash,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert user %d: %w", user.UserID, mapError(err))
	}
	return nil
}

// Get retrieves a user by id, returning (nil, nil) when unknown
func (r *UserRepository) Get(ctx context.Context, userID int64) (*models.User, error) {
	query := `
		SELECT user_id, username, display_name, bot, avatar_hash, banner_hash, created_at, updated_at
		FROM users
		WHERE user_id = $1
	`
	var user models.User
	err := r.q.QueryRow(ctx, query, userID).Scan(
		&user.UserID,
		&user.Username,
		&user.DisplayName,
		&user.Bot,
		&user.AvatarHash,
		&user.BannerHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %d: %w", userID, mapError(err))
	}
	return &user, nil
}
