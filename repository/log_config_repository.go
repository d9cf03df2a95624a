package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"warden/models"
)

// LogConfigRepository manages per-guild logging and jail configuration
type LogConfigRepository struct {
	q       Queryable
	guildID int64
}

func newLogConfigRepository(q Queryable, guildID int64) *LogConfigRepository {
	return &LogConfigRepository{q: q, guildID: guildID}
}

// GetLogConfig retrieves the guild's log config, returning (nil, nil) when unset
func (r *LogConfigRepository) GetLogConfig(ctx context.Context) (*models.LogConfig, error) {
	query := `
		SELECT guild_id, channel_id, enabled, categories, created_at, updated_at
		FROM log_configs
		WHERE guild_id = $1
	`
	var config models.LogConfig
	err := r.q.QueryRow(ctx, query, r.guildID).Scan(
		&config.GuildID,
		&config.ChannelID,
		&config.Enabled,
		&config.Categories,
		&config.CreatedAt,
		&config.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get log config for guild %d: %w", r.guildID, mapError(err))
	}
	return &config, nil
}

// UpsertLogConfig inserts or updates the guild's log config
func (r *LogConfigRepository) UpsertLogConfig(ctx context.Context, config *models.LogConfig) error {
	query := `
		INSERT INTO log_configs (guild_id, channel_id, enabled, categories)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (guild_id) DO UPDATE SET
			channel_id = EXCLUDED.channel_id,
			enabled = EXCLUDED.enabled,
			categories = EXCLUDED.categories,
			updated_at = NOW()
		RETURNING created_at, updated_at
	`
	err := r.q.QueryRow(ctx, query, r.guildID, config.ChannelID, config.Enabled, config.Categories).
		Scan(&config.CreatedAt, &config.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert log config for guild %d: %w", r.guildID, mapError(err))
	}
	config.GuildID = r.guildID
	return nil
}

// GetJailConfig retrieves the guild's jail config, returning (nil, nil) when unset
func (r *LogConfigRepository) GetJailConfig(ctx context.Context) (*models.JailConfig, error) {
	query := `
		SELECT guild_id, channel_id, role_id, enabled, created_at, updated_at
		FROM jail_configs
		WHERE guild_id = $1
	`
	var config models.JailConfig
	err := r.q.QueryRow(ctx, query, r.guildID).Scan(
		&config.GuildID,
		&config.ChannelID,
		&config.RoleID,
		&config.Enabled,
		&config.CreatedAt,
		&config.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get jail config for guild %d: %w", r.guildID, mapError(err))
	}
	return &config, nil
}

// UpsertJailConfig inserts or updates the guild's jail config
func (r *LogConfigRepository) UpsertJailConfig(ctx context.Context, config *models.JailConfig) error {
	query := `
		INSERT INTO jail_configs (guild_id, channel_id, role_id, enabled)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (guild_id) DO UPDATE SET
			channel_id = EXCLUDED.channel_id,
			role_id = EXCLUDED.role_id,
			enabled = EXCLUDED.enabled,
			updated_at = NOW()
		RETURNING created_at, updated_at
	`
	err := r.q.QueryRow(ctx, query, r.guildID, config.ChannelID, config.RoleID, config.Enabled).
		Scan(&config.CreatedAt, &config.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert jail config for guild %d: %w", r.guildID, mapError(err))
	}
	config.GuildID = r.guildID
	return nil
}
