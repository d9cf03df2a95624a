package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"warden/models"
)

// GuildRepository manages guild and membership rows
type GuildRepository struct {
	q Queryable
}

func newGuildRepository(q Queryable) *GuildRepository {
	return &GuildRepository{q: q}
}

// Upsert inserts or refreshes a guild row
func (r *GuildRepository) Upsert(ctx context.Context, guild *models.Guild) error {
	query := `
		INSERT INTO guilds (guild_id, name, owner_id, member_count)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (guild_id) DO UPDATE SET
			name = EXCLUDED.name,
			owner_id = EXCLUDED.owner_id,
			member_count = EXCLUDED.member_count,
			updated_at = NOW()
		RETURNING created_at, updated_at
	`
	err := r.q.QueryRow(ctx, query, guild.GuildID, guild.Name, guild.OwnerID, guild.MemberCount).
		Scan(&guild.CreatedAt, &guild.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert guild %d: %w", guild.GuildID, mapError(err))
	}
	return nil
}

// Get retrieves a guild by id, returning (nil, nil) when unknown
func (r *GuildRepository) Get(ctx context.Context, guildID int64) (*models.Guild, error) {
	query := `
		SELECT guild_id, name, owner_id, member_count, created_at, updated_at
		FROM guilds
		WHERE guild_id = $1
	`
	var guild models.Guild
	err := r.q.QueryRow(ctx, query, guildID).Scan(
		&guild.GuildID,
		&guild.Name,
		&guild.OwnerID,
		&guild.MemberCount,
		&guild.CreatedAt,
		&guild.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get guild %d: %w", guildID, mapError(err))
	}
	return &guild, nil
}

// UpsertMember inserts or refreshes a guild membership row
func (r *GuildRepository) UpsertMember(ctx context.Context, member *models.GuildMember) error {
	query := `
		INSERT INTO guild_members (guild_id, user_id, nickname, joined_at, role_ids)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (guild_id, user_id) DO UPDATE SET
			nickname = EXCLUDED.nickname,
			role_ids = EXCLUDED.role_ids
	`
	_, err := r.q.Exec(ctx, query, member.GuildID, member.UserID, member.Nickname, member.JoinedAt, member.RoleIDs)
	if err != nil {
		return fmt.Errorf("failed to upsert member %d in guild %d: %w", member.UserID, member.GuildID, mapError(err))
	}
	return nil
}

// GetMember retrieves a membership row, returning (nil, nil) when unknown
func (r *GuildRepository) GetMember(ctx context.Context, guildID, userID int64) (*models.GuildMember, error) {
	query := `
		SELECT guild_id, user_id, nickname, joined_at, role_ids
		FROM guild_members
		WHERE guild_id = $1 AND user_id = $2
	`
	var member models.GuildMember
	err := r.q.QueryRow(ctx, query, guildID, userID).Scan(
		&member.GuildID,
		&member.UserID,
		&member.Nickname,
		&member.JoinedAt,
		&member.RoleIDs,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get member %d in guild %d: %w", userID, guildID, mapError(err))
	}
	return &member, nil
}
