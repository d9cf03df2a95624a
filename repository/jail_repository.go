package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"warden/models"
)

// JailRepository manages jail records for one guild
type JailRepository struct {
	q       Queryable
	guildID int64
}

func newJailRepository(q Queryable, guildID int64) *JailRepository {
	return &JailRepository{q: q, guildID: guildID}
}

// GetActive retrieves the active record for a user, returning (nil, nil) when free
func (r *JailRepository) GetActive(ctx context.Context, userID int64) (*models.JailRecord, error) {
	query := `
		SELECT id, guild_id, user_id, moderator_id, reason, role_ids, jailed_at, released_at, active
		FROM jail_records
		WHERE guild_id = $1 AND user_id = $2 AND active
	`
	record, err := scanJailRecord(r.q.QueryRow(ctx, query, r.guildID, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active jail record for user %d in guild %d: %w", userID, r.guildID, mapError(err))
	}
	return record, nil
}

// Create inserts a new active record. The partial unique index rejects a
// second active record for the same user with a Conflict.
func (r *JailRepository) Create(ctx context.Context, record *models.JailRecord) error {
	query := `
		INSERT INTO jail_records (guild_id, user_id, moderator_id, reason, role_ids, jailed_at, active)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE)
		RETURNING id
	`
	err := r.q.QueryRow(ctx, query,
		r.guildID, record.UserID, record.ModeratorID, record.Reason, record.RoleIDs, record.JailedAt,
	).Scan(&record.ID)
	if err != nil {
		return fmt.Errorf("failed to create jail record for user %d in guild %d: %w", record.UserID, r.guildID, mapError(err))
	}
	record.GuildID = r.guildID
	record.Active = true
	return nil
}

// Close marks a record released
func (r *JailRepository) Close(ctx context.Context, recordID int64, releasedAt time.Time) error {
	query := `
		UPDATE jail_records
		SET active = FALSE, released_at = $2
		WHERE id = $1 AND guild_id = $3 AND active
	`
	tag, err := r.q.Exec(ctx, query, recordID, releasedAt, r.guildID)
	if err != nil {
		return fmt.Errorf("failed to close jail record %d: %w", recordID, mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("failed to close jail record %d: %w", recordID, mapError(pgx.ErrNoRows))
	}
	return nil
}

// ListActive returns every active record in the guild
func (r *JailRepository) ListActive(ctx context.Context) ([]*models.JailRecord, error) {
	query := `
		SELECT id, guild_id, user_id, moderator_id, reason, role_ids, jailed_at, released_at, active
		FROM jail_records
		WHERE guild_id = $1 AND active
		ORDER BY jailed_at
	`
	rows, err := r.q.Query(ctx, query, r.guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to list active jail records for guild %d: %w", r.guildID, mapError(err))
	}
	defer rows.Close()

	var records []*models.JailRecord
	for rows.Next() {
		record, err := scanJailRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan jail record: %w", mapError(err))
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func scanJailRecord(row pgx.Row) (*models.JailRecord, error) {
	var record models.JailRecord
	err := row.Scan(
		&record.ID,
		&record.GuildID,
		&record.UserID,
		&record.ModeratorID,
		&record.Reason,
		&record.RoleIDs,
		&record.JailedAt,
		&record.ReleasedAt,
		&record.Active,
	)
	if err != nil {
		return nil, err
	}
	return &record, nil
}
