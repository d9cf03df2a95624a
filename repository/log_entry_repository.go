package repository

import (
	"context"
	"fmt"
	"time"

	"warden/models"
)

// LogEntryRepository appends audit log entries for one guild
type LogEntryRepository struct {
	q       Queryable
	guildID int64
}

func newLogEntryRepository(q Queryable, guildID int64) *LogEntryRepository {
	return &LogEntryRepository{q: q, guildID: guildID}
}

// Record appends one audit entry
func (r *LogEntryRepository) Record(ctx context.Context, entry *models.LogEntry) error {
	query := `
		INSERT INTO log_entries (guild_id, user_id, channel_id, event_type, severity, title, description, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`
	if entry.Metadata == nil {
		entry.Metadata = map[string]any{}
	}
	err := r.q.QueryRow(ctx, query,
		r.guildID, entry.UserID, entry.ChannelID, entry.EventType,
		entry.Severity, entry.Title, entry.Description, entry.Metadata,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record log entry in guild %d: %w", r.guildID, mapError(err))
	}
	entry.GuildID = r.guildID
	return nil
}

// CountSince counts entries recorded after the given time
func (r *LogEntryRepository) CountSince(ctx context.Context, since time.Time) (int64, error) {
	query := `SELECT COUNT(*) FROM log_entries WHERE guild_id = $1 AND created_at >= $2`
	var count int64
	if err := r.q.QueryRow(ctx, query, r.guildID, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count log entries in guild %d: %w", r.guildID, mapError(err))
	}
	return count, nil
}

// PurgeOlderThan deletes entries older than the cutoff, returning the count
func (r *LogEntryRepository) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.q.Exec(ctx, `DELETE FROM log_entries WHERE guild_id = $1 AND created_at < $2`, r.guildID, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge log entries in guild %d: %w", r.guildID, mapError(err))
	}
	return tag.RowsAffected(), nil
}
