package repository

import (
	"context"
	"fmt"
	"time"

	"warden/models"
)

// CommandUsageRepository appends command telemetry. Not guild scoped: usage
// rows may carry a nil guild for direct-message invocations.
type CommandUsageRepository struct {
	q Queryable
}

func newCommandUsageRepository(q Queryable) *CommandUsageRepository {
	return &CommandUsageRepository{q: q}
}

// Record appends one usage row
func (r *CommandUsageRepository) Record(ctx context.Context, usage *models.CommandUsage) error {
	query := `
		INSERT INTO command_usage (guild_id, user_id, command, duration_ms, success, error_message)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`
	err := r.q.QueryRow(ctx, query,
		usage.GuildID, usage.UserID, usage.Command, usage.DurationMs, usage.Success, usage.ErrorMessage,
	).Scan(&usage.ID, &usage.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record command usage for user %d: %w", usage.UserID, mapError(err))
	}
	return nil
}

// CountSince counts invocations recorded after the given time
func (r *CommandUsageRepository) CountSince(ctx context.Context, since time.Time) (int64, error) {
	query := `SELECT COUNT(*) FROM command_usage WHERE created_at >= $1`
	var count int64
	if err := r.q.QueryRow(ctx, query, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count command usage: %w", mapError(err))
	}
	return count, nil
}
