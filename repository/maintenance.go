package repository

import (
	"context"
	"fmt"
	"time"

	"warden/database"
)

// Maintenance runs cross-guild housekeeping queries directly on the pool,
// outside the guild-scoped unit of work.
type Maintenance struct {
	db *database.DB
}

func NewMaintenance(db *database.DB) *Maintenance {
	return &Maintenance{db: db}
}

// PurgeLogEntries deletes audit log entries older than the cutoff across
// all guilds, returning the number removed
func (m *Maintenance) PurgeLogEntries(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := m.db.Exec(ctx, `DELETE FROM log_entries WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge log entries: %w", mapError(err))
	}
	return tag.RowsAffected(), nil
}

// PurgeCommandUsage deletes command usage rows older than the cutoff
func (m *Maintenance) PurgeCommandUsage(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := m.db.Exec(ctx, `DELETE FROM command_usage WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge command usage: %w", mapError(err))
	}
	return tag.RowsAffected(), nil
}

// Stats summarizes table sizes for the operator CLI
type Stats struct {
	Guilds         int64
	Users          int64
	ActiveJails    int64
	LogEntries     int64
	Transactions   int64
	CommandsUsed24 int64
}

// CollectStats gathers row counts across the core tables
func (m *Maintenance) CollectStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	queries := []struct {
		dest  *int64
		query string
		args  []any
	}{
		{&stats.Guilds, `SELECT COUNT(*) FROM guilds`, nil},
		{&stats.Users, `SELECT COUNT(*) FROM users`, nil},
		{&stats.ActiveJails, `SELECT COUNT(*) FROM jail_records WHERE active`, nil},
		{&stats.LogEntries, `SELECT COUNT(*) FROM log_entries`, nil},
		{&stats.Transactions, `SELECT COUNT(*) FROM economy_transactions`, nil},
		{&stats.CommandsUsed24, `SELECT COUNT(*) FROM command_usage WHERE created_at >= $1`, []any{time.Now().Add(-24 * time.Hour)}},
	}

	for _, q := range queries {
		if err := m.db.QueryRow(ctx, q.query, q.args...).Scan(q.dest); err != nil {
			return nil, fmt.Errorf("failed to collect stats: %w", mapError(err))
		}
	}
	return stats, nil
}
