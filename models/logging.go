package models

import (
	"time"
)

// LogCategory identifies a class of auditable guild activity
type LogCategory string

const (
	LogCategoryJoins          LogCategory = "joins"
	LogCategoryLeaves         LogCategory = "leaves"
	LogCategoryMessageDeletes LogCategory = "message_deletes"
	LogCategoryBulkDeletes    LogCategory = "bulk_deletes"
	LogCategoryRoleChanges    LogCategory = "role_changes"
	LogCategoryChannelChanges LogCategory = "channel_changes"
	LogCategoryModeration     LogCategory = "moderation"
)

// AllLogCategories lists every category a guild can toggle
var AllLogCategories = []LogCategory{
	LogCategoryJoins,
	LogCategoryLeaves,
	LogCategoryMessageDeletes,
	LogCategoryBulkDeletes,
	LogCategoryRoleChanges,
	LogCategoryChannelChanges,
	LogCategoryModeration,
}

// LogConfig holds a guild's audit logging configuration
type LogConfig struct {
	GuildID    int64                `db:"guild_id"`
	ChannelID  int64                `db:"channel_id"`
	Enabled    bool                 `db:"enabled"`
	Categories map[LogCategory]bool `db:"categories"`
	CreatedAt  time.Time            `db:"created_at"`
	UpdatedAt  time.Time            `db:"updated_at"`
}

// CategoryEnabled reports whether a category should be delivered. Categories
// with no explicit toggle default to enabled.
func (c *LogConfig) CategoryEnabled(category LogCategory) bool {
	if !c.Enabled {
		return false
	}
	enabled, ok := c.Categories[category]
	if !ok {
		return true
	}
	return enabled
}

// LogSeverity grades a log entry
type LogSeverity string

const (
	LogSeverityInfo     LogSeverity = "info"
	LogSeverityWarn     LogSeverity = "warn"
	LogSeverityError    LogSeverity = "error"
	LogSeverityCritical LogSeverity = "critical"
)

// LogEntry is an append-only audit record
type LogEntry struct {
	ID          int64          `db:"id"`
	GuildID     int64          `db:"guild_id"`
	UserID      *int64         `db:"user_id"`
	ChannelID   *int64         `db:"channel_id"`
	EventType   string         `db:"event_type"`
	Severity    LogSeverity    `db:"severity"`
	Title       string         `db:"title"`
	Description string         `db:"description"`
	Metadata    map[string]any `db:"metadata"`
	CreatedAt   time.Time      `db:"created_at"`
}

// CommandUsage is an append-only telemetry record for one handler invocation
type CommandUsage struct {
	ID           int64     `db:"id"`
	GuildID      *int64    `db:"guild_id"`
	UserID       int64     `db:"user_id"`
	Command      string    `db:"command"`
	DurationMs   int64     `db:"duration_ms"`
	Success      bool      `db:"success"`
	ErrorMessage *string   `db:"error_message"`
	CreatedAt    time.Time `db:"created_at"`
}
