package models

import (
	"time"
)

// JailConfig holds a guild's jail setup
type JailConfig struct {
	GuildID   int64     `db:"guild_id"`
	ChannelID int64     `db:"channel_id"`
	RoleID    int64     `db:"role_id"`
	Enabled   bool      `db:"enabled"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// JailRecord captures one jailing of a member. Records are never deleted;
// release closes the record by clearing Active and setting ReleasedAt.
// At most one active record exists per (guild, user).
type JailRecord struct {
	ID          int64      `db:"id"`
	GuildID     int64      `db:"guild_id"`
	UserID      int64      `db:"user_id"`
	ModeratorID int64      `db:"moderator_id"`
	Reason      string     `db:"reason"`
	RoleIDs     []int64    `db:"role_ids"` // roles held before jailing, stored as JSON
	JailedAt    time.Time  `db:"jailed_at"`
	ReleasedAt  *time.Time `db:"released_at"`
	Active      bool       `db:"active"`
}
