package models

import (
	"time"
)

// Guild represents a Discord guild the bot is a member of
type Guild struct {
	GuildID     int64     `db:"guild_id"`
	Name        string    `db:"name"`
	OwnerID     int64     `db:"owner_id"`
	MemberCount int       `db:"member_count"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// GuildMember represents a user's membership in a guild
type GuildMember struct {
	GuildID  int64     `db:"guild_id"`
	UserID   int64     `db:"user_id"`
	Nickname string    `db:"nickname"`
	JoinedAt time.Time `db:"joined_at"`
	RoleIDs  []int64   `db:"role_ids"`
}
