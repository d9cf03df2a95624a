package models

import (
	"time"
)

// User represents a Discord user, shared across guilds
type User struct {
	UserID      int64     `db:"user_id"`
	Username    string    `db:"username"`
	DisplayName string    `db:"display_name"`
	Bot         bool      `db:"bot"`
	AvatarHash  string    `db:"avatar_hash"`
	BannerHash  string    `db:"banner_hash"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}
