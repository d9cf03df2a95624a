package models

import (
	"time"
)

// StoreItem is one entry in a guild's item catalogue
type StoreItem struct {
	ID             int64     `db:"id"`
	GuildID        int64     `db:"guild_id"`
	Name           string    `db:"name"`
	Description    string    `db:"description"`
	Price          int64     `db:"price"`
	SellPrice      *int64    `db:"sell_price"` // nil means the item cannot be sold back
	Stock          int64     `db:"stock"`      // -1 means unlimited
	RequiredRoleID *int64    `db:"required_role_id"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

// InStock reports whether at least one unit can be bought
func (i *StoreItem) InStock() bool {
	return i.Stock != 0
}

// UserItem is one member's holding of a store item
type UserItem struct {
	GuildID   int64     `db:"guild_id"`
	UserID    int64     `db:"user_id"`
	ItemID    int64     `db:"item_id"`
	Quantity  int64     `db:"quantity"`
	UpdatedAt time.Time `db:"updated_at"`
}

// RoleIncome grants recurring income to holders of a role
type RoleIncome struct {
	ID        int64         `db:"id"`
	GuildID   int64         `db:"guild_id"`
	RoleID    int64         `db:"role_id"`
	Amount    int64         `db:"amount"`
	Interval  time.Duration `db:"interval"`
	CreatedAt time.Time     `db:"created_at"`
}

// UserRoleIncome tracks a member's last collection of a role income
type UserRoleIncome struct {
	GuildID      int64     `db:"guild_id"`
	UserID       int64     `db:"user_id"`
	RoleIncomeID int64     `db:"role_income_id"`
	LastCollected time.Time `db:"last_collected"`
}

// GameSettings bounds the wagering minigames per guild
type GameSettings struct {
	GuildID       int64     `db:"guild_id"`
	MinBet        int64     `db:"min_bet"`
	MaxBet        int64     `db:"max_bet"`
	WinProbability float64  `db:"win_probability"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

// DefaultGameSettings returns the defaults applied at first mutation
func DefaultGameSettings(guildID int64) *GameSettings {
	return &GameSettings{
		GuildID:        guildID,
		MinBet:         10,
		MaxBet:         10_000,
		WinProbability: 0.45,
	}
}
