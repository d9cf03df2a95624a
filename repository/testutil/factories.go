package testutil

import (
	"time"

	"warden/models"
)

// NewGuild builds a guild row with sane defaults
func NewGuild(guildID int64) *models.Guild {
	return &models.Guild{
		GuildID:     guildID,
		Name:        "Test Guild",
		OwnerID:     1,
		MemberCount: 10,
	}
}

// NewUser builds a user row
func NewUser(userID int64, username string) *models.User {
	return &models.User{
		UserID:      userID,
		Username:    username,
		DisplayName: username,
	}
}

// NewAccount builds an economy account with the given balances
func NewAccount(guildID, userID, cash, bank int64) *models.UserEconomy {
	return &models.UserEconomy{
		GuildID:        guildID,
		UserID:         userID,
		Cash:           cash,
		Bank:           bank,
		LifetimeEarned: cash + bank,
		LastActions:    map[models.EarnAction]time.Time{},
	}
}

// NewJailRecord builds an active jail record
func NewJailRecord(guildID, userID, moderatorID int64, roleIDs []int64) *models.JailRecord {
	return &models.JailRecord{
		GuildID:     guildID,
		UserID:      userID,
		ModeratorID: moderatorID,
		Reason:      "test jailing",
		RoleIDs:     roleIDs,
		JailedAt:    time.Now().UTC().Truncate(time.Millisecond),
		Active:      true,
	}
}
