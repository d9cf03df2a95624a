package service

import (
	"context"
	"time"

	"warden/models"
)

// UnitOfWorkFactory creates guild-scoped units of work
type UnitOfWorkFactory interface {
	Create(guildID int64) UnitOfWork
}

// UnitOfWork represents one transactional session. Commit on success,
// Rollback on every other exit path; Rollback after Commit is a no-op.
type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	GuildRepository() GuildRepository
	UserRepository() UserRepository
	LogConfigRepository() LogConfigRepository
	JailRepository() JailRepository
	EconomyRepository() EconomyRepository
	TransactionRepository() TransactionRepository
	StoreRepository() StoreRepository
	RoleIncomeRepository() RoleIncomeRepository
	LogEntryRepository() LogEntryRepository
	CommandUsageRepository() CommandUsageRepository
}

// GuildRepository manages guild and membership rows
type GuildRepository interface {
	Upsert(ctx context.Context, guild *models.Guild) error
	Get(ctx context.Context, guildID int64) (*models.Guild, error)
	UpsertMember(ctx context.Context, member *models.GuildMember) error
	GetMember(ctx context.Context, guildID, userID int64) (*models.GuildMember, error)
}

// UserRepository manages user rows shared across guilds
type UserRepository interface {
	Upsert(ctx context.Context, user *models.User) error
	Get(ctx context.Context, userID int64) (*models.User, error)
}

// LogConfigRepository manages per-guild logging and jail configuration.
// Lookups return (nil, nil) when no row exists.
type LogConfigRepository interface {
	GetLogConfig(ctx context.Context) (*models.LogConfig, error)
	UpsertLogConfig(ctx context.Context, config *models.LogConfig) error
	GetJailConfig(ctx context.Context) (*models.JailConfig, error)
	UpsertJailConfig(ctx context.Context, config *models.JailConfig) error
}

// JailRepository manages jail records for one guild
type JailRepository interface {
	GetActive(ctx context.Context, userID int64) (*models.JailRecord, error)
	Create(ctx context.Context, record *models.JailRecord) error
	Close(ctx context.Context, recordID int64, releasedAt time.Time) error
	ListActive(ctx context.Context) ([]*models.JailRecord, error)
}

// EconomyRepository manages balances and economy settings for one guild
type EconomyRepository interface {
	GetSettings(ctx context.Context) (*models.EconomySettings, error)
	UpsertSettings(ctx context.Context, settings *models.EconomySettings) error

	GetAccount(ctx context.Context, userID int64) (*models.UserEconomy, error)
	// GetAccountForUpdate row-locks the account for the rest of the transaction
	GetAccountForUpdate(ctx context.Context, userID int64) (*models.UserEconomy, error)
	// GetAccountsForUpdate locks several accounts in ascending user-id order
	GetAccountsForUpdate(ctx context.Context, userIDs []int64) ([]*models.UserEconomy, error)
	CreateAccount(ctx context.Context, account *models.UserEconomy) error
	UpdateAccount(ctx context.Context, account *models.UserEconomy) error
	TopBalances(ctx context.Context, limit int) ([]*models.UserEconomy, error)

	GetGameSettings(ctx context.Context) (*models.GameSettings, error)
	UpsertGameSettings(ctx context.Context, settings *models.GameSettings) error
}

// TransactionRepository appends and queries the economy ledger
type TransactionRepository interface {
	Record(ctx context.Context, tx *models.EconomyTransaction) error
	SumByUser(ctx context.Context, userID int64) (int64, error)
	ListByUser(ctx context.Context, userID int64, limit int) ([]*models.EconomyTransaction, error)
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// StoreRepository manages the item catalogue and member inventories
type StoreRepository interface {
	GetItem(ctx context.Context, itemID int64) (*models.StoreItem, error)
	GetItemByName(ctx context.Context, name string) (*models.StoreItem, error)
	ListItems(ctx context.Context) ([]*models.StoreItem, error)
	CreateItem(ctx context.Context, item *models.StoreItem) error
	UpdateItem(ctx context.Context, item *models.StoreItem) error
	GetUserItem(ctx context.Context, userID, itemID int64) (*models.UserItem, error)
	AdjustUserItem(ctx context.Context, userID, itemID, delta int64) error
}

// RoleIncomeRepository manages recurring role incomes
type RoleIncomeRepository interface {
	List(ctx context.Context) ([]*models.RoleIncome, error)
	Create(ctx context.Context, income *models.RoleIncome) error
	Delete(ctx context.Context, incomeID int64) error
	GetLastCollected(ctx context.Context, userID, incomeID int64) (time.Time, error)
	SetLastCollected(ctx context.Context, userID, incomeID int64, at time.Time) error
}

// LogEntryRepository appends audit log entries
type LogEntryRepository interface {
	Record(ctx context.Context, entry *models.LogEntry) error
	CountSince(ctx context.Context, since time.Time) (int64, error)
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// CommandUsageRepository appends command telemetry
type CommandUsageRepository interface {
	Record(ctx context.Context, usage *models.CommandUsage) error
	CountSince(ctx context.Context, since time.Time) (int64, error)
}

// RoleManager abstracts the Discord role and channel mutations the jail
// workflow needs. The bot provides the real implementation over the REST
// surface; tests provide mocks.
type RoleManager interface {
	MemberRoles(ctx context.Context, guildID, userID int64) ([]int64, error)
	AddRole(ctx context.Context, guildID, userID, roleID int64) error
	RemoveRole(ctx context.Context, guildID, userID, roleID int64) error
}
