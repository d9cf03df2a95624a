package service

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"warden/models"
)

// MockGuildRepository is a mock implementation of GuildRepository
type MockGuildRepository struct {
	mock.Mock
}

func (m *MockGuildRepository) Upsert(ctx context.Context, guild *models.Guild) error {
	args := m.Called(ctx, guild)
	return args.Error(0)
}

func (m *MockGuildRepository) Get(ctx context.Context, guildID int64) (*models.Guild, error) {
	args := m.Called(ctx, guildID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Guild), args.Error(1)
}

func (m *MockGuildRepository) UpsertMember(ctx context.Context, member *models.GuildMember) error {
	args := m.Called(ctx, member)
	return args.Error(0)
}

func (m *MockGuildRepository) GetMember(ctx context.Context, guildID, userID int64) (*models.GuildMember, error) {
	args := m.Called(ctx, guildID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.GuildMember), args.Error(1)
}

// MockUserRepository is a mock implementation of UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Upsert(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) Get(ctx context.Context, userID int64) (*models.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

// MockLogConfigRepository is a mock implementation of LogConfigRepository
type MockLogConfigRepository struct {
	mock.Mock
}

func (m *MockLogConfigRepository) GetLogConfig(ctx context.Context) (*models.LogConfig, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.LogConfig), args.Error(1)
}

func (m *MockLogConfigRepository) UpsertLogConfig(ctx context.Context, config *models.LogConfig) error {
	args := m.Called(ctx, config)
	return args.Error(0)
}

func (m *MockLogConfigRepository) GetJailConfig(ctx context.Context) (*models.JailConfig, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.JailConfig), args.Error(1)
}

func (m *MockLogConfigRepository) UpsertJailConfig(ctx context.Context, config *models.JailConfig) error {
	args := m.Called(ctx, config)
	return args.Error(0)
}

// MockJailRepository is a mock implementation of JailRepository
type MockJailRepository struct {
	mock.Mock
}

func (m *MockJailRepository) GetActive(ctx context.Context, userID int64) (*models.JailRecord, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.JailRecord), args.Error(1)
}

func (m *MockJailRepository) Create(ctx context.Context, record *models.JailRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockJailRepository) Close(ctx context.Context, recordID int64, releasedAt time.Time) error {
	args := m.Called(ctx, recordID, releasedAt)
	return args.Error(0)
}

func (m *MockJailRepository) ListActive(ctx context.Context) ([]*models.JailRecord, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.JailRecord), args.Error(1)
}

// MockEconomyRepository is a mock implementation of EconomyRepository
type MockEconomyRepository struct {
	mock.Mock
}

func (m *MockEconomyRepository) GetSettings(ctx context.Context) (*models.EconomySettings, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.EconomySettings), args.Error(1)
}

func (m *MockEconomyRepository) UpsertSettings(ctx context.Context, settings *models.EconomySettings) error {
	args := m.Called(ctx, settings)
	return args.Error(0)
}

func (m *MockEconomyRepository) GetAccount(ctx context.Context, userID int64) (*models.UserEconomy, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserEconomy), args.Error(1)
}

func (m *MockEconomyRepository) GetAccountForUpdate(ctx context.Context, userID int64) (*models.UserEconomy, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserEconomy), args.Error(1)
}

func (m *MockEconomyRepository) GetAccountsForUpdate(ctx context.Context, userIDs []int64) ([]*models.UserEconomy, error) {
	args := m.Called(ctx, userIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.UserEconomy), args.Error(1)
}

func (m *MockEconomyRepository) CreateAccount(ctx context.Context, account *models.UserEconomy) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *MockEconomyRepository) UpdateAccount(ctx context.Context, account *models.UserEconomy) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *MockEconomyRepository) TopBalances(ctx context.Context, limit int) ([]*models.UserEconomy, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.UserEconomy), args.Error(1)
}

func (m *MockEconomyRepository) GetGameSettings(ctx context.Context) (*models.GameSettings, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.GameSettings), args.Error(1)
}

func (m *MockEconomyRepository) UpsertGameSettings(ctx context.Context, settings *models.GameSettings) error {
	args := m.Called(ctx, settings)
	return args.Error(0)
}

// MockTransactionRepository is a mock implementation of TransactionRepository
type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) Record(ctx context.Context, tx *models.EconomyTransaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *MockTransactionRepository) SumByUser(ctx context.Context, userID int64) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTransactionRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]*models.EconomyTransaction, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.EconomyTransaction), args.Error(1)
}

func (m *MockTransactionRepository) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

// MockStoreRepository is a mock implementation of StoreRepository
type MockStoreRepository struct {
	mock.Mock
}

func (m *MockStoreRepository) GetItem(ctx context.Context, itemID int64) (*models.StoreItem, error) {
	args := m.Called(ctx, itemID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.StoreItem), args.Error(1)
}

func (m *MockStoreRepository) GetItemByName(ctx context.Context, name string) (*models.StoreItem, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.StoreItem), args.Error(1)
}

func (m *MockStoreRepository) ListItems(ctx context.Context) ([]*models.StoreItem, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.StoreItem), args.Error(1)
}

func (m *MockStoreRepository) CreateItem(ctx context.Context, item *models.StoreItem) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

func (m *MockStoreRepository) UpdateItem(ctx context.Context, item *models.StoreItem) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

func (m *MockStoreRepository) GetUserItem(ctx context.Context, userID, itemID int64) (*models.UserItem, error) {
	args := m.Called(ctx, userID, itemID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserItem), args.Error(1)
}

func (m *MockStoreRepository) AdjustUserItem(ctx context.Context, userID, itemID, delta int64) error {
	args := m.Called(ctx, userID, itemID, delta)
	return args.Error(0)
}

// MockRoleIncomeRepository is a mock implementation of RoleIncomeRepository
type MockRoleIncomeRepository struct {
	mock.Mock
}

func (m *MockRoleIncomeRepository) List(ctx context.Context) ([]*models.RoleIncome, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.RoleIncome), args.Error(1)
}

func (m *MockRoleIncomeRepository) Create(ctx context.Context, income *models.RoleIncome) error {
	args := m.Called(ctx, income)
	return args.Error(0)
}

func (m *MockRoleIncomeRepository) Delete(ctx context.Context, incomeID int64) error {
	args := m.Called(ctx, incomeID)
	return args.Error(0)
}

func (m *MockRoleIncomeRepository) GetLastCollected(ctx context.Context, userID, incomeID int64) (time.Time, error) {
	args := m.Called(ctx, userID, incomeID)
	return args.Get(0).(time.Time), args.Error(1)
}

func (m *MockRoleIncomeRepository) SetLastCollected(ctx context.Context, userID, incomeID int64, at time.Time) error {
	args := m.Called(ctx, userID, incomeID, at)
	return args.Error(0)
}

// MockLogEntryRepository is a mock implementation of LogEntryRepository
type MockLogEntryRepository struct {
	mock.Mock
}

func (m *MockLogEntryRepository) Record(ctx context.Context, entry *models.LogEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockLogEntryRepository) CountSince(ctx context.Context, since time.Time) (int64, error) {
	args := m.Called(ctx, since)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLogEntryRepository) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

// MockCommandUsageRepository is a mock implementation of CommandUsageRepository
type MockCommandUsageRepository struct {
	mock.Mock
}

func (m *MockCommandUsageRepository) Record(ctx context.Context, usage *models.CommandUsage) error {
	args := m.Called(ctx, usage)
	return args.Error(0)
}

func (m *MockCommandUsageRepository) CountSince(ctx context.Context, since time.Time) (int64, error) {
	args := m.Called(ctx, since)
	return args.Get(0).(int64), args.Error(1)
}

// MockRoleManager is a mock implementation of RoleManager
type MockRoleManager struct {
	mock.Mock
}

func (m *MockRoleManager) MemberRoles(ctx context.Context, guildID, userID int64) ([]int64, error) {
	args := m.Called(ctx, guildID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}

func (m *MockRoleManager) AddRole(ctx context.Context, guildID, userID, roleID int64) error {
	args := m.Called(ctx, guildID, userID, roleID)
	return args.Error(0)
}

func (m *MockRoleManager) RemoveRole(ctx context.Context, guildID, userID, roleID int64) error {
	args := m.Called(ctx, guildID, userID, roleID)
	return args.Error(0)
}
