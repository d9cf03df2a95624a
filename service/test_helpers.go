package service

import (
	"context"
	"testing"
)

// Test IDs shared across service tests
const (
	TestGuildID     = 100200300
	TestUser1ID     = 111111
	TestUser2ID     = 222222
	TestModeratorID = 999999
	TestJailRoleID  = 555000
	TestJailChanID  = 555001
)

// TestMocks holds all mock repositories for easy access
type TestMocks struct {
	Guilds       *MockGuildRepository
	Users        *MockUserRepository
	LogConfigs   *MockLogConfigRepository
	Jails        *MockJailRepository
	Economy      *MockEconomyRepository
	Transactions *MockTransactionRepository
	Store        *MockStoreRepository
	RoleIncomes  *MockRoleIncomeRepository
	LogEntries   *MockLogEntryRepository
	CommandUsage *MockCommandUsageRepository
	RoleManager  *MockRoleManager

	uow *stubUnitOfWork

	// CreatedFor records the guild id of every unit of work handed out
	CreatedFor []int64
}

// NewTestMocks creates a new set of mocks sharing one stub unit of work
func NewTestMocks() *TestMocks {
	m := &TestMocks{
		Guilds:       new(MockGuildRepository),
		Users:        new(MockUserRepository),
		LogConfigs:   new(MockLogConfigRepository),
		Jails:        new(MockJailRepository),
		Economy:      new(MockEconomyRepository),
		Transactions: new(MockTransactionRepository),
		Store:        new(MockStoreRepository),
		RoleIncomes:  new(MockRoleIncomeRepository),
		LogEntries:   new(MockLogEntryRepository),
		CommandUsage: new(MockCommandUsageRepository),
		RoleManager:  new(MockRoleManager),
	}
	m.uow = &stubUnitOfWork{mocks: m}
	return m
}

// Factory returns a unit-of-work factory that always hands out the stub
func (m *TestMocks) Factory() UnitOfWorkFactory {
	return &stubFactory{mocks: m}
}

// Commits reports how many sessions were committed
func (m *TestMocks) Commits() int { return m.uow.commits }

// Rollbacks reports how many effective rollbacks ran (a rollback after a
// commit is a no-op, as in the real unit of work)
func (m *TestMocks) Rollbacks() int { return m.uow.rollbacks }

// FailBegin makes the next Begin fail
func (m *TestMocks) FailBegin(err error) { m.uow.beginErr = err }

// FailCommit makes every Commit fail
func (m *TestMocks) FailCommit(err error) { m.uow.commitErr = err }

// AssertAllExpectations asserts all mock expectations
func (m *TestMocks) AssertAllExpectations(t *testing.T) {
	m.Guilds.AssertExpectations(t)
	m.Users.AssertExpectations(t)
	m.LogConfigs.AssertExpectations(t)
	m.Jails.AssertExpectations(t)
	m.Economy.AssertExpectations(t)
	m.Transactions.AssertExpectations(t)
	m.Store.AssertExpectations(t)
	m.RoleIncomes.AssertExpectations(t)
	m.LogEntries.AssertExpectations(t)
	m.CommandUsage.AssertExpectations(t)
	m.RoleManager.AssertExpectations(t)
}

type stubFactory struct {
	mocks *TestMocks
}

func (f *stubFactory) Create(guildID int64) UnitOfWork {
	f.mocks.CreatedFor = append(f.mocks.CreatedFor, guildID)
	f.mocks.uow.open = false
	return f.mocks.uow
}

// stubUnitOfWork hands the shared repository mocks to the service under
// test. Session calls are counted, not mocked: pairing Begin with Commit or
// Rollback is an invariant every service must hold, and the counters let a
// test assert it without per-call expectations.
type stubUnitOfWork struct {
	mocks *TestMocks

	open      bool
	commits   int
	rollbacks int
	beginErr  error
	commitErr error
}

func (u *stubUnitOfWork) Begin(ctx context.Context) error {
	if u.beginErr != nil {
		err := u.beginErr
		u.beginErr = nil
		return err
	}
	u.open = true
	return nil
}

func (u *stubUnitOfWork) Commit() error {
	if u.commitErr != nil {
		return u.commitErr
	}
	u.open = false
	u.commits++
	return nil
}

func (u *stubUnitOfWork) Rollback() error {
	if u.open {
		u.rollbacks++
		u.open = false
	}
	return nil
}

func (u *stubUnitOfWork) GuildRepository() GuildRepository               { return u.mocks.Guilds }
func (u *stubUnitOfWork) UserRepository() UserRepository                 { return u.mocks.Users }
func (u *stubUnitOfWork) LogConfigRepository() LogConfigRepository       { return u.mocks.LogConfigs }
func (u *stubUnitOfWork) JailRepository() JailRepository                 { return u.mocks.Jails }
func (u *stubUnitOfWork) EconomyRepository() EconomyRepository           { return u.mocks.Economy }
func (u *stubUnitOfWork) TransactionRepository() TransactionRepository   { return u.mocks.Transactions }
func (u *stubUnitOfWork) StoreRepository() StoreRepository               { return u.mocks.Store }
func (u *stubUnitOfWork) RoleIncomeRepository() RoleIncomeRepository     { return u.mocks.RoleIncomes }
func (u *stubUnitOfWork) LogEntryRepository() LogEntryRepository         { return u.mocks.LogEntries }
func (u *stubUnitOfWork) CommandUsageRepository() CommandUsageRepository { return u.mocks.CommandUsage }
