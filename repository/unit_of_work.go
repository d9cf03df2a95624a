package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5"
	log "github.com/sirupsen/logrus"

	"warden/apperr"
	"warden/database"
	"warden/service"
)

const (
	conflictRetries        = 3
	conflictInitialBackoff = 4 * time.Second
	conflictMaxBackoff     = 10 * time.Second
)

// unitOfWork implements the service.UnitOfWork interface
type unitOfWork struct {
	db      *database.DB
	tx      pgx.Tx
	ctx     context.Context
	guildID int64

	guildRepo        service.GuildRepository
	userRepo         service.UserRepository
	logConfigRepo    service.LogConfigRepository
	jailRepo         service.JailRepository
	economyRepo      service.EconomyRepository
	transactionRepo  service.TransactionRepository
	storeRepo        service.StoreRepository
	roleIncomeRepo   service.RoleIncomeRepository
	logEntryRepo     service.LogEntryRepository
	commandUsageRepo service.CommandUsageRepository
}

type unitOfWorkFactory struct {
	db *database.DB
}

// NewUnitOfWorkFactory creates a new UnitOfWork factory
func NewUnitOfWorkFactory(db *database.DB) service.UnitOfWorkFactory {
	return &unitOfWorkFactory{db: db}
}

// Create returns a guild-scoped unit of work
func (f *unitOfWorkFactory) Create(guildID int64) service.UnitOfWork {
	return &unitOfWork{
		db:      f.db,
		guildID: guildID,
	}
}

// Begin starts a new transaction
func (u *unitOfWork) Begin(ctx context.Context) error {
	if u.tx != nil {
		return fmt.Errorf("transaction already started")
	}

	tx, err := u.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", mapError(err))
	}

	u.tx = tx
	u.ctx = ctx

	// Create guild-scoped repositories with the transaction
	u.guildRepo = newGuildRepository(tx)
	u.userRepo = newUserRepository(tx)
	u.logConfigRepo = newLogConfigRepository(tx, u.guildID)
	u.jailRepo = newJailRepository(tx, u.guildID)
	u.economyRepo = newEconomyRepository(tx, u.guildID)
	u.transactionRepo = newTransactionRepository(tx, u.guildID)
	u.storeRepo = newStoreRepository(tx, u.guildID)
	u.roleIncomeRepo = newRoleIncomeRepository(tx, u.guildID)
	u.logEntryRepo = newLogEntryRepository(tx, u.guildID)
	u.commandUsageRepo = newCommandUsageRepository(tx)

	return nil
}

// Commit commits the transaction
func (u *unitOfWork) Commit() error {
	if u.tx == nil {
		return fmt.Errorf("no transaction to commit")
	}

	if err := u.tx.Commit(u.ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", mapError(err))
	}
	u.tx = nil
	return nil
}

// Rollback rolls back the transaction. Safe to defer: a no-op after Commit.
func (u *unitOfWork) Rollback() error {
	if u.tx == nil {
		return nil
	}

	err := u.tx.Rollback(u.ctx)
	u.tx = nil
	if err != nil && err != pgx.ErrTxClosed {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}
	return nil
}

func (u *unitOfWork) GuildRepository() service.GuildRepository {
	if u.guildRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.guildRepo
}

func (u *unitOfWork) UserRepository() service.UserRepository {
	if u.userRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.userRepo
}

func (u *unitOfWork) LogConfigRepository() service.LogConfigRepository {
	if u.logConfigRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.logConfigRepo
}

func (u *unitOfWork) JailRepository() service.JailRepository {
	if u.jailRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.jailRepo
}

func (u *unitOfWork) EconomyRepository() service.EconomyRepository {
	if u.economyRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.economyRepo
}

func (u *unitOfWork) TransactionRepository() service.TransactionRepository {
	if u.transactionRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.transactionRepo
}

func (u *unitOfWork) StoreRepository() service.StoreRepository {
	if u.storeRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.storeRepo
}

func (u *unitOfWork) RoleIncomeRepository() service.RoleIncomeRepository {
	if u.roleIncomeRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.roleIncomeRepo
}

func (u *unitOfWork) LogEntryRepository() service.LogEntryRepository {
	if u.logEntryRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.logEntryRepo
}

func (u *unitOfWork) CommandUsageRepository() service.CommandUsageRepository {
	if u.commandUsageRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.commandUsageRepo
}

// ExecuteWithRetry runs fn inside a fresh unit of work, committing on success.
// Conflicting transactions are retried up to three times with exponential
// backoff before the conflict is surfaced to the caller.
func ExecuteWithRetry(ctx context.Context, factory service.UnitOfWorkFactory, guildID int64, fn func(uow service.UnitOfWork) error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = conflictInitialBackoff
	policy.MaxInterval = conflictMaxBackoff
	policy.RandomizationFactor = 0

	attempt := 0
	operation := func() error {
		attempt++
		uow := factory.Create(guildID)
		if err := uow.Begin(ctx); err != nil {
			return backoff.Permanent(err)
		}
		defer uow.Rollback()

		if err := fn(uow); err != nil {
			if apperr.Is(err, apperr.KindConflict) && attempt <= conflictRetries {
				log.WithFields(log.Fields{
					"guildID": guildID,
					"attempt": attempt,
				}).Warn("Transaction conflict, retrying")
				return err
			}
			return backoff.Permanent(err)
		}

		if err := uow.Commit(); err != nil {
			if apperr.Is(err, apperr.KindConflict) && attempt <= conflictRetries {
				return err
			}
			return backoff.Permanent(err)
		}
		return nil
	}

	return backoff.Retry(operation, backoff.WithContext(policy, ctx))
}
