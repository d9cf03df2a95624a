package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warden/models"
	"warden/repository/testutil"
	"warden/service"
)

func TestEconomyRepository_Settings(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	seedGuild(t, testDB.DB, 400)

	t.Run("unset guild returns nil", func(t *testing.T) {
		withUnitOfWork(t, testDB.DB, 400, func(uow service.UnitOfWork) {
			settings, err := uow.EconomyRepository().GetSettings(ctx)
			require.NoError(t, err)
			assert.Nil(t, settings)
		})
	})

	t.Run("round trip", func(t *testing.T) {
		seed := models.DefaultEconomySettings(400)
		seed.CurrencySymbol = "🪙"
		seed.WorkPayout = models.PayoutRange{Min: 75, Max: 300}
		seed.WorkCooldown = 45 * time.Minute
		seed.ChatIncomeEnabled = true

		withUnitOfWork(t, testDB.DB, 400, func(uow service.UnitOfWork) {
			require.NoError(t, uow.EconomyRepository().UpsertSettings(ctx, seed))
		})

		withUnitOfWork(t, testDB.DB, 400, func(uow service.UnitOfWork) {
			settings, err := uow.EconomyRepository().GetSettings(ctx)
			require.NoError(t, err)
			require.NotNil(t, settings)
			assert.Equal(t, "🪙", settings.CurrencySymbol)
			assert.Equal(t, models.PayoutRange{Min: 75, Max: 300}, settings.WorkPayout)
			assert.Equal(t, 45*time.Minute, settings.WorkCooldown)
			assert.Equal(t, models.FinePolicyPercent, settings.FinePolicy)
			assert.True(t, settings.ChatIncomeEnabled)
		})
	})
}

func TestEconomyRepository_Accounts(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	seedGuild(t, testDB.DB, 410)

	t.Run("unknown account returns nil", func(t *testing.T) {
		withUnitOfWork(t, testDB.DB, 410, func(uow service.UnitOfWork) {
			account, err := uow.EconomyRepository().GetAccount(ctx, 1)
			require.NoError(t, err)
			assert.Nil(t, account)
		})
	})

	t.Run("create and read back", func(t *testing.T) {
		withUnitOfWork(t, testDB.DB, 410, func(uow service.UnitOfWork) {
			require.NoError(t, uow.EconomyRepository().CreateAccount(ctx, testutil.NewAccount(410, 1, 500, 0)))
		})

		withUnitOfWork(t, testDB.DB, 410, func(uow service.UnitOfWork) {
			account, err := uow.EconomyRepository().GetAccount(ctx, 1)
			require.NoError(t, err)
			require.NotNil(t, account)
			assert.Equal(t, int64(500), account.Cash)
			assert.Equal(t, int64(0), account.Bank)
			assert.Equal(t, int64(500), account.LifetimeEarned)
		})
	})

	t.Run("update persists balances and action timestamps", func(t *testing.T) {
		workedAt := time.Now().UTC().Truncate(time.Second)
		withUnitOfWork(t, testDB.DB, 410, func(uow service.UnitOfWork) {
			account, err := uow.EconomyRepository().GetAccountForUpdate(ctx, 1)
			require.NoError(t, err)
			require.NotNil(t, account)

			account.Cash = 200
			account.Bank = 300
			account.LastActions[models.EarnActionWork] = workedAt
			require.NoError(t, uow.EconomyRepository().UpdateAccount(ctx, account))
		})

		withUnitOfWork(t, testDB.DB, 410, func(uow service.UnitOfWork) {
			account, err := uow.EconomyRepository().GetAccount(ctx, 1)
			require.NoError(t, err)
			require.NotNil(t, account)
			assert.Equal(t, int64(200), account.Cash)
			assert.Equal(t, int64(300), account.Bank)
			assert.True(t, account.LastActions[models.EarnActionWork].Equal(workedAt))
		})
	})

	t.Run("negative cash is rejected", func(t *testing.T) {
		uow := NewUnitOfWorkFactory(testDB.DB).Create(410)
		require.NoError(t, uow.Begin(ctx))
		defer uow.Rollback()

		account, err := uow.EconomyRepository().GetAccountForUpdate(ctx, 1)
		require.NoError(t, err)
		require.NotNil(t, account)

		account.Cash = -1
		err = uow.EconomyRepository().UpdateAccount(ctx, account)
		require.Error(t, err)
		assert.True(t, IsConflict(err))
	})

	t.Run("top balances ordered by total", func(t *testing.T) {
		withUnitOfWork(t, testDB.DB, 410, func(uow service.UnitOfWork) {
			require.NoError(t, uow.EconomyRepository().CreateAccount(ctx, testutil.NewAccount(410, 2, 1000, 2000)))
			require.NoError(t, uow.EconomyRepository().CreateAccount(ctx, testutil.NewAccount(410, 3, 100, 0)))
		})

		withUnitOfWork(t, testDB.DB, 410, func(uow service.UnitOfWork) {
			top, err := uow.EconomyRepository().TopBalances(ctx, 2)
			require.NoError(t, err)
			require.Len(t, top, 2)
			assert.Equal(t, int64(2), top[0].UserID)
			assert.Equal(t, int64(1), top[1].UserID)
		})
	})

	t.Run("locks in ascending user id order", func(t *testing.T) {
		withUnitOfWork(t, testDB.DB, 410, func(uow service.UnitOfWork) {
			accounts, err := uow.EconomyRepository().GetAccountsForUpdate(ctx, []int64{3, 1})
			require.NoError(t, err)
			require.Len(t, accounts, 2)
			assert.Equal(t, int64(1), accounts[0].UserID)
			assert.Equal(t, int64(3), accounts[1].UserID)
		})
	})
}

func TestTransactionRepository_Ledger(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	seedGuild(t, testDB.DB, 420)

	moderator := int64(9)
	withUnitOfWork(t, testDB.DB, 420, func(uow service.UnitOfWork) {
		repo := uow.TransactionRepository()
		require.NoError(t, repo.Record(ctx, &models.EconomyTransaction{
			UserID: 1, Type: models.TransactionTypeInitial, Amount: 500, Reason: "initial balance",
		}))
		require.NoError(t, repo.Record(ctx, &models.EconomyTransaction{
			UserID: 1, Type: models.TransactionTypeEarn, Amount: 120, Reason: "work",
		}))
		require.NoError(t, repo.Record(ctx, &models.EconomyTransaction{
			UserID: 1, Type: models.TransactionTypeFine, Amount: -200, Reason: "crime failed", ModeratorID: &moderator,
		}))
		require.NoError(t, repo.Record(ctx, &models.EconomyTransaction{
			UserID: 2, Type: models.TransactionTypeInitial, Amount: 500, Reason: "initial balance",
		}))
	})

	t.Run("sum is signed per user", func(t *testing.T) {
		withUnitOfWork(t, testDB.DB, 420, func(uow service.UnitOfWork) {
			sum, err := uow.TransactionRepository().SumByUser(ctx, 1)
			require.NoError(t, err)
			assert.Equal(t, int64(420), sum)

			sum, err = uow.TransactionRepository().SumByUser(ctx, 999)
			require.NoError(t, err)
			assert.Zero(t, sum)
		})
	})

	t.Run("list returns newest first with limit", func(t *testing.T) {
		withUnitOfWork(t, testDB.DB, 420, func(uow service.UnitOfWork) {
			txs, err := uow.TransactionRepository().ListByUser(ctx, 1, 2)
			require.NoError(t, err)
			require.Len(t, txs, 2)
			assert.Equal(t, models.TransactionTypeFine, txs[0].Type)
			require.NotNil(t, txs[0].ModeratorID)
			assert.Equal(t, moderator, *txs[0].ModeratorID)
			assert.Equal(t, models.TransactionTypeEarn, txs[1].Type)
		})
	})

	t.Run("purge honors the cutoff", func(t *testing.T) {
		withUnitOfWork(t, testDB.DB, 420, func(uow service.UnitOfWork) {
			purged, err := uow.TransactionRepository().PurgeOlderThan(ctx, time.Now().Add(-time.Hour))
			require.NoError(t, err)
			assert.Zero(t, purged)

			purged, err = uow.TransactionRepository().PurgeOlderThan(ctx, time.Now().Add(time.Hour))
			require.NoError(t, err)
			assert.Equal(t, int64(4), purged)
		})
	})
}
