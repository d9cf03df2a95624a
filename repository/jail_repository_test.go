package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warden/repository/testutil"
	"warden/service"
)

func TestJailRepository_Lifecycle(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	seedGuild(t, testDB.DB, 300)

	t.Run("free user has no active record", func(t *testing.T) {
		withUnitOfWork(t, testDB.DB, 300, func(uow service.UnitOfWork) {
			record, err := uow.JailRepository().GetActive(ctx, 42)
			require.NoError(t, err)
			assert.Nil(t, record)
		})
	})

	var recordID int64
	t.Run("create and read back", func(t *testing.T) {
		seed := testutil.NewJailRecord(300, 42, 9, []int64{501, 502})
		withUnitOfWork(t, testDB.DB, 300, func(uow service.UnitOfWork) {
			require.NoError(t, uow.JailRepository().Create(ctx, seed))
			assert.NotZero(t, seed.ID)
		})
		recordID = seed.ID

		withUnitOfWork(t, testDB.DB, 300, func(uow service.UnitOfWork) {
			record, err := uow.JailRepository().GetActive(ctx, 42)
			require.NoError(t, err)
			require.NotNil(t, record)
			assert.Equal(t, recordID, record.ID)
			assert.Equal(t, int64(9), record.ModeratorID)
			assert.Equal(t, []int64{501, 502}, record.RoleIDs)
			assert.True(t, record.Active)
			assert.Nil(t, record.ReleasedAt)
		})
	})

	t.Run("second active record conflicts", func(t *testing.T) {
		uow := NewUnitOfWorkFactory(testDB.DB).Create(300)
		require.NoError(t, uow.Begin(ctx))
		defer uow.Rollback()

		err := uow.JailRepository().Create(ctx, testutil.NewJailRecord(300, 42, 9, nil))
		require.Error(t, err)
		assert.True(t, IsConflict(err))
	})

	t.Run("close releases the record", func(t *testing.T) {
		releasedAt := time.Now().UTC().Truncate(time.Millisecond)
		withUnitOfWork(t, testDB.DB, 300, func(uow service.UnitOfWork) {
			require.NoError(t, uow.JailRepository().Close(ctx, recordID, releasedAt))
		})

		withUnitOfWork(t, testDB.DB, 300, func(uow service.UnitOfWork) {
			record, err := uow.JailRepository().GetActive(ctx, 42)
			require.NoError(t, err)
			assert.Nil(t, record)
		})
	})

	t.Run("closing twice fails", func(t *testing.T) {
		uow := NewUnitOfWorkFactory(testDB.DB).Create(300)
		require.NoError(t, uow.Begin(ctx))
		defer uow.Rollback()

		err := uow.JailRepository().Close(ctx, recordID, time.Now())
		assert.Error(t, err)
	})
}

func TestJailRepository_ListActive(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	seedGuild(t, testDB.DB, 310)
	seedGuild(t, testDB.DB, 311)

	base := time.Now().UTC().Truncate(time.Millisecond).Add(-time.Hour)
	withUnitOfWork(t, testDB.DB, 310, func(uow service.UnitOfWork) {
		for i, userID := range []int64{1, 2, 3} {
			record := testutil.NewJailRecord(310, userID, 9, nil)
			record.JailedAt = base.Add(time.Duration(i) * time.Minute)
			require.NoError(t, uow.JailRepository().Create(ctx, record))
		}
	})
	// Another guild's record must not leak into the listing
	withUnitOfWork(t, testDB.DB, 311, func(uow service.UnitOfWork) {
		require.NoError(t, uow.JailRepository().Create(ctx, testutil.NewJailRecord(311, 1, 9, nil)))
	})

	withUnitOfWork(t, testDB.DB, 310, func(uow service.UnitOfWork) {
		records, err := uow.JailRepository().ListActive(ctx)
		require.NoError(t, err)
		require.Len(t, records, 3)
		// Ordered by jailing time
		assert.Equal(t, int64(1), records[0].UserID)
		assert.Equal(t, int64(2), records[1].UserID)
		assert.Equal(t, int64(3), records[2].UserID)
	})
}
