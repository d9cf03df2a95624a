package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"warden/database"
	"warden/repository/testutil"
	"warden/service"
)

// withUnitOfWork runs fn inside one committed unit of work
func withUnitOfWork(t *testing.T, db *database.DB, guildID int64, fn func(uow service.UnitOfWork)) {
	t.Helper()
	uow := NewUnitOfWorkFactory(db).Create(guildID)
	require.NoError(t, uow.Begin(context.Background()))
	defer uow.Rollback()
	fn(uow)
	require.NoError(t, uow.Commit())
}

// seedGuild inserts the guild row the foreign keys require
func seedGuild(t *testing.T, db *database.DB, guildID int64) {
	t.Helper()
	withUnitOfWork(t, db, guildID, func(uow service.UnitOfWork) {
		require.NoError(t, uow.GuildRepository().Upsert(context.Background(), testutil.NewGuild(guildID)))
	})
}
