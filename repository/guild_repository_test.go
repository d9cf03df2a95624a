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

func TestGuildRepository_UpsertAndGet(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	t.Run("unknown guild returns nil", func(t *testing.T) {
		withUnitOfWork(t, testDB.DB, 100, func(uow service.UnitOfWork) {
			guild, err := uow.GuildRepository().Get(ctx, 999999)
			require.NoError(t, err)
			assert.Nil(t, guild)
		})
	})

	t.Run("round trip", func(t *testing.T) {
		seed := testutil.NewGuild(100)
		seed.Name = "Warden HQ"
		withUnitOfWork(t, testDB.DB, 100, func(uow service.UnitOfWork) {
			require.NoError(t, uow.GuildRepository().Upsert(ctx, seed))
		})

		withUnitOfWork(t, testDB.DB, 100, func(uow service.UnitOfWork) {
			guild, err := uow.GuildRepository().Get(ctx, 100)
			require.NoError(t, err)
			require.NotNil(t, guild)
			assert.Equal(t, "Warden HQ", guild.Name)
			assert.Equal(t, int64(1), guild.OwnerID)
			assert.False(t, guild.CreatedAt.IsZero())
		})
	})

	t.Run("upsert updates in place", func(t *testing.T) {
		updated := testutil.NewGuild(100)
		updated.Name = "Renamed"
		updated.MemberCount = 25
		withUnitOfWork(t, testDB.DB, 100, func(uow service.UnitOfWork) {
			require.NoError(t, uow.GuildRepository().Upsert(ctx, updated))
		})

		withUnitOfWork(t, testDB.DB, 100, func(uow service.UnitOfWork) {
			guild, err := uow.GuildRepository().Get(ctx, 100)
			require.NoError(t, err)
			require.NotNil(t, guild)
			assert.Equal(t, "Renamed", guild.Name)
			assert.Equal(t, 25, guild.MemberCount)
		})
	})
}

func TestGuildRepository_Members(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	seedGuild(t, testDB.DB, 200)
	withUnitOfWork(t, testDB.DB, 200, func(uow service.UnitOfWork) {
		require.NoError(t, uow.UserRepository().Upsert(ctx, testutil.NewUser(7, "alice")))
	})

	t.Run("unknown member returns nil", func(t *testing.T) {
		withUnitOfWork(t, testDB.DB, 200, func(uow service.UnitOfWork) {
			member, err := uow.GuildRepository().GetMember(ctx, 200, 7)
			require.NoError(t, err)
			assert.Nil(t, member)
		})
	})

	t.Run("member round trip preserves roles", func(t *testing.T) {
		withUnitOfWork(t, testDB.DB, 200, func(uow service.UnitOfWork) {
			require.NoError(t, uow.GuildRepository().UpsertMember(ctx, &models.GuildMember{
				GuildID:  200,
				UserID:   7,
				Nickname: "Ally",
				JoinedAt: time.Now().UTC(),
				RoleIDs:  []int64{301, 302},
			}))
		})

		withUnitOfWork(t, testDB.DB, 200, func(uow service.UnitOfWork) {
			member, err := uow.GuildRepository().GetMember(ctx, 200, 7)
			require.NoError(t, err)
			require.NotNil(t, member)
			assert.Equal(t, "Ally", member.Nickname)
			assert.Equal(t, []int64{301, 302}, member.RoleIDs)
		})
	})
}
