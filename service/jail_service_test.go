package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"warden/apperr"
	"warden/models"
)

func enabledJailConfig() *models.JailConfig {
	return &models.JailConfig{
		GuildID:   TestGuildID,
		ChannelID: TestJailChanID,
		RoleID:    TestJailRoleID,
		Enabled:   true,
	}
}

func TestJailService_Jail(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("snapshots roles, swaps them and commits the record", func(t *testing.T) {
		mocks := NewTestMocks()
		svc := NewJailService(mocks.Factory(), mocks.RoleManager, nil)

		mocks.LogConfigs.On("GetJailConfig", ctx).Return(enabledJailConfig(), nil)
		mocks.Jails.On("GetActive", ctx, int64(TestUser1ID)).Return(nil, nil)

		// The default role (id == guild id) is excluded from the snapshot
		mocks.RoleManager.On("MemberRoles", ctx, int64(TestGuildID), int64(TestUser1ID)).
			Return([]int64{TestGuildID, 201, 202}, nil)
		mocks.RoleManager.On("RemoveRole", ctx, int64(TestGuildID), int64(TestUser1ID), int64(201)).Return(nil)
		mocks.RoleManager.On("RemoveRole", ctx, int64(TestGuildID), int64(TestUser1ID), int64(202)).Return(nil)
		mocks.RoleManager.On("AddRole", ctx, int64(TestGuildID), int64(TestUser1ID), int64(TestJailRoleID)).Return(nil)

		mocks.Jails.On("Create", ctx, mock.MatchedBy(func(r *models.JailRecord) bool {
			return r.UserID == TestUser1ID && len(r.RoleIDs) == 2 && r.Reason == "spamming"
		})).Return(nil)

		result, err := svc.Jail(ctx, TestGuildID, TestUser1ID, TestModeratorID, "spamming")
		require.NoError(t, err)
		assert.ElementsMatch(t, []int64{201, 202}, result.RemovedRoles)
		assert.Equal(t, int64(TestJailChanID), result.JailChannelID)
		assert.Equal(t, 2, mocks.Commits())
		mocks.AssertAllExpectations(t)
	})

	t.Run("not set up", func(t *testing.T) {
		mocks := NewTestMocks()
		svc := NewJailService(mocks.Factory(), mocks.RoleManager, nil)

		mocks.LogConfigs.On("GetJailConfig", ctx).Return(nil, nil)

		_, err := svc.Jail(ctx, TestGuildID, TestUser1ID, TestModeratorID, "")
		require.Error(t, err)
		assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	})

	t.Run("already jailed is a conflict", func(t *testing.T) {
		mocks := NewTestMocks()
		svc := NewJailService(mocks.Factory(), mocks.RoleManager, nil)

		mocks.LogConfigs.On("GetJailConfig", ctx).Return(enabledJailConfig(), nil)
		mocks.Jails.On("GetActive", ctx, int64(TestUser1ID)).Return(&models.JailRecord{ID: 7, Active: true}, nil)

		_, err := svc.Jail(ctx, TestGuildID, TestUser1ID, TestModeratorID, "")
		require.Error(t, err)
		assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	})

	t.Run("role removal failure restores what came off", func(t *testing.T) {
		mocks := NewTestMocks()
		svc := NewJailService(mocks.Factory(), mocks.RoleManager, nil)

		mocks.LogConfigs.On("GetJailConfig", ctx).Return(enabledJailConfig(), nil)
		mocks.Jails.On("GetActive", ctx, int64(TestUser1ID)).Return(nil, nil)
		mocks.RoleManager.On("MemberRoles", ctx, int64(TestGuildID), int64(TestUser1ID)).
			Return([]int64{201, 202}, nil)
		mocks.RoleManager.On("RemoveRole", ctx, int64(TestGuildID), int64(TestUser1ID), int64(201)).Return(nil)
		mocks.RoleManager.On("RemoveRole", ctx, int64(TestGuildID), int64(TestUser1ID), int64(202)).
			Return(apperr.New(apperr.KindForbidden, "missing permissions"))
		// Compensation puts 201 back
		mocks.RoleManager.On("AddRole", ctx, int64(TestGuildID), int64(TestUser1ID), int64(201)).Return(nil)

		_, err := svc.Jail(ctx, TestGuildID, TestUser1ID, TestModeratorID, "")
		require.Error(t, err)
		assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
		mocks.Jails.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		mocks.AssertAllExpectations(t)
	})

	t.Run("record insert failure strips the jail role again", func(t *testing.T) {
		mocks := NewTestMocks()
		svc := NewJailService(mocks.Factory(), mocks.RoleManager, nil)

		mocks.LogConfigs.On("GetJailConfig", ctx).Return(enabledJailConfig(), nil)
		mocks.Jails.On("GetActive", ctx, int64(TestUser1ID)).Return(nil, nil)
		mocks.RoleManager.On("MemberRoles", ctx, int64(TestGuildID), int64(TestUser1ID)).
			Return([]int64{201}, nil)
		mocks.RoleManager.On("RemoveRole", ctx, int64(TestGuildID), int64(TestUser1ID), int64(201)).Return(nil)
		mocks.RoleManager.On("AddRole", ctx, int64(TestGuildID), int64(TestUser1ID), int64(TestJailRoleID)).Return(nil)
		mocks.Jails.On("Create", ctx, mock.Anything).Return(errors.New("insert failed"))
		// Compensation: restore 201, remove the jail role
		mocks.RoleManager.On("AddRole", ctx, int64(TestGuildID), int64(TestUser1ID), int64(201)).Return(nil)
		mocks.RoleManager.On("RemoveRole", ctx, int64(TestGuildID), int64(TestUser1ID), int64(TestJailRoleID)).Return(nil)

		_, err := svc.Jail(ctx, TestGuildID, TestUser1ID, TestModeratorID, "")
		require.Error(t, err)
		mocks.AssertAllExpectations(t)
	})
}

func TestJailService_Unjail(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("restores the snapshot and closes the record", func(t *testing.T) {
		mocks := NewTestMocks()
		svc := NewJailService(mocks.Factory(), mocks.RoleManager, nil)
		record := &models.JailRecord{
			ID:      42,
			GuildID: TestGuildID,
			UserID:  TestUser1ID,
			RoleIDs: []int64{201, 202},
			Active:  true,
		}

		mocks.LogConfigs.On("GetJailConfig", ctx).Return(enabledJailConfig(), nil)
		mocks.Jails.On("GetActive", ctx, int64(TestUser1ID)).Return(record, nil)
		mocks.RoleManager.On("RemoveRole", ctx, int64(TestGuildID), int64(TestUser1ID), int64(TestJailRoleID)).Return(nil)
		mocks.RoleManager.On("AddRole", ctx, int64(TestGuildID), int64(TestUser1ID), int64(201)).Return(nil)
		mocks.RoleManager.On("AddRole", ctx, int64(TestGuildID), int64(TestUser1ID), int64(202)).Return(nil)
		mocks.Jails.On("Close", ctx, int64(42), mock.AnythingOfType("time.Time")).Return(nil)

		result, err := svc.Unjail(ctx, TestGuildID, TestUser1ID, TestModeratorID)
		require.NoError(t, err)
		assert.ElementsMatch(t, []int64{201, 202}, result.Restored)
		assert.Empty(t, result.Unrestored)
		assert.False(t, result.Record.Active)
		require.NotNil(t, result.Record.ReleasedAt)
		mocks.AssertAllExpectations(t)
	})

	t.Run("restore failures are reported but the record still closes", func(t *testing.T) {
		mocks := NewTestMocks()
		svc := NewJailService(mocks.Factory(), mocks.RoleManager, nil)
		record := &models.JailRecord{ID: 42, RoleIDs: []int64{201, 202}, Active: true}

		mocks.LogConfigs.On("GetJailConfig", ctx).Return(enabledJailConfig(), nil)
		mocks.Jails.On("GetActive", ctx, int64(TestUser1ID)).Return(record, nil)
		mocks.RoleManager.On("RemoveRole", ctx, int64(TestGuildID), int64(TestUser1ID), int64(TestJailRoleID)).Return(nil)
		mocks.RoleManager.On("AddRole", ctx, int64(TestGuildID), int64(TestUser1ID), int64(201)).Return(nil)
		mocks.RoleManager.On("AddRole", ctx, int64(TestGuildID), int64(TestUser1ID), int64(202)).
			Return(apperr.New(apperr.KindNotFound, "role deleted"))
		mocks.Jails.On("Close", ctx, int64(42), mock.AnythingOfType("time.Time")).Return(nil)

		result, err := svc.Unjail(ctx, TestGuildID, TestUser1ID, TestModeratorID)
		require.NoError(t, err)
		assert.Equal(t, []int64{201}, result.Restored)
		assert.Equal(t, []int64{202}, result.Unrestored)
		mocks.AssertAllExpectations(t)
	})

	t.Run("not jailed", func(t *testing.T) {
		mocks := NewTestMocks()
		svc := NewJailService(mocks.Factory(), mocks.RoleManager, nil)

		mocks.LogConfigs.On("GetJailConfig", ctx).Return(enabledJailConfig(), nil)
		mocks.Jails.On("GetActive", ctx, int64(TestUser1ID)).Return(nil, nil)

		_, err := svc.Unjail(ctx, TestGuildID, TestUser1ID, TestModeratorID)
		require.Error(t, err)
		assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	})
}

func TestJailService_Configure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("first setup persists the config", func(t *testing.T) {
		mocks := NewTestMocks()
		svc := NewJailService(mocks.Factory(), mocks.RoleManager, nil)

		mocks.LogConfigs.On("GetJailConfig", ctx).Return(nil, nil)
		mocks.LogConfigs.On("UpsertJailConfig", ctx, mock.MatchedBy(func(c *models.JailConfig) bool {
			return c.Enabled && c.RoleID == TestJailRoleID && c.ChannelID == TestJailChanID
		})).Return(nil)

		require.NoError(t, svc.ConfigureJail(ctx, TestGuildID, TestJailChanID, TestJailRoleID))
		mocks.AssertAllExpectations(t)
	})

	t.Run("re-running setup while enabled is a conflict", func(t *testing.T) {
		mocks := NewTestMocks()
		svc := NewJailService(mocks.Factory(), mocks.RoleManager, nil)

		mocks.LogConfigs.On("GetJailConfig", ctx).Return(enabledJailConfig(), nil)

		err := svc.ConfigureJail(ctx, TestGuildID, TestJailChanID, TestJailRoleID)
		require.Error(t, err)
		assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	})

	t.Run("disable flips the flag", func(t *testing.T) {
		mocks := NewTestMocks()
		svc := NewJailService(mocks.Factory(), mocks.RoleManager, nil)

		mocks.LogConfigs.On("GetJailConfig", ctx).Return(enabledJailConfig(), nil)
		mocks.LogConfigs.On("UpsertJailConfig", ctx, mock.MatchedBy(func(c *models.JailConfig) bool {
			return !c.Enabled
		})).Return(nil)

		require.NoError(t, svc.DisableJail(ctx, TestGuildID))
		mocks.AssertAllExpectations(t)
	})
}
