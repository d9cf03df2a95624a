package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"warden/events"
	"warden/models"
	"warden/service"
)

type fakeSender struct {
	channels []int64
	embeds   []*discordgo.MessageEmbed
	err      error
}

func (f *fakeSender) SendEmbed(ctx context.Context, channelID int64, embed *discordgo.MessageEmbed) error {
	if f.err != nil {
		return f.err
	}
	f.channels = append(f.channels, channelID)
	f.embeds = append(f.embeds, embed)
	return nil
}

func enabledLogConfig(guildID, channelID int64) *models.LogConfig {
	return &models.LogConfig{
		GuildID:    guildID,
		ChannelID:  channelID,
		Enabled:    true,
		Categories: map[models.LogCategory]bool{},
	}
}

func joinEvent(guildID int64) events.MemberJoinedEvent {
	return events.MemberJoinedEvent{
		GuildID:    guildID,
		UserID:     42,
		Username:   "alice",
		AccountAge: 48 * time.Hour,
		Timestamp:  time.Now(),
	}
}

func TestLogger_DeliversAndRecords(t *testing.T) {
	ctx := context.Background()
	mocks := service.NewTestMocks()
	sender := &fakeSender{}
	logger := NewLogger(mocks.Factory(), sender)

	mocks.LogConfigs.On("GetLogConfig", mock.Anything).Return(enabledLogConfig(1, 77), nil)
	mocks.LogEntries.On("Record", mock.Anything, mock.MatchedBy(func(row *models.LogEntry) bool {
		return row.GuildID == 1 &&
			row.EventType == string(events.EventTypeMemberJoined) &&
			row.Severity == models.LogSeverityInfo &&
			row.UserID != nil && *row.UserID == 42
	})).Return(nil)

	logger.handle(ctx, joinEvent(1))

	require.Len(t, sender.embeds, 1)
	assert.Equal(t, []int64{77}, sender.channels)
	assert.Equal(t, "Member joined", sender.embeds[0].Title)
	// One session to load the config, one to append the entry
	assert.Equal(t, 2, mocks.Commits())
	mocks.AssertAllExpectations(t)
}

func TestLogger_Gating(t *testing.T) {
	ctx := context.Background()

	t.Run("no config configured", func(t *testing.T) {
		mocks := service.NewTestMocks()
		sender := &fakeSender{}
		logger := NewLogger(mocks.Factory(), sender)
		mocks.LogConfigs.On("GetLogConfig", mock.Anything).Return(nil, nil)

		logger.handle(ctx, joinEvent(1))

		assert.Empty(t, sender.embeds)
		mocks.LogEntries.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
	})

	t.Run("logging disabled", func(t *testing.T) {
		mocks := service.NewTestMocks()
		sender := &fakeSender{}
		logger := NewLogger(mocks.Factory(), sender)
		config := enabledLogConfig(1, 77)
		config.Enabled = false
		mocks.LogConfigs.On("GetLogConfig", mock.Anything).Return(config, nil)

		logger.handle(ctx, joinEvent(1))

		assert.Empty(t, sender.embeds)
	})

	t.Run("category toggled off", func(t *testing.T) {
		mocks := service.NewTestMocks()
		sender := &fakeSender{}
		logger := NewLogger(mocks.Factory(), sender)
		config := enabledLogConfig(1, 77)
		config.Categories[models.LogCategoryJoins] = false
		mocks.LogConfigs.On("GetLogConfig", mock.Anything).Return(config, nil)

		logger.handle(ctx, joinEvent(1))

		assert.Empty(t, sender.embeds)
	})

	t.Run("guild-less event ignored", func(t *testing.T) {
		mocks := service.NewTestMocks()
		sender := &fakeSender{}
		logger := NewLogger(mocks.Factory(), sender)

		logger.handle(ctx, joinEvent(0))

		assert.Empty(t, sender.embeds)
		assert.Empty(t, mocks.CreatedFor)
	})
}

func TestLogger_DeliveryFailureSkipsRecord(t *testing.T) {
	ctx := context.Background()
	mocks := service.NewTestMocks()
	sender := &fakeSender{err: errors.New("channel gone")}
	logger := NewLogger(mocks.Factory(), sender)
	mocks.LogConfigs.On("GetLogConfig", mock.Anything).Return(enabledLogConfig(1, 77), nil)

	logger.handle(ctx, joinEvent(1))
	logger.handle(ctx, joinEvent(1))

	mocks.LogEntries.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
}

func TestRender_Categories(t *testing.T) {
	tests := []struct {
		name     string
		event    events.Event
		category models.LogCategory
		severity models.LogSeverity
	}{
		{"member joined", joinEvent(1), models.LogCategoryJoins, models.LogSeverityInfo},
		{"member left", events.MemberLeftEvent{GuildID: 1, UserID: 2, Username: "bob"}, models.LogCategoryLeaves, models.LogSeverityInfo},
		{"message deleted", events.MessageDeletedEvent{GuildID: 1, ChannelID: 3, MessageID: 4, AuthorID: 2, Content: "gone"}, models.LogCategoryMessageDeletes, models.LogSeverityInfo},
		{"bulk delete", events.MessagesBulkDeletedEvent{GuildID: 1, ChannelID: 3, MessageIDs: []int64{1, 2, 3}}, models.LogCategoryBulkDeletes, models.LogSeverityWarn},
		{"role created", events.RoleCreatedEvent{GuildID: 1, RoleID: 5, Name: "mods"}, models.LogCategoryRoleChanges, models.LogSeverityInfo},
		{"channel deleted", events.ChannelDeletedEvent{GuildID: 1, ChannelID: 3, Name: "general"}, models.LogCategoryChannelChanges, models.LogSeverityWarn},
		{"member banned", events.MemberBannedEvent{GuildID: 1, UserID: 2}, models.LogCategoryModeration, models.LogSeverityWarn},
		{"rate limit violation", events.RateLimitViolationEvent{GuildID: 1, UserID: 2, Command: "work"}, models.LogCategoryModeration, models.LogSeverityWarn},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			entry := render(tc.event)
			require.NotNil(t, entry)
			assert.Equal(t, tc.category, entry.category)
			assert.Equal(t, tc.severity, entry.severity)
			require.NotNil(t, entry.embed)
			assert.NotEmpty(t, entry.embed.Title)
		})
	}
}

func TestRender_DetectionSeverityEscalates(t *testing.T) {
	low := render(events.DetectionEvent{GuildID: 1, UserID: 2, Kind: "invite_link", Level: "medium", Confidence: 0.9, Action: "warn"})
	require.NotNil(t, low)
	assert.Equal(t, models.LogSeverityWarn, low.severity)

	high := render(events.DetectionEvent{GuildID: 1, UserID: 2, Kind: "mass_mention", Level: "critical", Confidence: 1, Action: "ban"})
	require.NotNil(t, high)
	assert.Equal(t, models.LogSeverityCritical, high.severity)
}

func TestRender_MemberUpdateWithoutRoleChange(t *testing.T) {
	entry := render(events.MemberUpdatedEvent{GuildID: 1, UserID: 2, OldRoleIDs: []int64{5}, NewRoleIDs: []int64{5}})
	assert.Nil(t, entry)
}

func TestRender_MessageCreatedHasNoAuditValue(t *testing.T) {
	entry := render(events.MessageCreatedEvent{GuildID: 1, AuthorID: 2, Content: "hello"})
	assert.Nil(t, entry)
}

func TestDiffRoles(t *testing.T) {
	added, removed := diffRoles([]int64{1, 2, 3}, []int64{2, 3, 4, 5})
	assert.Equal(t, []int64{4, 5}, added)
	assert.Equal(t, []int64{1}, removed)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcde…", truncate("abcdefgh", 5))
}
