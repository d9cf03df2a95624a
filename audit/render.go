package audit

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"warden/bot/common"
	"warden/events"
	"warden/models"
)

const (
	colorInfo     = 0x3498db
	colorWarn     = 0xf39c12
	colorError    = 0xe74c3c
	colorCritical = 0x992d22
)

// renderedEntry is one event prepared for delivery and persistence
type renderedEntry struct {
	category  models.LogCategory
	severity  models.LogSeverity
	eventType events.EventType
	userID    int64
	channelID int64
	metadata  map[string]any
	embed     *discordgo.MessageEmbed
}

// render maps an envelope to its audit presentation. Envelopes with no
// audit value return nil.
func render(event events.Event) *renderedEntry {
	switch e := event.(type) {
	case events.MemberJoinedEvent:
		return &renderedEntry{
			category:  models.LogCategoryJoins,
			severity:  models.LogSeverityInfo,
			eventType: e.Type(),
			userID:    e.UserID,
			metadata:  map[string]any{"username": e.Username, "bot": e.Bot, "account_age_hours": int64(e.AccountAge.Hours())},
			embed: &discordgo.MessageEmbed{
				Title:       "Member joined",
				Color:       colorInfo,
				Description: fmt.Sprintf("%s (%s) joined. Account created %s.", common.Mention(e.UserID), e.Username, common.FormatDiscordTimestamp(e.Timestamp.Add(-e.AccountAge), "R")),
			},
		}

	case events.MemberLeftEvent:
		return &renderedEntry{
			category:  models.LogCategoryLeaves,
			severity:  models.LogSeverityInfo,
			eventType: e.Type(),
			userID:    e.UserID,
			metadata:  map[string]any{"username": e.Username},
			embed: &discordgo.MessageEmbed{
				Title:       "Member left",
				Color:       colorInfo,
				Description: fmt.Sprintf("%s (%s) left the server.", common.Mention(e.UserID), e.Username),
			},
		}

	case events.MessageDeletedEvent:
		description := fmt.Sprintf("Message by %s deleted in %s.", common.Mention(e.AuthorID), common.ChannelMention(e.ChannelID))
		if e.AuthorID == 0 {
			description = fmt.Sprintf("Message deleted in %s.", common.ChannelMention(e.ChannelID))
		}
		if e.Content != "" {
			description += fmt.Sprintf("\n>>> %s", truncate(e.Content, 800))
		}
		return &renderedEntry{
			category:  models.LogCategoryMessageDeletes,
			severity:  models.LogSeverityInfo,
			eventType: e.Type(),
			userID:    e.AuthorID,
			channelID: e.ChannelID,
			metadata:  map[string]any{"message_id": e.MessageID},
			embed: &discordgo.MessageEmbed{
				Title:       "Message deleted",
				Color:       colorWarn,
				Description: description,
			},
		}

	case events.MessageEditedEvent:
		description := fmt.Sprintf("Message by %s edited in %s.", common.Mention(e.AuthorID), common.ChannelMention(e.ChannelID))
		if e.OldContent != "" {
			description += fmt.Sprintf("\n**Before:** %s", truncate(e.OldContent, 400))
		}
		description += fmt.Sprintf("\n**After:** %s", truncate(e.NewContent, 400))
		return &renderedEntry{
			category:  models.LogCategoryMessageDeletes,
			severity:  models.LogSeverityInfo,
			eventType: e.Type(),
			userID:    e.AuthorID,
			channelID: e.ChannelID,
			metadata:  map[string]any{"message_id": e.MessageID},
			embed: &discordgo.MessageEmbed{
				Title:       "Message edited",
				Color:       colorInfo,
				Description: description,
			},
		}

	case events.MessagesBulkDeletedEvent:
		return &renderedEntry{
			category:  models.LogCategoryBulkDeletes,
			severity:  models.LogSeverityWarn,
			eventType: e.Type(),
			channelID: e.ChannelID,
			metadata:  map[string]any{"count": len(e.MessageIDs)},
			embed: &discordgo.MessageEmbed{
				Title:       "Messages bulk deleted",
				Color:       colorWarn,
				Description: fmt.Sprintf("%d messages deleted in %s.", len(e.MessageIDs), common.ChannelMention(e.ChannelID)),
			},
		}

	case events.MemberUpdatedEvent:
		added, removed := diffRoles(e.OldRoleIDs, e.NewRoleIDs)
		if len(added) == 0 && len(removed) == 0 {
			return nil
		}
		var parts []string
		if len(added) > 0 {
			parts = append(parts, "Added: "+joinRoleMentions(added))
		}
		if len(removed) > 0 {
			parts = append(parts, "Removed: "+joinRoleMentions(removed))
		}
		return &renderedEntry{
			category:  models.LogCategoryRoleChanges,
			severity:  models.LogSeverityInfo,
			eventType: e.Type(),
			userID:    e.UserID,
			metadata:  map[string]any{"added": added, "removed": removed},
			embed: &discordgo.MessageEmbed{
				Title:       "Member roles changed",
				Color:       colorInfo,
				Description: fmt.Sprintf("%s\n%s", common.Mention(e.UserID), strings.Join(parts, "\n")),
			},
		}

	case events.RoleCreatedEvent:
		return &renderedEntry{
			category:  models.LogCategoryRoleChanges,
			severity:  models.LogSeverityInfo,
			eventType: e.Type(),
			metadata:  map[string]any{"role_id": e.RoleID, "name": e.Name},
			embed: &discordgo.MessageEmbed{
				Title:       "Role created",
				Color:       colorInfo,
				Description: fmt.Sprintf("Role **%s** created.", e.Name),
			},
		}

	case events.RoleDeletedEvent:
		return &renderedEntry{
			category:  models.LogCategoryRoleChanges,
			severity:  models.LogSeverityWarn,
			eventType: e.Type(),
			metadata:  map[string]any{"role_id": e.RoleID},
			embed: &discordgo.MessageEmbed{
				Title:       "Role deleted",
				Color:       colorWarn,
				Description: fmt.Sprintf("Role `%d` deleted.", e.RoleID),
			},
		}

	case events.ChannelCreatedEvent:
		return &renderedEntry{
			category:  models.LogCategoryChannelChanges,
			severity:  models.LogSeverityInfo,
			eventType: e.Type(),
			channelID: e.ChannelID,
			metadata:  map[string]any{"name": e.Name},
			embed: &discordgo.MessageEmbed{
				Title:       "Channel created",
				Color:       colorInfo,
				Description: fmt.Sprintf("Channel **%s** created.", e.Name),
			},
		}

	case events.ChannelDeletedEvent:
		return &renderedEntry{
			category:  models.LogCategoryChannelChanges,
			severity:  models.LogSeverityWarn,
			eventType: e.Type(),
			channelID: e.ChannelID,
			metadata:  map[string]any{"name": e.Name},
			embed: &discordgo.MessageEmbed{
				Title:       "Channel deleted",
				Color:       colorWarn,
				Description: fmt.Sprintf("Channel **%s** deleted.", e.Name),
			},
		}

	case events.MemberBannedEvent:
		return &renderedEntry{
			category:  models.LogCategoryModeration,
			severity:  models.LogSeverityWarn,
			eventType: e.Type(),
			userID:    e.UserID,
			metadata:  map[string]any{},
			embed: &discordgo.MessageEmbed{
				Title:       "Member banned",
				Color:       colorError,
				Description: fmt.Sprintf("%s was banned.", common.Mention(e.UserID)),
			},
		}

	case events.MemberUnbannedEvent:
		return &renderedEntry{
			category:  models.LogCategoryModeration,
			severity:  models.LogSeverityInfo,
			eventType: e.Type(),
			userID:    e.UserID,
			metadata:  map[string]any{},
			embed: &discordgo.MessageEmbed{
				Title:       "Member unbanned",
				Color:       colorInfo,
				Description: fmt.Sprintf("%s was unbanned.", common.Mention(e.UserID)),
			},
		}

	case events.ModerationActionEvent:
		description := fmt.Sprintf("%s → %s by %s", e.Action, common.Mention(e.TargetID), common.Mention(e.ModeratorID))
		if e.Reason != "" {
			description += fmt.Sprintf("\nReason: %s", e.Reason)
		}
		return &renderedEntry{
			category:  models.LogCategoryModeration,
			severity:  models.LogSeverityWarn,
			eventType: e.Type(),
			userID:    e.TargetID,
			metadata:  map[string]any{"action": e.Action, "moderator_id": e.ModeratorID, "reason": e.Reason},
			embed: &discordgo.MessageEmbed{
				Title:       "Moderation action",
				Color:       colorWarn,
				Description: description,
			},
		}

	case events.RateLimitViolationEvent:
		return &renderedEntry{
			category:  models.LogCategoryModeration,
			severity:  models.LogSeverityWarn,
			eventType: e.Type(),
			userID:    e.UserID,
			metadata:  map[string]any{"command": e.Command},
			embed: &discordgo.MessageEmbed{
				Title:       "Rate limit violation",
				Color:       colorWarn,
				Description: fmt.Sprintf("%s hit the rate limit on `%s`.", common.Mention(e.UserID), e.Command),
			},
		}

	case events.DetectionEvent:
		severity := models.LogSeverityWarn
		color := colorWarn
		if e.Level == "high" || e.Level == "critical" {
			severity = models.LogSeverityCritical
			color = colorCritical
		}
		return &renderedEntry{
			category:  models.LogCategoryModeration,
			severity:  severity,
			eventType: e.Type(),
			userID:    e.UserID,
			metadata: map[string]any{
				"detection_id": e.ID,
				"kind":         e.Kind,
				"level":        e.Level,
				"confidence":   e.Confidence,
				"action":       e.Action,
			},
			embed: &discordgo.MessageEmbed{
				Title: "Threat detected",
				Color: color,
				Description: fmt.Sprintf("%s triggered **%s** (level %s, confidence %.2f). Action: %s.\n%s",
					common.Mention(e.UserID), e.Kind, e.Level, e.Confidence, e.Action, truncate(e.Details, 400)),
			},
		}
	}

	return nil
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "…"
}

func diffRoles(old, new []int64) (added, removed []int64) {
	oldSet := make(map[int64]struct{}, len(old))
	for _, id := range old {
		oldSet[id] = struct{}{}
	}
	newSet := make(map[int64]struct{}, len(new))
	for _, id := range new {
		newSet[id] = struct{}{}
	}

	for _, id := range new {
		if _, ok := oldSet[id]; !ok {
			added = append(added, id)
		}
	}
	for _, id := range old {
		if _, ok := newSet[id]; !ok {
			removed = append(removed, id)
		}
	}
	return added, removed
}

func joinRoleMentions(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = common.RoleMention(id)
	}
	return strings.Join(parts, ", ")
}
