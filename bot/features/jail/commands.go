package jail

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"warden/bot"
	"warden/bot/common"
	"warden/service"
)

// Feature bundles the jail command handlers
type Feature struct {
	jails service.JailService
	rest  *bot.Client
}

// Register wires the jail commands into the registry
func Register(r *bot.Registry, jails service.JailService, rest *bot.Client) error {
	f := &Feature{jails: jails, rest: rest}

	descriptors := []*bot.CommandDescriptor{
		{
			Name:        "jail",
			Description: "Jail a member, stripping their roles",
			Options: []bot.Option{
				{Name: "user", Type: bot.OptionUser, Description: "Member to jail", Required: true},
				{Name: "reason", Type: bot.OptionTail, Description: "Reason"},
			},
			Permissions:  discordgo.PermissionModerateMembers,
			Hierarchical: true,
			Queue:        true,
			Handler:      f.handleJail,
		},
		{
			Name:        "unjail",
			Description: "Release a jailed member and restore their roles",
			Options: []bot.Option{
				{Name: "user", Type: bot.OptionUser, Description: "Member to release", Required: true},
			},
			Permissions: discordgo.PermissionModerateMembers,
			Queue:       true,
			Handler:     f.handleUnjail,
		},
		{
			Name:        "jailsetup",
			Description: "Create the jail role, category and channels",
			Permissions: discordgo.PermissionAdministrator,
			Queue:       true,
			Handler:     f.handleSetup,
		},
		{
			Name:        "jailed",
			Description: "List currently jailed members",
			Permissions: discordgo.PermissionModerateMembers,
			Handler:     f.handleJailed,
		},
	}

	for _, d := range descriptors {
		if err := r.Register(d); err != nil {
			return err
		}
	}
	return nil
}

func (f *Feature) handleJail(ctx context.Context, inv *bot.Invocation) (*bot.Reply, error) {
	targetID := inv.Args.Snowflake("user")
	reason := inv.Args.String("reason")

	result, err := f.jails.Jail(ctx, inv.GuildID, targetID, inv.UserID, reason)
	if err != nil {
		return nil, err
	}

	content := fmt.Sprintf("🔒 %s has been jailed", common.Mention(targetID))
	if reason != "" {
		content += fmt.Sprintf(": %s", reason)
	}
	content += fmt.Sprintf(". Removed %d role(s).", len(result.RemovedRoles))
	if result.JailChannelID != 0 {
		content += fmt.Sprintf(" They can speak in %s.", common.ChannelMention(result.JailChannelID))
	}
	return &bot.Reply{Content: content}, nil
}

func (f *Feature) handleUnjail(ctx context.Context, inv *bot.Invocation) (*bot.Reply, error) {
	targetID := inv.Args.Snowflake("user")

	result, err := f.jails.Unjail(ctx, inv.GuildID, targetID, inv.UserID)
	if err != nil {
		return nil, err
	}

	content := fmt.Sprintf("🔓 %s has been released. Restored %d role(s).",
		common.Mention(targetID), len(result.Restored))
	if len(result.Unrestored) > 0 {
		mentions := make([]string, 0, len(result.Unrestored))
		for _, roleID := range result.Unrestored {
			mentions = append(mentions, common.RoleMention(roleID))
		}
		content += fmt.Sprintf(" Could not restore: %s.", strings.Join(mentions, ", "))
	}
	return &bot.Reply{Content: content}, nil
}

// handleSetup provisions the jail infrastructure: a Jailed role, a category
// hidden from it, a moderator log channel and the one channel jailed members
// can see. Re-running while a configuration is active is rejected by the
// service.
func (f *Feature) handleSetup(ctx context.Context, inv *bot.Invocation) (*bot.Reply, error) {
	config, err := f.jails.GetConfig(ctx, inv.GuildID)
	if err != nil {
		return nil, err
	}
	if config != nil && config.Enabled {
		return &bot.Reply{Content: fmt.Sprintf("Jail is already set up with %s and %s.",
			common.RoleMention(config.RoleID), common.ChannelMention(config.ChannelID)), Ephemeral: true}, nil
	}

	roleID, err := f.rest.CreateRole(ctx, inv.GuildID, "Jailed")
	if err != nil {
		return nil, fmt.Errorf("failed to create jail role: %w", err)
	}

	everyoneID := inv.GuildID // the @everyone role shares the guild id
	denyAll := []*discordgo.PermissionOverwrite{
		{
			ID:   bot.Snowflake(everyoneID),
			Type: discordgo.PermissionOverwriteTypeRole,
			Deny: discordgo.PermissionViewChannel,
		},
	}

	categoryID, err := f.rest.CreateChannel(ctx, inv.GuildID, "Jail", discordgo.ChannelTypeGuildCategory, 0, denyAll)
	if err != nil {
		return nil, fmt.Errorf("failed to create jail category: %w", err)
	}

	_, err = f.rest.CreateChannel(ctx, inv.GuildID, "jail-log", discordgo.ChannelTypeGuildText, categoryID, denyAll)
	if err != nil {
		return nil, fmt.Errorf("failed to create jail log channel: %w", err)
	}

	jailOverwrites := []*discordgo.PermissionOverwrite{
		{
			ID:   bot.Snowflake(everyoneID),
			Type: discordgo.PermissionOverwriteTypeRole,
			Deny: discordgo.PermissionViewChannel,
		},
		{
			ID:    bot.Snowflake(roleID),
			Type:  discordgo.PermissionOverwriteTypeRole,
			Allow: discordgo.PermissionViewChannel | discordgo.PermissionSendMessages,
		},
	}
	channelID, err := f.rest.CreateChannel(ctx, inv.GuildID, "jail", discordgo.ChannelTypeGuildText, categoryID, jailOverwrites)
	if err != nil {
		return nil, fmt.Errorf("failed to create jail channel: %w", err)
	}

	if err := f.jails.ConfigureJail(ctx, inv.GuildID, channelID, roleID); err != nil {
		return nil, err
	}

	return &bot.Reply{Content: fmt.Sprintf("✅ Jail ready. Role: %s, channel: %s.",
		common.RoleMention(roleID), common.ChannelMention(channelID))}, nil
}

func (f *Feature) handleJailed(ctx context.Context, inv *bot.Invocation) (*bot.Reply, error) {
	records, err := f.jails.ActiveRecords(ctx, inv.GuildID)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return &bot.Reply{Content: "Nobody is jailed."}, nil
	}

	var sb strings.Builder
	for _, record := range records {
		fmt.Fprintf(&sb, "%s — since %s", common.Mention(record.UserID),
			common.FormatDiscordTimestamp(record.JailedAt, "R"))
		if record.Reason != "" {
			fmt.Fprintf(&sb, " (%s)", record.Reason)
		}
		sb.WriteString("\n")
	}
	return &bot.Reply{Embed: &discordgo.MessageEmbed{
		Title:       "Jailed members",
		Color:       0xe74c3c,
		Description: sb.String(),
	}}, nil
}
