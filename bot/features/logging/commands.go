package logging

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"

	"warden/apperr"
	"warden/bot"
	"warden/bot/common"
	"warden/models"
	"warden/service"
)

// Feature bundles the audit log configuration commands
type Feature struct {
	guilds service.GuildService
}

// Register wires the logconfig command into the registry
func Register(r *bot.Registry, guilds service.GuildService) error {
	f := &Feature{guilds: guilds}

	return r.Register(&bot.CommandDescriptor{
		Name:        "logconfig",
		Description: "Configure audit logging (show | channel <#chan> | on | off | category <name> on|off)",
		Options: []bot.Option{
			{Name: "action", Type: bot.OptionString, Description: "show, channel, on, off or category", Required: true},
			{Name: "args", Type: bot.OptionTail, Description: "Arguments for the action"},
		},
		Permissions: discordgo.PermissionManageServer,
		Handler:     f.handleLogConfig,
	})
}

func (f *Feature) handleLogConfig(ctx context.Context, inv *bot.Invocation) (*bot.Reply, error) {
	action := strings.ToLower(inv.Args.String("action"))
	rest := strings.Fields(inv.Args.String("args"))

	switch action {
	case "show":
		config, err := f.guilds.GetLogConfig(ctx, inv.GuildID)
		if err != nil {
			return nil, err
		}
		return &bot.Reply{Embed: renderConfig(config)}, nil

	case "channel":
		if len(rest) != 1 {
			return nil, apperr.New(apperr.KindBadArgument, "Usage: logconfig channel <#channel>")
		}
		channelID, ok := parseChannel(rest[0])
		if !ok {
			return nil, apperr.New(apperr.KindBadArgument, "Argument must be a channel mention or id.")
		}
		config, err := f.guilds.SetLogChannel(ctx, inv.GuildID, channelID)
		if err != nil {
			return nil, err
		}
		return &bot.Reply{Content: fmt.Sprintf("✅ Audit log channel set to %s.",
			common.ChannelMention(config.ChannelID))}, nil

	case "on", "off":
		config, err := f.guilds.SetLogEnabled(ctx, inv.GuildID, action == "on")
		if err != nil {
			return nil, err
		}
		state := "disabled"
		if config.Enabled {
			state = "enabled"
		}
		return &bot.Reply{Content: fmt.Sprintf("✅ Audit logging %s.", state)}, nil

	case "category":
		if len(rest) != 2 {
			return nil, apperr.New(apperr.KindBadArgument, "Usage: logconfig category <name> on|off")
		}
		enabled := strings.EqualFold(rest[1], "on")
		if !enabled && !strings.EqualFold(rest[1], "off") {
			return nil, apperr.New(apperr.KindBadArgument, "Last argument must be `on` or `off`.")
		}
		config, err := f.guilds.SetLogCategory(ctx, inv.GuildID, models.LogCategory(strings.ToLower(rest[0])), enabled)
		if err != nil {
			return nil, err
		}
		return &bot.Reply{Embed: renderConfig(config)}, nil

	default:
		return nil, apperr.New(apperr.KindBadArgument, "Action must be one of: show, channel, on, off, category.")
	}
}

func renderConfig(config *models.LogConfig) *discordgo.MessageEmbed {
	var sb strings.Builder
	if config.ChannelID != 0 {
		fmt.Fprintf(&sb, "Channel: %s\n", common.ChannelMention(config.ChannelID))
	} else {
		sb.WriteString("Channel: not set\n")
	}
	fmt.Fprintf(&sb, "Enabled: %v\n\n", config.Enabled)

	for _, category := range models.AllLogCategories {
		marker := "🔴"
		if config.CategoryEnabled(category) {
			marker = "🟢"
		}
		fmt.Fprintf(&sb, "%s %s\n", marker, category)
	}

	return &discordgo.MessageEmbed{
		Title:       "Audit log configuration",
		Color:       0x95a5a6,
		Description: sb.String(),
	}
}

// parseChannel accepts a channel mention or a bare id
func parseChannel(token string) (int64, bool) {
	if strings.HasPrefix(token, "<#") && strings.HasSuffix(token, ">") {
		token = token[2 : len(token)-1]
	}
	id, err := strconv.ParseInt(token, 10, 64)
	return id, err == nil && id > 0
}
