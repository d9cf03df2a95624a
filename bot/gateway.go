package bot

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"

	"warden/events"
)

// discordEpoch is the millisecond origin of Discord snowflake timestamps
const discordEpoch = 1420070400000

// snowflakeTime extracts the creation time embedded in a snowflake id
func snowflakeTime(id int64) time.Time {
	ms := (id >> 22) + discordEpoch
	return time.UnixMilli(ms)
}

// registerGatewayHandlers wires discordgo gateway callbacks to bus
// envelopes. Everything downstream (dispatcher, audit, threat detection)
// consumes the bus, never discordgo directly.
func registerGatewayHandlers(session *discordgo.Session, bus *events.Bus) {
	session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		bus.Emit(context.Background(), events.ReadyEvent{
			SessionID: r.SessionID,
			Timestamp: time.Now(),
		})
	})

	session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		if m.Author == nil {
			return
		}
		evt := events.MessageCreatedEvent{
			GuildID:   parseID(m.GuildID),
			ChannelID: parseID(m.ChannelID),
			MessageID: parseID(m.ID),
			AuthorID:  parseID(m.Author.ID),
			AuthorBot: m.Author.Bot,
			Content:   m.Content,
			Timestamp: m.Timestamp,
		}
		for _, u := range m.Mentions {
			evt.MentionIDs = append(evt.MentionIDs, parseID(u.ID))
		}
		if m.MessageReference != nil {
			evt.ReferenceID = parseID(m.MessageReference.MessageID)
		}
		bus.Emit(context.Background(), evt)
	})

	session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageUpdate) {
		if m.Author == nil || m.Author.Bot {
			return
		}
		evt := events.MessageEditedEvent{
			GuildID:    parseID(m.GuildID),
			ChannelID:  parseID(m.ChannelID),
			MessageID:  parseID(m.ID),
			AuthorID:   parseID(m.Author.ID),
			NewContent: m.Content,
			Timestamp:  time.Now(),
		}
		if m.BeforeUpdate != nil {
			evt.OldContent = m.BeforeUpdate.Content
		}
		bus.Emit(context.Background(), evt)
	})

	session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageDelete) {
		evt := events.MessageDeletedEvent{
			GuildID:   parseID(m.GuildID),
			ChannelID: parseID(m.ChannelID),
			MessageID: parseID(m.ID),
			Timestamp: time.Now(),
		}
		if m.BeforeDelete != nil && m.BeforeDelete.Author != nil {
			evt.AuthorID = parseID(m.BeforeDelete.Author.ID)
			evt.Content = m.BeforeDelete.Content
		}
		bus.Emit(context.Background(), evt)
	})

	session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageDeleteBulk) {
		evt := events.MessagesBulkDeletedEvent{
			GuildID:   parseID(m.GuildID),
			ChannelID: parseID(m.ChannelID),
			Timestamp: time.Now(),
		}
		for _, id := range m.Messages {
			evt.MessageIDs = append(evt.MessageIDs, parseID(id))
		}
		bus.Emit(context.Background(), evt)
	})

	session.AddHandler(func(s *discordgo.Session, m *discordgo.GuildMemberAdd) {
		if m.User == nil {
			return
		}
		userID := parseID(m.User.ID)
		bus.Emit(context.Background(), events.MemberJoinedEvent{
			GuildID:    parseID(m.GuildID),
			UserID:     userID,
			Username:   m.User.Username,
			Bot:        m.User.Bot,
			AccountAge: time.Since(snowflakeTime(userID)),
			Timestamp:  time.Now(),
		})
	})

	session.AddHandler(func(s *discordgo.Session, m *discordgo.GuildMemberRemove) {
		if m.User == nil {
			return
		}
		bus.Emit(context.Background(), events.MemberLeftEvent{
			GuildID:   parseID(m.GuildID),
			UserID:    parseID(m.User.ID),
			Username:  m.User.Username,
			Timestamp: time.Now(),
		})
	})

	session.AddHandler(func(s *discordgo.Session, m *discordgo.GuildMemberUpdate) {
		if m.User == nil {
			return
		}
		evt := events.MemberUpdatedEvent{
			GuildID:   parseID(m.GuildID),
			UserID:    parseID(m.User.ID),
			Nickname:  m.Nick,
			Timestamp: time.Now(),
		}
		for _, r := range m.Roles {
			evt.NewRoleIDs = append(evt.NewRoleIDs, parseID(r))
		}
		if m.BeforeUpdate != nil {
			for _, r := range m.BeforeUpdate.Roles {
				evt.OldRoleIDs = append(evt.OldRoleIDs, parseID(r))
			}
		}
		bus.Emit(context.Background(), evt)
	})

	session.AddHandler(func(s *discordgo.Session, v *discordgo.VoiceStateUpdate) {
		evt := events.VoiceStateChangedEvent{
			GuildID:   parseID(v.GuildID),
			UserID:    parseID(v.UserID),
			ChannelID: parseID(v.ChannelID),
			Timestamp: time.Now(),
		}
		if v.BeforeUpdate != nil {
			evt.OldChannelID = parseID(v.BeforeUpdate.ChannelID)
		}
		bus.Emit(context.Background(), evt)
	})

	session.AddHandler(func(s *discordgo.Session, c *discordgo.ChannelCreate) {
		bus.Emit(context.Background(), events.ChannelCreatedEvent{
			GuildID:   parseID(c.GuildID),
			ChannelID: parseID(c.ID),
			Name:      c.Name,
			Timestamp: time.Now(),
		})
	})

	session.AddHandler(func(s *discordgo.Session, c *discordgo.ChannelDelete) {
		bus.Emit(context.Background(), events.ChannelDeletedEvent{
			GuildID:   parseID(c.GuildID),
			ChannelID: parseID(c.ID),
			Name:      c.Name,
			Timestamp: time.Now(),
		})
	})

	session.AddHandler(func(s *discordgo.Session, r *discordgo.GuildRoleCreate) {
		bus.Emit(context.Background(), events.RoleCreatedEvent{
			GuildID:   parseID(r.GuildID),
			RoleID:    parseID(r.Role.ID),
			Name:      r.Role.Name,
			Timestamp: time.Now(),
		})
	})

	session.AddHandler(func(s *discordgo.Session, r *discordgo.GuildRoleDelete) {
		bus.Emit(context.Background(), events.RoleDeletedEvent{
			GuildID:   parseID(r.GuildID),
			RoleID:    parseID(r.RoleID),
			Timestamp: time.Now(),
		})
	})

	session.AddHandler(func(s *discordgo.Session, g *discordgo.GuildCreate) {
		bus.Emit(context.Background(), events.GuildJoinedEvent{
			GuildID:     parseID(g.ID),
			Name:        g.Name,
			OwnerID:     parseID(g.OwnerID),
			MemberCount: g.MemberCount,
			Timestamp:   time.Now(),
		})
	})

	session.AddHandler(func(s *discordgo.Session, g *discordgo.GuildDelete) {
		bus.Emit(context.Background(), events.GuildLeftEvent{
			GuildID:   parseID(g.ID),
			Timestamp: time.Now(),
		})
	})

	session.AddHandler(func(s *discordgo.Session, b *discordgo.GuildBanAdd) {
		if b.User == nil {
			return
		}
		bus.Emit(context.Background(), events.MemberBannedEvent{
			GuildID:   parseID(b.GuildID),
			UserID:    parseID(b.User.ID),
			Timestamp: time.Now(),
		})
	})

	session.AddHandler(func(s *discordgo.Session, b *discordgo.GuildBanRemove) {
		if b.User == nil {
			return
		}
		bus.Emit(context.Background(), events.MemberUnbannedEvent{
			GuildID:   parseID(b.GuildID),
			UserID:    parseID(b.User.ID),
			Timestamp: time.Now(),
		})
	})
}
