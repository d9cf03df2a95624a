package bot

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/bwmarrin/discordgo"
	backoff "github.com/cenkalti/backoff/v4"

	"warden/apperr"
)

const (
	restTimeout  = 10 * time.Second
	restAttempts = 3
)

// Client wraps the discordgo REST surface with deadlines, retry on
// transport-class failures, and classified error mapping. It implements
// service.RoleManager.
type Client struct {
	session *discordgo.Session
}

func NewClient(session *discordgo.Session) *Client {
	return &Client{session: session}
}

// do runs one REST call with the standard deadline, retrying transport and
// rate-limit failures with exponential backoff
func (c *Client) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, restTimeout)
	defer cancel()

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	policy.MaxInterval = 4 * time.Second

	attempts := 0
	call := func() error {
		attempts++
		err := mapRESTError(op, fn(ctx))
		if err == nil {
			return nil
		}
		retryable := apperr.Retryable(err) || apperr.KindOf(err) == apperr.KindRateLimited
		if attempts >= restAttempts || !retryable {
			return backoff.Permanent(err)
		}
		return err
	}

	err := backoff.Retry(call, backoff.WithContext(policy, ctx))
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return perm.Err
	}
	return err
}

// mapRESTError classifies a discordgo error into the stable error taxonomy
func mapRESTError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperr.Wrap(apperr.KindTimeout, err, "%s timed out", op)
	}

	var rest *discordgo.RESTError
	if errors.As(err, &rest) && rest.Response != nil {
		switch rest.Response.StatusCode {
		case http.StatusForbidden:
			return apperr.Wrap(apperr.KindForbidden, err, "missing permissions for %s", op)
		case http.StatusNotFound:
			return apperr.Wrap(apperr.KindNotFound, err, "%s target not found", op)
		case http.StatusTooManyRequests:
			return apperr.Wrap(apperr.KindRateLimited, err, "%s rate limited", op)
		case http.StatusBadRequest:
			return apperr.Wrap(apperr.KindBadArgument, err, "%s rejected", op)
		}
	}

	return apperr.Wrap(apperr.KindTransport, err, "%s failed", op)
}

// Snowflake renders a numeric id in Discord's wire format
func Snowflake(id int64) string {
	return strconv.FormatInt(id, 10)
}

func snowflake(id int64) string {
	return Snowflake(id)
}

func parseID(s string) int64 {
	id, _ := strconv.ParseInt(s, 10, 64)
	return id
}

// MemberRoles returns the role ids a member currently holds
func (c *Client) MemberRoles(ctx context.Context, guildID, userID int64) ([]int64, error) {
	var member *discordgo.Member
	err := c.do(ctx, "fetch member", func(ctx context.Context) error {
		var err error
		member, err = c.session.GuildMember(snowflake(guildID), snowflake(userID), discordgo.WithContext(ctx))
		return err
	})
	if err != nil {
		return nil, err
	}

	roles := make([]int64, 0, len(member.Roles))
	for _, r := range member.Roles {
		roles = append(roles, parseID(r))
	}
	return roles, nil
}

// AddRole grants a role to a member
func (c *Client) AddRole(ctx context.Context, guildID, userID, roleID int64) error {
	return c.do(ctx, "add role", func(ctx context.Context) error {
		return c.session.GuildMemberRoleAdd(snowflake(guildID), snowflake(userID), snowflake(roleID), discordgo.WithContext(ctx))
	})
}

// RemoveRole revokes a role from a member
func (c *Client) RemoveRole(ctx context.Context, guildID, userID, roleID int64) error {
	return c.do(ctx, "remove role", func(ctx context.Context) error {
		return c.session.GuildMemberRoleRemove(snowflake(guildID), snowflake(userID), snowflake(roleID), discordgo.WithContext(ctx))
	})
}

// SendReply delivers a handler reply envelope to a channel
func (c *Client) SendReply(ctx context.Context, channelID int64, reply *Reply) error {
	send := &discordgo.MessageSend{Content: reply.Content}
	if reply.Embed != nil {
		send.Embeds = []*discordgo.MessageEmbed{reply.Embed}
	}
	return c.do(ctx, "send message", func(ctx context.Context) error {
		_, err := c.session.ChannelMessageSendComplex(snowflake(channelID), send, discordgo.WithContext(ctx))
		return err
	})
}

// SendMessage sends plain text to a channel
func (c *Client) SendMessage(ctx context.Context, channelID int64, content string) error {
	return c.SendReply(ctx, channelID, &Reply{Content: content})
}

// SendEmbed sends a single embed to a channel
func (c *Client) SendEmbed(ctx context.Context, channelID int64, embed *discordgo.MessageEmbed) error {
	return c.SendReply(ctx, channelID, &Reply{Embed: embed})
}

// SendDM opens (or reuses) a DM channel and delivers a message
func (c *Client) SendDM(ctx context.Context, userID int64, content string) error {
	var channel *discordgo.Channel
	err := c.do(ctx, "open dm", func(ctx context.Context) error {
		var err error
		channel, err = c.session.UserChannelCreate(snowflake(userID), discordgo.WithContext(ctx))
		return err
	})
	if err != nil {
		return err
	}
	return c.do(ctx, "send dm", func(ctx context.Context) error {
		_, err := c.session.ChannelMessageSend(channel.ID, content, discordgo.WithContext(ctx))
		return err
	})
}

// MessageAuthor returns the author id of an existing message
func (c *Client) MessageAuthor(ctx context.Context, channelID, messageID int64) (int64, error) {
	var msg *discordgo.Message
	err := c.do(ctx, "fetch message", func(ctx context.Context) error {
		var err error
		msg, err = c.session.ChannelMessage(snowflake(channelID), snowflake(messageID), discordgo.WithContext(ctx))
		return err
	})
	if err != nil {
		return 0, err
	}
	if msg.Author == nil {
		return 0, nil
	}
	return parseID(msg.Author.ID), nil
}

// RecentMessageIDs lists up to limit message ids before the given message
func (c *Client) RecentMessageIDs(ctx context.Context, channelID, beforeID int64, limit int) ([]int64, error) {
	var msgs []*discordgo.Message
	err := c.do(ctx, "list messages", func(ctx context.Context) error {
		var err error
		msgs, err = c.session.ChannelMessages(snowflake(channelID), limit, snowflake(beforeID), "", "", discordgo.WithContext(ctx))
		return err
	})
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(msgs))
	for _, m := range msgs {
		ids = append(ids, parseID(m.ID))
	}
	return ids, nil
}

// BulkDeleteMessages removes up to 100 messages from a channel
func (c *Client) BulkDeleteMessages(ctx context.Context, channelID int64, messageIDs []int64) error {
	strIDs := make([]string, 0, len(messageIDs))
	for _, id := range messageIDs {
		strIDs = append(strIDs, snowflake(id))
	}
	return c.do(ctx, "bulk delete", func(ctx context.Context) error {
		return c.session.ChannelMessagesBulkDelete(snowflake(channelID), strIDs, discordgo.WithContext(ctx))
	})
}

// KickMember removes a member from a guild
func (c *Client) KickMember(ctx context.Context, guildID, userID int64, reason string) error {
	return c.do(ctx, "kick member", func(ctx context.Context) error {
		return c.session.GuildMemberDeleteWithReason(snowflake(guildID), snowflake(userID), reason, discordgo.WithContext(ctx))
	})
}

// BanMember bans a member from a guild
func (c *Client) BanMember(ctx context.Context, guildID, userID int64, reason string) error {
	return c.do(ctx, "ban member", func(ctx context.Context) error {
		return c.session.GuildBanCreateWithReason(snowflake(guildID), snowflake(userID), reason, 0, discordgo.WithContext(ctx))
	})
}

// CreateRole creates a guild role and returns its id
func (c *Client) CreateRole(ctx context.Context, guildID int64, name string) (int64, error) {
	var role *discordgo.Role
	err := c.do(ctx, "create role", func(ctx context.Context) error {
		var err error
		role, err = c.session.GuildRoleCreate(snowflake(guildID), &discordgo.RoleParams{Name: name}, discordgo.WithContext(ctx))
		return err
	})
	if err != nil {
		return 0, err
	}
	return parseID(role.ID), nil
}

// CreateChannel creates a guild channel. parentID nests it under a category
// when nonzero; overwrites apply channel permission overrides.
func (c *Client) CreateChannel(ctx context.Context, guildID int64, name string, kind discordgo.ChannelType, parentID int64, overwrites []*discordgo.PermissionOverwrite) (int64, error) {
	data := discordgo.GuildChannelCreateData{
		Name:                 name,
		Type:                 kind,
		PermissionOverwrites: overwrites,
	}
	if parentID != 0 {
		data.ParentID = snowflake(parentID)
	}

	var channel *discordgo.Channel
	err := c.do(ctx, "create channel", func(ctx context.Context) error {
		var err error
		channel, err = c.session.GuildChannelCreateComplex(snowflake(guildID), data, discordgo.WithContext(ctx))
		return err
	})
	if err != nil {
		return 0, err
	}
	return parseID(channel.ID), nil
}

// GuildRoles returns all roles of a guild keyed by id, with positions
func (c *Client) GuildRoles(ctx context.Context, guildID int64) (map[int64]*discordgo.Role, error) {
	var roles []*discordgo.Role
	err := c.do(ctx, "list roles", func(ctx context.Context) error {
		var err error
		roles, err = c.session.GuildRoles(snowflake(guildID), discordgo.WithContext(ctx))
		return err
	})
	if err != nil {
		return nil, err
	}
	out := make(map[int64]*discordgo.Role, len(roles))
	for _, r := range roles {
		out[parseID(r.ID)] = r
	}
	return out, nil
}

// MemberInfo resolves a member's roles, bot flag and permission bits. The
// session state cache answers when warm; a REST fetch backs it.
func (c *Client) MemberInfo(ctx context.Context, guildID, userID int64) (*MemberInfo, error) {
	gid, uid := snowflake(guildID), snowflake(userID)

	member, err := c.session.State.Member(gid, uid)
	if err != nil {
		err = c.do(ctx, "fetch member", func(ctx context.Context) error {
			var ferr error
			member, ferr = c.session.GuildMember(gid, uid, discordgo.WithContext(ctx))
			return ferr
		})
		if err != nil {
			return nil, err
		}
	}

	roles := make([]int64, 0, len(member.Roles))
	for _, r := range member.Roles {
		roles = append(roles, parseID(r))
	}

	info := &MemberInfo{
		UserID:  userID,
		RoleIDs: roles,
	}
	if member.User != nil {
		info.Username = member.User.Username
		info.Bot = member.User.Bot
	}

	guild, gerr := c.session.State.Guild(gid)
	if gerr == nil && guild.OwnerID == uid {
		info.Owner = true
	}

	guildRoles, err := c.GuildRoles(ctx, guildID)
	if err != nil {
		return nil, err
	}
	for _, rid := range roles {
		role, ok := guildRoles[rid]
		if !ok {
			continue
		}
		info.Permissions |= role.Permissions
		if role.Position > info.TopRolePosition {
			info.TopRolePosition = role.Position
		}
	}
	if everyone, ok := guildRoles[guildID]; ok {
		info.Permissions |= everyone.Permissions
	}
	if info.Owner {
		info.Permissions |= discordgo.PermissionAdministrator
	}

	return info, nil
}

// MemberInfo is the authorization view of one guild member
type MemberInfo struct {
	UserID          int64
	Username        string
	Bot             bool
	Owner           bool
	RoleIDs         []int64
	Permissions     int64
	TopRolePosition int
}

// HasPermission reports whether the member carries all the given bits.
// Administrators pass every check.
func (m *MemberInfo) HasPermission(bits int64) bool {
	if bits == 0 {
		return true
	}
	if m.Permissions&discordgo.PermissionAdministrator != 0 {
		return true
	}
	return m.Permissions&bits == bits
}
