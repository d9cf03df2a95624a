package events

import (
	"time"
)

// EventType identifies one envelope type in the closed event set
type EventType string

const (
	EventTypeMessageCreated    EventType = "message_created"
	EventTypeMessageEdited     EventType = "message_edited"
	EventTypeMessageDeleted    EventType = "message_deleted"
	EventTypeMessagesBulkDeleted EventType = "messages_bulk_deleted"
	EventTypeMemberJoined      EventType = "member_joined"
	EventTypeMemberLeft        EventType = "member_left"
	EventTypeMemberUpdated     EventType = "member_updated"
	EventTypeVoiceStateChanged EventType = "voice_state_changed"
	EventTypeChannelCreated    EventType = "channel_created"
	EventTypeChannelDeleted    EventType = "channel_deleted"
	EventTypeRoleCreated       EventType = "role_created"
	EventTypeRoleDeleted       EventType = "role_deleted"
	EventTypeGuildJoined       EventType = "guild_joined"
	EventTypeGuildLeft         EventType = "guild_left"
	EventTypeMemberBanned      EventType = "member_banned"
	EventTypeMemberUnbanned    EventType = "member_unbanned"
	EventTypeReady             EventType = "ready"
	EventTypeRaw               EventType = "raw"

	// Internal envelopes produced by the core itself
	EventTypeRateLimitViolation EventType = "rate_limit_violation"
	EventTypeModerationAction   EventType = "moderation_action"
	EventTypeTransaction        EventType = "transaction"
	EventTypeDetection          EventType = "detection"
)

// Event is the base interface for all envelopes
type Event interface {
	Type() EventType
	Guild() int64 // zero when the event has no guild scope
}

// MessageCreatedEvent carries a newly created message
type MessageCreatedEvent struct {
	GuildID     int64
	ChannelID   int64
	MessageID   int64
	AuthorID    int64
	AuthorBot   bool
	Content     string
	MentionIDs  []int64
	ReferenceID int64 // replied-to message id, zero when not a reply
	Timestamp   time.Time
}

func (e MessageCreatedEvent) Type() EventType { return EventTypeMessageCreated }
func (e MessageCreatedEvent) Guild() int64    { return e.GuildID }

// MessageEditedEvent carries a message edit
type MessageEditedEvent struct {
	GuildID    int64
	ChannelID  int64
	MessageID  int64
	AuthorID   int64
	OldContent string
	NewContent string
	Timestamp  time.Time
}

func (e MessageEditedEvent) Type() EventType { return EventTypeMessageEdited }
func (e MessageEditedEvent) Guild() int64    { return e.GuildID }

// MessageDeletedEvent carries a single message deletion
type MessageDeletedEvent struct {
	GuildID   int64
	ChannelID int64
	MessageID int64
	AuthorID  int64
	Content   string
	Timestamp time.Time
}

func (e MessageDeletedEvent) Type() EventType { return EventTypeMessageDeleted }
func (e MessageDeletedEvent) Guild() int64    { return e.GuildID }

// MessagesBulkDeletedEvent carries a bulk deletion
type MessagesBulkDeletedEvent struct {
	GuildID    int64
	ChannelID  int64
	MessageIDs []int64
	Timestamp  time.Time
}

func (e MessagesBulkDeletedEvent) Type() EventType { return EventTypeMessagesBulkDeleted }
func (e MessagesBulkDeletedEvent) Guild() int64    { return e.GuildID }

// MemberJoinedEvent fires when a user joins a guild
type MemberJoinedEvent struct {
	GuildID    int64
	UserID     int64
	Username   string
	Bot        bool
	AccountAge time.Duration
	Timestamp  time.Time
}

func (e MemberJoinedEvent) Type() EventType { return EventTypeMemberJoined }
func (e MemberJoinedEvent) Guild() int64    { return e.GuildID }

// MemberLeftEvent fires when a user leaves a guild
type MemberLeftEvent struct {
	GuildID   int64
	UserID    int64
	Username  string
	Timestamp time.Time
}

func (e MemberLeftEvent) Type() EventType { return EventTypeMemberLeft }
func (e MemberLeftEvent) Guild() int64    { return e.GuildID }

// MemberUpdatedEvent fires on nickname or role changes
type MemberUpdatedEvent struct {
	GuildID    int64
	UserID     int64
	Nickname   string
	OldRoleIDs []int64
	NewRoleIDs []int64
	Timestamp  time.Time
}

func (e MemberUpdatedEvent) Type() EventType { return EventTypeMemberUpdated }
func (e MemberUpdatedEvent) Guild() int64    { return e.GuildID }

// VoiceStateChangedEvent fires on voice channel join/leave/move
type VoiceStateChangedEvent struct {
	GuildID      int64
	UserID       int64
	ChannelID    int64 // zero on disconnect
	OldChannelID int64
	Timestamp    time.Time
}

func (e VoiceStateChangedEvent) Type() EventType { return EventTypeVoiceStateChanged }
func (e VoiceStateChangedEvent) Guild() int64    { return e.GuildID }

// ChannelCreatedEvent fires when a channel is created
type ChannelCreatedEvent struct {
	GuildID   int64
	ChannelID int64
	Name      string
	Timestamp time.Time
}

func (e ChannelCreatedEvent) Type() EventType { return EventTypeChannelCreated }
func (e ChannelCreatedEvent) Guild() int64    { return e.GuildID }

// ChannelDeletedEvent fires when a channel is deleted
type ChannelDeletedEvent struct {
	GuildID   int64
	ChannelID int64
	Name      string
	Timestamp time.Time
}

func (e ChannelDeletedEvent) Type() EventType { return EventTypeChannelDeleted }
func (e ChannelDeletedEvent) Guild() int64    { return e.GuildID }

// RoleCreatedEvent fires when a role is created
type RoleCreatedEvent struct {
	GuildID   int64
	RoleID    int64
	Name      string
	Timestamp time.Time
}

func (e RoleCreatedEvent) Type() EventType { return EventTypeRoleCreated }
func (e RoleCreatedEvent) Guild() int64    { return e.GuildID }

// RoleDeletedEvent fires when a role is deleted
type RoleDeletedEvent struct {
	GuildID   int64
	RoleID    int64
	Timestamp time.Time
}

func (e RoleDeletedEvent) Type() EventType { return EventTypeRoleDeleted }
func (e RoleDeletedEvent) Guild() int64    { return e.GuildID }

// GuildJoinedEvent fires when the bot joins a guild
type GuildJoinedEvent struct {
	GuildID     int64
	Name        string
	OwnerID     int64
	MemberCount int
	Timestamp   time.Time
}

func (e GuildJoinedEvent) Type() EventType { return EventTypeGuildJoined }
func (e GuildJoinedEvent) Guild() int64    { return e.GuildID }

// GuildLeftEvent fires when the bot leaves a guild
type GuildLeftEvent struct {
	GuildID   int64
	Timestamp time.Time
}

func (e GuildLeftEvent) Type() EventType { return EventTypeGuildLeft }
func (e GuildLeftEvent) Guild() int64    { return e.GuildID }

// MemberBannedEvent fires when a member is banned
type MemberBannedEvent struct {
	GuildID   int64
	UserID    int64
	Timestamp time.Time
}

func (e MemberBannedEvent) Type() EventType { return EventTypeMemberBanned }
func (e MemberBannedEvent) Guild() int64    { return e.GuildID }

// MemberUnbannedEvent fires when a ban is lifted
type MemberUnbannedEvent struct {
	GuildID   int64
	UserID    int64
	Timestamp time.Time
}

func (e MemberUnbannedEvent) Type() EventType { return EventTypeMemberUnbanned }
func (e MemberUnbannedEvent) Guild() int64    { return e.GuildID }

// ReadyEvent fires when the gateway session is ready
type ReadyEvent struct {
	SessionID string
	Timestamp time.Time
}

func (e ReadyEvent) Type() EventType { return EventTypeReady }
func (e ReadyEvent) Guild() int64    { return 0 }

// RawEvent wraps a gateway payload outside the closed set
type RawEvent struct {
	GuildID   int64
	Kind      string
	Payload   any
	Timestamp time.Time
}

func (e RawEvent) Type() EventType { return EventTypeRaw }
func (e RawEvent) Guild() int64    { return e.GuildID }

// RateLimitViolationEvent fires when a command invocation is rejected by the
// rate limiter
type RateLimitViolationEvent struct {
	GuildID   int64
	UserID    int64
	Command   string
	Timestamp time.Time
}

func (e RateLimitViolationEvent) Type() EventType { return EventTypeRateLimitViolation }
func (e RateLimitViolationEvent) Guild() int64    { return e.GuildID }

// ModerationActionEvent fires when a moderation workflow completes
type ModerationActionEvent struct {
	GuildID     int64
	ModeratorID int64
	TargetID    int64
	Action      string // "jail", "unjail", "kick", "ban", "purge", ...
	Reason      string
	Timestamp   time.Time
}

func (e ModerationActionEvent) Type() EventType { return EventTypeModerationAction }
func (e ModerationActionEvent) Guild() int64    { return e.GuildID }

// TransactionEvent fires after an economy transaction commits
type TransactionEvent struct {
	GuildID         int64
	UserID          int64
	TransactionType string
	Amount          int64
	Reason          string
	Timestamp       time.Time
}

func (e TransactionEvent) Type() EventType { return EventTypeTransaction }
func (e TransactionEvent) Guild() int64    { return e.GuildID }

// DetectionEvent fires when a threat rule matches
type DetectionEvent struct {
	ID         string // correlation id
	GuildID    int64
	UserID     int64
	Kind       string
	Level      string // low, medium, high, critical
	Confidence float64
	Action     string // log, warn, kick, ban, jail
	Details    string
	Timestamp  time.Time
}

func (e DetectionEvent) Type() EventType { return EventTypeDetection }
func (e DetectionEvent) Guild() int64    { return e.GuildID }

// AllEventTypes enumerates every routable envelope type
var AllEventTypes = []EventType{
	EventTypeMessageCreated,
	EventTypeMessageEdited,
	EventTypeMessageDeleted,
	EventTypeMessagesBulkDeleted,
	EventTypeMemberJoined,
	EventTypeMemberLeft,
	EventTypeMemberUpdated,
	EventTypeVoiceStateChanged,
	EventTypeChannelCreated,
	EventTypeChannelDeleted,
	EventTypeRoleCreated,
	EventTypeRoleDeleted,
	EventTypeGuildJoined,
	EventTypeGuildLeft,
	EventTypeMemberBanned,
	EventTypeMemberUnbanned,
	EventTypeReady,
	EventTypeRaw,
	EventTypeRateLimitViolation,
	EventTypeModerationAction,
	EventTypeTransaction,
	EventTypeDetection,
}
