package threat

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"warden/events"
)

// Action is what the detector does about a detection
type Action string

const (
	ActionLog  Action = "log"
	ActionWarn Action = "warn"
	ActionKick Action = "kick"
	ActionBan  Action = "ban"
	ActionJail Action = "jail"
)

// Enforcer carries out detector actions. The runtime wires it over the REST
// client and the jail service; tests supply fakes.
type Enforcer interface {
	Warn(ctx context.Context, guildID, channelID, userID int64, reason string) error
	Kick(ctx context.Context, guildID, userID int64, reason string) error
	Ban(ctx context.Context, guildID, userID int64, reason string) error
	Jail(ctx context.Context, guildID, userID int64, reason string) error
}

const (
	messageFloodWindow    = 10 * time.Second
	messageFloodThreshold = 8
	mentionFloodWindow    = 30 * time.Second
	mentionFloodThreshold = 15
	inviteFloodWindow     = time.Minute
	inviteFloodThreshold  = 3
	commandFloodWindow    = time.Minute
	commandFloodThreshold = 3

	// Context weighting caps: young accounts and fresh members score higher
	youngAccountAge = 24 * time.Hour
	newAccountAge   = 7 * 24 * time.Hour
	freshTenure     = 24 * time.Hour
)

// memberContext is what the detector remembers about a member for weighting
type memberContext struct {
	accountAge time.Duration
	joinedAt   time.Time
	bot        bool
}

// Detector evaluates messages against the rule set and sliding-window
// counters, emits DetectionEvents, and applies the configured action for
// the detection level.
type Detector struct {
	bus      *events.Bus
	enforcer Enforcer

	mu      sync.RWMutex
	rules   map[Kind]*Rule
	actions map[Level]Action

	windows *windowSet

	ctxMu   sync.RWMutex
	members map[string]memberContext

	now   func() time.Time
	newID func() string
}

func NewDetector(bus *events.Bus, enforcer Enforcer) *Detector {
	return &Detector{
		bus:      bus,
		enforcer: enforcer,
		rules:    defaultRules(),
		actions: map[Level]Action{
			LevelLow:      ActionLog,
			LevelMedium:   ActionWarn,
			LevelHigh:     ActionJail,
			LevelCritical: ActionBan,
		},
		windows: newWindowSet(),
		members: make(map[string]memberContext),
		now:     time.Now,
		newID:   func() string { return uuid.New().String() },
	}
}

// Attach subscribes the detector to the envelopes it consumes
func (d *Detector) Attach(bus *events.Bus) {
	bus.Subscribe(events.EventTypeMessageCreated, func(ctx context.Context, event events.Event) {
		if evt, ok := event.(events.MessageCreatedEvent); ok {
			d.HandleMessage(ctx, evt)
		}
	})
	bus.Subscribe(events.EventTypeMemberJoined, func(ctx context.Context, event events.Event) {
		if evt, ok := event.(events.MemberJoinedEvent); ok {
			d.rememberMember(evt)
		}
	})
	bus.Subscribe(events.EventTypeMemberLeft, func(ctx context.Context, event events.Event) {
		if evt, ok := event.(events.MemberLeftEvent); ok {
			d.forgetMember(evt.GuildID, evt.UserID)
		}
	})
	bus.Subscribe(events.EventTypeRateLimitViolation, func(ctx context.Context, event events.Event) {
		if evt, ok := event.(events.RateLimitViolationEvent); ok {
			d.handleRateLimitViolation(ctx, evt)
		}
	})
}

// SetRuleEnabled toggles a rule at runtime
func (d *Detector) SetRuleEnabled(kind Kind, enabled bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	rule, ok := d.rules[kind]
	if !ok {
		return false
	}
	rule.Enabled = enabled
	return true
}

// SetRuleLevel changes a rule's level at runtime
func (d *Detector) SetRuleLevel(kind Kind, level Level) bool {
	if _, ok := levelRank[level]; !ok {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	rule, ok := d.rules[kind]
	if !ok {
		return false
	}
	rule.Level = level
	return true
}

// SetAction changes what happens at a detection level
func (d *Detector) SetAction(level Level, action Action) bool {
	if _, ok := levelRank[level]; !ok {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.actions[level] = action
	return true
}

// Evict drops stale window and member-context entries. Meant to run
// periodically from a scheduler.
func (d *Detector) Evict() {
	d.windows.evict(d.now().Add(-time.Hour))
}

func (d *Detector) rememberMember(evt events.MemberJoinedEvent) {
	d.ctxMu.Lock()
	d.members[memberKey(evt.GuildID, evt.UserID)] = memberContext{
		accountAge: evt.AccountAge,
		joinedAt:   evt.Timestamp,
		bot:        evt.Bot,
	}
	d.ctxMu.Unlock()
}

func (d *Detector) forgetMember(guildID, userID int64) {
	d.ctxMu.Lock()
	delete(d.members, memberKey(guildID, userID))
	d.ctxMu.Unlock()
}

func memberKey(guildID, userID int64) string {
	return fmt.Sprintf("%d:%d", guildID, userID)
}

// contextWeight scales confidence by how suspicious the member's profile
// is. Unknown members weigh neutral.
func (d *Detector) contextWeight(guildID, userID int64) float64 {
	d.ctxMu.RLock()
	mc, ok := d.members[memberKey(guildID, userID)]
	d.ctxMu.RUnlock()
	if !ok {
		return 1.0
	}

	weight := 1.0
	switch {
	case mc.accountAge < youngAccountAge:
		weight += 0.3
	case mc.accountAge < newAccountAge:
		weight += 0.15
	}
	if d.now().Sub(mc.joinedAt) < freshTenure {
		weight += 0.15
	}
	return weight
}

// HandleMessage evaluates one message against every enabled rule
func (d *Detector) HandleMessage(ctx context.Context, evt events.MessageCreatedEvent) {
	if evt.AuthorBot || evt.GuildID == 0 {
		return
	}
	now := d.now()

	var matches []Kind

	d.mu.RLock()
	for _, rule := range d.rules {
		if !rule.Enabled || rule.Pattern == nil {
			continue
		}
		if rule.Pattern.MatchString(evt.Content) {
			matches = append(matches, rule.Kind)
		}
	}
	enabled := func(kind Kind) bool {
		r, ok := d.rules[kind]
		return ok && r.Enabled
	}
	d.mu.RUnlock()

	mentions := len(evt.MentionIDs)
	if strings.Contains(evt.Content, "@everyone") || strings.Contains(evt.Content, "@here") {
		mentions += massMentionThreshold
	}
	if enabled(KindMassMention) && mentions >= massMentionThreshold {
		matches = append(matches, KindMassMention)
	}
	if enabled(KindCharRun) && hasCharRun(evt.Content) {
		matches = append(matches, KindCharRun)
	}
	if enabled(KindCapsRun) && isCapsRun(evt.Content) {
		matches = append(matches, KindCapsRun)
	}
	if enabled(KindRepeats) && hasRepeats(evt.Content) {
		matches = append(matches, KindRepeats)
	}

	// Flood windows advance on every message regardless of content matches
	if n := d.windows.add(evt.GuildID, evt.AuthorID, counterMessages, 1, messageFloodWindow, now); enabled(KindMessageFlood) && n >= messageFloodThreshold {
		matches = append(matches, KindMessageFlood)
	}
	if mentions > 0 {
		if n := d.windows.add(evt.GuildID, evt.AuthorID, counterMentions, mentions, mentionFloodWindow, now); enabled(KindMentionFlood) && n >= mentionFloodThreshold {
			matches = append(matches, KindMentionFlood)
		}
	}
	if inviteLinkPattern.MatchString(evt.Content) {
		if n := d.windows.add(evt.GuildID, evt.AuthorID, counterInvites, 1, inviteFloodWindow, now); enabled(KindInviteFlood) && n >= inviteFloodThreshold {
			matches = append(matches, KindInviteFlood)
		}
	}

	for _, kind := range matches {
		d.report(ctx, evt.GuildID, evt.ChannelID, evt.AuthorID, kind,
			fmt.Sprintf("message %d", evt.MessageID))
	}
}

func (d *Detector) handleRateLimitViolation(ctx context.Context, evt events.RateLimitViolationEvent) {
	n := d.windows.add(evt.GuildID, evt.UserID, counterCommands, 1, commandFloodWindow, d.now())

	d.mu.RLock()
	rule, ok := d.rules[KindCommandFlood]
	active := ok && rule.Enabled
	d.mu.RUnlock()

	if active && n >= commandFloodThreshold {
		d.report(ctx, evt.GuildID, 0, evt.UserID, KindCommandFlood,
			fmt.Sprintf("command %s", evt.Command))
	}
}

// report emits the DetectionEvent and applies the configured action
func (d *Detector) report(ctx context.Context, guildID, channelID, userID int64, kind Kind, details string) {
	d.mu.RLock()
	rule := d.rules[kind]
	level := rule.Level
	confidence := rule.Confidence
	action := d.actions[level]
	d.mu.RUnlock()

	confidence *= d.contextWeight(guildID, userID)
	if confidence > 1.0 {
		confidence = 1.0
	}

	detection := events.DetectionEvent{
		ID:         d.newID(),
		GuildID:    guildID,
		UserID:     userID,
		Kind:       string(kind),
		Level:      string(level),
		Confidence: confidence,
		Action:     string(action),
		Details:    details,
		Timestamp:  d.now(),
	}

	log.WithFields(log.Fields{
		"detection_id": detection.ID,
		"guild_id":     guildID,
		"user_id":      userID,
		"kind":         string(kind),
		"level":        string(level),
		"confidence":   confidence,
		"action":       string(action),
	}).Warn("Threat detected")

	d.bus.Emit(ctx, detection)

	if err := d.enforce(ctx, action, guildID, channelID, userID, kind); err != nil {
		log.WithFields(log.Fields{
			"detection_id": detection.ID,
			"action":       string(action),
		}).WithError(err).Error("Failed to apply detection action")
	}
}

func (d *Detector) enforce(ctx context.Context, action Action, guildID, channelID, userID int64, kind Kind) error {
	reason := fmt.Sprintf("automated: %s", kind)
	switch action {
	case ActionWarn:
		return d.enforcer.Warn(ctx, guildID, channelID, userID, reason)
	case ActionKick:
		return d.enforcer.Kick(ctx, guildID, userID, reason)
	case ActionBan:
		return d.enforcer.Ban(ctx, guildID, userID, reason)
	case ActionJail:
		return d.enforcer.Jail(ctx, guildID, userID, reason)
	}
	return nil
}
