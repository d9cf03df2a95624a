package threat

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warden/events"
)

type fakeEnforcer struct {
	mu     sync.Mutex
	warned []int64
	kicked []int64
	banned []int64
	jailed []int64
}

func (f *fakeEnforcer) Warn(ctx context.Context, guildID, channelID, userID int64, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.warned = append(f.warned, userID)
	return nil
}

func (f *fakeEnforcer) Kick(ctx context.Context, guildID, userID int64, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kicked = append(f.kicked, userID)
	return nil
}

func (f *fakeEnforcer) Ban(ctx context.Context, guildID, userID int64, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.banned = append(f.banned, userID)
	return nil
}

func (f *fakeEnforcer) Jail(ctx context.Context, guildID, userID int64, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jailed = append(f.jailed, userID)
	return nil
}

func newTestDetector(t *testing.T) (*Detector, *fakeEnforcer, *[]events.DetectionEvent) {
	t.Helper()
	bus := events.NewBus()
	enforcer := &fakeEnforcer{}
	d := NewDetector(bus, enforcer)
	d.newID = func() string { return "det-1" }

	detections := &[]events.DetectionEvent{}
	bus.Subscribe(events.EventTypeDetection, func(ctx context.Context, event events.Event) {
		if evt, ok := event.(events.DetectionEvent); ok {
			*detections = append(*detections, evt)
		}
	})
	return d, enforcer, detections
}

func message(content string) events.MessageCreatedEvent {
	return events.MessageCreatedEvent{
		GuildID:   1,
		ChannelID: 2,
		MessageID: 3,
		AuthorID:  42,
		Content:   content,
		Timestamp: time.Now(),
	}
}

func TestDetector_InviteLink(t *testing.T) {
	ctx := context.Background()
	d, enforcer, detections := newTestDetector(t)

	d.HandleMessage(ctx, message("join discord.gg/abc123 now"))

	require.Len(t, *detections, 1)
	det := (*detections)[0]
	assert.Equal(t, "det-1", det.ID)
	assert.Equal(t, string(KindInviteLink), det.Kind)
	assert.Equal(t, string(LevelMedium), det.Level)
	assert.Equal(t, string(ActionWarn), det.Action)

	// Medium maps to warn by default
	assert.Equal(t, []int64{42}, enforcer.warned)
}

func TestDetector_IgnoresBots(t *testing.T) {
	ctx := context.Background()
	d, _, detections := newTestDetector(t)

	evt := message("discord.gg/abc123")
	evt.AuthorBot = true
	d.HandleMessage(ctx, evt)

	assert.Empty(t, *detections)
}

func TestDetector_CleanMessage(t *testing.T) {
	ctx := context.Background()
	d, enforcer, detections := newTestDetector(t)

	d.HandleMessage(ctx, message("good morning everyone, how are you?"))

	assert.Empty(t, *detections)
	assert.Empty(t, enforcer.warned)
}

func TestDetector_MassMention(t *testing.T) {
	ctx := context.Background()
	d, enforcer, detections := newTestDetector(t)

	evt := message("look at this")
	evt.MentionIDs = []int64{10, 11, 12, 13, 14}
	d.HandleMessage(ctx, evt)

	require.Len(t, *detections, 1)
	assert.Equal(t, string(KindMassMention), (*detections)[0].Kind)
	// High maps to jail by default
	assert.Equal(t, []int64{42}, enforcer.jailed)
}

func TestDetector_EveryoneCountsAsMassMention(t *testing.T) {
	ctx := context.Background()
	d, _, detections := newTestDetector(t)

	d.HandleMessage(ctx, message("hey @everyone come look"))

	require.Len(t, *detections, 1)
	assert.Equal(t, string(KindMassMention), (*detections)[0].Kind)
}

func TestDetector_MessageFlood(t *testing.T) {
	ctx := context.Background()
	d, _, detections := newTestDetector(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return now }

	for i := 0; i < messageFloodThreshold-1; i++ {
		d.HandleMessage(ctx, message("hi"))
		now = now.Add(time.Second)
	}
	require.Empty(t, *detections)

	d.HandleMessage(ctx, message("hi"))
	require.Len(t, *detections, 1)
	assert.Equal(t, string(KindMessageFlood), (*detections)[0].Kind)
}

func TestDetector_MessageFloodWindowSlides(t *testing.T) {
	ctx := context.Background()
	d, _, detections := newTestDetector(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return now }

	// Same volume spread wider than the window never trips
	for i := 0; i < messageFloodThreshold*2; i++ {
		d.HandleMessage(ctx, message("hi"))
		now = now.Add(messageFloodWindow)
	}
	assert.Empty(t, *detections)
}

func TestDetector_CommandFlood(t *testing.T) {
	ctx := context.Background()
	d, enforcer, detections := newTestDetector(t)

	violation := events.RateLimitViolationEvent{GuildID: 1, UserID: 42, Command: "work"}
	for i := 0; i < commandFloodThreshold-1; i++ {
		d.handleRateLimitViolation(ctx, violation)
	}
	require.Empty(t, *detections)

	d.handleRateLimitViolation(ctx, violation)
	require.Len(t, *detections, 1)
	assert.Equal(t, string(KindCommandFlood), (*detections)[0].Kind)
	assert.Equal(t, []int64{42}, enforcer.warned)
}

func TestDetector_ContextWeighting(t *testing.T) {
	ctx := context.Background()
	d, _, detections := newTestDetector(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return now }

	// A day-old account that just joined weighs heaviest
	d.rememberMember(events.MemberJoinedEvent{
		GuildID:    1,
		UserID:     42,
		AccountAge: time.Hour,
		Timestamp:  now,
	})

	d.HandleMessage(ctx, message("free nitro at example.com"))
	require.Len(t, *detections, 1)
	weighted := (*detections)[0].Confidence

	// The same content from an unknown member scores lower
	d2, _, detections2 := newTestDetector(t)
	d2.HandleMessage(ctx, message("free nitro at example.com"))
	require.Len(t, *detections2, 1)
	baseline := (*detections2)[0].Confidence

	assert.Greater(t, weighted, baseline)
	assert.LessOrEqual(t, weighted, 1.0)
}

func TestDetector_ForgetMemberDropsWeighting(t *testing.T) {
	d, _, _ := newTestDetector(t)
	now := time.Now()

	d.rememberMember(events.MemberJoinedEvent{GuildID: 1, UserID: 42, AccountAge: time.Hour, Timestamp: now})
	assert.Greater(t, d.contextWeight(1, 42), 1.0)

	d.forgetMember(1, 42)
	assert.Equal(t, 1.0, d.contextWeight(1, 42))
}

func TestDetector_RuleToggles(t *testing.T) {
	ctx := context.Background()
	d, _, detections := newTestDetector(t)

	require.True(t, d.SetRuleEnabled(KindInviteLink, false))
	d.HandleMessage(ctx, message("discord.gg/abc123"))
	assert.Empty(t, *detections)

	require.True(t, d.SetRuleEnabled(KindInviteLink, true))
	d.HandleMessage(ctx, message("discord.gg/abc123"))
	assert.Len(t, *detections, 1)

	assert.False(t, d.SetRuleEnabled(Kind("nonsense"), true))
}

func TestDetector_SetAction(t *testing.T) {
	ctx := context.Background()
	d, enforcer, _ := newTestDetector(t)

	require.True(t, d.SetAction(LevelMedium, ActionKick))
	d.HandleMessage(ctx, message("discord.gg/abc123"))

	assert.Empty(t, enforcer.warned)
	assert.Equal(t, []int64{42}, enforcer.kicked)

	assert.False(t, d.SetAction(Level("extreme"), ActionBan))
}

func TestDetector_SetRuleLevel(t *testing.T) {
	ctx := context.Background()
	d, enforcer, detections := newTestDetector(t)

	require.True(t, d.SetRuleLevel(KindInviteLink, LevelCritical))
	d.HandleMessage(ctx, message("discord.gg/abc123"))

	require.Len(t, *detections, 1)
	assert.Equal(t, string(LevelCritical), (*detections)[0].Level)
	// Critical maps to ban by default
	assert.Equal(t, []int64{42}, enforcer.banned)
}

func TestDetector_AttachRoutesBusEvents(t *testing.T) {
	ctx := context.Background()
	bus := events.NewBus()
	enforcer := &fakeEnforcer{}
	d := NewDetector(bus, enforcer)
	d.Attach(bus)

	var detections []events.DetectionEvent
	bus.Subscribe(events.EventTypeDetection, func(ctx context.Context, event events.Event) {
		if evt, ok := event.(events.DetectionEvent); ok {
			detections = append(detections, evt)
		}
	})

	bus.Emit(ctx, message("discord.gg/abc123"))
	require.Len(t, detections, 1)
	assert.NotEmpty(t, detections[0].ID)
}
