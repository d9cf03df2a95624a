package bot

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"warden/apperr"
	"warden/events"
	"warden/models"
	"warden/ratelimit"
	"warden/service"
)

type fakeDirectory struct {
	members  map[int64]*MemberInfo
	authorID int64
}

func (f *fakeDirectory) MemberInfo(ctx context.Context, guildID, userID int64) (*MemberInfo, error) {
	m, ok := f.members[userID]
	if !ok {
		return nil, apperr.New(apperr.KindNotFound, "member %d not found", userID)
	}
	return m, nil
}

func (f *fakeDirectory) MessageAuthor(ctx context.Context, channelID, messageID int64) (int64, error) {
	return f.authorID, nil
}

type fakeResponder struct {
	mu      sync.Mutex
	replies []*Reply
}

func (f *fakeResponder) SendReply(ctx context.Context, channelID int64, reply *Reply) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, reply)
	return nil
}

type dispatcherFixture struct {
	dispatcher *Dispatcher
	directory  *fakeDirectory
	responder  *fakeResponder
	mocks      *service.TestMocks
	bus        *events.Bus
	replies    []*Reply
}

func newDispatcherFixture(t *testing.T, perMinute, perHour int) *dispatcherFixture {
	t.Helper()
	f := &dispatcherFixture{
		directory: &fakeDirectory{members: map[int64]*MemberInfo{
			10: {UserID: 10, Username: "invoker", Permissions: discordgo.PermissionAdministrator, TopRolePosition: 5},
		}},
		responder: &fakeResponder{},
		mocks:     service.NewTestMocks(),
		bus:       events.NewBus(),
	}
	f.dispatcher = NewDispatcher(NewRegistry(), ratelimit.New(perMinute, perHour), f.bus,
		f.directory, f.responder, f.mocks.Factory(), "!")
	return f
}

func (f *dispatcherFixture) dispatch(inv *Invocation, args Args) {
	f.dispatcher.Dispatch(context.Background(), inv, func(ctx context.Context, reply *Reply) error {
		f.replies = append(f.replies, reply)
		return nil
	}, func(ctx context.Context) (Args, error) {
		if args == nil {
			return Args{}, nil
		}
		return args, nil
	})
}

func invocation(cmd *CommandDescriptor) *Invocation {
	return &Invocation{GuildID: 1, ChannelID: 2, MessageID: 3, UserID: 10, Command: cmd}
}

func TestDispatcher_UsageRowOnlyWhenHandlerRuns(t *testing.T) {
	f := newDispatcherFixture(t, 1, 10)
	f.mocks.CommandUsage.On("Record", mock.Anything, mock.MatchedBy(func(u *models.CommandUsage) bool {
		return u.Success && u.Command == "ping" && u.GuildID != nil && *u.GuildID == 1
	})).Return(nil)

	var violations int
	f.bus.Subscribe(events.EventTypeRateLimitViolation, func(ctx context.Context, event events.Event) {
		violations++
	})

	ran := 0
	cmd := &CommandDescriptor{Name: "ping", Handler: func(ctx context.Context, inv *Invocation) (*Reply, error) {
		ran++
		return &Reply{Content: "pong"}, nil
	}}

	f.dispatch(invocation(cmd), nil)
	f.dispatch(invocation(cmd), nil)

	// The second fire hits the per-minute cap before the handler
	assert.Equal(t, 1, ran)
	assert.Equal(t, 1, violations)
	f.mocks.CommandUsage.AssertNumberOfCalls(t, "Record", 1)

	require.Len(t, f.replies, 2)
	assert.Equal(t, "pong", f.replies[0].Content)
	assert.Contains(t, f.replies[1].Content, "Slow down")
}

func TestDispatcher_RejectionsLeaveNoUsageRow(t *testing.T) {
	ran := false
	cmd := &CommandDescriptor{
		Name:        "purge",
		Permissions: discordgo.PermissionManageMessages,
		Handler: func(ctx context.Context, inv *Invocation) (*Reply, error) {
			ran = true
			return nil, nil
		},
	}

	f := newDispatcherFixture(t, 10, 10)
	f.directory.members[10] = &MemberInfo{UserID: 10, Username: "pleb"}

	f.dispatch(invocation(cmd), nil)

	assert.False(t, ran)
	f.mocks.CommandUsage.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
	require.Len(t, f.replies, 1)
	assert.Contains(t, f.replies[0].Content, "permission")
}

func TestDispatcher_RecordsHandlerFailure(t *testing.T) {
	f := newDispatcherFixture(t, 10, 10)
	f.mocks.CommandUsage.On("Record", mock.Anything, mock.MatchedBy(func(u *models.CommandUsage) bool {
		return !u.Success && u.ErrorMessage != nil
	})).Return(nil)

	cmd := &CommandDescriptor{Name: "work", Handler: func(ctx context.Context, inv *Invocation) (*Reply, error) {
		return nil, apperr.New(apperr.KindConflict, "balance changed, try again")
	}}

	f.dispatch(invocation(cmd), nil)

	f.mocks.CommandUsage.AssertNumberOfCalls(t, "Record", 1)
	require.Len(t, f.replies, 1)
	assert.Contains(t, f.replies[0].Content, "❌")
}

func TestDispatcher_PanicBecomesInternal(t *testing.T) {
	f := newDispatcherFixture(t, 10, 10)
	f.mocks.CommandUsage.On("Record", mock.Anything, mock.MatchedBy(func(u *models.CommandUsage) bool {
		return !u.Success
	})).Return(nil)

	cmd := &CommandDescriptor{Name: "boom", Handler: func(ctx context.Context, inv *Invocation) (*Reply, error) {
		panic("nil map write")
	}}

	require.NotPanics(t, func() {
		f.dispatch(invocation(cmd), nil)
	})

	f.mocks.CommandUsage.AssertNumberOfCalls(t, "Record", 1)
	require.Len(t, f.replies, 1)
	assert.Contains(t, f.replies[0].Content, "❌")
}

func TestDispatcher_Hierarchy(t *testing.T) {
	cmd := &CommandDescriptor{
		Name:         "jail",
		Hierarchical: true,
		Options:      []Option{{Name: "user", Type: OptionUser, Required: true}},
		Handler: func(ctx context.Context, inv *Invocation) (*Reply, error) {
			return &Reply{Content: "done"}, nil
		},
	}

	tests := []struct {
		name     string
		invoker  *MemberInfo
		target   *MemberInfo
		targetID int64
		wantKind apperr.Kind
	}{
		{
			name:     "self target rejected",
			invoker:  &MemberInfo{UserID: 10, TopRolePosition: 5},
			targetID: 10,
			wantKind: apperr.KindBadArgument,
		},
		{
			name:     "bot target rejected",
			invoker:  &MemberInfo{UserID: 10, TopRolePosition: 5},
			target:   &MemberInfo{UserID: 20, Bot: true},
			targetID: 20,
			wantKind: apperr.KindBadArgument,
		},
		{
			name:     "owner target rejected",
			invoker:  &MemberInfo{UserID: 10, TopRolePosition: 5},
			target:   &MemberInfo{UserID: 20, Owner: true},
			targetID: 20,
			wantKind: apperr.KindForbidden,
		},
		{
			name:     "equal top role rejected",
			invoker:  &MemberInfo{UserID: 10, TopRolePosition: 5},
			target:   &MemberInfo{UserID: 20, TopRolePosition: 5},
			targetID: 20,
			wantKind: apperr.KindForbidden,
		},
		{
			name:     "unknown target is not found",
			invoker:  &MemberInfo{UserID: 10, TopRolePosition: 5},
			targetID: 21,
			wantKind: apperr.KindNotFound,
		},
		{
			name:     "higher role allowed",
			invoker:  &MemberInfo{UserID: 10, TopRolePosition: 5},
			target:   &MemberInfo{UserID: 20, TopRolePosition: 2},
			targetID: 20,
		},
		{
			name:     "guild owner bypasses role comparison",
			invoker:  &MemberInfo{UserID: 10, Owner: true, TopRolePosition: 0},
			target:   &MemberInfo{UserID: 20, TopRolePosition: 9},
			targetID: 20,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newDispatcherFixture(t, 10, 10)
			f.directory.members[10] = tc.invoker
			if tc.target != nil {
				f.directory.members[tc.target.UserID] = tc.target
			}
			if tc.wantKind == "" {
				f.mocks.CommandUsage.On("Record", mock.Anything, mock.Anything).Return(nil)
			}

			f.dispatch(invocation(cmd), Args{"user": tc.targetID})

			require.Len(t, f.replies, 1)
			if tc.wantKind == "" {
				assert.Equal(t, "done", f.replies[0].Content)
			} else {
				assert.Contains(t, f.replies[0].Content, "❌")
				f.mocks.CommandUsage.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
			}
		})
	}
}

func TestDispatcher_SingleFlight(t *testing.T) {
	f := newDispatcherFixture(t, 10, 10)
	f.mocks.CommandUsage.On("Record", mock.Anything, mock.Anything).Return(nil)

	block := make(chan struct{})
	started := make(chan struct{})
	cmd := &CommandDescriptor{Name: "slow", Handler: func(ctx context.Context, inv *Invocation) (*Reply, error) {
		close(started)
		<-block
		return &Reply{Content: "finished"}, nil
	}}

	var wg sync.WaitGroup
	wg.Add(1)
	var first *Reply
	go func() {
		defer wg.Done()
		f.dispatcher.Dispatch(context.Background(), invocation(cmd), func(ctx context.Context, reply *Reply) error {
			first = reply
			return nil
		}, func(ctx context.Context) (Args, error) { return Args{}, nil })
	}()

	<-started
	f.dispatch(invocation(cmd), nil)

	require.Len(t, f.replies, 1)
	assert.Contains(t, f.replies[0].Content, "still running")

	close(block)
	wg.Wait()
	require.NotNil(t, first)
	assert.Equal(t, "finished", first.Content)
	// Only the invocation that reached the handler leaves a row
	f.mocks.CommandUsage.AssertNumberOfCalls(t, "Record", 1)
}

func TestDispatcher_HandleMessage(t *testing.T) {
	f := newDispatcherFixture(t, 10, 10)
	f.mocks.CommandUsage.On("Record", mock.Anything, mock.Anything).Return(nil)

	require.NoError(t, f.dispatcher.registry.Register(&CommandDescriptor{
		Name: "ping",
		Handler: func(ctx context.Context, inv *Invocation) (*Reply, error) {
			return &Reply{Content: "pong"}, nil
		},
	}))

	msg := events.MessageCreatedEvent{GuildID: 1, ChannelID: 2, MessageID: 3, AuthorID: 10, Timestamp: time.Now()}

	t.Run("prefix command dispatches", func(t *testing.T) {
		msg.Content = "!ping"
		f.dispatcher.HandleMessage(context.Background(), msg)
		require.Len(t, f.responder.replies, 1)
		assert.Equal(t, "pong", f.responder.replies[0].Content)
	})

	t.Run("unknown command ignored", func(t *testing.T) {
		msg.Content = "!unknown"
		f.dispatcher.HandleMessage(context.Background(), msg)
		assert.Len(t, f.responder.replies, 1)
	})

	t.Run("bot author ignored", func(t *testing.T) {
		msg.Content = "!ping"
		msg.AuthorBot = true
		f.dispatcher.HandleMessage(context.Background(), msg)
		assert.Len(t, f.responder.replies, 1)
	})
}

func TestCoerceInteractionArgs(t *testing.T) {
	cmd := &CommandDescriptor{
		Name: "jail",
		Options: []Option{
			{Name: "user", Type: OptionUser, Required: true},
			{Name: "reason", Type: OptionTail},
		},
	}

	t.Run("user id round trips", func(t *testing.T) {
		args, err := coerceInteractionArgs(cmd, []*discordgo.ApplicationCommandInteractionDataOption{
			{Name: "user", Type: discordgo.ApplicationCommandOptionUser, Value: "12345"},
		})
		require.NoError(t, err)
		assert.Equal(t, int64(12345), args.Snowflake("user"))
	})

	t.Run("malformed user value is a bad argument", func(t *testing.T) {
		_, err := coerceInteractionArgs(cmd, []*discordgo.ApplicationCommandInteractionDataOption{
			{Name: "user", Type: discordgo.ApplicationCommandOptionUser, Value: 12345.0},
		})
		require.Error(t, err)
		assert.Equal(t, apperr.KindBadArgument, apperr.KindOf(err))
	})

	t.Run("missing required option fails", func(t *testing.T) {
		_, err := coerceInteractionArgs(cmd, nil)
		assert.Error(t, err)
	})
}
