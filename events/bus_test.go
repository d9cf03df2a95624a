package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_DeliversInRegistrationOrder(t *testing.T) {
	t.Parallel()

	bus := NewBus()
	var order []int
	for i := 0; i < 3; i++ {
		i := i
		bus.Subscribe(EventTypeMessageCreated, func(ctx context.Context, event Event) {
			order = append(order, i)
		})
	}

	bus.Emit(context.Background(), MessageCreatedEvent{GuildID: 1})
	assert.Equal(t, []int{0, 1, 2}, order)
}

func TestBus_OnlyMatchingTypeReceives(t *testing.T) {
	t.Parallel()

	bus := NewBus()
	var got []EventType
	bus.Subscribe(EventTypeMemberJoined, func(ctx context.Context, event Event) {
		got = append(got, event.Type())
	})

	bus.Emit(context.Background(), MessageCreatedEvent{GuildID: 1})
	bus.Emit(context.Background(), MemberJoinedEvent{GuildID: 1, UserID: 2})

	require.Len(t, got, 1)
	assert.Equal(t, EventTypeMemberJoined, got[0])
}

func TestBus_PanicDoesNotStopDelivery(t *testing.T) {
	t.Parallel()

	bus := NewBus()
	bus.Subscribe(EventTypeMessageCreated, func(ctx context.Context, event Event) {
		panic("boom")
	})
	delivered := false
	bus.Subscribe(EventTypeMessageCreated, func(ctx context.Context, event Event) {
		delivered = true
	})

	require.NotPanics(t, func() {
		bus.Emit(context.Background(), MessageCreatedEvent{GuildID: 1})
	})
	assert.True(t, delivered)
}

func TestBus_SubscribeAllSeesEveryType(t *testing.T) {
	t.Parallel()

	bus := NewBus()
	var mu sync.Mutex
	seen := map[EventType]int{}
	bus.SubscribeAll(func(ctx context.Context, event Event) {
		mu.Lock()
		seen[event.Type()]++
		mu.Unlock()
	})

	ctx := context.Background()
	bus.Emit(ctx, MessageCreatedEvent{GuildID: 1})
	bus.Emit(ctx, MemberLeftEvent{GuildID: 1, UserID: 2})
	bus.Emit(ctx, DetectionEvent{GuildID: 1, UserID: 2, Timestamp: time.Now()})

	assert.Equal(t, 1, seen[EventTypeMessageCreated])
	assert.Equal(t, 1, seen[EventTypeMemberLeft])
	assert.Equal(t, 1, seen[EventTypeDetection])
}

func TestBus_ConcurrentSubscribeAndEmit(t *testing.T) {
	t.Parallel()

	bus := NewBus()
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			bus.Subscribe(EventTypeMessageCreated, func(ctx context.Context, event Event) {})
		}()
		go func() {
			defer wg.Done()
			bus.Emit(ctx, MessageCreatedEvent{GuildID: 1})
		}()
	}
	wg.Wait()
}
