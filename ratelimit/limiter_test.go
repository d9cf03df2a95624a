package ratelimit

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(perMinute, perHour int) (*Limiter, *time.Time) {
	l := New(perMinute, perHour)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	return l, &now
}

func TestLimiter_PerCommandCooldown(t *testing.T) {
	t.Parallel()
	l, now := newTestLimiter(100, 1000)

	first := l.Allow(1, 2, "collect", time.Minute)
	require.True(t, first.Allowed)

	second := l.Allow(1, 2, "collect", time.Minute)
	assert.False(t, second.Allowed)
	assert.Equal(t, time.Minute, second.RetryAfter)

	*now = now.Add(30 * time.Second)
	third := l.Allow(1, 2, "collect", time.Minute)
	assert.False(t, third.Allowed)
	assert.Equal(t, 30*time.Second, third.RetryAfter)

	*now = now.Add(31 * time.Second)
	fourth := l.Allow(1, 2, "collect", time.Minute)
	assert.True(t, fourth.Allowed)
}

func TestLimiter_MinuteCap(t *testing.T) {
	t.Parallel()
	l, now := newTestLimiter(3, 1000)

	for i := 0; i < 3; i++ {
		require.True(t, l.Allow(1, 2, "ping", 0).Allowed)
	}
	blocked := l.Allow(1, 2, "ping", 0)
	assert.False(t, blocked.Allowed)
	assert.Greater(t, blocked.RetryAfter, time.Duration(0))

	// The window slides: a minute later the first three fall out
	*now = now.Add(61 * time.Second)
	assert.True(t, l.Allow(1, 2, "ping", 0).Allowed)
}

func TestLimiter_HourCap(t *testing.T) {
	t.Parallel()
	l, now := newTestLimiter(10, 20)

	allowed := 0
	for i := 0; i < 30; i++ {
		if l.Allow(1, 2, "ping", 0).Allowed {
			allowed++
		}
		// Space invocations to stay under the minute cap
		*now = now.Add(7 * time.Second)
	}
	assert.Equal(t, 20, allowed)
}

func TestLimiter_UsersAreIndependent(t *testing.T) {
	t.Parallel()
	l, _ := newTestLimiter(1, 100)

	require.True(t, l.Allow(1, 2, "ping", 0).Allowed)
	require.False(t, l.Allow(1, 2, "ping", 0).Allowed)

	// Another user and another guild still have budget
	assert.True(t, l.Allow(1, 3, "ping", 0).Allowed)
	assert.True(t, l.Allow(9, 2, "ping", 0).Allowed)
}

func TestLimiter_DeniedAttemptsDoNotConsumeBudget(t *testing.T) {
	t.Parallel()
	l, now := newTestLimiter(2, 3)

	require.True(t, l.Allow(1, 2, "ping", 0).Allowed)
	require.True(t, l.Allow(1, 2, "ping", 0).Allowed)
	// Hammering while blocked by the minute cap must not burn hour budget
	for i := 0; i < 5; i++ {
		assert.False(t, l.Allow(1, 2, "ping", 0).Allowed)
	}

	*now = now.Add(61 * time.Second)
	assert.True(t, l.Allow(1, 2, "ping", 0).Allowed)

	// Hour budget of three is now spent
	*now = now.Add(61 * time.Second)
	assert.False(t, l.Allow(1, 2, "ping", 0).Allowed)
}

func TestLimiter_Evict(t *testing.T) {
	t.Parallel()
	l, now := newTestLimiter(100, 1000)

	for user := int64(0); user < 10; user++ {
		l.Allow(1, user, "ping", 0)
	}
	assert.Zero(t, l.Evict())

	*now = now.Add(2 * time.Hour)
	assert.Equal(t, 10, l.Evict())
}

func TestLimiter_ConcurrentAccess(t *testing.T) {
	t.Parallel()
	l := New(1000, 10000)

	done := make(chan struct{})
	for g := 0; g < 8; g++ {
		g := g
		go func() {
			defer func() { done <- struct{}{} }()
			for i := 0; i < 100; i++ {
				l.Allow(int64(g), int64(i%5), fmt.Sprintf("cmd%d", i%3), 0)
			}
		}()
	}
	for g := 0; g < 8; g++ {
		<-done
	}
}
