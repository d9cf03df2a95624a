package ratelimit

import (
	"fmt"
	"sync"
	"time"
)

const shardCount = 64

// Limiter enforces sliding-window command limits per (guild, user, command)
// plus global per-user minute and hour caps. Counters are in-memory and do
// not survive a restart.
type Limiter struct {
	perMinute int
	perHour   int

	shards [shardCount]*shard
	now    func() time.Time
}

type shard struct {
	mu      sync.Mutex
	windows map[string]*window
}

type window struct {
	// Invocation timestamps inside the last hour, oldest first
	times []time.Time
}

// Decision reports the outcome of an Allow check
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// New creates a limiter with per-user caps per minute and hour
func New(perMinute, perHour int) *Limiter {
	l := &Limiter{
		perMinute: perMinute,
		perHour:   perHour,
		now:       time.Now,
	}
	for i := range l.shards {
		l.shards[i] = &shard{windows: make(map[string]*window)}
	}
	return l
}

// Allow records an invocation attempt and reports whether it may proceed.
// The per-command cooldown is supplied by the descriptor; zero disables it.
func (l *Limiter) Allow(guildID, userID int64, command string, cooldown time.Duration) Decision {
	now := l.now()

	// Per-command cooldown window
	if cooldown > 0 {
		cmdShard := l.shard(guildID, userID, command)
		cmdShard.mu.Lock()
		w := cmdShard.get(key(guildID, userID, command))
		w.trim(now.Add(-time.Hour))
		if n := len(w.times); n > 0 {
			if remaining := cooldown - now.Sub(w.times[n-1]); remaining > 0 {
				cmdShard.mu.Unlock()
				return Decision{RetryAfter: remaining}
			}
		}
		cmdShard.mu.Unlock()
	}

	// Global per-user windows
	userShard := l.shard(guildID, userID, "")
	userShard.mu.Lock()
	w := userShard.get(key(guildID, userID, ""))
	w.trim(now.Add(-time.Hour))

	minuteAgo := now.Add(-time.Minute)
	inMinute := 0
	for i := len(w.times) - 1; i >= 0 && w.times[i].After(minuteAgo); i-- {
		inMinute++
	}
	if l.perMinute > 0 && inMinute >= l.perMinute {
		oldest := w.times[len(w.times)-inMinute]
		userShard.mu.Unlock()
		return Decision{RetryAfter: time.Minute - now.Sub(oldest)}
	}
	if l.perHour > 0 && len(w.times) >= l.perHour {
		oldest := w.times[0]
		userShard.mu.Unlock()
		return Decision{RetryAfter: time.Hour - now.Sub(oldest)}
	}

	w.times = append(w.times, now)
	userShard.mu.Unlock()

	// Record the per-command invocation only once admitted
	if cooldown > 0 {
		cmdShard := l.shard(guildID, userID, command)
		cmdShard.mu.Lock()
		cmdShard.get(key(guildID, userID, command)).times = append(cmdShard.get(key(guildID, userID, command)).times, now)
		cmdShard.mu.Unlock()
	}

	return Decision{Allowed: true}
}

// Evict drops windows with no activity inside the last hour. Meant to run
// periodically from a scheduler.
func (l *Limiter) Evict() int {
	cutoff := l.now().Add(-time.Hour)
	evicted := 0
	for _, s := range l.shards {
		s.mu.Lock()
		for k, w := range s.windows {
			w.trim(cutoff)
			if len(w.times) == 0 {
				delete(s.windows, k)
				evicted++
			}
		}
		s.mu.Unlock()
	}
	return evicted
}

func (l *Limiter) shard(guildID, userID int64, command string) *shard {
	h := uint64(guildID)*31 + uint64(userID)
	for _, c := range command {
		h = h*31 + uint64(c)
	}
	return l.shards[h%shardCount]
}

func (s *shard) get(k string) *window {
	w, ok := s.windows[k]
	if !ok {
		w = &window{}
		s.windows[k] = w
	}
	return w
}

func (w *window) trim(cutoff time.Time) {
	i := 0
	for i < len(w.times) && !w.times[i].After(cutoff) {
		i++
	}
	if i > 0 {
		w.times = append(w.times[:0], w.times[i:]...)
	}
}

func key(guildID, userID int64, command string) string {
	return fmt.Sprintf("%d:%d:%s", guildID, userID, command)
}
