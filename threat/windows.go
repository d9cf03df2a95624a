package threat

import (
	"fmt"
	"sync"
	"time"
)

// counterKind names one sliding-window activity counter
type counterKind string

const (
	counterMessages counterKind = "message"
	counterMentions counterKind = "mention"
	counterInvites  counterKind = "invite"
	counterCommands counterKind = "command"
)

// windowSet tracks per-(guild, user, kind) activity inside sliding windows
type windowSet struct {
	mu      sync.Mutex
	entries map[string][]time.Time
}

func newWindowSet() *windowSet {
	return &windowSet{entries: make(map[string][]time.Time)}
}

// add records n occurrences now and returns the count inside the window
func (w *windowSet) add(guildID, userID int64, kind counterKind, n int, window time.Duration, now time.Time) int {
	key := fmt.Sprintf("%d:%d:%s", guildID, userID, kind)
	cutoff := now.Add(-window)

	w.mu.Lock()
	defer w.mu.Unlock()

	times := w.entries[key]
	i := 0
	for i < len(times) && times[i].Before(cutoff) {
		i++
	}
	times = times[i:]
	for range n {
		times = append(times, now)
	}
	w.entries[key] = times
	return len(times)
}

// evict drops entries with no activity after the cutoff
func (w *windowSet) evict(cutoff time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	evicted := 0
	for key, times := range w.entries {
		if len(times) == 0 || times[len(times)-1].Before(cutoff) {
			delete(w.entries, key)
			evicted++
		}
	}
	return evicted
}
