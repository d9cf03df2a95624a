package logging

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	batchSize     = 50
	flushInterval = 5 * time.Second
	queueDepth    = 1024
	sendTimeout   = 10 * time.Second
)

// ExternalHook ships log entries to an external HTTP collector in batches.
// Entries are queued without blocking the caller; when the queue is full the
// entry is dropped rather than stalling the bot.
type ExternalHook struct {
	url    string
	apiKey string
	client *http.Client

	queue chan map[string]any
	done  chan struct{}
	wg    sync.WaitGroup
}

// NewExternalHook creates and starts the batching sender.
func NewExternalHook(url, apiKey string) *ExternalHook {
	h := &ExternalHook{
		url:    url,
		apiKey: apiKey,
		client: &http.Client{Timeout: sendTimeout},
		queue:  make(chan map[string]any, queueDepth),
		done:   make(chan struct{}),
	}
	h.wg.Add(1)
	go h.run()
	return h
}

// Levels implements logrus.Hook. Debug entries stay local.
func (h *ExternalHook) Levels() []log.Level {
	return []log.Level{log.PanicLevel, log.FatalLevel, log.ErrorLevel, log.WarnLevel, log.InfoLevel}
}

// Fire implements logrus.Hook.
func (h *ExternalHook) Fire(entry *log.Entry) error {
	record := map[string]any{
		"time":    entry.Time.UTC().Format(time.RFC3339Nano),
		"level":   entry.Level.String(),
		"message": entry.Message,
	}
	for k, v := range entry.Data {
		record[k] = v
	}

	select {
	case h.queue <- record:
	default:
		// Queue full; the local sinks still have the entry.
	}
	return nil
}

// Close flushes pending entries and stops the sender.
func (h *ExternalHook) Close() {
	close(h.done)
	h.wg.Wait()
}

func (h *ExternalHook) run() {
	defer h.wg.Done()

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]map[string]any, 0, batchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		h.send(batch)
		batch = batch[:0]
	}

	for {
		select {
		case record := <-h.queue:
			batch = append(batch, record)
			if len(batch) >= batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-h.done:
			for {
				select {
				case record := <-h.queue:
					batch = append(batch, record)
				default:
					flush()
					return
				}
			}
		}
	}
}

func (h *ExternalHook) send(batch []map[string]any) {
	body, err := json.Marshal(batch)
	if err != nil {
		return
	}

	req, err := http.NewRequest(http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if h.apiKey != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", h.apiKey))
	}

	resp, err := h.client.Do(req)
	if err != nil {
		// Never log through logrus here; that would loop back into the hook.
		return
	}
	resp.Body.Close()
}
