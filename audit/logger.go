package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"

	"warden/events"
	"warden/models"
	"warden/service"
)

// Sender delivers an embed to a guild channel. The bot's REST client is the
// production implementation.
type Sender interface {
	SendEmbed(ctx context.Context, channelID int64, embed *discordgo.MessageEmbed) error
}

// Logger turns bus envelopes into audit channel embeds and durable log
// entries, gated per guild by the stored LogConfig.
type Logger struct {
	uowFactory service.UnitOfWorkFactory
	sender     Sender

	mu       sync.Mutex
	failures map[string]struct{} // (guild, category) pairs already reported

	now func() time.Time
}

func NewLogger(uowFactory service.UnitOfWorkFactory, sender Sender) *Logger {
	return &Logger{
		uowFactory: uowFactory,
		sender:     sender,
		failures:   make(map[string]struct{}),
		now:        time.Now,
	}
}

// Attach subscribes the logger to every envelope type on the bus
func (l *Logger) Attach(bus *events.Bus) {
	bus.SubscribeAll(l.handle)
}

func (l *Logger) handle(ctx context.Context, event events.Event) {
	guildID := event.Guild()
	if guildID == 0 {
		return
	}

	entry := render(event)
	if entry == nil {
		return
	}

	config, err := l.loadConfig(ctx, guildID)
	if err != nil {
		log.WithField("guild_id", guildID).WithError(err).Warn("Failed to load log config")
		return
	}
	if config == nil || !config.CategoryEnabled(entry.category) {
		return
	}

	if err := l.sender.SendEmbed(ctx, config.ChannelID, entry.embed); err != nil {
		l.reportDeliveryFailure(guildID, entry.category, err)
		return
	}

	l.record(ctx, guildID, entry)
}

// reportDeliveryFailure logs a delivery problem once per (guild, category)
// until delivery succeeds again, keeping a misconfigured channel from
// flooding the logs
func (l *Logger) reportDeliveryFailure(guildID int64, category models.LogCategory, err error) {
	key := fmt.Sprintf("%d:%s", guildID, category)

	l.mu.Lock()
	_, seen := l.failures[key]
	if !seen {
		l.failures[key] = struct{}{}
	}
	l.mu.Unlock()

	if !seen {
		log.WithFields(log.Fields{
			"guild_id": guildID,
			"category": string(category),
		}).WithError(err).Warn("Audit delivery failing; suppressing repeats")
	}
}

func (l *Logger) clearDeliveryFailure(guildID int64, category models.LogCategory) {
	key := fmt.Sprintf("%d:%s", guildID, category)
	l.mu.Lock()
	delete(l.failures, key)
	l.mu.Unlock()
}

func (l *Logger) loadConfig(ctx context.Context, guildID int64) (*models.LogConfig, error) {
	uow := l.uowFactory.Create(guildID)
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	config, err := uow.LogConfigRepository().GetLogConfig(ctx)
	if err != nil {
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, err
	}
	return config, nil
}

func (l *Logger) record(ctx context.Context, guildID int64, entry *renderedEntry) {
	l.clearDeliveryFailure(guildID, entry.category)

	row := &models.LogEntry{
		GuildID:     guildID,
		EventType:   string(entry.eventType),
		Severity:    entry.severity,
		Title:       entry.embed.Title,
		Description: entry.embed.Description,
		Metadata:    entry.metadata,
	}
	if entry.userID != 0 {
		uid := entry.userID
		row.UserID = &uid
	}
	if entry.channelID != 0 {
		cid := entry.channelID
		row.ChannelID = &cid
	}

	uow := l.uowFactory.Create(guildID)
	if err := uow.Begin(ctx); err != nil {
		log.WithField("guild_id", guildID).WithError(err).Warn("Failed to open log entry transaction")
		return
	}
	defer uow.Rollback()

	if err := uow.LogEntryRepository().Record(ctx, row); err != nil {
		log.WithField("guild_id", guildID).WithError(err).Warn("Failed to record log entry")
		return
	}
	if err := uow.Commit(); err != nil {
		log.WithField("guild_id", guildID).WithError(err).Warn("Failed to commit log entry")
	}
}
