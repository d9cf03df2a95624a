package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"warden/audit"
	"warden/bot"
	"warden/bot/common"
	botEconomy "warden/bot/features/economy"
	botJail "warden/bot/features/jail"
	botLogging "warden/bot/features/logging"
	botUtility "warden/bot/features/utility"
	"warden/database"
	"warden/events"
	"warden/logging"
	"warden/models"
	"warden/ratelimit"
	"warden/repository"
	"warden/service"
	"warden/threat"
)

func runBot(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	flushLogs := logging.Setup(cfg)
	defer flushLogs()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewConnection(ctx, cfg)
	if err != nil {
		return exitf(exitDependency, "connect to database: %w", err)
	}
	defer db.Close()

	if err := database.MigrateUp(cfg.DatabaseURL); err != nil {
		return exitf(exitMigration, "migrate: %w", err)
	}

	bus := events.NewBus()
	uowFactory := repository.NewUnitOfWorkFactory(db)
	maintenance := repository.NewMaintenance(db)
	limiter := ratelimit.New(cfg.MaxCommandsPerMin, cfg.MaxCommandsPerHour)

	registry := bot.NewRegistry()
	b, err := bot.New(bot.Config{Token: cfg.BotToken, Prefix: cfg.CommandPrefix}, registry, limiter, bus, uowFactory)
	if err != nil {
		return exitf(exitDependency, "create bot: %w", err)
	}
	rest := b.Rest()

	guilds := service.NewGuildService(uowFactory)
	economy := service.NewEconomyService(uowFactory, bus)
	store := service.NewStoreService(uowFactory, bus)
	incomes := service.NewRoleIncomeService(uowFactory)
	jails := service.NewJailService(uowFactory, rest, bus)

	if err := botEconomy.Register(registry, economy, store, incomes); err != nil {
		return exitf(exitConfig, "register economy commands: %w", err)
	}
	if err := botJail.Register(registry, jails, rest); err != nil {
		return exitf(exitConfig, "register jail commands: %w", err)
	}
	if err := botLogging.Register(registry, guilds); err != nil {
		return exitf(exitConfig, "register logging commands: %w", err)
	}
	if err := botUtility.Register(registry, rest); err != nil {
		return exitf(exitConfig, "register utility commands: %w", err)
	}

	auditor := audit.NewLogger(uowFactory, rest)
	auditor.Attach(bus)

	if cfg.NATSServers != "" {
		forwarder, err := audit.NewForwarder(cfg.NATSServers)
		if err != nil {
			return exitf(exitDependency, "connect to NATS: %w", err)
		}
		defer forwarder.Close()
		forwarder.Attach(bus)
	}

	detector := threat.NewDetector(bus, &enforcer{rest: rest, jails: jails, selfID: b.SelfID})
	detector.Attach(bus)

	wireSync(bus, guilds, economy)

	scheduler := cron.New()
	if _, err := scheduler.AddFunc("17 4 * * *", func() {
		purgeExpired(maintenance, cfg.LogRetentionDays)
	}); err != nil {
		return exitf(exitConfig, "schedule retention purge: %w", err)
	}
	if _, err := scheduler.AddFunc("@hourly", func() {
		limiter.Evict()
		detector.Evict()
	}); err != nil {
		return exitf(exitConfig, "schedule window eviction: %w", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	if err := b.Open(); err != nil {
		return exitf(exitDependency, "open gateway: %w", err)
	}
	defer b.Close()

	log.Info("Warden is running, press Ctrl+C to stop")
	<-ctx.Done()
	log.Info("Shutting down")
	return nil
}

// wireSync keeps the guild, user and member tables current from gateway
// traffic and feeds chat activity into the economy.
func wireSync(bus *events.Bus, guilds service.GuildService, economy service.EconomyService) {
	bus.Subscribe(events.EventTypeGuildJoined, func(ctx context.Context, event events.Event) {
		evt, ok := event.(events.GuildJoinedEvent)
		if !ok {
			return
		}
		err := guilds.SyncGuild(ctx, &models.Guild{
			GuildID:     evt.GuildID,
			Name:        evt.Name,
			OwnerID:     evt.OwnerID,
			MemberCount: evt.MemberCount,
		})
		if err != nil {
			log.WithField("guild_id", evt.GuildID).WithError(err).Warn("Failed to sync guild")
		}
	})

	bus.Subscribe(events.EventTypeMemberJoined, func(ctx context.Context, event events.Event) {
		evt, ok := event.(events.MemberJoinedEvent)
		if !ok {
			return
		}
		if err := guilds.SyncUser(ctx, &models.User{
			UserID:   evt.UserID,
			Username: evt.Username,
			Bot:      evt.Bot,
		}); err != nil {
			log.WithField("user_id", evt.UserID).WithError(err).Warn("Failed to sync user")
			return
		}
		if err := guilds.SyncMember(ctx, &models.GuildMember{
			GuildID:  evt.GuildID,
			UserID:   evt.UserID,
			JoinedAt: evt.Timestamp,
		}); err != nil {
			log.WithField("user_id", evt.UserID).WithError(err).Warn("Failed to sync member")
		}
	})

	bus.Subscribe(events.EventTypeMessageCreated, func(ctx context.Context, event events.Event) {
		evt, ok := event.(events.MessageCreatedEvent)
		if !ok || evt.AuthorBot || evt.GuildID == 0 {
			return
		}
		if err := economy.ChatIncome(ctx, evt.GuildID, evt.AuthorID); err != nil {
			log.WithField("user_id", evt.AuthorID).WithError(err).Debug("Chat income skipped")
		}
	})
}

func purgeExpired(maintenance *repository.Maintenance, retentionDays int) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	entries, err := maintenance.PurgeLogEntries(ctx, cutoff)
	if err != nil {
		log.WithError(err).Error("Retention purge of log entries failed")
	}
	usage, err := maintenance.PurgeCommandUsage(ctx, cutoff)
	if err != nil {
		log.WithError(err).Error("Retention purge of command usage failed")
	}
	log.WithFields(log.Fields{
		"log_entries":   entries,
		"command_usage": usage,
	}).Info("Retention purge complete")
}

// enforcer applies detector verdicts through the REST surface and the jail
// workflow. Automated actions are attributed to the bot's own user id.
type enforcer struct {
	rest   *bot.Client
	jails  service.JailService
	selfID func() int64
}

func (e *enforcer) Warn(ctx context.Context, guildID, channelID, userID int64, reason string) error {
	content := "⚠️ " + common.Mention(userID) + " " + reason
	if channelID != 0 {
		return e.rest.SendMessage(ctx, channelID, content)
	}
	return e.rest.SendDM(ctx, userID, content)
}

func (e *enforcer) Kick(ctx context.Context, guildID, userID int64, reason string) error {
	return e.rest.KickMember(ctx, guildID, userID, reason)
}

func (e *enforcer) Ban(ctx context.Context, guildID, userID int64, reason string) error {
	return e.rest.BanMember(ctx, guildID, userID, reason)
}

func (e *enforcer) Jail(ctx context.Context, guildID, userID int64, reason string) error {
	_, err := e.jails.Jail(ctx, guildID, userID, e.selfID(), reason)
	return err
}
