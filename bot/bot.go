package bot

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"

	"warden/apperr"
	"warden/bot/common"
	"warden/events"
	"warden/ratelimit"
	"warden/service"
)

// Config holds the bot's own settings
type Config struct {
	Token  string
	Prefix string
}

// Bot owns the gateway session and the command pipeline
type Bot struct {
	config     Config
	session    *discordgo.Session
	registry   *Registry
	dispatcher *Dispatcher
	rest       *Client
	bus        *events.Bus
}

// New creates the session and wires the gateway, dispatcher and slash
// surface together. The registry must be fully populated before Open,
// which publishes the slash command set.
func New(config Config, registry *Registry, limiter *ratelimit.Limiter, bus *events.Bus, uowFactory service.UnitOfWorkFactory) (*Bot, error) {
	session, err := discordgo.New("Bot " + config.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsAll
	session.State.MaxMessageCount = 500

	rest := NewClient(session)
	dispatcher := NewDispatcher(registry, limiter, bus, rest, rest, uowFactory, config.Prefix)

	bot := &Bot{
		config:     config,
		session:    session,
		registry:   registry,
		dispatcher: dispatcher,
		rest:       rest,
		bus:        bus,
	}

	registerGatewayHandlers(session, bus)
	session.AddHandler(bot.handleInteraction)

	// The prefix surface rides the same bus as every other consumer
	bus.Subscribe(events.EventTypeMessageCreated, func(ctx context.Context, event events.Event) {
		if evt, ok := event.(events.MessageCreatedEvent); ok {
			dispatcher.HandleMessage(ctx, evt)
		}
	})

	return bot, nil
}

// Rest exposes the REST client for feature handlers and services
func (b *Bot) Rest() *Client {
	return b.rest
}

// Session exposes the underlying gateway session
func (b *Bot) Session() *discordgo.Session {
	return b.session
}

// SelfID returns the bot's own user id, or zero before the gateway is open
func (b *Bot) SelfID() int64 {
	if b.session.State.User == nil {
		return 0
	}
	return parseID(b.session.State.User.ID)
}

// Open connects to the gateway and registers slash commands
func (b *Bot) Open() error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open gateway connection: %w", err)
	}

	for _, cmd := range b.registry.ApplicationCommands() {
		if _, err := b.session.ApplicationCommandCreate(b.session.State.User.ID, "", cmd); err != nil {
			b.session.Close()
			return fmt.Errorf("cannot create '%s' command: %w", cmd.Name, err)
		}
	}

	log.WithField("commands", len(b.registry.List())).Info("Bot connected")
	return nil
}

func (b *Bot) Close() error {
	return b.session.Close()
}

// handleInteraction adapts slash invocations onto the shared dispatch
// pipeline. Argument coercion reads the already-typed interaction options
// instead of parsing text.
func (b *Bot) handleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	data := i.ApplicationCommandData()
	cmd, ok := b.registry.Resolve(data.Name)
	if !ok {
		common.RespondWithError(s, i, "Unknown command.")
		return
	}

	if i.Member == nil || i.Member.User == nil {
		common.RespondWithError(s, i, "This command only works in a server.")
		return
	}

	inv := &Invocation{
		GuildID:   parseID(i.GuildID),
		ChannelID: parseID(i.ChannelID),
		UserID:    parseID(i.Member.User.ID),
		Command:   cmd,
	}

	ctx := context.Background()
	b.dispatcher.Dispatch(ctx, inv, func(ctx context.Context, reply *Reply) error {
		if reply.Embed != nil {
			return common.RespondWithEmbed(s, i, reply.Embed, reply.Ephemeral)
		}
		return common.RespondWithContent(s, i, reply.Content, reply.Ephemeral)
	}, func(ctx context.Context) (Args, error) {
		return coerceInteractionArgs(cmd, data.Options)
	})
}

// coerceInteractionArgs binds slash options to the schema. Discord already
// validated types; only range checks remain.
func coerceInteractionArgs(cmd *CommandDescriptor, opts []*discordgo.ApplicationCommandInteractionDataOption) (Args, error) {
	supplied := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(opts))
	for _, o := range opts {
		supplied[o.Name] = o
	}

	args := make(Args, len(cmd.Options))
	for _, opt := range cmd.Options {
		raw, ok := supplied[opt.Name]
		if !ok {
			continue
		}
		switch opt.Type {
		case OptionInt:
			value, err := coerceToken(opt, fmt.Sprintf("%d", raw.IntValue()))
			if err != nil {
				return nil, err
			}
			args[opt.Name] = value
		case OptionUser, OptionChannel, OptionRole:
			id, ok := raw.Value.(string)
			if !ok {
				return nil, apperr.New(apperr.KindBadArgument, "`%s` carries an unexpected value", opt.Name)
			}
			args[opt.Name] = parseID(id)
		default:
			args[opt.Name] = raw.StringValue()
		}
	}

	for _, opt := range cmd.Options {
		if opt.Required && !args.Has(opt.Name) {
			return nil, fmt.Errorf("interaction missing required option %q", opt.Name)
		}
	}
	return args, nil
}
