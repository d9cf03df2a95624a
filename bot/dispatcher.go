package bot

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"warden/apperr"
	"warden/bot/common"
	"warden/events"
	"warden/models"
	"warden/ratelimit"
	"warden/service"
)

const handlerTimeout = 30 * time.Second

// Invocation carries everything a handler needs about one command call
type Invocation struct {
	GuildID   int64
	ChannelID int64
	MessageID int64
	UserID    int64
	Username  string
	RoleIDs   []int64
	Args      Args
	Command   *CommandDescriptor
}

// Directory resolves member authorization context. The REST client is the
// production implementation; tests supply fakes.
type Directory interface {
	MemberInfo(ctx context.Context, guildID, userID int64) (*MemberInfo, error)
	MessageAuthor(ctx context.Context, channelID, messageID int64) (int64, error)
}

// Responder delivers a reply envelope back to the invoker's channel
type Responder interface {
	SendReply(ctx context.Context, channelID int64, reply *Reply) error
}

// Dispatcher runs the command pipeline: parse, resolve, authorize, rate
// limit, coerce, invoke under supervision, record usage, reply.
type Dispatcher struct {
	registry   *Registry
	limiter    *ratelimit.Limiter
	bus        *events.Bus
	directory  Directory
	responder  Responder
	uowFactory service.UnitOfWorkFactory
	prefix     string

	mu       sync.Mutex
	inflight map[string]chan struct{}

	now func() time.Time
}

func NewDispatcher(registry *Registry, limiter *ratelimit.Limiter, bus *events.Bus, directory Directory, responder Responder, uowFactory service.UnitOfWorkFactory, prefix string) *Dispatcher {
	return &Dispatcher{
		registry:   registry,
		limiter:    limiter,
		bus:        bus,
		directory:  directory,
		responder:  responder,
		uowFactory: uowFactory,
		prefix:     prefix,
		inflight:   make(map[string]chan struct{}),
		now:        time.Now,
	}
}

// HandleMessage dispatches a prefix command from a created message. Messages
// without the prefix, from bots, or naming no known command are ignored.
func (d *Dispatcher) HandleMessage(ctx context.Context, evt events.MessageCreatedEvent) {
	if evt.AuthorBot || evt.GuildID == 0 {
		return
	}

	name, tokens, rawTail, ok := parseCommand(evt.Content, d.prefix)
	if !ok {
		return
	}

	cmd, ok := d.registry.Resolve(name)
	if !ok {
		log.WithFields(log.Fields{
			"guild_id": evt.GuildID,
			"user_id":  evt.AuthorID,
			"command":  name,
		}).Debug("Unknown command ignored")
		return
	}

	inv := &Invocation{
		GuildID:   evt.GuildID,
		ChannelID: evt.ChannelID,
		MessageID: evt.MessageID,
		UserID:    evt.AuthorID,
		Command:   cmd,
	}

	d.Dispatch(ctx, inv, func(ctx context.Context, reply *Reply) error {
		return d.responder.SendReply(ctx, inv.ChannelID, reply)
	}, func(ctx context.Context) (Args, error) {
		replyTarget := int64(0)
		if evt.ReferenceID != 0 && needsUserOption(cmd, tokens) {
			author, err := d.directory.MessageAuthor(ctx, evt.ChannelID, evt.ReferenceID)
			if err != nil {
				log.WithFields(log.Fields{
					"guild_id":   evt.GuildID,
					"message_id": evt.ReferenceID,
				}).WithError(err).Debug("Could not resolve reply target")
			} else {
				replyTarget = author
			}
		}
		return coerceArgs(cmd, tokens, rawTail, replyTarget)
	})
}

// needsUserOption reports whether the schema has a required user option the
// supplied tokens cannot fill
func needsUserOption(cmd *CommandDescriptor, tokens []string) bool {
	for i, opt := range cmd.Options {
		if opt.Type == OptionUser && opt.Required {
			if i >= len(tokens) {
				return true
			}
			_, ok := parseSnowflake(tokens[i], "<@", "<@!")
			return !ok
		}
	}
	return false
}

// Dispatch runs the authorize/limit/coerce/invoke pipeline for a resolved
// command. coerce produces the argument map for the surface in use; respond
// delivers the reply envelope.
func (d *Dispatcher) Dispatch(ctx context.Context, inv *Invocation, respond func(context.Context, *Reply) error, coerce func(context.Context) (Args, error)) {
	start := d.now()
	cmd := inv.Command

	reply, err := d.run(ctx, inv, coerce)

	duration := d.now().Sub(start)

	logger := log.WithFields(log.Fields{
		"guild_id":    inv.GuildID,
		"user_id":     inv.UserID,
		"command":     cmd.Name,
		"duration_ms": duration.Milliseconds(),
	})

	if err != nil {
		kind := apperr.KindOf(err)
		if kind == apperr.KindInternal {
			logger.WithError(err).Error("Command failed")
		} else {
			logger.WithField("kind", string(kind)).Debug("Command rejected")
		}
		reply = &Reply{Content: "❌ " + userMessageFor(err), Ephemeral: true}
	} else {
		logger.Debug("Command completed")
	}

	if reply == nil {
		return
	}
	if rerr := respond(ctx, reply); rerr != nil {
		logger.WithError(rerr).Warn("Failed to deliver command reply")
	}
}

func (d *Dispatcher) run(ctx context.Context, inv *Invocation, coerce func(context.Context) (Args, error)) (*Reply, error) {
	cmd := inv.Command

	member, err := d.directory.MemberInfo(ctx, inv.GuildID, inv.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve invoker: %w", err)
	}
	inv.Username = member.Username
	inv.RoleIDs = member.RoleIDs

	if !member.HasPermission(cmd.Permissions) {
		return nil, apperr.New(apperr.KindForbidden, "You do not have permission to use `%s`.", cmd.Name)
	}

	decision := d.limiter.Allow(inv.GuildID, inv.UserID, cmd.Name, cmd.Cooldown)
	if !decision.Allowed {
		d.bus.Emit(ctx, events.RateLimitViolationEvent{
			GuildID:   inv.GuildID,
			UserID:    inv.UserID,
			Command:   cmd.Name,
			Timestamp: d.now(),
		})
		return nil, apperr.New(apperr.KindRateLimited, "Slow down. Try again in %s.", decision.RetryAfter.Round(time.Second))
	}

	args, err := coerce(ctx)
	if err != nil {
		return nil, err
	}
	inv.Args = args

	if cmd.Hierarchical {
		if err := d.checkHierarchy(ctx, inv, member); err != nil {
			return nil, err
		}
	}

	release, err := d.acquire(ctx, inv)
	if err != nil {
		return nil, err
	}
	defer release()

	return d.invoke(ctx, inv)
}

// checkHierarchy enforces moderation target rules: no self, no bots, and
// the invoker's top role strictly above the target's. Guild owners bypass
// the role comparison.
func (d *Dispatcher) checkHierarchy(ctx context.Context, inv *Invocation, invoker *MemberInfo) error {
	targetID := int64(0)
	for _, opt := range inv.Command.Options {
		if opt.Type == OptionUser {
			targetID = inv.Args.Snowflake(opt.Name)
			break
		}
	}
	if targetID == 0 {
		return nil
	}

	if targetID == inv.UserID {
		return apperr.New(apperr.KindBadArgument, "You cannot target yourself.")
	}

	target, err := d.directory.MemberInfo(ctx, inv.GuildID, targetID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return apperr.New(apperr.KindNotFound, "That user is not in this server.")
		}
		return fmt.Errorf("failed to resolve target member: %w", err)
	}

	if target.Bot {
		return apperr.New(apperr.KindBadArgument, "You cannot target a bot.")
	}
	if target.Owner {
		return apperr.New(apperr.KindForbidden, "You cannot target the server owner.")
	}
	if !invoker.Owner && invoker.TopRolePosition <= target.TopRolePosition {
		return apperr.New(apperr.KindForbidden, "You cannot target someone with an equal or higher role.")
	}
	return nil
}

// acquire takes the single-flight slot for (user, command). Queue commands
// wait for the running invocation; others are rejected.
func (d *Dispatcher) acquire(ctx context.Context, inv *Invocation) (func(), error) {
	key := fmt.Sprintf("%d:%s", inv.UserID, inv.Command.Name)

	for {
		d.mu.Lock()
		done, busy := d.inflight[key]
		if !busy {
			done = make(chan struct{})
			d.inflight[key] = done
			d.mu.Unlock()
			return func() {
				d.mu.Lock()
				delete(d.inflight, key)
				d.mu.Unlock()
				close(done)
			}, nil
		}
		d.mu.Unlock()

		if !inv.Command.Queue {
			return nil, apperr.New(apperr.KindConflict, "Your previous `%s` is still running.", inv.Command.Name)
		}
		select {
		case <-done:
		case <-ctx.Done():
			return nil, apperr.Wrap(apperr.KindTimeout, ctx.Err(), "gave up waiting for `%s`", inv.Command.Name)
		}
	}
}

// invoke runs the handler under a deadline with panic isolation. The usage
// row is written here so it exists exactly when the handler ran; rejections
// earlier in the pipeline leave no row.
func (d *Dispatcher) invoke(ctx context.Context, inv *Invocation) (reply *Reply, err error) {
	start := d.now()
	defer func() {
		d.recordUsage(ctx, inv, d.now().Sub(start), err)
	}()

	ctx, cancel := context.WithTimeout(ctx, handlerTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			log.WithFields(log.Fields{
				"guild_id": inv.GuildID,
				"user_id":  inv.UserID,
				"command":  inv.Command.Name,
				"panic":    r,
			}).Errorf("Handler panicked:\n%s", debug.Stack())
			reply = nil
			err = apperr.New(apperr.KindInternal, "handler panic: %v", r)
		}
	}()

	reply, err = inv.Command.Handler(ctx, inv)
	if err == nil && ctx.Err() != nil {
		err = apperr.Wrap(apperr.KindTimeout, ctx.Err(), "`%s` took too long", inv.Command.Name)
	}
	return reply, err
}

// recordUsage writes the command usage row. Recording failures are logged
// and swallowed; usage accounting never fails the command.
func (d *Dispatcher) recordUsage(ctx context.Context, inv *Invocation, duration time.Duration, cmdErr error) {
	usage := &models.CommandUsage{
		UserID:     inv.UserID,
		Command:    inv.Command.Name,
		DurationMs: duration.Milliseconds(),
		Success:    cmdErr == nil,
	}
	if inv.GuildID != 0 {
		gid := inv.GuildID
		usage.GuildID = &gid
	}
	if cmdErr != nil {
		msg := cmdErr.Error()
		usage.ErrorMessage = &msg
	}

	// Usage rows outlive a cancelled handler context
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	uow := d.uowFactory.Create(inv.GuildID)
	if err := uow.Begin(rctx); err != nil {
		log.WithError(err).Warn("Failed to open usage transaction")
		return
	}
	defer uow.Rollback()

	if err := uow.CommandUsageRepository().Record(rctx, usage); err != nil {
		log.WithError(err).Warn("Failed to record command usage")
		return
	}
	if err := uow.Commit(); err != nil {
		log.WithError(err).Warn("Failed to commit command usage")
	}
}

func userMessageFor(err error) string {
	if apperr.KindOf(err) == apperr.KindTimeout {
		return "That took too long. Please try again."
	}
	return common.UserMessage(err)
}
