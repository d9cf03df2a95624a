package utility

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"

	"warden/apperr"
	"warden/bot"
	"warden/bot/common"
)

// Feature bundles the utility command handlers
type Feature struct {
	rest *bot.Client
}

// Register wires the utility commands into the registry
func Register(r *bot.Registry, rest *bot.Client) error {
	f := &Feature{rest: rest}

	descriptors := []*bot.CommandDescriptor{
		{
			Name:        "ping",
			Description: "Check that the bot is responsive",
			Handler:     f.handlePing,
		},
		{
			Name:        "dice",
			Aliases:     []string{"roll"},
			Description: "Roll dice, e.g. 2d6+3",
			Options: []bot.Option{
				{Name: "spec", Type: bot.OptionString, Description: "Dice expression NdS+M", Required: true},
			},
			Handler: f.handleDice,
		},
		{
			Name:        "calc",
			Description: "Evaluate an arithmetic expression",
			Options: []bot.Option{
				{Name: "expression", Type: bot.OptionTail, Description: "Expression using + - * / ( )", Required: true},
			},
			Handler: f.handleCalc,
		},
		{
			Name:        "remind",
			Description: "Get a DM reminder after a delay",
			Options: []bot.Option{
				{Name: "minutes", Type: bot.OptionInt, Description: "Delay in minutes", Required: true, MinValue: 1, MaxValue: 1440},
				{Name: "message", Type: bot.OptionTail, Description: "What to remind you about", Required: true},
			},
			Handler: f.handleRemind,
		},
		{
			Name:        "purge",
			Description: "Bulk delete recent messages",
			Options: []bot.Option{
				{Name: "amount", Type: bot.OptionInt, Description: "Messages to delete", Required: true, MinValue: 1, MaxValue: 100},
			},
			Permissions: discordgo.PermissionManageMessages,
			Handler:     f.handlePurge,
		},
		{
			Name:        "password",
			Description: "Generate a random password",
			Options: []bot.Option{
				{Name: "length", Type: bot.OptionInt, Description: "Password length", Required: true, MinValue: 4, MaxValue: 50},
			},
			Handler: f.handlePassword,
		},
	}

	for _, d := range descriptors {
		if err := r.Register(d); err != nil {
			return err
		}
	}
	return nil
}

func (f *Feature) handlePing(ctx context.Context, inv *bot.Invocation) (*bot.Reply, error) {
	return &bot.Reply{Content: "🏓 Pong!"}, nil
}

func (f *Feature) handleRemind(ctx context.Context, inv *bot.Invocation) (*bot.Reply, error) {
	minutes := inv.Args.Int("minutes")
	message := inv.Args.String("message")
	delay := time.Duration(minutes) * time.Minute
	userID := inv.UserID

	time.AfterFunc(delay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := f.rest.SendDM(ctx, userID, fmt.Sprintf("⏰ Reminder: %s", message)); err != nil {
			log.WithFields(log.Fields{
				"user_id": userID,
			}).WithError(err).Warn("Failed to deliver reminder")
		}
	})

	return &bot.Reply{Content: fmt.Sprintf("⏰ I will remind you in %s.",
		common.FormatDuration(delay)), Ephemeral: true}, nil
}

func (f *Feature) handlePurge(ctx context.Context, inv *bot.Invocation) (*bot.Reply, error) {
	amount := int(inv.Args.Int("amount"))

	ids, err := f.rest.RecentMessageIDs(ctx, inv.ChannelID, inv.MessageID, purgeFetchCount(amount, inv.MessageID != 0))
	if err != nil {
		return nil, err
	}
	if inv.MessageID != 0 {
		ids = append(ids, inv.MessageID)
	}
	if len(ids) == 0 {
		return &bot.Reply{Content: "Nothing to delete.", Ephemeral: true}, nil
	}

	if err := f.rest.BulkDeleteMessages(ctx, inv.ChannelID, ids); err != nil {
		return nil, err
	}
	return &bot.Reply{Content: fmt.Sprintf("🧹 Deleted %d message(s).", amount), Ephemeral: true}, nil
}

const bulkDeleteLimit = 100

// purgeFetchCount sizes the history fetch so that the batch plus the
// invoking message stays within the bulk-delete cap of 100 ids
func purgeFetchCount(amount int, withInvoker bool) int {
	if withInvoker && amount >= bulkDeleteLimit {
		return bulkDeleteLimit - 1
	}
	return amount
}

const passwordCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%^&*-_=+"

func (f *Feature) handlePassword(ctx context.Context, inv *bot.Invocation) (*bot.Reply, error) {
	length := inv.Args.Int("length")

	out := make([]byte, length)
	max := big.NewInt(int64(len(passwordCharset)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, err, "failed to read randomness")
		}
		out[i] = passwordCharset[n.Int64()]
	}

	return &bot.Reply{Content: fmt.Sprintf("🔐 `%s`", string(out)), Ephemeral: true}, nil
}
