package economy

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"warden/apperr"
	"warden/bot"
	"warden/bot/common"
	"warden/models"
	"warden/service"
)

// Feature bundles the economy command handlers
type Feature struct {
	economy service.EconomyService
	store   service.StoreService
	incomes service.RoleIncomeService
}

// Register wires every economy command into the registry
func Register(r *bot.Registry, economy service.EconomyService, store service.StoreService, incomes service.RoleIncomeService) error {
	f := &Feature{economy: economy, store: store, incomes: incomes}

	descriptors := []*bot.CommandDescriptor{
		{
			Name:        "balance",
			Aliases:     []string{"bal"},
			Description: "Check your cash and bank balance",
			Options: []bot.Option{
				{Name: "user", Type: bot.OptionUser, Description: "User to check (defaults to you)"},
			},
			Handler: f.handleBalance,
		},
		{
			Name:        "deposit",
			Aliases:     []string{"dep"},
			Description: "Move cash into your bank",
			Options: []bot.Option{
				{Name: "amount", Type: bot.OptionInt, Description: "Amount to deposit", Required: true},
			},
			Handler: f.handleDeposit,
		},
		{
			Name:        "withdraw",
			Aliases:     []string{"with"},
			Description: "Move bank funds into cash",
			Options: []bot.Option{
				{Name: "amount", Type: bot.OptionInt, Description: "Amount to withdraw", Required: true},
			},
			Handler: f.handleWithdraw,
		},
		{
			Name:        "transfer",
			Aliases:     []string{"pay"},
			Description: "Give cash to another member",
			Options: []bot.Option{
				{Name: "user", Type: bot.OptionUser, Description: "Recipient", Required: true},
				{Name: "amount", Type: bot.OptionInt, Description: "Amount to send", Required: true},
			},
			Queue:   true,
			Handler: f.handleTransfer,
		},
		{
			Name:        "work",
			Description: "Earn a steady wage",
			Handler:     f.earnHandler(models.EarnActionWork),
		},
		{
			Name:        "chore",
			Description: "Do a quick chore for a small payout",
			Handler:     f.earnHandler(models.EarnActionChore),
		},
		{
			Name:        "crime",
			Description: "Risk a fine for a bigger payout",
			Handler:     f.earnHandler(models.EarnActionCrime),
		},
		{
			Name:        "grant",
			Description: "Grant coins to a member",
			Options: []bot.Option{
				{Name: "user", Type: bot.OptionUser, Description: "Recipient", Required: true},
				{Name: "amount", Type: bot.OptionInt, Description: "Amount to grant", Required: true},
				{Name: "reason", Type: bot.OptionTail, Description: "Reason"},
			},
			Permissions: discordgo.PermissionManageServer,
			Handler:     f.handleGrant,
		},
		{
			Name:        "fine",
			Description: "Fine a member's cash",
			Options: []bot.Option{
				{Name: "user", Type: bot.OptionUser, Description: "Member to fine", Required: true},
				{Name: "amount", Type: bot.OptionInt, Description: "Amount to fine", Required: true},
				{Name: "reason", Type: bot.OptionTail, Description: "Reason"},
			},
			Permissions:  discordgo.PermissionManageServer,
			Hierarchical: true,
			Handler:      f.handleFine,
		},
		{
			Name:        "shop",
			Aliases:     []string{"store"},
			Description: "Browse the server shop",
			Handler:     f.handleShop,
		},
		{
			Name:        "buy",
			Description: "Buy an item from the shop",
			Options: []bot.Option{
				{Name: "item", Type: bot.OptionTail, Description: "Item name", Required: true},
			},
			Queue:   true,
			Handler: f.handleBuy,
		},
		{
			Name:        "sell",
			Description: "Sell an item back to the shop",
			Options: []bot.Option{
				{Name: "item", Type: bot.OptionTail, Description: "Item name", Required: true},
			},
			Queue:   true,
			Handler: f.handleSell,
		},
		{
			Name:        "inventory",
			Aliases:     []string{"inv"},
			Description: "List the items you own",
			Handler:     f.handleInventory,
		},
		{
			Name:        "collect",
			Description: "Collect your role income",
			Cooldown:    time.Minute,
			Handler:     f.handleCollect,
		},
		{
			Name:        "leaderboard",
			Aliases:     []string{"top"},
			Description: "Show the richest members",
			Handler:     f.handleLeaderboard,
		},
		{
			Name:        "shopadd",
			Description: "Add an item to the shop",
			Options: []bot.Option{
				{Name: "price", Type: bot.OptionInt, Description: "Purchase price", Required: true, MinValue: 1, MaxValue: 1_000_000_000},
				{Name: "sell_price", Type: bot.OptionInt, Description: "Sell-back price, 0 to disallow", Required: true, MinValue: 0, MaxValue: 1_000_000_000},
				{Name: "stock", Type: bot.OptionInt, Description: "Stock, -1 for unlimited", Required: true, MinValue: -1, MaxValue: 1_000_000},
				{Name: "name", Type: bot.OptionTail, Description: "Item name", Required: true},
			},
			Permissions: discordgo.PermissionManageServer,
			Handler:     f.handleShopAdd,
		},
		{
			Name:        "roleincome",
			Description: "Manage recurring role income (list | add <role> <amount> <minutes> | remove <id>)",
			Options: []bot.Option{
				{Name: "action", Type: bot.OptionString, Description: "list, add or remove", Required: true},
				{Name: "args", Type: bot.OptionTail, Description: "Arguments for the action"},
			},
			Permissions: discordgo.PermissionManageServer,
			Handler:     f.handleRoleIncome,
		},
	}

	for _, d := range descriptors {
		if err := r.Register(d); err != nil {
			return err
		}
	}
	return nil
}

func (f *Feature) handleBalance(ctx context.Context, inv *bot.Invocation) (*bot.Reply, error) {
	targetID := inv.UserID
	if inv.Args.Has("user") {
		targetID = inv.Args.Snowflake("user")
	}

	account, err := f.economy.GetOrCreateAccount(ctx, inv.GuildID, targetID)
	if err != nil {
		return nil, err
	}

	embed := &discordgo.MessageEmbed{
		Title: "Balance",
		Color: 0x2ecc71,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Member", Value: common.Mention(targetID), Inline: true},
			{Name: "Cash", Value: common.FormatAmount(account.Cash), Inline: true},
			{Name: "Bank", Value: common.FormatAmount(account.Bank), Inline: true},
			{Name: "Total", Value: common.FormatAmount(account.Total()), Inline: true},
		},
	}
	return &bot.Reply{Embed: embed}, nil
}

func (f *Feature) handleDeposit(ctx context.Context, inv *bot.Invocation) (*bot.Reply, error) {
	amount := inv.Args.Int("amount")
	account, err := f.economy.Deposit(ctx, inv.GuildID, inv.UserID, amount)
	if err != nil {
		return nil, err
	}
	return &bot.Reply{Content: fmt.Sprintf("✅ Deposited %s. Cash: **%s**, bank: **%s**.",
		common.FormatCoins(amount), common.FormatAmount(account.Cash), common.FormatAmount(account.Bank))}, nil
}

func (f *Feature) handleWithdraw(ctx context.Context, inv *bot.Invocation) (*bot.Reply, error) {
	amount := inv.Args.Int("amount")
	account, err := f.economy.Withdraw(ctx, inv.GuildID, inv.UserID, amount)
	if err != nil {
		return nil, err
	}
	return &bot.Reply{Content: fmt.Sprintf("✅ Withdrew %s. Cash: **%s**, bank: **%s**.",
		common.FormatCoins(amount), common.FormatAmount(account.Cash), common.FormatAmount(account.Bank))}, nil
}

func (f *Feature) handleTransfer(ctx context.Context, inv *bot.Invocation) (*bot.Reply, error) {
	toID := inv.Args.Snowflake("user")
	amount := inv.Args.Int("amount")

	result, err := f.economy.Transfer(ctx, inv.GuildID, inv.UserID, toID, amount)
	if err != nil {
		return nil, err
	}
	return &bot.Reply{Content: fmt.Sprintf("✅ %s sent %s to %s.",
		common.Mention(inv.UserID), common.FormatCoins(result.Amount), common.Mention(toID))}, nil
}

func (f *Feature) earnHandler(action models.EarnAction) bot.HandlerFunc {
	return func(ctx context.Context, inv *bot.Invocation) (*bot.Reply, error) {
		result, err := f.economy.Earn(ctx, inv.GuildID, inv.UserID, action)
		if err != nil {
			return nil, err
		}

		if !result.Success {
			return &bot.Reply{Content: fmt.Sprintf("🚨 You got caught and paid a fine of %s. Cash: **%s**.",
				common.FormatCoins(result.Fine), common.FormatAmount(result.Cash))}, nil
		}
		return &bot.Reply{Content: fmt.Sprintf("💰 You earned %s. Cash: **%s**.",
			common.FormatCoins(result.Amount), common.FormatAmount(result.Cash))}, nil
	}
}

func (f *Feature) handleGrant(ctx context.Context, inv *bot.Invocation) (*bot.Reply, error) {
	targetID := inv.Args.Snowflake("user")
	amount := inv.Args.Int("amount")
	reason := inv.Args.String("reason")

	account, err := f.economy.Grant(ctx, inv.GuildID, targetID, amount, reason, inv.UserID)
	if err != nil {
		return nil, err
	}
	return &bot.Reply{Content: fmt.Sprintf("✅ Granted %s to %s. Their cash: **%s**.",
		common.FormatCoins(amount), common.Mention(targetID), common.FormatAmount(account.Cash))}, nil
}

func (f *Feature) handleFine(ctx context.Context, inv *bot.Invocation) (*bot.Reply, error) {
	targetID := inv.Args.Snowflake("user")
	amount := inv.Args.Int("amount")
	reason := inv.Args.String("reason")

	result, err := f.economy.Fine(ctx, inv.GuildID, targetID, amount, reason, inv.UserID)
	if err != nil {
		return nil, err
	}

	content := fmt.Sprintf("✅ Fined %s %s.", common.Mention(targetID), common.FormatCoins(result.Applied))
	if result.Applied < result.Requested {
		content += fmt.Sprintf(" They only had %s in cash.", common.FormatAmount(result.Applied))
	}
	return &bot.Reply{Content: content}, nil
}

func (f *Feature) handleShop(ctx context.Context, inv *bot.Invocation) (*bot.Reply, error) {
	items, err := f.store.ListItems(ctx, inv.GuildID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return &bot.Reply{Content: "The shop is empty."}, nil
	}

	var sb strings.Builder
	for _, item := range items {
		fmt.Fprintf(&sb, "**%s** — %s", item.Name, common.FormatAmount(item.Price))
		if item.Stock >= 0 {
			fmt.Fprintf(&sb, " (%d left)", item.Stock)
		}
		if item.RequiredRoleID != nil {
			fmt.Fprintf(&sb, " • requires %s", common.RoleMention(*item.RequiredRoleID))
		}
		sb.WriteString("\n")
	}

	return &bot.Reply{Embed: &discordgo.MessageEmbed{
		Title:       "Shop",
		Color:       0x3498db,
		Description: sb.String(),
	}}, nil
}

func (f *Feature) handleBuy(ctx context.Context, inv *bot.Invocation) (*bot.Reply, error) {
	result, err := f.store.Buy(ctx, inv.GuildID, inv.UserID, inv.Args.String("item"), inv.RoleIDs)
	if err != nil {
		return nil, err
	}
	return &bot.Reply{Content: fmt.Sprintf("✅ Bought **%s** for %s. Cash: **%s**.",
		result.Item.Name, common.FormatCoins(result.Item.Price), common.FormatAmount(result.Cash))}, nil
}

func (f *Feature) handleSell(ctx context.Context, inv *bot.Invocation) (*bot.Reply, error) {
	result, err := f.store.Sell(ctx, inv.GuildID, inv.UserID, inv.Args.String("item"))
	if err != nil {
		return nil, err
	}
	return &bot.Reply{Content: fmt.Sprintf("✅ Sold **%s** for %s. Cash: **%s**.",
		result.Item.Name, common.FormatCoins(result.Proceeds), common.FormatAmount(result.Cash))}, nil
}

func (f *Feature) handleInventory(ctx context.Context, inv *bot.Invocation) (*bot.Reply, error) {
	lines, err := f.store.Inventory(ctx, inv.GuildID, inv.UserID)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return &bot.Reply{Content: "You do not own any items."}, nil
	}

	var sb strings.Builder
	for _, line := range lines {
		fmt.Fprintf(&sb, "**%s** × %d\n", line.Item.Name, line.Quantity)
	}
	return &bot.Reply{Embed: &discordgo.MessageEmbed{
		Title:       "Inventory",
		Color:       0x3498db,
		Description: sb.String(),
	}}, nil
}

func (f *Feature) handleCollect(ctx context.Context, inv *bot.Invocation) (*bot.Reply, error) {
	collected, err := f.incomes.Collect(ctx, inv.GuildID, inv.UserID, inv.RoleIDs)
	if err != nil {
		return nil, err
	}
	if collected == 0 {
		return &bot.Reply{Content: "Nothing to collect right now."}, nil
	}
	return &bot.Reply{Content: fmt.Sprintf("💰 Collected %s of role income.", common.FormatCoins(collected))}, nil
}

func (f *Feature) handleLeaderboard(ctx context.Context, inv *bot.Invocation) (*bot.Reply, error) {
	top, err := f.economy.TopBalances(ctx, inv.GuildID, 10)
	if err != nil {
		return nil, err
	}
	if len(top) == 0 {
		return &bot.Reply{Content: "No accounts yet."}, nil
	}

	var sb strings.Builder
	for i, account := range top {
		fmt.Fprintf(&sb, "%d. %s — **%s**\n", i+1, common.Mention(account.UserID), common.FormatAmount(account.Total()))
	}
	return &bot.Reply{Embed: &discordgo.MessageEmbed{
		Title:       "Leaderboard",
		Color:       0xf1c40f,
		Description: sb.String(),
	}}, nil
}

func (f *Feature) handleShopAdd(ctx context.Context, inv *bot.Invocation) (*bot.Reply, error) {
	item := &models.StoreItem{
		GuildID: inv.GuildID,
		Name:    inv.Args.String("name"),
		Price:   inv.Args.Int("price"),
		Stock:   inv.Args.Int("stock"),
	}
	if sell := inv.Args.Int("sell_price"); sell > 0 {
		item.SellPrice = &sell
	}

	if err := f.store.CreateItem(ctx, inv.GuildID, item); err != nil {
		return nil, err
	}
	return &bot.Reply{Content: fmt.Sprintf("✅ Added **%s** to the shop for %s.",
		item.Name, common.FormatCoins(item.Price))}, nil
}

func (f *Feature) handleRoleIncome(ctx context.Context, inv *bot.Invocation) (*bot.Reply, error) {
	action := strings.ToLower(inv.Args.String("action"))
	rest := strings.Fields(inv.Args.String("args"))

	switch action {
	case "list":
		incomes, err := f.incomes.List(ctx, inv.GuildID)
		if err != nil {
			return nil, err
		}
		if len(incomes) == 0 {
			return &bot.Reply{Content: "No role incomes configured."}, nil
		}
		var sb strings.Builder
		for _, income := range incomes {
			fmt.Fprintf(&sb, "`%d` %s — %s every %s\n",
				income.ID, common.RoleMention(income.RoleID),
				common.FormatAmount(income.Amount), common.FormatDuration(income.Interval))
		}
		return &bot.Reply{Embed: &discordgo.MessageEmbed{
			Title:       "Role income",
			Color:       0x3498db,
			Description: sb.String(),
		}}, nil

	case "add":
		if len(rest) != 3 {
			return nil, apperr.New(apperr.KindBadArgument, "Usage: roleincome add <role> <amount> <minutes>")
		}
		roleID, ok := parseRole(rest[0])
		if !ok {
			return nil, apperr.New(apperr.KindBadArgument, "First argument must be a role mention or id.")
		}
		amount, err := strconv.ParseInt(rest[1], 10, 64)
		if err != nil {
			return nil, apperr.New(apperr.KindBadArgument, "Amount must be a whole number.")
		}
		minutes, err := strconv.ParseInt(rest[2], 10, 64)
		if err != nil {
			return nil, apperr.New(apperr.KindBadArgument, "Interval must be a whole number of minutes.")
		}

		income, err := f.incomes.Add(ctx, inv.GuildID, roleID, amount, time.Duration(minutes)*time.Minute)
		if err != nil {
			return nil, err
		}
		return &bot.Reply{Content: fmt.Sprintf("✅ %s now earns %s every %s (id `%d`).",
			common.RoleMention(income.RoleID), common.FormatCoins(income.Amount),
			common.FormatDuration(income.Interval), income.ID)}, nil

	case "remove":
		if len(rest) != 1 {
			return nil, apperr.New(apperr.KindBadArgument, "Usage: roleincome remove <id>")
		}
		incomeID, err := strconv.ParseInt(rest[0], 10, 64)
		if err != nil {
			return nil, apperr.New(apperr.KindBadArgument, "Income id must be a whole number.")
		}
		if err := f.incomes.Remove(ctx, inv.GuildID, incomeID); err != nil {
			return nil, err
		}
		return &bot.Reply{Content: "✅ Role income removed."}, nil

	default:
		return nil, apperr.New(apperr.KindBadArgument, "Action must be one of: list, add, remove.")
	}
}

// parseRole accepts a role mention or a bare id
func parseRole(token string) (int64, bool) {
	if strings.HasPrefix(token, "<@&") && strings.HasSuffix(token, ">") {
		token = token[3 : len(token)-1]
	}
	id, err := strconv.ParseInt(token, 10, 64)
	return id, err == nil && id > 0
}
