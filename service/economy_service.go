package service

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"warden/apperr"
	"warden/events"
	"warden/models"
)

// EconomyService implements the ledger operations. Every operation is one
// transactional session; multi-row mutations lock rows in ascending user-id
// order.
type EconomyService interface {
	GetOrCreateAccount(ctx context.Context, guildID, userID int64) (*models.UserEconomy, error)
	GetSettings(ctx context.Context, guildID int64) (*models.EconomySettings, error)
	TopBalances(ctx context.Context, guildID int64, limit int) ([]*models.UserEconomy, error)
	UpdateSettings(ctx context.Context, guildID int64, update func(*models.EconomySettings)) (*models.EconomySettings, error)

	Deposit(ctx context.Context, guildID, userID, amount int64) (*models.UserEconomy, error)
	Withdraw(ctx context.Context, guildID, userID, amount int64) (*models.UserEconomy, error)
	Transfer(ctx context.Context, guildID, fromUserID, toUserID, amount int64) (*TransferResult, error)
	Earn(ctx context.Context, guildID, userID int64, action models.EarnAction) (*EarnResult, error)
	Grant(ctx context.Context, guildID, userID, amount int64, reason string, moderatorID int64) (*models.UserEconomy, error)
	Fine(ctx context.Context, guildID, userID, amount int64, reason string, moderatorID int64) (*FineResult, error)
	ChatIncome(ctx context.Context, guildID, userID int64) error
	VerifyLedger(ctx context.Context, guildID, userID int64) (*LedgerCheck, error)
}

// TransferResult reports a completed transfer
type TransferResult struct {
	Amount      int64
	FromBalance int64
	ToBalance   int64
}

// EarnResult reports the outcome of a timed earning action
type EarnResult struct {
	Action  models.EarnAction
	Success bool  // false when a risky action failed
	Amount  int64 // payout when successful
	Fine    int64 // fine applied when failed
	Cash    int64
}

// FineResult reports an applied fine; Amount may be capped to available cash
type FineResult struct {
	Requested int64
	Applied   int64
	Cash      int64
}

// LedgerCheck reports the double-entry verification for one account
type LedgerCheck struct {
	LedgerSum int64
	Balance   int64
	Consistent bool
}

type economyService struct {
	uowFactory UnitOfWorkFactory
	bus        *events.Bus

	// Injectable randomness for deterministic tests
	randFloat func() float64
	randInt64 func(n int64) int64
	now       func() time.Time
}

// NewEconomyService creates a new economy service
func NewEconomyService(uowFactory UnitOfWorkFactory, bus *events.Bus) EconomyService {
	return &economyService{
		uowFactory: uowFactory,
		bus:        bus,
		randFloat:  rand.Float64,
		randInt64:  rand.Int63n,
		now:        time.Now,
	}
}

// getOrCreateSettings lazily creates settings with safe defaults
func getOrCreateSettings(ctx context.Context, uow UnitOfWork, guildID int64) (*models.EconomySettings, error) {
	settings, err := uow.EconomyRepository().GetSettings(ctx)
	if err != nil {
		return nil, err
	}
	if settings != nil {
		return settings, nil
	}
	settings = models.DefaultEconomySettings(guildID)
	if err := uow.EconomyRepository().UpsertSettings(ctx, settings); err != nil {
		return nil, err
	}
	return settings, nil
}

// getOrCreateAccount lazily creates an account with the starting balance and
// the opening ledger row
func (s *economyService) getOrCreateAccount(ctx context.Context, uow UnitOfWork, guildID, userID int64, forUpdate bool) (*models.UserEconomy, error) {
	var account *models.UserEconomy
	var err error
	if forUpdate {
		account, err = uow.EconomyRepository().GetAccountForUpdate(ctx, userID)
	} else {
		account, err = uow.EconomyRepository().GetAccount(ctx, userID)
	}
	if err != nil {
		return nil, err
	}
	if account != nil {
		return account, nil
	}

	settings, err := getOrCreateSettings(ctx, uow, guildID)
	if err != nil {
		return nil, err
	}

	account = &models.UserEconomy{
		GuildID:     guildID,
		UserID:      userID,
		Cash:        settings.StartingBalance,
		LastActions: map[models.EarnAction]time.Time{},
	}
	if err := uow.EconomyRepository().CreateAccount(ctx, account); err != nil {
		return nil, err
	}

	if settings.StartingBalance > 0 {
		opening := &models.EconomyTransaction{
			UserID: userID,
			Type:   models.TransactionTypeInitial,
			Amount: settings.StartingBalance,
			Reason: "starting balance",
		}
		if err := uow.TransactionRepository().Record(ctx, opening); err != nil {
			return nil, err
		}
	}
	return account, nil
}

func (s *economyService) GetOrCreateAccount(ctx context.Context, guildID, userID int64) (*models.UserEconomy, error) {
	uow := s.uowFactory.Create(guildID)
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	account, err := s.getOrCreateAccount(ctx, uow, guildID, userID, false)
	if err != nil {
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, err
	}
	return account, nil
}

func (s *economyService) GetSettings(ctx context.Context, guildID int64) (*models.EconomySettings, error) {
	uow := s.uowFactory.Create(guildID)
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	settings, err := getOrCreateSettings(ctx, uow, guildID)
	if err != nil {
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, err
	}
	return settings, nil
}

func (s *economyService) TopBalances(ctx context.Context, guildID int64, limit int) ([]*models.UserEconomy, error) {
	uow := s.uowFactory.Create(guildID)
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	accounts, err := uow.EconomyRepository().TopBalances(ctx, limit)
	if err != nil {
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, err
	}
	return accounts, nil
}

func (s *economyService) UpdateSettings(ctx context.Context, guildID int64, update func(*models.EconomySettings)) (*models.EconomySettings, error) {
	uow := s.uowFactory.Create(guildID)
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	settings, err := getOrCreateSettings(ctx, uow, guildID)
	if err != nil {
		return nil, err
	}
	update(settings)
	if settings.MaxBalance <= 0 {
		return nil, apperr.New(apperr.KindBadArgument, "maximum balance must be positive")
	}
	if err := uow.EconomyRepository().UpsertSettings(ctx, settings); err != nil {
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, err
	}
	return settings, nil
}

// Deposit moves cash into the bank. The total balance is unchanged, so the
// ledger row carries amount zero with the moved value in metadata.
func (s *economyService) Deposit(ctx context.Context, guildID, userID, amount int64) (*models.UserEconomy, error) {
	if amount <= 0 {
		return nil, apperr.New(apperr.KindBadArgument, "amount must be a positive integer")
	}

	uow := s.uowFactory.Create(guildID)
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	account, err := s.getOrCreateAccount(ctx, uow, guildID, userID, true)
	if err != nil {
		return nil, err
	}
	if account.Cash < amount {
		return nil, apperr.New(apperr.KindBadArgument, "insufficient cash: have %d, need %d", account.Cash, amount)
	}

	account.Cash -= amount
	account.Bank += amount
	if err := uow.EconomyRepository().UpdateAccount(ctx, account); err != nil {
		return nil, err
	}

	tx := &models.EconomyTransaction{
		UserID:   userID,
		Type:     models.TransactionTypeDeposit,
		Amount:   0,
		Reason:   "deposit",
		Metadata: map[string]any{"moved": amount},
	}
	if err := uow.TransactionRepository().Record(ctx, tx); err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, err
	}
	s.emitTransaction(ctx, guildID, userID, tx)
	return account, nil
}

// Withdraw moves bank funds back to cash
func (s *economyService) Withdraw(ctx context.Context, guildID, userID, amount int64) (*models.UserEconomy, error) {
	if amount <= 0 {
		return nil, apperr.New(apperr.KindBadArgument, "amount must be a positive integer")
	}

	uow := s.uowFactory.Create(guildID)
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	account, err := s.getOrCreateAccount(ctx, uow, guildID, userID, true)
	if err != nil {
		return nil, err
	}
	if account.Bank < amount {
		return nil, apperr.New(apperr.KindBadArgument, "insufficient bank balance: have %d, need %d", account.Bank, amount)
	}

	account.Bank -= amount
	account.Cash += amount
	if err := uow.EconomyRepository().UpdateAccount(ctx, account); err != nil {
		return nil, err
	}

	tx := &models.EconomyTransaction{
		UserID:   userID,
		Type:     models.TransactionTypeWithdraw,
		Amount:   0,
		Reason:   "withdraw",
		Metadata: map[string]any{"moved": amount},
	}
	if err := uow.TransactionRepository().Record(ctx, tx); err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, err
	}
	s.emitTransaction(ctx, guildID, userID, tx)
	return account, nil
}

// Transfer moves cash between two members atomically. The precondition is
// re-verified after both rows are locked; a shortfall at that point is a
// Conflict the caller may retry or surface.
func (s *economyService) Transfer(ctx context.Context, guildID, fromUserID, toUserID, amount int64) (*TransferResult, error) {
	if amount <= 0 {
		return nil, apperr.New(apperr.KindBadArgument, "amount must be a positive integer")
	}
	if fromUserID == toUserID {
		return nil, apperr.New(apperr.KindBadArgument, "cannot transfer to yourself")
	}

	uow := s.uowFactory.Create(guildID)
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	// Both accounts must exist before the ordered lock query
	if _, err := s.getOrCreateAccount(ctx, uow, guildID, fromUserID, false); err != nil {
		return nil, err
	}
	if _, err := s.getOrCreateAccount(ctx, uow, guildID, toUserID, false); err != nil {
		return nil, err
	}

	accounts, err := uow.EconomyRepository().GetAccountsForUpdate(ctx, []int64{fromUserID, toUserID})
	if err != nil {
		return nil, err
	}
	var from, to *models.UserEconomy
	for _, account := range accounts {
		switch account.UserID {
		case fromUserID:
			from = account
		case toUserID:
			to = account
		}
	}
	if from == nil || to == nil {
		return nil, apperr.New(apperr.KindNotFound, "account not found")
	}

	if from.Cash < amount {
		return nil, apperr.New(apperr.KindConflict, "insufficient cash: have %d, need %d", from.Cash, amount)
	}

	settings, err := getOrCreateSettings(ctx, uow, guildID)
	if err != nil {
		return nil, err
	}
	if to.Total()+amount > settings.MaxBalance {
		return nil, apperr.New(apperr.KindConflict, "recipient balance would exceed the maximum")
	}

	from.Cash -= amount
	to.Cash += amount
	if err := uow.EconomyRepository().UpdateAccount(ctx, from); err != nil {
		return nil, err
	}
	if err := uow.EconomyRepository().UpdateAccount(ctx, to); err != nil {
		return nil, err
	}

	debit := &models.EconomyTransaction{
		UserID:   fromUserID,
		Type:     models.TransactionTypeTransferOut,
		Amount:   -amount,
		Reason:   "transfer",
		Metadata: map[string]any{"recipient_id": toUserID},
	}
	credit := &models.EconomyTransaction{
		UserID:   toUserID,
		Type:     models.TransactionTypeTransferIn,
		Amount:   amount,
		Reason:   "transfer",
		Metadata: map[string]any{"sender_id": fromUserID},
	}
	if err := uow.TransactionRepository().Record(ctx, debit); err != nil {
		return nil, err
	}
	if err := uow.TransactionRepository().Record(ctx, credit); err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, err
	}
	s.emitTransaction(ctx, guildID, fromUserID, debit)
	s.emitTransaction(ctx, guildID, toUserID, credit)

	return &TransferResult{
		Amount:      amount,
		FromBalance: from.Cash,
		ToBalance:   to.Cash,
	}, nil
}

// Earn runs one timed earning action
func (s *economyService) Earn(ctx context.Context, guildID, userID int64, action models.EarnAction) (*EarnResult, error) {
	uow := s.uowFactory.Create(guildID)
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	settings, err := getOrCreateSettings(ctx, uow, guildID)
	if err != nil {
		return nil, err
	}
	account, err := s.getOrCreateAccount(ctx, uow, guildID, userID, true)
	if err != nil {
		return nil, err
	}

	now := s.now()
	cooldown := settings.Cooldown(action)
	if last, ok := account.LastActions[action]; ok {
		if remaining := cooldown - now.Sub(last); remaining > 0 {
			return nil, apperr.New(apperr.KindRateLimited, "you can %s again in %s", action, remaining.Round(time.Second))
		}
	}
	account.LastActions[action] = now

	result := &EarnResult{Action: action}
	var recorded *models.EconomyTransaction

	if failRate := settings.FailRate(action); failRate > 0 && s.randFloat() < failRate {
		// Risky action failed: apply the fine policy instead of a payout
		fine := settings.FineValue
		if settings.FinePolicy == models.FinePolicyPercent {
			fine = account.Cash * settings.FineValue / 100
		}
		if fine > account.Cash {
			fine = account.Cash
		}
		account.Cash -= fine
		result.Fine = fine

		if err := uow.EconomyRepository().UpdateAccount(ctx, account); err != nil {
			return nil, err
		}
		if fine > 0 {
			tx := &models.EconomyTransaction{
				UserID: userID,
				Type:   models.TransactionTypeFine,
				Amount: -fine,
				Reason: fmt.Sprintf("failed %s", action),
			}
			if err := uow.TransactionRepository().Record(ctx, tx); err != nil {
				return nil, err
			}
			recorded = tx
		}
	} else {
		payout := s.rollPayout(settings.Payout(action))
		if room := settings.MaxBalance - account.Total(); payout > room {
			payout = room
		}
		if payout < 0 {
			payout = 0
		}
		account.Cash += payout
		account.LifetimeEarned += payout
		result.Success = true
		result.Amount = payout

		if err := uow.EconomyRepository().UpdateAccount(ctx, account); err != nil {
			return nil, err
		}
		if payout > 0 {
			tx := &models.EconomyTransaction{
				UserID: userID,
				Type:   models.TransactionTypeEarn,
				Amount: payout,
				Reason: string(action),
			}
			if err := uow.TransactionRepository().Record(ctx, tx); err != nil {
				return nil, err
			}
			recorded = tx
		}
	}

	if err := uow.Commit(); err != nil {
		return nil, err
	}
	if recorded != nil {
		s.emitTransaction(ctx, guildID, userID, recorded)
	}
	result.Cash = account.Cash
	return result, nil
}

// Grant credits a member by moderator action, capped at the maximum balance
func (s *economyService) Grant(ctx context.Context, guildID, userID, amount int64, reason string, moderatorID int64) (*models.UserEconomy, error) {
	if amount <= 0 {
		return nil, apperr.New(apperr.KindBadArgument, "amount must be a positive integer")
	}

	uow := s.uowFactory.Create(guildID)
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	settings, err := getOrCreateSettings(ctx, uow, guildID)
	if err != nil {
		return nil, err
	}
	account, err := s.getOrCreateAccount(ctx, uow, guildID, userID, true)
	if err != nil {
		return nil, err
	}

	granted := amount
	if room := settings.MaxBalance - account.Total(); granted > room {
		granted = room
	}
	if granted <= 0 {
		return nil, apperr.New(apperr.KindConflict, "balance is already at the maximum")
	}

	account.Cash += granted
	if err := uow.EconomyRepository().UpdateAccount(ctx, account); err != nil {
		return nil, err
	}

	tx := &models.EconomyTransaction{
		UserID:      userID,
		Type:        models.TransactionTypeGrant,
		Amount:      granted,
		Reason:      reason,
		ModeratorID: &moderatorID,
	}
	if err := uow.TransactionRepository().Record(ctx, tx); err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, err
	}
	s.emitTransaction(ctx, guildID, userID, tx)
	return account, nil
}

// Fine debits a member by moderator action, capped to their available cash
func (s *economyService) Fine(ctx context.Context, guildID, userID, amount int64, reason string, moderatorID int64) (*FineResult, error) {
	if amount <= 0 {
		return nil, apperr.New(apperr.KindBadArgument, "amount must be a positive integer")
	}

	uow := s.uowFactory.Create(guildID)
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	account, err := s.getOrCreateAccount(ctx, uow, guildID, userID, true)
	if err != nil {
		return nil, err
	}

	applied := amount
	if applied > account.Cash {
		applied = account.Cash
	}
	account.Cash -= applied
	if err := uow.EconomyRepository().UpdateAccount(ctx, account); err != nil {
		return nil, err
	}

	var recorded *models.EconomyTransaction
	if applied > 0 {
		recorded = &models.EconomyTransaction{
			UserID:      userID,
			Type:        models.TransactionTypeFine,
			Amount:      -applied,
			Reason:      reason,
			ModeratorID: &moderatorID,
		}
		if err := uow.TransactionRepository().Record(ctx, recorded); err != nil {
			return nil, err
		}
	}

	if err := uow.Commit(); err != nil {
		return nil, err
	}
	if recorded != nil {
		s.emitTransaction(ctx, guildID, userID, recorded)
	}
	return &FineResult{Requested: amount, Applied: applied, Cash: account.Cash}, nil
}

// ChatIncome credits the passive per-message income when enabled and off cooldown
func (s *economyService) ChatIncome(ctx context.Context, guildID, userID int64) error {
	uow := s.uowFactory.Create(guildID)
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	settings, err := uow.EconomyRepository().GetSettings(ctx)
	if err != nil {
		return err
	}
	if settings == nil || !settings.ChatIncomeEnabled || settings.ChatIncomeAmount <= 0 {
		return nil
	}

	account, err := s.getOrCreateAccount(ctx, uow, guildID, userID, true)
	if err != nil {
		return err
	}

	now := s.now()
	if now.Sub(account.LastChatIncome) < settings.ChatIncomeCooldown {
		return nil
	}

	amount := settings.ChatIncomeAmount
	if room := settings.MaxBalance - account.Total(); amount > room {
		amount = room
	}
	account.LastChatIncome = now
	if amount > 0 {
		account.Cash += amount
		account.LifetimeEarned += amount
	}
	if err := uow.EconomyRepository().UpdateAccount(ctx, account); err != nil {
		return err
	}

	if amount > 0 {
		tx := &models.EconomyTransaction{
			UserID: userID,
			Type:   models.TransactionTypeChatIncome,
			Amount: amount,
			Reason: "chat income",
		}
		if err := uow.TransactionRepository().Record(ctx, tx); err != nil {
			return err
		}
	}

	return uow.Commit()
}

// VerifyLedger checks the double-entry invariant for one account
func (s *economyService) VerifyLedger(ctx context.Context, guildID, userID int64) (*LedgerCheck, error) {
	uow := s.uowFactory.Create(guildID)
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	account, err := uow.EconomyRepository().GetAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, apperr.New(apperr.KindNotFound, "no account for user")
	}
	sum, err := uow.TransactionRepository().SumByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, err
	}

	return &LedgerCheck{
		LedgerSum:  sum,
		Balance:    account.Total(),
		Consistent: sum == account.Total(),
	}, nil
}

// rollPayout draws a uniform payout from the range
func (s *economyService) rollPayout(r models.PayoutRange) int64 {
	if r.Max <= r.Min {
		return r.Min
	}
	return r.Min + s.randInt64(r.Max-r.Min+1)
}

func (s *economyService) emitTransaction(ctx context.Context, guildID, userID int64, tx *models.EconomyTransaction) {
	if s.bus == nil {
		return
	}
	s.bus.Emit(ctx, events.TransactionEvent{
		GuildID:         guildID,
		UserID:          userID,
		TransactionType: string(tx.Type),
		Amount:          tx.Amount,
		Reason:          tx.Reason,
		Timestamp:       s.now(),
	})
}
