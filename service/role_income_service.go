package service

import (
	"context"
	"slices"
	"time"

	"warden/apperr"
	"warden/models"
)

// RoleIncomeService manages recurring income tied to role membership
type RoleIncomeService interface {
	List(ctx context.Context, guildID int64) ([]*models.RoleIncome, error)
	Add(ctx context.Context, guildID, roleID, amount int64, interval time.Duration) (*models.RoleIncome, error)
	Remove(ctx context.Context, guildID, incomeID int64) error
	// Collect pays out every income whose role the member holds and whose
	// interval has elapsed, returning the total credited.
	Collect(ctx context.Context, guildID, userID int64, memberRoleIDs []int64) (int64, error)
}

type roleIncomeService struct {
	uowFactory UnitOfWorkFactory
	now        func() time.Time
}

// NewRoleIncomeService creates a new role income service
func NewRoleIncomeService(uowFactory UnitOfWorkFactory) RoleIncomeService {
	return &roleIncomeService{uowFactory: uowFactory, now: time.Now}
}

func (s *roleIncomeService) List(ctx context.Context, guildID int64) ([]*models.RoleIncome, error) {
	uow := s.uowFactory.Create(guildID)
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	incomes, err := uow.RoleIncomeRepository().List(ctx)
	if err != nil {
		return nil, err
	}
	return incomes, uow.Commit()
}

func (s *roleIncomeService) Add(ctx context.Context, guildID, roleID, amount int64, interval time.Duration) (*models.RoleIncome, error) {
	if amount <= 0 {
		return nil, apperr.New(apperr.KindBadArgument, "amount must be a positive integer")
	}
	if interval < time.Minute {
		return nil, apperr.New(apperr.KindBadArgument, "interval must be at least one minute")
	}

	uow := s.uowFactory.Create(guildID)
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	income := &models.RoleIncome{
		GuildID:  guildID,
		RoleID:   roleID,
		Amount:   amount,
		Interval: interval,
	}
	if err := uow.RoleIncomeRepository().Create(ctx, income); err != nil {
		if apperr.Is(err, apperr.KindConflict) {
			return nil, apperr.New(apperr.KindConflict, "that role already has an income")
		}
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, err
	}
	return income, nil
}

func (s *roleIncomeService) Remove(ctx context.Context, guildID, incomeID int64) error {
	uow := s.uowFactory.Create(guildID)
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	if err := uow.RoleIncomeRepository().Delete(ctx, incomeID); err != nil {
		return err
	}
	return uow.Commit()
}

func (s *roleIncomeService) Collect(ctx context.Context, guildID, userID int64, memberRoleIDs []int64) (int64, error) {
	uow := s.uowFactory.Create(guildID)
	if err := uow.Begin(ctx); err != nil {
		return 0, err
	}
	defer uow.Rollback()

	incomes, err := uow.RoleIncomeRepository().List(ctx)
	if err != nil {
		return 0, err
	}

	settings, err := getOrCreateSettings(ctx, uow, guildID)
	if err != nil {
		return 0, err
	}
	account, err := uow.EconomyRepository().GetAccountForUpdate(ctx, userID)
	if err != nil {
		return 0, err
	}
	if account == nil {
		return 0, apperr.New(apperr.KindNotFound, "no account for user")
	}

	now := s.now()
	var total int64
	for _, income := range incomes {
		if !slices.Contains(memberRoleIDs, income.RoleID) {
			continue
		}
		last, err := uow.RoleIncomeRepository().GetLastCollected(ctx, userID, income.ID)
		if err != nil {
			return 0, err
		}
		if now.Sub(last) < income.Interval {
			continue
		}

		amount := income.Amount
		if room := settings.MaxBalance - account.Total() - total; amount > room {
			amount = room
		}
		if amount <= 0 {
			continue
		}
		total += amount
		if err := uow.RoleIncomeRepository().SetLastCollected(ctx, userID, income.ID, now); err != nil {
			return 0, err
		}
		tx := &models.EconomyTransaction{
			UserID:   userID,
			Type:     models.TransactionTypeRoleIncome,
			Amount:   amount,
			Reason:   "role income",
			Metadata: map[string]any{"role_income_id": income.ID},
		}
		if err := uow.TransactionRepository().Record(ctx, tx); err != nil {
			return 0, err
		}
	}

	if total == 0 {
		return 0, uow.Commit()
	}

	account.Cash += total
	account.LifetimeEarned += total
	if err := uow.EconomyRepository().UpdateAccount(ctx, account); err != nil {
		return 0, err
	}
	return total, uow.Commit()
}
