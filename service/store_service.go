package service

import (
	"context"
	"slices"

	"warden/apperr"
	"warden/events"
	"warden/models"
)

// StoreService implements the guild item catalogue
type StoreService interface {
	ListItems(ctx context.Context, guildID int64) ([]*models.StoreItem, error)
	CreateItem(ctx context.Context, guildID int64, item *models.StoreItem) error
	Buy(ctx context.Context, guildID, userID int64, itemName string, memberRoleIDs []int64) (*PurchaseResult, error)
	Sell(ctx context.Context, guildID, userID int64, itemName string) (*SaleResult, error)
	Inventory(ctx context.Context, guildID, userID int64) ([]*InventoryLine, error)
}

// PurchaseResult reports a completed purchase
type PurchaseResult struct {
	Item *models.StoreItem
	Cash int64
}

// SaleResult reports a completed sale
type SaleResult struct {
	Item     *models.StoreItem
	Proceeds int64
	Cash     int64
}

// InventoryLine pairs an item with a held quantity
type InventoryLine struct {
	Item     *models.StoreItem
	Quantity int64
}

type storeService struct {
	uowFactory UnitOfWorkFactory
	bus        *events.Bus
}

// NewStoreService creates a new store service
func NewStoreService(uowFactory UnitOfWorkFactory, bus *events.Bus) StoreService {
	return &storeService{uowFactory: uowFactory, bus: bus}
}

func (s *storeService) ListItems(ctx context.Context, guildID int64) ([]*models.StoreItem, error) {
	uow := s.uowFactory.Create(guildID)
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	items, err := uow.StoreRepository().ListItems(ctx)
	if err != nil {
		return nil, err
	}
	return items, uow.Commit()
}

func (s *storeService) CreateItem(ctx context.Context, guildID int64, item *models.StoreItem) error {
	if item.Name == "" {
		return apperr.New(apperr.KindBadArgument, "item name is required")
	}
	if item.Price < 0 {
		return apperr.New(apperr.KindBadArgument, "price cannot be negative")
	}
	if item.SellPrice != nil && *item.SellPrice > item.Price {
		return apperr.New(apperr.KindBadArgument, "sell price cannot exceed the purchase price")
	}

	uow := s.uowFactory.Create(guildID)
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	if err := uow.StoreRepository().CreateItem(ctx, item); err != nil {
		if apperr.Is(err, apperr.KindConflict) {
			return apperr.New(apperr.KindConflict, "an item named %q already exists", item.Name)
		}
		return err
	}
	return uow.Commit()
}

// Buy purchases one unit. Stock, price and role requirements are all checked
// against row-locked state inside the transaction.
func (s *storeService) Buy(ctx context.Context, guildID, userID int64, itemName string, memberRoleIDs []int64) (*PurchaseResult, error) {
	uow := s.uowFactory.Create(guildID)
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	item, err := uow.StoreRepository().GetItemByName(ctx, itemName)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, apperr.New(apperr.KindNotFound, "no item named %q", itemName)
	}
	if !item.InStock() {
		return nil, apperr.New(apperr.KindConflict, "%s is out of stock", item.Name)
	}
	if item.RequiredRoleID != nil && !slices.Contains(memberRoleIDs, *item.RequiredRoleID) {
		return nil, apperr.New(apperr.KindForbidden, "you need a specific role to buy %s", item.Name)
	}

	account, err := uow.EconomyRepository().GetAccountForUpdate(ctx, userID)
	if err != nil {
		return nil, err
	}
	if account == nil || account.Cash < item.Price {
		return nil, apperr.New(apperr.KindBadArgument, "insufficient cash for %s", item.Name)
	}

	account.Cash -= item.Price
	if err := uow.EconomyRepository().UpdateAccount(ctx, account); err != nil {
		return nil, err
	}
	if item.Stock > 0 {
		item.Stock--
		if err := uow.StoreRepository().UpdateItem(ctx, item); err != nil {
			return nil, err
		}
	}
	if err := uow.StoreRepository().AdjustUserItem(ctx, userID, item.ID, 1); err != nil {
		return nil, err
	}

	tx := &models.EconomyTransaction{
		UserID:   userID,
		Type:     models.TransactionTypePurchase,
		Amount:   -item.Price,
		Reason:   item.Name,
		Metadata: map[string]any{"item_id": item.ID},
	}
	if err := uow.TransactionRepository().Record(ctx, tx); err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, err
	}
	s.emitTransaction(ctx, guildID, userID, tx)
	return &PurchaseResult{Item: item, Cash: account.Cash}, nil
}

// Sell returns one unit to the store at the configured sell price
func (s *storeService) Sell(ctx context.Context, guildID, userID int64, itemName string) (*SaleResult, error) {
	uow := s.uowFactory.Create(guildID)
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	item, err := uow.StoreRepository().GetItemByName(ctx, itemName)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, apperr.New(apperr.KindNotFound, "no item named %q", itemName)
	}
	if item.SellPrice == nil {
		return nil, apperr.New(apperr.KindBadArgument, "%s cannot be sold back", item.Name)
	}

	holding, err := uow.StoreRepository().GetUserItem(ctx, userID, item.ID)
	if err != nil {
		return nil, err
	}
	if holding == nil || holding.Quantity < 1 {
		return nil, apperr.New(apperr.KindBadArgument, "you do not own any %s", item.Name)
	}

	account, err := uow.EconomyRepository().GetAccountForUpdate(ctx, userID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, apperr.New(apperr.KindNotFound, "no account for user")
	}

	settings, err := getOrCreateSettings(ctx, uow, guildID)
	if err != nil {
		return nil, err
	}
	proceeds := *item.SellPrice
	if account.Total()+proceeds > settings.MaxBalance {
		return nil, apperr.New(apperr.KindConflict, "sale would exceed the maximum balance")
	}

	account.Cash += proceeds
	if err := uow.EconomyRepository().UpdateAccount(ctx, account); err != nil {
		return nil, err
	}
	if err := uow.StoreRepository().AdjustUserItem(ctx, userID, item.ID, -1); err != nil {
		return nil, err
	}
	if item.Stock >= 0 {
		item.Stock++
		if err := uow.StoreRepository().UpdateItem(ctx, item); err != nil {
			return nil, err
		}
	}

	tx := &models.EconomyTransaction{
		UserID:   userID,
		Type:     models.TransactionTypeSale,
		Amount:   proceeds,
		Reason:   item.Name,
		Metadata: map[string]any{"item_id": item.ID},
	}
	if err := uow.TransactionRepository().Record(ctx, tx); err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, err
	}
	s.emitTransaction(ctx, guildID, userID, tx)
	return &SaleResult{Item: item, Proceeds: proceeds, Cash: account.Cash}, nil
}

func (s *storeService) Inventory(ctx context.Context, guildID, userID int64) ([]*InventoryLine, error) {
	uow := s.uowFactory.Create(guildID)
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	items, err := uow.StoreRepository().ListItems(ctx)
	if err != nil {
		return nil, err
	}

	var lines []*InventoryLine
	for _, item := range items {
		holding, err := uow.StoreRepository().GetUserItem(ctx, userID, item.ID)
		if err != nil {
			return nil, err
		}
		if holding != nil && holding.Quantity > 0 {
			lines = append(lines, &InventoryLine{Item: item, Quantity: holding.Quantity})
		}
	}
	return lines, uow.Commit()
}

func (s *storeService) emitTransaction(ctx context.Context, guildID, userID int64, tx *models.EconomyTransaction) {
	if s.bus == nil {
		return
	}
	s.bus.Emit(ctx, events.TransactionEvent{
		GuildID:         guildID,
		UserID:          userID,
		TransactionType: string(tx.Type),
		Amount:          tx.Amount,
		Reason:          tx.Reason,
	})
}
