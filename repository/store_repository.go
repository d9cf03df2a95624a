package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"warden/models"
)

// StoreRepository manages the item catalogue and member inventories for one guild
type StoreRepository struct {
	q       Queryable
	guildID int64
}

func newStoreRepository(q Queryable, guildID int64) *StoreRepository {
	return &StoreRepository{q: q, guildID: guildID}
}

const storeItemColumns = `id, guild_id, name, description, price, sell_price, stock, required_role_id, created_at, updated_at`

// GetItem retrieves and row-locks an item, returning (nil, nil) when unknown
func (r *StoreRepository) GetItem(ctx context.Context, itemID int64) (*models.StoreItem, error) {
	query := `SELECT ` + storeItemColumns + ` FROM store_items WHERE guild_id = $1 AND id = $2 FOR UPDATE`
	item, err := scanStoreItem(r.q.QueryRow(ctx, query, r.guildID, itemID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get store item %d in guild %d: %w", itemID, r.guildID, mapError(err))
	}
	return item, nil
}

// GetItemByName retrieves and row-locks an item by case-insensitive name
func (r *StoreRepository) GetItemByName(ctx context.Context, name string) (*models.StoreItem, error) {
	query := `SELECT ` + storeItemColumns + ` FROM store_items WHERE guild_id = $1 AND LOWER(name) = LOWER($2) FOR UPDATE`
	item, err := scanStoreItem(r.q.QueryRow(ctx, query, r.guildID, name))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get store item %q in guild %d: %w", name, r.guildID, mapError(err))
	}
	return item, nil
}

// ListItems returns the guild's catalogue
func (r *StoreRepository) ListItems(ctx context.Context) ([]*models.StoreItem, error) {
	query := `SELECT ` + storeItemColumns + ` FROM store_items WHERE guild_id = $1 ORDER BY price`
	rows, err := r.q.Query(ctx, query, r.guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to list store items in guild %d: %w", r.guildID, mapError(err))
	}
	defer rows.Close()

	var items []*models.StoreItem
	for rows.Next() {
		item, err := scanStoreItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan store item: %w", mapError(err))
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// CreateItem inserts a catalogue entry
func (r *StoreRepository) CreateItem(ctx context.Context, item *models.StoreItem) error {
	query := `
		INSERT INTO store_items (guild_id, name, description, price, sell_price, stock, required_role_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`
	err := r.q.QueryRow(ctx, query,
		r.guildID, item.Name, item.Description, item.Price, item.SellPrice, item.Stock, item.RequiredRoleID,
	).Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create store item %q in guild %d: %w", item.Name, r.guildID, mapError(err))
	}
	item.GuildID = r.guildID
	return nil
}

// UpdateItem writes back a locked catalogue entry
func (r *StoreRepository) UpdateItem(ctx context.Context, item *models.StoreItem) error {
	query := `
		UPDATE store_items
		SET name = $3, description = $4, price = $5, sell_price = $6, stock = $7, required_role_id = $8, updated_at = NOW()
		WHERE guild_id = $1 AND id = $2
	`
	tag, err := r.q.Exec(ctx, query,
		r.guildID, item.ID, item.Name, item.Description, item.Price, item.SellPrice, item.Stock, item.RequiredRoleID,
	)
	if err != nil {
		return fmt.Errorf("failed to update store item %d in guild %d: %w", item.ID, r.guildID, mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("failed to update store item %d in guild %d: %w", item.ID, r.guildID, mapError(pgx.ErrNoRows))
	}
	return nil
}

// GetUserItem retrieves a member's holding, returning (nil, nil) when absent
func (r *StoreRepository) GetUserItem(ctx context.Context, userID, itemID int64) (*models.UserItem, error) {
	query := `
		SELECT guild_id, user_id, item_id, quantity, updated_at
		FROM user_items
		WHERE guild_id = $1 AND user_id = $2 AND item_id = $3
		FOR UPDATE
	`
	var item models.UserItem
	err := r.q.QueryRow(ctx, query, r.guildID, userID, itemID).Scan(
		&item.GuildID, &item.UserID, &item.ItemID, &item.Quantity, &item.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user item %d for user %d in guild %d: %w", itemID, userID, r.guildID, mapError(err))
	}
	return &item, nil
}

// AdjustUserItem adds delta to a member's holding, creating the row on first buy.
// The quantity check constraint rejects selling below zero with a Conflict.
func (r *StoreRepository) AdjustUserItem(ctx context.Context, userID, itemID, delta int64) error {
	query := `
		INSERT INTO user_items (guild_id, user_id, item_id, quantity)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (guild_id, user_id, item_id) DO UPDATE SET
			quantity = user_items.quantity + EXCLUDED.quantity,
			updated_at = NOW()
	`
	_, err := r.q.Exec(ctx, query, r.guildID, userID, itemID, delta)
	if err != nil {
		return fmt.Errorf("failed to adjust user item %d for user %d in guild %d: %w", itemID, userID, r.guildID, mapError(err))
	}
	return nil
}

func scanStoreItem(row pgx.Row) (*models.StoreItem, error) {
	var item models.StoreItem
	err := row.Scan(
		&item.ID,
		&item.GuildID,
		&item.Name,
		&item.Description,
		&item.Price,
		&item.SellPrice,
		&item.Stock,
		&item.RequiredRoleID,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &item, nil
}
