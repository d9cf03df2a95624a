package repository

import (
	"context"
	"fmt"
	"time"

	"warden/models"
)

// TransactionRepository appends and queries the economy ledger for one guild
type TransactionRepository struct {
	q       Queryable
	guildID int64
}

func newTransactionRepository(q Queryable, guildID int64) *TransactionRepository {
	return &TransactionRepository{q: q, guildID: guildID}
}

// Record appends one ledger row
func (r *TransactionRepository) Record(ctx context.Context, tx *models.EconomyTransaction) error {
	query := `
		INSERT INTO economy_transactions (guild_id, user_id, type, amount, reason, moderator_id, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`
	if tx.Metadata == nil {
		tx.Metadata = map[string]any{}
	}
	err := r.q.QueryRow(ctx, query,
		r.guildID, tx.UserID, tx.Type, tx.Amount, tx.Reason, tx.ModeratorID, tx.Metadata,
	).Scan(&tx.ID, &tx.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record transaction for user %d in guild %d: %w", tx.UserID, r.guildID, mapError(err))
	}
	tx.GuildID = r.guildID
	return nil
}

// SumByUser returns the signed sum of a user's ledger rows
func (r *TransactionRepository) SumByUser(ctx context.Context, userID int64) (int64, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM economy_transactions
		WHERE guild_id = $1 AND user_id = $2
	`
	var sum int64
	if err := r.q.QueryRow(ctx, query, r.guildID, userID).Scan(&sum); err != nil {
		return 0, fmt.Errorf("failed to sum transactions for user %d in guild %d: %w", userID, r.guildID, mapError(err))
	}
	return sum, nil
}

// ListByUser returns a user's most recent ledger rows
func (r *TransactionRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]*models.EconomyTransaction, error) {
	query := `
		SELECT id, guild_id, user_id, type, amount, reason, moderator_id, metadata, created_at
		FROM economy_transactions
		WHERE guild_id = $1 AND user_id = $2
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`
	rows, err := r.q.Query(ctx, query, r.guildID, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions for user %d in guild %d: %w", userID, r.guildID, mapError(err))
	}
	defer rows.Close()

	var txs []*models.EconomyTransaction
	for rows.Next() {
		var tx models.EconomyTransaction
		err := rows.Scan(
			&tx.ID, &tx.GuildID, &tx.UserID, &tx.Type, &tx.Amount,
			&tx.Reason, &tx.ModeratorID, &tx.Metadata, &tx.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", mapError(err))
		}
		txs = append(txs, &tx)
	}
	return txs, rows.Err()
}

// PurgeOlderThan deletes ledger rows older than the cutoff, returning the count
func (r *TransactionRepository) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM economy_transactions WHERE guild_id = $1 AND created_at < $2`
	tag, err := r.q.Exec(ctx, query, r.guildID, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge transactions in guild %d: %w", r.guildID, mapError(err))
	}
	return tag.RowsAffected(), nil
}
