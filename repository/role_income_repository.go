package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"warden/models"
)

// RoleIncomeRepository manages recurring role incomes for one guild
type RoleIncomeRepository struct {
	q       Queryable
	guildID int64
}

func newRoleIncomeRepository(q Queryable, guildID int64) *RoleIncomeRepository {
	return &RoleIncomeRepository{q: q, guildID: guildID}
}

// List returns every role income configured in the guild
func (r *RoleIncomeRepository) List(ctx context.Context) ([]*models.RoleIncome, error) {
	query := `
		SELECT id, guild_id, role_id, amount, interval_secs, created_at
		FROM role_incomes
		WHERE guild_id = $1
		ORDER BY id
	`
	rows, err := r.q.Query(ctx, query, r.guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to list role incomes in guild %d: %w", r.guildID, mapError(err))
	}
	defer rows.Close()

	var incomes []*models.RoleIncome
	for rows.Next() {
		var income models.RoleIncome
		var intervalSecs int64
		err := rows.Scan(&income.ID, &income.GuildID, &income.RoleID, &income.Amount, &intervalSecs, &income.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan role income: %w", mapError(err))
		}
		income.Interval = time.Duration(intervalSecs) * time.Second
		incomes = append(incomes, &income)
	}
	return incomes, rows.Err()
}

// Create adds a role income
func (r *RoleIncomeRepository) Create(ctx context.Context, income *models.RoleIncome) error {
	query := `
		INSERT INTO role_incomes (guild_id, role_id, amount, interval_secs)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	err := r.q.QueryRow(ctx, query, r.guildID, income.RoleID, income.Amount, int64(income.Interval.Seconds())).
		Scan(&income.ID, &income.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create role income for role %d in guild %d: %w", income.RoleID, r.guildID, mapError(err))
	}
	income.GuildID = r.guildID
	return nil
}

// Delete removes a role income and its per-user collection state
func (r *RoleIncomeRepository) Delete(ctx context.Context, incomeID int64) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM role_incomes WHERE guild_id = $1 AND id = $2`, r.guildID, incomeID)
	if err != nil {
		return fmt.Errorf("failed to delete role income %d in guild %d: %w", incomeID, r.guildID, mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("failed to delete role income %d in guild %d: %w", incomeID, r.guildID, mapError(pgx.ErrNoRows))
	}
	return nil
}

// GetLastCollected returns when a member last collected an income; zero time when never
func (r *RoleIncomeRepository) GetLastCollected(ctx context.Context, userID, incomeID int64) (time.Time, error) {
	query := `
		SELECT last_collected
		FROM user_role_incomes
		WHERE guild_id = $1 AND user_id = $2 AND role_income_id = $3
	`
	var last time.Time
	err := r.q.QueryRow(ctx, query, r.guildID, userID, incomeID).Scan(&last)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get last collection for user %d income %d: %w", userID, incomeID, mapError(err))
	}
	return last, nil
}

// SetLastCollected records a collection
func (r *RoleIncomeRepository) SetLastCollected(ctx context.Context, userID, incomeID int64, at time.Time) error {
	query := `
		INSERT INTO user_role_incomes (guild_id, user_id, role_income_id, last_collected)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (guild_id, user_id, role_income_id) DO UPDATE SET last_collected = EXCLUDED.last_collected
	`
	_, err := r.q.Exec(ctx, query, r.guildID, userID, incomeID, at)
	if err != nil {
		return fmt.Errorf("failed to set last collection for user %d income %d: %w", userID, incomeID, mapError(err))
	}
	return nil
}
