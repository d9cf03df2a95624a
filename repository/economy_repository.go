package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"

	"warden/models"
)

// EconomyRepository manages balances and economy settings for one guild
type EconomyRepository struct {
	q       Queryable
	guildID int64
}

func newEconomyRepository(q Queryable, guildID int64) *EconomyRepository {
	return &EconomyRepository{q: q, guildID: guildID}
}

// GetSettings retrieves the guild's economy settings, returning (nil, nil) when unset
func (r *EconomyRepository) GetSettings(ctx context.Context) (*models.EconomySettings, error) {
	query := `
		SELECT guild_id, currency_symbol, starting_balance, max_balance,
			work_payout, chore_payout, crime_payout,
			work_cooldown_secs, chore_cooldown_secs, crime_cooldown_secs,
			crime_fail_rate, chore_fail_rate, fine_policy, fine_value,
			chat_income_enabled, chat_income_amount, chat_income_cooldown_secs,
			created_at, updated_at
		FROM economy_settings
		WHERE guild_id = $1
	`
	var s models.EconomySettings
	var workSecs, choreSecs, crimeSecs, chatSecs int64
	err := r.q.QueryRow(ctx, query, r.guildID).Scan(
		&s.GuildID, &s.CurrencySymbol, &s.StartingBalance, &s.MaxBalance,
		&s.WorkPayout, &s.ChorePayout, &s.CrimePayout,
		&workSecs, &choreSecs, &crimeSecs,
		&s.CrimeFailRate, &s.ChoreFailRate, &s.FinePolicy, &s.FineValue,
		&s.ChatIncomeEnabled, &s.ChatIncomeAmount, &chatSecs,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get economy settings for guild %d: %w", r.guildID, mapError(err))
	}
	s.WorkCooldown = time.Duration(workSecs) * time.Second
	s.ChoreCooldown = time.Duration(choreSecs) * time.Second
	s.CrimeCooldown = time.Duration(crimeSecs) * time.Second
	s.ChatIncomeCooldown = time.Duration(chatSecs) * time.Second
	return &s, nil
}

// UpsertSettings inserts or updates the guild's economy settings
func (r *EconomyRepository) UpsertSettings(ctx context.Context, s *models.EconomySettings) error {
	query := `
		INSERT INTO economy_settings (
			guild_id, currency_symbol, starting_balance, max_balance,
			work_payout, chore_payout, crime_payout,
			work_cooldown_secs, chore_cooldown_secs, crime_cooldown_secs,
			crime_fail_rate, chore_fail_rate, fine_policy, fine_value,
			chat_income_enabled, chat_income_amount, chat_income_cooldown_secs
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (guild_id) DO UPDATE SET
			currency_symbol = EXCLUDED.currency_symbol,
			starting_balance = EXCLUDED.starting_balance,
			max_balance = EXCLUDED.max_balance,
			work_payout = EXCLUDED.work_payout,
			chore_payout = EXCLUDED.chore_payout,
			crime_payout = EXCLUDED.crime_payout,
			work_cooldown_secs = EXCLUDED.work_cooldown_secs,
			chore_cooldown_secs = EXCLUDED.chore_cooldown_secs,
			crime_cooldown_secs = EXCLUDED.crime_cooldown_secs,
			crime_fail_rate = EXCLUDED.crime_fail_rate,
			chore_fail_rate = EXCLUDED.chore_fail_rate,
			fine_policy = EXCLUDED.fine_policy,
			fine_value = EXCLUDED.fine_value,
			chat_income_enabled = EXCLUDED.chat_income_enabled,
			chat_income_amount = EXCLUDED.chat_income_amount,
			chat_income_cooldown_secs = EXCLUDED.chat_income_cooldown_secs,
			updated_at = NOW()
		RETURNING created_at, updated_at
	`
	err := r.q.QueryRow(ctx, query,
		r.guildID, s.CurrencySymbol, s.StartingBalance, s.MaxBalance,
		s.WorkPayout, s.ChorePayout, s.CrimePayout,
		int64(s.WorkCooldown.Seconds()), int64(s.ChoreCooldown.Seconds()), int64(s.CrimeCooldown.Seconds()),
		s.CrimeFailRate, s.ChoreFailRate, s.FinePolicy, s.FineValue,
		s.ChatIncomeEnabled, s.ChatIncomeAmount, int64(s.ChatIncomeCooldown.Seconds()),
	).Scan(&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert economy settings for guild %d: %w", r.guildID, mapError(err))
	}
	s.GuildID = r.guildID
	return nil
}

const accountColumns = `guild_id, user_id, cash, bank, lifetime_earned, last_actions, last_chat_income, created_at, updated_at`

// GetAccount retrieves an account, returning (nil, nil) when unknown
func (r *EconomyRepository) GetAccount(ctx context.Context, userID int64) (*models.UserEconomy, error) {
	query := `SELECT ` + accountColumns + ` FROM user_economies WHERE guild_id = $1 AND user_id = $2`
	account, err := scanAccount(r.q.QueryRow(ctx, query, r.guildID, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account for user %d in guild %d: %w", userID, r.guildID, mapError(err))
	}
	return account, nil
}

// GetAccountForUpdate row-locks and retrieves an account
func (r *EconomyRepository) GetAccountForUpdate(ctx context.Context, userID int64) (*models.UserEconomy, error) {
	query := `SELECT ` + accountColumns + ` FROM user_economies WHERE guild_id = $1 AND user_id = $2 FOR UPDATE`
	account, err := scanAccount(r.q.QueryRow(ctx, query, r.guildID, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock account for user %d in guild %d: %w", userID, r.guildID, mapError(err))
	}
	return account, nil
}

// GetAccountsForUpdate locks several accounts. The ORDER BY makes every
// caller acquire row locks in ascending user-id order, which prevents
// deadlock between concurrent multi-row mutations.
func (r *EconomyRepository) GetAccountsForUpdate(ctx context.Context, userIDs []int64) ([]*models.UserEconomy, error) {
	sorted := append([]int64(nil), userIDs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	query := `SELECT ` + accountColumns + ` FROM user_economies
		WHERE guild_id = $1 AND user_id = ANY($2)
		ORDER BY user_id FOR UPDATE`
	rows, err := r.q.Query(ctx, query, r.guildID, sorted)
	if err != nil {
		return nil, fmt.Errorf("failed to lock accounts in guild %d: %w", r.guildID, mapError(err))
	}
	defer rows.Close()

	var accounts []*models.UserEconomy
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", mapError(err))
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

// CreateAccount inserts a new account row
func (r *EconomyRepository) CreateAccount(ctx context.Context, account *models.UserEconomy) error {
	query := `
		INSERT INTO user_economies (guild_id, user_id, cash, bank, lifetime_earned, last_actions)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`
	if account.LastActions == nil {
		account.LastActions = map[models.EarnAction]time.Time{}
	}
	err := r.q.QueryRow(ctx, query,
		r.guildID, account.UserID, account.Cash, account.Bank, account.LifetimeEarned, account.LastActions,
	).Scan(&account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create account for user %d in guild %d: %w", account.UserID, r.guildID, mapError(err))
	}
	account.GuildID = r.guildID
	return nil
}

// UpdateAccount writes back a locked account row
func (r *EconomyRepository) UpdateAccount(ctx context.Context, account *models.UserEconomy) error {
	query := `
		UPDATE user_economies
		SET cash = $3, bank = $4, lifetime_earned = $5, last_actions = $6, last_chat_income = $7, updated_at = NOW()
		WHERE guild_id = $1 AND user_id = $2
	`
	tag, err := r.q.Exec(ctx, query,
		r.guildID, account.UserID, account.Cash, account.Bank,
		account.LifetimeEarned, account.LastActions, account.LastChatIncome,
	)
	if err != nil {
		return fmt.Errorf("failed to update account for user %d in guild %d: %w", account.UserID, r.guildID, mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("failed to update account for user %d in guild %d: %w", account.UserID, r.guildID, mapError(pgx.ErrNoRows))
	}
	return nil
}

// TopBalances returns the richest accounts by total balance
func (r *EconomyRepository) TopBalances(ctx context.Context, limit int) ([]*models.UserEconomy, error) {
	query := `SELECT ` + accountColumns + ` FROM user_economies
		WHERE guild_id = $1
		ORDER BY cash + bank DESC
		LIMIT $2`
	rows, err := r.q.Query(ctx, query, r.guildID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list top balances in guild %d: %w", r.guildID, mapError(err))
	}
	defer rows.Close()

	var accounts []*models.UserEconomy
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", mapError(err))
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

// GetGameSettings retrieves the guild's game settings, returning (nil, nil) when unset
func (r *EconomyRepository) GetGameSettings(ctx context.Context) (*models.GameSettings, error) {
	query := `
		SELECT guild_id, min_bet, max_bet, win_probability, created_at, updated_at
		FROM game_settings
		WHERE guild_id = $1
	`
	var s models.GameSettings
	err := r.q.QueryRow(ctx, query, r.guildID).Scan(
		&s.GuildID, &s.MinBet, &s.MaxBet, &s.WinProbability, &s.CreatedAt, &s.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get game settings for guild %d: %w", r.guildID, mapError(err))
	}
	return &s, nil
}

// UpsertGameSettings inserts or updates the guild's game settings
func (r *EconomyRepository) UpsertGameSettings(ctx context.Context, s *models.GameSettings) error {
	query := `
		INSERT INTO game_settings (guild_id, min_bet, max_bet, win_probability)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (guild_id) DO UPDATE SET
			min_bet = EXCLUDED.min_bet,
			max_bet = EXCLUDED.max_bet,
			win_probability = EXCLUDED.win_probability,
			updated_at = NOW()
		RETURNING created_at, updated_at
	`
	err := r.q.QueryRow(ctx, query, r.guildID, s.MinBet, s.MaxBet, s.WinProbability).
		Scan(&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert game settings for guild %d: %w", r.guildID, mapError(err))
	}
	s.GuildID = r.guildID
	return nil
}

func scanAccount(row pgx.Row) (*models.UserEconomy, error) {
	var account models.UserEconomy
	err := row.Scan(
		&account.GuildID,
		&account.UserID,
		&account.Cash,
		&account.Bank,
		&account.LifetimeEarned,
		&account.LastActions,
		&account.LastChatIncome,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if account.LastActions == nil {
		account.LastActions = map[models.EarnAction]time.Time{}
	}
	return &account, nil
}
