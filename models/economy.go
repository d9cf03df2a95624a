package models

import (
	"time"
)

// EarnAction is one of the timed earning commands
type EarnAction string

const (
	EarnActionWork  EarnAction = "work"
	EarnActionChore EarnAction = "chore"
	EarnActionCrime EarnAction = "crime"
)

// FinePolicyType selects how a failed risky action is fined
type FinePolicyType string

const (
	FinePolicyPercent FinePolicyType = "percent"
	FinePolicyFixed   FinePolicyType = "fixed"
)

// PayoutRange bounds a random payout
type PayoutRange struct {
	Min int64 `json:"min"`
	Max int64 `json:"max"`
}

// EconomySettings holds a guild's economy configuration
type EconomySettings struct {
	GuildID         int64          `db:"guild_id"`
	CurrencySymbol  string         `db:"currency_symbol"`
	StartingBalance int64          `db:"starting_balance"`
	MaxBalance      int64          `db:"max_balance"`

	WorkPayout  PayoutRange `db:"work_payout"`
	ChorePayout PayoutRange `db:"chore_payout"`
	CrimePayout PayoutRange `db:"crime_payout"`

	WorkCooldown  time.Duration `db:"work_cooldown"`
	ChoreCooldown time.Duration `db:"chore_cooldown"`
	CrimeCooldown time.Duration `db:"crime_cooldown"`

	// Fail rates for risky actions, in [0,1]
	CrimeFailRate float64 `db:"crime_fail_rate"`
	ChoreFailRate float64 `db:"chore_fail_rate"`

	FinePolicy FinePolicyType `db:"fine_policy"`
	FineValue  int64          `db:"fine_value"` // percent when policy=percent, amount when fixed

	// Passive income per qualifying chat message
	ChatIncomeEnabled  bool          `db:"chat_income_enabled"`
	ChatIncomeAmount   int64         `db:"chat_income_amount"`
	ChatIncomeCooldown time.Duration `db:"chat_income_cooldown"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// DefaultEconomySettings returns the safe defaults applied at first mutation
func DefaultEconomySettings(guildID int64) *EconomySettings {
	return &EconomySettings{
		GuildID:            guildID,
		CurrencySymbol:     "$",
		StartingBalance:    500,
		MaxBalance:         1_000_000_000,
		WorkPayout:         PayoutRange{Min: 50, Max: 250},
		ChorePayout:        PayoutRange{Min: 20, Max: 120},
		CrimePayout:        PayoutRange{Min: 200, Max: 1000},
		WorkCooldown:       1 * time.Hour,
		ChoreCooldown:      30 * time.Minute,
		CrimeCooldown:      2 * time.Hour,
		CrimeFailRate:      0.40,
		ChoreFailRate:      0.10,
		FinePolicy:         FinePolicyPercent,
		FineValue:          20,
		ChatIncomeEnabled:  false,
		ChatIncomeAmount:   1,
		ChatIncomeCooldown: time.Minute,
	}
}

// Payout returns the payout range for an action
func (s *EconomySettings) Payout(action EarnAction) PayoutRange {
	switch action {
	case EarnActionWork:
		return s.WorkPayout
	case EarnActionChore:
		return s.ChorePayout
	default:
		return s.CrimePayout
	}
}

// Cooldown returns the cooldown for an action
func (s *EconomySettings) Cooldown(action EarnAction) time.Duration {
	switch action {
	case EarnActionWork:
		return s.WorkCooldown
	case EarnActionChore:
		return s.ChoreCooldown
	default:
		return s.CrimeCooldown
	}
}

// FailRate returns the fail rate for an action; zero for non-risky actions
func (s *EconomySettings) FailRate(action EarnAction) float64 {
	switch action {
	case EarnActionCrime:
		return s.CrimeFailRate
	case EarnActionChore:
		return s.ChoreFailRate
	default:
		return 0
	}
}

// UserEconomy holds one member's balances and action timestamps
type UserEconomy struct {
	GuildID        int64                    `db:"guild_id"`
	UserID         int64                    `db:"user_id"`
	Cash           int64                    `db:"cash"`
	Bank           int64                    `db:"bank"`
	LifetimeEarned int64                    `db:"lifetime_earned"`
	LastActions    map[EarnAction]time.Time `db:"last_actions"`
	LastChatIncome time.Time                `db:"last_chat_income"`
	CreatedAt      time.Time                `db:"created_at"`
	UpdatedAt      time.Time                `db:"updated_at"`
}

// Total returns cash plus bank
func (u *UserEconomy) Total() int64 {
	return u.Cash + u.Bank
}

// TransactionType classifies a ledger row
type TransactionType string

const (
	TransactionTypeInitial    TransactionType = "initial"
	TransactionTypeDeposit    TransactionType = "deposit"
	TransactionTypeWithdraw   TransactionType = "withdraw"
	TransactionTypeTransferIn  TransactionType = "transfer_in"
	TransactionTypeTransferOut TransactionType = "transfer_out"
	TransactionTypeEarn       TransactionType = "earn"
	TransactionTypeFine       TransactionType = "fine"
	TransactionTypeGrant      TransactionType = "grant"
	TransactionTypePurchase   TransactionType = "purchase"
	TransactionTypeSale       TransactionType = "sale"
	TransactionTypeChatIncome TransactionType = "chat_income"
	TransactionTypeRoleIncome TransactionType = "role_income"
)

// EconomyTransaction is one append-only ledger row. Amount is signed: credits
// are positive, debits negative. Deposits and withdrawals move money between
// cash and bank without changing the total and carry amount zero with the
// moved value in Metadata.
type EconomyTransaction struct {
	ID          int64           `db:"id"`
	GuildID     int64           `db:"guild_id"`
	UserID      int64           `db:"user_id"`
	Type        TransactionType `db:"type"`
	Amount      int64           `db:"amount"`
	Reason      string          `db:"reason"`
	ModeratorID *int64          `db:"moderator_id"`
	Metadata    map[string]any  `db:"metadata"`
	CreatedAt   time.Time       `db:"created_at"`
}
