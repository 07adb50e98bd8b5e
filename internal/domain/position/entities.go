package position

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"margincore/pkg/bigmath"
)

var (
	ErrNotFound               = errors.New("position not found")
	ErrAlreadyExists          = errors.New("position id already used")
	ErrNotTrader              = errors.New("caller is not the position trader")
	ErrNotLender              = errors.New("caller is not the position lender")
	ErrAlreadyCalled          = errors.New("position already margin-called")
	ErrNotCalled              = errors.New("no margin call outstanding")
	ErrMatured                = errors.New("position past its maximum duration")
	ErrRecoveryNotReady       = errors.New("force recovery deadline not reached")
	ErrInvalidAmount          = errors.New("amount must be positive")
	ErrCollateralRate         = errors.New("collateral below minimum held-token rate")
	ErrInsufficientCollateral = errors.New("collateral share cannot cover the amount owed")
	ErrWorseTerms             = errors.New("offering terms are laxer than the position's")
	ErrConsentDenied          = errors.New("delegate did not authorize the action")
)

// Position is an open margin loan: borrowed owed-token principal backed by
// held-token collateral. The row exists iff principal > 0; reaching zero is
// terminal and the public position_id is never reused.
type Position struct {
	// Internal numeric PK
	ID uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	// Public identifier: sha256(trader, nonce), 64-char lowercase hex
	PositionID string `gorm:"column:position_id;type:char(64);not null;uniqueIndex:ux_positions_position_id" json:"position_id"`

	OwedToken string `gorm:"column:owed_token;type:char(40);not null" json:"owed_token"`
	HeldToken string `gorm:"column:held_token;type:char(40);not null" json:"held_token"`
	Lender    string `gorm:"column:lender;type:char(40);not null;index" json:"lender"`
	Trader    string `gorm:"column:trader;type:char(40);not null;index" json:"trader"`

	Principal         bigmath.Big `gorm:"column:principal" json:"principal"`
	ClosedAmount      bigmath.Big `gorm:"column:closed_amount" json:"closed_amount"`
	CollateralBalance bigmath.Big `gorm:"column:collateral_balance" json:"collateral_balance"`
	// Held-token deposit that clears an outstanding margin call; zero unless called.
	RequiredDeposit bigmath.Big `gorm:"column:required_deposit" json:"required_deposit"`

	InterestRateBps    uint64 `gorm:"column:interest_rate_bps" json:"interest_rate_bps"`
	InterestPeriodSecs uint64 `gorm:"column:interest_period_secs" json:"interest_period_secs"`
	CallTimeLimitSecs  uint64 `gorm:"column:call_time_limit_secs" json:"call_time_limit_secs"`
	MaxDurationSecs    uint64 `gorm:"column:max_duration_secs" json:"max_duration_secs"`

	StartAt  time.Time  `gorm:"column:start_at;not null" json:"start_at"`
	CalledAt *time.Time `gorm:"column:called_at" json:"called_at,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"-"`
	// Terminal positions are tombstoned, never erased: the unique index on
	// position_id keeps a closed id unreachable forever.
	DeletedAt gorm.DeletedAt `gorm:"column:deleted_at;index" json:"-"`
}

func (Position) TableName() string { return "positions" }

func (p *Position) IsCalled() bool { return p.CalledAt != nil }

func (p *Position) InterestPeriod() time.Duration {
	return time.Duration(p.InterestPeriodSecs) * time.Second
}

func (p *Position) MaxDuration() time.Duration {
	return time.Duration(p.MaxDurationSecs) * time.Second
}

func (p *Position) CallTimeLimit() time.Duration {
	return time.Duration(p.CallTimeLimitSecs) * time.Second
}

// MaturesAt is the hard lifetime cap after which force recovery is
// unconditionally available.
func (p *Position) MaturesAt() time.Time { return p.StartAt.Add(p.MaxDuration()) }

// InterestElapsed caps the interest-bearing window at the position's maximum
// duration.
func (p *Position) InterestElapsed(now time.Time) time.Duration {
	elapsed := now.Sub(p.StartAt)
	if elapsed < 0 {
		return 0
	}
	if max := p.MaxDuration(); elapsed > max {
		return max
	}
	return elapsed
}
