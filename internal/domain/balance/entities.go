package balance

import (
	"errors"
	"time"

	"margincore/pkg/bigmath"
)

var (
	ErrInsufficient  = errors.New("insufficient balance")
	ErrInvalidAmount = errors.New("amount must be positive")
)

// Balance is the vault ledger: one row per (token, party). Escrow accounts
// use synthetic party names ("position:<id>", "auction:<id>") so every unit a
// transition moves is visible to conservation checks.
type Balance struct {
	ID     uint64      `gorm:"column:id;primaryKey;autoIncrement"`
	Token  string      `gorm:"column:token;type:char(40);not null;uniqueIndex:ux_balances_token_party,priority:1" json:"token"`
	Party  string      `gorm:"column:party;type:varchar(72);not null;uniqueIndex:ux_balances_token_party,priority:2" json:"party"`
	Amount bigmath.Big `gorm:"column:amount" json:"amount"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"-"`
}

func (Balance) TableName() string { return "balances" }

// PositionEscrow is the vault party holding a position's collateral.
func PositionEscrow(positionID string) string { return "position:" + positionID }

// AuctionEscrow is the vault party holding a bid's offer amount.
func AuctionEscrow(positionID string) string { return "auction:" + positionID }
