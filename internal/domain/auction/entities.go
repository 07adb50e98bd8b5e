package auction

import (
	"errors"
	"time"

	"margincore/pkg/bigmath"
)

var (
	ErrNoBid     = errors.New("no live bid for position")
	ErrBidTooLow = errors.New("bid must strictly exceed the current bid")
	ErrNotBidder = errors.New("caller is not the live bidder")
)

// Bid is the single live auction bid on a called position: the bidder's
// owed-token offer is escrowed up front; the held-token collateral claim it
// reserves is recorded but stays in the position until resolution.
type Bid struct {
	ID         uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	PositionID string `gorm:"column:position_id;type:char(64);not null;uniqueIndex:ux_auction_bids_position_id" json:"position_id"`
	Bidder     string `gorm:"column:bidder;type:char(40);not null" json:"bidder"`

	// Owed-token amount escrowed for the lender at resolution.
	OfferAmount bigmath.Big `gorm:"column:offer_amount" json:"offer_amount"`
	// Held-token collateral the bid reserves; shrinks on partial closes.
	EscrowedCollateral bigmath.Big `gorm:"column:escrowed_collateral" json:"escrowed_collateral"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"-"`
}

func (Bid) TableName() string { return "auction_bids" }
