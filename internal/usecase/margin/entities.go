package margin

import (
	"math/big"
	"time"

	"margincore/internal/domain/offering"
	"margincore/internal/domain/position"
)

type OpenInput struct {
	Trader string
	// Caller-chosen nonce; (trader, nonce) derives the position id.
	Nonce              uint64
	Offering           offering.LoanOffering
	Principal          *big.Int
	DepositAmount      *big.Int
	DepositInHeldToken bool
	// Opaque counterparty order forwarded to the exchange.
	Order []byte
}

type IncreaseInput struct {
	PositionID         string
	Caller             string
	Offering           offering.LoanOffering
	AddedPrincipal     *big.Int
	DepositAmount      *big.Int
	DepositInHeldToken bool
	Order              []byte
}

type DepositInput struct {
	PositionID string
	Caller     string
	Amount     *big.Int
}

type CloseInput struct {
	PositionID        string
	Caller            string
	RequestedAmount   *big.Int
	PayoutRecipient   string
	PayoutInHeldToken bool
	Order             []byte
}

type CloseDirectInput struct {
	PositionID      string
	Caller          string
	RequestedAmount *big.Int
	PayoutRecipient string
}

type MarginCallInput struct {
	PositionID string
	Caller     string
	// Held-token deposit that would clear the call; may be zero.
	RequiredDeposit *big.Int
}

type ForceRecoverInput struct {
	PositionID string
	Caller     string
}

type PositionDTO struct {
	PositionID        string     `json:"position_id"`
	OwedToken         string     `json:"owed_token"`
	HeldToken         string     `json:"held_token"`
	Lender            string     `json:"lender"`
	Trader            string     `json:"trader"`
	Principal         string     `json:"principal"`
	ClosedAmount      string     `json:"closed_amount"`
	CollateralBalance string     `json:"collateral_balance"`
	RequiredDeposit   string     `json:"required_deposit"`
	InterestRateBps   uint64     `json:"interest_rate_bps"`
	CallTimeLimitSecs uint64     `json:"call_time_limit_secs"`
	MaxDurationSecs   uint64     `json:"max_duration_secs"`
	StartAt           time.Time  `json:"start_at"`
	CalledAt          *time.Time `json:"called_at,omitempty"`
}

// CloseDTO reports what a close settled.
type CloseDTO struct {
	PositionID       string `json:"position_id"`
	ClosedAmount     string `json:"closed_amount"`
	OwedSettled      string `json:"owed_settled"`
	CollateralFreed  string `json:"collateral_freed"`
	RemainingPrincip string `json:"remaining_principal"`
}

func toDTO(p *position.Position) *PositionDTO {
	return &PositionDTO{
		PositionID:        p.PositionID,
		OwedToken:         p.OwedToken,
		HeldToken:         p.HeldToken,
		Lender:            p.Lender,
		Trader:            p.Trader,
		Principal:         p.Principal.String(),
		ClosedAmount:      p.ClosedAmount.String(),
		CollateralBalance: p.CollateralBalance.String(),
		RequiredDeposit:   p.RequiredDeposit.String(),
		InterestRateBps:   p.InterestRateBps,
		CallTimeLimitSecs: p.CallTimeLimitSecs,
		MaxDurationSecs:   p.MaxDurationSecs,
		StartAt:           p.StartAt,
		CalledAt:          p.CalledAt,
	}
}
