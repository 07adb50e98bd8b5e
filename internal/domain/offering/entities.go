package offering

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"math/big"
	"strconv"
	"strings"
	"time"

	"margincore/pkg/bigmath"
)

var (
	ErrExpired       = errors.New("offering expired")
	ErrInsufficient  = errors.New("offering has insufficient amount available")
	ErrNotLender     = errors.New("caller is not the offering lender")
	ErrNotAuthorized = errors.New("offering signature not authorized")
	ErrTakerMismatch = errors.New("offering restricted to a different taker")
	ErrAmountBounds  = errors.New("principal outside offering min/max bounds")
	ErrInvalidTerms  = errors.New("offering terms are inconsistent")
	ErrTokenMismatch = errors.New("offering tokens do not match the position")
)

// LoanOffering is a lender's standing, partially-fillable commitment. It is
// authored and signed off-platform and travels with each request; only its
// fill accounting (FillState) is persisted, keyed by the content hash.
type LoanOffering struct {
	Lender       string `json:"lender"`
	Signer       string `json:"signer,omitempty"` // defaults to lender
	Owner        string `json:"owner,omitempty"`  // defaults to lender
	Taker        string `json:"taker,omitempty"`  // empty = anyone may open
	FeeRecipient string `json:"fee_recipient,omitempty"`

	OwedToken string `json:"owed_token"`
	HeldToken string `json:"held_token"`
	FeeToken  string `json:"fee_token,omitempty"`

	MaxAmount bigmath.Big `json:"max_amount"`
	MinAmount bigmath.Big `json:"min_amount"`
	// Minimum held-token amount the position must hold if MaxAmount were
	// borrowed; scales down pro rata for smaller fills.
	MinHeldToken bigmath.Big `json:"min_held_token"`

	// Fee owed to FeeRecipient at a full MaxAmount fill, pro-rated per fill.
	LenderFee bigmath.Big `json:"lender_fee"`
	TakerFee  bigmath.Big `json:"taker_fee"`

	InterestRateBps    uint64    `json:"interest_rate_bps"`
	InterestPeriodSecs uint64    `json:"interest_period_secs"`
	CallTimeLimitSecs  uint64    `json:"call_time_limit_secs"`
	MaxDurationSecs    uint64    `json:"max_duration_secs"`
	ExpiresAt          time.Time `json:"expires_at"`

	Salt      string `json:"salt"`
	Signature string `json:"signature,omitempty"`
}

// EffectiveSigner is who must have signed the offering.
func (o *LoanOffering) EffectiveSigner() string {
	if o.Signer != "" {
		return o.Signer
	}
	return o.Lender
}

// EffectiveOwner receives the loan-side rights (repayments, margin calls).
func (o *LoanOffering) EffectiveOwner() string {
	if o.Owner != "" {
		return o.Owner
	}
	return o.Lender
}

// Hash content-addresses the offering: identical field tuples always produce
// the same id, so all fills against the same terms share one FillState row.
// The signature is excluded: it attests the terms, it is not a term.
func (o *LoanOffering) Hash() string {
	fields := []string{
		o.Lender, o.Signer, o.Owner, o.Taker, o.FeeRecipient,
		o.OwedToken, o.HeldToken, o.FeeToken,
		o.MaxAmount.String(), o.MinAmount.String(), o.MinHeldToken.String(),
		o.LenderFee.String(), o.TakerFee.String(),
		strconv.FormatUint(o.InterestRateBps, 10),
		strconv.FormatUint(o.InterestPeriodSecs, 10),
		strconv.FormatUint(o.CallTimeLimitSecs, 10),
		strconv.FormatUint(o.MaxDurationSecs, 10),
		strconv.FormatInt(o.ExpiresAt.UTC().Unix(), 10),
		o.Salt,
	}
	sum := sha256.Sum256([]byte(strings.Join(fields, "|")))
	return hex.EncodeToString(sum[:])
}

func (o *LoanOffering) Expired(now time.Time) bool { return !now.Before(o.ExpiresAt) }

// FillState tracks, per offering id, how much principal has been drawn across
// all positions and how much the lender has revoked. Both fields only grow;
// filled + cancelled never exceeds max_amount.
type FillState struct {
	ID         uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	OfferingID string `gorm:"column:offering_id;type:char(64);not null;uniqueIndex:ux_offering_fills_offering_id" json:"offering_id"`
	Lender     string `gorm:"column:lender;type:char(40);not null" json:"lender"`

	MaxAmount bigmath.Big `gorm:"column:max_amount" json:"max_amount"`
	Filled    bigmath.Big `gorm:"column:filled" json:"filled"`
	Cancelled bigmath.Big `gorm:"column:cancelled" json:"cancelled"`

	// Approved substitutes for signature verification on future commits.
	Approved  bool      `gorm:"column:approved" json:"approved"`
	ExpiresAt time.Time `gorm:"column:expires_at;not null" json:"expires_at"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"-"`
}

func (FillState) TableName() string { return "offering_fills" }

// Available is max_amount - filled - cancelled, clamped at zero.
func (f *FillState) Available() *big.Int {
	avail := f.MaxAmount.Int()
	avail.Sub(avail, f.Filled.Int())
	avail.Sub(avail, f.Cancelled.Int())
	if avail.Sign() < 0 {
		avail.SetInt64(0)
	}
	return avail
}
