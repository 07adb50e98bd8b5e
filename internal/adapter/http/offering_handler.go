package http

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	domain "margincore/internal/domain/offering"
	"margincore/internal/usecase/offering"
	"margincore/pkg/bigmath"
)

type OfferingHandler struct{ uc *offering.Usecase }

func NewOfferingHandler(uc *offering.Usecase) *OfferingHandler { return &OfferingHandler{uc: uc} }

// offeringReq is the wire form of a loan offering. It travels in full with
// every request that references one; only the fill accounting is persisted.
type offeringReq struct {
	Lender       string `json:"lender"         validate:"required,hex40"`
	Signer       string `json:"signer"         validate:"omitempty,hex40"`
	Owner        string `json:"owner"          validate:"omitempty,hex40"`
	Taker        string `json:"taker"          validate:"omitempty,hex40"`
	FeeRecipient string `json:"fee_recipient"  validate:"omitempty,hex40"`

	OwedToken string `json:"owed_token" validate:"required,hex40"`
	HeldToken string `json:"held_token" validate:"required,hex40"`
	FeeToken  string `json:"fee_token"  validate:"omitempty,hex40"`

	MaxAmount    string `json:"max_amount"     validate:"required,uintstr"`
	MinAmount    string `json:"min_amount"     validate:"omitempty,uintstr"`
	MinHeldToken string `json:"min_held_token" validate:"omitempty,uintstr"`
	LenderFee    string `json:"lender_fee"     validate:"omitempty,uintstr"`
	TakerFee     string `json:"taker_fee"      validate:"omitempty,uintstr"`

	InterestRateBps    uint64    `json:"interest_rate_bps"`
	InterestPeriodSecs uint64    `json:"interest_period_secs" validate:"required,gte=1"`
	CallTimeLimitSecs  uint64    `json:"call_time_limit_secs" validate:"required,gte=1"`
	MaxDurationSecs    uint64    `json:"max_duration_secs"    validate:"required,gte=1"`
	ExpiresAt          time.Time `json:"expires_at"           validate:"required"`

	Salt      string `json:"salt" validate:"required"`
	Signature string `json:"signature"`
}

func (r *offeringReq) toDomain() domain.LoanOffering {
	amount := func(s string) bigmath.Big {
		if s == "" {
			return bigmath.Big{}
		}
		b, _ := bigmath.FromString(s) // uintstr tag already vetted the format
		return b
	}
	return domain.LoanOffering{
		Lender:             r.Lender,
		Signer:             r.Signer,
		Owner:              r.Owner,
		Taker:              r.Taker,
		FeeRecipient:       r.FeeRecipient,
		OwedToken:          r.OwedToken,
		HeldToken:          r.HeldToken,
		FeeToken:           r.FeeToken,
		MaxAmount:          amount(r.MaxAmount),
		MinAmount:          amount(r.MinAmount),
		MinHeldToken:       amount(r.MinHeldToken),
		LenderFee:          amount(r.LenderFee),
		TakerFee:           amount(r.TakerFee),
		InterestRateBps:    r.InterestRateBps,
		InterestPeriodSecs: r.InterestPeriodSecs,
		CallTimeLimitSecs:  r.CallTimeLimitSecs,
		MaxDurationSecs:    r.MaxDurationSecs,
		ExpiresAt:          r.ExpiresAt,
		Salt:               r.Salt,
		Signature:          r.Signature,
	}
}

type cancelOfferingReq struct {
	Offering offeringReq `json:"offering"`
	Caller   string      `json:"caller" validate:"required,hex40"`
	Amount   string      `json:"amount" validate:"required,uintstr"`
}

func (h *OfferingHandler) CancelOffering(c echo.Context) error {
	var req cancelOfferingReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "validation failed",
			Details: ToFieldErrors(err),
		})
	}
	cancelled, err := h.uc.Cancel(c.Request().Context(), offering.CancelInput{
		Offering: req.Offering.toDomain(),
		Caller:   req.Caller,
		Amount:   parseAmount(req.Amount),
	})
	if err != nil {
		return domainErr(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"cancelled": cancelled.String()})
}

type approveOfferingReq struct {
	Offering offeringReq `json:"offering"`
	Caller   string      `json:"caller" validate:"required,hex40"`
}

func (h *OfferingHandler) ApproveOffering(c echo.Context) error {
	var req approveOfferingReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "validation failed",
			Details: ToFieldErrors(err),
		})
	}
	if err := h.uc.Approve(c.Request().Context(), offering.ApproveInput{
		Offering: req.Offering.toDomain(),
		Caller:   req.Caller,
	}); err != nil {
		return domainErr(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "approved"})
}

type availableReq struct {
	Offering offeringReq `json:"offering"`
}

// Availability is a lookup, but the offering itself is the key and travels in
// the body, so the route is a POST.
func (h *OfferingHandler) Available(c echo.Context) error {
	var req availableReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "validation failed",
			Details: ToFieldErrors(err),
		})
	}
	dto, err := h.uc.Available(c.Request().Context(), req.Offering.toDomain())
	if err != nil {
		return domainErr(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}
