package offering

import (
	"context"
	"math/big"
	"time"

	domain "margincore/internal/domain/offering"
	"margincore/internal/domain/uow"
)

type Usecase struct {
	uow uow.UnitOfWork
	now func() time.Time
}

func NewUsecase(u uow.UnitOfWork) *Usecase {
	return &Usecase{uow: u, now: func() time.Time { return time.Now().UTC() }}
}

// WithClock overrides the clock (tests).
func (u *Usecase) WithClock(now func() time.Time) *Usecase {
	u.now = now
	return u
}

type CancelInput struct {
	Offering domain.LoanOffering
	Caller   string
	Amount   *big.Int
}

type ApproveInput struct {
	Offering domain.LoanOffering
	Caller   string
}

type FillStateDTO struct {
	OfferingID string `json:"offering_id"`
	MaxAmount  string `json:"max_amount"`
	Filled     string `json:"filled"`
	Cancelled  string `json:"cancelled"`
	Available  string `json:"available"`
	Approved   bool   `json:"approved"`
}

// Cancel revokes up to amount of the offering's remaining availability. More
// than remains is clamped, not an error; existing positions are untouched.
// Returns the amount actually cancelled.
func (u *Usecase) Cancel(ctx context.Context, in CancelInput) (*big.Int, error) {
	if in.Caller != in.Offering.Lender {
		return nil, domain.ErrNotLender
	}
	if in.Amount == nil || in.Amount.Sign() <= 0 {
		return nil, domain.ErrAmountBounds
	}

	var cancelled *big.Int
	err := u.uow.WithinTx(ctx, func(r uow.Repos) error {
		var err error
		cancelled, err = r.Offerings.Cancel(ctx, &in.Offering, in.Amount)
		return err
	})
	if err != nil {
		return nil, err
	}
	return cancelled, nil
}

// Approve marks the offering pre-approved, substituting for signature checks
// on future fills. Approving an expired offering has no effect; it stays
// unusable.
func (u *Usecase) Approve(ctx context.Context, in ApproveInput) error {
	if in.Caller != in.Offering.Lender {
		return domain.ErrNotLender
	}
	if in.Offering.Expired(u.now()) {
		return domain.ErrExpired
	}
	return u.uow.WithinTx(ctx, func(r uow.Repos) error {
		return r.Offerings.Approve(ctx, &in.Offering)
	})
}

// Available reports the offering's live fill accounting.
func (u *Usecase) Available(ctx context.Context, off domain.LoanOffering) (*FillStateDTO, error) {
	var out *FillStateDTO
	err := u.uow.WithinTx(ctx, func(r uow.Repos) error {
		fs, err := r.Offerings.GetFillState(ctx, &off)
		if err != nil {
			return err
		}
		out = &FillStateDTO{
			OfferingID: fs.OfferingID,
			MaxAmount:  fs.MaxAmount.String(),
			Filled:     fs.Filled.String(),
			Cancelled:  fs.Cancelled.String(),
			Available:  fs.Available().String(),
			Approved:   fs.Approved,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
