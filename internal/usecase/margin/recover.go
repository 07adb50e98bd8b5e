package margin

import (
	"context"
	"errors"
	"math/big"

	"gorm.io/gorm"

	"margincore/internal/domain/auction"
	"margincore/internal/domain/balance"
	"margincore/internal/domain/collab"
	"margincore/internal/domain/position"
	"margincore/internal/domain/uow"
	"margincore/pkg/bigmath"
)

// MarginCall starts the lender's countdown: once callTimeLimit elapses the
// collateral becomes forcibly recoverable. Calling does not freeze the
// position; the trader can still close at any time.
func (u *Usecase) MarginCall(ctx context.Context, in MarginCallInput) (*PositionDTO, error) {
	now := u.now()
	required := in.RequiredDeposit
	if required == nil {
		required = big.NewInt(0)
	}
	if required.Sign() < 0 {
		return nil, position.ErrInvalidAmount
	}

	var out *PositionDTO
	err := u.uow.WithinPositionTx(ctx, in.PositionID, func(r uow.Repos, p *position.Position) error {
		if p.IsCalled() {
			return position.ErrAlreadyCalled
		}
		if err := u.loanSideAuthorized(ctx, p, in.Caller, collab.ActionMarginCall); err != nil {
			return err
		}

		calledAt := now
		p.CalledAt = &calledAt
		p.RequiredDeposit = bigmath.New(required)
		if err := r.Positions.Save(ctx, p); err != nil {
			return err
		}
		out = toDTO(p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CancelMarginCall clears an outstanding call; it fails when none is
// outstanding.
func (u *Usecase) CancelMarginCall(ctx context.Context, in MarginCallInput) (*PositionDTO, error) {
	var out *PositionDTO
	err := u.uow.WithinPositionTx(ctx, in.PositionID, func(r uow.Repos, p *position.Position) error {
		if !p.IsCalled() {
			return position.ErrNotCalled
		}
		if err := u.loanSideAuthorized(ctx, p, in.Caller, collab.ActionMarginCall); err != nil {
			return err
		}

		p.CalledAt = nil
		p.RequiredDeposit = bigmath.NewUint64(0)
		if err := r.Positions.Save(ctx, p); err != nil {
			return err
		}
		out = toDTO(p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ForceRecover is the terminal backstop: once the call countdown or the
// position's maximum duration has passed, the lender (or the live bidder)
// seizes what remains. With a live bid the lender is paid the bid's escrowed
// offer amount and the bidder takes the collateral; without one the lender
// takes the collateral outright. The position is deleted either way.
func (u *Usecase) ForceRecover(ctx context.Context, in ForceRecoverInput) (*CloseDTO, error) {
	now := u.now()

	var out *CloseDTO
	err := u.uow.WithinPositionTx(ctx, in.PositionID, func(r uow.Repos, p *position.Position) error {
		callElapsed := p.IsCalled() && !now.Before(p.CalledAt.Add(p.CallTimeLimit()))
		matured := !now.Before(p.MaturesAt())
		if !callElapsed && !matured {
			return position.ErrRecoveryNotReady
		}

		bid, err := r.Bids.GetByPositionIDForUpdate(ctx, p.PositionID)
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) && !errors.Is(err, auction.ErrNoBid) {
				return err
			}
			bid = nil
		}

		if bid == nil || bid.Bidder != in.Caller {
			if err := u.loanSideAuthorized(ctx, p, in.Caller, collab.ActionRecover); err != nil {
				return err
			}
		}

		principal := p.Principal.Int()
		collateral := p.CollateralBalance.Int()
		p.Principal.Set(big.NewInt(0))
		p.ClosedAmount.Set(new(big.Int).Add(p.ClosedAmount.Int(), principal))
		p.CollateralBalance.Set(big.NewInt(0))
		if err := r.Positions.Delete(ctx, p); err != nil {
			return err
		}

		escrow := balance.PositionEscrow(p.PositionID)
		settled := big.NewInt(0)
		if bid != nil {
			settled = bid.OfferAmount.Int()
			if err := r.Bids.Delete(ctx, bid); err != nil {
				return err
			}
			if settled.Sign() > 0 {
				if err := r.Balances.Transfer(ctx, p.OwedToken, balance.AuctionEscrow(p.PositionID), p.Lender, settled); err != nil {
					return err
				}
			}
			if collateral.Sign() > 0 {
				if err := r.Balances.Transfer(ctx, p.HeldToken, escrow, bid.Bidder, collateral); err != nil {
					return err
				}
			}
		} else if collateral.Sign() > 0 {
			if err := r.Balances.Transfer(ctx, p.HeldToken, escrow, p.Lender, collateral); err != nil {
				return err
			}
		}

		out = &CloseDTO{
			PositionID:       p.PositionID,
			ClosedAmount:     principal.String(),
			OwedSettled:      settled.String(),
			CollateralFreed:  collateral.String(),
			RemainingPrincip: "0",
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// loanSideAuthorized passes when the caller is the lender, or when a delegate
// loan owner authorizes the action for them.
func (u *Usecase) loanSideAuthorized(ctx context.Context, p *position.Position, caller string, action collab.Action) error {
	if caller == p.Lender {
		return nil
	}
	authorized, err := u.consent.LoanConsent(ctx, p.Lender, caller, action, p.PositionID, p.Principal.Int())
	if err != nil {
		return err
	}
	if authorized.Sign() <= 0 {
		return position.ErrNotLender
	}
	return nil
}
