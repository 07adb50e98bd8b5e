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
	"margincore/pkg/interest"
)

// Close repays closeAmount = min(requested, principal) of the loan by selling
// collateral through the exchange. Interest on the closed share accrues over
// min(now-start, maxDuration) and rounds up, in the lender's favor; the freed
// collateral share rounds down, staying with the position. A live bid
// preempts the exchange: its escrowed offer pays the lender and the bidder
// takes the freed collateral.
func (u *Usecase) Close(ctx context.Context, in CloseInput) (*CloseDTO, error) {
	now := u.now()
	if in.RequestedAmount == nil || in.RequestedAmount.Sign() <= 0 {
		return nil, position.ErrInvalidAmount
	}
	if in.PayoutRecipient == "" {
		return nil, position.ErrInvalidAmount
	}

	var out *CloseDTO
	err := u.uow.WithinPositionTx(ctx, in.PositionID, func(r uow.Repos, p *position.Position) error {
		closeAmount, err := u.authorizedCloseAmount(ctx, p, in.Caller, in.RequestedAmount)
		if err != nil {
			return err
		}

		owedTotal, err := interest.Owed(closeAmount, p.InterestRateBps, p.InterestElapsed(now), p.InterestPeriod(), true)
		if err != nil {
			return err
		}
		collateralShare, err := bigmath.PartialAmount(p.CollateralBalance.Int(), closeAmount, p.Principal.Int(), false)
		if err != nil {
			return err
		}
		full := closeAmount.Cmp(p.Principal.Int()) == 0

		bidSettled, err := settleBid(ctx, r, p, closeAmount, collateralShare, full)
		if err != nil {
			return err
		}
		if err := settleClose(ctx, r, p, closeAmount, collateralShare, full); err != nil {
			return err
		}
		if bidSettled != nil {
			// The bid already paid the lender and took the collateral.
			out = closeDTO(p, closeAmount, bidSettled, collateralShare)
			return nil
		}

		// Own ledger finalized; settle the repayment through the exchange.
		escrow := balance.PositionEscrow(p.PositionID)
		if in.PayoutInHeldToken {
			// Sell only as much collateral as the debt requires; the rest of
			// the share goes to the recipient in held token.
			sold, bought, err := u.exchange.Trade(ctx, p.HeldToken, p.OwedToken, owedTotal, true, in.Order)
			if err != nil {
				return err
			}
			if bought.Cmp(owedTotal) < 0 {
				return collab.ErrOrderUnderfilled
			}
			if sold.Cmp(collateralShare) > 0 {
				return position.ErrInsufficientCollateral
			}
			if err := r.Balances.Withdraw(ctx, p.HeldToken, escrow, sold); err != nil {
				return err
			}
			if err := r.Balances.Deposit(ctx, p.OwedToken, p.Lender, owedTotal); err != nil {
				return err
			}
			if excess := new(big.Int).Sub(bought, owedTotal); excess.Sign() > 0 {
				if err := r.Balances.Deposit(ctx, p.OwedToken, in.PayoutRecipient, excess); err != nil {
					return err
				}
			}
			remainder := new(big.Int).Sub(collateralShare, sold)
			if remainder.Sign() > 0 {
				if err := r.Balances.Transfer(ctx, p.HeldToken, escrow, in.PayoutRecipient, remainder); err != nil {
					return err
				}
			}
		} else {
			// Sell the whole freed share; recipient is paid in owed token.
			sold, bought, err := u.exchange.Trade(ctx, p.HeldToken, p.OwedToken, collateralShare, false, in.Order)
			if err != nil {
				return err
			}
			if sold.Cmp(collateralShare) != 0 {
				return collab.ErrOrderUnderfilled
			}
			if bought.Cmp(owedTotal) < 0 {
				return position.ErrInsufficientCollateral
			}
			if err := r.Balances.Withdraw(ctx, p.HeldToken, escrow, collateralShare); err != nil {
				return err
			}
			if err := r.Balances.Deposit(ctx, p.OwedToken, p.Lender, owedTotal); err != nil {
				return err
			}
			if payout := new(big.Int).Sub(bought, owedTotal); payout.Sign() > 0 {
				if err := r.Balances.Deposit(ctx, p.OwedToken, in.PayoutRecipient, payout); err != nil {
					return err
				}
			}
		}

		out = closeDTO(p, closeAmount, owedTotal, collateralShare)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CloseDirect repays the loan straight from the trader's owed-token balance,
// no exchange involved. A delegate loan owner is asked how much it accepts
// back and may cap the amount (never raise it).
func (u *Usecase) CloseDirect(ctx context.Context, in CloseDirectInput) (*CloseDTO, error) {
	now := u.now()
	if in.RequestedAmount == nil || in.RequestedAmount.Sign() <= 0 {
		return nil, position.ErrInvalidAmount
	}
	if in.PayoutRecipient == "" {
		return nil, position.ErrInvalidAmount
	}

	var out *CloseDTO
	err := u.uow.WithinPositionTx(ctx, in.PositionID, func(r uow.Repos, p *position.Position) error {
		closeAmount, err := u.authorizedCloseAmount(ctx, p, in.Caller, in.RequestedAmount)
		if err != nil {
			return err
		}

		// The loan owner may accept less than requested, never more.
		accepted, err := u.consent.LoanConsent(ctx, p.Lender, in.Caller, collab.ActionRepay, p.PositionID, closeAmount)
		if err != nil {
			return err
		}
		if accepted.Sign() <= 0 {
			return position.ErrConsentDenied
		}
		if accepted.Cmp(closeAmount) < 0 {
			closeAmount = accepted
		}

		owedTotal, err := interest.Owed(closeAmount, p.InterestRateBps, p.InterestElapsed(now), p.InterestPeriod(), true)
		if err != nil {
			return err
		}
		collateralShare, err := bigmath.PartialAmount(p.CollateralBalance.Int(), closeAmount, p.Principal.Int(), false)
		if err != nil {
			return err
		}
		full := closeAmount.Cmp(p.Principal.Int()) == 0

		bidSettled, err := settleBid(ctx, r, p, closeAmount, collateralShare, full)
		if err != nil {
			return err
		}
		if err := settleClose(ctx, r, p, closeAmount, collateralShare, full); err != nil {
			return err
		}
		if bidSettled != nil {
			out = closeDTO(p, closeAmount, bidSettled, collateralShare)
			return nil
		}

		if err := r.Balances.Transfer(ctx, p.OwedToken, p.Trader, p.Lender, owedTotal); err != nil {
			return err
		}
		if collateralShare.Sign() > 0 {
			if err := r.Balances.Transfer(ctx, p.HeldToken, balance.PositionEscrow(p.PositionID), in.PayoutRecipient, collateralShare); err != nil {
				return err
			}
		}

		out = closeDTO(p, closeAmount, owedTotal, collateralShare)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// authorizedCloseAmount clamps the requested amount to the outstanding
// principal and, for callers other than the trader, to whatever the
// position-side delegate authorizes.
func (u *Usecase) authorizedCloseAmount(ctx context.Context, p *position.Position, caller string, requested *big.Int) (*big.Int, error) {
	closeAmount := new(big.Int).Set(requested)
	if closeAmount.Cmp(p.Principal.Int()) > 0 {
		closeAmount.Set(p.Principal.Int())
	}
	if caller != p.Trader {
		authorized, err := u.consent.PositionConsent(ctx, p.Trader, caller, collab.ActionClose, p.PositionID, closeAmount)
		if err != nil {
			return nil, err
		}
		if authorized.Sign() <= 0 {
			return nil, position.ErrConsentDenied
		}
		if authorized.Cmp(closeAmount) < 0 {
			closeAmount = authorized
		}
	}
	if closeAmount.Sign() <= 0 {
		return nil, position.ErrInvalidAmount
	}
	return closeAmount, nil
}

// settleBid resolves a live bid's claim on the closed share: the matching
// slice of the bidder's escrowed offer pays the lender, the bidder takes the
// freed collateral, and the bid shrinks to cover what remains. Returns the
// amount paid to the lender, or nil when no bid settled the share. A full
// close instead unwinds the bid with a full refund: a bid is a conditional
// claim, not a guaranteed purchase.
func settleBid(ctx context.Context, r uow.Repos, p *position.Position, closeAmount, collateralShare *big.Int, full bool) (*big.Int, error) {
	bid, err := r.Bids.GetByPositionIDForUpdate(ctx, p.PositionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, auction.ErrNoBid) {
			return nil, nil
		}
		return nil, err
	}

	escrow := balance.AuctionEscrow(p.PositionID)
	if full {
		if bid.OfferAmount.Sign() > 0 {
			if err := r.Balances.Transfer(ctx, p.OwedToken, escrow, bid.Bidder, bid.OfferAmount.Int()); err != nil {
				return nil, err
			}
		}
		if err := r.Bids.Delete(ctx, bid); err != nil {
			return nil, err
		}
		return nil, nil
	}

	offerSlice, err := bigmath.PartialAmount(bid.OfferAmount.Int(), closeAmount, p.Principal.Int(), false)
	if err != nil {
		return nil, err
	}
	claimCut, err := bigmath.PartialAmount(bid.EscrowedCollateral.Int(), closeAmount, p.Principal.Int(), true)
	if err != nil {
		return nil, err
	}
	bid.OfferAmount.Set(new(big.Int).Sub(bid.OfferAmount.Int(), offerSlice))
	remainingClaim := new(big.Int).Sub(bid.EscrowedCollateral.Int(), claimCut)
	if remainingClaim.Sign() < 0 {
		remainingClaim.SetInt64(0)
	}
	bid.EscrowedCollateral.Set(remainingClaim)
	if err := r.Bids.Save(ctx, bid); err != nil {
		return nil, err
	}

	if offerSlice.Sign() > 0 {
		if err := r.Balances.Transfer(ctx, p.OwedToken, escrow, p.Lender, offerSlice); err != nil {
			return nil, err
		}
	}
	if collateralShare.Sign() > 0 {
		if err := r.Balances.Transfer(ctx, p.HeldToken, balance.PositionEscrow(p.PositionID), bid.Bidder, collateralShare); err != nil {
			return nil, err
		}
	}
	return offerSlice, nil
}

// settleClose applies the principal/closed/collateral bookkeeping; a full
// close tombstones the position.
func settleClose(ctx context.Context, r uow.Repos, p *position.Position, closeAmount, collateralShare *big.Int, full bool) error {
	p.Principal.Set(new(big.Int).Sub(p.Principal.Int(), closeAmount))
	p.ClosedAmount.Set(new(big.Int).Add(p.ClosedAmount.Int(), closeAmount))
	p.CollateralBalance.Set(new(big.Int).Sub(p.CollateralBalance.Int(), collateralShare))
	if full {
		return r.Positions.Delete(ctx, p)
	}
	return r.Positions.Save(ctx, p)
}

func closeDTO(p *position.Position, closeAmount, owedTotal, collateralShare *big.Int) *CloseDTO {
	return &CloseDTO{
		PositionID:       p.PositionID,
		ClosedAmount:     closeAmount.String(),
		OwedSettled:      owedTotal.String(),
		CollateralFreed:  collateralShare.String(),
		RemainingPrincip: p.Principal.String(),
	}
}
