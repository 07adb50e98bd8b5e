package margin

import (
	"context"
	"errors"
	"math/big"
	"time"

	"gorm.io/gorm"

	"margincore/internal/domain/balance"
	"margincore/internal/domain/collab"
	"margincore/internal/domain/offering"
	"margincore/internal/domain/position"
	"margincore/internal/domain/uow"
	"margincore/pkg/bigmath"
	"margincore/pkg/id"
)

// Usecase drives the position lifecycle. Every transition runs inside one
// unit of work: validate, stage the engine's own ledger mutations, then call
// the exchange collaborator; any failure rolls the whole unit back.
type Usecase struct {
	uow      uow.UnitOfWork
	exchange collab.Exchange
	auth     collab.Authorizer
	consent  collab.Consent
	now      func() time.Time
}

func NewUsecase(u uow.UnitOfWork, ex collab.Exchange, auth collab.Authorizer, consent collab.Consent) *Usecase {
	return &Usecase{
		uow:      u,
		exchange: ex,
		auth:     auth,
		consent:  consent,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the transition clock (tests).
func (u *Usecase) WithClock(now func() time.Time) *Usecase {
	u.now = now
	return u
}

// Open borrows principal against a loan offering, trades it into held-token
// collateral via the exchange, adds the trader's deposit and creates the
// position. The clock is read once; time gates are plain precondition checks.
func (u *Usecase) Open(ctx context.Context, in OpenInput) (*PositionDTO, error) {
	now := u.now()
	off := &in.Offering

	if in.Trader == "" || in.Principal == nil || in.Principal.Sign() <= 0 {
		return nil, position.ErrInvalidAmount
	}
	dep := in.DepositAmount
	if dep == nil {
		dep = big.NewInt(0)
	}
	if dep.Sign() < 0 {
		return nil, position.ErrInvalidAmount
	}
	if err := validateOfferingTerms(off); err != nil {
		return nil, err
	}
	if off.Taker != "" && off.Taker != in.Trader {
		return nil, offering.ErrTakerMismatch
	}
	if off.Expired(now) {
		return nil, offering.ErrExpired
	}
	// Per-fill bound check against this position's own principal.
	if in.Principal.Cmp(off.MinAmount.Int()) < 0 || in.Principal.Cmp(off.MaxAmount.Int()) > 0 {
		return nil, offering.ErrAmountBounds
	}

	positionID := id.PositionID(in.Trader, in.Nonce)

	var out *PositionDTO
	err := u.uow.WithinTx(ctx, func(r uow.Repos) error {
		used, err := r.Positions.Exists(ctx, positionID)
		if err != nil {
			return err
		}
		if used {
			return position.ErrAlreadyExists
		}

		if err := u.commitFill(ctx, r, off, in.Principal); err != nil {
			return err
		}
		if err := payFees(ctx, r, off, in.Trader, in.Principal); err != nil {
			return err
		}

		p := &position.Position{
			PositionID:         positionID,
			OwedToken:          off.OwedToken,
			HeldToken:          off.HeldToken,
			Lender:             off.EffectiveOwner(),
			Trader:             in.Trader,
			Principal:          bigmath.New(in.Principal),
			InterestRateBps:    off.InterestRateBps,
			InterestPeriodSecs: off.InterestPeriodSecs,
			CallTimeLimitSecs:  off.CallTimeLimitSecs,
			MaxDurationSecs:    off.MaxDurationSecs,
			StartAt:            now,
		}
		if err := r.Positions.Create(ctx, p); err != nil {
			return err
		}

		// Own ledger staged; settle through the collaborators.
		collateral, err := u.fundCollateral(ctx, r, p, off.Lender, in.Principal, dep, in.DepositInHeldToken, in.Order)
		if err != nil {
			return err
		}

		// minHeldToken is the floor at a full maxAmount fill; scale pro rata:
		// collateral/principal >= minHeldToken/maxAmount.
		lhs := new(big.Int).Mul(collateral, off.MaxAmount.Int())
		rhs := new(big.Int).Mul(off.MinHeldToken.Int(), in.Principal)
		if lhs.Cmp(rhs) < 0 {
			return position.ErrCollateralRate
		}

		p.CollateralBalance.Set(collateral)
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

// Increase draws more principal against a (possibly different) offering. The
// offering may not carry laxer call/duration terms than the position already
// has, and the added collateral must keep the per-unit ratio, rounded in the
// lender's favor.
func (u *Usecase) Increase(ctx context.Context, in IncreaseInput) (*PositionDTO, error) {
	now := u.now()
	off := &in.Offering

	if in.AddedPrincipal == nil || in.AddedPrincipal.Sign() <= 0 {
		return nil, position.ErrInvalidAmount
	}
	dep := in.DepositAmount
	if dep == nil {
		dep = big.NewInt(0)
	}
	if dep.Sign() < 0 {
		return nil, position.ErrInvalidAmount
	}
	if err := validateOfferingTerms(off); err != nil {
		return nil, err
	}
	if off.Expired(now) {
		return nil, offering.ErrExpired
	}
	if in.AddedPrincipal.Cmp(off.MinAmount.Int()) < 0 || in.AddedPrincipal.Cmp(off.MaxAmount.Int()) > 0 {
		return nil, offering.ErrAmountBounds
	}

	var out *PositionDTO
	err := u.uow.WithinPositionTx(ctx, in.PositionID, func(r uow.Repos, p *position.Position) error {
		if !now.Before(p.MaturesAt()) {
			return position.ErrMatured
		}
		if off.OwedToken != p.OwedToken || off.HeldToken != p.HeldToken {
			return offering.ErrTokenMismatch
		}
		if off.Taker != "" && off.Taker != p.Trader {
			return offering.ErrTakerMismatch
		}
		// Existing lenders keep their terms: a later fill may not slot the
		// position into a laxer call window or a longer life.
		if off.CallTimeLimitSecs < p.CallTimeLimitSecs || off.MaxDurationSecs < p.MaxDurationSecs {
			return position.ErrWorseTerms
		}
		if in.Caller != p.Trader {
			authorized, err := u.consent.PositionConsent(ctx, p.Trader, in.Caller, collab.ActionIncrease, p.PositionID, in.AddedPrincipal)
			if err != nil {
				return err
			}
			if authorized.Cmp(in.AddedPrincipal) < 0 {
				return position.ErrConsentDenied
			}
		}

		if err := u.commitFill(ctx, r, off, in.AddedPrincipal); err != nil {
			return err
		}
		if err := payFees(ctx, r, off, p.Trader, in.AddedPrincipal); err != nil {
			return err
		}

		added, err := u.fundCollateral(ctx, r, p, off.Lender, in.AddedPrincipal, dep, in.DepositInHeldToken, in.Order)
		if err != nil {
			return err
		}

		// Collateral per unit of principal may not dilute; the required
		// top-up rounds up, in the lender's favor.
		required, err := bigmath.PartialAmount(p.CollateralBalance.Int(), in.AddedPrincipal, p.Principal.Int(), true)
		if err != nil {
			return err
		}
		if added.Cmp(required) < 0 {
			return position.ErrCollateralRate
		}

		p.Principal.Set(new(big.Int).Add(p.Principal.Int(), in.AddedPrincipal))
		p.CollateralBalance.Set(new(big.Int).Add(p.CollateralBalance.Int(), added))
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

// Deposit adds held-token collateral. A deposit meeting the lender's required
// amount clears an outstanding margin call.
func (u *Usecase) Deposit(ctx context.Context, in DepositInput) (*PositionDTO, error) {
	if in.Amount == nil || in.Amount.Sign() <= 0 {
		return nil, position.ErrInvalidAmount
	}

	var out *PositionDTO
	err := u.uow.WithinPositionTx(ctx, in.PositionID, func(r uow.Repos, p *position.Position) error {
		if in.Caller != p.Trader {
			authorized, err := u.consent.PositionConsent(ctx, p.Trader, in.Caller, collab.ActionIncrease, p.PositionID, in.Amount)
			if err != nil {
				return err
			}
			if authorized.Cmp(in.Amount) < 0 {
				return position.ErrConsentDenied
			}
		}

		p.CollateralBalance.Set(new(big.Int).Add(p.CollateralBalance.Int(), in.Amount))
		if p.IsCalled() && p.RequiredDeposit.Sign() > 0 && in.Amount.Cmp(p.RequiredDeposit.Int()) >= 0 {
			p.CalledAt = nil
			p.RequiredDeposit.Set(big.NewInt(0))
		}
		if err := r.Positions.Save(ctx, p); err != nil {
			return err
		}

		if err := r.Balances.Transfer(ctx, p.HeldToken, in.Caller, balance.PositionEscrow(p.PositionID), in.Amount); err != nil {
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

func (u *Usecase) Get(ctx context.Context, positionID string) (*PositionDTO, error) {
	var out *PositionDTO
	err := u.uow.WithinTx(ctx, func(r uow.Repos) error {
		p, err := r.Positions.GetByPositionID(ctx, positionID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return position.ErrNotFound
			}
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

// --- shared steps ---

func validateOfferingTerms(off *offering.LoanOffering) error {
	if off.Lender == "" || off.OwedToken == "" || off.HeldToken == "" {
		return offering.ErrInvalidTerms
	}
	if off.MaxAmount.Sign() <= 0 || off.MinAmount.Cmp(off.MaxAmount.Int()) > 0 {
		return offering.ErrInvalidTerms
	}
	if off.MaxDurationSecs == 0 || off.CallTimeLimitSecs > off.MaxDurationSecs {
		return offering.ErrInvalidTerms
	}
	return nil
}

// commitFill verifies authorization (pre-approval or signature) and draws
// amount from the offering's remaining availability in one atomic step.
func (u *Usecase) commitFill(ctx context.Context, r uow.Repos, off *offering.LoanOffering, amount *big.Int) error {
	fs, err := r.Offerings.GetFillState(ctx, off)
	if err != nil {
		return err
	}
	if !fs.Approved {
		ok, err := u.auth.IsAuthorized(ctx, off.Hash(), off.EffectiveSigner())
		if err != nil {
			return err
		}
		if !ok {
			return offering.ErrNotAuthorized
		}
	}
	return r.Offerings.Commit(ctx, off, amount)
}

// payFees settles the lender and taker fees in the fee token, pro-rated by
// principal/maxAmount. Fees round down: the leftover unit stays with the
// payer, never the fee recipient.
func payFees(ctx context.Context, r uow.Repos, off *offering.LoanOffering, trader string, principal *big.Int) error {
	if off.FeeRecipient == "" || off.FeeToken == "" {
		return nil
	}
	lenderFee, err := bigmath.PartialAmount(off.LenderFee.Int(), principal, off.MaxAmount.Int(), false)
	if err != nil {
		return err
	}
	if lenderFee.Sign() > 0 {
		if err := r.Balances.Transfer(ctx, off.FeeToken, off.Lender, off.FeeRecipient, lenderFee); err != nil {
			return err
		}
	}
	takerFee, err := bigmath.PartialAmount(off.TakerFee.Int(), principal, off.MaxAmount.Int(), false)
	if err != nil {
		return err
	}
	if takerFee.Sign() > 0 {
		if err := r.Balances.Transfer(ctx, off.FeeToken, trader, off.FeeRecipient, takerFee); err != nil {
			return err
		}
	}
	return nil
}

// fundCollateral pulls the borrowed principal from the lender, trades it into
// held token, applies the trader's deposit (trading owed-token deposits too)
// and returns the total held-token amount credited to the position escrow.
func (u *Usecase) fundCollateral(ctx context.Context, r uow.Repos, p *position.Position, lender string, principal, deposit *big.Int, depositInHeld bool, order []byte) (*big.Int, error) {
	escrow := balance.PositionEscrow(p.PositionID)

	if err := r.Balances.Withdraw(ctx, p.OwedToken, lender, principal); err != nil {
		return nil, err
	}
	sold, bought, err := u.exchange.Trade(ctx, p.OwedToken, p.HeldToken, principal, false, order)
	if err != nil {
		return nil, err
	}
	if sold.Cmp(principal) != 0 {
		return nil, collab.ErrOrderUnderfilled
	}
	if err := r.Balances.Deposit(ctx, p.HeldToken, escrow, bought); err != nil {
		return nil, err
	}
	collateral := new(big.Int).Set(bought)

	if deposit.Sign() > 0 {
		if depositInHeld {
			if err := r.Balances.Transfer(ctx, p.HeldToken, p.Trader, escrow, deposit); err != nil {
				return nil, err
			}
			collateral.Add(collateral, deposit)
		} else {
			if err := r.Balances.Withdraw(ctx, p.OwedToken, p.Trader, deposit); err != nil {
				return nil, err
			}
			_, extra, err := u.exchange.Trade(ctx, p.OwedToken, p.HeldToken, deposit, false, order)
			if err != nil {
				return nil, err
			}
			if err := r.Balances.Deposit(ctx, p.HeldToken, escrow, extra); err != nil {
				return nil, err
			}
			collateral.Add(collateral, extra)
		}
	}
	return collateral, nil
}
