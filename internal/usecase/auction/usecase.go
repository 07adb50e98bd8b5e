package auction

import (
	"context"
	"errors"
	"math/big"

	"gorm.io/gorm"

	domain "margincore/internal/domain/auction"
	"margincore/internal/domain/balance"
	"margincore/internal/domain/position"
	"margincore/internal/domain/uow"
	"margincore/pkg/bigmath"
)

type Usecase struct {
	uow uow.UnitOfWork
}

func NewUsecase(u uow.UnitOfWork) *Usecase { return &Usecase{uow: u} }

type PlaceBidInput struct {
	PositionID  string
	Bidder      string
	OfferAmount *big.Int
}

type BidDTO struct {
	PositionID         string `json:"position_id"`
	Bidder             string `json:"bidder"`
	OfferAmount        string `json:"offer_amount"`
	EscrowedCollateral string `json:"escrowed_collateral"`
}

// PlaceBid escrows the bidder's owed-token offer against a called position.
// A new bid must strictly exceed the live one; the displaced bidder's escrow
// is refunded in full before the new bid is recorded.
func (u *Usecase) PlaceBid(ctx context.Context, in PlaceBidInput) (*BidDTO, error) {
	if in.OfferAmount == nil || in.OfferAmount.Sign() <= 0 {
		return nil, position.ErrInvalidAmount
	}

	var out *BidDTO
	err := u.uow.WithinPositionTx(ctx, in.PositionID, func(r uow.Repos, p *position.Position) error {
		if !p.IsCalled() {
			return position.ErrNotCalled
		}

		escrow := balance.AuctionEscrow(p.PositionID)
		existing, err := r.Bids.GetByPositionIDForUpdate(ctx, p.PositionID)
		switch {
		case err == nil:
			if in.OfferAmount.Cmp(existing.OfferAmount.Int()) <= 0 {
				return domain.ErrBidTooLow
			}
			if existing.OfferAmount.Sign() > 0 {
				if err := r.Balances.Transfer(ctx, p.OwedToken, escrow, existing.Bidder, existing.OfferAmount.Int()); err != nil {
					return err
				}
			}
			if err := r.Bids.Delete(ctx, existing); err != nil {
				return err
			}
		case errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, domain.ErrNoBid):
			// first bid
		default:
			return err
		}

		b := &domain.Bid{
			PositionID:         p.PositionID,
			Bidder:             in.Bidder,
			OfferAmount:        bigmath.New(in.OfferAmount),
			EscrowedCollateral: bigmath.New(p.CollateralBalance.Int()),
		}
		if err := r.Bids.Create(ctx, b); err != nil {
			return err
		}
		if err := r.Balances.Transfer(ctx, p.OwedToken, in.Bidder, escrow, in.OfferAmount); err != nil {
			return err
		}
		out = toDTO(b)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetBid returns the live bid for a position, if any.
func (u *Usecase) GetBid(ctx context.Context, positionID string) (*BidDTO, error) {
	var out *BidDTO
	err := u.uow.WithinTx(ctx, func(r uow.Repos) error {
		b, err := r.Bids.GetByPositionID(ctx, positionID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNoBid
			}
			return err
		}
		out = toDTO(b)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func toDTO(b *domain.Bid) *BidDTO {
	return &BidDTO{
		PositionID:         b.PositionID,
		Bidder:             b.Bidder,
		OfferAmount:        b.OfferAmount.String(),
		EscrowedCollateral: b.EscrowedCollateral.String(),
	}
}
