package memstore

import (
	"context"
	"math/big"

	"margincore/internal/domain/auction"
	"margincore/internal/domain/balance"
	"margincore/internal/domain/offering"
	"margincore/internal/domain/position"
	"margincore/pkg/bigmath"
)

type positionRepo struct{ s *Store }

func (r *positionRepo) Create(ctx context.Context, p *position.Position) error {
	if r.s.tombstones[p.PositionID] {
		return position.ErrAlreadyExists
	}
	if _, ok := r.s.positions[p.PositionID]; ok {
		return position.ErrAlreadyExists
	}
	r.s.positions[p.PositionID] = clonePosition(p)
	return nil
}

func (r *positionRepo) Exists(ctx context.Context, positionID string) (bool, error) {
	if r.s.tombstones[positionID] {
		return true, nil
	}
	_, ok := r.s.positions[positionID]
	return ok, nil
}

func (r *positionRepo) GetByPositionID(ctx context.Context, positionID string) (*position.Position, error) {
	p, ok := r.s.positions[positionID]
	if !ok {
		return nil, notFound
	}
	return clonePosition(p), nil
}

func (r *positionRepo) GetByPositionIDForUpdate(ctx context.Context, positionID string) (*position.Position, error) {
	return r.GetByPositionID(ctx, positionID)
}

func (r *positionRepo) Save(ctx context.Context, p *position.Position) error {
	r.s.positions[p.PositionID] = clonePosition(p)
	return nil
}

func (r *positionRepo) Delete(ctx context.Context, p *position.Position) error {
	delete(r.s.positions, p.PositionID)
	r.s.tombstones[p.PositionID] = true
	return nil
}

type offeringRepo struct{ s *Store }

func (r *offeringRepo) GetFillState(ctx context.Context, off *offering.LoanOffering) (*offering.FillState, error) {
	if f, ok := r.s.fills[off.Hash()]; ok {
		return cloneFill(f), nil
	}
	return &offering.FillState{
		OfferingID: off.Hash(),
		Lender:     off.Lender,
		MaxAmount:  bigmath.New(off.MaxAmount.Int()),
		Filled:     bigmath.New(big.NewInt(0)),
		Cancelled:  bigmath.New(big.NewInt(0)),
		ExpiresAt:  off.ExpiresAt,
	}, nil
}

func (r *offeringRepo) Commit(ctx context.Context, off *offering.LoanOffering, amount *big.Int) error {
	f := r.materialize(off)
	if amount.Cmp(f.Available()) > 0 {
		return offering.ErrInsufficient
	}
	f.Filled = bigmath.New(new(big.Int).Add(f.Filled.Int(), amount))
	return nil
}

func (r *offeringRepo) Cancel(ctx context.Context, off *offering.LoanOffering, amount *big.Int) (*big.Int, error) {
	f := r.materialize(off)
	cancelled := new(big.Int).Set(amount)
	if avail := f.Available(); cancelled.Cmp(avail) > 0 {
		cancelled.Set(avail)
	}
	if cancelled.Sign() <= 0 {
		return big.NewInt(0), nil
	}
	f.Cancelled = bigmath.New(new(big.Int).Add(f.Cancelled.Int(), cancelled))
	return cancelled, nil
}

func (r *offeringRepo) Approve(ctx context.Context, off *offering.LoanOffering) error {
	r.materialize(off).Approved = true
	return nil
}

func (r *offeringRepo) materialize(off *offering.LoanOffering) *offering.FillState {
	id := off.Hash()
	if f, ok := r.s.fills[id]; ok {
		return f
	}
	f := &offering.FillState{
		OfferingID: id,
		Lender:     off.Lender,
		MaxAmount:  bigmath.New(off.MaxAmount.Int()),
		Filled:     bigmath.New(big.NewInt(0)),
		Cancelled:  bigmath.New(big.NewInt(0)),
		ExpiresAt:  off.ExpiresAt,
	}
	r.s.fills[id] = f
	return f
}

type bidRepo struct{ s *Store }

func (r *bidRepo) Create(ctx context.Context, b *auction.Bid) error {
	r.s.bids[b.PositionID] = cloneBid(b)
	return nil
}

func (r *bidRepo) GetByPositionID(ctx context.Context, positionID string) (*auction.Bid, error) {
	b, ok := r.s.bids[positionID]
	if !ok {
		return nil, notFound
	}
	return cloneBid(b), nil
}

func (r *bidRepo) GetByPositionIDForUpdate(ctx context.Context, positionID string) (*auction.Bid, error) {
	return r.GetByPositionID(ctx, positionID)
}

func (r *bidRepo) Save(ctx context.Context, b *auction.Bid) error {
	r.s.bids[b.PositionID] = cloneBid(b)
	return nil
}

func (r *bidRepo) Delete(ctx context.Context, b *auction.Bid) error {
	delete(r.s.bids, b.PositionID)
	return nil
}

type balanceRepo struct{ s *Store }

func (r *balanceRepo) Get(ctx context.Context, token, party string) (*big.Int, error) {
	if v, ok := r.s.balances[token+"|"+party]; ok {
		return new(big.Int).Set(v), nil
	}
	return big.NewInt(0), nil
}

func (r *balanceRepo) Deposit(ctx context.Context, token, party string, amount *big.Int) error {
	if amount.Sign() < 0 {
		return balance.ErrInvalidAmount
	}
	key := token + "|" + party
	cur, ok := r.s.balances[key]
	if !ok {
		cur = big.NewInt(0)
	}
	r.s.balances[key] = new(big.Int).Add(cur, amount)
	return nil
}

func (r *balanceRepo) Withdraw(ctx context.Context, token, party string, amount *big.Int) error {
	if amount.Sign() < 0 {
		return balance.ErrInvalidAmount
	}
	key := token + "|" + party
	cur, ok := r.s.balances[key]
	if !ok || cur.Cmp(amount) < 0 {
		return balance.ErrInsufficient
	}
	r.s.balances[key] = new(big.Int).Sub(cur, amount)
	return nil
}

func (r *balanceRepo) Transfer(ctx context.Context, token, from, to string, amount *big.Int) error {
	if err := r.Withdraw(ctx, token, from, amount); err != nil {
		return err
	}
	return r.Deposit(ctx, token, to, amount)
}
