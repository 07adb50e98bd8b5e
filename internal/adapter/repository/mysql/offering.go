package mysql

import (
	"context"
	"errors"
	"math/big"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domain "margincore/internal/domain/offering"
)

type OfferingRepository struct{ db *gorm.DB }

func NewOfferingRepository(db *gorm.DB) *OfferingRepository { return &OfferingRepository{db: db} }

func (r *OfferingRepository) GetFillState(ctx context.Context, off *domain.LoanOffering) (*domain.FillState, error) {
	var out domain.FillState
	res := r.db.WithContext(ctx).Where("offering_id = ?", off.Hash()).First(&out)
	if errors.Is(res.Error, gorm.ErrRecordNotFound) {
		// Nothing committed yet: report a zero-filled state without
		// materialising a row.
		return freshState(off), nil
	}
	return &out, res.Error
}

// Commit is the atomic compare-and-increment: the fill row is locked for the
// rest of the transaction, so a concurrent commit against the same offering
// cannot read the same available amount and both win it.
func (r *OfferingRepository) Commit(ctx context.Context, off *domain.LoanOffering, amount *big.Int) error {
	fs, err := r.lockOrCreate(ctx, off)
	if err != nil {
		return err
	}
	if amount.Cmp(fs.Available()) > 0 {
		return domain.ErrInsufficient
	}
	fs.Filled.Set(new(big.Int).Add(fs.Filled.Int(), amount))
	return r.db.WithContext(ctx).Save(fs).Error
}

func (r *OfferingRepository) Cancel(ctx context.Context, off *domain.LoanOffering, amount *big.Int) (*big.Int, error) {
	fs, err := r.lockOrCreate(ctx, off)
	if err != nil {
		return nil, err
	}
	cancelled := new(big.Int).Set(amount)
	if avail := fs.Available(); cancelled.Cmp(avail) > 0 {
		cancelled.Set(avail)
	}
	if cancelled.Sign() == 0 {
		// Exhausted offering: cancelling is a silent no-op.
		return cancelled, nil
	}
	fs.Cancelled.Set(new(big.Int).Add(fs.Cancelled.Int(), cancelled))
	if err := r.db.WithContext(ctx).Save(fs).Error; err != nil {
		return nil, err
	}
	return cancelled, nil
}

func (r *OfferingRepository) Approve(ctx context.Context, off *domain.LoanOffering) error {
	fs, err := r.lockOrCreate(ctx, off)
	if err != nil {
		return err
	}
	if fs.Approved {
		return nil
	}
	fs.Approved = true
	return r.db.WithContext(ctx).Save(fs).Error
}

// lockOrCreate row-locks the fill state, materialising it on first touch.
// A race on first creation surfaces as a unique-index error; the caller's
// whole transition aborts and is resubmitted, never partially applied.
func (r *OfferingRepository) lockOrCreate(ctx context.Context, off *domain.LoanOffering) (*domain.FillState, error) {
	hash := off.Hash()
	var out domain.FillState
	res := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("offering_id = ?", hash).
		First(&out)
	if res.Error == nil {
		return &out, nil
	}
	if !errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return nil, res.Error
	}
	fs := freshState(off)
	if err := r.db.WithContext(ctx).Create(fs).Error; err != nil {
		return nil, err
	}
	return fs, nil
}

func freshState(off *domain.LoanOffering) *domain.FillState {
	return &domain.FillState{
		OfferingID: off.Hash(),
		Lender:     off.Lender,
		MaxAmount:  off.MaxAmount,
		ExpiresAt:  off.ExpiresAt,
	}
}
