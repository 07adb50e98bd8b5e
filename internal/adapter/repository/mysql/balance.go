package mysql

import (
	"context"
	"errors"
	"math/big"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domain "margincore/internal/domain/balance"
)

// BalanceRepository is the vault ledger. Mutations row-lock inside the
// surrounding transaction and fail, never truncate, when a party holds
// less than requested.
type BalanceRepository struct{ db *gorm.DB }

func NewBalanceRepository(db *gorm.DB) *BalanceRepository { return &BalanceRepository{db: db} }

func (r *BalanceRepository) Get(ctx context.Context, token, party string) (*big.Int, error) {
	var out domain.Balance
	res := r.db.WithContext(ctx).Where("token = ? AND party = ?", token, party).First(&out)
	if errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return big.NewInt(0), nil
	}
	if res.Error != nil {
		return nil, res.Error
	}
	return out.Amount.Int(), nil
}

func (r *BalanceRepository) Deposit(ctx context.Context, token, party string, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return domain.ErrInvalidAmount
	}
	row, err := r.lockOrCreate(ctx, token, party)
	if err != nil {
		return err
	}
	row.Amount.Set(new(big.Int).Add(row.Amount.Int(), amount))
	return r.db.WithContext(ctx).Save(row).Error
}

func (r *BalanceRepository) Withdraw(ctx context.Context, token, party string, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return domain.ErrInvalidAmount
	}
	row, err := r.lock(ctx, token, party)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrInsufficient
		}
		return err
	}
	if row.Amount.Cmp(amount) < 0 {
		return domain.ErrInsufficient
	}
	row.Amount.Set(new(big.Int).Sub(row.Amount.Int(), amount))
	return r.db.WithContext(ctx).Save(row).Error
}

func (r *BalanceRepository) Transfer(ctx context.Context, token, from, to string, amount *big.Int) error {
	if err := r.Withdraw(ctx, token, from, amount); err != nil {
		return err
	}
	return r.Deposit(ctx, token, to, amount)
}

func (r *BalanceRepository) lock(ctx context.Context, token, party string) (*domain.Balance, error) {
	var out domain.Balance
	res := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("token = ? AND party = ?", token, party).
		First(&out)
	return &out, res.Error
}

func (r *BalanceRepository) lockOrCreate(ctx context.Context, token, party string) (*domain.Balance, error) {
	row, err := r.lock(ctx, token, party)
	if err == nil {
		return row, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	fresh := &domain.Balance{Token: token, Party: party}
	if err := r.db.WithContext(ctx).Create(fresh).Error; err != nil {
		return nil, err
	}
	return fresh, nil
}
