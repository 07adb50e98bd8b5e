package mysql

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"margincore/internal/domain/position"
	"margincore/internal/domain/uow"
)

type GormUoW struct{ db *gorm.DB }

func NewGormUoW(db *gorm.DB) *GormUoW { return &GormUoW{db: db} }

func repos(tx *gorm.DB) uow.Repos {
	return uow.Repos{
		Positions: &PositionRepository{db: tx},
		Offerings: &OfferingRepository{db: tx},
		Bids:      &AuctionRepository{db: tx},
		Balances:  &BalanceRepository{db: tx},
	}
}

func (u *GormUoW) WithinTx(ctx context.Context, fn func(r uow.Repos) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(repos(tx))
	})
}

func (u *GormUoW) WithinPositionTx(ctx context.Context, positionID string, fn func(r uow.Repos, p *position.Position) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r := repos(tx)
		// lock the position row up-front so exactly one transition touches it
		p, err := r.Positions.GetByPositionIDForUpdate(ctx, positionID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return position.ErrNotFound
			}
			return err
		}
		return fn(r, p)
	})
}
