package mysql

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domain "margincore/internal/domain/auction"
)

type AuctionRepository struct{ db *gorm.DB }

func NewAuctionRepository(db *gorm.DB) *AuctionRepository { return &AuctionRepository{db: db} }

func (r *AuctionRepository) Create(ctx context.Context, b *domain.Bid) error {
	return r.db.WithContext(ctx).Create(b).Error
}

func (r *AuctionRepository) GetByPositionID(ctx context.Context, positionID string) (*domain.Bid, error) {
	var out domain.Bid
	res := r.db.WithContext(ctx).Where("position_id = ?", positionID).First(&out)
	return &out, res.Error
}

func (r *AuctionRepository) GetByPositionIDForUpdate(ctx context.Context, positionID string) (*domain.Bid, error) {
	var out domain.Bid
	res := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("position_id = ?", positionID).
		First(&out)
	return &out, res.Error
}

func (r *AuctionRepository) Save(ctx context.Context, b *domain.Bid) error {
	return r.db.WithContext(ctx).Save(b).Error
}

func (r *AuctionRepository) Delete(ctx context.Context, b *domain.Bid) error {
	return r.db.WithContext(ctx).Delete(b).Error
}
