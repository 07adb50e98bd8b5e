package mysql

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domain "margincore/internal/domain/position"
)

type PositionRepository struct{ db *gorm.DB }

func NewPositionRepository(db *gorm.DB) *PositionRepository { return &PositionRepository{db: db} }

func (r *PositionRepository) Create(ctx context.Context, p *domain.Position) error {
	return r.db.WithContext(ctx).Create(p).Error
}

// Exists counts tombstones too: a closed position's id is never reusable.
func (r *PositionRepository) Exists(ctx context.Context, positionID string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Unscoped().Model(&domain.Position{}).
		Where("position_id = ?", positionID).
		Count(&n).Error
	return n > 0, err
}

func (r *PositionRepository) GetByPositionID(ctx context.Context, positionID string) (*domain.Position, error) {
	var out domain.Position
	res := r.db.WithContext(ctx).Where("position_id = ?", positionID).First(&out)
	return &out, res.Error
}

func (r *PositionRepository) GetByPositionIDForUpdate(ctx context.Context, positionID string) (*domain.Position, error) {
	var out domain.Position
	res := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("position_id = ?", positionID).
		First(&out)
	return &out, res.Error
}

func (r *PositionRepository) Save(ctx context.Context, p *domain.Position) error {
	return r.db.WithContext(ctx).Save(p).Error
}

func (r *PositionRepository) Delete(ctx context.Context, p *domain.Position) error {
	return r.db.WithContext(ctx).Delete(p).Error
}
