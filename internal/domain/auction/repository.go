package auction

import "context"

type Repository interface {
	Create(ctx context.Context, b *Bid) error
	GetByPositionID(ctx context.Context, positionID string) (*Bid, error)
	GetByPositionIDForUpdate(ctx context.Context, positionID string) (*Bid, error)
	Save(ctx context.Context, b *Bid) error
	Delete(ctx context.Context, b *Bid) error
}
