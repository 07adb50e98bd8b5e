package position

import "context"

type Repository interface {
	Create(ctx context.Context, p *Position) error
	// Exists reports whether a position id was ever used, tombstones included.
	Exists(ctx context.Context, positionID string) (bool, error)
	GetByPositionID(ctx context.Context, positionID string) (*Position, error)
	// GetByPositionIDForUpdate row-locks inside the surrounding transaction so
	// exactly one transition touches a position per unit of work.
	GetByPositionIDForUpdate(ctx context.Context, positionID string) (*Position, error)
	Save(ctx context.Context, p *Position) error
	// Delete removes a terminal position (principal reached zero).
	Delete(ctx context.Context, p *Position) error
}
