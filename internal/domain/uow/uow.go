package uow

import (
	"context"

	"margincore/internal/domain/auction"
	"margincore/internal/domain/balance"
	"margincore/internal/domain/offering"
	"margincore/internal/domain/position"
)

type Repos struct {
	Positions position.Repository
	Offerings offering.Repository
	Bids      auction.Repository
	Balances  balance.Repository
}

// UnitOfWork runs a lifecycle transition as one atomic unit: every repository
// mutation inside fn commits together or not at all, so no transition can
// leave the ledgers partially updated relative to the balance movements it
// caused.
type UnitOfWork interface {
	// plain tx
	WithinTx(ctx context.Context, fn func(r Repos) error) error
	// convenience: row-lock the position first, then pass it in
	WithinPositionTx(ctx context.Context, positionID string, fn func(r Repos, p *position.Position) error) error
}
