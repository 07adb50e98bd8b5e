package offering

import (
	"context"
	"math/big"
)

type Repository interface {
	// GetFillState returns the fill row, or a zero-filled in-memory state for
	// an offering no one has committed against yet.
	GetFillState(ctx context.Context, off *LoanOffering) (*FillState, error)
	// Commit atomically increments filled by amount, failing with
	// ErrInsufficient when less than amount remains available. The check and
	// increment are one unit: concurrent commits against the same offering
	// cannot both win the last slice.
	Commit(ctx context.Context, off *LoanOffering, amount *big.Int) error
	// Cancel increments cancelled by min(amount, available) and returns the
	// amount actually cancelled; cancelling an exhausted offering is a no-op.
	Cancel(ctx context.Context, off *LoanOffering, amount *big.Int) (*big.Int, error)
	// Approve marks the offering id pre-approved, bypassing signature checks
	// on future commits.
	Approve(ctx context.Context, off *LoanOffering) error
}
