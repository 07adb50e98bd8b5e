package balance

import (
	"context"
	"math/big"
)

// Repository is the vault: atomic balance mutations that fail (never
// truncate) when the party holds less than the requested amount. All methods
// are expected to run inside the caller's unit of work.
type Repository interface {
	Get(ctx context.Context, token, party string) (*big.Int, error)
	Deposit(ctx context.Context, token, party string, amount *big.Int) error
	Withdraw(ctx context.Context, token, party string, amount *big.Int) error
	Transfer(ctx context.Context, token, from, to string, amount *big.Int) error
}
