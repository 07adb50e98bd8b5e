// Package collab holds the narrow interfaces for the external collaborators
// the settlement engine calls out to: the exchange that converts one token
// into another, the signature/approval predicate, and the consent hooks
// consulted when a position or loan is owned by a delegate contract rather
// than a plain account.
package collab

import (
	"context"
	"errors"
	"math/big"
)

var (
	ErrOrderUnderfilled = errors.New("exchange order could not fill the required amount")
)

// Exchange converts sellToken into buyToken against an opaque, pre-signed
// counterparty order. When buyTarget is false, amount is the exact sell
// amount; when true, amount is the buy amount the trade must produce and the
// exchange reports how much it actually sold. Implementations fail loudly
// when the order cannot cover the request.
type Exchange interface {
	Trade(ctx context.Context, sellToken, buyToken string, amount *big.Int, buyTarget bool, order []byte) (sold, bought *big.Int, err error)
}

// Authorizer is the pass/fail signature predicate for an offering hash. The
// cryptography itself lives outside the core.
type Authorizer interface {
	IsAuthorized(ctx context.Context, hash, signer string) (bool, error)
}

// Action identifies what a delegate is being asked to authorize.
type Action string

const (
	ActionIncrease   Action = "increase"
	ActionClose      Action = "close"
	ActionRepay      Action = "repay"
	ActionMarginCall Action = "margin-call"
	ActionRecover    Action = "recover"
)

// Consent answers "how much of this action does the owner authorize?" on
// behalf of a position's trader (position side) or a loan's owner (loan
// side). The engine always takes min(requested, authorized); zero blocks the
// action. Plain accounts authorize everything for themselves and nothing for
// anyone else.
type Consent interface {
	PositionConsent(ctx context.Context, owner, caller string, action Action, positionID string, requested *big.Int) (*big.Int, error)
	LoanConsent(ctx context.Context, owner, caller string, action Action, positionID string, requested *big.Int) (*big.Int, error)
}

// PlainAccounts is the default Consent: owners acting for themselves are
// fully authorized, everyone else gets zero.
type PlainAccounts struct{}

func (PlainAccounts) PositionConsent(_ context.Context, owner, caller string, _ Action, _ string, requested *big.Int) (*big.Int, error) {
	return plainConsent(owner, caller, requested), nil
}

func (PlainAccounts) LoanConsent(_ context.Context, owner, caller string, action Action, _ string, requested *big.Int) (*big.Int, error) {
	// Receiving a repayment needs no permission; only delegates cap it.
	if action == ActionRepay {
		return new(big.Int).Set(requested), nil
	}
	return plainConsent(owner, caller, requested), nil
}

func plainConsent(owner, caller string, requested *big.Int) *big.Int {
	if owner == caller {
		return new(big.Int).Set(requested)
	}
	return big.NewInt(0)
}
