// Package collabmock provides function-backed fakes for the settlement
// engine's collaborators. The Exchange defaults to a deterministic fixed-rate
// conversion; Authorizer and Consent default to permissive so happy-path
// tests need no setup.
package collabmock

import (
	"context"
	"math/big"

	"margincore/internal/domain/collab"
)

// TradeCall records one Trade invocation for assertions.
type TradeCall struct {
	SellToken string
	BuyToken  string
	Amount    *big.Int
	BuyTarget bool
	Order     []byte
}

// Exchange converts at Num/Den unless TradeFn overrides. Sell-target trades
// buy amount*Num/Den (rounded down); buy-target trades sell the smallest
// amount whose conversion covers the request (rounded up).
type Exchange struct {
	Num, Den int64
	TradeFn  func(ctx context.Context, sellToken, buyToken string, amount *big.Int, buyTarget bool, order []byte) (*big.Int, *big.Int, error)
	Calls    []TradeCall
}

func (m *Exchange) Trade(ctx context.Context, sellToken, buyToken string, amount *big.Int, buyTarget bool, order []byte) (*big.Int, *big.Int, error) {
	m.Calls = append(m.Calls, TradeCall{
		SellToken: sellToken,
		BuyToken:  buyToken,
		Amount:    new(big.Int).Set(amount),
		BuyTarget: buyTarget,
		Order:     order,
	})
	if m.TradeFn != nil {
		return m.TradeFn(ctx, sellToken, buyToken, amount, buyTarget, order)
	}
	num, den := big.NewInt(m.Num), big.NewInt(m.Den)
	if num.Sign() == 0 {
		num.SetInt64(1)
	}
	if den.Sign() == 0 {
		den.SetInt64(1)
	}
	if buyTarget {
		// sold = ceil(amount * den / num)
		sold := new(big.Int).Mul(amount, den)
		sold.Add(sold, new(big.Int).Sub(num, big.NewInt(1)))
		sold.Div(sold, num)
		return sold, new(big.Int).Set(amount), nil
	}
	bought := new(big.Int).Mul(amount, num)
	bought.Div(bought, den)
	return new(big.Int).Set(amount), bought, nil
}

// Authorizer approves every hash/signer pair unless IsAuthorizedFn overrides.
type Authorizer struct {
	IsAuthorizedFn func(ctx context.Context, hash, signer string) (bool, error)
}

func (m *Authorizer) IsAuthorized(ctx context.Context, hash, signer string) (bool, error) {
	if m.IsAuthorizedFn != nil {
		return m.IsAuthorizedFn(ctx, hash, signer)
	}
	return true, nil
}

// Consent falls back to plain-account semantics when the funcs are nil.
type Consent struct {
	PositionConsentFn func(ctx context.Context, owner, caller string, action collab.Action, positionID string, requested *big.Int) (*big.Int, error)
	LoanConsentFn     func(ctx context.Context, owner, caller string, action collab.Action, positionID string, requested *big.Int) (*big.Int, error)
}

func (m *Consent) PositionConsent(ctx context.Context, owner, caller string, action collab.Action, positionID string, requested *big.Int) (*big.Int, error) {
	if m.PositionConsentFn != nil {
		return m.PositionConsentFn(ctx, owner, caller, action, positionID, requested)
	}
	return collab.PlainAccounts{}.PositionConsent(ctx, owner, caller, action, positionID, requested)
}

func (m *Consent) LoanConsent(ctx context.Context, owner, caller string, action collab.Action, positionID string, requested *big.Int) (*big.Int, error) {
	if m.LoanConsentFn != nil {
		return m.LoanConsentFn(ctx, owner, caller, action, positionID, requested)
	}
	return collab.PlainAccounts{}.LoanConsent(ctx, owner, caller, action, positionID, requested)
}
