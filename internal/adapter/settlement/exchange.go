// Package settlement holds the concrete collaborators the engine is wired
// with in cmd/api: a conversion venue and the signature registry consulted
// before an offering commit.
package settlement

import (
	"context"
	"errors"
	"math/big"
)

var ErrBadRate = errors.New("settlement: conversion rate must be positive")

// FixedRateExchange converts at a configured num/den rate. It stands in for a
// live trading venue in deployments that settle against an internal book;
// the engine's own vault accounting is unaffected by the venue choice.
type FixedRateExchange struct {
	num *big.Int
	den *big.Int
}

func NewFixedRateExchange(num, den uint64) (*FixedRateExchange, error) {
	if num == 0 || den == 0 {
		return nil, ErrBadRate
	}
	return &FixedRateExchange{
		num: new(big.Int).SetUint64(num),
		den: new(big.Int).SetUint64(den),
	}, nil
}

// Trade converts amount at num/den. Sell-target trades round the proceeds
// down; buy-target trades round the cost up, so the venue never undercharges.
func (e *FixedRateExchange) Trade(ctx context.Context, sellToken, buyToken string, amount *big.Int, buyTarget bool, order []byte) (*big.Int, *big.Int, error) {
	if amount == nil || amount.Sign() < 0 {
		return nil, nil, ErrBadRate
	}
	if buyTarget {
		sold := new(big.Int).Mul(amount, e.den)
		sold.Add(sold, new(big.Int).Sub(e.num, big.NewInt(1)))
		sold.Div(sold, e.num)
		return sold, new(big.Int).Set(amount), nil
	}
	bought := new(big.Int).Mul(amount, e.num)
	bought.Div(bought, e.den)
	return new(big.Int).Set(amount), bought, nil
}
