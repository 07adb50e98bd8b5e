package bigmath

import (
	"errors"
	"math/big"
)

var ErrDivideByZero = errors.New("bigmath: division by zero")

// DivRound divides num by den, rounding up or down as requested. The rounding
// direction at every settlement call site decides which party the leftover unit
// favors, so callers must pass it explicitly.
func DivRound(num, den *big.Int, roundUp bool) (*big.Int, error) {
	if den == nil || den.Sign() == 0 {
		return nil, ErrDivideByZero
	}
	q, r := new(big.Int).QuoRem(num, den, new(big.Int))
	if roundUp && r.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	return q, nil
}

// PartialAmount returns target * numerator / denominator: the share of target
// proportional to numerator/denominator.
func PartialAmount(target, numerator, denominator *big.Int, roundUp bool) (*big.Int, error) {
	prod := new(big.Int).Mul(target, numerator)
	return DivRound(prod, denominator, roundUp)
}
