// Package interest computes continuously compounded interest on integer
// amounts. All arithmetic is fixed point (1e18 scale) over math/big, never
// floats, and every entry point takes an explicit rounding direction so the
// caller decides which party the final unit favors.
package interest

import (
	"errors"
	"math/big"
	"time"
)

const (
	// Annual rates are expressed in basis points (10_000 = 100% APR).
	bpsDenominator = 10_000
	secondsPerYear = 31_536_000

	// Hard cap on the integer part of the exponent. e^80 is already ~5.5e34x;
	// anything past this is a malformed input, not a position worth pricing.
	maxWholeExponent = 80

	// Series terms for e^x on x in [0,1). The tail after 18 terms is below
	// 1e-16 of the 1e-18 resolution, far under one unit of any real amount.
	seriesTerms = 18
)

var (
	ErrNilPrincipal      = errors.New("interest: nil principal")
	ErrNegativePrincipal = errors.New("interest: negative principal")
	ErrExponentTooLarge  = errors.New("interest: rate times duration out of range")

	fixedOne = big.NewInt(1_000_000_000_000_000_000)
	// e scaled by 1e18.
	fixedE = big.NewInt(2_718_281_828_459_045_235)
)

// Owed returns principal plus continuously compounded interest over elapsed
// time: principal * e^(rate * t). elapsed is first rounded up to the next
// multiple of period (period <= 0 means per-second compounding). roundUp
// selects the direction of the final division: true favors the lender (amount
// a trader owes), false favors the trader (pre-funding upper-bound checks on
// the trader's own side).
func Owed(principal *big.Int, rateBps uint64, elapsed, period time.Duration, roundUp bool) (*big.Int, error) {
	if principal == nil {
		return nil, ErrNilPrincipal
	}
	if principal.Sign() < 0 {
		return nil, ErrNegativePrincipal
	}

	secs := int64(elapsed / time.Second)
	if secs < 0 {
		secs = 0
	}
	if p := int64(period / time.Second); p > 0 && secs > 0 {
		// Coarsen to the compounding granularity, always rounding up.
		secs = (secs + p - 1) / p * p
	}

	if rateBps == 0 || secs == 0 || principal.Sign() == 0 {
		return new(big.Int).Set(principal), nil
	}

	// exponent = rateBps*secs / (10_000 * secondsPerYear), kept as a fraction.
	num := new(big.Int).Mul(new(big.Int).SetUint64(rateBps), big.NewInt(secs))
	den := big.NewInt(int64(bpsDenominator) * secondsPerYear)

	whole, frac := new(big.Int).QuoRem(num, den, new(big.Int))
	if whole.Cmp(big.NewInt(maxWholeExponent)) > 0 {
		return nil, ErrExponentTooLarge
	}

	factor := expFixed(whole.Int64(), frac, den, roundUp)

	total := new(big.Int).Mul(principal, factor)
	total, r := total.QuoRem(total, fixedOne, new(big.Int))
	if roundUp && r.Sign() != 0 {
		total.Add(total, big.NewInt(1))
	}
	// Rounding in the series can only overshoot by sub-unit amounts; the
	// floor of the true value is still a hard lower bound.
	if total.Cmp(principal) < 0 {
		total.Set(principal)
	}
	return total, nil
}

// expFixed computes e^(whole + fracNum/fracDen) scaled by 1e18.
func expFixed(whole int64, fracNum, fracDen *big.Int, roundUp bool) *big.Int {
	acc := new(big.Int).Set(fixedOne)
	for i := int64(0); i < whole; i++ {
		acc = mulFixed(acc, fixedE, roundUp)
	}
	if fracNum.Sign() != 0 {
		acc = mulFixed(acc, expSeries(fracNum, fracDen, roundUp), roundUp)
	}
	return acc
}

// expSeries evaluates the Maclaurin series for e^x with x = num/den in [0,1),
// scaled by 1e18: sum of x^k / k!.
func expSeries(num, den *big.Int, roundUp bool) *big.Int {
	sum := new(big.Int).Set(fixedOne)
	term := new(big.Int).Set(fixedOne)
	for k := int64(1); k <= seriesTerms; k++ {
		term = new(big.Int).Mul(term, num)
		divisor := new(big.Int).Mul(den, big.NewInt(k))
		var r *big.Int
		term, r = term.QuoRem(term, divisor, new(big.Int))
		if roundUp && r.Sign() != 0 {
			term.Add(term, big.NewInt(1))
		}
		if term.Sign() == 0 {
			break
		}
		sum.Add(sum, term)
	}
	return sum
}

func mulFixed(a, b *big.Int, roundUp bool) *big.Int {
	prod := new(big.Int).Mul(a, b)
	q, r := prod.QuoRem(prod, fixedOne, new(big.Int))
	if roundUp && r.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}
