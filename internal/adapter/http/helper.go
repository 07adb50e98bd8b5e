package http

import (
	"errors"
	"math/big"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"margincore/internal/domain/auction"
	"margincore/internal/domain/balance"
	"margincore/internal/domain/collab"
	"margincore/internal/domain/offering"
	"margincore/internal/domain/position"
)

// ---- helpers ----

func containsFieldMsg(list []FieldError, field, substr string) bool {
	for _, e := range list {
		if e.Field == field && strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}

// parseAmount assumes the string already passed the uintstr tag.
func parseAmount(s string) *big.Int {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return big.NewInt(0)
	}
	return n
}

// domainErr maps a usecase error onto its HTTP status. Anything unrecognized
// is a 500 so storage faults never masquerade as caller mistakes.
func domainErr(c echo.Context, err error) error {
	return c.JSON(statusOf(err), ErrorResponse{Error: err.Error()})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, position.ErrNotFound),
		errors.Is(err, auction.ErrNoBid):
		return http.StatusNotFound

	case errors.Is(err, position.ErrNotTrader),
		errors.Is(err, position.ErrNotLender),
		errors.Is(err, position.ErrConsentDenied),
		errors.Is(err, offering.ErrNotLender),
		errors.Is(err, offering.ErrNotAuthorized),
		errors.Is(err, offering.ErrTakerMismatch),
		errors.Is(err, auction.ErrNotBidder):
		return http.StatusForbidden

	case errors.Is(err, position.ErrAlreadyExists),
		errors.Is(err, position.ErrAlreadyCalled),
		errors.Is(err, position.ErrNotCalled),
		errors.Is(err, position.ErrMatured),
		errors.Is(err, position.ErrRecoveryNotReady),
		errors.Is(err, offering.ErrExpired),
		errors.Is(err, offering.ErrInsufficient),
		errors.Is(err, auction.ErrBidTooLow),
		errors.Is(err, balance.ErrInsufficient):
		return http.StatusConflict

	case errors.Is(err, position.ErrInvalidAmount),
		errors.Is(err, position.ErrCollateralRate),
		errors.Is(err, position.ErrInsufficientCollateral),
		errors.Is(err, position.ErrWorseTerms),
		errors.Is(err, offering.ErrAmountBounds),
		errors.Is(err, offering.ErrInvalidTerms),
		errors.Is(err, offering.ErrTokenMismatch),
		errors.Is(err, balance.ErrInvalidAmount),
		errors.Is(err, collab.ErrOrderUnderfilled):
		return http.StatusUnprocessableEntity

	default:
		return http.StatusInternalServerError
	}
}
