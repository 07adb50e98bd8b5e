package uowmock

import (
	"context"
	"errors"

	"margincore/internal/domain/position"
	"margincore/internal/domain/uow"
)

// Ensure compile-time compliance
var _ uow.UnitOfWork = (*UoW)(nil)

var errUnimplemented = errors.New("uowmock: method not implemented")

// UoW is a function-backed mock that satisfies uow.UnitOfWork.
// Fill in the function fields you need in a test; unfilled ones return errUnimplemented.
type UoW struct {
	WithinTxFn         func(ctx context.Context, fn func(r uow.Repos) error) error
	WithinPositionTxFn func(ctx context.Context, positionID string, fn func(r uow.Repos, p *position.Position) error) error
}

// Convenience fluent setters
func New() *UoW { return &UoW{} }
func (m *UoW) WithWithinTx(fn func(context.Context, func(uow.Repos) error) error) *UoW {
	m.WithinTxFn = fn
	return m
}
func (m *UoW) WithWithinPositionTx(fn func(context.Context, string, func(uow.Repos, *position.Position) error) error) *UoW {
	m.WithinPositionTxFn = fn
	return m
}
func (m *UoW) Reset() { *m = UoW{} }

// Methods implementing UnitOfWork
func (m *UoW) WithinTx(ctx context.Context, fn func(r uow.Repos) error) error {
	if m.WithinTxFn != nil {
		return m.WithinTxFn(ctx, fn)
	}
	return errUnimplemented
}
func (m *UoW) WithinPositionTx(ctx context.Context, positionID string, fn func(r uow.Repos, p *position.Position) error) error {
	if m.WithinPositionTxFn != nil {
		return m.WithinPositionTxFn(ctx, positionID, fn)
	}
	return errUnimplemented
}
