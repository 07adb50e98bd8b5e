package uowmock

import (
	"context"
	"errors"
	"testing"

	"margincore/internal/domain/position"
	"margincore/internal/domain/uow"
	"margincore/internal/testutil/memstore"
)

func TestUoW_WithinTx_Happy(t *testing.T) {
	ctx := context.Background()

	repos := memstore.New().Repos()

	innerCalled := false
	m := &UoW{
		WithinTxFn: func(gotCtx context.Context, fn func(r uow.Repos) error) error {
			if gotCtx != ctx {
				t.Fatalf("WithinTx: ctx mismatch")
			}
			if fn == nil {
				t.Fatalf("WithinTx: fn is nil")
			}
			// simulate transaction body
			return fn(repos)
		},
	}

	err := m.WithinTx(ctx, func(r uow.Repos) error {
		innerCalled = true
		if r.Positions != repos.Positions || r.Balances != repos.Balances {
			t.Fatalf("WithinTx: repos not forwarded correctly")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithinTx: unexpected err: %v", err)
	}
	if !innerCalled {
		t.Fatalf("WithinTx: inner fn not called")
	}
}

func TestUoW_WithinTx_PropagatesError(t *testing.T) {
	ctx := context.Background()
	sentinel := errors.New("boom")

	m := &UoW{
		WithinTxFn: func(context.Context, func(uow.Repos) error) error {
			return sentinel
		},
	}
	if err := m.WithinTx(ctx, func(uow.Repos) error { return nil }); !errors.Is(err, sentinel) {
		t.Fatalf("WithinTx: want %v, got %v", sentinel, err)
	}
}

func TestUoW_WithinTx_Default_Unimplemented(t *testing.T) {
	ctx := context.Background()
	m := &UoW{} // no funcs set
	if err := m.WithinTx(ctx, func(uow.Repos) error { return nil }); !errors.Is(err, errUnimplemented) {
		t.Fatalf("WithinTx default: want errUnimplemented, got %v", err)
	}
}

func TestUoW_WithinPositionTx_Happy(t *testing.T) {
	ctx := context.Background()

	repos := memstore.New().Repos()
	lock := &position.Position{ID: 7, PositionID: "pos-7"}

	innerCalled := false
	m := &UoW{
		WithinPositionTxFn: func(gotCtx context.Context, positionID string, fn func(r uow.Repos, p *position.Position) error) error {
			if gotCtx != ctx {
				t.Fatalf("WithinPositionTx: ctx mismatch")
			}
			if positionID != "pos-7" {
				t.Fatalf("WithinPositionTx: positionID mismatch, got %s", positionID)
			}
			return fn(repos, lock)
		},
	}

	err := m.WithinPositionTx(ctx, "pos-7", func(r uow.Repos, p *position.Position) error {
		innerCalled = true
		if r.Positions != repos.Positions || r.Balances != repos.Balances {
			t.Fatalf("WithinPositionTx: repos not forwarded")
		}
		if p != lock || p.PositionID != "pos-7" {
			t.Fatalf("WithinPositionTx: position not forwarded correctly: %+v", p)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithinPositionTx: unexpected err: %v", err)
	}
	if !innerCalled {
		t.Fatalf("WithinPositionTx: inner fn not called")
	}
}

func TestUoW_WithinPositionTx_PropagatesError(t *testing.T) {
	ctx := context.Background()
	sentinel := errors.New("stop")

	m := &UoW{
		WithinPositionTxFn: func(context.Context, string, func(uow.Repos, *position.Position) error) error {
			return sentinel
		},
	}
	if err := m.WithinPositionTx(ctx, "pos-x", func(uow.Repos, *position.Position) error { return nil }); !errors.Is(err, sentinel) {
		t.Fatalf("WithinPositionTx: want %v, got %v", sentinel, err)
	}
}

func TestUoW_Default_Unimplemented_WithinPositionTx(t *testing.T) {
	ctx := context.Background()
	m := &UoW{} // no funcs set
	if err := m.WithinPositionTx(ctx, "pos-x", func(uow.Repos, *position.Position) error { return nil }); !errors.Is(err, errUnimplemented) {
		t.Fatalf("WithinPositionTx default: want errUnimplemented, got %v", err)
	}
}

func TestUoW_FluentSetters_And_Reset(t *testing.T) {
	m := New()
	if m.WithinTxFn != nil || m.WithinPositionTxFn != nil {
		t.Fatalf("New should start with nil funcs")
	}

	// set via fluent setters
	m.WithWithinTx(func(context.Context, func(uow.Repos) error) error { return nil }).
		WithWithinPositionTx(func(context.Context, string, func(uow.Repos, *position.Position) error) error { return nil })

	if m.WithinTxFn == nil || m.WithinPositionTxFn == nil {
		t.Fatalf("fluent setters didn't assign funcs")
	}

	// reset clears funcs
	m.Reset()
	if m.WithinTxFn != nil || m.WithinPositionTxFn != nil {
		t.Fatalf("Reset should clear function fields")
	}
}
