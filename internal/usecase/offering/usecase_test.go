package offering

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	domain "margincore/internal/domain/offering"
	"margincore/internal/domain/uow"
	"margincore/internal/testutil/memstore"
	"margincore/internal/testutil/uowmock"
	"margincore/pkg/bigmath"
)

var (
	tLender = strings.Repeat("a", 40)
	tOther  = strings.Repeat("d", 40)
	tOwed   = strings.Repeat("1", 40)
	tHeld   = strings.Repeat("2", 40)

	tStart = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
)

func testOffering() domain.LoanOffering {
	return domain.LoanOffering{
		Lender:             tLender,
		OwedToken:          tOwed,
		HeldToken:          tHeld,
		MaxAmount:          bigmath.NewUint64(1_000_000),
		MinAmount:          bigmath.NewUint64(1_000),
		MinHeldToken:       bigmath.NewUint64(2_000_000),
		InterestRateBps:    1000,
		InterestPeriodSecs: 1,
		CallTimeLimitSecs:  86_400,
		MaxDurationSecs:    31_536_000,
		ExpiresAt:          tStart.AddDate(1, 0, 0),
		Salt:               "s-1",
	}
}

func newUsecase(t *testing.T) (*memstore.Store, *Usecase) {
	t.Helper()
	store := memstore.New()
	return store, NewUsecase(store).WithClock(memstore.FixedClock(tStart))
}

func TestCancel_ClampsToAvailable(t *testing.T) {
	store, uc := newUsecase(t)
	off := testOffering()
	ctx := context.Background()

	// 600k already drawn by positions.
	if err := store.Repos().Offerings.Commit(ctx, &off, big.NewInt(600_000)); err != nil {
		t.Fatalf("seed commit: %v", err)
	}

	cancelled, err := uc.Cancel(ctx, CancelInput{Offering: off, Caller: tLender, Amount: big.NewInt(500_000)})
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if cancelled.Int64() != 400_000 {
		t.Fatalf("cancelled = %s, want 400000", cancelled)
	}

	dto, err := uc.Available(ctx, off)
	if err != nil {
		t.Fatalf("Available: %v", err)
	}
	if dto.Filled != "600000" || dto.Cancelled != "400000" || dto.Available != "0" {
		t.Fatalf("fill state: %+v", dto)
	}

	// Nothing left: a further cancel is a no-op returning zero.
	cancelled, err = uc.Cancel(ctx, CancelInput{Offering: off, Caller: tLender, Amount: big.NewInt(1)})
	if err != nil {
		t.Fatalf("second Cancel: %v", err)
	}
	if cancelled.Sign() != 0 {
		t.Fatalf("second cancel = %s, want 0", cancelled)
	}
}

func TestCancel_OnlyLender(t *testing.T) {
	_, uc := newUsecase(t)

	_, err := uc.Cancel(context.Background(), CancelInput{Offering: testOffering(), Caller: tOther, Amount: big.NewInt(1)})
	if !errors.Is(err, domain.ErrNotLender) {
		t.Fatalf("want ErrNotLender, got %v", err)
	}
}

func TestCancel_AmountBounds(t *testing.T) {
	_, uc := newUsecase(t)
	ctx := context.Background()

	for _, amount := range []*big.Int{nil, big.NewInt(0), big.NewInt(-5)} {
		_, err := uc.Cancel(ctx, CancelInput{Offering: testOffering(), Caller: tLender, Amount: amount})
		if !errors.Is(err, domain.ErrAmountBounds) {
			t.Fatalf("amount %v: want ErrAmountBounds, got %v", amount, err)
		}
	}
}

func TestApprove(t *testing.T) {
	_, uc := newUsecase(t)
	off := testOffering()
	ctx := context.Background()

	if err := uc.Approve(ctx, ApproveInput{Offering: off, Caller: tOther}); !errors.Is(err, domain.ErrNotLender) {
		t.Fatalf("stranger approve: want ErrNotLender, got %v", err)
	}

	if err := uc.Approve(ctx, ApproveInput{Offering: off, Caller: tLender}); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	dto, err := uc.Available(ctx, off)
	if err != nil {
		t.Fatalf("Available: %v", err)
	}
	if !dto.Approved {
		t.Fatalf("offering not approved: %+v", dto)
	}
}

func TestApprove_Expired(t *testing.T) {
	_, uc := newUsecase(t)
	off := testOffering()
	uc.WithClock(memstore.FixedClock(off.ExpiresAt))

	err := uc.Approve(context.Background(), ApproveInput{Offering: off, Caller: tLender})
	if !errors.Is(err, domain.ErrExpired) {
		t.Fatalf("want ErrExpired, got %v", err)
	}
}

func TestAvailable_Untouched(t *testing.T) {
	_, uc := newUsecase(t)
	off := testOffering()

	dto, err := uc.Available(context.Background(), off)
	if err != nil {
		t.Fatalf("Available: %v", err)
	}
	if dto.OfferingID != off.Hash() {
		t.Fatalf("offering id = %s", dto.OfferingID)
	}
	if dto.MaxAmount != "1000000" || dto.Filled != "0" || dto.Cancelled != "0" || dto.Available != "1000000" || dto.Approved {
		t.Fatalf("fresh fill state: %+v", dto)
	}
}

func TestCancel_StoreErrorPropagates(t *testing.T) {
	sentinel := errors.New("tx failed")
	m := uowmock.New().WithWithinTx(func(context.Context, func(uow.Repos) error) error {
		return sentinel
	})
	uc := NewUsecase(m)

	off := testOffering()
	_, err := uc.Cancel(context.Background(), CancelInput{Offering: off, Caller: tLender, Amount: big.NewInt(1)})
	if !errors.Is(err, sentinel) {
		t.Fatalf("err = %v, want the store failure", err)
	}
}
