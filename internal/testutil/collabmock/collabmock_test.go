package collabmock

import (
	"context"
	"math/big"
	"testing"
)

func TestExchange_DefaultRate(t *testing.T) {
	ex := &Exchange{Num: 2, Den: 3}
	ctx := context.Background()

	// Sell target: proceeds round down. 100*2/3 = 66.
	sold, bought, err := ex.Trade(ctx, "s", "b", big.NewInt(100), false, nil)
	if err != nil {
		t.Fatalf("Trade: %v", err)
	}
	if sold.Int64() != 100 || bought.Int64() != 66 {
		t.Fatalf("sell: sold=%s bought=%s", sold, bought)
	}

	// Buy target: cost rounds up. ceil(100*3/2) = 150, ceil(101*3/2) = 152.
	sold, bought, err = ex.Trade(ctx, "s", "b", big.NewInt(101), true, nil)
	if err != nil {
		t.Fatalf("Trade: %v", err)
	}
	if bought.Int64() != 101 || sold.Int64() != 152 {
		t.Fatalf("buy: sold=%s bought=%s", sold, bought)
	}

	if len(ex.Calls) != 2 {
		t.Fatalf("calls recorded = %d, want 2", len(ex.Calls))
	}
	if !ex.Calls[1].BuyTarget || ex.Calls[1].Amount.Int64() != 101 {
		t.Fatalf("unexpected call record: %+v", ex.Calls[1])
	}
}

func TestExchange_ZeroRateMeansIdentity(t *testing.T) {
	ex := &Exchange{}
	sold, bought, err := ex.Trade(context.Background(), "s", "b", big.NewInt(50), false, nil)
	if err != nil {
		t.Fatalf("Trade: %v", err)
	}
	if sold.Int64() != 50 || bought.Int64() != 50 {
		t.Fatalf("identity trade: sold=%s bought=%s", sold, bought)
	}
}

func TestExchange_TradeFnOverride(t *testing.T) {
	ex := &Exchange{
		TradeFn: func(ctx context.Context, sellToken, buyToken string, amount *big.Int, buyTarget bool, order []byte) (*big.Int, *big.Int, error) {
			return big.NewInt(1), big.NewInt(2), nil
		},
	}
	sold, bought, err := ex.Trade(context.Background(), "s", "b", big.NewInt(50), false, nil)
	if err != nil {
		t.Fatalf("Trade: %v", err)
	}
	if sold.Int64() != 1 || bought.Int64() != 2 {
		t.Fatalf("override ignored: sold=%s bought=%s", sold, bought)
	}
}

func TestAuthorizer_Defaults(t *testing.T) {
	a := &Authorizer{}
	ok, err := a.IsAuthorized(context.Background(), "hash", "signer")
	if err != nil || !ok {
		t.Fatalf("default authorizer: ok=%v err=%v", ok, err)
	}

	a.IsAuthorizedFn = func(ctx context.Context, hash, signer string) (bool, error) { return false, nil }
	ok, _ = a.IsAuthorized(context.Background(), "hash", "signer")
	if ok {
		t.Fatalf("override ignored")
	}
}
