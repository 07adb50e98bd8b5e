package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestOpenRedis(t *testing.T) {
	s := miniredis.RunT(t)

	c, err := OpenRedis(s.Addr(), 3)
	if err != nil {
		t.Fatalf("OpenRedis: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })

	if got := c.Options().DB; got != 3 {
		t.Fatalf("client DB = %d, want 3", got)
	}

	// Exercise the SetNX path the idempotency layer relies on.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	ok, err := c.SetNX(ctx, "idem:abc", "pending", time.Minute).Result()
	if err != nil || !ok {
		t.Fatalf("first SetNX ok=%v err=%v", ok, err)
	}
	ok, err = c.SetNX(ctx, "idem:abc", "pending", time.Minute).Result()
	if err != nil || ok {
		t.Fatalf("second SetNX ok=%v err=%v, want a miss", ok, err)
	}
}

func TestOpenRedis_BadAddress(t *testing.T) {
	if _, err := OpenRedis("localhost:0", 0); err == nil {
		t.Fatal("expected connection error, got nil")
	}
}
