// Package memstore is an in-memory implementation of the unit of work and
// all repositories, with snapshot rollback so usecase tests exercise the
// all-or-nothing failure semantics without a database.
package memstore

import (
	"context"
	"math/big"
	"sync"
	"time"

	"gorm.io/gorm"

	"margincore/internal/domain/auction"
	"margincore/internal/domain/offering"
	"margincore/internal/domain/position"
	"margincore/internal/domain/uow"
	"margincore/pkg/bigmath"
)

type Store struct {
	mu sync.Mutex

	positions  map[string]*position.Position
	tombstones map[string]bool
	fills      map[string]*offering.FillState
	bids       map[string]*auction.Bid
	balances   map[string]*big.Int // "token|party"
}

func New() *Store {
	return &Store{
		positions:  map[string]*position.Position{},
		tombstones: map[string]bool{},
		fills:      map[string]*offering.FillState{},
		bids:       map[string]*auction.Bid{},
		balances:   map[string]*big.Int{},
	}
}

var _ uow.UnitOfWork = (*Store)(nil)

func (s *Store) WithinTx(ctx context.Context, fn func(r uow.Repos) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.snapshot()
	if err := fn(s.repos()); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *Store) WithinPositionTx(ctx context.Context, positionID string, fn func(r uow.Repos, p *position.Position) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.positions[positionID]
	if !ok {
		return position.ErrNotFound
	}
	snap := s.snapshot()
	if err := fn(s.repos(), clonePosition(stored)); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *Store) repos() uow.Repos {
	return uow.Repos{
		Positions: &positionRepo{s},
		Offerings: &offeringRepo{s},
		Bids:      &bidRepo{s},
		Balances:  &balanceRepo{s},
	}
}

// --- direct helpers for test setup and assertions ---

// Repos exposes the repositories outside any transaction, for tests that
// wire them directly and do not need rollback.
func (s *Store) Repos() uow.Repos { return s.repos() }

func (s *Store) SetBalance(token, party string, amount int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[token+"|"+party] = big.NewInt(amount)
}

func (s *Store) Balance(token, party string) *big.Int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.balances[token+"|"+party]; ok {
		return new(big.Int).Set(v)
	}
	return big.NewInt(0)
}

// TotalSupply sums every party's balance of token; conservation tests assert
// it only changes by what the exchange collaborator injected or drained.
func (s *Store) TotalSupply(token string) *big.Int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := big.NewInt(0)
	prefix := token + "|"
	for k, v := range s.balances {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			total.Add(total, v)
		}
	}
	return total
}

func (s *Store) PositionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.positions)
}

// --- snapshot / restore ---

type snapshot struct {
	positions  map[string]*position.Position
	tombstones map[string]bool
	fills      map[string]*offering.FillState
	bids       map[string]*auction.Bid
	balances   map[string]*big.Int
}

func (s *Store) snapshot() snapshot {
	snap := snapshot{
		positions:  make(map[string]*position.Position, len(s.positions)),
		tombstones: make(map[string]bool, len(s.tombstones)),
		fills:      make(map[string]*offering.FillState, len(s.fills)),
		bids:       make(map[string]*auction.Bid, len(s.bids)),
		balances:   make(map[string]*big.Int, len(s.balances)),
	}
	for k, v := range s.positions {
		snap.positions[k] = clonePosition(v)
	}
	for k, v := range s.tombstones {
		snap.tombstones[k] = v
	}
	for k, v := range s.fills {
		snap.fills[k] = cloneFill(v)
	}
	for k, v := range s.bids {
		snap.bids[k] = cloneBid(v)
	}
	for k, v := range s.balances {
		snap.balances[k] = new(big.Int).Set(v)
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.positions = snap.positions
	s.tombstones = snap.tombstones
	s.fills = snap.fills
	s.bids = snap.bids
	s.balances = snap.balances
}

func clonePosition(p *position.Position) *position.Position {
	out := *p
	out.Principal = bigmath.New(p.Principal.Int())
	out.ClosedAmount = bigmath.New(p.ClosedAmount.Int())
	out.CollateralBalance = bigmath.New(p.CollateralBalance.Int())
	out.RequiredDeposit = bigmath.New(p.RequiredDeposit.Int())
	if p.CalledAt != nil {
		t := *p.CalledAt
		out.CalledAt = &t
	}
	return &out
}

func cloneFill(f *offering.FillState) *offering.FillState {
	out := *f
	out.MaxAmount = bigmath.New(f.MaxAmount.Int())
	out.Filled = bigmath.New(f.Filled.Int())
	out.Cancelled = bigmath.New(f.Cancelled.Int())
	return &out
}

func cloneBid(b *auction.Bid) *auction.Bid {
	out := *b
	out.OfferAmount = bigmath.New(b.OfferAmount.Int())
	out.EscrowedCollateral = bigmath.New(b.EscrowedCollateral.Int())
	return &out
}

// notFound mirrors what the gorm-backed repositories return so usecases can
// errors.Is the same sentinel in both environments.
var notFound = gorm.ErrRecordNotFound

// FixedClock is handy alongside usecase WithClock in tests.
func FixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }
