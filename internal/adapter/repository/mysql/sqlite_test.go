package mysql

import (
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"margincore/internal/domain/auction"
	"margincore/internal/domain/balance"
	"margincore/internal/domain/offering"
	"margincore/internal/domain/position"
	"margincore/pkg/bigmath"
)

var (
	tLender = strings.Repeat("a", 40)
	tTrader = strings.Repeat("b", 40)
	tOwed   = strings.Repeat("1", 40)
	tHeld   = strings.Repeat("2", 40)

	tStart = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
)

// openTestDB runs every repository against in-memory sqlite. The schema has
// no MySQL-only column types, so the domain models migrate as-is; the sqlite
// driver drops the row-locking clauses MySQL would honour.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&position.Position{}, &offering.FillState{}, &auction.Bid{}, &balance.Balance{}); err != nil {
		t.Fatalf("auto-migrate: %v", err)
	}
	return db
}

func makePosition(positionID string) *position.Position {
	return &position.Position{
		PositionID:         positionID,
		OwedToken:          tOwed,
		HeldToken:          tHeld,
		Lender:             tLender,
		Trader:             tTrader,
		Principal:          bigmath.NewUint64(100_000),
		ClosedAmount:       bigmath.NewUint64(0),
		CollateralBalance:  bigmath.NewUint64(200_000),
		RequiredDeposit:    bigmath.NewUint64(0),
		InterestRateBps:    1000,
		InterestPeriodSecs: 3600,
		CallTimeLimitSecs:  86_400,
		MaxDurationSecs:    31_536_000,
		StartAt:            tStart,
	}
}

func makeOffering(salt string) offering.LoanOffering {
	return offering.LoanOffering{
		Lender:             tLender,
		OwedToken:          tOwed,
		HeldToken:          tHeld,
		MaxAmount:          bigmath.NewUint64(1_000_000),
		MinAmount:          bigmath.NewUint64(1_000),
		MinHeldToken:       bigmath.NewUint64(2_000_000),
		InterestRateBps:    1000,
		InterestPeriodSecs: 3600,
		CallTimeLimitSecs:  86_400,
		MaxDurationSecs:    31_536_000,
		ExpiresAt:          tStart.AddDate(1, 0, 0),
		Salt:               salt,
	}
}
