package main

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	httpadp "margincore/internal/adapter/http"
	appmw "margincore/internal/adapter/middleware"
	"margincore/internal/adapter/repository/mysql"
	"margincore/internal/adapter/settlement"
	"margincore/internal/config"
	"margincore/internal/domain/auction"
	"margincore/internal/domain/balance"
	"margincore/internal/domain/collab"
	"margincore/internal/domain/offering"
	"margincore/internal/domain/position"
	"margincore/internal/infrastructure/cache"
	"margincore/internal/infrastructure/db"
	auctionuc "margincore/internal/usecase/auction"
	"margincore/internal/usecase/margin"
	offeringuc "margincore/internal/usecase/offering"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	gdb, err := db.OpenGorm(cfg.MySQLDSN())
	if err != nil {
		log.Fatalf("mysql: %v", err)
	}
	if err := gdb.AutoMigrate(
		&position.Position{},
		&offering.FillState{},
		&auction.Bid{},
		&balance.Balance{},
	); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	rdb, err := cache.OpenRedis(cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}

	exchange, err := settlement.NewFixedRateExchange(cfg.ExchangeRateNum, cfg.ExchangeRateDen)
	if err != nil {
		log.Fatalf("exchange: %v", err)
	}
	authorizer := settlement.NewRedisAuthorizer(rdb)

	u := mysql.NewGormUoW(gdb)
	marginUC := margin.NewUsecase(u, exchange, authorizer, collab.PlainAccounts{})
	offeringUC := offeringuc.NewUsecase(u)
	auctionUC := auctionuc.NewUsecase(u)

	h := httpadp.NewHandler()
	positions := httpadp.NewPositionHandler(marginUC)
	offerings := httpadp.NewOfferingHandler(offeringUC)
	auctions := httpadp.NewAuctionHandler(auctionUC)

	e := echo.New()
	e.HideBanner = true
	e.Validator = httpadp.NewValidator()
	e.Use(echomw.Logger(), echomw.Recover())
	e.Use(appmw.IdempotencyMiddleware(rdb, time.Duration(cfg.IdempTTLSecs)*time.Second))

	// routes
	e.GET("/health", h.Health)

	e.POST("/positions", positions.OpenPosition)
	e.GET("/positions/:position_id", positions.GetPosition)
	e.POST("/positions/:position_id/increase", positions.IncreasePosition)
	e.POST("/positions/:position_id/deposit", positions.DepositCollateral)
	e.POST("/positions/:position_id/close", positions.ClosePosition)
	e.POST("/positions/:position_id/close-direct", positions.ClosePositionDirect)
	e.POST("/positions/:position_id/margin-call", positions.MarginCall)
	e.POST("/positions/:position_id/cancel-margin-call", positions.CancelMarginCall)
	e.POST("/positions/:position_id/force-recover", positions.ForceRecover)

	e.POST("/positions/:position_id/bids", auctions.PlaceBid)
	e.GET("/positions/:position_id/bid", auctions.GetBid)

	e.POST("/offerings/cancel", offerings.CancelOffering)
	e.POST("/offerings/approve", offerings.ApproveOffering)
	e.POST("/offerings/available", offerings.Available)

	addr := ":" + cfg.AppPort
	log.Printf("listening on %s", addr)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
