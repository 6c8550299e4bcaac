package handler

import (
	"log/slog"

	"atmledger/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
)

// SetupRouter wires middleware and routes. rdb may be nil, which turns the
// Idempotency-Key guard off.
func SetupRouter(ledger Ledger, rdb redis.Cmdable, cfg *config.Config, log *slog.Logger) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(log))
	r.Use(LoggerMiddleware(log.With("component", "http")))
	r.Use(CORSMiddleware())

	h := NewHandler(ledger)

	// mutations honour Idempotency-Key when redis is configured
	mutating := []gin.HandlerFunc{}
	if rdb != nil {
		guard := NewIdempotencyGuard(rdb, cfg.Redis.IdempotencyTTL, log)
		mutating = append(mutating, guard.Middleware())
	}
	with := func(handler gin.HandlerFunc) []gin.HandlerFunc {
		return append(append([]gin.HandlerFunc{}, mutating...), handler)
	}

	api := r.Group("/api/v1")
	{
		api.POST("/auth/login", h.Login)

		accounts := api.Group("/accounts/:number")
		{
			accounts.GET("", h.GetAccount)
			accounts.GET("/balance", h.GetBalance)
			accounts.GET("/movements", h.ListMovements)
			accounts.POST("/deposit", with(h.Deposit)...)
			accounts.POST("/withdraw", with(h.Withdraw)...)
			accounts.PUT("/pin", with(h.ChangePin)...)
			accounts.PUT("/block", with(h.BlockAccount)...)
		}

		api.POST("/transfers", with(h.Transfer)...)
		api.GET("/receipts/:id", h.GetReceipt)
	}

	r.GET("/health", h.Live)
	r.GET("/health/ready", h.Ready)

	return r
}
