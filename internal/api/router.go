package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/core-banking/ledger/internal/api/handler"
	"github.com/core-banking/ledger/internal/api/middleware"
)

// setupRouter configures API routes and middleware for the application
func setupRouter(
	logger *slog.Logger,
	r *gin.Engine,
	accountHandler *handler.AccountHandler,
	ledgerHandler *handler.LedgerHandler,
	opsHandler *handler.OpsHandler,
) {
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CorrelationID())

	// API v1 endpoints
	v1 := r.Group("/api/v1")
	{
		// Account operations
		accounts := v1.Group("/accounts")
		{
			accounts.POST("", accountHandler.Create)
			accounts.GET("/:number", accountHandler.Get)
			accounts.PATCH("/:number/status", accountHandler.UpdateStatus)
			accounts.GET("/:number/transactions", accountHandler.GetTransactions)
		}

		// Money movements
		operations := v1.Group("/operations")
		{
			operations.POST("/deposit", ledgerHandler.Deposit)
			operations.POST("/withdraw", ledgerHandler.Withdraw)
			operations.POST("/transfer", ledgerHandler.Transfer)
		}

		// Journal lookup
		v1.GET("/transactions/:ref", ledgerHandler.GetByRef)
		v1.GET("/transactions", opsHandler.ListTransactionsByTimeRange)

		// Operational inspection
		v1.GET("/outbox/flagged", opsHandler.ListFlaggedOutbox)
		audit := v1.Group("/audit")
		{
			audit.GET("", opsHandler.ListRecentAuditLogs)
			audit.GET("/:entity_id", opsHandler.GetAuditLog)
		}
	}

	// Health check endpoint for monitoring
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})
}
