package api

import (
	"context"  // Context for Redis operations
	"errors"   // Error matching
	"net/http" // HTTP status codes
	"time"     // Cache TTL

	"lightning_wallet/internal/allowance" // Allowance ledger
	"lightning_wallet/internal/journal"   // Payment history
	"lightning_wallet/internal/utils"     // Cache helpers

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logging library
)

// AllowanceResponse is one row of the allowance report
type AllowanceResponse struct {
	ID              uint   `json:"id"`              // Allowance id
	Host            string `json:"host"`            // Origin host
	TotalBudget     int64  `json:"totalBudget"`     // Granted budget
	RemainingBudget int64  `json:"remainingBudget"` // Remaining budget
	UsedBudget      int64  `json:"usedBudget"`      // Spent budget
	Percentage      int    `json:"percentage"`      // Rounded percent used
	LastPaymentAt   int64  `json:"lastPaymentAt"`   // Last debit time in milliseconds
	PaymentsCount   int64  `json:"paymentsCount"`   // Journal records for the host
	PaymentsAmount  int64  `json:"paymentsAmount"`  // Sum of journal amounts for the host
}

// GrantRequest represents a budget grant request
type GrantRequest struct {
	Host        string `json:"host" binding:"required"`     // Origin host
	TotalBudget int64  `json:"totalBudget" binding:"gte=0"` // Budget to grant or add; zero blocks the origin
}

// ListAllowancesHandler returns every allowance with its derived stats,
// most recently used first
func ListAllowancesHandler(ledger *allowance.Ledger, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := context.Background() // Context for Redis operations
		var cached struct {
			Allowances []AllowanceResponse `json:"allowances"` // Report rows
		}
		// Try to get from cache
		found, err := utils.GetCache(ctx, rdb, utils.AllowanceReportKey, &cached)
		if err == nil && found {
			// Return cached report
			c.JSON(http.StatusOK, gin.H{"allowances": cached.Allowances, "cached": true})
			return
		}
		allowances, err := ledger.List() // Ordered by last payment, descending
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list allowances"})
			return
		}
		resp := make([]AllowanceResponse, 0, len(allowances))
		// Derived numbers come from the ledger's journal join, which also
		// cross-checks the allowance row against the journal on every read
		for _, a := range allowances {
			stats, err := ledger.Stats(a.Host)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read payment history"})
				return
			}
			resp = append(resp, AllowanceResponse{
				ID:              a.ID,                 // Allowance id
				Host:            a.Host,               // Origin host
				TotalBudget:     a.TotalBudget,        // Granted budget
				RemainingBudget: a.RemainingBudget,    // Remaining budget
				UsedBudget:      stats.UsedBudget,     // Spent budget
				Percentage:      stats.PercentageUsed, // Rounded percent used
				LastPaymentAt:   a.LastPaymentAt,      // Last debit time
				PaymentsCount:   stats.PaymentsCount,  // Journal record count
				PaymentsAmount:  stats.PaymentsAmount, // Journal amount sum
			})
		}
		// Cache the report for 60 seconds; mutations delete the key
		_ = utils.SetCache(ctx, rdb, utils.AllowanceReportKey, gin.H{"allowances": resp}, 60*time.Second)
		c.JSON(http.StatusOK, gin.H{"allowances": resp, "cached": false})
	}
}

// GrantAllowanceHandler creates or tops up an origin's budget. This endpoint
// is the explicit user consent surface: pages can never grant themselves.
func GrantAllowanceHandler(ledger *allowance.Ledger, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req GrantRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil || req.TotalBudget < 0 {
			// If invalid, return bad request
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		a, err := ledger.Grant(req.Host, req.TotalBudget)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"host":  req.Host,    // Origin host
				"error": err.Error(), // Failure detail
			}).Error("Failed to grant allowance")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to grant allowance"})
			return
		}
		// Invalidate the report cache
		_ = utils.DeleteCache(context.Background(), rdb, utils.AllowanceReportKey)
		logrus.WithFields(logrus.Fields{
			"host":   a.Host,          // Origin host
			"budget": req.TotalBudget, // Granted amount
			"total":  a.TotalBudget,   // New total
		}).Info("Allowance granted")
		c.JSON(http.StatusCreated, gin.H{"allowance": a})
	}
}

// RemoveAllowanceHandler deletes an origin's allowance. Payment history for
// the host is intentionally kept.
func RemoveAllowanceHandler(ledger *allowance.Ledger, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		host := c.Param("host") // Origin host from path
		if err := ledger.Remove(host); err != nil {
			if errors.Is(err, allowance.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Allowance not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove allowance"})
			return
		}
		// Invalidate the report cache
		_ = utils.DeleteCache(context.Background(), rdb, utils.AllowanceReportKey)
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// AllowancePaymentsHandler returns the host's payment history, most recent first
func AllowancePaymentsHandler(j *journal.Journal) gin.HandlerFunc {
	return func(c *gin.Context) {
		payments, err := j.QueryByHost(c.Param("host"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read payment history"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"payments": payments})
	}
}
