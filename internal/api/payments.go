package api

import (
	"errors"   // Error matching
	"net/http" // HTTP status codes

	"lightning_wallet/internal/connector" // Connector error taxonomy
	"lightning_wallet/internal/payment"   // Authorization orchestrator

	"github.com/gin-gonic/gin" // Gin web framework
)

// PaymentRequest represents an inbound payment request from a page origin
type PaymentRequest struct {
	Origin  string `json:"origin" binding:"required"`  // Requesting page origin
	Invoice string `json:"invoice" binding:"required"` // Payment request string
}

// RequestPaymentHandler runs one payment request through the authorization
// orchestrator and maps its error taxonomy onto the wire
func RequestPaymentHandler(orch *payment.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req PaymentRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			// If invalid, return bad request
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		res, err := orch.SendPayment(c.Request.Context(), req.Origin, req.Invoice)
		if err != nil {
			var denied *payment.DeniedError
			var cerr *connector.ConnectorError
			switch {
			case errors.Is(err, payment.ErrInvalidOrigin):
				// Rejected before touching any store
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid origin"})
			case errors.Is(err, payment.ErrInvalidAmount):
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid amount"})
			case errors.As(err, &denied):
				// Denied by the ledger; nothing was mutated
				c.JSON(http.StatusPaymentRequired, gin.H{"error": "Payment denied", "reason": denied.Reason})
			case errors.As(err, &cerr):
				// Backend failure; the attempt is journaled, nothing debited
				c.JSON(http.StatusBadGateway, gin.H{"error": cerr.Message, "reason": string(cerr.Reason)})
			default:
				// Storage failures stay generic; detail goes to logs only
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Payment processing failed"})
			}
			return
		}
		// Return settlement proof to the caller
		c.JSON(http.StatusOK, gin.H{
			"settled":  true,          // Payment settled
			"preimage": res.Preimage,  // Settlement proof
			"host":     res.Host,      // Debited origin
			"amount":   res.AmountSat, // Amount in satoshis
		})
	}
}
