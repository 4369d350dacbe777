package api

import (
	"encoding/json" // Raw connector config payloads
	"errors"        // Error matching
	"net/http"      // HTTP status codes

	"lightning_wallet/internal/accounts" // Account store

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library
)

// AddAccountRequest represents an add-account request
type AddAccountRequest struct {
	Name      string          `json:"name" binding:"required"`      // User-visible label
	Connector string          `json:"connector" binding:"required"` // Connector kind tag
	Config    json.RawMessage `json:"config" binding:"required"`    // Backend-specific credentials
}

// RenameAccountRequest represents a rename request
type RenameAccountRequest struct {
	Name string `json:"name" binding:"required"` // New label
}

// AccountResponse is the non-sensitive view of an account. Sealed credentials
// never leave the store except through the explicit export endpoint.
type AccountResponse struct {
	ID        string `json:"id"`        // Account id
	Name      string `json:"name"`      // Label
	Connector string `json:"connector"` // Backend variant
	Balance   int64  `json:"balance"`   // Cached balance in satoshis
	Active    bool   `json:"active"`    // Whether this account services payments
}

// ListAccountsHandler returns all accounts in insertion order
func ListAccountsHandler(store *accounts.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := store.List()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list accounts"})
			return
		}
		active, _ := store.GetActive() // No active account is fine for an empty wallet
		resp := make([]AccountResponse, len(list))
		for i, a := range list {
			resp[i] = AccountResponse{
				ID:        a.ID,                            // Account id
				Name:      a.Name,                          // Label
				Connector: a.Connector,                     // Backend variant
				Balance:   a.Balance,                       // Cached balance
				Active:    active != nil && active.ID == a.ID, // Active marker
			}
		}
		c.JSON(http.StatusOK, gin.H{"accounts": resp})
	}
}

// AddAccountHandler creates an account from a connector kind and credentials
func AddAccountHandler(store *accounts.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req AddAccountRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			// If invalid, return bad request
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		a, err := store.Add(req.Name, req.Connector, req.Config)
		if err != nil {
			if errors.Is(err, accounts.ErrConflict) {
				c.JSON(http.StatusConflict, gin.H{"error": "Account name already in use"})
				return
			}
			logrus.WithFields(logrus.Fields{
				"name":      req.Name,      // Requested label
				"connector": req.Connector, // Backend variant
				"error":     err.Error(),   // Failure detail
			}).Error("Failed to add account")
			c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to add account"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"account": AccountResponse{
			ID:        a.ID,        // New account id
			Name:      a.Name,      // Label
			Connector: a.Connector, // Backend variant
		}})
	}
}

// SelectAccountHandler switches the active account
func SelectAccountHandler(store *accounts.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := store.SetActive(c.Param("id")); err != nil {
			if errors.Is(err, accounts.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Account not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to select account"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// RenameAccountHandler changes an account's label
func RenameAccountHandler(store *accounts.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RenameAccountRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			// If invalid, return bad request
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		err := store.Rename(c.Param("id"), req.Name)
		switch {
		case errors.Is(err, accounts.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Account not found"})
		case errors.Is(err, accounts.ErrConflict):
			c.JSON(http.StatusConflict, gin.H{"error": "Account name already in use"})
		case err != nil:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to rename account"})
		default:
			c.JSON(http.StatusOK, gin.H{"ok": true})
		}
	}
}

// RemoveAccountHandler deletes an account with the full cascade (active
// reassignment, allowance closure and session invalidation when it was the
// last one)
func RemoveAccountHandler(store *accounts.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		// The DELETE request is the explicit user action, so removal is
		// auto-confirmed here; other surfaces inject their own Confirmer
		err := store.Remove(c.Request.Context(), c.Param("id"), accounts.AutoConfirm{})
		if err != nil {
			if errors.Is(err, accounts.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Account not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove account"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// ExportAccountHandler returns the decrypted backend credentials. Privileged,
// user-initiated only; never part of the payment path.
func ExportAccountHandler(store *accounts.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		payload, err := store.ExportCredentials(c.Param("id"))
		if err != nil {
			if errors.Is(err, accounts.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Account not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to export credentials"})
			return
		}
		c.Data(http.StatusOK, "application/json", payload)
	}
}

// RefreshBalanceHandler re-fetches the cached balance from the backend
func RefreshBalanceHandler(store *accounts.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		balance, err := store.RefreshBalance(c.Request.Context(), c.Param("id"))
		if err != nil {
			if errors.Is(err, accounts.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Account not found"})
				return
			}
			c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to fetch balance"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"balance": balance})
	}
}
