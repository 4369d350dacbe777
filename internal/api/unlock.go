package api

import (
	"net/http" // HTTP status codes

	"lightning_wallet/internal/keystore" // Credential vault
	"lightning_wallet/internal/utils"    // Session token utilities

	"github.com/gin-gonic/gin" // Gin web framework
)

// UnlockRequest represents an unlock attempt
type UnlockRequest struct {
	Passphrase string `json:"passphrase" binding:"required"` // Vault passphrase
}

// UnlockHandler verifies the vault passphrase and issues a session token
// bound to the current session epoch
func UnlockHandler(vault *keystore.Vault, jwtSecret string, epochs *utils.SessionEpoch) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req UnlockRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			// If binding fails, return bad request
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		// Verify against the vault's passphrase hash
		if !vault.Verify(req.Passphrase) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid passphrase"})
			return
		}
		token, err := utils.GenerateSessionJWT(jwtSecret, epochs.Current())
		if err != nil {
			// If token generation fails, return internal server error
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate session"})
			return
		}
		// Return the session token in the response
		c.JSON(http.StatusOK, gin.H{"token": token})
	}
}
