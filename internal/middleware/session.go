package middleware

import (
	"net/http" // HTTP status codes
	"strings"  // String manipulation

	"lightning_wallet/internal/utils" // Session token utilities

	"github.com/gin-gonic/gin" // Gin web framework
)

// SessionMiddleware validates session tokens and rejects tokens from a
// revoked session generation (the wallet was re-locked or emptied since the
// token was issued).
func SessionMiddleware(secret string, epochs *utils.SessionEpoch) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization") // Get Authorization header
		// Check if the Authorization header is present and properly formatted
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			// If not, abort with unauthorized status
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing or invalid Authorization header"})
			return
		}
		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")   // Extract the token string and parse it
		claims, err := utils.ParseSessionJWT(tokenStr, secret)  // Parse the session token
		if err != nil || claims.Epoch != epochs.Current() {
			// Reject expired, invalid, or revoked-generation tokens
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired session"})
			return
		}
		c.Next() // Proceed to the next handler
	}
}
