package utils

import (
	"sync/atomic" // Epoch counter
	"time"        // Time for token expiration

	"github.com/golang-jwt/jwt/v5" // JWT library
)

// SessionEpoch is the process-wide session generation counter. Tokens embed
// the epoch they were issued under; bumping it invalidates every outstanding
// token at once (e.g. when the last account is removed).
type SessionEpoch struct {
	n atomic.Int64
}

// Current returns the active epoch
func (s *SessionEpoch) Current() int64 { return s.n.Load() }

// Invalidate bumps the epoch, revoking all outstanding session tokens
func (s *SessionEpoch) Invalidate() { s.n.Add(1) }

// Session Claims
type Claims struct {
	Epoch                int64 `json:"epoch"` // Session generation the token belongs to
	jwt.RegisteredClaims       // Standard JWT claims
}

// GenerateSessionJWT creates a session token bound to the current epoch
func GenerateSessionJWT(secret string, epoch int64) (string, error) {
	// Set token claims
	claims := Claims{
		Epoch: epoch, // Session generation
		// Standard claims
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)), // Token expires in 24 hours
			IssuedAt:  jwt.NewNumericDate(time.Now()),                     // Issued at current time
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims) // Create token with claims
	return token.SignedString([]byte(secret))                  // Sign the token with the secret
}

// ParseSessionJWT parses and validates a session token string
func ParseSessionJWT(tokenStr, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (any, error) {
		return []byte(secret), nil // Return the secret key for validation
	})
	// Check for parsing errors
	if err != nil {
		return nil, err // Return error if parsing fails
	}
	// Validate token and extract claims
	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil // Return claims if valid
	}
	// Return error if token is invalid
	return nil, jwt.ErrSignatureInvalid
}
