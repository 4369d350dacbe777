package api

import (
	"net/http" // HTTP status codes

	"lightning_wallet/internal/connector" // Backend registry

	"github.com/gin-gonic/gin" // Gin web framework
)

// ListConnectorsHandler returns the backend kinds accounts can be created with
func ListConnectorsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"connectors": connector.Kinds()})
	}
}
