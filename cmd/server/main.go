package main

import (
	"context" // context package is needed for Redis operations
	"log"     // log package is needed for logging

	"lightning_wallet/internal/accounts"   // Account store
	"lightning_wallet/internal/allowance"  // Allowance ledger
	"lightning_wallet/internal/api"        // Custom package for API handlers
	"lightning_wallet/internal/config"     // Custom package for configuration
	"lightning_wallet/internal/journal"    // Payment journal
	"lightning_wallet/internal/keystore"   // Credential vault
	"lightning_wallet/internal/metrics"    // Payment outcome counters
	"lightning_wallet/internal/middleware" // Custom package for middleware
	"lightning_wallet/internal/payment"    // Authorization orchestrator
	"lightning_wallet/internal/utils"      // Session epoch and cache helpers

	"github.com/gin-gonic/gin"                                // Gin web framework
	"github.com/prometheus/client_golang/prometheus/promhttp" // Prometheus HTTP handler
	"github.com/redis/go-redis/v9"                            // Redis client
	"github.com/sirupsen/logrus"                              // Logrus for structured logging
	"gorm.io/driver/mysql"                                    // MySQL driver for GORM
	"gorm.io/gorm"                                            // GORM ORM library
)

// Main function to set up and run the server
func main() {
	cfg := config.LoadConfig() // Load configuration

	// Setup logger
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	// Setup Data Source Name (DSN) and connect to the database
	dsn := cfg.DBUser + ":" + cfg.DBPassword + "@tcp(" + cfg.DBHost + ":" + cfg.DBPort + ")/" + cfg.DBName + "?parseTime=true"
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		logrus.Fatalf("failed to connect to DB: %v", err) // Fatal error if DB connection fails
	}

	// Setup Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr, // Redis server address
		Password: cfg.RedisPass, // Redis password
		DB:       cfg.RedisDB,   // Redis database number
	})

	// Test Redis connection
	_, err = redisClient.Ping(context.Background()).Result()
	if err != nil {
		logrus.Fatalf("failed to connect to Redis: %v", err)
	}

	// Credential vault; account credentials are encrypted at rest with a key
	// derived from the passphrase
	vault, err := keystore.New(cfg.VaultPassphrase)
	if err != nil {
		logrus.Fatalf("failed to open keystore: %v", err)
	}

	// Engine wiring: journal -> ledger -> accounts -> orchestrator
	epochs := &utils.SessionEpoch{}
	paymentJournal := journal.New(db)
	ledger := allowance.New(db, paymentJournal)
	accountStore, err := accounts.New(db, vault, epochs, ledger)
	if err != nil {
		logrus.Fatalf("failed to load accounts: %v", err)
	}
	paymentMetrics := metrics.NewPayments("lightning_wallet")
	// Any ledger/journal mutation for a host drops the cached allowance report
	invalidateReport := func(host string) {
		_ = utils.DeleteCache(context.Background(), redisClient, utils.AllowanceReportKey)
	}
	orchestrator := payment.NewOrchestrator(db, accountStore, ledger, paymentJournal, paymentMetrics, cfg.ConnectorTimeout, invalidateReport)

	// Set Mode to Release if in production
	if cfg.IsProd {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup Gin
	r := gin.Default() // Gin router instance

	// Set trusted proxies for Gin
	if err := r.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		logrus.Fatalf("failed to set trusted proxies: %v", err)
	}

	// Unlock and operational routes
	r.POST("/unlock", api.UnlockHandler(vault, cfg.JWTSecret, epochs)) // Unlock endpoint
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))                   // Prometheus metrics endpoint

	// Wallet routes (protected by the session token)
	session := r.Group("/")
	session.Use(middleware.SessionMiddleware(cfg.JWTSecret, epochs))

	// Allowance routes
	session.GET("/allowances", api.ListAllowancesHandler(ledger, redisClient))              // Allowance report endpoint
	session.POST("/allowances", api.GrantAllowanceHandler(ledger, redisClient))             // Grant / top-up endpoint
	session.DELETE("/allowances/:host", api.RemoveAllowanceHandler(ledger, redisClient))    // Remove allowance endpoint
	session.GET("/allowances/:host/payments", api.AllowancePaymentsHandler(paymentJournal)) // Host payment history endpoint

	// Payment route
	session.POST("/payments", api.RequestPaymentHandler(orchestrator)) // Payment request endpoint

	// Account routes
	session.GET("/connectors", api.ListConnectorsHandler())                          // Supported backend kinds endpoint
	session.GET("/accounts", api.ListAccountsHandler(accountStore))                  // List accounts endpoint
	session.POST("/accounts", api.AddAccountHandler(accountStore))                   // Add account endpoint
	session.POST("/accounts/:id/select", api.SelectAccountHandler(accountStore))     // Select active account endpoint
	session.PUT("/accounts/:id", api.RenameAccountHandler(accountStore))             // Rename account endpoint
	session.DELETE("/accounts/:id", api.RemoveAccountHandler(accountStore))          // Remove account endpoint
	session.GET("/accounts/:id/export", api.ExportAccountHandler(accountStore))      // Credential export endpoint
	session.POST("/accounts/:id/refresh", api.RefreshBalanceHandler(accountStore))   // Balance refresh endpoint

	log.Println("Server running on " + cfg.AppPort) // Log server start
	r.Run(":" + cfg.AppPort)                        // Start the server on port cfg.AppPort
}
