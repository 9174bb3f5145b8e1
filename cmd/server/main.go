package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"github.com/nkacou/walletd/internal/database"
	"github.com/nkacou/walletd/internal/events"
	"github.com/nkacou/walletd/internal/events/kafka"
	"github.com/nkacou/walletd/internal/handler"
	"github.com/nkacou/walletd/internal/repository"
	"github.com/nkacou/walletd/internal/service"
)

type Config struct {
	DB           database.Config
	ServerPort   string
	JWTSecret    string
	TokenTTL     time.Duration
	KafkaBrokers []string
}

func main() {
	// Initialise logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	config := loadConfig()

	// Connect to the database and bootstrap the schema
	db, err := database.Connect(config.DB)
	if err != nil {
		logger.Error("failed to connect to database", "error", err.Error())
		os.Exit(1)
	}
	defer db.Close()

	if err := database.Migrate(context.Background(), db); err != nil {
		logger.Error("failed to migrate database", "error", err.Error())
		os.Exit(1)
	}

	logger.Info("connected to database successfully")

	// Event publisher: Kafka when brokers are configured, no-op otherwise
	var publisher events.Publisher = events.NoopPublisher{}
	if len(config.KafkaBrokers) > 0 {
		kafkaPublisher := kafka.NewPublisher(config.KafkaBrokers)
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
		logger.Info("publishing events to kafka", "brokers", strings.Join(config.KafkaBrokers, ","))
	}

	// Initialise repositories
	userRepo := repository.NewUserRepository(db)
	transferRepo := repository.NewTransferRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)

	// Initialise services
	authService := service.NewAuthService(userRepo, []byte(config.JWTSecret), config.TokenTTL, logger)
	accountService := service.NewAccountService(userRepo, ledgerRepo, logger)
	transactionService := service.NewTransactionService(db, userRepo, transferRepo, ledgerRepo, publisher, logger)

	// Initialise handlers
	authHandler := handler.NewAuthHandler(authService, logger)
	walletHandler := handler.NewWalletHandler(accountService, transactionService, logger)

	// Setup router
	router := mux.NewRouter()
	router.Use(handler.LoggingMiddleware(logger))

	authHandler.RegisterRoutes(router)

	// Authenticated wallet routes
	protected := router.NewRoute().Subrouter()
	protected.Use(handler.RequireAuth(authService, logger))
	walletHandler.RegisterRoutes(protected)

	// Add health check endpoint
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + config.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a go routine
	go func() {
		logger.Info("starting server on port " + config.ServerPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("failed to start server", "error", err.Error())
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server...")

	// Create context with timeout for shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err.Error())
	}

	logger.Info("server exited gracefully")
}

// loads config from a .env file (if present) and environment variables
func loadConfig() Config {
	if err := godotenv.Load(); err == nil {
		slog.Info("loaded configuration from .env")
	}

	cfg := Config{
		DB: database.Config{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "password"),
			Name:     getEnv("DB_NAME", "wallet"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		ServerPort: getEnv("SERVER_PORT", "8080"),
		JWTSecret:  getEnv("JWT_SECRET", "dev-only-secret"),
		TokenTTL:   24 * time.Hour,
	}

	if brokers := getEnv("KAFKA_BROKERS", ""); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}

	if ttl := getEnv("TOKEN_TTL", ""); ttl != "" {
		if parsed, err := time.ParseDuration(ttl); err == nil {
			cfg.TokenTTL = parsed
		}
	}

	return cfg
}

// getEnv fetches environment variable or returns default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
