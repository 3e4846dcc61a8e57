package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cardbase/authcore/internal/auth"
	"github.com/cardbase/authcore/internal/background"
	"github.com/cardbase/authcore/internal/config"
	"github.com/cardbase/authcore/internal/database"
	"github.com/cardbase/authcore/internal/handlers"
	middlewareCustom "github.com/cardbase/authcore/internal/middleware"
	"github.com/cardbase/authcore/internal/models"
	"github.com/cardbase/authcore/internal/repositories"
	"github.com/cardbase/authcore/internal/routes"
	"github.com/cardbase/authcore/internal/services"
	pkgauth "github.com/cardbase/authcore/pkg/auth"
	pkghttp "github.com/cardbase/authcore/pkg/http"
	pkglogger "github.com/cardbase/authcore/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// Apply migrations before opening the pool
	if err := database.Migrate(cfg.Database.DSN(), logger); err != nil {
		logger.Error("failed to run migrations", slog.Any("error", err))
		os.Exit(1)
	}

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Initialize repositories
	identityRepo := repositories.NewIdentityRepository(db)
	otpRepo := repositories.NewOTPRepository(db, identityRepo)
	resellerRepo := repositories.NewResellerRepository(db)

	// Initialize cleanup manager
	cleanupManager := background.NewCleanupManager(otpRepo, logger, cfg.Auth.CleanupInterval)

	// Initialize token manager
	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenExpiry)

	auditLogger := pkglogger.NewAuditLogger(logger)

	// Timing delay for auth security
	timingConfig := auth.TimingConfig{
		BaseDelayMs:    cfg.Auth.TimingDelayBaseMs,
		RandomDelayMs:  cfg.Auth.TimingDelayRandomMs,
		DelayOnSuccess: cfg.Auth.TimingDelayOnSuccess,
	}
	timingDelay := auth.NewTimingDelay(timingConfig)

	// AWS SES delivery gateway
	gateway, err := services.NewAWSSESDeliveryGateway(
		cfg.Email.AWSRegion,
		cfg.Email.FromAddress,
		logger,
	)
	if err != nil {
		logger.Error("failed to initialize delivery gateway", slog.Any("error", err))
		os.Exit(1)
	}

	// Initialize services
	sessionRegistry := services.NewSessionRegistry(identityRepo)
	authService := services.NewAuthService(
		identityRepo,
		otpRepo,
		sessionRegistry,
		tokenManager,
		gateway,
		timingDelay,
		logger,
		auditLogger,
		cfg.Auth.OtpTTL,
		cfg.Auth.PasswordMinLen,
	)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService)
	accountHandler := handlers.NewAccountHandler(authService, resellerRepo)

	// Bootstrap first operator if configured
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := ensureOperator(ctx, identityRepo, logger); err != nil {
		logger.Error("failed to ensure operator account", slog.Any("error", err))
	}
	cancel()

	// Setup CORS middleware
	corsConfig := middlewareCustom.DefaultCORSConfig(cfg.Server.Env)
	corsConfig.AllowedOrigins = cfg.Server.AllowedOrigins

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(corsConfig))
	router.Use(middlewareCustom.SecureLogger(logger, &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	// Register routes
	routes.RegisterRoutes(router, authHandler, accountHandler, tokenManager, identityRepo, resellerRepo, routes.DefaultRateLimits())

	// Health check with database
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.HealthCheck(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","database":"down"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","database":"up"}`))
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start cleanup task
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	go cleanupManager.Start(cleanupCtx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()
	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

// ensureOperator creates the first operator if OPERATOR_EMAIL and
// OPERATOR_PASSWORD are set
func ensureOperator(ctx context.Context, identityRepo *repositories.IdentityRepository, logger *slog.Logger) error {
	operatorEmail := os.Getenv("OPERATOR_EMAIL")
	operatorPassword := os.Getenv("OPERATOR_PASSWORD")

	if operatorEmail == "" || operatorPassword == "" {
		logger.Info("no OPERATOR_EMAIL or OPERATOR_PASSWORD set, skipping operator bootstrap")
		return nil
	}

	_, err := identityRepo.GetOperatorByEmail(ctx, operatorEmail)
	if err == nil {
		logger.Info("operator account already exists")
		return nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed to check for existing operator: %w", err)
	}

	hashedPassword, err := pkgauth.HashPassword(operatorPassword)
	if err != nil {
		return fmt.Errorf("failed to hash operator password: %w", err)
	}

	operatorName := os.Getenv("OPERATOR_NAME")
	if operatorName == "" {
		operatorName = "Platform Operator"
	}

	if _, err := identityRepo.CreateOperator(ctx, operatorEmail, hashedPassword, operatorName); err != nil {
		return fmt.Errorf("failed to create operator account: %w", err)
	}

	logger.Info("operator account created")
	return nil
}
