package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/BradenHooton/clinicauth/internal/auth"
	"github.com/BradenHooton/clinicauth/internal/background"
	"github.com/BradenHooton/clinicauth/internal/clock"
	"github.com/BradenHooton/clinicauth/internal/config"
	"github.com/BradenHooton/clinicauth/internal/database"
	"github.com/BradenHooton/clinicauth/internal/handlers"
	middlewareCustom "github.com/BradenHooton/clinicauth/internal/middleware"
	"github.com/BradenHooton/clinicauth/internal/repositories"
	"github.com/BradenHooton/clinicauth/internal/routes"
	"github.com/BradenHooton/clinicauth/internal/services"
	"github.com/BradenHooton/clinicauth/migrations"
	pkghttp "github.com/BradenHooton/clinicauth/pkg/http"
	pkglogger "github.com/BradenHooton/clinicauth/pkg/logger"
)

// storageBackend is the client storage plus the credential store it pairs with
type storageBackend struct {
	users   services.UserRepository
	factory services.StorageFactory
	stale   background.StaleStorage
	health  handlers.HealthChecker
	close   func()
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.Server.LogLevel)}))
	slog.SetDefault(logger)
	logger.Info("configuration loaded",
		slog.String("env", cfg.Server.Env),
		slog.String("storage", cfg.Server.StorageBackend),
		slog.String("email", cfg.Email.Provider),
	)

	clk := clock.New()

	backend, err := openBackend(cfg, clk, logger)
	if err != nil {
		logger.Error("failed to initialize storage", slog.Any("error", err))
		os.Exit(1)
	}
	defer backend.close()

	totpManager, err := auth.NewTOTPManager(cfg.MFA.EncryptionKey, cfg.MFA.Issuer)
	if err != nil {
		logger.Error("failed to initialize TOTP manager", slog.Any("error", err))
		os.Exit(1)
	}

	if cfg.Server.SeedDemoUsers {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		created, err := services.SeedDemoUsers(ctx, backend.users, totpManager, clk, cfg.Auth.BcryptCost, logger)
		cancel()
		if err != nil {
			logger.Error("failed to seed demo users", slog.Any("error", err))
		} else if created > 0 {
			logger.Info("demo users seeded", slog.Int("created", created))
		}
	}

	sender, err := newCodeSender(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize email service", slog.Any("error", err))
		os.Exit(1)
	}

	// Initialize security services
	auditLogger := pkglogger.NewAuditLogger(logger)
	latency := auth.NewLatencySimulator(auth.LatencyConfig{
		BaseDelayMs:   cfg.Auth.LatencyBaseMs,
		RandomDelayMs: cfg.Auth.LatencyJitterMs,
	})

	guard := services.NewLoginGuard(
		repositories.NewLoginAttemptRepository(),
		services.LoginGuardConfig{
			MaxFailedAttempts: cfg.Auth.MaxFailedAttempts,
			LockoutDuration:   cfg.Auth.LockoutDuration,
		},
		clk,
		logger,
	)

	registry := services.NewClientRegistry(services.AuthDependencies{
		Users:   backend.users,
		Guard:   guard,
		TOTP:    totpManager,
		Clock:   clk,
		Latency: latency,
		Config: services.AuthConfig{
			MinPasswordLength: cfg.Auth.MinPasswordLength,
			BcryptCost:        cfg.Auth.BcryptCost,
			MFAPendingTTL:     cfg.MFA.PendingTTL,
			MFAMaxAttempts:    cfg.MFA.MaxAttempts,
		},
		Logger:      logger,
		AuditLogger: auditLogger,
	}, backend.factory, cfg.Auth.SessionTimeout)

	recovery := services.NewRecoveryService(services.RecoveryDependencies{
		Codes:       repositories.NewRecoveryCodeRepository(),
		Users:       backend.users,
		Limiter:     services.NewResetLimiter(repositories.NewResetRequestRepository(), cfg.Recovery.ResetRequestLimit, cfg.Recovery.ResetRequestWindow, clk),
		Sender:      sender,
		Latency:     latency,
		Clock:       clk,
		Logger:      logger,
		AuditLogger: auditLogger,
	}, services.RecoveryConfig{
		CodeTTL:           cfg.Recovery.CodeTTL,
		MaxAttempts:       cfg.Recovery.MaxAttempts,
		ResendCooldown:    cfg.Recovery.ResendCooldown,
		MinPasswordLength: cfg.Auth.MinPasswordLength,
		BcryptCost:        cfg.Auth.BcryptCost,
	})

	// Client namespaces outlive any session they might still hold
	storageTTL := cfg.Server.ClientIdleTTL
	if storageTTL < cfg.Auth.SessionTimeout {
		storageTTL = cfg.Auth.SessionTimeout
	}
	cleanupManager := background.NewCleanupManager(background.CleanupTargets{
		Lockouts:   guard,
		Recoveries: recovery,
		Clients:    registry,
		Storage:    backend.stale,
	}, clk, logger, cfg.Server.CleanupInterval, cfg.Server.ClientIdleTTL, storageTTL)

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(middlewareCustom.DefaultCORSConfig(cfg.Server.AllowedOrigins)))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	routes.RegisterRoutes(router, routes.Dependencies{
		AuthHandler:     handlers.NewAuthHandler(handlers.RegistryResolver(registry), logger),
		RecoveryHandler: handlers.NewRecoveryHandler(recovery, cfg.Recovery.ExposeCode, logger),
		TokenManager:    auth.NewClientTokenManager(cfg.Auth.ClientTokenSecret, cfg.Auth.ClientTokenExpiry, clk.Now),
		Cookies: auth.CookieConfig{
			Domain:   cfg.Server.CookieDomain,
			Secure:   cfg.Server.Env == "production",
			SameSite: "strict",
		},
		Roles:     registry.CurrentRole,
		Health:    backend.health,
		IPConfig:  &pkghttp.IPConfig{TrustedProxies: pkghttp.ParseTrustedProxies(cfg.Server.TrustedProxies)},
		RateLimit: middlewareCustom.RateLimitConfig{RequestsPerMinute: cfg.Auth.LoginRequestsPerMinute},
		Logger:    logger,
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
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
	}
	registry.Shutdown()

	logger.Info("server stopped gracefully")
}

// openBackend builds the credential store and client storage for the configured backend
func openBackend(cfg *config.Config, clk clock.Clock, logger *slog.Logger) (*storageBackend, error) {
	if cfg.Server.StorageBackend != "postgres" {
		storage := repositories.NewMemoryClientStorage(clk.Now)
		return &storageBackend{
			users: repositories.NewMemoryUserRepository(),
			factory: func(clientID string) services.Storage {
				return storage.ForClient(clientID)
			},
			stale: storage,
			close: func() {},
		}, nil
	}

	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := db.Migrate(ctx, migrations.FS); err != nil {
		db.Close()
		return nil, err
	}

	storage := repositories.NewPostgresClientStorage(db)
	return &storageBackend{
		users: repositories.NewUserRepository(db),
		factory: func(clientID string) services.Storage {
			return storage.ForClient(clientID)
		},
		stale:  storage,
		health: db,
		close:  db.Close,
	}, nil
}

func newCodeSender(cfg *config.Config, logger *slog.Logger) (services.CodeSender, error) {
	if cfg.Email.Provider != "ses" {
		logger.Warn("recovery codes are written to the log; set EMAIL_PROVIDER=ses to deliver them")
		return services.NewLogCodeSender(logger), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return services.NewSESCodeSender(ctx, cfg.Email.AWSRegion, cfg.Email.FromAddress, logger)
}

func parseLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}
