package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dukerupert/hlin/internal"
	"github.com/dukerupert/hlin/internal/billing"
	"github.com/dukerupert/hlin/internal/cookie"
	"github.com/dukerupert/hlin/internal/domain"
	"github.com/dukerupert/hlin/internal/email"
	"github.com/dukerupert/hlin/internal/events"
	"github.com/dukerupert/hlin/internal/handler/storefront"
	"github.com/dukerupert/hlin/internal/handler/webhook"
	"github.com/dukerupert/hlin/internal/middleware"
	"github.com/dukerupert/hlin/internal/mongo"
	"github.com/dukerupert/hlin/internal/postgres"
	"github.com/dukerupert/hlin/internal/redis"
	"github.com/dukerupert/hlin/internal/router"
	"github.com/dukerupert/hlin/internal/routes"
	"github.com/dukerupert/hlin/internal/service"
	"github.com/dukerupert/hlin/internal/telemetry"
	"github.com/dukerupert/hlin/internal/worker"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// sessionStores is the backend holding carts, wishlists and staged drafts.
type sessionStores interface {
	domain.CartStore
	domain.DraftStore
	domain.WishlistStore
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)
	slog.SetDefault(logger)

	// ==========================================================================
	// Observability
	// ==========================================================================

	cleanupSentry, err := telemetry.InitSentry(telemetry.SentryConfig{
		DSN:         cfg.Sentry.DSN,
		Enabled:     cfg.Sentry.Enabled,
		Environment: cfg.Sentry.Environment,
		Release:     cfg.Sentry.Release,
		SampleRate:  cfg.Sentry.SampleRate,
		Debug:       cfg.Sentry.Debug,
	}, logger)
	if err != nil {
		return fmt.Errorf("sentry initialization failed: %w", err)
	}
	defer cleanupSentry()

	if cfg.Telemetry.Enabled {
		tracing, err := telemetry.InitTracing(ctx, telemetry.TracingConfig{
			ServiceName:  cfg.Telemetry.ServiceName,
			Environment:  cfg.Env,
			OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
			SampleRate:   cfg.Telemetry.SampleRate,
		})
		if err != nil {
			return fmt.Errorf("tracing initialization failed: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracing.Shutdown(shutdownCtx); err != nil {
				logger.Error("tracing shutdown failed", "error", err)
			}
		}()
		logger.Info("Tracing enabled", "endpoint", cfg.Telemetry.OTLPEndpoint)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	telemetry.Business = telemetry.NewBusinessMetrics("hlin", registry)
	metrics := middleware.NewMetrics("hlin", registry)

	// ==========================================================================
	// Database
	// ==========================================================================

	// Initialize database/sql connection for migrations
	logger.Info("Connecting to database...")
	sqlDB, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer sqlDB.Close()

	// Verify database connection
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	logger.Info("Database connection established")

	// Run migrations
	logger.Info("Running database migrations...")
	if err := internal.RunMigrations(sqlDB); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database migrations completed successfully")

	// Initialize pgx connection pool for application
	pool, err := postgres.NewPool(ctx, cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}
	defer pool.Close()

	userStore := postgres.NewUserStore(pool)
	resetStore := postgres.NewPasswordResetStore(pool)

	// Order store
	var orderStore domain.OrderStore
	switch cfg.OrderStore {
	case "mongo":
		db, err := mongo.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			return err
		}
		defer db.Client().Disconnect(context.Background())

		store := mongo.NewOrderStore(db)
		if err := store.CreateIndexes(ctx); err != nil {
			return fmt.Errorf("failed to create order indexes: %w", err)
		}
		orderStore = store
	default:
		orderStore = postgres.NewOrderStore(pool)
	}
	logger.Info("Order store ready", "backend", cfg.OrderStore)

	// Cart and draft store
	var sessions sessionStores
	switch cfg.SessionStore {
	case "postgres":
		sessions = postgres.NewSessionStateStore(pool, cfg.SessionTTL).WithOwnerTTL(cfg.SavedStateTTL)
	default:
		client, err := redis.NewClient(ctx, cfg.Redis.URL)
		if err != nil {
			return err
		}
		defer client.Close()
		sessions = redis.NewSessionStateStore(client, cfg.SessionTTL).WithOwnerTTL(cfg.SavedStateTTL)
	}
	logger.Info("Session store ready", "backend", cfg.SessionStore, "ttl", cfg.SessionTTL)

	// ==========================================================================
	// External adapters
	// ==========================================================================

	billingProvider, err := newBillingProvider(cfg, logger)
	if err != nil {
		return err
	}

	var publisher domain.EventPublisher = events.NewLogPublisher(logger)
	if cfg.NATS.URL != "" {
		conn, err := events.Connect(cfg.NATS.URL, logger)
		if err != nil {
			return err
		}
		defer conn.Drain()
		publisher = events.NewNATSPublisher(conn, logger)
		logger.Info("Publishing order events to NATS", "url", cfg.NATS.URL)
	}

	var sender email.Sender = email.NewLogSender(logger)
	if cfg.Email.Host != "" {
		sender = email.NewSMTPSender(&email.SMTPConfig{
			Host:     cfg.Email.Host,
			Port:     int(cfg.Email.Port),
			Username: cfg.Email.Username,
			Password: cfg.Email.Password,
			From:     cfg.Email.From,
			FromName: cfg.Email.FromName,
		}, logger)
	}
	emailService := email.NewService(sender)

	// ==========================================================================
	// Services
	// ==========================================================================

	catalogService, err := service.NewCatalogService()
	if err != nil {
		return fmt.Errorf("failed to initialize catalog service: %w", err)
	}
	cartService := service.NewCartService(sessions, catalogService, logger)
	wishlistService := service.NewWishlistService(sessions, catalogService, logger)
	shopperStateService := service.NewShopperStateService(sessions, sessions, sessions, logger)
	userService := service.NewUserService(userStore, logger)
	passwordResetService := service.NewPasswordResetService(userStore, resetStore, emailService, cfg.BaseURL, logger)
	orderService := service.NewOrderService(orderStore, billingProvider, cfg.Checkout.Currency, cfg.Checkout.VerifyOrderPayments, logger)
	checkoutService := service.NewCheckoutService(
		billingProvider,
		sessions,
		sessions,
		orderStore,
		publisher,
		cfg.Checkout.Currency,
		logger,
	)

	// ==========================================================================
	// Build route dependencies
	// ==========================================================================

	secureCookies := cfg.Env == "prod"
	cookies := cookie.NewConfig("", secureCookies)

	authRateLimiter := middleware.NewRateLimiter(middleware.StrictRateLimiterConfig())
	defer authRateLimiter.Stop()
	defaultRateLimiter := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	defer defaultRateLimiter.Stop()

	storefrontDeps := routes.StorefrontDeps{
		ProductHandler:       storefront.NewProductHandler(catalogService),
		CartHandler:          storefront.NewCartHandler(cartService),
		WishlistHandler:      storefront.NewWishlistHandler(wishlistService),
		AuthHandler:          storefront.NewAuthHandler(userService, shopperStateService, cookies),
		PasswordResetHandler: storefront.NewPasswordResetHandler(passwordResetService),
		AuthLimiter:          authRateLimiter,
	}

	checkoutDeps := routes.CheckoutDeps{
		CheckoutHandler: storefront.NewCheckoutHandler(checkoutService),
		OrderHandler:    storefront.NewOrderHandler(orderService),
	}

	stripeWebhookHandler := webhook.NewStripeHandler(billingProvider, checkoutService, cfg.Stripe.WebhookSecret)
	webhookDeps := routes.WebhookDeps{
		StripeHandler: stripeWebhookHandler.HandleWebhook,
	}

	opsDeps := routes.OpsDeps{
		Health:  healthHandler(pool.Ping),
		Metrics: metrics.Handler(registry),
	}

	// ==========================================================================
	// Initialize middleware
	// ==========================================================================

	// Configure security headers
	securityConfig := middleware.DefaultSecurityHeadersConfig()
	if cfg.Env == "dev" {
		securityConfig.HSTSMaxAge = 0 // Disable HSTS in development
	}

	r := router.New(
		router.Recovery(logger),
		middleware.RequestID,
		router.Logger(logger),
		router.CORS(cfg.AllowedOrigins),
		metrics.Middleware,
		middleware.SecurityHeaders(securityConfig),
		middleware.MaxBodySize(middleware.DefaultMaxBodySize),
		middleware.Timeout(middleware.DefaultTimeout),
		defaultRateLimiter.Middleware,
		middleware.WithRequestLogger(logger),
		telemetry.SentryMiddleware(),
		middleware.WithSession(cookies),
		middleware.WithUser(userService),
		telemetry.SentryContextMiddleware(sentryUser),
		middleware.CSRF(middleware.DefaultCSRFConfig(cookies)),
	)

	routes.RegisterOpsRoutes(r, opsDeps)
	routes.RegisterStorefrontRoutes(r, storefrontDeps)
	routes.RegisterCheckoutRoutes(r, checkoutDeps)
	routes.RegisterWebhookRoutes(r, webhookDeps)

	// ==========================================================================
	// Background worker
	// ==========================================================================

	w := worker.NewWorker(worker.Config{Interval: cfg.CleanupInterval}, logger,
		worker.CleanupJob(postgres.NewCleanupStore(pool), logger),
	)
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		if err := w.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("worker stopped", "error", err)
		}
	}()

	// ==========================================================================
	// Start server
	// ==========================================================================

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           otelhttp.NewHandler(r, "hlin"),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      45 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Starting server", "address", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	stop()
	<-workerDone
	logger.Info("Server stopped")

	return nil
}

// newBillingProvider returns the Stripe provider behind a circuit breaker.
// Placeholder keys in dev get the mock provider.
func newBillingProvider(cfg *internal.Config, logger *slog.Logger) (billing.Provider, error) {
	var next billing.Provider
	if cfg.Env == "dev" && strings.Contains(cfg.Stripe.SecretKey, "your_key_here") {
		logger.Warn("Using mock billing provider; set STRIPE_SECRET_KEY to use Stripe")
		next = billing.NewMockProvider()
	} else {
		stripeConfig := billing.StripeConfig{
			APIKey:         cfg.Stripe.SecretKey,
			WebhookSecret:  cfg.Stripe.WebhookSecret,
			TimeoutSeconds: 30,
		}
		provider, err := billing.NewStripeProvider(stripeConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Stripe provider: %w", err)
		}
		logger.Info("Stripe billing provider initialized", "test_mode", stripeConfig.IsTestMode())
		next = provider
	}

	return billing.NewBreakerProvider(next, billing.BreakerConfig{
		MaxFailures: cfg.Checkout.BreakerMaxFailures,
		OpenTimeout: cfg.Checkout.BreakerOpenTimeout,
		OnStateChange: func(from, to string) {
			if telemetry.Business == nil {
				return
			}
			if to == "open" {
				telemetry.Business.GatewayBreaker.Set(1)
			} else {
				telemetry.Business.GatewayBreaker.Set(0)
			}
		},
	}, logger), nil
}

func sentryUser(ctx context.Context) *telemetry.UserInfo {
	identity := domain.IdentityFromContext(ctx)
	if identity == nil {
		return nil
	}
	return &telemetry.UserInfo{ID: identity.ID, Email: identity.Email}
}

func healthHandler(ping func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status, code := "ok", http.StatusOK
		if err := ping(ctx); err != nil {
			status, code = "unavailable", http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]string{"status": status})
	}
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
