// Package config provides the embeddable server runner for CreditsHub.
package config

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"time"

	"github.com/maiscreditos/creditshub/internal/api"
	"github.com/maiscreditos/creditshub/internal/config"
	"github.com/maiscreditos/creditshub/internal/services/accounts"
	"github.com/maiscreditos/creditshub/internal/services/auth"
	"github.com/maiscreditos/creditshub/internal/services/billing"
	"github.com/maiscreditos/creditshub/internal/services/coupons"
	"github.com/maiscreditos/creditshub/internal/services/database"
	"github.com/maiscreditos/creditshub/internal/services/middleware"
	"github.com/maiscreditos/creditshub/internal/services/plans"
	"github.com/maiscreditos/creditshub/internal/services/recharges"
	"github.com/maiscreditos/creditshub/internal/services/sync"
	"github.com/maiscreditos/creditshub/internal/services/tickets"
	"github.com/maiscreditos/creditshub/internal/services/users"
	"github.com/maiscreditos/creditshub/pkg/builder"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/pprof"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/redis/go-redis/v9"
)

// App represents a CreditsHub server instance.
type App struct {
	config    *config.Config
	app       *fiber.App
	redis     *redis.Client
	db        *database.DB
	builder   *builder.Builder
	scheduler *sync.RetryScheduler
}

type appInfrastructure struct {
	redis *redis.Client
	db    *database.DB
}

// NewApp creates a new App instance with the given configuration.
// The cfg parameter is required and must not be nil.
func NewApp(cfg *config.Config) *App {
	if cfg == nil {
		panic("config cannot be nil - use config.LoadFromFile() or the builder to create config")
	}

	return &App{config: cfg}
}

// NewAppWithBuilder creates a new App instance from a configuration builder,
// allowing custom middlewares and rate limits.
func NewAppWithBuilder(b *builder.Builder) *App {
	return &App{
		config:  b.Build(),
		builder: b,
	}
}

// Run starts the server and blocks until shutdown.
func (a *App) Run() error {
	if err := a.config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	setupLogLevel(a.config)

	port := a.config.Server.Port
	if port == "" {
		port = "8080"
	}
	listenAddr := ":" + port

	a.app = createFiberApp(a.config)

	infra, err := initializeInfrastructure(a.config)
	if err != nil {
		return err
	}
	a.redis = infra.redis
	a.db = infra.db

	if a.redis != nil {
		defer func() {
			if err := a.redis.Close(); err != nil {
				fiberlog.Errorf("Failed to close Redis client: %v", err)
			}
		}()
	}
	defer func() {
		if err := a.db.Close(); err != nil {
			fiberlog.Errorf("Failed to close database connection: %v", err)
		}
	}()

	setupMiddleware(a.app, a.config, a.builder)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.scheduler = setupRoutes(a.app, a.config, a.redis, a.db)
	if a.scheduler != nil {
		go a.scheduler.Start(ctx)
		defer a.scheduler.Stop()
	}

	a.app.Get("/", welcomeHandler())

	fmt.Printf("CreditsHub starting on %s\n", listenAddr)
	fmt.Printf("   Environment: %s\n", a.config.Server.Environment)
	fmt.Printf("   Go version: %s\n", runtime.Version())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)

	serverErrChan := make(chan error, 1)
	go func() {
		if err := a.app.Listen(listenAddr); err != nil {
			serverErrChan <- err
		}
	}()

	select {
	case sig := <-sigChan:
		fiberlog.Infof("Received signal: %v. Starting graceful shutdown...", sig)
	case err := <-serverErrChan:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		fiberlog.Info("Context cancelled, starting shutdown...")
	}

	fiberlog.Info("Server shutting down gracefully...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	shutdownErrChan := make(chan error, 1)
	go func() {
		shutdownErrChan <- a.app.ShutdownWithTimeout(30 * time.Second)
	}()

	select {
	case err := <-shutdownErrChan:
		if err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		fiberlog.Info("Server shutdown completed successfully")
	case <-shutdownCtx.Done():
		return fmt.Errorf("shutdown timeout exceeded")
	}

	return nil
}

func createFiberApp(cfg *config.Config) *fiber.App {
	isProd := cfg.IsProduction()

	return fiber.New(fiber.Config{
		AppName:              "CreditsHub v1.0",
		EnablePrintRoutes:    !isProd,
		ReadTimeout:          1 * time.Minute,
		WriteTimeout:         1 * time.Minute,
		IdleTimeout:          5 * time.Minute,
		ReadBufferSize:       8192,
		WriteBufferSize:      8192,
		CompressedFileSuffix: ".gz",
		Prefork:              false,
		CaseSensitive:        true,
		StrictRouting:        false,
		Network:              "tcp",
		ServerHeader:         "CreditsHub",
	})
}

func setupMiddleware(app *fiber.App, cfg *config.Config, b *builder.Builder) {
	isProd := cfg.IsProduction()

	// Recover middleware (must be first)
	app.Use(recover.New(recover.Config{
		EnableStackTrace: !isProd,
	}))

	// Rate limiter (use builder config if available, otherwise use defaults)
	if b != nil && b.GetRateLimitConfig() != nil {
		rlCfg := b.GetRateLimitConfig()
		keyFunc := rlCfg.KeyFunc
		if keyFunc == nil {
			keyFunc = func(c *fiber.Ctx) string { return c.IP() }
		}
		app.Use(limiter.New(limiter.Config{
			Max:               rlCfg.Max,
			Expiration:        rlCfg.Expiration,
			LimiterMiddleware: limiter.SlidingWindow{},
			KeyGenerator:      keyFunc,
			LimitReached: func(c *fiber.Ctx) error {
				return fmt.Errorf("%d requests per %v", rlCfg.Max, rlCfg.Expiration)
			},
		}))
	} else {
		app.Use(limiter.New(limiter.Config{
			Max:               300,
			Expiration:        1 * time.Minute,
			LimiterMiddleware: limiter.SlidingWindow{},
			KeyGenerator: func(c *fiber.Ctx) string {
				return c.IP()
			},
			LimitReached: func(c *fiber.Ctx) error {
				return fmt.Errorf("300 requests per minute")
			},
		}))
	}

	// Request timeout middleware (use builder config if available)
	if b != nil && b.GetTimeoutConfig() != nil {
		timeoutDuration := b.GetTimeoutConfig().Timeout
		app.Use(func(c *fiber.Ctx) error {
			handler := func(c *fiber.Ctx) error {
				return c.Next()
			}
			return timeout.NewWithContext(handler, timeoutDuration)(c)
		})
	} else {
		app.Use(func(c *fiber.Ctx) error {
			const defaultTimeout = 30 * time.Second

			ctx, cancel := context.WithTimeout(c.UserContext(), defaultTimeout)
			defer cancel()
			c.SetUserContext(ctx)

			return c.Next()
		})
	}

	// Compression
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	// Logging
	if isProd {
		app.Use(logger.New(logger.Config{
			Format: "${time} ${status} ${method} ${path} ${latency} ${bytesSent}b\n",
			Output: os.Stdout,
		}))
	} else {
		app.Use(logger.New(logger.Config{
			Format: "[${time}] ${status} - ${latency} ${method} ${path} ${error}\n",
			Output: os.Stdout,
		}))
	}

	// CORS
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, User-Agent",
		AllowMethods:     "GET, POST, PUT, PATCH, DELETE, OPTIONS",
		AllowCredentials: true,
		MaxAge:           86400,
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
	}))

	// Custom middlewares from builder
	if b != nil {
		for _, m := range b.GetMiddlewares() {
			app.Use(m)
		}
	}

	// Profiler (dev only)
	if !isProd {
		app.Use(pprof.New())
	}
}

func setupLogLevel(cfg *config.Config) {
	logLevel := cfg.GetNormalizedLogLevel()

	switch logLevel {
	case "trace":
		fiberlog.SetLevel(fiberlog.LevelTrace)
	case "debug":
		fiberlog.SetLevel(fiberlog.LevelDebug)
	case "info":
		fiberlog.SetLevel(fiberlog.LevelInfo)
	case "warn", "warning":
		fiberlog.SetLevel(fiberlog.LevelWarn)
	case "error":
		fiberlog.SetLevel(fiberlog.LevelError)
	case "fatal":
		fiberlog.SetLevel(fiberlog.LevelFatal)
	case "panic":
		fiberlog.SetLevel(fiberlog.LevelPanic)
	default:
		fiberlog.SetLevel(fiberlog.LevelInfo)
		fiberlog.Warnf("Unknown log level '%s', defaulting to 'info'", logLevel)
	}

	fiberlog.Infof("Log level set to: %s", logLevel)
}

func createRedisClient(cfg *config.Config) (*redis.Client, error) {
	if cfg.Redis == nil || cfg.Redis.URL == "" {
		fiberlog.Info("Redis not configured - coupon cache and circuit breakers disabled")
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opt.PoolSize = 20
	opt.MinIdleConns = 5
	opt.PoolTimeout = 4 * time.Second
	opt.ConnMaxIdleTime = 5 * time.Minute
	opt.DialTimeout = 10 * time.Second
	opt.ReadTimeout = 3 * time.Second
	opt.WriteTimeout = 3 * time.Second
	opt.MaxRetries = 3

	client := redis.NewClient(opt)

	return testRedisConnectionWithRetry(client)
}

func testRedisConnectionWithRetry(client *redis.Client) (*redis.Client, error) {
	const maxAttempts = 3
	const baseDelay = 1 * time.Second

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := client.Ping(ctx).Err()
		cancel()

		if err == nil {
			fiberlog.Infof("Redis connection established successfully (attempt %d/%d)", attempt, maxAttempts)
			return client, nil
		}

		fiberlog.Warnf("Redis connection failed (attempt %d/%d): %v", attempt, maxAttempts, err)

		if attempt < maxAttempts {
			delay := time.Duration(attempt) * baseDelay
			fiberlog.Infof("Retrying Redis connection in %v...", delay)
			time.Sleep(delay)
		}
	}

	if err := client.Close(); err != nil {
		fiberlog.Errorf("Failed to close Redis client after connection failures: %v", err)
	}

	return nil, fmt.Errorf("failed to connect to Redis after %d attempts", maxAttempts)
}

func initializeInfrastructure(cfg *config.Config) (*appInfrastructure, error) {
	infra := &appInfrastructure{}

	redisClient, err := createRedisClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis client: %w", err)
	}
	infra.redis = redisClient

	db, err := database.New(*cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection: %w", err)
	}
	infra.db = db

	fiberlog.Infof("Database (%s) initialized successfully", db.DriverName())

	if err := db.AutoMigrate(); err != nil {
		return nil, fmt.Errorf("failed to run database migrations: %w", err)
	}
	fiberlog.Info("Database migrations completed successfully")

	return infra, nil
}

// setupRoutes wires services and handlers. It returns the sync retry
// scheduler when Server B sync is configured, nil otherwise.
func setupRoutes(app *fiber.App, cfg *config.Config, redisClient *redis.Client, db *database.DB) *sync.RetryScheduler {
	var couponSvc *coupons.Service
	if cfg.CouponRPC != nil {
		couponSvc = coupons.NewService(*cfg.CouponRPC, redisClient)
	}

	ledger := billing.NewLedger(db.DB)
	planSvc := plans.NewService(db.DB)
	accountSvc := accounts.NewService(db.DB)
	rechargeSvc := recharges.NewService(db.DB)
	ticketSvc := tickets.NewService(db.DB)
	userSvc := users.NewService(db.DB, couponSvc)
	stripeSvc := billing.NewStripeService(cfg.Stripe, db.DB, ledger, couponSvc, accountSvc, rechargeSvc)

	var syncSvc *sync.Service
	var scheduler *sync.RetryScheduler
	if cfg.ServerB != nil {
		syncSvc = sync.NewService(*cfg.ServerB, db.DB, redisClient)
		scheduler = sync.NewRetryScheduler(syncSvc, time.Duration(cfg.ServerB.RetryIntervalSecs)*time.Second)
	}

	authProvider := auth.NewClerkAuthProvider(cfg.Auth.Clerk.SecretKey, db.DB)
	authMiddleware := middleware.NewAuthMiddleware(authProvider, middleware.DefaultAuthMiddlewareConfig())

	billingHandler := api.NewBillingHandler(stripeSvc, ledger, cfg.IsProduction())
	clerkHandler := api.NewClerkWebhookHandler(cfg.Auth.Clerk.WebhookSecret, userSvc)
	plansHandler := api.NewPlansHandler(planSvc, accountSvc)
	usersHandler := api.NewUsersHandler(userSvc, accountSvc)
	couponsHandler := api.NewCouponsHandler(couponSvc)
	rechargesHandler := api.NewRechargesHandler(rechargeSvc)
	ticketsHandler := api.NewTicketsHandler(ticketSvc)
	adminHandler := api.NewAdminHandler(planSvc, accountSvc, rechargeSvc, userSvc, ticketSvc, syncSvc)
	healthHandler := api.NewHealthHandler(db, redisClient)

	// Public surface
	app.Get("/health", healthHandler.HealthCheck)
	app.Post("/webhooks/stripe", billingHandler.HandleStripeWebhook)
	app.Post("/webhooks/clerk", clerkHandler.HandleWebhook)

	// Authenticated storefront
	apiGroup := app.Group("/api", authMiddleware.RequireAuth())

	apiGroup.Get("/plans", plansHandler.ListPlans)

	apiGroup.Get("/me", usersHandler.GetMe)
	apiGroup.Patch("/me", usersHandler.UpdateMe)
	apiGroup.Get("/me/accounts", usersHandler.GetMyAccounts)
	apiGroup.Get("/me/transactions", billingHandler.GetTransactions)
	apiGroup.Get("/me/recharges", rechargesHandler.ListMine)

	if couponSvc != nil {
		apiGroup.Post("/me/coupon", usersHandler.ApplyCoupon)
		apiGroup.Delete("/me/coupon", usersHandler.ClearCoupon)
		apiGroup.Post("/coupons/validate", couponsHandler.ValidateCoupon)
	}

	apiGroup.Post("/checkout-session", billingHandler.CreateCheckoutSession)
	apiGroup.Post("/recharges/:id/link", rechargesHandler.SubmitLink)

	apiGroup.Post("/tickets", ticketsHandler.CreateTicket)
	apiGroup.Get("/tickets", ticketsHandler.ListMine)
	apiGroup.Get("/tickets/:id", ticketsHandler.GetTicket)
	apiGroup.Post("/tickets/:id/messages", ticketsHandler.Reply)

	// Operator surface
	adminGroup := apiGroup.Group("/admin", authMiddleware.RequireAdmin())

	adminGroup.Get("/plans", adminHandler.ListPlans)
	adminGroup.Post("/plans", adminHandler.CreatePlan)
	adminGroup.Patch("/plans/:id", adminHandler.UpdatePlan)
	adminGroup.Delete("/plans/:id", adminHandler.DeletePlan)
	adminGroup.Post("/plans/sync-stripe", adminHandler.SyncPlansStripe)

	adminGroup.Get("/accounts", adminHandler.ListAccounts)
	adminGroup.Post("/accounts", adminHandler.AddAccount)
	adminGroup.Delete("/accounts/:id", adminHandler.DeleteAccount)
	adminGroup.Get("/accounts/stock", adminHandler.GetStock)

	adminGroup.Get("/recharges", adminHandler.ListRecharges)
	adminGroup.Post("/recharges/:id/resolve", adminHandler.ResolveRecharge)

	adminGroup.Get("/users", adminHandler.ListUsers)
	adminGroup.Patch("/users/:clerkUserId", adminHandler.UpdateUser)

	adminGroup.Get("/tickets", adminHandler.ListTickets)
	adminGroup.Post("/tickets/:id/messages", adminHandler.ReplyTicket)
	adminGroup.Post("/tickets/:id/close", adminHandler.CloseTicket)

	if syncSvc != nil {
		adminGroup.Post("/sync/plans", adminHandler.TriggerPlanSync)
		adminGroup.Post("/sync/users/:clerkUserId", adminHandler.TriggerUserSync)
	}

	return scheduler
}

func welcomeHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message":    "Welcome to CreditsHub!",
			"version":    "1.0.0",
			"go_version": runtime.Version(),
			"status":     "running",
			"endpoints": fiber.Map{
				"plans":    "/api/plans",
				"checkout": "/api/checkout-session",
				"me":       "/api/me",
				"tickets":  "/api/tickets",
				"health":   "/health",
			},
		})
	}
}
