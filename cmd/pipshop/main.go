// Package main is the entry point for the pipshop storefront server.
// It loads configuration, connects to services, sets up routing, and starts
// the HTTP server with graceful shutdown support.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"pipshop/internal/basket"
	"pipshop/internal/cache"
	"pipshop/internal/config"
	"pipshop/internal/database"
	"pipshop/internal/events"
	"pipshop/internal/handlers"
	"pipshop/internal/middleware"
	"pipshop/internal/notify"
	"pipshop/internal/orders"
	"pipshop/internal/payment"
	"pipshop/internal/pricing"
	"pipshop/internal/router"
	"pipshop/internal/sale"
	"pipshop/internal/session"
	"pipshop/internal/storage"
	"pipshop/internal/store"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	// A local .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("configuration loaded",
		"env", cfg.Env,
		"addr", cfg.Addr(),
		"payment_methods", cfg.PaymentMethods,
	)

	// Connect to PostgreSQL.
	db, err := database.Connect(cfg.DSN())
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Seed development data (no-op if data already exists).
	if cfg.IsDev() {
		if err := database.Seed(db); err != nil {
			slog.Error("failed to seed database", "error", err)
			os.Exit(1)
		}
	}

	// Connect to Valkey (sessions, catalog cache, webhook dedup).
	valkeyClient, err := cache.ConnectValkey(cfg.ValkeyHost, cfg.ValkeyPort, cfg.ValkeyPassword)
	if err != nil {
		slog.Error("failed to connect to valkey", "error", err)
		os.Exit(1)
	}
	defer valkeyClient.Close()

	// In non-development environments, mark cookies as Secure (HTTPS-only).
	secureCookies := !cfg.IsDev()
	sessionStore := session.NewStore(valkeyClient, secureCookies)

	// Initialize data stores.
	userStore := store.NewUserStore(db)
	categoryStore := store.NewCategoryStore(db)
	productStore := store.NewProductStore(db)
	variantStore := store.NewVariantStore(db)
	saleStore := store.NewSaleStore(db)
	basketStore := store.NewBasketStore(db)
	orderStore := store.NewOrderStore(db)
	settingStore := store.NewShopSettingStore(db)
	stockStore := store.NewStockMovementStore(db)

	// Domain events go to Kafka when brokers are configured.
	var publisher events.Publisher = events.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		kp := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopicOrders, cfg.KafkaTopicBaskets, 256)
		defer kp.Close()
		publisher = kp
		slog.Info("kafka events enabled", "brokers", cfg.KafkaBrokers)
	}

	// Order emails go through SMTP, or the log when no host is set.
	var mailer notify.Mailer = notify.LogMailer{}
	if cfg.SMTPHost != "" {
		smtp, err := notify.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword)
		if err != nil {
			slog.Error("failed to initialize smtp", "error", err)
			os.Exit(1)
		}
		mailer = smtp
	} else {
		slog.Warn("smtp not configured, order emails are logged only")
	}
	notifier := notify.NewNotifier(mailer, cfg.DefaultFromEmail, cfg.Domain)

	// Domain services.
	saleEngine := sale.NewEngine(saleStore)
	baskets := basket.NewService(basketStore, variantStore, saleEngine, pricing.Default(cfg.ShippingCost), publisher, cfg.BasketTimeout)
	orderService := orders.NewService(orderStore, settingStore, notifier, baskets, publisher)

	// Payment methods, in the configured order.
	available := []payment.Method{payment.NewPayInAdvance(orderService, baskets)}
	var gateway *payment.Gateway
	if cfg.GatewayEnabled() {
		gateway = payment.NewGateway(payment.GatewayConfig{
			Label:         cfg.GatewayLabel,
			Currency:      cfg.GatewayCurrency,
			Domain:        cfg.Domain,
			WebhookSecret: cfg.GatewayWebhookSecret,
		}, payment.NewGatewayClient(cfg.GatewayURL, cfg.GatewayAPIKey),
			orderService, orderService, baskets,
			cache.NewDedup(valkeyClient, cache.DefaultDedupTTL))
		available = append(available, gateway)
	}
	methods, err := payment.NewRegistry(cfg.PaymentMethods, available...)
	if err != nil {
		slog.Error("invalid payment configuration", "error", err)
		os.Exit(1)
	}

	// The request-time sweep always runs; the scheduled one is optional.
	if cfg.BasketSweepSchedule != "" {
		sweeper, err := basket.NewSweeper(cfg.BasketSweepSchedule, baskets)
		if err != nil {
			slog.Error("invalid basket sweep schedule", "error", err)
			os.Exit(1)
		}
		sweeper.Start()
		defer sweeper.Stop()
		slog.Info("basket sweep scheduled", "schedule", cfg.BasketSweepSchedule)
	}

	// Connect to S3-compatible object storage (optional, app works without it).
	storageClient, err := storage.New(
		cfg.S3Endpoint, cfg.S3Region, cfg.S3AccessKey, cfg.S3SecretKey,
		cfg.S3Bucket, cfg.S3PublicURL,
	)
	if err != nil {
		slog.Error("failed to initialize S3 storage", "error", err)
		os.Exit(1)
	}
	if storageClient != nil {
		slog.Info("s3 storage connected", "endpoint", cfg.S3Endpoint, "bucket", cfg.S3Bucket)
	} else {
		slog.Warn("s3 storage not configured, image uploads disabled")
	}

	catalogCache := cache.NewCatalogCache(valkeyClient, cache.DefaultCatalogTTL)

	authLimiter := middleware.NewRateLimiter("auth", cfg.AuthRateLimit, time.Minute)
	defer authLimiter.Stop()
	shopLimiter := middleware.NewRateLimiter("shop", cfg.ShopRateLimit, time.Minute)
	defer shopLimiter.Stop()

	// Create handler groups with their dependencies.
	r := router.New(router.Deps{
		Sessions: sessionStore,
		Shop:     handlers.NewShop(sessionStore, categoryStore, productStore, saleEngine, baskets, catalogCache, storageClient),
		Basket:   handlers.NewBasket(sessionStore, baskets),
		Checkout: handlers.NewCheckout(sessionStore, baskets, orderService, orderStore, methods, gateway),
		Auth:     handlers.NewAuth(sessionStore, userStore),
		Admin: handlers.NewAdmin(handlers.AdminDeps{
			Categories:     categoryStore,
			Products:       productStore,
			Variants:       variantStore,
			SaleStore:      saleStore,
			Sales:          saleEngine,
			Orders:         orderService,
			Settings:       settingStore,
			StockMovements: stockStore,
			Storage:        storageClient,
			Catalog:        catalogCache,
		}),
		Sweeper:        baskets,
		AuthLimiter:    authLimiter,
		ShopLimiter:    shopLimiter,
		GatewayEnabled: gateway != nil,
		SecureCookies:  secureCookies,
	})

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start the server in a goroutine so we can listen for shutdown signals.
	go func() {
		slog.Info("server starting", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown: wait for SIGINT or SIGTERM, then drain connections.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped gracefully")
}
