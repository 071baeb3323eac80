package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"lightning-paywall.backend/internal/config"
	"lightning-paywall.backend/internal/infrastructure/jobs"
	"lightning-paywall.backend/internal/infrastructure/lightning"
	"lightning-paywall.backend/internal/infrastructure/models"
	"lightning-paywall.backend/internal/infrastructure/repositories"
	"lightning-paywall.backend/internal/interfaces/http/handlers"
	"lightning-paywall.backend/internal/interfaces/http/middleware"
	"lightning-paywall.backend/internal/notify"
	"lightning-paywall.backend/internal/realtime"
	"lightning-paywall.backend/internal/usecases"
	"lightning-paywall.backend/pkg/jwt"
	"lightning-paywall.backend/pkg/logger"
	"lightning-paywall.backend/pkg/redis"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.Load()

	logger.Init(cfg.Server.Env)
	logger.Info(context.Background(), "Logger initialized", zap.String("env", cfg.Server.Env))

	// Redis backs the settlement dedup lock; without it the in-process
	// deduper still protects a single instance.
	var deduper usecases.Deduper
	if err := redis.Init(cfg.Redis.URL, cfg.Redis.Password); err != nil {
		logger.Warn(context.Background(), "Redis unavailable, using in-process dedup lock", zap.Error(err))
		deduper = usecases.NewMemoryDeduper()
	} else {
		deduper = usecases.NewRedisDeduper()
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := gorm.Open(postgres.Open(cfg.Database.URL()), &gorm.Config{})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get generic database object: %w", err)
	}
	defer sqlDB.Close()

	if err := db.AutoMigrate(&models.PaymentState{}, &models.IdempotencyMapping{}); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	// Repositories
	stateRepo := repositories.NewPaymentStateRepository(db)
	idemRepo := repositories.NewIdempotencyRepository(db)

	// Realtime hub + settlement pipeline
	hub := realtime.NewHub()
	processor := usecases.NewEventProcessor(stateRepo, deduper, hub)

	// Backend connection; the processor is the SDK event listener
	connManager := lightning.NewConnectionManager(cfg.Lightning, nil, processor)
	defer connManager.Close()

	// Usecases
	jwtService := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.AccessExpiry, cfg.JWT.RefreshExpiry)
	notifier := notify.NewLogNotifier()
	invoiceUsecase := usecases.NewInvoiceUsecase(connManager, stateRepo, idemRepo,
		cfg.Payment.MaxAmountSat, cfg.Payment.MaxDescriptionLen)
	webhookUsecase := usecases.NewWebhookUsecase(stateRepo, hub, notifier, cfg.Webhook.Secret)
	authUsecase := usecases.NewAuthUsecase(cfg.Admin, jwtService)

	// Handlers
	authHandler := handlers.NewAuthHandler(authUsecase)
	invoiceHandler := handlers.NewInvoiceHandler(invoiceUsecase)
	paymentHandler := handlers.NewPaymentHandler(stateRepo)
	webhookHandler := handlers.NewWebhookHandler(webhookUsecase, cfg.Webhook.MaxBodyBytes)
	eventsHandler := handlers.NewEventsHandler(hub)

	// Background work
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	processor.Start(ctx)
	go hub.StartHeartbeat(ctx)

	expiryJob := jobs.NewPaymentExpiryJob(stateRepo, cfg.Payment.InvoiceTTL)
	go expiryJob.Start(ctx)

	// Router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.LoggerMiddleware())

	registerHealthRoute(r, connManager.IsConnected)
	registerAPIV1Routes(r, routeDeps{
		authHandler:         authHandler,
		invoiceHandler:      invoiceHandler,
		paymentHandler:      paymentHandler,
		webhookHandler:      webhookHandler,
		eventsHandler:       eventsHandler,
		sessionMiddleware:   middleware.SessionMiddleware(cfg.Session.CookieName, cfg.Session.MaxAge),
		adminAuthMiddleware: middleware.AdminAuthMiddleware(jwtService),
	})

	// Graceful shutdown
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Info(context.Background(), "Shutting down server")
		expiryJob.Stop()
		processor.Stop()
		connManager.Close()
		cancel()
	}()

	logger.Info(context.Background(), "Lightning paywall backend starting",
		zap.String("port", cfg.Server.Port))

	if err := r.Run(":" + cfg.Server.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}
