package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/notdp/franxx-store-sub000/internal/admin"
	"github.com/notdp/franxx-store-sub000/internal/analytics"
	analytics_api "github.com/notdp/franxx-store-sub000/internal/analytics/api"
	"github.com/notdp/franxx-store-sub000/internal/auth"
	"github.com/notdp/franxx-store-sub000/internal/config"
	"github.com/notdp/franxx-store-sub000/internal/database"
	"github.com/notdp/franxx-store-sub000/internal/database/migrations"
	"github.com/notdp/franxx-store-sub000/internal/kafka"
	"github.com/notdp/franxx-store-sub000/internal/logger"
	"github.com/notdp/franxx-store-sub000/internal/metrics"
	"github.com/notdp/franxx-store-sub000/internal/order"
	"github.com/notdp/franxx-store-sub000/internal/order/db"
	"github.com/notdp/franxx-store-sub000/internal/order/order_api"
	orderredis "github.com/notdp/franxx-store-sub000/internal/order/redis"
	"github.com/notdp/franxx-store-sub000/internal/payment/services"
	"github.com/notdp/franxx-store-sub000/internal/payment/storage"
	"github.com/notdp/franxx-store-sub000/internal/sse"
	"github.com/notdp/franxx-store-sub000/internal/telemetry"
)

const serviceVersion = "1.0.0"

func main() {
	envErr := godotenv.Load()
	cfg := config.Load()

	log, err := logger.NewLogger(cfg.LogDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()
	if level, ok := logger.ParseLevel(cfg.LogLevel); ok {
		log.SetLevel(level)
	} else {
		log.Warn("CONFIG", fmt.Sprintf("Unknown LOG_LEVEL %q, keeping debug", cfg.LogLevel))
	}

	log.Info("APP", "Starting FRANXX store initialization")
	if envErr != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}

	ctx := context.Background()

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, cfg.Telemetry.ServiceName, serviceVersion, cfg.Telemetry.OTLPEndpoint)
	if err != nil {
		log.Fatal("TELEMETRY", fmt.Sprintf("Failed to init tracer provider: %v", err))
	}
	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider(cfg.Telemetry.ServiceName, serviceVersion)
	if err != nil {
		log.Fatal("TELEMETRY", fmt.Sprintf("Failed to init meter provider: %v", err))
	}
	recorder, err := metrics.New()
	if err != nil {
		log.Fatal("TELEMETRY", fmt.Sprintf("Failed to create instruments: %v", err))
	}

	bunDB, err := database.Open(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
	defer bunDB.Close()

	runner := migrations.NewRunner(bunDB, migrations.Options{
		Dir:         getEnv("MIGRATIONS_PATH", migrations.DefaultOptions().Dir),
		AutoMigrate: os.Getenv("AUTO_MIGRATE") != "false",
	}, log)
	if err := runner.Run(); err != nil {
		log.Fatal("MIGRATE", err.Error())
	}
	runner.Close()

	orderDB := db.New(bunDB)
	paymentStore := storage.NewPostgreSQLStore(bunDB, log)

	// Redis is optional: without it webhook deliveries run unlocked and roles are read from Postgres.
	var locker order.SessionLocker = orderredis.NoopLocker{}
	roles := auth.NewRoleCache(nil, orderDB, cfg.Redis.RoleTTL, log)
	if cfg.Redis.Addr != "" {
		redisClient, err := auth.ConnectRedis(cfg.Redis, log)
		if err != nil {
			log.Warn("REDIS", fmt.Sprintf("Redis unavailable, continuing without locks and role cache: %v", err))
		} else {
			defer redisClient.Close()
			locker = orderredis.NewRedis(redisClient, cfg.Redis.LockTTL)
			roles = auth.NewRoleCache(redisClient, orderDB, cfg.Redis.RoleTTL, log)
		}
	} else {
		log.Warn("CONFIG", "REDIS_ADDR not set, webhook deliveries will not be locked")
	}

	var publisher order.KafkaPublisher = kafka.NoopPublisher{}
	if cfg.Kafka.Enabled {
		topics := []string{cfg.Kafka.Topics.OrderCreated, cfg.Kafka.Topics.OrderDelivered, cfg.Kafka.Topics.OrderFailed}
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, topics, log); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		}
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics, log)
		defer producer.Close()
		publisher = producer
		log.Info("KAFKA", "Kafka producer initialized successfully")
	}

	emitter := sse.NewOrderEventEmitter()

	orderService := order.NewOrderService(orderDB, paymentStore, locker, publisher, log)
	orderService.Events = emitter
	orderService.Metrics = recorder
	orderService.WebhookSecret = cfg.Stripe.WebhookSecret
	if cfg.Stripe.WebhookSecret == "" {
		log.LogSecurity("CONFIG", "STRIPE_WEBHOOK_SECRET not set, webhook signatures will NOT be verified")
	}

	stripeService, err := services.NewStripeService(cfg.Stripe.SecretKey, log)
	if err != nil {
		log.Fatal("STRIPE", err.Error())
	}

	authenticator := auth.NewAuthenticator(auth.NewVerifier(ctx, cfg.Supabase, log), roles, cfg.Supabase.ProjectRef, log)
	if cfg.MockUser {
		log.LogSecurity("CONFIG", "USE_MOCK_USER enabled, every request is authenticated as the mock user")
		mock := auth.MockUser
		authenticator.Mock = &mock
	}

	handler := order_api.NewHandler(orderService, orderDB, stripeService, cfg.BaseURL, cfg.Stripe.Currency, log)
	handler.Metrics = recorder
	sseHandler := order_api.NewSSEHandler(log, emitter, orderService)

	analyticsHandler := analytics_api.NewHandler(analytics.NewService(analytics.NewDB(bunDB)), log)
	adminHandler := admin.NewHandler(bunDB, orderService, orderDB, roles, analyticsHandler, log)
	adminHandler.PaymentLogs = paymentStore

	log.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(log.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := paymentStore.HealthCheck(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", metricsHandler)

	order_api.Mount(r, handler, sseHandler, authenticator)
	log.Info("ROUTER", "Storefront routes registered under /api")
	adminHandler.Mount(r, authenticator)
	log.Info("ROUTER", "Admin routes registered under /api/admin")

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      otelhttp.NewHandler(r, "franxx-store"),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("🚀 FRANXX store running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		log.Info("HTTP", "✅ FRANXX store shutdown complete")
	}
	if err := shutdownMeter(ctxShutdown); err != nil {
		log.Error("TELEMETRY", fmt.Sprintf("Meter provider shutdown failed: %v", err))
	}
	if err := shutdownTracer(ctxShutdown); err != nil {
		log.Error("TELEMETRY", fmt.Sprintf("Tracer provider shutdown failed: %v", err))
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
