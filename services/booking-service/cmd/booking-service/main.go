package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/expertmarket/bookingengine/libs/auth"
	"github.com/expertmarket/bookingengine/libs/cache"
	"github.com/expertmarket/bookingengine/libs/config"
	"github.com/expertmarket/bookingengine/libs/db"
	"github.com/expertmarket/bookingengine/libs/httpx"
	"github.com/expertmarket/bookingengine/libs/kafkax"
	otelx "github.com/expertmarket/bookingengine/libs/otel"
	"github.com/expertmarket/bookingengine/libs/runtime"
	"github.com/expertmarket/bookingengine/services/booking-service/internal/booking"
	"github.com/expertmarket/bookingengine/services/booking-service/internal/consumer"
	"github.com/expertmarket/bookingengine/services/booking-service/internal/entitlements"
	"github.com/expertmarket/bookingengine/services/booking-service/internal/handlers"
	"github.com/expertmarket/bookingengine/services/booking-service/internal/outbox"
	"github.com/expertmarket/bookingengine/services/booking-service/internal/storage"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		panic(err)
	}
	service := config.String("SERVICE_NAME", "booking-service")
	logger := runtime.NewLogger(service, config.String("LOG_LEVEL", "info"))
	port, err := config.Port("PORT", "8083")
	if err != nil {
		logger.Error("invalid config", "err", err)
		os.Exit(1)
	}
	loc, err := config.Location("SITE_TIMEZONE", "UTC")
	if err != nil {
		logger.Error("invalid config", "err", err)
		os.Exit(1)
	}

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelCfg, err := otelx.ConfigFromEnv(service)
	if err != nil {
		logger.Error("invalid config", "err", err)
		os.Exit(1)
	}
	otelShutdown, err := otelx.Setup(ctx, otelCfg)
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		logger.Error("invalid config", "err", err)
		os.Exit(1)
	}
	pool, err := db.Open(ctx, dbURL, db.Options{})
	if err != nil {
		logger.Error("db connection failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	if config.Bool("MIGRATE_ON_START", true) {
		if err := storage.Migrate(ctx, pool, logger); err != nil {
			logger.Error("migrations failed", "err", err)
			os.Exit(1)
		}
	}

	redisDB, err := config.Int("REDIS_DB", 0)
	if err != nil {
		logger.Error("invalid config", "err", err)
		os.Exit(1)
	}
	rdb, err := cache.Open(ctx, cache.Options{
		Addr:     config.String("REDIS_ADDR", ""),
		Password: config.String("REDIS_PASSWORD", ""),
		DB:       redisDB,
	})
	if err != nil {
		logger.Error("redis connection failed; continuing without cache", "err", err)
		rdb = nil
	}
	if rdb != nil {
		defer rdb.Close()
	}

	var checker entitlements.Checker = entitlements.Static{Allowed: config.Bool("ENTITLEMENTS_DEFAULT_ALLOW", true)}
	if addr := config.String("ENTITLEMENTS_GRPC_ADDR", ""); addr != "" {
		client, err := entitlements.NewClient(addr, 2*time.Second)
		if err != nil {
			logger.Error("entitlements client init failed", "err", err)
			os.Exit(1)
		}
		defer client.Close()
		checker = client
	} else {
		logger.Warn("no entitlement service configured; using static decision")
	}

	brokers := config.String("KAFKA_BROKERS", "")
	if rdb != nil {
		ttl, err := config.Duration("ENTITLEMENTS_CACHE_TTL", time.Minute)
		if err != nil {
			logger.Error("invalid config", "err", err)
			os.Exit(1)
		}
		cached := entitlements.NewCache(checker, rdb, ttl, logger)
		checker = cached

		if brokers != "" {
			subscriptions := consumer.New(logger, storage.NewInboxRepository(pool), consumer.Config{
				Brokers: brokers,
				GroupID: config.String("KAFKA_GROUP_ID", service),
				Topic:   config.String("KAFKA_ENTITLEMENT_TOPIC", "billing.subscription.changed.v1"),
			}, consumer.SubscriptionChanged(logger, cached, booking.FeatureBooking))
			go subscriptions.Run(ctx)
		}
	}

	outboxRepo := outbox.NewRepository(pool)
	publisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   brokers,
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go publisher.Run(ctx)

	svc := booking.NewService(booking.Deps{
		Rules:        storage.NewAvailabilityRepository(pool),
		Bookings:     storage.NewBookingRepository(pool),
		Entitlements: checker,
		Dispatcher:   outbox.NewDispatcher(outboxRepo, logger),
		Logger:       logger,
		Location:     loc,
	})

	perMinute, err := config.Int("RATE_LIMIT_PER_MINUTE", 30)
	if err != nil {
		logger.Error("invalid config", "err", err)
		os.Exit(1)
	}
	var createLimit httpx.Middleware
	if rdb != nil {
		createLimit = httpx.NewRedisRateLimiter(rdb, httpx.RedisLimit{
			Limit:    perMinute,
			Window:   time.Minute,
			Scope:    "bookings:create",
			Key:      callerKey,
			FailOpen: true,
		}, logger).Middleware()
	} else {
		createLimit = httpx.NewRateLimiter(perMinute, time.Minute, callerKey).Middleware()
	}
	requestTimeout, err := config.Duration("HTTP_REQUEST_TIMEOUT", 10*time.Second)
	if err != nil {
		logger.Error("invalid config", "err", err)
		os.Exit(1)
	}

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers), Optional: brokers == ""},
		runtime.ReadyCheck{Name: "redis", Check: cache.ReadyCheck(rdb), Optional: true},
	)
	handlers.New(svc, logger).Register(mux, httpx.ForMethods(createLimit, http.MethodPost))

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(64<<10),
		httpx.WithTimeout(requestTimeout),
		auth.Middleware(config.String("JWT_SECRET", "")),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr, "timezone", loc.String())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}

// callerKey rate-limits authenticated callers per user and anonymous ones per address.
func callerKey(r *http.Request) string {
	if id, ok := auth.IdentityFromContext(r.Context()); ok {
		return "user:" + id.UserID
	}
	return "ip:" + httpx.ClientIP(r)
}
