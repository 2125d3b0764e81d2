package main

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/avelora/clinic-scheduler/internal/booking"
	"github.com/avelora/clinic-scheduler/internal/handlers"
	"github.com/avelora/clinic-scheduler/internal/outbox"
	"github.com/avelora/clinic-scheduler/internal/storage"
	"github.com/avelora/clinic-scheduler/libs/config"
	"github.com/avelora/clinic-scheduler/libs/db"
	"github.com/avelora/clinic-scheduler/libs/httpx"
	"github.com/avelora/clinic-scheduler/libs/kafkax"
	"github.com/avelora/clinic-scheduler/libs/otelx"
	"github.com/avelora/clinic-scheduler/libs/runtime"
)

func main() {
	service := config.String("SERVICE_NAME", "clinic-scheduler")
	port, err := config.Port("PORT", "8080")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	jwtSecret, err := config.RequiredString("JWT_SECRET")
	if err != nil {
		panic(err)
	}
	tokenTTL := config.Duration("TOKEN_TTL", 24*time.Hour)

	var (
		store  booking.Store
		pool   *db.Pool
		checks []runtime.ReadyCheck
	)
	driver := config.String("STORE_DRIVER", "postgres")
	switch driver {
	case "memory":
		// Dev and test mode. Appointments live in process; the auth and
		// directory routes need Postgres and stay off.
		store = storage.NewMemoryStore()
		logger.Warn("using in-memory store; auth and directory routes disabled")
	case "postgres":
		dbURL, err := config.RequiredString("DATABASE_URL")
		if err != nil {
			panic(err)
		}
		pool, err = db.Open(ctx, dbURL, db.Options{
			MaxConns: int32(config.Int("DB_MAX_CONNS", 10)),
		})
		if err != nil {
			logger.Error("db connection failed", "err", err)
			panic(err)
		}
		defer pool.Close()
		store = storage.NewAppointmentStore(pool)
		checks = append(checks, runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)})
	default:
		panic("unknown STORE_DRIVER: " + driver)
	}

	kafkaBrokers := config.String("KAFKA_BROKERS", "")
	if pool != nil && kafkaBrokers != "" {
		publisher := outbox.NewPublisher(pool, outbox.NewRepository(pool), logger, outbox.PublisherConfig{
			Brokers:   kafkaBrokers,
			PollEvery: config.Duration("OUTBOX_POLL_INTERVAL", 2*time.Second),
			BatchSize: config.Int("OUTBOX_BATCH_SIZE", 50),
		})
		go publisher.Run(ctx)
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(kafkaBrokers)})
	}

	svc := booking.NewService(store, booking.NewStatusMachine(booking.DefaultTransitions), logger)
	apptHandler := handlers.NewAppointmentHandler(svc, logger)
	requireAuth := handlers.RequireAuth(jwtSecret)

	mux := runtime.NewBaseMux(checks...)
	protected := func(h http.HandlerFunc) http.Handler {
		return requireAuth(h)
	}
	mux.Handle("POST /appointments", protected(apptHandler.Create))
	mux.Handle("GET /appointments", protected(apptHandler.List))
	mux.Handle("GET /appointments/slots", protected(apptHandler.Slots))
	mux.Handle("PUT /appointments/{id}/status", protected(apptHandler.UpdateStatus))
	mux.Handle("DELETE /appointments/{id}", protected(apptHandler.Delete))

	if pool != nil {
		authHandler := handlers.NewAuthHandler(storage.NewUserRepository(pool), jwtSecret, tokenTTL, logger)
		mux.HandleFunc("POST /auth/register", authHandler.Register)
		mux.HandleFunc("POST /auth/login", authHandler.Login)

		dirHandler := handlers.NewDirectoryHandler(storage.NewDirectoryRepository(pool), logger)
		mux.Handle("POST /clinics", protected(dirHandler.CreateClinic))
		mux.Handle("GET /clinics", protected(dirHandler.ListClinics))
		mux.Handle("GET /clinics/{id}", protected(dirHandler.GetClinic))
		mux.Handle("POST /rooms", protected(dirHandler.CreateRoom))
		mux.Handle("GET /rooms", protected(dirHandler.ListRooms))
		mux.Handle("GET /rooms/{id}", protected(dirHandler.GetRoom))
		mux.Handle("POST /providers", protected(dirHandler.CreateProvider))
		mux.Handle("GET /providers", protected(dirHandler.ListProviders))
		mux.Handle("GET /providers/{id}", protected(dirHandler.GetProvider))
	}

	rateLimit := rateLimitMiddleware(logger)
	httpHandler := httpx.Chain(mux,
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: strings.Split(config.String("CORS_ALLOWED_ORIGINS", "*"), ","),
		}),
		func(next http.Handler) http.Handler { return httpx.WithRequestID(next) },
		httpx.WithAccessLog(logger),
		httpx.WithRecovery(logger),
		httpx.WithBodyLimit(int64(config.Int("MAX_BODY_BYTES", 1<<20))),
		httpx.WithTimeout(config.Duration("REQUEST_TIMEOUT", 15*time.Second)),
		rateLimit,
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "clinic-scheduler")

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr, "store", driver)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
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

// rateLimitMiddleware prefers the Redis fixed-window limiter when a Redis
// address is configured so limits hold across replicas; otherwise the
// per-process limiter applies.
func rateLimitMiddleware(logger *slog.Logger) httpx.Middleware {
	limit := config.Int("RATE_LIMIT_REQUESTS", 120)
	window := config.Duration("RATE_LIMIT_WINDOW", time.Minute)

	if addr := config.String("REDIS_ADDR", ""); addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: addr})
		limiter := httpx.NewRedisRateLimiter(rdb, limit, window, "rl:clinic-scheduler")
		return limiter.Middleware(logger, config.Bool("RATE_LIMIT_FAIL_OPEN", true))
	}
	return httpx.NewRateLimiter(limit, window).Middleware()
}
