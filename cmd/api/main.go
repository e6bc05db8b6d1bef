package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	validator "github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"

	"github.com/noah-isme/backend-warung/internal/alerts"
	"github.com/noah-isme/backend-warung/internal/app"
	"github.com/noah-isme/backend-warung/internal/catalog"
	"github.com/noah-isme/backend-warung/internal/common"
	"github.com/noah-isme/backend-warung/internal/config"
	"github.com/noah-isme/backend-warung/internal/health"
	"github.com/noah-isme/backend-warung/internal/invoice"
	"github.com/noah-isme/backend-warung/internal/ledger"
	"github.com/noah-isme/backend-warung/internal/lock"
	"github.com/noah-isme/backend-warung/internal/obs"
	"github.com/noah-isme/backend-warung/internal/procurement"
	"github.com/noah-isme/backend-warung/internal/ratelimit"
	"github.com/noah-isme/backend-warung/internal/report"
	"github.com/noah-isme/backend-warung/internal/sales"
	"github.com/noah-isme/backend-warung/internal/security"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("env", cfg.AppEnv).Logger()

	obs.MustRegisterDomainMetrics(cfg.MetricsNamespace, nil)

	tracingEnabled := cfg.TracingEnabled
	if tracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "warung-api",
			Endpoint:      cfg.TracingEndpoint,
			SamplingRatio: cfg.TracingSampling,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "warung-api"

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}

	migrator, err := app.NewMigrator(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("build migrator")
	}
	if err := app.RunMigrations(migrator); err != nil {
		logger.Fatal().Err(err).Msg("run migrations")
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if err := redisotel.InstrumentMetrics(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis metrics")
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: redisOpts.Addr, Password: redisOpts.Password, DB: redisOpts.DB})
	defer func() {
		if err := asynqClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close asynq client")
		}
	}()
	alerter := &alerts.Enqueuer{Client: asynqClient, Log: logger}

	validate := validator.New()

	ledgerSvc := &ledger.Service{
		Store: ledger.SQLStore{},
		Log:   logger,
		OnLowStock: func(ctx context.Context, target ledger.Target, balance ledger.Balance) {
			alerter.NotifyLowStock(ctx, alerts.LowStockPayload{
				TargetKind: string(target.Kind),
				TargetID:   target.ID,
				Name:       balance.Name,
				Current:    balance.Current,
				Threshold:  balance.Threshold,
			})
		},
	}

	catalogSvc := &catalog.Service{
		DB:                   pool,
		Store:                catalog.SQLStore{},
		Ledger:               ledgerSvc,
		Cache:                catalog.NewCache(redisClient, cfg.ReportCacheTTL),
		Validate:             validate,
		Log:                  logger,
		DefaultMinStockAlert: int64(cfg.DefaultMinStockAlert),
	}
	catalogHandler := catalog.NewHandler(catalogSvc)

	salesSvc := &sales.Service{
		Pool:     pool,
		DB:       pool,
		Store:    sales.SQLStore{},
		Catalog:  catalog.SQLStore{},
		Ledger:   ledgerSvc,
		Validate: validate,
		Log:      logger,
	}
	salesHandler := sales.NewHandler(salesSvc)

	invoiceSvc := &invoice.Service{
		Pool:     pool,
		DB:       pool,
		Store:    invoice.SQLStore{},
		Catalog:  catalog.SQLStore{},
		Ledger:   ledgerSvc,
		Validate: validate,
		Log:      logger,
	}
	invoiceHandler := invoice.NewHandler(invoiceSvc)

	procurementSvc := &procurement.Service{
		Pool:    pool,
		DB:      pool,
		Store:   procurement.SQLStore{},
		Catalog: catalog.SQLStore{},
		Ledger:  ledgerSvc,
		Locker:  &lock.Locker{R: redisClient},
		LockTTL: cfg.StockLockTTL,
		Log:     logger,
	}
	procurementHandler := procurement.NewHandler(procurementSvc)

	reportSvc := &report.Service{
		DB:            pool,
		Store:         report.SQLStore{},
		R:             redisClient,
		TTL:           cfg.ReportCacheTTL,
		CurrencyLabel: cfg.CurrencyLabel,
		Log:           logger,
	}
	reportHandler := report.NewHandler(reportSvc)

	idem := common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL}

	limiter, err := ratelimit.New(redisClient, cfg.RateLimitWindow, cfg.RateLimitMax)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise rate limiter")
	}
	limitHandler := ratelimit.Handler{
		Limiter: limiter,
		OnError: func(err error) { logger.Error().Err(err).Msg("rate limiter store") },
	}

	httpMetrics := obs.NewHTTPMetrics(cfg.MetricsNamespace, nil, nil)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(security.Headers{Enable: true, EnableHSTS: true}.Middleware)
	r.Use(security.BodyLimit{Max: 1 << 20}.Middleware)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Actor-Id", "Idempotency-Key"},
		ExposedHeaders:   []string{"X-Total-Count"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Handle("/metrics", promhttp.Handler())
	r.Mount("/debug/pprof", newPprofMux())

	healthHandler := health.Handler{
		Checker: health.Deps{DB: pool, Redis: redisClient},
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Group(func(read chi.Router) {
			read.Get("/products", catalogHandler.ListProducts)
			read.Get("/products/{id}", catalogHandler.GetProduct)
			read.Get("/materials", catalogHandler.ListMaterials)
			read.Get("/materials/{id}", catalogHandler.GetMaterial)
			read.Get("/stock/low", catalogHandler.LowStock)
			read.Get("/sales", salesHandler.List)
			read.Get("/invoices", invoiceHandler.List)
			read.Get("/invoices/{id}", invoiceHandler.Get)
			read.Get("/purchases", procurementHandler.ListPurchases)
			read.Get("/usages", procurementHandler.ListUsages)
			read.Get("/reports/summary", reportHandler.Summary)
		})

		v.Group(func(mut chi.Router) {
			mut.Use(common.RequireActor)
			mut.Use(limitHandler.Middleware)
			mut.Use(idem.Middleware)

			mut.Post("/products", catalogHandler.CreateProduct)
			mut.Put("/products/{id}", catalogHandler.UpdateProduct)
			mut.Post("/products/{id}/stock-corrections", catalogHandler.CorrectProductStock)
			mut.Post("/materials", catalogHandler.CreateMaterial)
			mut.Put("/materials/{id}", catalogHandler.UpdateMaterial)
			mut.Post("/materials/{id}/stock-corrections", catalogHandler.CorrectMaterialStock)

			mut.Post("/sales", salesHandler.Create)

			mut.Post("/invoices", invoiceHandler.Create)
			mut.Put("/invoices/{id}/lines", invoiceHandler.ReplaceLines)
			mut.Post("/invoices/{id}/channel", invoiceHandler.SwitchChannel)
			mut.Patch("/invoices/{id}/status", invoiceHandler.PatchStatus)

			mut.Post("/purchases", procurementHandler.RecordPurchase)
			mut.Post("/usages", procurementHandler.RecordUsage)
		})
	})

	srv := &http.Server{
		Addr:    cfg.HTTPAddr(),
		Handler: r,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info().Msg("shutdown signal received")
	health.SetReady(false)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown server")
	}
	logger.Info().Msg("server stopped")
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	mux.Handle("/allocs", pprof.Handler("allocs"))
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	mux.Handle("/heap", pprof.Handler("heap"))
	mux.Handle("/mutex", pprof.Handler("mutex"))
	return mux
}
