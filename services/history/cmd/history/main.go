package main

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/example/stream-platform/internal/platform/auth"
	"github.com/example/stream-platform/internal/platform/config"
	"github.com/example/stream-platform/internal/platform/events"
	"github.com/example/stream-platform/internal/platform/httpserver"
	"github.com/example/stream-platform/internal/platform/logging"
	"github.com/example/stream-platform/internal/platform/natsconn"
	"github.com/example/stream-platform/internal/platform/run"
	"github.com/example/stream-platform/internal/platform/telemetry"
	"github.com/example/stream-platform/services/history/internal/catalog"
	historyconfig "github.com/example/stream-platform/services/history/internal/config"
	"github.com/example/stream-platform/services/history/internal/handlers"
	"github.com/example/stream-platform/services/history/internal/idempotency"
	"github.com/example/stream-platform/services/history/internal/metrics"
	"github.com/example/stream-platform/services/history/internal/ratelimit"
	"github.com/example/stream-platform/services/history/internal/store"
	"github.com/example/stream-platform/services/history/internal/tracker"
	"github.com/example/stream-platform/services/history/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logging.New(cfg.ServiceName, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	historyCfg, err := historyconfig.Load()
	if err != nil {
		log.Error("history config", zap.Error(err))
		panic(err)
	}

	metrics.Register(prometheus.DefaultRegisterer)

	shutdownTracing, err := telemetry.Init(context.Background(), cfg.ServiceName)
	if err != nil {
		log.Warn("telemetry init failed, tracing disabled", zap.Error(err))
		shutdownTracing = func(context.Context) error { return nil }
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(ctx)
	}()

	st, err := store.New(context.Background(), store.Config{
		MongoURI:    historyCfg.MongoURI,
		MongoDB:     historyCfg.MongoDB,
		DatabaseURL: historyCfg.DatabaseURL,
		Production:  historyCfg.Production,
	}, log)
	if err != nil {
		log.Error("progress store", zap.Error(err))
		run.Exit(1)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = st.Close(ctx)
	}()

	provider := buildCatalog(historyCfg, log)

	var (
		nc     *nats.Conn
		dedupe idempotency.Store
	)
	pub := events.New(nil, log)

	conn, err := natsconn.Connect(natsconn.Options{Name: cfg.ServiceName})
	if err != nil {
		if historyCfg.Production {
			log.Error("NATS is required in production", zap.Error(err))
			run.Exit(1)
		}
		log.Warn("NATS unavailable, async progress ingest disabled", zap.Error(err))
	} else {
		nc = conn
		defer nc.Close()

		js, err := nc.JetStream()
		if err != nil {
			log.Warn("jetstream unavailable, analytics events disabled", zap.Error(err))
		} else {
			pub = events.New(js, log)
		}

		dedupe, err = idempotency.NewStore(context.Background(),
			historyCfg.RedisDSN, historyCfg.DatabaseURL, historyCfg.EventTTL, historyCfg.Production, log)
		if err != nil {
			log.Error("event dedupe store", zap.Error(err))
			run.Exit(1)
		}
		defer dedupe.Close()
	}

	svc := tracker.New(st, provider, pub, log)

	verifier := auth.JWTVerifier{Secret: historyCfg.JWTSecret}
	limiter := ratelimit.New(historyCfg.WriteRPS, historyCfg.WriteBurst)

	r := chi.NewRouter()
	r.Use(metrics.Middleware)
	httpserver.SetupRouter(r, httpserver.RouterConfig{ReadyFunc: func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return st.Ping(ctx)
	}})
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("history service"))
	})
	r.Group(func(pr chi.Router) {
		pr.Use(auth.RequireUser(verifier))
		pr.With(limiter.Middleware).Put("/v1/history/progress", handlers.UpsertProgress(svc))
		pr.Get("/v1/history/progress/{media_type}/{media_id}", handlers.GetProgress(svc))
		pr.Get("/v1/history/continue-watching", handlers.ContinueWatching(svc))
		pr.Get("/v1/history", handlers.History(svc))
		pr.With(auth.RequireAdmin).Get("/v1/admin/history/{user_id}", handlers.AdminUserHistory(svc))
	})

	srv := httpserver.New(httpserver.Options{
		Addr:        cfg.HTTPAddr,
		ServiceName: cfg.ServiceName,
		Logger:      log,
		Handler:     otelhttp.NewHandler(r, cfg.ServiceName),
	})

	runner := run.New(log)
	code := runner.WithSignals(func(ctx context.Context) error {
		if nc != nil {
			worker.StartProgressConsumer(ctx, nc, svc, dedupe, log)
		}
		go func() {
			<-ctx.Done()
			_ = srv.Shutdown(context.Background())
		}()
		return srv.Start(log)
	})

	log.Info("exit", zap.Int("code", code))
	run.Exit(code)
}

// buildCatalog wires the snapshot provider: TMDB behind a cache when an API
// key is configured, an empty static provider otherwise.
func buildCatalog(historyCfg historyconfig.HistoryConfig, log *zap.Logger) catalog.Provider {
	if historyCfg.CatalogAPIKey == "" {
		log.Warn("CATALOG_API_KEY not set, progress records will not carry titles or posters")
		return catalog.Static{}
	}

	var cache catalog.Cache
	if historyCfg.RedisDSN != "" {
		rc, err := catalog.NewRedisCache(historyCfg.RedisDSN, historyCfg.CatalogCacheTTL)
		if err != nil {
			log.Warn("catalog redis cache unavailable, using in-process cache", zap.Error(err))
			cache = catalog.NewMemoryCache(historyCfg.CatalogCacheTTL)
		} else {
			cache = rc
		}
	} else {
		cache = catalog.NewMemoryCache(historyCfg.CatalogCacheTTL)
	}

	log.Info("catalog provider ready", zap.Bool("redis_cache", historyCfg.RedisDSN != ""))
	return catalog.NewCachedProvider(catalog.NewTMDB(historyCfg.CatalogBaseURL, historyCfg.CatalogAPIKey), cache, log)
}
