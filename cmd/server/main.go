package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/plantpulse/internal/adapter/httpserver"
	"github.com/pscheid92/plantpulse/internal/adapter/identity"
	"github.com/pscheid92/plantpulse/internal/adapter/memstore"
	"github.com/pscheid92/plantpulse/internal/adapter/metrics"
	"github.com/pscheid92/plantpulse/internal/adapter/postgres"
	"github.com/pscheid92/plantpulse/internal/adapter/redis"
	"github.com/pscheid92/plantpulse/internal/adapter/websocket"
	"github.com/pscheid92/plantpulse/internal/app"
	"github.com/pscheid92/plantpulse/internal/domain"
	"github.com/pscheid92/plantpulse/internal/platform/config"
	"github.com/pscheid92/plantpulse/internal/platform/logging"
	"github.com/pscheid92/plantpulse/internal/platform/ratelimit"
	"github.com/pscheid92/plantpulse/internal/platform/version"
	goredis "github.com/redis/go-redis/v9"
)

const (
	sweepInterval   = time.Minute
	shutdownTimeout = 10 * time.Second
)

type stores struct {
	inventory domain.InventoryStore
	actors    domain.ActorDirectory
	checks    []httpserver.HealthCheck
	close     func()
}

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// slog is not configured yet
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupStores(ctx context.Context, cfg *config.Config, clock clockwork.Clock, storeMetrics *metrics.StoreMetrics) stores {
	if cfg.StoreBackend == config.StoreBackendMemory {
		slog.Warn("Using in-memory store; inventory is lost on restart")
		return stores{
			inventory: memstore.NewInventory(memstore.DemoRecords(clock.Now())...),
			actors:    memstore.NewActors(memstore.DemoActors()...),
			close:     func() {},
		}
	}

	pool := setupDB(ctx, cfg, storeMetrics)
	inventory := postgres.NewInventoryRepo(pool)
	actors := postgres.NewActorRepo(pool)

	if cfg.SeedDemo {
		seedDemo(ctx, inventory, actors, clock)
	}

	return stores{
		inventory: inventory,
		actors:    actors,
		checks: []httpserver.HealthCheck{
			{Name: "postgres", Check: pool.Ping},
		},
		close: pool.Close,
	}
}

func setupDB(ctx context.Context, cfg *config.Config, storeMetrics *metrics.StoreMetrics) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL, storeMetrics)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := postgres.RunMigrationsWithLock(ctx, pool); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	return pool
}

func seedDemo(ctx context.Context, inventory *postgres.InventoryRepo, actors *postgres.ActorRepo, clock clockwork.Clock) {
	if err := inventory.ImportRecords(ctx, memstore.DemoRecords(clock.Now())); err != nil {
		slog.Error("Failed to seed demo inventory", "error", err)
		os.Exit(1)
	}
	for _, actor := range memstore.DemoActors() {
		if err := actors.Upsert(ctx, actor, true); err != nil {
			slog.Error("Failed to seed demo actor", "actor_id", actor.ID, "error", err)
			os.Exit(1)
		}
	}
	slog.Info("Seeded demo data")
}

// setupRedis returns nil when no REDIS_URL is configured.
func setupRedis(ctx context.Context, cfg *config.Config, cacheMetrics *metrics.CacheMetrics, storeMetrics *metrics.StoreMetrics) *goredis.Client {
	if cfg.RedisURL == "" {
		return nil
	}

	breaker := redis.NewCircuitBreakerHook(cacheMetrics.ObserveBreaker)
	client, err := redis.NewClient(ctx, cfg.RedisURL, breaker, redis.NewMetricsHook(storeMetrics))
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

func runGracefulShutdown(srv *httpserver.Server, hub *websocket.Hub, stopBackground context.CancelFunc) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		stopBackground()
		hub.CloseAll("server shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()
	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "version", version.Get().Version, "store", cfg.StoreBackend)

	ctx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	registry := metrics.NewRegistry()
	wsMetrics := metrics.NewWebSocketMetrics(registry)
	cacheMetrics := metrics.NewCacheMetrics(registry)
	storeMetrics := metrics.NewStoreMetrics(registry)

	st := setupStores(ctx, cfg, clock, storeMetrics)
	defer st.close()

	actors := st.actors
	var invalidator app.ActorInvalidator
	if redisClient := setupRedis(ctx, cfg, cacheMetrics, storeMetrics); redisClient != nil {
		defer func() { _ = redisClient.Close() }()
		cache := redis.NewActorCache(redisClient, st.actors, cfg.ActorCacheTTL, cacheMetrics)
		actors, invalidator = cache, cache
		st.checks = append(st.checks, httpserver.HealthCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		})
	}

	verifier := identity.NewJWTVerifier(cfg.JWTSecret, cfg.JWTIssuer, clock)
	auth := app.NewAuthenticator(verifier, actors, cfg.AuthTimeout)
	auth.OnFailure(func(reason string) { wsMetrics.AuthFailures.WithLabelValues(reason).Inc() })

	hub := websocket.NewHub(wsMetrics)

	poller := app.NewPoller(st.inventory, hub, clock, app.PollerConfig{
		SummaryInterval: cfg.PollSummaryInterval,
		AlertsInterval:  cfg.PollAlertsInterval,
		StatsInterval:   cfg.PollStatsInterval,
	}, metrics.NewPollerMetrics(registry))

	router := app.NewRouter(domain.CommandPermissions)
	plant := app.NewPlant(hub, hub, actors, invalidator, clock)
	if err := plant.Register(router); err != nil {
		slog.Error("Failed to register plant commands", "error", err)
		os.Exit(1)
	}
	if err := app.NewInventory(st.inventory, poller, hub, clock).Register(router); err != nil {
		slog.Error("Failed to register inventory commands", "error", err)
		os.Exit(1)
	}
	greeter := app.NewGreeter(hub, plant, poller)

	connLimiter := ratelimit.NewWindow(cfg.ConnRateLimit, cfg.ConnRateWindow, clock)
	msgLimiter := ratelimit.NewWindow(cfg.MsgRateLimit, cfg.MsgRateWindow, clock)
	go connLimiter.RunSweeper(ctx, "connection", sweepInterval)
	go msgLimiter.RunSweeper(ctx, "message", sweepInterval)

	wsHandler := websocket.NewHandler(hub, auth, router, greeter, websocket.HandlerConfig{
		ConnLimiter: connLimiter,
		MsgLimiter:  msgLimiter,
		Capacity:    ratelimit.NewGlobalLimiter(int64(cfg.MaxWebSocketConnections)),
		CheckOrigin: websocket.NewCheckOrigin(cfg.AppURL, !cfg.IsProduction()),
		Clock:       clock,
	}, wsMetrics)

	go poller.Run(ctx)

	checks := append(st.checks, httpserver.HealthCheck{
		Name: "inventory_views",
		Check: func(context.Context) error {
			if _, ok := poller.Latest(app.ViewSummary); !ok {
				return errors.New("inventory summary not built yet")
			}
			return nil
		},
	})
	srv := httpserver.NewServer(cfg, auth, poller, wsHandler.ServeWS, metrics.Handler(registry), metrics.NewHTTPMetrics(registry), checks)

	done := runGracefulShutdown(srv, hub, stopBackground)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
