package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/rpggio/interview/internal/auth"
	"github.com/rpggio/interview/internal/authz"
	"github.com/rpggio/interview/internal/config"
	"github.com/rpggio/interview/internal/domain/query"
	"github.com/rpggio/interview/internal/ledgerdb"
	"github.com/rpggio/interview/internal/mcp"
	"github.com/rpggio/interview/internal/observability"
	"github.com/rpggio/interview/internal/ratelimit"
	"github.com/rpggio/interview/internal/sources"
	"github.com/rpggio/interview/internal/transport"
	"github.com/rpggio/interview/internal/viewer"
)

const shutdownTimeout = 5 * time.Second

func runServe(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	logger, closeLog, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Server.InstanceID == "" {
		cfg.Server.InstanceID = uuid.NewString()
	}

	manager, closeMirror, err := buildManager(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeMirror()
	defer func() {
		if err := manager.Close(); err != nil {
			logger.Warn("closing sources", "error", err)
		}
	}()

	svc, err := viewer.NewService(manager, query.Limits{
		DefaultLimit:      cfg.Query.DefaultLimit,
		MaxLimit:          cfg.Query.MaxLimit,
		DefaultTimeWindow: cfg.Query.DefaultTimeWindow,
		MaxTimeWindow:     cfg.Query.MaxTimeWindow,
		AllowGlobalLedger: cfg.GlobalLedger.AllowByDefault,
	}, logger)
	if err != nil {
		return fmt.Errorf("viewer: %w", err)
	}

	store, err := buildAuth(cfg, logger)
	if err != nil {
		return err
	}

	info := viewer.Describe(version, cfg.Server.InstanceID)
	mcpServer := mcp.NewServer(mcp.Config{
		Viewer:        svc,
		Auth:          store,
		Authorizer:    store,
		LocalRole:     cfg.Auth.DevRole,
		TransportMode: cfg.Transport.Mode,
		Info:          info,
		Logger:        logger,
	})

	if cfg.Transport.Mode == "stdio" {
		return runStdioMode(ctx, logger, mcpServer)
	}

	var limiter transport.Admitter
	if n := cfg.API.RateLimitPerMinute; n > 0 {
		limiter = ratelimit.New(ratelimit.Config{
			Default: ratelimit.Bucket{Capacity: n, RefillPerSecond: float64(n) / 60},
		})
	}
	mcpHandler := sdkmcp.NewStreamableHTTPHandler(
		func(r *http.Request) *sdkmcp.Server { return mcpServer },
		&sdkmcp.StreamableHTTPOptions{SessionTimeout: 30 * time.Minute},
	)
	router := transport.NewServer(transport.Config{
		Viewer:     svc,
		Auth:       store,
		Authorizer: store,
		Limiter:    limiter,
		Info:       info,
		MCP:        mcpHandler,
		Logger:     logger,
	})
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	return runHTTPMode(ctx, logger, &http.Server{Addr: addr, Handler: router})
}

// buildManager opens the mirror and assembles the configured tiers.
func buildManager(ctx context.Context, cfg config.Config, logger *slog.Logger) (*sources.Manager, func(), error) {
	if cfg.Mirror.Driver == ledgerdb.DriverSQLite {
		if err := ensureDir(cfg.Mirror.DSN); err != nil {
			return nil, nil, fmt.Errorf("prepare mirror path: %w", err)
		}
	}
	db, err := ledgerdb.Open(cfg.Mirror.Driver, cfg.Mirror.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("open ledger mirror: %w", err)
	}
	if err := db.RunMigrations(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("migrate ledger mirror: %w", err)
	}

	var store sources.CacheStore = sources.NewMemoryStore()
	if cfg.Cache.Backend == "redis" {
		store = sources.NewRedisStore(redis.NewClient(&redis.Options{Addr: cfg.Cache.RedisAddr}), cfg.Cache.RedisPrefix)
	}

	client := &http.Client{}
	tiers := []sources.Source{
		sources.NewProjectionCache(store, sources.CacheConfig{TTL: cfg.Cache.TTL, PollTTL: cfg.Cache.PollTTL}),
		sources.NewLedgerMirror(ledgerdb.NewRepository(db), cfg.Mirror.Timeout),
	}
	if cfg.Components.ReceiptGateURL != "" || cfg.Components.AsyncGateURL != "" {
		tiers = append(tiers, sources.NewComponentPoller(sources.PollerConfig{
			ReceiptGateURL: cfg.Components.ReceiptGateURL,
			AsyncGateURL:   cfg.Components.AsyncGateURL,
			APIKey:         cfg.Components.APIKey,
			Timeout:        cfg.Components.Timeout,
		}, client))
	}
	if cfg.Storage.URL != "" {
		tiers = append(tiers, sources.NewStorageMetadataClient(sources.StorageConfig{
			URL:     cfg.Storage.URL,
			APIKey:  cfg.Storage.APIKey,
			Timeout: cfg.Storage.Timeout,
		}, client))
	}
	if cfg.GlobalLedger.URL != "" {
		tiers = append(tiers, sources.NewGlobalLedgerGate(sources.GlobalLedgerConfig{
			URL:     cfg.GlobalLedger.URL,
			APIKey:  cfg.GlobalLedger.APIKey,
			Timeout: cfg.GlobalLedger.Timeout,
		}, client))
	}

	observability.RegisterMetrics()
	manager := sources.NewManager(
		sources.ManagerConfig{FreshMaxAge: cfg.Query.FreshMaxAge, MaxScan: cfg.Query.MaxScan},
		ratelimit.New(cfg.Components.RateLimits),
		tiers,
		sources.WithRecorder(observability.NewRecorder()),
		sources.WithLogger(logger),
	)
	logger.Info("sources ready", "tiers", len(tiers), "mirror", cfg.Mirror.Driver, "cache", cfg.Cache.Backend)
	return manager, func() { _ = db.Close() }, nil
}

// buildAuth loads the role policy and the key store.
func buildAuth(cfg config.Config, logger *slog.Logger) (*auth.Store, error) {
	var (
		roles *authz.Authorizer
		err   error
	)
	if cfg.Auth.ModelPath != "" {
		roles, err = authz.NewFromFiles(cfg.Auth.ModelPath, cfg.Auth.PolicyPath)
	} else {
		roles, err = authz.New(cfg.Auth.Roles)
	}
	if err != nil {
		return nil, fmt.Errorf("authz: %w", err)
	}
	store, err := auth.NewStore(cfg.Auth.Keys, roles)
	if err != nil {
		return nil, fmt.Errorf("auth: %w", err)
	}
	if cfg.Transport.Mode == "http" && (cfg.Auth.InsecureDev || !cfg.Auth.Enabled) {
		logger.Warn("authentication disabled; every request runs as the dev role", "role", cfg.Auth.DevRole)
		store.AllowInsecureDev(cfg.Auth.DevRole)
	}
	return store, nil
}

func runStdioMode(ctx context.Context, logger *slog.Logger, mcpServer *sdkmcp.Server) error {
	logger.Info("starting stdio transport", "auth", "local")

	// Run blocks until stdin closes or the context is canceled.
	if err := mcpServer.Run(ctx, &sdkmcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("stdio server: %w", err)
	}
	logger.Info("shutting down")
	return nil
}

func runHTTPMode(ctx context.Context, logger *slog.Logger, server *http.Server) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", "error", err)
		}
		return nil
	})
	return g.Wait()
}
