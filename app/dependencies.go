package app

import (
	"context"
	"fmt"
	"net/http"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/GlacierEQ/llmbridge/config"
	"github.com/GlacierEQ/llmbridge/internal/crypto"
	"github.com/GlacierEQ/llmbridge/services/credentials"
	"github.com/GlacierEQ/llmbridge/services/executor"
	"github.com/GlacierEQ/llmbridge/services/llmclient"
	"github.com/GlacierEQ/llmbridge/services/providers"
	"github.com/GlacierEQ/llmbridge/services/queue"
	"github.com/GlacierEQ/llmbridge/services/ratelimit"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	Config *config.Config
	Logger *zap.Logger

	Registry    *providers.Registry
	Credentials *credentials.Service
	Limiter     *ratelimit.Limiter
	Executor    *executor.Executor
	Queue       *queue.Engine
	Client      *llmclient.Client

	sqlStore *credentials.SQLStore
}

// NewDependencies creates and wires up all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config:   cfg,
		Logger:   logger,
		Registry: providers.NewRegistry(),
	}

	store, err := deps.initStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize secret store: %w", err)
	}

	cipher, err := initCipher(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cipher: %w", err)
	}

	deps.Credentials = credentials.NewService(store, cipher, deps.Registry, logger)
	if err := deps.Credentials.Load(ctx); err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	deps.Limiter = ratelimit.NewLimiter(deps.Registry, logger)

	deps.Executor = executor.NewExecutor(deps.Registry, deps.Credentials, deps.Limiter,
		&http.Client{Timeout: cfg.Client.HTTPTimeout}, logger)

	policy := queue.RetryPolicy{
		MaxRetries:    cfg.Client.MaxRetries,
		InitialDelay:  cfg.Client.InitialDelay,
		BackoffFactor: cfg.Client.BackoffFactor,
	}
	deps.Queue = queue.NewEngine(deps.Limiter, deps.Executor.Execute, policy, logger)
	if cfg.Client.PollInterval > 0 {
		deps.Queue.SetPollInterval(cfg.Client.PollInterval)
	}

	deps.Client = llmclient.NewClient(deps.Registry, deps.Credentials, deps.Queue, logger)

	logger.Info("all dependencies initialized",
		zap.String("store_backend", cfg.Store.Backend),
		zap.String("active_provider", deps.Credentials.ActiveProvider()),
		zap.Bool("encryption_enabled", cfg.Security.MasterKey != ""))

	return deps, nil
}

// initStore builds the secret store selected by configuration.
func (d *Dependencies) initStore(ctx context.Context, cfg *config.Config) (credentials.SecretStore, error) {
	switch cfg.Store.Backend {
	case "file":
		store, err := credentials.NewFileStore(cfg.Store.Path)
		if err != nil {
			return nil, err
		}
		d.Logger.Info("file store initialized", zap.String("path", cfg.Store.Path))
		return store, nil

	case "sql":
		store, err := credentials.OpenSQLStore(ctx, cfg.Store.Driver, cfg.Store.DSN)
		if err != nil {
			return nil, err
		}
		d.sqlStore = store
		d.Logger.Info("sql store initialized", zap.String("driver", cfg.Store.Driver))
		return store, nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// initCipher builds the credential cipher, or returns nil when no master key
// is configured.
func initCipher(cfg *config.Config, logger *zap.Logger) (credentials.Cipher, error) {
	if cfg.Security.MasterKey == "" {
		logger.Warn("no master key configured, credentials stored in plaintext")
		return nil, nil
	}
	return crypto.NewCipher(cfg.Security.MasterKey)
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.sqlStore != nil {
		if err := d.sqlStore.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close sql store: %w", err))
		}
	}

	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}
