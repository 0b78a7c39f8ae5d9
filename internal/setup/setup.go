// Package setup wires configuration, logging, storage and state together.
package setup

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/robalyx/wordwatch/internal/export"
	"github.com/robalyx/wordwatch/internal/permissions"
	"github.com/robalyx/wordwatch/internal/persistence"
	"github.com/robalyx/wordwatch/internal/redis"
	"github.com/robalyx/wordwatch/internal/setup/config"
	"github.com/robalyx/wordwatch/internal/setup/telemetry"
	"github.com/robalyx/wordwatch/internal/state"
	"github.com/robalyx/wordwatch/internal/storage"
	"github.com/robalyx/wordwatch/internal/storage/bolt"
	"github.com/robalyx/wordwatch/internal/storage/file"
	"github.com/robalyx/wordwatch/internal/storage/postgres"
	redisstore "github.com/robalyx/wordwatch/internal/storage/redis"
	"github.com/robalyx/wordwatch/pkg/utils"
	"go.uber.org/zap"
)

// ServiceType represents the type of service being initialized.
type ServiceType int

const (
	// ServiceBot runs the Discord bot and owns the stores.
	ServiceBot ServiceType = iota
	// ServiceLogs reads the stored documents offline.
	ServiceLogs
)

// String returns the log file name used by the service.
func (s ServiceType) String() string {
	switch s {
	case ServiceBot:
		return "bot"
	case ServiceLogs:
		return "logs"
	default:
		return "unknown"
	}
}

// App bundles all core dependencies and services needed by the application.
type App struct {
	Config       *config.Config       // Application configuration
	ConfigDir    string               // Directory the config was loaded from
	Logger       *zap.Logger          // Main application logger
	LogManager   *telemetry.Manager   // Log management system
	Storage      storage.Backend      // Document backend
	RedisManager *redis.Manager       // Redis connections, nil unless the redis backend is used
	Lease        *redis.Lease         // Instance lease, nil unless the bot uses redis
	State        *state.Manager       // Owner of the stores, nil for offline services
	Persistence  *persistence.Manager // Moves stores to and from the backend
	Permissions  *permissions.File    // Command role permissions
	Exporter     *export.Exporter     // Log exports
}

// InitializeApp bootstraps all application dependencies in the correct order.
// The bot service also acquires the instance lease and loads the stores.
func InitializeApp(ctx context.Context, serviceType ServiceType, logDir string) (*App, error) {
	cfg, configDir, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	return InitializeWithConfig(ctx, serviceType, logDir, cfg, configDir)
}

// InitializeWithConfig is InitializeApp with an already loaded config.
func InitializeWithConfig(
	ctx context.Context, serviceType ServiceType, logDir string, cfg *config.Config, configDir string,
) (*App, error) {
	// Logging system is initialized first to capture setup issues
	logManager, err := telemetry.NewManager(logDir, &cfg.Common.Debug)
	if err != nil {
		return nil, err
	}

	logger, err := logManager.GetLogger(serviceType.String())
	if err != nil {
		return nil, err
	}
	logger = logger.With(zap.String("instance_id", logManager.InstanceID()))

	app := &App{
		Config:      cfg,
		ConfigDir:   configDir,
		Logger:      logger,
		LogManager:  logManager,
		Permissions: permissions.New(cfg.Bot.Permissions.File),
		Exporter:    export.New(cfg.Common.Export.Directory),
	}

	if err := app.openStorage(ctx); err != nil {
		app.Cleanup(ctx)
		return nil, err
	}

	if serviceType != ServiceBot {
		app.Persistence = app.newPersistence(nil)
		return app, nil
	}

	if err := app.acquireLease(ctx); err != nil {
		app.Cleanup(ctx)
		return nil, err
	}

	// Stores are loaded before the state owner starts so it begins with them
	data, err := app.newPersistence(nil).Load(ctx)
	if err != nil {
		app.Cleanup(ctx)
		return nil, fmt.Errorf("failed to load stored documents: %w", err)
	}
	app.State = state.NewManager(data, logger)
	app.Persistence = app.newPersistence(app.State)

	logger.Info("Application initialized",
		zap.String("backend", cfg.Common.Storage.Backend),
		zap.String("config_dir", configDir),
		zap.Int("log_entries", data.Log.Len()))

	return app, nil
}

func (s *App) newPersistence(st *state.Manager) *persistence.Manager {
	docs := s.Config.Common.Storage.Documents
	names := persistence.Names{Watches: docs.Watches, Cooldowns: docs.Cooldowns, Log: docs.Log}
	interval := time.Duration(s.Config.Bot.Save.IntervalSeconds) * time.Second
	return persistence.NewManager(s.Storage, st, names, interval, s.Logger)
}

// openStorage opens the configured document backend. Network backends are
// retried since they may still be starting.
func (s *App) openStorage(ctx context.Context) error {
	cfg := &s.Config.Common.Storage

	var err error
	switch cfg.Backend {
	case config.BackendFile:
		s.Storage, err = file.New(cfg.File.Directory)
	case config.BackendBolt:
		s.Storage, err = bolt.New(cfg.Bolt.Path, cfg.Bolt.Bucket)
	case config.BackendRedis:
		s.RedisManager = redis.NewManager(&cfg.Redis, s.Logger)
		s.Storage, err = utils.WithRetry(ctx, func() (storage.Backend, error) {
			client, err := s.RedisManager.GetClient(redis.DocumentsDBIndex)
			if err != nil {
				return nil, err
			}
			return redisstore.New(client, cfg.Redis.KeyPrefix), nil
		}, utils.GetStartupRetryOptions())
	case config.BackendPostgres:
		s.Storage, err = utils.WithRetry(ctx, func() (storage.Backend, error) {
			return postgres.New(ctx, cfg.PostgreSQL.DSN(), cfg.PostgreSQL.Table)
		}, utils.GetStartupRetryOptions())
	default:
		err = fmt.Errorf("%w: %q", config.ErrUnknownBackend, cfg.Backend)
	}
	if err != nil {
		s.Storage = nil
		return fmt.Errorf("failed to open %s storage: %w", cfg.Backend, err)
	}

	s.Logger.Info("Opened storage backend", zap.String("backend", cfg.Backend))
	return nil
}

// acquireLease takes the instance lease when documents live in a shared Redis.
func (s *App) acquireLease(ctx context.Context) error {
	if s.RedisManager == nil {
		return nil
	}

	client, err := s.RedisManager.GetClient(redis.LeaseDBIndex)
	if err != nil {
		return err
	}

	redisCfg := s.Config.Common.Storage.Redis
	ttl := time.Duration(redisCfg.LeaseTTL) * time.Second
	lease := redis.NewLease(client, redisCfg.KeyPrefix+"lease", s.LogManager.InstanceID(), ttl, s.Logger)
	if err := lease.Acquire(ctx); err != nil {
		return err
	}
	s.Lease = lease
	return nil
}

// Cleanup ensures graceful shutdown of all components in reverse initialization order.
// Logs but does not fail on cleanup errors to ensure all components get cleanup attempts.
func (s *App) Cleanup(ctx context.Context) {
	if s.Lease != nil {
		if err := s.Lease.Release(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.Logger.Error("Failed to release lease", zap.Error(err))
		}
	}

	if s.Storage != nil {
		if err := s.Storage.Close(); err != nil {
			s.Logger.Error("Failed to close storage", zap.Error(err))
		}
	}

	// Close Redis connections last as the lease and storage use them
	if s.RedisManager != nil {
		s.RedisManager.Close()
	}

	// Sync buffered logs before shutdown
	if err := s.Logger.Sync(); err != nil {
		log.Printf("Failed to sync logger: %v", err)
	}
	if err := s.LogManager.Close(); err != nil {
		log.Printf("Failed to close log files: %v", err)
	}
}
