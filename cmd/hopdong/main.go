package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"hopdong/internal/amqp"
	"hopdong/internal/auth"
	"hopdong/internal/backend"
	"hopdong/internal/cache"
	"hopdong/internal/cli"
	apphttp "hopdong/internal/http"
	"hopdong/internal/log"
	"hopdong/internal/services"
	"hopdong/internal/workbook"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, "server")

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	remote, err := backend.NewFactory(logger.Logger).CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize remote store", log.FieldError, err, "backend", cfg.RemoteBackend)
		os.Exit(1)
	}
	if remote.Cleanup != nil {
		defer func() {
			if err := remote.Cleanup(); err != nil {
				logger.Warn("Remote store cleanup failed", log.FieldError, err)
			}
		}()
	}

	var pusher services.Pusher = services.DirectPusher{Store: remote.Store}
	var unsynced services.UnsyncedTables
	var amqpClient *amqp.Client
	if cfg.Queued() {
		unsynced = repo
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, snapshots wait for the worker poller", log.FieldError, err)
			pusher = services.QueuedPusher{Outbox: repo}
		} else {
			defer amqpClient.Close()
			pusher = services.QueuedPusher{Outbox: repo, Publisher: amqpClient}
		}
		logger.Info("Queued push mode enabled", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	}

	contracts := services.NewContractService(services.ContractServiceConfig{
		Remote:    remote.Store,
		Pusher:    pusher,
		Unsynced:  unsynced,
		CacheFile: cfg.LocalCacheFile,
		CacheTTL:  cfg.TableCacheTTL,
	})

	caches := cache.NewManager()
	caches.Register(contracts.TableCache())

	checks := map[string]apphttp.Checker{"sqlite": repo}

	var store auth.Store
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer client.Close()
		redisStore := auth.NewRedisStore(client)
		store = redisStore
		checks["redis"] = redisStore
		logger.Info("Using Redis session store", "addr", cfg.RedisAddr)
	} else {
		memStore := auth.NewMemoryStore()
		caches.Register(memStore)
		store = memStore
		logger.Info("Using in-memory session store")
	}
	caches.StartCleanup(time.Minute)
	defer caches.Stop()

	authenticator, err := auth.NewAuthenticator(auth.Account{
		Username:     cfg.AuthUsername,
		DisplayName:  cfg.AuthDisplayName,
		PasswordHash: cfg.AuthPasswordHash,
	}, repo)
	if err != nil {
		logger.Error("Failed to initialize authenticator", log.FieldError, err)
		os.Exit(1)
	}
	sessions := auth.NewSessionManager(store, cfg.SessionCookie, cfg.SessionTTL, cfg.IsProduction())

	banner, err := workbook.LoadBanner(cfg.CompanyName, cfg.CompanyLogoPath)
	if err != nil {
		logger.Warn("Company logo unavailable, exports carry the name only", log.FieldError, err, log.FieldPath, cfg.CompanyLogoPath)
		banner, _ = workbook.LoadBanner(cfg.CompanyName, "")
	}

	srv, err := apphttp.NewServer(apphttp.Config{
		Addr:          ":" + cfg.Port,
		Logger:        logger.WithComponent("http"),
		Contracts:     contracts,
		Authenticator: authenticator,
		Sessions:      sessions,
		History:       repo,
		Banner:        banner,
		Checks:        checks,
		Production:    cfg.IsProduction(),
	})
	if err != nil {
		logger.Error("Failed to build HTTP server", log.FieldError, err)
		os.Exit(1)
	}

	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 60 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
	})

	logger.Info("Starting hopdong server", "port", cfg.Port, "backend", cfg.RemoteBackend, "push_mode", cfg.PushMode)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
