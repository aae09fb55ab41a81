package main

import (
	"SHLink/internal/config"
	"SHLink/internal/crypto"
	"SHLink/internal/fhir"
	"SHLink/internal/handlers"
	"SHLink/internal/middleware"
	"SHLink/internal/repo"
	"SHLink/internal/repo/mongostore"
	"SHLink/internal/service"
	"SHLink/internal/storage"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg := config.NewConfig()

	// создаём регистратор zap
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}

	// делаем регистратор SugaredLogger
	sugar := logger.Sugar()
	middleware.SetLogger(sugar) // передаём логгер в middleware
	//сброс буфера логгера
	defer func() {
		if err := logger.Sync(); err != nil {
			sugar.Debugw("Failed to sync logger", "error", err)
		}
	}()

	//context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repos, closeDB, err := openRepositories(ctx, cfg)
	if err != nil {
		sugar.Fatalw("failed to initialize database", "driver", cfg.DatabaseDriver, "error", err)
	}
	defer closeDB()

	store, err := openStore(ctx, cfg, repos, sugar)
	if err != nil {
		sugar.Fatalw("failed to initialize blob storage", "driver", cfg.BlobDriver, "error", err)
	}

	var fetcher fhir.Fetcher
	if cfg.HealthLakeEndpoint != "" {
		client, err := fhir.NewHealthLakeClient(fhir.HealthLakeConfig{
			Endpoint: cfg.HealthLakeEndpoint,
			Region:   cfg.HealthLakeRegion,
		}, sugar)
		if err != nil {
			sugar.Fatalw("failed to initialize HealthLake client", "error", err)
		}
		fetcher = fhir.NewCachedFetcher(client, cfg.FHIRCacheSize, cfg.FHIRCacheTTL)
	} else {
		sugar.Warnw("HealthLake endpoint not configured, FHIR categories are disabled")
	}

	settings := service.Settings{
		PublicURL:               cfg.PublicURL,
		ViewerPath:              cfg.ViewerPath,
		BlobPrefix:              cfg.BlobPrefix,
		DefaultPasscodeAttempts: cfg.DefaultPasscodeAttempts,
		FileTokenTTL:            cfg.FileTokenTTL(),
	}
	codec := crypto.NewCodec(cfg.Compression())
	gen := crypto.NewGenerator(nil)
	hasher := crypto.NewPasscodeHasher(cfg.BcryptCost)
	ledger := service.NewAccessLogService(repos.AccessLogs, settings, sugar)

	shlService := service.NewShlService(service.ShlDeps{
		Links:    repos.Links,
		Contents: repos.Contents,
		Store:    store,
		Codec:    codec,
		Gen:      gen,
		Hasher:   hasher,
		Fetcher:  fetcher,
		Ledger:   ledger,
	}, settings, sugar)
	manifestService := service.NewManifestService(service.ManifestDeps{
		Links:    repos.Links,
		Contents: repos.Contents,
		Tokens:   repos.Tokens,
		Store:    store,
		Hasher:   hasher,
		Gen:      gen,
		Ledger:   ledger,
	}, settings, sugar)

	if !repos.SelfPurging {
		janitor := service.NewTokenJanitor(repos.Tokens, cfg.TokenPurgeInterval, settings, sugar)
		go janitor.Run(ctx)
	}

	h := handlers.NewHandler(shlService, manifestService, sugar, cfg)

	addr := cfg.BaseURL
	srv := &http.Server{
		Addr:              addr,
		Handler:           h.Router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	sugar.Infow(
		"Starting server",
		"addr", addr,
	)

	sugar.Infow("Config",
		"BaseURL", cfg.BaseURL,
		"PublicURL", cfg.PublicURL,
		"EnableHTTPS", cfg.EnableHTTPS,
		"DatabaseDriver", cfg.DatabaseDriver,
		"BlobStore", store.Name(),
	)

	errCh := make(chan error, 1)
	go func() {
		if cfg.EnableHTTPS {
			errCh <- srv.ListenAndServeTLS(cfg.CertFile, cfg.KeyFile)
			return
		}
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			sugar.Fatalw("Server failed", "error", err)
		}
	case <-ctx.Done():
		sugar.Infow("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			sugar.Errorw("Graceful shutdown failed", "error", err)
		}
	}
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	if lvl <= zapcore.DebugLevel {
		return zap.NewDevelopment()
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	return zc.Build()
}

// openRepositories подключает хранилище метаданных по DATABASE_DRIVER.
func openRepositories(ctx context.Context, cfg *config.Config) (*repo.Repositories, func(), error) {
	switch cfg.DatabaseDriver {
	case config.DatabaseMongo:
		client, db, err := mongostore.Connect(ctx, cfg.DatabaseDSN, cfg.MongoDatabase)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() {
			disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Disconnect(disconnectCtx)
		}
		return mongostore.NewRepositories(db), closeFn, nil
	default:
		gormDB, err := repo.InitDB(cfg.DatabaseDriver, cfg.DatabaseDSN)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() {
			if sqlDB, err := gormDB.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}
		return repo.NewRepositories(gormDB), closeFn, nil
	}
}

// openStore выбирает хранилище зашифрованных конвертов по BLOB_DRIVER.
func openStore(ctx context.Context, cfg *config.Config, repos *repo.Repositories, logger *zap.SugaredLogger) (storage.Store, error) {
	switch cfg.BlobDriver {
	case config.BlobMinio:
		return storage.NewMinioStore(ctx, storage.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			UseSSL:    cfg.MinioUseSSL,
			Bucket:    cfg.BlobBucket,
		}, logger)
	case config.BlobS3:
		return storage.NewS3Store(storage.S3Config{
			Bucket:    cfg.BlobBucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		}, logger)
	case config.BlobDB, "":
		return storage.NewDBStore(repos.Blobs), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %q", cfg.BlobDriver)
	}
}
