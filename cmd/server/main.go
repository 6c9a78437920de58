package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"stash/internal/auth"
	"stash/internal/config"
	"stash/internal/db"
	"stash/internal/field"
	"stash/internal/httpapi"
	"stash/internal/logging"
	"stash/internal/service"
	"stash/internal/storage"
	"stash/internal/store"
)

func main() {
	if err := run(); err != nil {
		logging.Error("server exited", zap.Error(err))
		_ = logging.Sync()
		os.Exit(1)
	}
	_ = logging.Sync()
}

func run() error {
	if err := config.LoadDotEnv(".env.local", ".env"); err != nil {
		return fmt.Errorf("load .env: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat}); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	if err := db.Migrate(ctx, pool); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	backend, err := openBackend(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	files := field.NewFileType(backend)
	images := field.NewImageType(backend, field.RemoveRejected(cfg.Storage.RemoveRejected))

	svc := service.New(store.New(pool, files, images), files, images)

	authn, err := auth.NewAuthenticator(cfg.AdminTokenHash)
	if err != nil {
		return fmt.Errorf("init auth: %w", err)
	}
	if cfg.AdminTokenHash == "" {
		logging.Warn("ADMIN_TOKEN_HASH is empty, write endpoints will reject every request")
	}

	api := httpapi.New(cfg, svc, authn)
	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      api.NewEcho(),
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logging.Info("listening",
			zap.String("addr", cfg.ListenAddr),
			zap.String("storage", cfg.Storage.Backend))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return api.Limiter().Run(gctx, time.Minute)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func openBackend(ctx context.Context, cfg config.Storage) (storage.Backend, error) {
	switch cfg.Backend {
	case config.BackendS3:
		b, err := storage.NewS3(ctx, storage.S3Config{
			Bucket:       cfg.S3Bucket,
			Prefix:       cfg.S3Prefix,
			Region:       cfg.S3Region,
			Endpoint:     cfg.S3Endpoint,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
			PublicURL:    cfg.S3PublicURL,
			UsePathStyle: cfg.S3UsePathStyle,
		})
		if err != nil {
			return nil, err
		}
		return storage.Instrument(b, config.BackendS3), nil
	default:
		b, err := storage.NewFileSystem(cfg.Root)
		if err != nil {
			return nil, err
		}
		return storage.Instrument(b, config.BackendFileSystem), nil
	}
}
