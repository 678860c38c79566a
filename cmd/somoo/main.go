// Package main starts the marketplace API server.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	app "github.com/Yassin6up/somoo-sub000/internal/app"
	"github.com/Yassin6up/somoo-sub000/internal/app/httpapi"
	"github.com/Yassin6up/somoo-sub000/internal/app/storage/postgres"
	"github.com/Yassin6up/somoo-sub000/internal/config"
	"github.com/Yassin6up/somoo-sub000/internal/platform/migrations"
	"github.com/Yassin6up/somoo-sub000/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		FilePrefix: cfg.Logging.FilePrefix,
	}).Named("somoo")

	if err := run(cfg, log); err != nil {
		log.WithError(err).Fatal("server exited")
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	stores, closeDB, err := openStores(cfg, log)
	if err != nil {
		return err
	}
	defer closeDB()

	application, err := app.New(cfg, stores, log.Named("app"))
	if err != nil {
		return fmt.Errorf("build application: %w", err)
	}
	handler, err := httpapi.NewHandler(application, log.Named("http"))
	if err != nil {
		return fmt.Errorf("build handler: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Start(ctx); err != nil {
		return fmt.Errorf("start application: %w", err)
	}

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           handler,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", server.Addr).Info("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			_ = application.Stop(context.Background())
			return fmt.Errorf("serve: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}
	if err := application.Stop(shutdownCtx); err != nil {
		log.WithError(err).Warn("application stop")
	}
	return nil
}

// openStores selects the storage backend. The memory backend keeps nothing
// across restarts.
func openStores(cfg *config.Config, log *logger.Logger) (app.Stores, func(), error) {
	if !strings.EqualFold(cfg.Database.Driver, "postgres") {
		log.Warn("using in-memory storage; data is lost on restart")
		return app.Stores{}, func() {}, nil
	}

	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		return app.Stores{}, nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return app.Stores{}, nil, fmt.Errorf("ping database: %w", err)
	}
	if cfg.Database.MigrateOnStart {
		if err := migrations.Up(db); err != nil {
			_ = db.Close()
			return app.Stores{}, nil, err
		}
	}
	version, dirty, err := migrations.Version(db)
	if err != nil {
		_ = db.Close()
		return app.Stores{}, nil, fmt.Errorf("read schema version: %w", err)
	}
	if dirty {
		_ = db.Close()
		return app.Stores{}, nil, fmt.Errorf("schema version %d is dirty; fix the failed migration first", version)
	}
	log.WithField("schema_version", version).Info("database ready")
	return app.FromStore(postgres.New(db)), func() { _ = db.Close() }, nil
}
