// Package main runs the storefront API server.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"

	app "github.com/shopstack/storefront/internal/app"
	"github.com/shopstack/storefront/internal/app/httpapi"
	pgstore "github.com/shopstack/storefront/internal/app/storage/postgres"
	"github.com/shopstack/storefront/internal/config"
	"github.com/shopstack/storefront/internal/middleware"
	"github.com/shopstack/storefront/pkg/logger"
)

func main() {
	migrationsDir := flag.String("migrations", "migrations", "path to SQL migrations")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New("api", cfg.LogLevel, cfg.LogFormat)

	var stores app.Stores
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.WithError(err).Fatal("open database")
		}
		defer db.Close()

		if err := db.Ping(); err != nil {
			log.WithError(err).Fatal("ping database")
		}
		if err := runMigrations(db, *migrationsDir); err != nil {
			log.WithError(err).Fatal("run migrations")
		}

		store := pgstore.New(db)
		stores = app.Stores{Users: store, Products: store, Orders: store}
		log.Info("using postgres storage")
	} else {
		log.Warn("DATABASE_URL not set, using in-memory storage")
	}

	application := app.New(app.Options{
		Stores:    stores,
		JWTSecret: cfg.JWTSecret,
		TokenTTL:  cfg.TokenTTL,
		Pricing:   cfg.PricingPolicy,
		Logger:    log,
	})

	handler := httpapi.NewHandler(application, httpapi.Config{
		UploadDir:      cfg.UploadDir,
		PayPalClientID: cfg.PayPalClientID,
	}, log)

	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, log)
	limiter.StartCleanup(10 * time.Minute)

	chain := middleware.NewRequestLogger(log).Handler(
		middleware.NewCORSMiddleware(cfg.CORSOrigins).Handler(
			limiter.Handler(
				middleware.Metrics(handler),
			),
		),
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      chain,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithField("addr", server.Addr).Info("storefront API listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
}

func runMigrations(db *sql.DB, dir string) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance("file://"+dir, "postgres", driver)
	if err != nil {
		return fmt.Errorf("migration setup: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}
