package main

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/willemschots/rentals/internal"
	"github.com/willemschots/rentals/internal/auth"
	authdb "github.com/willemschots/rentals/internal/auth/db"
	"github.com/willemschots/rentals/internal/db"
	"github.com/willemschots/rentals/internal/krypto"
	"github.com/willemschots/rentals/internal/logger"
	"github.com/willemschots/rentals/internal/migrate"
	"github.com/willemschots/rentals/internal/offer"
	offerdb "github.com/willemschots/rentals/internal/offer/db"
	"github.com/willemschots/rentals/internal/validate"
	"github.com/willemschots/rentals/internal/web"
	"github.com/willemschots/rentals/migrations"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Stderr))
}

func run(ctx context.Context, w io.Writer) int {
	// Until the config is known we log with the defaults.
	log := logger.New(w, logger.FormatText, slog.LevelInfo)

	envFile, err := loadEnvFile()
	if err != nil {
		log.Error("failed to load env file", "error", err)
		return 1
	}

	cfg, err := configFromEnv()
	if err != nil {
		log.Error("failed to get config from environment", "error", err)
		return 1
	}

	log = logger.New(w, cfg.log.format, cfg.log.level)
	if envFile != "" {
		log.Info("loaded env file", "file", envFile)
	}

	sqlDB, err := db.OpenSQLite(cfg.db.driver, cfg.db.file)
	if err != nil {
		log.Error("failed to open database", "error", err, "driver", cfg.db.driver, "file", cfg.db.file)
		return 1
	}

	defer func() {
		err := sqlDB.Close()
		if err != nil {
			log.Error("failed to close database", "error", err)
		}
	}()

	if cfg.db.migrate {
		err = migrateDB(ctx, log, sqlDB)
		if err != nil {
			log.Error("failed to migrate database", "error", err)
			return 1
		}
	}

	handler, err := newHandler(log, sqlDB, cfg)
	if err != nil {
		log.Error("failed to create http handler", "error", err)
		return 1
	}

	srv := &http.Server{
		Addr:         cfg.http.addr,
		ReadTimeout:  cfg.http.readTimeout,
		WriteTimeout: cfg.http.writeTimeout,
		IdleTimeout:  cfg.http.idleTimeout,
		Handler:      handler,
	}

	// We need to run two tasks concurrently:
	// - Listen and serving of the HTTP server.
	// - Waiting for a signal to stop the server.

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting http server",
			"addr", cfg.http.addr,
			"buildRevision", internal.BuildRevision,
			"buildRevisionTime", internal.BuildRevisionTime,
			"buildLocalModified", internal.BuildLocalModified,
		)
		// ListenAndServe always returns a non-nil error,
		// g will cancel gCtx when an error is returned, so
		// this will also stop the other goroutine.
		return srv.ListenAndServe()
	})

	g.Go(func() error {
		<-gCtx.Done()
		log.Info("stopping http server")

		shutCtx, cancel := context.WithTimeout(context.Background(), cfg.http.shutdownTimeout)
		defer cancel()

		return srv.Shutdown(shutCtx)
	})

	err = g.Wait()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("http server stopped with error", "error", err)
		return 1
	}

	log.Info("http server stopped successfully")

	return 0
}

func migrateDB(ctx context.Context, log *slog.Logger, sqlDB *sql.DB) error {
	log.Info("attempting to migrate database")

	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	ran, err := migrate.RunFS(ctx, sqlDB, migrations.FS, migrate.Metadata{
		AppVersion: internal.BuildRevision,
		Timestamp:  time.Now(),
	})
	if err != nil {
		return err
	}

	for _, m := range ran {
		log.Info("migration ran", "sequence", m.Sequence, "filename", m.Filename)
	}

	log.Info("database migrated", "migrations", len(ran))

	return nil
}

// newHandler wires the stores and services into the HTTP server.
func newHandler(log *slog.Logger, sqlDB *sql.DB, cfg config) (http.Handler, error) {
	encryptor, err := krypto.NewEncryptor(cfg.db.encryptionKeys)
	if err != nil {
		return nil, err
	}

	authSvc, err := auth.NewService(authdb.New(sqlDB, encryptor, cfg.db.blindIndexSalt))
	if err != nil {
		return nil, err
	}

	tokenSvc, err := auth.NewTokenService(cfg.auth.tokenKey, cfg.auth.tokenExpiry)
	if err != nil {
		return nil, err
	}

	validator := validate.New()

	deps := &web.ServerDeps{
		Logger:       log,
		AuthService:  authSvc,
		TokenService: tokenSvc,
		OfferService: offer.NewService(offerdb.New(sqlDB), validator),
		Validator:    validator,
	}

	return web.NewServer(deps, cfg.http.server), nil
}
