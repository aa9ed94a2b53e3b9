// Package server initializes and runs the application: it opens the two
// backends, applies migrations, wires the coordination services and starts
// the HTTP server and the background consistency auditor, shutting both
// down on SIGINT/SIGTERM.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/sfstore/sfs/internal/logging"
	"github.com/sfstore/sfs/internal/server/config"
	"github.com/sfstore/sfs/internal/server/httpapi"
	"github.com/sfstore/sfs/internal/server/objstore"
	"github.com/sfstore/sfs/internal/server/repositories/repomanager"
	"github.com/sfstore/sfs/internal/server/services"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	server  *httpapi.Server
	auditor *services.AuditService
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	repos := repomanager.NewPostgresRepositoryManager()
	if err := repos.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	store, err := objstore.NewS3Store(ctx, objstore.Options{
		Endpoint:  cfg.S3BaseEndpoint,
		Region:    cfg.S3Region,
		AccessKey: cfg.S3RootUser,
		SecretKey: cfg.S3RootPassword,
		Bucket:    cfg.S3Bucket,
	})
	if err != nil {
		return nil, fmt.Errorf("object store init error: %w", err)
	}

	auditor := services.NewAuditService(db, repos, store, cfg, logger)
	fileService := services.NewFileService(db, repos, store, cfg, auditor, logger)
	basketService := services.NewBasketService(db, repos, fileService, logger)

	server := httpapi.NewServer(cfg.EndpointAddrHTTP, cfg.SecretKey, db,
		basketService, fileService, auditor, logger)

	return &App{config: cfg, logger: logger, db: db, server: server, auditor: auditor}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting app", "addr", app.config.EndpointAddrHTTP)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.server.Run(ctx); err != nil {
			app.logger.Error(ctx, err.Error())
			cancelFunc()
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.auditor.Run(ctx)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err)
	}
}
