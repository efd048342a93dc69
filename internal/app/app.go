// Package app initializes and runs the main application service.
// It configures logging, storage, authentication, the event broker and
// routing, and handles graceful shutdown.
package app

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	graphql "github.com/graph-gophers/graphql-go"

	"linkfeed/internal/auth"
	"linkfeed/internal/config"
	"linkfeed/internal/db/jsondb"
	"linkfeed/internal/db/memorystorage"
	"linkfeed/internal/db/postgresdb"
	"linkfeed/internal/db/storage"
	"linkfeed/internal/graph"
	"linkfeed/internal/logger"
	"linkfeed/internal/models"
	"linkfeed/internal/pubsub"
	"linkfeed/internal/router"
)

// App encapsulates the configuration, HTTP handler, storage backend and
// event broker needed to run the link sharing API.
type App struct {
	cfg         *config.Config
	db          storage.Storage
	events      *pubsub.Broker
	httpHandler http.Handler
}

// New initializes a new instance of App by:
// - loading configuration
// - initializing logger
// - selecting and setting up storage
// - building the credential verifier, event broker and GraphQL schema
// - setting up the router and middleware
func New() (*App, error) {
	var err error
	app := &App{}

	app.cfg, err = config.New()
	if err != nil {
		return nil, err
	}

	err = logger.Init(app.cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	app.db, err = getStorageByType(app.cfg)
	if err != nil {
		return nil, err
	}

	signingSecret, err := base64.StdEncoding.DecodeString(app.cfg.AuthSecret)
	if err != nil {
		return nil, err
	}

	app.events = pubsub.New(app.cfg.SubscriptionBuffer)

	authService := auth.New(app.db, signingSecret, app.cfg.TokenTTL)

	schema, err := graphql.ParseSchema(
		graph.Schema,
		graph.NewResolver(app.db, authService, app.events),
	)
	if err != nil {
		return nil, fmt.Errorf("schema setup error: %w", err)
	}

	if app.cfg.TelemetryToken != "" {
		logger.Log.Infoln("telemetry token configured; schema usage reporting is not enabled in this build")
	}

	app.httpHandler = router.New(schema, app.db, authService.WithUser)

	return app, nil
}

// Run starts the HTTP server with graceful shutdown support.
// It listens for system signals and cleans up resources upon termination.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Log.Infoln("server running", "RunAddr", a.cfg.RunAddr)

	server := &http.Server{
		Addr:    a.cfg.RunAddr,
		Handler: a.httpHandler,
	}

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Log.Infoln("Received shutdown signal. Saving database and exiting...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}

		return a.db.Close()

	case err := <-serverErrCh:
		return fmt.Errorf("server error: %w", err)
	}
}

// Close finalizes resources used by App such as logging.
func (a *App) Close() {
	if err := logger.Sync(); err != nil {
		fmt.Println("Logger sync error:", err)
	}
}

func getAvailableStorageType(cfg *config.Config) int {
	if cfg.DatabaseDSN != "" {
		return models.StorageTypePostgresql
	}

	if cfg.DBFileName != "" {
		return models.StorageTypeFile
	}

	return models.StorageTypeMemory
}

func getStorageByType(cfg *config.Config) (storage.Storage, error) {
	switch getAvailableStorageType(cfg) {
	case models.StorageTypeUnknown:
		return nil, errors.New("unknown storage type")

	case models.StorageTypePostgresql:
		return postgresdb.New(
			context.Background(),
			cfg.DatabaseDSN,
			cfg.DBConnectionTimeout,
			cfg.MigrationsDir,
		)

	case models.StorageTypeFile:
		return jsondb.New(cfg.DBFileName)
	}

	return memorystorage.New()
}
