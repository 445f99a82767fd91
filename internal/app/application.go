// Package app wires the service together and owns its lifecycle.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"

	"pairboard/internal/api"
	"pairboard/internal/audit"
	"pairboard/internal/authstore"
	"pairboard/internal/config"
	"pairboard/internal/database"
	"pairboard/internal/session"
	"pairboard/internal/websocket"
)

// Application coordinates all components. Initialization order follows the
// dependency chain: repository → authstore → audit → coordinator →
// gateway → API → HTTP.
type Application struct {
	cfg         *config.Config
	log         zerolog.Logger
	mongoClient *mongo.Client
	redisClient *redis.Client
	auditLog    audit.Logger
	registry    *websocket.Registry
	httpServer  *http.Server
}

// New builds a fully wired application.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Application, error) {
	mongoClient, err := database.Connect(ctx, cfg.Mongo.URI)
	if err != nil {
		return nil, fmt.Errorf("failed to connect session repository: %w", err)
	}
	store := database.NewMongoSessionStore(mongoClient, cfg.Mongo.Database)

	app := &Application{cfg: cfg, log: log, mongoClient: mongoClient}

	var auth authstore.Store
	switch cfg.AuthStore.Backend {
	case "redis":
		app.redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := app.redisClient.Ping(ctx).Err(); err != nil {
			app.closePartial(ctx)
			return nil, fmt.Errorf("failed to ping redis: %w", err)
		}
		auth = authstore.NewRedisStore(app.redisClient)
	default:
		auth = authstore.NewMemoryStore()
	}

	var auditLog audit.Logger
	if cfg.Audit.Path != "" {
		auditLog, err = audit.NewSQLiteLog(cfg.Audit.Path)
		if err != nil {
			app.closePartial(ctx)
			return nil, fmt.Errorf("failed to open audit log: %w", err)
		}
		app.auditLog = auditLog
	}

	coordinator := session.NewCoordinator(store, auth, auditLog, log)

	app.registry = websocket.NewRegistry()
	gateway := websocket.NewHandler(auth, store, app.registry, websocket.Options{
		PingInterval: cfg.WebSocket.PingInterval,
		ReadTimeout:  cfg.WebSocket.ReadTimeout,
		WriteTimeout: cfg.WebSocket.WriteTimeout,
		SendBuffer:   cfg.WebSocket.SendBuffer,
	}, log)

	verifier := api.NewTokenVerifier(cfg.Auth.JWTSecret)
	server := api.NewServer(coordinator, store, app.registry, verifier, gateway.HandleWebSocket, cfg.IsProduction(), log)

	app.httpServer = &http.Server{
		Addr:         cfg.Addr(),
		Handler:      server,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}
	return app, nil
}

// Start begins serving. It returns once the listener fails or ctx is
// cancelled during startup.
func (a *Application) Start(ctx context.Context) error {
	a.log.Info().Str("addr", a.httpServer.Addr).Msg("starting pairboard")

	errCh := make(chan error, 1)
	go func() {
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-time.After(100 * time.Millisecond):
		a.log.Info().Msg("pairboard started")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop shuts the application down in reverse dependency order: listener,
// live connections, then stores.
func (a *Application) Stop(ctx context.Context) error {
	a.log.Info().Msg("shutting down")

	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.log.Error().Err(err).Msg("http shutdown error")
	}
	a.registry.CloseAll()
	a.closePartial(ctx)

	a.log.Info().Msg("shutdown complete")
	return nil
}

func (a *Application) closePartial(ctx context.Context) {
	if a.auditLog != nil {
		if err := a.auditLog.Close(); err != nil {
			a.log.Error().Err(err).Msg("audit log close error")
		}
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.log.Error().Err(err).Msg("redis close error")
		}
	}
	if err := a.mongoClient.Disconnect(ctx); err != nil {
		a.log.Error().Err(err).Msg("mongo disconnect error")
	}
}
