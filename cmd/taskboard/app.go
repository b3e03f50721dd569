package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mkovalev/taskboard/internal/db"
	"github.com/mkovalev/taskboard/internal/handlers"
	"github.com/mkovalev/taskboard/internal/logger"
	"github.com/mkovalev/taskboard/internal/ratelimit"
	mongorepo "github.com/mkovalev/taskboard/internal/repository/mongo"
	"github.com/mkovalev/taskboard/internal/repository/postgres"
	"github.com/mkovalev/taskboard/internal/service/auth"
	"github.com/mkovalev/taskboard/internal/service/auth/tokenmanager"
	"github.com/mkovalev/taskboard/internal/service/task"
	"github.com/mkovalev/taskboard/internal/service/user"
)

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler

	closers []func(context.Context) error
}

func NewServerApp(ctx context.Context, c *Config) (*ServerApp, error) {
	// Initialize logger
	log, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	// Connect to the user store and run migrations
	pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}

	// Connect to the task store
	mongoStorage, err := mongorepo.Connect(ctx, c.MongoURI)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("error while connecting to mongo. Err: %w", err)
	}

	app := &ServerApp{ListenAddr: c.ListenAddr}
	app.closers = append(app.closers,
		func(context.Context) error { pool.Close(); return nil },
		mongoStorage.Close,
	)

	// Initialize repositories
	userRepo := &postgres.UserRepo{DB: pool}
	taskRepo := mongoStorage.Tasks()

	// Initialize services
	tokenManager, err := tokenmanager.New(tokenmanager.Config{
		AccessSecret:  c.AccessSecret,
		RefreshSecret: c.RefreshSecret,
		AccessTTL:     c.AccessTokenTTL,
		RefreshTTL:    c.RefreshTokenTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("error while creating token manager. Err: %w", err)
	}
	authService, err := auth.NewService(auth.Config{}, tokenManager, userRepo)
	if err != nil {
		return nil, fmt.Errorf("error while creating auth service. Err: %w", err)
	}
	userService := user.NewService(userRepo)
	taskService := task.NewService(taskRepo)

	// Rate limiter is optional: without redis the auth endpoints are
	// simply not throttled
	var limiter *ratelimit.Limiter
	if c.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: c.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("error while connecting to redis. Err: %w", err)
		}
		app.closers = append(app.closers, func(context.Context) error { return rdb.Close() })

		limiter, err = ratelimit.New(rdb, ratelimit.Config{
			Limit:  c.AuthRateLimit,
			Window: c.AuthRateWindow,
		})
		if err != nil {
			return nil, fmt.Errorf("error while creating rate limiter. Err: %w", err)
		}
	}

	routerCfg := handlers.RouterConfig{
		Auth:           handlers.NewAuth(authService, c.Environment == logger.EnvProduction),
		Users:          handlers.NewUser(userService),
		Tasks:          handlers.NewTask(taskService),
		Authenticator:  authService,
		AllowedOrigins: c.CORSOrigins,
		Logger:         log,
	}
	if limiter != nil {
		routerCfg.RateLimiter = limiter
	}

	app.Handler = handlers.NewRouter(routerCfg)

	return app, nil
}

// Run starts http server and closes gracefully on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    s.ListenAddr,
		Handler: s.Handler,
	}

	idleConnsClosed := make(chan struct{})
	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); err == context.DeadlineExceeded {
			slog.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		slog.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully connections
	slog.Info("Starting server", "addr", s.ListenAddr)
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed

	s.close()

	return err
}

func (s *ServerApp) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](ctx); err != nil {
			slog.Warn("error while closing resource", "error", err.Error())
		}
	}
}
