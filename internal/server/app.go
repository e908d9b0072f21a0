// Package server wires the taskkeeper backend together: storage, the auth
// core, services, the HTTP API and the gRPC health endpoint. It also owns
// graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/taskkeeper/internal/logging"
	"github.com/dmitrijs2005/taskkeeper/internal/server/archive"
	"github.com/dmitrijs2005/taskkeeper/internal/server/auth"
	"github.com/dmitrijs2005/taskkeeper/internal/server/config"
	"github.com/dmitrijs2005/taskkeeper/internal/server/httpx"
	"github.com/dmitrijs2005/taskkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/taskkeeper/internal/server/services"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	gs "github.com/dmitrijs2005/taskkeeper/internal/server/grpc"
)

// Seams for tests.
var (
	newPostgresManager = func(ctx context.Context, dsn string) (repomanager.RepositoryManager, error) {
		return repomanager.NewPostgresRepositoryManager(ctx, dsn)
	}
	newRedisClient = func(opts *redis.Options) redis.UniversalClient {
		return redis.NewClient(opts)
	}
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	repomanager repomanager.RepositoryManager
	api         *httpx.API
	health      *gs.HealthServer
	closers     []func() error
}

// OpenRepositories returns the in-memory manager for the "memory" DSN and a
// PostgreSQL manager otherwise, applying migrations when configured to.
func OpenRepositories(ctx context.Context, c *config.Config) (repomanager.RepositoryManager, error) {
	if c.InMemory() {
		return repomanager.NewInMemoryRepositoryManager(), nil
	}

	rm, err := newPostgresManager(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if c.RunMigrations {
		if err := rm.RunMigrations(ctx); err != nil {
			_ = rm.Close()
			return nil, err
		}
	}
	return rm, nil
}

// NewApp builds every component from c. Logs go to w. On error, anything
// already opened is closed again.
func NewApp(ctx context.Context, c *config.Config, w io.Writer) (_ *App, err error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	app := &App{config: c, logger: logging.New(w, c.Production)}
	defer func() {
		if err != nil {
			_ = app.Close()
		}
	}()

	rm, err := OpenRepositories(ctx, c)
	if err != nil {
		return nil, err
	}
	app.repomanager = rm
	app.closers = append(app.closers, rm.Close)

	hasher := auth.NewHasher(c.BcryptCost)
	issuer, err := auth.NewIssuer(c.SecretKey)
	if err != nil {
		return nil, err
	}

	revocations, err := app.newRevocationStore(ctx)
	if err != nil {
		return nil, err
	}

	resolverOpts := []auth.ResolverOption{auth.WithRevocations(revocations)}
	if c.PrincipalCacheTTL > 0 {
		cache, err := auth.NewPrincipalCache(c.PrincipalCacheTTL)
		if err != nil {
			return nil, fmt.Errorf("principal cache: %w", err)
		}
		app.closers = append(app.closers, cache.Close)
		resolverOpts = append(resolverOpts, auth.WithPrincipalCache(cache))
	}
	resolver := auth.NewResolver(issuer, rm.Users(rm.Conn()), resolverOpts...)

	archiver, err := archive.New(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("archive init error: %w", err)
	}

	users := services.NewUserService(rm, hasher, issuer,
		services.WithRevocationStore(revocations),
		services.WithInvalidator(resolver),
		services.WithArchiver(archiver),
		services.WithLogger(app.logger),
	)

	app.api = httpx.NewAPI(httpx.Options{
		Users:          users,
		Tasks:          services.NewTaskService(rm),
		Resolver:       resolver,
		Logger:         app.logger,
		Production:     c.Production,
		AllowedOrigins: c.CORSAllowedOrigins,
	})

	if c.GRPCHealthAddr != "" {
		app.health = gs.NewHealthServer(c.GRPCHealthAddr, app.logger)
	}
	return app, nil
}

// newRevocationStore uses Redis when an address is configured so that every
// instance sees a logout, and an in-process store otherwise.
func (app *App) newRevocationStore(ctx context.Context) (auth.RevocationStore, error) {
	if app.config.RedisAddr == "" {
		s, err := auth.NewMemoryRevocationStore()
		if err != nil {
			return nil, fmt.Errorf("revocation store: %w", err)
		}
		app.closers = append(app.closers, s.Close)
		return s, nil
	}

	client := newRedisClient(&redis.Options{
		Addr:     app.config.RedisAddr,
		Password: app.config.RedisPassword,
		DB:       app.config.RedisDB,
	})
	app.closers = append(app.closers, client.Close)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return auth.NewRedisRevocationStore(client), nil
}

func (app *App) initSignalHandler(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
}

// Run serves until ctx is cancelled or a signal arrives. The first server
// to fail stops the others.
func (app *App) Run(ctx context.Context) error {
	ctx, stop := app.initSignalHandler(ctx)
	defer stop()

	app.logger.Info(ctx, "Starting app...")

	g, ctx := errgroup.WithContext(ctx)

	httpServer := httpx.NewServer(app.config.HTTPAddr, app.api.Handler(), app.logger, app.config.ShutdownTimeout)
	g.Go(func() error {
		return httpServer.Run(ctx)
	})

	if app.health != nil {
		g.Go(func() error {
			return app.health.Run(ctx)
		})
		app.health.SetServing(true)
	}

	err := g.Wait()
	if err != nil {
		app.logger.Error(ctx, "server stopped with error", "error", err)
	}
	app.logger.Info(context.WithoutCancel(ctx), "App stopped")
	return err
}

// Close releases storage and caches in reverse order of creation.
func (app *App) Close() error {
	var errs []error
	for i := len(app.closers) - 1; i >= 0; i-- {
		errs = append(errs, app.closers[i]())
	}
	app.closers = nil
	return errors.Join(errs...)
}
