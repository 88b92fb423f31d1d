// Package bootstrap builds the stores, repositories and services a process
// runs on from its configuration.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"lumen/internal/auth"
	"lumen/internal/cache"
	"lumen/internal/config"
	"lumen/internal/database"
	"lumen/internal/models"
	"lumen/internal/observability"
	"lumen/internal/repository"
	"lumen/internal/server"
	"lumen/internal/service"
	"lumen/internal/store"
	"lumen/internal/store/memory"
	mongostore "lumen/internal/store/mongo"
	"lumen/internal/store/sqldoc"

	"gorm.io/gorm"
)

// Collection names shared by every driver.
const (
	PostsCollection = "posts"
	UsersCollection = "users"
)

// Runtime holds the repositories for the configured store together with
// the health checks and closers of its connections.
type Runtime struct {
	Posts  repository.PostRepository
	Users  repository.UserRepository
	Checks map[string]server.HealthCheck

	closers []func(context.Context) error
}

type stores struct {
	posts store.Collection[models.Post]
	users store.Collection[models.User]
}

// InitRuntime connects to the store selected by cfg.StoreDriver and to Redis
// when REDIS_URL is set. An unreachable Redis disables the cache rather than
// failing startup.
func InitRuntime(ctx context.Context, cfg *config.Config) (*Runtime, error) {
	rt := &Runtime{Checks: map[string]server.HealthCheck{}}

	s, err := rt.openStores(ctx, cfg)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, err
	}

	if client := cache.InitRedis(ctx, cfg.RedisURL); client != nil {
		s.users = cache.NewCollection(s.users, client, cfg.CacheTTL())
		rt.Checks["redis"] = func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}
		rt.closers = append(rt.closers, func(context.Context) error {
			return client.Close()
		})
	}

	rt.Posts = repository.NewPostRepository(observability.Instrument(s.posts))
	rt.Users = repository.NewUserRepository(observability.Instrument(s.users))

	_, cached := rt.Checks["redis"]
	observability.Logger.InfoContext(ctx, "Runtime initialized",
		slog.String("store", cfg.StoreDriver),
		slog.Bool("cache", cached),
	)
	return rt, nil
}

func (rt *Runtime) openStores(ctx context.Context, cfg *config.Config) (stores, error) {
	switch cfg.StoreDriver {
	case config.DriverMemory:
		rt.Checks["store"] = func(context.Context) error { return nil }
		return stores{
			posts: memory.NewCollection[models.Post](PostsCollection),
			users: memory.NewCollection[models.User](UsersCollection),
		}, nil

	case config.DriverMongo:
		client, err := mongostore.Connect(ctx, cfg.MongoURI, cfg.MongoPoolSize)
		if err != nil {
			return stores{}, err
		}
		rt.Checks["store"] = func(ctx context.Context) error {
			return client.Ping(ctx, nil)
		}
		rt.closers = append(rt.closers, client.Disconnect)

		db := client.Database(cfg.MongoDatabase)
		posts := mongostore.NewCollection[models.Post](db, PostsCollection)
		users := mongostore.NewCollection[models.User](db, UsersCollection)
		if err := posts.EnsureIndexes(ctx); err != nil {
			return stores{}, err
		}
		if err := users.EnsureIndexes(ctx, models.FieldEmail, models.FieldUsername); err != nil {
			return stores{}, err
		}
		return stores{posts: posts, users: users}, nil

	case config.DriverPostgres:
		db, err := database.Connect(cfg)
		if err != nil {
			return stores{}, fmt.Errorf("database connection failed: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return stores{}, fmt.Errorf("failed to get database handle: %w", err)
		}
		rt.Checks["store"] = sqlDB.PingContext
		rt.closers = append(rt.closers, func(context.Context) error {
			return sqlDB.Close()
		})
		return sqlStores(ctx, db)

	default:
		return stores{}, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// sqlStores opens and migrates the document tables in db.
func sqlStores(ctx context.Context, db *gorm.DB) (stores, error) {
	posts, err := sqldoc.NewCollection[models.Post](db, PostsCollection)
	if err != nil {
		return stores{}, err
	}
	users, err := sqldoc.NewCollection[models.User](db, UsersCollection)
	if err != nil {
		return stores{}, err
	}
	if err := posts.Migrate(ctx); err != nil {
		return stores{}, err
	}
	if err := users.Migrate(ctx, models.FieldEmail, models.FieldUsername); err != nil {
		return stores{}, err
	}
	return stores{posts: posts, users: users}, nil
}

// Deps builds the services over the runtime's repositories.
func (rt *Runtime) Deps(media service.MediaDeleter) server.Deps {
	return server.Deps{
		Feed:   service.NewFeedService(rt.Posts, rt.Users),
		Social: service.NewSocialService(rt.Posts, rt.Users),
		Posts:  service.NewPostService(rt.Posts, media),
		Users:  service.NewUserService(rt.Users, rt.Posts, auth.NewBcryptHasher(), media),
		Checks: rt.Checks,
	}
}

// Close releases every connection in reverse order of opening.
func (rt *Runtime) Close(ctx context.Context) error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}
