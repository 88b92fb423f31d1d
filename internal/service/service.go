// Package service holds the business logic behind the feed, social graph,
// post and user endpoints.
package service

import (
	"context"
	"log/slog"
	"time"

	"lumen/internal/models"
	"lumen/internal/observability"
	"lumen/internal/repository"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// MediaDeleter removes an uploaded file from blob storage.
type MediaDeleter interface {
	DeleteMedia(ctx context.Context, url string) error
}

// NopMediaDeleter discards every deletion.
type NopMediaDeleter struct{}

func (NopMediaDeleter) DeleteMedia(context.Context, string) error { return nil }

// PasswordHasher hashes account passwords at registration and checks them
// at login.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hashed, password string) bool
}

// maxConcurrentMediaDeletes bounds the parallel calls to a MediaDeleter.
const maxConcurrentMediaDeletes = 4

func newID() string {
	return uuid.NewString()
}

func nowUTC() time.Time {
	return time.Now().UTC()
}

// deleteMedia removes every url and waits for all of them. The first failure
// is returned.
func deleteMedia(ctx context.Context, deleter MediaDeleter, urls []string) error {
	if len(urls) == 0 {
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentMediaDeletes)
	for _, url := range urls {
		g.Go(func() error {
			return deleter.DeleteMedia(gctx, url)
		})
	}
	if err := g.Wait(); err != nil {
		observability.Logger.ErrorContext(ctx, "Failed to delete media",
			slog.Int("count", len(urls)),
			slog.String("error", err.Error()),
		)
		return models.NewInternalError(err)
	}
	return nil
}

// resolveAuthors loads the distinct users among uids in one bulk call. Every
// uid must resolve.
func resolveAuthors(ctx context.Context, users repository.UserRepository, uids []string) (map[string]*models.User, error) {
	seen := make(map[string]struct{}, len(uids))
	distinct := make([]string, 0, len(uids))
	for _, uid := range uids {
		if _, ok := seen[uid]; ok {
			continue
		}
		seen[uid] = struct{}{}
		distinct = append(distinct, uid)
	}

	found, err := users.GetUsersByIDs(ctx, distinct)
	if err != nil {
		return nil, err
	}
	authors := make(map[string]*models.User, len(found))
	for _, u := range found {
		authors[u.ID] = u
	}

	for _, uid := range distinct {
		if _, ok := authors[uid]; !ok {
			observability.Logger.ErrorContext(ctx, "Author record missing",
				slog.String("author_id", uid),
			)
			return nil, models.NewInconsistencyError("Author " + uid + " does not exist")
		}
	}
	return authors, nil
}
