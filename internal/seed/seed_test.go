package seed

import (
	"context"
	"testing"

	"lumen/internal/auth"
	"lumen/internal/models"
	"lumen/internal/query"
	"lumen/internal/repository"
	"lumen/internal/service"
	"lumen/internal/store/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newRepos() (repository.PostRepository, repository.UserRepository) {
	return repository.NewPostRepository(memory.NewCollection[models.Post]("posts")),
		repository.NewUserRepository(memory.NewCollection[models.User]("users"))
}

func TestSeeder_Run(t *testing.T) {
	ctx := context.Background()
	posts, users := newRepos()
	hasher := auth.BcryptHasher{Cost: bcrypt.MinCost}

	res, err := NewSeeder(posts, users, hasher, 42).Run(ctx, Options{
		Users:        6,
		PostsPerUser: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, 6, res.Users)
	assert.Equal(t, 18, res.Posts)

	all, err := users.GetUsers(ctx, models.UserFilter{}, query.Options{Limit: 100})
	require.NoError(t, err)
	require.Len(t, all, 6)

	byID := make(map[string]*models.User, len(all))
	follows := 0
	for _, u := range all {
		byID[u.ID] = u
		follows += len(u.Followings)
		assert.LessOrEqual(t, len(u.Username), 30)
		assert.NotContains(t, u.Followings, u.ID)
		assert.True(t, hasher.Compare(u.Password, DefaultPassword))
	}
	assert.Equal(t, res.Follows, follows)

	// Every following edge has its mirrored follower edge.
	for _, u := range all {
		for _, target := range u.Followings {
			assert.Contains(t, byID[target].Followers, u.ID)
		}
	}

	feed, err := posts.GetPosts(ctx, models.PostFilter{}, query.Options{Limit: 100})
	require.NoError(t, err)
	require.Len(t, feed, 18)
	likes, comments := 0, 0
	for _, p := range feed {
		require.Contains(t, byID, p.UID)
		likes += len(p.Likes)
		comments += len(p.Comments)
	}
	assert.Equal(t, res.Likes, likes)
	assert.Equal(t, res.Comments, comments)
}

func TestSeeder_SeededFeedIsServable(t *testing.T) {
	ctx := context.Background()
	posts, users := newRepos()

	_, err := NewSeeder(posts, users, auth.BcryptHasher{Cost: bcrypt.MinCost}, 7).Run(ctx, Options{
		Users:        4,
		PostsPerUser: 2,
	})
	require.NoError(t, err)

	first, err := users.GetUsers(ctx, models.UserFilter{}, query.Options{Limit: 1})
	require.NoError(t, err)
	require.Len(t, first, 1)

	feed, err := service.NewFeedService(posts, users).GetFeed(ctx, service.FeedInput{
		Mode:     service.ModeByUsername,
		Username: first[0].Username,
	})
	require.NoError(t, err)
	require.Len(t, feed, 2)
	assert.Equal(t, first[0].Username, feed[0].Username)
}

func TestSeeder_NoUsers(t *testing.T) {
	posts, users := newRepos()
	res, err := NewSeeder(posts, users, auth.BcryptHasher{Cost: bcrypt.MinCost}, 1).Run(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
}
