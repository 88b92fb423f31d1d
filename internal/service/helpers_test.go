package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"lumen/internal/models"
	"lumen/internal/query"
	"lumen/internal/repository"
	"lumen/internal/store/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

// at is t0 plus n minutes.
func at(n int) time.Time {
	return t0.Add(time.Duration(n) * time.Minute)
}

type fixture struct {
	posts repository.PostRepository
	users repository.UserRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return &fixture{
		posts: repository.NewPostRepository(memory.NewCollection[models.Post]("posts")),
		users: repository.NewUserRepository(memory.NewCollection[models.User]("users")),
	}
}

func (f *fixture) user(t *testing.T, id string, followings ...string) *models.User {
	t.Helper()
	u := &models.User{
		ID:         id,
		Email:      id + "@example.com",
		Username:   "name-" + id,
		Followings: followings,
		Avatar:     &models.Avatar{URL: "https://cdn.example.com/" + id + ".png"},
		CreatedAt:  t0,
	}
	require.NoError(t, f.users.Create(context.Background(), u))
	return u
}

func (f *fixture) post(t *testing.T, id, uid string, minute int, comments ...models.Comment) *models.Post {
	t.Helper()
	p := &models.Post{ID: id, UID: uid, Content: "content " + id, Comments: comments, CreatedAt: at(minute)}
	require.NoError(t, f.posts.Create(context.Background(), p))
	return p
}

func (f *fixture) getPost(t *testing.T, id string) *models.Post {
	t.Helper()
	p, err := f.posts.GetPost(context.Background(), models.PostFilter{ID: id}, query.Options{FindByID: true})
	require.NoError(t, err)
	return p
}

func (f *fixture) getUser(t *testing.T, id string) *models.User {
	t.Helper()
	u, err := f.users.GetUser(context.Background(), models.UserFilter{ID: id}, query.Options{FindByID: true})
	require.NoError(t, err)
	return u
}

func sequentialIDs(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s%d", prefix, n)
	}
}

// mediaDeleterMock is a testify mock for MediaDeleter.
type mediaDeleterMock struct {
	mock.Mock
}

func (m *mediaDeleterMock) DeleteMedia(ctx context.Context, url string) error {
	return m.Called(ctx, url).Error(0)
}

// hasherMock is a testify mock for PasswordHasher.
type hasherMock struct {
	mock.Mock
}

func (m *hasherMock) Hash(password string) (string, error) {
	args := m.Called(password)
	return args.String(0), args.Error(1)
}

func (m *hasherMock) Compare(hashed, password string) bool {
	return m.Called(hashed, password).Bool(0)
}

// userRepoStub wraps a real UserRepository and overrides selected methods.
type userRepoStub struct {
	repository.UserRepository
	addFollowerFn   func(context.Context, string, string) error
	getUsersByIDsFn func(context.Context, []string) ([]*models.User, error)
	createFn        func(context.Context, *models.User) error
}

func (s *userRepoStub) Create(ctx context.Context, user *models.User) error {
	if s.createFn != nil {
		return s.createFn(ctx, user)
	}
	return s.UserRepository.Create(ctx, user)
}

func (s *userRepoStub) AddFollower(ctx context.Context, userID, followerID string) error {
	if s.addFollowerFn != nil {
		return s.addFollowerFn(ctx, userID, followerID)
	}
	return s.UserRepository.AddFollower(ctx, userID, followerID)
}

func (s *userRepoStub) GetUsersByIDs(ctx context.Context, ids []string) ([]*models.User, error) {
	if s.getUsersByIDsFn != nil {
		return s.getUsersByIDsFn(ctx, ids)
	}
	return s.UserRepository.GetUsersByIDs(ctx, ids)
}

func assertCode(t *testing.T, code string, err error) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code)
}
