package repository

import (
	"context"

	"lumen/internal/models"
	"lumen/internal/observability"
	"lumen/internal/query"
	"lumen/internal/store"
)

// UserRepository defines the interface for user data operations
type UserRepository interface {
	GetUser(ctx context.Context, filter models.UserFilter, opts query.Options) (*models.User, error)
	GetUsers(ctx context.Context, filter models.UserFilter, opts query.Options) ([]*models.User, error)
	GetUsersMatchingAny(ctx context.Context, filters []models.UserFilter, opts query.Options) ([]*models.User, error)
	GetUsersByIDs(ctx context.Context, ids []string) ([]*models.User, error)
	Search(ctx context.Context, text string, opts query.Options) ([]*models.User, error)
	Create(ctx context.Context, user *models.User) error
	AddFollowing(ctx context.Context, userID, targetID string) error
	RemoveFollowing(ctx context.Context, userID, targetID string) error
	AddFollower(ctx context.Context, userID, followerID string) error
	RemoveFollower(ctx context.Context, userID, followerID string) error
	UpdateAvatar(ctx context.Context, userID string, avatar models.Avatar) error
	RemoveAvatar(ctx context.Context, userID string) error
}

// userRepository implements UserRepository
type userRepository struct {
	users store.Collection[models.User]
	log   *observability.RepoLogger
}

// NewUserRepository creates a new user repository
func NewUserRepository(users store.Collection[models.User]) UserRepository {
	return &userRepository{
		users: users,
		log:   observability.NewRepoLogger(users.Name()),
	}
}

func (r *userRepository) GetUser(ctx context.Context, filter models.UserFilter, opts query.Options) (*models.User, error) {
	return getOne(ctx, r.users, r.log, filter, filter.ID, opts)
}

func (r *userRepository) GetUsers(ctx context.Context, filter models.UserFilter, opts query.Options) ([]*models.User, error) {
	return getMany(ctx, r.users, r.log, query.Build(filter, opts), opts)
}

func (r *userRepository) GetUsersMatchingAny(ctx context.Context, filters []models.UserFilter, opts query.Options) ([]*models.User, error) {
	return getMany(ctx, r.users, r.log, query.BuildAny(filters, opts), opts)
}

func (r *userRepository) GetUsersByIDs(ctx context.Context, ids []string) ([]*models.User, error) {
	if len(ids) == 0 {
		return []*models.User{}, nil
	}
	users, err := r.users.FindByIDs(ctx, ids)
	if err != nil {
		r.log.LogError(ctx, err, "find_by_ids")
		return nil, err
	}
	return users, nil
}

// Search returns users whose email or username contains text, ignoring
// case.
func (r *userRepository) Search(ctx context.Context, text string, opts query.Options) ([]*models.User, error) {
	if text == "" {
		return []*models.User{}, nil
	}
	p := query.Predicate{Op: query.OpAny, Terms: []query.Term{
		{Field: models.FieldEmail, Value: query.Contains(text)},
		{Field: models.FieldUsername, Value: query.Contains(text)},
	}}
	return getMany(ctx, r.users, r.log, p, opts)
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	if user.Followers == nil {
		user.Followers = []string{}
	}
	if user.Followings == nil {
		user.Followings = []string{}
	}
	if err := r.users.Insert(ctx, user); err != nil {
		r.log.LogError(ctx, err, "create")
		return err
	}
	r.log.LogCreate(ctx, map[string]any{"user_id": user.ID, "username": user.Username})
	return nil
}

func (r *userRepository) AddFollowing(ctx context.Context, userID, targetID string) error {
	err := r.users.AddToSet(ctx, userID, models.FieldFollowings, targetID)
	return mutation(ctx, r.log, "add_following", "User", userID, err)
}

func (r *userRepository) RemoveFollowing(ctx context.Context, userID, targetID string) error {
	err := r.users.Pull(ctx, userID, models.FieldFollowings, targetID)
	return mutation(ctx, r.log, "remove_following", "User", userID, err)
}

func (r *userRepository) AddFollower(ctx context.Context, userID, followerID string) error {
	err := r.users.AddToSet(ctx, userID, models.FieldFollowers, followerID)
	return mutation(ctx, r.log, "add_follower", "User", userID, err)
}

func (r *userRepository) RemoveFollower(ctx context.Context, userID, followerID string) error {
	err := r.users.Pull(ctx, userID, models.FieldFollowers, followerID)
	return mutation(ctx, r.log, "remove_follower", "User", userID, err)
}

func (r *userRepository) UpdateAvatar(ctx context.Context, userID string, avatar models.Avatar) error {
	patch := store.Patch{Set: map[string]any{models.FieldAvatar: avatar}}
	if err := mutation(ctx, r.log, "update_avatar", "User", userID, r.users.UpdateByID(ctx, userID, patch)); err != nil {
		return err
	}
	r.log.LogUpdate(ctx, map[string]any{"user_id": userID, "field": models.FieldAvatar})
	return nil
}

func (r *userRepository) RemoveAvatar(ctx context.Context, userID string) error {
	patch := store.Patch{Unset: []string{models.FieldAvatar}}
	if err := mutation(ctx, r.log, "remove_avatar", "User", userID, r.users.UpdateByID(ctx, userID, patch)); err != nil {
		return err
	}
	r.log.LogUpdate(ctx, map[string]any{"user_id": userID, "field": models.FieldAvatar})
	return nil
}
