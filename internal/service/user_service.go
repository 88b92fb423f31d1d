package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"lumen/internal/models"
	"lumen/internal/query"
	"lumen/internal/repository"
	"lumen/internal/store"
)

const (
	minPasswordLen   = 8
	maxUsernameLen   = 30
	maxSearchResults = 20
)

type UserService struct {
	userRepo repository.UserRepository
	postRepo repository.PostRepository
	hasher   PasswordHasher
	media    MediaDeleter
	now      func() time.Time
	newID    func() string
}

type RegisterInput struct {
	Email    string
	Username string
	Password string
}

func NewUserService(
	userRepo repository.UserRepository,
	postRepo repository.PostRepository,
	hasher PasswordHasher,
	media MediaDeleter,
) *UserService {
	if media == nil {
		media = NopMediaDeleter{}
	}
	return &UserService{
		userRepo: userRepo,
		postRepo: postRepo,
		hasher:   hasher,
		media:    media,
		now:      nowUTC,
		newID:    newID,
	}
}

// Register creates an account. Email and username must both be unused.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	username := strings.TrimSpace(in.Username)

	if _, err := mail.ParseAddress(email); err != nil {
		return nil, models.NewValidationError("A valid email is required")
	}
	if username == "" {
		return nil, models.NewValidationError("Username is required")
	}
	if len(username) > maxUsernameLen {
		return nil, models.NewValidationError("Username too long (max 30 characters)")
	}
	if len(in.Password) < minPasswordLen {
		return nil, models.NewValidationError("Password must be at least 8 characters")
	}

	if err := s.checkAvailable(ctx, email, username); err != nil {
		return nil, err
	}

	hashed, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	user := &models.User{
		ID:        s.newID(),
		Email:     email,
		Username:  username,
		Password:  hashed,
		CreatedAt: s.now(),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		// A concurrent registration took the email or username after the
		// check above; the store's unique index rejected this one.
		if errors.Is(err, store.ErrDuplicateKey) {
			if taken := s.checkAvailable(ctx, email, username); taken != nil {
				return nil, taken
			}
			return nil, models.NewValidationError("Account already exists")
		}
		return nil, err
	}
	return user, nil
}

// checkAvailable returns a validation error naming the field already taken
// by another account.
func (s *UserService) checkAvailable(ctx context.Context, email, username string) error {
	existing, err := s.userRepo.GetUser(ctx,
		models.UserFilter{Email: email, Username: username},
		query.Options{Condition: query.Or},
	)
	if err != nil {
		return err
	}
	if existing == nil {
		return nil
	}
	if existing.Email == email {
		return models.NewValidationError("Email already exists")
	}
	return models.NewValidationError("Username already exists")
}

// Authenticate resolves identity as either an email or a username and
// checks password against the stored hash.
func (s *UserService) Authenticate(ctx context.Context, identity, password string) (*models.User, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" || password == "" {
		return nil, models.NewValidationError("Identity and password are required")
	}

	user, err := s.userRepo.GetUser(ctx,
		models.UserFilter{Email: strings.ToLower(identity), Username: identity},
		query.Options{Condition: query.Or},
	)
	if err != nil {
		return nil, err
	}
	if user == nil || !s.hasher.Compare(user.Password, password) {
		return nil, models.NewBadCredentialsError()
	}
	return user, nil
}

// SearchProfiles lists users whose email or username contains text,
// ignoring case. No match is (nil, nil).
func (s *UserService) SearchProfiles(ctx context.Context, text string) ([]*models.SearchProfile, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, models.NewValidationError("Missing search term")
	}
	users, err := s.userRepo.Search(ctx, text, query.Options{Limit: maxSearchResults})
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, nil
	}
	out := make([]*models.SearchProfile, 0, len(users))
	for _, u := range users {
		out = append(out, &models.SearchProfile{ID: u.ID, Username: u.Username, Avatar: u.Avatar})
	}
	return out, nil
}

// GetProfile looks a user up by username and counts their posts.
func (s *UserService) GetProfile(ctx context.Context, username string) (*models.Profile, error) {
	if username == "" {
		return nil, models.NewValidationError("Username is required")
	}
	user, err := s.userRepo.GetUser(ctx, models.UserFilter{Username: username}, query.DefaultOptions())
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.NewNotFoundByError("User", "username", username)
	}

	total, err := s.postRepo.CountByAuthor(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return models.NewProfile(user, total), nil
}

func (s *UserService) user(ctx context.Context, userID string) (*models.User, error) {
	if userID == "" {
		return nil, models.NewValidationError("User id is required")
	}
	user, err := s.userRepo.GetUser(ctx, models.UserFilter{ID: userID}, query.Options{FindByID: true})
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.NewNotFoundError("User", userID)
	}
	return user, nil
}

// ChangeAvatar replaces the user's avatar. The previous file is deleted first.
func (s *UserService) ChangeAvatar(ctx context.Context, userID string, avatar models.Avatar) (*models.User, error) {
	if avatar.URL == "" {
		return nil, models.NewValidationError("Avatar url is required")
	}
	user, err := s.user(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Avatar != nil && user.Avatar.URL != "" {
		if err := deleteMedia(ctx, s.media, []string{user.Avatar.URL}); err != nil {
			return nil, err
		}
	}
	if err := s.userRepo.UpdateAvatar(ctx, userID, avatar); err != nil {
		return nil, err
	}
	user.Avatar = &avatar
	return user, nil
}

func (s *UserService) RemoveAvatar(ctx context.Context, userID string) error {
	user, err := s.user(ctx, userID)
	if err != nil {
		return err
	}
	if user.Avatar == nil {
		return &models.AppError{Code: models.CodeNotFound, Message: "No avatar found"}
	}
	if err := deleteMedia(ctx, s.media, []string{user.Avatar.URL}); err != nil {
		return err
	}
	return s.userRepo.RemoveAvatar(ctx, userID)
}
