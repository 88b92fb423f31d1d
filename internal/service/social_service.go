package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"lumen/internal/models"
	"lumen/internal/observability"
	"lumen/internal/query"
	"lumen/internal/repository"
)

const maxCommentLen = 5000

// SocialService mutates follow edges, likes and comments.
type SocialService struct {
	postRepo repository.PostRepository
	userRepo repository.UserRepository
	now      func() time.Time
	newID    func() string
}

type AddCommentInput struct {
	PostID  string
	UID     string
	Content string
}

type RemoveCommentInput struct {
	PostID    string
	CommentID string
	UID       string
}

func NewSocialService(postRepo repository.PostRepository, userRepo repository.UserRepository) *SocialService {
	return &SocialService{
		postRepo: postRepo,
		userRepo: userRepo,
		now:      nowUTC,
		newID:    newID,
	}
}

func (s *SocialService) followTarget(ctx context.Context, viewerID, targetID string) error {
	if viewerID == "" || targetID == "" {
		return models.NewValidationError("Both user ids are required")
	}
	if viewerID == targetID {
		return models.NewValidationError("You cannot follow yourself")
	}
	target, err := s.userRepo.GetUser(ctx, models.UserFilter{ID: targetID}, query.Options{FindByID: true})
	if err != nil {
		return err
	}
	if target == nil {
		return models.NewNotFoundError("User", targetID)
	}
	return nil
}

// Follow records viewerID following targetID on both users. The two writes
// are not atomic.
func (s *SocialService) Follow(ctx context.Context, viewerID, targetID string) error {
	if err := s.followTarget(ctx, viewerID, targetID); err != nil {
		return err
	}
	if err := s.userRepo.AddFollowing(ctx, viewerID, targetID); err != nil {
		return err
	}
	if err := s.userRepo.AddFollower(ctx, targetID, viewerID); err != nil {
		observability.Logger.ErrorContext(ctx, "Follow edge left one-sided",
			slog.String("follower_id", viewerID),
			slog.String("followee_id", targetID),
			slog.String("error", err.Error()),
		)
		return err
	}
	return nil
}

// Unfollow removes the edges Follow adds. Removing an absent edge succeeds.
func (s *SocialService) Unfollow(ctx context.Context, viewerID, targetID string) error {
	if err := s.followTarget(ctx, viewerID, targetID); err != nil {
		return err
	}
	if err := s.userRepo.RemoveFollowing(ctx, viewerID, targetID); err != nil {
		return err
	}
	if err := s.userRepo.RemoveFollower(ctx, targetID, viewerID); err != nil {
		observability.Logger.ErrorContext(ctx, "Unfollow edge left one-sided",
			slog.String("follower_id", viewerID),
			slog.String("followee_id", targetID),
			slog.String("error", err.Error()),
		)
		return err
	}
	return nil
}

func requireLikeArgs(postID, uid string) error {
	if postID == "" || uid == "" {
		return models.NewValidationError("Post id and user id are required")
	}
	return nil
}

func (s *SocialService) Like(ctx context.Context, postID, uid string) error {
	if err := requireLikeArgs(postID, uid); err != nil {
		return err
	}
	return s.postRepo.Like(ctx, postID, uid)
}

func (s *SocialService) Unlike(ctx context.Context, postID, uid string) error {
	if err := requireLikeArgs(postID, uid); err != nil {
		return err
	}
	return s.postRepo.Unlike(ctx, postID, uid)
}

func (s *SocialService) AddComment(ctx context.Context, in AddCommentInput) (*models.Comment, error) {
	if in.PostID == "" || in.UID == "" {
		return nil, models.NewValidationError("Post id and user id are required")
	}
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, models.NewValidationError("Comment content is required")
	}
	if len(content) > maxCommentLen {
		return nil, models.NewValidationError("Comment too long (max 5000 characters)")
	}

	comment := models.Comment{
		ID:        s.newID(),
		UID:       in.UID,
		Content:   content,
		CreatedAt: s.now(),
	}
	if err := s.postRepo.AddComment(ctx, in.PostID, comment); err != nil {
		return nil, err
	}
	return &comment, nil
}

// RemoveComment deletes a comment. Only the comment's author or the post's
// author may do so.
func (s *SocialService) RemoveComment(ctx context.Context, in RemoveCommentInput) error {
	if in.PostID == "" || in.CommentID == "" || in.UID == "" {
		return models.NewValidationError("Post id, comment id and user id are required")
	}
	post, err := s.postRepo.GetPost(ctx, models.PostFilter{ID: in.PostID}, query.Options{FindByID: true})
	if err != nil {
		return err
	}
	if post == nil {
		return models.NewNotFoundError("Post", in.PostID)
	}

	var comment *models.Comment
	for i := range post.Comments {
		if post.Comments[i].ID == in.CommentID {
			comment = &post.Comments[i]
			break
		}
	}
	if comment == nil {
		return models.NewNotFoundError("Comment", in.CommentID)
	}
	if in.UID != comment.UID && in.UID != post.UID {
		return models.NewUnauthorizedError("You can only delete your own comments or comments on your posts")
	}

	return s.postRepo.RemoveComment(ctx, in.PostID, in.CommentID)
}
