package service

import (
	"context"
	"strings"
	"time"

	"lumen/internal/models"
	"lumen/internal/query"
	"lumen/internal/repository"
)

const maxPostContentLen = 50000

type PostService struct {
	postRepo repository.PostRepository
	media    MediaDeleter
	now      func() time.Time
	newID    func() string
}

type CreatePostInput struct {
	UID     string
	Content string
	Files   []models.Media
}

type UpdatePostInput struct {
	PostID  string
	UID     string
	Content *string
	// Files replaces the post's files when non-nil.
	Files []models.Media
}

type DeletePostInput struct {
	PostID string
	UID    string
}

func NewPostService(postRepo repository.PostRepository, media MediaDeleter) *PostService {
	if media == nil {
		media = NopMediaDeleter{}
	}
	return &PostService{
		postRepo: postRepo,
		media:    media,
		now:      nowUTC,
		newID:    newID,
	}
}

func validateContent(content string) error {
	if len(content) > maxPostContentLen {
		return models.NewValidationError("Content too long (max 50000 characters)")
	}
	return nil
}

func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	if in.UID == "" {
		return nil, models.NewValidationError("User id is required")
	}
	content := strings.TrimSpace(in.Content)
	if content == "" && len(in.Files) == 0 {
		return nil, models.NewValidationError("A post needs content or files")
	}
	if err := validateContent(content); err != nil {
		return nil, err
	}

	post := &models.Post{
		ID:        s.newID(),
		UID:       in.UID,
		Content:   content,
		Files:     in.Files,
		CreatedAt: s.now(),
	}
	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

// ownedPost loads a post and checks that uid wrote it.
func (s *PostService) ownedPost(ctx context.Context, postID, uid, action string) (*models.Post, error) {
	if postID == "" || uid == "" {
		return nil, models.NewValidationError("Post id and user id are required")
	}
	post, err := s.postRepo.GetPost(ctx, models.PostFilter{ID: postID}, query.Options{FindByID: true})
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, models.NewNotFoundError("Post", postID)
	}
	if post.UID != uid {
		return nil, models.NewUnauthorizedError("You can only " + action + " your own posts")
	}
	return post, nil
}

func mediaURLs(files []models.Media) []string {
	urls := make([]string, 0, len(files))
	for _, f := range files {
		if f.URL != "" {
			urls = append(urls, f.URL)
		}
	}
	return urls
}

// UpdatePost edits a post. Replacing the files deletes the previous media
// before the post changes.
func (s *PostService) UpdatePost(ctx context.Context, in UpdatePostInput) (*models.Post, error) {
	post, err := s.ownedPost(ctx, in.PostID, in.UID, "edit")
	if err != nil {
		return nil, err
	}

	patch := repository.PostPatch{Files: in.Files}
	if in.Content != nil {
		content := strings.TrimSpace(*in.Content)
		if err := validateContent(content); err != nil {
			return nil, err
		}
		patch.Content = &content
	}

	if in.Files != nil {
		if err := deleteMedia(ctx, s.media, mediaURLs(post.Files)); err != nil {
			return nil, err
		}
	}
	if err := s.postRepo.UpdateByID(ctx, post.ID, patch); err != nil {
		return nil, err
	}

	if patch.Content != nil {
		post.Content = *patch.Content
	}
	if patch.Files != nil {
		post.Files = patch.Files
	}
	return post, nil
}

// DeletePost removes a post and its media.
func (s *PostService) DeletePost(ctx context.Context, in DeletePostInput) error {
	post, err := s.ownedPost(ctx, in.PostID, in.UID, "delete")
	if err != nil {
		return err
	}
	if err := deleteMedia(ctx, s.media, mediaURLs(post.Files)); err != nil {
		return err
	}
	return s.postRepo.DeleteByID(ctx, post.ID)
}
