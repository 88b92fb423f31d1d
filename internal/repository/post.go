package repository

import (
	"context"

	"lumen/internal/models"
	"lumen/internal/observability"
	"lumen/internal/query"
	"lumen/internal/store"
)

// PostPatch lists the post fields an update may replace. Nil fields are left
// unchanged.
type PostPatch struct {
	Content *string
	Files   []models.Media
}

func (p PostPatch) storePatch() store.Patch {
	set := map[string]any{}
	if p.Content != nil {
		set[models.FieldContent] = *p.Content
	}
	if p.Files != nil {
		set[models.FieldFiles] = p.Files
	}
	return store.Patch{Set: set}
}

// PostRepository defines the interface for post data operations
type PostRepository interface {
	GetPost(ctx context.Context, filter models.PostFilter, opts query.Options) (*models.Post, error)
	GetPosts(ctx context.Context, filter models.PostFilter, opts query.Options) ([]*models.Post, error)
	GetPostsMatchingAny(ctx context.Context, filters []models.PostFilter, opts query.Options) ([]*models.Post, error)
	CountByAuthor(ctx context.Context, uid string) (int64, error)
	Create(ctx context.Context, post *models.Post) error
	UpdateByID(ctx context.Context, id string, patch PostPatch) error
	DeleteByID(ctx context.Context, id string) error
	Like(ctx context.Context, postID, uid string) error
	Unlike(ctx context.Context, postID, uid string) error
	AddComment(ctx context.Context, postID string, comment models.Comment) error
	RemoveComment(ctx context.Context, postID, commentID string) error
}

// postRepository implements PostRepository
type postRepository struct {
	posts store.Collection[models.Post]
	log   *observability.RepoLogger
}

// NewPostRepository creates a new post repository
func NewPostRepository(posts store.Collection[models.Post]) PostRepository {
	return &postRepository{
		posts: posts,
		log:   observability.NewRepoLogger(posts.Name()),
	}
}

func (r *postRepository) GetPost(ctx context.Context, filter models.PostFilter, opts query.Options) (*models.Post, error) {
	return getOne(ctx, r.posts, r.log, filter, filter.ID, opts)
}

func (r *postRepository) GetPosts(ctx context.Context, filter models.PostFilter, opts query.Options) ([]*models.Post, error) {
	return getMany(ctx, r.posts, r.log, query.Build(filter, opts), opts)
}

func (r *postRepository) GetPostsMatchingAny(ctx context.Context, filters []models.PostFilter, opts query.Options) ([]*models.Post, error) {
	return getMany(ctx, r.posts, r.log, query.BuildAny(filters, opts), opts)
}

func (r *postRepository) CountByAuthor(ctx context.Context, uid string) (int64, error) {
	n, err := r.posts.Count(ctx, query.Build(models.PostFilter{UID: uid}, query.DefaultOptions()))
	if err != nil {
		r.log.LogError(ctx, err, "count")
		return 0, err
	}
	return n, nil
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	if post.Files == nil {
		post.Files = []models.Media{}
	}
	if post.Likes == nil {
		post.Likes = []string{}
	}
	if post.Comments == nil {
		post.Comments = []models.Comment{}
	}
	if err := r.posts.Insert(ctx, post); err != nil {
		r.log.LogError(ctx, err, "create")
		return err
	}
	r.log.LogCreate(ctx, map[string]any{"post_id": post.ID, "uid": post.UID})
	return nil
}

func (r *postRepository) UpdateByID(ctx context.Context, id string, patch PostPatch) error {
	sp := patch.storePatch()
	if sp.IsEmpty() {
		return nil
	}
	if err := mutation(ctx, r.log, "update", "Post", id, r.posts.UpdateByID(ctx, id, sp)); err != nil {
		return err
	}
	r.log.LogUpdate(ctx, map[string]any{"post_id": id})
	return nil
}

func (r *postRepository) DeleteByID(ctx context.Context, id string) error {
	if err := mutation(ctx, r.log, "delete", "Post", id, r.posts.DeleteByID(ctx, id)); err != nil {
		return err
	}
	r.log.LogDelete(ctx, map[string]any{"post_id": id})
	return nil
}

func (r *postRepository) Like(ctx context.Context, postID, uid string) error {
	return mutation(ctx, r.log, "like", "Post", postID, r.posts.AddToSet(ctx, postID, models.FieldLikes, uid))
}

func (r *postRepository) Unlike(ctx context.Context, postID, uid string) error {
	return mutation(ctx, r.log, "unlike", "Post", postID, r.posts.Pull(ctx, postID, models.FieldLikes, uid))
}

func (r *postRepository) AddComment(ctx context.Context, postID string, comment models.Comment) error {
	err := r.posts.Push(ctx, postID, models.FieldComments, comment)
	if err := mutation(ctx, r.log, "add_comment", "Post", postID, err); err != nil {
		return err
	}
	r.log.LogUpdate(ctx, map[string]any{"post_id": postID, "comment_id": comment.ID})
	return nil
}

func (r *postRepository) RemoveComment(ctx context.Context, postID, commentID string) error {
	match := query.Term{Field: models.FieldID, Value: commentID}
	err := r.posts.PullWhere(ctx, postID, models.FieldComments, match)
	if err := mutation(ctx, r.log, "remove_comment", "Post", postID, err); err != nil {
		return err
	}
	r.log.LogUpdate(ctx, map[string]any{"post_id": postID, "comment_id": commentID})
	return nil
}
