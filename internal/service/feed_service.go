package service

import (
	"context"
	"math"

	"lumen/internal/models"
	"lumen/internal/observability"
	"lumen/internal/query"
	"lumen/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// Feed modes.
const (
	ModeHome       = "home"
	ModeExplore    = "explore"
	ModeByUsername = "byUsername"
)

const (
	homePageSize       = 7
	explorePageSize    = 9
	byUsernamePageSize = 9

	// maxPage keeps page*pageSize within int for every paged mode.
	maxPage = math.MaxInt / max(homePageSize, byUsernamePageSize)
)

// FeedService assembles feeds of posts joined with their authors.
type FeedService struct {
	postRepo repository.PostRepository
	userRepo repository.UserRepository
}

type FeedInput struct {
	// ViewerID is empty for anonymous requests.
	ViewerID string
	Username string
	Mode     string
	Page     int
}

func NewFeedService(postRepo repository.PostRepository, userRepo repository.UserRepository) *FeedService {
	return &FeedService{postRepo: postRepo, userRepo: userRepo}
}

// GetFeed returns one page of the requested feed. A feed with no posts is
// (nil, nil).
func (s *FeedService) GetFeed(ctx context.Context, in FeedInput) (feed []*models.DisplayPost, err error) {
	span, ctx := observability.NewSpan(ctx, "feed.get")
	span.AddAttributes(
		attribute.String("feed.mode", in.Mode),
		attribute.Int("feed.page", in.Page),
		attribute.Bool("feed.anonymous", in.ViewerID == ""),
	)
	defer func() {
		outcome := "ok"
		switch {
		case err != nil:
			outcome = "error"
			span.SetError(err)
		case len(feed) == 0:
			outcome = "empty"
		}
		mode := metricMode(in.Mode)
		observability.FeedRequests.WithLabelValues(mode, outcome).Inc()
		if err == nil {
			observability.FeedSize.WithLabelValues(mode).Observe(float64(len(feed)))
		}
		span.End()
	}()

	if in.Page < 0 {
		return nil, models.NewValidationError("Page must not be negative")
	}
	if in.Page > maxPage {
		return nil, models.NewValidationError("Page is too large")
	}

	var posts []*models.Post
	switch in.Mode {
	case ModeHome:
		posts, err = s.home(ctx, in.ViewerID, in.Page)
	case ModeExplore:
		posts, err = s.explore(ctx, in.ViewerID)
	case ModeByUsername:
		posts, err = s.byUsername(ctx, in.Username, in.Page)
	default:
		return nil, models.NewInvalidArgumentError("Unknown feed type " + in.Mode)
	}
	if err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return nil, nil
	}
	return s.assemble(ctx, posts)
}

func metricMode(mode string) string {
	switch mode {
	case ModeHome, ModeExplore, ModeByUsername:
		return mode
	default:
		return "unknown"
	}
}

// authorFilters is one filter per author in viewer's network, viewer first.
func authorFilters(viewerID string, viewer *models.User) []models.PostFilter {
	filters := []models.PostFilter{{UID: viewerID}}
	if viewer != nil {
		for _, id := range viewer.Followings {
			filters = append(filters, models.PostFilter{UID: id})
		}
	}
	return filters
}

func (s *FeedService) viewer(ctx context.Context, viewerID string) (*models.User, error) {
	return s.userRepo.GetUser(ctx, models.UserFilter{ID: viewerID}, query.Options{FindByID: true})
}

func (s *FeedService) home(ctx context.Context, viewerID string, page int) ([]*models.Post, error) {
	if viewerID == "" {
		return nil, models.NewValidationError("You must be logged in to view your home feed")
	}
	viewer, err := s.viewer(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	if viewer == nil {
		return nil, models.NewNotFoundError("User", viewerID)
	}

	return s.postRepo.GetPostsMatchingAny(ctx, authorFilters(viewerID, viewer), query.Options{
		Skip:  page * homePageSize,
		Limit: homePageSize,
	})
}

func (s *FeedService) explore(ctx context.Context, viewerID string) ([]*models.Post, error) {
	if viewerID == "" {
		return s.postRepo.GetPosts(ctx, models.PostFilter{}, query.Options{
			Random: true,
			Limit:  explorePageSize,
		})
	}

	// A viewer without a record still has their own posts excluded.
	viewer, err := s.viewer(ctx, viewerID)
	if err != nil {
		return nil, err
	}

	return s.postRepo.GetPostsMatchingAny(ctx, authorFilters(viewerID, viewer), query.Options{
		ExcludeCondition: true,
		Random:           true,
		Limit:            explorePageSize,
	})
}

func (s *FeedService) byUsername(ctx context.Context, username string, page int) ([]*models.Post, error) {
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

	return s.postRepo.GetPosts(ctx, models.PostFilter{UID: user.ID}, query.Options{
		Skip:  page * byUsernamePageSize,
		Limit: byUsernamePageSize,
	})
}

func (s *FeedService) assemble(ctx context.Context, posts []*models.Post) ([]*models.DisplayPost, error) {
	uids := make([]string, 0, len(posts))
	for _, p := range posts {
		uids = append(uids, p.UID)
	}
	authors, err := resolveAuthors(ctx, s.userRepo, uids)
	if err != nil {
		return nil, err
	}

	feed := make([]*models.DisplayPost, 0, len(posts))
	for _, p := range posts {
		feed = append(feed, models.NewDisplayPost(p, authors[p.UID]))
	}
	return feed, nil
}

// GetComments lists a post's comments joined with their authors, oldest
// first.
func (s *FeedService) GetComments(ctx context.Context, postID string) ([]*models.DisplayComment, error) {
	if postID == "" {
		return nil, models.NewValidationError("Post id is required")
	}
	post, err := s.postRepo.GetPost(ctx, models.PostFilter{ID: postID}, query.Options{FindByID: true})
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, models.NewNotFoundError("Post", postID)
	}

	out := make([]*models.DisplayComment, 0, len(post.Comments))
	if len(post.Comments) == 0 {
		return out, nil
	}

	uids := make([]string, 0, len(post.Comments))
	for _, c := range post.Comments {
		uids = append(uids, c.UID)
	}
	authors, err := resolveAuthors(ctx, s.userRepo, uids)
	if err != nil {
		return nil, err
	}
	for _, c := range post.Comments {
		out = append(out, models.NewDisplayComment(c, authors[c.UID]))
	}
	return out, nil
}
