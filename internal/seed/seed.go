// Package seed populates a store with fake accounts, follow edges, posts,
// likes and comments for development.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"lumen/internal/models"
	"lumen/internal/observability"
	"lumen/internal/repository"
	"lumen/internal/service"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
)

// DefaultPassword is the password of every seeded account.
const DefaultPassword = "password123"

// Options configures a seeding run.
type Options struct {
	Users           int
	PostsPerUser    int
	MaxFollowings   int
	MaxCommentsPost int
	// MaxDays bounds how far back post timestamps are spread.
	MaxDays int
}

// Result counts what a run created.
type Result struct {
	Users    int
	Follows  int
	Posts    int
	Likes    int
	Comments int
}

// Seeder writes fake data through the services so every record passes the
// same validation as API traffic. Posts are inserted through the repository
// to backdate them.
type Seeder struct {
	posts  repository.PostRepository
	users  *service.UserService
	social *service.SocialService
	faker  *gofakeit.Faker
	now    func() time.Time
}

// NewSeeder creates a Seeder over the given repositories. A non-zero seed
// makes the generated data reproducible.
func NewSeeder(postRepo repository.PostRepository, userRepo repository.UserRepository, hasher service.PasswordHasher, seed int64) *Seeder {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Seeder{
		posts:  postRepo,
		users:  service.NewUserService(userRepo, postRepo, hasher, nil),
		social: service.NewSocialService(postRepo, userRepo),
		faker:  gofakeit.New(seed),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (o Options) withDefaults() Options {
	if o.MaxFollowings <= 0 {
		o.MaxFollowings = 5
	}
	if o.MaxCommentsPost <= 0 {
		o.MaxCommentsPost = 3
	}
	if o.MaxDays <= 0 {
		o.MaxDays = 90
	}
	return o
}

// Run creates opts.Users accounts and their content.
func (s *Seeder) Run(ctx context.Context, opts Options) (Result, error) {
	opts = opts.withDefaults()
	var res Result

	observability.Logger.InfoContext(ctx, "Starting seeding",
		slog.Int("users", opts.Users),
		slog.Int("posts_per_user", opts.PostsPerUser),
	)

	users, err := s.createUsers(ctx, opts.Users)
	if err != nil {
		return res, fmt.Errorf("failed to create users: %w", err)
	}
	res.Users = len(users)

	if res.Follows, err = s.createFollows(ctx, users, opts.MaxFollowings); err != nil {
		return res, fmt.Errorf("failed to create follows: %w", err)
	}

	posts, err := s.createPosts(ctx, users, opts.PostsPerUser, opts.MaxDays)
	if err != nil {
		return res, fmt.Errorf("failed to create posts: %w", err)
	}
	res.Posts = len(posts)

	if res.Likes, res.Comments, err = s.createEngagement(ctx, users, posts, opts.MaxCommentsPost); err != nil {
		return res, fmt.Errorf("failed to create engagement: %w", err)
	}

	observability.Logger.InfoContext(ctx, "Seeding complete",
		slog.Int("users", res.Users),
		slog.Int("follows", res.Follows),
		slog.Int("posts", res.Posts),
		slog.Int("likes", res.Likes),
		slog.Int("comments", res.Comments),
	)
	return res, nil
}

// username is unique by its index suffix and kept within the 30 character
// limit.
func (s *Seeder) username(i int) string {
	suffix := fmt.Sprintf("%d", i)
	base := strings.ToLower(s.faker.Username())
	if limit := 30 - len(suffix); len(base) > limit {
		base = base[:limit]
	}
	return base + suffix
}

func (s *Seeder) createUsers(ctx context.Context, n int) ([]*models.User, error) {
	users := make([]*models.User, 0, n)
	for i := range n {
		name := s.username(i)
		u, err := s.users.Register(ctx, service.RegisterInput{
			Email:    fmt.Sprintf("%s@%s", name, s.faker.DomainName()),
			Username: name,
			Password: DefaultPassword,
		})
		if err != nil {
			return users, err
		}
		if s.faker.Bool() {
			u, err = s.users.ChangeAvatar(ctx, u.ID, models.Avatar{
				URL:         fmt.Sprintf("https://picsum.photos/seed/%s/200/200", s.faker.UUID()),
				Orientation: "square",
			})
			if err != nil {
				return users, err
			}
		}
		users = append(users, u)
	}
	return users, nil
}

// pick returns n distinct users drawn at random, never the one with skipID.
func (s *Seeder) pick(users []*models.User, n int, skipID string) []*models.User {
	available := len(users)
	for _, u := range users {
		if u.ID == skipID {
			available--
		}
	}
	n = min(n, available)

	picked := make(map[string]struct{}, n)
	out := make([]*models.User, 0, n)
	for len(out) < n {
		u := users[s.faker.IntRange(0, len(users)-1)]
		if _, ok := picked[u.ID]; ok || u.ID == skipID {
			continue
		}
		picked[u.ID] = struct{}{}
		out = append(out, u)
	}
	return out
}

func (s *Seeder) createFollows(ctx context.Context, users []*models.User, maxFollowings int) (int, error) {
	count := 0
	for _, u := range users {
		for _, target := range s.pick(users, s.faker.IntRange(0, maxFollowings), u.ID) {
			if err := s.social.Follow(ctx, u.ID, target.ID); err != nil {
				return count, err
			}
			count++
		}
	}
	return count, nil
}

var orientations = []string{"landscape", "portrait", "square"}

func (s *Seeder) createPosts(ctx context.Context, users []*models.User, perUser, maxDays int) ([]*models.Post, error) {
	now := s.now()
	posts := make([]*models.Post, 0, len(users)*perUser)
	for _, u := range users {
		for range perUser {
			back := time.Duration(s.faker.IntRange(0, maxDays*24*60)) * time.Minute
			post := &models.Post{
				ID:        uuid.NewString(),
				UID:       u.ID,
				Content:   s.faker.Paragraph(1, 3, 12, "\n"),
				CreatedAt: now.Add(-back),
			}
			if s.faker.Number(0, 2) == 0 {
				post.Files = []models.Media{{
					URL:         fmt.Sprintf("https://picsum.photos/seed/%s/800/800", s.faker.UUID()),
					Type:        "image",
					Orientation: orientations[s.faker.IntRange(0, len(orientations)-1)],
				}}
			}
			if err := s.posts.Create(ctx, post); err != nil {
				return posts, err
			}
			posts = append(posts, post)
		}
	}
	return posts, nil
}

func (s *Seeder) createEngagement(ctx context.Context, users []*models.User, posts []*models.Post, maxComments int) (likes, comments int, err error) {
	if len(users) == 0 {
		return 0, 0, nil
	}
	for _, p := range posts {
		for _, liker := range s.pick(users, s.faker.IntRange(0, 3), "") {
			if err := s.social.Like(ctx, p.ID, liker.ID); err != nil {
				return likes, comments, err
			}
			likes++
		}
		for range s.faker.IntRange(0, maxComments) {
			author := users[s.faker.IntRange(0, len(users)-1)]
			if _, err := s.social.AddComment(ctx, service.AddCommentInput{
				PostID:  p.ID,
				UID:     author.ID,
				Content: s.faker.Sentence(s.faker.IntRange(3, 12)),
			}); err != nil {
				return likes, comments, err
			}
			comments++
		}
	}
	return likes, comments, nil
}
