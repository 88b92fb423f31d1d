package server

import (
	"lumen/internal/middleware"
	"lumen/internal/models"
	"lumen/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetFeed handles GET /api/posts?type=home|explore&page=N
func (s *Server) GetFeed(c *fiber.Ctx) error {
	feed, err := s.feed.GetFeed(c.UserContext(), service.FeedInput{
		ViewerID: middleware.UserID(c),
		Mode:     c.Query("type", service.ModeHome),
		Page:     c.QueryInt("page", 0),
	})
	if err != nil {
		return RespondWithError(c, err)
	}
	return c.JSON(feed)
}

// GetUserFeed handles GET /api/posts/user/:username
func (s *Server) GetUserFeed(c *fiber.Ctx) error {
	feed, err := s.feed.GetFeed(c.UserContext(), service.FeedInput{
		ViewerID: middleware.UserID(c),
		Username: c.Params("username"),
		Mode:     service.ModeByUsername,
		Page:     c.QueryInt("page", 0),
	})
	if err != nil {
		return RespondWithError(c, err)
	}
	return c.JSON(feed)
}

// CreatePost handles POST /api/posts
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var req struct {
		Content string         `json:"content"`
		Files   []models.Media `json:"files"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	post, err := s.posts.CreatePost(c.UserContext(), service.CreatePostInput{
		UID:     middleware.UserID(c),
		Content: req.Content,
		Files:   req.Files,
	})
	if err != nil {
		return RespondWithError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

// UpdatePost handles PUT /api/posts/:id
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	var req struct {
		Content *string        `json:"content"`
		Files   []models.Media `json:"files"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	post, err := s.posts.UpdatePost(c.UserContext(), service.UpdatePostInput{
		PostID:  c.Params("id"),
		UID:     middleware.UserID(c),
		Content: req.Content,
		Files:   req.Files,
	})
	if err != nil {
		return RespondWithError(c, err)
	}
	return c.JSON(post)
}

// DeletePost handles DELETE /api/posts/:id
func (s *Server) DeletePost(c *fiber.Ctx) error {
	err := s.posts.DeletePost(c.UserContext(), service.DeletePostInput{
		PostID: c.Params("id"),
		UID:    middleware.UserID(c),
	})
	if err != nil {
		return RespondWithError(c, err)
	}
	return messageResponse(c, "Post deleted successfully")
}

// LikePost handles POST /api/posts/:id/like
func (s *Server) LikePost(c *fiber.Ctx) error {
	if err := s.social.Like(c.UserContext(), c.Params("id"), middleware.UserID(c)); err != nil {
		return RespondWithError(c, err)
	}
	return messageResponse(c, "Post liked")
}

// UnlikePost handles DELETE /api/posts/:id/like
func (s *Server) UnlikePost(c *fiber.Ctx) error {
	if err := s.social.Unlike(c.UserContext(), c.Params("id"), middleware.UserID(c)); err != nil {
		return RespondWithError(c, err)
	}
	return messageResponse(c, "Post unliked")
}

// GetComments handles GET /api/posts/:id/comments
func (s *Server) GetComments(c *fiber.Ctx) error {
	comments, err := s.feed.GetComments(c.UserContext(), c.Params("id"))
	if err != nil {
		return RespondWithError(c, err)
	}
	return c.JSON(comments)
}

// CreateComment handles POST /api/posts/:id/comments
func (s *Server) CreateComment(c *fiber.Ctx) error {
	var req struct {
		Content string `json:"content"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	comment, err := s.social.AddComment(c.UserContext(), service.AddCommentInput{
		PostID:  c.Params("id"),
		UID:     middleware.UserID(c),
		Content: req.Content,
	})
	if err != nil {
		return RespondWithError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(comment)
}

// DeleteComment handles DELETE /api/posts/:id/comments/:commentId
func (s *Server) DeleteComment(c *fiber.Ctx) error {
	err := s.social.RemoveComment(c.UserContext(), service.RemoveCommentInput{
		PostID:    c.Params("id"),
		CommentID: c.Params("commentId"),
		UID:       middleware.UserID(c),
	})
	if err != nil {
		return RespondWithError(c, err)
	}
	return messageResponse(c, "Comment deleted successfully")
}
