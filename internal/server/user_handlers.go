package server

import (
	"net/url"

	"lumen/internal/auth"
	"lumen/internal/middleware"
	"lumen/internal/models"
	"lumen/internal/service"

	"github.com/gofiber/fiber/v2"
)

// Register handles POST /api/users
func (s *Server) Register(c *fiber.Ctx) error {
	var req struct {
		Email    string `json:"email"`
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	user, err := s.users.Register(c.UserContext(), service.RegisterInput{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		return RespondWithError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(user)
}

// Login handles POST /api/auth/login. The identity is an email or a
// username.
func (s *Server) Login(c *fiber.Ctx) error {
	var req struct {
		Identity string `json:"identity"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	user, err := s.users.Authenticate(c.UserContext(), req.Identity, req.Password)
	if err != nil {
		return RespondWithError(c, err)
	}

	token, err := auth.GenerateToken(s.config.JWTSecret, user.ID, user.Username, s.config.TokenTTL())
	if err != nil {
		return RespondWithError(c, models.NewInternalError(err))
	}
	return c.JSON(fiber.Map{
		"token": token,
		"user":  user,
	})
}

// SearchProfiles handles GET /api/users/search/:text
func (s *Server) SearchProfiles(c *fiber.Ctx) error {
	text, err := url.PathUnescape(c.Params("text"))
	if err != nil {
		return badRequest(c, "Invalid search term")
	}
	profiles, err := s.users.SearchProfiles(c.UserContext(), text)
	if err != nil {
		return RespondWithError(c, err)
	}
	return c.JSON(profiles)
}

// GetProfile handles GET /api/users/:username
func (s *Server) GetProfile(c *fiber.Ctx) error {
	profile, err := s.users.GetProfile(c.UserContext(), c.Params("username"))
	if err != nil {
		return RespondWithError(c, err)
	}
	return c.JSON(profile)
}

// Follow handles POST /api/users/:id/follow
func (s *Server) Follow(c *fiber.Ctx) error {
	if err := s.social.Follow(c.UserContext(), middleware.UserID(c), c.Params("id")); err != nil {
		return RespondWithError(c, err)
	}
	return messageResponse(c, "User followed")
}

// Unfollow handles DELETE /api/users/:id/follow
func (s *Server) Unfollow(c *fiber.Ctx) error {
	if err := s.social.Unfollow(c.UserContext(), middleware.UserID(c), c.Params("id")); err != nil {
		return RespondWithError(c, err)
	}
	return messageResponse(c, "User unfollowed")
}

// ChangeAvatar handles PUT /api/users/me/avatar
func (s *Server) ChangeAvatar(c *fiber.Ctx) error {
	var req models.Avatar
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	user, err := s.users.ChangeAvatar(c.UserContext(), middleware.UserID(c), req)
	if err != nil {
		return RespondWithError(c, err)
	}
	return c.JSON(user)
}

// RemoveAvatar handles DELETE /api/users/me/avatar
func (s *Server) RemoveAvatar(c *fiber.Ctx) error {
	if err := s.users.RemoveAvatar(c.UserContext(), middleware.UserID(c)); err != nil {
		return RespondWithError(c, err)
	}
	return messageResponse(c, "Avatar removed")
}
