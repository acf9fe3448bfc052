package server

import (
	"sidequest/internal/middleware"
	"sidequest/internal/models"
	"sidequest/internal/service"

	"github.com/gofiber/fiber/v2"
)

// authResponse is returned by register and login: the account plus its
// freshly issued credentials.
type authResponse struct {
	User *models.User `json:"user"`
	models.Session
}

// Register handles POST /api/register/
// @Summary Register
// @Description Create an account and open its first session
// @Tags auth
// @Accept json
// @Produce json
// @Param request body service.RegisterInput true "Account details"
// @Success 201 {object} authResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /register/ [post]
func (s *Server) Register(c *fiber.Ctx) error {
	var req service.RegisterInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	user, err := s.authService.Register(c.UserContext(), req)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(authResponse{User: user, Session: models.SessionOf(user)})
}

// Login handles POST /api/login/
// @Summary Login
// @Description Verify credentials and issue a new session
// @Tags auth
// @Accept json
// @Produce json
// @Param request body service.LoginInput true "Credentials"
// @Success 200 {object} authResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /login/ [post]
func (s *Server) Login(c *fiber.Ctx) error {
	var req service.LoginInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	user, err := s.authService.Login(c.UserContext(), req)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(authResponse{User: user, Session: models.SessionOf(user)})
}

// RenewSession handles POST /api/session/
// @Summary Renew session
// @Description Exchange the update token (as bearer) for new credentials. Each update token works once.
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.Session
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /session/ [post]
func (s *Server) RenewSession(c *fiber.Ctx) error {
	token, err := bearerToken(c)
	if err != nil {
		return nil
	}

	user, err := s.authService.RenewSession(c.UserContext(), token)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(models.SessionOf(user))
}

// Logout handles POST /api/logout/
// @Summary Logout
// @Description Invalidate the caller's session and update tokens
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{message=string}
// @Failure 401 {object} models.ErrorResponse
// @Router /logout/ [post]
func (s *Server) Logout(c *fiber.Ctx) error {
	token, err := bearerToken(c)
	if err != nil {
		return nil
	}

	if err := s.authService.Logout(c.UserContext(), token); err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "You have successfully logged out"})
}

// Secret handles GET /api/secret/
// @Summary Session check
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{message=string,user_id=int}
// @Failure 401 {object} models.ErrorResponse
// @Router /secret/ [get]
func (s *Server) Secret(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"message": "Your session is valid",
		"user_id": actorID(c),
	})
}

// AuthRequired returns the session middleware. It accepts a bearer session
// token that exists and has not expired, and stores the user id in locals
// and in the request context.
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, err := bearerToken(c)
		if err != nil {
			return nil
		}

		user, err := s.authService.Authenticate(c.UserContext(), token)
		if err != nil {
			return s.respondError(c, err)
		}

		// Store user ID in context
		c.Locals("userID", user.ID)
		// Sync to UserContext for logging and downstream services
		c.SetUserContext(middleware.WithUserID(c.UserContext(), user.ID))

		return c.Next()
	}
}
