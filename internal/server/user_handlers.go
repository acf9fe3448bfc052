package server

import (
	"sidequest/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetUsers handles GET /api/user/
// @Summary List users
// @Tags users
// @Produce json
// @Success 200 {object} object{users=[]models.User}
// @Router /user/ [get]
func (s *Server) GetUsers(c *fiber.Ctx) error {
	users, err := s.userService.ListUsers(c.UserContext())
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(fiber.Map{"users": users})
}

// GetUser handles GET /api/user/:id/
// @Summary Get user
// @Description Profile with jobs, ratings and images
// @Tags users
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} models.User
// @Failure 404 {object} models.ErrorResponse
// @Router /user/{id}/ [get]
func (s *Server) GetUser(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	user, err := s.userService.GetUser(c.UserContext(), id)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(user)
}

// UpdateUser handles POST /api/user/:id/
// @Summary Update user
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Param request body service.UpdateUserInput true "Profile fields"
// @Success 200 {object} models.User
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /user/{id}/ [post]
func (s *Server) UpdateUser(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req service.UpdateUserInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	user, err := s.userService.UpdateUser(c.UserContext(), actorID(c), id, req)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(user)
}

// DeleteUser handles DELETE /api/user/:id/
// @Summary Delete user
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 200 {object} models.User
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /user/{id}/ [delete]
func (s *Server) DeleteUser(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	user, err := s.userService.DeleteUser(c.UserContext(), actorID(c), id)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(user)
}
