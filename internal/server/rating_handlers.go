package server

import (
	"sidequest/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetRatings handles GET /api/rating/
// @Summary List ratings
// @Tags ratings
// @Produce json
// @Success 200 {object} object{ratings=[]models.Rating}
// @Router /rating/ [get]
func (s *Server) GetRatings(c *fiber.Ctx) error {
	ratings, err := s.ratingService.ListRatings(c.UserContext())
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(fiber.Map{"ratings": ratings})
}

// CreateRating handles POST /api/user/:id/rating/:postee_id/
// @Summary Rate a user
// @Tags ratings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Author user ID"
// @Param postee_id path int true "Rated user ID"
// @Param request body service.CreateRatingInput true "Rating"
// @Success 201 {object} models.Rating
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /user/{id}/rating/{postee_id}/ [post]
func (s *Server) CreateRating(c *fiber.Ctx) error {
	posterID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	posteeID, err := s.parseID(c, "postee_id")
	if err != nil {
		return nil
	}
	var req service.CreateRatingInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	rating, err := s.ratingService.CreateRating(c.UserContext(), actorID(c), posterID, posteeID, req)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(rating)
}

// GetRating handles GET /api/rating/:id/
// @Summary Get rating
// @Tags ratings
// @Produce json
// @Param id path int true "Rating ID"
// @Success 200 {object} models.Rating
// @Failure 404 {object} models.ErrorResponse
// @Router /rating/{id}/ [get]
func (s *Server) GetRating(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	rating, err := s.ratingService.GetRating(c.UserContext(), id)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(rating)
}

// UpdateRating handles POST /api/rating/:id/
// @Summary Update rating
// @Tags ratings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Rating ID"
// @Param request body service.UpdateRatingInput true "Changed fields"
// @Success 200 {object} models.Rating
// @Failure 403 {object} models.ErrorResponse
// @Router /rating/{id}/ [post]
func (s *Server) UpdateRating(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req service.UpdateRatingInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	rating, err := s.ratingService.UpdateRating(c.UserContext(), actorID(c), id, req)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(rating)
}

// DeleteRating handles DELETE /api/rating/:id/
// @Summary Delete rating
// @Tags ratings
// @Produce json
// @Security BearerAuth
// @Param id path int true "Rating ID"
// @Success 200 {object} models.Rating
// @Failure 403 {object} models.ErrorResponse
// @Router /rating/{id}/ [delete]
func (s *Server) DeleteRating(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	rating, err := s.ratingService.DeleteRating(c.UserContext(), actorID(c), id)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(rating)
}
