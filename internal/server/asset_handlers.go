package server

import (
	"sidequest/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetAssets handles GET /api/asset/
// @Summary List images
// @Tags assets
// @Produce json
// @Success 200 {object} object{assets=[]models.Asset}
// @Router /asset/ [get]
func (s *Server) GetAssets(c *fiber.Ctx) error {
	assets, err := s.assetService.ListAssets(c.UserContext())
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(fiber.Map{"assets": assets})
}

// GetAsset handles GET /api/asset/:id/
// @Summary Get image
// @Tags assets
// @Produce json
// @Param id path int true "Asset ID"
// @Success 200 {object} models.Asset
// @Failure 404 {object} models.ErrorResponse
// @Router /asset/{id}/ [get]
func (s *Server) GetAsset(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	asset, err := s.assetService.GetAsset(c.UserContext(), id)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(asset)
}

// DeleteAsset handles DELETE /api/asset/:id/
// @Summary Delete image
// @Description Removes the record and the stored object
// @Tags assets
// @Produce json
// @Security BearerAuth
// @Param id path int true "Asset ID"
// @Success 200 {object} models.Asset
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /asset/{id}/ [delete]
func (s *Server) DeleteAsset(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	asset, err := s.assetService.DeleteAsset(c.UserContext(), actorID(c), id)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(asset)
}

// UploadUserAsset handles POST /api/user/:id/upload/
// @Summary Upload a profile image
// @Description image_data is a data URL (data:image/png;base64,...) or bare base64
// @Tags assets
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Param request body service.UploadAssetInput true "Image"
// @Success 201 {object} models.Asset
// @Failure 400 {object} models.ErrorResponse
// @Failure 502 {object} models.ErrorResponse
// @Router /user/{id}/upload/ [post]
func (s *Server) UploadUserAsset(c *fiber.Ctx) error {
	userID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req service.UploadAssetInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	asset, err := s.assetService.UploadForUser(c.UserContext(), actorID(c), userID, req.ImageData)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(asset)
}

// UploadJobAsset handles POST /api/job/:id/upload/
// @Summary Upload a job image
// @Tags assets
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Job ID"
// @Param request body service.UploadAssetInput true "Image"
// @Success 201 {object} models.Asset
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 502 {object} models.ErrorResponse
// @Router /job/{id}/upload/ [post]
func (s *Server) UploadJobAsset(c *fiber.Ctx) error {
	jobID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req service.UploadAssetInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	asset, err := s.assetService.UploadForJob(c.UserContext(), actorID(c), jobID, req.ImageData)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(asset)
}
