package server

import (
	"strings"

	"sidequest/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetJobs handles GET /api/job/
// @Summary List jobs
// @Tags jobs
// @Produce json
// @Success 200 {object} object{jobs=[]models.Job}
// @Router /job/ [get]
func (s *Server) GetJobs(c *fiber.Ctx) error {
	jobs, err := s.jobService.ListJobs(c.UserContext())
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(fiber.Map{"jobs": jobs})
}

// FilterJobs handles GET /api/job/filter/?search=term
// @Summary Search jobs
// @Description Jobs whose title contains the search term
// @Tags jobs
// @Produce json
// @Param search query string false "Title substring"
// @Success 200 {object} object{jobs=[]models.Job}
// @Router /job/filter/ [get]
func (s *Server) FilterJobs(c *fiber.Ctx) error {
	jobs, err := s.jobService.SearchJobs(c.UserContext(), strings.TrimSpace(c.Query("search")))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(fiber.Map{"jobs": jobs})
}

// CreateJob handles POST /api/user/:id/job/
// @Summary Post a job
// @Tags jobs
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Poster user ID"
// @Param request body service.CreateJobInput true "Job"
// @Success 201 {object} models.Job
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /user/{id}/job/ [post]
func (s *Server) CreateJob(c *fiber.Ctx) error {
	posterID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req service.CreateJobInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	job, err := s.jobService.CreateJob(c.UserContext(), actorID(c), posterID, req)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(job)
}

// ApplyToJob handles POST /api/user/:id/job/:job_id/
// @Summary Apply to a job
// @Description Adds the user to the job's potential workers
// @Tags jobs
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Param job_id path int true "Job ID"
// @Success 201 {object} models.Job
// @Failure 400 {object} models.ErrorResponse
// @Router /user/{id}/job/{job_id}/ [post]
func (s *Server) ApplyToJob(c *fiber.Ctx) error {
	userID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	jobID, err := s.parseID(c, "job_id")
	if err != nil {
		return nil
	}

	job, err := s.jobService.ApplyToJob(c.UserContext(), actorID(c), userID, jobID)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(job)
}

// PickReceiver handles POST /api/job/:id/user/:user_id/
// @Summary Pick the worker
// @Description Moves an applicant to receiver and marks the job taken
// @Tags jobs
// @Produce json
// @Security BearerAuth
// @Param id path int true "Job ID"
// @Param user_id path int true "Applicant user ID"
// @Success 200 {object} models.Job
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /job/{id}/user/{user_id}/ [post]
func (s *Server) PickReceiver(c *fiber.Ctx) error {
	jobID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	userID, err := s.parseID(c, "user_id")
	if err != nil {
		return nil
	}

	job, err := s.jobService.PickReceiver(c.UserContext(), actorID(c), jobID, userID)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(job)
}

// MarkJobDone handles POST /api/job/:id/done/
// @Summary Complete a job
// @Tags jobs
// @Produce json
// @Security BearerAuth
// @Param id path int true "Job ID"
// @Success 200 {object} models.Job
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /job/{id}/done/ [post]
func (s *Server) MarkJobDone(c *fiber.Ctx) error {
	jobID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	job, err := s.jobService.MarkDone(c.UserContext(), actorID(c), jobID)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(job)
}

// GetJob handles GET /api/job/:id/
// @Summary Get job
// @Tags jobs
// @Produce json
// @Param id path int true "Job ID"
// @Success 200 {object} models.Job
// @Failure 404 {object} models.ErrorResponse
// @Router /job/{id}/ [get]
func (s *Server) GetJob(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	job, err := s.jobService.GetJob(c.UserContext(), id)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(job)
}

// UpdateJob handles POST /api/job/:id/
// @Summary Update job
// @Tags jobs
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Job ID"
// @Param request body service.UpdateJobInput true "Changed fields"
// @Success 200 {object} models.Job
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /job/{id}/ [post]
func (s *Server) UpdateJob(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req service.UpdateJobInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	job, err := s.jobService.UpdateJob(c.UserContext(), actorID(c), id, req)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(job)
}

// DeleteJob handles DELETE /api/job/:id/
// @Summary Delete job
// @Tags jobs
// @Produce json
// @Security BearerAuth
// @Param id path int true "Job ID"
// @Success 200 {object} models.Job
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /job/{id}/ [delete]
func (s *Server) DeleteJob(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	job, err := s.jobService.DeleteJob(c.UserContext(), actorID(c), id)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(job)
}
