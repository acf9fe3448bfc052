package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"sidequest/internal/cache"
	"sidequest/internal/mailer"
	"sidequest/internal/models"
	"sidequest/internal/repository"
	"sidequest/internal/storage"
	"sidequest/internal/validation"
)

type JobService struct {
	jobRepo  repository.JobRepository
	userRepo repository.UserRepository
	store    storage.ObjectStore
	cache    *cache.Store
	mail     *mailer.Dispatcher
	logger   *slog.Logger
	now      func() time.Time
}

// CreateJobInput is the body accepted by POST /api/user/:id/job/.
type CreateJobInput struct {
	Title          string   `json:"title" validate:"required,max=200"`
	Description    string   `json:"description" validate:"required"`
	Location       string   `json:"location" validate:"required"`
	DateActivity   string   `json:"date_activity" validate:"required"`
	Duration       int      `json:"duration" validate:"gte=0"`
	Reward         string   `json:"reward" validate:"required"`
	Category       string   `json:"category"`
	Latitude       *float64 `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude      *float64 `json:"longitude" validate:"omitempty,gte=-180,lte=180"`
	OtherNotes     string   `json:"other_notes"`
	RelevantSkills string   `json:"relevant_skills"`
}

// UpdateJobInput carries the fields a poster may change. Nil fields are kept.
type UpdateJobInput struct {
	Title          *string  `json:"title" validate:"omitnil,min=1,max=200"`
	Description    *string  `json:"description" validate:"omitnil,min=1"`
	Location       *string  `json:"location" validate:"omitnil,min=1"`
	DateActivity   *string  `json:"date_activity" validate:"omitnil,min=1"`
	Duration       *int     `json:"duration" validate:"omitempty,gte=0"`
	Reward         *string  `json:"reward" validate:"omitnil,min=1"`
	Category       *string  `json:"category"`
	Latitude       *float64 `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude      *float64 `json:"longitude" validate:"omitempty,gte=-180,lte=180"`
	OtherNotes     *string  `json:"other_notes"`
	RelevantSkills *string  `json:"relevant_skills"`
}

func NewJobService(
	jobRepo repository.JobRepository,
	userRepo repository.UserRepository,
	store storage.ObjectStore,
	cacheStore *cache.Store,
	mail *mailer.Dispatcher,
	logger *slog.Logger,
) *JobService {
	if logger == nil {
		logger = slog.Default()
	}
	return &JobService{
		jobRepo:  jobRepo,
		userRepo: userRepo,
		store:    store,
		cache:    cacheStore,
		mail:     mail,
		logger:   logger,
		now:      time.Now,
	}
}

// CreateJob posts a job on behalf of posterID.
func (s *JobService) CreateJob(ctx context.Context, actorID, posterID uint, in CreateJobInput) (*models.Job, error) {
	if actorID != posterID {
		return nil, models.NewForbiddenError("You can only post jobs as yourself")
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if _, err := s.userRepo.GetByID(ctx, posterID); err != nil {
		return nil, err
	}

	job := &models.Job{
		Title:          strings.TrimSpace(in.Title),
		Description:    in.Description,
		Location:       in.Location,
		DateCreated:    s.now().UTC(),
		DateActivity:   in.DateActivity,
		Duration:       in.Duration,
		Reward:         in.Reward,
		Category:       in.Category,
		Latitude:       in.Latitude,
		Longitude:      in.Longitude,
		OtherNotes:     in.OtherNotes,
		RelevantSkills: in.RelevantSkills,
	}
	if err := s.jobRepo.Create(ctx, job, posterID); err != nil {
		return nil, err
	}
	return s.jobRepo.GetByID(ctx, job.ID)
}

// GetJob serves the detail view from the cache when it can.
func (s *JobService) GetJob(ctx context.Context, id uint) (*models.Job, error) {
	var job models.Job
	err := s.cache.Aside(ctx, cache.JobKey(id), &job, cache.DefaultTTL, func() error {
		fresh, err := s.jobRepo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		job = *fresh
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (s *JobService) ListJobs(ctx context.Context) ([]models.Job, error) {
	return s.jobRepo.List(ctx)
}

// SearchJobs matches term against job titles. An empty term lists everything.
func (s *JobService) SearchJobs(ctx context.Context, term string) ([]models.Job, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return s.jobRepo.List(ctx)
	}
	return s.jobRepo.Search(ctx, term)
}

func (s *JobService) UpdateJob(ctx context.Context, actorID, id uint, in UpdateJobInput) (*models.Job, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	job, err := s.posterOnly(ctx, actorID, id, "Only the poster can edit this job")
	if err != nil {
		return nil, err
	}

	if in.Title != nil {
		job.Title = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		job.Description = *in.Description
	}
	if in.Location != nil {
		job.Location = *in.Location
	}
	if in.DateActivity != nil {
		job.DateActivity = *in.DateActivity
	}
	if in.Duration != nil {
		job.Duration = *in.Duration
	}
	if in.Reward != nil {
		job.Reward = *in.Reward
	}
	if in.Category != nil {
		job.Category = *in.Category
	}
	if in.Latitude != nil {
		job.Latitude = in.Latitude
	}
	if in.Longitude != nil {
		job.Longitude = in.Longitude
	}
	if in.OtherNotes != nil {
		job.OtherNotes = *in.OtherNotes
	}
	if in.RelevantSkills != nil {
		job.RelevantSkills = *in.RelevantSkills
	}

	if err := s.jobRepo.Update(ctx, job); err != nil {
		return nil, err
	}
	return s.fresh(ctx, id)
}

// ApplyToJob adds userID to the job's potential workers.
func (s *JobService) ApplyToJob(ctx context.Context, actorID, userID, jobID uint) (*models.Job, error) {
	if actorID != userID {
		return nil, models.NewForbiddenError("You can only apply as yourself")
	}
	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	job, err := s.jobRepo.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.HasPoster(userID) {
		return nil, models.NewValidationError("You cannot apply to your own job")
	}
	if job.HasPotential(userID) {
		return nil, models.NewConflictError("User already applied to this job")
	}

	if err := s.jobRepo.AddPotential(ctx, jobID, userID); err != nil {
		return nil, err
	}
	return s.fresh(ctx, jobID)
}

// PickReceiver turns one applicant into the job's sole receiver.
func (s *JobService) PickReceiver(ctx context.Context, actorID, jobID, userID uint) (*models.Job, error) {
	if _, err := s.posterOnly(ctx, actorID, jobID, "Only the poster can pick a worker"); err != nil {
		return nil, err
	}
	receiver, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := s.jobRepo.AssignReceiver(ctx, jobID, userID); err != nil {
		return nil, err
	}
	job, err := s.fresh(ctx, jobID)
	if err != nil {
		return nil, err
	}

	s.mail.Dispatch(mailer.ChosenForJob(receiver.Email, job.Title, job.DateActivity, job.Duration))
	return job, nil
}

// MarkDone closes a taken job and tells the poster.
func (s *JobService) MarkDone(ctx context.Context, actorID, jobID uint) (*models.Job, error) {
	job, err := s.jobRepo.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !job.HasPoster(actorID) && !job.HasReceiver(actorID) {
		return nil, models.NewForbiddenError("Only the poster or the worker can complete this job")
	}

	if err := s.jobRepo.MarkDone(ctx, jobID); err != nil {
		return nil, err
	}
	job, err = s.fresh(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if len(job.Receiver) > 0 {
		for _, poster := range job.Poster {
			s.mail.Dispatch(mailer.JobCompleted(poster.Email, job.Title, job.Receiver[0].First))
		}
	}
	return job, nil
}

// DeleteJob removes the job with its links and images.
func (s *JobService) DeleteJob(ctx context.Context, actorID, id uint) (*models.Job, error) {
	job, err := s.posterOnly(ctx, actorID, id, "Only the poster can delete this job")
	if err != nil {
		return nil, err
	}
	if err := s.jobRepo.Delete(ctx, id); err != nil {
		return nil, err
	}
	owned := make([]models.Asset, 0, len(job.Assets))
	for _, a := range job.Assets {
		if a.UserID == nil {
			owned = append(owned, a)
		}
	}
	removeObjects(ctx, s.store, s.logger, owned)
	s.cache.InvalidateJobs(ctx, id)
	return job, nil
}

func (s *JobService) posterOnly(ctx context.Context, actorID, jobID uint, msg string) (*models.Job, error) {
	job, err := s.jobRepo.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !job.HasPoster(actorID) {
		return nil, models.NewForbiddenError(msg)
	}
	return job, nil
}

// fresh drops the cached view and reloads the job from the database.
func (s *JobService) fresh(ctx context.Context, id uint) (*models.Job, error) {
	s.cache.InvalidateJobs(ctx, id)
	return s.jobRepo.GetByID(ctx, id)
}
