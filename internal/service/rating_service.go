package service

import (
	"context"

	"sidequest/internal/models"
	"sidequest/internal/repository"
	"sidequest/internal/validation"
)

type RatingService struct {
	ratingRepo repository.RatingRepository
	userRepo   repository.UserRepository
}

type CreateRatingInput struct {
	Rate        int    `json:"rate" validate:"gte=1,lte=5"`
	Description string `json:"description" validate:"max=2000"`
}

type UpdateRatingInput struct {
	Rate        *int    `json:"rate" validate:"omitnil,gte=1,lte=5"`
	Description *string `json:"description" validate:"omitnil,max=2000"`
}

func NewRatingService(ratingRepo repository.RatingRepository, userRepo repository.UserRepository) *RatingService {
	return &RatingService{ratingRepo: ratingRepo, userRepo: userRepo}
}

// CreateRating records posterID's rating of posteeID.
func (s *RatingService) CreateRating(ctx context.Context, actorID, posterID, posteeID uint, in CreateRatingInput) (*models.Rating, error) {
	if actorID != posterID {
		return nil, models.NewForbiddenError("You can only rate as yourself")
	}
	if posterID == posteeID {
		return nil, models.NewValidationError("You cannot rate yourself")
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if _, err := s.userRepo.GetByID(ctx, posterID); err != nil {
		return nil, err
	}
	if _, err := s.userRepo.GetByID(ctx, posteeID); err != nil {
		return nil, err
	}

	rating := &models.Rating{Rate: in.Rate, Description: in.Description}
	if err := s.ratingRepo.Create(ctx, rating, posterID, posteeID); err != nil {
		return nil, err
	}
	return s.ratingRepo.GetByID(ctx, rating.ID)
}

func (s *RatingService) GetRating(ctx context.Context, id uint) (*models.Rating, error) {
	return s.ratingRepo.GetByID(ctx, id)
}

func (s *RatingService) ListRatings(ctx context.Context) ([]models.Rating, error) {
	return s.ratingRepo.List(ctx)
}

func (s *RatingService) UpdateRating(ctx context.Context, actorID, id uint, in UpdateRatingInput) (*models.Rating, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	rating, err := s.ratingRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !rating.HasPoster(actorID) {
		return nil, models.NewForbiddenError("Only the author can edit this rating")
	}

	if in.Rate != nil {
		rating.Rate = *in.Rate
	}
	if in.Description != nil {
		rating.Description = *in.Description
	}
	if err := s.ratingRepo.Update(ctx, rating); err != nil {
		return nil, err
	}
	return s.ratingRepo.GetByID(ctx, id)
}

func (s *RatingService) DeleteRating(ctx context.Context, actorID, id uint) (*models.Rating, error) {
	rating, err := s.ratingRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !rating.HasPoster(actorID) {
		return nil, models.NewForbiddenError("Only the author can delete this rating")
	}
	if err := s.ratingRepo.Delete(ctx, id); err != nil {
		return nil, err
	}
	return rating, nil
}
