package service

import (
	"context"
	"log/slog"

	"sidequest/internal/cache"
	"sidequest/internal/models"
	"sidequest/internal/repository"
	"sidequest/internal/storage"
	"sidequest/internal/validation"
)

type UserService struct {
	userRepo  repository.UserRepository
	assetRepo repository.AssetRepository
	store     storage.ObjectStore
	cache     *cache.Store
	logger    *slog.Logger
}

// UpdateUserInput carries the editable profile fields. Every field is replaced.
type UpdateUserInput struct {
	Email       string `json:"email" validate:"required,email"`
	First       string `json:"first" validate:"required"`
	Last        string `json:"last" validate:"required"`
	PhoneNumber string `json:"phone_number" validate:"required"`
}

func NewUserService(
	userRepo repository.UserRepository,
	assetRepo repository.AssetRepository,
	store storage.ObjectStore,
	cacheStore *cache.Store,
	logger *slog.Logger,
) *UserService {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserService{
		userRepo:  userRepo,
		assetRepo: assetRepo,
		store:     store,
		cache:     cacheStore,
		logger:    logger,
	}
}

func (s *UserService) ListUsers(ctx context.Context) ([]models.User, error) {
	return s.userRepo.List(ctx)
}

// GetUser returns the user with assets, jobs and ratings attached.
func (s *UserService) GetUser(ctx context.Context, id uint) (*models.User, error) {
	return s.userRepo.GetByIDWithRelations(ctx, id)
}

func (s *UserService) UpdateUser(ctx context.Context, actorID, id uint, in UpdateUserInput) (*models.User, error) {
	if actorID != id {
		return nil, models.NewForbiddenError("You can only edit your own profile")
	}
	in.Email = normalizeEmail(in.Email)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	user.Email = in.Email
	user.First = in.First
	user.Last = in.Last
	user.PhoneNumber = in.PhoneNumber

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	s.invalidateLinkedJobs(ctx, id)
	return s.userRepo.GetByIDWithRelations(ctx, id)
}

// DeleteUser removes the account and everything hanging off it, then drops
// the stored image objects. Object removal is best effort.
func (s *UserService) DeleteUser(ctx context.Context, actorID, id uint) (*models.User, error) {
	if actorID != id {
		return nil, models.NewForbiddenError("You can only delete your own account")
	}
	user, err := s.userRepo.GetByIDWithRelations(ctx, id)
	if err != nil {
		return nil, err
	}
	linked, err := s.userRepo.LinkedJobIDs(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.userRepo.Delete(ctx, id); err != nil {
		return nil, err
	}

	removeObjects(ctx, s.store, s.logger, user.Assets)
	s.cache.InvalidateJobs(ctx, linked...)
	return user, nil
}

func (s *UserService) invalidateLinkedJobs(ctx context.Context, id uint) {
	linked, err := s.userRepo.LinkedJobIDs(ctx, id)
	if err != nil {
		s.logger.WarnContext(ctx, "could not resolve jobs to invalidate",
			slog.Uint64("user_id", uint64(id)),
			slog.String("error", err.Error()),
		)
		return
	}
	s.cache.InvalidateJobs(ctx, linked...)
}

func removeObjects(ctx context.Context, store storage.ObjectStore, logger *slog.Logger, assets []models.Asset) {
	if store == nil {
		return
	}
	for i := range assets {
		key := assets[i].ObjectKey()
		if err := store.Delete(ctx, key); err != nil {
			logger.WarnContext(ctx, "failed to remove stored object",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
	}
}
