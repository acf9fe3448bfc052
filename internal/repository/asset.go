package repository

import (
	"context"

	"sidequest/internal/models"

	"gorm.io/gorm"
)

// AssetRepository defines persistence operations for uploaded images.
type AssetRepository interface {
	Create(ctx context.Context, asset *models.Asset) error
	GetByID(ctx context.Context, id uint) (*models.Asset, error)
	List(ctx context.Context) ([]models.Asset, error)
	ListByUser(ctx context.Context, userID uint) ([]models.Asset, error)
	ListByJob(ctx context.Context, jobID uint) ([]models.Asset, error)
	Delete(ctx context.Context, id uint) error
}

type assetRepository struct {
	db *gorm.DB
}

// NewAssetRepository returns a new AssetRepository implementation.
func NewAssetRepository(db *gorm.DB) AssetRepository {
	return &assetRepository{db: db}
}

func (r *assetRepository) Create(ctx context.Context, asset *models.Asset) error {
	if err := r.db.WithContext(ctx).Create(asset).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *assetRepository) GetByID(ctx context.Context, id uint) (*models.Asset, error) {
	var asset models.Asset
	if err := r.db.WithContext(ctx).First(&asset, id).Error; err != nil {
		return nil, notFoundOr(err, "Asset", id)
	}
	return &asset, nil
}

func (r *assetRepository) List(ctx context.Context) ([]models.Asset, error) {
	return r.find(ctx, r.db.WithContext(ctx))
}

func (r *assetRepository) ListByUser(ctx context.Context, userID uint) ([]models.Asset, error) {
	return r.find(ctx, r.db.WithContext(ctx).Where("user_id = ?", userID))
}

func (r *assetRepository) ListByJob(ctx context.Context, jobID uint) ([]models.Asset, error) {
	return r.find(ctx, r.db.WithContext(ctx).Where("job_id = ?", jobID))
}

func (r *assetRepository) find(_ context.Context, q *gorm.DB) ([]models.Asset, error) {
	var assets []models.Asset
	if err := q.Order("id ASC").Find(&assets).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return assets, nil
}

func (r *assetRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Asset{}, id)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Asset", id)
	}
	return nil
}
