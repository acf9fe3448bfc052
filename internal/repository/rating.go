package repository

import (
	"context"

	"sidequest/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RatingRepository defines persistence operations for ratings.
type RatingRepository interface {
	Create(ctx context.Context, rating *models.Rating, posterID, posteeID uint) error
	GetByID(ctx context.Context, id uint) (*models.Rating, error)
	List(ctx context.Context) ([]models.Rating, error)
	Update(ctx context.Context, rating *models.Rating) error
	Delete(ctx context.Context, id uint) error
}

type ratingRepository struct {
	db *gorm.DB
}

// NewRatingRepository returns a new RatingRepository implementation.
func NewRatingRepository(db *gorm.DB) RatingRepository {
	return &ratingRepository{db: db}
}

func (r *ratingRepository) Create(ctx context.Context, rating *models.Rating, posterID, posteeID uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(rating).Error; err != nil {
			return err
		}
		if err := tx.Exec("INSERT INTO rating_posters (rating_id, user_id) VALUES (?, ?)", rating.ID, posterID).Error; err != nil {
			return err
		}
		return tx.Exec("INSERT INTO rating_postees (rating_id, user_id) VALUES (?, ?)", rating.ID, posteeID).Error
	})
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *ratingRepository) GetByID(ctx context.Context, id uint) (*models.Rating, error) {
	var rating models.Rating
	if err := r.db.WithContext(ctx).Preload("Poster").Preload("Postee").First(&rating, id).Error; err != nil {
		return nil, notFoundOr(err, "Rating", id)
	}
	return &rating, nil
}

func (r *ratingRepository) List(ctx context.Context) ([]models.Rating, error) {
	var ratings []models.Rating
	if err := r.db.WithContext(ctx).Preload("Poster").Preload("Postee").Order("id ASC").Find(&ratings).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return ratings, nil
}

func (r *ratingRepository) Update(ctx context.Context, rating *models.Rating) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Save(rating).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *ratingRepository) Delete(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, table := range []string{"rating_posters", "rating_postees"} {
			if err := tx.Exec("DELETE FROM "+table+" WHERE rating_id = ?", id).Error; err != nil {
				return err
			}
		}
		res := tx.Delete(&models.Rating{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundError("Rating", id)
		}
		return nil
	})
	if err != nil {
		return passThrough(err)
	}
	return nil
}
