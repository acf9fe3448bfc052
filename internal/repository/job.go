package repository

import (
	"context"
	"strings"

	"sidequest/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// JobRepository defines persistence operations for jobs and their
// poster/receiver/potential links.
type JobRepository interface {
	Create(ctx context.Context, job *models.Job, posterID uint) error
	GetByID(ctx context.Context, id uint) (*models.Job, error)
	List(ctx context.Context) ([]models.Job, error)
	Search(ctx context.Context, term string) ([]models.Job, error)
	Update(ctx context.Context, job *models.Job) error
	AddPotential(ctx context.Context, jobID, userID uint) error
	AssignReceiver(ctx context.Context, jobID, userID uint) error
	MarkDone(ctx context.Context, jobID uint) error
	Delete(ctx context.Context, id uint) error
}

type jobRepository struct {
	db *gorm.DB
}

// NewJobRepository returns a new JobRepository implementation.
func NewJobRepository(db *gorm.DB) JobRepository {
	return &jobRepository{db: db}
}

func withJobRelations(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Assets", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("Poster").
		Preload("Receiver").
		Preload("Potential")
}

func (r *jobRepository) Create(ctx context.Context, job *models.Job, posterID uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(job).Error; err != nil {
			return err
		}
		if err := tx.Exec("INSERT INTO job_posters (job_id, user_id) VALUES (?, ?)", job.ID, posterID).Error; err != nil {
			return err
		}
		// The poster's newest profile image becomes the job's picture when no
		// other job shows it yet. The row keeps its user_id.
		return tx.Exec(`UPDATE assets SET job_id = ?
			WHERE job_id IS NULL AND id = (
				SELECT id FROM assets WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT 1
			)`, job.ID, posterID).Error
	})
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *jobRepository) GetByID(ctx context.Context, id uint) (*models.Job, error) {
	var job models.Job
	if err := withJobRelations(r.db.WithContext(ctx)).First(&job, id).Error; err != nil {
		return nil, notFoundOr(err, "Job", id)
	}
	return &job, nil
}

func (r *jobRepository) List(ctx context.Context) ([]models.Job, error) {
	var jobs []models.Job
	if err := withJobRelations(r.db.WithContext(ctx)).Order("date_created DESC, id DESC").Find(&jobs).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return jobs, nil
}

// Search matches term anywhere in the title, ignoring case.
func (r *jobRepository) Search(ctx context.Context, term string) ([]models.Job, error) {
	var jobs []models.Job
	pattern := "%" + escapeLike(strings.ToLower(term)) + "%"
	err := withJobRelations(r.db.WithContext(ctx)).
		Where("LOWER(title) LIKE ? ESCAPE '\\'", pattern).
		Order("date_created DESC, id DESC").
		Find(&jobs).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return jobs, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// jobEditableColumns are the columns a poster may change. taken and done
// only move through AssignReceiver and MarkDone.
var jobEditableColumns = []string{
	"title", "description", "location", "date_activity", "duration", "reward",
	"category", "latitude", "longitude", "other_notes", "relevant_skills", "updated_at",
}

func (r *jobRepository) Update(ctx context.Context, job *models.Job) error {
	res := r.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ?", job.ID).
		Select(jobEditableColumns).
		Updates(job)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Job", job.ID)
	}
	return nil
}

func (r *jobRepository) AddPotential(ctx context.Context, jobID, userID uint) error {
	err := r.db.WithContext(ctx).Exec(
		"INSERT INTO job_potentials (job_id, user_id) VALUES (?, ?)", jobID, userID,
	).Error
	if err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("User already applied to this job")
		}
		return models.NewInternalError(err)
	}
	return nil
}

// AssignReceiver moves userID from the potential set to the sole receiver
// and flips taken. The taken flag is compare-and-set so a job can be picked
// only once even under concurrent requests.
func (r *jobRepository) AssignReceiver(ctx context.Context, jobID, userID uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Exec("DELETE FROM job_potentials WHERE job_id = ? AND user_id = ?", jobID, userID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.NewValidationError("User is not a potential worker for this job")
		}

		res = tx.Model(&models.Job{}).
			Where("id = ? AND taken = ?", jobID, false).
			Update("taken", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.NewConflictError("Job already has a receiver")
		}

		if err := tx.Exec("DELETE FROM job_receivers WHERE job_id = ?", jobID).Error; err != nil {
			return err
		}
		return tx.Exec("INSERT INTO job_receivers (job_id, user_id) VALUES (?, ?)", jobID, userID).Error
	})
	if err != nil {
		return passThrough(err)
	}
	return nil
}

// MarkDone sets done on a taken job; done without taken is refused.
func (r *jobRepository) MarkDone(ctx context.Context, jobID uint) error {
	res := r.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ? AND taken = ?", jobID, true).
		Update("done", true)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewValidationError("Job must be taken before it can be marked done")
	}
	return nil
}

// Delete removes the job, its assets and every link to users. Profile
// images shown on the job are detached, not deleted.
func (r *jobRepository) Delete(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Asset{}).
			Where("job_id = ? AND user_id IS NOT NULL", id).
			Update("job_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Where("job_id = ?", id).Delete(&models.Asset{}).Error; err != nil {
			return err
		}
		for _, table := range []string{"job_posters", "job_receivers", "job_potentials"} {
			if err := tx.Exec("DELETE FROM "+table+" WHERE job_id = ?", id).Error; err != nil {
				return err
			}
		}
		res := tx.Delete(&models.Job{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundError("Job", id)
		}
		return nil
	})
	if err != nil {
		return passThrough(err)
	}
	return nil
}
