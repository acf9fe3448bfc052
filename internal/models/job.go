package models

import (
	"time"
)

// Job is a side quest posted by one user and taken by at most one other.
type Job struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Title          string    `gorm:"not null;index" json:"title"`
	Description    string    `gorm:"type:text;not null" json:"description"`
	Location       string    `gorm:"not null" json:"location"`
	DateCreated    time.Time `gorm:"not null" json:"date_created"`
	DateActivity   string    `gorm:"not null" json:"date_activity"`
	Duration       int       `gorm:"not null" json:"duration"`
	Reward         string    `gorm:"not null" json:"reward"`
	Done           bool      `gorm:"not null;default:false" json:"done"`
	Taken          bool      `gorm:"not null;default:false" json:"taken"`
	Category       string    `json:"category,omitempty"`
	Latitude       *float64  `json:"latitude,omitempty"`
	Longitude      *float64  `json:"longitude,omitempty"`
	OtherNotes     string    `gorm:"type:text" json:"other_notes,omitempty"`
	RelevantSkills string    `gorm:"type:text" json:"relevant_skills,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`

	Assets    []Asset `gorm:"foreignKey:JobID" json:"asset,omitempty"`
	Poster    []User  `gorm:"many2many:job_posters;" json:"poster,omitempty"`
	Receiver  []User  `gorm:"many2many:job_receivers;" json:"receiver,omitempty"`
	Potential []User  `gorm:"many2many:job_potentials;" json:"potential,omitempty"`
}

// HasPoster reports whether userID posted the job. Poster must be loaded.
func (j *Job) HasPoster(userID uint) bool {
	return containsUser(j.Poster, userID)
}

// HasReceiver reports whether userID is the job's receiver. Receiver must be loaded.
func (j *Job) HasReceiver(userID uint) bool {
	return containsUser(j.Receiver, userID)
}

// HasPotential reports whether userID applied to the job. Potential must be loaded.
func (j *Job) HasPotential(userID uint) bool {
	return containsUser(j.Potential, userID)
}

func containsUser(users []User, id uint) bool {
	for _, u := range users {
		if u.ID == id {
			return true
		}
	}
	return false
}
