package models

import "time"

// Rating is a 1..5 score one user leaves for another.
type Rating struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Rate        int       `gorm:"not null" json:"rate"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Poster []User `gorm:"many2many:rating_posters;" json:"poster,omitempty"`
	Postee []User `gorm:"many2many:rating_postees;" json:"postee,omitempty"`
}

// HasPoster reports whether userID authored the rating. Poster must be loaded.
func (r *Rating) HasPoster(userID uint) bool {
	return containsUser(r.Poster, userID)
}
