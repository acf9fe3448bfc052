// Package models contains data structures for the application's domain models.
package models

import (
	"time"
)

// User represents an account in the side quest application.
type User struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	Email             string    `gorm:"uniqueIndex;not null" json:"email"`
	PasswordDigest    string    `gorm:"not null" json:"-"`
	First             string    `gorm:"not null" json:"first"`
	Last              string    `gorm:"not null" json:"last"`
	PhoneNumber       string    `json:"phone_number"`
	SessionToken      string    `gorm:"uniqueIndex;not null" json:"-"`
	SessionExpiration time.Time `gorm:"not null" json:"-"`
	UpdateToken       string    `gorm:"uniqueIndex;not null" json:"-"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`

	Assets          []Asset  `gorm:"foreignKey:UserID" json:"assets,omitempty"`
	JobsAsPoster    []Job    `gorm:"many2many:job_posters;" json:"job_as_poster,omitempty"`
	JobsAsReceiver  []Job    `gorm:"many2many:job_receivers;" json:"job_as_receiver,omitempty"`
	JobsAsPotential []Job    `gorm:"many2many:job_potentials;" json:"job_as_potential,omitempty"`
	RatingsAsPoster []Rating `gorm:"many2many:rating_posters;" json:"rating_as_poster,omitempty"`
	RatingsAsPostee []Rating `gorm:"many2many:rating_postees;" json:"rating_as_postee,omitempty"`
	Chats           []Chat   `gorm:"many2many:chat_members;" json:"-"`
}

// Session is the credential bundle handed to a client after register, login
// or renewal. It is the only place tokens are serialised.
type Session struct {
	SessionToken      string    `json:"session_token"`
	SessionExpiration time.Time `json:"session_expiration"`
	UpdateToken       string    `json:"update_token"`
}

// SessionOf returns the current credential bundle held by u.
func SessionOf(u *User) Session {
	return Session{
		SessionToken:      u.SessionToken,
		SessionExpiration: u.SessionExpiration,
		UpdateToken:       u.UpdateToken,
	}
}

// SessionValid reports whether token is u's live session token at instant now.
func (u *User) SessionValid(token string, now time.Time) bool {
	if u == nil || token == "" {
		return false
	}
	return u.SessionToken == token && now.Before(u.SessionExpiration)
}
