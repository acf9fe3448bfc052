package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// SupportedImageExtensions lists the extensions an asset may carry.
var SupportedImageExtensions = map[string]bool{
	"png":  true,
	"gif":  true,
	"jpg":  true,
	"jpeg": true,
}

// Asset is an uploaded image owned by a user or a job.
type Asset struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	BaseURL   string    `gorm:"not null" json:"-"`
	Salt      string    `gorm:"size:16;not null;uniqueIndex" json:"-"`
	Extension string    `gorm:"size:8;not null" json:"-"`
	Width     int       `gorm:"not null" json:"width"`
	Height    int       `gorm:"not null" json:"height"`
	CreatedAt time.Time `json:"created_at"`
	UserID    *uint     `gorm:"index" json:"user_id,omitempty"`
	JobID     *uint     `gorm:"index" json:"job_id,omitempty"`

	// URL is derived from BaseURL, Salt and Extension after every load.
	URL string `gorm:"-" json:"url"`
}

// ObjectKey is the storage key the image bytes live under.
func (a *Asset) ObjectKey() string {
	return a.Salt + "." + a.Extension
}

// PublicURL reconstructs the public address of the stored image.
func (a *Asset) PublicURL() string {
	return strings.TrimRight(a.BaseURL, "/") + "/" + a.ObjectKey()
}

// AfterFind fills URL for assets read from the database.
func (a *Asset) AfterFind(_ *gorm.DB) error {
	a.URL = a.PublicURL()
	return nil
}

// AfterCreate fills URL for freshly inserted assets.
func (a *Asset) AfterCreate(_ *gorm.DB) error {
	a.URL = a.PublicURL()
	return nil
}
