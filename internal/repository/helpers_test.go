package repository

import (
	"fmt"
	"testing"
	"time"

	"sidequest/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func createUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()
	u := &models.User{
		Email:             email,
		PasswordDigest:    "digest",
		First:             "Test",
		Last:              "User",
		SessionToken:      "session-" + email,
		SessionExpiration: time.Now().Add(time.Hour),
		UpdateToken:       "update-" + email,
	}
	require.NoError(t, NewUserRepository(db).Create(t.Context(), u))
	return u
}

func createJob(t *testing.T, db *gorm.DB, posterID uint, title string) *models.Job {
	t.Helper()
	j := &models.Job{
		Title:        title,
		Description:  fmt.Sprintf("%s description", title),
		Location:     "Ithaca",
		DateCreated:  time.Now().UTC(),
		DateActivity: "Saturday",
		Duration:     60,
		Reward:       "$20",
	}
	require.NoError(t, NewJobRepository(db).Create(t.Context(), j, posterID))
	return j
}
