package service

import (
	"context"
	"testing"

	"sidequest/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRatingService_Lifecycle(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()
	alice := h.register(t, "alice@example.com")
	bob := h.register(t, "bob@example.com")

	_, err := h.ratingSvc.CreateRating(ctx, alice.ID, alice.ID, alice.ID, CreateRatingInput{Rate: 5})
	assertCode(t, err, models.CodeValidation)

	_, err = h.ratingSvc.CreateRating(ctx, bob.ID, alice.ID, bob.ID, CreateRatingInput{Rate: 5})
	assertCode(t, err, models.CodeForbidden)

	_, err = h.ratingSvc.CreateRating(ctx, alice.ID, alice.ID, 9999, CreateRatingInput{Rate: 5})
	assertCode(t, err, models.CodeNotFound)

	_, err = h.ratingSvc.CreateRating(ctx, alice.ID, alice.ID, bob.ID, CreateRatingInput{Rate: 6})
	assertCode(t, err, models.CodeValidation)

	rating, err := h.ratingSvc.CreateRating(ctx, alice.ID, alice.ID, bob.ID, CreateRatingInput{Rate: 4, Description: "on time"})
	require.NoError(t, err)
	assert.True(t, rating.HasPoster(alice.ID))
	require.Len(t, rating.Postee, 1)
	assert.Equal(t, bob.ID, rating.Postee[0].ID)

	three := 3
	_, err = h.ratingSvc.UpdateRating(ctx, bob.ID, rating.ID, UpdateRatingInput{Rate: &three})
	assertCode(t, err, models.CodeForbidden)

	updated, err := h.ratingSvc.UpdateRating(ctx, alice.ID, rating.ID, UpdateRatingInput{Rate: &three})
	require.NoError(t, err)
	assert.Equal(t, 3, updated.Rate)
	assert.Equal(t, "on time", updated.Description)

	_, err = h.ratingSvc.DeleteRating(ctx, bob.ID, rating.ID)
	assertCode(t, err, models.CodeForbidden)
	_, err = h.ratingSvc.DeleteRating(ctx, alice.ID, rating.ID)
	require.NoError(t, err)

	_, err = h.ratingSvc.GetRating(ctx, rating.ID)
	assertCode(t, err, models.CodeNotFound)
}
