package repository

import (
	"context"
	"testing"

	"sidequest/internal/models"
	"sidequest/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssetRepository(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewAssetRepository(db)
	ctx := context.Background()

	owner := createUser(t, db, "owner@example.com")
	uid := owner.ID

	asset := &models.Asset{BaseURL: "https://cdn.test/b", Salt: "CCCCCCCCCCCCCCCC", Extension: "jpg", Width: 4, Height: 3, UserID: &uid}
	require.NoError(t, repo.Create(ctx, asset))
	assert.Equal(t, "https://cdn.test/b/CCCCCCCCCCCCCCCC.jpg", asset.URL)

	got, err := repo.GetByID(ctx, asset.ID)
	require.NoError(t, err)
	assert.Equal(t, asset.URL, got.URL)
	assert.Equal(t, 4, got.Width)

	byUser, err := repo.ListByUser(ctx, owner.ID)
	require.NoError(t, err)
	assert.Len(t, byUser, 1)

	byJob, err := repo.ListByJob(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, byJob)

	require.NoError(t, repo.Delete(ctx, asset.ID))
	assert.True(t, models.HasCode(repo.Delete(ctx, asset.ID), models.CodeNotFound))
}
