package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"strings"
	"testing"

	"sidequest/internal/cache"
	"sidequest/internal/models"
	"sidequest/internal/repository"
	"sidequest/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingAssetRepo wraps a real repository but refuses inserts.
type failingAssetRepo struct {
	repository.AssetRepository
	createErr error
}

func (f failingAssetRepo) Create(context.Context, *models.Asset) error {
	return f.createErr
}

func TestAssetService_UploadForUser(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()
	u := h.register(t, "owner@example.com")

	asset, err := h.assetSvc.UploadForUser(ctx, u.ID, u.ID, testutil.DataURL("image/png", testutil.PNG(8, 6)))
	require.NoError(t, err)
	assert.Equal(t, "png", asset.Extension)
	assert.Equal(t, 8, asset.Width)
	assert.Equal(t, 6, asset.Height)
	assert.Len(t, asset.Salt, saltLength)
	assert.Equal(t, "https://cdn.example.test/assets/"+asset.Salt+".png", asset.URL)
	require.NotNil(t, asset.UserID)
	assert.Equal(t, u.ID, *asset.UserID)

	_, ok := h.store.Get(asset.ObjectKey())
	assert.True(t, ok)

	reloaded, err := h.assetSvc.GetAsset(ctx, asset.ID)
	require.NoError(t, err)
	assert.Equal(t, asset.URL, reloaded.URL)

	profile, err := h.userSvc.GetUser(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, profile.Assets, 1)
}

func TestAssetService_FormatsAndRejections(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()
	u := h.register(t, "owner@example.com")
	owner := AssetOwner{UserID: &u.ID}

	cases := []struct {
		name    string
		data    string
		wantExt string
		code    string
	}{
		{name: "jpeg data url", data: testutil.DataURL("image/jpeg", testutil.JPEG(5, 5)), wantExt: "jpg"},
		{name: "gif data url", data: testutil.DataURL("image/gif", testutil.GIF(5, 5)), wantExt: "gif"},
		{name: "bare base64 png", data: base64.StdEncoding.EncodeToString(testutil.PNG(3, 3)), wantExt: "png"},
		{name: "unsupported type", data: testutil.DataURL("image/bmp", []byte("BM not really")), code: models.CodeValidation},
		{name: "text payload", data: base64.StdEncoding.EncodeToString([]byte("hello world")), code: models.CodeValidation},
		{name: "declared type mismatch", data: testutil.DataURL("image/gif", testutil.PNG(2, 2)), code: models.CodeValidation},
		{name: "not base64", data: "data:image/png;base64,!!!", code: models.CodeValidation},
		{name: "empty", data: "", code: models.CodeValidation},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			before := h.store.Count()
			asset, err := h.assetSvc.Ingest(ctx, tc.data, owner)
			if tc.code != "" {
				assertCode(t, err, tc.code)
				assert.Nil(t, asset)
				assert.Equal(t, before, h.store.Count(), "rejected uploads store nothing")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantExt, asset.Extension)
		})
	}
}

func TestAssetService_DownscalesLargeImages(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()
	u := h.register(t, "owner@example.com")

	asset, err := h.assetSvc.Ingest(ctx, testutil.DataURL("image/png", testutil.PNG(256, 128)), AssetOwner{UserID: &u.ID})
	require.NoError(t, err)
	assert.Equal(t, 64, asset.Width)
	assert.Equal(t, 32, asset.Height)

	stored, ok := h.store.Get(asset.ObjectKey())
	require.True(t, ok)
	cfg, format, err := image.DecodeConfig(bytes.NewReader(stored))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 64, cfg.Width)
}

func TestAssetService_UploadFailureLeavesNoRow(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()
	u := h.register(t, "owner@example.com")
	h.store.FailPuts(errors.New("bucket unavailable"))

	_, err := h.assetSvc.UploadForUser(ctx, u.ID, u.ID, testutil.DataURL("image/png", testutil.PNG(4, 4)))
	assertCode(t, err, models.CodeUploadFailed)
	assert.Equal(t, 502, models.StatusFor(err))

	all, err := h.assetSvc.ListAssets(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestAssetService_PersistFailureRemovesObject(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()
	u := h.register(t, "owner@example.com")

	svc := NewAssetService(
		failingAssetRepo{AssetRepository: h.assets, createErr: models.NewInternalError(errors.New("disk full"))},
		h.users, h.jobs, h.store, h.cache, discardLogger(), AssetOptions{},
	)
	_, err := svc.Ingest(ctx, testutil.DataURL("image/png", testutil.PNG(4, 4)), AssetOwner{UserID: &u.ID})
	assertCode(t, err, models.CodeInternal)
	assert.Equal(t, 0, h.store.Count())
}

func TestAssetService_JobAssets(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()
	poster := h.register(t, "poster@example.com")
	other := h.register(t, "other@example.com")
	job := h.postJob(t, poster, "Clean gutters")
	img := testutil.DataURL("image/png", testutil.PNG(4, 4))

	_, err := h.assetSvc.UploadForJob(ctx, other.ID, job.ID, img)
	assertCode(t, err, models.CodeForbidden)

	_, err = h.jobSvc.GetJob(ctx, job.ID)
	require.NoError(t, err)

	asset, err := h.assetSvc.UploadForJob(ctx, poster.ID, job.ID, img)
	require.NoError(t, err)
	assert.False(t, h.redis.Exists(cache.JobKey(job.ID)))

	got, err := h.jobSvc.GetJob(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, got.Assets, 1)
	assert.Equal(t, asset.URL, got.Assets[0].URL)

	_, err = h.assetSvc.DeleteAsset(ctx, other.ID, asset.ID)
	assertCode(t, err, models.CodeForbidden)

	_, err = h.assetSvc.DeleteAsset(ctx, poster.ID, asset.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, h.store.Count())
}

func TestAssetService_RequiresSingleOwner(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	one := uint(1)

	_, err := h.assetSvc.Ingest(context.Background(), testutil.DataURL("image/png", testutil.PNG(2, 2)), AssetOwner{})
	assertCode(t, err, models.CodeValidation)
	_, err = h.assetSvc.Ingest(context.Background(), testutil.DataURL("image/png", testutil.PNG(2, 2)), AssetOwner{UserID: &one, JobID: &one})
	assertCode(t, err, models.CodeValidation)
}

func TestRandomSalt(t *testing.T) {
	t.Parallel()
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		salt, err := randomSalt()
		require.NoError(t, err)
		require.Len(t, salt, saltLength)
		for _, r := range salt {
			assert.True(t, strings.ContainsRune(saltAlphabet, r), "unexpected rune %q", r)
		}
		seen[salt] = true
	}
	assert.Len(t, seen, 50)
}

func TestSplitDataURL(t *testing.T) {
	t.Parallel()
	mime, payload := splitDataURL("data:image/PNG;base64,AAAA")
	assert.Equal(t, "image/png", mime)
	assert.Equal(t, "AAAA", payload)

	mime, payload = splitDataURL("  QUJD  ")
	assert.Empty(t, mime)
	assert.Equal(t, "QUJD", payload)

	_, payload = splitDataURL("data:image/png;base64")
	assert.Empty(t, payload)
}

func TestAssetService_RejectsOversizedHeader(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()
	u := h.register(t, "owner@example.com")

	forged := testutil.ForgedPNG(40000, 40000)
	require.Less(t, len(forged), 1024)

	_, err := h.assetSvc.UploadForUser(ctx, u.ID, u.ID, testutil.DataURL("image/png", forged))
	assertCode(t, err, models.CodeValidation)
	assert.Contains(t, err.Error(), "dimensions too large")
	assert.Equal(t, 0, h.store.Count())

	small := NewAssetService(h.assets, h.users, h.jobs, h.store, h.cache, discardLogger(),
		AssetOptions{MaxDimension: 64, MaxPixels: 15})
	_, err = small.Ingest(ctx, testutil.DataURL("image/png", testutil.PNG(4, 4)), AssetOwner{UserID: &u.ID})
	assertCode(t, err, models.CodeValidation)

	asset, err := small.Ingest(ctx, testutil.DataURL("image/png", testutil.PNG(3, 5)), AssetOwner{UserID: &u.ID})
	require.NoError(t, err)
	assert.Equal(t, 15, asset.Width*asset.Height)
}
