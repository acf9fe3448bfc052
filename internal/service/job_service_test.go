package service

import (
	"context"
	"testing"

	"sidequest/internal/cache"
	"sidequest/internal/models"
	"sidequest/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobService_CreateJob(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()
	poster := h.register(t, "poster@example.com")
	other := h.register(t, "other@example.com")

	job := h.postJob(t, poster, "  Walk my dog ")
	assert.Equal(t, "Walk my dog", job.Title)
	assert.False(t, job.Taken)
	assert.False(t, job.Done)
	assert.False(t, job.DateCreated.IsZero())
	require.Len(t, job.Poster, 1)
	assert.Equal(t, poster.ID, job.Poster[0].ID)

	_, err := h.jobSvc.CreateJob(ctx, other.ID, poster.ID, CreateJobInput{Title: "x"})
	assertCode(t, err, models.CodeForbidden)

	_, err = h.jobSvc.CreateJob(ctx, poster.ID, poster.ID, CreateJobInput{Title: "missing the rest"})
	assertCode(t, err, models.CodeValidation)

	lat := 123.0
	_, err = h.jobSvc.CreateJob(ctx, poster.ID, poster.ID, CreateJobInput{
		Title: "t", Description: "d", Location: "l", DateActivity: "now", Reward: "r", Latitude: &lat,
	})
	assertCode(t, err, models.CodeValidation)
}

func TestJobService_ApplyAndPick(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()
	poster := h.register(t, "poster@example.com")
	worker := h.register(t, "worker@example.com")
	rival := h.register(t, "rival@example.com")
	job := h.postJob(t, poster, "Paint fence")

	_, err := h.jobSvc.ApplyToJob(ctx, poster.ID, poster.ID, job.ID)
	assertCode(t, err, models.CodeValidation)

	_, err = h.jobSvc.ApplyToJob(ctx, poster.ID, worker.ID, job.ID)
	assertCode(t, err, models.CodeForbidden)

	applied, err := h.jobSvc.ApplyToJob(ctx, worker.ID, worker.ID, job.ID)
	require.NoError(t, err)
	assert.True(t, applied.HasPotential(worker.ID))

	_, err = h.jobSvc.ApplyToJob(ctx, worker.ID, worker.ID, job.ID)
	assertCode(t, err, models.CodeConflict)

	_, err = h.jobSvc.ApplyToJob(ctx, rival.ID, rival.ID, job.ID)
	require.NoError(t, err)

	t.Run("non-applicant cannot be picked", func(t *testing.T) {
		stranger := h.register(t, "stranger@example.com")
		_, err := h.jobSvc.PickReceiver(ctx, poster.ID, job.ID, stranger.ID)
		assertCode(t, err, models.CodeValidation)
	})

	t.Run("only the poster picks", func(t *testing.T) {
		_, err := h.jobSvc.PickReceiver(ctx, worker.ID, job.ID, worker.ID)
		assertCode(t, err, models.CodeForbidden)
	})

	picked, err := h.jobSvc.PickReceiver(ctx, poster.ID, job.ID, worker.ID)
	require.NoError(t, err)
	assert.True(t, picked.Taken)
	assert.True(t, picked.HasReceiver(worker.ID))
	assert.False(t, picked.HasPotential(worker.ID))
	assert.True(t, picked.HasPotential(rival.ID))

	_, err = h.jobSvc.PickReceiver(ctx, poster.ID, job.ID, rival.ID)
	assertCode(t, err, models.CodeConflict)

	var chosen []string
	for _, m := range h.sentMail(t) {
		if m.To == "worker@example.com" {
			chosen = append(chosen, m.Subject)
		}
	}
	assert.Contains(t, chosen, "Congrats! You were chosen for Paint fence")
}

func TestJobService_MarkDone(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()
	poster := h.register(t, "poster@example.com")
	worker := h.register(t, "worker@example.com")
	stranger := h.register(t, "stranger@example.com")
	job := h.postJob(t, poster, "Fix sink")

	_, err := h.jobSvc.MarkDone(ctx, poster.ID, job.ID)
	assertCode(t, err, models.CodeValidation)

	_, err = h.jobSvc.ApplyToJob(ctx, worker.ID, worker.ID, job.ID)
	require.NoError(t, err)
	_, err = h.jobSvc.PickReceiver(ctx, poster.ID, job.ID, worker.ID)
	require.NoError(t, err)

	_, err = h.jobSvc.MarkDone(ctx, stranger.ID, job.ID)
	assertCode(t, err, models.CodeForbidden)

	done, err := h.jobSvc.MarkDone(ctx, worker.ID, job.ID)
	require.NoError(t, err)
	assert.True(t, done.Done)
	assert.True(t, done.Taken)

	var completion *string
	for _, m := range h.sentMail(t) {
		if m.To == "poster@example.com" && m.Subject == "The side quest Fix sink has been complete" {
			body := m.Body
			completion = &body
		}
	}
	require.NotNil(t, completion)
	assert.Contains(t, *completion, worker.First)
}

func TestJobService_GetJobUsesCache(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()
	poster := h.register(t, "poster@example.com")
	job := h.postJob(t, poster, "Rake leaves")

	got, err := h.jobSvc.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "Rake leaves", got.Title)
	assert.True(t, h.redis.Exists(cache.JobKey(job.ID)))

	title := "Rake all the leaves"
	_, err = h.jobSvc.UpdateJob(ctx, poster.ID, job.ID, UpdateJobInput{Title: &title})
	require.NoError(t, err)
	assert.False(t, h.redis.Exists(cache.JobKey(job.ID)), "update must invalidate the cached view")

	got, err = h.jobSvc.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, title, got.Title)

	_, err = h.jobSvc.GetJob(ctx, 9999)
	assertCode(t, err, models.CodeNotFound)
}

func TestJobService_UpdateAndDelete(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()
	poster := h.register(t, "poster@example.com")
	other := h.register(t, "other@example.com")
	job := h.postJob(t, poster, "Move couch")

	reward := "$50"
	_, err := h.jobSvc.UpdateJob(ctx, other.ID, job.ID, UpdateJobInput{Reward: &reward})
	assertCode(t, err, models.CodeForbidden)

	empty := ""
	_, err = h.jobSvc.UpdateJob(ctx, poster.ID, job.ID, UpdateJobInput{Title: &empty})
	assertCode(t, err, models.CodeValidation)

	updated, err := h.jobSvc.UpdateJob(ctx, poster.ID, job.ID, UpdateJobInput{Reward: &reward})
	require.NoError(t, err)
	assert.Equal(t, "$50", updated.Reward)
	assert.Equal(t, "Move couch", updated.Title)

	_, err = h.jobSvc.DeleteJob(ctx, other.ID, job.ID)
	assertCode(t, err, models.CodeForbidden)

	_, err = h.jobSvc.DeleteJob(ctx, poster.ID, job.ID)
	require.NoError(t, err)
	_, err = h.jobSvc.GetJob(ctx, job.ID)
	assertCode(t, err, models.CodeNotFound)
}

func TestJobService_SearchJobs(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()
	poster := h.register(t, "poster@example.com")
	h.postJob(t, poster, "Walk the dog")
	h.postJob(t, poster, "Dog sitting")
	h.postJob(t, poster, "Mow lawn")

	found, err := h.jobSvc.SearchJobs(ctx, "dog")
	require.NoError(t, err)
	assert.Len(t, found, 2)

	all, err := h.jobSvc.SearchJobs(ctx, "  ")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestJobService_CreateJobShowsLatestProfileImage(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()
	poster := h.register(t, "poster@example.com")

	bare := h.postJob(t, poster, "No picture yet")
	assert.Empty(t, bare.Assets)

	_, err := h.assetSvc.UploadForUser(ctx, poster.ID, poster.ID, testutil.DataURL("image/png", testutil.PNG(4, 4)))
	require.NoError(t, err)
	newest, err := h.assetSvc.UploadForUser(ctx, poster.ID, poster.ID, testutil.DataURL("image/png", testutil.PNG(5, 5)))
	require.NoError(t, err)

	job := h.postJob(t, poster, "Clean gutters")
	require.Len(t, job.Assets, 1)
	assert.Equal(t, newest.ID, job.Assets[0].ID)
	assert.Equal(t, newest.URL, job.Assets[0].URL)

	second := h.postJob(t, poster, "Wash windows")
	assert.Empty(t, second.Assets, "an image shown on one job is not moved to another")

	_, err = h.jobSvc.DeleteJob(ctx, poster.ID, job.ID)
	require.NoError(t, err)

	kept, err := h.assetSvc.GetAsset(ctx, newest.ID)
	require.NoError(t, err)
	assert.Nil(t, kept.JobID)
	require.NotNil(t, kept.UserID)
	_, ok := h.store.Get(newest.ObjectKey())
	assert.True(t, ok, "the profile image survives the job")
}
