package server

import (
	"fmt"
	"testing"
	"time"

	"sidequest/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobLifecycle(t *testing.T) {
	e := newTestEnv(t)
	poster := e.register(t, "poster@example.com")
	worker := e.register(t, "worker@example.com")

	job := e.postJob(t, poster, "Move a couch")
	assert.False(t, job.Taken)
	require.Len(t, job.Poster, 1)
	assert.Equal(t, poster.User.ID, job.Poster[0].ID)

	applyPath := fmt.Sprintf("/api/user/%d/job/%d/", worker.User.ID, job.ID)
	status, raw := e.do(t, fiber.MethodPost, applyPath, nil, worker.SessionToken)
	require.Equal(t, fiber.StatusCreated, status, string(raw))
	applied := decode[models.Job](t, raw)
	require.Len(t, applied.Potential, 1)

	status, raw = e.do(t, fiber.MethodPost, applyPath, nil, worker.SessionToken)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assertError(t, raw, models.CodeConflict)

	status, raw = e.do(t, fiber.MethodPost, fmt.Sprintf("/api/user/%d/job/%d/", poster.User.ID, job.ID), nil, poster.SessionToken)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assertError(t, raw, models.CodeValidation)

	// Only a taken job can be completed.
	donePath := fmt.Sprintf("/api/job/%d/done/", job.ID)
	status, raw = e.do(t, fiber.MethodPost, donePath, nil, poster.SessionToken)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assertError(t, raw, models.CodeValidation)

	pickPath := fmt.Sprintf("/api/job/%d/user/%d/", job.ID, worker.User.ID)
	status, raw = e.do(t, fiber.MethodPost, pickPath, nil, worker.SessionToken)
	assert.Equal(t, fiber.StatusForbidden, status)
	assertError(t, raw, models.CodeForbidden)

	status, raw = e.do(t, fiber.MethodPost, pickPath, nil, poster.SessionToken)
	require.Equal(t, fiber.StatusOK, status, string(raw))
	picked := decode[models.Job](t, raw)
	assert.True(t, picked.Taken)
	assert.Empty(t, picked.Potential)
	require.Len(t, picked.Receiver, 1)
	assert.Equal(t, worker.User.ID, picked.Receiver[0].ID)

	status, raw = e.do(t, fiber.MethodPost, donePath, nil, worker.SessionToken)
	require.Equal(t, fiber.StatusOK, status, string(raw))
	assert.True(t, decode[models.Job](t, raw).Done)

	status, raw = e.do(t, fiber.MethodGet, fmt.Sprintf("/api/job/%d", job.ID), nil, "")
	require.Equal(t, fiber.StatusOK, status, string(raw))
	fetched := decode[models.Job](t, raw)
	assert.True(t, fetched.Done)
	assert.True(t, fetched.Taken)

	assert.Eventually(t, func() bool {
		subjects := map[string]string{}
		for _, msg := range e.mailer.Messages() {
			subjects[msg.Subject] = msg.To
		}
		return subjects["Congrats! You were chosen for Move a couch"] == "worker@example.com" &&
			subjects["The side quest Move a couch has been complete"] == "poster@example.com"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestJobUpdateAndDelete(t *testing.T) {
	e := newTestEnv(t)
	poster := e.register(t, "poster@example.com")
	other := e.register(t, "other@example.com")
	job := e.postJob(t, poster, "Paint a fence")

	path := fmt.Sprintf("/api/job/%d/", job.ID)

	status, raw := e.do(t, fiber.MethodPost, path, map[string]any{"title": "Hijacked"}, other.SessionToken)
	assert.Equal(t, fiber.StatusForbidden, status)
	assertError(t, raw, models.CodeForbidden)

	status, raw = e.do(t, fiber.MethodPost, path, map[string]any{"title": "Paint two fences", "reward": "$80"}, poster.SessionToken)
	require.Equal(t, fiber.StatusOK, status, string(raw))
	updated := decode[models.Job](t, raw)
	assert.Equal(t, "Paint two fences", updated.Title)
	assert.Equal(t, "$80", updated.Reward)
	assert.Equal(t, "Ithaca", updated.Location)

	// The cached view is dropped on update.
	status, raw = e.do(t, fiber.MethodGet, path, nil, "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "Paint two fences", decode[models.Job](t, raw).Title)

	status, _ = e.do(t, fiber.MethodDelete, path, nil, other.SessionToken)
	assert.Equal(t, fiber.StatusForbidden, status)

	status, raw = e.do(t, fiber.MethodDelete, path, nil, poster.SessionToken)
	require.Equal(t, fiber.StatusOK, status, string(raw))

	status, raw = e.do(t, fiber.MethodGet, path, nil, "")
	assert.Equal(t, fiber.StatusNotFound, status)
	assertError(t, raw, models.CodeNotFound)
}

func TestFilterJobs(t *testing.T) {
	e := newTestEnv(t)
	poster := e.register(t, "poster@example.com")
	e.postJob(t, poster, "Walk my dog")
	e.postJob(t, poster, "Dog sitting")
	e.postJob(t, poster, "Rake leaves")

	status, raw := e.do(t, fiber.MethodGet, "/api/job/filter/?search=dog", nil, "")
	require.Equal(t, fiber.StatusOK, status, string(raw))
	assert.Len(t, decode[struct {
		Jobs []models.Job `json:"jobs"`
	}](t, raw).Jobs, 2)

	status, raw = e.do(t, fiber.MethodGet, "/api/job/filter/", nil, "")
	require.Equal(t, fiber.StatusOK, status, string(raw))
	assert.Len(t, decode[struct {
		Jobs []models.Job `json:"jobs"`
	}](t, raw).Jobs, 3)

	status, raw = e.do(t, fiber.MethodGet, "/api/job/", nil, "")
	require.Equal(t, fiber.StatusOK, status, string(raw))
	assert.Len(t, decode[struct {
		Jobs []models.Job `json:"jobs"`
	}](t, raw).Jobs, 3)
}

func TestJobBadInput(t *testing.T) {
	e := newTestEnv(t)
	poster := e.register(t, "poster@example.com")

	status, raw := e.do(t, fiber.MethodGet, "/api/job/abc/", nil, "")
	assert.Equal(t, fiber.StatusBadRequest, status)
	resp := decode[models.ErrorResponse](t, raw)
	assert.Equal(t, "Invalid ID", resp.Error)

	status, raw = e.do(t, fiber.MethodPost, fmt.Sprintf("/api/job/1/user/%s/", "x"), nil, poster.SessionToken)
	assert.Equal(t, fiber.StatusBadRequest, status)
	resp = decode[models.ErrorResponse](t, raw)
	assert.Equal(t, "Invalid user ID", resp.Error)

	status, raw = e.do(t, fiber.MethodPost, fmt.Sprintf("/api/user/%d/job/", poster.User.ID), map[string]any{"title": "No details"}, poster.SessionToken)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assertError(t, raw, models.CodeValidation)

	status, _ = e.do(t, fiber.MethodPost, fmt.Sprintf("/api/user/%d/job/", poster.User.ID), nil, "")
	assert.Equal(t, fiber.StatusBadRequest, status, "writes need a session")
}
