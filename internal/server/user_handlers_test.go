package server

import (
	"fmt"
	"testing"

	"sidequest/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserEndpoints(t *testing.T) {
	e := newTestEnv(t)
	ada := e.register(t, "ada@example.com")
	bob := e.register(t, "bob@example.com")
	e.postJob(t, ada, "Walk the dog")

	status, raw := e.do(t, fiber.MethodGet, "/api/user/", nil, "")
	require.Equal(t, fiber.StatusOK, status, string(raw))
	list := decode[struct {
		Users []models.User `json:"users"`
	}](t, raw)
	assert.Len(t, list.Users, 2)

	status, raw = e.do(t, fiber.MethodGet, fmt.Sprintf("/api/user/%d/", ada.User.ID), nil, "")
	require.Equal(t, fiber.StatusOK, status, string(raw))
	profile := decode[models.User](t, raw)
	assert.Equal(t, "ada@example.com", profile.Email)
	require.Len(t, profile.JobsAsPoster, 1)
	assert.Equal(t, "Walk the dog", profile.JobsAsPoster[0].Title)
	assert.NotContains(t, string(raw), ada.SessionToken)

	update := map[string]string{
		"email":        "Ada.Lovelace@Example.com",
		"first":        "Ada",
		"last":         "Lovelace",
		"phone_number": "555-0199",
	}
	path := fmt.Sprintf("/api/user/%d/", ada.User.ID)

	status, raw = e.do(t, fiber.MethodPost, path, update, bob.SessionToken)
	assert.Equal(t, fiber.StatusForbidden, status)
	assertError(t, raw, models.CodeForbidden)

	status, raw = e.do(t, fiber.MethodPost, path, update, ada.SessionToken)
	require.Equal(t, fiber.StatusOK, status, string(raw))
	updated := decode[models.User](t, raw)
	assert.Equal(t, "ada.lovelace@example.com", updated.Email)
	assert.Equal(t, "Lovelace", updated.Last)

	update["email"] = "bob@example.com"
	status, raw = e.do(t, fiber.MethodPost, path, update, ada.SessionToken)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assertError(t, raw, models.CodeConflict)

	status, raw = e.do(t, fiber.MethodPost, path, map[string]string{"first": "Ada"}, ada.SessionToken)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assertError(t, raw, models.CodeValidation)

	status, _ = e.do(t, fiber.MethodDelete, path, nil, bob.SessionToken)
	assert.Equal(t, fiber.StatusForbidden, status)

	status, raw = e.do(t, fiber.MethodDelete, path, nil, ada.SessionToken)
	require.Equal(t, fiber.StatusOK, status, string(raw))

	status, raw = e.do(t, fiber.MethodGet, path, nil, "")
	assert.Equal(t, fiber.StatusNotFound, status)
	assertError(t, raw, models.CodeNotFound)
}
