package server

import (
	"context"
	"fmt"
	"testing"

	"sidequest/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatEndpoints(t *testing.T) {
	e := newTestEnv(t)
	alice := e.register(t, "alice@example.com")
	bob := e.register(t, "bob@example.com")
	eve := e.register(t, "eve@example.com")

	body := map[string]uint{"sender_id": alice.User.ID, "receiver_id": bob.User.ID}

	status, raw := e.do(t, fiber.MethodPost, "/api/chat/", body, alice.SessionToken)
	require.Equal(t, fiber.StatusCreated, status, string(raw))
	chat := decode[models.Chat](t, raw)
	assert.Len(t, chat.Members, 2)

	// The pair already shares a chat, so the same one comes back.
	status, raw = e.do(t, fiber.MethodPost, "/api/chat/", body, alice.SessionToken)
	require.Equal(t, fiber.StatusOK, status, string(raw))
	assert.Equal(t, chat.ID, decode[models.Chat](t, raw).ID)

	status, raw = e.do(t, fiber.MethodPost, "/api/chat/", body, bob.SessionToken)
	assert.Equal(t, fiber.StatusForbidden, status)
	assertError(t, raw, models.CodeForbidden)

	status, raw = e.do(t, fiber.MethodPost, "/api/chat/",
		map[string]uint{"sender_id": alice.User.ID, "receiver_id": alice.User.ID}, alice.SessionToken)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assertError(t, raw, models.CodeValidation)

	ctx := context.Background()
	first, err := e.srv.chatService.PostMessage(ctx, chat.ID, alice.User.ID, "hi bob")
	require.NoError(t, err)
	_, err = e.srv.chatService.PostMessage(ctx, chat.ID, bob.User.ID, "hi alice")
	require.NoError(t, err)

	chatPath := fmt.Sprintf("/api/chat/%d/", chat.ID)

	status, raw = e.do(t, fiber.MethodGet, chatPath, nil, eve.SessionToken)
	assert.Equal(t, fiber.StatusForbidden, status)
	assertError(t, raw, models.CodeForbidden)

	status, raw = e.do(t, fiber.MethodGet, chatPath+"message/", nil, bob.SessionToken)
	require.Equal(t, fiber.StatusOK, status, string(raw))
	history := decode[struct {
		Messages []models.Message `json:"messages"`
	}](t, raw).Messages
	require.Len(t, history, 2)
	assert.Equal(t, "hi bob", history[0].Body)
	assert.Equal(t, "hi alice", history[1].Body)

	status, raw = e.do(t, fiber.MethodGet, fmt.Sprintf("/api/user/%d/chat/", bob.User.ID), nil, bob.SessionToken)
	require.Equal(t, fiber.StatusOK, status, string(raw))
	assert.Len(t, decode[struct {
		Chats []models.Chat `json:"chats"`
	}](t, raw).Chats, 1)

	status, _ = e.do(t, fiber.MethodGet, fmt.Sprintf("/api/user/%d/chat/", bob.User.ID), nil, alice.SessionToken)
	assert.Equal(t, fiber.StatusForbidden, status)

	msgPath := fmt.Sprintf("/api/message/%d/", first.ID)

	status, _ = e.do(t, fiber.MethodGet, msgPath, nil, eve.SessionToken)
	assert.Equal(t, fiber.StatusForbidden, status)

	status, raw = e.do(t, fiber.MethodGet, msgPath, nil, bob.SessionToken)
	require.Equal(t, fiber.StatusOK, status, string(raw))
	assert.Equal(t, "hi bob", decode[models.Message](t, raw).Body)

	status, _ = e.do(t, fiber.MethodDelete, msgPath, nil, bob.SessionToken)
	assert.Equal(t, fiber.StatusForbidden, status, "only the sender deletes a message")

	status, raw = e.do(t, fiber.MethodDelete, msgPath, nil, alice.SessionToken)
	require.Equal(t, fiber.StatusOK, status, string(raw))

	status, _ = e.do(t, fiber.MethodGet, msgPath, nil, alice.SessionToken)
	assert.Equal(t, fiber.StatusNotFound, status)

	status, raw = e.do(t, fiber.MethodDelete, chatPath, nil, bob.SessionToken)
	require.Equal(t, fiber.StatusOK, status, string(raw))

	status, raw = e.do(t, fiber.MethodGet, chatPath, nil, alice.SessionToken)
	assert.Equal(t, fiber.StatusNotFound, status)
	assertError(t, raw, models.CodeNotFound)
}

func TestChatRequiresSession(t *testing.T) {
	e := newTestEnv(t)

	status, raw := e.do(t, fiber.MethodGet, "/api/chat/1/", nil, "")
	assert.Equal(t, fiber.StatusBadRequest, status)
	assertError(t, raw, models.CodeUnauthorized)

	status, raw = e.do(t, fiber.MethodGet, "/api/chat/1/", nil, "not-a-session")
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assertError(t, raw, models.CodeUnauthorized)
}
