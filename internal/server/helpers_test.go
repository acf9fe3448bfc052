package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"sidequest/internal/config"
	"sidequest/internal/models"
	"sidequest/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func testConfig() *config.Config {
	return &config.Config{
		Port:              "0",
		Env:               "test",
		BcryptCost:        bcrypt.MinCost,
		SessionTTLHours:   1,
		WSTicketSecret:    "test-ticket-secret",
		WSTicketTTLSecs:   60,
		AssetMaxDimension: 64,
		AssetUploadSecs:   5,
	}
}

// testEnv is a fully wired server over SQLite, miniredis and in-memory
// storage and mail.
type testEnv struct {
	srv    *Server
	app    *fiber.App
	store  *testutil.MemoryStore
	mailer *testutil.RecordingMailer
	mr     *miniredis.Miniredis
	rdb    *redis.Client
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testutil.NewDB(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := testutil.NewMemoryStore()
	rec := &testutil.RecordingMailer{}

	srv, err := NewServerWithDeps(testConfig(), db, rdb, store, rec)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.mail.Close(ctx)
		_ = rdb.Close()
	})

	return &testEnv{
		srv:    srv,
		app:    srv.newApp(),
		store:  store,
		mailer: rec,
		mr:     mr,
		rdb:    rdb,
	}
}

// do sends one request through the app and returns status and body.
func (e *testEnv) do(t *testing.T, method, path string, body any, token string) (int, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, raw
}

func decode[T any](t *testing.T, raw []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v), string(raw))
	return v
}

func (e *testEnv) register(t *testing.T, email string) authResponse {
	t.Helper()
	status, raw := e.do(t, fiber.MethodPost, "/api/register/", map[string]string{
		"email":        email,
		"password":     "hunter22",
		"first":        "Ada",
		"last":         "Quest",
		"phone_number": "555-0100",
	}, "")
	require.Equal(t, fiber.StatusCreated, status, string(raw))
	return decode[authResponse](t, raw)
}

func (e *testEnv) postJob(t *testing.T, poster authResponse, title string) models.Job {
	t.Helper()
	status, raw := e.do(t, fiber.MethodPost, fmt.Sprintf("/api/user/%d/job/", poster.User.ID), map[string]any{
		"title":         title,
		"description":   "Carry boxes",
		"location":      "Ithaca",
		"date_activity": "Saturday",
		"duration":      120,
		"reward":        "$40",
	}, poster.SessionToken)
	require.Equal(t, fiber.StatusCreated, status, string(raw))
	return decode[models.Job](t, raw)
}

func assertError(t *testing.T, raw []byte, code string) {
	t.Helper()
	resp := decode[models.ErrorResponse](t, raw)
	assert.Equal(t, code, resp.Code, resp.Error)
	assert.NotEmpty(t, resp.Error)
}
