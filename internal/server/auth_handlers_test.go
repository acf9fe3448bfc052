package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"sidequest/internal/models"
	"sidequest/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// MockUserRepository is a mock of the UserRepository interface
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) user(args mock.Arguments) (*models.User, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	return m.user(m.Called(ctx, id))
}

func (m *MockUserRepository) GetByIDWithRelations(ctx context.Context, id uint) (*models.User, error) {
	return m.user(m.Called(ctx, id))
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return m.user(m.Called(ctx, email))
}

func (m *MockUserRepository) GetBySessionToken(ctx context.Context, token string) (*models.User, error) {
	return m.user(m.Called(ctx, token))
}

func (m *MockUserRepository) SetSession(ctx context.Context, id uint, session models.Session) error {
	return m.Called(ctx, id, session).Error(0)
}

func (m *MockUserRepository) RotateSession(ctx context.Context, updateToken string, next models.Session) (*models.User, error) {
	return m.user(m.Called(ctx, updateToken, next))
}

func (m *MockUserRepository) Update(ctx context.Context, user *models.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *MockUserRepository) Delete(ctx context.Context, id uint) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockUserRepository) List(ctx context.Context) ([]models.User, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *MockUserRepository) LinkedJobIDs(ctx context.Context, id uint) ([]uint, error) {
	args := m.Called(ctx, id)
	return args.Get(0).([]uint), args.Error(1)
}

func TestAuthRequired(t *testing.T) {
	live := &models.User{ID: 7, SessionToken: "live", SessionExpiration: time.Now().Add(time.Hour)}
	stale := &models.User{ID: 8, SessionToken: "stale", SessionExpiration: time.Now().Add(-time.Minute)}

	tests := []struct {
		name           string
		header         string
		mockSetup      func(*MockUserRepository)
		expectedStatus int
		expectedCode   string
	}{
		{
			name:           "Missing header",
			expectedStatus: http.StatusBadRequest,
			expectedCode:   models.CodeUnauthorized,
		},
		{
			name:           "Malformed header",
			header:         "Token live",
			expectedStatus: http.StatusBadRequest,
			expectedCode:   models.CodeUnauthorized,
		},
		{
			name:   "Unknown token",
			header: "Bearer nope",
			mockSetup: func(m *MockUserRepository) {
				m.On("GetBySessionToken", mock.Anything, "nope").Return(nil, nil)
			},
			expectedStatus: http.StatusUnauthorized,
			expectedCode:   models.CodeUnauthorized,
		},
		{
			name:   "Expired token",
			header: "Bearer stale",
			mockSetup: func(m *MockUserRepository) {
				m.On("GetBySessionToken", mock.Anything, "stale").Return(stale, nil)
			},
			expectedStatus: http.StatusUnauthorized,
			expectedCode:   models.CodeUnauthorized,
		},
		{
			name:   "Valid token",
			header: "Bearer live",
			mockSetup: func(m *MockUserRepository) {
				m.On("GetBySessionToken", mock.Anything, "live").Return(live, nil)
			},
			expectedStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockUserRepository)
			if tt.mockSetup != nil {
				tt.mockSetup(repo)
			}
			s := &Server{
				config:      testConfig(),
				logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
				authService: service.NewAuthService(repo, nil, bcrypt.MinCost, time.Hour),
			}

			app := fiber.New()
			app.Get("/secret", s.AuthRequired(), s.Secret)

			req := httptest.NewRequest(http.MethodGet, "/secret", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			defer resp.Body.Close()
			raw, _ := io.ReadAll(resp.Body)

			assert.Equal(t, tt.expectedStatus, resp.StatusCode, string(raw))
			if tt.expectedCode != "" {
				assertError(t, raw, tt.expectedCode)
			} else {
				body := decode[map[string]any](t, raw)
				assert.EqualValues(t, live.ID, body["user_id"])
			}
			repo.AssertExpectations(t)
		})
	}
}

func TestSessionLifecycle(t *testing.T) {
	e := newTestEnv(t)

	reg := e.register(t, "ada@example.com")
	assert.NotEmpty(t, reg.SessionToken)
	assert.NotEmpty(t, reg.UpdateToken)
	assert.True(t, reg.SessionExpiration.After(time.Now()))
	assert.Equal(t, "ada@example.com", reg.User.Email)

	// Trailing slashes are optional.
	status, raw := e.do(t, fiber.MethodGet, "/api/secret", nil, reg.SessionToken)
	require.Equal(t, fiber.StatusOK, status, string(raw))

	status, raw = e.do(t, fiber.MethodPost, "/api/register/", map[string]string{
		"email": "ADA@example.com", "password": "x", "phone_number": "1",
	}, "")
	assert.Equal(t, fiber.StatusBadRequest, status)
	assertError(t, raw, models.CodeConflict)

	status, raw = e.do(t, fiber.MethodPost, "/api/login/", map[string]string{
		"email": "ada@example.com", "password": "wrong",
	}, "")
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assertError(t, raw, models.CodeUnauthorized)

	status, raw = e.do(t, fiber.MethodPost, "/api/login/", map[string]string{
		"email": "ada@example.com", "password": "hunter22",
	}, "")
	require.Equal(t, fiber.StatusOK, status, string(raw))
	login := decode[authResponse](t, raw)
	assert.NotEqual(t, reg.SessionToken, login.SessionToken)

	// Renewal works exactly once per update token.
	status, raw = e.do(t, fiber.MethodPost, "/api/session/", nil, login.UpdateToken)
	require.Equal(t, fiber.StatusOK, status, string(raw))
	renewed := decode[models.Session](t, raw)
	assert.NotEqual(t, login.SessionToken, renewed.SessionToken)

	status, raw = e.do(t, fiber.MethodPost, "/api/session/", nil, login.UpdateToken)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assertError(t, raw, models.CodeUnauthorized)

	status, _ = e.do(t, fiber.MethodGet, "/api/secret/", nil, login.SessionToken)
	assert.Equal(t, fiber.StatusUnauthorized, status, "rotated session token is dead")

	status, raw = e.do(t, fiber.MethodPost, "/api/logout/", nil, renewed.SessionToken)
	require.Equal(t, fiber.StatusOK, status, string(raw))

	status, _ = e.do(t, fiber.MethodGet, "/api/secret/", nil, renewed.SessionToken)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	status, _ = e.do(t, fiber.MethodPost, "/api/session/", nil, renewed.UpdateToken)
	assert.Equal(t, fiber.StatusUnauthorized, status, "logout kills the update token too")
}

func TestRegisterValidation(t *testing.T) {
	e := newTestEnv(t)

	status, raw := e.do(t, fiber.MethodPost, "/api/register/", map[string]string{"email": "ada@example.com"}, "")
	assert.Equal(t, fiber.StatusBadRequest, status)
	assertError(t, raw, models.CodeValidation)

	req := httptest.NewRequest(fiber.MethodPost, "/api/register/", nil)
	req.Header.Set("Content-Type", "application/json")
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestLogoutRequiresBearer(t *testing.T) {
	e := newTestEnv(t)

	status, raw := e.do(t, fiber.MethodPost, "/api/logout/", nil, "")
	assert.Equal(t, fiber.StatusBadRequest, status)
	assertError(t, raw, models.CodeUnauthorized)
}
