// Package service holds the domain rules that sit between the HTTP layer and
// the repositories.
package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"sidequest/internal/mailer"
	"sidequest/internal/models"
	"sidequest/internal/repository"
	"sidequest/internal/validation"

	"golang.org/x/crypto/bcrypt"
)

const tokenBytes = 32

// AuthService issues, renews and checks session credentials.
type AuthService struct {
	userRepo   repository.UserRepository
	mail       *mailer.Dispatcher
	bcryptCost int
	sessionTTL time.Duration
	now        func() time.Time
	newToken   func() (string, error)
}

// RegisterInput is the body accepted by POST /api/register/.
type RegisterInput struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=1,max=72"`
	First       string `json:"first" validate:"required"`
	Last        string `json:"last" validate:"required"`
	PhoneNumber string `json:"phone_number" validate:"required"`
}

// LoginInput is the body accepted by POST /api/login/.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func NewAuthService(userRepo repository.UserRepository, mail *mailer.Dispatcher, bcryptCost int, sessionTTL time.Duration) *AuthService {
	if bcryptCost == 0 {
		bcryptCost = 13
	}
	if sessionTTL <= 0 {
		sessionTTL = 24 * time.Hour
	}
	return &AuthService{
		userRepo:   userRepo,
		mail:       mail,
		bcryptCost: bcryptCost,
		sessionTTL: sessionTTL,
		now:        time.Now,
		newToken:   randomToken,
	}
}

// WithClock replaces the time source used for expirations.
func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	s.now = now
	return s
}

// Register creates an account with a live session.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.Email = normalizeEmail(in.Email)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	existing, err := s.userRepo.GetByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewConflictError("Email is already registered")
	}

	digest, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	session, err := s.newSession()
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Email:             in.Email,
		PasswordDigest:    string(digest),
		First:             in.First,
		Last:              in.Last,
		PhoneNumber:       in.PhoneNumber,
		SessionToken:      session.SessionToken,
		SessionExpiration: session.SessionExpiration,
		UpdateToken:       session.UpdateToken,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	s.mail.Dispatch(mailer.Registered(user.Email))
	return user, nil
}

// VerifyCredentials checks email and password without touching the session.
func (s *AuthService) VerifyCredentials(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.userRepo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.NewUnauthorizedError("Invalid email or password")
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordDigest), []byte(password)) != nil {
		return nil, models.NewUnauthorizedError("Invalid email or password")
	}
	return user, nil
}

// Login verifies credentials and hands out a fresh session.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*models.User, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	user, err := s.VerifyCredentials(ctx, in.Email, in.Password)
	if err != nil {
		return nil, err
	}

	session, err := s.newSession()
	if err != nil {
		return nil, err
	}
	if err := s.userRepo.SetSession(ctx, user.ID, session); err != nil {
		return nil, err
	}
	applySession(user, session)
	return user, nil
}

// RenewSession trades an update token for a new session. Each update token
// works once.
func (s *AuthService) RenewSession(ctx context.Context, updateToken string) (*models.User, error) {
	if updateToken == "" {
		return nil, models.NewUnauthorizedError("Invalid update token")
	}
	session, err := s.newSession()
	if err != nil {
		return nil, err
	}
	user, err := s.userRepo.RotateSession(ctx, updateToken, session)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.NewUnauthorizedError("Invalid update token")
	}
	return user, nil
}

// GetUserBySessionToken returns the owner of token, or nil. Expiry is not checked.
func (s *AuthService) GetUserBySessionToken(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, nil
	}
	return s.userRepo.GetBySessionToken(ctx, token)
}

// SessionValid reports whether token is user's unexpired session token.
func (s *AuthService) SessionValid(user *models.User, token string) bool {
	return user.SessionValid(token, s.now())
}

// Authenticate resolves a session token to its user.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	user, err := s.GetUserBySessionToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if !s.SessionValid(user, token) {
		return nil, models.NewUnauthorizedError("Invalid or expired session token")
	}
	return user, nil
}

// Logout kills the session behind token. The stored tokens are replaced with
// values nobody holds and the expiration is pinned to now.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	user, err := s.Authenticate(ctx, token)
	if err != nil {
		return err
	}
	dead, err := s.newSession()
	if err != nil {
		return err
	}
	dead.SessionExpiration = s.now()
	return s.userRepo.SetSession(ctx, user.ID, dead)
}

func (s *AuthService) newSession() (models.Session, error) {
	sessionToken, err := s.newToken()
	if err != nil {
		return models.Session{}, models.NewInternalError(err)
	}
	updateToken, err := s.newToken()
	if err != nil {
		return models.Session{}, models.NewInternalError(err)
	}
	return models.Session{
		SessionToken:      sessionToken,
		SessionExpiration: s.now().Add(s.sessionTTL),
		UpdateToken:       updateToken,
	}, nil
}

func applySession(u *models.User, session models.Session) {
	u.SessionToken = session.SessionToken
	u.SessionExpiration = session.SessionExpiration
	u.UpdateToken = session.UpdateToken
}

func randomToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Join(errors.New("generate token"), err)
	}
	return hex.EncodeToString(b), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
