package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"sidequest/internal/cache"
	"sidequest/internal/mailer"
	"sidequest/internal/models"
	"sidequest/internal/repository"
	"sidequest/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// harness wires every service against one in-memory database.
type harness struct {
	db     *gorm.DB
	redis  *miniredis.Miniredis
	cache  *cache.Store
	store  *testutil.MemoryStore
	mailer *testutil.RecordingMailer
	mail   *mailer.Dispatcher

	users   repository.UserRepository
	jobs    repository.JobRepository
	ratings repository.RatingRepository
	assets  repository.AssetRepository
	chats   repository.ChatRepository

	auth      *AuthService
	userSvc   *UserService
	jobSvc    *JobService
	ratingSvc *RatingService
	assetSvc  *AssetService
	chatSvc   *ChatService
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	db := testutil.NewDB(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	h := &harness{
		db:      db,
		redis:   mr,
		cache:   cache.NewStore(rdb),
		store:   testutil.NewMemoryStore(),
		mailer:  &testutil.RecordingMailer{},
		users:   repository.NewUserRepository(db),
		jobs:    repository.NewJobRepository(db),
		ratings: repository.NewRatingRepository(db),
		assets:  repository.NewAssetRepository(db),
		chats:   repository.NewChatRepository(db),
	}
	h.mail = mailer.NewDispatcher(h.mailer, discardLogger())
	t.Cleanup(func() { _ = h.mail.Close(context.Background()) })

	h.auth = NewAuthService(h.users, h.mail, bcrypt.MinCost, time.Hour)
	h.userSvc = NewUserService(h.users, h.assets, h.store, h.cache, discardLogger())
	h.jobSvc = NewJobService(h.jobs, h.users, h.store, h.cache, h.mail, discardLogger())
	h.ratingSvc = NewRatingService(h.ratings, h.users)
	h.assetSvc = NewAssetService(h.assets, h.users, h.jobs, h.store, h.cache, discardLogger(), AssetOptions{MaxDimension: 64})
	h.chatSvc = NewChatService(h.chats, h.users)
	return h
}

// sentMail waits for queued emails and returns them.
func (h *harness) sentMail(t *testing.T) []mailer.Message {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.mail.Close(ctx))
	return h.mailer.Messages()
}

func (h *harness) register(t *testing.T, email string) *models.User {
	t.Helper()
	u, err := h.auth.Register(context.Background(), RegisterInput{
		Email:       email,
		Password:    "hunter22",
		First:       "First-" + email,
		Last:        "Last",
		PhoneNumber: "555-0100",
	})
	require.NoError(t, err)
	return u
}

func (h *harness) postJob(t *testing.T, poster *models.User, title string) *models.Job {
	t.Helper()
	job, err := h.jobSvc.CreateJob(context.Background(), poster.ID, poster.ID, CreateJobInput{
		Title:        title,
		Description:  "help needed",
		Location:     "Ithaca",
		DateActivity: "Saturday",
		Duration:     90,
		Reward:       "$25",
	})
	require.NoError(t, err)
	return job
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code, appErr.Message)
}
