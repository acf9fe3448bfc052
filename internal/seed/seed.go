// Package seed fills a database with demo data for development and manual
// testing. Everything goes through the service layer, so seeded rows obey the
// same rules as rows created over the API.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"sidequest/internal/cache"
	"sidequest/internal/models"
	"sidequest/internal/repository"
	"sidequest/internal/service"
	"sidequest/internal/storage"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
)

// DefaultPassword is the password of every generated user.
const DefaultPassword = "password123"

// Options controls generated data.
type Options struct {
	Users    int
	Jobs     int
	Ratings  int
	Chats    int
	Messages int // per chat
	// RandSeed makes runs reproducible. Zero picks a time-based seed.
	RandSeed int64
}

// DefaultOptions is a small, browsable data set.
func DefaultOptions() Options {
	return Options{Users: 20, Jobs: 40, Ratings: 30, Chats: 10, Messages: 6}
}

// Summary counts what a run created.
type Summary struct {
	Users    int
	Jobs     int
	Ratings  int
	Chats    int
	Messages int
}

func (s Summary) String() string {
	return fmt.Sprintf("%d users, %d jobs, %d ratings, %d chats, %d messages",
		s.Users, s.Jobs, s.Ratings, s.Chats, s.Messages)
}

// Seeder writes demo data through the services.
type Seeder struct {
	db      *gorm.DB
	auth    *service.AuthService
	jobs    *service.JobService
	ratings *service.RatingService
	chats   *service.ChatService
	logger  *slog.Logger
}

// NewSeeder wires services over db. Mail is disabled and nothing is cached.
// store receives nothing unless fixtures carry images; it may be nil.
func NewSeeder(db *gorm.DB, store storage.ObjectStore, bcryptCost int, logger *slog.Logger) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	userRepo := repository.NewUserRepository(db)
	noCache := cache.NewStore(nil)
	return &Seeder{
		db:      db,
		auth:    service.NewAuthService(userRepo, nil, bcryptCost, 24*time.Hour),
		jobs:    service.NewJobService(repository.NewJobRepository(db), userRepo, store, noCache, nil, logger),
		ratings: service.NewRatingService(repository.NewRatingRepository(db), userRepo),
		chats:   service.NewChatService(repository.NewChatRepository(db), userRepo),
		logger:  logger,
	}
}

// clearOrder lists tables children first so foreign keys never block a delete.
var clearOrder = []string{
	"messages", "chat_members", "chats",
	"assets",
	"rating_posters", "rating_postees", "ratings",
	"job_posters", "job_receivers", "job_potentials", "jobs",
	"users",
}

// ClearAll deletes every row the application owns.
func (s *Seeder) ClearAll(ctx context.Context) error {
	s.logger.InfoContext(ctx, "clearing existing data")
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, table := range clearOrder {
			if err := tx.Exec("DELETE FROM " + table).Error; err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}
		return nil
	})
}

// Generate creates random users, jobs in every state, ratings and chats.
func (s *Seeder) Generate(ctx context.Context, opts Options) (Summary, error) {
	var sum Summary
	if opts.Users < 2 {
		return sum, fmt.Errorf("seed: need at least 2 users, got %d", opts.Users)
	}
	randSeed := opts.RandSeed
	if randSeed == 0 {
		randSeed = time.Now().UnixNano()
	}
	f := gofakeit.New(randSeed)

	users := make([]*models.User, 0, opts.Users)
	for i := range opts.Users {
		first, last := f.FirstName(), f.LastName()
		u, err := s.auth.Register(ctx, service.RegisterInput{
			Email:       fmt.Sprintf("%s.%s.%d@example.com", slug(first), slug(last), i),
			Password:    DefaultPassword,
			First:       first,
			Last:        last,
			PhoneNumber: f.Phone(),
		})
		if err != nil {
			return sum, fmt.Errorf("seed user %d: %w", i, err)
		}
		users = append(users, u)
		sum.Users++
	}

	pickOther := func(not uint) *models.User {
		for {
			u := users[f.Number(0, len(users)-1)]
			if u.ID != not {
				return u
			}
		}
	}

	for i := range opts.Jobs {
		poster := users[f.Number(0, len(users)-1)]
		lat, lng := f.Latitude(), f.Longitude()
		job, err := s.jobs.CreateJob(ctx, poster.ID, poster.ID, service.CreateJobInput{
			Title:          fmt.Sprintf("%s %s", capitalize(f.Verb()), f.Noun()),
			Description:    f.Paragraph(1, 3, 12, " "),
			Location:       f.City(),
			DateActivity:   f.DateRange(time.Now(), time.Now().AddDate(0, 2, 0)).Format("Jan 2, 2006"),
			Duration:       f.Number(1, 16) * 30,
			Reward:         fmt.Sprintf("$%d", f.Number(10, 200)),
			Category:       f.RandomString([]string{"moving", "yard work", "tutoring", "pets", "errands", "repairs"}),
			Latitude:       &lat,
			Longitude:      &lng,
			OtherNotes:     f.Sentence(8),
			RelevantSkills: f.Hobby(),
		})
		if err != nil {
			return sum, fmt.Errorf("seed job %d: %w", i, err)
		}
		sum.Jobs++

		// Roughly a third stay open, a third get a worker, a third finish.
		stage := i % 3
		applicant := pickOther(poster.ID)
		if _, err := s.jobs.ApplyToJob(ctx, applicant.ID, applicant.ID, job.ID); err != nil {
			return sum, fmt.Errorf("seed application %d: %w", i, err)
		}
		if stage == 0 {
			continue
		}
		if _, err := s.jobs.PickReceiver(ctx, poster.ID, job.ID, applicant.ID); err != nil {
			return sum, fmt.Errorf("seed pick %d: %w", i, err)
		}
		if stage == 2 {
			if _, err := s.jobs.MarkDone(ctx, applicant.ID, job.ID); err != nil {
				return sum, fmt.Errorf("seed done %d: %w", i, err)
			}
		}
	}

	for i := range opts.Ratings {
		poster := users[f.Number(0, len(users)-1)]
		postee := pickOther(poster.ID)
		if _, err := s.ratings.CreateRating(ctx, poster.ID, poster.ID, postee.ID, service.CreateRatingInput{
			Rate:        f.Number(1, 5),
			Description: f.Sentence(10),
		}); err != nil {
			return sum, fmt.Errorf("seed rating %d: %w", i, err)
		}
		sum.Ratings++
	}

	for i := range opts.Chats {
		a := users[f.Number(0, len(users)-1)]
		b := pickOther(a.ID)
		chat, created, err := s.chats.CreateChat(ctx, a.ID, service.CreateChatInput{SenderID: a.ID, ReceiverID: b.ID})
		if err != nil {
			return sum, fmt.Errorf("seed chat %d: %w", i, err)
		}
		if created {
			sum.Chats++
		}
		for j := range opts.Messages {
			sender := a
			if j%2 == 1 {
				sender = b
			}
			if _, err := s.chats.PostMessage(ctx, chat.ID, sender.ID, f.Sentence(f.Number(3, 12))); err != nil {
				return sum, fmt.Errorf("seed message %d/%d: %w", i, j, err)
			}
			sum.Messages++
		}
	}

	s.logger.InfoContext(ctx, "seed data generated", slog.String("summary", sum.String()))
	return sum, nil
}

// slug keeps the lowercase letters and digits of s.
func slug(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		}
		return -1
	}, s)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
