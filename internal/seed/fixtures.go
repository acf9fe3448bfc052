package seed

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"io"
	"os"

	"sidequest/internal/models"
	"sidequest/internal/service"

	"gopkg.in/yaml.v3"
)

// Fixture is a hand-written data set. Users are referenced by email.
type Fixture struct {
	Users   []FixtureUser   `yaml:"users"`
	Jobs    []FixtureJob    `yaml:"jobs"`
	Ratings []FixtureRating `yaml:"ratings"`
	Chats   []FixtureChat   `yaml:"chats"`
}

type FixtureUser struct {
	Email       string `yaml:"email"`
	Password    string `yaml:"password"`
	First       string `yaml:"first"`
	Last        string `yaml:"last"`
	PhoneNumber string `yaml:"phone_number"`
}

type FixtureJob struct {
	Poster       string   `yaml:"poster"`
	Title        string   `yaml:"title"`
	Description  string   `yaml:"description"`
	Location     string   `yaml:"location"`
	DateActivity string   `yaml:"date_activity"`
	Duration     int      `yaml:"duration"`
	Reward       string   `yaml:"reward"`
	Category     string   `yaml:"category"`
	Applicants   []string `yaml:"applicants"`
	// Receiver must be one of Applicants.
	Receiver string `yaml:"receiver"`
	Done     bool   `yaml:"done"`
}

type FixtureRating struct {
	Poster      string `yaml:"poster"`
	Postee      string `yaml:"postee"`
	Rate        int    `yaml:"rate"`
	Description string `yaml:"description"`
}

type FixtureChat struct {
	Members  [2]string        `yaml:"members"`
	Messages []FixtureMessage `yaml:"messages"`
}

type FixtureMessage struct {
	From string `yaml:"from"`
	Text string `yaml:"text"`
}

// LoadFixture decodes YAML from r. Unknown keys are an error.
func LoadFixture(r io.Reader) (*Fixture, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var fx Fixture
	if err := dec.Decode(&fx); err != nil {
		return nil, fmt.Errorf("decode fixture: %w", err)
	}
	return &fx, nil
}

// LoadFixtureFile reads a fixture from path.
func LoadFixtureFile(path string) (*Fixture, error) {
	// #nosec G304: path comes from CLI flags in a dev tool
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadFixture(f)
}

// ApplyFixture creates everything in fx, in file order.
func (s *Seeder) ApplyFixture(ctx context.Context, fx *Fixture) (Summary, error) {
	var sum Summary
	byEmail := make(map[string]*models.User, len(fx.Users))

	lookup := func(email string) (*models.User, error) {
		u, ok := byEmail[email]
		if !ok {
			return nil, fmt.Errorf("fixture references unknown user %q", email)
		}
		return u, nil
	}

	for _, fu := range fx.Users {
		password := fu.Password
		if password == "" {
			password = DefaultPassword
		}
		u, err := s.auth.Register(ctx, service.RegisterInput{
			Email:       fu.Email,
			Password:    password,
			First:       fu.First,
			Last:        fu.Last,
			PhoneNumber: fu.PhoneNumber,
		})
		if err != nil {
			return sum, fmt.Errorf("fixture user %s: %w", fu.Email, err)
		}
		// Register normalizes; index both spellings.
		byEmail[fu.Email] = u
		byEmail[u.Email] = u
		sum.Users++
	}

	for _, fj := range fx.Jobs {
		poster, err := lookup(fj.Poster)
		if err != nil {
			return sum, err
		}
		job, err := s.jobs.CreateJob(ctx, poster.ID, poster.ID, service.CreateJobInput{
			Title:        fj.Title,
			Description:  fj.Description,
			Location:     fj.Location,
			DateActivity: fj.DateActivity,
			Duration:     fj.Duration,
			Reward:       fj.Reward,
			Category:     fj.Category,
		})
		if err != nil {
			return sum, fmt.Errorf("fixture job %q: %w", fj.Title, err)
		}
		sum.Jobs++

		for _, email := range fj.Applicants {
			applicant, err := lookup(email)
			if err != nil {
				return sum, err
			}
			if _, err := s.jobs.ApplyToJob(ctx, applicant.ID, applicant.ID, job.ID); err != nil {
				return sum, fmt.Errorf("fixture job %q applicant %s: %w", fj.Title, email, err)
			}
		}
		if fj.Receiver != "" {
			receiver, err := lookup(fj.Receiver)
			if err != nil {
				return sum, err
			}
			if _, err := s.jobs.PickReceiver(ctx, poster.ID, job.ID, receiver.ID); err != nil {
				return sum, fmt.Errorf("fixture job %q receiver: %w", fj.Title, err)
			}
		}
		if fj.Done {
			if _, err := s.jobs.MarkDone(ctx, poster.ID, job.ID); err != nil {
				return sum, fmt.Errorf("fixture job %q done: %w", fj.Title, err)
			}
		}
	}

	for _, fr := range fx.Ratings {
		poster, err := lookup(fr.Poster)
		if err != nil {
			return sum, err
		}
		postee, err := lookup(fr.Postee)
		if err != nil {
			return sum, err
		}
		if _, err := s.ratings.CreateRating(ctx, poster.ID, poster.ID, postee.ID, service.CreateRatingInput{
			Rate:        fr.Rate,
			Description: fr.Description,
		}); err != nil {
			return sum, fmt.Errorf("fixture rating %s->%s: %w", fr.Poster, fr.Postee, err)
		}
		sum.Ratings++
	}

	for _, fc := range fx.Chats {
		a, err := lookup(fc.Members[0])
		if err != nil {
			return sum, err
		}
		b, err := lookup(fc.Members[1])
		if err != nil {
			return sum, err
		}
		chat, created, err := s.chats.CreateChat(ctx, a.ID, service.CreateChatInput{SenderID: a.ID, ReceiverID: b.ID})
		if err != nil {
			return sum, fmt.Errorf("fixture chat %s/%s: %w", fc.Members[0], fc.Members[1], err)
		}
		if created {
			sum.Chats++
		}
		for _, fm := range fc.Messages {
			sender, err := lookup(fm.From)
			if err != nil {
				return sum, err
			}
			if sender.ID != a.ID && sender.ID != b.ID {
				return sum, fmt.Errorf("fixture chat %s/%s: %s is not a member", fc.Members[0], fc.Members[1], fm.From)
			}
			if _, err := s.chats.PostMessage(ctx, chat.ID, sender.ID, fm.Text); err != nil {
				return sum, fmt.Errorf("fixture message: %w", err)
			}
			sum.Messages++
		}
	}

	s.logger.InfoContext(ctx, "fixture applied", "summary", sum.String())
	return sum, nil
}

//go:embed demo.yaml
var demoFixture []byte

// Demo returns the bundled development fixture.
func Demo() (*Fixture, error) {
	return LoadFixture(bytes.NewReader(demoFixture))
}
