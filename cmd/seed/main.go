// Command main runs the database seeder for Side Quest.
package main

import (
	"context"
	"flag"
	"log"

	"sidequest/internal/config"
	"sidequest/internal/database"
	"sidequest/internal/middleware"
	"sidequest/internal/seed"
	"sidequest/internal/storage"

	"golang.org/x/crypto/bcrypt"
)

func main() {
	defaults := seed.DefaultOptions()
	numUsers := flag.Int("users", defaults.Users, "Number of users to create")
	numJobs := flag.Int("jobs", defaults.Jobs, "Number of jobs to create")
	numRatings := flag.Int("ratings", defaults.Ratings, "Number of ratings to create")
	numChats := flag.Int("chats", defaults.Chats, "Number of chats to create")
	numMessages := flag.Int("messages", defaults.Messages, "Messages per chat")
	randSeed := flag.Int64("seed", 0, "Random seed (0 = time based)")
	fixture := flag.String("fixture", "", `YAML fixture to load instead of random data ("demo" for the bundled one)`)
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	fast := flag.Bool("fast", false, "Hash passwords with the minimum bcrypt cost")
	flag.Parse()

	log.Println("Database Seeder")
	log.Println("===============")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.IsProduction() {
		log.Fatal("Refusing to seed a production database")
	}

	// Connect to database
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	store, err := storage.New(cfg)
	if err != nil {
		log.Fatalf("Failed to open object storage: %v", err)
	}

	cost := cfg.BcryptCost
	if *fast {
		cost = bcrypt.MinCost
	}
	s := seed.NewSeeder(db, store, cost, middleware.Logger)
	ctx := context.Background()

	if *shouldClean {
		if err := s.ClearAll(ctx); err != nil {
			log.Fatalf("Cleanup failed: %v", err)
		}
	}

	var sum seed.Summary
	switch *fixture {
	case "":
		sum, err = s.Generate(ctx, seed.Options{
			Users:    *numUsers,
			Jobs:     *numJobs,
			Ratings:  *numRatings,
			Chats:    *numChats,
			Messages: *numMessages,
			RandSeed: *randSeed,
		})
	default:
		var fx *seed.Fixture
		if *fixture == "demo" {
			fx, err = seed.Demo()
		} else {
			fx, err = seed.LoadFixtureFile(*fixture)
		}
		if err != nil {
			log.Fatalf("Failed to load fixture: %v", err)
		}
		sum, err = s.ApplyFixture(ctx, fx)
	}
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Printf("Created %s", sum)
	log.Printf("All generated users have the password: %s", seed.DefaultPassword)
}
