// Command main runs the data seeder for Lumen.
package main

import (
	"context"
	"flag"
	"log"

	"lumen/internal/auth"
	"lumen/internal/bootstrap"
	"lumen/internal/config"
	"lumen/internal/observability"
	"lumen/internal/seed"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	numUsers := flag.Int("users", cfg.SeedUsers, "Number of users to create")
	postsPerUser := flag.Int("posts", cfg.SeedPostsPerUser, "Number of posts per user")
	randSeed := flag.Int64("seed", 0, "Random seed, 0 for a time-based seed")
	flag.Parse()

	observability.InitLogger(cfg.Env, cfg.LogLevel)

	ctx := context.Background()
	rt, err := bootstrap.InitRuntime(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}
	defer func() {
		if err := rt.Close(ctx); err != nil {
			log.Printf("Runtime shutdown error: %v", err)
		}
	}()

	if cfg.StoreDriver == config.DriverMemory {
		log.Println("WARNING: seeding the memory store; the data is lost when this process exits")
	}

	s := seed.NewSeeder(rt.Posts, rt.Users, auth.NewBcryptHasher(), *randSeed)
	res, err := s.Run(ctx, seed.Options{
		Users:        *numUsers,
		PostsPerUser: *postsPerUser,
	})
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Printf("Created %d users, %d follows, %d posts, %d likes, %d comments",
		res.Users, res.Follows, res.Posts, res.Likes, res.Comments)
	log.Printf("All seeded users have the password: %s", seed.DefaultPassword)
}
