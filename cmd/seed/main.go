package main

import (
	"context"
	"fmt"
	"log"

	"github.com/joho/godotenv"

	"github.com/oksasatya/go-user-service/config"
	userapp "github.com/oksasatya/go-user-service/internal/application"
	"github.com/oksasatya/go-user-service/internal/domain"
	pginfra "github.com/oksasatya/go-user-service/internal/infrastructure/postgres"
	"github.com/oksasatya/go-user-service/pkg/helpers"
)

var demoUsers = []userapp.CreateUserRequest{
	{Email: "demo.user@example.com", Name: "Demo User"},
	{Email: "jane.doe@example.com", Name: "Jane Doe"},
	{Email: "john.smith@example.com", Name: "John Smith"},
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := helpers.NewLogger(cfg.AppName+"-seed", cfg.Env)
	ctx := context.Background()

	pool, err := pginfra.NewPool(ctx, cfg.PostgresDSN(), pginfra.PoolOptions{MaxConns: 2})
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	svc := userapp.NewUserUseCases(pginfra.NewUserRepository(pool), logger)
	for _, req := range demoUsers {
		u, err := svc.CreateUser(ctx, req)
		if domain.IsAlreadyExists(err) {
			fmt.Printf("skipped existing user: email=%s\n", req.Email)
			continue
		}
		if err != nil {
			log.Fatalf("failed to seed user %s: %v", req.Email, err)
		}
		fmt.Printf("seeded user: id=%s email=%s name=%s\n", u.ID, u.Email, u.Name)
	}
}
