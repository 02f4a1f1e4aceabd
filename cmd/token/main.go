package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/joho/godotenv"

	"github.com/oksasatya/go-user-service/config"
	"github.com/oksasatya/go-user-service/pkg/helpers"
)

// Mints an access token for the protected user routes.
func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	subject := flag.String("sub", "operator", "token subject")
	role := flag.String("role", "admin", "role claim")
	ttl := flag.Duration("ttl", cfg.AccessTTL, "token lifetime")
	flag.Parse()

	jm := helpers.NewJWTManager(cfg.JWTAccessSecret, *ttl, cfg.JWTIssuer)
	tok, exp, err := jm.GenerateAccessToken(*subject, *role)
	if err != nil {
		log.Fatalf("failed to sign token: %v", err)
	}
	fmt.Printf("expires_at=%s\n%s\n", exp.UTC().Format("2006-01-02T15:04:05Z"), tok)
}
