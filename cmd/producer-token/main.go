package main

import (
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"token-registry.backend/internal/config"
	"token-registry.backend/pkg/jwt"
)

func main() {
	subject := flag.String("subject", "", "producer name, e.g. balance-scanner")
	scopes := flag.String("scopes", jwt.ScopeRead+","+jwt.ScopeWrite, "comma separated scopes")
	expiry := flag.Duration("expiry", 0, "token lifetime, defaults to JWT_EXPIRY")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()

	scopeList, err := validateInputs(*subject, *scopes)
	if err != nil {
		log.Fatal(err)
	}

	token, err := buildToken(cfg.JWT, *subject, scopeList, *expiry)
	if err != nil {
		log.Fatalf("failed to sign token: %v", err)
	}

	fmt.Println("Generated producer token")
	fmt.Printf("PRODUCER_TOKEN=%s\n", token)
}

func validateInputs(subject, scopes string) ([]string, error) {
	if strings.TrimSpace(subject) == "" {
		return nil, fmt.Errorf("subject is required")
	}

	var out []string
	for _, s := range strings.Split(scopes, ",") {
		s = strings.TrimSpace(s)
		switch s {
		case "":
			continue
		case jwt.ScopeRead, jwt.ScopeWrite:
			out = append(out, s)
		default:
			return nil, fmt.Errorf("invalid scope: %s (allowed: %s, %s)", s, jwt.ScopeRead, jwt.ScopeWrite)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("at least one scope is required")
	}
	return out, nil
}

func buildToken(cfg config.JWTConfig, subject string, scopes []string, expiry time.Duration) (string, error) {
	if expiry <= 0 {
		expiry = cfg.Expiry
	}
	return jwt.NewJWTService(cfg.Secret, cfg.Issuer, expiry).GenerateProducerToken(subject, scopes...)
}
