// Command mint-token issues a bearer token for local testing and operations.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xenking/cafe-ordering/internal/domain/auth"
)

func main() {
	var (
		secret string
		issuer string
		ttl    time.Duration
		userID string
		role   string
	)

	flag.StringVar(&secret, "secret", "", "HMAC secret (or JWT_SECRET env)")
	flag.StringVar(&issuer, "issuer", "cafe-ordering", "token issuer, must match the server")
	flag.DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	flag.StringVar(&userID, "user", "", "user id; a random one is generated when empty")
	flag.StringVar(&role, "role", string(auth.RoleUser), "user, staff or admin")
	flag.Parse()

	lg, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	if secret == "" {
		secret = os.Getenv("JWT_SECRET")
	}

	token, err := mint(secret, issuer, ttl, userID, auth.Role(role))
	if err != nil {
		lg.Fatal("Mint token", zap.Error(err))
	}
	fmt.Println(token)
}

func mint(secret, issuer string, ttl time.Duration, userID string, role auth.Role) (string, error) {
	if secret == "" {
		return "", errors.New("secret is required: set --secret or JWT_SECRET")
	}
	if !role.Valid() {
		return "", errors.Errorf("unknown role %q", role)
	}
	if userID == "" {
		userID = uuid.New().String()
	}
	return auth.NewTokens(secret, issuer, ttl).Issue(auth.Identity{UserID: userID, Role: role})
}
