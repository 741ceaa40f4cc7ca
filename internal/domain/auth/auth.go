// Package auth issues and verifies bearer tokens carrying a user id and role.
package auth

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/golang-jwt/jwt/v5"
)

// Role gates access to staff and admin views.
type Role string

const (
	RoleUser  Role = "user"
	RoleStaff Role = "staff"
	RoleAdmin Role = "admin"
)

func (r Role) rank() int {
	switch r {
	case RoleUser:
		return 1
	case RoleStaff:
		return 2
	case RoleAdmin:
		return 3
	default:
		return 0
	}
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r.rank() > 0
}

// Allows reports whether r grants access to routes requiring the given role.
// Admin implies staff, staff implies user.
func (r Role) Allows(required Role) bool {
	return r.Valid() && r.rank() >= required.rank()
}

var (
	// ErrInvalidToken is returned for a missing, malformed, expired or
	// wrongly signed token.
	ErrInvalidToken = errors.New("invalid token")
	// ErrForbidden is returned when the caller's role is insufficient.
	ErrForbidden = errors.New("forbidden")
)

// Identity is the authenticated caller.
type Identity struct {
	UserID string
	Role   Role
}

// IsStaff reports whether the identity may act on other users' orders.
func (i Identity) IsStaff() bool {
	return i.Role.Allows(RoleStaff)
}

// Claims is the JWT payload.
type Claims struct {
	Role Role `json:"role"`
	jwt.RegisteredClaims
}

// Tokens issues and verifies HS256 tokens.
type Tokens struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokens creates a Tokens signer. ttl bounds the lifetime of issued tokens.
func NewTokens(secret, issuer string, ttl time.Duration) *Tokens {
	return &Tokens{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue signs a token for id.
func (t *Tokens) Issue(id Identity) (string, error) {
	if id.UserID == "" {
		return "", errors.New("user id is required")
	}
	if !id.Role.Valid() {
		return "", errors.Errorf("unknown role %q", id.Role)
	}

	now := t.now()
	claims := Claims{
		Role: id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", errors.Wrap(err, "sign token")
	}
	return signed, nil
}

// Verify parses token and returns the identity it carries.
func (t *Tokens) Verify(token string) (Identity, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (any, error) { return t.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil || !parsed.Valid {
		return Identity{}, ErrInvalidToken
	}
	if claims.Subject == "" || !claims.Role.Valid() {
		return Identity{}, ErrInvalidToken
	}
	return Identity{UserID: claims.Subject, Role: claims.Role}, nil
}

type identityKey struct{}

// WithIdentity stores id in ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext returns the identity stored by WithIdentity.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}
