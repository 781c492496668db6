// Package identity carries the outcome of authentication through a request:
// who the caller is and whether they currently hold administrator privilege.
package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Shivanand-hulikatti/hall-attendance/internal/model"
	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for tokens that fail signature or claim checks.
var ErrInvalidToken = errors.New("invalid token")

// Caller is the authenticated principal of a request. The zero value is an
// anonymous caller.
type Caller struct {
	UserID  string
	Email   string
	IsAdmin bool
}

// Anonymous reports whether no user is attached.
func (c Caller) Anonymous() bool {
	return c.UserID == ""
}

type callerKey struct{}

// WithCaller returns a context carrying c.
func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

// CallerFrom returns the caller stored in ctx, or an anonymous caller.
func CallerFrom(ctx context.Context) Caller {
	c, _ := ctx.Value(callerKey{}).(Caller)
	return c
}

// Directory resolves a user id to its current directory entry. Unknown users
// are reported with repository.ErrNotFound.
type Directory interface {
	LookupUser(ctx context.Context, uid string) (*model.User, error)
}

// Claims is the bearer token payload.
type Claims struct {
	Email string `json:"email"`
	Admin bool   `json:"admin"`
	jwt.RegisteredClaims
}

// Tokens signs and verifies HS256 bearer tokens.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokens constructs a Tokens with the shared secret and token lifetime.
func NewTokens(secret string, ttl time.Duration) *Tokens {
	return &Tokens{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs a token for the given caller.
func (t *Tokens) Issue(c Caller) (string, error) {
	now := t.now()
	claims := Claims{
		Email: c.Email,
		Admin: c.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   c.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses a signed token and returns the caller it names.
func (t *Tokens) Verify(token string) (Caller, error) {
	claims := &Claims{}
	keyFunc := func(*jwt.Token) (any, error) { return t.secret, nil }
	parsed, err := jwt.ParseWithClaims(token, claims, keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil || !parsed.Valid {
		return Caller{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return Caller{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return Caller{UserID: claims.Subject, Email: claims.Email, IsAdmin: claims.Admin}, nil
}
