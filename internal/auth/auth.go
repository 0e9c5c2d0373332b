package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	defaultIssuer   = "plantilla-pern"
	defaultTokenTTL = 24 * time.Hour
	clockSkew       = 5 * time.Second
)

// Claims is the access-token payload: the user's identity plus a frozen
// snapshot of their roles and permissions at sign time.
type Claims struct {
	UserID  string      `json:"id"`
	Nombres []string    `json:"nombres"`
	Email   string      `json:"email"`
	RUT     string      `json:"rut"`
	Roles   []RoleClaim `json:"roles"`
	jwt.RegisteredClaims
}

// Tokens signs and verifies HS256 access tokens.
type Tokens struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// TokenOption configures Tokens.
type TokenOption func(*Tokens)

// WithIssuer overrides the token issuer claim.
func WithIssuer(issuer string) TokenOption {
	return func(t *Tokens) {
		if issuer = strings.TrimSpace(issuer); issuer != "" {
			t.issuer = issuer
		}
	}
}

// WithTokenTTL configures access token lifetime.
func WithTokenTTL(ttl time.Duration) TokenOption {
	return func(t *Tokens) {
		if ttl > 0 {
			t.ttl = ttl
		}
	}
}

// WithTokenClock overrides the time source.
func WithTokenClock(fn func() time.Time) TokenOption {
	return func(t *Tokens) {
		if fn != nil {
			t.now = fn
		}
	}
}

// NewTokens constructs a signer for the given shared secret.
func NewTokens(secret string, opts ...TokenOption) (*Tokens, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("auth: token secret is not configured")
	}
	t := &Tokens{
		secret: []byte(secret),
		issuer: defaultIssuer,
		ttl:    defaultTokenTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// TTL reports the configured access token lifetime.
func (t *Tokens) TTL() time.Duration { return t.ttl }

// Issue signs a token for user with the given role snapshot.
func (t *Tokens) Issue(user User) (string, time.Time, error) {
	if strings.TrimSpace(user.ID) == "" {
		return "", time.Time{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	now := t.now().UTC()
	expiresAt := now.Add(t.ttl)
	claims := Claims{
		UserID:  user.ID,
		Nombres: user.Nombres,
		Email:   user.Email,
		RUT:     user.RUT,
		Roles:   RoleClaimsFor(user.Roles),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Parse verifies signature, issuer and timestamps and returns the claims.
func (t *Tokens) Parse(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.issuer),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockSkew),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, fmt.Errorf("%w: subject missing", ErrInvalidToken)
	}
	return claims, nil
}
