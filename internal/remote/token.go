package remote

import (
	"context"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenProvider supplies the bearer token attached to every remote call.
// Injected so nothing in the engine reaches into global session state.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// StaticTokenProvider returns a fixed token, typically a service credential
// from configuration. An empty token means "not authenticated".
type StaticTokenProvider string

// Token implements TokenProvider.
func (p StaticTokenProvider) Token(ctx context.Context) (string, error) {
	token := strings.TrimSpace(string(p))
	if token == "" {
		return "", ErrNoToken
	}
	return token, nil
}

// ServiceClaims are the claims minted into self-issued service tokens.
type ServiceClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// HMACTokenProvider mints short-lived HMAC-signed service tokens carrying a
// role claim, mirroring what the identity provider issues to end users.
type HMACTokenProvider struct {
	secret  []byte
	subject string
	role    string
	ttl     time.Duration
	clock   func() time.Time
}

// NewHMACTokenProvider creates a provider signing with the shared secret.
func NewHMACTokenProvider(secret, subject, role string, ttl time.Duration) *HMACTokenProvider {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &HMACTokenProvider{
		secret:  []byte(secret),
		subject: subject,
		role:    role,
		ttl:     ttl,
		clock:   func() time.Time { return time.Now().UTC() },
	}
}

// Token implements TokenProvider.
func (p *HMACTokenProvider) Token(ctx context.Context) (string, error) {
	if len(p.secret) == 0 {
		return "", ErrNoToken
	}
	now := p.clock()
	claims := ServiceClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.ttl)),
		},
		Role: p.role,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(p.secret)
	if err != nil {
		return "", err
	}
	return signed, nil
}
