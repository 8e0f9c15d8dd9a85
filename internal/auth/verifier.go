// Package auth verifies session tokens issued by the identity provider.
package auth

import (
	"crypto/rsa"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/smallbiznis/givebox/internal/clock"
	"github.com/smallbiznis/givebox/internal/config"
)

const defaultLeeway = 5 * time.Second

var (
	ErrMissingToken = errors.New("missing_token")
	ErrInvalidToken = errors.New("invalid_token")
)

// Claims are the session token claims used by the service.
type Claims struct {
	SessionID       string `json:"sid,omitempty"`
	AuthorizedParty string `json:"azp,omitempty"`
	jwt.RegisteredClaims
}

// Principal is the authenticated caller.
type Principal struct {
	UserID    string
	SessionID string
}

// Verifier checks RS256 session tokens against the provider's public key.
type Verifier struct {
	key     *rsa.PublicKey
	parties map[string]struct{}
	clock   clock.Clock
	leeway  time.Duration
}

// NewVerifier parses the PEM public key from CLERK_JWT_KEY. Tokens carrying
// an azp claim must name APP_URL.
func NewVerifier(cfg config.Config, c clock.Clock) (*Verifier, error) {
	key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(normalizePEM(cfg.ClerkJWTKey)))
	if err != nil {
		return nil, err
	}
	parties := map[string]struct{}{}
	if url := strings.TrimSpace(cfg.AppURL); url != "" {
		parties[url] = struct{}{}
	}
	return newVerifier(key, parties, c), nil
}

func newVerifier(key *rsa.PublicKey, parties map[string]struct{}, c clock.Clock) *Verifier {
	if c == nil {
		c = clock.System()
	}
	return &Verifier{key: key, parties: parties, clock: c, leeway: defaultLeeway}
}

// Verify validates signature, expiry and not-before, and returns the caller.
func (v *Verifier) Verify(raw string) (Principal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Principal{}, ErrMissingToken
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (any, error) { return v.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithLeeway(v.leeway),
		jwt.WithTimeFunc(v.clock.Now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return Principal{}, ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return Principal{}, ErrInvalidToken
	}
	if claims.AuthorizedParty != "" && len(v.parties) > 0 {
		if _, ok := v.parties[strings.TrimRight(claims.AuthorizedParty, "/")]; !ok {
			return Principal{}, ErrInvalidToken
		}
	}
	return Principal{UserID: claims.Subject, SessionID: claims.SessionID}, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

// normalizePEM accepts keys pasted into env files with literal \n escapes.
func normalizePEM(key string) string {
	return strings.ReplaceAll(strings.TrimSpace(key), `\n`, "\n")
}
