package egress

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const defaultTokenTTL = 24 * time.Hour

// TokenClaims carries the bridge identity in the broker password token.
type TokenClaims struct {
	RestaurantID string `json:"restaurant_id"`
	jwt.RegisteredClaims
}

// TokenSource mints the short-lived JWT the cloud broker accepts as the
// MQTT password. A fresh token is produced for every connection attempt so
// reconnects after long outages never present an expired credential.
type TokenSource struct {
	restaurantID string
	secret       []byte
	ttl          time.Duration
	now          func() time.Time
}

// TokenOption customizes the token source.
type TokenOption func(*TokenSource)

// WithTokenTTL overrides the token lifetime.
func WithTokenTTL(ttl time.Duration) TokenOption {
	return func(t *TokenSource) {
		if ttl > 0 {
			t.ttl = ttl
		}
	}
}

// WithTokenNow assigns the time source.
func WithTokenNow(now func() time.Time) TokenOption {
	return func(t *TokenSource) {
		if now != nil {
			t.now = now
		}
	}
}

// NewTokenSource constructs a token source.
func NewTokenSource(restaurantID string, secret []byte, opts ...TokenOption) (*TokenSource, error) {
	if restaurantID == "" {
		return nil, errors.New("egress: empty restaurant id")
	}
	if len(secret) == 0 {
		return nil, errors.New("egress: empty token secret")
	}
	source := &TokenSource{
		restaurantID: restaurantID,
		secret:       secret,
		ttl:          defaultTokenTTL,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(source)
	}
	return source, nil
}

// Password signs a fresh HS256 token.
func (t *TokenSource) Password() (string, error) {
	if t == nil {
		return "", errors.New("egress: nil token source")
	}
	now := t.now().UTC()
	claims := TokenClaims{
		RestaurantID: t.restaurantID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   t.restaurantID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Credentials adapts the source to the broker client's credentials
// provider: username is the restaurant id, password the signed token.
func (t *TokenSource) Credentials() (string, string) {
	password, err := t.Password()
	if err != nil {
		// The broker rejects the empty password and the reconnect loop
		// retries; signing only fails on a misconfigured secret.
		return t.restaurantID, ""
	}
	return t.restaurantID, password
}
