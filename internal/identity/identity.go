// Package identity supplies the current user identity from a signed
// session token. Mutating feed operations require an identity; without
// one the feed is read-only.
package identity

import (
	"errors"
	"fmt"
	"sync"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoIdentity is returned when no session is signed in.
var ErrNoIdentity = errors.New("no identity signed in")

// Identity is the current user's key and display metadata.
type Identity struct {
	UserID      string
	DisplayName string
	AvatarURL   string
}

// Provider supplies the current identity, if any.
type Provider interface {
	Current() (*Identity, error)
}

// SessionClaims are the claims carried by a session token.
type SessionClaims struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
	jwt.RegisteredClaims
}

// TokenProvider validates HMAC-signed session tokens and holds the
// resulting identity for the session.
type TokenProvider struct {
	secret []byte

	mu      sync.RWMutex
	current *Identity
}

// NewTokenProvider creates a provider validating tokens against the
// given HMAC secret.
func NewTokenProvider(secret string) *TokenProvider {
	return &TokenProvider{
		secret: []byte(secret),
	}
}

// SignIn parses and validates a session token and makes its identity
// current.
func (p *TokenProvider) SignIn(tokenString string) (*Identity, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return p.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid session token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("session token is not valid")
	}

	userID := claims.UserID
	if userID == "" {
		userID = claims.Subject
	}
	if userID == "" {
		return nil, fmt.Errorf("session token carries no user id")
	}

	ident := &Identity{
		UserID:      userID,
		DisplayName: claims.Name,
		AvatarURL:   claims.Avatar,
	}

	p.mu.Lock()
	p.current = ident
	p.mu.Unlock()

	return ident, nil
}

// SignOut clears the current identity.
func (p *TokenProvider) SignOut() {
	p.mu.Lock()
	p.current = nil
	p.mu.Unlock()
}

// Current returns the signed-in identity or ErrNoIdentity.
func (p *TokenProvider) Current() (*Identity, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.current == nil {
		return nil, ErrNoIdentity
	}
	ident := *p.current
	return &ident, nil
}
