// Package session persists the authenticated identity of the app user.
package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/mcsindia/BonJoyRiderApp-sub000/internal/model"
	"github.com/mcsindia/BonJoyRiderApp-sub000/internal/repository"
)

// Storage keys. Profile and contact keys live here because ClearSession owns their removal.
const (
	KeyToken        = "auth.token"
	KeyRefreshToken = "auth.refreshToken"
	KeyUser         = "auth.user"
	KeyExpiresAt    = "auth.expiresAt"
	KeyProfile      = "rider.profile"
	KeyContacts     = "rider.contacts"
)

var allKeys = []string{KeyToken, KeyRefreshToken, KeyUser, KeyExpiresAt, KeyProfile, KeyContacts}

// Store keeps token and user in a KV backend.
type Store struct {
	kv  repository.KV
	log *zap.Logger
	now func() time.Time
}

// New builds a Store; a nil logger disables logging.
func New(kv repository.KV, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{kv: kv, log: log, now: time.Now}
}

// SaveSession writes token, refresh token, user and expiry in one MultiSet, replacing any prior session.
// A zero ExpiresAt is filled from the token's exp claim when the token is a JWT.
// Keys the new session does not carry are blanked in the same write; the cached profile and
// contacts are blanked too unless the session belongs to the same user as before.
func (s *Store) SaveSession(ctx context.Context, sess model.Session) error {
	exp := sess.ExpiresAt
	if exp.IsZero() {
		exp = tokenExpiry(sess.Token)
	}
	user, err := json.Marshal(sess.User)
	if err != nil {
		return err
	}
	// an empty value reads as absent everywhere
	pairs := map[string]string{
		KeyToken:        sess.Token,
		KeyUser:         string(user),
		KeyRefreshToken: sess.RefreshToken,
		KeyExpiresAt:    "",
	}
	if !exp.IsZero() {
		pairs[KeyExpiresAt] = exp.UTC().Format(time.RFC3339)
	}
	if prev, ok := s.GetUser(ctx); !ok || prev.ID == 0 || prev.ID != sess.User.ID {
		pairs[KeyProfile] = ""
		pairs[KeyContacts] = ""
	}
	return s.kv.MultiSet(ctx, pairs)
}

// GetToken returns the bearer token. Read failures and expired tokens report ok=false.
func (s *Store) GetToken(ctx context.Context) (string, bool) {
	vals, err := s.kv.MultiGet(ctx, KeyToken, KeyExpiresAt)
	if err != nil {
		s.log.Warn("session token read failed", zap.Error(err))
		return "", false
	}
	tok := vals[KeyToken]
	if tok == "" {
		return "", false
	}
	if raw := vals[KeyExpiresAt]; raw != "" {
		if exp, err := time.Parse(time.RFC3339, raw); err == nil && !s.now().Before(exp) {
			return "", false
		}
	}
	return tok, true
}

// GetRefreshToken returns the refresh token, if any.
func (s *Store) GetRefreshToken(ctx context.Context) (string, bool) {
	v, err := s.kv.Get(ctx, KeyRefreshToken)
	if err != nil || v == "" {
		return "", false
	}
	return v, true
}

// GetUser returns the stored user summary; unreadable data reports ok=false.
func (s *Store) GetUser(ctx context.Context) (*model.User, bool) {
	var u model.User
	found, err := repository.GetJSON(ctx, s.kv, KeyUser, &u)
	if err != nil {
		s.log.Warn("session user read failed", zap.Error(err))
		return nil, false
	}
	if !found {
		return nil, false
	}
	return &u, true
}

// ClearSession removes the session and every cache that depends on it. Safe to call repeatedly.
func (s *Store) ClearSession(ctx context.Context) error {
	return s.kv.MultiRemove(ctx, allKeys...)
}

// tokenExpiry reads exp from a JWT without verifying it; opaque tokens yield zero.
func tokenExpiry(tok string) time.Time {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(tok, &claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}
