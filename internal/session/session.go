// Package session holds the authenticated actor: the bearer token and the
// user record, spread over a persistent and an ephemeral storage tier.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jwulff/krishi/internal/logger"
	"github.com/sirupsen/logrus"
)

const (
	keyToken = "token"
	keyUser  = "user"
)

// ErrEmptyToken is returned by Login when no token is given.
var ErrEmptyToken = errors.New("session: empty token")

// Role is the application-level role carried by a user.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleFarmer Role = "farmer"
	RoleEditor Role = "editor"
	RoleUser   Role = "user"
)

// IsAdmin reports whether r grants access to admin views.
func (r Role) IsAdmin() bool {
	return Role(strings.ToLower(strings.TrimSpace(string(r)))) == RoleAdmin
}

// User is the identity stored next to the token.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Role  Role   `json:"role"`
}

// Store is the single source of truth for who is logged in. Token and user
// record always live in the same tier: persistent when the user asked to be
// remembered, ephemeral otherwise.
type Store struct {
	persistent Tier
	ephemeral  Tier
	log        logrus.FieldLogger
}

// New returns a Store over the two tiers.
func New(persistent, ephemeral Tier, log logrus.FieldLogger) *Store {
	if log == nil {
		log = logger.Discard()
	}
	return &Store{
		persistent: persistent,
		ephemeral:  ephemeral,
		log:        log.WithField("component", "session"),
	}
}

// Login records a new session, replacing any previous one.
func (s *Store) Login(token string, user User, remember bool) error {
	if strings.TrimSpace(token) == "" {
		return ErrEmptyToken
	}

	record, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}

	target, other := s.ephemeral, s.persistent
	if remember {
		target, other = s.persistent, s.ephemeral
	}

	if err := other.Delete(keyToken, keyUser); err != nil {
		return fmt.Errorf("drop previous session: %w", err)
	}
	if err := target.Set(keyToken, token); err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	if err := target.Set(keyUser, string(record)); err != nil {
		// never leave a token without its user
		_ = target.Delete(keyToken)
		return fmt.Errorf("store user: %w", err)
	}

	s.log.WithFields(logrus.Fields{"user": user.ID, "role": user.Role, "remember": remember}).Info("session started")
	return nil
}

// Logout clears both tiers. Both are always attempted.
func (s *Store) Logout() error {
	err := errors.Join(s.persistent.Clear(), s.ephemeral.Clear())
	if err != nil {
		s.log.WithError(err).Error("clear session")
		return fmt.Errorf("clear session: %w", err)
	}
	s.log.Info("session cleared")
	return nil
}

// CurrentToken returns the persistent token if present, else the ephemeral
// one.
func (s *Store) CurrentToken() (string, bool) {
	for _, tier := range []Tier{s.persistent, s.ephemeral} {
		v, ok, err := tier.Get(keyToken)
		if err != nil {
			s.log.WithError(err).Debug("read token")
			continue
		}
		if ok && v != "" {
			return v, true
		}
	}
	return "", false
}

// CurrentUser returns the stored user record. Missing or malformed data
// reads as no user.
func (s *Store) CurrentUser() (User, bool) {
	for _, tier := range []Tier{s.persistent, s.ephemeral} {
		v, ok, err := tier.Get(keyUser)
		if err != nil {
			s.log.WithError(err).Debug("read user")
			continue
		}
		if !ok || v == "" {
			continue
		}
		var u User
		if err := json.Unmarshal([]byte(v), &u); err != nil {
			s.log.WithError(err).Debug("malformed user record")
			continue
		}
		return u, true
	}
	return User{}, false
}
