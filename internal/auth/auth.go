// Package auth runs the login, registration and logout flows: local form
// validation, the backend round trip, and recording the session.
package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jwulff/krishi/internal/api"
	"github.com/jwulff/krishi/internal/logger"
	"github.com/jwulff/krishi/internal/route"
	"github.com/jwulff/krishi/internal/session"
	"github.com/sirupsen/logrus"
)

// Backend is the part of the API client the flows use.
type Backend interface {
	Login(ctx context.Context, req api.LoginRequest) (api.LoginResponse, error)
	Register(ctx context.Context, req api.RegisterRequest) (api.RegisterResponse, error)
}

// SessionWriter records and clears sessions.
type SessionWriter interface {
	Login(token string, user session.User, remember bool) error
	Logout() error
}

// ValidationError rejects a form before anything is sent.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// Credentials is the login form.
type Credentials struct {
	Email    string
	Password string
}

// Validate applies the login form rules.
func (c Credentials) Validate() error {
	if !strings.Contains(c.Email, "@") {
		return &ValidationError{Field: "email", Message: "Enter a valid email"}
	}
	if len(c.Password) < 6 {
		return &ValidationError{Field: "password", Message: "Password must be 6+ characters"}
	}
	return nil
}

// Registration is the sign-up form.
type Registration struct {
	Name            string
	Email           string
	Password        string
	ConfirmPassword string
}

// Validate applies the registration form rules.
func (r Registration) Validate() error {
	if len([]rune(strings.TrimSpace(r.Name))) < 3 {
		return &ValidationError{Field: "name", Message: "Name must be 3+ characters"}
	}
	if !strings.Contains(r.Email, "@") {
		return &ValidationError{Field: "email", Message: "Invalid email"}
	}
	if len(r.Password) < 6 {
		return &ValidationError{Field: "password", Message: "Password must be 6+ characters"}
	}
	if r.Password != r.ConfirmPassword {
		return &ValidationError{Field: "confirmPassword", Message: "Passwords do not match"}
	}
	return nil
}

// Service wires the flows to a backend and a session store.
type Service struct {
	backend Backend
	session SessionWriter
	log     logrus.FieldLogger
}

// NewService returns a Service.
func NewService(backend Backend, sess SessionWriter, log logrus.FieldLogger) *Service {
	if log == nil {
		log = logger.Discard()
	}
	return &Service{backend: backend, session: sess, log: log.WithField("component", "auth")}
}

// Login validates the form, authenticates and stores the session. It
// returns the view the user should land on.
func (s *Service) Login(ctx context.Context, creds Credentials, remember bool) (route.View, error) {
	creds.Email = strings.TrimSpace(creds.Email)
	if err := creds.Validate(); err != nil {
		return route.ViewLogin, err
	}

	resp, err := s.backend.Login(ctx, api.LoginRequest{Email: creds.Email, Password: creds.Password})
	if err != nil {
		return route.ViewLogin, fmt.Errorf("login: %w", err)
	}

	user, ok := resp.SessionUser()
	if !ok {
		// no user record in the response: fall back to the token's claims
		user = userFromToken(resp.Token)
		user.Email = creds.Email
	}
	if user.Role == "" {
		user.Role = resp.Role
	}

	if err := s.session.Login(resp.Token, user, remember); err != nil {
		return route.ViewLogin, fmt.Errorf("store session: %w", err)
	}
	return route.LandingFor(user), nil
}

// Register validates the form and creates the account. When the backend
// hands back a token the user is logged in straight away and remembered.
func (s *Service) Register(ctx context.Context, form Registration) (route.View, error) {
	form.Name = strings.TrimSpace(form.Name)
	form.Email = strings.TrimSpace(form.Email)
	if err := form.Validate(); err != nil {
		return route.ViewRegister, err
	}

	resp, err := s.backend.Register(ctx, api.RegisterRequest{Name: form.Name, Email: form.Email, Password: form.Password})
	if err != nil {
		return route.ViewRegister, fmt.Errorf("register: %w", err)
	}

	if resp.Token == "" {
		s.log.WithField("email", form.Email).Info("registered without auto-login")
		return route.ViewLogin, nil
	}

	user := userFromToken(resp.Token)
	user.Name = form.Name
	user.Email = form.Email
	if resp.Role != "" {
		user.Role = resp.Role
	}

	if err := s.session.Login(resp.Token, user, true); err != nil {
		return route.ViewLogin, fmt.Errorf("store session: %w", err)
	}
	return route.ViewDashboard, nil
}

// Logout ends the session.
func (s *Service) Logout() (route.View, error) {
	if err := s.session.Logout(); err != nil {
		return route.ViewLogin, fmt.Errorf("logout: %w", err)
	}
	return route.ViewLogin, nil
}

type tokenClaims struct {
	jwt.RegisteredClaims
	UserID string       `json:"user_id"`
	Role   session.Role `json:"role"`
}

// userFromToken reads identity claims without verifying the signature. The
// client has no signing secret.
func userFromToken(token string) session.User {
	claims := &tokenClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return session.User{}
	}
	id := claims.UserID
	if id == "" {
		id = claims.Subject
	}
	return session.User{ID: id, Role: claims.Role}
}
