// Package route gates views on the current session. Guards are pure and are
// evaluated on every navigation, so a session cleared mid-visit shows up on
// the next one.
package route

import (
	"sync"

	"github.com/jwulff/krishi/internal/session"
	"github.com/sirupsen/logrus"
)

// View identifies a screen of the client.
type View string

const (
	ViewHome      View = "/"
	ViewLogin     View = "/login"
	ViewRegister  View = "/register"
	ViewDashboard View = "/dashboard"
	ViewAssistant View = "/assistant"
	ViewCrop      View = "/crop"
	ViewAdmin     View = "/admin"
)

// Access is the guard policy attached to a view.
type Access int

const (
	Public Access = iota
	Authenticated
	AdminOnly
)

var policies = map[View]Access{
	ViewHome:      Public,
	ViewLogin:     Public,
	ViewRegister:  Public,
	ViewDashboard: Authenticated,
	ViewAssistant: Authenticated,
	ViewCrop:      Authenticated,
	ViewAdmin:     AdminOnly,
}

// AccessFor returns the policy for v. Unknown views require authentication.
func AccessFor(v View) Access {
	if a, ok := policies[v]; ok {
		return a
	}
	return Authenticated
}

// Reader is the read side of the session store.
type Reader interface {
	CurrentToken() (string, bool)
	CurrentUser() (session.User, bool)
}

// Decision is the outcome of a guard: render the requested view, or go to
// Redirect instead.
type Decision struct {
	Allow    bool
	Redirect View
}

// RequireAuth lets through any session with a token.
func RequireAuth(s Reader) Decision {
	if _, ok := s.CurrentToken(); !ok {
		return Decision{Redirect: ViewLogin}
	}
	return Decision{Allow: true}
}

// RequireAdmin needs a token and a resolvable admin user. Everyone else with
// a token lands on the dashboard.
func RequireAdmin(s Reader) Decision {
	if _, ok := s.CurrentToken(); !ok {
		return Decision{Redirect: ViewLogin}
	}
	u, ok := s.CurrentUser()
	if !ok || !u.Role.IsAdmin() {
		return Decision{Redirect: ViewDashboard}
	}
	return Decision{Allow: true}
}

// Check evaluates the guard that protects v.
func Check(s Reader, v View) Decision {
	switch AccessFor(v) {
	case AdminOnly:
		return RequireAdmin(s)
	case Authenticated:
		return RequireAuth(s)
	default:
		return Decision{Allow: true}
	}
}

// LandingFor is where a freshly logged in user goes.
func LandingFor(u session.User) View {
	if u.Role.IsAdmin() {
		return ViewAdmin
	}
	return ViewDashboard
}

// Router tracks the current view. It is shared between the UI loop and the
// HTTP client's interceptors.
type Router struct {
	mu      sync.Mutex
	session Reader
	current View
	log     logrus.FieldLogger
}

// NewRouter starts at the home view.
func NewRouter(s Reader, log logrus.FieldLogger) *Router {
	r := &Router{session: s, current: ViewHome}
	if log != nil {
		r.log = log.WithField("component", "router")
	}
	return r
}

// Navigate runs the guard for v and moves to v or to the guard's redirect.
// It returns the view actually shown.
func (r *Router) Navigate(v View) View {
	target := v
	for range len(policies) {
		d := Check(r.session, target)
		if d.Allow {
			break
		}
		target = d.Redirect
	}

	r.mu.Lock()
	r.current = target
	r.mu.Unlock()

	if r.log != nil {
		fields := logrus.Fields{"requested": string(v), "view": string(target)}
		r.log.WithFields(fields).Debug("navigate")
	}
	return target
}

// Current returns the view being shown.
func (r *Router) Current() View {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}
