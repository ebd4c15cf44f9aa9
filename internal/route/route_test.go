package route

import (
	"testing"

	"github.com/jwulff/krishi/internal/session"
)

type fakeSession struct {
	token   string
	user    session.User
	hasUser bool
}

func (f *fakeSession) CurrentToken() (string, bool) { return f.token, f.token != "" }
func (f *fakeSession) CurrentUser() (session.User, bool) {
	return f.user, f.hasUser
}

func TestGuardMatrix(t *testing.T) {
	admin := session.User{ID: "a", Role: session.RoleAdmin}
	farmer := session.User{ID: "f", Role: session.RoleFarmer}

	tests := []struct {
		name      string
		sess      fakeSession
		wantAuth  Decision
		wantAdmin Decision
	}{
		{"no token, no user", fakeSession{}, Decision{Redirect: ViewLogin}, Decision{Redirect: ViewLogin}},
		{"no token, admin user", fakeSession{user: admin, hasUser: true}, Decision{Redirect: ViewLogin}, Decision{Redirect: ViewLogin}},
		{"no token, other user", fakeSession{user: farmer, hasUser: true}, Decision{Redirect: ViewLogin}, Decision{Redirect: ViewLogin}},
		{"token, admin", fakeSession{token: "t", user: admin, hasUser: true}, Decision{Allow: true}, Decision{Allow: true}},
		{"token, other role", fakeSession{token: "t", user: farmer, hasUser: true}, Decision{Allow: true}, Decision{Redirect: ViewDashboard}},
		{"token, no user", fakeSession{token: "t"}, Decision{Allow: true}, Decision{Redirect: ViewDashboard}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RequireAuth(&tt.sess); got != tt.wantAuth {
				t.Errorf("RequireAuth = %+v, want %+v", got, tt.wantAuth)
			}
			if got := RequireAdmin(&tt.sess); got != tt.wantAdmin {
				t.Errorf("RequireAdmin = %+v, want %+v", got, tt.wantAdmin)
			}
		})
	}
}

func TestRouterReevaluatesEveryNavigation(t *testing.T) {
	s := &fakeSession{token: "t", user: session.User{Role: session.RoleFarmer}, hasUser: true}
	r := NewRouter(s, nil)

	if got := r.Navigate(ViewDashboard); got != ViewDashboard {
		t.Fatalf("Navigate(dashboard) = %q", got)
	}

	// session cleared behind the router's back
	s.token = ""
	s.hasUser = false

	if got := r.Navigate(ViewAssistant); got != ViewLogin {
		t.Errorf("Navigate(assistant) after clear = %q, want %q", got, ViewLogin)
	}
	if r.Current() != ViewLogin {
		t.Errorf("Current = %q, want %q", r.Current(), ViewLogin)
	}
}

func TestRouterAdminRedirects(t *testing.T) {
	s := &fakeSession{token: "t", user: session.User{Role: session.RoleEditor}, hasUser: true}
	r := NewRouter(s, nil)

	if got := r.Navigate(ViewAdmin); got != ViewDashboard {
		t.Errorf("editor Navigate(admin) = %q, want dashboard", got)
	}

	s.user.Role = session.RoleAdmin
	if got := r.Navigate(ViewAdmin); got != ViewAdmin {
		t.Errorf("admin Navigate(admin) = %q, want admin", got)
	}
}

func TestRouterPublicViews(t *testing.T) {
	r := NewRouter(&fakeSession{}, nil)
	for _, v := range []View{ViewHome, ViewLogin, ViewRegister} {
		if got := r.Navigate(v); got != v {
			t.Errorf("Navigate(%q) = %q", v, got)
		}
	}
	if got := r.Navigate(View("/unknown")); got != ViewLogin {
		t.Errorf("unknown view without session = %q, want login", got)
	}
}

func TestLandingFor(t *testing.T) {
	if got := LandingFor(session.User{Role: session.RoleAdmin}); got != ViewAdmin {
		t.Errorf("admin landing = %q", got)
	}
	if got := LandingFor(session.User{Role: session.RoleUser}); got != ViewDashboard {
		t.Errorf("user landing = %q", got)
	}
}
