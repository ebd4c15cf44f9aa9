package session

import (
	"errors"
	"testing"
)

// brokenTier fails every operation.
type brokenTier struct{}

var errBroken = errors.New("disk on fire")

func (brokenTier) Get(string) (string, bool, error) { return "", false, errBroken }
func (brokenTier) Set(string, string) error         { return errBroken }
func (brokenTier) Delete(...string) error           { return errBroken }
func (brokenTier) Clear() error                     { return errBroken }

func newTestStore(t *testing.T) (*Store, Tier, Tier) {
	t.Helper()
	persistent := openTestTier(t)
	ephemeral := NewMemoryTier()
	return New(persistent, ephemeral, nil), persistent, ephemeral
}

func TestLoginRemember(t *testing.T) {
	s, persistent, ephemeral := newTestStore(t)

	user := User{ID: "u1", Name: "Asha", Email: "asha@example.com", Role: RoleAdmin}
	if err := s.Login("tok-1", user, true); err != nil {
		t.Fatalf("Login: %v", err)
	}

	if v, ok, _ := persistent.Get(keyToken); !ok || v != "tok-1" {
		t.Errorf("persistent token = %q, %v", v, ok)
	}
	if _, ok, _ := ephemeral.Get(keyToken); ok {
		t.Error("ephemeral tier should not hold a token when remembered")
	}

	tok, ok := s.CurrentToken()
	if !ok || tok != "tok-1" {
		t.Errorf("CurrentToken = %q, %v", tok, ok)
	}
	got, ok := s.CurrentUser()
	if !ok {
		t.Fatal("CurrentUser missing")
	}
	if got != user {
		t.Errorf("CurrentUser = %+v, want %+v", got, user)
	}
}

func TestLoginEphemeralKeepsUserWithToken(t *testing.T) {
	s, persistent, ephemeral := newTestStore(t)

	if err := s.Login("tok-2", User{ID: "u2", Role: RoleFarmer}, false); err != nil {
		t.Fatalf("Login: %v", err)
	}

	if _, ok, _ := persistent.Get(keyUser); ok {
		t.Error("user record must not outlive an unremembered session")
	}
	if _, ok, _ := ephemeral.Get(keyUser); !ok {
		t.Error("user record should sit in the ephemeral tier")
	}
	if u, ok := s.CurrentUser(); !ok || u.Role != RoleFarmer {
		t.Errorf("CurrentUser = %+v, %v", u, ok)
	}
}

func TestLoginReplacesOtherTier(t *testing.T) {
	s, persistent, _ := newTestStore(t)

	s.Login("old", User{ID: "u1", Role: RoleAdmin}, true)
	s.Login("new", User{ID: "u2", Role: RoleFarmer}, false)

	if _, ok, _ := persistent.Get(keyToken); ok {
		t.Error("remembered token should be dropped by an ephemeral login")
	}
	tok, _ := s.CurrentToken()
	if tok != "new" {
		t.Errorf("CurrentToken = %q, want %q", tok, "new")
	}
	u, _ := s.CurrentUser()
	if u.ID != "u2" {
		t.Errorf("CurrentUser.ID = %q, want u2", u.ID)
	}
}

func TestLoginRejectsEmptyToken(t *testing.T) {
	s, _, _ := newTestStore(t)
	if err := s.Login("  ", User{ID: "u"}, true); !errors.Is(err, ErrEmptyToken) {
		t.Errorf("Login(empty) err = %v, want ErrEmptyToken", err)
	}
}

func TestLogoutClearsEverything(t *testing.T) {
	s, persistent, ephemeral := newTestStore(t)

	s.Login("tok", User{ID: "u1", Role: RoleAdmin}, true)
	// stray data in the other tier is cleared too
	ephemeral.Set(keyToken, "stale")

	if err := s.Logout(); err != nil {
		t.Fatalf("Logout: %v", err)
	}

	if _, ok := s.CurrentToken(); ok {
		t.Error("token should be absent after logout")
	}
	if _, ok := s.CurrentUser(); ok {
		t.Error("user should be absent after logout")
	}
	if _, ok, _ := persistent.Get(keyUser); ok {
		t.Error("persistent user should be cleared")
	}
}

func TestLogoutAttemptsBothTiers(t *testing.T) {
	ephemeral := NewMemoryTier()
	ephemeral.Set(keyToken, "tok")
	s := New(brokenTier{}, ephemeral, nil)

	if err := s.Logout(); !errors.Is(err, errBroken) {
		t.Errorf("Logout err = %v, want errBroken", err)
	}
	if _, ok, _ := ephemeral.Get(keyToken); ok {
		t.Error("ephemeral tier should be cleared even when persistent fails")
	}
}

func TestCurrentUserMalformed(t *testing.T) {
	s, persistent, _ := newTestStore(t)
	persistent.Set(keyToken, "tok")
	persistent.Set(keyUser, "{not json")

	if _, ok := s.CurrentUser(); ok {
		t.Error("malformed user record should read as absent")
	}
	if _, ok := s.CurrentToken(); !ok {
		t.Error("token should still be readable")
	}
}

func TestReadsDegradeOnTierErrors(t *testing.T) {
	s := New(brokenTier{}, NewMemoryTier(), nil)

	if _, ok := s.CurrentToken(); ok {
		t.Error("CurrentToken should be absent")
	}
	if _, ok := s.CurrentUser(); ok {
		t.Error("CurrentUser should be absent")
	}
}

func TestRoleIsAdmin(t *testing.T) {
	tests := map[Role]bool{
		RoleAdmin:  true,
		" Admin ":  true,
		RoleFarmer: false,
		RoleEditor: false,
		"":         false,
	}
	for r, want := range tests {
		if got := r.IsAdmin(); got != want {
			t.Errorf("Role(%q).IsAdmin() = %v, want %v", r, got, want)
		}
	}
}
