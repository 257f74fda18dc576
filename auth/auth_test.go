package auth

import (
	"errors"
	"path/filepath"
	"testing"

	"stuffhappens/store"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewService(db, NewSessionManager())
}

func TestRegisterAndLogin(t *testing.T) {
	s := newTestService(t)

	if _, err := s.Register("player1", "secret123"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	user, sessionID, err := s.Login("player1", "secret123")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if user.Username != "player1" {
		t.Errorf("expected username player1, got %q", user.Username)
	}
	if sessionID == "" {
		t.Fatal("expected a session id")
	}

	userID, ok := s.ValidateSession(sessionID)
	if !ok || userID != user.ID {
		t.Fatalf("session does not resolve to user %d", user.ID)
	}

	s.Logout(sessionID)
	if _, ok := s.ValidateSession(sessionID); ok {
		t.Fatal("session must be invalid after logout")
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	s := newTestService(t)

	if _, err := s.Register("player1", "secret123"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if _, err := s.Register("player1", "other4567"); !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	s := newTestService(t)

	cases := []struct {
		name     string
		username string
		password string
		want     error
	}{
		{"short username", "ab", "secret123", ErrInvalidUsername},
		{"non-alphanumeric username", "play er!", "secret123", ErrInvalidUsername},
		{"markup-only username", "<b></b>", "secret123", ErrInvalidUsername},
		{"short password", "player1", "abc1", ErrInvalidPassword},
		{"letters only password", "player1", "justletters", ErrInvalidPassword},
		{"digits only password", "player1", "12345678", ErrInvalidPassword},
	}

	for _, tc := range cases {
		if _, err := s.Register(tc.username, tc.password); !errors.Is(err, tc.want) {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	s := newTestService(t)

	if _, err := s.Register("player1", "secret123"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if _, _, err := s.Login("player1", "wrongpass1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for wrong password, got %v", err)
	}
	if _, _, err := s.Login("nobody", "secret123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}
}

func TestSanitizeUsernameStripsHTML(t *testing.T) {
	if got := SanitizeUsername("  <script>alert(1)</script>bob  "); got != "bob" {
		t.Fatalf("expected 'bob', got %q", got)
	}
}
