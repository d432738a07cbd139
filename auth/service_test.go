package auth

import (
	"errors"
	"testing"

	"github.com/bandloop/bandloop/store"
)

func testService(t *testing.T) (*Service, *store.SessionStore) {
	t.Helper()
	db, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	sessions := store.NewSessionStore(db)
	return NewService(store.NewUserStore(db), sessions), sessions
}

func TestSignupAndLogin(t *testing.T) {
	svc, sessions := testService(t)

	user, token, err := svc.Signup("alice", "correct horse")
	if err != nil {
		t.Fatalf("Signup failed: %v", err)
	}
	if user.ID == 0 || token == "" {
		t.Fatalf("expected user id and token, got %d %q", user.ID, token)
	}

	sess, err := sessions.Validate(token)
	if err != nil || sess.UserID != user.ID {
		t.Errorf("signup token should validate: %v %+v", err, sess)
	}

	_, loginToken, err := svc.Login("alice", "correct horse")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if loginToken == token {
		t.Error("login should issue a fresh token")
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc, _ := testService(t)
	svc.Signup("alice", "correct horse")

	if _, _, err := svc.Login("alice", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials for bad password, got %v", err)
	}
	if _, _, err := svc.Login("nobody", "whatever"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}
}

func TestSignupValidation(t *testing.T) {
	svc, _ := testService(t)

	if _, _, err := svc.Signup("ab", "long enough pw"); !errors.Is(err, ErrInvalidUsername) {
		t.Errorf("short username: got %v", err)
	}
	if _, _, err := svc.Signup("alice", "short"); !errors.Is(err, ErrInvalidPassword) {
		t.Errorf("short password: got %v", err)
	}

	svc.Signup("alice", "correct horse")
	if _, _, err := svc.Signup("alice", "correct horse"); !errors.Is(err, store.ErrUsernameTaken) {
		t.Errorf("duplicate username: got %v", err)
	}
}

func TestLogout(t *testing.T) {
	svc, sessions := testService(t)
	_, token, _ := svc.Signup("alice", "correct horse")

	if err := svc.Logout(token); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if _, err := sessions.Validate(token); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("token should be gone after logout, got %v", err)
	}
}

func TestPasswordHasher(t *testing.T) {
	h := NewPasswordHasher()

	hash, err := h.Hash("hunter22")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if hash == "hunter22" {
		t.Error("hash must not equal the plaintext")
	}
	if !h.Verify("hunter22", hash) {
		t.Error("Verify should accept the right password")
	}
	if h.Verify("hunter23", hash) {
		t.Error("Verify should reject a wrong password")
	}
}
