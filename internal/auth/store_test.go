package auth

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestVerifySHA256(t *testing.T) {
	st := NewStore(map[string]string{
		"alice": HashPassword("secret123"),
	})

	if err := st.Verify("alice", "secret123"); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if err := st.Verify("alice", "wrong"); !errors.Is(err, ErrBadPassword) {
		t.Fatalf("expected ErrBadPassword, got %v", err)
	}
	if err := st.Verify("bob", "secret123"); !errors.Is(err, ErrUnknownNick) {
		t.Fatalf("expected ErrUnknownNick, got %v", err)
	}
}

func TestVerifyBcrypt(t *testing.T) {
	hash, err := HashPasswordBcrypt("hunter2hunter2")
	if err != nil {
		t.Fatalf("bcrypt hash: %v", err)
	}
	st := NewStore(map[string]string{"carol": hash})

	if err := st.Verify("carol", "hunter2hunter2"); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if err := st.Verify("carol", "hunter3"); !errors.Is(err, ErrBadPassword) {
		t.Fatalf("expected ErrBadPassword, got %v", err)
	}
}

func TestVerifyUppercaseDigest(t *testing.T) {
	// Hand-edited credential files sometimes carry uppercase hex.
	st := NewStore(map[string]string{
		"dave": "EF92B778BAFE771E89245B89ECBC08A44A4E166C06659911881F383D4473E94F",
	})
	if err := st.Verify("dave", "password123"); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
}

func TestLoadStore(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "passwords.json")
	content := `{"alice": "` + HashPassword("pw") + `"}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write credentials: %v", err)
	}

	st, err := LoadStore(path)
	if err != nil {
		t.Fatalf("load store: %v", err)
	}
	if st.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", st.Len())
	}
	if err := st.Verify("alice", "pw"); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
}

func TestLoadStoreMissingFile(t *testing.T) {
	if _, err := LoadStore(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestAdminTokenRoundTrip(t *testing.T) {
	cfg := &JWTConfig{
		Secret:   []byte("test-secret-change-me"),
		Issuer:   "ircgate",
		Audience: "admin",
		TTL:      24 * time.Hour,
	}

	token, err := GenerateToken(cfg, "operator")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	claims, err := ValidateToken(cfg, token)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}
	if claims.Subject != "operator" {
		t.Fatalf("subject = %q, want operator", claims.Subject)
	}

	bad := &JWTConfig{Secret: []byte("other"), Issuer: cfg.Issuer, Audience: cfg.Audience, TTL: cfg.TTL}
	if _, err := ValidateToken(bad, token); err == nil {
		t.Fatal("expected validation failure with wrong secret")
	}
}
