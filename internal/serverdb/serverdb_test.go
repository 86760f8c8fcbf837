package serverdb

import (
	"errors"
	"strings"
	"testing"
	"time"
)

// testHash is a syntactically valid stand-in; serverdb never verifies it.
const testHash = "$argon2id$v=19$m=65536,t=1,p=4$c2FsdA$a2V5"

func newTestDB(t *testing.T) *ServerDB {
	t.Helper()
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func mustCreateUser(t *testing.T, db *ServerDB, email string) *User {
	t.Helper()
	u, err := db.CreateUser(email, testHash)
	if err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return u
}

// --- User tests ---

func TestCreateUser(t *testing.T) {
	db := newTestDB(t)
	u, err := db.CreateUser("Alice@Example.COM", testHash)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if u.Email != "alice@example.com" {
		t.Errorf("email not lowercased: %s", u.Email)
	}
	if !strings.HasPrefix(u.ID, "u_") {
		t.Errorf("unexpected id prefix: %s", u.ID)
	}
}

func TestCreateUserDuplicate(t *testing.T) {
	db := newTestDB(t)
	mustCreateUser(t, db, "dup@test.com")
	_, err := db.CreateUser("DUP@test.com", testHash)
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestCreateUserEmptyEmail(t *testing.T) {
	db := newTestDB(t)
	if _, err := db.CreateUser("", testHash); err == nil {
		t.Fatal("expected error for empty email")
	}
	if _, err := db.CreateUser("a@test.com", ""); err == nil {
		t.Fatal("expected error for empty hash")
	}
}

func TestGetCredentials(t *testing.T) {
	db := newTestDB(t)
	mustCreateUser(t, db, "find@test.com")

	u, hash, err := db.GetCredentials("FIND@test.com")
	if err != nil {
		t.Fatal(err)
	}
	if u == nil || u.Email != "find@test.com" {
		t.Fatal("user not found by email")
	}
	if hash != testHash {
		t.Errorf("hash = %q", hash)
	}

	u, hash, err = db.GetCredentials("missing@test.com")
	if err != nil {
		t.Fatal(err)
	}
	if u != nil || hash != "" {
		t.Fatal("expected nil for missing user")
	}
}

func TestGetUserByIDNotFound(t *testing.T) {
	db := newTestDB(t)
	found, err := db.GetUserByID("u_nonexistent")
	if err != nil {
		t.Fatal(err)
	}
	if found != nil {
		t.Fatal("expected nil for missing user")
	}
}

func TestListUsers(t *testing.T) {
	db := newTestDB(t)
	mustCreateUser(t, db, "a@test.com")
	mustCreateUser(t, db, "b@test.com")
	users, err := db.ListUsers()
	if err != nil {
		t.Fatal(err)
	}
	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(users))
	}
}

// --- Profile tests ---

func TestUpsertProfile(t *testing.T) {
	db := newTestDB(t)
	u := mustCreateUser(t, db, "p@test.com")

	if p, err := db.GetProfile(u.ID); err != nil || p != nil {
		t.Fatalf("expected no profile yet, got %+v, %v", p, err)
	}

	p, err := db.UpsertProfile(u.ID, "  Pat  ")
	if err != nil {
		t.Fatal(err)
	}
	if p.DisplayName != "Pat" {
		t.Errorf("display name = %q", p.DisplayName)
	}

	p, err = db.UpsertProfile(u.ID, "Patricia")
	if err != nil {
		t.Fatal(err)
	}
	if p.DisplayName != "Patricia" {
		t.Errorf("display name after update = %q", p.DisplayName)
	}
}

func TestUpsertProfileMissingUser(t *testing.T) {
	db := newTestDB(t)
	if _, err := db.UpsertProfile("u_missing", "x"); err == nil {
		t.Fatal("expected error for missing user")
	}
}

// --- API Key tests ---

func TestGenerateAndVerifyAPIKey(t *testing.T) {
	db := newTestDB(t)
	u := mustCreateUser(t, db, "key@test.com")

	plaintext, ak, err := db.GenerateAPIKey(u.ID, "test key", nil)
	if err != nil {
		t.Fatalf("generate api key: %v", err)
	}
	if !strings.HasPrefix(plaintext, "wl_live_") {
		t.Errorf("unexpected key prefix: %s", plaintext[:10])
	}
	if !strings.HasPrefix(ak.ID, "ak_") {
		t.Errorf("unexpected id prefix: %s", ak.ID)
	}

	verifiedKey, verifiedUser, err := db.VerifyAPIKey(plaintext)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if verifiedKey.ID != ak.ID {
		t.Error("key ID mismatch")
	}
	if verifiedUser.ID != u.ID {
		t.Error("user ID mismatch")
	}
	if verifiedKey.LastUsedAt == nil {
		t.Error("last_used_at should be set")
	}
}

func TestVerifyAPIKeyInvalid(t *testing.T) {
	db := newTestDB(t)
	ak, u, err := db.VerifyAPIKey("wl_live_invalidkeyhere")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ak != nil || u != nil {
		t.Fatal("expected nil result for invalid key")
	}
}

func TestVerifyAPIKeyExpired(t *testing.T) {
	db := newTestDB(t)
	u := mustCreateUser(t, db, "expired@test.com")
	past := time.Now().Add(-24 * time.Hour)
	plaintext, _, err := db.GenerateAPIKey(u.ID, "expired", &past)
	if err != nil {
		t.Fatal(err)
	}
	ak, verifiedUser, err := db.VerifyAPIKey(plaintext)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ak != nil || verifiedUser != nil {
		t.Fatal("expected nil result for expired key")
	}

	n, err := db.CleanupExpiredAPIKeys()
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected 1 expired key cleaned up, got %d", n)
	}
}

func TestGenerateAPIKeyUnknownUser(t *testing.T) {
	db := newTestDB(t)
	if _, _, err := db.GenerateAPIKey("u_missing", "x", nil); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("got %v, want ErrUserNotFound", err)
	}
}

func TestRevokeAPIKey(t *testing.T) {
	db := newTestDB(t)
	u := mustCreateUser(t, db, "revoke@test.com")
	plaintext, ak, _ := db.GenerateAPIKey(u.ID, "to-revoke", nil)

	if err := db.RevokeAPIKey(ak.ID, u.ID); err != nil {
		t.Fatal(err)
	}

	keys, _ := db.ListAPIKeys(u.ID)
	if len(keys) != 0 {
		t.Fatalf("expected 0 keys after revoke, got %d", len(keys))
	}
	if found, _, _ := db.VerifyAPIKey(plaintext); found != nil {
		t.Fatal("revoked key must not verify")
	}
}

func TestRevokeAPIKeyWrongUser(t *testing.T) {
	db := newTestDB(t)
	u1 := mustCreateUser(t, db, "owner@test.com")
	u2 := mustCreateUser(t, db, "other@test.com")
	_, ak, _ := db.GenerateAPIKey(u1.ID, "mine", nil)

	if err := db.RevokeAPIKey(ak.ID, u2.ID); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("revoking another user's key: got %v, want ErrKeyNotFound", err)
	}
	if err := db.RevokeAPIKey(ak.ID, u1.ID); err != nil {
		t.Fatalf("owner revoke: %v", err)
	}
	if err := db.RevokeAPIKey(ak.ID, u1.ID); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("second revoke: got %v, want ErrKeyNotFound", err)
	}
}

func TestVerifyAPIKeyTouchesLastUsedSparingly(t *testing.T) {
	db := newTestDB(t)
	u := mustCreateUser(t, db, "poll@test.com")
	plaintext, _, err := db.GenerateAPIKey(u.ID, "feed", nil)
	if err != nil {
		t.Fatal(err)
	}

	first, _, err := db.VerifyAPIKey(plaintext)
	if err != nil || first == nil || first.LastUsedAt == nil {
		t.Fatalf("first verify: %+v, %v", first, err)
	}
	second, _, err := db.VerifyAPIKey(plaintext)
	if err != nil || second == nil || second.LastUsedAt == nil {
		t.Fatalf("second verify: %+v, %v", second, err)
	}
	if d := second.LastUsedAt.Sub(*first.LastUsedAt); d < -time.Millisecond || d > time.Millisecond {
		t.Fatalf("last_used_at moved within %v: %v -> %v", touchInterval, first.LastUsedAt, second.LastUsedAt)
	}

	stale := time.Now().UTC().Add(-2 * touchInterval)
	if _, err := db.conn.Exec(`UPDATE api_keys SET last_used_at = ?`, stale); err != nil {
		t.Fatal(err)
	}
	third, _, err := db.VerifyAPIKey(plaintext)
	if err != nil || third == nil {
		t.Fatalf("third verify: %+v, %v", third, err)
	}
	if !third.LastUsedAt.After(stale) {
		t.Fatalf("last_used_at not refreshed: %v", third.LastUsedAt)
	}
}

func TestNewSecretAlphabet(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		s, err := newSecret()
		if err != nil {
			t.Fatal(err)
		}
		if len(s) != secretLength {
			t.Fatalf("secret length = %d", len(s))
		}
		for _, c := range s {
			if !strings.ContainsRune(base62, c) {
				t.Fatalf("secret %q has non-base62 char %q", s, c)
			}
		}
		if seen[s] {
			t.Fatalf("duplicate secret %q", s)
		}
		seen[s] = true
	}
}

func TestRunMigrationsIdempotent(t *testing.T) {
	db := newTestDB(t)
	n, err := db.RunMigrations()
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("expected no migrations on fresh db, ran %d", n)
	}
	if v := db.getSchemaVersion(); v != ServerSchemaVersion {
		t.Fatalf("schema version = %d, want %d", v, ServerSchemaVersion)
	}
}
