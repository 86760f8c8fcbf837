package serverdb

import (
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Session keys are what clients of the log collections present as bearer
// tokens. Only a SHA-256 of the plaintext is stored.
const (
	apiKeyPrefix = "wl_live_"
	secretLength = 32

	// Feed clients poll every few seconds; last_used_at only needs to be
	// accurate to this much.
	touchInterval = time.Minute
)

const base62 = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

var (
	// ErrKeyNotFound is returned when a key does not exist or belongs to
	// another user.
	ErrKeyNotFound = errors.New("api key not found")
	// ErrUserNotFound is returned when issuing a key for an unknown user.
	ErrUserNotFound = errors.New("user not found")
)

// APIKey is a stored session key without its secret.
type APIKey struct {
	ID         string
	UserID     string
	KeyPrefix  string
	Name       string
	ExpiresAt  *time.Time
	LastUsedAt *time.Time
	CreatedAt  time.Time
}

func hashKey(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

// newSecret returns secretLength base62 characters. Bytes at or above the
// largest multiple of 62 are redrawn so every character is equally likely.
func newSecret() (string, error) {
	const limit = 256 - 256%len(base62)
	out := make([]byte, 0, secretLength)
	buf := make([]byte, secretLength)
	for len(out) < secretLength {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, base62[int(b)%len(base62)])
			if len(out) == secretLength {
				break
			}
		}
	}
	return string(out), nil
}

// GenerateAPIKey issues a session key for userID. Sign-in and sign-up each
// issue one; sign-out revokes it. The plaintext is returned once and never
// stored.
func (db *ServerDB) GenerateAPIKey(userID, name string, expiresAt *time.Time) (string, *APIKey, error) {
	var exists int
	err := db.conn.QueryRow(`SELECT 1 FROM users WHERE id = ?`, userID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}
	if err != nil {
		return "", nil, fmt.Errorf("check user: %w", err)
	}

	id, err := generateID("ak_")
	if err != nil {
		return "", nil, fmt.Errorf("generate api key id: %w", err)
	}
	secret, err := newSecret()
	if err != nil {
		return "", nil, fmt.Errorf("generate key secret: %w", err)
	}
	plaintext := apiKeyPrefix + secret
	if expiresAt != nil {
		utc := expiresAt.UTC()
		expiresAt = &utc
	}

	ak := &APIKey{
		ID:        id,
		UserID:    userID,
		KeyPrefix: secret[:8],
		Name:      name,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now().UTC(),
	}
	_, err = db.conn.Exec(
		`INSERT INTO api_keys (id, user_id, key_hash, key_prefix, name, expires_at, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ak.ID, ak.UserID, hashKey(plaintext), ak.KeyPrefix, ak.Name, ak.ExpiresAt, ak.CreatedAt,
	)
	if err != nil {
		return "", nil, fmt.Errorf("insert api key: %w", err)
	}
	return plaintext, ak, nil
}

// VerifyAPIKey resolves a bearer token to its key and owner. Unknown and
// expired keys return nil, nil, nil.
func (db *ServerDB) VerifyAPIKey(plaintextKey string) (*APIKey, *User, error) {
	now := time.Now().UTC()
	ak := &APIKey{}
	u := &User{}
	err := db.conn.QueryRow(`
		SELECT ak.id, ak.user_id, ak.key_prefix, ak.name, ak.expires_at, ak.last_used_at, ak.created_at,
		       u.id, u.email, u.created_at, u.updated_at
		FROM api_keys ak
		JOIN users u ON u.id = ak.user_id
		WHERE ak.key_hash = ? AND (ak.expires_at IS NULL OR ak.expires_at > ?)
	`, hashKey(plaintextKey), now).Scan(
		&ak.ID, &ak.UserID, &ak.KeyPrefix, &ak.Name, &ak.ExpiresAt, &ak.LastUsedAt, &ak.CreatedAt,
		&u.ID, &u.Email, &u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("verify api key: %w", err)
	}

	if ak.LastUsedAt == nil || now.Sub(*ak.LastUsedAt) >= touchInterval {
		if _, err := db.conn.Exec(`UPDATE api_keys SET last_used_at = ? WHERE id = ?`, now, ak.ID); err != nil {
			slog.Warn("touch api key", "key_id", ak.ID, "err", err)
		} else {
			ak.LastUsedAt = &now
		}
	}
	return ak, u, nil
}

// RevokeAPIKey deletes keyID if userID owns it, else ErrKeyNotFound.
func (db *ServerDB) RevokeAPIKey(keyID, userID string) error {
	res, err := db.conn.Exec(`DELETE FROM api_keys WHERE id = ? AND user_id = ?`, keyID, userID)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrKeyNotFound
	}
	return nil
}

// ListAPIKeys returns a user's keys, oldest first.
func (db *ServerDB) ListAPIKeys(userID string) ([]*APIKey, error) {
	rows, err := db.conn.Query(
		`SELECT id, user_id, key_prefix, name, expires_at, last_used_at, created_at FROM api_keys WHERE user_id = ? ORDER BY created_at`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	var keys []*APIKey
	for rows.Next() {
		ak := &APIKey{}
		if err := rows.Scan(&ak.ID, &ak.UserID, &ak.KeyPrefix, &ak.Name, &ak.ExpiresAt, &ak.LastUsedAt, &ak.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, ak)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list api keys: iterate: %w", err)
	}
	return keys, nil
}

// CleanupExpiredAPIKeys deletes expired session keys and reports how many.
func (db *ServerDB) CleanupExpiredAPIKeys() (int64, error) {
	res, err := db.conn.Exec(`DELETE FROM api_keys WHERE expires_at IS NOT NULL AND expires_at <= ?`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("cleanup expired api keys: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
