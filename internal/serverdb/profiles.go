package serverdb

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Profile holds user-facing details created after the account itself.
type Profile struct {
	UserID      string
	DisplayName string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// UpsertProfile creates or replaces the profile for userID.
func (db *ServerDB) UpsertProfile(userID, displayName string) (*Profile, error) {
	displayName = strings.TrimSpace(displayName)

	user, err := db.GetUserByID(userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("user not found: %s", userID)
	}

	now := time.Now().UTC()
	_, err = db.conn.Exec(`
		INSERT INTO profiles (user_id, display_name, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id)
		DO UPDATE SET display_name = excluded.display_name, updated_at = excluded.updated_at
	`, userID, displayName, now, now)
	if err != nil {
		return nil, fmt.Errorf("upsert profile: %w", err)
	}
	return db.GetProfile(userID)
}

// GetProfile returns the profile for userID, or nil if none was created.
func (db *ServerDB) GetProfile(userID string) (*Profile, error) {
	p := &Profile{}
	err := db.conn.QueryRow(
		`SELECT user_id, display_name, created_at, updated_at FROM profiles WHERE user_id = ?`, userID,
	).Scan(&p.UserID, &p.DisplayName, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}
