package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// CollectionLogs is the shared collection every viewer subscribes to.
const CollectionLogs = "logs"

// Field limits for a work log entry
const (
	MaxNameLength = 120
	MaxTimeLength = 40
)

var (
	errNameRequired = errors.New("name is required")
	errTimeRequired = errors.New("time is required")
)

// LogRecord is one work log entry in the shared collection.
// ID is assigned by the store on creation and never rewritten.
type LogRecord struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Time      string    `json:"time"`
	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Normalize trims surrounding whitespace from the user-entered fields.
func (r LogRecord) Normalize() LogRecord {
	r.Name = strings.TrimSpace(r.Name)
	r.Time = strings.TrimSpace(r.Time)
	return r
}

// Validate checks the user-entered fields of a record.
func (r LogRecord) Validate() error {
	r = r.Normalize()
	if r.Name == "" {
		return errNameRequired
	}
	if r.Time == "" {
		return errTimeRequired
	}
	if len(r.Name) > MaxNameLength {
		return fmt.Errorf("name exceeds %d characters", MaxNameLength)
	}
	if len(r.Time) > MaxTimeLength {
		return fmt.Errorf("time exceeds %d characters", MaxTimeLength)
	}
	return nil
}

// ChangeKind is the type of an incremental change to a collection.
type ChangeKind string

const (
	ChangeAdded    ChangeKind = "added"
	ChangeRemoved  ChangeKind = "removed"
	ChangeModified ChangeKind = "modified"
)

// Valid reports whether k is a known change kind.
func (k ChangeKind) Valid() bool {
	switch k {
	case ChangeAdded, ChangeRemoved, ChangeModified:
		return true
	}
	return false
}

// ChangeEvent is one entry of a collection's change feed.
// Seq is the server commit sequence; snapshot-derived events carry 0.
type ChangeEvent struct {
	Kind   ChangeKind `json:"kind"`
	Record LogRecord  `json:"record"`
	Seq    int64      `json:"seq,omitempty"`
}

func (e ChangeEvent) String() string {
	return fmt.Sprintf("%s %s", e.Kind, e.Record.ID)
}

// Identity is the signed-in user as reported by the identity provider.
type Identity struct {
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
}

// Label returns the display name, falling back to the email.
func (i Identity) Label() string {
	if i.DisplayName != "" {
		return i.DisplayName
	}
	return i.Email
}

// Session is either Authenticated (Identity set) or Anonymous (nil).
type Session struct {
	Identity *Identity
}

// Anonymous returns a session with no identity.
func Anonymous() Session {
	return Session{}
}

// Authenticated returns a session for id.
func Authenticated(id Identity) Session {
	return Session{Identity: &id}
}

// IsAuthenticated reports whether the session carries an identity.
func (s Session) IsAuthenticated() bool {
	return s.Identity != nil
}

// SameAs reports whether two sessions describe the same state.
func (s Session) SameAs(o Session) bool {
	if s.Identity == nil || o.Identity == nil {
		return s.Identity == nil && o.Identity == nil
	}
	return s.Identity.UserID == o.Identity.UserID
}

func (s Session) String() string {
	if s.Identity == nil {
		return "anonymous"
	}
	return "authenticated(" + s.Identity.Email + ")"
}
