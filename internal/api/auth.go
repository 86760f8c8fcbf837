package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/marcus/worklog/internal/crypto"
	"github.com/marcus/worklog/internal/serverdb"
)

// credentialsRequest is the JSON body for sign-up and sign-in.
type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// authResponse is returned by sign-up and sign-in.
type authResponse struct {
	APIKey    string `json:"api_key"`
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	ExpiresAt string `json:"expires_at"`
}

// sessionResponse is returned by GET /v1/auth/session.
type sessionResponse struct {
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
}

type profileRequest struct {
	DisplayName string `json:"display_name"`
}

type profileResponse struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
}

// handleSignUp handles POST /v1/auth/signup. It creates the account only;
// the profile is a separate PUT /v1/profile call.
func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	if !s.config.AllowSignup {
		writeError(w, http.StatusForbidden, ErrCodeSignupDisabled, "signups are disabled")
		return
	}

	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if _, err := mail.ParseAddress(req.Email); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "valid email is required")
		return
	}
	if err := crypto.CheckPassword(req.Password); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	}

	hash, err := crypto.HashPassword(req.Password)
	if err != nil {
		logFor(r.Context()).Error("hash password", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to create account")
		return
	}

	user, err := s.store.CreateUser(req.Email, hash)
	if errors.Is(err, serverdb.ErrEmailTaken) {
		writeError(w, http.StatusConflict, ErrCodeConflict, "email already registered")
		return
	}
	if err != nil {
		logFor(r.Context()).Error("create user", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to create account")
		return
	}

	s.logAuthEvent(user.ID, user.Email, serverdb.AuthEventSignedUp, requestMeta(r))
	s.issueKey(w, r, user, "signup")
}

// handleSignIn handles POST /v1/auth/signin.
func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "email and password are required")
		return
	}

	user, hash, err := s.store.GetCredentials(req.Email)
	if err != nil {
		logFor(r.Context()).Error("get credentials", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to sign in")
		return
	}
	if user == nil || crypto.VerifyPassword(hash, req.Password) != nil {
		meta := requestMeta(r)
		meta["failure_reason"] = "invalid_credentials"
		s.logAuthEvent("", req.Email, serverdb.AuthEventFailed, meta)
		writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid email or password")
		return
	}

	s.logAuthEvent(user.ID, user.Email, serverdb.AuthEventSignedIn, requestMeta(r))
	s.issueKey(w, r, user, "signin")
}

// issueKey generates a session API key for user and writes the auth response.
func (s *Server) issueKey(w http.ResponseWriter, r *http.Request, user *serverdb.User, name string) {
	expiry := time.Now().UTC().Add(s.config.KeyTTL)
	plaintext, _, err := s.store.GenerateAPIKey(user.ID, name, &expiry)
	if err != nil {
		logFor(r.Context()).Error("generate api key", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to generate api key")
		return
	}
	s.metrics.RecordSignIn()
	logFor(r.Context()).Info("session issued", "user_id", user.ID, "via", name)

	status := http.StatusOK
	if name == "signup" {
		status = http.StatusCreated
	}
	writeJSON(w, status, authResponse{
		APIKey:    plaintext,
		UserID:    user.ID,
		Email:     user.Email,
		ExpiresAt: expiry.Format(time.RFC3339),
	})
}

// handleSignOut handles POST /v1/auth/signout by revoking the presented key.
func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r.Context())
	// A key revoked concurrently is already signed out.
	if err := s.store.RevokeAPIKey(user.KeyID, user.UserID); err != nil && !errors.Is(err, serverdb.ErrKeyNotFound) {
		logFor(r.Context()).Error("revoke api key", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to sign out")
		return
	}
	s.logAuthEvent(user.UserID, user.Email, serverdb.AuthEventSignedOut, requestMeta(r))
	w.WriteHeader(http.StatusNoContent)
}

// handleSession handles GET /v1/auth/session.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r.Context())
	resp := sessionResponse{UserID: user.UserID, Email: user.Email}

	p, err := s.store.GetProfile(user.UserID)
	if err != nil {
		logFor(r.Context()).Error("get profile", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to load profile")
		return
	}
	if p != nil {
		resp.DisplayName = p.DisplayName
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleSaveProfile handles PUT /v1/profile.
func (s *Server) handleSaveProfile(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r.Context())

	var req profileRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.DisplayName = strings.TrimSpace(req.DisplayName)
	if req.DisplayName == "" {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "display_name is required")
		return
	}
	if len(req.DisplayName) > 80 {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "display_name exceeds 80 characters")
		return
	}

	p, err := s.store.UpsertProfile(user.UserID, req.DisplayName)
	if err != nil {
		logFor(r.Context()).Error("upsert profile", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to save profile")
		return
	}
	s.logAuthEvent(user.UserID, user.Email, serverdb.AuthEventProfileSaved, nil)
	writeJSON(w, http.StatusOK, profileResponse{UserID: p.UserID, DisplayName: p.DisplayName})
}

func requestMeta(r *http.Request) map[string]string {
	return map[string]string{
		"ip":         clientIP(r),
		"user_agent": r.Header.Get("User-Agent"),
	}
}

// logAuthEvent logs an auth event, silently ignoring errors.
func (s *Server) logAuthEvent(userID, email, eventType string, meta map[string]string) {
	metadata := "{}"
	if len(meta) > 0 {
		if b, err := json.Marshal(meta); err == nil {
			metadata = string(b)
		}
	}
	if err := s.store.InsertAuthEvent(userID, email, eventType, metadata); err != nil {
		slog.Warn("log auth event", "type", eventType, "err", err)
	}
}
