package api

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/marcus/worklog/internal/models"
	"github.com/marcus/worklog/internal/serverdb"
)

func TestHealthz(t *testing.T) {
	h := newTestHarness(t)

	resp := h.Do("GET", "/healthz", "", nil)
	AssertStatus(t, resp, http.StatusOK)
	body := ReadJSON[map[string]string](t, resp)
	if body["status"] != "ok" {
		t.Fatalf("expected status ok, got %q", body["status"])
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatal("expected X-Request-ID header")
	}
}

func TestSignUpSignInFlow(t *testing.T) {
	h := newTestHarness(t)

	var signup authResponse
	resp := h.DoJSON("POST", "/v1/auth/signup", "", credentialsRequest{Email: "Ada@Example.com", Password: "hunter22"}, &signup)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("signup: expected 201, got %d", resp.StatusCode)
	}
	if signup.APIKey == "" || signup.UserID == "" {
		t.Fatalf("signup: missing key or user id: %+v", signup)
	}
	if signup.Email != "ada@example.com" {
		t.Fatalf("signup: expected lowercased email, got %q", signup.Email)
	}

	var signin authResponse
	h.DoJSON("POST", "/v1/auth/signin", "", credentialsRequest{Email: "ada@example.com", Password: "hunter22"}, &signin)
	if signin.UserID != signup.UserID {
		t.Fatalf("signin: user id %q, want %q", signin.UserID, signup.UserID)
	}
	if signin.APIKey == signup.APIKey {
		t.Fatal("signin should issue a fresh key")
	}

	events, err := h.Store.QueryAuthEvents("", 10)
	if err != nil {
		t.Fatalf("query auth events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 auth events, got %d", len(events))
	}
	if events[0].EventType != serverdb.AuthEventSignedIn || events[1].EventType != serverdb.AuthEventSignedUp {
		t.Fatalf("unexpected event order: %s, %s", events[0].EventType, events[1].EventType)
	}
}

func TestSignUpValidation(t *testing.T) {
	h := newTestHarness(t)

	tests := []struct {
		name string
		req  credentialsRequest
		code string
	}{
		{"bad email", credentialsRequest{Email: "nope", Password: "hunter22"}, ErrCodeBadRequest},
		{"short password", credentialsRequest{Email: "a@b.co", Password: "abc"}, ErrCodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := h.Do("POST", "/v1/auth/signup", "", tt.req)
			AssertErrorResponse(t, resp, http.StatusBadRequest, tt.code)
		})
	}
}

func TestSignUpDuplicateEmail(t *testing.T) {
	h := newTestHarness(t)
	req := credentialsRequest{Email: "dup@example.com", Password: "hunter22"}

	resp := h.Do("POST", "/v1/auth/signup", "", req)
	AssertStatus(t, resp, http.StatusCreated)
	resp.Body.Close()

	resp = h.Do("POST", "/v1/auth/signup", "", req)
	AssertErrorResponse(t, resp, http.StatusConflict, ErrCodeConflict)
}

func TestSignUpDisabled(t *testing.T) {
	h := newTestHarness(t, func(cfg *Config) { cfg.AllowSignup = false })

	resp := h.Do("POST", "/v1/auth/signup", "", credentialsRequest{Email: "a@b.co", Password: "hunter22"})
	AssertErrorResponse(t, resp, http.StatusForbidden, ErrCodeSignupDisabled)
}

func TestSignInWrongPassword(t *testing.T) {
	h := newTestHarness(t)

	resp := h.Do("POST", "/v1/auth/signup", "", credentialsRequest{Email: "a@b.co", Password: "hunter22"})
	AssertStatus(t, resp, http.StatusCreated)
	resp.Body.Close()

	resp = h.Do("POST", "/v1/auth/signin", "", credentialsRequest{Email: "a@b.co", Password: "wrong-pass"})
	AssertErrorResponse(t, resp, http.StatusUnauthorized, ErrCodeUnauthorized)

	resp = h.Do("POST", "/v1/auth/signin", "", credentialsRequest{Email: "ghost@b.co", Password: "hunter22"})
	AssertErrorResponse(t, resp, http.StatusUnauthorized, ErrCodeUnauthorized)

	failed, err := h.Store.QueryAuthEvents(serverdb.AuthEventFailed, 10)
	if err != nil {
		t.Fatalf("query auth events: %v", err)
	}
	if len(failed) != 2 {
		t.Fatalf("expected 2 failed events, got %d", len(failed))
	}
}

func TestSessionAndProfile(t *testing.T) {
	h := newTestHarness(t)
	userID, token := h.CreateUser("prof@example.com")

	sess := ReadJSON[sessionResponse](t, h.Do("GET", "/v1/auth/session", token, nil))
	if sess.UserID != userID || sess.DisplayName != "" {
		t.Fatalf("unexpected session before profile: %+v", sess)
	}

	var p profileResponse
	h.DoJSON("PUT", "/v1/profile", token, profileRequest{DisplayName: "  Ada  "}, &p)
	if p.DisplayName != "Ada" {
		t.Fatalf("expected trimmed display name, got %q", p.DisplayName)
	}

	sess = ReadJSON[sessionResponse](t, h.Do("GET", "/v1/auth/session", token, nil))
	if sess.DisplayName != "Ada" {
		t.Fatalf("expected display name Ada, got %q", sess.DisplayName)
	}

	resp := h.Do("PUT", "/v1/profile", token, profileRequest{DisplayName: " "})
	AssertErrorResponse(t, resp, http.StatusBadRequest, ErrCodeValidation)
}

func TestSignOutRevokesKey(t *testing.T) {
	h := newTestHarness(t)
	_, token := h.CreateUser("out@example.com")

	resp := h.Do("POST", "/v1/auth/signout", token, nil)
	AssertStatus(t, resp, http.StatusNoContent)
	resp.Body.Close()

	resp = h.Do("GET", "/v1/auth/session", token, nil)
	AssertErrorResponse(t, resp, http.StatusUnauthorized, ErrCodeUnauthorized)
}

func TestRequireAuth(t *testing.T) {
	h := newTestHarness(t)

	tests := []struct {
		name  string
		token string
	}{
		{"missing", ""},
		{"bogus", "wl_live_nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := h.Do("GET", "/v1/collections/logs/snapshot", tt.token, nil)
			AssertErrorResponse(t, resp, http.StatusUnauthorized, ErrCodeUnauthorized)
		})
	}
}

func TestUnknownCollection(t *testing.T) {
	h := newTestHarness(t)
	_, token := h.CreateUser("coll@example.com")

	resp := h.Do("GET", "/v1/collections/secrets/snapshot", token, nil)
	AssertErrorResponse(t, resp, http.StatusNotFound, ErrCodeNotFound)
}

func TestRecordLifecycle(t *testing.T) {
	h := newTestHarness(t)
	userID, token := h.CreateUser("life@example.com")

	empty := ReadJSON[snapshotResponse](t, h.Do("GET", "/v1/collections/logs/snapshot", token, nil))
	if len(empty.Records) != 0 || empty.LastSeq != 0 {
		t.Fatalf("expected empty snapshot, got %+v", empty)
	}

	a := h.AddRecord(token, "Write report", "2h")
	b := h.AddRecord(token, "Review PR", "30m")
	if a.ID == "" || a.ID == b.ID {
		t.Fatalf("expected distinct store-assigned ids, got %q and %q", a.ID, b.ID)
	}
	if a.CreatedBy != userID {
		t.Fatalf("expected created_by %q, got %q", userID, a.CreatedBy)
	}

	var updated models.LogRecord
	h.DoJSON("PATCH", "/v1/collections/logs/records/"+a.ID, token, recordRequest{Name: "Write final report", Time: "3h"}, &updated)
	if updated.ID != a.ID || updated.Name != "Write final report" || updated.Time != "3h" {
		t.Fatalf("unexpected updated record: %+v", updated)
	}

	resp := h.Do("DELETE", "/v1/collections/logs/records/"+b.ID, token, nil)
	AssertStatus(t, resp, http.StatusNoContent)
	resp.Body.Close()

	snap := ReadJSON[snapshotResponse](t, h.Do("GET", "/v1/collections/logs/snapshot", token, nil))
	if len(snap.Records) != 1 || snap.Records[0].ID != a.ID || snap.Records[0].Name != "Write final report" {
		t.Fatalf("unexpected snapshot: %+v", snap.Records)
	}
	if snap.LastSeq != 4 {
		t.Fatalf("expected last_seq 4, got %d", snap.LastSeq)
	}

	changes := ReadJSON[changesResponse](t, h.Do("GET", "/v1/collections/logs/changes?after_seq=0", token, nil))
	wantKinds := []models.ChangeKind{models.ChangeAdded, models.ChangeAdded, models.ChangeModified, models.ChangeRemoved}
	if len(changes.Changes) != len(wantKinds) {
		t.Fatalf("expected %d changes, got %d", len(wantKinds), len(changes.Changes))
	}
	for i, k := range wantKinds {
		if changes.Changes[i].Kind != k {
			t.Errorf("change %d: kind %q, want %q", i, changes.Changes[i].Kind, k)
		}
	}
	if changes.Changes[3].Record.ID != b.ID {
		t.Fatalf("removed change should carry id %q, got %q", b.ID, changes.Changes[3].Record.ID)
	}

	m := h.Server.metrics.Snapshot()
	if m.RecordWrites != 4 {
		t.Fatalf("expected 4 record writes, got %d", m.RecordWrites)
	}
}

func TestRecordNotFound(t *testing.T) {
	h := newTestHarness(t)
	_, token := h.CreateUser("nf@example.com")

	resp := h.Do("PATCH", "/v1/collections/logs/records/missing", token, recordRequest{Name: "x", Time: "1h"})
	AssertErrorResponse(t, resp, http.StatusNotFound, ErrCodeNotFound)

	resp = h.Do("DELETE", "/v1/collections/logs/records/missing", token, nil)
	AssertErrorResponse(t, resp, http.StatusNotFound, ErrCodeNotFound)
}

func TestAddRecordValidation(t *testing.T) {
	h := newTestHarness(t)
	_, token := h.CreateUser("val@example.com")

	tests := []struct {
		name string
		req  recordRequest
	}{
		{"empty name", recordRequest{Name: "  ", Time: "1h"}},
		{"empty time", recordRequest{Name: "task", Time: ""}},
		{"long name", recordRequest{Name: strings.Repeat("x", models.MaxNameLength+1), Time: "1h"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := h.Do("POST", "/v1/collections/logs/records", token, tt.req)
			AssertErrorResponse(t, resp, http.StatusBadRequest, ErrCodeValidation)
		})
	}
}

func TestChangesPaging(t *testing.T) {
	h := newTestHarness(t)
	_, token := h.CreateUser("page@example.com")

	for i := 0; i < 5; i++ {
		h.AddRecord(token, fmt.Sprintf("task %d", i), "1h")
	}

	page := ReadJSON[changesResponse](t, h.Do("GET", "/v1/collections/logs/changes?after_seq=0&limit=2", token, nil))
	if len(page.Changes) != 2 || !page.HasMore || page.LastSeq != 2 {
		t.Fatalf("unexpected first page: len=%d has_more=%v last=%d", len(page.Changes), page.HasMore, page.LastSeq)
	}

	page = ReadJSON[changesResponse](t, h.Do("GET", "/v1/collections/logs/changes?after_seq=4&limit=2", token, nil))
	if len(page.Changes) != 1 || page.HasMore || page.LastSeq != 5 {
		t.Fatalf("unexpected last page: len=%d has_more=%v last=%d", len(page.Changes), page.HasMore, page.LastSeq)
	}

	page = ReadJSON[changesResponse](t, h.Do("GET", "/v1/collections/logs/changes?after_seq=5", token, nil))
	if len(page.Changes) != 0 || page.LastSeq != 5 {
		t.Fatalf("expected empty page at head, got len=%d last=%d", len(page.Changes), page.LastSeq)
	}

	resp := h.Do("GET", "/v1/collections/logs/changes?after_seq=abc", token, nil)
	AssertErrorResponse(t, resp, http.StatusBadRequest, ErrCodeBadRequest)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "worklogd.yaml")
	data := "listen_addr: \":9090\"\nallow_signup: false\nkey_ttl: 1h\nrate_limit_write: 7\ncollections: [logs, notes]\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("WORKLOG_RATE_LIMIT_WRITE", "9")

	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.ListenAddr != ":9090" || cfg.AllowSignup {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.KeyTTL != time.Hour {
		t.Fatalf("expected key ttl 1h, got %v", cfg.KeyTTL)
	}
	if cfg.RateLimitWrite != 9 {
		t.Fatalf("expected env override 9, got %d", cfg.RateLimitWrite)
	}
	if cfg.RateLimitFeed != 600 {
		t.Fatalf("expected default feed limit, got %d", cfg.RateLimitFeed)
	}
	if len(cfg.Collections) != 2 || cfg.Collections[1] != "notes" {
		t.Fatalf("unexpected collections: %v", cfg.Collections)
	}
}

func TestParseDaysDuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"30d", 30 * 24 * time.Hour},
		{"2h", 2 * time.Hour},
		{"nope", 0},
		{"0d", 0},
	}
	for _, tt := range tests {
		if got := parseDaysDuration(tt.in); got != tt.want {
			t.Errorf("parseDaysDuration(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
