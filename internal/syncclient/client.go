package syncclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/marcus/worklog/internal/models"
)

// Sentinel errors for common HTTP error classes.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
)

// Client is an HTTP client for the worklogd server.
type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

// New creates a new client. apiKey may be empty for unauthenticated calls.
func New(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

// WithAPIKey returns a copy of the client that authenticates with key.
func (c *Client) WithAPIKey(key string) *Client {
	cp := *c
	cp.APIKey = key
	return &cp
}

// --- Auth types (mirrors internal/api/auth.go, independently defined) ---

// CredentialsRequest is the body for sign-in and sign-up.
type CredentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is returned by sign-in and sign-up.
type AuthResponse struct {
	APIKey    string `json:"api_key"`
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	ExpiresAt string `json:"expires_at"`
}

// SessionResponse describes the identity behind the presented key.
type SessionResponse struct {
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

// ProfileResponse is returned by PUT /v1/profile.
type ProfileResponse struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
}

// --- Collection types (mirrors internal/api/collections.go) ---

// SnapshotResponse is the response from GET /v1/collections/{name}/snapshot.
type SnapshotResponse struct {
	Records []models.LogRecord `json:"records"`
	LastSeq int64              `json:"last_seq"`
}

// ChangesResponse is the response from GET /v1/collections/{name}/changes.
type ChangesResponse struct {
	Changes []models.ChangeEvent `json:"changes"`
	LastSeq int64                `json:"last_seq"`
	HasMore bool                 `json:"has_more"`
}

// RecordRequest is the body for creating or updating a record.
type RecordRequest struct {
	Name string `json:"name"`
	Time string `json:"time"`
}

// HealthResponse is the response from GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

// HealthCheck hits the /healthz endpoint to verify server reachability.
func (c *Client) HealthCheck(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.doNoAuth(ctx, "GET", "/healthz", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// --- Auth methods ---

// SignUp creates an account and returns a key for it. No API key required.
func (c *Client) SignUp(ctx context.Context, email, password string) (*AuthResponse, error) {
	var resp AuthResponse
	if err := c.doNoAuth(ctx, "POST", "/v1/auth/signup", CredentialsRequest{Email: email, Password: password}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SignIn exchanges credentials for an API key. No API key required.
func (c *Client) SignIn(ctx context.Context, email, password string) (*AuthResponse, error) {
	var resp AuthResponse
	if err := c.doNoAuth(ctx, "POST", "/v1/auth/signin", CredentialsRequest{Email: email, Password: password}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SignOut revokes the client's API key on the server.
func (c *Client) SignOut(ctx context.Context) error {
	return c.do(ctx, "POST", "/v1/auth/signout", nil, nil)
}

// Session returns the identity behind the client's API key.
func (c *Client) Session(ctx context.Context) (*SessionResponse, error) {
	var resp SessionResponse
	if err := c.do(ctx, "GET", "/v1/auth/session", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SaveProfile creates or updates the caller's profile.
func (c *Client) SaveProfile(ctx context.Context, displayName string) (*ProfileResponse, error) {
	body := map[string]string{"display_name": displayName}
	var resp ProfileResponse
	if err := c.do(ctx, "PUT", "/v1/profile", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// --- Collection methods ---

// Snapshot fetches the full contents of a collection.
func (c *Client) Snapshot(ctx context.Context, collection string) (*SnapshotResponse, error) {
	var resp SnapshotResponse
	if err := c.do(ctx, "GET", collectionPath(collection, "snapshot"), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Changes fetches changes committed after afterSeq.
func (c *Client) Changes(ctx context.Context, collection string, afterSeq int64, limit int) (*ChangesResponse, error) {
	params := url.Values{}
	params.Set("after_seq", strconv.FormatInt(afterSeq, 10))
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var resp ChangesResponse
	if err := c.do(ctx, "GET", collectionPath(collection, "changes")+"?"+params.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AddRecord creates a record; the server assigns its ID.
func (c *Client) AddRecord(ctx context.Context, collection string, rec models.LogRecord) (*models.LogRecord, error) {
	var resp models.LogRecord
	body := RecordRequest{Name: rec.Name, Time: rec.Time}
	if err := c.do(ctx, "POST", collectionPath(collection, "records"), body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UpdateRecord replaces the name and time of an existing record.
func (c *Client) UpdateRecord(ctx context.Context, collection string, rec models.LogRecord) (*models.LogRecord, error) {
	var resp models.LogRecord
	body := RecordRequest{Name: rec.Name, Time: rec.Time}
	if err := c.do(ctx, "PATCH", collectionPath(collection, "records", rec.ID), body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DeleteRecord removes a record.
func (c *Client) DeleteRecord(ctx context.Context, collection, id string) error {
	return c.do(ctx, "DELETE", collectionPath(collection, "records", id), nil, nil)
}

func collectionPath(collection string, parts ...string) string {
	p := "/v1/collections/" + url.PathEscape(collection)
	for _, part := range parts {
		p += "/" + url.PathEscape(part)
	}
	return p
}

// --- HTTP helpers ---

// APIError is the standard error body from the server.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Code
}

type errorBody struct {
	Error APIError `json:"error"`
}

// do executes an authenticated HTTP request.
func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	return c.doRequest(ctx, method, path, body, result, true)
}

// doNoAuth executes an unauthenticated HTTP request.
func (c *Client) doNoAuth(ctx context.Context, method, path string, body, result any) error {
	return c.doRequest(ctx, method, path, body, result, false)
}

func (c *Client) doRequest(ctx context.Context, method, path string, body, result any, auth bool) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth && c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var eb errorBody
		if json.Unmarshal(respBody, &eb) == nil && eb.Error.Code != "" {
			apiErr := eb.Error
			apiErr.Status = resp.StatusCode
			switch resp.StatusCode {
			case http.StatusUnauthorized:
				return fmt.Errorf("%w: %s", ErrUnauthorized, apiErr.Message)
			case http.StatusForbidden:
				return fmt.Errorf("%w: %s", ErrForbidden, apiErr.Message)
			case http.StatusNotFound:
				return fmt.Errorf("%w: %s", ErrNotFound, apiErr.Message)
			case http.StatusConflict:
				return fmt.Errorf("%w: %s", ErrConflict, apiErr.Message)
			default:
				return &apiErr
			}
		}
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}

	return nil
}
