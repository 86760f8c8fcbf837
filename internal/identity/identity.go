// Package identity tracks the signed-in user and notifies listeners of
// every session transition.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/marcus/worklog/internal/models"
	"github.com/marcus/worklog/internal/syncconfig"
)

var (
	// ErrAccountCreate marks a sign-up that failed creating the account.
	ErrAccountCreate = errors.New("create account")
	// ErrProfileCreate marks a sign-up whose account was created but whose
	// profile could not be saved.
	ErrProfileCreate = errors.New("create profile")
	// ErrInvalidSession is returned by a Backend when a key is no longer valid.
	ErrInvalidSession = errors.New("session is no longer valid")
	// ErrNotSignedIn is returned by SignOut without a session.
	ErrNotSignedIn = errors.New("not signed in")
)

// Credentials is what a successful sign-in or sign-up yields.
type Credentials struct {
	APIKey    string
	UserID    string
	Email     string
	ExpiresAt string
}

// Backend performs the account operations against the server.
type Backend interface {
	SignIn(ctx context.Context, email, password string) (Credentials, error)
	SignUp(ctx context.Context, email, password string) (Credentials, error)
	SaveProfile(ctx context.Context, apiKey, displayName string) error
	Session(ctx context.Context, apiKey string) (models.Identity, error)
	SignOut(ctx context.Context, apiKey string) error
}

// CredentialStore persists the session between runs.
type CredentialStore interface {
	Load() (*syncconfig.AuthCredentials, error)
	Save(*syncconfig.AuthCredentials) error
	Clear() error
}

// FileStore keeps credentials in ~/.config/worklog/auth.json.
type FileStore struct{}

func (FileStore) Load() (*syncconfig.AuthCredentials, error) { return syncconfig.LoadAuth() }
func (FileStore) Save(c *syncconfig.AuthCredentials) error   { return syncconfig.SaveAuth(c) }
func (FileStore) Clear() error                               { return syncconfig.ClearAuth() }

// Provider is the identity provider. Listeners are notified in transition
// order; a listener must not call back into the Provider synchronously.
type Provider struct {
	backend   Backend
	creds     CredentialStore
	serverURL string

	notifyMu sync.Mutex // held while listeners run, orders notifications

	mu        sync.Mutex
	session   models.Session
	apiKey    string
	listeners map[int]func(models.Session)
	nextID    int
}

// New creates a Provider in the Anonymous state.
func New(backend Backend, creds CredentialStore, serverURL string) *Provider {
	return &Provider{
		backend:   backend,
		creds:     creds,
		serverURL: serverURL,
		listeners: make(map[int]func(models.Session)),
	}
}

// OnSessionChange registers fn, calls it with the current session, and
// calls it again on every transition. The returned func unregisters it.
func (p *Provider) OnSessionChange(fn func(models.Session)) (cancel func()) {
	p.notifyMu.Lock()
	defer p.notifyMu.Unlock()

	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	current := p.session
	p.mu.Unlock()

	fn(current)

	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

// Session returns the current session.
func (p *Provider) Session() models.Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session
}

// APIKey returns the current session's key, or "" when anonymous.
func (p *Provider) APIKey() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.apiKey
}

// Restore resumes a saved session. A key the server rejects is discarded;
// a server that cannot be reached leaves the saved identity in place.
func (p *Provider) Restore(ctx context.Context) error {
	saved, err := p.creds.Load()
	if err != nil {
		return fmt.Errorf("load credentials: %w", err)
	}
	if saved == nil || saved.APIKey == "" {
		p.transition(models.Anonymous(), "")
		return nil
	}

	id, err := p.backend.Session(ctx, saved.APIKey)
	switch {
	case errors.Is(err, ErrInvalidSession):
		slog.Info("saved session rejected", "email", saved.Email)
		if err := p.creds.Clear(); err != nil {
			slog.Warn("clear credentials", "err", err)
		}
		p.transition(models.Anonymous(), "")
		return nil
	case err != nil:
		slog.Warn("verify saved session", "err", err)
		id = models.Identity{UserID: saved.UserID, Email: saved.Email, DisplayName: saved.DisplayName}
	}

	p.transition(models.Authenticated(id), saved.APIKey)
	return nil
}

// SignIn authenticates with email and password.
func (p *Provider) SignIn(ctx context.Context, email, password string) error {
	creds, err := p.backend.SignIn(ctx, strings.TrimSpace(email), password)
	if err != nil {
		return err
	}

	id := models.Identity{UserID: creds.UserID, Email: creds.Email}
	if full, err := p.backend.Session(ctx, creds.APIKey); err == nil {
		id = full
	} else {
		slog.Warn("load profile after sign-in", "err", err)
	}
	return p.establish(ctx, creds, id)
}

// SignUp creates an account and then its profile. A failure in either step
// leaves the session unchanged and is reported as ErrAccountCreate or
// ErrProfileCreate.
func (p *Provider) SignUp(ctx context.Context, email, password, displayName string) error {
	email = strings.TrimSpace(email)
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		displayName, _, _ = strings.Cut(email, "@")
	}

	creds, err := p.backend.SignUp(ctx, email, password)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAccountCreate, err)
	}

	if err := p.backend.SaveProfile(ctx, creds.APIKey, displayName); err != nil {
		if rerr := p.backend.SignOut(ctx, creds.APIKey); rerr != nil {
			slog.Warn("revoke key after profile failure", "err", rerr)
		}
		return fmt.Errorf("%w: %w", ErrProfileCreate, err)
	}

	return p.establish(ctx, creds, models.Identity{
		UserID:      creds.UserID,
		Email:       creds.Email,
		DisplayName: displayName,
	})
}

// SignOut revokes the session key and transitions to Anonymous. The local
// session ends even when the server cannot be told.
func (p *Provider) SignOut(ctx context.Context) error {
	key := p.APIKey()
	if key == "" {
		return ErrNotSignedIn
	}
	if err := p.backend.SignOut(ctx, key); err != nil && !errors.Is(err, ErrInvalidSession) {
		slog.Warn("revoke session key", "err", err)
	}
	if err := p.creds.Clear(); err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}
	p.transition(models.Anonymous(), "")
	return nil
}

// establish persists creds and switches to id. When the credentials cannot
// be saved the fresh key is revoked and the session is left unchanged.
func (p *Provider) establish(ctx context.Context, creds Credentials, id models.Identity) error {
	err := p.creds.Save(&syncconfig.AuthCredentials{
		APIKey:      creds.APIKey,
		UserID:      id.UserID,
		Email:       id.Email,
		DisplayName: id.DisplayName,
		ServerURL:   p.serverURL,
		ExpiresAt:   creds.ExpiresAt,
	})
	if err != nil {
		if rerr := p.backend.SignOut(ctx, creds.APIKey); rerr != nil {
			slog.Warn("revoke key after credential save failure", "err", rerr)
		}
		return fmt.Errorf("save credentials: %w", err)
	}
	p.transition(models.Authenticated(id), creds.APIKey)
	return nil
}

func (p *Provider) transition(sess models.Session, key string) {
	p.notifyMu.Lock()
	defer p.notifyMu.Unlock()

	p.mu.Lock()
	p.session = sess
	p.apiKey = key
	fns := make([]func(models.Session), 0, len(p.listeners))
	for i := 0; i < p.nextID; i++ {
		if fn, ok := p.listeners[i]; ok {
			fns = append(fns, fn)
		}
	}
	p.mu.Unlock()

	slog.Debug("session transition", "session", sess.String())
	for _, fn := range fns {
		fn(sess)
	}
}
