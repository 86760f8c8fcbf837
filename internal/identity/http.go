package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/marcus/worklog/internal/models"
	"github.com/marcus/worklog/internal/syncclient"
)

// HTTPBackend is a Backend over the worklogd API.
type HTTPBackend struct {
	Client *syncclient.Client
}

func (b *HTTPBackend) SignIn(ctx context.Context, email, password string) (Credentials, error) {
	resp, err := b.Client.SignIn(ctx, email, password)
	if err != nil {
		return Credentials{}, err
	}
	return credentialsFrom(resp), nil
}

func (b *HTTPBackend) SignUp(ctx context.Context, email, password string) (Credentials, error) {
	resp, err := b.Client.SignUp(ctx, email, password)
	if err != nil {
		return Credentials{}, err
	}
	return credentialsFrom(resp), nil
}

func (b *HTTPBackend) SaveProfile(ctx context.Context, apiKey, displayName string) error {
	_, err := b.Client.WithAPIKey(apiKey).SaveProfile(ctx, displayName)
	return mapErr(err)
}

func (b *HTTPBackend) Session(ctx context.Context, apiKey string) (models.Identity, error) {
	resp, err := b.Client.WithAPIKey(apiKey).Session(ctx)
	if err != nil {
		return models.Identity{}, mapErr(err)
	}
	return models.Identity{UserID: resp.UserID, Email: resp.Email, DisplayName: resp.DisplayName}, nil
}

func (b *HTTPBackend) SignOut(ctx context.Context, apiKey string) error {
	return mapErr(b.Client.WithAPIKey(apiKey).SignOut(ctx))
}

func credentialsFrom(resp *syncclient.AuthResponse) Credentials {
	return Credentials{
		APIKey:    resp.APIKey,
		UserID:    resp.UserID,
		Email:     resp.Email,
		ExpiresAt: resp.ExpiresAt,
	}
}

// mapErr translates a rejected key into ErrInvalidSession.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, syncclient.ErrUnauthorized) {
		return fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}
	return err
}
