package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/marcus/worklog/internal/feed"
	"github.com/marcus/worklog/internal/identity"
	"github.com/marcus/worklog/internal/models"
	"github.com/marcus/worklog/internal/syncclient"
	"github.com/marcus/worklog/internal/syncconfig"
	"github.com/spf13/cobra"
)

// requestTimeout bounds every one-shot CLI request.
const requestTimeout = 30 * time.Second

var errNotSignedIn = errors.New("not signed in (run: worklog login)")

// envCredentials is the saved credential file, with WORKLOG_AUTH_KEY taking
// precedence over the saved key.
type envCredentials struct {
	identity.FileStore
}

func (e envCredentials) Load() (*syncconfig.AuthCredentials, error) {
	creds, err := e.FileStore.Load()
	if err != nil {
		return nil, err
	}
	key := syncconfig.GetAPIKey()
	if key == "" || (creds != nil && creds.APIKey == key) {
		return creds, nil
	}
	return &syncconfig.AuthCredentials{APIKey: key}, nil
}

// client bundles what every command needs to talk to worklogd.
type client struct {
	url      string
	http     *syncclient.Client
	provider *identity.Provider
}

func newClient(cmd *cobra.Command) *client {
	url, _ := cmd.Flags().GetString("server")
	if url == "" {
		url = syncconfig.GetServerURL()
	}
	url = strings.TrimRight(url, "/")

	http := syncclient.New(url, "")
	return &client{
		url:      url,
		http:     http,
		provider: identity.New(&identity.HTTPBackend{Client: http}, envCredentials{}, url),
	}
}

// authed restores the saved session and returns a client using its key.
func (c *client) authed(ctx context.Context) (*syncclient.Client, models.Identity, error) {
	if err := c.provider.Restore(ctx); err != nil {
		return nil, models.Identity{}, err
	}
	sess := c.provider.Session()
	if !sess.IsAuthenticated() {
		return nil, models.Identity{}, errNotSignedIn
	}
	return c.http.WithAPIKey(c.provider.APIKey()), *sess.Identity, nil
}

// poller returns a feed poller that always uses the provider's current key.
func (c *client) poller() *feed.Poller {
	src := &feed.RemoteSource{Client: c.http, Key: c.provider.APIKey}
	return feed.NewPoller(src,
		feed.WithInterval(syncconfig.GetPollInterval()),
		feed.WithPageSize(syncconfig.GetPageSize()))
}

func withTimeout(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), requestTimeout)
}

// resolveID expands a unique id prefix against the current snapshot.
func resolveID(ctx context.Context, c *syncclient.Client, prefix string) (models.LogRecord, error) {
	snap, err := c.Snapshot(ctx, models.CollectionLogs)
	if err != nil {
		return models.LogRecord{}, err
	}

	var matches []models.LogRecord
	for _, rec := range snap.Records {
		if rec.ID == prefix {
			return rec, nil
		}
		if strings.HasPrefix(rec.ID, prefix) {
			matches = append(matches, rec)
		}
	}
	switch len(matches) {
	case 0:
		return models.LogRecord{}, fmt.Errorf("no entry matches %q", prefix)
	case 1:
		return matches[0], nil
	default:
		return models.LogRecord{}, fmt.Errorf("%q matches %d entries, use more characters", prefix, len(matches))
	}
}
