package feed_test

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/marcus/worklog/internal/api"
	"github.com/marcus/worklog/internal/authgate"
	"github.com/marcus/worklog/internal/feed"
	"github.com/marcus/worklog/internal/identity"
	"github.com/marcus/worklog/internal/logview"
	"github.com/marcus/worklog/internal/models"
	"github.com/marcus/worklog/internal/serverdb"
	"github.com/marcus/worklog/internal/syncclient"
	"github.com/marcus/worklog/internal/syncconfig"
)

// listView is a logview.View and authgate.Visibility backed by a slice.
type listView struct {
	rows        []*models.LogRecord
	placeholder string
	loggedIn    bool
}

func (v *listView) AppendRow(rec models.LogRecord) logview.Row {
	r := &rec
	v.rows = append(v.rows, r)
	return r
}

func (v *listView) UpdateRow(row logview.Row, rec models.LogRecord) { *row.(*models.LogRecord) = rec }

func (v *listView) RemoveRow(row logview.Row) {
	for i, r := range v.rows {
		if r == row {
			v.rows = append(v.rows[:i], v.rows[i+1:]...)
			return
		}
	}
}

func (v *listView) ShowPlaceholder(text string) { v.placeholder = text }
func (v *listView) ClearPlaceholder()           { v.placeholder = "" }
func (v *listView) SetLoggedIn(b bool)          { v.loggedIn = b }

func (v *listView) names() []string {
	out := make([]string, len(v.rows))
	for i, r := range v.rows {
		out[i] = r.Name
	}
	return out
}

type memCreds struct{ c *syncconfig.AuthCredentials }

func (m *memCreds) Load() (*syncconfig.AuthCredentials, error) { return m.c, nil }
func (m *memCreds) Save(c *syncconfig.AuthCredentials) error   { m.c = c; return nil }
func (m *memCreds) Clear() error                               { m.c = nil; return nil }

// viewer is one connected client: identity, gate, feed and view.
type viewer struct {
	t        *testing.T
	view     *listView
	sync     *logview.Sync
	poller   *feed.Poller
	provider *identity.Provider
	batches  chan logview.Batch
}

func newViewer(t *testing.T, baseURL string) *viewer {
	t.Helper()
	client := syncclient.New(baseURL, "")
	provider := identity.New(&identity.HTTPBackend{Client: client}, &memCreds{}, baseURL)

	src := &feed.RemoteSource{Client: client, Key: provider.APIKey}
	poller := feed.NewPoller(src, feed.WithInterval(20*time.Millisecond))
	t.Cleanup(poller.Close)

	view := &listView{}
	s := logview.New(poller, view, models.CollectionLogs)
	batches := make(chan logview.Batch, 256)
	s.Deliver = func(b logview.Batch) { batches <- b }

	gate := authgate.New(view, s)
	provider.OnSessionChange(gate.Handle)

	return &viewer{t: t, view: view, sync: s, poller: poller, provider: provider, batches: batches}
}

// applyUntil applies delivered batches until cond holds.
func (v *viewer) applyUntil(cond func() bool) {
	v.t.Helper()
	deadline := time.After(3 * time.Second)
	for !cond() {
		select {
		case b := <-v.batches:
			v.sync.Apply(b)
		case <-deadline:
			v.t.Fatalf("condition not met; rows=%v placeholder=%q", v.view.names(), v.view.placeholder)
		}
	}
}

func (v *viewer) drain() {
	for {
		select {
		case b := <-v.batches:
			v.sync.Apply(b)
		default:
			return
		}
	}
}

func startServer(t *testing.T) string {
	t.Helper()
	store, err := serverdb.Open(filepath.Join(t.TempDir(), "server.db"))
	if err != nil {
		t.Fatalf("open server db: %v", err)
	}
	cfg := api.DefaultConfig()
	cfg.RateLimitAuth = 100000
	cfg.RateLimitWrite = 100000
	cfg.RateLimitFeed = 100000
	cfg.RateLimitOther = 100000
	srv, err := api.NewServer(cfg, store)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		store.Close()
	})
	return ts.URL
}

func TestDeleteRoundTripAcrossViewers(t *testing.T) {
	url := startServer(t)
	ctx := context.Background()

	alice := newViewer(t, url)
	bob := newViewer(t, url)

	if alice.view.placeholder != logview.PlaceholderLoggedOut || alice.view.loggedIn {
		t.Fatalf("initial state: placeholder=%q loggedIn=%v", alice.view.placeholder, alice.view.loggedIn)
	}

	if err := alice.provider.SignUp(ctx, "alice@example.com", "hunter22", "Alice"); err != nil {
		t.Fatalf("alice sign up: %v", err)
	}
	if err := bob.provider.SignUp(ctx, "bob@example.com", "hunter22", "Bob"); err != nil {
		t.Fatalf("bob sign up: %v", err)
	}
	if !alice.view.loggedIn {
		t.Fatal("alice should see the logged-in set")
	}

	alice.applyUntil(func() bool { return alice.view.placeholder == logview.PlaceholderEmpty })

	var ids []string
	for _, name := range []string{"standup", "review", "deploy"} {
		id, err := alice.poller.Add(ctx, models.CollectionLogs, models.LogRecord{Name: name, Time: "1h"})
		if err != nil {
			t.Fatalf("add %s: %v", name, err)
		}
		ids = append(ids, id)
	}

	alice.applyUntil(func() bool { return alice.sync.Len() == 3 })
	bob.applyUntil(func() bool { return bob.sync.Len() == 3 })
	if got := alice.view.names(); got[0] != "standup" || got[1] != "review" || got[2] != "deploy" {
		t.Fatalf("alice rows out of order: %v", got)
	}

	if err := bob.sync.Delete(ctx, ids[1]); err != nil {
		t.Fatalf("bob delete: %v", err)
	}
	if !bob.sync.Has(ids[1]) {
		t.Fatal("row removed before its Removed event was applied")
	}

	bob.applyUntil(func() bool { return !bob.sync.Has(ids[1]) })
	alice.applyUntil(func() bool { return !alice.sync.Has(ids[1]) })
	if alice.sync.Len() != 2 {
		t.Fatalf("alice rows = %v", alice.view.names())
	}

	if err := alice.poller.Update(ctx, models.CollectionLogs, models.LogRecord{ID: ids[0], Name: "standup", Time: "15m"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	bob.applyUntil(func() bool { return len(bob.view.rows) > 0 && bob.view.rows[0].Time == "15m" })
	if bob.sync.Len() != 2 {
		t.Fatalf("modify created a duplicate row: %v", bob.view.names())
	}
}

func TestLogoutTeardownWithLiveFeed(t *testing.T) {
	url := startServer(t)
	ctx := context.Background()

	alice := newViewer(t, url)
	bob := newViewer(t, url)
	if err := alice.provider.SignUp(ctx, "alice@example.com", "hunter22", ""); err != nil {
		t.Fatal(err)
	}
	if err := bob.provider.SignUp(ctx, "bob@example.com", "hunter22", ""); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"a", "b", "c"} {
		if _, err := bob.poller.Add(ctx, models.CollectionLogs, models.LogRecord{Name: name, Time: "1h"}); err != nil {
			t.Fatal(err)
		}
	}
	alice.applyUntil(func() bool { return alice.sync.Len() == 3 })

	if err := alice.provider.SignOut(ctx); err != nil {
		t.Fatalf("sign out: %v", err)
	}
	if alice.view.loggedIn || len(alice.view.rows) != 0 || alice.view.placeholder != logview.PlaceholderLoggedOut {
		t.Fatalf("after sign out: loggedIn=%v rows=%v placeholder=%q", alice.view.loggedIn, alice.view.names(), alice.view.placeholder)
	}

	if _, err := bob.poller.Add(ctx, models.CollectionLogs, models.LogRecord{Name: "late", Time: "1h"}); err != nil {
		t.Fatal(err)
	}
	bob.applyUntil(func() bool { return bob.sync.Len() == 4 })

	time.Sleep(100 * time.Millisecond)
	alice.drain()
	if len(alice.view.rows) != 0 || alice.view.placeholder != logview.PlaceholderLoggedOut {
		t.Fatalf("event after logout applied: rows=%v placeholder=%q", alice.view.names(), alice.view.placeholder)
	}

	// Signing back in starts a fresh subscription with the full snapshot.
	if err := alice.provider.SignIn(ctx, "alice@example.com", "hunter22"); err != nil {
		t.Fatalf("sign in: %v", err)
	}
	alice.applyUntil(func() bool { return alice.sync.Len() == 4 })
}
