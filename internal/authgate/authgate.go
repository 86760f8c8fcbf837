// Package authgate turns session transitions into view visibility and
// log view subscription changes.
package authgate

import (
	"log/slog"
	"sync"

	"github.com/marcus/worklog/internal/logview"
	"github.com/marcus/worklog/internal/models"
)

// Visibility toggles the logged-in and logged-out UI element sets.
type Visibility interface {
	SetLoggedIn(loggedIn bool)
}

// Syncer is the part of logview.Sync the gate drives.
type Syncer interface {
	Start() error
	Stop()
	Reset(text string)
}

// Gate applies each session notification in arrival order.
type Gate struct {
	vis  Visibility
	sync Syncer

	// OnError receives subscription start failures.
	OnError func(error)

	mu      sync.Mutex
	current models.Session
	active  bool
}

// New creates a Gate. No state is applied until the first Handle call.
func New(vis Visibility, s Syncer) *Gate {
	return &Gate{vis: vis, sync: s}
}

// Handle applies a session transition synchronously.
func (g *Gate) Handle(sess models.Session) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !sess.IsAuthenticated() {
		g.vis.SetLoggedIn(false)
		g.sync.Stop()
		g.sync.Reset(logview.PlaceholderLoggedOut)
		g.current = sess
		g.active = false
		slog.Info("session ended")
		return
	}

	g.vis.SetLoggedIn(true)
	if g.active && g.current.SameAs(sess) {
		g.current = sess
		return
	}

	g.sync.Stop()
	g.sync.Reset(logview.PlaceholderEmpty)
	g.current = sess
	if err := g.sync.Start(); err != nil {
		g.active = false
		slog.Error("start log view", "user", sess.Identity.UserID, "err", err)
		if g.OnError != nil {
			g.OnError(err)
		}
		return
	}
	g.active = true
	slog.Info("session started", "user", sess.Identity.UserID)
}

// Session returns the last session handled.
func (g *Gate) Session() models.Session {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current
}

// Active reports whether the gate holds a running subscription.
func (g *Gate) Active() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active
}
