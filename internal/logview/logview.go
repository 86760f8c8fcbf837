// Package logview keeps an on-screen list of work log rows consistent with a
// remote collection by applying its change feed incrementally.
package logview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/marcus/worklog/internal/feed"
	"github.com/marcus/worklog/internal/models"
)

// Placeholder texts shown in place of an empty row list.
const (
	PlaceholderLoggedOut = "log in to view work logs"
	PlaceholderEmpty     = "no entries"
)

var (
	// ErrAlreadyActive is returned by Start when a subscription exists.
	ErrAlreadyActive = errors.New("log view already subscribed")
	// ErrInactive is returned by Delete when no subscription exists.
	ErrInactive = errors.New("log view not subscribed")
)

// Row is the handle a View returns for a rendered record.
type Row any

// View is the UI surface the rows live in. Every call is made with the
// Sync's lock held, from whichever goroutine applies batches.
type View interface {
	AppendRow(rec models.LogRecord) Row
	UpdateRow(row Row, rec models.LogRecord)
	RemoveRow(row Row)
	ShowPlaceholder(text string)
	ClearPlaceholder()
}

// State is the subscription lifecycle state.
type State int

const (
	Inactive State = iota
	Subscribing
	Active
)

func (s State) String() string {
	switch s {
	case Inactive:
		return "inactive"
	case Subscribing:
		return "subscribing"
	case Active:
		return "active"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Batch is one feed delivery tagged with the generation that subscribed.
type Batch struct {
	Gen    uint64
	Events []models.ChangeEvent
}

// Stats counts what the sync has done since it was created.
type Stats struct {
	Applied   int64 // events applied to the view
	Discarded int64 // events dropped because their subscription was stopped
	SelfHeals int64 // Modified events for unknown ids, applied as Added
	Overwrote int64 // duplicate Added events applied in place
	Ignored   int64 // Removed events for unknown ids
}

// Sync owns one subscription to a collection and the rows it renders.
type Sync struct {
	store      feed.Store
	view       View
	collection string

	// Deliver hands a batch to the goroutine that owns the view, which must
	// then call Apply. When nil, batches are applied on the feed goroutine.
	Deliver func(Batch)
	// OnError receives feed errors for the current subscription. It is
	// called from the feed goroutine.
	OnError func(error)

	mu          sync.Mutex
	state       State
	gen         uint64
	sub         *feed.Subscription
	rows        map[string]Row
	placeholder string
	stats       Stats
}

// New creates an inactive Sync for collection rendering into view.
func New(store feed.Store, view View, collection string) *Sync {
	return &Sync{
		store:      store,
		view:       view,
		collection: collection,
		rows:       make(map[string]Row),
	}
}

// Start subscribes to the collection. It fails with ErrAlreadyActive unless
// the sync is Inactive.
func (s *Sync) Start() error {
	s.mu.Lock()
	if s.state != Inactive {
		s.mu.Unlock()
		return ErrAlreadyActive
	}
	s.state = Subscribing
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	sub, err := s.store.Subscribe(s.collection,
		func(events []models.ChangeEvent) { s.deliver(Batch{Gen: gen, Events: events}) },
		func(err error) { s.feedError(gen, err) },
	)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		// Stopped while subscribing.
		if sub != nil {
			s.store.Unsubscribe(sub)
		}
		return nil
	}
	if err != nil {
		s.state = Inactive
		return fmt.Errorf("subscribe %s: %w", s.collection, err)
	}
	s.sub = sub
	s.state = Active
	slog.Debug("log view subscribed", "coll", s.collection, "gen", gen)
	return nil
}

// Stop detaches the subscription. Batches still in flight are discarded
// when they arrive. Stop on an inactive sync does nothing.
func (s *Sync) Stop() {
	s.mu.Lock()
	if s.state == Inactive {
		s.mu.Unlock()
		return
	}
	s.gen++
	sub := s.sub
	s.sub = nil
	s.state = Inactive
	s.mu.Unlock()

	if sub != nil {
		s.store.Unsubscribe(sub)
	}
	slog.Debug("log view unsubscribed", "coll", s.collection)
}

// Reset removes every row and shows text in their place.
func (s *Sync) Reset(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, row := range s.rows {
		s.view.RemoveRow(row)
		delete(s.rows, id)
	}
	s.showPlaceholder(text)
}

// Apply processes a delivered batch in order. Batches from a stopped
// subscription are counted and dropped. An empty batch on an empty view
// shows the "no entries" placeholder.
func (s *Sync) Apply(b Batch) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Inactive || b.Gen != s.gen {
		s.stats.Discarded += int64(len(b.Events))
		return
	}
	if len(b.Events) == 0 {
		if len(s.rows) == 0 && s.placeholder == "" {
			s.showPlaceholder(PlaceholderEmpty)
		}
		return
	}
	for _, ev := range b.Events {
		s.applyEvent(ev)
	}
}

func (s *Sync) applyEvent(ev models.ChangeEvent) {
	id := ev.Record.ID
	switch ev.Kind {
	case models.ChangeAdded:
		if row, ok := s.rows[id]; ok {
			s.view.UpdateRow(row, ev.Record)
			s.stats.Overwrote++
		} else {
			s.add(ev.Record)
		}
	case models.ChangeModified:
		if row, ok := s.rows[id]; ok {
			s.view.UpdateRow(row, ev.Record)
		} else {
			s.add(ev.Record)
			s.stats.SelfHeals++
		}
	case models.ChangeRemoved:
		row, ok := s.rows[id]
		if !ok {
			s.stats.Ignored++
			break
		}
		s.view.RemoveRow(row)
		delete(s.rows, id)
		if len(s.rows) == 0 {
			s.showPlaceholder(PlaceholderEmpty)
		}
	default:
		slog.Warn("unknown change kind", "kind", ev.Kind, "id", id)
		return
	}
	s.stats.Applied++
}

func (s *Sync) add(rec models.LogRecord) {
	if s.placeholder != "" {
		s.view.ClearPlaceholder()
		s.placeholder = ""
	}
	s.rows[rec.ID] = s.view.AppendRow(rec)
}

func (s *Sync) showPlaceholder(text string) {
	s.placeholder = text
	s.view.ShowPlaceholder(text)
}

// Delete asks the store to remove id. The row stays until the Removed
// event for it arrives through the feed.
func (s *Sync) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	active := s.state == Active
	s.mu.Unlock()
	if !active {
		return ErrInactive
	}

	if err := s.store.Delete(ctx, s.collection, id); err != nil {
		var wf *feed.WriteFailure
		if errors.As(err, &wf) {
			return err
		}
		return &feed.WriteFailure{Op: "delete", ID: id, Err: err}
	}
	return nil
}

func (s *Sync) deliver(b Batch) {
	if s.Deliver != nil {
		s.Deliver(b)
		return
	}
	s.Apply(b)
}

func (s *Sync) feedError(gen uint64, err error) {
	s.mu.Lock()
	current := s.state != Inactive && gen == s.gen
	onErr := s.OnError
	s.mu.Unlock()
	if !current {
		return
	}
	slog.Warn("feed error", "coll", s.collection, "err", err)
	if onErr != nil {
		onErr(err)
	}
}

// State returns the subscription state.
func (s *Sync) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Len returns the number of rows currently rendered.
func (s *Sync) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

// Has reports whether a row for id is rendered.
func (s *Sync) Has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.rows[id]
	return ok
}

// Placeholder returns the placeholder text being shown, or "".
func (s *Sync) Placeholder() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.placeholder
}

// Stats returns a copy of the counters.
func (s *Sync) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}
