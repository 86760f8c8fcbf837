package feed

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/marcus/worklog/internal/models"
)

const (
	// DefaultInterval is the change poll period when none is configured.
	DefaultInterval = time.Second
	// DefaultPageSize is the number of changes requested per poll.
	DefaultPageSize = 500
)

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	collection string
	cancel     context.CancelFunc
	kick       chan struct{}
	done       chan struct{}
}

// Collection returns the subscribed collection name.
func (s *Subscription) Collection() string { return s.collection }

// Done is closed once the subscription goroutine has exited.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Poller implements Store by polling a Source's change log.
type Poller struct {
	src      Source
	interval time.Duration
	pageSize int

	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

// PollerOption configures a Poller.
type PollerOption func(*Poller)

// WithInterval sets the change poll period.
func WithInterval(d time.Duration) PollerOption {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithPageSize sets the number of changes requested per poll.
func WithPageSize(n int) PollerOption {
	return func(p *Poller) {
		if n > 0 {
			p.pageSize = n
		}
	}
}

// NewPoller creates a Poller over src.
func NewPoller(src Source, opts ...PollerOption) *Poller {
	p := &Poller{
		src:      src,
		interval: DefaultInterval,
		pageSize: DefaultPageSize,
		subs:     make(map[*Subscription]struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Subscribe starts a feed goroutine for collection. The first batch is the
// current snapshot as Added events (empty when the collection is empty),
// then each page of subsequent changes as its own batch.
func (p *Poller) Subscribe(collection string, h Handler, onErr ErrorHandler) (*Subscription, error) {
	if collection == "" {
		return nil, fmt.Errorf("collection is required")
	}
	if h == nil {
		return nil, fmt.Errorf("handler is required")
	}
	if onErr == nil {
		onErr = func(error) {}
	}

	ctx, cancel := context.WithCancel(context.Background())
	sub := &Subscription{
		collection: collection,
		cancel:     cancel,
		kick:       make(chan struct{}, 1),
		done:       make(chan struct{}),
	}

	p.mu.Lock()
	p.subs[sub] = struct{}{}
	p.mu.Unlock()

	go p.run(ctx, sub, h, onErr)
	return sub, nil
}

// Unsubscribe detaches sub. It returns without waiting for the feed
// goroutine; no batch is delivered once the cancellation is observed.
func (p *Poller) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	p.mu.Lock()
	delete(p.subs, sub)
	p.mu.Unlock()
	sub.cancel()
}

// Close detaches every subscription.
func (p *Poller) Close() {
	p.mu.Lock()
	subs := make([]*Subscription, 0, len(p.subs))
	for s := range p.subs {
		subs = append(subs, s)
	}
	p.mu.Unlock()
	for _, s := range subs {
		p.Unsubscribe(s)
	}
}

// Add creates rec and returns the store-assigned id.
func (p *Poller) Add(ctx context.Context, collection string, rec models.LogRecord) (string, error) {
	created, err := p.src.AddRecord(ctx, collection, rec)
	if err != nil {
		return "", &WriteFailure{Op: "add", Err: err}
	}
	p.kickAll(collection)
	return created.ID, nil
}

// Update replaces the name and time of rec.ID.
func (p *Poller) Update(ctx context.Context, collection string, rec models.LogRecord) error {
	if _, err := p.src.UpdateRecord(ctx, collection, rec); err != nil {
		return &WriteFailure{Op: "update", ID: rec.ID, Err: err}
	}
	p.kickAll(collection)
	return nil
}

// Delete removes id. Subscribers learn of it through the feed.
func (p *Poller) Delete(ctx context.Context, collection, id string) error {
	if err := p.src.DeleteRecord(ctx, collection, id); err != nil {
		return &WriteFailure{Op: "delete", ID: id, Err: err}
	}
	p.kickAll(collection)
	return nil
}

// kickAll wakes every subscription on collection for an immediate poll.
func (p *Poller) kickAll(collection string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for s := range p.subs {
		if s.collection != collection {
			continue
		}
		select {
		case s.kick <- struct{}{}:
		default:
		}
	}
}

func (p *Poller) run(ctx context.Context, sub *Subscription, h Handler, onErr ErrorHandler) {
	defer close(sub.done)
	defer func() {
		if r := recover(); r != nil {
			slog.Error("feed panic", "coll", sub.collection, "panic", r)
		}
	}()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	after := int64(-1)
	for {
		if after < 0 {
			after = p.loadSnapshot(ctx, sub.collection, h, onErr)
		} else {
			after = p.poll(ctx, sub.collection, after, h, onErr)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-sub.kick:
		}
	}
}

// loadSnapshot delivers the snapshot batch and returns its sequence, or -1
// when it must be retried.
func (p *Poller) loadSnapshot(ctx context.Context, collection string, h Handler, onErr ErrorHandler) int64 {
	snap, err := p.src.Snapshot(ctx, collection)
	if err != nil {
		if ctx.Err() == nil {
			onErr(&TransientFeedError{Collection: collection, Err: err})
		}
		return -1
	}
	events := make([]models.ChangeEvent, len(snap.Records))
	for i, rec := range snap.Records {
		events[i] = models.ChangeEvent{Kind: models.ChangeAdded, Record: rec}
	}
	if ctx.Err() != nil {
		return -1
	}
	h(events)
	return snap.LastSeq
}

// poll drains the change log after seq one page at a time and returns the
// new position.
func (p *Poller) poll(ctx context.Context, collection string, after int64, h Handler, onErr ErrorHandler) int64 {
	for {
		page, err := p.src.Changes(ctx, collection, after, p.pageSize)
		if err != nil {
			if ctx.Err() == nil {
				onErr(&TransientFeedError{Collection: collection, Err: err})
			}
			return after
		}
		if ctx.Err() != nil {
			return after
		}
		if len(page.Changes) > 0 {
			h(page.Changes)
		}
		if page.LastSeq > after {
			after = page.LastSeq
		}
		if !page.HasMore {
			return after
		}
	}
}
