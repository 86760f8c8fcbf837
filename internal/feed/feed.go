// Package feed provides a remote collection store with a live change feed.
//
// A Poller turns any Source (the local server database or the worklogd HTTP
// API) into a Store: subscribers receive the current collection as one batch
// of Added events, followed by every committed change in commit order.
package feed

import (
	"context"

	"github.com/marcus/worklog/internal/models"
)

// Handler receives an ordered batch of change events. Batches for one
// subscription are delivered sequentially from a single goroutine.
type Handler func(events []models.ChangeEvent)

// ErrorHandler receives feed delivery problems. The subscription stays
// attached and keeps polling after an error.
type ErrorHandler func(err error)

// Store is the remote collection store consumed by the view layer.
type Store interface {
	Subscribe(collection string, h Handler, onErr ErrorHandler) (*Subscription, error)
	Unsubscribe(sub *Subscription)
	Add(ctx context.Context, collection string, rec models.LogRecord) (string, error)
	Update(ctx context.Context, collection string, rec models.LogRecord) error
	Delete(ctx context.Context, collection, id string) error
}

// Snapshot is the full contents of a collection at a change sequence.
type Snapshot struct {
	Records []models.LogRecord
	LastSeq int64
}

// Page is one slice of the change log.
type Page struct {
	Changes []models.ChangeEvent
	LastSeq int64
	HasMore bool
}

// Source is the backend a Poller reads from and writes to.
type Source interface {
	Snapshot(ctx context.Context, collection string) (Snapshot, error)
	Changes(ctx context.Context, collection string, afterSeq int64, limit int) (Page, error)
	AddRecord(ctx context.Context, collection string, rec models.LogRecord) (models.LogRecord, error)
	UpdateRecord(ctx context.Context, collection string, rec models.LogRecord) (models.LogRecord, error)
	DeleteRecord(ctx context.Context, collection, id string) error
}
