// Package webhook posts collection changes to an external URL.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/marcus/worklog/internal/models"
)

const (
	queueSize     = 256
	maxBatch      = 100
	deliveryLimit = 10 * time.Second
)

// Payload is the top-level webhook POST body.
type Payload struct {
	Collection string               `json:"collection"`
	Timestamp  string               `json:"timestamp"`
	Changes    []models.ChangeEvent `json:"changes"`
}

// BuildPayload wraps changes from one collection.
func BuildPayload(collection string, changes []models.ChangeEvent) Payload {
	return Payload{
		Collection: collection,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Changes:    changes,
	}
}

// Dispatch performs a synchronous HTTP POST to the webhook URL.
// Returns nil on success (2xx status).
func Dispatch(ctx context.Context, client *http.Client, url, secret string, payload Payload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "worklog-webhook/1")

	unixTS := strconv.FormatInt(time.Now().Unix(), 10)
	req.Header.Set(HeaderTimestamp, unixTS)
	if secret != "" {
		req.Header.Set(HeaderSignature, Sign(secret, unixTS, body))
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("POST %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("POST %s: status %d", url, resp.StatusCode)
	}
	return nil
}

type queued struct {
	collection string
	event      models.ChangeEvent
}

// Notifier delivers changes in the background, batching whatever queued up
// while the previous delivery was in flight. Failed deliveries are logged
// and dropped.
type Notifier struct {
	url    string
	secret string
	client *http.Client

	mu     sync.Mutex
	closed bool
	queue  chan queued
	done   chan struct{}
}

// NewNotifier starts a notifier posting to url. Call Close to stop it.
func NewNotifier(url, secret string) *Notifier {
	n := &Notifier{
		url:    url,
		secret: secret,
		client: &http.Client{Timeout: deliveryLimit},
		queue:  make(chan queued, queueSize),
		done:   make(chan struct{}),
	}
	go n.run()
	return n
}

// Notify queues ev without blocking. When the queue is full or the
// notifier is closed the event is dropped.
func (n *Notifier) Notify(collection string, ev models.ChangeEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		slog.Warn("webhook notifier closed, dropping change", "collection", collection, "seq", ev.Seq)
		return
	}
	select {
	case n.queue <- queued{collection, ev}:
	default:
		slog.Warn("webhook queue full, dropping change", "collection", collection, "seq", ev.Seq)
	}
}

// Close flushes queued changes and stops the worker.
// Later calls to Notify are dropped.
func (n *Notifier) Close() {
	n.mu.Lock()
	if !n.closed {
		n.closed = true
		close(n.queue)
	}
	n.mu.Unlock()
	<-n.done
}

func (n *Notifier) run() {
	defer close(n.done)
	for first := range n.queue {
		batch := []queued{first}
	drain:
		for len(batch) < maxBatch {
			select {
			case q, ok := <-n.queue:
				if !ok {
					break drain
				}
				batch = append(batch, q)
			default:
				break drain
			}
		}
		n.deliver(batch)
	}
}

// deliver posts one payload per collection, keeping change order.
func (n *Notifier) deliver(batch []queued) {
	var order []string
	byColl := make(map[string][]models.ChangeEvent)
	for _, q := range batch {
		if _, ok := byColl[q.collection]; !ok {
			order = append(order, q.collection)
		}
		byColl[q.collection] = append(byColl[q.collection], q.event)
	}
	for _, coll := range order {
		ctx, cancel := context.WithTimeout(context.Background(), deliveryLimit)
		err := Dispatch(ctx, n.client, n.url, n.secret, BuildPayload(coll, byColl[coll]))
		cancel()
		if err != nil {
			slog.Error("webhook delivery", "collection", coll, "changes", len(byColl[coll]), "err", err)
			continue
		}
		slog.Debug("webhook delivered", "collection", coll, "changes", len(byColl[coll]))
	}
}
