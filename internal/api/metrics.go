package api

import (
	"sync/atomic"
	"time"
)

// Metrics collects in-memory server metrics using atomic counters.
type Metrics struct {
	startTime     time.Time
	requests      atomic.Int64
	serverErrors  atomic.Int64
	clientErrors  atomic.Int64
	recordWrites  atomic.Int64
	feedPolls     atomic.Int64
	feedSnapshots atomic.Int64
	signIns       atomic.Int64
}

// MetricsSnapshot is a point-in-time view of server metrics.
type MetricsSnapshot struct {
	UptimeSeconds float64 `json:"uptime_seconds"`
	Requests      int64   `json:"requests"`
	ServerErrors  int64   `json:"server_errors"`
	ClientErrors  int64   `json:"client_errors"`
	RecordWrites  int64   `json:"record_writes"`
	FeedPolls     int64   `json:"feed_polls"`
	FeedSnapshots int64   `json:"feed_snapshots"`
	SignIns       int64   `json:"sign_ins"`
}

// NewMetrics creates a new Metrics instance with the current time as start.
func NewMetrics() *Metrics {
	return &Metrics{startTime: time.Now()}
}

// RecordRequest increments the total request counter.
func (m *Metrics) RecordRequest() {
	m.requests.Add(1)
}

// RecordError increments the server error (5xx) counter.
func (m *Metrics) RecordError() {
	m.serverErrors.Add(1)
}

// RecordClientError increments the client error (4xx) counter.
func (m *Metrics) RecordClientError() {
	m.clientErrors.Add(1)
}

// RecordWrite increments the committed add/update/delete counter.
func (m *Metrics) RecordWrite() {
	m.recordWrites.Add(1)
}

// RecordFeedPoll increments the changes-endpoint counter.
func (m *Metrics) RecordFeedPoll() {
	m.feedPolls.Add(1)
}

// RecordSnapshot increments the snapshot-endpoint counter.
func (m *Metrics) RecordSnapshot() {
	m.feedSnapshots.Add(1)
}

// RecordSignIn counts successful sign-ins and sign-ups.
func (m *Metrics) RecordSignIn() {
	m.signIns.Add(1)
}

// Snapshot returns a point-in-time copy of the metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		UptimeSeconds: time.Since(m.startTime).Seconds(),
		Requests:      m.requests.Load(),
		ServerErrors:  m.serverErrors.Load(),
		ClientErrors:  m.clientErrors.Load(),
		RecordWrites:  m.recordWrites.Load(),
		FeedPolls:     m.feedPolls.Load(),
		FeedSnapshots: m.feedSnapshots.Load(),
		SignIns:       m.signIns.Load(),
	}
}
