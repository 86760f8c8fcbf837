package feed

import (
	"context"

	"github.com/marcus/worklog/internal/models"
	"github.com/marcus/worklog/internal/syncclient"
)

// RemoteSource reads and writes a collection through the worklogd API.
// Key is consulted on every call so a new session's key takes effect
// without rebuilding the source.
type RemoteSource struct {
	Client *syncclient.Client
	Key    func() string
}

// NewRemoteSource returns a RemoteSource that always uses client's own key.
func NewRemoteSource(client *syncclient.Client) *RemoteSource {
	return &RemoteSource{Client: client}
}

func (s *RemoteSource) client() *syncclient.Client {
	if s.Key == nil {
		return s.Client
	}
	return s.Client.WithAPIKey(s.Key())
}

func (s *RemoteSource) Snapshot(ctx context.Context, collection string) (Snapshot, error) {
	resp, err := s.client().Snapshot(ctx, collection)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Records: resp.Records, LastSeq: resp.LastSeq}, nil
}

func (s *RemoteSource) Changes(ctx context.Context, collection string, afterSeq int64, limit int) (Page, error) {
	resp, err := s.client().Changes(ctx, collection, afterSeq, limit)
	if err != nil {
		return Page{}, err
	}
	return Page{Changes: resp.Changes, LastSeq: resp.LastSeq, HasMore: resp.HasMore}, nil
}

func (s *RemoteSource) AddRecord(ctx context.Context, collection string, rec models.LogRecord) (models.LogRecord, error) {
	created, err := s.client().AddRecord(ctx, collection, rec)
	if err != nil {
		return models.LogRecord{}, err
	}
	return *created, nil
}

func (s *RemoteSource) UpdateRecord(ctx context.Context, collection string, rec models.LogRecord) (models.LogRecord, error) {
	updated, err := s.client().UpdateRecord(ctx, collection, rec)
	if err != nil {
		return models.LogRecord{}, err
	}
	return *updated, nil
}

func (s *RemoteSource) DeleteRecord(ctx context.Context, collection, id string) error {
	return s.client().DeleteRecord(ctx, collection, id)
}
