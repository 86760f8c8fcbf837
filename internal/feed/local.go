package feed

import (
	"context"

	"github.com/marcus/worklog/internal/models"
	"github.com/marcus/worklog/internal/serverdb"
)

// LocalSource reads and writes a collection directly in the server database.
// Records it creates are attributed to UserID.
type LocalSource struct {
	DB     *serverdb.ServerDB
	UserID string
}

func (s *LocalSource) Snapshot(_ context.Context, collection string) (Snapshot, error) {
	snap, err := s.DB.SnapshotCollection(collection)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Records: snap.Records, LastSeq: snap.LastSeq}, nil
}

func (s *LocalSource) Changes(_ context.Context, collection string, afterSeq int64, limit int) (Page, error) {
	res, err := s.DB.ChangesSince(collection, afterSeq, limit)
	if err != nil {
		return Page{}, err
	}
	return Page{Changes: res.Changes, LastSeq: res.LastSeq, HasMore: res.HasMore}, nil
}

func (s *LocalSource) AddRecord(_ context.Context, collection string, rec models.LogRecord) (models.LogRecord, error) {
	created, _, err := s.DB.AddRecord(collection, rec, s.UserID)
	if err != nil {
		return models.LogRecord{}, err
	}
	return *created, nil
}

func (s *LocalSource) UpdateRecord(_ context.Context, collection string, rec models.LogRecord) (models.LogRecord, error) {
	updated, _, err := s.DB.UpdateRecord(collection, rec)
	if err != nil {
		return models.LogRecord{}, err
	}
	return *updated, nil
}

func (s *LocalSource) DeleteRecord(_ context.Context, collection, id string) error {
	_, err := s.DB.DeleteRecord(collection, id)
	return err
}
