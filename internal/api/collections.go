package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/marcus/worklog/internal/models"
	"github.com/marcus/worklog/internal/serverdb"
)

const maxChangesLimit = 5000

// recordRequest is the JSON body for creating or updating a record.
type recordRequest struct {
	Name string `json:"name"`
	Time string `json:"time"`
}

// snapshotResponse is the JSON response for GET /v1/collections/{name}/snapshot.
type snapshotResponse struct {
	Records []models.LogRecord `json:"records"`
	LastSeq int64              `json:"last_seq"`
}

// changesResponse is the JSON response for GET /v1/collections/{name}/changes.
type changesResponse struct {
	Changes []models.ChangeEvent `json:"changes"`
	LastSeq int64                `json:"last_seq"`
	HasMore bool                 `json:"has_more"`
}

// handleSnapshot handles GET /v1/collections/{name}/snapshot.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	s.metrics.RecordSnapshot()
	coll := r.PathValue("name")

	snap, err := s.store.SnapshotCollection(coll)
	if err != nil {
		logFor(r.Context()).Error("snapshot collection", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to read collection")
		return
	}

	resp := snapshotResponse{Records: snap.Records, LastSeq: snap.LastSeq}
	if resp.Records == nil {
		resp.Records = []models.LogRecord{}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleChanges handles GET /v1/collections/{name}/changes.
func (s *Server) handleChanges(w http.ResponseWriter, r *http.Request) {
	s.metrics.RecordFeedPoll()
	coll := r.PathValue("name")

	afterSeq := int64(0)
	if v := r.URL.Query().Get("after_seq"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid after_seq")
			return
		}
		afterSeq = n
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid limit")
			return
		}
		if n > maxChangesLimit {
			n = maxChangesLimit
		}
		limit = n
	}

	res, err := s.store.ChangesSince(coll, afterSeq, limit)
	if err != nil {
		logFor(r.Context()).Error("changes since", "after", afterSeq, "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to read changes")
		return
	}

	resp := changesResponse{Changes: res.Changes, LastSeq: res.LastSeq, HasMore: res.HasMore}
	if resp.Changes == nil {
		resp.Changes = []models.ChangeEvent{}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleAddRecord handles POST /v1/collections/{name}/records.
func (s *Server) handleAddRecord(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r.Context())
	coll := r.PathValue("name")

	rec, ok := decodeRecord(w, r)
	if !ok {
		return
	}

	created, seq, err := s.store.AddRecord(coll, rec, user.UserID)
	if err != nil {
		logFor(r.Context()).Error("add record", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to add record")
		return
	}
	s.metrics.RecordWrite()
	logFor(r.Context()).Debug("record added", "id", created.ID, "seq", seq)
	s.notify(coll, models.ChangeEvent{Kind: models.ChangeAdded, Record: *created, Seq: seq})
	writeJSON(w, http.StatusCreated, created)
}

// handleUpdateRecord handles PATCH /v1/collections/{name}/records/{id}.
func (s *Server) handleUpdateRecord(w http.ResponseWriter, r *http.Request) {
	coll := r.PathValue("name")

	rec, ok := decodeRecord(w, r)
	if !ok {
		return
	}
	rec.ID = r.PathValue("id")

	updated, seq, err := s.store.UpdateRecord(coll, rec)
	if errors.Is(err, serverdb.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "record not found")
		return
	}
	if err != nil {
		logFor(r.Context()).Error("update record", "id", rec.ID, "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to update record")
		return
	}
	s.metrics.RecordWrite()
	logFor(r.Context()).Debug("record modified", "id", updated.ID, "seq", seq)
	s.notify(coll, models.ChangeEvent{Kind: models.ChangeModified, Record: *updated, Seq: seq})
	writeJSON(w, http.StatusOK, updated)
}

// handleDeleteRecord handles DELETE /v1/collections/{name}/records/{id}.
func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	coll := r.PathValue("name")
	id := r.PathValue("id")

	seq, err := s.store.DeleteRecord(coll, id)
	if errors.Is(err, serverdb.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "record not found")
		return
	}
	if err != nil {
		logFor(r.Context()).Error("delete record", "id", id, "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to delete record")
		return
	}
	s.metrics.RecordWrite()
	logFor(r.Context()).Debug("record removed", "id", id, "seq", seq)
	s.notify(coll, models.ChangeEvent{Kind: models.ChangeRemoved, Record: models.LogRecord{ID: id}, Seq: seq})
	w.WriteHeader(http.StatusNoContent)
}

func decodeRecord(w http.ResponseWriter, r *http.Request) (models.LogRecord, bool) {
	var req recordRequest
	if !decodeJSON(w, r, &req) {
		return models.LogRecord{}, false
	}
	rec := models.LogRecord{Name: req.Name, Time: req.Time}.Normalize()
	if err := rec.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
		return models.LogRecord{}, false
	}
	return rec, true
}
