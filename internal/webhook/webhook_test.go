package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/marcus/worklog/internal/models"
)

type delivery struct {
	payload   Payload
	timestamp string
	signature string
	body      []byte
}

// receiver records every POST it gets.
func receiver(t *testing.T, status int) (string, func() []delivery) {
	t.Helper()
	var mu sync.Mutex
	var got []delivery
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var p Payload
		if err := json.Unmarshal(body, &p); err != nil {
			t.Errorf("unmarshal payload: %v", err)
		}
		mu.Lock()
		got = append(got, delivery{p, r.Header.Get(HeaderTimestamp), r.Header.Get(HeaderSignature), body})
		mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(ts.Close)
	return ts.URL, func() []delivery {
		mu.Lock()
		defer mu.Unlock()
		return append([]delivery(nil), got...)
	}
}

func change(kind models.ChangeKind, id string, seq int64) models.ChangeEvent {
	return models.ChangeEvent{Kind: kind, Record: models.LogRecord{ID: id, Name: "standup", Time: "15m"}, Seq: seq}
}

func TestDispatchSignsBody(t *testing.T) {
	url, deliveries := receiver(t, http.StatusOK)

	p := BuildPayload("logs", []models.ChangeEvent{change(models.ChangeAdded, "r1", 1)})
	if err := Dispatch(context.Background(), http.DefaultClient, url, "s3cret", p); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	got := deliveries()
	if len(got) != 1 {
		t.Fatalf("deliveries = %d, want 1", len(got))
	}
	d := got[0]
	if d.payload.Collection != "logs" || len(d.payload.Changes) != 1 || d.payload.Changes[0].Record.ID != "r1" {
		t.Errorf("payload = %+v", d.payload)
	}
	if !Verify("s3cret", d.timestamp, d.signature, d.body, time.Minute) {
		t.Error("signature does not verify")
	}
	if Verify("other", d.timestamp, d.signature, d.body, time.Minute) {
		t.Error("signature verified with the wrong secret")
	}
}

func TestDispatchWithoutSecretIsUnsigned(t *testing.T) {
	url, deliveries := receiver(t, http.StatusOK)
	if err := Dispatch(context.Background(), http.DefaultClient, url, "", BuildPayload("logs", nil)); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if sig := deliveries()[0].signature; sig != "" {
		t.Errorf("signature = %q, want none", sig)
	}
}

func TestDispatchNon2xx(t *testing.T) {
	url, _ := receiver(t, http.StatusBadGateway)
	err := Dispatch(context.Background(), http.DefaultClient, url, "", BuildPayload("logs", nil))
	if err == nil {
		t.Fatal("expected error for 502")
	}
}

func TestVerifyRejectsStaleTimestamp(t *testing.T) {
	body := []byte(`{}`)
	old := strconv.FormatInt(time.Now().Add(-time.Hour).Unix(), 10)
	if Verify("k", old, Sign("k", old, body), body, 5*time.Minute) {
		t.Error("stale timestamp accepted")
	}
	if Verify("k", "not-a-number", Sign("k", "not-a-number", body), body, 5*time.Minute) {
		t.Error("malformed timestamp accepted")
	}
}

func TestNotifierDeliversInOrder(t *testing.T) {
	url, deliveries := receiver(t, http.StatusOK)
	n := NewNotifier(url, "")

	n.Notify("logs", change(models.ChangeAdded, "r1", 1))
	n.Notify("logs", change(models.ChangeModified, "r1", 2))
	n.Notify("logs", change(models.ChangeRemoved, "r1", 3))
	n.Close()

	var seqs []int64
	for _, d := range deliveries() {
		for _, ev := range d.payload.Changes {
			seqs = append(seqs, ev.Seq)
		}
	}
	if len(seqs) != 3 || seqs[0] != 1 || seqs[1] != 2 || seqs[2] != 3 {
		t.Errorf("delivered seqs = %v, want [1 2 3]", seqs)
	}
}

func TestNotifierSurvivesFailedDelivery(t *testing.T) {
	url, deliveries := receiver(t, http.StatusInternalServerError)
	n := NewNotifier(url, "")
	n.Notify("logs", change(models.ChangeAdded, "r1", 1))
	n.Close()
	n.Close()

	if len(deliveries()) != 1 {
		t.Errorf("deliveries = %d, want 1 attempt", len(deliveries()))
	}
}

func TestNotifyAfterCloseIsDropped(t *testing.T) {
	url, deliveries := receiver(t, http.StatusOK)
	n := NewNotifier(url, "")
	n.Notify("logs", change(models.ChangeAdded, "r1", 1))
	n.Close()

	n.Notify("logs", change(models.ChangeRemoved, "r1", 2))

	got := deliveries()
	if len(got) != 1 || len(got[0].payload.Changes) != 1 || got[0].payload.Changes[0].Seq != 1 {
		t.Errorf("deliveries after close = %+v, want only seq 1", got)
	}
}

func TestNotifyRacingClose(t *testing.T) {
	url, _ := receiver(t, http.StatusOK)
	n := NewNotifier(url, "")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				n.Notify("logs", change(models.ChangeAdded, "r"+strconv.Itoa(i), int64(j)))
			}
		}(i)
	}
	n.Close()
	wg.Wait()
}
