package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/marcus/worklog/internal/models"
	"github.com/marcus/worklog/internal/webhook"
)

func TestWebhookReceivesChanges(t *testing.T) {
	var mu sync.Mutex
	var got []models.ChangeEvent
	var verified bool
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var p webhook.Payload
		if err := json.Unmarshal(body, &p); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		mu.Lock()
		got = append(got, p.Changes...)
		verified = webhook.Verify("hook-secret", r.Header.Get(webhook.HeaderTimestamp), r.Header.Get(webhook.HeaderSignature), body, time.Minute)
		mu.Unlock()
	}))
	defer hook.Close()

	h := newTestHarness(t, func(c *Config) {
		c.WebhookURL = hook.URL
		c.WebhookSecret = "hook-secret"
	})
	_, token := h.CreateUser("hook@example.com")

	rec := h.AddRecord(token, "Deploy", "20m")
	resp := h.Do("DELETE", "/v1/collections/logs/records/"+rec.ID, token, nil)
	AssertStatus(t, resp, http.StatusNoContent)
	resp.Body.Close()

	// Close flushes the queue.
	h.Server.notifier.Close()

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 {
		t.Fatalf("webhook got %d changes, want 2", len(got))
	}
	if got[0].Kind != models.ChangeAdded || got[0].Record.Name != "Deploy" || got[0].Seq != 1 {
		t.Errorf("first change = %+v", got[0])
	}
	if got[1].Kind != models.ChangeRemoved || got[1].Record.ID != rec.ID || got[1].Seq != 2 {
		t.Errorf("second change = %+v", got[1])
	}
	if !verified {
		t.Error("delivery signature did not verify")
	}
}

func TestWebhookDisabledByDefault(t *testing.T) {
	h := newTestHarness(t)
	if h.Server.notifier != nil {
		t.Fatal("notifier started without a webhook URL")
	}
	_, token := h.CreateUser("quiet@example.com")
	h.AddRecord(token, "Standup", "15m")
}
