package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/estatehubhq/estatehub-backend/internal/stream"
)

type fakeSubscriber struct {
	frames    chan stream.Frame
	cancelled bool
}

func (f *fakeSubscriber) Subscribe() (<-chan stream.Frame, func()) {
	return f.frames, func() { f.cancelled = true }
}

func TestStreamTransactionsWritesFrames(t *testing.T) {
	sub := &fakeSubscriber{frames: make(chan stream.Frame, 1)}
	transactionID := uuid.New()
	sub.frames <- stream.Frame{
		Type: "transaction_update",
		Data: stream.TransactionUpdate{
			ID: transactionID,
			Progress: stream.Progress{
				Stage:     "DEPOSIT_PAID",
				UpdatedAt: time.Now().UTC(),
			},
			Property: stream.PropertyRef{ID: uuid.New()},
		},
	}
	close(sub.frames)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/transactions/stream", nil)
	resp := httptest.NewRecorder()
	StreamTransactions(sub, time.Minute, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if got := resp.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("unexpected content type %q", got)
	}

	body := resp.Body.String()
	if !strings.Contains(body, ": connected") {
		t.Fatalf("missing connect comment in %q", body)
	}
	if !strings.Contains(body, "event: transaction_update") {
		t.Fatalf("missing event line in %q", body)
	}
	if !strings.Contains(body, transactionID.String()) {
		t.Fatalf("missing transaction id in %q", body)
	}
	if !strings.Contains(body, `"stage":"DEPOSIT_PAID"`) {
		t.Fatalf("missing stage payload in %q", body)
	}
	if !sub.cancelled {
		t.Fatal("expected subscription cancelled on close")
	}
}

func TestStreamTransactionsStopsOnClientClose(t *testing.T) {
	sub := &fakeSubscriber{frames: make(chan stream.Frame)}

	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/transactions/stream", nil)
	ctx, cancel := context.WithCancel(req.Context())
	req = req.WithContext(ctx)

	done := make(chan struct{})
	resp := httptest.NewRecorder()
	go func() {
		StreamTransactions(sub, time.Minute, testLogger())(resp, req)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not return after client disconnect")
	}
	if !sub.cancelled {
		t.Fatal("expected subscription cancelled")
	}
}
