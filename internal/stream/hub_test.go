package stream

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/estatehubhq/estatehub-backend/pkg/config"
)

func newTestHub(buffer int) *Hub {
	return NewHub(config.StreamConfig{SubscriberBuffer: buffer}, nil)
}

func update(id uuid.UUID, stage string, at time.Time) TransactionUpdate {
	return TransactionUpdate{
		ID:       id,
		Progress: Progress{Stage: stage, UpdatedAt: at},
		Property: PropertyRef{ID: uuid.New()},
	}
}

func TestHub_FanOut(t *testing.T) {
	hub := newTestHub(4)
	first, cancelFirst := hub.Subscribe()
	second, cancelSecond := hub.Subscribe()
	defer cancelFirst()
	defer cancelSecond()

	txID := uuid.New()
	if !hub.PublishTransaction(update(txID, "MEETING_SCHEDULED", time.Now())) {
		t.Fatal("fresh update rejected")
	}

	for _, ch := range []<-chan Frame{first, second} {
		select {
		case frame := <-ch:
			if frame.Type != "transaction_update" {
				t.Fatalf("unexpected frame type %q", frame.Type)
			}
			data, ok := frame.Data.(TransactionUpdate)
			if !ok {
				t.Fatalf("unexpected data type %T", frame.Data)
			}
			if data.ID != txID {
				t.Fatalf("expected transaction %s, got %s", txID, data.ID)
			}
		default:
			t.Fatal("subscriber did not receive frame")
		}
	}
}

func TestHub_StaleUpdateDropped(t *testing.T) {
	hub := newTestHub(4)
	ch, cancel := hub.Subscribe()
	defer cancel()

	txID := uuid.New()
	now := time.Now()
	if !hub.PublishTransaction(update(txID, "DEPOSIT_PAID", now)) {
		t.Fatal("fresh update rejected")
	}
	<-ch

	if hub.PublishTransaction(update(txID, "MEETING_SCHEDULED", now.Add(-time.Minute))) {
		t.Fatal("stale update accepted")
	}
	select {
	case frame := <-ch:
		t.Fatalf("stale frame delivered: %+v", frame)
	default:
	}

	// Updates for a different transaction are unaffected.
	if !hub.PublishTransaction(update(uuid.New(), "PENDING", now.Add(-time.Hour))) {
		t.Fatal("unrelated transaction rejected")
	}
}

func TestHub_SlowSubscriberMissesFrames(t *testing.T) {
	hub := newTestHub(1)
	ch, cancel := hub.Subscribe()
	defer cancel()

	txID := uuid.New()
	base := time.Now()
	hub.PublishTransaction(update(txID, "MEETING_SCHEDULED", base))
	hub.PublishTransaction(update(txID, "DEPOSIT_PAID", base.Add(time.Second)))

	frame := <-ch
	data := frame.Data.(TransactionUpdate)
	if data.Progress.Stage != "MEETING_SCHEDULED" {
		t.Fatalf("expected buffered first frame, got %s", data.Progress.Stage)
	}
	select {
	case extra := <-ch:
		t.Fatalf("second frame should have been dropped, got %+v", extra)
	default:
	}
}

func TestHub_CancelClosesChannel(t *testing.T) {
	hub := newTestHub(2)
	ch, cancel := hub.Subscribe()
	if hub.SubscriberCount() != 1 {
		t.Fatalf("expected 1 subscriber, got %d", hub.SubscriberCount())
	}
	cancel()
	cancel()
	if hub.SubscriberCount() != 0 {
		t.Fatalf("expected 0 subscribers, got %d", hub.SubscriberCount())
	}
	if _, open := <-ch; open {
		t.Fatal("channel not closed on cancel")
	}
}

func TestHub_PublishRacesCancel(t *testing.T) {
	hub := newTestHub(1)
	txID := uuid.New()
	base := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		_, cancel := hub.Subscribe()
		wg.Add(1)
		go func() {
			defer wg.Done()
			cancel()
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 2000; i++ {
			hub.PublishTransaction(update(txID, "DEPOSIT_PAID", base.Add(time.Duration(i)*time.Millisecond)))
		}
	}()
	wg.Wait()

	if hub.SubscriberCount() != 0 {
		t.Fatalf("expected 0 subscribers, got %d", hub.SubscriberCount())
	}
}

func TestHub_ForgetResetsStalenessGuard(t *testing.T) {
	hub := newTestHub(2)
	txID := uuid.New()
	now := time.Now()
	hub.PublishTransaction(update(txID, "COMPLETED", now))
	hub.Forget(txID)
	if !hub.PublishTransaction(update(txID, "PENDING", now.Add(-time.Hour))) {
		t.Fatal("update rejected after Forget")
	}
}
