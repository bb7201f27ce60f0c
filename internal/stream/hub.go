package stream

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/estatehubhq/estatehub-backend/pkg/config"
	"github.com/estatehubhq/estatehub-backend/pkg/metrics"
)

const transactionChannel = "transactions"

// Frame is one server-sent event payload.
type Frame struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// PropertyRef identifies the property a transaction update belongs to.
type PropertyRef struct {
	ID uuid.UUID `json:"id"`
}

// Notification is a progress history entry as rendered on the stream.
type Notification struct {
	ID            uuid.UUID `json:"id"`
	Message       string    `json:"message"`
	RecipientRole string    `json:"recipientRole"`
	Stage         string    `json:"stage"`
	Category      string    `json:"category"`
	Read          bool      `json:"read"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Progress carries a transaction's current stage and its history.
type Progress struct {
	Stage         string         `json:"stage"`
	UpdatedAt     time.Time      `json:"updatedAt"`
	Notifications []Notification `json:"notifications"`
}

// TransactionUpdate is the data section of a transaction_update frame.
type TransactionUpdate struct {
	ID       uuid.UUID   `json:"id"`
	Progress Progress    `json:"progress"`
	Property PropertyRef `json:"property"`
}

// Hub fans transaction updates out to connected stream subscribers. Publishes
// never block: a subscriber whose buffer is full misses the frame. Frames
// carrying an updatedAt older than the last frame delivered for the same
// transaction are discarded, so out-of-order publishes cannot roll the
// client's view backwards.
type Hub struct {
	mu          sync.Mutex
	subscribers map[uint64]chan Frame
	nextID      uint64
	lastSeen    map[uuid.UUID]time.Time
	buffer      int
	metrics     *metrics.StreamMetrics
}

// NewHub builds a hub with the configured per-subscriber buffer.
func NewHub(cfg config.StreamConfig, streamMetrics *metrics.StreamMetrics) *Hub {
	buffer := cfg.SubscriberBuffer
	if buffer < 1 {
		buffer = 1
	}
	return &Hub{
		subscribers: make(map[uint64]chan Frame),
		lastSeen:    make(map[uuid.UUID]time.Time),
		buffer:      buffer,
		metrics:     streamMetrics,
	}
}

// Subscribe registers a new subscriber. The returned cancel func must be
// called when the client disconnects; it closes the frame channel.
func (h *Hub) Subscribe() (<-chan Frame, func()) {
	ch := make(chan Frame, h.buffer)

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subscribers[id] = ch
	h.mu.Unlock()

	h.metrics.SubscriberConnected(transactionChannel)

	cancel := func() {
		h.mu.Lock()
		if existing, ok := h.subscribers[id]; ok {
			delete(h.subscribers, id)
			close(existing)
			h.mu.Unlock()
			h.metrics.SubscriberDisconnected(transactionChannel)
			return
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// PublishTransaction fans a transaction update out to every subscriber.
// Returns false when the update is stale and was discarded.
func (h *Hub) PublishTransaction(update TransactionUpdate) bool {
	frame := Frame{Type: "transaction_update", Data: update}

	h.mu.Lock()
	defer h.mu.Unlock()

	if last, ok := h.lastSeen[update.ID]; ok && update.Progress.UpdatedAt.Before(last) {
		return false
	}
	h.lastSeen[update.ID] = update.Progress.UpdatedAt

	// Sends stay under the mutex so a racing cancel cannot close a channel
	// between the snapshot and the send. They never block: a full buffer
	// drops the frame instead.
	for _, ch := range h.subscribers {
		select {
		case ch <- frame:
			h.metrics.IncPublished(transactionChannel)
		default:
			h.metrics.IncDropped(transactionChannel)
		}
	}
	return true
}

// SubscriberCount reports the number of connected subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// Forget drops the staleness marker for a transaction. Used once a
// transaction reaches a terminal stage and no further frames are expected.
func (h *Hub) Forget(transactionID uuid.UUID) {
	h.mu.Lock()
	delete(h.lastSeen, transactionID)
	h.mu.Unlock()
}
