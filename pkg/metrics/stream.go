package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// StreamMetrics records live event stream activity.
type StreamMetrics struct {
	subscribers *prometheus.GaugeVec
	published   *prometheus.CounterVec
	dropped     *prometheus.CounterVec
}

// NewStreamMetrics registers the stream metrics on the provided registerer.
func NewStreamMetrics(reg prometheus.Registerer) *StreamMetrics {
	if reg == nil {
		return &StreamMetrics{}
	}
	subscribers := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "stream_subscribers",
		Help: "Currently connected stream subscribers.",
	}, []string{"channel"})
	published := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stream_events_published",
		Help: "Events fanned out to stream subscribers.",
	}, []string{"channel"})
	dropped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stream_events_dropped",
		Help: "Events dropped because a subscriber buffer was full.",
	}, []string{"channel"})
	reg.MustRegister(subscribers, published, dropped)
	return &StreamMetrics{
		subscribers: subscribers,
		published:   published,
		dropped:     dropped,
	}
}

// SubscriberConnected increments the subscriber gauge for the channel.
func (s *StreamMetrics) SubscriberConnected(channel string) {
	if s == nil || s.subscribers == nil {
		return
	}
	s.subscribers.WithLabelValues(normalizeLabel(channel)).Inc()
}

// SubscriberDisconnected decrements the subscriber gauge for the channel.
func (s *StreamMetrics) SubscriberDisconnected(channel string) {
	if s == nil || s.subscribers == nil {
		return
	}
	s.subscribers.WithLabelValues(normalizeLabel(channel)).Dec()
}

// IncPublished increments the published counter for the channel.
func (s *StreamMetrics) IncPublished(channel string) {
	if s == nil || s.published == nil {
		return
	}
	s.published.WithLabelValues(normalizeLabel(channel)).Inc()
}

// IncDropped increments the dropped counter for the channel.
func (s *StreamMetrics) IncDropped(channel string) {
	if s == nil || s.dropped == nil {
		return
	}
	s.dropped.WithLabelValues(normalizeLabel(channel)).Inc()
}
