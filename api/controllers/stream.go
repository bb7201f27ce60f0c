package controllers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/estatehubhq/estatehub-backend/api/responses"
	"github.com/estatehubhq/estatehub-backend/internal/stream"
	pkgerrors "github.com/estatehubhq/estatehub-backend/pkg/errors"
	"github.com/estatehubhq/estatehub-backend/pkg/logger"
)

// transactionSubscriber is the slice of the stream hub the controller needs.
type transactionSubscriber interface {
	Subscribe() (<-chan stream.Frame, func())
}

// StreamTransactions serves the admin transaction feed over server-sent
// events. Heartbeat comments keep idle connections alive through proxies.
func StreamTransactions(hub transactionSubscriber, heartbeat time.Duration, logg *logger.Logger) http.HandlerFunc {
	if heartbeat <= 0 {
		heartbeat = 25 * time.Second
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if hub == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stream hub unavailable"))
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "streaming unsupported"))
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
		w.WriteHeader(http.StatusOK)

		fmt.Fprint(w, ": connected\n\n")
		flusher.Flush()

		frames, cancel := hub.Subscribe()
		defer cancel()

		ticker := time.NewTicker(heartbeat)
		defer ticker.Stop()

		ctx := r.Context()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fmt.Fprint(w, ": heartbeat\n\n")
				flusher.Flush()
			case frame, open := <-frames:
				if !open {
					return
				}
				data, err := json.Marshal(frame.Data)
				if err != nil {
					if logg != nil {
						logg.Error(ctx, "stream.encode_frame", err)
					}
					continue
				}
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", frame.Type, data)
				flusher.Flush()
			}
		}
	}
}
