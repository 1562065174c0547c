package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/yalor/ace/internal/bus"
)

const (
	sseBuffer    = 32
	ssePingEvery = 15 * time.Second
)

// sseEnvelope is one frame on the developer event stream.
type sseEnvelope struct {
	Kind    bus.Kind  `json:"kind"`
	At      time.Time `json:"at"`
	Payload bus.Event `json:"payload"`
}

// handleEventStream mirrors all bus traffic to the client as Server-Sent
// Events. The tap only enqueues; a client that stops reading loses frames
// instead of stalling the pipeline.
func handleEventStream(b *bus.Bus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			httpError(w, http.StatusInternalServerError, "api_error", "streaming not supported")
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		frames := make(chan bus.Event, sseBuffer)
		untap := b.Tap(func(e bus.Event) {
			select {
			case frames <- e:
			default:
			}
		})
		defer untap()

		ping := time.NewTicker(ssePingEvery)
		defer ping.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case <-ping.C:
				fmt.Fprint(w, ": ping\n\n")
				flusher.Flush()
			case e := <-frames:
				data, err := json.Marshal(sseEnvelope{
					Kind:    e.EventKind(),
					At:      time.Now().UTC(),
					Payload: e,
				})
				if err != nil {
					slog.Warn("encoding sse frame", "kind", e.EventKind(), "error", err)
					continue
				}
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.EventKind(), data)
				flusher.Flush()
			}
		}
	}
}
