package overlay

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

// SSEHandler streams overlay events as server-sent events. The message on
// screen, if any, is replayed first so late viewers see it.
func SSEHandler(bus *Bus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming not supported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")

		id, ch := bus.Subscribe()
		defer bus.Unsubscribe(id)

		if cur, ok := bus.Current(); ok {
			writeEvent(w, cur)
		}
		flusher.Flush()

		for {
			select {
			case <-r.Context().Done():
				return
			case evt, ok := <-ch:
				if !ok {
					return
				}
				writeEvent(w, evt)
				flusher.Flush()
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, evt Event) {
	data, err := json.Marshal(evt)
	if err != nil {
		slog.Warn("overlay event encode failed", "kind", evt.Kind, "error", err)
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Kind, data)
}
