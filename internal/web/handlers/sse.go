package handlers

import (
	"bytes"
	"io"
	"log"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/events"
)

// EventsHandler streams newly created attendance marks as server-sent events.
type EventsHandler struct {
	broadcaster *events.Broadcaster
	keepAlive   time.Duration
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(b *events.Broadcaster) *EventsHandler {
	return &EventsHandler{
		broadcaster: b,
		keepAlive:   constants.SSEKeepAliveInterval,
	}
}

// setupSSEConnection sets up SSE headers.
// Returns the flusher and true on success. On failure, writes an error response and returns false.
func setupSSEConnection(w http.ResponseWriter) (http.Flusher, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return nil, false
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	return flusher, true
}

// Stream sends a "mark" event for every new attendance mark until the client disconnects.
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := setupSSEConnection(w)
	if !ok {
		return
	}

	eventCh := h.broadcaster.AddListener()
	defer h.broadcaster.RemoveListener(eventCh)

	sendSSEEvent(w, flusher, "status", map[string]int{"listeners": h.broadcaster.Listeners()})

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			_, _ = io.WriteString(w, ": keep-alive\n\n")
			flusher.Flush()
		case event, ok := <-eventCh:
			if !ok {
				return
			}
			sendSSEEvent(w, flusher, "mark", event)
		}
	}
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Printf("Warning: failed to encode %s event: %v", eventType, err)
		return
	}
	_, _ = io.WriteString(w, "event: "+eventType+"\n")
	_, _ = io.WriteString(w, "data: ")
	_, _ = io.Copy(w, bytes.NewReader(jsonData))
	_, _ = io.WriteString(w, "\n\n")
	flusher.Flush()
}
