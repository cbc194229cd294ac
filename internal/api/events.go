// File path: internal/api/events.go
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	chi "github.com/go-chi/chi/v5"

	"github.com/planforge/planforge/internal/common"
	"github.com/planforge/planforge/internal/docgen"
)

const subscriberBuffer = 64

// EventHub fans generation progress events out to SSE subscribers. Publish
// never blocks: a subscriber that falls behind loses events rather than
// stalling the generation pipeline.
type EventHub struct {
	mu          sync.Mutex
	subscribers map[int]chan docgen.Event
	nextID      int
}

// NewEventHub builds an empty hub.
func NewEventHub() *EventHub {
	return &EventHub{subscribers: make(map[int]chan docgen.Event)}
}

// Notifier adapts the hub to the orchestrator's progress callback.
func (h *EventHub) Notifier() docgen.Notifier {
	return h.publish
}

func (h *EventHub) publish(ev docgen.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subscribers {
		select {
		case ch <- ev:
		default:
			common.Logger().Debug("api: dropping event for slow subscriber", "subscriber", id)
		}
	}
}

func (h *EventHub) subscribe() (int, <-chan docgen.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	ch := make(chan docgen.Event, subscriberBuffer)
	h.subscribers[id] = ch
	return id, ch
}

func (h *EventHub) unsubscribe(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subscribers, id)
}

// handleEvents streams a project's generation progress as server-sent events.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("event stream unavailable"))
		return
	}
	projectID := strings.TrimSpace(chi.URLParam(r, "projectID"))
	if projectID == "" {
		writeError(w, http.StatusBadRequest, errors.New("project id required"))
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, errors.New("streaming unsupported"))
		return
	}

	id, ch := s.events.subscribe()
	defer s.events.unsubscribe(id)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-ch:
			if ev.ProjectID != projectID {
				continue
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Phase, payload)
			flusher.Flush()
		}
	}
}
