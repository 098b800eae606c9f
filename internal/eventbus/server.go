package eventbus

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Server streams bus events to HTTP clients as server-sent events. Slow
// consumers miss events rather than stalling publishers; clients needing a
// full picture re-read the collections after reconnecting.
type Server struct {
	bus *Bus
}

func NewServer(bus *Bus) *Server {
	return &Server{bus: bus}
}

func (s *Server) RegisterRoutes(r chi.Router) {
	r.Get("/events", s.stream)
}

func (s *Server) stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	id, events := s.bus.Subscribe(64)
	defer s.bus.Unsubscribe(id)

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", event.ID, event.Type, data)
			flusher.Flush()
		}
	}
}
