package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/zatekoja/furniturefinder/internal/application/services"
	"github.com/zatekoja/furniturefinder/internal/infrastructure/observability"
)

const streamHeartbeat = 30 * time.Second

// StreamProducts pushes the session's result snapshot as Server-Sent Events
// whenever it changes. Only the newest snapshot is delivered to slow clients.
// GET /api/sessions/{id}/stream
func (h *BrowseHandler) StreamProducts(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	release := s.Hold()
	defer release()

	rc := http.NewResponseController(w)
	// Streams outlive the server write timeout
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	var mu sync.Mutex
	var latest services.PaginatedResult
	signal := make(chan struct{}, 1)
	unsubscribe := s.Pagination.OnChange(func(res services.PaginatedResult) {
		mu.Lock()
		latest = res
		mu.Unlock()
		select {
		case signal <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	logger := observability.LoggerFromContext(r.Context())
	send := func(event string, data interface{}) bool {
		if err := writeEvent(w, event, data); err != nil {
			logger.Debug().Err(err).Str("session_id", s.ID).Msg("stream write failed")
			return false
		}
		if err := rc.Flush(); err != nil {
			logger.Warn().Err(err).Msg("streaming not supported")
			return false
		}
		return true
	}

	if !send("connected", map[string]interface{}{"session_id": s.ID, "timestamp": time.Now()}) {
		return
	}
	if !send("result", productsView{SessionID: s.ID, Result: s.Pagination.Result()}) {
		return
	}

	ticker := time.NewTicker(h.heartbeat())
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if !send("heartbeat", map[string]interface{}{"timestamp": time.Now()}) {
				return
			}
		case <-signal:
			mu.Lock()
			res := latest
			mu.Unlock()
			if !send("result", productsView{SessionID: s.ID, Result: res}) {
				return
			}
		}
	}
}

func (h *BrowseHandler) heartbeat() time.Duration {
	if h.streamHeartbeat > 0 {
		return h.streamHeartbeat
	}
	return streamHeartbeat
}

func writeEvent(w http.ResponseWriter, event string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", event, err)
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
	return err
}
