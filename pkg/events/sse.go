package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const heartbeatInterval = 25 * time.Second

// SSEHandler streams the events of one project as Server-Sent Events.
// Authentication is left to the caller.
//
// Query:
//
//	project: required, and must satisfy known when known is non-nil
//	since:   optional last seen event id (Last-Event-ID is honored too)
//
// Buffered events with id > since are replayed first, then live events
// follow. A comment line is sent every 25s to keep proxies from timing out.
func SSEHandler(hub *Hub, known func(project string) bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hub == nil {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
			return
		}

		project := strings.TrimSpace(r.URL.Query().Get("project"))
		if project == "" {
			http.Error(w, "project is required", http.StatusBadRequest)
			return
		}
		if known != nil && !known(project) {
			http.Error(w, "project not found", http.StatusNotFound)
			return
		}

		var since int64
		if s := r.URL.Query().Get("since"); s != "" {
			if v, err := strconv.ParseInt(s, 10, 64); err == nil {
				since = v
			}
		}
		if s := r.Header.Get("Last-Event-ID"); s != "" {
			if v, err := strconv.ParseInt(s, 10, 64); err == nil && v > since {
				since = v
			}
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")

		eventsCh, unsubscribe := hub.Subscribe(project, since, 128)
		defer unsubscribe()

		heartbeat := time.NewTicker(heartbeatInterval)
		defer heartbeat.Stop()

		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		for {
			select {
			case evt, ok := <-eventsCh:
				if !ok {
					return
				}
				data, err := json.Marshal(evt)
				if err != nil {
					slog.Warn("failed to marshal event", "error", err)
					continue
				}
				if _, err := fmt.Fprintf(w, "id: %d\nevent: project.event\ndata: %s\n\n", evt.ID, data); err != nil {
					return
				}
				flusher.Flush()

			case <-heartbeat.C:
				if _, err := w.Write([]byte(": ping\n\n")); err != nil {
					return
				}
				flusher.Flush()

			case <-r.Context().Done():
				return
			}
		}
	})
}
