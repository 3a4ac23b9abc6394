package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"
)

// SSEEvent represents a Server-Sent Event
type SSEEvent struct {
	Type string
	Data string
}

// setSSEHeaders sets the standard SSE headers
func setSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
}

// writeSSEEvent writes one event and flushes it to the client
func writeSSEEvent(w http.ResponseWriter, event SSEEvent) error {
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, event.Data); err != nil {
		return err
	}
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
	return nil
}

// handleJobEvents streams a job's console history and then follows it live.
// A final "complete" event carries the job snapshot.
func handleJobEvents(m *Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, ok := m.Get(chi.URLParam(r, "id"))
		if !ok {
			respondStatusError(w, newAPIError(http.StatusNotFound, "not_found", "job not found", nil))
			return
		}
		setSSEHeaders(w)
		w.WriteHeader(http.StatusOK)
		streamJob(r.Context(), w, job)
	}
}

func streamJob(ctx context.Context, w http.ResponseWriter, job *Job) {
	next := 0
	for {
		msgs, wake, finished := job.messagesFrom(next)
		for _, msg := range msgs {
			data, err := json.Marshal(msg)
			if err != nil {
				continue
			}
			if err := writeSSEEvent(w, SSEEvent{Type: "console", Data: string(data)}); err != nil {
				// Client disconnected during write
				return
			}
		}
		next += len(msgs)

		if finished {
			data, _ := json.Marshal(job.View())
			writeSSEEvent(w, SSEEvent{Type: "complete", Data: string(data)})
			return
		}

		progress, _ := json.Marshal(map[string]any{"progress": job.View().Progress})
		if err := writeSSEEvent(w, SSEEvent{Type: "progress", Data: string(progress)}); err != nil {
			return
		}

		select {
		case <-wake:
		case <-ctx.Done():
			// Client disconnected
			return
		}
	}
}

// handleJobOutput serves the text output of a completed job, or its PNG
// preview with ?format=png.
func handleJobOutput(m *Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, ok := m.Get(chi.URLParam(r, "id"))
		if !ok {
			respondStatusError(w, newAPIError(http.StatusNotFound, "not_found", "job not found", nil))
			return
		}
		text, preview, done := job.Output()
		if !done {
			respondStatusError(w, newAPIError(http.StatusConflict, "job_not_completed", "job has no output yet",
				map[string]any{"status": job.View().Status}))
			return
		}

		path, contentType := text, "text/plain; charset=utf-8"
		if r.URL.Query().Get("format") == "png" {
			if preview == "" {
				respondStatusError(w, newAPIError(http.StatusNotFound, "not_found", "job has no preview", nil))
				return
			}
			path, contentType = preview, "image/png"
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(path)))
		http.ServeFile(w, r, path)
	}
}
