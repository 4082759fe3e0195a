package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/davidealbano/aria/internal/memory"
)

// bufferState is the diagnostic snapshot pushed over the watch stream.
type bufferState struct {
	SessionID        string    `json:"session_id"`
	MessageCount     int       `json:"message_count"`
	SummaryCount     int       `json:"summary_count"`
	CurrentTopic     string    `json:"current_topic,omitempty"`
	CurrentEmotion   string    `json:"current_emotion,omitempty"`
	LastCompressedAt time.Time `json:"last_compressed_at,omitempty"`
}

// handleWatch streams periodic buffer snapshots for diagnostics tooling.
func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.mem.Buffer(r.Context(), id); errors.Is(err, memory.ErrNotFound) {
		respondError(w, http.StatusNotFound, "buffer_not_found", err.Error())
		return
	}

	interval := 2 * time.Second
	if raw := r.URL.Query().Get("interval_ms"); raw != "" {
		if ms, err := strconv.Atoi(raw); err == nil && ms >= 200 {
			interval = time.Duration(ms) * time.Millisecond
		}
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	// Drain the read side so close frames from the client are noticed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		buf, err := s.mem.Buffer(ctx, id)
		if err != nil {
			// Buffer cleared while watching: the session ended.
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "buffer cleared"),
				time.Now().Add(time.Second))
			return
		}

		state := bufferState{
			SessionID:        id,
			MessageCount:     len(buf.Turns),
			SummaryCount:     len(buf.RollingSummaries),
			LastCompressedAt: buf.LastCompressedAt,
		}
		if n := len(buf.RollingSummaries); n > 0 {
			state.CurrentTopic = buf.RollingSummaries[n-1].Topic
			state.CurrentEmotion = buf.EmotionTrail[n-1]
		}

		_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(state); err != nil {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
		}
	}
}
