package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/davidealbano/aria/internal/app"
	"github.com/davidealbano/aria/internal/config"
	"github.com/davidealbano/aria/internal/memory"
	"github.com/davidealbano/aria/internal/observability"
	"github.com/davidealbano/aria/internal/session"
	"github.com/davidealbano/aria/internal/tagstore"
)

var errEmptyBody = errors.New("empty request body")

type Server struct {
	cfg       config.Config
	sessions  *session.Manager
	mem       *memory.Manager
	finalizer *app.Finalizer
	gateway   tagstore.Gateway
	metrics   *observability.Metrics
	upgrader  websocket.Upgrader
}

func New(cfg config.Config, sessions *session.Manager, mem *memory.Manager, finalizer *app.Finalizer, gateway tagstore.Gateway, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:       cfg,
		sessions:  sessions,
		mem:       mem,
		finalizer: finalizer,
		gateway:   gateway,
		metrics:   metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Same-origin only by default: the watch stream exposes
				// conversation state and must not be drivable by other sites.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/v1/sessions", s.handleCreateSession)
	r.Post("/v1/sessions/{id}/messages", s.handleAppendMessage)
	r.Post("/v1/sessions/{id}/compress", s.handleCompress)
	r.Get("/v1/sessions/{id}/memory", s.handleWorkingMemory)
	r.Get("/v1/sessions/{id}/buffer", s.handleBuffer)
	r.Post("/v1/sessions/{id}/end", s.handleEndSession)
	r.Get("/v1/sessions/{id}/watch", s.handleWatch)
	r.Get("/v1/tags/{tag}/sessions", s.handleQueryByTag)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

type createSessionRequest struct {
	UserID string `json:"user_id"`
}

type createSessionResponse struct {
	SessionID       string `json:"session_id"`
	UserID          string `json:"user_id"`
	Status          string `json:"status"`
	InactivityTTLMS int64  `json:"inactivity_ttl_ms"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		req.UserID = "anonymous"
	}

	sess := s.sessions.Create(req.UserID)
	if err := s.mem.Initialize(r.Context(), sess.ID, sess.UserID); err != nil {
		respondError(w, http.StatusInternalServerError, "buffer_init_failed", err.Error())
		return
	}
	if s.metrics != nil {
		s.metrics.SessionEvents.WithLabelValues("created").Inc()
	}

	respondJSON(w, http.StatusCreated, createSessionResponse{
		SessionID:       sess.ID,
		UserID:          sess.UserID,
		Status:          string(sess.Status),
		InactivityTTLMS: s.cfg.SessionInactivityTimeout.Milliseconds(),
	})
}

type appendMessageRequest struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (s *Server) handleAppendMessage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req appendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	role := memory.Role(strings.ToLower(strings.TrimSpace(req.Role)))
	if !role.Valid() {
		respondError(w, http.StatusBadRequest, "invalid_role", "role must be user or assistant")
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		respondError(w, http.StatusBadRequest, "empty_content", "content is required")
		return
	}

	_ = s.sessions.Touch(id)
	s.mem.AddMessage(r.Context(), id, role, req.Content)

	// Compression rides behind the append so a slow backend never delays
	// the reply path; the manager skips cheaply when no batch is due.
	go s.mem.UpdateBuffer(context.Background(), id)

	respondJSON(w, http.StatusAccepted, map[string]any{
		"session_id":    id,
		"message_count": s.mem.MessageCount(r.Context(), id),
	})
}

func (s *Server) handleCompress(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	out := s.mem.UpdateBuffer(r.Context(), id)

	resp := map[string]any{
		"session_id": id,
		"status":     string(out.Status),
	}
	if out.Reason != "" {
		resp["reason"] = out.Reason
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleWorkingMemory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	respondJSON(w, http.StatusOK, map[string]any{
		"session_id":     id,
		"working_memory": s.mem.WorkingMemory(r.Context(), id),
	})
}

func (s *Server) handleBuffer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	buf, err := s.mem.Buffer(r.Context(), id)
	if errors.Is(err, memory.ErrNotFound) {
		respondError(w, http.StatusNotFound, "buffer_not_found", err.Error())
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "buffer_read_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, buf)
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, err := s.sessions.End(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}
	if s.metrics != nil {
		s.metrics.SessionEvents.WithLabelValues("ended").Inc()
	}
	respondJSON(w, http.StatusOK, sess)
}

func (s *Server) handleQueryByTag(w http.ResponseWriter, r *http.Request) {
	tag := strings.ToLower(strings.TrimSpace(chi.URLParam(r, "tag")))
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		respondError(w, http.StatusBadRequest, "missing_user_id", "query parameter user_id is required")
		return
	}

	items, err := s.gateway.QueryBySessionTag(r.Context(), userID, tag)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "query_failed", err.Error())
		return
	}
	if items == nil {
		items = []tagstore.SessionTagSummary{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"tag":      tag,
		"user_id":  userID,
		"sessions": items,
	})
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
