package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/nelrik/waypost/internal/core"
	"github.com/nelrik/waypost/internal/media"
	"github.com/nelrik/waypost/internal/reminder"
	"github.com/nelrik/waypost/internal/store"
	"go.uber.org/zap"
)

// MemoryStore is the slice of persistence the handler needs for memory rows.
type MemoryStore interface {
	CreateMemory(ctx context.Context, m *store.Memory) error
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	mediaStore *media.Service
	ingestor   *media.Ingestor
	scheduler  *reminder.Scheduler
	memories   MemoryStore
	logger     *zap.Logger
}

// NewHandler creates a new API handler.
func NewHandler(mediaStore *media.Service, ingestor *media.Ingestor, scheduler *reminder.Scheduler, memories MemoryStore, logger *zap.Logger) *Handler {
	return &Handler{
		mediaStore: mediaStore,
		ingestor:   ingestor,
		scheduler:  scheduler,
		memories:   memories,
		logger:     logger,
	}
}

// Router builds the chi router with all routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.healthCheck)

		r.Post("/media/ingest", h.ingestMedia)
		r.Get("/media/stats", h.mediaStats)
		r.Get("/media/{fingerprint}", h.getMedia)

		r.Post("/memories", h.createMemory)

		r.Post("/reminders", h.createReminder)
		r.Post("/reminders/parse", h.createReminderFromPhrase)
		r.Delete("/reminders/{id}", h.cancelReminder)
		r.Get("/reminders/stats", h.reminderStats)
	})

	return r
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type ingestRequest struct {
	SourceURL    string `json:"source_url"`
	ContentType  string `json:"content_type,omitempty"`
	OriginalName string `json:"original_name,omitempty"`
	UserID       string `json:"user_id"`
	MemoryID     string `json:"memory_id,omitempty"`
}

func (h *Handler) ingestMedia(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if req.SourceURL == "" || req.UserID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "source_url and user_id are required"})
		return
	}

	ref, err := h.ingestor.Ingest(r.Context(), req.SourceURL, req.ContentType, req.OriginalName,
		media.OwnerContext{UserID: req.UserID, MemoryID: req.MemoryID})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ref)
}

func (h *Handler) mediaStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.mediaStore.Stats(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) getMedia(w http.ResponseWriter, r *http.Request) {
	fingerprint := chi.URLParam(r, "fingerprint")
	rc, blob, err := h.mediaStore.Open(r.Context(), fingerprint)
	if err != nil {
		h.writeError(w, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", blob.ContentType)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("media stream interrupted",
			zap.String("fingerprint", fingerprint), zap.Error(err))
	}
}

type memoryRequest struct {
	UserID  string `json:"user_id"`
	Content string `json:"content"`
}

func (h *Handler) createMemory(w http.ResponseWriter, r *http.Request) {
	var req memoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if req.UserID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "user_id is required"})
		return
	}
	m := &store.Memory{
		ID:        uuid.New().String(),
		UserID:    req.UserID,
		Content:   req.Content,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.memories.CreateMemory(r.Context(), m); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

type reminderRequest struct {
	UserID    string    `json:"user_id"`
	MemoryID  string    `json:"memory_id"`
	DueAt     time.Time `json:"due_at"`
	Message   string    `json:"message"`
	Recipient string    `json:"recipient"`
}

func (h *Handler) createReminder(w http.ResponseWriter, r *http.Request) {
	var req reminderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	rem, err := h.scheduler.Create(r.Context(), req.UserID, req.MemoryID, req.DueAt, req.Message, req.Recipient)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rem)
}

type phraseReminderRequest struct {
	UserID    string `json:"user_id"`
	MemoryID  string `json:"memory_id"`
	Phrase    string `json:"phrase"`
	Message   string `json:"message"`
	Timezone  string `json:"timezone"`
	Recipient string `json:"recipient"`
}

func (h *Handler) createReminderFromPhrase(w http.ResponseWriter, r *http.Request) {
	var req phraseReminderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	rem, ok, err := h.scheduler.CreateFromPhrase(r.Context(), req.UserID, req.MemoryID, req.Phrase, req.Message, req.Timezone, req.Recipient)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"error": "could not understand time phrase, please rephrase",
		})
		return
	}
	writeJSON(w, http.StatusCreated, rem)
}

func (h *Handler) cancelReminder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "user_id is required"})
		return
	}
	cancelled, err := h.scheduler.Cancel(r.Context(), id, userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"cancelled": cancelled})
}

func (h *Handler) reminderStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.scheduler.Stats(r.Context(), r.URL.Query().Get("user_id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// writeError maps core sentinel errors to HTTP status codes.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, core.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, core.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, core.ErrFetch):
		status = http.StatusBadGateway
	}
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
