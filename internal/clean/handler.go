package clean

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/averev/signlink/internal/api"
	"github.com/averev/signlink/internal/domain"
	"github.com/averev/signlink/internal/identity"
	"github.com/averev/signlink/internal/store"
	"github.com/go-chi/chi/v5"
)

// Handler exposes the sign-detection processing endpoint: raw accumulated
// labels in, cleaned and persisted message out.
type Handler struct {
	svc  *Service
	repo store.Repository
}

// NewHandler creates the normalization handler.
func NewHandler(svc *Service, repo store.Repository) *Handler {
	return &Handler{svc: svc, repo: repo}
}

// RegisterRoutes mounts the processing route. Requires identity middleware.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/sign-detection/process", h.process)
}

type processRequest struct {
	RawText    string `json:"raw_text"`
	ReceiverID string `json:"receiver_id"`
}

type processResponse struct {
	ID          string    `json:"id"`
	SenderID    string    `json:"sender_id"`
	ReceiverID  string    `json:"receiver_id"`
	RawText     string    `json:"raw_text"`
	CleanedText string    `json:"cleaned_text"`
	CreatedAt   time.Time `json:"created_at"`
}

func (h *Handler) process(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if err := api.Decode(r, &req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.RawText == "" {
		api.Error(w, http.StatusBadRequest, "raw_text cannot be empty")
		return
	}
	if req.ReceiverID == "" {
		api.Error(w, http.StatusBadRequest, "receiver_id cannot be empty")
		return
	}

	senderID := identity.UserIDFromContext(r.Context())
	if senderID == "" {
		api.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	cleaned, degraded := h.svc.Clean(r.Context(), req.RawText)
	if degraded {
		slog.Info("Persisting message with raw text fallback", "sender_id", senderID)
	}

	msg, err := h.repo.InsertMessage(r.Context(), &domain.Message{
		SenderID:    senderID,
		ReceiverID:  req.ReceiverID,
		RawText:     req.RawText,
		CleanedText: cleaned,
	})
	if err != nil {
		slog.Error("Failed to persist message", "error", err, "sender_id", senderID)
		api.Error(w, http.StatusInternalServerError, "failed to save message")
		return
	}

	api.JSON(w, http.StatusOK, processResponse{
		ID:          msg.ID,
		SenderID:    msg.SenderID,
		ReceiverID:  msg.ReceiverID,
		RawText:     msg.RawText,
		CleanedText: msg.CleanedText,
		CreatedAt:   msg.CreatedAt,
	})
}
