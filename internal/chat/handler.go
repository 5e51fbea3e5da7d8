// Package chat exposes conversation send and history endpoints over the
// message store.
package chat

import (
	"log/slog"
	"net/http"

	"github.com/averev/signlink/internal/api"
	"github.com/averev/signlink/internal/domain"
	"github.com/averev/signlink/internal/store"
	"github.com/go-chi/chi/v5"
)

const defaultHistoryLimit = 50

// Handler serves conversation routes.
type Handler struct {
	repo store.Repository
}

// NewHandler creates the chat handler.
func NewHandler(repo store.Repository) *Handler {
	return &Handler{repo: repo}
}

// RegisterRoutes mounts the chat routes. Requires identity middleware.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat/send", h.send)
	r.Post("/chat/history", h.history)
}

type sendRequest struct {
	SenderID   string `json:"sender_id"`
	ReceiverID string `json:"receiver_id"`
	Message    string `json:"message"`
}

type historyRequest struct {
	UserID      string `json:"user_id"`
	OtherUserID string `json:"other_user_id"`
	Limit       int    `json:"limit"`
	Offset      int    `json:"offset"`
}

type historyResponse struct {
	UserID     string           `json:"user_id"`
	Messages   []domain.Message `json:"messages"`
	TotalCount int              `json:"total_count"`
}

func (h *Handler) send(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := api.Decode(r, &req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !store.ValidIdentifier(req.SenderID) || !store.ValidIdentifier(req.ReceiverID) {
		api.Error(w, http.StatusBadRequest, "sender_id and receiver_id must be valid identifiers")
		return
	}
	if req.Message == "" {
		api.Error(w, http.StatusBadRequest, "message cannot be empty")
		return
	}

	// Typed messages need no normalization; raw and cleaned are the same.
	msg, err := h.repo.InsertMessage(r.Context(), &domain.Message{
		SenderID:    req.SenderID,
		ReceiverID:  req.ReceiverID,
		RawText:     req.Message,
		CleanedText: req.Message,
	})
	if err != nil {
		slog.Error("Failed to send message", "error", err, "sender_id", req.SenderID)
		api.Error(w, http.StatusInternalServerError, "failed to send message")
		return
	}

	api.JSON(w, http.StatusOK, msg)
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	var req historyRequest
	if err := api.Decode(r, &req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !store.ValidIdentifier(req.UserID) || !store.ValidIdentifier(req.OtherUserID) {
		api.Error(w, http.StatusBadRequest, "user_id and other_user_id must be valid identifiers")
		return
	}
	if req.Limit < 0 || req.Offset < 0 {
		api.Error(w, http.StatusBadRequest, "limit and offset must be non-negative")
		return
	}
	if req.Limit == 0 {
		req.Limit = defaultHistoryLimit
	}

	messages, total, err := h.repo.Conversation(r.Context(), req.UserID, req.OtherUserID, req.Limit, req.Offset)
	if err != nil {
		slog.Error("Failed to fetch conversation history", "error", err, "user_id", req.UserID)
		api.Error(w, http.StatusInternalServerError, "failed to fetch conversation history")
		return
	}
	if messages == nil {
		messages = []domain.Message{}
	}

	api.JSON(w, http.StatusOK, historyResponse{
		UserID:     req.OtherUserID,
		Messages:   messages,
		TotalCount: total,
	})
}
