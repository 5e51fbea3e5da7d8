package chatbot

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/averev/signlink/internal/api"
	"github.com/averev/signlink/internal/domain"
	"github.com/averev/signlink/internal/identity"
	"github.com/averev/signlink/internal/store"
	"github.com/go-chi/chi/v5"
)

// Handler serves the assistant routes.
type Handler struct {
	svc  *Service
	repo store.Repository
}

// NewHandler creates the assistant handler.
func NewHandler(svc *Service, repo store.Repository) *Handler {
	return &Handler{svc: svc, repo: repo}
}

// RegisterRoutes mounts the assistant routes. Requires identity middleware.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chatbot/chat", h.chat)
	r.Get("/chatbot/conversations", h.conversations)
	r.Get("/chatbot/conversations/{conversation_id}/messages", h.messages)
}

type chatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id"`
}

type chatResponse struct {
	ConversationID string `json:"conversation_id"`
	Message        string `json:"message"`
	Title          string `json:"title,omitempty"`
}

func (h *Handler) chat(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req chatRequest
	if err := api.Decode(r, &req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Message == "" {
		api.Error(w, http.StatusBadRequest, "message cannot be empty")
		return
	}

	var (
		conversationID = req.ConversationID
		title          string
		history        []domain.ConversationMessage
	)
	if conversationID == "" {
		// First turn: mint a thread with a generated title.
		title = h.svc.Title(r.Context(), req.Message)
		conv, err := h.repo.InsertConversation(r.Context(), &domain.Conversation{
			UserID: userID,
			Title:  title,
		})
		if err != nil {
			slog.Error("Failed to create conversation", "error", err, "user_id", userID)
			api.Error(w, http.StatusInternalServerError, "failed to create conversation")
			return
		}
		conversationID = conv.ID
	} else {
		if !store.ValidIdentifier(conversationID) {
			api.Error(w, http.StatusBadRequest, "invalid conversation_id")
			return
		}
		if _, err := h.repo.ConversationMeta(r.Context(), conversationID, userID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				api.Error(w, http.StatusNotFound, "conversation not found")
				return
			}
			slog.Error("Failed to verify conversation", "error", err, "user_id", userID)
			api.Error(w, http.StatusInternalServerError, "failed to load conversation")
			return
		}

		var err error
		history, err = h.repo.ConversationMessages(r.Context(), conversationID)
		if err != nil {
			slog.Error("Failed to load conversation history", "error", err, "conversation_id", conversationID)
			api.Error(w, http.StatusInternalServerError, "failed to load conversation")
			return
		}
	}

	if _, err := h.repo.InsertConversationMessage(r.Context(), &domain.ConversationMessage{
		ConversationID: conversationID,
		Role:           domain.RoleUser,
		Content:        req.Message,
	}); err != nil {
		slog.Error("Failed to save user message", "error", err, "conversation_id", conversationID)
		api.Error(w, http.StatusInternalServerError, "failed to save message")
		return
	}

	reply, err := h.svc.Reply(r.Context(), history, req.Message)
	if err != nil {
		slog.Error("Assistant reply failed", "error", err, "conversation_id", conversationID)
		api.Error(w, http.StatusBadGateway, "assistant is unavailable")
		return
	}

	if _, err := h.repo.InsertConversationMessage(r.Context(), &domain.ConversationMessage{
		ConversationID: conversationID,
		Role:           domain.RoleAssistant,
		Content:        reply,
	}); err != nil {
		slog.Error("Failed to save assistant message", "error", err, "conversation_id", conversationID)
		api.Error(w, http.StatusInternalServerError, "failed to save message")
		return
	}

	api.JSON(w, http.StatusOK, chatResponse{
		ConversationID: conversationID,
		Message:        reply,
		Title:          title,
	})
}

func (h *Handler) conversations(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	convs, err := h.repo.Conversations(r.Context(), userID)
	if err != nil {
		slog.Error("Failed to list conversations", "error", err, "user_id", userID)
		api.Error(w, http.StatusInternalServerError, "failed to list conversations")
		return
	}
	if convs == nil {
		convs = []domain.Conversation{}
	}

	api.JSON(w, http.StatusOK, convs)
}

func (h *Handler) messages(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	conversationID := chi.URLParam(r, "conversation_id")
	if !store.ValidIdentifier(conversationID) {
		api.Error(w, http.StatusBadRequest, "invalid conversation_id")
		return
	}

	// Ownership check before exposing the thread.
	if _, err := h.repo.ConversationMeta(r.Context(), conversationID, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			api.Error(w, http.StatusNotFound, "conversation not found")
			return
		}
		slog.Error("Failed to verify conversation", "error", err, "user_id", userID)
		api.Error(w, http.StatusInternalServerError, "failed to load conversation")
		return
	}

	msgs, err := h.repo.ConversationMessages(r.Context(), conversationID)
	if err != nil {
		slog.Error("Failed to load conversation messages", "error", err, "conversation_id", conversationID)
		api.Error(w, http.StatusInternalServerError, "failed to load messages")
		return
	}
	if msgs == nil {
		msgs = []domain.ConversationMessage{}
	}

	api.JSON(w, http.StatusOK, msgs)
}
