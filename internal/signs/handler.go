package signs

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

// Handler serves the text-to-sign routes.
type Handler struct {
	svc  *Service
	repo store.Repository
}

// NewHandler creates the text-to-sign handler.
func NewHandler(svc *Service, repo store.Repository) *Handler {
	return &Handler{svc: svc, repo: repo}
}

// RegisterRoutes mounts the text-to-sign routes. Requires identity middleware.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/text-to-sign/convert", h.convert)
	r.Get("/text-to-sign/fingerspell/{word}", h.fingerspell)
	r.Get("/text-to-sign/alphabet", h.alphabet)
	r.Get("/text-to-sign/phrases", h.phrases)
}

type convertRequest struct {
	Text       string `json:"text"`
	ReceiverID string `json:"receiver_id"`
}

func (h *Handler) convert(w http.ResponseWriter, r *http.Request) {
	var req convertRequest
	if err := api.Decode(r, &req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Text == "" {
		api.Error(w, http.StatusBadRequest, "text cannot be empty")
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

	// A receiver without a profile row is treated as normal.
	status, err := h.repo.ProfileStatus(r.Context(), req.ReceiverID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			slog.Warn("Receiver status lookup failed, assuming normal", "error", err, "receiver_id", req.ReceiverID)
		}
		status = domain.StatusNormal
	}

	conversion, err := h.svc.Convert(r.Context(), req.Text, status)
	if err != nil {
		slog.Error("Text-to-sign conversion failed", "error", err)
		api.Error(w, http.StatusBadGateway, "conversion failed")
		return
	}

	if _, err := h.repo.InsertMessage(r.Context(), &domain.Message{
		SenderID:    senderID,
		ReceiverID:  req.ReceiverID,
		RawText:     conversion.OriginalText,
		CleanedText: conversion.ProcessedText,
	}); err != nil {
		slog.Error("Failed to persist converted message", "error", err, "sender_id", senderID)
		api.Error(w, http.StatusInternalServerError, "failed to save message")
		return
	}

	api.JSON(w, http.StatusOK, conversion)
}

func (h *Handler) fingerspell(w http.ResponseWriter, r *http.Request) {
	word := chi.URLParam(r, "word")
	if word == "" {
		api.Error(w, http.StatusBadRequest, "word is required")
		return
	}

	api.JSON(w, http.StatusOK, map[string]interface{}{
		"word":    word,
		"letters": Fingerspell(word),
	})
}

func (h *Handler) alphabet(w http.ResponseWriter, r *http.Request) {
	letters := make([]LetterSign, 0, 26)
	for c := 'A'; c <= 'Z'; c++ {
		letters = append(letters, LetterSign{
			Letter:      string(c),
			ImageURL:    letterImageURL(c),
			Description: fingerspellAlphabet[c],
		})
	}
	api.JSON(w, http.StatusOK, map[string]interface{}{"alphabet": letters})
}

func (h *Handler) phrases(w http.ResponseWriter, r *http.Request) {
	api.JSON(w, http.StatusOK, map[string]interface{}{"phrases": commonPhrases})
}
