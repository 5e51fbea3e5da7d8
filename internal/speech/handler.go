package speech

import (
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/averev/signlink/internal/api"
	"github.com/averev/signlink/internal/domain"
	"github.com/averev/signlink/internal/identity"
	"github.com/averev/signlink/internal/store"
	"github.com/go-chi/chi/v5"
)

// maxUploadBytes caps the multipart form held in memory per request.
const maxUploadBytes = 25 << 20 // whisper's own upload limit

// allowedExtensions are the audio container formats the speech API accepts.
var allowedExtensions = map[string]bool{
	".wav":  true,
	".mp3":  true,
	".m4a":  true,
	".mp4":  true,
	".mpeg": true,
	".mpga": true,
	".webm": true,
}

// Handler exposes the speech-to-text conversion endpoint.
type Handler struct {
	transcriber Transcriber
	repo        store.Repository
}

// NewHandler creates the speech handler.
func NewHandler(transcriber Transcriber, repo store.Repository) *Handler {
	return &Handler{transcriber: transcriber, repo: repo}
}

// RegisterRoutes mounts the conversion route. Requires identity middleware.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/speech-to-text/convert", h.convert)
}

type convertResponse struct {
	ID              string    `json:"id"`
	SenderID        string    `json:"sender_id"`
	ReceiverID      string    `json:"receiver_id"`
	TranscribedText string    `json:"transcribed_text"`
	CreatedAt       time.Time `json:"created_at"`
}

func (h *Handler) convert(w http.ResponseWriter, r *http.Request) {
	senderID := identity.UserIDFromContext(r.Context())
	if senderID == "" {
		api.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	receiverID := r.FormValue("receiver_id")
	if receiverID == "" {
		api.Error(w, http.StatusBadRequest, "receiver_id cannot be empty")
		return
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		api.Error(w, http.StatusBadRequest, "audio file is required")
		return
	}
	defer file.Close()

	if !isAudioUpload(header.Header.Get("Content-Type"), header.Filename) {
		api.Error(w, http.StatusBadRequest, "invalid file type, please upload an audio file")
		return
	}

	slog.Info("Transcribing audio", "sender_id", senderID, "filename", header.Filename, "size", header.Size)

	text, err := h.transcriber.Transcribe(r.Context(), header.Filename, file)
	if err != nil {
		slog.Error("Transcription failed", "error", err, "sender_id", senderID)
		api.Error(w, http.StatusBadGateway, "failed to transcribe audio")
		return
	}

	// Transcribed speech needs no cleanup pass; raw and cleaned are the same.
	msg, err := h.repo.InsertMessage(r.Context(), &domain.Message{
		SenderID:    senderID,
		ReceiverID:  receiverID,
		RawText:     text,
		CleanedText: text,
	})
	if err != nil {
		slog.Error("Failed to persist transcription", "error", err, "sender_id", senderID)
		api.Error(w, http.StatusInternalServerError, "failed to save message")
		return
	}

	api.JSON(w, http.StatusOK, convertResponse{
		ID:              msg.ID,
		SenderID:        msg.SenderID,
		ReceiverID:      msg.ReceiverID,
		TranscribedText: msg.CleanedText,
		CreatedAt:       msg.CreatedAt,
	})
}

func isAudioUpload(contentType, filename string) bool {
	if strings.HasPrefix(contentType, "audio/") {
		return true
	}
	return allowedExtensions[strings.ToLower(filepath.Ext(filename))]
}
