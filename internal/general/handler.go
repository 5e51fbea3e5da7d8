// Package general provides cross-cutting user lookup endpoints.
package general

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/averev/signlink/internal/api"
	"github.com/averev/signlink/internal/auth"
	"github.com/averev/signlink/internal/identity"
	"github.com/averev/signlink/internal/store"
	"github.com/go-chi/chi/v5"
)

// Directory lists accounts from the auth service. Satisfied by *auth.Client.
type Directory interface {
	AdminListUsers(ctx context.Context) ([]auth.User, error)
}

// Handler serves the user search routes.
type Handler struct {
	directory Directory
	repo      store.Repository
}

// NewHandler creates the general handler.
func NewHandler(directory Directory, repo store.Repository) *Handler {
	return &Handler{directory: directory, repo: repo}
}

// RegisterRoutes mounts the search routes. Requires identity middleware.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/general/search-user", h.searchPost)
	r.Get("/general/search-user/{email}", h.searchGet)
}

type searchRequest struct {
	Email string `json:"email"`
}

type searchResult struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name,omitempty"`
	Status   string `json:"status,omitempty"`
}

func (h *Handler) searchPost(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := api.Decode(r, &req); err != nil || req.Email == "" {
		api.Error(w, http.StatusBadRequest, "email is required")
		return
	}
	h.search(w, r, req.Email)
}

func (h *Handler) searchGet(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")
	if email == "" {
		api.Error(w, http.StatusBadRequest, "email is required")
		return
	}
	h.search(w, r, email)
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request, email string) {
	callerID := identity.UserIDFromContext(r.Context())
	slog.Info("User search", "caller_id", callerID, "email", email)

	// The auth service has no email filter on its admin listing, so list and
	// match locally.
	users, err := h.directory.AdminListUsers(r.Context())
	if err != nil {
		slog.Error("User directory listing failed", "error", err)
		api.Error(w, http.StatusBadGateway, "user search failed")
		return
	}

	var match *auth.User
	for i := range users {
		if strings.EqualFold(users[i].Email, email) {
			match = &users[i]
			break
		}
	}
	if match == nil {
		api.Error(w, http.StatusNotFound, "user not found")
		return
	}

	result := searchResult{
		ID:       match.ID,
		Email:    match.Email,
		FullName: match.FullName(),
	}

	// The profile row is optional; a missing one is not an error.
	status, err := h.repo.ProfileStatus(r.Context(), match.ID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		slog.Warn("Profile status lookup failed", "error", err, "user_id", match.ID)
	} else if err == nil {
		result.Status = string(status)
	}

	api.JSON(w, http.StatusOK, result)
}
