package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/averev/signlink/internal/api"
	"github.com/averev/signlink/internal/domain"
	"github.com/go-chi/chi/v5"
)

// Handler exposes the authentication routes. Everything delegates to the
// hosted auth service; no credentials are validated or stored locally.
type Handler struct {
	client *Client
}

// NewHandler creates the auth handler.
func NewHandler(client *Client) *Handler {
	return &Handler{client: client}
}

// RegisterRoutes mounts the public auth routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/auth/signup", h.signUp)
	r.Post("/auth/signin", h.signIn)
	r.Post("/auth/refresh", h.refresh)
	r.Post("/auth/signout", h.signOut)
}

// RegisterProtectedRoutes mounts routes that require a verified session.
func (h *Handler) RegisterProtectedRoutes(r chi.Router) {
	r.Get("/auth/me", h.me)
}

type signUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Status   string `json:"status"`
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type userResponse struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	FullName      string     `json:"full_name,omitempty"`
	EmailVerified bool       `json:"email_verified"`
	CreatedAt     time.Time  `json:"created_at"`
	LastSignInAt  *time.Time `json:"last_sign_in_at,omitempty"`
}

type sessionResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int          `json:"expires_in"`
	User         userResponse `json:"user"`
}

func (h *Handler) signUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := api.Decode(r, &req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		api.Error(w, http.StatusBadRequest, "email and password are required")
		return
	}
	status := domain.AccessibilityStatus(req.Status)
	if req.Status == "" {
		status = domain.StatusNormal
	}
	if !status.Valid() {
		api.Error(w, http.StatusBadRequest, "status must be one of normal, deaf, mute, blind")
		return
	}

	session, err := h.client.SignUp(r.Context(), SignUpParams{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
		Status:   string(status),
	})
	if err != nil {
		slog.Error("Sign up failed", "error", err)
		api.Error(w, http.StatusBadGateway, "sign up failed")
		return
	}

	api.JSON(w, http.StatusCreated, toSessionResponse(session))
}

func (h *Handler) signIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := api.Decode(r, &req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		api.Error(w, http.StatusBadRequest, "email and password are required")
		return
	}

	session, err := h.client.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			api.Error(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		slog.Error("Sign in failed", "error", err)
		api.Error(w, http.StatusBadGateway, "sign in failed")
		return
	}

	api.JSON(w, http.StatusOK, toSessionResponse(session))
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := api.Decode(r, &req); err != nil || req.RefreshToken == "" {
		api.Error(w, http.StatusBadRequest, "refresh_token is required")
		return
	}

	session, err := h.client.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			api.Error(w, http.StatusUnauthorized, "invalid refresh token")
			return
		}
		slog.Error("Token refresh failed", "error", err)
		api.Error(w, http.StatusBadGateway, "token refresh failed")
		return
	}

	api.JSON(w, http.StatusOK, toSessionResponse(session))
}

func (h *Handler) signOut(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		api.Error(w, http.StatusUnauthorized, "missing bearer token")
		return
	}

	if err := h.client.SignOut(r.Context(), token); err != nil && !errors.Is(err, ErrUnauthorized) {
		slog.Error("Sign out failed", "error", err)
		api.Error(w, http.StatusBadGateway, "sign out failed")
		return
	}

	api.JSON(w, http.StatusOK, map[string]string{"message": "signed out"})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	user, err := h.client.User(r.Context(), token)
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			api.Error(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		slog.Error("Fetch current user failed", "error", err)
		api.Error(w, http.StatusBadGateway, "failed to fetch user")
		return
	}

	api.JSON(w, http.StatusOK, toUserResponse(user))
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if after, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(after)
	}
	return ""
}

func toUserResponse(u *User) userResponse {
	return userResponse{
		ID:            u.ID,
		Email:         u.Email,
		FullName:      u.FullName(),
		EmailVerified: u.EmailConfirmedAt != nil,
		CreatedAt:     u.CreatedAt,
		LastSignInAt:  u.LastSignInAt,
	}
}

func toSessionResponse(s *Session) sessionResponse {
	return sessionResponse{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		TokenType:    s.TokenType,
		ExpiresIn:    s.ExpiresIn,
		User:         toUserResponse(&s.User),
	}
}
