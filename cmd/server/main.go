// SignLink - accessibility messaging API server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/averev/signlink/internal/api"
	"github.com/averev/signlink/internal/auth"
	"github.com/averev/signlink/internal/chat"
	"github.com/averev/signlink/internal/chatbot"
	"github.com/averev/signlink/internal/classify"
	"github.com/averev/signlink/internal/clean"
	"github.com/averev/signlink/internal/config"
	"github.com/averev/signlink/internal/detect"
	"github.com/averev/signlink/internal/general"
	"github.com/averev/signlink/internal/identity"
	"github.com/averev/signlink/internal/middleware"
	"github.com/averev/signlink/internal/observability"
	"github.com/averev/signlink/internal/signs"
	"github.com/averev/signlink/internal/speech"
	"github.com/averev/signlink/internal/store"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	openai "github.com/sashabaranov/go-openai"
)

const version = "1.0.0"

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "store", cfg.StoreBackend)

	observability.Init()

	// Initialize the message store.
	var repo store.Repository
	switch cfg.StoreBackend {
	case config.StoreSQLite:
		repo, err = store.NewSQLite(cfg.DBPath)
	default:
		repo = store.NewPostgrest(cfg.SupabaseURL, cfg.SupabaseServiceKey)
	}
	if err != nil {
		slog.Error("Failed to initialize store", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close store", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Store health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Store connected")

	// Initialize collaborators.
	if !cfg.AuthEnabled() {
		slog.Warn("Supabase auth not configured; authenticated routes will reject all requests")
	}
	authClient := auth.NewClient(cfg.SupabaseURL, cfg.SupabaseAnonKey, cfg.SupabaseServiceKey)
	openaiClient := openai.NewClient(cfg.OpenAIAPIKey)
	classifier := classify.NewHFClient(cfg.SignModelURL, cfg.SignModelToken)

	// Initialize services.
	cleanSvc := clean.NewService(openaiClient, cfg.OpenAIModel)
	signsSvc := signs.NewService(openaiClient, cfg.OpenAIModel)
	chatbotSvc := chatbot.NewService(openaiClient, cfg.OpenAIModel)
	transcriber := speech.NewWhisperTranscriber(openaiClient)

	// Initialize handlers.
	healthHandler := api.NewHealthHandler(repo, version)
	authHandler := auth.NewHandler(authClient)
	cleanHandler := clean.NewHandler(cleanSvc, repo)
	speechHandler := speech.NewHandler(transcriber, repo)
	chatHandler := chat.NewHandler(repo)
	generalHandler := general.NewHandler(authClient, repo)
	signsHandler := signs.NewHandler(signsSvc, repo)
	chatbotHandler := chatbot.NewHandler(chatbotSvc, repo)
	wsHandler := detect.NewWebSocketHandler(classifier, detect.Options{
		ConfidenceThreshold: cfg.ConfidenceThreshold,
		MaxRepeats:          cfg.MaxRepeats,
		Cooldown:            cfg.Cooldown,
	}, cfg.CORSOrigins)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.CORS(cfg.CORSOrigins))

	// Public routes.
	healthHandler.RegisterHealth(r)
	authHandler.RegisterRoutes(r)
	r.Handle("/metrics", observability.Handler())

	// The detection stream is public: it carries no user data, only frames.
	wsHandler.RegisterRoutes(r)

	// Authenticated routes.
	r.Group(func(r chi.Router) {
		r.Use(identity.Middleware(authClient))
		authHandler.RegisterProtectedRoutes(r)
		cleanHandler.RegisterRoutes(r)
		speechHandler.RegisterRoutes(r)
		chatHandler.RegisterRoutes(r)
		generalHandler.RegisterRoutes(r)
		signsHandler.RegisterRoutes(r)
		chatbotHandler.RegisterRoutes(r)
	})

	// Create server.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // streaming websocket sessions have no write deadline
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
