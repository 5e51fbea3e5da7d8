package chatbot

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/averev/signlink/internal/domain"
	"github.com/averev/signlink/internal/identity"
	"github.com/averev/signlink/internal/store"
	"github.com/go-chi/chi/v5"
)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func newTestRouter(fake *fakeCompletion, repo store.Repository) chi.Router {
	r := chi.NewRouter()
	NewHandler(NewService(fake, "gpt-4o-mini"), repo).RegisterRoutes(r)
	return r
}

func authed(r *http.Request, userID string) *http.Request {
	return r.WithContext(identity.WithUser(r.Context(), userID, userID+"@example.com"))
}

func TestChatCreatesConversationWithTitle(t *testing.T) {
	repo := newTestStore(t)
	router := newTestRouter(&fakeCompletion{reply: "Hello! How can I help?"}, repo)

	r := httptest.NewRequest(http.MethodPost, "/chatbot/chat", strings.NewReader(`{"message":"hi there"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, authed(r, "user-a"))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp chatResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.ConversationID == "" {
		t.Error("Expected a minted conversation ID")
	}
	if resp.Title == "" {
		t.Error("Expected a title on the first turn")
	}
	if resp.Message != "Hello! How can I help?" {
		t.Errorf("Unexpected assistant message %q", resp.Message)
	}

	// Both turns persisted, oldest first.
	msgs, err := repo.ConversationMessages(context.Background(), resp.ConversationID)
	if err != nil {
		t.Fatalf("ConversationMessages failed: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("Expected 2 stored turns, got %d", len(msgs))
	}
	if msgs[0].Role != domain.RoleUser || msgs[1].Role != domain.RoleAssistant {
		t.Errorf("Unexpected turn order: %q then %q", msgs[0].Role, msgs[1].Role)
	}
}

func TestChatContinuesExistingConversation(t *testing.T) {
	repo := newTestStore(t)
	conv, err := repo.InsertConversation(context.Background(), &domain.Conversation{
		UserID: "user-a", Title: "Trip planning",
	})
	if err != nil {
		t.Fatalf("InsertConversation failed: %v", err)
	}

	router := newTestRouter(&fakeCompletion{reply: "Continuing."}, repo)

	body := `{"message":"and then?","conversation_id":"` + conv.ID + `"}`
	r := httptest.NewRequest(http.MethodPost, "/chatbot/chat", strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, authed(r, "user-a"))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp chatResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.ConversationID != conv.ID {
		t.Errorf("Expected existing conversation ID, got %q", resp.ConversationID)
	}
	// No title on continuation turns.
	if resp.Title != "" {
		t.Errorf("Expected no title for existing conversation, got %q", resp.Title)
	}
}

func TestChatUnknownConversationIsNotFound(t *testing.T) {
	router := newTestRouter(&fakeCompletion{reply: "x"}, newTestStore(t))

	body := `{"message":"hi","conversation_id":"missing-thread"}`
	r := httptest.NewRequest(http.MethodPost, "/chatbot/chat", strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, authed(r, "user-a"))

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestChatForeignConversationIsNotFound(t *testing.T) {
	repo := newTestStore(t)
	conv, err := repo.InsertConversation(context.Background(), &domain.Conversation{
		UserID: "user-b", Title: "Someone else's thread",
	})
	if err != nil {
		t.Fatalf("InsertConversation failed: %v", err)
	}

	router := newTestRouter(&fakeCompletion{reply: "x"}, repo)

	body := `{"message":"hi","conversation_id":"` + conv.ID + `"}`
	r := httptest.NewRequest(http.MethodPost, "/chatbot/chat", strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, authed(r, "user-a"))

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for another user's conversation, got %d", w.Code)
	}
}

func TestChatProviderFailureIsBadGateway(t *testing.T) {
	repo := newTestStore(t)
	conv, err := repo.InsertConversation(context.Background(), &domain.Conversation{
		UserID: "user-a", Title: "t",
	})
	if err != nil {
		t.Fatalf("InsertConversation failed: %v", err)
	}

	router := newTestRouter(&fakeCompletion{err: errors.New("provider down")}, repo)

	body := `{"message":"hi","conversation_id":"` + conv.ID + `"}`
	r := httptest.NewRequest(http.MethodPost, "/chatbot/chat", strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, authed(r, "user-a"))

	if w.Code != http.StatusBadGateway {
		t.Errorf("Expected status 502, got %d", w.Code)
	}
}

func TestChatRejectsEmptyMessage(t *testing.T) {
	router := newTestRouter(&fakeCompletion{reply: "x"}, newTestStore(t))

	r := httptest.NewRequest(http.MethodPost, "/chatbot/chat", strings.NewReader(`{"message":""}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, authed(r, "user-a"))

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestChatRequiresAuthentication(t *testing.T) {
	router := newTestRouter(&fakeCompletion{reply: "x"}, newTestStore(t))

	r := httptest.NewRequest(http.MethodPost, "/chatbot/chat", strings.NewReader(`{"message":"hi"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", w.Code)
	}
}

func TestConversationsListsOwnThreadsNewestFirst(t *testing.T) {
	repo := newTestStore(t)
	for _, title := range []string{"first", "second"} {
		if _, err := repo.InsertConversation(context.Background(), &domain.Conversation{
			UserID: "user-a", Title: title,
		}); err != nil {
			t.Fatalf("InsertConversation failed: %v", err)
		}
	}
	if _, err := repo.InsertConversation(context.Background(), &domain.Conversation{
		UserID: "user-b", Title: "not mine",
	}); err != nil {
		t.Fatalf("InsertConversation failed: %v", err)
	}

	router := newTestRouter(&fakeCompletion{reply: "x"}, repo)

	r := httptest.NewRequest(http.MethodGet, "/chatbot/conversations", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, authed(r, "user-a"))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var convs []domain.Conversation
	if err := json.NewDecoder(w.Body).Decode(&convs); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(convs) != 2 {
		t.Fatalf("Expected 2 conversations, got %d", len(convs))
	}
	for _, c := range convs {
		if c.UserID != "user-a" {
			t.Errorf("Expected only the caller's threads, got %q", c.UserID)
		}
	}
}

func TestMessagesRequiresOwnership(t *testing.T) {
	repo := newTestStore(t)
	conv, err := repo.InsertConversation(context.Background(), &domain.Conversation{
		UserID: "user-b", Title: "private",
	})
	if err != nil {
		t.Fatalf("InsertConversation failed: %v", err)
	}
	if _, err := repo.InsertConversationMessage(context.Background(), &domain.ConversationMessage{
		ConversationID: conv.ID, Role: domain.RoleUser, Content: "secret",
	}); err != nil {
		t.Fatalf("InsertConversationMessage failed: %v", err)
	}

	router := newTestRouter(&fakeCompletion{reply: "x"}, repo)

	r := httptest.NewRequest(http.MethodGet, "/chatbot/conversations/"+conv.ID+"/messages", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, authed(r, "user-a"))

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for another user's thread, got %d", w.Code)
	}
}

func TestMessagesReturnsThreadOldestFirst(t *testing.T) {
	repo := newTestStore(t)
	conv, err := repo.InsertConversation(context.Background(), &domain.Conversation{
		UserID: "user-a", Title: "t",
	})
	if err != nil {
		t.Fatalf("InsertConversation failed: %v", err)
	}
	for _, turn := range []struct{ role, content string }{
		{domain.RoleUser, "hi"},
		{domain.RoleAssistant, "hello"},
		{domain.RoleUser, "bye"},
	} {
		if _, err := repo.InsertConversationMessage(context.Background(), &domain.ConversationMessage{
			ConversationID: conv.ID, Role: turn.role, Content: turn.content,
		}); err != nil {
			t.Fatalf("InsertConversationMessage failed: %v", err)
		}
	}

	router := newTestRouter(&fakeCompletion{reply: "x"}, repo)

	r := httptest.NewRequest(http.MethodGet, "/chatbot/conversations/"+conv.ID+"/messages", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, authed(r, "user-a"))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var msgs []domain.ConversationMessage
	if err := json.NewDecoder(w.Body).Decode(&msgs); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("Expected 3 messages, got %d", len(msgs))
	}
	if msgs[0].Content != "hi" || msgs[2].Content != "bye" {
		t.Errorf("Expected oldest-first ordering, got %q ... %q", msgs[0].Content, msgs[2].Content)
	}
}
