package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/averev/signlink/internal/domain"
	"github.com/averev/signlink/internal/store"
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

func TestSendStoresMessage(t *testing.T) {
	h := NewHandler(newTestStore(t))

	body := `{"sender_id":"a","receiver_id":"b","message":"hello"}`
	r := httptest.NewRequest(http.MethodPost, "/chat/send", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.send(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var msg domain.Message
	if err := json.NewDecoder(w.Body).Decode(&msg); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if msg.RawText != "hello" || msg.CleanedText != "hello" {
		t.Errorf("Expected raw and cleaned both 'hello', got %q/%q", msg.RawText, msg.CleanedText)
	}
	if msg.ID == "" {
		t.Error("Expected assigned message ID")
	}
}

func TestSendRejectsEmptyMessage(t *testing.T) {
	h := NewHandler(newTestStore(t))

	r := httptest.NewRequest(http.MethodPost, "/chat/send", strings.NewReader(`{"sender_id":"a","receiver_id":"b","message":""}`))
	w := httptest.NewRecorder()

	h.send(w, r)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestHistoryPagination(t *testing.T) {
	repo := newTestStore(t)
	h := NewHandler(repo)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		_, err := repo.InsertMessage(context.Background(), &domain.Message{
			SenderID:    "a",
			ReceiverID:  "b",
			RawText:     "m",
			CleanedText: "m",
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("InsertMessage failed: %v", err)
		}
	}

	body := `{"user_id":"a","other_user_id":"b","limit":2,"offset":0}`
	r := httptest.NewRequest(http.MethodPost, "/chat/history", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.history(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp historyResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if resp.TotalCount != 5 {
		t.Errorf("Expected total_count 5, got %d", resp.TotalCount)
	}
	if len(resp.Messages) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(resp.Messages))
	}
	// The two most recently created, newest first.
	if !resp.Messages[0].CreatedAt.Equal(base.Add(4 * time.Minute)) {
		t.Errorf("Expected newest message first, got %v", resp.Messages[0].CreatedAt)
	}
	if resp.UserID != "b" {
		t.Errorf("Expected user_id to echo the other user, got %q", resp.UserID)
	}
}

func TestHistoryEmptyConversation(t *testing.T) {
	h := NewHandler(newTestStore(t))

	body := `{"user_id":"a","other_user_id":"nobody"}`
	r := httptest.NewRequest(http.MethodPost, "/chat/history", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.history(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var resp historyResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.TotalCount != 0 || len(resp.Messages) != 0 {
		t.Errorf("Expected empty history, got %+v", resp)
	}
	if resp.Messages == nil {
		t.Error("Expected empty array, not null")
	}
}

func TestHistoryRejectsMalformedIdentifiers(t *testing.T) {
	h := NewHandler(newTestStore(t))

	body := `{"user_id":"x),and(sender_id.eq.victim","other_user_id":"b"}`
	r := httptest.NewRequest(http.MethodPost, "/chat/history", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.history(w, r)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for filter-syntax identifier, got %d", w.Code)
	}
}

func TestSendRejectsMalformedIdentifiers(t *testing.T) {
	h := NewHandler(newTestStore(t))

	body := `{"sender_id":"a.b,c","receiver_id":"b","message":"hi"}`
	r := httptest.NewRequest(http.MethodPost, "/chat/send", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.send(w, r)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for malformed sender_id, got %d", w.Code)
	}
}

func TestHistoryRejectsMissingIDs(t *testing.T) {
	h := NewHandler(newTestStore(t))

	r := httptest.NewRequest(http.MethodPost, "/chat/history", strings.NewReader(`{"user_id":"a"}`))
	w := httptest.NewRecorder()

	h.history(w, r)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}
