package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"testing"

	"github.com/averev/signlink/internal/identity"
	"github.com/averev/signlink/internal/store"
)

type fakeTranscriber struct {
	text string
	err  error
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func audioRequest(t *testing.T, filename, contentType, receiverID string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if receiverID != "" {
		if err := mw.WriteField("receiver_id", receiverID); err != nil {
			t.Fatalf("Failed to write form field: %v", err)
		}
	}
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="audio"; filename="`+filename+`"`)
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}
	part, err := mw.CreatePart(header)
	if err != nil {
		t.Fatalf("Failed to create form part: %v", err)
	}
	if _, err := part.Write([]byte("fake audio bytes")); err != nil {
		t.Fatalf("Failed to write form part: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("Failed to close multipart writer: %v", err)
	}

	r := httptest.NewRequest(http.MethodPost, "/speech-to-text/convert", &buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	return r
}

func TestConvertTranscribesAndStores(t *testing.T) {
	h := NewHandler(&fakeTranscriber{text: "hello there"}, newTestStore(t))

	r := audioRequest(t, "clip.wav", "audio/wav", "user-b")
	r = r.WithContext(identity.WithUser(r.Context(), "user-a", "a@example.com"))
	w := httptest.NewRecorder()

	h.convert(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp convertResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.TranscribedText != "hello there" {
		t.Errorf("Expected transcribed text, got %q", resp.TranscribedText)
	}
	if resp.SenderID != "user-a" || resp.ReceiverID != "user-b" {
		t.Errorf("Unexpected participants: %q -> %q", resp.SenderID, resp.ReceiverID)
	}
	if resp.ID == "" {
		t.Error("Expected store-assigned message ID")
	}
}

func TestConvertAcceptsExtensionWithoutAudioContentType(t *testing.T) {
	h := NewHandler(&fakeTranscriber{text: "ok"}, newTestStore(t))

	// Browsers sometimes send application/octet-stream for recorded blobs.
	r := audioRequest(t, "voice.m4a", "application/octet-stream", "user-b")
	r = r.WithContext(identity.WithUser(r.Context(), "user-a", "a@example.com"))
	w := httptest.NewRecorder()

	h.convert(w, r)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestConvertRejectsNonAudioUpload(t *testing.T) {
	h := NewHandler(&fakeTranscriber{text: "ok"}, newTestStore(t))

	r := audioRequest(t, "notes.txt", "text/plain", "user-b")
	r = r.WithContext(identity.WithUser(r.Context(), "user-a", "a@example.com"))
	w := httptest.NewRecorder()

	h.convert(w, r)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestConvertRequiresReceiverID(t *testing.T) {
	h := NewHandler(&fakeTranscriber{text: "ok"}, newTestStore(t))

	r := audioRequest(t, "clip.wav", "audio/wav", "")
	r = r.WithContext(identity.WithUser(r.Context(), "user-a", "a@example.com"))
	w := httptest.NewRecorder()

	h.convert(w, r)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestConvertRequiresAuthenticatedSender(t *testing.T) {
	h := NewHandler(&fakeTranscriber{text: "ok"}, newTestStore(t))

	r := audioRequest(t, "clip.wav", "audio/wav", "user-b")
	w := httptest.NewRecorder()

	h.convert(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", w.Code)
	}
}

func TestConvertTranscriberFailureIsBadGateway(t *testing.T) {
	h := NewHandler(&fakeTranscriber{err: errors.New("provider down")}, newTestStore(t))

	r := audioRequest(t, "clip.wav", "audio/wav", "user-b")
	r = r.WithContext(identity.WithUser(r.Context(), "user-a", "a@example.com"))
	w := httptest.NewRecorder()

	h.convert(w, r)

	if w.Code != http.StatusBadGateway {
		t.Errorf("Expected status 502, got %d", w.Code)
	}
}
