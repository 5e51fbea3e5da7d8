package classify

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestPredictReturnsTopLabel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"label":"A","score":0.92},{"label":"S","score":0.05}]`))
	}))
	defer srv.Close()

	client := NewHFClient(srv.URL, "")
	pred, err := client.Predict(context.Background(), []byte("fake-jpeg-bytes"))
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}

	if pred.Label != "A" {
		t.Errorf("Expected label A, got %q", pred.Label)
	}
	if pred.Confidence != 0.92 {
		t.Errorf("Expected confidence 0.92, got %v", pred.Confidence)
	}
}

func TestPredictSendsBearerToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer hf-token" {
			t.Errorf("Expected bearer token, got %q", got)
		}
		_, _ = w.Write([]byte(`[{"label":"B","score":0.8}]`))
	}))
	defer srv.Close()

	client := NewHFClient(srv.URL, "hf-token")
	if _, err := client.Predict(context.Background(), []byte("img")); err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
}

func TestPredictNonOKStatusIsInferenceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model is loading"}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewHFClient(srv.URL, "")
	_, err := client.Predict(context.Background(), []byte("img"))

	var infErr *InferenceError
	if !errors.As(err, &infErr) {
		t.Fatalf("Expected *InferenceError, got %T: %v", err, err)
	}
}

func TestPredictUndecodableBodyIsInferenceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json at all`))
	}))
	defer srv.Close()

	client := NewHFClient(srv.URL, "")
	_, err := client.Predict(context.Background(), []byte("img"))

	var infErr *InferenceError
	if !errors.As(err, &infErr) {
		t.Fatalf("Expected *InferenceError, got %T: %v", err, err)
	}
}

func TestPredictEmptyPayloadIsInferenceError(t *testing.T) {
	client := NewHFClient("http://unused", "")
	_, err := client.Predict(context.Background(), nil)

	var infErr *InferenceError
	if !errors.As(err, &infErr) {
		t.Fatalf("Expected *InferenceError, got %T: %v", err, err)
	}
}
