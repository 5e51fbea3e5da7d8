package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/averev/signlink/internal/observability"
)

// HFClient calls a Hugging Face serverless inference endpoint that exposes an
// image-classification model. The endpoint takes raw image bytes and returns
// candidate labels sorted by score.
type HFClient struct {
	modelURL   string
	token      string
	httpClient *http.Client
}

// NewHFClient creates a classifier client for the given model endpoint.
// token may be empty for public models.
func NewHFClient(modelURL, token string) *HFClient {
	return &HFClient{
		modelURL: modelURL,
		token:    token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type hfScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Predict classifies one encoded image. Any decode, transport, or model error
// is returned as *InferenceError so the stream handler can scope it to the
// frame that caused it.
func (c *HFClient) Predict(ctx context.Context, image []byte) (Prediction, error) {
	if len(image) == 0 {
		return Prediction{}, &InferenceError{Reason: "empty image payload"}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.modelURL, bytes.NewReader(image))
	if err != nil {
		return Prediction{}, &InferenceError{Reason: "build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	observability.RecordInference(time.Since(start))
	if err != nil {
		observability.RecordExternalCall("classifier", "error")
		return Prediction{}, &InferenceError{Reason: "call model endpoint", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		observability.RecordExternalCall("classifier", "error")
		return Prediction{}, &InferenceError{Reason: "read model response", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		observability.RecordExternalCall("classifier", fmt.Sprintf("%d", resp.StatusCode))
		return Prediction{}, &InferenceError{
			Reason: fmt.Sprintf("model endpoint returned %d: %s", resp.StatusCode, truncate(body, 200)),
		}
	}

	var scores []hfScore
	if err := json.Unmarshal(body, &scores); err != nil {
		observability.RecordExternalCall("classifier", "error")
		return Prediction{}, &InferenceError{Reason: "decode model response", Err: err}
	}
	if len(scores) == 0 {
		observability.RecordExternalCall("classifier", "error")
		return Prediction{}, &InferenceError{Reason: "model returned no labels"}
	}

	top := scores[0]
	for _, s := range scores[1:] {
		if s.Score > top.Score {
			top = s
		}
	}

	observability.RecordExternalCall("classifier", "ok")
	return Prediction{Label: top.Label, Confidence: top.Score}, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
