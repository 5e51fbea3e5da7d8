package detect

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/averev/signlink/internal/classify"
	"github.com/averev/signlink/internal/observability"
	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
)

// Options tunes the per-session dedup filter.
type Options struct {
	ConfidenceThreshold float64
	MaxRepeats          int
	Cooldown            time.Duration
}

// WebSocketHandler serves the real-time detection stream. One detection
// session lives exactly as long as its connection; the dedup state is a local
// owned by the handler goroutine, so no cross-session coordination exists.
type WebSocketHandler struct {
	classifier     classify.Classifier
	opts           Options
	allowedOrigins []string
	now            func() time.Time
}

// NewWebSocketHandler creates the stream handler.
func NewWebSocketHandler(classifier classify.Classifier, opts Options, allowedOrigins []string) *WebSocketHandler {
	return &WebSocketHandler{
		classifier:     classifier,
		opts:           opts,
		allowedOrigins: allowedOrigins,
		now:            time.Now,
	}
}

// RegisterRoutes mounts the stream endpoint.
func (h *WebSocketHandler) RegisterRoutes(r chi.Router) {
	r.Get("/sign-detection/ws/predict", h.ServeHTTP)
}

// frameRequest is the inbound message shape. Clients may also send the raw
// image bytes as a binary frame.
type frameRequest struct {
	Image string `json:"image"`
}

// frameResponse is the outbound message for a classified frame.
type frameResponse struct {
	PredictedClass string  `json:"predicted_class"`
	Confidence     float64 `json:"confidence"`
	IsNew          bool    `json:"is_new"`
}

// frameError is the outbound message for a frame that could not be processed.
// It is scoped to one frame; the connection stays open.
type frameError struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// ServeHTTP upgrades the connection and drives the per-frame loop.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	slog.Info("Detection stream connection request", "ip", r.RemoteAddr)

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns(),
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr)
		}
	}()

	observability.SessionOpened()
	defer observability.SessionClosed()

	ctx := r.Context()

	// Fresh session state per connection, never reused.
	acc := NewAccumulator(h.opts.ConfidenceThreshold, h.opts.MaxRepeats, h.opts.Cooldown)

	for {
		image, err := h.readFrame(ctx, ws)
		if err != nil {
			if websocket.CloseStatus(err) != -1 || errors.Is(err, context.Canceled) {
				slog.Info("Detection stream closed", "ip", r.RemoteAddr)
			} else {
				slog.Warn("Detection stream read error", "error", err)
			}
			return
		}

		if image == nil {
			// Malformed frame payload: report and await the next frame.
			observability.RecordFrame(observability.FrameError)
			if err := h.writeJSON(ctx, ws, frameError{Error: "invalid frame", Message: "expected base64 image payload"}); err != nil {
				return
			}
			continue
		}

		// Frames are classified strictly in arrival order; a slow classifier
		// call stalls only this session.
		pred, err := h.classifier.Predict(ctx, image)
		if err != nil {
			var infErr *classify.InferenceError
			msg := "classification failed"
			if errors.As(err, &infErr) {
				msg = infErr.Reason
			}
			slog.Warn("Frame classification failed", "error", err)
			observability.RecordFrame(observability.FrameError)
			if err := h.writeJSON(ctx, ws, frameError{Error: "invalid image data", Message: msg}); err != nil {
				return
			}
			continue
		}

		isNew := acc.Observe(pred.Label, pred.Confidence, h.now())
		switch {
		case pred.Confidence < h.opts.ConfidenceThreshold:
			observability.RecordFrame(observability.FrameLowConfidence)
		case isNew:
			observability.RecordFrame(observability.FrameEmitted)
		default:
			observability.RecordFrame(observability.FrameSuppressed)
		}

		resp := frameResponse{
			PredictedClass: pred.Label,
			Confidence:     pred.Confidence,
			IsNew:          isNew,
		}
		if err := h.writeJSON(ctx, ws, resp); err != nil {
			slog.Debug("Detection stream write error", "error", err)
			return
		}
	}
}

// readFrame reads one inbound message and extracts the image bytes. A nil
// slice with nil error means the payload was malformed.
func (h *WebSocketHandler) readFrame(ctx context.Context, ws *websocket.Conn) ([]byte, error) {
	typ, data, err := ws.Read(ctx)
	if err != nil {
		return nil, err
	}

	if typ == websocket.MessageBinary {
		return data, nil
	}

	var req frameRequest
	if err := json.Unmarshal(data, &req); err != nil || req.Image == "" {
		return nil, nil
	}
	image, err := base64.StdEncoding.DecodeString(req.Image)
	if err != nil {
		return nil, nil
	}
	return image, nil
}

func (h *WebSocketHandler) writeJSON(ctx context.Context, ws *websocket.Conn, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return ws.Write(ctx, websocket.MessageText, data)
}

func (h *WebSocketHandler) originPatterns() []string {
	if len(h.allowedOrigins) == 0 {
		return []string{"*"}
	}
	return h.allowedOrigins
}
