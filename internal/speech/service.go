// Package speech converts uploaded audio to text through the hosted speech
// API and stores the result as a conversation message.
package speech

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/averev/signlink/internal/observability"
	openai "github.com/sashabaranov/go-openai"
)

// Transcriber converts one audio stream to text.
type Transcriber interface {
	Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error)
}

// AudioClient is the slice of the OpenAI client the whisper transcriber needs.
type AudioClient interface {
	CreateTranscription(ctx context.Context, req openai.AudioRequest) (openai.AudioResponse, error)
}

// WhisperTranscriber implements Transcriber against the whisper-1 model.
type WhisperTranscriber struct {
	client AudioClient
}

// NewWhisperTranscriber creates a whisper-backed transcriber.
func NewWhisperTranscriber(client AudioClient) *WhisperTranscriber {
	return &WhisperTranscriber{client: client}
}

// Transcribe sends the audio to the speech API and returns the recognized
// text. Single attempt; retry policy belongs to the caller.
func (t *WhisperTranscriber) Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error) {
	resp, err := t.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		FilePath: filename,
		Reader:   audio,
		Language: "en",
	})
	if err != nil {
		observability.RecordExternalCall("whisper", "error")
		return "", fmt.Errorf("transcribe audio: %w", err)
	}
	observability.RecordExternalCall("whisper", "ok")

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", fmt.Errorf("transcribe audio: empty transcription")
	}
	return text, nil
}
