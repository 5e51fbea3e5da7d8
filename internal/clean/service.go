// Package clean normalizes raw sign-detection transcripts into readable text
// through the hosted completion model.
package clean

import (
	"context"
	"log/slog"
	"strings"

	"github.com/averev/signlink/internal/observability"
	openai "github.com/sashabaranov/go-openai"
)

const systemPrompt = `You clean up raw sign-language detection output. The input is a stream of
letters with accidental repeats and no spacing, e.g. "iaammmliikee".
Reconstruct the intended message: collapse unintended repeats, insert word
boundaries, and fix obvious letter errors. Reply with the cleaned sentence
only, no explanation.`

// CompletionClient is the slice of the OpenAI client this service needs.
type CompletionClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Service turns accumulated raw labels into cleaned text.
type Service struct {
	client CompletionClient
	model  string
}

// NewService creates a normalization service using the given completion model.
func NewService(client CompletionClient, model string) *Service {
	return &Service{client: client, model: model}
}

// Clean normalizes raw detected text. If the completion provider fails, the
// raw input is returned unchanged: the user's accumulated signing effort must
// never be lost because a cleanup step failed. The degraded path is reported
// through the returned bool, never as an error.
func (s *Service) Clean(ctx context.Context, raw string) (cleaned string, degraded bool) {
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: raw},
		},
		Temperature: 0.2,
	})
	if err != nil {
		slog.Warn("Text normalization failed, returning raw input", "error", err)
		observability.RecordExternalCall("openai", "error")
		observability.RecordCleanupFallback()
		return raw, true
	}
	observability.RecordExternalCall("openai", "ok")

	if len(resp.Choices) == 0 {
		observability.RecordCleanupFallback()
		return raw, true
	}

	out := strings.TrimSpace(resp.Choices[0].Message.Content)
	if out == "" {
		observability.RecordCleanupFallback()
		return raw, true
	}
	return out, false
}
