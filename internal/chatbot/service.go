// Package chatbot provides the AI assistant: threaded conversations with the
// completion model, persisted per user.
package chatbot

import (
	"context"
	"fmt"
	"strings"

	"github.com/averev/signlink/internal/clean"
	"github.com/averev/signlink/internal/domain"
	"github.com/averev/signlink/internal/observability"
	openai "github.com/sashabaranov/go-openai"
)

const assistantSystemPrompt = `You are a helpful AI assistant inside an accessibility messaging app.
Provide clear, accurate, and friendly responses. Keep answers concise unless
the user asks for detail.`

const maxTitleLength = 60

// Service runs assistant turns against the completion model.
type Service struct {
	client clean.CompletionClient
	model  string
}

// NewService creates an assistant service using the given completion model.
func NewService(client clean.CompletionClient, model string) *Service {
	return &Service{client: client, model: model}
}

// Reply generates the assistant's next turn given the stored history and the
// user's new message.
func (s *Service) Reply(ctx context.Context, history []domain.ConversationMessage, message string) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleSystem, Content: assistantSystemPrompt,
	})
	for _, turn := range history {
		role := openai.ChatMessageRoleUser
		if turn.Role == domain.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: turn.Content})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleUser, Content: message,
	})

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       s.model,
		Messages:    messages,
		Temperature: 0.7,
	})
	if err != nil {
		observability.RecordExternalCall("openai", "error")
		return "", fmt.Errorf("assistant completion: %w", err)
	}
	observability.RecordExternalCall("openai", "ok")

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("assistant completion: no choices returned")
	}
	reply := strings.TrimSpace(resp.Choices[0].Message.Content)
	if reply == "" {
		return "", fmt.Errorf("assistant completion: empty reply")
	}
	return reply, nil
}

// Title derives a short thread title from the first message. A provider
// failure degrades to a truncation of the message itself; a new thread must
// never fail over its label.
func (s *Service) Title(ctx context.Context, firstMessage string) string {
	prompt := fmt.Sprintf(`Generate a short, concise title (3-6 words) for a conversation that starts with this message:

%q

Return ONLY the title, nothing else.`, firstMessage)

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0.3,
	})
	if err != nil || len(resp.Choices) == 0 {
		observability.RecordExternalCall("openai", "error")
		return truncateTitle(firstMessage)
	}
	observability.RecordExternalCall("openai", "ok")

	title := strings.Trim(strings.TrimSpace(resp.Choices[0].Message.Content), `"'`)
	if title == "" {
		return truncateTitle(firstMessage)
	}
	return truncateTitle(title)
}

func truncateTitle(s string) string {
	if len(s) <= maxTitleLength {
		return s
	}
	return s[:maxTitleLength-3] + "..."
}
