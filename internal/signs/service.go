package signs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/averev/signlink/internal/clean"
	"github.com/averev/signlink/internal/domain"
	"github.com/averev/signlink/internal/observability"
	openai "github.com/sashabaranov/go-openai"
)

const aslSystemPrompt = `You are an expert ASL (American Sign Language) interpreter and teacher.
Convert English text to ASL sign language instructions.

Follow ASL grammar: Topic-Comment word order, drop articles and linking
verbs, time indicators first. Use fingerspelling for proper nouns and words
without common signs.

Respond in JSON with this structure:
{
  "asl_gloss": "the sentence in ASL gloss notation (sign order, uppercase)",
  "cleaned_text": "the text cleaned up for display",
  "sentence_structure_note": "brief explanation of grammar changes",
  "signs": [
    {
      "word": "original word",
      "sign_type": "sign or fingerspell",
      "sign_description": "how to perform the sign",
      "handshape": "hand shape",
      "movement": "movement",
      "location": "where the sign is made",
      "facial_expression": "required facial expression if any",
      "notes": "additional tips"
    }
  ]
}`

const blindSystemPrompt = `You optimize text for blind users who rely on screen readers: spell out
abbreviations, describe referenced visual elements, and keep the text clear
when read aloud.

Respond in JSON: {"cleaned_text": "...", "audio_description": "..."}`

// SignWord is one word of the translation and how to sign it.
type SignWord struct {
	Word             string `json:"word"`
	SignType         string `json:"sign_type"`
	SignDescription  string `json:"sign_description"`
	Handshape        string `json:"handshape,omitempty"`
	Movement         string `json:"movement,omitempty"`
	Location         string `json:"location,omitempty"`
	FacialExpression string `json:"facial_expression,omitempty"`
	Notes            string `json:"notes,omitempty"`
}

// LetterSign is one letter's fingerspelling rendering.
type LetterSign struct {
	Letter      string `json:"letter"`
	ImageURL    string `json:"image_url"`
	Description string `json:"description"`
}

// Conversion is the status-dependent rendering of a message.
type Conversion struct {
	OriginalText          string                     `json:"original_text"`
	ProcessedText         string                     `json:"processed_text"`
	ReceiverStatus        domain.AccessibilityStatus `json:"receiver_status"`
	ASLGloss              string                     `json:"asl_gloss,omitempty"`
	Signs                 []SignWord                 `json:"signs,omitempty"`
	LetterImages          []LetterSign               `json:"letter_images,omitempty"`
	AudioDescription      string                     `json:"audio_description,omitempty"`
	SentenceStructureNote string                     `json:"sentence_structure_note,omitempty"`
	TotalSigns            int                        `json:"total_signs,omitempty"`
}

// Service renders text for a receiver's accessibility status.
type Service struct {
	client clean.CompletionClient
	model  string
}

// NewService creates a text-to-sign service using the given completion model.
func NewService(client clean.CompletionClient, model string) *Service {
	return &Service{client: client, model: model}
}

// Convert renders text according to the receiver's status. Provider failures
// on the deaf/mute path degrade to fingerspelling-only rather than failing:
// the letter images alone are still a usable rendering.
func (s *Service) Convert(ctx context.Context, text string, status domain.AccessibilityStatus) (*Conversion, error) {
	switch status {
	case domain.StatusDeaf, domain.StatusMute:
		return s.convertToASL(ctx, text, status), nil
	case domain.StatusBlind:
		return s.convertForBlind(ctx, text), nil
	default:
		return &Conversion{
			OriginalText:   text,
			ProcessedText:  strings.TrimSpace(text),
			ReceiverStatus: domain.StatusNormal,
		}, nil
	}
}

func (s *Service) convertToASL(ctx context.Context, text string, status domain.AccessibilityStatus) *Conversion {
	out := &Conversion{
		OriginalText:   text,
		ProcessedText:  strings.TrimSpace(text),
		ReceiverStatus: status,
		LetterImages:   LetterImages(text),
	}

	var result struct {
		ASLGloss              string     `json:"asl_gloss"`
		CleanedText           string     `json:"cleaned_text"`
		SentenceStructureNote string     `json:"sentence_structure_note"`
		Signs                 []SignWord `json:"signs"`
	}
	if err := s.completeJSON(ctx, aslSystemPrompt, fmt.Sprintf("Convert this text to ASL sign language:\n\n%q", text), &result); err != nil {
		slog.Warn("ASL conversion degraded to fingerspelling only", "error", err)
		return out
	}

	if result.CleanedText != "" {
		out.ProcessedText = result.CleanedText
	}
	out.ASLGloss = result.ASLGloss
	out.Signs = result.Signs
	out.SentenceStructureNote = result.SentenceStructureNote
	out.TotalSigns = len(result.Signs)
	return out
}

func (s *Service) convertForBlind(ctx context.Context, text string) *Conversion {
	out := &Conversion{
		OriginalText:   text,
		ProcessedText:  strings.TrimSpace(text),
		ReceiverStatus: domain.StatusBlind,
	}

	var result struct {
		CleanedText      string `json:"cleaned_text"`
		AudioDescription string `json:"audio_description"`
	}
	if err := s.completeJSON(ctx, blindSystemPrompt, fmt.Sprintf("Optimize this text for a blind user: %q", text), &result); err != nil {
		slog.Warn("Screen-reader optimization degraded to raw text", "error", err)
		return out
	}

	if result.CleanedText != "" {
		out.ProcessedText = result.CleanedText
	}
	out.AudioDescription = result.AudioDescription
	return out
}

func (s *Service) completeJSON(ctx context.Context, system, user string, out interface{}) error {
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: 0.3,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		observability.RecordExternalCall("openai", "error")
		return fmt.Errorf("completion call: %w", err)
	}
	observability.RecordExternalCall("openai", "ok")

	if len(resp.Choices) == 0 {
		return fmt.Errorf("completion returned no choices")
	}
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), out); err != nil {
		return fmt.Errorf("decode completion JSON: %w", err)
	}
	return nil
}

// LetterImages maps a sentence to per-letter fingerspelling renderings.
// Characters without a fingerspelling are skipped; spaces become pauses.
func LetterImages(sentence string) []LetterSign {
	var letters []LetterSign
	for _, r := range strings.ToUpper(sentence) {
		switch {
		case r == ' ':
			letters = append(letters, LetterSign{
				Letter:      " ",
				Description: "Pause briefly between words",
			})
		case unicode.IsLetter(r):
			desc, ok := fingerspellAlphabet[r]
			if !ok {
				continue
			}
			letters = append(letters, LetterSign{
				Letter:      string(r),
				ImageURL:    letterImageURL(r),
				Description: desc,
			})
		}
	}
	return letters
}

// Fingerspell describes how to fingerspell each character of a word.
func Fingerspell(word string) []map[string]string {
	var letters []map[string]string
	for _, r := range strings.ToUpper(word) {
		switch {
		case r == ' ':
			letters = append(letters, map[string]string{
				"letter":    "[space]",
				"handshape": "Brief pause between words",
			})
		default:
			desc, ok := fingerspellAlphabet[r]
			if !ok {
				desc = "No fingerspelling available for this character"
			}
			letters = append(letters, map[string]string{
				"letter":    string(r),
				"handshape": desc,
			})
		}
	}
	return letters
}
