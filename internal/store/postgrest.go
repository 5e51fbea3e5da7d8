package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/averev/signlink/internal/domain"
	"github.com/averev/signlink/internal/observability"
)

// PostgrestStore implements Repository against a Supabase PostgREST endpoint.
// It uses the service-role key: row-level security is enforced upstream of
// this server, at the API gateway, so the server reads both sides of a
// conversation on a user's behalf.
type PostgrestStore struct {
	baseURL    string
	serviceKey string
	httpClient *http.Client
}

// NewPostgrest creates a PostgREST-backed repository. baseURL is the Supabase
// project URL without a trailing slash.
func NewPostgrest(baseURL, serviceKey string) *PostgrestStore {
	return &PostgrestStore{
		baseURL:    strings.TrimRight(baseURL, "/"),
		serviceKey: serviceKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type postgrestMessage struct {
	ID          string    `json:"id,omitempty"`
	SenderID    string    `json:"sender_id"`
	ReceiverID  string    `json:"receiver_id"`
	RawText     string    `json:"raw_text"`
	CleanedText string    `json:"cleaned_text"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

// Ping verifies the REST endpoint is reachable.
func (s *PostgrestStore) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, s.baseURL+"/rest/v1/chat_conversation?limit=1", nil)
	if err != nil {
		return fmt.Errorf("build ping request: %w", err)
	}
	s.authorize(req)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ping postgrest: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("ping postgrest: status %d", resp.StatusCode)
	}
	return nil
}

// Close is a no-op; the client holds no persistent connection state.
func (s *PostgrestStore) Close() error { return nil }

// InsertMessage appends one conversation record; the database mints the ID
// and timestamp.
func (s *PostgrestStore) InsertMessage(ctx context.Context, msg *domain.Message) (*domain.Message, error) {
	payload := postgrestMessage{
		SenderID:    msg.SenderID,
		ReceiverID:  msg.ReceiverID,
		RawText:     msg.RawText,
		CleanedText: msg.CleanedText,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/rest/v1/chat_conversation", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build insert request: %w", err)
	}
	s.authorize(req)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=representation")

	var rows []postgrestMessage
	if err := s.do(req, http.StatusCreated, &rows); err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("insert message: empty representation returned")
	}

	return rows[0].toDomain(), nil
}

// Conversation returns messages between two users, most recent first, plus
// the exact total count from the Content-Range header.
func (s *PostgrestStore) Conversation(ctx context.Context, userID, otherUserID string, limit, offset int) ([]domain.Message, int, error) {
	// The identifiers are interpolated into the filter expression, so anything
	// carrying PostgREST syntax would rewrite the query.
	if !ValidIdentifier(userID) || !ValidIdentifier(otherUserID) {
		return nil, 0, fmt.Errorf("query conversation: %w", ErrInvalidIdentifier)
	}

	// PostgREST filter for either direction between the pair, mirroring
	// or=(and(sender.eq.a,receiver.eq.b),and(sender.eq.b,receiver.eq.a)).
	orFilter := fmt.Sprintf(
		"(and(sender_id.eq.%s,receiver_id.eq.%s),and(sender_id.eq.%s,receiver_id.eq.%s))",
		userID, otherUserID, otherUserID, userID,
	)

	params := url.Values{}
	params.Set("select", "*")
	params.Set("or", orFilter)
	params.Set("order", "created_at.desc")
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(offset))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/rest/v1/chat_conversation?"+params.Encode(), nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build conversation request: %w", err)
	}
	s.authorize(req)
	req.Header.Set("Prefer", "count=exact")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		observability.RecordExternalCall("postgrest", "error")
		return nil, 0, fmt.Errorf("query conversation: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		observability.RecordExternalCall("postgrest", strconv.Itoa(resp.StatusCode))
		return nil, 0, fmt.Errorf("query conversation: status %d", resp.StatusCode)
	}

	var rows []postgrestMessage
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		observability.RecordExternalCall("postgrest", "error")
		return nil, 0, fmt.Errorf("decode conversation: %w", err)
	}
	observability.RecordExternalCall("postgrest", "ok")

	total := parseContentRangeTotal(resp.Header.Get("Content-Range"))
	if total < 0 {
		total = len(rows)
	}

	messages := make([]domain.Message, 0, len(rows))
	for _, row := range rows {
		messages = append(messages, *row.toDomain())
	}
	return messages, total, nil
}

// ProfileStatus returns the accessibility status for a user.
func (s *PostgrestStore) ProfileStatus(ctx context.Context, userID string) (domain.AccessibilityStatus, error) {
	if !ValidIdentifier(userID) {
		return "", fmt.Errorf("query profile: %w", ErrInvalidIdentifier)
	}

	params := url.Values{}
	params.Set("select", "status")
	params.Set("id", "eq."+userID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/rest/v1/profiles?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("build profile request: %w", err)
	}
	s.authorize(req)

	var rows []struct {
		Status string `json:"status"`
	}
	if err := s.do(req, http.StatusOK, &rows); err != nil {
		return "", fmt.Errorf("query profile: %w", err)
	}
	if len(rows) == 0 {
		return "", ErrNotFound
	}
	return domain.AccessibilityStatus(rows[0].Status), nil
}

type postgrestConversation struct {
	ID        string    `json:"id,omitempty"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

type postgrestThreadMessage struct {
	ID             string    `json:"id,omitempty"`
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at,omitempty"`
}

// InsertConversation creates an assistant chat thread; the database mints the
// ID and timestamp.
func (s *PostgrestStore) InsertConversation(ctx context.Context, conv *domain.Conversation) (*domain.Conversation, error) {
	body, err := json.Marshal(postgrestConversation{UserID: conv.UserID, Title: conv.Title})
	if err != nil {
		return nil, fmt.Errorf("encode conversation: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/rest/v1/conversation", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build insert request: %w", err)
	}
	s.authorize(req)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=representation")

	var rows []postgrestConversation
	if err := s.do(req, http.StatusCreated, &rows); err != nil {
		return nil, fmt.Errorf("insert conversation: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("insert conversation: empty representation returned")
	}

	row := rows[0]
	return &domain.Conversation{ID: row.ID, UserID: row.UserID, Title: row.Title, CreatedAt: row.CreatedAt}, nil
}

// ConversationMeta returns one assistant thread scoped to its owner.
func (s *PostgrestStore) ConversationMeta(ctx context.Context, conversationID, userID string) (*domain.Conversation, error) {
	if !ValidIdentifier(conversationID) || !ValidIdentifier(userID) {
		return nil, fmt.Errorf("query conversation: %w", ErrInvalidIdentifier)
	}

	params := url.Values{}
	params.Set("select", "id,user_id,title,created_at")
	params.Set("id", "eq."+conversationID)
	params.Set("user_id", "eq."+userID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/rest/v1/conversation?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build conversation request: %w", err)
	}
	s.authorize(req)

	var rows []postgrestConversation
	if err := s.do(req, http.StatusOK, &rows); err != nil {
		return nil, fmt.Errorf("query conversation: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}

	row := rows[0]
	return &domain.Conversation{ID: row.ID, UserID: row.UserID, Title: row.Title, CreatedAt: row.CreatedAt}, nil
}

// Conversations lists a user's assistant threads, newest first.
func (s *PostgrestStore) Conversations(ctx context.Context, userID string) ([]domain.Conversation, error) {
	if !ValidIdentifier(userID) {
		return nil, fmt.Errorf("query conversations: %w", ErrInvalidIdentifier)
	}

	params := url.Values{}
	params.Set("select", "id,user_id,title,created_at")
	params.Set("user_id", "eq."+userID)
	params.Set("order", "created_at.desc")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/rest/v1/conversation?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build conversations request: %w", err)
	}
	s.authorize(req)

	var rows []postgrestConversation
	if err := s.do(req, http.StatusOK, &rows); err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}

	convs := make([]domain.Conversation, 0, len(rows))
	for _, row := range rows {
		convs = append(convs, domain.Conversation{ID: row.ID, UserID: row.UserID, Title: row.Title, CreatedAt: row.CreatedAt})
	}
	return convs, nil
}

// InsertConversationMessage appends one turn to an assistant thread.
func (s *PostgrestStore) InsertConversationMessage(ctx context.Context, msg *domain.ConversationMessage) (*domain.ConversationMessage, error) {
	body, err := json.Marshal(postgrestThreadMessage{
		ConversationID: msg.ConversationID,
		Role:           msg.Role,
		Content:        msg.Content,
	})
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/rest/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build insert request: %w", err)
	}
	s.authorize(req)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=representation")

	var rows []postgrestThreadMessage
	if err := s.do(req, http.StatusCreated, &rows); err != nil {
		return nil, fmt.Errorf("insert conversation message: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("insert conversation message: empty representation returned")
	}

	row := rows[0]
	return &domain.ConversationMessage{
		ID:             row.ID,
		ConversationID: row.ConversationID,
		Role:           row.Role,
		Content:        row.Content,
		CreatedAt:      row.CreatedAt,
	}, nil
}

// ConversationMessages returns every turn of an assistant thread, oldest first.
func (s *PostgrestStore) ConversationMessages(ctx context.Context, conversationID string) ([]domain.ConversationMessage, error) {
	if !ValidIdentifier(conversationID) {
		return nil, fmt.Errorf("query messages: %w", ErrInvalidIdentifier)
	}

	params := url.Values{}
	params.Set("select", "id,conversation_id,role,content,created_at")
	params.Set("conversation_id", "eq."+conversationID)
	params.Set("order", "created_at.asc")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/rest/v1/messages?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build messages request: %w", err)
	}
	s.authorize(req)

	var rows []postgrestThreadMessage
	if err := s.do(req, http.StatusOK, &rows); err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}

	msgs := make([]domain.ConversationMessage, 0, len(rows))
	for _, row := range rows {
		msgs = append(msgs, domain.ConversationMessage{
			ID:             row.ID,
			ConversationID: row.ConversationID,
			Role:           row.Role,
			Content:        row.Content,
			CreatedAt:      row.CreatedAt,
		})
	}
	return msgs, nil
}

func (s *PostgrestStore) authorize(req *http.Request) {
	req.Header.Set("apikey", s.serviceKey)
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
}

func (s *PostgrestStore) do(req *http.Request, wantStatus int, out interface{}) error {
	resp, err := s.httpClient.Do(req)
	if err != nil {
		observability.RecordExternalCall("postgrest", "error")
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		observability.RecordExternalCall("postgrest", strconv.Itoa(resp.StatusCode))
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	observability.RecordExternalCall("postgrest", "ok")
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (m *postgrestMessage) toDomain() *domain.Message {
	return &domain.Message{
		ID:          m.ID,
		SenderID:    m.SenderID,
		ReceiverID:  m.ReceiverID,
		RawText:     m.RawText,
		CleanedText: m.CleanedText,
		CreatedAt:   m.CreatedAt,
	}
}

// parseContentRangeTotal extracts the total from a "0-24/51" style header.
// Returns -1 when the header is absent or unparseable.
func parseContentRangeTotal(header string) int {
	idx := strings.LastIndex(header, "/")
	if idx < 0 {
		return -1
	}
	totalPart := header[idx+1:]
	if totalPart == "*" {
		return -1
	}
	total, err := strconv.Atoi(totalPart)
	if err != nil {
		return -1
	}
	return total
}
