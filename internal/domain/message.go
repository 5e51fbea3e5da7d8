// Package domain contains core domain types for the SignLink application.
package domain

import "time"

// Message represents one record in the bidirectional conversation between two
// users. RawText carries the text exactly as detected or typed; CleanedText is
// the normalized form. For typed and transcribed messages the two are equal.
type Message struct {
	ID          string    `json:"id"`
	SenderID    string    `json:"sender_id"`
	ReceiverID  string    `json:"receiver_id"`
	RawText     string    `json:"raw_text"`
	CleanedText string    `json:"cleaned_text"`
	CreatedAt   time.Time `json:"created_at"`
}
