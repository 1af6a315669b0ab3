// Package messaging holds the client-side conversation state: the current
// message list, the conversation registry, the unread aggregate, and the
// polling loop that keeps them fresh against the server.
package messaging

import (
	"context"
	"fmt"
	"time"
)

// Conversation is a registry summary as served by the conversations endpoint.
type Conversation struct {
	ID            int64      `json:"id"`
	ListingID     int64      `json:"listing_id"`
	BuyerID       int64      `json:"buyer_id"`
	SellerID      int64      `json:"seller_id"`
	OtherUserName string     `json:"other_user_name"`
	LastMessage   string     `json:"last_message"`
	LastMessageAt *time.Time `json:"last_message_at"`
	UnreadCount   int        `json:"unread_count"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Message mirrors the server message payload.
type Message struct {
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversation_id"`
	SenderID       int64     `json:"sender_id"`
	MessageType    string    `json:"message_type"`
	Content        string    `json:"content"`
	Images         []string  `json:"images"`
	Read           bool      `json:"read"`
	CreatedAt      time.Time `json:"created_at"`
}

// Template is a static send-box pre-fill entry.
type Template struct {
	ID       int64  `json:"id"`
	Text     string `json:"text"`
	Category string `json:"category"`
}

// Attachment carries an image about to be uploaded with a message.
type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

// API is the transport surface the session depends on. Implementations talk
// to the server; tests substitute fakes.
type API interface {
	Conversations(ctx context.Context) ([]Conversation, error)
	Messages(ctx context.Context, conversationID int64) ([]Message, error)
	CreateConversation(ctx context.Context, listingID, sellerID int64) (Conversation, error)
	SendMessage(ctx context.Context, conversationID int64, content, kind string) (Message, error)
	SendImageMessage(ctx context.Context, conversationID int64, content string, images []Attachment) (Message, error)
	DeleteConversation(ctx context.Context, conversationID int64) error
	UnreadCount(ctx context.Context) (int, error)
	Templates(ctx context.Context) ([]Template, error)
}

// APIError is a server-reported failure. Message carries the server's own
// wording so callers can surface it verbatim.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("request failed with status %d", e.Status)
}

// CredentialStore supplies the bearer credential. An empty token means no
// signed-in user; session bootstrap is skipped entirely in that case.
type CredentialStore interface {
	Token() string
}

// StaticCredentials is a CredentialStore holding a fixed token.
type StaticCredentials string

func (s StaticCredentials) Token() string { return string(s) }
