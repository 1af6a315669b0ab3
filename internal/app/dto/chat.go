package dto

import (
	"time"

	"rentchat/internal/domain/chat"
)

// Conversation is a registry entry for conversation list views.
type Conversation struct {
	ID            int64      `json:"id"`
	ListingID     int64      `json:"listing_id"`
	BuyerID       int64      `json:"buyer_id"`
	SellerID      int64      `json:"seller_id"`
	OtherUserName string     `json:"other_user_name,omitempty"`
	LastMessage   string     `json:"last_message,omitempty"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
	UnreadCount   int        `json:"unread_count"`
	CreatedAt     time.Time  `json:"created_at"`
}

// ChatMessage contains a single message payload.
type ChatMessage struct {
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversation_id"`
	SenderID       int64     `json:"sender_id"`
	MessageType    string    `json:"message_type"`
	Content        string    `json:"content"`
	Images         []string  `json:"images,omitempty"`
	Read           bool      `json:"read"`
	CreatedAt      time.Time `json:"created_at"`
}

// MessageTemplate is a static send-box pre-fill entry.
type MessageTemplate struct {
	ID       int64  `json:"id"`
	Text     string `json:"text"`
	Category string `json:"category"`
}

// UnreadCount carries the authoritative unread total.
type UnreadCount struct {
	Count int `json:"count"`
}

func NewConversation(summary chat.Summary) Conversation {
	conv := summary.Conversation
	out := Conversation{
		ID:            int64(conv.ID),
		ListingID:     conv.ListingID,
		BuyerID:       int64(conv.BuyerID),
		SellerID:      int64(conv.SellerID),
		OtherUserName: summary.CounterpartName,
		LastMessage:   conv.LastMessageText,
		UnreadCount:   summary.UnreadCount,
		CreatedAt:     conv.CreatedAt,
	}
	if !conv.LastMessageAt.IsZero() {
		at := conv.LastMessageAt
		out.LastMessageAt = &at
	}
	return out
}

func NewChatMessage(msg chat.Message) ChatMessage {
	return ChatMessage{
		ID:             int64(msg.ID),
		ConversationID: int64(msg.ConversationID),
		SenderID:       int64(msg.SenderID),
		MessageType:    string(msg.Kind),
		Content:        msg.Content,
		Images:         append([]string(nil), msg.ImageURLs...),
		Read:           msg.Read,
		CreatedAt:      msg.CreatedAt,
	}
}

func NewMessageTemplate(tpl chat.Template) MessageTemplate {
	return MessageTemplate{ID: tpl.ID, Text: tpl.Text, Category: tpl.Category}
}
