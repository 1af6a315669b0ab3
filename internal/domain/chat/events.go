package chat

import "time"

// EventMessageSent is emitted after a message is durably stored.
const EventMessageSent = "chat.message.sent"

type MessageSentEvent struct {
	ConversationID ConversationID `json:"conversation_id"`
	MessageID      MessageID      `json:"message_id"`
	ListingID      int64          `json:"listing_id"`
	SenderID       int64          `json:"sender_id"`
	RecipientID    int64          `json:"recipient_id"`
	Kind           Kind           `json:"kind"`
	ImageCount     int            `json:"image_count,omitempty"`
	SentAt         time.Time      `json:"sent_at"`
}

func NewMessageSentEvent(conv *Conversation, msg *Message) MessageSentEvent {
	return MessageSentEvent{
		ConversationID: conv.ID,
		MessageID:      msg.ID,
		ListingID:      conv.ListingID,
		SenderID:       int64(msg.SenderID),
		RecipientID:    int64(conv.Counterpart(msg.SenderID)),
		Kind:           msg.Kind,
		ImageCount:     len(msg.ImageURLs),
		SentAt:         msg.CreatedAt,
	}
}
