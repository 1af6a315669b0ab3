package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"rentchat/internal/domain/user"
)

var (
	ErrConversationNotFound = errors.New("chat: conversation not found")
	ErrNotParticipant       = errors.New("chat: not a conversation participant")
	ErrSelfConversation     = errors.New("chat: cannot start a conversation with yourself")
	ErrListingRequired      = errors.New("chat: listing id is required")
	ErrParticipantsRequired = errors.New("chat: buyer and seller are required")
	ErrSenderRequired       = errors.New("chat: sender is required")
	ErrEmptyContent         = errors.New("chat: content is required")
	ErrInvalidKind          = errors.New("chat: unknown message kind")
)

type ConversationID int64

type MessageID int64

// Kind discriminates text messages from image-bearing ones.
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
)

// ConversationKey identifies the unique (listing, buyer, seller) triple.
// At most one conversation exists per key; creation is idempotent.
type ConversationKey struct {
	ListingID int64
	BuyerID   user.ID
	SellerID  user.ID
}

func (k ConversationKey) Validate() error {
	if k.ListingID <= 0 {
		return ErrListingRequired
	}
	if k.BuyerID <= 0 || k.SellerID <= 0 {
		return ErrParticipantsRequired
	}
	if k.BuyerID == k.SellerID {
		return ErrSelfConversation
	}
	return nil
}

// Conversation is a buyer/seller thread about a listing. The last-message
// fields are denormalized for list views and updated on every append.
type Conversation struct {
	ID              ConversationID
	ListingID       int64
	BuyerID         user.ID
	SellerID        user.ID
	LastMessageText string
	LastMessageAt   time.Time
	CreatedAt       time.Time
}

func (c *Conversation) Key() ConversationKey {
	return ConversationKey{ListingID: c.ListingID, BuyerID: c.BuyerID, SellerID: c.SellerID}
}

func (c *Conversation) HasParticipant(id user.ID) bool {
	return id > 0 && (c.BuyerID == id || c.SellerID == id)
}

// Counterpart returns the other participant from the viewer's perspective.
func (c *Conversation) Counterpart(viewer user.ID) user.ID {
	if c.BuyerID == viewer {
		return c.SellerID
	}
	return c.BuyerID
}

// Message is immutable once stored except for the read flag, which only
// transitions false to true.
type Message struct {
	ID             MessageID
	ConversationID ConversationID
	SenderID       user.ID
	Kind           Kind
	Content        string
	ImageURLs      []string
	Read           bool
	CreatedAt      time.Time
}

// NewMessage carries the fields of a message about to be appended.
type NewMessage struct {
	SenderID  user.ID
	Kind      Kind
	Content   string
	ImageURLs []string
}

func (m NewMessage) Validate() error {
	if m.SenderID <= 0 {
		return ErrSenderRequired
	}
	switch m.Kind {
	case KindText:
		if strings.TrimSpace(m.Content) == "" {
			return ErrEmptyContent
		}
	case KindImage:
		// content may be empty for image-only messages
	default:
		return ErrInvalidKind
	}
	return nil
}

// Template is a static catalog entry used to pre-fill a send box.
type Template struct {
	ID       int64
	Text     string
	Category string
}

// Summary is a registry entry for conversation list views. The unread count
// covers messages sent by the counterpart and not yet read by the viewer.
type Summary struct {
	Conversation    Conversation
	CounterpartID   user.ID
	CounterpartName string
	UnreadCount     int
}

// Store persists conversations and messages. Implementations keep message
// order equal to creation order and derive unread counts from stored read
// flags rather than caching them.
type Store interface {
	// GetOrCreate returns the conversation for key, creating it when absent.
	// The second result reports whether a new conversation was created.
	GetOrCreate(ctx context.Context, key ConversationKey, now time.Time) (*Conversation, bool, error)
	ByID(ctx context.Context, id ConversationID) (*Conversation, error)
	// ListForUser returns summaries for every conversation the user takes
	// part in, most recent activity first. CounterpartName is left empty;
	// callers resolve it against the user repository.
	ListForUser(ctx context.Context, viewer user.ID) ([]Summary, error)
	// Messages returns the full ordered message list, oldest first.
	Messages(ctx context.Context, id ConversationID) ([]Message, error)
	Append(ctx context.Context, id ConversationID, msg NewMessage, now time.Time) (*Message, error)
	// MarkRead flips the counterpart's unread messages to read and returns
	// how many were affected.
	MarkRead(ctx context.Context, id ConversationID, viewer user.ID) (int, error)
	UnreadTotal(ctx context.Context, viewer user.ID) (int, error)
	Delete(ctx context.Context, id ConversationID) error
}

// TemplateCatalog serves the read-only message template list.
type TemplateCatalog interface {
	Templates(ctx context.Context) ([]Template, error)
}

// Snippet truncates text for last-message previews.
func Snippet(text string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(strings.TrimSpace(text))
	if len(runes) <= max {
		return string(runes)
	}
	return string(runes[:max])
}
