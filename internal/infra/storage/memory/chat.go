package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"rentchat/internal/domain/chat"
	"rentchat/internal/domain/user"
)

const previewLimit = 500

// ChatStore keeps conversations and messages in memory. It is the store used
// by tests and the default dev server.
type ChatStore struct {
	mu            sync.RWMutex
	nextConvID    chat.ConversationID
	nextMessageID chat.MessageID
	conversations map[chat.ConversationID]*chat.Conversation
	byKey         map[chat.ConversationKey]chat.ConversationID
	messages      map[chat.ConversationID][]chat.Message
}

func NewChatStore() *ChatStore {
	return &ChatStore{
		nextConvID:    1,
		nextMessageID: 1,
		conversations: make(map[chat.ConversationID]*chat.Conversation),
		byKey:         make(map[chat.ConversationKey]chat.ConversationID),
		messages:      make(map[chat.ConversationID][]chat.Message),
	}
}

func (s *ChatStore) GetOrCreate(ctx context.Context, key chat.ConversationKey, now time.Time) (*chat.Conversation, bool, error) {
	if err := key.Validate(); err != nil {
		return nil, false, err
	}
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byKey[key]; ok {
		return cloneConversation(s.conversations[id]), false, nil
	}
	conv := &chat.Conversation{
		ID:        s.nextConvID,
		ListingID: key.ListingID,
		BuyerID:   key.BuyerID,
		SellerID:  key.SellerID,
		CreatedAt: now,
	}
	s.nextConvID++
	s.conversations[conv.ID] = conv
	s.byKey[key] = conv.ID
	s.messages[conv.ID] = nil
	return cloneConversation(conv), true, nil
}

func (s *ChatStore) ByID(ctx context.Context, id chat.ConversationID) (*chat.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.conversations[id]
	if !ok {
		return nil, chat.ErrConversationNotFound
	}
	return cloneConversation(conv), nil
}

func (s *ChatStore) ListForUser(ctx context.Context, viewer user.ID) ([]chat.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	summaries := make([]chat.Summary, 0)
	for id, conv := range s.conversations {
		if !conv.HasParticipant(viewer) {
			continue
		}
		unread := 0
		for _, msg := range s.messages[id] {
			if msg.SenderID != viewer && !msg.Read {
				unread++
			}
		}
		summaries = append(summaries, chat.Summary{
			Conversation:  *cloneConversation(conv),
			CounterpartID: conv.Counterpart(viewer),
			UnreadCount:   unread,
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		return lastActivity(summaries[i].Conversation).After(lastActivity(summaries[j].Conversation))
	})
	return summaries, nil
}

func (s *ChatStore) Messages(ctx context.Context, id chat.ConversationID) ([]chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs, ok := s.messages[id]
	if !ok {
		if _, exists := s.conversations[id]; !exists {
			return nil, chat.ErrConversationNotFound
		}
	}
	out := make([]chat.Message, len(msgs))
	copy(out, msgs)
	for i := range out {
		out[i].ImageURLs = append([]string(nil), out[i].ImageURLs...)
	}
	return out, nil
}

func (s *ChatStore) Append(ctx context.Context, id chat.ConversationID, msg chat.NewMessage, now time.Time) (*chat.Message, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[id]
	if !ok {
		return nil, chat.ErrConversationNotFound
	}
	stored := chat.Message{
		ID:             s.nextMessageID,
		ConversationID: id,
		SenderID:       msg.SenderID,
		Kind:           msg.Kind,
		Content:        msg.Content,
		ImageURLs:      append([]string(nil), msg.ImageURLs...),
		CreatedAt:      now,
	}
	s.nextMessageID++
	s.messages[id] = append(s.messages[id], stored)
	conv.LastMessageText = chat.Snippet(msg.Content, previewLimit)
	conv.LastMessageAt = now
	out := stored
	out.ImageURLs = append([]string(nil), stored.ImageURLs...)
	return &out, nil
}

func (s *ChatStore) MarkRead(ctx context.Context, id chat.ConversationID, viewer user.ID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversations[id]; !ok {
		return 0, chat.ErrConversationNotFound
	}
	marked := 0
	msgs := s.messages[id]
	for i := range msgs {
		if msgs[i].SenderID != viewer && !msgs[i].Read {
			msgs[i].Read = true
			marked++
		}
	}
	return marked, nil
}

func (s *ChatStore) UnreadTotal(ctx context.Context, viewer user.ID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for id, conv := range s.conversations {
		if !conv.HasParticipant(viewer) {
			continue
		}
		for _, msg := range s.messages[id] {
			if msg.SenderID != viewer && !msg.Read {
				total++
			}
		}
	}
	return total, nil
}

func (s *ChatStore) Delete(ctx context.Context, id chat.ConversationID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[id]
	if !ok {
		return chat.ErrConversationNotFound
	}
	delete(s.byKey, conv.Key())
	delete(s.conversations, id)
	delete(s.messages, id)
	return nil
}

func cloneConversation(conv *chat.Conversation) *chat.Conversation {
	if conv == nil {
		return nil
	}
	out := *conv
	return &out
}

func lastActivity(conv chat.Conversation) time.Time {
	if !conv.LastMessageAt.IsZero() {
		return conv.LastMessageAt
	}
	return conv.CreatedAt
}

var _ chat.Store = (*ChatStore)(nil)

// TemplateCatalog serves a fixed template list when Mongo is not configured.
type TemplateCatalog struct {
	Items []chat.Template
}

func NewTemplateCatalog() *TemplateCatalog {
	return &TemplateCatalog{Items: DefaultTemplates()}
}

func (c *TemplateCatalog) Templates(ctx context.Context) ([]chat.Template, error) {
	out := make([]chat.Template, len(c.Items))
	copy(out, c.Items)
	return out, nil
}

// DefaultTemplates is the seed catalog shared with the Mongo store.
func DefaultTemplates() []chat.Template {
	return []chat.Template{
		{ID: 1, Text: "Hi! Is this still available?", Category: "availability"},
		{ID: 2, Text: "What dates is it available for?", Category: "availability"},
		{ID: 3, Text: "Would you consider a lower price?", Category: "pricing"},
		{ID: 4, Text: "Is the price negotiable for a longer rental?", Category: "pricing"},
		{ID: 5, Text: "Can I pick it up today?", Category: "logistics"},
		{ID: 6, Text: "Where can I collect it?", Category: "logistics"},
	}
}

var _ chat.TemplateCatalog = (*TemplateCatalog)(nil)
