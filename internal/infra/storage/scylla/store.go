package scylla

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/gocql/gocql"

	"rentchat/internal/domain/chat"
	"rentchat/internal/domain/user"
)

const previewLimit = 500

var errSessionNotInitialized = errors.New("scylla: session not initialized")

// Store implements the chat store on top of ScyllaDB. Ids are derived from
// the creation timestamp so clustering order matches creation order.
type Store struct {
	session *gocql.Session
	logger  *slog.Logger
}

func NewStore(session *gocql.Session, logger *slog.Logger) *Store {
	return &Store{session: session, logger: logger}
}

func (s *Store) GetOrCreate(ctx context.Context, key chat.ConversationKey, now time.Time) (*chat.Conversation, bool, error) {
	if s.session == nil {
		return nil, false, errSessionNotInitialized
	}
	if err := key.Validate(); err != nil {
		return nil, false, err
	}
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()
	id := now.UnixNano()

	previous := make(map[string]interface{})
	applied, err := s.session.
		Query(`INSERT INTO conversations_by_key (listing_id, buyer_id, seller_id, conversation_id) VALUES (?, ?, ?, ?) IF NOT EXISTS`,
			key.ListingID, int64(key.BuyerID), int64(key.SellerID), id).
		WithContext(ctx).
		MapScanCAS(previous)
	if err != nil {
		return nil, false, err
	}
	if !applied {
		existing, ok := previous["conversation_id"].(int64)
		if !ok {
			return nil, false, chat.ErrConversationNotFound
		}
		conv, err := s.ByID(ctx, chat.ConversationID(existing))
		if err != nil {
			return nil, false, err
		}
		return conv, false, nil
	}

	if err := s.session.
		Query(`INSERT INTO conversations (id, listing_id, buyer_id, seller_id, created_at, last_message_at, last_message_text) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			id, key.ListingID, int64(key.BuyerID), int64(key.SellerID), now, time.Time{}, "").
		WithContext(ctx).
		Consistency(gocql.Quorum).
		Exec(); err != nil {
		return nil, false, err
	}
	return &chat.Conversation{
		ID:        chat.ConversationID(id),
		ListingID: key.ListingID,
		BuyerID:   key.BuyerID,
		SellerID:  key.SellerID,
		CreatedAt: now,
	}, true, nil
}

func (s *Store) ByID(ctx context.Context, id chat.ConversationID) (*chat.Conversation, error) {
	if s.session == nil {
		return nil, errSessionNotInitialized
	}
	var (
		listingID       int64
		buyerID         int64
		sellerID        int64
		createdAt       time.Time
		lastMessageAt   time.Time
		lastMessageText string
	)
	if err := s.session.
		Query(`SELECT listing_id, buyer_id, seller_id, created_at, last_message_at, last_message_text FROM conversations WHERE id = ? LIMIT 1`, int64(id)).
		WithContext(ctx).
		Consistency(gocql.One).
		Scan(&listingID, &buyerID, &sellerID, &createdAt, &lastMessageAt, &lastMessageText); err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return nil, chat.ErrConversationNotFound
		}
		return nil, err
	}
	return &chat.Conversation{
		ID:              id,
		ListingID:       listingID,
		BuyerID:         user.ID(buyerID),
		SellerID:        user.ID(sellerID),
		LastMessageText: lastMessageText,
		LastMessageAt:   lastMessageAt,
		CreatedAt:       createdAt,
	}, nil
}

func (s *Store) ListForUser(ctx context.Context, viewer user.ID) ([]chat.Summary, error) {
	if s.session == nil {
		return nil, errSessionNotInitialized
	}
	seen := make(map[chat.ConversationID]struct{})
	summaries := make([]chat.Summary, 0)
	for _, column := range []string{"buyer_id", "seller_id"} {
		iter := s.session.
			Query(`SELECT id, listing_id, buyer_id, seller_id, created_at, last_message_at, last_message_text FROM conversations WHERE `+column+` = ? ALLOW FILTERING`, int64(viewer)).
			WithContext(ctx).
			Consistency(gocql.One).
			Iter()
		var (
			id              int64
			listingID       int64
			buyerID         int64
			sellerID        int64
			createdAt       time.Time
			lastMessageAt   time.Time
			lastMessageText string
		)
		for iter.Scan(&id, &listingID, &buyerID, &sellerID, &createdAt, &lastMessageAt, &lastMessageText) {
			convID := chat.ConversationID(id)
			if _, ok := seen[convID]; ok {
				continue
			}
			seen[convID] = struct{}{}
			conv := chat.Conversation{
				ID:              convID,
				ListingID:       listingID,
				BuyerID:         user.ID(buyerID),
				SellerID:        user.ID(sellerID),
				LastMessageText: lastMessageText,
				LastMessageAt:   lastMessageAt,
				CreatedAt:       createdAt,
			}
			unread, err := s.unreadCount(ctx, convID, viewer)
			if err != nil {
				iter.Close()
				return nil, err
			}
			summaries = append(summaries, chat.Summary{
				Conversation:  conv,
				CounterpartID: conv.Counterpart(viewer),
				UnreadCount:   unread,
			})
		}
		if err := iter.Close(); err != nil {
			return nil, err
		}
	}
	sort.Slice(summaries, func(i, j int) bool {
		return lastActivity(summaries[i].Conversation).After(lastActivity(summaries[j].Conversation))
	})
	return summaries, nil
}

func (s *Store) Messages(ctx context.Context, id chat.ConversationID) ([]chat.Message, error) {
	if s.session == nil {
		return nil, errSessionNotInitialized
	}
	if _, err := s.ByID(ctx, id); err != nil {
		return nil, err
	}
	iter := s.session.
		Query(`SELECT message_id, sender_id, kind, content, image_urls, read, created_at FROM messages WHERE conversation_id = ?`, int64(id)).
		WithContext(ctx).
		Consistency(gocql.One).
		Iter()
	messages := make([]chat.Message, 0)
	var (
		messageID int64
		senderID  int64
		kind      string
		content   string
		imageURLs []string
		read      bool
		createdAt time.Time
	)
	for iter.Scan(&messageID, &senderID, &kind, &content, &imageURLs, &read, &createdAt) {
		messages = append(messages, chat.Message{
			ID:             chat.MessageID(messageID),
			ConversationID: id,
			SenderID:       user.ID(senderID),
			Kind:           chat.Kind(kind),
			Content:        content,
			ImageURLs:      append([]string(nil), imageURLs...),
			Read:           read,
			CreatedAt:      createdAt,
		})
		imageURLs = nil
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}
	return messages, nil
}

func (s *Store) Append(ctx context.Context, id chat.ConversationID, msg chat.NewMessage, now time.Time) (*chat.Message, error) {
	if s.session == nil {
		return nil, errSessionNotInitialized
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.ByID(ctx, id); err != nil {
		return nil, err
	}
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()
	messageID := now.UnixNano()

	if err := s.session.
		Query(`INSERT INTO messages (conversation_id, message_id, sender_id, kind, content, image_urls, read, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			int64(id), messageID, int64(msg.SenderID), string(msg.Kind), msg.Content, msg.ImageURLs, false, now).
		WithContext(ctx).
		Consistency(gocql.Quorum).
		Exec(); err != nil {
		return nil, err
	}
	// best-effort update of the denormalized preview
	if err := s.session.
		Query(`UPDATE conversations SET last_message_at = ?, last_message_text = ? WHERE id = ?`,
			now, chat.Snippet(msg.Content, previewLimit), int64(id)).
		WithContext(ctx).
		Consistency(gocql.One).
		Exec(); err != nil && s.logger != nil {
		s.logger.Warn("failed to update last message meta", "error", err, "conversation_id", id)
	}
	return &chat.Message{
		ID:             chat.MessageID(messageID),
		ConversationID: id,
		SenderID:       msg.SenderID,
		Kind:           msg.Kind,
		Content:        msg.Content,
		ImageURLs:      append([]string(nil), msg.ImageURLs...),
		CreatedAt:      now,
	}, nil
}

func (s *Store) MarkRead(ctx context.Context, id chat.ConversationID, viewer user.ID) (int, error) {
	if s.session == nil {
		return 0, errSessionNotInitialized
	}
	iter := s.session.
		Query(`SELECT message_id, sender_id, read FROM messages WHERE conversation_id = ?`, int64(id)).
		WithContext(ctx).
		Consistency(gocql.One).
		Iter()
	var (
		messageID int64
		senderID  int64
		read      bool
		pending   []int64
	)
	for iter.Scan(&messageID, &senderID, &read) {
		if user.ID(senderID) != viewer && !read {
			pending = append(pending, messageID)
		}
	}
	if err := iter.Close(); err != nil {
		return 0, err
	}
	for _, mid := range pending {
		if err := s.session.
			Query(`UPDATE messages SET read = true WHERE conversation_id = ? AND message_id = ?`, int64(id), mid).
			WithContext(ctx).
			Consistency(gocql.Quorum).
			Exec(); err != nil {
			return 0, err
		}
	}
	return len(pending), nil
}

func (s *Store) UnreadTotal(ctx context.Context, viewer user.ID) (int, error) {
	summaries, err := s.ListForUser(ctx, viewer)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, summary := range summaries {
		total += summary.UnreadCount
	}
	return total, nil
}

func (s *Store) Delete(ctx context.Context, id chat.ConversationID) error {
	if s.session == nil {
		return errSessionNotInitialized
	}
	conv, err := s.ByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.session.
		Query(`DELETE FROM messages WHERE conversation_id = ?`, int64(id)).
		WithContext(ctx).
		Consistency(gocql.Quorum).
		Exec(); err != nil {
		return err
	}
	if err := s.session.
		Query(`DELETE FROM conversations_by_key WHERE listing_id = ? AND buyer_id = ? AND seller_id = ?`,
			conv.ListingID, int64(conv.BuyerID), int64(conv.SellerID)).
		WithContext(ctx).
		Consistency(gocql.Quorum).
		Exec(); err != nil {
		return err
	}
	return s.session.
		Query(`DELETE FROM conversations WHERE id = ?`, int64(id)).
		WithContext(ctx).
		Consistency(gocql.Quorum).
		Exec()
}

func (s *Store) unreadCount(ctx context.Context, id chat.ConversationID, viewer user.ID) (int, error) {
	iter := s.session.
		Query(`SELECT sender_id, read FROM messages WHERE conversation_id = ?`, int64(id)).
		WithContext(ctx).
		Consistency(gocql.One).
		Iter()
	var (
		senderID int64
		read     bool
		count    int
	)
	for iter.Scan(&senderID, &read) {
		if user.ID(senderID) != viewer && !read {
			count++
		}
	}
	if err := iter.Close(); err != nil {
		return 0, err
	}
	return count, nil
}

func lastActivity(conv chat.Conversation) time.Time {
	if !conv.LastMessageAt.IsZero() {
		return conv.LastMessageAt
	}
	return conv.CreatedAt
}

var _ chat.Store = (*Store)(nil)
