package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"rentchat/internal/domain/chat"
)

func TestChatStoreGetOrCreateIdempotent(t *testing.T) {
	store := NewChatStore()
	ctx := context.Background()
	key := chat.ConversationKey{ListingID: 10, BuyerID: 1, SellerID: 2}

	first, created, err := store.GetOrCreate(ctx, key, time.Now())
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := store.GetOrCreate(ctx, key, time.Now())
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, first.ID, second.ID)

	summaries, err := store.ListForUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
}

func TestChatStoreGetOrCreateRejectsInvalidKey(t *testing.T) {
	store := NewChatStore()
	ctx := context.Background()

	_, _, err := store.GetOrCreate(ctx, chat.ConversationKey{ListingID: 10, BuyerID: 5, SellerID: 5}, time.Now())
	require.ErrorIs(t, err, chat.ErrSelfConversation)

	_, _, err = store.GetOrCreate(ctx, chat.ConversationKey{BuyerID: 1, SellerID: 2}, time.Now())
	require.ErrorIs(t, err, chat.ErrListingRequired)
}

func TestChatStoreAppendOrderAndPreview(t *testing.T) {
	store := NewChatStore()
	ctx := context.Background()
	conv, _, err := store.GetOrCreate(ctx, chat.ConversationKey{ListingID: 10, BuyerID: 1, SellerID: 2}, time.Now())
	require.NoError(t, err)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, content := range []string{"first", "second", "third"} {
		_, err := store.Append(ctx, conv.ID, chat.NewMessage{SenderID: 1, Kind: chat.KindText, Content: content}, base.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
	}

	msgs, err := store.Messages(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	require.Equal(t, "first", msgs[0].Content)
	require.Equal(t, "third", msgs[2].Content)
	require.True(t, msgs[0].ID < msgs[1].ID && msgs[1].ID < msgs[2].ID)

	stored, err := store.ByID(ctx, conv.ID)
	require.NoError(t, err)
	require.Equal(t, "third", stored.LastMessageText)
	require.Equal(t, base.Add(2*time.Second), stored.LastMessageAt)
}

func TestChatStoreMarkReadAndUnread(t *testing.T) {
	store := NewChatStore()
	ctx := context.Background()
	conv, _, err := store.GetOrCreate(ctx, chat.ConversationKey{ListingID: 10, BuyerID: 1, SellerID: 2}, time.Now())
	require.NoError(t, err)

	_, err = store.Append(ctx, conv.ID, chat.NewMessage{SenderID: 2, Kind: chat.KindText, Content: "hi"}, time.Now())
	require.NoError(t, err)
	_, err = store.Append(ctx, conv.ID, chat.NewMessage{SenderID: 2, Kind: chat.KindText, Content: "there"}, time.Now())
	require.NoError(t, err)
	_, err = store.Append(ctx, conv.ID, chat.NewMessage{SenderID: 1, Kind: chat.KindText, Content: "hello"}, time.Now())
	require.NoError(t, err)

	// the buyer has two unread from the seller; own messages never count
	total, err := store.UnreadTotal(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 2, total)

	summaries, err := store.ListForUser(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 2, summaries[0].UnreadCount)

	marked, err := store.MarkRead(ctx, conv.ID, 1)
	require.NoError(t, err)
	require.Equal(t, 2, marked)

	total, err = store.UnreadTotal(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 0, total)

	// the seller still has one unread from the buyer
	total, err = store.UnreadTotal(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, 1, total)

	// marking again is a no-op
	marked, err = store.MarkRead(ctx, conv.ID, 1)
	require.NoError(t, err)
	require.Equal(t, 0, marked)
}

func TestChatStoreListForUserOrdering(t *testing.T) {
	store := NewChatStore()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	older, _, err := store.GetOrCreate(ctx, chat.ConversationKey{ListingID: 10, BuyerID: 1, SellerID: 2}, base)
	require.NoError(t, err)
	newer, _, err := store.GetOrCreate(ctx, chat.ConversationKey{ListingID: 11, BuyerID: 1, SellerID: 3}, base.Add(time.Minute))
	require.NoError(t, err)

	summaries, err := store.ListForUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	require.Equal(t, newer.ID, summaries[0].Conversation.ID)

	// a message in the older thread bumps it to the top
	_, err = store.Append(ctx, older.ID, chat.NewMessage{SenderID: 2, Kind: chat.KindText, Content: "ping"}, base.Add(2*time.Minute))
	require.NoError(t, err)

	summaries, err = store.ListForUser(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, older.ID, summaries[0].Conversation.ID)
	require.EqualValues(t, 2, summaries[0].CounterpartID)
}

func TestChatStoreDelete(t *testing.T) {
	store := NewChatStore()
	ctx := context.Background()
	key := chat.ConversationKey{ListingID: 10, BuyerID: 1, SellerID: 2}
	conv, _, err := store.GetOrCreate(ctx, key, time.Now())
	require.NoError(t, err)
	_, err = store.Append(ctx, conv.ID, chat.NewMessage{SenderID: 1, Kind: chat.KindText, Content: "bye"}, time.Now())
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, conv.ID))
	require.ErrorIs(t, store.Delete(ctx, conv.ID), chat.ErrConversationNotFound)

	_, err = store.ByID(ctx, conv.ID)
	require.ErrorIs(t, err, chat.ErrConversationNotFound)

	// the key is free again, so recreation yields a fresh id
	again, created, err := store.GetOrCreate(ctx, key, time.Now())
	require.NoError(t, err)
	require.True(t, created)
	require.NotEqual(t, conv.ID, again.ID)

	msgs, err := store.Messages(ctx, again.ID)
	require.NoError(t, err)
	require.Empty(t, msgs)
}
