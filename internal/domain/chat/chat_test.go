package chat

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConversationKeyValidate(t *testing.T) {
	valid := ConversationKey{ListingID: 10, BuyerID: 1, SellerID: 2}
	require.NoError(t, valid.Validate())

	require.ErrorIs(t, ConversationKey{BuyerID: 1, SellerID: 2}.Validate(), ErrListingRequired)
	require.ErrorIs(t, ConversationKey{ListingID: 10, SellerID: 2}.Validate(), ErrParticipantsRequired)
	require.ErrorIs(t, ConversationKey{ListingID: 10, BuyerID: 1}.Validate(), ErrParticipantsRequired)
	require.ErrorIs(t, ConversationKey{ListingID: 10, BuyerID: 7, SellerID: 7}.Validate(), ErrSelfConversation)
}

func TestNewMessageValidate(t *testing.T) {
	require.NoError(t, NewMessage{SenderID: 1, Kind: KindText, Content: "hello"}.Validate())
	require.ErrorIs(t, NewMessage{Kind: KindText, Content: "hello"}.Validate(), ErrSenderRequired)
	require.ErrorIs(t, NewMessage{SenderID: 1, Kind: KindText, Content: "   "}.Validate(), ErrEmptyContent)
	require.ErrorIs(t, NewMessage{SenderID: 1, Kind: Kind("voice"), Content: "x"}.Validate(), ErrInvalidKind)

	// image messages may carry no text at all
	require.NoError(t, NewMessage{SenderID: 1, Kind: KindImage, ImageURLs: []string{"http://img/1.png"}}.Validate())
}

func TestConversationParticipants(t *testing.T) {
	conv := Conversation{ID: 1, ListingID: 10, BuyerID: 1, SellerID: 2}

	require.True(t, conv.HasParticipant(1))
	require.True(t, conv.HasParticipant(2))
	require.False(t, conv.HasParticipant(3))
	require.False(t, conv.HasParticipant(0))

	require.EqualValues(t, 2, conv.Counterpart(1))
	require.EqualValues(t, 1, conv.Counterpart(2))
}

func TestSnippet(t *testing.T) {
	require.Equal(t, "hello", Snippet("  hello  ", 20))
	require.Equal(t, "he", Snippet("hello", 2))
	require.Equal(t, "", Snippet("hello", 0))
	// rune-aware truncation
	require.Equal(t, "привет", Snippet("привет, как дела", 6))
}
