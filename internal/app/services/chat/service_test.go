package chat_test

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	chatsvc "rentchat/internal/app/services/chat"
	domainchat "rentchat/internal/domain/chat"
	domainuser "rentchat/internal/domain/user"
	"rentchat/internal/infra/storage/memory"
)

type fakeUploader struct {
	keys []string
}

func (f *fakeUploader) Upload(_ context.Context, key string, reader io.Reader, _ string) (string, error) {
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return "", err
	}
	f.keys = append(f.keys, key)
	return "http://cdn.local/" + key, nil
}

func newTestService(t *testing.T) (*chatsvc.Service, *memory.UserRepository) {
	t.Helper()
	users := memory.NewUserRepository()
	svc := &chatsvc.Service{
		Store:     memory.NewChatStore(),
		Templates: memory.NewTemplateCatalog(),
		Users:     users,
	}
	return svc, users
}

func seedUser(t *testing.T, users *memory.UserRepository, name string) domainuser.ID {
	t.Helper()
	u, err := domainuser.NewUser(domainuser.CreateParams{
		Email:        strings.ToLower(name) + "@example.com",
		Name:         name,
		PasswordHash: "x",
	})
	require.NoError(t, err)
	require.NoError(t, users.Create(context.Background(), u))
	return u.ID
}

func TestStartConversationIdempotent(t *testing.T) {
	svc, users := newTestService(t)
	ctx := context.Background()
	buyer := seedUser(t, users, "Alice")
	seller := seedUser(t, users, "Bob")

	first, created, err := svc.StartConversation(ctx, buyer, 10, seller)
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := svc.StartConversation(ctx, buyer, 10, seller)
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, first.ID, second.ID)
}

func TestStartConversationUnknownCounterpart(t *testing.T) {
	svc, users := newTestService(t)
	buyer := seedUser(t, users, "Alice")

	_, _, err := svc.StartConversation(context.Background(), buyer, 10, buyer+100)
	require.ErrorIs(t, err, chatsvc.ErrCounterpartNotFound)
}

func TestListMessagesMarksRead(t *testing.T) {
	svc, users := newTestService(t)
	ctx := context.Background()
	buyer := seedUser(t, users, "Alice")
	seller := seedUser(t, users, "Bob")

	conv, _, err := svc.StartConversation(ctx, buyer, 10, seller)
	require.NoError(t, err)
	_, err = svc.SendText(ctx, buyer, conv.ID, "is this available?")
	require.NoError(t, err)

	count, err := svc.UnreadCount(ctx, seller)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	// fetching for display is what flips the read flags
	msgs, err := svc.ListMessages(ctx, seller, conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	count, err = svc.UnreadCount(ctx, seller)
	require.NoError(t, err)
	require.Equal(t, 0, count)

	// the sender's own view never had unread messages
	count, err = svc.UnreadCount(ctx, buyer)
	require.NoError(t, err)
	require.Equal(t, 0, count)
}

func TestListMessagesRejectsOutsider(t *testing.T) {
	svc, users := newTestService(t)
	ctx := context.Background()
	buyer := seedUser(t, users, "Alice")
	seller := seedUser(t, users, "Bob")
	outsider := seedUser(t, users, "Mallory")

	conv, _, err := svc.StartConversation(ctx, buyer, 10, seller)
	require.NoError(t, err)

	_, err = svc.ListMessages(ctx, outsider, conv.ID)
	require.ErrorIs(t, err, domainchat.ErrNotParticipant)
	_, err = svc.SendText(ctx, outsider, conv.ID, "hi")
	require.ErrorIs(t, err, domainchat.ErrNotParticipant)
	require.ErrorIs(t, svc.DeleteConversation(ctx, outsider, conv.ID), domainchat.ErrNotParticipant)
}

func TestSendTextUpdatesPreview(t *testing.T) {
	svc, users := newTestService(t)
	ctx := context.Background()
	buyer := seedUser(t, users, "Alice")
	seller := seedUser(t, users, "Bob")

	conv, _, err := svc.StartConversation(ctx, buyer, 10, seller)
	require.NoError(t, err)

	_, err = svc.SendText(ctx, buyer, conv.ID, "  hello  ")
	require.NoError(t, err)

	summaries, err := svc.ListConversations(ctx, seller)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	require.Equal(t, "hello", summaries[0].Conversation.LastMessageText)
	require.Equal(t, "Alice", summaries[0].CounterpartName)
	require.Equal(t, 1, summaries[0].UnreadCount)

	_, err = svc.SendText(ctx, buyer, conv.ID, "   ")
	require.ErrorIs(t, err, domainchat.ErrEmptyContent)
}

func TestSendImages(t *testing.T) {
	svc, users := newTestService(t)
	uploader := &fakeUploader{}
	svc.Uploader = uploader
	ctx := context.Background()
	buyer := seedUser(t, users, "Alice")
	seller := seedUser(t, users, "Bob")

	conv, _, err := svc.StartConversation(ctx, buyer, 10, seller)
	require.NoError(t, err)

	msg, err := svc.SendImages(ctx, buyer, conv.ID, "", []chatsvc.ImageFile{
		{Name: "one.png", ContentType: "image/png", Reader: strings.NewReader("png-bytes")},
		{Name: "two.jpg", ContentType: "image/jpeg", Reader: strings.NewReader("jpg-bytes")},
	})
	require.NoError(t, err)
	require.Equal(t, domainchat.KindImage, msg.Kind)
	require.Len(t, msg.ImageURLs, 2)
	require.Len(t, uploader.keys, 2)
	for _, url := range msg.ImageURLs {
		require.Contains(t, url, "http://cdn.local/chat/")
	}
}

func TestSendImagesWithoutUploader(t *testing.T) {
	svc, users := newTestService(t)
	ctx := context.Background()
	buyer := seedUser(t, users, "Alice")
	seller := seedUser(t, users, "Bob")

	conv, _, err := svc.StartConversation(ctx, buyer, 10, seller)
	require.NoError(t, err)

	_, err = svc.SendImages(ctx, buyer, conv.ID, "", nil)
	require.ErrorIs(t, err, chatsvc.ErrUploadsUnavailable)
}

func TestDeleteConversation(t *testing.T) {
	svc, users := newTestService(t)
	ctx := context.Background()
	buyer := seedUser(t, users, "Alice")
	seller := seedUser(t, users, "Bob")

	conv, _, err := svc.StartConversation(ctx, buyer, 10, seller)
	require.NoError(t, err)
	require.NoError(t, svc.DeleteConversation(ctx, buyer, conv.ID))

	summaries, err := svc.ListConversations(ctx, buyer)
	require.NoError(t, err)
	require.Empty(t, summaries)
}

func TestTemplateCatalog(t *testing.T) {
	svc, _ := newTestService(t)
	templates, err := svc.TemplateCatalog(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, templates)

	svc.Templates = nil
	templates, err = svc.TemplateCatalog(context.Background())
	require.NoError(t, err)
	require.Empty(t, templates)
}

func TestUnreadAcrossConversations(t *testing.T) {
	svc, users := newTestService(t)
	ctx := context.Background()
	buyer := seedUser(t, users, "Alice")
	sellerOne := seedUser(t, users, "Bob")
	sellerTwo := seedUser(t, users, "Carol")

	convOne, _, err := svc.StartConversation(ctx, buyer, 10, sellerOne)
	require.NoError(t, err)
	convTwo, _, err := svc.StartConversation(ctx, buyer, 11, sellerTwo)
	require.NoError(t, err)

	_, err = svc.SendText(ctx, sellerOne, convOne.ID, "one")
	require.NoError(t, err)
	_, err = svc.SendText(ctx, sellerTwo, convTwo.ID, "two")
	require.NoError(t, err)
	_, err = svc.SendText(ctx, sellerTwo, convTwo.ID, "three")
	require.NoError(t, err)

	count, err := svc.UnreadCount(ctx, buyer)
	require.NoError(t, err)
	require.Equal(t, 3, count)

	_, err = svc.ListMessages(ctx, buyer, convTwo.ID)
	require.NoError(t, err)

	count, err = svc.UnreadCount(ctx, buyer)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}
