package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	domainchat "rentchat/internal/domain/chat"
	domainuser "rentchat/internal/domain/user"
	"rentchat/internal/infra/events"
	"rentchat/internal/infra/storage/s3"
)

var (
	ErrStoreUnavailable    = errors.New("chat: store unavailable")
	ErrUploadsUnavailable  = errors.New("chat: image uploads unavailable")
	ErrCounterpartNotFound = errors.New("chat: counterpart not found")
)

// ImageFile is an uploaded attachment about to be stored.
type ImageFile struct {
	Name        string
	ContentType string
	Reader      io.Reader
}

// Service implements the server-side conversation and message operations.
type Service struct {
	Store     domainchat.Store
	Templates domainchat.TemplateCatalog
	Users     domainuser.Repository
	Uploader  s3.Uploader
	Events    *events.Publisher
	Logger    *slog.Logger
	Now       func() time.Time
}

// StartConversation returns the conversation for (listing, buyer, seller),
// creating it when absent. Creation is idempotent per triple.
func (s *Service) StartConversation(ctx context.Context, buyer domainuser.ID, listingID int64, seller domainuser.ID) (*domainchat.Conversation, bool, error) {
	if s.Store == nil {
		return nil, false, ErrStoreUnavailable
	}
	key := domainchat.ConversationKey{ListingID: listingID, BuyerID: buyer, SellerID: seller}
	if err := key.Validate(); err != nil {
		return nil, false, err
	}
	if s.Users != nil {
		if _, err := s.Users.ByID(ctx, seller); err != nil {
			if errors.Is(err, domainuser.ErrNotFound) {
				return nil, false, ErrCounterpartNotFound
			}
			return nil, false, err
		}
	}
	conv, created, err := s.Store.GetOrCreate(ctx, key, s.now())
	if err != nil {
		return nil, false, err
	}
	if created && s.Logger != nil {
		s.Logger.Info("conversation created", "conversation_id", conv.ID, "listing_id", listingID, "buyer_id", buyer, "seller_id", seller)
	}
	return conv, created, nil
}

// ListConversations returns the viewer's registry entries with counterpart
// names resolved.
func (s *Service) ListConversations(ctx context.Context, viewer domainuser.ID) ([]domainchat.Summary, error) {
	if s.Store == nil {
		return nil, ErrStoreUnavailable
	}
	summaries, err := s.Store.ListForUser(ctx, viewer)
	if err != nil {
		return nil, err
	}
	for i := range summaries {
		summaries[i].CounterpartName = s.userName(ctx, summaries[i].CounterpartID)
	}
	return summaries, nil
}

// ListMessages returns the ordered message list for a participant and marks
// the counterpart's unread messages read. Fetch-for-display and read-state
// mutation are deliberately coupled; there is no separate acknowledgment
// call.
func (s *Service) ListMessages(ctx context.Context, viewer domainuser.ID, id domainchat.ConversationID) ([]domainchat.Message, error) {
	conv, err := s.participantConversation(ctx, viewer, id)
	if err != nil {
		return nil, err
	}
	marked, err := s.Store.MarkRead(ctx, conv.ID, viewer)
	if err != nil {
		return nil, err
	}
	if marked > 0 && s.Logger != nil {
		s.Logger.Debug("messages marked read", "conversation_id", conv.ID, "viewer_id", viewer, "count", marked)
	}
	return s.Store.Messages(ctx, conv.ID)
}

// SendText appends a text message and publishes a message-sent event.
func (s *Service) SendText(ctx context.Context, sender domainuser.ID, id domainchat.ConversationID, content string) (*domainchat.Message, error) {
	conv, err := s.participantConversation(ctx, sender, id)
	if err != nil {
		return nil, err
	}
	msg, err := s.Store.Append(ctx, conv.ID, domainchat.NewMessage{
		SenderID: sender,
		Kind:     domainchat.KindText,
		Content:  strings.TrimSpace(content),
	}, s.now())
	if err != nil {
		return nil, err
	}
	s.Events.MessageSent(ctx, domainchat.NewMessageSentEvent(conv, msg))
	return msg, nil
}

// SendImages uploads the attachments and appends an image message carrying
// their URLs in upload order.
func (s *Service) SendImages(ctx context.Context, sender domainuser.ID, id domainchat.ConversationID, content string, images []ImageFile) (*domainchat.Message, error) {
	conv, err := s.participantConversation(ctx, sender, id)
	if err != nil {
		return nil, err
	}
	if s.Uploader == nil {
		return nil, ErrUploadsUnavailable
	}
	urls := make([]string, 0, len(images))
	for _, img := range images {
		key := fmt.Sprintf("chat/%d/%s%s", conv.ID, uuid.NewString(), path.Ext(img.Name))
		url, err := s.Uploader.Upload(ctx, key, img.Reader, img.ContentType)
		if err != nil {
			return nil, fmt.Errorf("upload image: %w", err)
		}
		urls = append(urls, url)
	}
	msg, err := s.Store.Append(ctx, conv.ID, domainchat.NewMessage{
		SenderID:  sender,
		Kind:      domainchat.KindImage,
		Content:   strings.TrimSpace(content),
		ImageURLs: urls,
	}, s.now())
	if err != nil {
		return nil, err
	}
	s.Events.MessageSent(ctx, domainchat.NewMessageSentEvent(conv, msg))
	return msg, nil
}

// UnreadCount returns the authoritative unread total for a user.
func (s *Service) UnreadCount(ctx context.Context, viewer domainuser.ID) (int, error) {
	if s.Store == nil {
		return 0, ErrStoreUnavailable
	}
	return s.Store.UnreadTotal(ctx, viewer)
}

// DeleteConversation removes a conversation and its messages for a participant.
func (s *Service) DeleteConversation(ctx context.Context, viewer domainuser.ID, id domainchat.ConversationID) error {
	conv, err := s.participantConversation(ctx, viewer, id)
	if err != nil {
		return err
	}
	if err := s.Store.Delete(ctx, conv.ID); err != nil {
		return err
	}
	if s.Logger != nil {
		s.Logger.Info("conversation deleted", "conversation_id", conv.ID, "user_id", viewer)
	}
	return nil
}

// TemplateCatalog returns the static template list, empty when no catalog is
// configured.
func (s *Service) TemplateCatalog(ctx context.Context) ([]domainchat.Template, error) {
	if s.Templates == nil {
		return []domainchat.Template{}, nil
	}
	return s.Templates.Templates(ctx)
}

func (s *Service) participantConversation(ctx context.Context, viewer domainuser.ID, id domainchat.ConversationID) (*domainchat.Conversation, error) {
	if s.Store == nil {
		return nil, ErrStoreUnavailable
	}
	conv, err := s.Store.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(viewer) {
		return nil, domainchat.ErrNotParticipant
	}
	return conv, nil
}

func (s *Service) userName(ctx context.Context, id domainuser.ID) string {
	if s.Users == nil {
		return ""
	}
	u, err := s.Users.ByID(ctx, id)
	if err != nil {
		return ""
	}
	return u.Name
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
