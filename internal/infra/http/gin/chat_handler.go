package ginserver

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	gin "github.com/gin-gonic/gin"

	"rentchat/internal/app/dto"
	chatsvc "rentchat/internal/app/services/chat"
	domainchat "rentchat/internal/domain/chat"
	domainuser "rentchat/internal/domain/user"
)

// ChatHTTP exposes conversation and message endpoints.
type ChatHTTP interface {
	ListConversations(c *gin.Context)
	CreateConversation(c *gin.Context)
	ListMessages(c *gin.Context)
	SendMessage(c *gin.Context)
	SendImageMessage(c *gin.Context)
	DeleteConversation(c *gin.Context)
	UnreadCount(c *gin.Context)
	Templates(c *gin.Context)
}

type ChatHandler struct {
	Service *chatsvc.Service
	Logger  *slog.Logger
}

type createConversationRequest struct {
	ListingID int64 `json:"listing_id"`
	SellerID  int64 `json:"seller_id"`
}

type sendMessageRequest struct {
	ConversationID int64  `json:"conversation_id"`
	Content        string `json:"content"`
	MessageType    string `json:"message_type"`
}

// ListConversations returns the caller's conversation registry sorted by
// recent activity.
func (h ChatHandler) ListConversations(c *gin.Context) {
	p, ok := requireAuth(c)
	if !ok {
		return
	}
	if h.Service == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "messaging unavailable"})
		return
	}
	summaries, err := h.Service.ListConversations(c.Request.Context(), p.ID)
	if err != nil {
		h.respondChatError(c, err, "list conversations", "user_id", p.ID)
		return
	}
	items := make([]dto.Conversation, 0, len(summaries))
	for _, summary := range summaries {
		items = append(items, dto.NewConversation(summary))
	}
	c.JSON(http.StatusOK, items)
}

// CreateConversation gets or creates the thread for (listing, caller, seller).
func (h ChatHandler) CreateConversation(c *gin.Context) {
	p, ok := requireAuth(c)
	if !ok {
		return
	}
	if h.Service == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "messaging unavailable"})
		return
	}
	var req createConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	conv, created, err := h.Service.StartConversation(c.Request.Context(), p.ID, req.ListingID, domainuser.ID(req.SellerID))
	if err != nil {
		h.respondChatError(c, err, "create conversation", "listing_id", req.ListingID, "user_id", p.ID, "seller_id", req.SellerID)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, dto.NewConversation(domainchat.Summary{Conversation: *conv, CounterpartID: conv.Counterpart(p.ID)}))
}

// ListMessages returns the conversation's messages oldest first and marks
// the counterpart's messages read.
func (h ChatHandler) ListMessages(c *gin.Context) {
	p, ok := requireAuth(c)
	if !ok {
		return
	}
	if h.Service == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "messaging unavailable"})
		return
	}
	id, ok := conversationIDParam(c)
	if !ok {
		return
	}
	messages, err := h.Service.ListMessages(c.Request.Context(), p.ID, id)
	if err != nil {
		h.respondChatError(c, err, "list messages", "conversation_id", id, "user_id", p.ID)
		return
	}
	items := make([]dto.ChatMessage, 0, len(messages))
	for _, msg := range messages {
		items = append(items, dto.NewChatMessage(msg))
	}
	c.JSON(http.StatusOK, items)
}

// SendMessage appends a text message to the conversation.
func (h ChatHandler) SendMessage(c *gin.Context) {
	p, ok := requireAuth(c)
	if !ok {
		return
	}
	if h.Service == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "messaging unavailable"})
		return
	}
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if kind := strings.TrimSpace(req.MessageType); kind != "" && kind != string(domainchat.KindText) {
		c.JSON(http.StatusBadRequest, gin.H{"error": domainchat.ErrInvalidKind.Error()})
		return
	}
	msg, err := h.Service.SendText(c.Request.Context(), p.ID, domainchat.ConversationID(req.ConversationID), req.Content)
	if err != nil {
		h.respondChatError(c, err, "send message", "conversation_id", req.ConversationID, "user_id", p.ID)
		return
	}
	c.JSON(http.StatusCreated, dto.NewChatMessage(*msg))
}

// SendImageMessage accepts a multipart form with conversation_id, optional
// content and one or more images parts.
func (h ChatHandler) SendImageMessage(c *gin.Context) {
	p, ok := requireAuth(c)
	if !ok {
		return
	}
	if h.Service == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "messaging unavailable"})
		return
	}
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart payload"})
		return
	}
	id, err := strconv.ParseInt(strings.TrimSpace(c.PostForm("conversation_id")), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "conversation_id is required"})
		return
	}
	files := form.File["images"]
	images := make([]chatsvc.ImageFile, 0, len(files))
	for _, header := range files {
		file, err := header.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read image"})
			return
		}
		defer file.Close()
		images = append(images, chatsvc.ImageFile{
			Name:        header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Reader:      file,
		})
	}
	msg, err := h.Service.SendImages(c.Request.Context(), p.ID, domainchat.ConversationID(id), c.PostForm("content"), images)
	if err != nil {
		h.respondChatError(c, err, "send image message", "conversation_id", id, "user_id", p.ID)
		return
	}
	c.JSON(http.StatusCreated, dto.NewChatMessage(*msg))
}

// DeleteConversation removes the thread and its messages.
func (h ChatHandler) DeleteConversation(c *gin.Context) {
	p, ok := requireAuth(c)
	if !ok {
		return
	}
	if h.Service == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "messaging unavailable"})
		return
	}
	id, ok := conversationIDParam(c)
	if !ok {
		return
	}
	if err := h.Service.DeleteConversation(c.Request.Context(), p.ID, id); err != nil {
		h.respondChatError(c, err, "delete conversation", "conversation_id", id, "user_id", p.ID)
		return
	}
	c.Status(http.StatusNoContent)
}

// UnreadCount returns the caller's unread total across all conversations.
func (h ChatHandler) UnreadCount(c *gin.Context) {
	p, ok := requireAuth(c)
	if !ok {
		return
	}
	if h.Service == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "messaging unavailable"})
		return
	}
	count, err := h.Service.UnreadCount(c.Request.Context(), p.ID)
	if err != nil {
		h.respondChatError(c, err, "unread count", "user_id", p.ID)
		return
	}
	c.JSON(http.StatusOK, dto.UnreadCount{Count: count})
}

// Templates returns the static send-box template catalog.
func (h ChatHandler) Templates(c *gin.Context) {
	if _, ok := requireAuth(c); !ok {
		return
	}
	if h.Service == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "messaging unavailable"})
		return
	}
	templates, err := h.Service.TemplateCatalog(c.Request.Context())
	if err != nil {
		h.respondChatError(c, err, "list templates")
		return
	}
	items := make([]dto.MessageTemplate, 0, len(templates))
	for _, tpl := range templates {
		items = append(items, dto.NewMessageTemplate(tpl))
	}
	c.JSON(http.StatusOK, items)
}

func (h ChatHandler) respondChatError(c *gin.Context, err error, action string, attrs ...any) {
	switch {
	case errors.Is(err, domainchat.ErrSelfConversation),
		errors.Is(err, domainchat.ErrListingRequired),
		errors.Is(err, domainchat.ErrParticipantsRequired),
		errors.Is(err, domainchat.ErrEmptyContent),
		errors.Is(err, domainchat.ErrInvalidKind):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domainchat.ErrNotParticipant):
		c.JSON(http.StatusForbidden, gin.H{"error": "not a chat participant"})
	case errors.Is(err, domainchat.ErrConversationNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
	case errors.Is(err, chatsvc.ErrCounterpartNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
	case errors.Is(err, chatsvc.ErrStoreUnavailable), errors.Is(err, chatsvc.ErrUploadsUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		if h.Logger != nil {
			h.Logger.Error("chat operation failed", append([]any{"action", action, "error", err}, attrs...)...)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func conversationIDParam(c *gin.Context) (domainchat.ConversationID, bool) {
	raw := strings.TrimSpace(c.Param("id"))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "conversation id is required"})
		return 0, false
	}
	return domainchat.ConversationID(id), true
}

var _ ChatHTTP = (*ChatHandler)(nil)
