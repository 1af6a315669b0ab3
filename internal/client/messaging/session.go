package messaging

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// DefaultPollInterval is how often the current conversation is re-fetched.
const DefaultPollInterval = 10 * time.Second

var ErrNotSignedIn = errors.New("messaging: no credential present")

type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notification is a one-shot user-visible alert.
type Notification struct {
	Title string
	Body  string
	Level Level
}

// Notifier receives user-visible alerts raised by session operations.
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(n Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

// SessionConfig wires a Session.
type SessionConfig struct {
	API          API
	Credentials  CredentialStore
	Notifier     Notifier
	Logger       *slog.Logger
	PollInterval time.Duration
}

// Session owns the client-side messaging state: the conversation registry,
// the currently open conversation with its messages, the template catalog,
// and the unread aggregate. The server stays the source of truth; every
// refresh replaces the owning state slice wholesale instead of merging.
//
// Operations run serially under one mutex, mirroring the cooperative
// single-writer model of an interactive client: a poll tick and a user
// action never interleave, and whichever fetch completes last determines
// the visible state.
type Session struct {
	api      API
	creds    CredentialStore
	notifier Notifier
	logger   *slog.Logger
	interval time.Duration

	mu            sync.Mutex
	conversations []Conversation
	current       *Conversation
	messages      []Message
	templates     []Template
	unread        int
	prevUnread    int
	unreadSeeded  bool
	poll          *poller
}

func NewSession(cfg SessionConfig) *Session {
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		api:      cfg.API,
		creds:    cfg.Credentials,
		notifier: cfg.Notifier,
		logger:   logger,
		interval: interval,
	}
}

// Bootstrap runs the initial session fetch: registry, templates and unread
// aggregate, each exactly once with no retry. Without a stored credential
// nothing is fetched and no error is reported.
func (s *Session) Bootstrap(ctx context.Context) error {
	if s.creds == nil || s.creds.Token() == "" {
		return ErrNotSignedIn
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if convs, err := s.api.Conversations(ctx); err != nil {
		s.logger.Warn("conversation fetch failed", "error", err)
	} else {
		s.conversations = convs
	}
	if templates, err := s.api.Templates(ctx); err != nil {
		s.logger.Warn("template fetch failed", "error", err)
	} else {
		s.templates = templates
	}
	s.observeUnreadLocked(ctx)
	return nil
}

// CreateOrGetConversation returns the conversation id for the (listing,
// seller) pair, creating the thread on first contact. Repeat calls with the
// same pair land on the same id. On failure local state is untouched and the
// server's error message is surfaced.
func (s *Session) CreateOrGetConversation(ctx context.Context, listingID, sellerID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, err := s.api.CreateConversation(ctx, listingID, sellerID)
	if err != nil {
		s.notifyError("Cannot start conversation", err)
		return 0, err
	}
	s.refreshRegistryLocked(ctx)
	return conv.ID, nil
}

// SelectConversation makes the conversation current, replaces the message
// list with a fresh fetch (which also marks it read server-side) and
// restarts the poll loop on it. An id missing from the registry clears the
// current conversation instead of failing.
func (s *Session) SelectConversation(ctx context.Context, conversationID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.registryEntryLocked(conversationID)
	if !ok {
		s.clearCurrentLocked()
		return nil
	}
	s.current = &conv
	s.refreshCurrentLocked(ctx, conversationID)
	s.startPollingLocked(conversationID)
	return nil
}

// SendMessage appends a text message. Empty content is a validation no-op:
// no network call, no state change, no error. On success the message list
// and registry are re-fetched so the view reflects server ordering.
func (s *Session) SendMessage(ctx context.Context, conversationID int64, content, kind string) error {
	if strings.TrimSpace(content) == "" {
		return nil
	}
	if kind == "" {
		kind = "text"
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.api.SendMessage(ctx, conversationID, content, kind); err != nil {
		s.notifyError("Message not sent", err)
		return err
	}
	s.refreshCurrentLocked(ctx, conversationID)
	return nil
}

// SendImageMessage appends an image message. Zero attachments is a
// validation no-op, matching the empty-content rule for text.
func (s *Session) SendImageMessage(ctx context.Context, conversationID int64, content string, images []Attachment) error {
	if len(images) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.api.SendImageMessage(ctx, conversationID, content, images); err != nil {
		s.notifyError("Image not sent", err)
		return err
	}
	s.notify(Notification{Title: "Image sent", Level: LevelSuccess})
	s.refreshCurrentLocked(ctx, conversationID)
	return nil
}

// DeleteConversation removes the thread. When it was current, the current
// conversation and message list are cleared and polling stops. A failed
// delete leaves everything exactly as it was.
func (s *Session) DeleteConversation(ctx context.Context, conversationID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.api.DeleteConversation(ctx, conversationID); err != nil {
		s.notifyError("Cannot delete conversation", err)
		return err
	}
	if s.current != nil && s.current.ID == conversationID {
		s.clearCurrentLocked()
	}
	s.refreshRegistryLocked(ctx)
	return nil
}

// RefreshUnreadCount replaces the unread aggregate with the server's value
// and raises a one-shot alert when it rose since the previous observation.
func (s *Session) RefreshUnreadCount(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.observeUnreadLocked(ctx)
}

// Close stops the poll loop. The session is not usable afterwards.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopPollingLocked()
}

// Conversations returns a snapshot of the registry.
func (s *Session) Conversations() []Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Conversation(nil), s.conversations...)
}

// Current returns the open conversation, or nil.
func (s *Session) Current() *Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	conv := *s.current
	return &conv
}

// Messages returns a snapshot of the open conversation's messages.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.messages...)
}

// Templates returns the template catalog fetched at bootstrap.
func (s *Session) Templates() []Template {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Template(nil), s.templates...)
}

// UnreadCount returns the last observed unread aggregate.
func (s *Session) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread
}

// refreshCurrentLocked re-reads the conversation's messages, then the
// registry, then the unread aggregate, in that order. Failures are logged
// and the stale slice kept; the next tick tries again.
func (s *Session) refreshCurrentLocked(ctx context.Context, conversationID int64) {
	if s.current != nil && s.current.ID == conversationID {
		if msgs, err := s.api.Messages(ctx, conversationID); err != nil {
			s.logger.Warn("message fetch failed", "conversation_id", conversationID, "error", err)
		} else {
			s.messages = msgs
		}
	}
	s.refreshRegistryLocked(ctx)
	s.observeUnreadLocked(ctx)
}

func (s *Session) refreshRegistryLocked(ctx context.Context) {
	convs, err := s.api.Conversations(ctx)
	if err != nil {
		s.logger.Warn("conversation fetch failed", "error", err)
		return
	}
	s.conversations = convs
	if s.current != nil {
		if conv, ok := s.registryEntryLocked(s.current.ID); ok {
			s.current = &conv
		}
	}
}

func (s *Session) observeUnreadLocked(ctx context.Context) error {
	count, err := s.api.UnreadCount(ctx)
	if err != nil {
		s.logger.Warn("unread fetch failed", "error", err)
		return err
	}
	if s.unreadSeeded && count > s.prevUnread {
		s.notify(Notification{Title: "New message", Level: LevelInfo})
	}
	s.unread = count
	s.prevUnread = count
	s.unreadSeeded = true
	return nil
}

func (s *Session) registryEntryLocked(conversationID int64) (Conversation, bool) {
	for _, conv := range s.conversations {
		if conv.ID == conversationID {
			return conv, true
		}
	}
	return Conversation{}, false
}

func (s *Session) clearCurrentLocked() {
	s.current = nil
	s.messages = nil
	s.stopPollingLocked()
}

func (s *Session) notify(n Notification) {
	if s.notifier != nil {
		s.notifier.Notify(n)
	}
}

func (s *Session) notifyError(title string, err error) {
	body := "Something went wrong. Please try again."
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		body = apiErr.Message
	}
	s.notify(Notification{Title: title, Body: body, Level: LevelError})
}
