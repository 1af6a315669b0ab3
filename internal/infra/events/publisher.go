package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"rentchat/internal/domain/chat"
)

// Producer is the broker contract the publisher writes to.
type Producer interface {
	Publish(ctx context.Context, topic string, key string, payload []byte, headers map[string]string) error
}

// Publisher emits chat events as CloudEvents JSON envelopes. Publication is
// best-effort: a nil producer disables it and failures only log.
type Publisher struct {
	Producer    Producer
	TopicPrefix string
	Source      string
	Logger      *slog.Logger
}

func (p *Publisher) MessageSent(ctx context.Context, evt chat.MessageSentEvent) {
	if p == nil || p.Producer == nil {
		return
	}
	payload, err := p.envelope(chat.EventMessageSent, evt)
	if err != nil {
		p.logError("encode message sent event", err)
		return
	}
	key := strconv.FormatInt(int64(evt.ConversationID), 10)
	headers := map[string]string{"content-type": "application/cloudevents+json"}
	if err := p.Producer.Publish(ctx, p.topic(), key, payload, headers); err != nil {
		p.logError("publish message sent event", err)
	}
}

func (p *Publisher) envelope(name string, data any) ([]byte, error) {
	evt := map[string]any{
		"specversion":     "1.0",
		"id":              uuid.NewString(),
		"type":            name + ".v1",
		"source":          p.source(),
		"time":            time.Now().UTC(),
		"datacontenttype": "application/json",
		"data":            data,
	}
	return json.Marshal(evt)
}

func (p *Publisher) topic() string {
	topic := "chat.events.v1"
	if p.TopicPrefix != "" {
		topic = p.TopicPrefix + topic
	}
	return topic
}

func (p *Publisher) source() string {
	if p.Source != "" {
		return p.Source
	}
	return "app://rentchat"
}

func (p *Publisher) logError(msg string, err error) {
	if p.Logger != nil {
		p.Logger.Warn(msg, "error", err)
	}
}
