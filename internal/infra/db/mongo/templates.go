package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"rentchat/internal/domain/chat"
)

const templatesCollection = "message_templates"

// TemplateStore serves the message template catalog from Mongo.
type TemplateStore struct {
	collection *mongo.Collection
}

func NewTemplateStore(client *Client) *TemplateStore {
	return &TemplateStore{collection: client.DB.Collection(templatesCollection)}
}

type templateDocument struct {
	ID       int64  `bson:"_id"`
	Text     string `bson:"text"`
	Category string `bson:"category"`
}

func (s *TemplateStore) Templates(ctx context.Context) ([]chat.Template, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cursor, err := s.collection.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo: find templates: %w", err)
	}
	defer cursor.Close(ctx)

	templates := make([]chat.Template, 0)
	for cursor.Next(ctx) {
		var doc templateDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("mongo: decode template: %w", err)
		}
		templates = append(templates, chat.Template{
			ID:       doc.ID,
			Text:     doc.Text,
			Category: doc.Category,
		})
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("mongo: iterate templates: %w", err)
	}
	return templates, nil
}

// Seed inserts the provided catalog when the collection is empty.
func (s *TemplateStore) Seed(ctx context.Context, templates []chat.Template) error {
	count, err := s.collection.CountDocuments(ctx, bson.D{})
	if err != nil {
		return fmt.Errorf("mongo: count templates: %w", err)
	}
	if count > 0 || len(templates) == 0 {
		return nil
	}
	docs := make([]interface{}, 0, len(templates))
	for _, tpl := range templates {
		docs = append(docs, templateDocument{
			ID:       tpl.ID,
			Text:     tpl.Text,
			Category: tpl.Category,
		})
	}
	if _, err := s.collection.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("mongo: seed templates: %w", err)
	}
	return nil
}

var _ chat.TemplateCatalog = (*TemplateStore)(nil)
