package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"chat-cqrs/internal/message/domain"
)

// Collection is the Mongo collection holding messages.
const Collection = "messages"

type messageDocument struct {
	ID             string    `bson:"_id"`
	ThreadID       string    `bson:"threadId"`
	SenderID       string    `bson:"senderId"`
	SenderUsername string    `bson:"senderUsername"`
	Content        string    `bson:"content"`
	Timestamp      time.Time `bson:"timestamp"`
	Status         string    `bson:"status"`
}

// MongoRepository stores messages in the messages collection, one document per message.
type MongoRepository struct {
	coll *mongo.Collection
}

// NewMongoRepository returns a message repository over db's messages collection.
func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{coll: db.Collection(Collection)}
}

// EnsureIndexes creates the thread index used by conversation queries.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "threadId", Value: 1}, {Key: "timestamp", Value: 1}},
	})
	return err
}

func (r *MongoRepository) FindByThreadID(ctx context.Context, threadID string, offset, limit int) ([]*domain.Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}, {Key: "_id", Value: 1}})
	if offset > 0 {
		opts.SetSkip(int64(offset))
	}
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := r.coll.Find(ctx, bson.M{"threadId": threadID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var docs []messageDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]*domain.Message, len(docs))
	for i, d := range docs {
		out[i] = &domain.Message{
			ID:             d.ID,
			ThreadID:       d.ThreadID,
			SenderID:       d.SenderID,
			SenderUsername: d.SenderUsername,
			Content:        d.Content,
			Timestamp:      d.Timestamp,
			Status:         domain.Status(d.Status),
		}
	}
	return out, nil
}

func (r *MongoRepository) CountByThreadID(ctx context.Context, threadID string) (int64, error) {
	return r.coll.CountDocuments(ctx, bson.M{"threadId": threadID})
}

func (r *MongoRepository) Save(ctx context.Context, m *domain.Message) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	_, err := r.coll.InsertOne(ctx, messageDocument{
		ID:             m.ID,
		ThreadID:       m.ThreadID,
		SenderID:       m.SenderID,
		SenderUsername: m.SenderUsername,
		Content:        m.Content,
		Timestamp:      m.Timestamp.UTC(),
		Status:         string(m.Status),
	})
	return err
}
