package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"chat-cqrs/internal/activity/domain"
)

// Collection is the Mongo collection holding activity logs.
const Collection = "activity_logs"

type entryDocument struct {
	IPAddress     string    `bson:"ipAddress"`
	UserAgent     string    `bson:"userAgent"`
	Successful    bool      `bson:"successful"`
	Timestamp     time.Time `bson:"timestamp"`
	FailureReason *string   `bson:"failureReason"`
	Action        string    `bson:"action"`
}

type logDocument struct {
	ID      string          `bson:"_id"`
	UserID  string          `bson:"userId"`
	Logs    []entryDocument `bson:"logs"`
	Version int64           `bson:"version"`
}

// MongoRepository keeps one activity log document per user and guards writes with its version field.
type MongoRepository struct {
	coll *mongo.Collection
}

// NewMongoRepository returns an activity log repository over db's activity_logs collection.
func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{coll: db.Collection(Collection)}
}

// EnsureIndexes creates the unique per-user index.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "userId", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

func (r *MongoRepository) FindByUserID(ctx context.Context, userID string) (*domain.ActivityLog, error) {
	var doc logDocument
	if err := r.coll.FindOne(ctx, bson.M{"userId": userID}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &domain.ActivityLog{
		ID:      doc.ID,
		UserID:  doc.UserID,
		Logs:    entriesToDomain(doc.Logs),
		Version: doc.Version,
	}, nil
}

func (r *MongoRepository) Save(ctx context.Context, l *domain.ActivityLog) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	doc := logDocument{ID: l.ID, UserID: l.UserID, Logs: entriesToDoc(l.Logs), Version: l.Version + 1}
	if l.Version == 0 {
		if _, err := r.coll.InsertOne(ctx, doc); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return domain.ErrVersionConflict
			}
			return err
		}
		l.Version = doc.Version
		return nil
	}
	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": l.ID, "version": l.Version}, doc)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrVersionConflict
	}
	l.Version = doc.Version
	return nil
}

func (r *MongoRepository) Page(ctx context.Context, userID string, offset, limit int) ([]domain.Entry, error) {
	opts := options.FindOne().SetProjection(bson.M{"logs": bson.M{"$slice": bson.A{offset, limit}}})
	var doc logDocument
	if err := r.coll.FindOne(ctx, bson.M{"userId": userID}, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return entriesToDomain(doc.Logs), nil
}

func (r *MongoRepository) Count(ctx context.Context, userID string) (int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"userId": userID}}},
		{{Key: "$project", Value: bson.M{"total": bson.M{"$size": bson.M{"$ifNull": bson.A{"$logs", bson.A{}}}}}}},
	}
	cur, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, err
	}
	defer cur.Close(ctx)
	var rows []struct {
		Total int64 `bson:"total"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].Total, nil
}

func entriesToDomain(docs []entryDocument) []domain.Entry {
	out := make([]domain.Entry, len(docs))
	for i, d := range docs {
		out[i] = domain.Entry{
			IPAddress:     d.IPAddress,
			UserAgent:     d.UserAgent,
			Successful:    d.Successful,
			Timestamp:     d.Timestamp,
			FailureReason: d.FailureReason,
			Action:        domain.Action(d.Action),
		}
	}
	return out
}

func entriesToDoc(entries []domain.Entry) []entryDocument {
	out := make([]entryDocument, len(entries))
	for i, e := range entries {
		out[i] = entryDocument{
			IPAddress:     e.IPAddress,
			UserAgent:     e.UserAgent,
			Successful:    e.Successful,
			Timestamp:     e.Timestamp.UTC(),
			FailureReason: e.FailureReason,
			Action:        string(e.Action),
		}
	}
	return out
}
