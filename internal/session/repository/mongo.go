package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"chat-cqrs/internal/session/domain"
)

// Collection is the Mongo collection holding sessions.
const Collection = "sessions"

type sessionDocument struct {
	ID                 string    `bson:"_id"`
	HashedSessionToken string    `bson:"hashedSessionToken"`
	UserID             string    `bson:"userId"`
	CreatedAt          time.Time `bson:"createdAt"`
	ExpiresAt          time.Time `bson:"expiresAt"`
	LastAccessedAt     time.Time `bson:"lastAccessedAt"`
	IPAddress          string    `bson:"ipAddress,omitempty"`
	UserAgent          string    `bson:"userAgent,omitempty"`
	Version            int64     `bson:"version"`
}

// MongoRepository implements Repository on a Mongo collection.
type MongoRepository struct {
	coll *mongo.Collection
}

// NewMongoRepository returns a session repository over db's sessions collection.
func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{coll: db.Collection(Collection)}
}

// EnsureIndexes creates the lookup indexes used by the manager and the sweeper.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: 1}}},
		{Keys: bson.D{{Key: "hashedSessionToken", Value: 1}}},
		{Keys: bson.D{{Key: "expiresAt", Value: 1}}},
	})
	return err
}

func (r *MongoRepository) FindByUserID(ctx context.Context, userID string) ([]*domain.Session, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	return r.find(ctx, bson.M{"userId": userID}, opts)
}

// FindByHashedToken returns nil, nil when no session has that hash.
func (r *MongoRepository) FindByHashedToken(ctx context.Context, hashedToken string) (*domain.Session, error) {
	var doc sessionDocument
	err := r.coll.FindOne(ctx, bson.M{"hashedSessionToken": hashedToken}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return docToDomain(&doc), nil
}

func (r *MongoRepository) FindAll(ctx context.Context) ([]*domain.Session, error) {
	return r.find(ctx, bson.M{}, options.Find())
}

func (r *MongoRepository) Save(ctx context.Context, s *domain.Session) error {
	if s.Version == 0 {
		if s.ID == "" {
			s.ID = uuid.New().String()
		}
		doc := domainToDoc(s)
		doc.Version = 1
		if _, err := r.coll.InsertOne(ctx, doc); err != nil {
			return err
		}
		s.Version = 1
		return nil
	}

	doc := domainToDoc(s)
	doc.Version = s.Version + 1
	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": s.ID, "version": s.Version}, doc)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrVersionConflict
	}
	s.Version = doc.Version
	return nil
}

func (r *MongoRepository) Delete(ctx context.Context, id string) error {
	_, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

func (r *MongoRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, bson.M{"expiresAt": bson.M{"$lt": now.UTC()}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (r *MongoRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*domain.Session, error) {
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var docs []sessionDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]*domain.Session, len(docs))
	for i := range docs {
		out[i] = docToDomain(&docs[i])
	}
	return out, nil
}

func docToDomain(d *sessionDocument) *domain.Session {
	return &domain.Session{
		ID:             d.ID,
		HashedToken:    d.HashedSessionToken,
		UserID:         d.UserID,
		CreatedAt:      d.CreatedAt,
		ExpiresAt:      d.ExpiresAt,
		LastAccessedAt: d.LastAccessedAt,
		IPAddress:      d.IPAddress,
		UserAgent:      d.UserAgent,
		Version:        d.Version,
	}
}

func domainToDoc(s *domain.Session) *sessionDocument {
	return &sessionDocument{
		ID:                 s.ID,
		HashedSessionToken: s.HashedToken,
		UserID:             s.UserID,
		CreatedAt:          s.CreatedAt.UTC(),
		ExpiresAt:          s.ExpiresAt.UTC(),
		LastAccessedAt:     s.LastAccessedAt.UTC(),
		IPAddress:          s.IPAddress,
		UserAgent:          s.UserAgent,
		Version:            s.Version,
	}
}
