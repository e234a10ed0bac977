// Package mongostore keeps settings as documents in a MongoDB collection,
// one document per key with the key as _id.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"paymanager/internal/settings"
)

const opTimeout = 5 * time.Second

type document struct {
	Key   string `bson:"_id"`
	Value string `bson:"value"`
}

type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// Connect dials uri and verifies the connection with a ping.
func Connect(ctx context.Context, uri, database, collection string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return &Store{client: client, coll: client.Database(database).Collection(collection)}, nil
}

// New wraps an existing collection. Close is then a no-op.
func New(coll *mongo.Collection) *Store {
	return &Store{coll: coll}
}

func (s *Store) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}

func (s *Store) Init(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.Ping(ctx)
}

func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return s.coll.Database().Client().Ping(ctx, readpref.Primary())
}

func (s *Store) Create(ctx context.Context, key, value string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	_, err := s.coll.InsertOne(ctx, document{Key: key, Value: value})
	if mongo.IsDuplicateKeyError(err) {
		return settings.ErrDuplicateKey
	}
	if err != nil {
		return fmt.Errorf("insert %s: %w", key, err)
	}
	return nil
}

func (s *Store) Save(ctx context.Context, key, value string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": key}, document{Key: key, Value: value}, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert %s: %w", key, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	var doc document
	err := s.coll.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", settings.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("find %s: %w", key, err)
	}
	return doc.Value, nil
}

func (s *Store) GetAll(ctx context.Context) ([]settings.Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	cur, err := s.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find all: %w", err)
	}
	var docs []document
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode all: %w", err)
	}
	out := make([]settings.Entry, 0, len(docs))
	for _, d := range docs {
		out = append(out, settings.Entry{Key: d.Key, Value: d.Value})
	}
	return out, nil
}

func (s *Store) Update(ctx context.Context, key, value string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": key}, bson.M{"$set": bson.M{"value": value}})
	if err != nil {
		return fmt.Errorf("update %s: %w", key, err)
	}
	if res.MatchedCount == 0 {
		return settings.ErrNotFound
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": key})
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	if res.DeletedCount == 0 {
		return settings.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteAll(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if _, err := s.coll.DeleteMany(ctx, bson.M{}); err != nil {
		return fmt.Errorf("delete all: %w", err)
	}
	return nil
}

var _ settings.Store = (*Store)(nil)
