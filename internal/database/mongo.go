package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"pairboard/pkg/types"
)

const sessionsCollection = "sessions"

// Connect opens a MongoDB client and verifies connectivity before returning.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}
	return client, nil
}

type mongoSessionStore struct {
	collection *mongo.Collection
	client     *mongo.Client
}

// NewMongoSessionStore creates a SessionStore backed by the given database.
func NewMongoSessionStore(client *mongo.Client, dbName string) SessionStore {
	return &mongoSessionStore{
		collection: client.Database(dbName).Collection(sessionsCollection),
		client:     client,
	}
}

func (s *mongoSessionStore) Create(ctx context.Context, session *types.Session) error {
	_, err := s.collection.InsertOne(ctx, session)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

func (s *mongoSessionStore) GetByID(ctx context.Context, id string) (*types.Session, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *mongoSessionStore) GetByRoomID(ctx context.Context, roomID string) (*types.Session, error) {
	return s.findOne(ctx, bson.M{"roomId": roomID})
}

func (s *mongoSessionStore) findOne(ctx context.Context, filter bson.M) (*types.Session, error) {
	var session types.Session
	err := s.collection.FindOne(ctx, filter).Decode(&session)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	return &session, nil
}

func (s *mongoSessionStore) Update(ctx context.Context, session *types.Session) error {
	res, err := s.collection.ReplaceOne(ctx, bson.M{"_id": session.ID}, session)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("session %s not found for update", session.ID)
	}
	return nil
}

func (s *mongoSessionStore) ListActive(ctx context.Context, limit int64) ([]*types.Session, error) {
	filter := bson.M{"status": types.StatusActive}
	return s.find(ctx, filter, limit)
}

func (s *mongoSessionStore) ListCompletedFor(ctx context.Context, identity string, limit int64) ([]*types.Session, error) {
	filter := bson.M{
		"status": types.StatusCompleted,
		"$or": bson.A{
			bson.M{"host": identity},
			bson.M{"participant": identity},
		},
	}
	return s.find(ctx, filter, limit)
}

func (s *mongoSessionStore) find(ctx context.Context, filter bson.M, limit int64) ([]*types.Session, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(limit)

	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer cursor.Close(ctx)

	sessions := make([]*types.Session, 0)
	for cursor.Next(ctx) {
		var session types.Session
		if err := cursor.Decode(&session); err != nil {
			return nil, fmt.Errorf("failed to decode session: %w", err)
		}
		sessions = append(sessions, &session)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("session cursor error: %w", err)
	}
	return sessions, nil
}

func (s *mongoSessionStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}
