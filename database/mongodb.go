package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"educhat/backend/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	usersCollection    = "users"
	chatsCollection    = "chats"
	messagesCollection = "messages"
	attachmentsBucket  = "attachments"
)

// ConnectMongoDB opens a client for uri and pings the primary.
func ConnectMongoDB(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping MongoDB: %w", err)
	}
	return client, nil
}

// DisconnectMongoDB closes client, logging instead of failing.
func DisconnectMongoDB(client *mongo.Client, log *slog.Logger) {
	if client == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Disconnect(ctx); err != nil {
		log.Error("error disconnecting from MongoDB", slog.Any("error", err))
		return
	}
	log.Info("disconnected from MongoDB")
}

// Store implements the service persistence ports on one MongoDB database.
type Store struct {
	db       *mongo.Database
	users    *mongo.Collection
	chats    *mongo.Collection
	messages *mongo.Collection
	files    *gridfs.Bucket
	now      func() time.Time
}

func NewStore(db *mongo.Database) (*Store, error) {
	bucket, err := gridfs.NewBucket(db, options.GridFSBucket().SetName(attachmentsBucket))
	if err != nil {
		return nil, fmt.Errorf("open attachments bucket: %w", err)
	}
	return &Store{
		db:       db,
		users:    db.Collection(usersCollection),
		chats:    db.Collection(chatsCollection),
		messages: db.Collection(messagesCollection),
		files:    bucket,
		now:      time.Now,
	}, nil
}

// EnsureIndexes creates the indexes the queries and uniqueness rules rely on.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	specs := []struct {
		coll   *mongo.Collection
		models []mongo.IndexModel
	}{
		{s.users, []mongo.IndexModel{
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "role", Value: 1}}},
		}},
		{s.chats, []mongo.IndexModel{
			{Keys: bson.D{{Key: "participants", Value: 1}, {Key: "updatedAt", Value: -1}}},
			// only direct chats carry a key
			{Keys: bson.D{{Key: "directKey", Value: 1}}, Options: options.Index().SetUnique(true).SetSparse(true)},
		}},
		{s.messages, []mongo.IndexModel{
			{Keys: bson.D{{Key: "chat", Value: 1}, {Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}},
			{Keys: bson.D{{Key: "attachment.fileId", Value: 1}}, Options: options.Index().SetSparse(true)},
		}},
	}
	for _, spec := range specs {
		if _, err := spec.coll.Indexes().CreateMany(ctx, spec.models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", spec.coll.Name(), err)
		}
	}
	return nil
}

// mapError translates driver errors into the service error kinds.
func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments), errors.Is(err, gridfs.ErrFileNotFound):
		return fmt.Errorf("%w: %v", utils.ErrNotFound, err)
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", utils.ErrConflict, err)
	default:
		return err
	}
}
