package database

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"educhat/backend/models"
	"educhat/backend/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	oldestFirst = bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}
	newestFirst = bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}
)

func (s *Store) InsertMessage(ctx context.Context, msg *models.Message) error {
	res, err := s.messages.InsertOne(ctx, msg)
	if err != nil {
		return mapError(err)
	}
	msg.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

func (s *Store) FindMessagesPage(ctx context.Context, chatID primitive.ObjectID, skip, limit int64) ([]models.Message, error) {
	opts := options.Find().SetSort(newestFirst).SetSkip(skip).SetLimit(limit)
	return s.findMessages(ctx, bson.M{"chat": chatID}, opts)
}

func (s *Store) CountMessages(ctx context.Context, chatID primitive.ObjectID) (int64, error) {
	n, err := s.messages.CountDocuments(ctx, bson.M{"chat": chatID})
	if err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return n, nil
}

func (s *Store) FindChatMessages(ctx context.Context, chatID primitive.ObjectID) ([]models.Message, error) {
	return s.findMessages(ctx, bson.M{"chat": chatID}, options.Find().SetSort(oldestFirst))
}

// SearchMessages treats query as a literal substring, not a pattern.
func (s *Store) SearchMessages(ctx context.Context, chatID primitive.ObjectID, query string) ([]models.Message, error) {
	filter := bson.M{
		"chat":    chatID,
		"content": primitive.Regex{Pattern: regexp.QuoteMeta(query), Options: "i"},
	}
	return s.findMessages(ctx, filter, options.Find().SetSort(oldestFirst))
}

func (s *Store) FindMessagesByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Message, error) {
	return s.findMessages(ctx, bson.M{"_id": bson.M{"$in": ids}}, options.Find())
}

func (s *Store) FindMessageByAttachment(ctx context.Context, fileID primitive.ObjectID) (*models.Message, error) {
	var msg models.Message
	if err := s.messages.FindOne(ctx, bson.M{"attachment.fileId": fileID}).Decode(&msg); err != nil {
		return nil, mapError(err)
	}
	return &msg, nil
}

func (s *Store) findMessages(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Message, error) {
	cursor, err := s.messages.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find messages: %w", err)
	}
	defer cursor.Close(ctx)

	msgs := []models.Message{}
	if err := cursor.All(ctx, &msgs); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}
	return msgs, nil
}

func (s *Store) attachmentIDs(ctx context.Context, chatID primitive.ObjectID) ([]primitive.ObjectID, error) {
	filter := bson.M{"chat": chatID, "attachment": bson.M{"$exists": true}}
	opts := options.Find().SetProjection(bson.M{"attachment.fileId": 1})
	msgs, err := s.findMessages(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	ids := make([]primitive.ObjectID, 0, len(msgs))
	for i := range msgs {
		if msgs[i].Attachment != nil {
			ids = append(ids, msgs[i].Attachment.FileID)
		}
	}
	return ids, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, utils.ErrNotFound) || errors.Is(err, mongo.ErrNoDocuments)
}
