package database

import (
	"context"
	"fmt"

	"educhat/backend/models"
	"educhat/backend/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (s *Store) InsertChat(ctx context.Context, chat *models.Chat) error {
	res, err := s.chats.InsertOne(ctx, chat)
	if err != nil {
		return mapError(err)
	}
	chat.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

func (s *Store) FindChatByID(ctx context.Context, id primitive.ObjectID) (*models.Chat, error) {
	var chat models.Chat
	if err := s.chats.FindOne(ctx, bson.M{"_id": id}).Decode(&chat); err != nil {
		return nil, mapError(err)
	}
	return &chat, nil
}

func (s *Store) FindChatByDirectKey(ctx context.Context, key string) (*models.Chat, error) {
	var chat models.Chat
	if err := s.chats.FindOne(ctx, bson.M{"directKey": key}).Decode(&chat); err != nil {
		return nil, mapError(err)
	}
	return &chat, nil
}

// FindChatsByParticipant returns the user's chats, most recently active first.
func (s *Store) FindChatsByParticipant(ctx context.Context, userID primitive.ObjectID) ([]models.Chat, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updatedAt", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := s.chats.Find(ctx, bson.M{"participants": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("find chats: %w", err)
	}
	defer cursor.Close(ctx)

	chats := []models.Chat{}
	if err := cursor.All(ctx, &chats); err != nil {
		return nil, fmt.Errorf("decode chats: %w", err)
	}
	return chats, nil
}

func (s *Store) AddParticipant(ctx context.Context, chatID, userID primitive.ObjectID) error {
	res, err := s.chats.UpdateOne(ctx, bson.M{"_id": chatID}, bson.M{
		"$addToSet": bson.M{"participants": userID},
		"$set":      bson.M{"updatedAt": s.now().UTC()},
	})
	if err != nil {
		return mapError(err)
	}
	if res.MatchedCount == 0 {
		return utils.ErrNotFound
	}
	return nil
}

func (s *Store) SetLatestMessage(ctx context.Context, chatID, messageID primitive.ObjectID) error {
	res, err := s.chats.UpdateOne(ctx, bson.M{"_id": chatID}, bson.M{
		"$set": bson.M{"latestMessage": messageID, "updatedAt": s.now().UTC()},
	})
	if err != nil {
		return mapError(err)
	}
	if res.MatchedCount == 0 {
		return utils.ErrNotFound
	}
	return nil
}

// DeleteChat removes the chat, its messages and their attachments.
func (s *Store) DeleteChat(ctx context.Context, chatID primitive.ObjectID) error {
	res, err := s.chats.DeleteOne(ctx, bson.M{"_id": chatID})
	if err != nil {
		return mapError(err)
	}
	if res.DeletedCount == 0 {
		return utils.ErrNotFound
	}

	fileIDs, err := s.attachmentIDs(ctx, chatID)
	if err != nil {
		return err
	}
	if _, err := s.messages.DeleteMany(ctx, bson.M{"chat": chatID}); err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}
	for _, id := range fileIDs {
		if err := s.DeleteFile(ctx, id); err != nil && !isNotFound(err) {
			return fmt.Errorf("delete attachment %s: %w", id.Hex(), err)
		}
	}
	return nil
}
