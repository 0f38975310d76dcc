package services

import (
	"context"
	"errors"
	"fmt"

	"educhat/backend/models"
	"educhat/backend/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const unknownUserName = "Unknown user"

var (
	errChatNotFound   = utils.NewError(utils.ErrNotFound, "Chat not found")
	errNotParticipant = utils.NewError(utils.ErrForbidden, "Not authorized to access this chat")
)

// participantChat loads a chat and checks that userID belongs to it.
// NotFound takes precedence over Forbidden.
func participantChat(ctx context.Context, chats ChatStore, chatIDHex string, userID primitive.ObjectID) (*models.Chat, error) {
	chatID, err := primitive.ObjectIDFromHex(chatIDHex)
	if err != nil {
		// a malformed id can never name an existing chat
		return nil, errChatNotFound
	}
	chat, err := chats.FindChatByID(ctx, chatID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, errChatNotFound
		}
		return nil, fmt.Errorf("find chat %s: %w", chatIDHex, err)
	}
	if !chat.HasParticipant(userID) {
		return nil, errNotParticipant
	}
	return chat, nil
}

// summaries loads users by id and indexes their public projection.
func summaries(ctx context.Context, users UserStore, ids []primitive.ObjectID) (map[primitive.ObjectID]models.UserSummary, error) {
	out := make(map[primitive.ObjectID]models.UserSummary, len(ids))
	ids = models.Dedupe(ids)
	if len(ids) == 0 {
		return out, nil
	}
	found, err := users.FindUsersByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	for i := range found {
		out[found[i].ID] = found[i].Summary()
	}
	return out, nil
}

func summaryOrUnknown(index map[primitive.ObjectID]models.UserSummary, id primitive.ObjectID) models.UserSummary {
	if s, ok := index[id]; ok {
		return s
	}
	return models.UserSummary{ID: id, Name: unknownUserName}
}

// expandMessages attaches sender summaries, keeping input order.
func expandMessages(ctx context.Context, users UserStore, msgs []models.Message) ([]models.MessageView, error) {
	senderIDs := make([]primitive.ObjectID, 0, len(msgs))
	for i := range msgs {
		senderIDs = append(senderIDs, msgs[i].SenderID)
	}
	index, err := summaries(ctx, users, senderIDs)
	if err != nil {
		return nil, err
	}

	views := make([]models.MessageView, 0, len(msgs))
	for i := range msgs {
		views = append(views, models.NewMessageView(msgs[i], summaryOrUnknown(index, msgs[i].SenderID)))
	}
	return views, nil
}

func participantSummaries(index map[primitive.ObjectID]models.UserSummary, ids []primitive.ObjectID) []models.UserSummary {
	out := make([]models.UserSummary, 0, len(ids))
	for _, id := range ids {
		out = append(out, summaryOrUnknown(index, id))
	}
	return out
}
