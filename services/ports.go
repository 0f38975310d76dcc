package services

//go:generate mockgen -source=ports.go -destination=mocks/mock_ports.go -package=mocks

import (
	"context"
	"io"
	"time"

	"educhat/backend/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserStore persists users. Missing documents are reported as utils.ErrNotFound.
type UserStore interface {
	InsertUser(ctx context.Context, user *models.User) error
	FindUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	FindUsersByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	SearchLecturers(ctx context.Context, query string) ([]models.User, error)
}

// ChatStore persists chats. InsertChat reports a duplicate direct chat as utils.ErrConflict.
type ChatStore interface {
	InsertChat(ctx context.Context, chat *models.Chat) error
	FindChatByID(ctx context.Context, id primitive.ObjectID) (*models.Chat, error)
	FindChatByDirectKey(ctx context.Context, key string) (*models.Chat, error)
	FindChatsByParticipant(ctx context.Context, userID primitive.ObjectID) ([]models.Chat, error)
	AddParticipant(ctx context.Context, chatID, userID primitive.ObjectID) error
	SetLatestMessage(ctx context.Context, chatID, messageID primitive.ObjectID) error
	DeleteChat(ctx context.Context, chatID primitive.ObjectID) error
}

// MessageStore persists messages, which are never updated.
type MessageStore interface {
	InsertMessage(ctx context.Context, msg *models.Message) error
	// FindMessagesPage returns newest-first messages of a chat after skipping skip of them.
	FindMessagesPage(ctx context.Context, chatID primitive.ObjectID, skip, limit int64) ([]models.Message, error)
	CountMessages(ctx context.Context, chatID primitive.ObjectID) (int64, error)
	// FindChatMessages returns every message of a chat, oldest first.
	FindChatMessages(ctx context.Context, chatID primitive.ObjectID) ([]models.Message, error)
	// SearchMessages returns oldest-first messages whose content contains query, ignoring case.
	SearchMessages(ctx context.Context, chatID primitive.ObjectID, query string) ([]models.Message, error)
	FindMessagesByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Message, error)
	FindMessageByAttachment(ctx context.Context, fileID primitive.ObjectID) (*models.Message, error)
}

// FileStore keeps message attachments.
type FileStore interface {
	SaveFile(ctx context.Context, filename, contentType string, r io.Reader) (*models.Attachment, error)
	OpenFile(ctx context.Context, fileID primitive.ObjectID) (io.ReadCloser, error)
	DeleteFile(ctx context.Context, fileID primitive.ObjectID) error
}

// OTPStore keeps short-lived registration codes keyed by email.
type OTPStore interface {
	SaveCode(ctx context.Context, email, code string, ttl time.Duration) error
	GetCode(ctx context.Context, email string) (string, error)
	DeleteCode(ctx context.Context, email string) error
}

// Mailer delivers verification codes.
type Mailer interface {
	SendVerificationCode(ctx context.Context, email, code string) error
}

// Broadcaster fans an event out to every connection joined to room.
type Broadcaster interface {
	BroadcastToRoom(room, event string, payload any) error
}
