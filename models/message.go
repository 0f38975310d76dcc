package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Message is immutable once stored.
type Message struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	SenderID   primitive.ObjectID `bson:"sender" json:"sender"`
	ChatID     primitive.ObjectID `bson:"chat" json:"chat"`
	Content    string             `bson:"content" json:"content"`
	Attachment *Attachment        `bson:"attachment,omitempty" json:"attachment,omitempty"`
	CreatedAt  time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Attachment references a file kept in GridFS.
type Attachment struct {
	FileID      primitive.ObjectID `bson:"fileId" json:"fileId"`
	Filename    string             `bson:"filename" json:"filename"`
	ContentType string             `bson:"contentType" json:"contentType"`
	Size        int64              `bson:"size" json:"size"`
}

// MessageView is a message with its sender expanded. It is what REST and the realtime channel deliver.
type MessageView struct {
	ID         primitive.ObjectID `json:"_id"`
	Sender     UserSummary        `json:"sender"`
	ChatID     primitive.ObjectID `json:"chat"`
	Content    string             `json:"content"`
	Attachment *Attachment        `json:"attachment,omitempty"`
	CreatedAt  time.Time          `json:"createdAt"`
	UpdatedAt  time.Time          `json:"updatedAt"`
}

// NewMessageView joins a message with its sender summary.
func NewMessageView(m Message, sender UserSummary) MessageView {
	return MessageView{
		ID:         m.ID,
		Sender:     sender,
		ChatID:     m.ChatID,
		Content:    m.Content,
		Attachment: m.Attachment,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

// SendMessageRequest is the JSON body of POST /chats/{id}/messages and the
// payload of the send_message socket event.
type SendMessageRequest struct {
	ChatID  string `json:"chatId,omitempty"`
	Content string `json:"content"`
}

// MessagePage is the response of GET /chats/{id}/messages.
type MessagePage struct {
	Messages   []MessageView `json:"messages"`
	Pagination Pagination    `json:"pagination"`
}

// SearchResult is the response of GET /chats/{id}/messages/search.
type SearchResult struct {
	Query   string        `json:"query"`
	Results []MessageView `json:"results"`
	Count   int           `json:"count"`
}
