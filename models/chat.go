package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Chat is a named room with a participant set. LatestMessage is a list-view cache, not a source of truth.
type Chat struct {
	ID            primitive.ObjectID   `bson:"_id,omitempty" json:"_id"`
	Name          string               `bson:"name" json:"name"`
	CreatorID     primitive.ObjectID   `bson:"creatorId" json:"creatorId"`
	Participants  []primitive.ObjectID `bson:"participants" json:"participants"`
	IsGroupChat   bool                 `bson:"isGroupChat" json:"isGroupChat"`
	LatestMessage *primitive.ObjectID  `bson:"latestMessage,omitempty" json:"latestMessage,omitempty"`
	// DirectKey is set only on direct chats and is unique, which makes lookup-or-create idempotent.
	DirectKey string    `bson:"directKey,omitempty" json:"-"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`

	members IDSet
}

// HasParticipant reports whether userID belongs to the chat. The participant
// set is built on first use, so Participants must not change after loading.
func (c *Chat) HasParticipant(userID primitive.ObjectID) bool {
	if c.members == nil {
		c.members = NewIDSet(c.Participants...)
	}
	return c.members.Has(userID)
}

// ChatView is a chat with participants and latest message expanded.
type ChatView struct {
	ID            primitive.ObjectID `json:"_id"`
	Name          string             `json:"name"`
	Participants  []UserSummary      `json:"participants"`
	IsGroupChat   bool               `json:"isGroupChat"`
	LatestMessage *MessageView       `json:"latestMessage,omitempty"`
	CreatedAt     time.Time          `json:"createdAt"`
	UpdatedAt     time.Time          `json:"updatedAt"`
}

// ChatWithMessages is the response of GET /chats/{id}.
type ChatWithMessages struct {
	ID           primitive.ObjectID `json:"_id"`
	Name         string             `json:"name"`
	Participants []UserSummary      `json:"participants"`
	IsGroupChat  bool               `json:"isGroupChat"`
	Messages     []MessageView      `json:"messages"`
}

// CreateChatRequest is the body of POST /chats.
type CreateChatRequest struct {
	Name         string   `json:"name"`
	Participants []string `json:"participants"`
}

// LecturerChatRequest is the body of POST /chats/lecturer.
type LecturerChatRequest struct {
	LecturerID string `json:"lecturerId"`
}

// ChatExport is the response of GET /chats/{id}/export.
type ChatExport struct {
	ChatName     string              `json:"chatName"`
	ExportDate   time.Time           `json:"exportDate"`
	ExportedBy   string              `json:"exportedBy"`
	Participants []ExportParticipant `json:"participants"`
	Messages     []ExportMessage     `json:"messages"`
}

type ExportParticipant struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

type ExportMessage struct {
	Sender     string      `json:"sender"`
	Role       Role        `json:"role"`
	Content    string      `json:"content"`
	Attachment *Attachment `json:"attachment,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
}
