package services

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"educhat/backend/models"
	"educhat/backend/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// EventNewMessage is the realtime event carrying a persisted message.
const EventNewMessage = models.EventNewMessage

const sendLockStripes = 64

// Upload is a file attached to a message send.
type Upload struct {
	Filename    string
	ContentType string
	Reader      io.Reader
}

// MessageService implements sending, paging and searching messages.
type MessageService struct {
	chats       ChatStore
	messages    MessageStore
	users       UserStore
	files       FileStore
	broadcaster Broadcaster
	log         *slog.Logger
	now         func() time.Time

	// sendLocks serializes persist+broadcast per chat so room delivery order matches storage order.
	sendLocks [sendLockStripes]sync.Mutex
}

func NewMessageService(chats ChatStore, messages MessageStore, users UserStore, files FileStore, broadcaster Broadcaster, log *slog.Logger) *MessageService {
	return &MessageService{
		chats:       chats,
		messages:    messages,
		users:       users,
		files:       files,
		broadcaster: broadcaster,
		log:         log.With(slog.String("component", "message_service")),
		now:         time.Now,
	}
}

func (s *MessageService) lockFor(chatID primitive.ObjectID) *sync.Mutex {
	h := fnv.New32a()
	h.Write(chatID[:])
	return &s.sendLocks[h.Sum32()%sendLockStripes]
}

// Send persists a message from sender into the chat and broadcasts it to the chat room.
// Broadcast failures are logged and never fail the send.
func (s *MessageService) Send(ctx context.Context, sender *models.User, chatIDHex, content string, upload *Upload) (*models.MessageView, error) {
	const op = "services.message.send"

	chat, err := participantChat(ctx, s.chats, chatIDHex, sender.ID)
	if err != nil {
		if errors.Is(err, utils.ErrForbidden) {
			return nil, utils.NewError(utils.ErrForbidden, "Not authorized to send messages in this chat")
		}
		return nil, err
	}

	content = strings.TrimSpace(content)
	if content == "" && upload == nil {
		return nil, utils.NewError(utils.ErrInvalidArgument, "Message content is required")
	}

	var attachment *models.Attachment
	if upload != nil {
		if s.files == nil {
			return nil, utils.NewError(utils.ErrInvalidArgument, "File uploads are not supported")
		}
		attachment, err = s.files.SaveFile(ctx, upload.Filename, upload.ContentType, upload.Reader)
		if err != nil {
			return nil, fmt.Errorf("%s: save attachment: %w", op, err)
		}
	}

	lock := s.lockFor(chat.ID)
	lock.Lock()
	defer lock.Unlock()

	now := s.now().UTC()
	msg := &models.Message{
		SenderID:   sender.ID,
		ChatID:     chat.ID,
		Content:    content,
		Attachment: attachment,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.messages.InsertMessage(ctx, msg); err != nil {
		if attachment != nil {
			s.discardAttachment(attachment.FileID)
		}
		return nil, fmt.Errorf("%s: insert message: %w", op, err)
	}

	if err := s.chats.SetLatestMessage(ctx, chat.ID, msg.ID); err != nil {
		// the pointer is a list-view cache; the message itself is already durable
		s.log.Warn("failed to update latest message",
			slog.String("op", op),
			slog.String("chat_id", chat.ID.Hex()),
			slog.Any("error", err),
		)
	}

	view := models.NewMessageView(*msg, sender.Summary())
	if s.broadcaster != nil {
		if err := s.broadcaster.BroadcastToRoom(chat.ID.Hex(), EventNewMessage, view); err != nil {
			s.log.Warn("broadcast failed",
				slog.String("op", op),
				slog.String("chat_id", chat.ID.Hex()),
				slog.Any("error", err),
			)
		}
	}
	return &view, nil
}

func (s *MessageService) discardAttachment(fileID primitive.ObjectID) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.files.DeleteFile(ctx, fileID); err != nil {
		s.log.Warn("failed to delete orphaned attachment", slog.String("file_id", fileID.Hex()), slog.Any("error", err))
	}
}

// List returns one page of a chat's messages. Pages are counted from the newest
// message; each page is returned oldest first.
func (s *MessageService) List(ctx context.Context, user *models.User, chatIDHex string, page, size int) (*models.MessagePage, error) {
	chat, err := participantChat(ctx, s.chats, chatIDHex, user.ID)
	if err != nil {
		if errors.Is(err, utils.ErrForbidden) {
			return nil, utils.NewError(utils.ErrForbidden, "Not authorized to access this chat's messages")
		}
		return nil, err
	}

	page, size = models.NormalizePage(page, size)
	total, err := s.messages.CountMessages(ctx, chat.ID)
	if err != nil {
		return nil, fmt.Errorf("count messages: %w", err)
	}
	pagination := models.NewPagination(page, size, total)
	// past the last page; also keeps the skip below from overflowing
	if page > pagination.Pages {
		return &models.MessagePage{Messages: []models.MessageView{}, Pagination: pagination}, nil
	}

	msgs, err := s.messages.FindMessagesPage(ctx, chat.ID, models.Skip(page, size), int64(size))
	if err != nil {
		return nil, fmt.Errorf("find messages: %w", err)
	}

	views, err := expandMessages(ctx, s.users, models.ReverseMessages(msgs))
	if err != nil {
		return nil, err
	}
	return &models.MessagePage{Messages: views, Pagination: pagination}, nil
}

// Search returns every message of the chat containing query, ignoring case, oldest first.
func (s *MessageService) Search(ctx context.Context, user *models.User, chatIDHex, query string) (*models.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, utils.NewError(utils.ErrInvalidArgument, "Search query is required")
	}
	chat, err := participantChat(ctx, s.chats, chatIDHex, user.ID)
	if err != nil {
		return nil, err
	}

	msgs, err := s.messages.SearchMessages(ctx, chat.ID, query)
	if err != nil {
		return nil, fmt.Errorf("search messages: %w", err)
	}
	views, err := expandMessages(ctx, s.users, msgs)
	if err != nil {
		return nil, err
	}
	return &models.SearchResult{Query: query, Results: views, Count: len(views)}, nil
}

// OpenAttachment streams a file to a participant of the chat it was posted in.
func (s *MessageService) OpenAttachment(ctx context.Context, user *models.User, fileIDHex string) (io.ReadCloser, *models.Attachment, error) {
	errFileNotFound := utils.NewError(utils.ErrNotFound, "File not found")

	fileID, err := primitive.ObjectIDFromHex(fileIDHex)
	if err != nil || s.files == nil {
		return nil, nil, errFileNotFound
	}
	msg, err := s.messages.FindMessageByAttachment(ctx, fileID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, nil, errFileNotFound
		}
		return nil, nil, fmt.Errorf("find attachment owner: %w", err)
	}
	if _, err := participantChat(ctx, s.chats, msg.ChatID.Hex(), user.ID); err != nil {
		return nil, nil, err
	}

	rc, err := s.files.OpenFile(ctx, fileID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, nil, errFileNotFound
		}
		return nil, nil, fmt.Errorf("open attachment: %w", err)
	}
	return rc, msg.Attachment, nil
}
