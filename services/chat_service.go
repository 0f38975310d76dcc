package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"educhat/backend/models"
	"educhat/backend/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ChatService implements chat lifecycle and read operations.
type ChatService struct {
	chats    ChatStore
	messages MessageStore
	users    UserStore
	log      *slog.Logger
	now      func() time.Time
}

func NewChatService(chats ChatStore, messages MessageStore, users UserStore, log *slog.Logger) *ChatService {
	return &ChatService{
		chats:    chats,
		messages: messages,
		users:    users,
		log:      log.With(slog.String("component", "chat_service")),
		now:      time.Now,
	}
}

// ListChats returns the chats user participates in, with participants and latest message expanded.
func (s *ChatService) ListChats(ctx context.Context, user *models.User) ([]models.ChatView, error) {
	chats, err := s.chats.FindChatsByParticipant(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	return s.expandChats(ctx, chats)
}

func (s *ChatService) expandChats(ctx context.Context, chats []models.Chat) ([]models.ChatView, error) {
	var userIDs, latestIDs []primitive.ObjectID
	for i := range chats {
		userIDs = append(userIDs, chats[i].Participants...)
		if chats[i].LatestMessage != nil {
			latestIDs = append(latestIDs, *chats[i].LatestMessage)
		}
	}

	latest := make(map[primitive.ObjectID]models.Message, len(latestIDs))
	if len(latestIDs) > 0 {
		msgs, err := s.messages.FindMessagesByIDs(ctx, latestIDs)
		if err != nil {
			return nil, fmt.Errorf("load latest messages: %w", err)
		}
		for i := range msgs {
			latest[msgs[i].ID] = msgs[i]
			userIDs = append(userIDs, msgs[i].SenderID)
		}
	}

	index, err := summaries(ctx, s.users, userIDs)
	if err != nil {
		return nil, err
	}

	views := make([]models.ChatView, 0, len(chats))
	for i := range chats {
		c := &chats[i]
		view := models.ChatView{
			ID:           c.ID,
			Name:         c.Name,
			Participants: participantSummaries(index, c.Participants),
			IsGroupChat:  c.IsGroupChat,
			CreatedAt:    c.CreatedAt,
			UpdatedAt:    c.UpdatedAt,
		}
		if c.LatestMessage != nil {
			if m, ok := latest[*c.LatestMessage]; ok {
				mv := models.NewMessageView(m, summaryOrUnknown(index, m.SenderID))
				view.LatestMessage = &mv
			}
		}
		views = append(views, view)
	}
	return views, nil
}

// CreateChat creates a chat named name whose participants are ids plus the creator.
func (s *ChatService) CreateChat(ctx context.Context, creator *models.User, req models.CreateChatRequest) (*models.ChatView, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" || req.Participants == nil {
		return nil, utils.NewError(utils.ErrInvalidArgument, "Invalid chat data")
	}

	ids := make([]primitive.ObjectID, 0, len(req.Participants)+1)
	for _, hex := range req.Participants {
		id, err := utils.ParseObjectID("participant ID", hex)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	ids = models.Dedupe(append(ids, creator.ID))

	found, err := s.users.FindUsersByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load participants: %w", err)
	}
	if len(found) != len(ids) {
		return nil, utils.NewError(utils.ErrInvalidArgument, "Unknown participant")
	}

	now := s.now().UTC()
	chat := &models.Chat{
		Name:         name,
		CreatorID:    creator.ID,
		Participants: ids,
		IsGroupChat:  len(ids) > 2,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.chats.InsertChat(ctx, chat); err != nil {
		return nil, fmt.Errorf("insert chat: %w", err)
	}
	s.log.Info("chat created", slog.String("chat_id", chat.ID.Hex()), slog.Int("participants", len(ids)))

	views, err := s.expandChats(ctx, []models.Chat{*chat})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// CreateLecturerChat returns the direct chat between student and lecturer, creating it on first use.
// The second return value reports whether a new chat was created.
func (s *ChatService) CreateLecturerChat(ctx context.Context, student *models.User, lecturerIDHex string) (*models.ChatView, bool, error) {
	if lecturerIDHex == "" {
		return nil, false, utils.NewError(utils.ErrInvalidArgument, "Lecturer ID is required")
	}
	lecturerID, err := utils.ParseObjectID("lecturer ID", lecturerIDHex)
	if err != nil {
		return nil, false, err
	}
	if lecturerID == student.ID {
		return nil, false, utils.NewError(utils.ErrInvalidArgument, "Cannot start a chat with yourself")
	}

	lecturer, err := s.users.FindUserByID(ctx, lecturerID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, false, utils.NewError(utils.ErrNotFound, "Lecturer not found")
		}
		return nil, false, fmt.Errorf("find lecturer: %w", err)
	}
	if lecturer.Role != models.RoleLecturer {
		return nil, false, utils.NewError(utils.ErrInvalidArgument, "User is not a lecturer")
	}

	key := utils.DirectKey(student.ID, lecturer.ID)
	chat, err := s.chats.FindChatByDirectKey(ctx, key)
	created := false
	switch {
	case err == nil:
	case errors.Is(err, utils.ErrNotFound):
		chat, created, err = s.insertDirectChat(ctx, student, lecturer, key)
		if err != nil {
			return nil, false, err
		}
	default:
		return nil, false, fmt.Errorf("find direct chat: %w", err)
	}

	views, err := s.expandChats(ctx, []models.Chat{*chat})
	if err != nil {
		return nil, false, err
	}
	return &views[0], created, nil
}

func (s *ChatService) insertDirectChat(ctx context.Context, student, lecturer *models.User, key string) (*models.Chat, bool, error) {
	now := s.now().UTC()
	chat := &models.Chat{
		Name:         student.Name + " & " + lecturer.Name,
		CreatorID:    student.ID,
		Participants: []primitive.ObjectID{student.ID, lecturer.ID},
		IsGroupChat:  false,
		DirectKey:    key,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err := s.chats.InsertChat(ctx, chat)
	if err == nil {
		s.log.Info("direct chat created", slog.String("chat_id", chat.ID.Hex()))
		return chat, true, nil
	}
	if !errors.Is(err, utils.ErrConflict) {
		return nil, false, fmt.Errorf("insert direct chat: %w", err)
	}

	// lost a race with a concurrent creation of the same pair
	existing, err := s.chats.FindChatByDirectKey(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("reload direct chat: %w", err)
	}
	return existing, false, nil
}

// GetChat returns a chat and its full history, oldest first.
func (s *ChatService) GetChat(ctx context.Context, user *models.User, chatIDHex string) (*models.ChatWithMessages, error) {
	chat, err := participantChat(ctx, s.chats, chatIDHex, user.ID)
	if err != nil {
		return nil, err
	}

	msgs, err := s.messages.FindChatMessages(ctx, chat.ID)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	views, err := expandMessages(ctx, s.users, msgs)
	if err != nil {
		return nil, err
	}
	index, err := summaries(ctx, s.users, chat.Participants)
	if err != nil {
		return nil, err
	}

	return &models.ChatWithMessages{
		ID:           chat.ID,
		Name:         chat.Name,
		Participants: participantSummaries(index, chat.Participants),
		IsGroupChat:  chat.IsGroupChat,
		Messages:     views,
	}, nil
}

// DeleteChat removes a chat together with its messages. Only participants may delete.
func (s *ChatService) DeleteChat(ctx context.Context, user *models.User, chatIDHex string) error {
	chat, err := participantChat(ctx, s.chats, chatIDHex, user.ID)
	if err != nil {
		if errors.Is(err, utils.ErrForbidden) {
			return utils.NewError(utils.ErrForbidden, "Not authorized to delete this chat")
		}
		return err
	}
	if err := s.chats.DeleteChat(ctx, chat.ID); err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return errChatNotFound
		}
		return fmt.Errorf("delete chat: %w", err)
	}
	s.log.Info("chat deleted", slog.String("chat_id", chat.ID.Hex()), slog.String("by", user.ID.Hex()))
	return nil
}

// AcceptInvite adds user to the chat's participants. Accepting twice is a no-op.
func (s *ChatService) AcceptInvite(ctx context.Context, user *models.User, chatIDHex string) error {
	chatID, err := primitive.ObjectIDFromHex(chatIDHex)
	if err != nil {
		return errChatNotFound
	}
	chat, err := s.chats.FindChatByID(ctx, chatID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return errChatNotFound
		}
		return fmt.Errorf("find chat: %w", err)
	}
	if chat.HasParticipant(user.ID) {
		return nil
	}
	if err := s.chats.AddParticipant(ctx, chat.ID, user.ID); err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return errChatNotFound
		}
		return fmt.Errorf("add participant: %w", err)
	}
	s.log.Info("invite accepted", slog.String("chat_id", chat.ID.Hex()), slog.String("user_id", user.ID.Hex()))
	return nil
}

// ExportChat renders the full history of a chat for download.
func (s *ChatService) ExportChat(ctx context.Context, user *models.User, chatIDHex string) (*models.ChatExport, error) {
	chat, err := participantChat(ctx, s.chats, chatIDHex, user.ID)
	if err != nil {
		return nil, err
	}

	msgs, err := s.messages.FindChatMessages(ctx, chat.ID)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	ids := append([]primitive.ObjectID{}, chat.Participants...)
	for i := range msgs {
		ids = append(ids, msgs[i].SenderID)
	}
	index, err := summaries(ctx, s.users, ids)
	if err != nil {
		return nil, err
	}

	export := &models.ChatExport{
		ChatName:     chat.Name,
		ExportDate:   s.now().UTC(),
		ExportedBy:   user.Name,
		Participants: make([]models.ExportParticipant, 0, len(chat.Participants)),
		Messages:     make([]models.ExportMessage, 0, len(msgs)),
	}
	for _, id := range chat.Participants {
		p := summaryOrUnknown(index, id)
		export.Participants = append(export.Participants, models.ExportParticipant{Name: p.Name, Email: p.Email, Role: p.Role})
	}
	for i := range msgs {
		sender := summaryOrUnknown(index, msgs[i].SenderID)
		export.Messages = append(export.Messages, models.ExportMessage{
			Sender:     sender.Name,
			Role:       sender.Role,
			Content:    msgs[i].Content,
			Attachment: msgs[i].Attachment,
			Timestamp:  msgs[i].CreatedAt,
		})
	}
	return export, nil
}

// AuthorizeJoin checks that userID may receive realtime traffic for chatIDHex.
func (s *ChatService) AuthorizeJoin(ctx context.Context, userID primitive.ObjectID, chatIDHex string) error {
	_, err := participantChat(ctx, s.chats, chatIDHex, userID)
	return err
}
