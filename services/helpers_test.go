package services

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"educhat/backend/models"
	"educhat/backend/services/mocks"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/mock/gomock"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakes struct {
	users       *mocks.MockUserStore
	chats       *mocks.MockChatStore
	messages    *mocks.MockMessageStore
	files       *mocks.MockFileStore
	otps        *mocks.MockOTPStore
	mailer      *mocks.MockMailer
	broadcaster *mocks.MockBroadcaster
}

func newFakes(t *testing.T) *fakes {
	ctrl := gomock.NewController(t)
	return &fakes{
		users:       mocks.NewMockUserStore(ctrl),
		chats:       mocks.NewMockChatStore(ctrl),
		messages:    mocks.NewMockMessageStore(ctrl),
		files:       mocks.NewMockFileStore(ctrl),
		otps:        mocks.NewMockOTPStore(ctrl),
		mailer:      mocks.NewMockMailer(ctrl),
		broadcaster: mocks.NewMockBroadcaster(ctrl),
	}
}

func newUser(name string, role models.Role) *models.User {
	return &models.User{
		ID:    primitive.NewObjectID(),
		Name:  name,
		Email: name + "@example.com",
		Role:  role,
	}
}

func newChat(participants ...*models.User) *models.Chat {
	ids := make([]primitive.ObjectID, 0, len(participants))
	for _, p := range participants {
		ids = append(ids, p.ID)
	}
	return &models.Chat{
		ID:           primitive.NewObjectID(),
		Name:         "Room",
		Participants: ids,
		IsGroupChat:  len(ids) > 2,
	}
}

func usersOf(us ...*models.User) []models.User {
	out := make([]models.User, 0, len(us))
	for _, u := range us {
		out = append(out, *u)
	}
	return out
}
