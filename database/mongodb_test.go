package database

import (
	"bytes"
	"context"
	"flag"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"educhat/backend/models"
	"educhat/backend/utils"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

var testClient *mongo.Client

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(m.Run())
	}

	ctx := context.Background()
	container, err := mongodb.Run(ctx, "mongo:6")
	if err != nil {
		log.Printf("MongoDB container unavailable, store tests will be skipped: %v", err)
		os.Exit(m.Run())
	}

	code := func() int {
		defer func() {
			if err := testcontainers.TerminateContainer(container); err != nil {
				log.Printf("failed to terminate container: %v", err)
			}
		}()
		uri, err := container.ConnectionString(ctx)
		if err != nil {
			log.Printf("connection string: %v", err)
			return 1
		}
		testClient, err = ConnectMongoDB(ctx, uri)
		if err != nil {
			log.Printf("connect: %v", err)
			return 1
		}
		defer DisconnectMongoDB(testClient, slog.New(slog.NewTextHandler(io.Discard, nil)))
		return m.Run()
	}()
	os.Exit(code)
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	if testClient == nil {
		t.Skip("MongoDB not available")
	}
	ctx := context.Background()
	db := testClient.Database("test_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16])
	t.Cleanup(func() { _ = db.Drop(context.Background()) })

	store, err := NewStore(db)
	require.NoError(t, err)
	require.NoError(t, store.EnsureIndexes(ctx))
	return store
}

func insertUser(t *testing.T, s *Store, name, email string, role models.Role) *models.User {
	t.Helper()
	u := &models.User{Name: name, Email: email, Password: "x", Role: role, CreatedAt: time.Now()}
	require.NoError(t, s.InsertUser(context.Background(), u))
	return u
}

func TestStoreUsers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	smith := insertUser(t, s, "Dr. Smith", "smith@example.com", models.RoleLecturer)
	insertUser(t, s, "Drake", "drake@example.com", models.RoleStudent)
	insertUser(t, s, "Ada", "ada@example.com", models.RoleLecturer)
	assert.False(t, smith.ID.IsZero())

	err := s.InsertUser(ctx, &models.User{Name: "Again", Email: "smith@example.com", Role: models.RoleStudent})
	assert.ErrorIs(t, err, utils.ErrConflict)

	got, err := s.FindUserByEmail(ctx, "smith@example.com")
	require.NoError(t, err)
	assert.Equal(t, smith.ID, got.ID)

	_, err = s.FindUserByID(ctx, primitive.NewObjectID())
	assert.ErrorIs(t, err, utils.ErrNotFound)

	lecturers, err := s.SearchLecturers(ctx, "dr.")
	require.NoError(t, err)
	require.Len(t, lecturers, 1)
	assert.Equal(t, "Dr. Smith", lecturers[0].Name)

	// pattern metacharacters are matched literally
	lecturers, err = s.SearchLecturers(ctx, "(")
	require.NoError(t, err)
	assert.Empty(t, lecturers)
}

func TestStoreDirectChatIsUnique(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a, b := primitive.NewObjectID(), primitive.NewObjectID()
	key := utils.DirectKey(a, b)

	first := &models.Chat{Name: "a & b", Participants: []primitive.ObjectID{a, b}, DirectKey: key}
	require.NoError(t, s.InsertChat(ctx, first))

	second := &models.Chat{Name: "b & a", Participants: []primitive.ObjectID{b, a}, DirectKey: utils.DirectKey(b, a)}
	assert.ErrorIs(t, s.InsertChat(ctx, second), utils.ErrConflict)

	// group chats carry no key and do not collide
	require.NoError(t, s.InsertChat(ctx, &models.Chat{Name: "g1", Participants: []primitive.ObjectID{a, b}}))
	require.NoError(t, s.InsertChat(ctx, &models.Chat{Name: "g2", Participants: []primitive.ObjectID{a, b}}))

	got, err := s.FindChatByDirectKey(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)

	chats, err := s.FindChatsByParticipant(ctx, a)
	require.NoError(t, err)
	assert.Len(t, chats, 3)
}

func TestStoreAddParticipantIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	owner, guest := primitive.NewObjectID(), primitive.NewObjectID()
	chat := &models.Chat{Name: "c", Participants: []primitive.ObjectID{owner}}
	require.NoError(t, s.InsertChat(ctx, chat))

	require.NoError(t, s.AddParticipant(ctx, chat.ID, guest))
	require.NoError(t, s.AddParticipant(ctx, chat.ID, guest))

	got, err := s.FindChatByID(ctx, chat.ID)
	require.NoError(t, err)
	assert.Equal(t, []primitive.ObjectID{owner, guest}, got.Participants)

	assert.ErrorIs(t, s.AddParticipant(ctx, primitive.NewObjectID(), guest), utils.ErrNotFound)
}

func TestStoreMessagePagesBreakTiesByID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	chatID, sender := primitive.NewObjectID(), primitive.NewObjectID()
	at := time.Now().UTC().Truncate(time.Millisecond)

	var ids []primitive.ObjectID
	for _, content := range []string{"one", "two", "three", "four", "five"} {
		msg := &models.Message{ChatID: chatID, SenderID: sender, Content: content, CreatedAt: at, UpdatedAt: at}
		require.NoError(t, s.InsertMessage(ctx, msg))
		ids = append(ids, msg.ID)
	}

	page, err := s.FindMessagesPage(ctx, chatID, 0, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "five", page[0].Content)
	assert.Equal(t, "four", page[1].Content)

	page, err = s.FindMessagesPage(ctx, chatID, 4, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, ids[0], page[0].ID)

	total, err := s.CountMessages(ctx, chatID)
	require.NoError(t, err)
	assert.EqualValues(t, 5, total)

	all, err := s.FindChatMessages(ctx, chatID)
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, "one", all[0].Content)
}

func TestStoreMessagePagesCoverChatExactlyOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	chatID, sender := primitive.NewObjectID(), primitive.NewObjectID()
	at := time.Now().UTC().Truncate(time.Millisecond)

	var want []primitive.ObjectID
	for i, content := range []string{"one", "two", "three", "four", "five"} {
		// two distinct timestamps so both the createdAt order and the _id tie-break are exercised
		created := at.Add(time.Duration(i/3) * time.Second)
		msg := &models.Message{ChatID: chatID, SenderID: sender, Content: content, CreatedAt: created, UpdatedAt: created}
		require.NoError(t, s.InsertMessage(ctx, msg))
		want = append(want, msg.ID)
	}

	const size = 2
	var got []primitive.ObjectID
	for page := 1; page <= 3; page++ {
		msgs, err := s.FindMessagesPage(ctx, chatID, models.Skip(page, size), size)
		require.NoError(t, err)
		if page < 3 {
			require.Len(t, msgs, size)
		} else {
			require.Len(t, msgs, 1)
		}
		var ids []primitive.ObjectID
		for _, m := range models.ReverseMessages(msgs) {
			ids = append(ids, m.ID)
		}
		got = append(ids, got...)
	}
	assert.Equal(t, want, got)

	rest, err := s.FindMessagesPage(ctx, chatID, models.Skip(4, size), size)
	require.NoError(t, err)
	assert.Empty(t, rest)
}

func TestStoreSearchMessagesIsLiteral(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	chatID, other := primitive.NewObjectID(), primitive.NewObjectID()
	for _, m := range []struct {
		chat    primitive.ObjectID
		content string
	}{
		{chatID, "Hello there"},
		{chatID, "abc"},
		{chatID, "a.c and HELLO"},
		{other, "hello elsewhere"},
	} {
		require.NoError(t, s.InsertMessage(ctx, &models.Message{ChatID: m.chat, Content: m.content, CreatedAt: time.Now()}))
	}

	found, err := s.SearchMessages(ctx, chatID, "hello")
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "Hello there", found[0].Content)

	found, err = s.SearchMessages(ctx, chatID, "a.c")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "a.c and HELLO", found[0].Content)
}

func TestStoreDeleteChatRemovesMessagesAndFiles(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	chat := &models.Chat{Name: "c", Participants: []primitive.ObjectID{primitive.NewObjectID()}}
	require.NoError(t, s.InsertChat(ctx, chat))

	att, err := s.SaveFile(ctx, "notes.txt", "text/plain", strings.NewReader("lecture notes"))
	require.NoError(t, err)
	assert.EqualValues(t, len("lecture notes"), att.Size)

	rc, err := s.OpenFile(ctx, att.FileID)
	require.NoError(t, err)
	var buf bytes.Buffer
	_, err = io.Copy(&buf, rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "lecture notes", buf.String())

	msg := &models.Message{ChatID: chat.ID, Content: "see attached", Attachment: att, CreatedAt: time.Now()}
	require.NoError(t, s.InsertMessage(ctx, msg))
	owner, err := s.FindMessageByAttachment(ctx, att.FileID)
	require.NoError(t, err)
	assert.Equal(t, msg.ID, owner.ID)

	require.NoError(t, s.DeleteChat(ctx, chat.ID))

	_, err = s.FindChatByID(ctx, chat.ID)
	assert.ErrorIs(t, err, utils.ErrNotFound)
	n, err := s.CountMessages(ctx, chat.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
	_, err = s.OpenFile(ctx, att.FileID)
	assert.ErrorIs(t, err, utils.ErrNotFound)

	assert.ErrorIs(t, s.DeleteChat(ctx, chat.ID), utils.ErrNotFound)
}

func TestSeedRunsOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	require.NoError(t, s.Seed(ctx, logger))
	require.NoError(t, s.Seed(ctx, logger))

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 5)

	alice, err := s.FindUserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	chats, err := s.FindChatsByParticipant(ctx, alice.ID)
	require.NoError(t, err)
	assert.Len(t, chats, 2)
}
