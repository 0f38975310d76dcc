package client

import (
	"sync"
	"time"

	"educhat/backend/models"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// EntryState tells optimistic entries apart from stored ones.
type EntryState int

const (
	Pending EntryState = iota
	Confirmed
)

func (s EntryState) String() string {
	if s == Pending {
		return "pending"
	}
	return "confirmed"
}

// Entry is one rendered message. TempID is set only while Pending.
type Entry struct {
	TempID  string
	State   EntryState
	Message models.MessageView
}

// Timeline merges optimistic sends, REST confirmations and realtime echoes
// for one chat. A canonical message id never appears twice, whichever of the
// confirmation or the echo arrives first.
type Timeline struct {
	mu      sync.Mutex
	chatID  primitive.ObjectID
	entries []Entry
	ids     map[primitive.ObjectID]struct{}
	now     func() time.Time
}

func NewTimeline(chatID primitive.ObjectID) *Timeline {
	return &Timeline{
		chatID: chatID,
		ids:    make(map[primitive.ObjectID]struct{}),
		now:    time.Now,
	}
}

func (t *Timeline) ChatID() primitive.ObjectID { return t.chatID }

// Replace resets the timeline to msgs, typically a freshly fetched page.
func (t *Timeline) Replace(msgs []models.MessageView) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = t.entries[:0]
	t.ids = make(map[primitive.ObjectID]struct{}, len(msgs))
	for _, m := range msgs {
		t.appendConfirmed(m)
	}
}

// AddPending appends an optimistic entry and returns its temporary id.
// Blank content gets no placeholder.
func (t *Timeline) AddPending(sender models.UserSummary, content string) (string, bool) {
	if content == "" {
		return "", false
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	tempID := uuid.NewString()
	now := t.now()
	t.entries = append(t.entries, Entry{
		TempID: tempID,
		State:  Pending,
		Message: models.MessageView{
			Sender:    sender,
			ChatID:    t.chatID,
			Content:   content,
			CreatedAt: now,
			UpdatedAt: now,
		},
	})
	return tempID, true
}

// Confirm settles the pending entry tempID with the stored message. When the
// echo already delivered msg, the pending entry is dropped instead.
func (t *Timeline) Confirm(tempID string, msg models.MessageView) {
	t.mu.Lock()
	defer t.mu.Unlock()

	i := t.pendingIndex(tempID)
	_, seen := t.ids[msg.ID]
	switch {
	case i >= 0 && seen:
		t.removeAt(i)
	case i >= 0:
		t.entries[i] = Entry{State: Confirmed, Message: msg}
		t.ids[msg.ID] = struct{}{}
	case !seen:
		t.appendConfirmed(msg)
	}
}

// Fail removes the pending entry tempID. It reports whether one was found.
func (t *Timeline) Fail(tempID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	i := t.pendingIndex(tempID)
	if i < 0 {
		return false
	}
	t.removeAt(i)
	return true
}

// Receive merges a realtime message. Messages of other chats and ids
// already present are ignored; it reports whether msg was appended.
func (t *Timeline) Receive(msg models.MessageView) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if msg.ChatID != t.chatID {
		return false
	}
	if _, ok := t.ids[msg.ID]; ok {
		return false
	}
	t.appendConfirmed(msg)
	return true
}

// Entries returns a copy of the timeline in arrival order.
func (t *Timeline) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

func (t *Timeline) appendConfirmed(msg models.MessageView) {
	if _, ok := t.ids[msg.ID]; ok {
		return
	}
	t.entries = append(t.entries, Entry{State: Confirmed, Message: msg})
	t.ids[msg.ID] = struct{}{}
}

func (t *Timeline) pendingIndex(tempID string) int {
	if tempID == "" {
		return -1
	}
	for i := range t.entries {
		if t.entries[i].State == Pending && t.entries[i].TempID == tempID {
			return i
		}
	}
	return -1
}

func (t *Timeline) removeAt(i int) {
	t.entries = append(t.entries[:i], t.entries[i+1:]...)
}
