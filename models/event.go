package models

import "encoding/json"

// Realtime event names.
const (
	EventJoinChat    = "join_chat"
	EventLeaveChat   = "leave_chat"
	EventSendMessage = "send_message"
	EventNewMessage  = "new_message"
	EventError       = "error"
)

// Event is the envelope of every frame on the realtime channel.
type Event struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEvent marshals data into an envelope.
func NewEvent(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Event{Event: event, Data: raw})
}

// ChatIDFromData accepts either a bare chat id string or {"chatId": "..."}.
func ChatIDFromData(data json.RawMessage) string {
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		return id
	}
	var obj struct {
		ChatID string `json:"chatId"`
	}
	if err := json.Unmarshal(data, &obj); err == nil {
		return obj.ChatID
	}
	return ""
}
