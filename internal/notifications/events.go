// Package notifications delivers realtime chat events over websockets and
// fans them out across instances through Redis.
package notifications

import (
	"encoding/json"
	"fmt"
)

// Chat socket event names. Inbound and outbound frames share one shape:
// {"event": name, "data": payload}.
const (
	EventConnect             = "connect"
	EventConnectionSucceeded = "connection_succeeded"
	EventNewChat             = "new_chat"
	EventChatCreated         = "chat_created"
	EventJoin                = "join"
	EventPastHistory         = "past_history"
	EventPrivateMessage      = "private_message"
	EventFailure             = "failure"
)

// Frame is one websocket message.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewChatData is the payload of new_chat.
type NewChatData struct {
	SenderID   uint `json:"sender_id"`
	ReceiverID uint `json:"receiver_id"`
}

// JoinData is the payload of join.
type JoinData struct {
	User1ID uint `json:"user1_id"`
	User2ID uint `json:"user2_id"`
}

// PrivateMessageData is the payload of an inbound private_message.
type PrivateMessageData struct {
	SenderID   uint   `json:"sender_id"`
	ReceiverID uint   `json:"receiver_id"`
	Msg        string `json:"msg"`
}

// FailureData is the payload of failure.
type FailureData struct {
	Error string `json:"error"`
}

// Encode builds an outbound frame.
func Encode(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", event, err)
	}
	return json.Marshal(Frame{Event: event, Data: raw})
}

// FailureFrame builds a failure frame; it cannot fail.
func FailureFrame(msg string) []byte {
	b, err := Encode(EventFailure, FailureData{Error: msg})
	if err != nil {
		return []byte(`{"event":"failure","data":{"error":"internal error"}}`)
	}
	return b
}

// Decode parses an inbound frame's payload into dest.
func (f Frame) Decode(dest any) error {
	if len(f.Data) == 0 {
		return fmt.Errorf("%s: missing data", f.Event)
	}
	if err := json.Unmarshal(f.Data, dest); err != nil {
		return fmt.Errorf("%s: %w", f.Event, err)
	}
	return nil
}
