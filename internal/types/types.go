package types

import (
	"encoding/json"
)

// User identifies a message sender. Id may be empty for senders the
// server reports by username only.
type User struct {
	Id       string `json:"id,omitempty"`
	Username string `json:"username"`
}

// RoomSummary is the canonical room record held in the room list.
// Identity is Id; the list holds at most one entry per Id.
type RoomSummary struct {
	Id          string `json:"id"`
	Name        string `json:"name"`
	IsPrivate   bool   `json:"isPrivate"`
	MemberCount int    `json:"memberCount"`
}

// Message is the canonical message record. System messages are
// synthesized locally for membership changes and have no real sender.
type Message struct {
	Id        string `json:"id"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
	Sender    User   `json:"user"`
	RoomId    string `json:"roomId,omitempty"`
	System    bool   `json:"system,omitempty"`
}

// MembershipEvent describes a user entering or leaving a room.
type MembershipEvent struct {
	RoomId string
	User   User
}

// EventName is the closed set of push event names on the wire.
type EventName string

const (
	// Inbound events.
	EventNewMessage  EventName = "new_message"
	EventRoomCreated EventName = "room_created"
	EventUserJoined  EventName = "user_joined"
	EventUserLeft    EventName = "user_left"

	// Outbound events.
	EventJoinRoom    EventName = "join_room"
	EventLeaveRoom   EventName = "leave_room"
	EventSendMessage EventName = "send_message"
)

// Envelope is the wire frame exchanged over the push connection.
// Frames that do not decode as this shape are dropped.
type Envelope struct {
	Event EventName       `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type JoinRoomPayload struct {
	RoomId string `json:"roomId"`
}

type LeaveRoomPayload struct {
	RoomId string `json:"roomId"`
}

type SendMessagePayload struct {
	RoomId  string `json:"roomId"`
	Content string `json:"content"`
}
