// Package normalize maps loosely shaped server payloads onto the
// canonical entity records. Servers of different origins alias the same
// field under several names; each alias list below is tried in a fixed
// priority order.
package normalize

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/pelusa-v/pelusa-chat-client/internal/types"
	"github.com/teris-io/shortid"
)

// UnknownSender is the sentinel identity used when a message payload
// carries no sender under any alias.
const UnknownSender = "Desconocido"

var senderAliases = []string{"User", "user", "sender"}
var roomAliases = []string{"roomId", "room_id", "room"}

// MalformedPayloadError reports a payload whose mandatory identity
// field is missing or unusable.
type MalformedPayloadError struct {
	Entity string
	Reason string
}

func (e *MalformedPayloadError) Error() string {
	return fmt.Sprintf("malformed %s payload: %s", e.Entity, e.Reason)
}

// Decode parses a raw JSON payload into a generic object.
func Decode(data json.RawMessage) (map[string]any, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return m, nil
}

// Room maps a raw room object onto a RoomSummary. The id is mandatory;
// isPrivate defaults to false and memberCount falls back to the length
// of a members array, then to zero.
func Room(raw map[string]any) (types.RoomSummary, error) {
	id, ok := idString(raw["id"])
	if !ok {
		return types.RoomSummary{}, &MalformedPayloadError{Entity: "room", Reason: "missing id"}
	}

	room := types.RoomSummary{
		Id:   id,
		Name: stringField(raw, "name"),
	}

	if v, ok := raw["isPrivate"].(bool); ok {
		room.IsPrivate = v
	}

	if n, ok := intField(raw, "memberCount"); ok {
		room.MemberCount = n
	} else if members, ok := raw["members"].([]any); ok {
		room.MemberCount = len(members)
	}
	if room.MemberCount < 0 {
		room.MemberCount = 0
	}

	return room, nil
}

// UnwrapRoom peels the nesting some servers put around a room_created
// payload: the room may arrive under "room", under "data", or flat.
func UnwrapRoom(raw map[string]any) map[string]any {
	for _, key := range []string{"room", "data"} {
		if inner, ok := raw[key].(map[string]any); ok {
			return inner
		}
	}
	return raw
}

// Message maps a raw message object onto a Message. It never fails:
// a missing id is replaced with a generated "<millis>-<random>" id,
// a missing timestamp with the current time and a missing sender with
// the unknown-sender sentinel. The room reference is optional.
func Message(raw map[string]any) types.Message {
	msg := types.Message{
		Content: stringField(raw, "content"),
		Sender:  sender(raw),
	}

	if id, ok := idString(raw["id"]); ok {
		msg.Id = id
	} else {
		msg.Id = fallbackId()
	}

	if ts, ok := int64Field(raw, "timestamp"); ok {
		msg.Timestamp = ts
	} else {
		msg.Timestamp = time.Now().UnixMilli()
	}

	for _, alias := range roomAliases {
		if v, ok := raw[alias]; ok {
			if id, ok := idString(v); ok {
				msg.RoomId = id
				break
			}
		}
	}

	return msg
}

// Membership maps a raw membership event onto a MembershipEvent. The
// room reference is mandatory since the event is useless without it.
func Membership(raw map[string]any) (types.MembershipEvent, error) {
	id, ok := idString(raw["roomId"])
	if !ok {
		return types.MembershipEvent{}, &MalformedPayloadError{Entity: "membership", Reason: "missing roomId"}
	}

	ev := types.MembershipEvent{RoomId: id}
	if u, ok := raw["user"].(map[string]any); ok {
		ev.User = user(u)
	}
	if ev.User.Username == "" {
		ev.User.Username = UnknownSender
	}

	return ev, nil
}

func sender(raw map[string]any) types.User {
	for _, alias := range senderAliases {
		if u, ok := raw[alias].(map[string]any); ok {
			return user(u)
		}
	}
	// History payloads sometimes carry a bare username instead of a
	// sender object.
	if name := stringField(raw, "username"); name != "" {
		return types.User{Username: name}
	}
	return types.User{Username: UnknownSender}
}

func user(raw map[string]any) types.User {
	u := types.User{Username: stringField(raw, "username")}
	if id, ok := idString(raw["id"]); ok {
		u.Id = id
	}
	if u.Username == "" {
		u.Username = UnknownSender
	}
	return u
}

func fallbackId() string {
	return fmt.Sprintf("%d-%s", time.Now().UnixMilli(), shortid.MustGenerate())
}

// idString coerces an identifier that may arrive as a string or a JSON
// number.
func idString(v any) (string, bool) {
	switch id := v.(type) {
	case string:
		if id == "" {
			return "", false
		}
		return id, true
	case float64:
		return strconv.FormatInt(int64(id), 10), true
	case json.Number:
		return id.String(), true
	default:
		return "", false
	}
}

func stringField(raw map[string]any, key string) string {
	s, _ := raw[key].(string)
	return s
}

func int64Field(raw map[string]any, key string) (int64, bool) {
	switch n := raw[key].(type) {
	case float64:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return i, true
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}

func intField(raw map[string]any, key string) (int, bool) {
	switch n := raw[key].(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	case string:
		i, err := strconv.Atoi(n)
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}
