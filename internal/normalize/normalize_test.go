package normalize

import (
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/pelusa-v/pelusa-chat-client/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoom(t *testing.T) {
	t.Run("full payload", func(t *testing.T) {
		room, err := Room(map[string]any{
			"id":          "r1",
			"name":        "general",
			"isPrivate":   true,
			"memberCount": float64(3),
		})

		require.NoError(t, err)
		assert.Equal(t, types.RoomSummary{
			Id:          "r1",
			Name:        "general",
			IsPrivate:   true,
			MemberCount: 3,
		}, room)
	})

	t.Run("missing id fails", func(t *testing.T) {
		_, err := Room(map[string]any{"name": "general"})

		var malformed *MalformedPayloadError
		require.ErrorAs(t, err, &malformed, "expected MalformedPayloadError")
		assert.Equal(t, "room", malformed.Entity)
	})

	t.Run("numeric id is coerced", func(t *testing.T) {
		room, err := Room(map[string]any{"id": float64(42), "name": "general"})

		require.NoError(t, err)
		assert.Equal(t, "42", room.Id)
	})

	t.Run("members array substitutes for memberCount", func(t *testing.T) {
		room, err := Room(map[string]any{
			"id":      "r1",
			"name":    "general",
			"members": []any{"a", "b"},
		})

		require.NoError(t, err)
		assert.Equal(t, 2, room.MemberCount)
	})

	t.Run("memberCount takes priority over members", func(t *testing.T) {
		room, err := Room(map[string]any{
			"id":          "r1",
			"memberCount": float64(5),
			"members":     []any{"a"},
		})

		require.NoError(t, err)
		assert.Equal(t, 5, room.MemberCount)
	})

	t.Run("defaults", func(t *testing.T) {
		room, err := Room(map[string]any{"id": "r1"})

		require.NoError(t, err)
		assert.False(t, room.IsPrivate, "expected isPrivate to default to false")
		assert.Zero(t, room.MemberCount, "expected memberCount to default to 0")
	})
}

func TestUnwrapRoom(t *testing.T) {
	inner := map[string]any{"id": "r1"}

	t.Run("nested under room", func(t *testing.T) {
		assert.Equal(t, inner, UnwrapRoom(map[string]any{"room": inner}))
	})

	t.Run("nested under data", func(t *testing.T) {
		assert.Equal(t, inner, UnwrapRoom(map[string]any{"data": inner}))
	})

	t.Run("flat", func(t *testing.T) {
		assert.Equal(t, inner, UnwrapRoom(inner))
	})
}

func TestMessage(t *testing.T) {
	t.Run("full payload", func(t *testing.T) {
		msg := Message(map[string]any{
			"id":        "m1",
			"content":   "hola",
			"timestamp": float64(1700000000000),
			"user":      map[string]any{"id": "u1", "username": "alice"},
			"roomId":    "r1",
		})

		assert.Equal(t, types.Message{
			Id:        "m1",
			Content:   "hola",
			Timestamp: 1700000000000,
			Sender:    types.User{Id: "u1", Username: "alice"},
			RoomId:    "r1",
		}, msg)
	})

	t.Run("missing id generates a fallback", func(t *testing.T) {
		msg := Message(map[string]any{"content": "hola"})

		assert.Regexp(t, regexp.MustCompile(`^\d+-`), msg.Id, "expected <millis>-<random> id")
	})

	t.Run("missing timestamp defaults to now", func(t *testing.T) {
		before := time.Now().UnixMilli()
		msg := Message(map[string]any{"content": "hola"})
		after := time.Now().UnixMilli()

		assert.GreaterOrEqual(t, msg.Timestamp, before)
		assert.LessOrEqual(t, msg.Timestamp, after)
	})

	t.Run("sender alias priority", func(t *testing.T) {
		msg := Message(map[string]any{
			"id":     "m1",
			"User":   map[string]any{"username": "first"},
			"user":   map[string]any{"username": "second"},
			"sender": map[string]any{"username": "third"},
		})

		assert.Equal(t, "first", msg.Sender.Username, "expected User alias to win")
	})

	t.Run("bare username fallback", func(t *testing.T) {
		msg := Message(map[string]any{"id": "m1", "username": "alice"})

		assert.Equal(t, "alice", msg.Sender.Username)
	})

	t.Run("missing sender defaults to unknown", func(t *testing.T) {
		msg := Message(map[string]any{"id": "m1"})

		assert.Equal(t, UnknownSender, msg.Sender.Username)
	})

	t.Run("room alias priority", func(t *testing.T) {
		msg := Message(map[string]any{
			"id":      "m1",
			"room_id": "r2",
			"room":    "r3",
		})

		assert.Equal(t, "r2", msg.RoomId, "expected room_id alias to win over room")
	})

	t.Run("missing room reference is tolerated", func(t *testing.T) {
		msg := Message(map[string]any{"id": "m1", "content": "hola"})

		assert.Empty(t, msg.RoomId, "expected empty roomId, not an error")
	})
}

func TestMembership(t *testing.T) {
	t.Run("full payload", func(t *testing.T) {
		ev, err := Membership(map[string]any{
			"roomId": "r1",
			"user":   map[string]any{"id": "u1", "username": "alice"},
		})

		require.NoError(t, err)
		assert.Equal(t, types.MembershipEvent{
			RoomId: "r1",
			User:   types.User{Id: "u1", Username: "alice"},
		}, ev)
	})

	t.Run("missing roomId fails", func(t *testing.T) {
		_, err := Membership(map[string]any{"user": map[string]any{"username": "alice"}})

		var malformed *MalformedPayloadError
		require.ErrorAs(t, err, &malformed, "expected MalformedPayloadError")
		assert.Equal(t, "membership", malformed.Entity)
	})

	t.Run("missing username defaults to unknown", func(t *testing.T) {
		ev, err := Membership(map[string]any{"roomId": "r1"})

		require.NoError(t, err)
		assert.Equal(t, UnknownSender, ev.User.Username)
	})
}

func TestDecode(t *testing.T) {
	t.Run("object", func(t *testing.T) {
		m, err := Decode(json.RawMessage(`{"id":"r1"}`))

		require.NoError(t, err)
		assert.Equal(t, map[string]any{"id": "r1"}, m)
	})

	t.Run("non-object fails", func(t *testing.T) {
		_, err := Decode(json.RawMessage(`[1,2]`))

		assert.Error(t, err)
	})
}
