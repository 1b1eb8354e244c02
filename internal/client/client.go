// Package client implements the synchronization engine that keeps the
// room list, active room and message list consistent across the two
// feeding channels: the periodic room-list poll and the live push
// event stream. Polls replace wholesale and are ground truth; push
// events apply incrementally and first-seen wins on conflicts.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pelusa-v/pelusa-chat-client/internal/config"
	"github.com/pelusa-v/pelusa-chat-client/internal/dispatch"
	"github.com/pelusa-v/pelusa-chat-client/internal/normalize"
	"github.com/pelusa-v/pelusa-chat-client/internal/transport"
	"github.com/pelusa-v/pelusa-chat-client/internal/types"
)

// privateRoomName labels a room joined by code before its summary is
// known from the room list.
const privateRoomName = "Sala Privada"

// Transport is the request/response collaborator.
type Transport interface {
	Register(ctx context.Context, username, email, password string) (transport.AuthResponse, error)
	Login(ctx context.Context, email, password string) (transport.AuthResponse, error)
	ListRooms(ctx context.Context) ([]map[string]any, error)
	CreateRoom(ctx context.Context, name string, isPrivate bool) (map[string]any, error)
	JoinRoom(ctx context.Context, roomId string) error
	LeaveRoom(ctx context.Context, roomId string) error
	GetHistory(ctx context.Context, roomId string, page, limit int) ([]map[string]any, error)
	ClearToken()
}

// PushSession is the live connection collaborator.
type PushSession interface {
	Connect(ctx context.Context, token string) error
	Send(event types.EventName, data any)
	Disconnect()
}

type ChatClient struct {
	cfg        *config.Config
	log        *log.Logger
	api        Transport
	push       PushSession
	dispatcher *dispatch.Dispatcher
	store      *Store

	mu     sync.Mutex
	user   types.User
	poller *Poller
	subs   []*dispatch.Subscription
}

func NewChatClient(cfg *config.Config, api Transport, push PushSession, d *dispatch.Dispatcher, logger *log.Logger) *ChatClient {
	return &ChatClient{
		cfg:        cfg,
		log:        logger,
		api:        api,
		push:       push,
		dispatcher: d,
		store:      NewStore(),
	}
}

// Login authenticates, opens the push connection and starts the poll
// loop and push subscriptions.
func (c *ChatClient) Login(ctx context.Context, email, password string) (types.User, error) {
	auth, err := c.api.Login(ctx, email, password)
	if err != nil {
		return types.User{}, fmt.Errorf("login: %w", err)
	}

	return auth.User, c.start(ctx, auth)
}

// Register creates an account and then behaves like Login.
func (c *ChatClient) Register(ctx context.Context, username, email, password string) (types.User, error) {
	auth, err := c.api.Register(ctx, username, email, password)
	if err != nil {
		return types.User{}, fmt.Errorf("register: %w", err)
	}

	return auth.User, c.start(ctx, auth)
}

func (c *ChatClient) start(ctx context.Context, auth transport.AuthResponse) error {
	if err := c.push.Connect(ctx, auth.Token); err != nil {
		return fmt.Errorf("connect push session: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.user = auth.User
	c.subs = []*dispatch.Subscription{
		c.dispatcher.Subscribe(types.EventNewMessage, c.handleNewMessage),
		c.dispatcher.Subscribe(types.EventRoomCreated, c.handleRoomCreated),
		c.dispatcher.Subscribe(types.EventUserJoined, c.handleUserJoined),
		c.dispatcher.Subscribe(types.EventUserLeft, c.handleUserLeft),
	}

	c.poller = newPoller(c.cfg.PollInterval, c.refreshRooms, c.log)
	c.poller.Run()

	return nil
}

// Logout tears everything down: push connection, poll loop, push
// subscriptions, token and all collections. Safe to call however the
// session ended.
func (c *ChatClient) Logout() {
	c.push.Disconnect()

	c.mu.Lock()
	poller := c.poller
	subs := c.subs
	c.poller = nil
	c.subs = nil
	c.user = types.User{}
	c.mu.Unlock()

	if poller != nil {
		poller.Stop()
	}
	for _, sub := range subs {
		c.dispatcher.Unsubscribe(sub)
	}

	c.api.ClearToken()
	c.store.clearActive()
	c.store.ReplaceRooms(nil)
}

func (c *ChatClient) User() types.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user
}

func (c *ChatClient) Rooms() []types.RoomSummary {
	return c.store.Rooms()
}

func (c *ChatClient) Messages() []types.Message {
	return c.store.Messages()
}

func (c *ChatClient) ActiveRoom() (types.RoomSummary, bool) {
	return c.store.ActiveRoom()
}

// RefreshRooms forces a room-list refresh outside the poll schedule.
func (c *ChatClient) RefreshRooms(ctx context.Context) {
	c.refreshRooms(ctx)
}

// refreshRooms is the poll tick: fetch the full room collection and
// replace the list wholesale. Any failure degrades to an empty list so
// the loop never dies.
func (c *ChatClient) refreshRooms(ctx context.Context) {
	raws, err := c.api.ListRooms(ctx)
	if err != nil {
		c.log.Printf("list rooms: %v", err)
		raws = nil
	}

	rooms := make([]types.RoomSummary, 0, len(raws))
	for _, raw := range raws {
		room, err := normalize.Room(raw)
		if err != nil {
			c.log.Printf("skipping room in snapshot: %v", err)
			continue
		}
		rooms = append(rooms, room)
	}

	c.store.ReplaceRooms(rooms)
}

// JoinRoom joins a room, loads its recent history and makes it the
// active room. The room does not have to be in the room list: joining
// by a shared code activates it with a placeholder summary and the
// list is refreshed afterwards.
//
// Join is not atomic as a whole; a second join started before this
// one finishes supersedes it, and the history result of a superseded
// join is discarded.
func (c *ChatClient) JoinRoom(ctx context.Context, roomId string) error {
	room, known := c.store.Room(roomId)
	gen := c.store.beginJoin()

	if err := c.api.JoinRoom(ctx, roomId); err != nil {
		return fmt.Errorf("join room: %w", err)
	}
	c.push.Send(types.EventJoinRoom, types.JoinRoomPayload{RoomId: roomId})

	raws, err := c.api.GetHistory(ctx, roomId, 1, c.cfg.HistoryPageSize)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}

	msgs := make([]types.Message, 0, len(raws))
	for _, raw := range raws {
		msgs = append(msgs, normalize.Message(raw))
	}

	summary := room
	if !known {
		summary = types.RoomSummary{Id: roomId, Name: privateRoomName, IsPrivate: true}
	}

	if !c.store.completeJoin(gen, summary, msgs) {
		c.log.Printf("discarding superseded join of room %q", roomId)
		return nil
	}

	if !known {
		c.refreshRooms(ctx)
	}

	return nil
}

// LeaveRoom leaves the active room, if any, and clears the message
// list.
func (c *ChatClient) LeaveRoom(ctx context.Context) error {
	room, ok := c.store.ActiveRoom()
	if !ok {
		return nil
	}

	if err := c.api.LeaveRoom(ctx, room.Id); err != nil {
		return fmt.Errorf("leave room: %w", err)
	}

	c.push.Send(types.EventLeaveRoom, types.LeaveRoomPayload{RoomId: room.Id})
	c.store.clearActive()
	return nil
}

// CreateRoom creates a room, refreshes the list and activates the new
// room with an empty message list.
func (c *ChatClient) CreateRoom(ctx context.Context, name string, isPrivate bool) (types.RoomSummary, error) {
	raw, err := c.api.CreateRoom(ctx, name, isPrivate)
	if err != nil {
		return types.RoomSummary{}, fmt.Errorf("create room: %w", err)
	}

	room, err := normalize.Room(raw)
	if err != nil {
		return types.RoomSummary{}, fmt.Errorf("create room response: %w", err)
	}

	c.refreshRooms(ctx)

	// The creator is the only member so far.
	room.MemberCount = 1
	c.store.completeJoin(c.store.beginJoin(), room, nil)
	c.push.Send(types.EventJoinRoom, types.JoinRoomPayload{RoomId: room.Id})

	return room, nil
}

// SendMessage sends to the active room, fire and forget: nothing is
// appended locally, the message appears once the server echoes it back
// as a new_message event.
func (c *ChatClient) SendMessage(content string) error {
	room, ok := c.store.ActiveRoom()
	if !ok {
		return fmt.Errorf("no active room")
	}

	c.push.Send(types.EventSendMessage, types.SendMessagePayload{RoomId: room.Id, Content: content})
	return nil
}

func (c *ChatClient) handleNewMessage(data json.RawMessage) {
	raw, err := normalize.Decode(data)
	if err != nil {
		c.log.Printf("new_message: %v", err)
		return
	}

	c.store.AppendMessage(normalize.Message(raw))
}

func (c *ChatClient) handleRoomCreated(data json.RawMessage) {
	raw, err := normalize.Decode(data)
	if err != nil {
		c.log.Printf("room_created: %v", err)
		return
	}

	room, err := normalize.Room(normalize.UnwrapRoom(raw))
	if err != nil {
		// Can't place the room without an id; a full refresh will pick
		// it up instead.
		c.log.Printf("room_created: %v, falling back to refresh", err)
		c.refreshRooms(context.Background())
		return
	}

	c.store.AddRoomIfAbsent(room)
}

func (c *ChatClient) handleUserJoined(data json.RawMessage) {
	c.applyMembership(data, 1, "se unió", "sys-join-")
}

func (c *ChatClient) handleUserLeft(data json.RawMessage) {
	c.applyMembership(data, -1, "salió", "sys-left-")
}

// applyMembership adjusts the room's member count and, when the event
// concerns the active room, appends a synthetic system notice.
func (c *ChatClient) applyMembership(data json.RawMessage, delta int, verb, idPrefix string) {
	raw, err := normalize.Decode(data)
	if err != nil {
		c.log.Printf("membership event: %v", err)
		return
	}

	ev, err := normalize.Membership(raw)
	if err != nil {
		c.log.Printf("membership event: %v", err)
		return
	}

	c.store.ApplyMemberDelta(ev.RoomId, delta)

	if c.store.ActiveRoomIs(ev.RoomId) {
		c.store.AppendMessage(types.Message{
			Id:        idPrefix + uuid.NewString(),
			Content:   fmt.Sprintf("%s %s", ev.User.Username, verb),
			Timestamp: time.Now().UnixMilli(),
			RoomId:    ev.RoomId,
			System:    true,
		})
	}
}
