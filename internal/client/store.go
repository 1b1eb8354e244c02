package client

import (
	"sync"

	"github.com/pelusa-v/pelusa-chat-client/internal/types"
)

// Store holds the authoritative in-memory collections: the room list,
// the active room and the active room's messages. Every mutation takes
// the lock, so individual merges are atomic with respect to each
// other; multi-step flows such as a join are serialized by generation
// tokens instead (see beginJoin).
type Store struct {
	mu       sync.RWMutex
	rooms    []types.RoomSummary
	active   *types.RoomSummary
	messages []types.Message
	joinGen  uint64
}

func NewStore() *Store {
	return &Store{}
}

// ReplaceRooms installs a poll snapshot wholesale. This is the only
// write that removes rooms: entries known from push events but absent
// from the snapshot vanish.
func (s *Store) ReplaceRooms(rooms []types.RoomSummary) {
	deduped := make([]types.RoomSummary, 0, len(rooms))
	seen := make(map[string]struct{}, len(rooms))
	for _, r := range rooms {
		if _, ok := seen[r.Id]; ok {
			continue
		}
		seen[r.Id] = struct{}{}
		deduped = append(deduped, r)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms = deduped
}

// AddRoomIfAbsent merge-adds a room: a pre-existing entry with the
// same id wins and the new one is ignored. Reports whether the room
// was inserted.
func (s *Store) AddRoomIfAbsent(room types.RoomSummary) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.rooms {
		if r.Id == room.Id {
			return false
		}
	}

	s.rooms = append(s.rooms, room)
	return true
}

// ApplyMemberDelta adjusts a room's member count, floored at zero.
// Unknown rooms are ignored.
func (s *Store) ApplyMemberDelta(roomId string, delta int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.rooms {
		if s.rooms[i].Id == roomId {
			count := s.rooms[i].MemberCount + delta
			if count < 0 {
				count = 0
			}
			s.rooms[i].MemberCount = count
			return
		}
	}
}

func (s *Store) Rooms() []types.RoomSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rooms := make([]types.RoomSummary, len(s.rooms))
	copy(rooms, s.rooms)
	return rooms
}

func (s *Store) Room(id string) (types.RoomSummary, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.rooms {
		if r.Id == id {
			return r, true
		}
	}
	return types.RoomSummary{}, false
}

// AppendMessage appends unconditionally; the message list is
// append-ordered by arrival and never deduplicated.
func (s *Store) AppendMessage(msg types.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
}

func (s *Store) Messages() []types.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := make([]types.Message, len(s.messages))
	copy(msgs, s.messages)
	return msgs
}

func (s *Store) ActiveRoom() (types.RoomSummary, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.active == nil {
		return types.RoomSummary{}, false
	}
	return *s.active, true
}

func (s *Store) ActiveRoomIs(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active != nil && s.active.Id == id
}

// beginJoin starts a join flow and returns its generation token. Any
// previously started join is superseded from this point on.
func (s *Store) beginJoin() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.joinGen++
	return s.joinGen
}

// completeJoin activates a room and replaces the message list with its
// history page, but only if the join has not been superseded. Reports
// whether the result was applied.
func (s *Store) completeJoin(gen uint64, room types.RoomSummary, msgs []types.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.joinGen {
		return false
	}

	s.active = &room
	s.messages = msgs
	return true
}

// clearActive drops the active room and its messages and invalidates
// any join still in flight.
func (s *Store) clearActive() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.joinGen++
	s.active = nil
	s.messages = nil
}
