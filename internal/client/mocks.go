package client

import (
	"context"

	"github.com/pelusa-v/pelusa-chat-client/internal/transport"
	"github.com/pelusa-v/pelusa-chat-client/internal/types"
	"github.com/stretchr/testify/mock"
)

type MockTransport struct {
	mock.Mock
}

func (m *MockTransport) Register(ctx context.Context, username, email, password string) (transport.AuthResponse, error) {
	args := m.Called(ctx, username, email, password)
	return args.Get(0).(transport.AuthResponse), args.Error(1)
}

func (m *MockTransport) Login(ctx context.Context, email, password string) (transport.AuthResponse, error) {
	args := m.Called(ctx, email, password)
	return args.Get(0).(transport.AuthResponse), args.Error(1)
}

func (m *MockTransport) ListRooms(ctx context.Context) ([]map[string]any, error) {
	args := m.Called(ctx)
	if rooms, ok := args.Get(0).([]map[string]any); ok {
		return rooms, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockTransport) CreateRoom(ctx context.Context, name string, isPrivate bool) (map[string]any, error) {
	args := m.Called(ctx, name, isPrivate)
	if room, ok := args.Get(0).(map[string]any); ok {
		return room, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockTransport) JoinRoom(ctx context.Context, roomId string) error {
	args := m.Called(ctx, roomId)
	return args.Error(0)
}

func (m *MockTransport) LeaveRoom(ctx context.Context, roomId string) error {
	args := m.Called(ctx, roomId)
	return args.Error(0)
}

func (m *MockTransport) GetHistory(ctx context.Context, roomId string, page, limit int) ([]map[string]any, error) {
	args := m.Called(ctx, roomId, page, limit)
	if msgs, ok := args.Get(0).([]map[string]any); ok {
		return msgs, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockTransport) ClearToken() {
	m.Called()
}

type MockPushSession struct {
	mock.Mock
}

func (m *MockPushSession) Connect(ctx context.Context, token string) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *MockPushSession) Send(event types.EventName, data any) {
	m.Called(event, data)
}

func (m *MockPushSession) Disconnect() {
	m.Called()
}
