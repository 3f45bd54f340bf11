package database

import (
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/whiteboardhq/go-whiteboard/internal/types"
)

type MockWhiteboardRepository struct {
	mock.Mock
}

func (m *MockWhiteboardRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockWhiteboardRepository) CreateRoom(roomId string) (Room, error) {
	args := m.Called(roomId)
	return args.Get(0).(Room), args.Error(1)
}

func (m *MockWhiteboardRepository) GetRoomByCode(roomId string) (Room, error) {
	args := m.Called(roomId)
	return args.Get(0).(Room), args.Error(1)
}

func (m *MockWhiteboardRepository) GetOrCreateRoom(roomId string) (Room, error) {
	args := m.Called(roomId)
	return args.Get(0).(Room), args.Error(1)
}

func (m *MockWhiteboardRepository) ListActiveRooms(since time.Time) ([]RoomSummary, error) {
	args := m.Called(since)
	return args.Get(0).([]RoomSummary), args.Error(1)
}

func (m *MockWhiteboardRepository) AppendDrawCommand(roomId string, cmd types.DrawCommand) error {
	args := m.Called(roomId, cmd)
	return args.Error(0)
}
