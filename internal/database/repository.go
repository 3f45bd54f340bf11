package database

import (
	"errors"
	"time"

	"github.com/whiteboardhq/go-whiteboard/internal/types"
)

// ErrRoomExists is returned by CreateRoom when the code is already taken.
var ErrRoomExists = errors.New("room already exists")

type WhiteboardRepository interface {
	Ping() error
	CreateRoom(roomId string) (Room, error)
	GetRoomByCode(roomId string) (Room, error)
	GetOrCreateRoom(roomId string) (Room, error)
	ListActiveRooms(since time.Time) ([]RoomSummary, error)
	AppendDrawCommand(roomId string, cmd types.DrawCommand) error
}
