package database

import (
	"time"

	"github.com/whiteboardhq/go-whiteboard/internal/types"
)

// Room is the persisted room record: a short code plus its append-only
// drawing history and an activity timestamp.
type Room struct {
	Id           int
	RoomId       string
	DrawingData  []types.DrawCommand
	LastActivity time.Time
	CreatedAt    time.Time
}

type RoomSummary struct {
	RoomId       string
	LastActivity time.Time
}
