package server

import (
	"time"

	"github.com/whiteboardhq/go-whiteboard/internal/types"
)

// Constructors for outbound envelopes. Marshaling of these payloads
// cannot fail, so errors are discarded.

// WelcomeMessage tells a connection the identity the relay will stamp
// on its segments and cursor updates.
func WelcomeMessage(id string) *types.Envelope {
	env, _ := types.NewEnvelope(types.EventWelcome, id)
	return &env
}

func UserCountMessage(n int) *types.Envelope {
	env, _ := types.NewEnvelope(types.EventUserCount, n)
	return &env
}

func InitDrawingMessage(history []types.DrawCommand) *types.Envelope {
	if history == nil {
		history = []types.DrawCommand{}
	}
	env, _ := types.NewEnvelope(types.EventInitDrawing, history)
	return &env
}

func DrawMessage(event string, payload types.StrokePayload) *types.Envelope {
	if len(payload) == 0 {
		env, _ := types.NewEnvelope(event, nil)
		return &env
	}
	env, _ := types.NewEnvelope(event, payload)
	return &env
}

func ClearCanvasMessage() *types.Envelope {
	env, _ := types.NewEnvelope(types.EventClearCanvas, nil)
	return &env
}

func CursorMessage(cur types.CursorUpdate) *types.Envelope {
	env, _ := types.NewEnvelope(types.EventCursorMove, cur)
	return &env
}

func ErrorMessage(msg string) *types.Envelope {
	env, _ := types.NewEnvelope(types.EventError, map[string]string{"message": msg})
	return &env
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
