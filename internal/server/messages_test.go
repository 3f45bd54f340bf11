package server

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/whiteboardhq/go-whiteboard/internal/types"
)

func TestUserCountMessage(t *testing.T) {
	env := UserCountMessage(3)
	assert.Equal(t, types.EventUserCount, env.Event)

	var n int
	assert.NoError(t, json.Unmarshal(env.Data, &n))
	assert.Equal(t, 3, n)
}

func TestInitDrawingMessage(t *testing.T) {
	t.Run("nil history marshals as an empty list", func(t *testing.T) {
		env := InitDrawingMessage(nil)
		assert.Equal(t, types.EventInitDrawing, env.Event)
		assert.JSONEq(t, `[]`, string(env.Data))
	})

	t.Run("history survives the round trip", func(t *testing.T) {
		history := []types.DrawCommand{
			{
				Type:      types.CommandStroke,
				Data:      types.StrokePayload{{From: types.Point{X: 1, Y: 2}, To: types.Point{X: 3, Y: 4}}},
				Timestamp: Now(),
			},
			{Type: types.CommandClear, Timestamp: Now()},
		}

		env := InitDrawingMessage(history)

		var got []types.DrawCommand
		assert.NoError(t, json.Unmarshal(env.Data, &got))
		assert.Len(t, got, 2)
		assert.Equal(t, types.CommandStroke, got[0].Type)
		assert.Equal(t, types.CommandClear, got[1].Type)
	})
}

func TestDrawMessage(t *testing.T) {
	t.Run("with payload", func(t *testing.T) {
		payload := types.StrokePayload{{From: types.Point{X: 0, Y: 0}, To: types.Point{X: 1, Y: 1}}}
		env := DrawMessage(types.EventDrawMove, payload)
		assert.Equal(t, types.EventDrawMove, env.Event)

		var got types.StrokePayload
		assert.NoError(t, json.Unmarshal(env.Data, &got))
		assert.Len(t, got, 1)
	})

	t.Run("end marker carries no data", func(t *testing.T) {
		env := DrawMessage(types.EventDrawEnd, nil)
		assert.Equal(t, types.EventDrawEnd, env.Event)
		assert.Empty(t, env.Data)
	})
}

func TestClearCanvasMessage(t *testing.T) {
	env := ClearCanvasMessage()
	assert.Equal(t, types.EventClearCanvas, env.Event)
	assert.Empty(t, env.Data)
}

func TestCursorMessage(t *testing.T) {
	env := CursorMessage(types.CursorUpdate{X: 1, Y: 2, AuthorId: "abc", Color: "#fff"})
	assert.Equal(t, types.EventCursorMove, env.Event)

	var got types.CursorUpdate
	assert.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, "abc", got.AuthorId)
	assert.Equal(t, "#fff", got.Color)
}

func TestErrorMessage(t *testing.T) {
	env := ErrorMessage("something broke")
	assert.Equal(t, types.EventError, env.Event)

	var body map[string]string
	assert.NoError(t, json.Unmarshal(env.Data, &body))
	assert.Equal(t, "something broke", body["message"])
}
