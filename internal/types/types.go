package types

import (
	"bytes"
	"encoding/json"
	"math"
	"time"
)

// Wire event names shared by the realtime server and the Go client.
const (
	EventWelcome     = "welcome"
	EventJoinRoom    = "join-room"
	EventLeaveRoom   = "leave-room"
	EventUserCount   = "user-count"
	EventInitDrawing = "init-drawing"
	EventDrawStart   = "draw-start"
	EventDrawMove    = "draw-move"
	EventDrawEnd     = "draw-end"
	EventClearCanvas = "clear-canvas"
	EventCursorMove  = "cursor-move"
	EventError       = "error"
)

// DrawCommand kinds as stored in a room's drawing history.
const (
	CommandStroke = "stroke"
	CommandClear  = "clear"
)

// Envelope is the framing for every realtime message.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope wraps v as the data of an envelope for the given event.
func NewEnvelope(event string, v any) (Envelope, error) {
	if v == nil {
		return Envelope{Event: event}, nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return Envelope{}, err
	}

	return Envelope{Event: event, Data: data}, nil
}

// Point is a position in canvas-pixel space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Segment is one straight-line stroke increment between two points.
// AuthorId is the ephemeral connection identity stamped by the relay;
// it is never a persisted user identity.
type Segment struct {
	From     Point   `json:"from"`
	To       Point   `json:"to"`
	Color    string  `json:"color,omitempty"`
	Width    float64 `json:"width,omitempty"`
	AuthorId string  `json:"id,omitempty"`
}

// Valid reports whether both endpoints have finite coordinates. Segments
// failing this check are never rendered, relayed or stored.
func (s Segment) Valid() bool {
	return finite(s.From.X) && finite(s.From.Y) && finite(s.To.X) && finite(s.To.Y)
}

// rawPoint distinguishes a missing coordinate from a zero one.
type rawPoint struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
}

func (p *rawPoint) valid() bool {
	return p != nil && p.X != nil && p.Y != nil &&
		finite(*p.X) && finite(*p.Y)
}

type rawSegment struct {
	From     *rawPoint `json:"from"`
	To       *rawPoint `json:"to"`
	Color    string    `json:"color"`
	Width    float64   `json:"width"`
	AuthorId string    `json:"id"`
}

func (rs rawSegment) valid() bool {
	return rs.From.valid() && rs.To.valid()
}

func (rs rawSegment) segment() Segment {
	return Segment{
		From:     Point{X: *rs.From.X, Y: *rs.From.Y},
		To:       Point{X: *rs.To.X, Y: *rs.To.Y},
		Color:    rs.Color,
		Width:    rs.Width,
		AuthorId: rs.AuthorId,
	}
}

// StrokePayload is the payload of a draw event: one segment or an
// ordered batch of segments.
type StrokePayload []Segment

// UnmarshalJSON accepts either a bare segment object or a list of
// segments. Segments with a missing or non-numeric endpoint are
// silently dropped.
func (p *StrokePayload) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*p = nil
		return nil
	}

	var raws []rawSegment
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &raws); err != nil {
			return err
		}
	} else {
		var rs rawSegment
		if err := json.Unmarshal(trimmed, &rs); err != nil {
			return err
		}
		raws = []rawSegment{rs}
	}

	segs := make([]Segment, 0, len(raws))
	for _, rs := range raws {
		if !rs.valid() {
			continue
		}
		segs = append(segs, rs.segment())
	}

	*p = segs
	return nil
}

// MarshalJSON emits a bare segment when exactly one is buffered,
// a list otherwise. An empty payload (a clear command's data) is
// written as an empty object.
func (p StrokePayload) MarshalJSON() ([]byte, error) {
	switch len(p) {
	case 0:
		return []byte("{}"), nil
	case 1:
		return json.Marshal(p[0])
	default:
		return json.Marshal([]Segment(p))
	}
}

// DrawCommand is one entry in a room's append-only drawing history.
// Replaying a history in order against a blank canvas reproduces the
// current visible state; a clear command resets the accumulator.
type DrawCommand struct {
	Type      string        `json:"type"`
	Data      StrokePayload `json:"data"`
	Timestamp time.Time     `json:"timestamp"`
}

// CursorUpdate is an ephemeral pointer position broadcast. It is never
// persisted and never part of a drawing history.
type CursorUpdate struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	AuthorId string  `json:"id,omitempty"`
	Color    string  `json:"color,omitempty"`
}

// Valid reports whether the position is usable for rendering.
func (c CursorUpdate) Valid() bool {
	return finite(c.X) && finite(c.Y)
}

// RoomInfo is the API-facing view of a room.
type RoomInfo struct {
	RoomId       string    `json:"roomId"`
	LastActivity time.Time `json:"lastActivity"`
}
