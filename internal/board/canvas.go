package board

import (
	"sync"

	"github.com/whiteboardhq/go-whiteboard/internal/types"
)

// Canvas accumulates draw commands the way a blank canvas would render
// them: segments pile up in order, a clear wipes everything. Replaying
// a room's history through a Canvas reproduces the live end state.
type Canvas struct {
	mu       sync.RWMutex
	segments []types.Segment
}

func NewCanvas() *Canvas {
	return &Canvas{}
}

// ApplySegment renders one segment. Malformed segments are dropped.
func (c *Canvas) ApplySegment(seg types.Segment) {
	if !seg.Valid() {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.segments = append(c.segments, seg)
}

// ApplyBatch renders a flushed batch in its internal order.
func (c *Canvas) ApplyBatch(payload types.StrokePayload) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, seg := range payload {
		if !seg.Valid() {
			continue
		}
		c.segments = append(c.segments, seg)
	}
}

// Clear resets the canvas to blank.
func (c *Canvas) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.segments = c.segments[:0]
}

// Apply dispatches one history command.
func (c *Canvas) Apply(cmd types.DrawCommand) {
	switch cmd.Type {
	case types.CommandStroke:
		c.ApplyBatch(cmd.Data)
	case types.CommandClear:
		c.Clear()
	}
}

// Replay rebuilds the canvas from a full ordered history. An empty or
// absent history leaves the canvas blank.
func (c *Canvas) Replay(history []types.DrawCommand) {
	c.Clear()
	for _, cmd := range history {
		c.Apply(cmd)
	}
}

// Segments returns a copy of the visible state in draw order.
func (c *Canvas) Segments() []types.Segment {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]types.Segment, len(c.segments))
	copy(out, c.segments)
	return out
}

func (c *Canvas) Blank() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.segments) == 0
}
