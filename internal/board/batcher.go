package board

import (
	"sync"
	"time"

	"github.com/whiteboardhq/go-whiteboard/internal/types"
)

const (
	DefaultBatchSize  = 10
	DefaultFlushDelay = 40 * time.Millisecond
)

// EmitFunc receives a drawing event ready for the wire. It is called
// with the batcher's lock held and must not call back into the batcher.
type EmitFunc func(event string, payload types.StrokePayload)

// Batcher turns a continuous pointer-drag gesture into a bounded
// sequence of messages: an immediate degenerate draw-start, size- or
// delay-flushed draw-move batches, and a terminal draw-end marker.
// Segment order is preserved end to end and the buffer is always
// cleared by a flush.
type Batcher struct {
	mu    sync.Mutex
	size  int
	delay time.Duration
	emit  EmitFunc

	buf        []types.Segment
	last       types.Point
	color      string
	width      float64
	drawing    bool
	flushTimer *time.Timer
}

func NewBatcher(size int, delay time.Duration, emit EmitFunc) *Batcher {
	if size <= 0 {
		size = DefaultBatchSize
	}
	if delay <= 0 {
		delay = DefaultFlushDelay
	}

	return &Batcher{
		size:  size,
		delay: delay,
		emit:  emit,
	}
}

// StartStroke begins a gesture. Peers learn a stroke began before any
// real segment accumulates: the start message carries a degenerate
// segment with identical endpoints. The batch buffer is reset.
func (b *Batcher) StartStroke(p types.Point, color string, width float64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.drawing = true
	b.last = p
	b.color = color
	b.width = width
	b.buf = b.buf[:0]
	b.cancelTimerLocked()

	b.emit(types.EventDrawStart, types.StrokePayload{{
		From:  p,
		To:    p,
		Color: color,
		Width: width,
	}})
}

// Move records one pointer sample, returning the segment for immediate
// local rendering. The segment is buffered; the buffer flushes at the
// size threshold or after the idle delay, whichever comes first.
func (b *Batcher) Move(p types.Point) (types.Segment, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.drawing {
		return types.Segment{}, false
	}

	seg := types.Segment{
		From:  b.last,
		To:    p,
		Color: b.color,
		Width: b.width,
	}
	b.last = p
	b.buf = append(b.buf, seg)

	if len(b.buf) >= b.size {
		b.flushLocked(types.EventDrawMove)
	} else {
		// cancel-and-reschedule: at most one pending flush per gesture
		b.cancelTimerLocked()
		b.flushTimer = time.AfterFunc(b.delay, func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			b.flushLocked(types.EventDrawMove)
		})
	}

	return seg, true
}

// EndStroke force-flushes any pending buffer and emits the inert
// end-of-stroke marker.
func (b *Batcher) EndStroke() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.drawing {
		return
	}

	b.drawing = false
	b.flushLocked(types.EventDrawMove)
	b.emit(types.EventDrawEnd, nil)
}

// Stop tears the batcher down, clearing any pending timer.
func (b *Batcher) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.drawing = false
	b.buf = b.buf[:0]
	b.cancelTimerLocked()
}

func (b *Batcher) flushLocked(event string) {
	b.cancelTimerLocked()

	if len(b.buf) == 0 {
		return
	}

	payload := make(types.StrokePayload, len(b.buf))
	copy(payload, b.buf)
	b.buf = b.buf[:0]

	b.emit(event, payload)
}

func (b *Batcher) cancelTimerLocked() {
	if b.flushTimer != nil {
		b.flushTimer.Stop()
		b.flushTimer = nil
	}
}
