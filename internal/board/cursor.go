package board

import (
	"sync"
	"time"

	"github.com/whiteboardhq/go-whiteboard/internal/types"
)

const (
	// DefaultCursorInterval caps cursor transmission at roughly thirty
	// updates per second.
	DefaultCursorInterval = 33 * time.Millisecond
	// DefaultCursorIdle hides the local cursor indicator after
	// sustained stillness.
	DefaultCursorIdle = 5 * time.Second
	// DefaultCursorLiveness evicts a remote cursor that has not been
	// refreshed within the window.
	DefaultCursorLiveness = 5 * time.Second
)

// CursorPublisher samples every pointer move but transmits at most once
// per interval, dropping intermediate samples. It is a rate limiter,
// not a queue.
type CursorPublisher struct {
	mu       sync.Mutex
	interval time.Duration
	idle     time.Duration
	color    string
	emit     func(types.CursorUpdate)

	lastSent  time.Time
	active    bool
	idleTimer *time.Timer
}

func NewCursorPublisher(interval, idle time.Duration, color string, emit func(types.CursorUpdate)) *CursorPublisher {
	if interval <= 0 {
		interval = DefaultCursorInterval
	}
	if idle <= 0 {
		idle = DefaultCursorIdle
	}

	return &CursorPublisher{
		interval: interval,
		idle:     idle,
		color:    color,
		emit:     emit,
	}
}

// Offer submits a pointer sample. Samples off the drawing surface mark
// the publisher active but are never transmitted. Returns whether the
// sample went out.
func (p *CursorPublisher) Offer(x, y float64, onSurface bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.active = true
	if p.idleTimer != nil {
		p.idleTimer.Stop()
	}
	p.idleTimer = time.AfterFunc(p.idle, func() {
		p.mu.Lock()
		p.active = false
		p.mu.Unlock()
	})

	if !onSurface {
		return false
	}

	now := time.Now()
	if now.Sub(p.lastSent) < p.interval {
		return false
	}
	p.lastSent = now

	p.emit(types.CursorUpdate{X: x, Y: y, Color: p.color})
	return true
}

// Active reports whether the local cursor indicator should render.
func (p *CursorPublisher) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

func (p *CursorPublisher) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.idleTimer != nil {
		p.idleTimer.Stop()
		p.idleTimer = nil
	}
}

// RemoteCursor is the rendered position of a peer's pointer.
type RemoteCursor struct {
	X     float64
	Y     float64
	Color string
}

// CursorTracker holds the remote cursors for one board. Each update
// resets the author's liveness timer; silent authors are evicted and no
// longer rendered. Nothing here is ever persisted or replayed.
type CursorTracker struct {
	mu      sync.Mutex
	self    string
	timeout time.Duration
	cursors map[string]RemoteCursor
	timers  map[string]*time.Timer
}

func NewCursorTracker(self string, timeout time.Duration) *CursorTracker {
	if timeout <= 0 {
		timeout = DefaultCursorLiveness
	}

	return &CursorTracker{
		self:    self,
		timeout: timeout,
		cursors: make(map[string]RemoteCursor),
		timers:  make(map[string]*time.Timer),
	}
}

// SetSelf records our own relay identity, learned from the server
// after connecting, so echoes of it are filtered out.
func (t *CursorTracker) SetSelf(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.self = id
	delete(t.cursors, id)
	if timer, ok := t.timers[id]; ok {
		timer.Stop()
		delete(t.timers, id)
	}
}

// Update records a peer's cursor position. Updates without an author,
// or echoing our own identity, are ignored.
func (t *CursorTracker) Update(u types.CursorUpdate) {
	if u.AuthorId == "" || !u.Valid() {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if u.AuthorId == t.self {
		return
	}

	t.cursors[u.AuthorId] = RemoteCursor{X: u.X, Y: u.Y, Color: u.Color}

	if timer, ok := t.timers[u.AuthorId]; ok {
		timer.Stop()
	}
	id := u.AuthorId
	t.timers[id] = time.AfterFunc(t.timeout, func() {
		t.evict(id)
	})
}

func (t *CursorTracker) evict(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.cursors, id)
	delete(t.timers, id)
}

// Cursors returns a snapshot of the currently live remote cursors.
func (t *CursorTracker) Cursors() map[string]RemoteCursor {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string]RemoteCursor, len(t.cursors))
	for id, cur := range t.cursors {
		out[id] = cur
	}
	return out
}

func (t *CursorTracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, timer := range t.timers {
		timer.Stop()
		delete(t.timers, id)
	}
}
