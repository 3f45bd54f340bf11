package board

import (
	"encoding/json"
	"log"
	"math/rand"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/whiteboardhq/go-whiteboard/internal/types"
)

// cursorPalette matches the colors the web client assigns to users.
var cursorPalette = []string{
	"#e74c3c", "#3498db", "#2ecc71", "#f1c40f",
	"#9b59b6", "#e67e22", "#1abc9c", "#34495e",
}

// Client is the whiteboard participant: it dials the realtime
// endpoint, joins a room, replays the history snapshot into a local
// canvas and batches its own drawing onto the wire. Its id is the
// relay identity the server announces in its welcome message; until
// that arrives the id is empty and no inbound traffic matches it.
type Client struct {
	conn    *websocket.Conn
	log     *log.Logger
	room    string
	canvas  *Canvas
	batcher *Batcher
	cursors *CursorTracker
	pub     *CursorPublisher

	writeMu sync.Mutex

	stateMu   sync.Mutex
	id        string
	userCount int

	done chan struct{}
}

// Dial connects to wsURL and joins roomId.
func Dial(wsURL, roomId string, logger *log.Logger) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		return nil, err
	}

	c := &Client{
		conn:   conn,
		log:    logger,
		room:   roomId,
		canvas: NewCanvas(),
		done:   make(chan struct{}),
	}
	c.cursors = NewCursorTracker("", DefaultCursorLiveness)
	c.batcher = NewBatcher(DefaultBatchSize, DefaultFlushDelay, c.emitDraw)
	c.pub = NewCursorPublisher(DefaultCursorInterval, DefaultCursorIdle,
		cursorPalette[rand.Intn(len(cursorPalette))], c.emitCursor)

	if err := c.writeEnvelope(types.EventJoinRoom, roomId); err != nil {
		conn.Close()
		return nil, err
	}

	go c.readLoop()

	return c, nil
}

func (c *Client) readLoop() {
	defer func() {
		c.conn.Close()
		close(c.done)
	}()

	for {
		var env types.Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Printf("ws: read: %v", err)
			}
			return
		}

		c.handle(&env)
	}
}

func (c *Client) handle(env *types.Envelope) {
	switch env.Event {
	case types.EventWelcome:
		var id string
		if err := json.Unmarshal(env.Data, &id); err != nil || id == "" {
			return
		}
		c.stateMu.Lock()
		c.id = id
		c.stateMu.Unlock()
		c.cursors.SetSelf(id)
	case types.EventUserCount:
		var n int
		if err := json.Unmarshal(env.Data, &n); err != nil {
			return
		}
		c.stateMu.Lock()
		c.userCount = n
		c.stateMu.Unlock()
	case types.EventInitDrawing:
		var history []types.DrawCommand
		if err := json.Unmarshal(env.Data, &history); err != nil {
			c.log.Printf("decode init-drawing: %v", err)
			return
		}
		c.canvas.Replay(history)
	case types.EventDrawStart, types.EventDrawMove:
		var payload types.StrokePayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			return
		}
		// second line of defense against self-echo; the relay already
		// skips the origin connection
		if id := c.identity(); id != "" && len(payload) > 0 && payload[0].AuthorId == id {
			return
		}
		c.canvas.ApplyBatch(payload)
	case types.EventDrawEnd:
		// terminal marker only, nothing changes on the canvas
	case types.EventClearCanvas:
		c.canvas.Clear()
	case types.EventCursorMove:
		var cur types.CursorUpdate
		if err := json.Unmarshal(env.Data, &cur); err != nil {
			return
		}
		c.cursors.Update(cur)
	case types.EventError:
		c.log.Printf("server error: %s", env.Data)
	}
}

func (c *Client) emitDraw(event string, payload types.StrokePayload) {
	var data any
	if payload != nil {
		data = payload
	}
	if err := c.writeEnvelope(event, data); err != nil {
		c.log.Printf("emit %s: %v", event, err)
	}
}

func (c *Client) emitCursor(cur types.CursorUpdate) {
	cur.AuthorId = c.identity()
	if err := c.writeEnvelope(types.EventCursorMove, cur); err != nil {
		c.log.Printf("emit cursor: %v", err)
	}
}

// identity returns the server-announced relay id, or "" before the
// welcome message has arrived.
func (c *Client) identity() string {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.id
}

func (c *Client) writeEnvelope(event string, v any) error {
	env, err := types.NewEnvelope(event, v)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(&env)
}

// StartStroke begins a local gesture.
func (c *Client) StartStroke(p types.Point, color string, width float64) {
	c.batcher.StartStroke(p, color, width)
}

// Move extends the gesture and renders the segment locally at once, no
// round trip involved.
func (c *Client) Move(p types.Point) {
	if seg, ok := c.batcher.Move(p); ok {
		c.canvas.ApplySegment(seg)
	}
}

// EndStroke finishes the gesture, flushing anything still buffered.
func (c *Client) EndStroke() {
	c.batcher.EndStroke()
}

// ClearCanvas clears locally and asks the room to clear for everyone.
func (c *Client) ClearCanvas() error {
	c.canvas.Clear()
	return c.writeEnvelope(types.EventClearCanvas, nil)
}

// PublishCursor offers a pointer sample to the throttled publisher.
func (c *Client) PublishCursor(x, y float64, onSurface bool) bool {
	return c.pub.Offer(x, y, onSurface)
}

func (c *Client) UserCount() int {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.userCount
}

func (c *Client) Canvas() *Canvas {
	return c.canvas
}

func (c *Client) RemoteCursors() map[string]RemoteCursor {
	return c.cursors.Cursors()
}

// Leave exits the room without dropping the connection.
func (c *Client) Leave() error {
	return c.writeEnvelope(types.EventLeaveRoom, c.room)
}

// Close tears the client down.
func (c *Client) Close() error {
	c.batcher.Stop()
	c.pub.Stop()
	c.cursors.Stop()
	err := c.conn.Close()
	<-c.done
	return err
}
