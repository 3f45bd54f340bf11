package server

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/whiteboardhq/go-whiteboard/internal/types"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 8192
)

// Client is one websocket connection. Its id is an ephemeral author
// identity scoped to the connection's lifetime; it is never persisted.
type Client struct {
	id       string
	conn     *websocket.Conn
	bs       *BoardServer
	log      *log.Logger
	send     chan *types.Envelope
	room     *Room
	roomLock sync.RWMutex
	stop     chan struct{}
	stopOnce sync.Once
}

func NewClient(conn *websocket.Conn, bs *BoardServer, l *log.Logger) *Client {
	return &Client{
		id:   uuid.NewString(),
		conn: conn,
		bs:   bs,
		log:  l,
		send: make(chan *types.Envelope, 256),
		stop: make(chan struct{}),
	}
}

func (c *Client) Write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.log.Printf("write exiting for connection %q", c.id)
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}

			bytes, err := json.Marshal(msg)
			if err != nil {
				c.log.Println("failed to serialize message:", err)
				continue
			}

			if !c.sendMessage(websocket.TextMessage, bytes) {
				return
			}
		case <-c.stop:
			return
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !c.sendMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *Client) Read() {
	defer func() {
		c.conn.Close()
		c.cleanup()
		c.log.Printf("read exiting for connection %q", c.id)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(appData string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Printf("ws: read: %v", err)
			}
			break
		}

		var env types.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			c.log.Println("error parsing message:", err)
			c.queueMessage(ErrorMessage("invalid message format"))
			continue
		}

		c.dispatch(&env)
	}
}

func (c *Client) dispatch(env *types.Envelope) {
	switch env.Event {
	case types.EventJoinRoom:
		var roomId string
		if err := json.Unmarshal(env.Data, &roomId); err != nil || roomId == "" {
			c.queueMessage(ErrorMessage("invalid room id"))
			return
		}
		c.joinRoom(roomId)
	case types.EventLeaveRoom:
		c.leaveCurrentRoom()
	case types.EventDrawStart, types.EventDrawMove, types.EventDrawEnd:
		var payload types.StrokePayload
		if len(env.Data) > 0 {
			if err := json.Unmarshal(env.Data, &payload); err != nil {
				c.queueMessage(ErrorMessage("invalid stroke payload"))
				return
			}
		}
		c.forwardDraw(env.Event, payload)
	case types.EventClearCanvas:
		c.forwardDraw(types.EventClearCanvas, nil)
	case types.EventCursorMove:
		var cur types.CursorUpdate
		if err := json.Unmarshal(env.Data, &cur); err != nil || !cur.Valid() {
			// malformed cursor samples are dropped, not fatal
			return
		}
		c.forwardCursor(cur)
	default:
		c.queueMessage(ErrorMessage("unknown event: " + env.Event))
	}
}

func (c *Client) queueMessage(msg *types.Envelope) bool {
	select {
	case c.send <- msg:
	default:
		c.log.Printf("send channel full for connection %q, dropping message", c.id)
		return false
	}

	return true
}

func (c *Client) sendMessage(msgType int, msg []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Printf("write message: %s", err)
		}
		return false
	}

	return true
}

// stopClient is safe to call from both the cleanup path and a server
// shutdown racing it.
func (c *Client) stopClient() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
}

// cleanup runs when the read pump exits: a transport disconnect is an
// implicit leave. The deregistration must not park forever when the
// server loop has already stopped draining the channel.
func (c *Client) cleanup() {
	select {
	case c.bs.DeregisterChan <- c:
	case <-c.stop:
	}
	c.leaveCurrentRoom()
	c.stopClient()
}

// joinRoom hands the request to the registry, which also sequences the
// implicit leave of the previous room. A connection holds at most one
// room membership.
func (c *Client) joinRoom(roomId string) {
	select {
	case c.bs.joinChan <- joinRequest{roomId: roomId, client: c}:
	default:
		c.log.Println("join channel full")
		c.queueMessage(ErrorMessage("service unavailable"))
	}
}

func (c *Client) leaveCurrentRoom() {
	r := c.getRoom()
	if r == nil {
		return
	}

	select {
	case r.memberChan <- memberRequest{client: c, leave: true}:
	default:
		c.log.Printf("member channel full for room %q", r.code)
	}
}

func (c *Client) forwardDraw(event string, payload types.StrokePayload) {
	r := c.getRoom()
	if r == nil {
		c.queueMessage(ErrorMessage("not joined to a room"))
		return
	}

	select {
	case r.eventChan <- roomEvent{event: event, stroke: payload, client: c}:
	default:
		c.log.Printf("event channel full for room %q", r.code)
		c.queueMessage(ErrorMessage("service unavailable"))
	}
}

func (c *Client) forwardCursor(cur types.CursorUpdate) {
	r := c.getRoom()
	if r == nil {
		// cursor updates outside a room are meaningless, drop them
		return
	}

	// cursor traffic is lossy, a dropped sample is fine
	select {
	case r.eventChan <- roomEvent{event: types.EventCursorMove, cursor: &cur, client: c}:
	default:
	}
}

func (c *Client) setRoom(r *Room) {
	c.roomLock.Lock()
	defer c.roomLock.Unlock()
	c.room = r
}

// detachRoom clears the membership if it still points at r.
func (c *Client) detachRoom(r *Room) {
	c.roomLock.Lock()
	defer c.roomLock.Unlock()
	if c.room == r {
		c.room = nil
	}
}

func (c *Client) getRoom() *Room {
	c.roomLock.RLock()
	defer c.roomLock.RUnlock()
	return c.room
}
