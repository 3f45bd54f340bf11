package server

import (
	"log"
	"time"

	"github.com/whiteboardhq/go-whiteboard/internal/database"
	"github.com/whiteboardhq/go-whiteboard/internal/stats"
	"github.com/whiteboardhq/go-whiteboard/internal/types"
)

const (
	// idleRoomTimeout is how long an empty room stays loaded before it
	// unloads itself from the registry. Persisted history is untouched.
	idleRoomTimeout = 30 * time.Second

	roomChanSize     = 256
	persistQueueSize = 256
)

type roomEvent struct {
	event  string
	stroke types.StrokePayload
	cursor *types.CursorUpdate
	client *Client
}

// memberRequest is a join or leave. Both kinds share one channel so
// membership changes are handled strictly in submission order.
type memberRequest struct {
	client *Client
	leave  bool
}

// exitRequest tears the room down. rehome is set on the idle-unload
// path: members and queued joins are re-routed through the registry
// instead of being dropped.
type exitRequest struct {
	rehome bool
}

// Room owns the presence set and the ordered drawing history of one
// whiteboard. All mutation happens on the room's goroutine, so history
// order equals arrival order.
type Room struct {
	id      int
	code    string
	bs      *BoardServer
	history []types.DrawCommand
	clients map[*Client]struct{}

	memberChan chan memberRequest
	eventChan  chan roomEvent

	// persistChan feeds a single worker per room so appends reach the
	// store in broadcast order without gating the broadcast itself.
	persistChan chan types.DrawCommand
	persistDone chan struct{}

	killTimer *time.Timer
	exit      chan exitRequest
	done      chan struct{}
	log       *log.Logger
}

func newRoom(bs *BoardServer, dbRoom database.Room) *Room {
	return &Room{
		id:          dbRoom.Id,
		code:        dbRoom.RoomId,
		bs:          bs,
		history:     dbRoom.DrawingData,
		clients:     make(map[*Client]struct{}),
		memberChan:  make(chan memberRequest, roomChanSize),
		eventChan:   make(chan roomEvent, roomChanSize),
		persistChan: make(chan types.DrawCommand, persistQueueSize),
		persistDone: make(chan struct{}),
		exit:        make(chan exitRequest),
		done:        make(chan struct{}),
		log:         bs.log,
	}
}

func (r *Room) start() {
	r.log.Printf("starting room %q", r.code)
	r.killTimer = time.NewTimer(idleRoomTimeout)
	r.killTimer.Stop()

	go r.persistLoop()

	for {
		select {
		case req := <-r.memberChan:
			if req.leave {
				r.handleLeave(req.client)
			} else {
				r.handleJoin(req.client)
			}
		case ev := <-r.eventChan:
			r.handleEvent(ev)
		case <-r.killTimer.C:
			r.requestUnload()
		case req := <-r.exit:
			r.handleExit(req.rehome)
			return
		}
	}
}

func (r *Room) handleJoin(c *Client) {
	r.killTimer.Stop()

	// a rejoin is idempotent: no count change, but the snapshot is
	// sent again
	if _, ok := r.clients[c]; !ok {
		r.clients[c] = struct{}{}
		c.setRoom(r)

		// everyone, including the joiner, sees the new participant count
		r.broadcast(UserCountMessage(len(r.clients)), nil)
	}

	// replay: the full ordered history as one snapshot. The slice
	// header is copied so later appends never touch what the write
	// pump is serializing.
	snapshot := make([]types.DrawCommand, len(r.history))
	copy(snapshot, r.history)
	c.queueMessage(InitDrawingMessage(snapshot))
}

func (r *Room) handleLeave(c *Client) {
	if _, ok := r.clients[c]; !ok {
		return
	}

	delete(r.clients, c)
	c.detachRoom(r)

	r.broadcast(UserCountMessage(len(r.clients)), nil)

	if len(r.clients) == 0 {
		r.log.Printf("no clients in %q, starting kill timer", r.code)
		r.killTimer.Reset(idleRoomTimeout)
	}
}

func (r *Room) handleEvent(ev roomEvent) {
	if _, ok := r.clients[ev.client]; !ok {
		// the sender left (or never joined) before the event was handled
		return
	}

	switch ev.event {
	case types.EventDrawStart, types.EventDrawMove, types.EventDrawEnd:
		r.relayStroke(ev)
	case types.EventClearCanvas:
		r.handleClear()
	case types.EventCursorMove:
		r.relayCursor(ev)
	}
}

// relayStroke stamps the sender's identity on every segment, fans the
// payload out to everyone but the sender and appends it to history.
func (r *Room) relayStroke(ev roomEvent) {
	payload := ev.stroke
	for i := range payload {
		payload[i].AuthorId = ev.client.id
	}

	if len(payload) == 0 {
		if ev.event == types.EventDrawEnd {
			// inert end-of-stroke marker: relayed so peers can close
			// out the remote stroke, never stored
			r.broadcast(DrawMessage(types.EventDrawEnd, nil), ev.client)
		}
		return
	}

	r.broadcast(DrawMessage(ev.event, payload), ev.client)

	cmd := types.DrawCommand{
		Type:      types.CommandStroke,
		Data:      payload,
		Timestamp: Now(),
	}
	r.history = append(r.history, cmd)
	r.enqueuePersist(cmd)
	r.bs.stats.Incr(stats.StrokesRelayed)
}

// handleClear resets the canvas for everyone uniformly, so unlike a
// stroke it is echoed back to the sender as well.
func (r *Room) handleClear() {
	r.broadcast(ClearCanvasMessage(), nil)

	cmd := types.DrawCommand{
		Type:      types.CommandClear,
		Timestamp: Now(),
	}
	r.history = append(r.history, cmd)
	r.enqueuePersist(cmd)
}

func (r *Room) relayCursor(ev roomEvent) {
	cur := *ev.cursor
	cur.AuthorId = ev.client.id
	r.broadcast(CursorMessage(cur), ev.client)
	r.bs.stats.Incr(stats.CursorUpdatesRelayed)
}

func (r *Room) broadcast(msg *types.Envelope, skip *Client) {
	for client := range r.clients {
		if client == skip {
			continue
		}

		client.queueMessage(msg)
	}
}

// enqueuePersist hands the command to the persist worker. The broadcast
// already happened; a full queue is a persistence failure, not a relay
// failure.
func (r *Room) enqueuePersist(cmd types.DrawCommand) {
	select {
	case r.persistChan <- cmd:
	default:
		r.log.Printf("persist queue full for room %q, dropping write", r.code)
		r.bs.stats.Incr(stats.PersistFailures)
	}
}

func (r *Room) persistLoop() {
	for cmd := range r.persistChan {
		if err := r.bs.db.AppendDrawCommand(r.code, cmd); err != nil {
			r.log.Printf("append draw command to room %q: %v", r.code, err)
			r.bs.stats.Incr(stats.PersistFailures)
			continue
		}
		r.bs.stats.Incr(stats.CommandsPersisted)
	}
	close(r.persistDone)
}

func (r *Room) requestUnload() {
	select {
	case r.bs.unloadRoomChan <- unloadRoomRequest{roomId: r.code}:
	default:
		// server is busy, try again next interval
		r.killTimer.Reset(idleRoomTimeout)
	}
}

func (r *Room) handleExit(rehome bool) {
	r.log.Printf("room %q is exiting", r.code)

	// let queued writes drain before shutting down
	close(r.persistChan)
	<-r.persistDone

	// members present here mean a join raced the idle unload; on the
	// unload path they are routed back through the registry, which
	// materializes the room afresh
	for c := range r.clients {
		c.detachRoom(r)
		if rehome {
			r.rehomeClient(c)
		}
	}

	// same for joins still queued behind the exit
	for {
		select {
		case req := <-r.memberChan:
			if req.leave {
				req.client.detachRoom(r)
			} else if rehome {
				r.rehomeClient(req.client)
			}
		default:
			close(r.done)
			return
		}
	}
}

func (r *Room) rehomeClient(c *Client) {
	select {
	case r.bs.joinChan <- joinRequest{roomId: r.code, client: c}:
	default:
		r.log.Printf("join channel full, dropping rehomed client %q", c.id)
		c.queueMessage(ErrorMessage("failed to join room"))
	}
}
