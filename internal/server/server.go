package server

import (
	"context"
	"log"
	"sync"

	"github.com/whiteboardhq/go-whiteboard/internal/database"
	"github.com/whiteboardhq/go-whiteboard/internal/stats"
)

type joinRequest struct {
	roomId string
	client *Client
}

type unloadRoomRequest struct {
	roomId string
}

type stopRequest struct {
	done chan struct{}
}

// BoardServer routes connections to rooms. Room lookups and creation
// happen on its single event loop; everything after a join runs on the
// room's own goroutine.
type BoardServer struct {
	log            *log.Logger
	db             database.WhiteboardRepository
	stats          stats.StatsProvider
	clients        map[*Client]struct{}
	clientsLock    sync.Mutex
	joinChan       chan joinRequest
	RegisterChan   chan *Client
	DeregisterChan chan *Client
	unloadRoomChan chan unloadRoomRequest
	rooms          map[string]*Room
	stop           chan stopRequest
}

func NewBoardServer(logger *log.Logger, db database.WhiteboardRepository, sp stats.StatsProvider) (*BoardServer, error) {
	bs := &BoardServer{
		log:            logger,
		db:             db,
		stats:          sp,
		clients:        make(map[*Client]struct{}),
		joinChan:       make(chan joinRequest, 256),
		RegisterChan:   make(chan *Client, 256),
		DeregisterChan: make(chan *Client, 256),
		unloadRoomChan: make(chan unloadRoomRequest, 16),
		rooms:          make(map[string]*Room),
		stop:           make(chan stopRequest),
	}

	for _, name := range []string{
		stats.ActiveConnections,
		stats.ActiveRooms,
		stats.StrokesRelayed,
		stats.CursorUpdatesRelayed,
		stats.CommandsPersisted,
		stats.PersistFailures,
	} {
		bs.stats.RegisterMetric(name)
	}

	return bs, nil
}

func (bs *BoardServer) Run() {
	for {
		select {
		case req := <-bs.joinChan:
			bs.handleJoinRequest(req)
		case client := <-bs.RegisterChan:
			bs.log.Printf("adding connection %q", client.id)
			bs.addClient(client)
			// the connection learns its relay identity up front so it
			// can recognize its own segments and cursor updates
			client.queueMessage(WelcomeMessage(client.id))
			bs.stats.Incr(stats.ActiveConnections)
		case client := <-bs.DeregisterChan:
			bs.log.Printf("removing connection %q", client.id)
			bs.removeClient(client)
			bs.stats.Decr(stats.ActiveConnections)
		case req := <-bs.unloadRoomChan:
			bs.unloadRoom(req.roomId)
		case req := <-bs.stop:
			bs.log.Println("shutting down rooms")
			for _, r := range bs.rooms {
				bs.log.Printf("shutting down room %q", r.code)
				r.exit <- exitRequest{}
				<-r.done
			}

			close(req.done)
			return
		}
	}
}

// handleJoinRequest routes a join to the live room, materializing the
// room on demand: an unknown code on the realtime channel is created,
// not rejected.
func (bs *BoardServer) handleJoinRequest(req joinRequest) {
	room, ok := bs.rooms[req.roomId]
	if !ok {
		dbRoom, err := bs.db.GetOrCreateRoom(req.roomId)
		if err != nil {
			bs.log.Printf("load room %q: %v", req.roomId, err)
			req.client.queueMessage(ErrorMessage("failed to join room"))
			return
		}

		room = newRoom(bs, dbRoom)
		bs.rooms[room.code] = room
		go room.start()
		bs.stats.Incr(stats.ActiveRooms)
	}

	// the implicit leave of the previous room is sequenced here, on the
	// registry's goroutine, so a stale leave can never trail the join
	// and evict a freshly joined client. Rejoining the same room queues
	// no leave at all.
	if prev := req.client.getRoom(); prev != nil && prev != room {
		select {
		case prev.memberChan <- memberRequest{client: req.client, leave: true}:
		default:
			bs.log.Printf("member channel full on room %q", prev.code)
		}
	}

	select {
	case room.memberChan <- memberRequest{client: req.client}:
	default:
		bs.log.Printf("member channel full on room %q", room.code)
		req.client.queueMessage(ErrorMessage("room is busy"))
	}
}

func (bs *BoardServer) addClient(c *Client) {
	bs.clientsLock.Lock()
	defer bs.clientsLock.Unlock()
	bs.clients[c] = struct{}{}
}

func (bs *BoardServer) removeClient(c *Client) {
	bs.clientsLock.Lock()
	defer bs.clientsLock.Unlock()
	delete(bs.clients, c)
}

func (bs *BoardServer) unloadRoom(roomId string) {
	r, ok := bs.rooms[roomId]
	if !ok {
		return
	}

	bs.log.Printf("unloading idle room %q", roomId)
	delete(bs.rooms, roomId)
	r.exit <- exitRequest{rehome: true}
	<-r.done
	bs.stats.Decr(stats.ActiveRooms)
}

// RegisterClient makes a new connection known to the server.
func (bs *BoardServer) RegisterClient(c *Client) {
	bs.RegisterChan <- c
}

func (bs *BoardServer) Shutdown(ctx context.Context) error {
	bs.log.Println("received shutdown signal")

	bs.clientsLock.Lock()
	for c := range bs.clients {
		c.stopClient()
	}
	bs.clientsLock.Unlock()

	req := stopRequest{done: make(chan struct{})}
	select {
	case bs.stop <- req:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-req.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	return nil
}
