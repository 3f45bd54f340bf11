package server

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/whiteboardhq/go-whiteboard/internal/database"
	"github.com/whiteboardhq/go-whiteboard/internal/stats"
	"github.com/whiteboardhq/go-whiteboard/internal/types"
)

func TestNewClient(t *testing.T) {
	bs := newTestBoardServer(t, &database.MockWhiteboardRepository{}, &stats.MockBoardStats{})

	c := NewClient(nil, bs, bs.log)
	assert.NotEmpty(t, c.id, "expected a connection identity assigned")
	assert.NotNil(t, c.send, "expected send channel to be initialized")
	assert.NotNil(t, c.stop, "expected stop channel to be initialized")
	assert.Nil(t, c.getRoom(), "expected no room membership at start")

	c2 := NewClient(nil, bs, bs.log)
	assert.NotEqual(t, c.id, c2.id, "expected identities unique per connection")
}

func TestQueueMessage(t *testing.T) {
	bs := newTestBoardServer(t, &database.MockWhiteboardRepository{}, &stats.MockBoardStats{})

	c := NewClient(nil, bs, bs.log)
	c.send = make(chan *types.Envelope, 1)

	assert.True(t, c.queueMessage(UserCountMessage(1)), "expected queue to accept within capacity")
	assert.False(t, c.queueMessage(UserCountMessage(2)), "expected overflow to drop, not block")
	assert.Len(t, c.send, 1)
}

func TestDispatch_JoinRoom(t *testing.T) {
	bs := newTestBoardServer(t, &database.MockWhiteboardRepository{}, &stats.MockBoardStats{})
	c := NewClient(nil, bs, bs.log)

	env, err := types.NewEnvelope(types.EventJoinRoom, "abc123")
	assert.NoError(t, err)
	c.dispatch(&env)

	select {
	case req := <-bs.joinChan:
		assert.Equal(t, "abc123", req.roomId, "expected join routed with the requested code")
		assert.Equal(t, c, req.client)
	default:
		t.Fatal("expected a join request on the server channel")
	}
}

func TestDispatch_JoinRoomInvalid(t *testing.T) {
	bs := newTestBoardServer(t, &database.MockWhiteboardRepository{}, &stats.MockBoardStats{})
	c := NewClient(nil, bs, bs.log)

	env, err := types.NewEnvelope(types.EventJoinRoom, "")
	assert.NoError(t, err)
	c.dispatch(&env)

	assert.Len(t, bs.joinChan, 0, "expected no join request for an empty room id")
	got := recvEnvelope(t, c)
	assert.Equal(t, types.EventError, got.Event, "expected an error reply")
}

func TestDispatch_DrawWithoutRoom(t *testing.T) {
	bs := newTestBoardServer(t, &database.MockWhiteboardRepository{}, &stats.MockBoardStats{})
	c := NewClient(nil, bs, bs.log)

	payload := types.StrokePayload{{From: types.Point{X: 0, Y: 0}, To: types.Point{X: 1, Y: 1}}}
	env, err := types.NewEnvelope(types.EventDrawMove, payload)
	assert.NoError(t, err)
	c.dispatch(&env)

	got := recvEnvelope(t, c)
	assert.Equal(t, types.EventError, got.Event, "expected drawing outside a room to be rejected")
}

func TestDispatch_DrawForwarded(t *testing.T) {
	bs := newTestBoardServer(t, &database.MockWhiteboardRepository{}, &stats.MockBoardStats{})
	room := newTestRoom(bs, database.Room{Id: 1, RoomId: "abc123"})

	c := NewClient(nil, bs, bs.log)
	c.setRoom(room)

	payload := types.StrokePayload{{From: types.Point{X: 0, Y: 0}, To: types.Point{X: 1, Y: 1}}}
	env, err := types.NewEnvelope(types.EventDrawStart, payload)
	assert.NoError(t, err)
	c.dispatch(&env)

	select {
	case ev := <-room.eventChan:
		assert.Equal(t, types.EventDrawStart, ev.event)
		assert.Equal(t, c, ev.client)
		assert.Len(t, ev.stroke, 1)
	default:
		t.Fatal("expected the stroke on the room's event channel")
	}
}

func TestDispatch_CursorForwarded(t *testing.T) {
	bs := newTestBoardServer(t, &database.MockWhiteboardRepository{}, &stats.MockBoardStats{})
	room := newTestRoom(bs, database.Room{Id: 1, RoomId: "abc123"})

	c := NewClient(nil, bs, bs.log)
	c.setRoom(room)

	env, err := types.NewEnvelope(types.EventCursorMove, types.CursorUpdate{X: 4, Y: 2})
	assert.NoError(t, err)
	c.dispatch(&env)

	select {
	case ev := <-room.eventChan:
		assert.Equal(t, types.EventCursorMove, ev.event)
		assert.Equal(t, 4.0, ev.cursor.X)
		assert.Equal(t, 2.0, ev.cursor.Y)
	default:
		t.Fatal("expected the cursor update on the room's event channel")
	}
}

func TestDispatch_CursorWithoutRoomDropped(t *testing.T) {
	bs := newTestBoardServer(t, &database.MockWhiteboardRepository{}, &stats.MockBoardStats{})
	c := NewClient(nil, bs, bs.log)

	env, err := types.NewEnvelope(types.EventCursorMove, types.CursorUpdate{X: 4, Y: 2})
	assert.NoError(t, err)
	c.dispatch(&env)

	// lossy traffic: no error reply, no crash
	assert.Len(t, c.send, 0, "expected a roomless cursor update silently dropped")
}

func TestDispatch_UnknownEvent(t *testing.T) {
	bs := newTestBoardServer(t, &database.MockWhiteboardRepository{}, &stats.MockBoardStats{})
	c := NewClient(nil, bs, bs.log)

	env := types.Envelope{Event: "no-such-event"}
	c.dispatch(&env)

	got := recvEnvelope(t, c)
	assert.Equal(t, types.EventError, got.Event, "expected unknown events rejected")

	var body map[string]string
	assert.NoError(t, json.Unmarshal(got.Data, &body))
	assert.Contains(t, body["message"], "no-such-event")
}

func TestDispatch_LeaveRoom(t *testing.T) {
	bs := newTestBoardServer(t, &database.MockWhiteboardRepository{}, &stats.MockBoardStats{})
	room := newTestRoom(bs, database.Room{Id: 1, RoomId: "abc123"})

	c := NewClient(nil, bs, bs.log)
	c.setRoom(room)

	env := types.Envelope{Event: types.EventLeaveRoom}
	c.dispatch(&env)

	select {
	case req := <-room.memberChan:
		assert.Equal(t, c, req.client, "expected the client on the room's member channel")
		assert.True(t, req.leave, "expected a leave request")
	default:
		t.Fatal("expected a leave on the room's channel")
	}
}

func TestCleanup(t *testing.T) {
	bs := newTestBoardServer(t, &database.MockWhiteboardRepository{}, &stats.MockBoardStats{})
	room := newTestRoom(bs, database.Room{Id: 1, RoomId: "abc123"})

	c := NewClient(nil, bs, bs.log)
	c.setRoom(room)

	c.cleanup()

	select {
	case gone := <-bs.DeregisterChan:
		assert.Equal(t, c, gone, "expected the connection deregistered")
	default:
		t.Fatal("expected a deregistration")
	}

	select {
	case req := <-room.memberChan:
		assert.Equal(t, c, req.client, "expected a disconnect to act as an implicit leave")
		assert.True(t, req.leave, "expected a leave request")
	default:
		t.Fatal("expected a leave on the room's channel")
	}

	select {
	case <-c.stop:
	default:
		t.Fatal("expected the stop channel closed")
	}
}

func TestCleanup_DoesNotBlockAfterShutdown(t *testing.T) {
	bs := newTestBoardServer(t, &database.MockWhiteboardRepository{}, &stats.MockBoardStats{})

	// nobody draining the channel and no buffer left, as after Run returns
	for i := 0; i < cap(bs.DeregisterChan); i++ {
		bs.DeregisterChan <- NewClient(nil, bs, bs.log)
	}

	c := NewClient(nil, bs, bs.log)
	c.stopClient()

	done := make(chan struct{})
	go func() {
		c.cleanup()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected cleanup to return once the connection is stopped")
	}
}

func TestDetachRoom(t *testing.T) {
	bs := newTestBoardServer(t, &database.MockWhiteboardRepository{}, &stats.MockBoardStats{})
	r1 := newTestRoom(bs, database.Room{Id: 1, RoomId: "abc123"})
	r2 := newTestRoom(bs, database.Room{Id: 2, RoomId: "xyz789"})

	c := NewClient(nil, bs, bs.log)
	c.setRoom(r1)

	// a stale detach from another room leaves the membership intact
	c.detachRoom(r2)
	assert.Equal(t, r1, c.getRoom())

	c.detachRoom(r1)
	assert.Nil(t, c.getRoom())
}
