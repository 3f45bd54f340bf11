package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"
	"github.com/whiteboardhq/go-whiteboard/internal/database"
	"github.com/whiteboardhq/go-whiteboard/internal/server"
	"github.com/whiteboardhq/go-whiteboard/internal/types"
)

// activityWindow bounds the room listing to recently used rooms.
const activityWindow = 24 * time.Hour

type roomRequest struct {
	RoomId string `json:"roomId"`
}

type roomResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	RoomId  string `json:"roomId,omitempty"`
}

type listRoomsResponse struct {
	Success bool             `json:"success"`
	Rooms   []types.RoomInfo `json:"rooms"`
}

type getRoomResponse struct {
	Success bool      `json:"success"`
	Message string    `json:"message,omitempty"`
	Room    *roomBody `json:"room,omitempty"`
}

type roomBody struct {
	RoomId       string              `json:"roomId"`
	DrawingData  []types.DrawCommand `json:"drawingData"`
	LastActivity time.Time           `json:"lastActivity"`
}

func (s *WhiteboardApp) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Printf("json encode: %v", err)
	}
}

func (s *WhiteboardApp) writeError(w http.ResponseWriter, statusCode int, message string) {
	s.writeJson(w, statusCode, roomResponse{Success: false, Message: message})
}

func (s *WhiteboardApp) healthCheck(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(); err != nil {
		s.log.Println("ping:", err)
		http.Error(w, "database unavailable", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *WhiteboardApp) listRooms(w http.ResponseWriter, r *http.Request) {
	since := time.Now().Add(-activityWindow)
	summaries, err := s.db.ListActiveRooms(since)
	if err != nil {
		s.log.Println("ListActiveRooms:", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list rooms")
		return
	}

	rooms := make([]types.RoomInfo, len(summaries))
	for i, sum := range summaries {
		rooms[i] = types.RoomInfo{RoomId: sum.RoomId, LastActivity: sum.LastActivity}
	}

	s.writeJson(w, http.StatusOK, listRoomsResponse{Success: true, Rooms: rooms})
}

// createRoom creates a room only if the code is free. Duplicate codes
// are a conflict and never mutate the existing room.
func (s *WhiteboardApp) createRoom(w http.ResponseWriter, r *http.Request) {
	var req roomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !ValidRoomCode(req.RoomId) {
		s.writeError(w, http.StatusBadRequest, "invalid room code")
		return
	}

	room, err := s.db.CreateRoom(req.RoomId)
	if err != nil {
		if errors.Is(err, database.ErrRoomExists) {
			s.writeError(w, http.StatusConflict, "room already exists")
			return
		}
		s.log.Println("CreateRoom:", err)
		s.writeError(w, http.StatusInternalServerError, "failed to create room")
		return
	}

	s.writeJson(w, http.StatusOK, roomResponse{Success: true, RoomId: room.RoomId})
}

// joinRoom resolves a room, creating the record if absent.
func (s *WhiteboardApp) joinRoom(w http.ResponseWriter, r *http.Request) {
	var req roomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !ValidRoomCode(req.RoomId) {
		s.writeError(w, http.StatusBadRequest, "invalid room code")
		return
	}

	room, err := s.db.GetOrCreateRoom(req.RoomId)
	if err != nil {
		s.log.Println("GetOrCreateRoom:", err)
		s.writeError(w, http.StatusInternalServerError, "failed to join room")
		return
	}

	s.writeJson(w, http.StatusOK, roomResponse{Success: true, RoomId: room.RoomId})
}

func (s *WhiteboardApp) getRoom(w http.ResponseWriter, r *http.Request) {
	roomId := r.PathValue("roomId")
	if !ValidRoomCode(roomId) {
		s.writeError(w, http.StatusBadRequest, "invalid room code")
		return
	}

	room, err := s.db.GetRoomByCode(roomId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.writeError(w, http.StatusNotFound, "room not found")
			return
		}
		s.log.Println("GetRoomByCode:", err)
		s.writeError(w, http.StatusInternalServerError, "failed to fetch room")
		return
	}

	s.writeJson(w, http.StatusOK, getRoomResponse{
		Success: true,
		Room: &roomBody{
			RoomId:       room.RoomId,
			DrawingData:  room.DrawingData,
			LastActivity: room.LastActivity,
		},
	})
}

// suggestRoomCode hands out an unused code for the create form.
func (s *WhiteboardApp) suggestRoomCode(w http.ResponseWriter, r *http.Request) {
	for attempts := 0; attempts < 8; attempts++ {
		code, err := SuggestCode()
		if err != nil {
			s.log.Println("SuggestCode:", err)
			break
		}

		_, err = s.db.GetRoomByCode(code)
		if errors.Is(err, sql.ErrNoRows) {
			s.writeJson(w, http.StatusOK, roomResponse{Success: true, RoomId: code})
			return
		}
		if err != nil {
			s.log.Println("GetRoomByCode:", err)
			break
		}
	}

	s.writeError(w, http.StatusInternalServerError, "failed to generate room code")
}

func (s *WhiteboardApp) serveWs(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			// only allow connections from allowed origins
			origin := r.Header.Get("Origin")
			if origin == "" {
				// if no origin header, allow the request
				return true
			}

			return slices.Contains(s.allowedOrigins, origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Println("error upgrading connection:", err)
		return
	}

	client := server.NewClient(conn, s.bs, s.log)

	s.bs.RegisterClient(client)
	go client.Write()
	go client.Read()
}
