package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/whiteboardhq/go-whiteboard/internal/types"
)

const uniqueViolation = "23505"

func (db *PgWhiteboardRepository) CreateRoom(roomId string) (Room, error) {
	row := db.conn.QueryRow(
		"INSERT INTO rooms (room_id, drawing_data, last_activity, created_at) "+
			"VALUES ($1, '[]'::jsonb, $2, $2) RETURNING id, room_id, last_activity, created_at",
		roomId,
		time.Now().UTC(),
	)

	var r Room
	err := row.Scan(
		&r.Id,
		&r.RoomId,
		&r.LastActivity,
		&r.CreatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == uniqueViolation {
			return Room{}, ErrRoomExists
		}
		return Room{}, err
	}

	r.DrawingData = []types.DrawCommand{}
	return r, nil
}

func (db *PgWhiteboardRepository) GetRoomByCode(roomId string) (Room, error) {
	row := db.conn.QueryRow(
		"SELECT id, room_id, drawing_data, last_activity, created_at FROM rooms "+
			"WHERE room_id = $1 LIMIT 1",
		roomId,
	)

	var (
		r       Room
		rawData []byte
	)
	err := row.Scan(
		&r.Id,
		&r.RoomId,
		&rawData,
		&r.LastActivity,
		&r.CreatedAt,
	)
	if err != nil {
		return Room{}, err
	}

	if err := json.Unmarshal(rawData, &r.DrawingData); err != nil {
		return Room{}, fmt.Errorf("decode drawing data for room %q: %w", roomId, err)
	}

	return r, nil
}

// GetOrCreateRoom materializes the room if it does not exist yet. The
// realtime channel joins through this path, so an unknown code is not
// an error there.
func (db *PgWhiteboardRepository) GetOrCreateRoom(roomId string) (Room, error) {
	_, err := db.conn.Exec(
		"INSERT INTO rooms (room_id, drawing_data, last_activity, created_at) "+
			"VALUES ($1, '[]'::jsonb, $2, $2) ON CONFLICT (room_id) DO NOTHING",
		roomId,
		time.Now().UTC(),
	)
	if err != nil {
		return Room{}, err
	}

	return db.GetRoomByCode(roomId)
}

func (db *PgWhiteboardRepository) ListActiveRooms(since time.Time) ([]RoomSummary, error) {
	rows, err := db.conn.Query(
		"SELECT room_id, last_activity FROM rooms "+
			"WHERE last_activity >= $1 ORDER BY last_activity DESC",
		since,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []RoomSummary
	for rows.Next() {
		var s RoomSummary
		if err := rows.Scan(&s.RoomId, &s.LastActivity); err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}

	return summaries, rows.Err()
}

// AppendDrawCommand appends one command to the room's history and bumps
// last_activity in a single statement, so a command record is always a
// whole-record insert.
func (db *PgWhiteboardRepository) AppendDrawCommand(roomId string, cmd types.DrawCommand) error {
	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("encode draw command: %w", err)
	}

	res, err := db.conn.Exec(
		"UPDATE rooms SET drawing_data = drawing_data || $2::jsonb, last_activity = $3 "+
			"WHERE room_id = $1",
		roomId,
		data,
		cmd.Timestamp,
	)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}

	return nil
}
