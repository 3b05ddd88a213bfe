package conference

import (
	"context"
	"database/sql"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) CreateRoom(ctx context.Context, name string, ownerID int) (*Room, error) {
	room := &Room{Name: name, OwnerID: ownerID}
	query := `INSERT INTO rooms (name, owner_id) VALUES ($1, $2)
	          RETURNING id, is_active, created_at`

	err := r.db.QueryRowContext(ctx, query, name, ownerID).
		Scan(&room.ID, &room.IsActive, &room.CreatedAt)
	if err != nil {
		return nil, err
	}
	return room, nil
}

func (r *Repository) ListRooms(ctx context.Context, skip, limit int, onlyActive bool) ([]Room, error) {
	query := `SELECT id, name, owner_id, is_active, created_at FROM rooms`
	if onlyActive {
		query += ` WHERE is_active = TRUE`
	}
	query += ` ORDER BY created_at DESC OFFSET $1 LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, skip, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms []Room
	for rows.Next() {
		var room Room
		if err := rows.Scan(&room.ID, &room.Name, &room.OwnerID, &room.IsActive, &room.CreatedAt); err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}

// GetRoom returns the room whether active or not; sql.ErrNoRows when
// absent.
func (r *Repository) GetRoom(ctx context.Context, id int) (*Room, error) {
	room := &Room{}
	query := `SELECT id, name, owner_id, is_active, created_at FROM rooms WHERE id = $1`

	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&room.ID, &room.Name, &room.OwnerID, &room.IsActive, &room.CreatedAt)
	if err != nil {
		return nil, err
	}
	return room, nil
}

func (r *Repository) DeactivateRoom(ctx context.Context, id int) error {
	_, err := r.db.ExecContext(ctx, `UPDATE rooms SET is_active = FALSE WHERE id = $1`, id)
	return err
}

func (r *Repository) CountActiveParticipants(ctx context.Context, roomID int) (int, error) {
	var count int
	query := `SELECT COUNT(id) FROM room_participants WHERE room_id = $1 AND status <> $2`
	err := r.db.QueryRowContext(ctx, query, roomID, StatusOffline).Scan(&count)
	return count, err
}

func (r *Repository) ListActiveParticipants(ctx context.Context, roomID int) ([]Participant, error) {
	query := `SELECT id, room_id, user_id, user_display_name, status, join_time, leave_time
	          FROM room_participants WHERE room_id = $1 AND status <> $2 ORDER BY join_time`

	rows, err := r.db.QueryContext(ctx, query, roomID, StatusOffline)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var participants []Participant
	for rows.Next() {
		var p Participant
		if err := rows.Scan(&p.ID, &p.RoomID, &p.UserID, &p.DisplayName, &p.Status, &p.JoinTime, &p.LeaveTime); err != nil {
			return nil, err
		}
		participants = append(participants, p)
	}
	return participants, rows.Err()
}

// FindActiveParticipant returns the caller's current membership row
// (status != offline); sql.ErrNoRows when there is none.
func (r *Repository) FindActiveParticipant(ctx context.Context, roomID, userID int) (*Participant, error) {
	p := &Participant{}
	query := `SELECT id, room_id, user_id, user_display_name, status, join_time, leave_time
	          FROM room_participants WHERE room_id = $1 AND user_id = $2 AND status <> $3`

	err := r.db.QueryRowContext(ctx, query, roomID, userID, StatusOffline).
		Scan(&p.ID, &p.RoomID, &p.UserID, &p.DisplayName, &p.Status, &p.JoinTime, &p.LeaveTime)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *Repository) CreateParticipant(ctx context.Context, roomID, userID int, displayName, status string) (*Participant, error) {
	p := &Participant{RoomID: roomID, UserID: userID, DisplayName: displayName, Status: status}
	query := `INSERT INTO room_participants (room_id, user_id, user_display_name, status)
	          VALUES ($1, $2, $3, $4)
	          RETURNING id, join_time`

	err := r.db.QueryRowContext(ctx, query, roomID, userID, displayName, status).
		Scan(&p.ID, &p.JoinTime)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *Repository) UpdateParticipantStatus(ctx context.Context, id int, status string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE room_participants SET status = $1 WHERE id = $2`, status, id)
	return err
}

func (r *Repository) MarkParticipantLeft(ctx context.Context, id int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE room_participants SET status = $1, leave_time = CURRENT_TIMESTAMP WHERE id = $2`,
		StatusOffline, id)
	return err
}

func (r *Repository) CreateMessage(ctx context.Context, roomID, userID int, displayName, content string) (*Message, error) {
	m := &Message{RoomID: roomID, UserID: userID, DisplayName: displayName, Content: content}
	query := `INSERT INTO messages (room_id, user_id, user_display_name, content)
	          VALUES ($1, $2, $3, $4)
	          RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query, roomID, userID, displayName, content).
		Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (r *Repository) ListMessages(ctx context.Context, roomID, skip, limit int) ([]Message, error) {
	query := `SELECT id, room_id, user_id, user_display_name, content, created_at
	          FROM messages WHERE room_id = $1 ORDER BY created_at ASC OFFSET $2 LIMIT $3`

	rows, err := r.db.QueryContext(ctx, query, roomID, skip, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.RoomID, &m.UserID, &m.DisplayName, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

func (r *Repository) CountMessages(ctx context.Context, roomID int) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(id) FROM messages WHERE room_id = $1`, roomID).Scan(&count)
	return count, err
}
