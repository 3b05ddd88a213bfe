package conference

import "time"

const (
	StatusOnline  = "online"
	StatusInCall  = "in_call"
	StatusOffline = "offline"
)

type Room struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	OwnerID   int       `json:"owner_id"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// Participant is one user's membership in one room. The row is never
// deleted; a status of "offline" marks it historical.
type Participant struct {
	ID          int        `json:"id"`
	RoomID      int        `json:"room_id"`
	UserID      int        `json:"user_id"`
	DisplayName string     `json:"user_display_name"`
	Status      string     `json:"status"`
	JoinTime    time.Time  `json:"join_time"`
	LeaveTime   *time.Time `json:"leave_time"`
}

type Message struct {
	ID          int       `json:"id"`
	RoomID      int       `json:"room_id"`
	UserID      int       `json:"user_id"`
	DisplayName string    `json:"user_display_name"`
	Content     string    `json:"content"`
	CreatedAt   time.Time `json:"created_at"`
}

type CreateRoomRequest struct {
	Name string `json:"name"`
}

type SendMessageRequest struct {
	Content string `json:"content"`
}

type RoomResponse struct {
	ID                int       `json:"id"`
	Name              string    `json:"name"`
	OwnerID           int       `json:"owner_id"`
	IsActive          bool      `json:"is_active"`
	CreatedAt         time.Time `json:"created_at"`
	ParticipantsCount int       `json:"participants_count"`
}

type ParticipantResponse struct {
	ID          int        `json:"id"`
	UserID      int        `json:"user_id"`
	DisplayName string     `json:"user_display_name"`
	Status      string     `json:"status"`
	IsOwner     bool       `json:"is_owner"`
	JoinTime    time.Time  `json:"join_time"`
	LeaveTime   *time.Time `json:"leave_time"`
}

type RoomDetail struct {
	RoomResponse
	Participants []ParticipantResponse `json:"participants"`
}

type JoinRoomResponse struct {
	Message       string `json:"message"`
	ParticipantID int    `json:"participant_id"`
	RoomID        int    `json:"room_id"`
}

type LeaveRoomResponse struct {
	Message string `json:"message"`
}

type MessageResponse struct {
	ID          int       `json:"id"`
	RoomID      int       `json:"room_id"`
	UserID      int       `json:"user_id"`
	DisplayName string    `json:"user_display_name"`
	IsOwner     bool      `json:"is_owner"`
	Content     string    `json:"content"`
	CreatedAt   time.Time `json:"created_at"`
}

type MessagesListResponse struct {
	Messages []MessageResponse `json:"messages"`
	Total    int               `json:"total"`
}
