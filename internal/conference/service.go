package conference

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"cloudmeet/internal/token"
)

var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrNotInRoom      = errors.New("you are not in this room")
	ErrNotParticipant = errors.New("you are not a participant of this room")
	ErrNotOwner       = errors.New("only the owner can delete the room")
)

// Store is what the service needs from the conference repository.
type Store interface {
	CreateRoom(ctx context.Context, name string, ownerID int) (*Room, error)
	ListRooms(ctx context.Context, skip, limit int, onlyActive bool) ([]Room, error)
	GetRoom(ctx context.Context, id int) (*Room, error)
	DeactivateRoom(ctx context.Context, id int) error

	CountActiveParticipants(ctx context.Context, roomID int) (int, error)
	ListActiveParticipants(ctx context.Context, roomID int) ([]Participant, error)
	FindActiveParticipant(ctx context.Context, roomID, userID int) (*Participant, error)
	CreateParticipant(ctx context.Context, roomID, userID int, displayName, status string) (*Participant, error)
	UpdateParticipantStatus(ctx context.Context, id int, status string) error
	MarkParticipantLeft(ctx context.Context, id int) error

	CreateMessage(ctx context.Context, roomID, userID int, displayName, content string) (*Message, error)
	ListMessages(ctx context.Context, roomID, skip, limit int) ([]Message, error)
	CountMessages(ctx context.Context, roomID int) (int, error)
}

// Cache is the best-effort read cache the service invalidates on
// writes. A nil-op implementation is fine.
type Cache interface {
	GetJSON(ctx context.Context, key string, dest any) bool
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration)
	DeletePattern(ctx context.Context, pattern string)
}

type Service struct {
	store       Store
	cache       Cache
	roomsTTL    time.Duration
	messagesTTL time.Duration
}

func NewService(store Store, cache Cache, roomsTTL, messagesTTL time.Duration) *Service {
	return &Service{store: store, cache: cache, roomsTTL: roomsTTL, messagesTTL: messagesTTL}
}

const roomsPattern = "rooms:*"

func roomsListKey(skip, limit int, onlyActive bool) string {
	return fmt.Sprintf("rooms:list:%d:%d:%t", skip, limit, onlyActive)
}

func messagesKey(roomID, skip, limit int) string {
	return fmt.Sprintf("messages:%d:%d:%d", roomID, skip, limit)
}

func messagesPattern(roomID int) string {
	return fmt.Sprintf("messages:%d:*", roomID)
}

func (s *Service) CreateRoom(ctx context.Context, caller token.Identity, name string) (*RoomResponse, error) {
	room, err := s.store.CreateRoom(ctx, name, caller.UserID)
	if err != nil {
		return nil, err
	}

	// Participant counts in every cached listing page are now wrong.
	s.cache.DeletePattern(ctx, roomsPattern)

	log.Info().Int("room_id", room.ID).Int("owner_id", caller.UserID).Msg("room created")
	return &RoomResponse{
		ID:        room.ID,
		Name:      room.Name,
		OwnerID:   room.OwnerID,
		IsActive:  room.IsActive,
		CreatedAt: room.CreatedAt,
	}, nil
}

func (s *Service) ListRooms(ctx context.Context, skip, limit int, onlyActive bool) ([]RoomResponse, error) {
	key := roomsListKey(skip, limit, onlyActive)

	var cached []RoomResponse
	if s.cache.GetJSON(ctx, key, &cached) {
		return cached, nil
	}

	rooms, err := s.store.ListRooms(ctx, skip, limit, onlyActive)
	if err != nil {
		return nil, err
	}

	result := make([]RoomResponse, 0, len(rooms))
	for _, room := range rooms {
		count, err := s.store.CountActiveParticipants(ctx, room.ID)
		if err != nil {
			return nil, err
		}
		result = append(result, RoomResponse{
			ID:                room.ID,
			Name:              room.Name,
			OwnerID:           room.OwnerID,
			IsActive:          room.IsActive,
			CreatedAt:         room.CreatedAt,
			ParticipantsCount: count,
		})
	}

	s.cache.SetJSON(ctx, key, result, s.roomsTTL)
	return result, nil
}

func (s *Service) GetRoom(ctx context.Context, roomID int) (*RoomDetail, error) {
	room, err := s.getRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}

	participants, err := s.store.ListActiveParticipants(ctx, roomID)
	if err != nil {
		return nil, err
	}

	detail := &RoomDetail{
		RoomResponse: RoomResponse{
			ID:                room.ID,
			Name:              room.Name,
			OwnerID:           room.OwnerID,
			IsActive:          room.IsActive,
			CreatedAt:         room.CreatedAt,
			ParticipantsCount: len(participants),
		},
		Participants: make([]ParticipantResponse, 0, len(participants)),
	}
	for _, p := range participants {
		detail.Participants = append(detail.Participants, ParticipantResponse{
			ID:          p.ID,
			UserID:      p.UserID,
			DisplayName: p.DisplayName,
			Status:      p.Status,
			IsOwner:     p.UserID == room.OwnerID,
			JoinTime:    p.JoinTime,
			LeaveTime:   p.LeaveTime,
		})
	}
	return detail, nil
}

// JoinRoom is idempotent: an existing non-offline membership is reused
// with its status reset to in_call rather than creating a second row.
func (s *Service) JoinRoom(ctx context.Context, caller token.Identity, roomID int) (*JoinRoomResponse, error) {
	room, err := s.getRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.IsActive {
		return nil, ErrRoomNotFound
	}

	existing, err := s.store.FindActiveParticipant(ctx, roomID, caller.UserID)
	if err == nil {
		if err := s.store.UpdateParticipantStatus(ctx, existing.ID, StatusInCall); err != nil {
			return nil, err
		}
		s.cache.DeletePattern(ctx, roomsPattern)
		return &JoinRoomResponse{
			Message:       "already in the room",
			ParticipantID: existing.ID,
			RoomID:        roomID,
		}, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	displayName := caller.DisplayName
	if displayName == "" {
		displayName = caller.Email
	}
	participant, err := s.store.CreateParticipant(ctx, roomID, caller.UserID, displayName, StatusInCall)
	if err != nil {
		return nil, err
	}

	s.cache.DeletePattern(ctx, roomsPattern)

	log.Info().Int("room_id", roomID).Int("user_id", caller.UserID).Msg("user joined room")
	return &JoinRoomResponse{
		Message:       "joined the room",
		ParticipantID: participant.ID,
		RoomID:        roomID,
	}, nil
}

func (s *Service) LeaveRoom(ctx context.Context, caller token.Identity, roomID int) (*LeaveRoomResponse, error) {
	participant, err := s.store.FindActiveParticipant(ctx, roomID, caller.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotInRoom
		}
		return nil, err
	}

	if err := s.store.MarkParticipantLeft(ctx, participant.ID); err != nil {
		return nil, err
	}

	s.cache.DeletePattern(ctx, roomsPattern)

	log.Info().Int("room_id", roomID).Int("user_id", caller.UserID).Msg("user left room")
	return &LeaveRoomResponse{Message: "left the room"}, nil
}

// DeleteRoom soft-deletes: the active flag flips, participants and
// message history stay.
func (s *Service) DeleteRoom(ctx context.Context, caller token.Identity, roomID int) error {
	room, err := s.getRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if room.OwnerID != caller.UserID {
		return ErrNotOwner
	}

	if err := s.store.DeactivateRoom(ctx, roomID); err != nil {
		return err
	}

	s.cache.DeletePattern(ctx, roomsPattern)

	log.Info().Int("room_id", roomID).Int("user_id", caller.UserID).Msg("room deactivated")
	return nil
}

func (s *Service) SendMessage(ctx context.Context, caller token.Identity, roomID int, content string) (*MessageResponse, error) {
	room, err := s.getRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.IsActive {
		return nil, ErrRoomNotFound
	}

	if _, err := s.store.FindActiveParticipant(ctx, roomID, caller.UserID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotParticipant
		}
		return nil, err
	}

	displayName := caller.DisplayName
	if displayName == "" {
		displayName = caller.Email
	}
	msg, err := s.store.CreateMessage(ctx, roomID, caller.UserID, displayName, content)
	if err != nil {
		return nil, err
	}

	// Every cached page of this room's history is now stale.
	s.cache.DeletePattern(ctx, messagesPattern(roomID))

	return &MessageResponse{
		ID:          msg.ID,
		RoomID:      msg.RoomID,
		UserID:      msg.UserID,
		DisplayName: msg.DisplayName,
		IsOwner:     msg.UserID == room.OwnerID,
		Content:     msg.Content,
		CreatedAt:   msg.CreatedAt,
	}, nil
}

// messagesPage is the cache representation of one history page. It
// stores raw rows; the derived is_owner flag is recomputed on every
// read so a cached page can never outlive an ownership fact.
type messagesPage struct {
	Messages []Message `json:"messages"`
	Total    int       `json:"total"`
}

func (s *Service) ListMessages(ctx context.Context, roomID, skip, limit int) (*MessagesListResponse, error) {
	// History stays readable after the room is deactivated.
	room, err := s.getRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}

	key := messagesKey(roomID, skip, limit)

	var page messagesPage
	if !s.cache.GetJSON(ctx, key, &page) {
		messages, err := s.store.ListMessages(ctx, roomID, skip, limit)
		if err != nil {
			return nil, err
		}
		total, err := s.store.CountMessages(ctx, roomID)
		if err != nil {
			return nil, err
		}
		page = messagesPage{Messages: messages, Total: total}
		s.cache.SetJSON(ctx, key, page, s.messagesTTL)
	}

	result := &MessagesListResponse{
		Messages: make([]MessageResponse, 0, len(page.Messages)),
		Total:    page.Total,
	}
	for _, m := range page.Messages {
		result.Messages = append(result.Messages, MessageResponse{
			ID:          m.ID,
			RoomID:      m.RoomID,
			UserID:      m.UserID,
			DisplayName: m.DisplayName,
			IsOwner:     m.UserID == room.OwnerID,
			Content:     m.Content,
			CreatedAt:   m.CreatedAt,
		})
	}
	return result, nil
}

func (s *Service) getRoom(ctx context.Context, roomID int) (*Room, error) {
	room, err := s.store.GetRoom(ctx, roomID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	return room, nil
}
