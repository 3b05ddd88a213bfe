package conference

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"cloudmeet/internal/middleware"
	"cloudmeet/internal/token"
)

const maxMessageLength = 1000

type Handler struct {
	Service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{Service: s}
}

func (h *Handler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}

	var req CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || len(req.Name) > 255 {
		writeError(w, http.StatusBadRequest, "name must be 1-255 characters")
		return
	}

	room, err := h.Service.CreateRoom(r.Context(), caller, req.Name)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, room)
}

func (h *Handler) ListRooms(w http.ResponseWriter, r *http.Request) {
	skip := queryInt(r, "skip", 0, 0, 1<<30)
	limit := queryInt(r, "limit", 20, 1, 100)
	onlyActive := queryBool(r, "only_active", true)

	rooms, err := h.Service.ListRooms(r.Context(), skip, limit, onlyActive)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rooms)
}

func (h *Handler) GetRoom(w http.ResponseWriter, r *http.Request) {
	roomID, ok := roomIDFrom(w, r)
	if !ok {
		return
	}

	detail, err := h.Service.GetRoom(r.Context(), roomID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *Handler) JoinRoom(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}
	roomID, ok := roomIDFrom(w, r)
	if !ok {
		return
	}

	res, err := h.Service.JoinRoom(r.Context(), caller, roomID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) LeaveRoom(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}
	roomID, ok := roomIDFrom(w, r)
	if !ok {
		return
	}

	res, err := h.Service.LeaveRoom(r.Context(), caller, roomID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) DeleteRoom(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}
	roomID, ok := roomIDFrom(w, r)
	if !ok {
		return
	}

	if err := h.Service.DeleteRoom(r.Context(), caller, roomID); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}
	roomID, ok := roomIDFrom(w, r)
	if !ok {
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Content == "" || len(req.Content) > maxMessageLength {
		writeError(w, http.StatusBadRequest, "content must be 1-1000 characters")
		return
	}

	msg, err := h.Service.SendMessage(r.Context(), caller, roomID, req.Content)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	roomID, ok := roomIDFrom(w, r)
	if !ok {
		return
	}
	skip := queryInt(r, "skip", 0, 0, 1<<30)
	limit := queryInt(r, "limit", 50, 1, 200)

	res, err := h.Service.ListMessages(r.Context(), roomID, skip, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func callerFrom(w http.ResponseWriter, r *http.Request) (token.Identity, bool) {
	caller, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing identity")
	}
	return caller, ok
}

func roomIDFrom(w http.ResponseWriter, r *http.Request) (int, bool) {
	roomID, err := strconv.Atoi(chi.URLParam(r, "roomID"))
	if err != nil || roomID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid room id")
		return 0, false
	}
	return roomID, true
}

func queryInt(r *http.Request, key string, def, min, max int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < min {
		return def
	}
	if v > max {
		return max
	}
	return v
}

func queryBool(r *http.Request, key string, def bool) bool {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrRoomNotFound):
		writeError(w, http.StatusNotFound, ErrRoomNotFound.Error())
	case errors.Is(err, ErrNotInRoom):
		writeError(w, http.StatusNotFound, ErrNotInRoom.Error())
	case errors.Is(err, ErrNotParticipant):
		writeError(w, http.StatusForbidden, ErrNotParticipant.Error())
	case errors.Is(err, ErrNotOwner):
		writeError(w, http.StatusForbidden, ErrNotOwner.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
