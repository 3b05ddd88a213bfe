package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"

	"cloudmeet/internal/middleware"
)

type Handler struct {
	Service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{Service: s}
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if detail := validateRegister(&req); detail != "" {
		writeError(w, http.StatusBadRequest, detail)
		return
	}

	u, err := h.Service.Register(r.Context(), &req)
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			writeError(w, http.StatusBadRequest, ErrEmailTaken.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusCreated, u)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.Service.Login(r.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidCredentials):
			writeError(w, http.StatusUnauthorized, ErrInvalidCredentials.Error())
		case errors.Is(err, ErrAccountDisabled):
			writeError(w, http.StatusForbidden, ErrAccountDisabled.Error())
		default:
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// Me returns the caller's projection re-derived from token claims. A
// display-name change after issuance is not reflected until re-login.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	writeJSON(w, http.StatusOK, UserInfo{
		ID:          id.UserID,
		Email:       id.Email,
		DisplayName: id.DisplayName,
	})
}

func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	writeJSON(w, http.StatusOK, ValidationResponse{
		Valid:       true,
		UserID:      id.UserID,
		Email:       id.Email,
		DisplayName: id.DisplayName,
	})
}

func validateRegister(req *RegisterRequest) string {
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return "invalid email address"
	}
	if len(req.DisplayName) < 2 || len(req.DisplayName) > 100 {
		return "display_name must be 2-100 characters"
	}
	if len(req.Password) < 6 || len(req.Password) > 100 {
		return "password must be 6-100 characters"
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
