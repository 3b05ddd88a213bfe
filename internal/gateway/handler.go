package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"cloudmeet/internal/middleware"
)

// Handler is the gateway's route table: a stateless pass-through that
// checks bearer tokens on protected routes and forwards everything
// else verbatim.
type Handler struct {
	proxy         *Proxy
	authURL       string
	conferenceURL string
	auth          *middleware.Auth
}

func NewHandler(proxy *Proxy, authURL, conferenceURL string, auth *middleware.Auth) *Handler {
	return &Handler{
		proxy:         proxy,
		authURL:       authURL,
		conferenceURL: conferenceURL,
		auth:          auth,
	}
}

// Routes registers the public API on r. Register and login are open;
// every other route requires a valid bearer token before the request
// leaves the gateway.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/api/auth/register", h.toAuth)
	r.Post("/api/auth/login", h.toAuth)

	r.Group(func(r chi.Router) {
		r.Use(h.auth.Handle)

		r.Get("/api/auth/me", h.toAuth)

		r.Post("/api/rooms", h.toConference)
		r.Get("/api/rooms", h.toConference)
		r.Get("/api/rooms/{roomID}", h.toConference)
		r.Post("/api/rooms/{roomID}/join", h.toConference)
		r.Post("/api/rooms/{roomID}/leave", h.toConference)
		r.Delete("/api/rooms/{roomID}", h.toConference)
		r.Post("/api/rooms/{roomID}/messages", h.toConference)
		r.Get("/api/rooms/{roomID}/messages", h.toConference)
	})
}

func (h *Handler) toAuth(w http.ResponseWriter, r *http.Request) {
	h.proxy.Forward(w, r, h.authURL)
}

func (h *Handler) toConference(w http.ResponseWriter, r *http.Request) {
	h.proxy.Forward(w, r, h.conferenceURL)
}
