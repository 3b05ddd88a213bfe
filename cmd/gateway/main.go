package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"cloudmeet/internal/config"
	"cloudmeet/internal/gateway"
	"cloudmeet/internal/logging"
	"cloudmeet/internal/middleware"
	"cloudmeet/internal/token"
)

func main() {
	cfg := config.LoadGateway()
	logging.Init(cfg.Env)

	// Verify-only: the TTL is only used when issuing tokens.
	codec := token.NewCodec(cfg.JWTSecret, 0)
	proxy := gateway.NewProxy(cfg.ProxyTimeout)
	handler := gateway.NewHandler(proxy, cfg.AuthServiceURL, cfg.ConferenceServiceURL, middleware.NewAuth(codec))

	r := chi.NewRouter()
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)

	r.Get("/health", health)
	handler.Routes(r)

	log.Info().
		Str("addr", cfg.Port).
		Str("auth", cfg.AuthServiceURL).
		Str("conference", cfg.ConferenceServiceURL).
		Msg("gateway starting")
	if err := http.ListenAndServe(cfg.Port, r); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"healthy","service":"gateway"}`))
}
