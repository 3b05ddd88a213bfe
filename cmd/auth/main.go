package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"cloudmeet/internal/auth"
	"cloudmeet/internal/config"
	"cloudmeet/internal/db"
	"cloudmeet/internal/logging"
	"cloudmeet/internal/middleware"
	"cloudmeet/internal/token"
)

func main() {
	cfg := config.LoadAuth()
	logging.Init(cfg.Env)

	database, err := db.NewDatabase(cfg.DatabaseDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	log.Info().Msg("connected to postgres")

	if err := database.MigrateAuth(); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}

	codec := token.NewCodec(cfg.JWTSecret, cfg.TokenTTL)
	repo := auth.NewRepository(database.Conn)
	service := auth.NewService(repo, codec)
	handler := auth.NewHandler(service)
	authMiddleware := middleware.NewAuth(service)

	r := chi.NewRouter()
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)

	r.Post("/api/auth/register", handler.Register)
	r.Post("/api/auth/login", handler.Login)
	r.Get("/health", health)

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware.Handle)
		r.Get("/api/auth/me", handler.Me)
		r.Get("/api/auth/validate", handler.Validate)
	})

	log.Info().Str("addr", cfg.Port).Msg("auth service starting")
	if err := http.ListenAndServe(cfg.Port, r); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"healthy","service":"auth"}`))
}
