package main

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"cloudmeet/internal/cache"
	"cloudmeet/internal/conference"
	"cloudmeet/internal/config"
	"cloudmeet/internal/db"
	"cloudmeet/internal/logging"
	"cloudmeet/internal/middleware"
	"cloudmeet/internal/token"
)

func main() {
	cfg := config.LoadConference()
	logging.Init(cfg.Env)

	database, err := db.NewDatabase(cfg.DatabaseDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	log.Info().Msg("connected to postgres")

	if err := database.MigrateConference(); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	log.Info().Msg("connected to redis")

	// Verify-only: the TTL is only used when issuing tokens.
	codec := token.NewCodec(cfg.JWTSecret, 0)
	repo := conference.NewRepository(database.Conn)
	service := conference.NewService(repo, cache.New(redisClient), cfg.RoomsCacheTTL, cfg.MessagesCacheTTL)
	handler := conference.NewHandler(service)

	authMiddleware := middleware.NewAuth(codec)
	// The gateway strips X-User-* at the edge; inside the perimeter
	// they are an accepted identity path for service-to-service calls.
	authMiddleware.TrustHeaders = true

	r := chi.NewRouter()
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)

	r.Get("/health", health)

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware.Handle)
		r.Post("/api/rooms", handler.CreateRoom)
		r.Get("/api/rooms", handler.ListRooms)
		r.Get("/api/rooms/{roomID}", handler.GetRoom)
		r.Post("/api/rooms/{roomID}/join", handler.JoinRoom)
		r.Post("/api/rooms/{roomID}/leave", handler.LeaveRoom)
		r.Delete("/api/rooms/{roomID}", handler.DeleteRoom)
		r.Post("/api/rooms/{roomID}/messages", handler.SendMessage)
		r.Get("/api/rooms/{roomID}/messages", handler.ListMessages)
	})

	log.Info().Str("addr", cfg.Port).Msg("conference service starting")
	if err := http.ListenAndServe(cfg.Port, r); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"healthy","service":"conference"}`))
}
