package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type RouterConfig struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
}

// NewRouter mounts the websocket endpoint next to the JSON API. The upgrade route
// skips the logging and timeout middleware: both would break a hijacked connection.
func NewRouter(h *Handler, wsHandler http.HandlerFunc, cfg RouterConfig) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MiddlewareRequestID)
	if len(cfg.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", HeaderRequestID},
			ExposedHeaders:   []string{HeaderRequestID},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/ws", wsHandler)

	r.Group(func(api chi.Router) {
		api.Use(MiddlewareLogging)
		api.Use(middleware.Timeout(cfg.RequestTimeout))

		api.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		api.Get("/readyz", h.Ready)

		api.Post("/mentors/login", h.MentorLogin)

		api.Route("/rooms", func(rm chi.Router) {
			rm.Post("/", h.CreateRoom)

			rm.Group(func(priv chi.Router) {
				priv.Use(MentorOnly(h.mentorSvc))
				priv.Get("/active", h.ListActiveRooms)
				priv.Get("/live", h.ListLiveRooms)
			})

			rm.Route("/{id}", func(rr chi.Router) {
				rr.Get("/messages", h.GetChatHistory)
				rr.Get("/members", h.GetMembers)
			})
		})
	})

	return r
}
